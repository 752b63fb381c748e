package simulator

import (
	"errors"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	log "github.com/sirupsen/logrus"

	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/metrics"
)

var errChaos = errors.New("simulated terminal failure")

// chaos holds the failure injection switches of a simulator.
type chaos struct {
	mu          sync.RWMutex
	enabled     bool
	slowMode    bool
	failureRate float64
	slowMin     time.Duration
	slowMax     time.Duration
	service     string
	faker       *gofakeit.Faker
}

func (c *chaos) setEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
	metrics.ChaosFailureRate.WithLabelValues(c.service).Set(boolGauge(enabled))
}

func (c *chaos) setSlowMode(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slowMode = enabled
	metrics.ChaosSlowMode.WithLabelValues(c.service).Set(boolGauge(enabled))
}

func (c *chaos) state() (enabled, slow bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled, c.slowMode
}

// simulate sleeps in slow mode and fails a share of calls when enabled.
func (c *chaos) simulate() error {
	c.mu.Lock()
	enabled, slow := c.enabled, c.slowMode
	var delay time.Duration
	if slow {
		delay = c.slowMin + time.Duration(c.faker.IntRange(0, int((c.slowMax-c.slowMin)/time.Millisecond)))*time.Millisecond
	}
	fail := enabled && c.faker.Float64Range(0, 1) < c.failureRate
	c.mu.Unlock()

	if slow {
		log.WithField("delay_ms", delay.Milliseconds()).Debug("Chaos: Simulating slow response")
		time.Sleep(delay)
	}
	if fail {
		return errChaos
	}
	return nil
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
