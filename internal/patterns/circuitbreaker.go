package patterns

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/metrics"
)

// ErrCircuitOpen is returned (wrapped) when the breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker open")

// BreakerSettings tunes a Breaker. The breaker trips once at least
// MinRequests calls were seen in Interval and FailureRatio of them failed.
type BreakerSettings struct {
	MaxRequests  uint32 // probes allowed while half-open
	Interval     time.Duration
	Timeout      time.Duration // open period before probing
	MinRequests  uint32
	FailureRatio float64
}

// DefaultBreakerSettings trips after 60% failures over at least 3 requests.
var DefaultBreakerSettings = BreakerSettings{
	MaxRequests:  3,
	Interval:     15 * time.Second,
	Timeout:      30 * time.Second,
	MinRequests:  3,
	FailureRatio: 0.6,
}

// BreakerStatus is a point-in-time view of a Breaker for status endpoints.
type BreakerStatus struct {
	Name                string `json:"name"`
	State               string `json:"state"`
	StateValue          int    `json:"state_value"`
	Requests            uint32 `json:"requests"`
	TotalFailures       uint32 `json:"total_failures"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

// Breaker is a gobreaker circuit breaker that reports to prometheus.
type Breaker struct {
	cb      *gobreaker.CircuitBreaker
	name    string
	service string
}

func NewCircuitBreaker(name, service string, settings BreakerSettings) *Breaker {
	b := &Breaker{name: name, service: service}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:          name,
		MaxRequests:   settings.MaxRequests,
		Interval:      settings.Interval,
		Timeout:       settings.Timeout,
		ReadyToTrip:   settings.readyToTrip,
		OnStateChange: b.onStateChange,
	})
	metrics.CircuitBreakerState.WithLabelValues(service, name).Set(0)
	return b
}

func (s BreakerSettings) readyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < s.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
}

func (b *Breaker) onStateChange(name string, from, to gobreaker.State) {
	metrics.CircuitBreakerState.WithLabelValues(b.service, name).Set(float64(stateValue(to)))

	entry := log.WithFields(log.Fields{
		"circuit": name,
		"service": b.service,
		"from":    from.String(),
		"to":      to.String(),
	})
	if to == gobreaker.StateOpen {
		entry.Warn("Circuit breaker opened")
		return
	}
	entry.Info("Circuit breaker state changed")
}

// Execute runs fn unless the breaker is open. Rejections wrap ErrCircuitOpen.
func (b *Breaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		metrics.CircuitBreakerFailures.WithLabelValues(b.service, b.name).Inc()
		return result, FormatError(b.name, err)
	}
	return result, nil
}

// State is "closed", "open" or "half-open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func (b *Breaker) Status() BreakerStatus {
	state := b.cb.State()
	counts := b.cb.Counts()
	return BreakerStatus{
		Name:                b.name,
		State:               state.String(),
		StateValue:          stateValue(state),
		Requests:            counts.Requests,
		TotalFailures:       counts.TotalFailures,
		ConsecutiveFailures: counts.ConsecutiveFailures,
	}
}

func stateValue(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return -1
	}
}

// FormatError names the circuit in gobreaker's rejection errors and wraps
// them in ErrCircuitOpen. Other errors pass through untouched.
func FormatError(circuitName string, err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return fmt.Errorf("circuit %s is open: %w", circuitName, ErrCircuitOpen)
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("circuit %s is probing, call rejected: %w", circuitName, ErrCircuitOpen)
	default:
		return err
	}
}
