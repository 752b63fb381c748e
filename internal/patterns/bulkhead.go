package patterns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/metrics"
)

// ErrBulkheadFull is returned (wrapped) when no slot frees up in time
var ErrBulkheadFull = errors.New("bulkhead full")

// Bulkhead limits concurrent calls to one downstream resource
type Bulkhead struct {
	semaphore chan struct{}
	wait      time.Duration
	name      string
	service   string
}

// NewBulkhead creates a new bulkhead with specified capacity
func NewBulkhead(size int, wait time.Duration, name, service string) *Bulkhead {
	if size < 1 {
		size = 1
	}
	return &Bulkhead{
		semaphore: make(chan struct{}, size),
		wait:      wait,
		name:      name,
		service:   service,
	}
}

// Execute runs fn within the bulkhead's resource limits
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	timer := time.NewTimer(b.wait)
	defer timer.Stop()

	select {
	case b.semaphore <- struct{}{}:
		metrics.BulkheadActiveRequests.WithLabelValues(b.service, b.name).Inc()

		defer func() {
			<-b.semaphore
			metrics.BulkheadActiveRequests.WithLabelValues(b.service, b.name).Dec()
		}()

		return fn()

	case <-timer.C:
		metrics.BulkheadRejectedRequests.WithLabelValues(b.service, b.name).Inc()
		return fmt.Errorf("bulkhead %s: timeout acquiring resource: %w", b.name, ErrBulkheadFull)

	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bulkhead) GetName() string {
	return b.name
}

// InUse reports how many slots are taken out of Capacity.
func (b *Bulkhead) InUse() int {
	return len(b.semaphore)
}

func (b *Bulkhead) Capacity() int {
	return cap(b.semaphore)
}
