package patterns

import (
	"context"
	"time"
)

// WithTimeout derives a context bounded by duration
func WithTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, duration)
}

// TerminalTimeout bounds one SOAP call to the ECR service; a Sale waits for the card.
const TerminalTimeout = 45 * time.Second

// GatewayRPCTimeout bounds one coordinator call to the gateway; it must outlast TerminalTimeout.
const GatewayRPCTimeout = 50 * time.Second

// CancelNotifyTimeout bounds the background cancellation sent to the gateway
const CancelNotifyTimeout = 10 * time.Second

// BulkheadWait is how long a terminal call waits for a free slot
const BulkheadWait = 1 * time.Second
