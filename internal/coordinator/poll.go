package coordinator

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/metrics"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/models"
)

// FetchStatus polls the gateway once for the in-flight transaction.
// Transport faults are reported as "polling".
func (c *Coordinator) FetchStatus(ctx context.Context) (*models.FetchStatusResponse, error) {
	return c.fetchStatus(ctx, c.currentID(0))
}

func (c *Coordinator) fetchStatus(ctx context.Context, id string) (*models.FetchStatusResponse, error) {
	if id == "" {
		return nil, newError(KindNoActiveTransaction, msgNoActive, nil)
	}

	logger := logrus.WithFields(logrus.Fields{"transaction_id": id, "method_id": c.opts.MethodID})

	resp, err := c.gateway.FetchStatus(ctx, c.opts.MethodID, models.TransactionStatusRequest{AFSTransactionID: id})
	if err != nil {
		metrics.GatewayCalls.WithLabelValues("fetch_status", "fault").Inc()
		logger.WithError(err).Warn("Status poll failed, will retry")
		return &models.FetchStatusResponse{Status: models.GatewayStatusPolling, Message: msgNetworkRetry}, nil
	}
	metrics.GatewayCalls.WithLabelValues("fetch_status", resp.Status).Inc()
	logger.WithField("status", resp.Status).Debug("Poll response received")

	switch resp.Status {
	case models.GatewayStatusSuccess:
		return &models.FetchStatusResponse{Status: models.GatewayStatusSuccess}, nil
	case models.GatewayStatusPolling:
		return &models.FetchStatusResponse{Status: models.GatewayStatusPolling}, nil
	default:
		return &models.FetchStatusResponse{Status: models.GatewayStatusError, Message: resp.Message}, nil
	}
}

// currentID returns the in-flight transaction id; gen 0 matches any generation.
func (c *Coordinator) currentID(gen uint64) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.txn.inProgress || (gen != 0 && c.txn.gen != gen) {
		return ""
	}
	return c.txn.id
}

// waitForConfirmation runs one unthrottled status fetch followed by at most
// MaxPolls timed fetches, and cancels the transaction on every way out
// except approval.
func (c *Coordinator) waitForConfirmation(ctx context.Context, line PaymentLine, gen uint64, logger *logrus.Entry) (bool, error) {
	initial, err := c.fetchStatus(ctx, c.currentID(gen))
	if err != nil {
		logger.Info("Transaction was cancelled before polling started")
		return false, newError(KindCancelled, msgCancelled, err)
	}

	switch initial.Status {
	case models.GatewayStatusSuccess:
		return true, nil
	case models.GatewayStatusError:
		logger.WithField("gateway_message", initial.Message).Warn("Initial status fetch failed")
		c.cancelTransaction(ctx, line, gen)
		return false, newError(KindGatewayRejected, rejectedMessage(initial.Message), nil)
	}

	status := initial.Status
	attempts := 0
	for status == models.GatewayStatusPolling && attempts < c.opts.MaxPolls && c.active(gen) {
		if err := c.sleep(ctx); err != nil {
			logger.WithError(err).Info("Payment polling interrupted")
			c.cancelTransaction(ctx, line, gen)
			return false, newError(KindCancelled, msgCancelled, err)
		}

		id := c.currentID(gen)
		if id == "" {
			break
		}

		result, err := c.fetchStatus(ctx, id)
		attempts++
		metrics.PollAttempts.Inc()
		if err != nil {
			break
		}
		logger.WithFields(logrus.Fields{"attempt": attempts, "status": result.Status}).Debug("Polled payment status")

		if result.Status == models.GatewayStatusError {
			logger.WithField("gateway_message", result.Message).Warn("Status fetch failed")
			c.cancelTransaction(ctx, line, gen)
			return false, newError(KindGatewayRejected, rejectedMessage(result.Message), nil)
		}
		status = result.Status
	}

	if status == models.GatewayStatusSuccess {
		return true, nil
	}

	if !c.active(gen) {
		logger.Info("Transaction cancelled while polling")
		return false, newError(KindCancelled, msgCancelled, nil)
	}

	if status == models.GatewayStatusPolling {
		logger.WithField("attempts", attempts).Warn("Payment timed out")
		c.cancelTransaction(ctx, line, gen)
		return false, newError(KindTimeout, msgTimedOut, nil)
	}

	c.notifier.Error(line, msgUnknownError)
	c.cancelTransaction(ctx, line, gen)
	return false, newError(KindGatewayRejected, msgUnknownError, nil)
}

func (c *Coordinator) sleep(ctx context.Context) error {
	timer := time.NewTimer(c.opts.PollInterval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func rejectedMessage(message string) string {
	if message == "" {
		return msgGatewayRejected
	}
	return message
}
