// Package gateway is the remote side of the payment flow: it owns the terminal
// credentials, talks SOAP to the ECR service and answers the coordinator over
// HTTP/JSON.
package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/afs"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/lock"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/metrics"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/models"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/patterns"
)

const (
	msgNotConfigured = "AFS terminal is not configured correctly."
	msgTerminalBusy  = "Terminal is busy with another transaction."
)

// Terminal is one ECR terminal. *afs.Client implements it.
type Terminal interface {
	TID() string
	Sale(ctx context.Context, amount decimal.Decimal, invoice string) (*afs.Result, error)
	EnquiryByRef(ctx context.Context, reference string) (*afs.Result, error)
	RequestCancellation(ctx context.Context) (*afs.Result, error)
}

// Backend maps gateway requests onto terminal calls.
type Backend struct {
	mu        sync.RWMutex
	terminals map[string]Terminal

	bulkhead *patterns.Bulkhead
	locker   *lock.TerminalLock
}

// NewBackend creates a backend. locker may be nil, in which case Sale is
// only guarded by the in-process bulkhead.
func NewBackend(bulkhead *patterns.Bulkhead, locker *lock.TerminalLock) *Backend {
	return &Backend{
		terminals: make(map[string]Terminal),
		bulkhead:  bulkhead,
		locker:    locker,
	}
}

// Register binds a payment method to a terminal.
func (b *Backend) Register(methodID string, terminal Terminal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.terminals[methodID] = terminal
}

// Configure builds a SOAP client for methodID from creds. Invalid credentials
// leave the method unconfigured.
func (b *Backend) Configure(methodID string, creds afs.Credentials, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = patterns.TerminalTimeout
	}
	client, err := afs.NewClient(creds, timeout)
	if err != nil {
		log.WithFields(log.Fields{"method_id": methodID, "error": err}).Error("AFS credentials are not fully configured")
		return err
	}
	b.Register(methodID, client)
	return nil
}

func (b *Backend) terminal(methodID string) (Terminal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.terminals[methodID]
	return t, ok
}

// MakePaymentRequest starts a Sale. An unapproved Sale is reported as
// waiting with the payment id as the enquiry reference.
func (b *Backend) MakePaymentRequest(ctx context.Context, methodID string, req models.MakePaymentRequest) models.MakePaymentResponse {
	logger := log.WithFields(log.Fields{"method_id": methodID, "payment_id": req.PaymentID})
	logger.Info("Make payment request")

	terminal, ok := b.terminal(methodID)
	if !ok {
		return models.MakePaymentResponse{Status: models.GatewayStatusError, Message: msgNotConfigured, LineUUID: req.PaymentID}
	}

	var result *afs.Result
	err := b.bulkhead.Execute(ctx, func() error {
		release, err := b.acquire(ctx, terminal.TID())
		if err != nil {
			return err
		}
		defer release()

		result, err = terminal.Sale(ctx, req.Amount, req.PaymentID)
		return err
	})
	if err != nil {
		metrics.TerminalCalls.WithLabelValues(afs.OpSale, "fault").Inc()
		logger.WithError(err).Error("Sale request failed")
		return models.MakePaymentResponse{Status: models.GatewayStatusError, Message: errorMessage(err), LineUUID: req.PaymentID}
	}

	if result.Approved() {
		metrics.TerminalCalls.WithLabelValues(afs.OpSale, "approved").Inc()
		return models.MakePaymentResponse{Status: models.GatewayStatusSuccess}
	}
	metrics.TerminalCalls.WithLabelValues(afs.OpSale, "pending").Inc()
	return models.MakePaymentResponse{Status: models.GatewayStatusWaiting, AFSTransactionID: req.PaymentID}
}

// FetchPaymentStatus asks the terminal about an earlier Sale. Faults keep
// the caller polling.
func (b *Backend) FetchPaymentStatus(ctx context.Context, methodID string, req models.TransactionStatusRequest) models.FetchStatusResponse {
	logger := log.WithFields(log.Fields{"method_id": methodID, "transaction_id": req.AFSTransactionID})
	logger.Info("Fetch payment status")

	terminal, ok := b.terminal(methodID)
	if !ok {
		return models.FetchStatusResponse{Status: models.GatewayStatusError, Message: msgNotConfigured, LineUUID: req.LineUUID}
	}

	var result *afs.Result
	err := b.bulkhead.Execute(ctx, func() error {
		var err error
		result, err = terminal.EnquiryByRef(ctx, req.AFSTransactionID)
		return err
	})
	if err != nil {
		metrics.TerminalCalls.WithLabelValues(afs.OpEnquiryByRef, "fault").Inc()
		logger.WithError(err).Warn("Enquiry failed")
		return models.FetchStatusResponse{Status: models.GatewayStatusPolling, Message: err.Error(), LineUUID: req.LineUUID}
	}

	if result.Approved() {
		metrics.TerminalCalls.WithLabelValues(afs.OpEnquiryByRef, "approved").Inc()
		return models.FetchStatusResponse{Status: models.GatewayStatusSuccess}
	}
	metrics.TerminalCalls.WithLabelValues(afs.OpEnquiryByRef, "pending").Inc()
	return models.FetchStatusResponse{Status: models.GatewayStatusPolling}
}

// CancelPaymentRequest interrupts the terminal's current operation.
func (b *Backend) CancelPaymentRequest(ctx context.Context, methodID string, req models.TransactionStatusRequest) models.CancelPaymentResponse {
	logger := log.WithFields(log.Fields{"method_id": methodID, "transaction_id": req.AFSTransactionID})
	logger.Info("Cancel payment request")

	terminal, ok := b.terminal(methodID)
	if !ok {
		return models.CancelPaymentResponse{Status: models.GatewayStatusError, Message: msgNotConfigured, LineUUID: req.LineUUID}
	}

	var result *afs.Result
	err := b.bulkhead.Execute(ctx, func() error {
		var err error
		result, err = terminal.RequestCancellation(ctx)
		return err
	})
	if err != nil {
		metrics.TerminalCalls.WithLabelValues(afs.OpRequestCancellation, "fault").Inc()
		logger.WithError(err).Error("Cancellation request failed")
		return models.CancelPaymentResponse{Status: models.GatewayStatusError, Message: err.Error(), LineUUID: req.LineUUID}
	}

	if result.Succeeded() {
		metrics.TerminalCalls.WithLabelValues(afs.OpRequestCancellation, "cancelled").Inc()
		return models.CancelPaymentResponse{Status: models.GatewayStatusCancelled}
	}
	metrics.TerminalCalls.WithLabelValues(afs.OpRequestCancellation, "refused").Inc()
	return models.CancelPaymentResponse{Status: models.GatewayStatusError, Message: result.PosRespText}
}

func (b *Backend) acquire(ctx context.Context, tid string) (func(), error) {
	if b.locker == nil {
		return func() {}, nil
	}
	lease, err := b.locker.Acquire(ctx, tid)
	if err != nil {
		return nil, err
	}
	stop := lease.KeepAlive(ctx)
	return func() {
		stop()
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.WithFields(log.Fields{"tid": tid, "error": err}).Warn("Failed to release terminal lock")
		}
	}, nil
}

func errorMessage(err error) string {
	if errors.Is(err, lock.ErrBusy) || errors.Is(err, patterns.ErrBulkheadFull) {
		return msgTerminalBusy
	}
	return err.Error()
}
