// Package coordinator drives one AFS terminal payment at a time through the
// request, poll and cancel calls of a remote transaction gateway, and settles
// the host's payment line to exactly one terminal status.
package coordinator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/metrics"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/models"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/patterns"
)

const (
	// DefaultPollInterval is the delay between two timed status polls.
	DefaultPollInterval = 1000 * time.Millisecond
	// DefaultMaxPolls is the number of timed polls before a payment times out.
	DefaultMaxPolls = 3
)

const (
	msgRefundUnsupported  = "Refunds are not supported by this payment method."
	msgAlreadyInProgress  = "Another transaction is already in progress."
	msgGatewayUnreachable = "Failed to connect to the payment gateway."
	msgGatewayRejected    = "The payment terminal rejected the request."
	msgNoActive           = "No active transaction to check."
	msgNetworkRetry       = "Network error, will retry."
	msgCancelled          = "Cancel payment from terminal device"
	msgTimedOut           = "Payment timed out on the terminal."
	msgUnknownError       = "An unknown error occurred during payment."
)

// Gateway is the remote service that talks to the terminal. A returned error
// is a transport fault; application failures come back as a response whose
// Status is "error".
type Gateway interface {
	MakeRequest(ctx context.Context, methodID string, req models.MakePaymentRequest) (*models.MakePaymentResponse, error)
	FetchStatus(ctx context.Context, methodID string, req models.TransactionStatusRequest) (*models.FetchStatusResponse, error)
	CancelRequest(ctx context.Context, methodID string, req models.TransactionStatusRequest) (*models.CancelPaymentResponse, error)
}

// PaymentLine is the host's payment line. The coordinator only writes its status.
type PaymentLine interface {
	SetStatus(status models.LineStatus)
	Status() models.LineStatus
	IsDone() bool
	Amount() decimal.Decimal
}

// TransactionRecorder is implemented by lines that keep the terminal transaction id
// for receipts and persisted payment records.
type TransactionRecorder interface {
	SetTransactionID(id string)
}

// Notifier surfaces dialogs to the host.
type Notifier interface {
	Error(line PaymentLine, message string)
	Info(line PaymentLine, message string)
}

// State is the coordinator's position in the transaction lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StatePolling    State = "polling"
)

// Options configures a Coordinator. Zero values fall back to the defaults.
type Options struct {
	MethodID     string
	PollInterval time.Duration
	MaxPolls     int

	// NotifyGatewayOnCancel also sends a cancel request to the gateway when a
	// transaction is given up locally. The call runs in the background.
	NotifyGatewayOnCancel bool
	CancelTimeout         time.Duration
	CancelRetries         uint64
	CancelBackOff         func() backoff.BackOff
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.MaxPolls <= 0 {
		o.MaxPolls = DefaultMaxPolls
	}
	if o.CancelTimeout <= 0 {
		o.CancelTimeout = patterns.CancelNotifyTimeout
	}
	if o.CancelRetries == 0 {
		o.CancelRetries = 3
	}
	if o.CancelBackOff == nil {
		o.CancelBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			return b
		}
	}
	return o
}

type transaction struct {
	id         string
	paymentID  string
	inProgress bool
	amount     decimal.Decimal
	currency   string
	orderRef   string
	gen        uint64
}

// Coordinator owns at most one in-flight terminal transaction.
type Coordinator struct {
	gateway  Gateway
	notifier Notifier
	opts     Options

	mu    sync.Mutex
	txn   transaction
	state State
	gen   uint64

	pending sync.WaitGroup
}

// New creates a coordinator for one payment method.
func New(gateway Gateway, notifier Notifier, opts Options) *Coordinator {
	if notifier == nil {
		notifier = logNotifier{}
	}
	return &Coordinator{
		gateway:  gateway,
		notifier: notifier,
		opts:     opts.withDefaults(),
		state:    StateIdle,
	}
}

// Start pays line on the terminal and blocks until the payment settles.
// It returns true only when the terminal approved the payment.
func (c *Coordinator) Start(ctx context.Context, orderRef string, line PaymentLine, correlationID string) (bool, error) {
	logger := logrus.WithFields(logrus.Fields{
		"payment_id": correlationID,
		"order_ref":  orderRef,
		"method_id":  c.opts.MethodID,
	})

	c.mu.Lock()
	if c.txn.inProgress {
		c.mu.Unlock()
		logger.Warn("A transaction is already in progress")
		return false, newError(KindTransactionAlreadyInProgress, msgAlreadyInProgress, nil)
	}

	amount := line.Amount()
	if amount.IsNegative() {
		c.mu.Unlock()
		logger.WithField("amount", amount.String()).Warn("Refund rejected before reaching the terminal")
		err := newError(KindUnsupportedRefund, msgRefundUnsupported, nil)
		c.notifier.Error(line, msgRefundUnsupported)
		line.SetStatus(models.LineStatusRetry)
		observe(err)
		return false, err
	}

	c.gen++
	gen := c.gen
	c.txn = transaction{
		id:         correlationID,
		paymentID:  correlationID,
		inProgress: true,
		amount:     amount,
		currency:   models.CurrencyOMR,
		orderRef:   orderRef,
		gen:        gen,
	}
	c.state = StateRequesting
	req := models.MakePaymentRequest{
		Amount:    c.txn.amount,
		Currency:  c.txn.currency,
		PaymentID: c.txn.id,
		OrderID:   c.txn.orderRef,
	}
	c.mu.Unlock()

	recordTransactionID(line, correlationID)
	line.SetStatus(models.LineStatusWaitingCard)
	metrics.PaymentAmount.Observe(amount.InexactFloat64())

	logger.WithField("amount", amount.String()).Info("Sending payment request to gateway")
	resp, err := c.gateway.MakeRequest(ctx, c.opts.MethodID, req)
	if err != nil {
		metrics.GatewayCalls.WithLabelValues("make_request", "fault").Inc()
		logger.WithError(err).Error("Payment request did not reach the gateway")
		c.reset(gen)
		cerr := newError(KindTransportFault, msgGatewayUnreachable, err)
		c.notifier.Error(line, msgGatewayUnreachable)
		line.SetStatus(models.LineStatusRetry)
		observe(cerr)
		return false, cerr
	}
	metrics.GatewayCalls.WithLabelValues("make_request", resp.Status).Inc()

	switch resp.Status {
	case models.GatewayStatusSuccess:
		logger.Info("Payment approved")
		c.reset(gen)
		line.SetStatus(models.LineStatusDone)
		observe(nil)
		return true, nil

	case models.GatewayStatusWaiting:
		if id, ok := c.adopt(gen, resp.AFSTransactionID); ok {
			recordTransactionID(line, id)
			logger.WithField("transaction_id", id).Info("Transaction started, waiting for customer")
		}

		confirmed, perr := c.waitForConfirmation(ctx, line, gen, logger)
		c.reset(gen)
		if confirmed {
			line.SetStatus(models.LineStatusDone)
			observe(nil)
			return true, nil
		}
		line.SetStatus(models.LineStatusForceDone)
		observe(perr)
		return false, perr

	default:
		message := resp.Message
		if message == "" {
			message = msgGatewayRejected
		}
		logger.WithField("gateway_message", resp.Message).Error("Gateway rejected the payment request")
		c.reset(gen)
		cerr := newError(KindGatewayRejected, message, nil)
		c.notifier.Error(line, message)
		line.SetStatus(models.LineStatusRetry)
		observe(cerr)
		return false, cerr
	}
}

// Cancel gives up the in-flight transaction, if any. A running poll loop
// notices before its next status fetch. The terminal itself is only told when
// Options.NotifyGatewayOnCancel is set, and never waited for.
func (c *Coordinator) Cancel(ctx context.Context, line PaymentLine, correlationID string) {
	c.mu.Lock()
	if !c.txn.inProgress {
		c.mu.Unlock()
		return
	}
	id := c.txn.id
	c.clearLocked()
	c.mu.Unlock()

	c.afterCancel(ctx, line, id, correlationID)
}

// cancelTransaction is Cancel restricted to the transaction of generation gen.
func (c *Coordinator) cancelTransaction(ctx context.Context, line PaymentLine, gen uint64) {
	c.mu.Lock()
	if !c.activeLocked(gen) {
		c.mu.Unlock()
		return
	}
	id := c.txn.id
	c.clearLocked()
	c.mu.Unlock()

	c.afterCancel(ctx, line, id, "")
}

func (c *Coordinator) afterCancel(ctx context.Context, line PaymentLine, id, correlationID string) {
	logrus.WithFields(logrus.Fields{
		"transaction_id": id,
		"payment_id":     correlationID,
		"method_id":      c.opts.MethodID,
	}).Info("Payment cancelled")

	c.notifier.Info(line, msgCancelled)

	if c.opts.NotifyGatewayOnCancel && id != "" {
		c.pending.Add(1)
		go c.notifyGatewayCancel(context.WithoutCancel(ctx), id)
	}
}

func (c *Coordinator) notifyGatewayCancel(ctx context.Context, id string) {
	defer c.pending.Done()

	ctx, cancel := patterns.WithTimeout(ctx, c.opts.CancelTimeout)
	defer cancel()

	logger := logrus.WithFields(logrus.Fields{"transaction_id": id, "method_id": c.opts.MethodID})
	policy := backoff.WithContext(backoff.WithMaxRetries(c.opts.CancelBackOff(), c.opts.CancelRetries), ctx)

	err := backoff.Retry(func() error {
		resp, err := c.gateway.CancelRequest(ctx, c.opts.MethodID, models.TransactionStatusRequest{AFSTransactionID: id})
		if err != nil {
			metrics.GatewayCalls.WithLabelValues("cancel_request", "fault").Inc()
			return err
		}
		metrics.GatewayCalls.WithLabelValues("cancel_request", resp.Status).Inc()
		if resp.Status != models.GatewayStatusCancelled {
			return backoff.Permanent(newError(KindGatewayRejected, resp.Message, nil))
		}
		return nil
	}, policy)
	if err != nil {
		logger.WithError(err).Warn("Terminal did not acknowledge cancellation")
		return
	}
	logger.Info("Terminal acknowledged cancellation")
}

// Wait blocks until background cancel requests have finished.
func (c *Coordinator) Wait() {
	c.pending.Wait()
}

// InProgress reports whether a transaction is in flight.
func (c *Coordinator) InProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txn.inProgress
}

// TransactionID returns the id of the in-flight transaction, or "".
func (c *Coordinator) TransactionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txn.id
}

// PaymentID returns the correlation id the in-flight transaction was started
// with, or "". Unlike TransactionID it never changes during the transaction.
func (c *Coordinator) PaymentID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txn.paymentID
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// adopt switches the transaction to the gateway-assigned id and enters polling.
func (c *Coordinator) adopt(gen uint64, id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.activeLocked(gen) {
		return "", false
	}
	if id != "" {
		c.txn.id = id
	}
	c.state = StatePolling
	return c.txn.id, true
}

// reset ends the transaction of generation gen; a newer transaction is left alone.
func (c *Coordinator) reset(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.txn.gen == gen {
		c.clearLocked()
	}
}

func (c *Coordinator) clearLocked() {
	c.txn = transaction{}
	c.state = StateIdle
}

func (c *Coordinator) activeLocked(gen uint64) bool {
	return c.txn.inProgress && c.txn.gen == gen && c.txn.id != ""
}

func (c *Coordinator) active(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeLocked(gen)
}

func recordTransactionID(line PaymentLine, id string) {
	if rec, ok := line.(TransactionRecorder); ok && id != "" {
		rec.SetTransactionID(id)
	}
}

func observe(err error) {
	outcome := "succeeded"
	if err != nil {
		outcome = strings.ToLower(string(KindOf(err)))
	}
	metrics.TransactionsTotal.WithLabelValues(outcome).Inc()
}

type logNotifier struct{}

func (logNotifier) Error(_ PaymentLine, message string) {
	logrus.WithField("notice", "error").Error(message)
}

func (logNotifier) Info(_ PaymentLine, message string) {
	logrus.WithField("notice", "info").Info(message)
}
