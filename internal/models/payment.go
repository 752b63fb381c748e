package models

import "github.com/shopspring/decimal"

// LineStatus is the payment status of a payment line as seen by the host
type LineStatus string

// LineStatus constants
const (
	LineStatusWaitingCard LineStatus = "waitingCard"
	LineStatusPending     LineStatus = "pending"
	LineStatusRetry       LineStatus = "retry"
	LineStatusDone        LineStatus = "done"
	LineStatusForceDone   LineStatus = "force_done"
)

// Settled reports whether the line reached a terminal status
func (s LineStatus) Settled() bool {
	return s == LineStatusDone || s == LineStatusForceDone
}

// Gateway status discriminators
const (
	GatewayStatusSuccess   = "success"
	GatewayStatusWaiting   = "waiting"
	GatewayStatusPolling   = "polling"
	GatewayStatusError     = "error"
	GatewayStatusCancelled = "cancelled"
)

// CurrencyOMR is the only currency the AFS terminal accepts
const CurrencyOMR = "OMR"

// MakePaymentRequest represents a request to start a sale on the terminal
type MakePaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency_iso"`
	PaymentID string          `json:"payment_id"`
	OrderID   string          `json:"order_id"`
}

// MakePaymentResponse represents the gateway reply to a payment request
type MakePaymentResponse struct {
	Status           string `json:"status"`
	AFSTransactionID string `json:"afs_transaction_id,omitempty"`
	Message          string `json:"message,omitempty"`
	LineUUID         string `json:"line_uuid,omitempty"`
}

// TransactionStatusRequest addresses an outstanding terminal transaction
type TransactionStatusRequest struct {
	AFSTransactionID string `json:"afs_transaction_id"`
	LineUUID         string `json:"line_uuid,omitempty"`
}

// FetchStatusResponse represents the gateway reply to a status poll
type FetchStatusResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	LineUUID string `json:"line_uuid,omitempty"`
}

// CancelPaymentResponse represents the gateway reply to a cancellation
type CancelPaymentResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	LineUUID string `json:"line_uuid,omitempty"`
}
