package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleState is the state of a sale held by the terminal simulator
type SaleState string

// SaleState constants
const (
	SaleStatePending   SaleState = "pending"
	SaleStateApproved  SaleState = "approved"
	SaleStateDeclined  SaleState = "declined"
	SaleStateCancelled SaleState = "cancelled"
	SaleStateExpired   SaleState = "expired"
)

// SimulatedSale represents a sale the simulated terminal is processing
type SimulatedSale struct {
	InvoiceNumber string          `json:"invoice_number"`
	Amount        decimal.Decimal `json:"amount"`
	State         SaleState       `json:"state"`
	Enquiries     int             `json:"enquiries"`
	AuthCode      string          `json:"auth_code,omitempty"`
	RRN           string          `json:"rrn,omitempty"`
	MaskedPAN     string          `json:"masked_pan,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}
