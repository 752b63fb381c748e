package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

// Notice is a dialog the host should show for a payment line
type Notice struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Notice levels
const (
	NoticeLevelError = "error"
	NoticeLevelInfo  = "info"
)

// StartPaymentRequest represents the request to pay an order on the terminal
type StartPaymentRequest struct {
	OrderRef        string          `json:"order_ref"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethodID string          `json:"payment_method_id,omitempty"`
}

// Validate checks the request before a payment line is created
func (r StartPaymentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OrderRef, validation.Required, validation.Length(1, 64)),
		validation.Field(&r.Amount, validation.By(func(value interface{}) error {
			if r.Amount.IsZero() {
				return validation.NewError("validation_amount_zero", "must not be zero")
			}
			return nil
		})),
	)
}

// PaymentLineView represents a payment line as returned to the host UI
type PaymentLineView struct {
	ID               string          `json:"id"`
	OrderRef         string          `json:"order_ref"`
	PaymentMethodID  string          `json:"payment_method_id"`
	Amount           decimal.Decimal `json:"amount"`
	Status           LineStatus      `json:"status"`
	AFSTransactionID string          `json:"afs_transaction_id,omitempty"`
	Notices          []Notice        `json:"notices,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// StartPaymentResponse represents the response after a payment was accepted
type StartPaymentResponse struct {
	PaymentID string     `json:"payment_id"`
	Status    LineStatus `json:"status"`
	Message   string     `json:"message,omitempty"`
}
