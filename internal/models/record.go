package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentRecord is the persisted form of a settled payment line
type PaymentRecord struct {
	PaymentID        string          `json:"payment_id"`
	OrderRef         string          `json:"order_ref"`
	PaymentMethodID  string          `json:"payment_method_id"`
	Amount           decimal.Decimal `json:"amount"`
	Status           LineStatus      `json:"status"`
	TransactionID    string          `json:"transaction_id,omitempty"`
	AFSTransactionID string          `json:"afs_transaction_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// ReceiptData is what the receipt printer needs for a payment
type ReceiptData struct {
	PaymentID        string          `json:"payment_id"`
	OrderRef         string          `json:"order_ref"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           LineStatus      `json:"status"`
	AFSTransactionID string          `json:"afs_transaction_id,omitempty"`
}

// TerminalTransactionID returns the AFS id, falling back to the generic transaction id.
func (r PaymentRecord) TerminalTransactionID() string {
	if r.AFSTransactionID != "" {
		return r.AFSTransactionID
	}
	return r.TransactionID
}

// ForPrinting exports the record for receipt rendering.
func (r PaymentRecord) ForPrinting() ReceiptData {
	return ReceiptData{
		PaymentID:        r.PaymentID,
		OrderRef:         r.OrderRef,
		Amount:           r.Amount,
		Currency:         CurrencyOMR,
		Status:           r.Status,
		AFSTransactionID: r.TerminalTransactionID(),
	}
}

type paymentRecordAlias PaymentRecord

// MarshalJSON always carries afs_transaction_id when any transaction id is known.
func (r PaymentRecord) MarshalJSON() ([]byte, error) {
	alias := paymentRecordAlias(r)
	alias.AFSTransactionID = r.TerminalTransactionID()
	return json.Marshal(alias)
}

// UnmarshalJSON keeps the generic transaction id populated from afs_transaction_id.
func (r *PaymentRecord) UnmarshalJSON(data []byte) error {
	var alias paymentRecordAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*r = PaymentRecord(alias)
	if r.TransactionID == "" {
		r.TransactionID = r.AFSTransactionID
	}
	return nil
}
