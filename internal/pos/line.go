// Package pos is the host side of the payment flow: payment lines, the
// dialogs shown for them and the HTTP surface a till talks to.
package pos

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/models"
)

// Line is a payment line of an order.
type Line struct {
	mu            sync.Mutex
	id            string
	orderRef      string
	methodID      string
	amount        decimal.Decimal
	status        models.LineStatus
	transactionID string
	notices       []models.Notice
	createdAt     time.Time
}

func NewLine(id, orderRef, methodID string, amount decimal.Decimal) *Line {
	return &Line{
		id:        id,
		orderRef:  orderRef,
		methodID:  methodID,
		amount:    amount,
		status:    models.LineStatusPending,
		createdAt: time.Now(),
	}
}

func (l *Line) ID() string {
	return l.id
}

func (l *Line) OrderRef() string {
	return l.orderRef
}

func (l *Line) Amount() decimal.Decimal {
	return l.amount
}

func (l *Line) SetStatus(status models.LineStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status = status
}

func (l *Line) Status() models.LineStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

func (l *Line) IsDone() bool {
	return l.Status() == models.LineStatusDone
}

// SetTransactionID records the terminal transaction id for receipts.
func (l *Line) SetTransactionID(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transactionID = id
}

func (l *Line) TransactionID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transactionID
}

func (l *Line) addNotice(level, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notices = append(l.notices, models.Notice{Level: level, Message: message, Timestamp: time.Now()})
}

// View is a snapshot of the line for the host UI.
func (l *Line) View() models.PaymentLineView {
	l.mu.Lock()
	defer l.mu.Unlock()
	return models.PaymentLineView{
		ID:               l.id,
		OrderRef:         l.orderRef,
		PaymentMethodID:  l.methodID,
		Amount:           l.amount,
		Status:           l.status,
		AFSTransactionID: l.transactionID,
		Notices:          append([]models.Notice(nil), l.notices...),
		CreatedAt:        l.createdAt,
	}
}

// Record is the persisted form of the line.
func (l *Line) Record() models.PaymentRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return models.PaymentRecord{
		PaymentID:        l.id,
		OrderRef:         l.orderRef,
		PaymentMethodID:  l.methodID,
		Amount:           l.amount,
		Status:           l.status,
		TransactionID:    l.transactionID,
		AFSTransactionID: l.transactionID,
		CreatedAt:        l.createdAt,
	}
}
