// Package store persists settled payment records.
package store

import (
	"context"
	"sync"

	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/apierror"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/models"
)

// Repository stores one record per payment id. Save overwrites.
type Repository interface {
	Save(ctx context.Context, record models.PaymentRecord) error
	Get(ctx context.Context, paymentID string) (*models.PaymentRecord, error)
	ListByOrder(ctx context.Context, orderRef string) ([]models.PaymentRecord, error)
}

// Memory is an in-process Repository.
type Memory struct {
	mu      sync.RWMutex
	records map[string]models.PaymentRecord
	order   []string
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]models.PaymentRecord)}
}

func (m *Memory) Save(_ context.Context, record models.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.PaymentID]; !ok {
		m.order = append(m.order, record.PaymentID)
	}
	m.records[record.PaymentID] = record
	return nil
}

func (m *Memory) Get(_ context.Context, paymentID string) (*models.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[paymentID]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "payment record not found", nil)
	}
	return &record, nil
}

func (m *Memory) ListByOrder(_ context.Context, orderRef string) ([]models.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var records []models.PaymentRecord
	for _, id := range m.order {
		if r := m.records[id]; r.OrderRef == orderRef {
			records = append(records, r)
		}
	}
	return records, nil
}
