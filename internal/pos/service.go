package pos

import (
	"context"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/apierror"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/coordinator"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/models"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/store"
)

// Service owns the payment lines of a till and one coordinator per payment method.
type Service struct {
	mu           sync.RWMutex
	lines        map[string]*Line
	order        []string
	coordinators map[string]*coordinator.Coordinator

	defaultMethod string
	records       store.Repository

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(records store.Repository, defaultMethod string) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		lines:         make(map[string]*Line),
		coordinators:  make(map[string]*coordinator.Coordinator),
		defaultMethod: defaultMethod,
		records:       records,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// AddMethod registers the coordinator that drives methodID's terminal.
func (s *Service) AddMethod(methodID string, c *coordinator.Coordinator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coordinators[methodID] = c
}

func (s *Service) coordinator(methodID string) (*coordinator.Coordinator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.coordinators[methodID]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "unknown payment method "+methodID, nil)
	}
	return c, nil
}

// StartPayment creates a payment line and starts paying it on the terminal
// in the background.
func (s *Service) StartPayment(req models.StartPaymentRequest) (*Line, error) {
	if err := req.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), nil)
	}
	if req.PaymentMethodID == "" {
		req.PaymentMethodID = s.defaultMethod
	}

	coord, err := s.coordinator(req.PaymentMethodID)
	if err != nil {
		return nil, err
	}
	if coord.InProgress() {
		return nil, apierror.NewAPIError(apierror.ErrConflict, "Another transaction is already in progress.", nil)
	}

	line := NewLine(uuid.New().String(), req.OrderRef, req.PaymentMethodID, req.Amount)
	s.mu.Lock()
	s.lines[line.ID()] = line
	s.order = append(s.order, line.ID())
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(coord, line)

	return line, nil
}

func (s *Service) run(coord *coordinator.Coordinator, line *Line) {
	defer s.wg.Done()

	logger := log.WithFields(log.Fields{"payment_id": line.ID(), "order_ref": line.OrderRef()})

	ok, err := coord.Start(s.ctx, line.OrderRef(), line, line.ID())
	switch {
	case ok:
		logger.Info("Payment line settled")
	case coordinator.IsKind(err, coordinator.KindTransactionAlreadyInProgress):
		// lost the race with another line; the running transaction is untouched
		notify(line, models.NoticeLevelError, "Another transaction is already in progress.")
		line.SetStatus(models.LineStatusRetry)
	default:
		logger.WithError(err).Warn("Payment line not paid")
	}

	if err := s.records.Save(context.Background(), line.Record()); err != nil {
		logger.WithError(err).Error("Failed to save payment record")
	}
}

// Line returns a payment line by id.
func (s *Service) Line(id string) (*Line, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	line, ok := s.lines[id]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "payment not found", nil)
	}
	return line, nil
}

// CancelPayment gives up the line's in-flight transaction.
func (s *Service) CancelPayment(ctx context.Context, id string) (*Line, error) {
	line, err := s.Line(id)
	if err != nil {
		return nil, err
	}
	coord, err := s.coordinator(line.View().PaymentMethodID)
	if err != nil {
		return nil, err
	}
	if !coord.InProgress() || coord.PaymentID() != id {
		return nil, apierror.NewAPIError(apierror.ErrConflict, "payment is not in progress", nil)
	}

	coord.Cancel(ctx, line, id)
	return line, nil
}

// PendingLine returns the oldest line that is neither done nor still
// pending, optionally restricted to one order.
func (s *Service) PendingLine(orderRef string) (*Line, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		line := s.lines[id]
		if orderRef != "" && line.OrderRef() != orderRef {
			continue
		}
		if !line.IsDone() && line.Status() != models.LineStatusPending {
			return line, nil
		}
	}
	return nil, apierror.NewAPIError(apierror.ErrNotFound, "no pending payment line", nil)
}

// Receipt returns the printable data of a settled payment.
func (s *Service) Receipt(ctx context.Context, id string) (models.ReceiptData, error) {
	record, err := s.records.Get(ctx, id)
	if err != nil {
		return models.ReceiptData{}, err
	}
	return record.ForPrinting(), nil
}

// OrderPayments lists the saved records of an order's payments.
func (s *Service) OrderPayments(ctx context.Context, orderRef string) ([]models.PaymentRecord, error) {
	if orderRef == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "order_ref is required", nil)
	}
	return s.records.ListByOrder(ctx, orderRef)
}

// Wait blocks until every background payment has settled.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Shutdown cancels in-flight payments and waits for them to settle.
func (s *Service) Shutdown() {
	s.cancel()
	s.wg.Wait()
}
