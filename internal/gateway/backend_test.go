package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/afs"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/lock"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/models"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/patterns"
)

type mockTerminal struct {
	mock.Mock
}

func (m *mockTerminal) TID() string {
	return "10001234"
}

func (m *mockTerminal) Sale(ctx context.Context, amount decimal.Decimal, invoice string) (*afs.Result, error) {
	args := m.Called(ctx, amount, invoice)
	res, _ := args.Get(0).(*afs.Result)
	return res, args.Error(1)
}

func (m *mockTerminal) EnquiryByRef(ctx context.Context, reference string) (*afs.Result, error) {
	args := m.Called(ctx, reference)
	res, _ := args.Get(0).(*afs.Result)
	return res, args.Error(1)
}

func (m *mockTerminal) RequestCancellation(ctx context.Context) (*afs.Result, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).(*afs.Result)
	return res, args.Error(1)
}

var (
	approved = &afs.Result{WebResponseStatus: "Success", PosRespText: "APPROVAL"}
	pending  = &afs.Result{WebResponseStatus: "Success", PosRespText: "WAITING FOR CARD"}
	refused  = &afs.Result{WebResponseStatus: "Failed", PosRespText: "NO ACTIVE TRANSACTION"}
)

func newTestBackend(locker *lock.TerminalLock) (*Backend, *mockTerminal) {
	b := NewBackend(patterns.NewBulkhead(2, 50*time.Millisecond, "terminal", "gateway-test"), locker)
	term := new(mockTerminal)
	b.Register("1", term)
	return b, term
}

func saleRequest() models.MakePaymentRequest {
	return models.MakePaymentRequest{
		Amount:    decimal.RequireFromString("12.5"),
		Currency:  models.CurrencyOMR,
		PaymentID: "uuid-1",
		OrderID:   "Order 0001",
	}
}

func TestMakePaymentRequest(t *testing.T) {
	tests := []struct {
		name   string
		result *afs.Result
		err    error
		want   models.MakePaymentResponse
	}{
		{
			name:   "approved",
			result: approved,
			want:   models.MakePaymentResponse{Status: models.GatewayStatusSuccess},
		},
		{
			name:   "not yet approved",
			result: pending,
			want:   models.MakePaymentResponse{Status: models.GatewayStatusWaiting, AFSTransactionID: "uuid-1"},
		},
		{
			name: "terminal fault",
			err:  errors.New("afs Sale: HTTP Error: 500"),
			want: models.MakePaymentResponse{Status: models.GatewayStatusError, Message: "afs Sale: HTTP Error: 500", LineUUID: "uuid-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, term := newTestBackend(nil)
			term.On("Sale", mock.Anything, mock.MatchedBy(func(d decimal.Decimal) bool {
				return d.Equal(decimal.RequireFromString("12.5"))
			}), "uuid-1").Return(tt.result, tt.err).Once()

			got := b.MakePaymentRequest(context.Background(), "1", saleRequest())
			assert.Equal(t, tt.want, got)
			term.AssertExpectations(t)
		})
	}
}

func TestMakePaymentRequest_UnknownMethod(t *testing.T) {
	b, term := newTestBackend(nil)

	got := b.MakePaymentRequest(context.Background(), "99", saleRequest())
	assert.Equal(t, models.GatewayStatusError, got.Status)
	assert.Equal(t, msgNotConfigured, got.Message)
	term.AssertNotCalled(t, "Sale", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfigure_InvalidCredentialsLeaveMethodUnconfigured(t *testing.T) {
	b := NewBackend(patterns.NewBulkhead(1, time.Millisecond, "terminal", "gateway-test"), nil)

	err := b.Configure("1", afs.Credentials{ServiceURL: "http://ecr.local"}, time.Second)
	require.Error(t, err)

	got := b.FetchPaymentStatus(context.Background(), "1", models.TransactionStatusRequest{AFSTransactionID: "T1", LineUUID: "uuid-1"})
	assert.Equal(t, models.FetchStatusResponse{Status: models.GatewayStatusError, Message: msgNotConfigured, LineUUID: "uuid-1"}, got)
}

func TestMakePaymentRequest_TerminalLocked(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	locker := lock.NewTerminalLock(client, time.Minute)

	held, err := locker.Acquire(context.Background(), "10001234")
	require.NoError(t, err)

	b, term := newTestBackend(locker)
	got := b.MakePaymentRequest(context.Background(), "1", saleRequest())
	assert.Equal(t, models.GatewayStatusError, got.Status)
	assert.Equal(t, msgTerminalBusy, got.Message)
	term.AssertNotCalled(t, "Sale", mock.Anything, mock.Anything, mock.Anything)

	require.NoError(t, held.Release(context.Background()))
	term.On("Sale", mock.Anything, mock.Anything, "uuid-1").Return(approved, nil).Once()
	got = b.MakePaymentRequest(context.Background(), "1", saleRequest())
	assert.Equal(t, models.GatewayStatusSuccess, got.Status)

	// the lease is released after the Sale returns
	assert.False(t, mr.Exists("afs:terminal:10001234"))
}

func TestMakePaymentRequest_LeaseOutlivesSlowSale(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b, term := newTestBackend(lock.NewTerminalLock(client, 300*time.Millisecond))

	started := make(chan struct{})
	release := make(chan struct{})
	term.On("Sale", mock.Anything, mock.Anything, "uuid-1").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(approved, nil).Once()

	done := make(chan models.MakePaymentResponse)
	go func() {
		done <- b.MakePaymentRequest(context.Background(), "1", saleRequest())
	}()
	<-started

	mr.FastForward(250 * time.Millisecond)
	assert.Eventually(t, func() bool {
		return mr.TTL("afs:terminal:10001234") > 100*time.Millisecond
	}, time.Second, 10*time.Millisecond)
	mr.FastForward(250 * time.Millisecond)
	assert.True(t, mr.Exists("afs:terminal:10001234"))

	close(release)
	assert.Equal(t, models.GatewayStatusSuccess, (<-done).Status)
	assert.False(t, mr.Exists("afs:terminal:10001234"))
}

func TestMakePaymentRequest_BulkheadFull(t *testing.T) {
	b := NewBackend(patterns.NewBulkhead(1, 10*time.Millisecond, "terminal", "gateway-test"), nil)
	term := new(mockTerminal)
	b.Register("1", term)

	started := make(chan struct{})
	release := make(chan struct{})
	term.On("Sale", mock.Anything, mock.Anything, "uuid-1").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(approved, nil).Once()

	done := make(chan models.MakePaymentResponse)
	go func() {
		done <- b.MakePaymentRequest(context.Background(), "1", saleRequest())
	}()
	<-started

	second := saleRequest()
	second.PaymentID = "uuid-2"
	got := b.MakePaymentRequest(context.Background(), "1", second)
	assert.Equal(t, msgTerminalBusy, got.Message)

	close(release)
	assert.Equal(t, models.GatewayStatusSuccess, (<-done).Status)
}

func TestFetchPaymentStatus(t *testing.T) {
	tests := []struct {
		name   string
		result *afs.Result
		err    error
		want   models.FetchStatusResponse
	}{
		{"approved", approved, nil, models.FetchStatusResponse{Status: models.GatewayStatusSuccess}},
		{"pending", pending, nil, models.FetchStatusResponse{Status: models.GatewayStatusPolling}},
		{"fault keeps polling", nil, errors.New("i/o timeout"), models.FetchStatusResponse{Status: models.GatewayStatusPolling, Message: "i/o timeout", LineUUID: "uuid-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, term := newTestBackend(nil)
			term.On("EnquiryByRef", mock.Anything, "uuid-1").Return(tt.result, tt.err).Once()

			got := b.FetchPaymentStatus(context.Background(), "1", models.TransactionStatusRequest{AFSTransactionID: "uuid-1", LineUUID: "uuid-1"})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCancelPaymentRequest(t *testing.T) {
	tests := []struct {
		name   string
		result *afs.Result
		err    error
		want   models.CancelPaymentResponse
	}{
		{"cancelled", pending, nil, models.CancelPaymentResponse{Status: models.GatewayStatusCancelled}},
		{"refused", refused, nil, models.CancelPaymentResponse{Status: models.GatewayStatusError, Message: "NO ACTIVE TRANSACTION"}},
		{"fault", nil, errors.New("connection reset"), models.CancelPaymentResponse{Status: models.GatewayStatusError, Message: "connection reset", LineUUID: "uuid-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, term := newTestBackend(nil)
			term.On("RequestCancellation", mock.Anything).Return(tt.result, tt.err).Once()

			got := b.CancelPaymentRequest(context.Background(), "1", models.TransactionStatusRequest{AFSTransactionID: "uuid-1", LineUUID: "uuid-1"})
			assert.Equal(t, tt.want, got)
		})
	}
}
