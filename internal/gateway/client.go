package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/middleware"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/models"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/patterns"
)

// RPCClient calls gateway-service over HTTP/JSON. Every failure to obtain a
// well-formed reply is returned as an error.
type RPCClient struct {
	client    *resty.Client
	circuit   *patterns.Breaker
	baseURL   string
	secretKey string
}

func NewRPCClient(baseURL, secretKey string, timeout time.Duration, service string) *RPCClient {
	if timeout <= 0 {
		timeout = patterns.GatewayRPCTimeout
	}
	return &RPCClient{
		client: resty.New().
			SetTimeout(timeout).
			SetRetryCount(0), // the coordinator owns retries
		circuit:   patterns.NewCircuitBreaker("Gateway", service, patterns.DefaultBreakerSettings),
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
	}
}

// Circuit exposes the breaker for status endpoints.
func (r *RPCClient) Circuit() *patterns.Breaker {
	return r.circuit
}

func (r *RPCClient) MakeRequest(ctx context.Context, methodID string, req models.MakePaymentRequest) (*models.MakePaymentResponse, error) {
	var resp models.MakePaymentResponse
	if err := r.post(ctx, methodID, "make-request", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *RPCClient) FetchStatus(ctx context.Context, methodID string, req models.TransactionStatusRequest) (*models.FetchStatusResponse, error) {
	var resp models.FetchStatusResponse
	if err := r.post(ctx, methodID, "fetch-status", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *RPCClient) CancelRequest(ctx context.Context, methodID string, req models.TransactionStatusRequest) (*models.CancelPaymentResponse, error) {
	var resp models.CancelPaymentResponse
	if err := r.post(ctx, methodID, "cancel-request", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *RPCClient) post(ctx context.Context, methodID, action string, body, out interface{}) error {
	url := fmt.Sprintf("%s/payment-methods/%s/%s", r.baseURL, methodID, action)

	_, err := r.circuit.Execute(func() (interface{}, error) {
		resp, httpErr := r.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetHeader(middleware.SecretKeyHeader, r.secretKey).
			SetBody(body).
			Post(url)

		if httpErr != nil {
			return nil, fmt.Errorf("HTTP error: %w", httpErr)
		}

		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode(), resp.String())
		}

		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		return nil, nil
	})
	return err
}
