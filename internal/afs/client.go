// Package afs talks to the AFS ECR web service that fronts a physical card terminal.
package afs

import (
	"context"
	"fmt"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTimeout      = 45 * time.Second
	DefaultCurrencyCode = "512"
	DefaultPrinterWidth = 40
)

// Credentials identify one terminal to the ECR service.
type Credentials struct {
	ServiceURL   string
	TID          string
	MID          string
	SecureKey    string
	Username     string
	FullName     string
	CurrencyCode string
}

func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ServiceURL, validation.Required),
		validation.Field(&c.TID, validation.Required),
		validation.Field(&c.MID, validation.Required),
		validation.Field(&c.SecureKey, validation.Required),
	)
}

// Client is a SOAP client for a single terminal.
type Client struct {
	creds Credentials
	http  *resty.Client
}

func NewClient(creds Credentials, timeout time.Duration) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid terminal credentials: %w", err)
	}
	if creds.CurrencyCode == "" {
		creds.CurrencyCode = DefaultCurrencyCode
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		creds: creds,
		http: resty.New().
			SetTimeout(timeout).
			SetRetryCount(0),
	}, nil
}

// TID returns the terminal id the client is bound to.
func (c *Client) TID() string {
	return c.creds.TID
}

// Sale asks the terminal to take a card payment. The invoice number doubles
// as the reference used by EnquiryByRef.
func (c *Client) Sale(ctx context.Context, amount decimal.Decimal, invoice string) (*Result, error) {
	return c.call(ctx, envelope{
		Operation: OpSale,
		Config:    c.creds,
		Sale: &saleBody{
			Amount:       amount.StringFixed(3),
			Invoice:      invoice,
			PrinterWidth: DefaultPrinterWidth,
		},
	})
}

// EnquiryByRef returns the state of an earlier Sale.
func (c *Client) EnquiryByRef(ctx context.Context, reference string) (*Result, error) {
	return c.call(ctx, envelope{
		Operation: OpEnquiryByRef,
		Config:    c.creds,
		Reference: reference,
	})
}

// RequestCancellation interrupts whatever the terminal is currently doing.
// It does not void a completed sale.
func (c *Client) RequestCancellation(ctx context.Context) (*Result, error) {
	return c.call(ctx, envelope{
		Operation: OpRequestCancellation,
		Config:    c.creds,
	})
}

func (c *Client) call(ctx context.Context, env envelope) (*Result, error) {
	payload, err := env.render()
	if err != nil {
		return nil, fmt.Errorf("afs %s: render envelope: %w", env.Operation, err)
	}

	logger := logrus.WithFields(logrus.Fields{"operation": env.Operation, "tid": c.creds.TID})
	logger.Debug("Sending ECR request")

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/xml; charset=utf-8").
		SetHeader("SOAPAction", soapActionPrefix+env.Operation).
		SetBody(payload).
		Post(c.creds.ServiceURL)
	if err != nil {
		return nil, fmt.Errorf("afs %s: %w", env.Operation, err)
	}

	if resp.StatusCode() != http.StatusOK {
		logger.WithField("status_code", resp.StatusCode()).Warn("ECR service returned an error status")
		return nil, &HTTPError{Operation: env.Operation, StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	result, err := parseResult(resp.Body(), resultTags[env.Operation])
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"web_response_status": result.WebResponseStatus,
		"pos_resp_text":       result.PosRespText,
	}).Debug("ECR response received")
	return result, nil
}
