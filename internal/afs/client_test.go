package afs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serviceURL = "https://ecr.example.com/EcrComInterface.svc"

func testCredentials() Credentials {
	return Credentials{
		ServiceURL: serviceURL,
		TID:        "10001234",
		MID:        "900000001",
		SecureKey:  "s3cr3t",
		Username:   "pos",
		FullName:   "Shop <One>",
	}
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(testCredentials(), 0)
	require.NoError(t, err)
	httpmock.ActivateNonDefault(c.http.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

const saleApproved = `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <SaleResponse xmlns="http://tempuri.org/">
      <SaleResult xmlns:a="http://schemas.datacontract.org/2004/07/">
        <a:AuthCode>A1B2C3</a:AuthCode>
        <a:CardNumber>412345******1234</a:CardNumber>
        <a:PosRespCode>00</a:PosRespCode>
        <a:PosRespText>APPROVAL</a:PosRespText>
        <a:RRN>123456789012</a:RRN>
        <a:WebResponseStatus>Success</a:WebResponseStatus>
      </SaleResult>
    </SaleResponse>
  </s:Body>
</s:Envelope>`

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(Credentials{ServiceURL: serviceURL}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid terminal credentials")
}

func TestSale_SendsEnvelopeAndParsesResult(t *testing.T) {
	c := newTestClient(t)

	var body, action string
	httpmock.RegisterResponder(http.MethodPost, serviceURL,
		func(req *http.Request) (*http.Response, error) {
			data, _ := io.ReadAll(req.Body)
			body = string(data)
			action = req.Header.Get("SOAPAction")
			return httpmock.NewStringResponse(http.StatusOK, saleApproved), nil
		})

	result, err := c.Sale(context.Background(), decimal.RequireFromString("12.5"), "uuid-1")
	require.NoError(t, err)

	assert.Equal(t, "http://tempuri.org/IEcrComInterface/Sale", action)
	assert.Contains(t, body, "<tem:Sale>")
	assert.Contains(t, body, "<a:EcrAmount>12.500</a:EcrAmount>")
	assert.Contains(t, body, "<a:InvoiceNumber>uuid-1</a:InvoiceNumber>")
	assert.Contains(t, body, "<a:ReferenceNumber>uuid-1</a:ReferenceNumber>")
	assert.Contains(t, body, "<a:PrinterWidth>40</a:PrinterWidth>")
	assert.Contains(t, body, "<a:TransactionType>SALE</a:TransactionType>")
	assert.Contains(t, body, "<a:EcrCurrencyCode>512</a:EcrCurrencyCode>")
	assert.Contains(t, body, "<a:Tid>10001234</a:Tid>")
	assert.Contains(t, body, "<a:EcrTillerFullName>Shop &lt;One&gt;</a:EcrTillerFullName>")

	assert.True(t, result.Approved())
	assert.Equal(t, "A1B2C3", result.AuthCode)
	assert.Equal(t, "123456789012", result.RRN)
	assert.Equal(t, "412345******1234", result.CardNumber)
	assert.Equal(t, "00", result.PosRespCode)
}

func TestEnquiryByRef_SendsReference(t *testing.T) {
	c := newTestClient(t)

	var body string
	httpmock.RegisterResponder(http.MethodPost, serviceURL,
		func(req *http.Request) (*http.Response, error) {
			data, _ := io.ReadAll(req.Body)
			body = string(data)
			return httpmock.NewStringResponse(http.StatusOK, `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>
<EnquiryByRefResponse xmlns="http://tempuri.org/"><EnquiryResult>
<PosRespText>PENDING</PosRespText><WebResponseStatus>Success</WebResponseStatus>
</EnquiryResult></EnquiryByRefResponse></s:Body></s:Envelope>`), nil
		})

	result, err := c.EnquiryByRef(context.Background(), "T1")
	require.NoError(t, err)
	assert.Contains(t, body, "<tem:EnquiryByRef>")
	assert.Contains(t, body, "<a:ReferenceNumber>T1</a:ReferenceNumber>")
	assert.NotContains(t, body, "EcrAmount")
	assert.False(t, result.Approved())
	assert.True(t, result.Succeeded())
}

func TestRequestCancellation_FallsBackToBodyChild(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, serviceURL,
		httpmock.NewStringResponder(http.StatusOK, `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>
<CancelResponse><CancelOutcome><WebResponseStatus>Success</WebResponseStatus></CancelOutcome></CancelResponse>
</s:Body></s:Envelope>`))

	result, err := c.RequestCancellation(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
}

func TestCall_HTTPError(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, serviceURL, httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	_, err := c.Sale(context.Background(), decimal.NewFromInt(1), "uuid-1")
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	assert.Equal(t, "boom", httpErr.Body)
	assert.Equal(t, "afs Sale: HTTP Error: 500", err.Error())
}

func TestCall_MalformedBody(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, serviceURL, httpmock.NewStringResponder(http.StatusOK, "<not-xml"))

	_, err := c.EnquiryByRef(context.Background(), "T1")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestCall_TransportError(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, serviceURL, httpmock.NewErrorResponder(errors.New("dial tcp: refused")))

	_, err := c.RequestCancellation(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial tcp: refused")
}

func TestParseResult_NoBody(t *testing.T) {
	_, err := parseResult([]byte(`<root><child/></root>`), "SaleResult")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestResult_Approved(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		text     string
		approved bool
	}{
		{"approved", "Success", "APPROVAL 000123", true},
		{"declined", "Success", "DECLINED", false},
		{"service failure", "Failed", "APPROVAL", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Result{WebResponseStatus: tt.status, PosRespText: tt.text}
			assert.Equal(t, tt.approved, r.Approved())
		})
	}
}

func TestRenderResponse_RoundTripsThroughParser(t *testing.T) {
	data, err := RenderResponse(OpEnquiryByRef, []Field{
		{Name: "PosRespText", Value: "APPROVAL"},
		{Name: "WebResponseStatus", Value: "Success"},
	})
	require.NoError(t, err)

	result, err := parseResult(data, "EnquiryResult")
	require.NoError(t, err)
	assert.True(t, result.Approved())

	_, err = RenderResponse("Refund", nil)
	assert.Error(t, err)
}

func TestParseRequest(t *testing.T) {
	payload, err := envelope{
		Operation: OpSale,
		Config:    testCredentials(),
		Sale:      &saleBody{Amount: "5.000", Invoice: "inv-9", PrinterWidth: DefaultPrinterWidth},
	}.render()
	require.NoError(t, err)

	req, err := ParseRequest(payload)
	require.NoError(t, err)
	assert.Equal(t, OpSale, req.Operation)
	assert.Equal(t, "5.000", req.Fields["EcrAmount"])
	assert.Equal(t, "inv-9", req.Fields["InvoiceNumber"])
	assert.Equal(t, "10001234", req.Fields["Tid"])
	assert.Equal(t, "s3cr3t", req.Fields["MerchantSecureKey"])
}
