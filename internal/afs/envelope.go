package afs

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"text/template"
)

const (
	soapActionPrefix = "http://tempuri.org/IEcrComInterface/"
	dataNamespace    = "http://schemas.datacontract.org/2004/07/"
)

const (
	OpSale                = "Sale"
	OpEnquiryByRef        = "EnquiryByRef"
	OpRequestCancellation = "RequestCancellation"
)

var resultTags = map[string]string{
	OpSale:                "SaleResult",
	OpEnquiryByRef:        "EnquiryResult",
	OpRequestCancellation: "RequestCancellationResult",
}

var envelopeTemplate = template.Must(template.New("envelope").Funcs(template.FuncMap{
	"x": escape,
}).Parse(`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:tem="http://tempuri.org/">
  <soapenv:Header/>
  <soapenv:Body>
    <tem:{{.Operation}}>
      <tem:webReq xmlns:a="{{.Namespace}}">
        <a:Config>
          <a:EcrCurrencyCode>{{x .Config.CurrencyCode}}</a:EcrCurrencyCode>
          <a:EcrTillerFullName>{{x .Config.FullName}}</a:EcrTillerFullName>
          <a:EcrTillerUserName>{{x .Config.Username}}</a:EcrTillerUserName>
          <a:MerchantSecureKey>{{x .Config.SecureKey}}</a:MerchantSecureKey>
          <a:Mid>{{x .Config.MID}}</a:Mid>
          <a:Tid>{{x .Config.TID}}</a:Tid>
        </a:Config>
{{- with .Sale}}
        <a:EcrAmount>{{.Amount}}</a:EcrAmount>
        <a:InvoiceNumber>{{x .Invoice}}</a:InvoiceNumber>
        <a:PanEncrypted></a:PanEncrypted>
        <a:Printer>
          <a:EnablePrintPosReceipt>1</a:EnablePrintPosReceipt>
          <a:EnablePrintReceiptNote>1</a:EnablePrintReceiptNote>
          <a:InvoiceNumber>{{x .Invoice}}</a:InvoiceNumber>
          <a:PrinterWidth>{{.PrinterWidth}}</a:PrinterWidth>
          <a:ReceiptNote></a:ReceiptNote>
          <a:ReferenceNumber>{{x .Invoice}}</a:ReferenceNumber>
        </a:Printer>
        <a:TransactionType>SALE</a:TransactionType>
        <a:AuthCode></a:AuthCode>
{{- end}}
{{- with .Reference}}
        <a:Printer>
          <a:ReferenceNumber>{{x .}}</a:ReferenceNumber>
        </a:Printer>
{{- end}}
      </tem:webReq>
    </tem:{{.Operation}}>
  </soapenv:Body>
</soapenv:Envelope>`))

type envelope struct {
	Operation string
	Namespace string
	Config    Credentials
	Sale      *saleBody
	Reference string
}

type saleBody struct {
	Amount       string
	Invoice      string
	PrinterWidth int
}

func (e envelope) render() ([]byte, error) {
	if e.Namespace == "" {
		e.Namespace = dataNamespace
	}
	var buf bytes.Buffer
	if err := envelopeTemplate.Execute(&buf, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func escape(s string) (string, error) {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Field is one element of an ECR result.
type Field struct {
	Name  string
	Value string
}

var responseTemplate = template.Must(template.New("response").Funcs(template.FuncMap{
	"x": escape,
}).Parse(`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <{{.Operation}}Response xmlns="http://tempuri.org/">
      <{{.Result}} xmlns:a="{{.Namespace}}" xmlns:i="http://www.w3.org/2001/XMLSchema-instance">
{{- range .Fields}}
        <a:{{.Name}}>{{x .Value}}</a:{{.Name}}>
{{- end}}
      </{{.Result}}>
    </{{.Operation}}Response>
  </s:Body>
</s:Envelope>`))

// RenderResponse builds the SOAP reply the ECR service sends for operation.
func RenderResponse(operation string, fields []Field) ([]byte, error) {
	result, ok := resultTags[operation]
	if !ok {
		return nil, fmt.Errorf("afs: unknown operation %q", operation)
	}
	var buf bytes.Buffer
	err := responseTemplate.Execute(&buf, struct {
		Operation string
		Result    string
		Namespace string
		Fields    []Field
	}{operation, result, dataNamespace, fields})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Request is an ECR request as received by a terminal.
type Request struct {
	Operation string
	Fields    map[string]string
}

// ParseRequest reads the operation name and the flattened webReq fields of
// a SOAP request envelope.
func ParseRequest(data []byte) (*Request, error) {
	root, err := parseTree(data)
	if err != nil {
		return nil, err
	}
	body := root.find(func(n *node) bool { return strings.HasSuffix(n.name, "Body") })
	if body == nil || len(body.children) == 0 {
		return nil, fmt.Errorf("%w: request has no body", ErrMalformedResponse)
	}

	op := body.children[0]
	fields := make(map[string]string)
	for _, c := range op.children {
		c.flatten(fields)
	}
	return &Request{Operation: op.name, Fields: fields}, nil
}
