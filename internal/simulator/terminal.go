// Package simulator is a stand-in for the AFS ECR web service and the card
// terminal behind it, for development and end-to-end tests.
package simulator

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/afs"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/models"
)

const (
	respSuccess = "Success"
	respFailed  = "Failed"
)

// DefaultHoldTimeout is how long a pending sale occupies the terminal.
const DefaultHoldTimeout = 60 * time.Second

// Options configures a simulated terminal.
type Options struct {
	// ApproveAfter is the number of enquiries before a pending sale is
	// approved. Zero approves the Sale call itself.
	ApproveAfter int
	// HoldTimeout is how long the terminal waits for a card before it drops
	// a pending sale and accepts a new one.
	HoldTimeout time.Duration
	// SecureKey, when set, must match the MerchantSecureKey of every request.
	SecureKey   string
	FailureRate float64
	SlowMin     time.Duration
	SlowMax     time.Duration
	Seed        int64
	Service     string
}

// Terminal answers Sale, EnquiryByRef and RequestCancellation. It holds at
// most one pending sale at a time, like the physical device.
type Terminal struct {
	mu      sync.Mutex
	sales   map[string]*models.SimulatedSale
	current string
	opts    Options
	faker   *gofakeit.Faker
	chaos   *chaos
	now     func() time.Time
}

func NewTerminal(opts Options) *Terminal {
	if opts.FailureRate <= 0 {
		opts.FailureRate = 0.3
	}
	if opts.SlowMin <= 0 {
		opts.SlowMin = 2 * time.Second
	}
	if opts.SlowMax <= opts.SlowMin {
		opts.SlowMax = opts.SlowMin + 3*time.Second
	}
	if opts.HoldTimeout <= 0 {
		opts.HoldTimeout = DefaultHoldTimeout
	}
	if opts.Service == "" {
		opts.Service = "terminal-simulator"
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Terminal{
		sales: make(map[string]*models.SimulatedSale),
		opts:  opts,
		faker: gofakeit.New(seed),
		now:   time.Now,
		chaos: &chaos{
			failureRate: opts.FailureRate,
			slowMin:     opts.SlowMin,
			slowMax:     opts.SlowMax,
			service:     opts.Service,
			faker:       gofakeit.New(seed + 1),
		},
	}
}

// Routes mounts the SOAP endpoint at soapPath plus status and chaos routes.
func (t *Terminal) Routes(router gin.IRouter, soapPath string) {
	router.POST(soapPath, t.serveSOAP)

	router.GET("/terminal/status", t.getStatus)
	router.GET("/terminal/sales/:invoice", t.getSale)

	router.POST("/chaos/terminal/enable", t.enableChaos)
	router.POST("/chaos/terminal/disable", t.disableChaos)
	router.POST("/chaos/terminal/slow", t.enableSlowMode)
	router.POST("/chaos/terminal/slow/disable", t.disableSlowMode)
}

func (t *Terminal) serveSOAP(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	req, err := afs.ParseRequest(data)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	logger := log.WithFields(log.Fields{"operation": req.Operation, "tid": req.Fields["Tid"]})

	if err := t.chaos.simulate(); err != nil {
		logger.Warn("Chaos: Simulated terminal failure")
		c.String(http.StatusServiceUnavailable, "Service temporarily unavailable: "+err.Error())
		return
	}

	var fields []afs.Field
	switch {
	case !t.authorized(req):
		fields = failure("INVALID MERCHANT KEY")
	case req.Operation == afs.OpSale:
		fields = t.sale(req)
	case req.Operation == afs.OpEnquiryByRef:
		fields = t.enquiry(req)
	case req.Operation == afs.OpRequestCancellation:
		fields = t.cancel()
	default:
		logger.Warn("Unknown ECR operation")
		c.String(http.StatusInternalServerError, "unknown operation "+req.Operation)
		return
	}

	body, err := afs.RenderResponse(req.Operation, fields)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	logger.WithField("pos_resp_text", fields[1].Value).Info("ECR request handled")
	c.Data(http.StatusOK, "text/xml; charset=utf-8", body)
}

func (t *Terminal) authorized(req *afs.Request) bool {
	return t.opts.SecureKey == "" || req.Fields["MerchantSecureKey"] == t.opts.SecureKey
}

func (t *Terminal) sale(req *afs.Request) []afs.Field {
	invoice := req.Fields["InvoiceNumber"]
	amount, err := decimal.NewFromString(req.Fields["EcrAmount"])
	if err != nil || invoice == "" {
		return failure("INVALID REQUEST")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.expireLocked()
	if t.current != "" {
		return failure("TERMINAL BUSY")
	}

	sale := &models.SimulatedSale{
		InvoiceNumber: invoice,
		Amount:        amount,
		State:         models.SaleStatePending,
		Timestamp:     t.now(),
	}
	t.sales[invoice] = sale

	if t.opts.ApproveAfter == 0 {
		t.settle(sale)
		return t.saleFields(sale)
	}
	t.current = invoice
	return t.saleFields(sale)
}

func (t *Terminal) enquiry(req *afs.Request) []afs.Field {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.expireLocked()
	sale, ok := t.sales[req.Fields["ReferenceNumber"]]
	if !ok {
		return failure("TRANSACTION NOT FOUND")
	}

	if sale.State == models.SaleStatePending {
		sale.Enquiries++
		if sale.Enquiries >= t.opts.ApproveAfter {
			t.settle(sale)
		}
	}
	return t.saleFields(sale)
}

func (t *Terminal) cancel() []afs.Field {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.expireLocked()
	sale, ok := t.sales[t.current]
	if !ok || sale.State != models.SaleStatePending {
		return failure("NO ACTIVE TRANSACTION")
	}
	sale.State = models.SaleStateCancelled
	t.current = ""
	return []afs.Field{
		{Name: "WebResponseStatus", Value: respSuccess},
		{Name: "PosRespText", Value: "CANCELLED"},
		{Name: "InvoiceNumber", Value: sale.InvoiceNumber},
	}
}

// expireLocked drops the pending sale once it has been held for HoldTimeout.
func (t *Terminal) expireLocked() {
	sale, ok := t.sales[t.current]
	if !ok || sale.State != models.SaleStatePending {
		return
	}
	if t.now().Sub(sale.Timestamp) < t.opts.HoldTimeout {
		return
	}
	sale.State = models.SaleStateExpired
	t.current = ""
	log.WithFields(log.Fields{"invoice": sale.InvoiceNumber, "enquiries": sale.Enquiries}).Info("Pending sale expired on the terminal")
}

// settle approves sale unless its amount ends in 999 fils, which the
// simulator declines.
func (t *Terminal) settle(sale *models.SimulatedSale) {
	if strings.HasSuffix(sale.Amount.StringFixed(3), "999") {
		sale.State = models.SaleStateDeclined
	} else {
		sale.State = models.SaleStateApproved
		sale.AuthCode = strings.ToUpper(t.faker.LetterN(2)) + t.faker.DigitN(4)
		sale.RRN = t.faker.DigitN(12)
		sale.MaskedPAN = maskPAN(t.faker.CreditCardNumber(nil))
	}
	if t.current == sale.InvoiceNumber {
		t.current = ""
	}
}

func (t *Terminal) saleFields(sale *models.SimulatedSale) []afs.Field {
	var text, code string
	switch sale.State {
	case models.SaleStateApproved:
		text, code = "APPROVAL "+sale.AuthCode, "00"
	case models.SaleStateDeclined:
		text, code = "DECLINED", "05"
	case models.SaleStateCancelled:
		text, code = "CANCELLED", "17"
	case models.SaleStateExpired:
		text, code = "TRANSACTION TIMEOUT", "68"
	default:
		text, code = "WAITING FOR CARD", ""
	}

	return []afs.Field{
		{Name: "WebResponseStatus", Value: respSuccess},
		{Name: "PosRespText", Value: text},
		{Name: "PosRespCode", Value: code},
		{Name: "AuthCode", Value: sale.AuthCode},
		{Name: "RRN", Value: sale.RRN},
		{Name: "CardNumber", Value: sale.MaskedPAN},
		{Name: "InvoiceNumber", Value: sale.InvoiceNumber},
		{Name: "EcrAmount", Value: sale.Amount.StringFixed(3)},
	}
}

func failure(text string) []afs.Field {
	return []afs.Field{
		{Name: "WebResponseStatus", Value: respFailed},
		{Name: "PosRespText", Value: text},
	}
}

func maskPAN(pan string) string {
	if len(pan) < 10 {
		return pan
	}
	return pan[:6] + strings.Repeat("*", len(pan)-10) + pan[len(pan)-4:]
}

// Sale returns a copy of the sale stored under invoice.
func (t *Terminal) Sale(invoice string) (models.SimulatedSale, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sale, ok := t.sales[invoice]
	if !ok {
		return models.SimulatedSale{}, false
	}
	return *sale, true
}

func (t *Terminal) getSale(c *gin.Context) {
	sale, ok := t.Sale(c.Param("invoice"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Sale not found", "invoice": c.Param("invoice")})
		return
	}
	c.JSON(http.StatusOK, sale)
}

func (t *Terminal) getStatus(c *gin.Context) {
	enabled, slow := t.chaos.state()
	t.mu.Lock()
	t.expireLocked()
	current := t.current
	t.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"service":         t.opts.Service,
		"status":          "healthy",
		"current_invoice": current,
		"chaos_enabled":   enabled,
		"chaos_slow_mode": slow,
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}

func (t *Terminal) enableChaos(c *gin.Context) {
	t.chaos.setEnabled(true)
	log.Info("Chaos mode ENABLED for terminal simulator")
	c.JSON(http.StatusOK, gin.H{"message": "Chaos mode enabled"})
}

func (t *Terminal) disableChaos(c *gin.Context) {
	t.chaos.setEnabled(false)
	t.chaos.setSlowMode(false)
	log.Info("Chaos mode DISABLED for terminal simulator")
	c.JSON(http.StatusOK, gin.H{"message": "Chaos mode disabled"})
}

func (t *Terminal) enableSlowMode(c *gin.Context) {
	t.chaos.setSlowMode(true)
	log.Info("Slow mode ENABLED for terminal simulator")
	c.JSON(http.StatusOK, gin.H{"message": "Slow mode enabled"})
}

func (t *Terminal) disableSlowMode(c *gin.Context) {
	t.chaos.setSlowMode(false)
	log.Info("Slow mode DISABLED for terminal simulator")
	c.JSON(http.StatusOK, gin.H{"message": "Slow mode disabled"})
}
