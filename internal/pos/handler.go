package pos

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/apierror"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/models"
)

// Routes mounts the till routes.
func (s *Service) Routes(router gin.IRouter) {
	router.POST("/payments", s.startPayment)
	router.GET("/payments/pending", s.pendingPayment)
	router.GET("/payments/:id", s.getPayment)
	router.POST("/payments/:id/cancel", s.cancelPayment)
	router.GET("/payments/:id/receipt", s.getReceipt)
	router.GET("/orders/:orderRef/payments", s.orderPayments)
}

func (s *Service) startPayment(c *gin.Context) {
	var req models.StartPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.Respond(c, apierror.NewAPIError(apierror.ErrInvalidInput, "Invalid request: "+err.Error(), nil))
		return
	}

	line, err := s.StartPayment(req)
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	c.JSON(http.StatusAccepted, models.StartPaymentResponse{
		PaymentID: line.ID(),
		Status:    line.Status(),
		Message:   "Payment sent to terminal",
	})
}

func (s *Service) getPayment(c *gin.Context) {
	line, err := s.Line(c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, line.View())
}

func (s *Service) cancelPayment(c *gin.Context) {
	line, err := s.CancelPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, line.View())
}

func (s *Service) getReceipt(c *gin.Context) {
	receipt, err := s.Receipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (s *Service) pendingPayment(c *gin.Context) {
	line, err := s.PendingLine(c.Query("order_ref"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, line.View())
}

func (s *Service) orderPayments(c *gin.Context) {
	records, err := s.OrderPayments(c.Request.Context(), c.Param("orderRef"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_ref": c.Param("orderRef"), "payments": records})
}
