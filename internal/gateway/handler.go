package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/apierror"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/config"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/middleware"
	"github.com/muhamedroshan/AFS-Ahli-Bank-POS-integration-Odoo/internal/models"
)

// Handler serves the gateway RPC routes.
type Handler struct {
	backend *Backend
}

func NewHandler(backend *Backend) *Handler {
	return &Handler{backend: backend}
}

// Routes mounts the RPC routes under /payment-methods/:methodId.
func (h *Handler) Routes(router gin.IRouter, secretKey string, rateLimit config.RateLimitConfig) {
	group := router.Group("/payment-methods/:methodId",
		middleware.RateLimit(rateLimit),
		middleware.SecretKeyAuth(secretKey),
	)
	group.POST("/make-request", h.makeRequest)
	group.POST("/fetch-status", h.fetchStatus)
	group.POST("/cancel-request", h.cancelRequest)
}

func (h *Handler) makeRequest(c *gin.Context) {
	var req models.MakePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.Respond(c, apierror.NewAPIError(apierror.ErrInvalidInput, "Invalid request: "+err.Error(), nil))
		return
	}
	c.JSON(http.StatusOK, h.backend.MakePaymentRequest(c.Request.Context(), c.Param("methodId"), req))
}

func (h *Handler) fetchStatus(c *gin.Context) {
	var req models.TransactionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.Respond(c, apierror.NewAPIError(apierror.ErrInvalidInput, "Invalid request: "+err.Error(), nil))
		return
	}
	c.JSON(http.StatusOK, h.backend.FetchPaymentStatus(c.Request.Context(), c.Param("methodId"), req))
}

func (h *Handler) cancelRequest(c *gin.Context) {
	var req models.TransactionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.Respond(c, apierror.NewAPIError(apierror.ErrInvalidInput, "Invalid request: "+err.Error(), nil))
		return
	}
	c.JSON(http.StatusOK, h.backend.CancelPaymentRequest(c.Request.Context(), c.Param("methodId"), req))
}
