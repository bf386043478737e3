package webhook

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"flightdesk/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/webhooks/monei", h.HandleMonei)
}

// HandleMonei receives gateway callbacks. The raw body must be captured as
// delivered because the signature covers the exact bytes.
func (h *Handler) HandleMonei(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", "Failed to read request body")
		return
	}

	err = h.service.Process(c.Request.Context(), rawBody, c.GetHeader("MONEI-Signature"))
	if err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			response.Error(c, http.StatusForbidden, "INVALID_SIGNATURE", "Signature verification failed")
			return
		}
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process event")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"received": true})
}
