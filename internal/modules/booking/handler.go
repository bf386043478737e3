package booking

import (
	"errors"
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

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/bookings", h.CreateBooking)
	rg.GET("/bookings/:id/status", h.GetStatus)
	rg.POST("/bookings/:id/retry-payment", h.RetryPayment)
}

func (h *Handler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	resp, err := h.service.CreateBooking(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid booking request")
		case errors.Is(err, ErrOfferUnavailable):
			response.Error(c, http.StatusConflict, "OFFER_UNAVAILABLE", "The selected flight is no longer available at this price")
		case errors.Is(err, ErrRevalidation):
			response.Error(c, http.StatusConflict, "PRICE_UNCONFIRMED", "The fare could not be confirmed, please search again")
		default:
			response.Error(c, http.StatusBadGateway, "UPSTREAM_ERROR", "Failed to reserve the flight")
		}
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"booking": resp})
}

func (h *Handler) GetStatus(c *gin.Context) {
	resp, err := h.service.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Booking not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load booking")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": resp})
}

func (h *Handler) RetryPayment(c *gin.Context) {
	resp, err := h.service.RetryPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Booking not found")
		case errors.Is(err, ErrNotPayable):
			response.Error(c, http.StatusConflict, "NOT_PAYABLE", "Booking can no longer be paid")
		default:
			response.Error(c, http.StatusBadGateway, "PAYMENT_ERROR", "Failed to open a checkout session")
		}
		return
	}
	response.Success(c, http.StatusOK, gin.H{"payment": resp})
}
