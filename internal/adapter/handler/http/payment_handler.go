package http

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	domainErrors "github.com/clearsats/paymentd/internal/domain/errors"
	"github.com/clearsats/paymentd/internal/middleware/auth"
	"github.com/clearsats/paymentd/internal/usecase"
)

// PaymentHandler handles payment-related HTTP requests
type PaymentHandler struct {
	payments *usecase.PaymentService
	logger   *zap.Logger
}

func NewPaymentHandler(payments *usecase.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		logger:   logger,
	}
}

// InitiatePaymentRequest is the body of POST /api/v1/payments
type InitiatePaymentRequest struct {
	PackageID string `json:"package_id" validate:"required"`
}

// InitiatePayment handles POST /api/v1/payments
func (h *PaymentHandler) InitiatePayment(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err // RequireAuth already returns the JSON error response
	}

	var req InitiatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "package_id is required",
		})
	}

	result, err := h.payments.Initiate(c.Request().Context(), user.UserID, req.PackageID)
	if err != nil {
		if err == domainErrors.ErrUnknownPackage {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "Unknown credit package",
			})
		}
		h.logger.Error("Failed to initiate payment",
			zap.String("user_id", user.UserID.String()),
			zap.String("package_id", req.PackageID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to initiate payment",
		})
	}

	return c.JSON(http.StatusCreated, result)
}

// GetPayment handles GET /api/v1/payments/:id
func (h *PaymentHandler) GetPayment(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid payment id",
		})
	}

	view, err := h.payments.Check(c.Request().Context(), user.UserID, paymentID)
	if err != nil {
		switch err {
		case domainErrors.ErrPaymentNotFound:
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "Payment not found",
			})
		case domainErrors.ErrNotPaymentOwner:
			// Existence of other users' payments is not disclosed.
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "Payment not found",
			})
		}
		h.logger.Error("Failed to check payment",
			zap.String("payment_id", paymentID.String()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to check payment",
		})
	}

	return c.JSON(http.StatusOK, view)
}

// GetUserPayments handles GET /api/v1/payments
func (h *PaymentHandler) GetUserPayments(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	limit := 50
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err != nil || parsedLimit < 1 || parsedLimit > 200 {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "Invalid limit parameter",
			})
		}
		limit = parsedLimit
	}

	offset := 0
	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		parsedOffset, err := strconv.Atoi(offsetStr)
		if err != nil || parsedOffset < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "Invalid offset parameter",
			})
		}
		offset = parsedOffset
	}

	payments, err := h.payments.List(c.Request().Context(), user.UserID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list user payments",
			zap.String("user_id", user.UserID.String()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to get payments",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"payments": payments,
		"count":    len(payments),
	})
}
