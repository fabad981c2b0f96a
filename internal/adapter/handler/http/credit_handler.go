package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/clearsats/paymentd/internal/middleware/auth"
	"github.com/clearsats/paymentd/internal/usecase"
)

// CreditHandler handles credit-related HTTP requests
type CreditHandler struct {
	logger  *zap.Logger
	credits *usecase.CreditService
}

// NewCreditHandler creates a new credit handler instance
func NewCreditHandler(logger *zap.Logger, credits *usecase.CreditService) *CreditHandler {
	return &CreditHandler{
		logger:  logger,
		credits: credits,
	}
}

// GetUserCredits handles GET /api/v1/credits
func (h *CreditHandler) GetUserCredits(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	balance, err := h.credits.GetBalance(c.Request().Context(), user.UserID)
	if err != nil {
		h.logger.Error("Failed to get user credit balance",
			zap.String("user_id", user.UserID.String()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to retrieve credit balance",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"current_balance": balance.Credits,
	})
}

// GetTransactionHistory handles GET /api/v1/credits/transactions
func (h *CreditHandler) GetTransactionHistory(c echo.Context) error {
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

	transactions, err := h.credits.ListTransactions(c.Request().Context(), user.UserID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to get transaction history",
			zap.String("user_id", user.UserID.String()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to retrieve transaction history",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
	})
}
