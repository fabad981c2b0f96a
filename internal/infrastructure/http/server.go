package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	handlers "github.com/clearsats/paymentd/internal/adapter/handler/http"
	"github.com/clearsats/paymentd/internal/config"
	"github.com/clearsats/paymentd/internal/logger"
	"github.com/clearsats/paymentd/internal/middleware/auth"
	"github.com/clearsats/paymentd/internal/usecase"
)

// CustomValidator wires validator/v10 into echo's Validate call.
type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

type Server struct {
	config   *config.Config
	logger   *zap.Logger
	echo     *echo.Echo
	payments *usecase.PaymentService
	credits  *usecase.CreditService
}

func NewServer(cfg *config.Config, log *zap.Logger, payments *usecase.PaymentService, credits *usecase.CreditService) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	// Middleware
	e.Use(logger.NewEchoRequestLogger(log))
	e.Use(middleware.Recover())
	if len(cfg.Server.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.Server.CORSOrigins,
			AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE},
		}))
	}

	return &Server{
		config:   cfg,
		logger:   log,
		echo:     e,
		payments: payments,
		credits:  credits,
	}
}

func (s *Server) Start() error {
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})

	paymentHandler := handlers.NewPaymentHandler(s.payments, s.logger)
	creditHandler := handlers.NewCreditHandler(s.logger, s.credits)

	jwtConfig := auth.JWTConfig{
		Secret: s.config.JWT.Secret,
		Logger: s.logger,
		SkipPaths: []string{
			"/health",
		},
	}

	v1 := s.echo.Group("/api/v1")
	protected := v1.Group("", auth.JWTMiddleware(jwtConfig))

	// Payment routes (require authentication)
	protected.POST("/payments", paymentHandler.InitiatePayment)
	protected.GET("/payments", paymentHandler.GetUserPayments)
	protected.GET("/payments/:id", paymentHandler.GetPayment)

	// Credit routes (require authentication)
	protected.GET("/credits/balance", creditHandler.GetUserCredits)
	protected.GET("/credits/transactions", creditHandler.GetTransactionHistory)
}
