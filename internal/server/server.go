package server

import (
	"context"
	"net/http"

	"conference-payments/internal/handler"
	"conference-payments/internal/middleware"
	"conference-payments/internal/service"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Services struct {
	Conferences   service.ConferenceService
	Registrations service.RegistrationService
	Subscriptions service.SubscriptionService
	Payments      service.PaymentService
	Verification  service.VerificationService
	Webhooks      service.WebhookService
}

type Server struct {
	echo                *echo.Echo
	jwtSecret           string
	gatherer            prometheus.Gatherer
	registrationHandler *handler.RegistrationHandler
	subscriptionHandler *handler.SubscriptionHandler
	paymentHandler      *handler.PaymentHandler
}

func NewServer(services Services, jwtSecret string, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler(logger)

	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			logger.Info("request", fields...)
			return nil
		},
	}))
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	s := &Server{
		echo:                e,
		jwtSecret:           jwtSecret,
		gatherer:            gatherer,
		registrationHandler: handler.NewRegistrationHandler(services.Registrations, services.Conferences),
		subscriptionHandler: handler.NewSubscriptionHandler(services.Subscriptions),
		paymentHandler:      handler.NewPaymentHandler(services.Payments, services.Verification, services.Webhooks),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	api := s.echo.Group("/api")

	// -------- public --------
	api.GET("/conferences/:id/registration-types", s.registrationHandler.RegistrationTypes)
	api.GET("/payments/verify", s.paymentHandler.Verify)
	api.GET("/payments/verify/:reference", s.paymentHandler.Verify)

	// signature is computed over the raw body, so no sanitizer here
	api.POST("/payments/webhook", s.paymentHandler.Webhook)

	// -------- authenticated --------
	authed := api.Group("", middleware.AuthMiddleware(s.jwtSecret), middleware.SanitizeJSON())

	registrations := authed.Group("/registrations")
	registrations.POST("", s.registrationHandler.Create)
	registrations.GET("/me", s.registrationHandler.Mine)
	registrations.POST("/token/verify", s.registrationHandler.VerifyToken)
	registrations.GET("/:id", s.registrationHandler.Get)
	registrations.PATCH("/:id/cancel", s.registrationHandler.Cancel)

	subscriptions := authed.Group("/subscriptions")
	subscriptions.POST("", s.subscriptionHandler.Create)
	subscriptions.GET("/me", s.subscriptionHandler.Mine)
	subscriptions.GET("/:id", s.subscriptionHandler.Get)

	payments := authed.Group("/payments")
	payments.GET("/me", s.paymentHandler.Mine)
	payments.POST("/:id/abandon", s.paymentHandler.Abandon)

	// -------- admin --------
	admin := authed.Group("/admin", middleware.RequireRole(middleware.RoleAdmin))
	admin.GET("/registrations", s.registrationHandler.List)
	admin.GET("/subscriptions", s.subscriptionHandler.List)
	admin.GET("/payments/revenue", s.paymentHandler.Revenue)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
