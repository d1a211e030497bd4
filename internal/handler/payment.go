package handler

import (
	"io"
	"net/http"

	"conference-payments/internal/apperr"
	"conference-payments/internal/dto"
	"conference-payments/internal/middleware"
	"conference-payments/internal/service"

	"github.com/labstack/echo/v4"
)

const signatureHeader = "x-paystack-signature"

type PaymentHandler struct {
	paymentService      service.PaymentService
	verificationService service.VerificationService
	webhookService      service.WebhookService
}

func NewPaymentHandler(
	paymentService service.PaymentService,
	verificationService service.VerificationService,
	webhookService service.WebhookService,
) *PaymentHandler {
	return &PaymentHandler{
		paymentService:      paymentService,
		verificationService: verificationService,
		webhookService:      webhookService,
	}
}

// Verify serves both the gateway's callback redirect (?reference= or
// ?trxref=) and /payments/verify/:reference.
func (h *PaymentHandler) Verify(c echo.Context) error {
	reference := c.Param("reference")
	if reference == "" {
		reference = c.QueryParam("reference")
	}
	if reference == "" {
		reference = c.QueryParam("trxref")
	}
	if reference == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing payment reference")
	}

	result, err := h.verificationService.VerifyByReference(c.Request().Context(), reference)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &dto.VerifyPaymentResponse{
		Status:   result.Status,
		Data:     result.Payment,
		Replayed: result.Replayed,
	})
}

func (h *PaymentHandler) Webhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	if err := h.webhookService.Handle(ctx, c.Request().Header.Get(signatureHeader), body); err != nil {
		// any 2xx counts as delivered, so an unsettled payment must answer
		// with an error status to get the event redelivered
		if apperr.KindOf(err) == apperr.KindNotYetSettled {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "payment not yet settled").SetInternal(err)
		}
		return err
	}

	return c.NoContent(http.StatusOK)
}

func (h *PaymentHandler) Mine(c echo.Context) error {
	payments, err := h.paymentService.ListForUser(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, payments)
}

func (h *PaymentHandler) Abandon(c echo.Context) error {
	payment, err := h.paymentService.MarkFailed(c.Request().Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, payment)
}

func (h *PaymentHandler) Revenue(c echo.Context) error {
	rows, err := h.paymentService.RevenueSummary(c.Request().Context())
	if err != nil {
		return err
	}

	lines := make([]*dto.RevenueLine, len(rows))
	for i, row := range rows {
		lines[i] = &dto.RevenueLine{
			Purpose:  string(row.Purpose),
			Currency: row.Currency,
			Count:    row.Count,
			Total:    row.Total,
		}
	}

	return c.JSON(http.StatusOK, lines)
}
