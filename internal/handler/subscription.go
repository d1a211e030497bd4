package handler

import (
	"net/http"

	"conference-payments/internal/apperr"
	"conference-payments/internal/dto"
	"conference-payments/internal/middleware"
	"conference-payments/internal/model"
	"conference-payments/internal/service"

	"github.com/labstack/echo/v4"
)

type SubscriptionHandler struct {
	subscriptionService service.SubscriptionService
}

func NewSubscriptionHandler(subscriptionService service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
	}
}

func (h *SubscriptionHandler) Create(c echo.Context) error {
	var req dto.CreateSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	result, err := h.subscriptionService.Create(c.Request().Context(), middleware.UserID(c), req.Price)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, &dto.CreateSubscriptionResponse{
		PaymentID:      result.PaymentID,
		SubscriptionID: result.SubscriptionID,
		Reference:      result.Reference,
		PaymentLink:    result.PaymentLink,
	})
}

func (h *SubscriptionHandler) Mine(c echo.Context) error {
	sub, err := h.subscriptionService.FindActiveForUser(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, sub)
}

func (h *SubscriptionHandler) Get(c echo.Context) error {
	sub, err := h.subscriptionService.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if sub.UserID != middleware.UserID(c) && !middleware.IsAdmin(c) {
		return apperr.ErrSubscriptionNotFound
	}

	return c.JSON(http.StatusOK, sub)
}

func (h *SubscriptionHandler) List(c echo.Context) error {
	page, limit, err := pagination(c)
	if err != nil {
		return err
	}

	result, err := h.subscriptionService.List(c.Request().Context(), service.SubscriptionQuery{
		Status: model.SubscriptionStatus(c.QueryParam("status")),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &dto.PageResponse{
		Items: result.Items,
		Total: result.Total,
		Page:  result.Page,
		Limit: result.Limit,
	})
}
