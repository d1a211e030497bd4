package handler

import (
	"net/http"
	"strconv"

	"conference-payments/internal/apperr"
	"conference-payments/internal/dto"
	"conference-payments/internal/middleware"
	"conference-payments/internal/model"
	"conference-payments/internal/service"

	"github.com/labstack/echo/v4"
)

type RegistrationHandler struct {
	registrationService service.RegistrationService
	conferenceService   service.ConferenceService
}

func NewRegistrationHandler(registrationService service.RegistrationService, conferenceService service.ConferenceService) *RegistrationHandler {
	return &RegistrationHandler{
		registrationService: registrationService,
		conferenceService:   conferenceService,
	}
}

func (h *RegistrationHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreateRegistrationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if req.RegistrationTypeID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "registration_type_id is required")
	}

	result, err := h.registrationService.Create(ctx, middleware.UserID(c), service.CreateRegistrationInput{
		ConferenceID:       req.ConferenceID,
		RegistrationTypeID: req.RegistrationTypeID,
		Price:              req.Price,
		PassportNo:         req.PassportNo,
		PassportCountry:    req.PassportCountry,
		DateOfBirth:        req.DateOfBirth,
		PhoneNumber:        req.PhoneNumber,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, &dto.CreateRegistrationResponse{
		PaymentID:      result.PaymentID,
		RegistrationID: result.RegistrationID,
		Reference:      result.Reference,
		PaymentLink:    result.PaymentLink,
	})
}

func (h *RegistrationHandler) Mine(c echo.Context) error {
	registrations, err := h.registrationService.ListForUser(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, registrations)
}

// ownRegistration loads a registration that the caller may see; other users'
// registrations look missing.
func (h *RegistrationHandler) ownRegistration(c echo.Context) (*model.Registration, error) {
	registration, err := h.registrationService.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if registration.UserID != middleware.UserID(c) && !middleware.IsAdmin(c) {
		return nil, apperr.ErrRegistrationNotFound
	}
	return registration, nil
}

func (h *RegistrationHandler) Get(c echo.Context) error {
	registration, err := h.ownRegistration(c)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, registration)
}

func (h *RegistrationHandler) Cancel(c echo.Context) error {
	registration, err := h.ownRegistration(c)
	if err != nil {
		return err
	}

	cancelled, err := h.registrationService.Cancel(c.Request().Context(), registration.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, cancelled)
}

func (h *RegistrationHandler) VerifyToken(c echo.Context) error {
	var req dto.VerifyTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	registration, err := h.registrationService.FindByToken(c.Request().Context(), req.Token, req.PassportNo, middleware.UserID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, registration)
}

func (h *RegistrationHandler) List(c echo.Context) error {
	page, limit, err := pagination(c)
	if err != nil {
		return err
	}

	result, err := h.registrationService.List(c.Request().Context(), service.RegistrationQuery{
		Status: model.RegistrationStatus(c.QueryParam("status")),
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

func (h *RegistrationHandler) RegistrationTypes(c echo.Context) error {
	types, err := h.conferenceService.RegistrationTypes(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, types)
}

func pagination(c echo.Context) (int, int, error) {
	page, limit := 0, 0
	var err error
	if v := c.QueryParam("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil {
			return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "invalid page")
		}
	}
	if v := c.QueryParam("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
	}
	return page, limit, nil
}
