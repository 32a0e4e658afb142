package symptom

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/signpost/signpost/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/effectiveSymptoms", h.ListEffective)
	api.PATCH("/surgerySymptoms", h.SetVisibility)
	api.POST("/surgerySymptoms/custom", h.CreateCustom)
	api.DELETE("/surgerySymptoms/custom", h.DeleteCustom)
	api.PUT("/surgerySymptoms/override", h.SaveOverride)
	api.DELETE("/surgerySymptoms/override", h.DeleteOverride)
}

func mutationError(err error) error {
	switch {
	case errors.Is(err, ErrSymptomNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrIDTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidAction), errors.Is(err, ErrAmbiguousTarget):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func surgeryParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.QueryParam("surgeryId"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "surgeryId is required")
	}
	return id, nil
}

func (h *Handler) ListEffective(c echo.Context) error {
	surgeryID, err := surgeryParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := auth.AuthorizeSurgery(ctx, surgeryID, auth.SurgeryRoleStandard); err != nil {
		return auth.HTTPError(err)
	}
	includeDisabled, _ := strconv.ParseBool(c.QueryParam("includeDisabled"))

	symptoms, err := h.svc.ListEffective(ctx, surgeryID, includeDisabled)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if symptoms == nil {
		symptoms = []EffectiveSymptom{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"symptoms": symptoms})
}

func (h *Handler) SetVisibility(c echo.Context) error {
	var change VisibilityChange
	if err := c.Bind(&change); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if err := auth.AuthorizeSurgery(ctx, change.SurgeryID, auth.SurgeryRoleAdmin); err != nil {
		return auth.HTTPError(err)
	}
	v, err := h.svc.SetVisibility(ctx, change)
	if err != nil {
		return mutationError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) CreateCustom(c echo.Context) error {
	var cs CustomSymptom
	if err := c.Bind(&cs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if err := auth.AuthorizeSurgery(ctx, cs.SurgeryID, auth.SurgeryRoleAdmin); err != nil {
		return auth.HTTPError(err)
	}
	if err := h.svc.CreateCustom(ctx, &cs); err != nil {
		return mutationError(err)
	}
	return c.JSON(http.StatusCreated, cs)
}

func (h *Handler) DeleteCustom(c echo.Context) error {
	surgeryID, err := surgeryParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := auth.AuthorizeSurgery(ctx, surgeryID, auth.SurgeryRoleAdmin); err != nil {
		return auth.HTTPError(err)
	}
	if err := h.svc.DeleteCustom(ctx, surgeryID, c.QueryParam("id")); err != nil {
		return mutationError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SaveOverride(c echo.Context) error {
	var o SymptomOverride
	if err := c.Bind(&o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if err := auth.AuthorizeSurgery(ctx, o.SurgeryID, auth.SurgeryRoleAdmin); err != nil {
		return auth.HTTPError(err)
	}
	if err := h.svc.SaveOverride(ctx, &o); err != nil {
		return mutationError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) DeleteOverride(c echo.Context) error {
	surgeryID, err := surgeryParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := auth.AuthorizeSurgery(ctx, surgeryID, auth.SurgeryRoleAdmin); err != nil {
		return auth.HTTPError(err)
	}
	if err := h.svc.DeleteOverride(ctx, surgeryID, c.QueryParam("baseSymptomId")); err != nil {
		return mutationError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
