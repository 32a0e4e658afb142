package surgery

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/signpost/signpost/internal/platform/auth"
	"github.com/signpost/signpost/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/admin/surgeries")

	// Read/update: ADMIN of the surgery or superuser, checked per request.
	g.GET("/:id", h.GetSurgery)
	g.PUT("/:id", h.UpdateSurgery)

	su := g.Group("", auth.RequireSuperuser())
	su.GET("", h.ListSurgeries)
	su.POST("", h.CreateSurgery)
	su.DELETE("/:id", h.DeleteSurgery)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "surgery not found")
	case errors.Is(err, ErrNameRequired):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrSlugTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *Handler) CreateSurgery(c echo.Context) error {
	var s Surgery
	if err := c.Bind(&s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateSurgery(c.Request().Context(), &s); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) GetSurgery(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	if err := auth.AuthorizeSurgery(ctx, id, auth.SurgeryRoleAdmin); err != nil {
		return auth.HTTPError(err)
	}
	s, err := h.svc.GetSurgery(ctx, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) ListSurgeries(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSurgeries(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateSurgery(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	if err := auth.AuthorizeSurgery(ctx, id, auth.SurgeryRoleAdmin); err != nil {
		return auth.HTTPError(err)
	}
	existing, err := h.svc.GetSurgery(ctx, id)
	if err != nil {
		return httpError(err)
	}
	if err := c.Bind(existing); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	existing.ID = id
	if err := h.svc.UpdateSurgery(ctx, existing); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, existing)
}

func (h *Handler) DeleteSurgery(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteSurgery(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
