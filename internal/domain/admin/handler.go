package admin

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
	g := api.Group("/admin/users", auth.RequireSuperuser())
	g.POST("", h.CreateUser)
	g.GET("", h.ListUsers)
	g.GET("/:id", h.GetUser)
	g.PUT("/:id", h.UpdateUser)
	g.DELETE("/:id", h.DeleteUser)

	g.GET("/:id/surgeries", h.ListMemberships)
	g.PUT("/:id/surgeries/:surgeryId", h.SetMembership)
	g.DELETE("/:id/surgeries/:surgeryId", h.RemoveMembership)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	case errors.Is(err, ErrMembershipNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "membership not found")
	case errors.Is(err, ErrEmailTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, auth.ErrUnknownRole):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// -- User Handlers --

func (h *Handler) CreateUser(c echo.Context) error {
	var u User
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateUser(c.Request().Context(), &u); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListUsers(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	existing, err := h.svc.GetUser(ctx, id)
	if err != nil {
		return httpError(err)
	}
	if err := c.Bind(existing); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	existing.ID = id
	if err := h.svc.UpdateUser(ctx, existing); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, existing)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteUser(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Membership Handlers --

type membershipRequest struct {
	Role string `json:"role"`
}

func (h *Handler) SetMembership(c echo.Context) error {
	userID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	surgeryID, err := parseID(c, "surgeryId")
	if err != nil {
		return err
	}
	var req membershipRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.SetMembership(c.Request().Context(), userID, surgeryID, req.Role)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListMemberships(c echo.Context) error {
	userID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ms, err := h.svc.ListMemberships(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	if ms == nil {
		ms = []*Membership{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"memberships": ms})
}

func (h *Handler) RemoveMembership(c echo.Context) error {
	userID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	surgeryID, err := parseID(c, "surgeryId")
	if err != nil {
		return err
	}
	if err := h.svc.RemoveMembership(c.Request().Context(), userID, surgeryID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
