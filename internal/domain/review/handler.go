package review

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/signpost/signpost/internal/domain/symptom"
	"github.com/signpost/signpost/internal/platform/auth"
)

const (
	ActionResetAll       = "RESET_ALL"
	ActionCompleteReview = "COMPLETE_REVIEW"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the clinical review endpoints. Each handler checks
// that the caller administers the surgery named in the request.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := api.Group("/admin", auth.RequireAuthenticated())
	admin.GET("/clinical-review-data", h.GetData)
	admin.GET("/clinical-review/rows", h.ListRows)
	admin.GET("/clinical-review/counts", h.GetCounts)
	admin.POST("/review-status", h.SetStatus)
	admin.POST("/clinical-review", h.RunAction)
	admin.POST("/clinical-review/bulk-approve", h.BulkApprove)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrReviewNotRequired):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrSurgeryNotFound), errors.Is(err, symptom.ErrSymptomNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, auth.ErrNoPrincipal):
		return auth.HTTPError(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// authorize parses raw as a surgery id and checks the caller administers it.
func authorize(c echo.Context, raw string) (uuid.UUID, *auth.Principal, error) {
	surgeryID, err := uuid.Parse(raw)
	if err != nil || surgeryID == uuid.Nil {
		return uuid.Nil, nil, echo.NewHTTPError(http.StatusBadRequest, "surgeryId is required")
	}
	ctx := c.Request().Context()
	if err := auth.AuthorizeSurgery(ctx, surgeryID, auth.SurgeryRoleAdmin); err != nil {
		return uuid.Nil, nil, auth.HTTPError(err)
	}
	return surgeryID, auth.PrincipalFromContext(ctx), nil
}

func reviewerFrom(p *auth.Principal) Reviewer {
	return Reviewer{ID: p.UserID, Email: p.Email, Name: p.Name}
}

func (h *Handler) GetData(c echo.Context) error {
	surgeryID, _, err := authorize(c, c.QueryParam("surgeryId"))
	if err != nil {
		return err
	}
	data, err := h.svc.LoadData(c.Request().Context(), surgeryID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, data)
}

func (h *Handler) ListRows(c echo.Context) error {
	surgeryID, _, err := authorize(c, c.QueryParam("surgeryId"))
	if err != nil {
		return err
	}
	q, err := ParseRowQuery(c.QueryParam("filter"), c.QueryParam("search"), c.QueryParam("sort"))
	if err != nil {
		return httpError(err)
	}
	rows, counts, err := h.svc.Rows(c.Request().Context(), surgeryID, q)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"rows": rows, "counts": counts})
}

func (h *Handler) GetCounts(c echo.Context) error {
	surgeryID, _, err := authorize(c, c.QueryParam("surgeryId"))
	if err != nil {
		return err
	}
	counts, err := h.svc.Counts(c.Request().Context(), surgeryID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, counts)
}

func (h *Handler) SetStatus(c echo.Context) error {
	var change StatusChange
	if err := c.Bind(&change); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	// A malformed body is a 400 whoever sends it.
	if err := change.Validate(); err != nil {
		return httpError(err)
	}
	_, p, err := authorize(c, change.SurgeryID.String())
	if err != nil {
		return err
	}
	result, err := h.svc.SetStatus(c.Request().Context(), change, reviewerFrom(p))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

type actionRequest struct {
	Action    string `json:"action"`
	SurgeryID string `json:"surgeryId"`
}

func (h *Handler) RunAction(c echo.Context) error {
	var req actionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	surgeryID, p, err := authorize(c, req.SurgeryID)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	switch req.Action {
	case ActionResetAll:
		updated, err := h.svc.ResetAll(ctx, surgeryID)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, map[string]int{"updated": updated})
	case ActionCompleteReview:
		sg, err := h.svc.CompleteReview(ctx, surgeryID, reviewerFrom(p))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"updated": 1, "surgery": sg})
	}
	return echo.NewHTTPError(http.StatusBadRequest, "action must be RESET_ALL or COMPLETE_REVIEW")
}

type bulkApproveRequest struct {
	SurgeryID string `json:"surgeryId"`
	Search    string `json:"search"`
}

func (h *Handler) BulkApprove(c echo.Context) error {
	var req bulkApproveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	surgeryID, p, err := authorize(c, req.SurgeryID)
	if err != nil {
		return err
	}
	approved, err := h.svc.BulkApprove(c.Request().Context(), surgeryID, req.Search, reviewerFrom(p))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"approvedCount": approved})
}
