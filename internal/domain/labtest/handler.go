package labtest

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/labtrack/labtrack/internal/platform/auth"
	"github.com/labtrack/labtrack/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/visit-tests")

	staff := g.Group("", auth.RequireRole(auth.RoleReception, auth.RolePhlebotomy, auth.RoleLab, auth.RoleDoctor))
	staff.GET("/:id", h.Get)
	staff.GET("/:id/history", h.History)
	staff.GET("/queues/phlebotomy", h.PhlebotomyQueue)
	staff.GET("/queues/lab", h.LabQueue)
	staff.GET("/queues/approval", h.ApprovalQueue)
	staff.GET("/queues/print", h.PrintQueue)

	reception := g.Group("", auth.RequireRole(auth.RoleReception))
	reception.POST("", h.Order)
	reception.POST("/:id/complete", h.Complete)

	collection := g.Group("", auth.RequireRole(auth.RolePhlebotomy, auth.RoleLab))
	collection.POST("/:id/collect", h.CollectSample)
	collection.POST("/:id/reject-sample", h.RejectSample)

	lab := g.Group("", auth.RequireRole(auth.RoleLab))
	lab.POST("/:id/results", h.SubmitResults)

	doctor := g.Group("", auth.RequireRole(auth.RoleDoctor))
	doctor.POST("/:id/approve", h.ApproveResult)
	doctor.POST("/:id/reject-result", h.RejectResult)

	edit := g.Group("", auth.RequireRole(auth.RoleLab, auth.RoleDoctor))
	edit.PUT("/:id/results", h.EditResult)

	print := g.Group("", auth.RequireRole(auth.RoleReception, auth.RoleLab, auth.RoleDoctor))
	print.POST("/:id/print", h.PrintReport)

	admin := g.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/:id/cancel", h.CancelTest)
}

type orderRequest struct {
	VisitID    uuid.UUID `json:"visit_id"`
	TemplateID uuid.UUID `json:"template_id"`
}

func (h *Handler) Order(c echo.Context) error {
	var req orderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.VisitID == uuid.Nil || req.TemplateID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "visit_id and template_id are required")
	}
	t, err := h.svc.Order(c.Request().Context(), req.VisitID, req.TemplateID, actor(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	t, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) History(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	entries, total, err := h.svc.History(c.Request().Context(), id, p.Limit, p.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, p.Limit, p.Offset))
}

type collectRequest struct {
	SpecimenType string `json:"specimen_type"`
}

func (h *Handler) CollectSample(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req collectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	t, err := h.svc.CollectSample(c.Request().Context(), id, req.SpecimenType, actor(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, t)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) RejectSample(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	t, err := h.svc.RejectSample(c.Request().Context(), id, req.Reason, actor(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, t)
}

type resultsRequest struct {
	Results *ResultPayload `json:"results"`
}

func (h *Handler) SubmitResults(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req resultsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	t, err := h.svc.SubmitResults(c.Request().Context(), id, req.Results, actor(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ApproveResult(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	t, err := h.svc.ApproveResult(c.Request().Context(), id, actor(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) RejectResult(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	t, err := h.svc.RejectResult(c.Request().Context(), id, req.Reason, actor(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, t)
}

type editRequest struct {
	Results *ResultPayload `json:"results"`
	Reason  string         `json:"reason"`
}

func (h *Handler) EditResult(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req editRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	t, err := h.svc.EditResult(c.Request().Context(), id, req.Results, req.Reason, actor(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) PrintReport(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	t, err := h.svc.PrintReport(c.Request().Context(), id, actor(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	t, err := h.svc.CompleteTest(c.Request().Context(), id, actor(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) CancelTest(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	t, err := h.svc.CancelTest(c.Request().Context(), id, req.Reason, actor(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) PhlebotomyQueue(c echo.Context) error {
	return h.queue(c, h.svc.PhlebotomyQueue)
}

func (h *Handler) LabQueue(c echo.Context) error {
	return h.queue(c, h.svc.LabQueue)
}

func (h *Handler) ApprovalQueue(c echo.Context) error {
	return h.queue(c, h.svc.ApprovalQueue)
}

func (h *Handler) PrintQueue(c echo.Context) error {
	return h.queue(c, h.svc.PrintQueue)
}

func (h *Handler) queue(c echo.Context, list func(ctx context.Context, limit, offset int) ([]*VisitTest, int, error)) error {
	p := pagination.FromContext(c)
	items, total, err := list(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid visit test id")
	}
	return id, nil
}

func actor(c echo.Context) auth.Actor {
	return auth.ActorFromContext(c.Request().Context())
}

// mapError translates engine errors to HTTP. Stale writes come back 409
// so clients know to refetch and retry rather than resubmit blindly.
func mapError(err error) error {
	var (
		stale      *StaleStateError
		incomplete *IncompleteResultError
		perm       *PermissionError
		noActor    *ActorRequiredError
		notFound   *NotFoundError
		invalid    *ValidationError
	)
	switch {
	case errors.As(err, &stale):
		return echo.NewHTTPError(http.StatusConflict, stale.Error())
	case errors.As(err, &incomplete):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, incomplete.Error())
	case errors.As(err, &perm):
		return echo.NewHTTPError(http.StatusForbidden, perm.Error())
	case errors.As(err, &noActor):
		return echo.NewHTTPError(http.StatusUnauthorized, noActor.Error())
	case errors.As(err, &notFound):
		return echo.NewHTTPError(http.StatusNotFound, notFound.Error())
	case errors.As(err, &invalid):
		return echo.NewHTTPError(http.StatusBadRequest, invalid.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
