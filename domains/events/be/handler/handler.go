package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classbridge/ptohub/domains/events/be/service"
	"github.com/classbridge/ptohub/platform/go/apierror"
	"github.com/classbridge/ptohub/platform/go/orgctx"
	"github.com/classbridge/ptohub/platform/go/rbac"
	"github.com/classbridge/ptohub/platform/go/respond"
)

// Handler wires the events service to the HTTP surface.
type Handler struct {
	svc    service.Service
	eval   *rbac.Evaluator
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, eval *rbac.Evaluator, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("events service is required")
	}
	if eval == nil {
		panic("permission evaluator is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, eval: eval, logger: logger}
}

// Routes returns the events router with per-route permission gates.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(orgctx.RequirePermission(h.eval, "events.view")).Get("/", h.list)
	r.With(orgctx.RequirePermission(h.eval, "events.view")).Get("/{eventID}", h.get)
	r.With(orgctx.RequirePermission(h.eval, "events.manage")).Post("/", h.create)
	r.With(orgctx.RequirePermission(h.eval, "events.manage")).Put("/{eventID}", h.update)
	r.With(orgctx.RequirePermission(h.eval, "events.delete")).Delete("/{eventID}", h.delete)

	return r
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	m, ok := orgctx.FromContext(r.Context())
	if !ok {
		respond.Error(w, r, apierror.Unauthorized("authentication required"))
		return
	}

	opts := service.ListOptions{}
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		opts.Page = atoiOrZero(v)
	}
	if v := q.Get("page_size"); v != "" {
		opts.PageSize = atoiOrZero(v)
	}
	if v := q.Get("status"); v != "" {
		opts.Status = &v
	}

	result, err := h.svc.List(r.Context(), m.OrgID, opts)
	if err != nil {
		respond.Error(w, r, h.mapError(err))
		return
	}

	respond.Page(w, r, http.StatusOK, result.Events, respond.Pagination{
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	m, ok := orgctx.FromContext(r.Context())
	if !ok {
		respond.Error(w, r, apierror.Unauthorized("authentication required"))
		return
	}

	eventID, err := uuid.Parse(chi.URLParam(r, "eventID"))
	if err != nil {
		respond.Error(w, r, apierror.Validation("event id must be a UUID").WithField("eventID"))
		return
	}

	event, err := h.svc.Get(r.Context(), m.OrgID, eventID)
	if err != nil {
		respond.Error(w, r, h.mapError(err))
		return
	}
	respond.JSON(w, r, http.StatusOK, event)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	m, ok := orgctx.FromContext(r.Context())
	if !ok {
		respond.Error(w, r, apierror.Unauthorized("authentication required"))
		return
	}

	var input service.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respond.Error(w, r, apierror.Validation("request body is not valid JSON").WithCause(err))
		return
	}

	created, err := h.svc.Create(r.Context(), m.OrgID, m.Profile.UserID, input)
	if err != nil {
		respond.Error(w, r, h.mapError(err))
		return
	}
	respond.JSON(w, r, http.StatusCreated, created)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	m, ok := orgctx.FromContext(r.Context())
	if !ok {
		respond.Error(w, r, apierror.Unauthorized("authentication required"))
		return
	}

	eventID, err := uuid.Parse(chi.URLParam(r, "eventID"))
	if err != nil {
		respond.Error(w, r, apierror.Validation("event id must be a UUID").WithField("eventID"))
		return
	}

	existing, err := h.svc.Get(r.Context(), m.OrgID, eventID)
	if err != nil {
		respond.Error(w, r, h.mapError(err))
		return
	}

	// Members edit their own events; anyone else needs committee_lead.
	if err := orgctx.CanModify(r.Context(), existing.CreatedBy, rbac.RoleCommitteeLead); err != nil {
		respond.Error(w, r, err)
		return
	}

	var input service.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respond.Error(w, r, apierror.Validation("request body is not valid JSON").WithCause(err))
		return
	}

	updated, err := h.svc.Update(r.Context(), m.OrgID, eventID, input)
	if err != nil {
		respond.Error(w, r, h.mapError(err))
		return
	}
	respond.JSON(w, r, http.StatusOK, updated)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	m, ok := orgctx.FromContext(r.Context())
	if !ok {
		respond.Error(w, r, apierror.Unauthorized("authentication required"))
		return
	}

	eventID, err := uuid.Parse(chi.URLParam(r, "eventID"))
	if err != nil {
		respond.Error(w, r, apierror.Validation("event id must be a UUID").WithField("eventID"))
		return
	}

	if err := h.svc.Delete(r.Context(), m.OrgID, eventID); err != nil {
		respond.Error(w, r, h.mapError(err))
		return
	}
	respond.JSON(w, r, http.StatusOK, map[string]any{"deleted": eventID})
}

// mapError converts domain sentinels; everything else flows through the
// taxonomy normalizer in respond.Error.
func (h *Handler) mapError(err error) error {
	if errors.Is(err, service.ErrNotFound) {
		return apierror.NotFound("event not found").WithCause(err)
	}
	return err
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
