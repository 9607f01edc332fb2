package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/classbridge/ptohub/domains/members/be/service"
	"github.com/classbridge/ptohub/platform/go/apierror"
	"github.com/classbridge/ptohub/platform/go/orgctx"
	"github.com/classbridge/ptohub/platform/go/rbac"
	"github.com/classbridge/ptohub/platform/go/respond"
)

// Handler wires the members service to the HTTP surface.
type Handler struct {
	svc    service.Service
	eval   *rbac.Evaluator
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, eval *rbac.Evaluator, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("members service is required")
	}
	if eval == nil {
		panic("permission evaluator is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, eval: eval, logger: logger}
}

// Routes returns the members router with per-route permission gates.
// Member removal and role changes are admin capabilities.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(orgctx.RequirePermission(h.eval, "members.view")).Get("/", h.list)
	r.Get("/me", h.me)
	r.With(orgctx.RequirePermission(h.eval, "members.view")).Get("/{userID}", h.get)
	r.With(orgctx.RequirePermission(h.eval, "members.manage")).Post("/", h.create)
	r.With(orgctx.RequirePermission(h.eval, "members.manage")).Put("/{userID}/role", h.updateRole)
	r.With(orgctx.RequirePermission(h.eval, "members.manage")).Delete("/{userID}", h.delete)

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
	if v := q.Get("role"); v != "" {
		opts.Role = &v
	}

	result, err := h.svc.List(r.Context(), m.OrgID, opts)
	if err != nil {
		respond.Error(w, r, h.mapError(err))
		return
	}

	respond.Page(w, r, http.StatusOK, result.Members, respond.Pagination{
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	})
}

// me returns the caller's own membership. API keys have no member
// record behind them, so the route is user-token only.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	m, ok := orgctx.FromContext(r.Context())
	if !ok {
		respond.Error(w, r, apierror.Unauthorized("authentication required"))
		return
	}
	if m.Profile.UserID == "" {
		respond.Error(w, r, apierror.Forbidden("this endpoint requires a user token"))
		return
	}

	member, err := h.svc.Get(r.Context(), m.OrgID, m.Profile.UserID)
	if err != nil {
		respond.Error(w, r, h.mapError(err))
		return
	}
	respond.JSON(w, r, http.StatusOK, member)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	m, ok := orgctx.FromContext(r.Context())
	if !ok {
		respond.Error(w, r, apierror.Unauthorized("authentication required"))
		return
	}

	member, err := h.svc.Get(r.Context(), m.OrgID, chi.URLParam(r, "userID"))
	if err != nil {
		respond.Error(w, r, h.mapError(err))
		return
	}
	respond.JSON(w, r, http.StatusOK, member)
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

	created, err := h.svc.Create(r.Context(), m.OrgID, input)
	if err != nil {
		respond.Error(w, r, h.mapError(err))
		return
	}
	respond.JSON(w, r, http.StatusCreated, created)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	m, ok := orgctx.FromContext(r.Context())
	if !ok {
		respond.Error(w, r, apierror.Unauthorized("authentication required"))
		return
	}

	var input service.UpdateRoleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respond.Error(w, r, apierror.Validation("request body is not valid JSON").WithCause(err))
		return
	}

	updated, err := h.svc.UpdateRole(r.Context(), m.OrgID, chi.URLParam(r, "userID"), input)
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

	userID := chi.URLParam(r, "userID")
	if err := h.svc.Delete(r.Context(), m.OrgID, m.Profile.UserID, userID); err != nil {
		respond.Error(w, r, h.mapError(err))
		return
	}
	respond.JSON(w, r, http.StatusOK, map[string]any{"deleted": userID})
}

func (h *Handler) mapError(err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return apierror.NotFound("member not found").WithCause(err)
	case errors.Is(err, service.ErrConflict):
		return apierror.Conflict("a member with this email or id already exists").WithCause(err)
	case errors.Is(err, service.ErrSelf):
		return apierror.Forbidden("cannot remove your own membership").WithCause(err)
	case errors.Is(err, service.ErrInvalidRole):
		return apierror.Validation("role is not one of the known roles").WithField("role").WithCause(err)
	default:
		return err
	}
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
