package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/classbridge/ptohub/domains/permissions/be/service"
	"github.com/classbridge/ptohub/platform/go/apierror"
	"github.com/classbridge/ptohub/platform/go/orgctx"
	"github.com/classbridge/ptohub/platform/go/rbac"
	"github.com/classbridge/ptohub/platform/go/respcache"
	"github.com/classbridge/ptohub/platform/go/respond"
	"github.com/classbridge/ptohub/platform/go/tasks"
)

// Handler exposes per-organization permission overrides. Writes purge
// the organization's cached responses so authorization changes are not
// held back by response TTLs.
type Handler struct {
	svc    service.Service
	eval   *rbac.Evaluator
	cache  respcache.Invalidator
	runner *tasks.Runner
	logger *zap.Logger
}

func New(svc service.Service, eval *rbac.Evaluator, cache respcache.Invalidator, runner *tasks.Runner, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("permissions service is required")
	}
	if eval == nil {
		panic("permission evaluator is required")
	}
	if runner == nil {
		panic("task runner is required")
	}
	if logger == nil {
		panic("logger is required")
	}

	return &Handler{svc: svc, eval: eval, cache: cache, runner: runner, logger: logger}
}

// Routes builds the chi router. The permissions.manage key has no
// template entry, so it falls back to the admin-only default.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(orgctx.RequirePermission(h.eval, "permissions.manage"))
	r.Get("/", h.list)
	r.Put("/{permissionKey}", h.set)
	r.Delete("/{permissionKey}", h.remove)

	return r
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	m, ok := orgctx.FromContext(r.Context())
	if !ok {
		respond.Error(w, r, apierror.Unauthorized("authentication required"))
		return
	}

	overrides, err := h.svc.List(r.Context(), m.OrgID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, overrides)
}

func (h *Handler) set(w http.ResponseWriter, r *http.Request) {
	m, ok := orgctx.FromContext(r.Context())
	if !ok {
		respond.Error(w, r, apierror.Unauthorized("authentication required"))
		return
	}

	var input service.SetInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respond.Error(w, r, apierror.Validation("request body is not valid JSON").WithCause(err))
		return
	}

	override, err := h.svc.Set(r.Context(), m.OrgID, chi.URLParam(r, "permissionKey"), input)
	if err != nil {
		respond.Error(w, r, h.mapError(err))
		return
	}

	h.purgeOrgCache(m.OrgID.String())
	respond.JSON(w, r, http.StatusOK, override)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	m, ok := orgctx.FromContext(r.Context())
	if !ok {
		respond.Error(w, r, apierror.Unauthorized("authentication required"))
		return
	}

	key := chi.URLParam(r, "permissionKey")
	if err := h.svc.Remove(r.Context(), m.OrgID, key); err != nil {
		respond.Error(w, r, h.mapError(err))
		return
	}

	h.purgeOrgCache(m.OrgID.String())
	respond.JSON(w, r, http.StatusOK, map[string]any{"removed": key})
}

// purgeOrgCache drops the organization's cached responses best-effort;
// a failed purge only extends staleness to the TTL bound.
func (h *Handler) purgeOrgCache(orgID string) {
	h.runner.Go("permissions.purge-org-cache", func(ctx context.Context) error {
		_, err := h.cache.ByOrg(ctx, orgID)
		return err
	})
}

func (h *Handler) mapError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidRole):
		return apierror.Validation("min_role is not one of the known roles").WithField("min_role").WithCause(err)
	case errors.Is(err, service.ErrInvalidKey):
		return apierror.Validation("permission key must not be empty").WithField("permissionKey").WithCause(err)
	}
	return err
}
