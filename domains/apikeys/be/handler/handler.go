package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/classbridge/ptohub/domains/apikeys/be/service"
	"github.com/classbridge/ptohub/platform/go/apierror"
	"github.com/classbridge/ptohub/platform/go/orgctx"
	"github.com/classbridge/ptohub/platform/go/rbac"
	"github.com/classbridge/ptohub/platform/go/respond"
)

// Handler wires the apikeys service to the HTTP surface. Every route is
// an admin capability; keys cannot manage other keys, so these routes are
// user-principal only by virtue of the permission template.
type Handler struct {
	svc    service.Service
	eval   *rbac.Evaluator
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, eval *rbac.Evaluator, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("apikeys service is required")
	}
	if eval == nil {
		panic("permission evaluator is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, eval: eval, logger: logger}
}

// Routes returns the apikeys router with per-route permission gates.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(orgctx.RequirePermission(h.eval, "apikeys.manage"))

	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Delete("/{keyID}", h.revoke)

	return r
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	m, ok := orgctx.FromContext(r.Context())
	if !ok {
		respond.Error(w, r, apierror.Unauthorized("authentication required"))
		return
	}

	keys, err := h.svc.List(r.Context(), m.OrgID)
	if err != nil {
		respond.Error(w, r, h.mapError(err))
		return
	}
	respond.JSON(w, r, http.StatusOK, keys)
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

	issued, err := h.svc.Create(r.Context(), m.OrgID, input)
	if err != nil {
		respond.Error(w, r, h.mapError(err))
		return
	}
	respond.JSON(w, r, http.StatusCreated, issued)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	m, ok := orgctx.FromContext(r.Context())
	if !ok {
		respond.Error(w, r, apierror.Unauthorized("authentication required"))
		return
	}

	keyID := chi.URLParam(r, "keyID")
	if err := h.svc.Revoke(r.Context(), m.OrgID, keyID); err != nil {
		respond.Error(w, r, h.mapError(err))
		return
	}
	respond.JSON(w, r, http.StatusOK, map[string]any{"revoked": keyID})
}

func (h *Handler) mapError(err error) error {
	if errors.Is(err, service.ErrNotFound) {
		return apierror.NotFound("api key not found").WithCause(err)
	}
	return err
}
