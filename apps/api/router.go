package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apikeyshandler "github.com/classbridge/ptohub/domains/apikeys/be/handler"
	apikeysservice "github.com/classbridge/ptohub/domains/apikeys/be/service"
	eventshandler "github.com/classbridge/ptohub/domains/events/be/handler"
	eventsservice "github.com/classbridge/ptohub/domains/events/be/service"
	membershandler "github.com/classbridge/ptohub/domains/members/be/handler"
	membersservice "github.com/classbridge/ptohub/domains/members/be/service"
	permissionshandler "github.com/classbridge/ptohub/domains/permissions/be/handler"
	permissionsservice "github.com/classbridge/ptohub/domains/permissions/be/service"
	platformauth "github.com/classbridge/ptohub/platform/go/auth"
	platformlogging "github.com/classbridge/ptohub/platform/go/logging"
	platformmiddleware "github.com/classbridge/ptohub/platform/go/middleware"
	"github.com/classbridge/ptohub/platform/go/obs"
	"github.com/classbridge/ptohub/platform/go/orgctx"
	"github.com/classbridge/ptohub/platform/go/ratelimit"
	"github.com/classbridge/ptohub/platform/go/rbac"
	"github.com/classbridge/ptohub/platform/go/respcache"
	"github.com/classbridge/ptohub/platform/go/respond"
	"github.com/classbridge/ptohub/platform/go/tasks"
)

// routerDeps carries every collaborator the composed router needs, so
// tests can assemble the full pipeline with in-memory implementations.
type routerDeps struct {
	logger *zap.Logger

	authn    *platformauth.Authenticator
	profiles orgctx.ProfileResolver
	eval     *rbac.Evaluator
	limiter  *ratelimit.Limiter
	cache    *respcache.Cache

	events      eventsservice.Service
	members     membersservice.Service
	apikeys     apikeysservice.Service
	permissions permissionsservice.Service

	// cacheInval lets override writes purge the org's cached responses.
	cacheInval respcache.Invalidator
	runner     *tasks.Runner

	// ready reports whether downstream dependencies answer; nil means
	// always ready.
	ready func(ctx context.Context) error

	requestTimeout time.Duration
	metrics        bool
}

// buildRouter composes the gating pipeline around the domain routers:
// request id, recovery, logging, authentication, organization context,
// rate limiting, response cache, then the permission-gated handlers.
func buildRouter(deps routerDeps) chi.Router {
	if deps.requestTimeout <= 0 {
		deps.requestTimeout = 15 * time.Second
	}

	root := chi.NewRouter()
	root.Use(
		chimw.RequestID,
		chimw.RealIP,
		platformmiddleware.Recoverer,
		chimw.Timeout(deps.requestTimeout),
		platformmiddleware.DefaultCORS(),
	)
	root.Use(platformlogging.RequestLogger(deps.logger))
	if deps.metrics {
		root.Use(obs.Instrument)
	}

	root.NotFound(respond.NotFoundHandler())
	root.MethodNotAllowed(respond.MethodNotAllowedHandler())

	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, r, http.StatusOK, map[string]any{"status": "ok"})
	})
	root.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.ready != nil {
			if err := deps.ready(r.Context()); err != nil {
				respond.Error(w, r, err)
				return
			}
		}
		respond.JSON(w, r, http.StatusOK, map[string]any{"status": "ready"})
	})
	if deps.metrics {
		root.Handle("/metrics", obs.Handler())
	}

	api := chi.NewRouter()
	api.Use(deps.authn.Middleware)
	api.Use(orgctx.Loader(deps.profiles))
	api.Use(deps.limiter.Middleware)
	api.Use(deps.cache.Middleware)

	api.NotFound(respond.NotFoundHandler())
	api.MethodNotAllowed(respond.MethodNotAllowedHandler())

	api.Mount("/events", eventshandler.New(deps.events, deps.eval, deps.logger).Routes())
	api.Mount("/members", membershandler.New(deps.members, deps.eval, deps.logger).Routes())
	api.Mount("/apikeys", apikeyshandler.New(deps.apikeys, deps.eval, deps.logger).Routes())
	api.Mount("/permissions", permissionshandler.New(deps.permissions, deps.eval, deps.cacheInval, deps.runner, deps.logger).Routes())

	root.Mount("/api/v1", api)

	return root
}
