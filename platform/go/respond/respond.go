// Package respond funnels every outgoing payload into the standard
// response envelope and renders taxonomy errors. Handlers never write raw
// JSON bodies directly.
package respond

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/classbridge/ptohub/platform/go/apierror"
	platformlogging "github.com/classbridge/ptohub/platform/go/logging"
)

// Version is stamped into every envelope's meta block.
const Version = "v1"

// Debug controls whether the underlying cause of 5xx errors is attached to
// the payload. Set once at startup; leave false in production.
var Debug bool

// Pagination describes the page window of a list response.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// Meta carries request-scoped response metadata.
type Meta struct {
	Timestamp  time.Time   `json:"timestamp"`
	RequestID  string      `json:"request_id,omitempty"`
	Version    string      `json:"version"`
	Endpoint   string      `json:"endpoint"`
	Method     string      `json:"method"`
	Pagination *Pagination `json:"pagination,omitempty"`
	CacheHit   *bool       `json:"cache_hit,omitempty"`
	CacheTTL   *int        `json:"cache_ttl,omitempty"`
}

// Envelope is the uniform response shape for every route.
type Envelope struct {
	Success bool              `json:"success"`
	Data    any               `json:"data"`
	Meta    Meta              `json:"meta"`
	Errors  []*apierror.Error `json:"errors"`
}

func newMeta(r *http.Request) Meta {
	return Meta{
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetReqID(r.Context()),
		Version:   Version,
		Endpoint:  r.URL.Path,
		Method:    r.Method,
	}
}

func write(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// JSON writes a success envelope. Success is inferred from the status code.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	write(w, status, Envelope{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta:    newMeta(r),
	})
}

// Page writes a success envelope including pagination metadata.
func Page(w http.ResponseWriter, r *http.Request, status int, data any, p Pagination) {
	meta := newMeta(r)
	meta.Pagination = &p
	write(w, status, Envelope{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta:    meta,
	})
}

// Error normalizes err through the taxonomy and writes an error envelope.
// Server-side failures are logged with the request-scoped logger.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierror.FromErr(err)
	status := apiErr.Status()

	if status >= http.StatusInternalServerError {
		if logger := platformlogging.FromRequest(r, nil); logger != nil {
			logger.Error("request failed",
				zap.String("code", string(apiErr.Code)),
				zap.Error(err),
			)
		}
		if Debug {
			if cause := apiErr.Unwrap(); cause != nil {
				details := apiErr.Details
				if details == nil {
					details = map[string]any{}
				}
				details["debug"] = cause.Error()
				apiErr.Details = details
			}
		}
	}

	write(w, status, Envelope{
		Success: false,
		Meta:    newMeta(r),
		Errors:  []*apierror.Error{apiErr},
	})
}

// NotFoundHandler synthesizes ROUTE_NOT_FOUND for unmatched paths.
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, apierror.New(apierror.CodeRouteNotFound, "no route matches "+r.Method+" "+r.URL.Path))
	}
}

// MethodNotAllowedHandler renders the same ROUTE_NOT_FOUND envelope for
// unsupported verbs on known paths.
func MethodNotAllowedHandler() http.HandlerFunc {
	return NotFoundHandler()
}
