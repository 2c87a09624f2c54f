// Package cleanseapi exposes the cleansing service over HTTP.
package cleanseapi

import (
	"context"
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/demoscrub/internal/cleanse"
)

// CleanseService defines the business operations cleanseapi needs.
type CleanseService interface {
	CleanseBatch(ctx context.Context, raws []*cleanse.RawRecord) ([]*cleanse.CleansedRecord, error)
	GetRecord(ctx context.Context, id string) (*cleanse.CleansedRecord, bool, error)
	ListReview(ctx context.Context, status cleanse.ReviewStatus, limit int) ([]*cleanse.ReviewEntry, error)
	StartRun(ctx context.Context) (*cleanse.Run, error)
	GetRun(ctx context.Context, id string) (*cleanse.Run, bool, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    CleanseService
}

// New creates a new API handler.
func New(logger log.Logger, svc CleanseService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("cleanse service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/records", a.handleCleanseRecords)
		r.Get("/records/{id}", a.handleGetRecord)
		r.Get("/review", a.handleListReview)
		r.Post("/runs", a.handleStartRun)
		r.Get("/runs/{id}", a.handleGetRun)
	})
}

func (a *API) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("demoscrub.record.id", id))

	rec, ok, err := a.svc.GetRecord(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get record", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	writeJSON(w, rec)
}

func (a *API) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("demoscrub.run.id", id))

	run, ok, err := a.svc.GetRun(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get run", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	span.SetAttributes(attribute.String("demoscrub.run.status", string(run.Status)))

	writeJSON(w, run)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
