package cleanseapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/demoscrub/internal/cleanse"
)

const maxBatchRecords = 1000

type cleanseRequest struct {
	Records []*cleanse.RawRecord `json:"records"`
}

type cleanseResponse struct {
	Records []*cleanse.CleansedRecord `json:"records"`
	Summary *cleanse.Summary          `json:"summary"`
}

func (a *API) handleCleanseRecords(w http.ResponseWriter, r *http.Request) {
	var req cleanseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if len(req.Records) == 0 {
		http.Error(w, `{"error":"records must not be empty"}`, http.StatusBadRequest)
		return
	}
	if len(req.Records) > maxBatchRecords {
		http.Error(w, `{"error":"too many records"}`, http.StatusBadRequest)
		return
	}
	for _, raw := range req.Records {
		if raw.ID == "" {
			raw.ID = ulid.Make().String()
		}
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Int("demoscrub.batch.size", len(req.Records)))

	records, err := a.svc.CleanseBatch(r.Context(), req.Records)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to cleanse batch", "records", len(req.Records))
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, cleanseResponse{Records: records, Summary: cleanse.Summarize(records)})
}

func (a *API) handleListReview(w http.ResponseWriter, r *http.Request) {
	status := cleanse.ReviewStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = cleanse.ReviewPending
	}
	switch status {
	case cleanse.ReviewPending, cleanse.ReviewApproved, cleanse.ReviewCorrected:
	default:
		http.Error(w, `{"error":"unknown review status"}`, http.StatusBadRequest)
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			http.Error(w, `{"error":"limit must be between 1 and 1000"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("demoscrub.review.status", string(status)),
		attribute.Int("demoscrub.review.limit", limit),
	)

	entries, err := a.svc.ListReview(r.Context(), status, limit)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list review queue", "status", string(status))
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*cleanse.ReviewEntry{}
	}

	writeJSON(w, map[string]any{"entries": entries})
}

func (a *API) handleStartRun(w http.ResponseWriter, r *http.Request) {
	run, err := a.svc.StartRun(r.Context())
	if err != nil {
		if err == cleanse.ErrNoSource {
			http.Error(w, `{"error":"no record source configured"}`, http.StatusConflict)
			return
		}
		a.logger.Error(r.Context(), err, "failed to start run")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("demoscrub.run.id", run.ID))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(run)
}
