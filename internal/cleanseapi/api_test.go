package cleanseapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/demoscrub/internal/cleanse"
)

// fakeService is an in-memory CleanseService for handler tests.
type fakeService struct {
	mu      sync.Mutex
	records map[string]*cleanse.CleansedRecord
	reviews []*cleanse.ReviewEntry
	runs    map[string]*cleanse.Run

	batchErr error
	startErr error
	listErr  error
}

func newFakeService() *fakeService {
	return &fakeService{
		records: make(map[string]*cleanse.CleansedRecord),
		runs:    make(map[string]*cleanse.Run),
	}
}

func (f *fakeService) CleanseBatch(ctx context.Context, raws []*cleanse.RawRecord) ([]*cleanse.CleansedRecord, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*cleanse.CleansedRecord, 0, len(raws))
	for _, raw := range raws {
		rec := &cleanse.CleansedRecord{
			ID:         raw.ID,
			Confidence: cleanse.ConfidenceHigh,
		}
		f.records[rec.ID] = rec
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeService) GetRecord(ctx context.Context, id string) (*cleanse.CleansedRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	return rec, ok, nil
}

func (f *fakeService) ListReview(ctx context.Context, status cleanse.ReviewStatus, limit int) ([]*cleanse.ReviewEntry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*cleanse.ReviewEntry
	for _, e := range f.reviews {
		if e.Status != status {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeService) StartRun(ctx context.Context) (*cleanse.Run, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	run := &cleanse.Run{ID: "run-001", Status: cleanse.RunPending}
	f.runs[run.ID] = run
	return run, nil
}

func (f *fakeService) GetRun(ctx context.Context, id string) (*cleanse.Run, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	return run, ok, nil
}

func newTestRouter(t *testing.T) (chi.Router, *fakeService) {
	t.Helper()
	svc := newFakeService()
	api := New(nil, svc)
	r := chi.NewRouter()
	api.RegisterRoutes(r)
	return r, svc
}

//  New / constructor

func TestNew_NilLogger(t *testing.T) {
	t.Parallel()

	api := New(nil, newFakeService())
	if api == nil {
		t.Fatal("New(nil, svc) returned nil API")
	}
	if api.logger == nil {
		t.Fatal("New(nil, svc) left logger nil; expected Nop logger")
	}
}

func TestNew_WithLogger(t *testing.T) {
	t.Parallel()

	api := New(log.Nop(), newFakeService())
	if api.logger == nil {
		t.Fatal("New(logger, svc) left logger nil")
	}
}

func TestNew_NilService_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("New(nil, nil) did not panic; expected panic for nil service")
		}
	}()
	New(nil, nil)
}

// Routing

func TestRegisterRoutes_Records(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
	}{
		{"POST valid batch", http.MethodPost, `{"records":[{"id":"r1","sex":"M","race":"White","age":"45"}]}`, http.StatusOK},
		{"POST invalid JSON", http.MethodPost, `{bad`, http.StatusBadRequest},
		{"POST empty batch", http.MethodPost, `{"records":[]}`, http.StatusBadRequest},
		{"PUT not allowed", http.MethodPut, "", http.StatusMethodNotAllowed},
		{"DELETE not allowed", http.MethodDelete, "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, "/api/v1/records", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("%s /api/v1/records = %d, want %d", tt.method, rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRegisterRoutes_NotFound(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	paths := []string{
		"/",
		"/api/v1",
		"/api/v2/records",
		"/api/v1/unknown",
	}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != http.StatusNotFound {
				t.Errorf("GET %s = %d, want %d", path, rec.Code, http.StatusNotFound)
			}
		})
	}
}

// Batch cleansing

func TestHandleCleanseRecords_ReturnsRecordsAndSummary(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	body := `{"records":[
		{"id":"r1","sex":"M","race":"Caucasian","age":"45"},
		{"id":"r2","sex":"Female","race":"Asian","age":"30"}
	]}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/records", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp cleanseResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(resp.Records))
	}
	if resp.Summary == nil {
		t.Fatal("expected summary in response")
	}
	if resp.Summary.TotalRecords != 2 {
		t.Errorf("summary.TotalRecords = %d, want 2", resp.Summary.TotalRecords)
	}
}

func TestHandleCleanseRecords_GeneratesMissingIDs(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	body := `{"records":[{"sex":"M","race":"White","age":"45"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/records", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp cleanseResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Records[0].ID == "" {
		t.Error("expected generated ID for record submitted without one")
	}
}

func TestHandleCleanseRecords_TooManyRecords(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	var sb strings.Builder
	sb.WriteString(`{"records":[`)
	for i := 0; i <= maxBatchRecords; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"sex":"M","race":"White","age":"45"}`)
	}
	sb.WriteString(`]}`)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/records", strings.NewReader(sb.String()))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleCleanseRecords_ServiceError(t *testing.T) {
	t.Parallel()

	r, svc := newTestRouter(t)
	svc.batchErr = xerrors.New("backend unavailable")

	body := `{"records":[{"id":"r1","sex":"M","race":"White","age":"45"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/records", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

// Record lookup

func TestHandleGetRecord(t *testing.T) {
	t.Parallel()

	r, svc := newTestRouter(t)
	svc.records["r1"] = &cleanse.CleansedRecord{ID: "r1", Confidence: cleanse.ConfidenceHigh}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/records/r1", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got cleanse.CleansedRecord
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.ID != "r1" {
		t.Errorf("record ID = %q, want %q", got.ID, "r1")
	}
}

func TestHandleGetRecord_NotFound(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/records/missing", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// Review queue

func TestHandleListReview_DefaultsToPending(t *testing.T) {
	t.Parallel()

	r, svc := newTestRouter(t)
	svc.reviews = []*cleanse.ReviewEntry{
		{RecordID: "r1", Status: cleanse.ReviewPending},
		{RecordID: "r2", Status: cleanse.ReviewApproved},
		{RecordID: "r3", Status: cleanse.ReviewPending},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/review", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Entries []*cleanse.ReviewEntry `json:"entries"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2 pending", len(resp.Entries))
	}
}

func TestHandleListReview_EmptyQueueReturnsArray(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/review", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `"entries":[]`) {
		t.Errorf("expected empty entries array, got %s", rec.Body.String())
	}
}

func TestHandleListReview_BadParams(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	paths := []string{
		"/api/v1/review?status=bogus",
		"/api/v1/review?limit=0",
		"/api/v1/review?limit=9999",
		"/api/v1/review?limit=abc",
	}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("GET %s = %d, want %d", path, rec.Code, http.StatusBadRequest)
			}
		})
	}
}

// Runs

func TestHandleStartRun_Accepted(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}

	var run cleanse.Run
	if err := json.NewDecoder(rec.Body).Decode(&run); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if run.ID == "" {
		t.Error("expected run ID in response")
	}
	if run.Status != cleanse.RunPending {
		t.Errorf("run status = %q, want %q", run.Status, cleanse.RunPending)
	}
}

func TestHandleStartRun_NoSource(t *testing.T) {
	t.Parallel()

	r, svc := newTestRouter(t)
	svc.startErr = cleanse.ErrNoSource

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestHandleGetRun(t *testing.T) {
	t.Parallel()

	r, svc := newTestRouter(t)
	svc.runs["run-7"] = &cleanse.Run{ID: "run-7", Status: cleanse.RunComplete}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/run-7", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var run cleanse.Run
	if err := json.NewDecoder(rec.Body).Decode(&run); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if run.Status != cleanse.RunComplete {
		t.Errorf("run status = %q, want %q", run.Status, cleanse.RunComplete)
	}
}

func TestHandleGetRun_NotFound(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/missing", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// Fuzz

func FuzzCleanseRecords(f *testing.F) {
	svc := newFakeService()
	api := New(nil, svc)
	r := chi.NewRouter()
	api.RegisterRoutes(r)

	seeds := []struct {
		body        []byte
		contentType string
	}{
		{nil, ""},
		{[]byte(""), "application/json"},
		{[]byte("{}"), "application/json"},
		{[]byte(`{"records":[{"id":"r1","sex":"M","race":"White","age":"45"}]}`), "application/json"},
		{[]byte(`{"records":[{"sex":"","race":"","age":""}]}`), "application/json"},
		{[]byte("{invalid json"), "application/json"},
		{[]byte("\x00\x01\x02\xff\xfe"), "application/octet-stream"},
		{[]byte("<xml>not json</xml>"), "text/xml"},
		{[]byte(strings.Repeat("a", 10000)), "text/plain"},
	}
	for _, s := range seeds {
		f.Add(s.body, s.contentType)
	}

	f.Fuzz(func(t *testing.T, body []byte, contentType string) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/records", strings.NewReader(string(body)))
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		rec := httptest.NewRecorder()

		// Must not panic
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK && rec.Code != http.StatusBadRequest {
			t.Errorf("POST /api/v1/records with body len=%d content-type=%q = %d, want 200 or 400",
				len(body), contentType, rec.Code)
		}
	})
}
