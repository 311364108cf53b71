package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/cache"
	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/config"
	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/ingest"
	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/models"
)

func serve(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

// TestLatest_NotReady verifies the fixed 503 body while the cache was never populated.
func TestLatest_NotReady(t *testing.T) {
	srv := New(config.Config{}, cache.NewSlot(nil), nil)

	w := serve(t, srv, http.MethodGet, "/api/weather/latest")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"error": NotReadyMessage}, body)
}

// TestLatest_ReturnsSnapshotVerbatim verifies the body is byte-identical to the cached snapshot.
func TestLatest_ReturnsSnapshotVerbatim(t *testing.T) {
	snapshot := `{"observations":[{"stationID":"X","metric":{"temp":21.5}}]}`
	slot := cache.NewSlot(nil)
	slot.Set(models.Snapshot(snapshot))
	srv := New(config.Config{}, slot, nil)

	w := serve(t, srv, http.MethodGet, "/api/weather/latest")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, snapshot, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

type stubFetcher struct{ snapshot models.Snapshot }

func (s stubFetcher) FetchSnapshot(ctx context.Context) (models.Snapshot, error) {
	return s.snapshot, nil
}

type stubStore struct{}

func (stubStore) InsertObservation(ctx context.Context, rec models.ObservationRecord) (int64, error) {
	return 1, nil
}

func (stubStore) LatestObservation(ctx context.Context) (*models.StoredObservation, error) {
	return nil, nil
}

// TestLatest_AfterFetchRun wires a real ingestion task to the handler through a shared slot.
func TestLatest_AfterFetchRun(t *testing.T) {
	snapshot := `{"observations":[{"stationID":"ITAIPE123","humidity":80}]}`
	slot := cache.NewSlot(nil)
	task, err := ingest.NewTask(ingest.Options{
		Mode:    ingest.ModeFetch,
		Slot:    slot,
		Store:   stubStore{},
		Fetcher: stubFetcher{snapshot: models.Snapshot(snapshot)},
		Timeout: time.Second,
	})
	require.NoError(t, err)
	srv := New(config.Config{}, slot, nil)

	assert.Equal(t, http.StatusServiceUnavailable, serve(t, srv, http.MethodGet, "/api/weather/latest").Code)

	require.Equal(t, ingest.OutcomeOK, task.Run(context.Background()))

	w := serve(t, srv, http.MethodGet, "/api/weather/latest")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, snapshot, w.Body.String())
}

func TestHealth_ReportsReadiness(t *testing.T) {
	slot := cache.NewSlot(nil)
	srv := New(config.Config{}, slot, nil)

	w := serve(t, srv, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","ready":false}`, w.Body.String())

	slot.Set(models.Snapshot(`{}`))
	w = serve(t, srv, http.MethodGet, "/healthz")
	assert.JSONEq(t, `{"status":"ok","ready":true}`, w.Body.String())
}

func TestCORS_Preflight(t *testing.T) {
	srv := New(config.Config{}, cache.NewSlot(nil), nil)

	w := serve(t, srv, http.MethodOptions, "/api/weather/latest")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsRoute(t *testing.T) {
	srv := New(config.Config{}, cache.NewSlot(nil), nil)
	serve(t, srv, http.MethodGet, "/api/weather/latest")

	w := serve(t, srv, http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestStaticFiles(t *testing.T) {
	srv := New(config.Config{StaticDir: "testdata"}, cache.NewSlot(nil), nil)

	w := serve(t, srv, http.MethodGet, "/dashboard.html")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<title>weather</title>")

	w = serve(t, srv, http.MethodPost, "/dashboard.html")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStaticFiles_DisabledByDefault(t *testing.T) {
	srv := New(config.Config{}, cache.NewSlot(nil), nil)

	w := serve(t, srv, http.MethodGet, "/dashboard.html")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequestID_ClientValueHandling(t *testing.T) {
	tests := []struct {
		name   string
		header string
		echoed bool
	}{
		{"valid id echoed", "abc-123-DEF", true},
		{"max length echoed", strings.Repeat("a", 128), true},
		{"too long replaced", strings.Repeat("a", 129), false},
		{"bad charset replaced", "id with spaces;<script>", false},
		{"empty generated", "", false},
	}
	srv := New(config.Config{}, cache.NewSlot(nil), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			if tt.header != "" {
				req.Header.Set(requestIDHeader, tt.header)
			}
			w := httptest.NewRecorder()
			srv.Engine().ServeHTTP(w, req)

			got := w.Header().Get(requestIDHeader)
			if tt.echoed {
				assert.Equal(t, tt.header, got)
				return
			}
			assert.NotEqual(t, tt.header, got)
			_, err := uuid.Parse(got)
			assert.NoError(t, err, "replacement should be a generated uuid")
		})
	}
}
