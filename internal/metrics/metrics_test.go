package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestMetricsInit verifies that Init() is idempotent and registers metrics
func TestMetricsInit(t *testing.T) {
	Init()
	Init()
	Init()

	if RunDuration == nil {
		t.Error("RunDuration should be initialized")
	}
	if FilesExaminedTotal == nil {
		t.Error("FilesExaminedTotal should be initialized")
	}
	if FilesModifiedTotal == nil {
		t.Error("FilesModifiedTotal should be initialized")
	}
	if FileErrorsTotal == nil {
		t.Error("FileErrorsTotal should be initialized")
	}
	if HTTPRequestsTotal == nil {
		t.Error("HTTPRequestsTotal should be initialized")
	}

	// Vec metrics only appear once a label set exists
	RecordFileError("read")
	LastRunFiles.WithLabelValues("examined").Set(0)
	HTTPRequestsTotal.WithLabelValues("health", "GET", "200").Add(0)
	HTTPRequestDuration.WithLabelValues("health", "GET", "200").Observe(0)

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	expectedMetrics := []string{
		"glyphsweep_run_duration_seconds",
		"glyphsweep_files_examined_total",
		"glyphsweep_files_modified_total",
		"glyphsweep_file_errors_total",
		"glyphsweep_glyphs_removed_total",
		"glyphsweep_bytes_saved_total",
		"glyphsweep_file_size_bytes",
		"glyphsweep_last_run_timestamp",
		"glyphsweep_last_run_files",
		"glyphsweep_errors_total",
		"glyphsweep_http_request_duration_seconds",
		"glyphsweep_http_requests_total",
	}

	foundMetrics := make(map[string]bool)
	for _, mf := range mfs {
		foundMetrics[mf.GetName()] = true
	}

	for _, expected := range expectedMetrics {
		if !foundMetrics[expected] {
			t.Errorf("Expected metric %s not found in registry", expected)
		}
	}
}

// TestStandardBuckets verifies that bucket definitions are ascending
func TestStandardBuckets(t *testing.T) {
	for name, buckets := range map[string][]float64{
		"duration": DurationBuckets,
		"bytes":    BytesBuckets,
		"api":      APIBuckets,
	} {
		for i := 1; i < len(buckets); i++ {
			if buckets[i] <= buckets[i-1] {
				t.Errorf("%s buckets not ascending at %d: %v", name, i, buckets)
			}
		}
	}
}

func TestRecordRun(t *testing.T) {
	Init()

	RecordRun(1500*time.Millisecond, 3, 1, 0)

	if got := testutil.ToFloat64(LastRunFiles.WithLabelValues("examined")); got != 3 {
		t.Errorf("examined gauge = %v, want 3", got)
	}
	if got := testutil.ToFloat64(LastRunFiles.WithLabelValues("modified")); got != 1 {
		t.Errorf("modified gauge = %v, want 1", got)
	}
	if testutil.ToFloat64(LastRunTimestamp) == 0 {
		t.Error("last run timestamp not set")
	}
}

func TestHealthEndpoint(t *testing.T) {
	Init()
	mux := NewMux(nil)

	SetRunResult(nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthy status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"healthy":true`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}

	SetRunResult(errors.New("stat root: no such file"))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "no such file") {
		t.Errorf("expected last error in body: %s", rec.Body.String())
	}

	SetRunResult(nil)
}

func TestTriggerEndpoint(t *testing.T) {
	Init()
	mux := NewMux(nil)

	ch := make(chan os.Signal, 1)
	SetTriggerChannel(ch)
	defer SetTriggerChannel(nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trigger", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /trigger = %d, want 405", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trigger", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("POST /trigger = %d, want 200", rec.Code)
	}

	// Channel is full until the scheduler drains it
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trigger", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("second POST /trigger = %d, want 503", rec.Code)
	}

	select {
	case <-ch:
	default:
		t.Error("expected a queued trigger")
	}

	if got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("trigger", "POST", "200")); got < 1 {
		t.Errorf("trigger request counter = %v", got)
	}
}

func TestAPIMount(t *testing.T) {
	Init()
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	mux := NewMux(api)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("/api/ not routed to api handler, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	NewMux(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("without api handler expected 404, got %d", rec.Code)
	}
}
