package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Metrics are package globals, so tests compare against the value before recording.
func TestCounters(t *testing.T) {
	tests := []struct {
		name   string
		record func()
		metric prometheus.Collector
	}{
		{"RecordRequest", func() { RecordRequest("add_tracks", 201, time.Millisecond) }, apiRequestsTotal.WithLabelValues("add_tracks", "201")},
		{"RecordRetry", func() { RecordRetry("playlists") }, retriesTotal.WithLabelValues("playlists")},
		{"RecordBatch ok", func() { RecordBatch(true) }, batchesWrittenTotal},
		{"RecordBatch failed", func() { RecordBatch(false) }, batchFailuresTotal},
		{"RecordRun failed", func() { RecordRun(false, 3) }, runsTotal.WithLabelValues(OutcomeFailed)},
		{"RecordRollback ok", func() { RecordRollback(true) }, rollbacksTotal.WithLabelValues(OutcomeSucceeded)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(tt.metric)
			tt.record()
			after := testutil.ToFloat64(tt.metric)
			if after != before+1 {
				t.Errorf("expected counter to increase by 1, got %v -> %v", before, after)
			}
		})
	}
}

func TestRecordRunSetsGauge(t *testing.T) {
	RecordRun(true, 124)
	if got := testutil.ToFloat64(tracksCollected); got != 124 {
		t.Errorf("tracks collected gauge = %v, want 124", got)
	}
}

func TestHandler(t *testing.T) {
	RecordRetry("tracks")

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("failed to scrape metrics: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}

	if !strings.Contains(string(body), `rsc_retries_total{op="tracks"}`) {
		t.Error("expected rsc_retries_total in scrape output")
	}
}
