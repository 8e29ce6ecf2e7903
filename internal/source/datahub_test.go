package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"energypulse/internal/model"
	"energypulse/logger"
)

func TestDataHubLocalDatasetTier(t *testing.T) {
	cfg := testConfig(t)
	local := `[{"date":"2024-01-03","value":76.0},{"date":"2024-01-01","value":75.2},{"date":"bad","value":1.0}]`
	if err := os.WriteFile(filepath.Join(cfg.Endpoints.LocalDataDir, "historical-wti.json"), []byte(local), 0o644); err != nil {
		t.Fatal(err)
	}
	// No remote server: the local tier must answer before any network use.
	cfg.Endpoints.DataHubWTI = "http://127.0.0.1:1"

	d := NewDataHub(testClient(cfg), testCache(), cfg)
	series, err := d.FetchSeries(context.Background(), Request{Series: "WTI"})
	if err != nil {
		t.Fatal(err)
	}
	if len(series.Points) != 2 {
		t.Fatalf("got %d points, want 2 (unparsable date dropped)", len(series.Points))
	}
	if !series.Points[0].Date.Before(series.Points[1].Date) {
		t.Fatal("local dataset was not sorted ascending")
	}
	if series.Source != "DataHub" {
		t.Fatalf("source = %q", series.Source)
	}
}

func TestDataHubLocalTierNotCountedAsFallback(t *testing.T) {
	cfg := testConfig(t)
	local := `[{"date":"2024-01-01","value":75.2}]`
	if err := os.WriteFile(filepath.Join(cfg.Endpoints.LocalDataDir, "historical-wti.json"), []byte(local), 0o644); err != nil {
		t.Fatal(err)
	}

	d := NewDataHub(testClient(cfg), testCache(), cfg)
	before := logger.Counters().FallbackHits
	if _, err := d.FetchSeries(context.Background(), Request{Series: "WTI"}); err != nil {
		t.Fatal(err)
	}

	// The bundled dataset is the primary offline tier; only substituted
	// data (synthetic quotes, hardcoded rates) counts as a fallback hit.
	if got := logger.Counters().FallbackHits; got != before {
		t.Fatalf("fallback hits went from %d to %d on a local dataset read", before, got)
	}
}

func TestDataHubRemoteCSVFetchedOnce(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte("Date,Price\n2024-01-01,82.1\n2024-01-02,82.5\n"))
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.Endpoints.DataHubBrent = server.URL

	d := NewDataHub(testClient(cfg), testCache(), cfg)
	ctx := context.Background()

	first, err := d.FetchSeries(ctx, Request{Series: "Brent"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := d.FetchSeries(ctx, Request{Series: "Brent"})
	if err != nil {
		t.Fatal(err)
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("upstream called %d times, want 1 (second call served from cache)", got)
	}
	if len(first.Points) != 2 || len(second.Points) != 2 {
		t.Fatalf("points: first=%d second=%d, want 2 each", len(first.Points), len(second.Points))
	}
	if second.Points[1].Value != first.Points[1].Value {
		t.Fatal("cached series differs from fetched series")
	}
}

func TestDataHubRemoteFailureIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer server.Close()

	cfg := testConfig(t)
	cfg.Endpoints.DataHubWTI = server.URL

	d := NewDataHub(testClient(cfg), testCache(), cfg)
	series, err := d.FetchSeries(context.Background(), Request{Series: "WTI"})
	if err != nil {
		t.Fatalf("upstream failure must not surface as an error, got %v", err)
	}
	if series.Reason != model.ReasonUpstreamUnavailable {
		t.Fatalf("reason = %q, want %q", series.Reason, model.ReasonUpstreamUnavailable)
	}
	if !series.Empty() {
		t.Fatal("failed fetch must carry no points")
	}
}

func TestDataHubEmptyCSVNotCached(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte("Date,Price\n"))
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.Endpoints.DataHubWTI = server.URL

	d := NewDataHub(testClient(cfg), testCache(), cfg)
	ctx := context.Background()

	series, _ := d.FetchSeries(ctx, Request{Series: "WTI"})
	if series.Reason != model.ReasonNoData {
		t.Fatalf("reason = %q, want %q", series.Reason, model.ReasonNoData)
	}
	d.FetchSeries(ctx, Request{Series: "WTI"})

	// Empty results never enter the cache, so the second call retries.
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("upstream called %d times, want 2", got)
	}
}

func TestDataHubRejectsUnknownSeries(t *testing.T) {
	cfg := testConfig(t)
	d := NewDataHub(testClient(cfg), testCache(), cfg)

	if _, err := d.FetchSeries(context.Background(), Request{Series: "Gold"}); err == nil {
		t.Fatal("expected an error for an unsupported series")
	}
}
