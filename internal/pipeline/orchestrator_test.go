package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"energypulse/config"
	"energypulse/internal/cache"
	"energypulse/internal/httpx"
	"energypulse/internal/keys"
	"energypulse/internal/model"
	"energypulse/internal/source"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.HTTP.Timeout = 2 * time.Second
	cfg.HTTP.Retry.MaxRetries = 0
	cfg.HTTP.Retry.BaseDelay = time.Millisecond
	cfg.Endpoints.LocalDataDir = t.TempDir()
	// Unreachable by default; tests opt in with httptest servers.
	cfg.Endpoints.DataHubWTI = "http://127.0.0.1:1"
	cfg.Endpoints.DataHubBrent = "http://127.0.0.1:1"
	cfg.Endpoints.OilPrice = "http://127.0.0.1:1"
	cfg.Endpoints.OilPriceDemo = "http://127.0.0.1:1"
	cfg.Endpoints.EIA = "http://127.0.0.1:1"
	cfg.Endpoints.FRED = "http://127.0.0.1:1"
	cfg.Endpoints.Currency = "http://127.0.0.1:1"
	cfg.Endpoints.WorldBank = "http://127.0.0.1:1"
	return cfg
}

func testOrchestrator(cfg *config.Config, reg keys.Registry) *Orchestrator {
	c := cache.New(cache.NewMemoryStore(0), "CACHE_")
	client := httpx.NewClient(cfg.HTTP)
	return NewOrchestrator(
		source.NewDataHub(client, c, cfg),
		source.NewOilPrice(client, c, reg, cfg),
		source.NewEIA(client, c, reg, cfg),
		source.NewFRED(client, c, reg, cfg),
		source.NewCurrency(client, c, cfg),
		source.NewWorldBank(client, c, cfg),
	)
}

func writeLocalWTI(t *testing.T, cfg *config.Config, rows string) {
	t.Helper()
	path := filepath.Join(cfg.Endpoints.LocalDataDir, "historical-wti.json")
	if err := os.WriteFile(path, []byte(rows), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestPercentChange(t *testing.T) {
	day := func(d int, v float64) model.TimePoint {
		return model.TimePoint{Date: time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC), Value: v}
	}
	cases := []struct {
		name   string
		points []model.TimePoint
		want   float64
	}{
		{"two points", []model.TimePoint{day(1, 100), day(2, 110)}, 10.0},
		{"decline", []model.TimePoint{day(1, 100), day(2, 90)}, -10.0},
		{"zero previous", []model.TimePoint{day(1, 0), day(2, 5)}, 0},
		{"one point", []model.TimePoint{day(1, 100)}, 0},
		{"empty", nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PercentChange(tc.points); got != tc.want {
				t.Fatalf("PercentChange = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestResolveRangeStart(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	if got := resolveRangeStart(RangeAll, now); got.Year() != 1900 {
		t.Fatalf("ALL start = %v, want 1900 epoch", got)
	}
	if got := resolveRangeStart(Range1W, now); !got.Equal(now.AddDate(0, 0, -7)) {
		t.Fatalf("1W start = %v", got)
	}
	// Unknown presets behave like 1M.
	if got := resolveRangeStart("bogus", now); !got.Equal(now.AddDate(0, -1, 0)) {
		t.Fatalf("unknown preset start = %v", got)
	}
}

func TestHistoryFiltersByRange(t *testing.T) {
	cfg := testConfig(t)
	writeLocalWTI(t, cfg, `[
		{"date":"2024-05-01","value":70.0},
		{"date":"2024-06-10","value":75.0},
		{"date":"2024-06-14","value":76.0},
		{"date":"2024-07-01","value":99.0}
	]`)

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	orch := testOrchestrator(cfg, keys.Static{}).WithClock(func() time.Time { return now })

	points, err := orch.History(context.Background(), model.CommodityWTI, Range1W)
	if err != nil {
		t.Fatal(err)
	}
	// 2024-05-01 is before the window; 2024-07-01 is after now.
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2: %v", len(points), points)
	}
	if points[0].Value != 75.0 || points[1].Value != 76.0 {
		t.Fatalf("filtered points = %v", points)
	}

	all, err := orch.History(context.Background(), model.CommodityWTI, RangeAll)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("ALL got %d points, want 3 (future point still excluded)", len(all))
	}
}

func TestHistoryRejectsUnknownCommodity(t *testing.T) {
	cfg := testConfig(t)
	orch := testOrchestrator(cfg, keys.Static{})

	if _, err := orch.History(context.Background(), model.Commodity("Gold"), Range1M); err == nil {
		t.Fatal("expected an error for an unsupported commodity")
	}
}

func TestLatestPricesPartialSuccess(t *testing.T) {
	cfg := testConfig(t)
	writeLocalWTI(t, cfg, `[
		{"date":"2024-06-13","value":75.0},
		{"date":"2024-06-14","value":76.5}
	]`)

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	orch := testOrchestrator(cfg, keys.Static{}).WithClock(func() time.Time { return now })

	prices, err := orch.LatestPrices(context.Background(), []model.Commodity{
		model.CommodityWTI, model.CommodityHenryHub, model.CommodityOPEC,
	})
	if err != nil {
		t.Fatalf("partial success must not raise, got %v", err)
	}

	wti := prices[model.CommodityWTI]
	if wti.SourceLabel != "DataHub" {
		t.Fatalf("WTI source = %q, want DataHub (live quote unavailable)", wti.SourceLabel)
	}
	if wti.Price != 76.5 {
		t.Fatalf("WTI price = %v, want 76.5", wti.Price)
	}
	if wti.ChangePercent == 0 {
		t.Fatal("expected a non-zero change percent from the history tail")
	}

	for _, c := range []model.Commodity{model.CommodityHenryHub, model.CommodityOPEC} {
		p := prices[c]
		if !p.RequiresAPIKey {
			t.Fatalf("%s: RequiresAPIKey = false, want true", c)
		}
		if p.Price != 0 || !p.AsOf.IsZero() {
			t.Fatalf("%s: key-gated result must leave numeric fields zero: %+v", c, p)
		}
	}
}

func TestLatestPricesAllSourcesFailed(t *testing.T) {
	cfg := testConfig(t)
	orch := testOrchestrator(cfg, keys.Static{})

	_, err := orch.LatestPrices(context.Background(), []model.Commodity{model.CommodityWTI, model.CommodityBrent})
	if !errors.Is(err, ErrAllSourcesFailed) {
		t.Fatalf("err = %v, want ErrAllSourcesFailed", err)
	}
}

func TestMacroSeriesFiltersByRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"observations":[
			{"date":"2023-01-02","value":"70.0"},
			{"date":"2024-06-10","value":"75.0"},
			{"date":"2024-06-14","value":"76.0"}
		]}`))
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.Endpoints.FRED = server.URL

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	orch := testOrchestrator(cfg, keys.Static{"fred": "k"}).WithClock(func() time.Time { return now })

	series, err := orch.MacroSeries(context.Background(), model.FREDWTI, Range1M)
	if err != nil {
		t.Fatal(err)
	}
	if len(series.Points) != 2 {
		t.Fatalf("got %d points, want 2 (2023 point outside window)", len(series.Points))
	}
}

func TestMacroSeriesSurfacesMissingCredential(t *testing.T) {
	cfg := testConfig(t)
	orch := testOrchestrator(cfg, keys.Static{})

	series, err := orch.MacroSeries(context.Background(), model.FREDGDP, Range1Y)
	if err != nil {
		t.Fatal(err)
	}
	if series.Reason != model.ReasonMissingCredential {
		t.Fatalf("reason = %q, want %q", series.Reason, model.ReasonMissingCredential)
	}
}

func TestInventoryDefaultsToCrudeStocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("facets[series][]"); got != model.EIACrudeStocks {
			t.Errorf("series facet = %q, want crude stocks default", got)
		}
		w.Write([]byte(`{"response":{"data":[{"period":"2024-06-07","value":455.9}]}}`))
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.Endpoints.EIA = server.URL

	orch := testOrchestrator(cfg, keys.Static{"eia": "k"})
	series, err := orch.Inventory(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(series.Points) != 1 || series.Points[0].Value != 455.9 {
		t.Fatalf("points = %v", series.Points)
	}
}

func TestRatesDefaultBaseAndFallback(t *testing.T) {
	cfg := testConfig(t)
	orch := testOrchestrator(cfg, keys.Static{})

	rates, live, err := orch.Rates(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if live {
		t.Fatal("dead feed must answer from the fallback table")
	}
	if rates["eur"] == 0 {
		t.Fatal("fallback table missing eur")
	}
}

func TestDevelopmentIndicatorsPartialSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, model.WBGDP) {
			w.Write([]byte(`[{"total":1},[{"date":"2022","value":25.4}]]`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.Endpoints.WorldBank = server.URL

	orch := testOrchestrator(cfg, keys.Static{})
	indicators := orch.DevelopmentIndicators(context.Background(), "USA")

	if len(indicators) != 3 {
		t.Fatalf("got %d indicators, want 3", len(indicators))
	}
	if len(indicators["gdp"].Points) != 1 {
		t.Fatalf("gdp = %+v", indicators["gdp"])
	}
	for _, name := range []string{"oil_rents", "population"} {
		if indicators[name].Reason != model.ReasonUpstreamUnavailable {
			t.Fatalf("%s reason = %q, want %q", name, indicators[name].Reason, model.ReasonUpstreamUnavailable)
		}
	}
}

func TestLiveQuoteOverridesHistoryTail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{"price":77.8,"formatted":"$77.80","currency":"USD","code":"WTI_USD","created_at":"2024-06-15T10:00:00Z"}}`))
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.Endpoints.OilPriceDemo = server.URL
	writeLocalWTI(t, cfg, `[
		{"date":"2024-06-13","value":75.0},
		{"date":"2024-06-14","value":76.5}
	]`)

	orch := testOrchestrator(cfg, keys.Static{})
	prices, err := orch.LatestPrices(context.Background(), []model.Commodity{model.CommodityWTI})
	if err != nil {
		t.Fatal(err)
	}

	wti := prices[model.CommodityWTI]
	if wti.SourceLabel != "OilPrice API" {
		t.Fatalf("source = %q, want the live quote to win", wti.SourceLabel)
	}
	if wti.Price != 77.8 {
		t.Fatalf("price = %v, want 77.8", wti.Price)
	}
}
