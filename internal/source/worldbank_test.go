package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"energypulse/internal/model"
)

func TestWorldBankReversesToAscending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/country/USA/indicator/"+model.WBGDP) {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("date"); got != "2015:2023" {
			t.Errorf("date = %q", got)
		}
		// Newest first, one null to drop.
		w.Write([]byte(`[
			{"page":1,"total":3},
			[
				{"date":"2023","value":27.0},
				{"date":"2022","value":null},
				{"date":"2021","value":23.3}
			]
		]`))
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.Endpoints.WorldBank = server.URL

	wb := NewWorldBank(testClient(cfg), testCache(), cfg)
	series, err := wb.FetchSeries(context.Background(), Request{Series: model.WBGDP})
	if err != nil {
		t.Fatal(err)
	}
	if len(series.Points) != 2 {
		t.Fatalf("got %d points, want 2 (null dropped)", len(series.Points))
	}
	if series.Points[0].Date.Year() != 2021 || series.Points[1].Date.Year() != 2023 {
		t.Fatalf("points not ascending: %v", series.Points)
	}
	if series.Points[0].Value != 23.3 {
		t.Fatalf("first value = %v, want 23.3", series.Points[0].Value)
	}
}

func TestWorldBankMissingDataElement(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Error responses carry only the metadata element.
		w.Write([]byte(`[{"message":[{"id":"120","value":"Invalid indicator"}]}]`))
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.Endpoints.WorldBank = server.URL

	wb := NewWorldBank(testClient(cfg), testCache(), cfg)
	series, err := wb.FetchSeries(context.Background(), Request{Series: "BAD.CODE"})
	if err != nil {
		t.Fatalf("shape mismatch must not surface as an error, got %v", err)
	}
	if series.Reason != model.ReasonNoData {
		t.Fatalf("reason = %q, want %q", series.Reason, model.ReasonNoData)
	}
}

func TestWorldBankCountryOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/country/SAU/") {
			t.Errorf("path = %q, want SAU", r.URL.Path)
		}
		w.Write([]byte(`[{"total":1},[{"date":"2022","value":42.0}]]`))
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.Endpoints.WorldBank = server.URL

	wb := NewWorldBank(testClient(cfg), testCache(), cfg)
	series, err := wb.FetchSeries(context.Background(), Request{Series: model.WBOilRents, Country: "SAU"})
	if err != nil {
		t.Fatal(err)
	}
	if len(series.Points) != 1 || series.Points[0].Value != 42.0 {
		t.Fatalf("points = %v", series.Points)
	}
}
