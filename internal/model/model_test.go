package model

import (
	"math"
	"testing"
	"time"
)

func TestQuoteZero(t *testing.T) {
	synthetic := Quote{Formatted: "N/A", Currency: "USD", Code: OilPriceWTI, CreatedAt: time.Now()}
	if !synthetic.Zero() {
		t.Fatal("zero-price record must read as the synthetic quote")
	}
	if (Quote{Price: 75.2}).Zero() {
		t.Fatal("priced quote must not read as synthetic")
	}
}

func TestValidPoint(t *testing.T) {
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if !ValidPoint(TimePoint{Date: date, Value: 75.2}) {
		t.Fatal("finite dated point must be valid")
	}
	if ValidPoint(TimePoint{Value: 75.2}) {
		t.Fatal("zero date must be dropped")
	}
	if ValidPoint(TimePoint{Date: date, Value: math.NaN()}) {
		t.Fatal("NaN must be dropped")
	}
	if ValidPoint(TimePoint{Date: date, Value: math.Inf(1)}) {
		t.Fatal("Inf must be dropped")
	}
}

func TestSeriesLatest(t *testing.T) {
	if _, ok := (NormalizedSeries{}).Latest(); ok {
		t.Fatal("empty series has no latest point")
	}

	s := NormalizedSeries{Points: []TimePoint{
		{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Value: 75.2},
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Value: 76.0},
	}}
	latest, ok := s.Latest()
	if !ok || latest.Value != 76.0 {
		t.Fatalf("latest = %+v, ok = %v", latest, ok)
	}
}
