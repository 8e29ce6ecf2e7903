// internal/model/series.go
package model

import (
	"math"
	"time"
)

// Commodity identifies a tracked commodity.
type Commodity string

const (
	CommodityWTI      Commodity = "WTI"
	CommodityBrent    Commodity = "Brent"
	CommodityHenryHub Commodity = "HenryHub"
	CommodityOPEC     Commodity = "OPEC"
)

// Reason classifies why an adapter produced no usable data. Empty means the
// fetch succeeded.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonMissingCredential   Reason = "missing-credential"
	ReasonUpstreamUnavailable Reason = "upstream-unavailable"
	ReasonNoData              Reason = "no-data"
)

// TimePoint is a single observation in a series. Value is always finite;
// rows that fail to parse upstream are dropped before a point is built.
type TimePoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// NormalizedSeries is the unified output of every source adapter: points
// sorted ascending by date, plus the upstream that produced them. The slice
// is owned by the caller once returned.
type NormalizedSeries struct {
	Source string      `json:"source"`
	Points []TimePoint `json:"points"`
	Reason Reason      `json:"reason,omitempty"`
}

// Empty reports whether the series carries no points.
func (s NormalizedSeries) Empty() bool { return len(s.Points) == 0 }

// Latest returns the last point of the series.
func (s NormalizedSeries) Latest() (TimePoint, bool) {
	if len(s.Points) == 0 {
		return TimePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// LatestPrice is the quote shape returned for dashboard price cards. When a
// commodity needs a key that is not configured, RequiresAPIKey is set and
// the numeric fields are left zero.
type LatestPrice struct {
	Commodity      Commodity `json:"commodity"`
	Price          float64   `json:"price"`
	AsOf           time.Time `json:"as_of"`
	SourceLabel    string    `json:"source_label"`
	ChangePercent  float64   `json:"change_percent"`
	RequiresAPIKey bool      `json:"requires_api_key,omitempty"`
	Message        string    `json:"message,omitempty"`
}

// ValidPoint reports whether a parsed observation may enter a series.
// Non-finite values and zero dates are dropped, never zero-filled.
func ValidPoint(p TimePoint) bool {
	return !p.Date.IsZero() && !math.IsNaN(p.Value) && !math.IsInf(p.Value, 0)
}
