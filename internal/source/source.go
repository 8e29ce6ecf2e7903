// internal/source/source.go
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"energypulse/internal/model"
)

// Request carries the logical parameters of a series fetch. Adapters
// validate the fields they need and reject anything malformed; unexpected
// upstream unavailability is never an error, only a Reason on the result.
type Request struct {
	Series  string
	Start   time.Time
	End     time.Time
	Country string
}

// SeriesFetcher is the contract every historical-series adapter satisfies.
type SeriesFetcher interface {
	Name() string
	FetchSeries(ctx context.Context, req Request) (model.NormalizedSeries, error)
}

// DataShapeError reports a 2xx response whose body did not match the
// expected schema. Adapters treat it as zero usable rows, not a failure
// that escapes to the orchestrator.
type DataShapeError struct {
	Source string
	Detail string
}

func (e *DataShapeError) Error() string {
	return fmt.Sprintf("%s: unexpected response shape: %s", e.Source, e.Detail)
}

// flexFloat unmarshals a numeric field that upstreams deliver either as a
// JSON number or as a string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" || s == "." {
		*f = flexFloat(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = flexFloat(math.NaN())
		return nil
	}
	*f = flexFloat(v)
	return nil
}

// cacheKey builds a deterministic key from the adapter name and all logical
// parameters so identical requests hit the same entry.
func cacheKey(adapter string, parts ...string) string {
	return adapter + "_" + strings.Join(parts, "_")
}

// parseDate accepts the calendar and datetime formats the upstreams emit.
func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{
		"2006-01-02",
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// sortPoints orders a series ascending by date. Duplicate dates are kept;
// callers tolerate them.
func sortPoints(points []model.TimePoint) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
}

// decodeJSON unmarshals body into out, wrapping failures as shape errors.
func decodeJSON(source string, body []byte, out interface{}) error {
	if err := json.Unmarshal(body, out); err != nil {
		return &DataShapeError{Source: source, Detail: err.Error()}
	}
	return nil
}
