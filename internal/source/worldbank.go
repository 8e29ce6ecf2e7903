// internal/source/worldbank.go
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"energypulse/config"
	"energypulse/internal/cache"
	"energypulse/internal/httpx"
	"energypulse/internal/model"
	"energypulse/logger"
)

// WorldBank fetches yearly development indicators. Single tier, no key.
// The upstream responds with a two-element array, metadata then rows, and
// orders rows newest first; they are reversed to satisfy the ascending
// contract.
type WorldBank struct {
	client *httpx.Client
	cache  *cache.ExpiringCache
	cfg    *config.Config
	log    *logger.Log
}

func NewWorldBank(client *httpx.Client, c *cache.ExpiringCache, cfg *config.Config) *WorldBank {
	return &WorldBank{client: client, cache: c, cfg: cfg, log: logger.GetLogger()}
}

func (w *WorldBank) Name() string { return "WorldBank" }

type wbRow struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// FetchSeries returns the indicator req.Series for req.Country between the
// years of req.Start and req.End.
func (w *WorldBank) FetchSeries(ctx context.Context, req Request) (model.NormalizedSeries, error) {
	if req.Series == "" {
		return model.NormalizedSeries{}, errors.New("worldbank: indicator code is required")
	}
	country := req.Country
	if country == "" {
		country = "USA"
	}

	startYear, endYear := "2015", "2023"
	if !req.Start.IsZero() {
		startYear = fmt.Sprintf("%d", req.Start.Year())
	}
	if !req.End.IsZero() {
		endYear = fmt.Sprintf("%d", req.End.Year())
	}

	log := w.log.WithComponent("worldbank").WithFields(logger.Fields{"indicator": req.Series, "country": country})
	key := cacheKey("WB", country, req.Series, startYear, endYear)

	var cached []model.TimePoint
	if w.cache.Get(key, &cached) {
		log.Debug("using cached series")
		return model.NormalizedSeries{Source: w.Name(), Points: cached}, nil
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("date", startYear+":"+endYear)
	params.Set("per_page", "1000")

	endpoint := fmt.Sprintf("%s/country/%s/indicator/%s", w.cfg.Endpoints.WorldBank, country, req.Series)
	body, err := w.client.Get(ctx, endpoint, params, nil)
	if err != nil {
		log.WithError(err).Warn("upstream fetch failed")
		return model.NormalizedSeries{Source: w.Name(), Reason: model.ReasonUpstreamUnavailable}, nil
	}

	var elements []json.RawMessage
	if err := decodeJSON(w.Name(), body, &elements); err != nil {
		log.WithError(err).Warn("response did not match expected schema")
		return model.NormalizedSeries{Source: w.Name(), Reason: model.ReasonNoData}, nil
	}
	if len(elements) < 2 {
		log.Warn("response missing data element")
		return model.NormalizedSeries{Source: w.Name(), Reason: model.ReasonNoData}, nil
	}

	var rows []wbRow
	if err := decodeJSON(w.Name(), elements[1], &rows); err != nil {
		log.WithError(err).Warn("data element did not match expected schema")
		return model.NormalizedSeries{Source: w.Name(), Reason: model.ReasonNoData}, nil
	}

	// Rows arrive newest first; build then reverse.
	points := make([]model.TimePoint, 0, len(rows))
	for _, row := range rows {
		if row.Value == nil {
			continue
		}
		date, ok := parseDate(row.Date + "-01-01")
		if !ok {
			continue
		}
		p := model.TimePoint{Date: date, Value: *row.Value}
		if model.ValidPoint(p) {
			points = append(points, p)
		}
	}
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	logger.RecordFetch(w.Name(), len(points))

	if len(points) == 0 {
		return model.NormalizedSeries{Source: w.Name(), Reason: model.ReasonNoData}, nil
	}

	w.cache.Set(key, points, w.cfg.TTL.Historical)
	return model.NormalizedSeries{Source: w.Name(), Points: points}, nil
}

// FetchGDP is a convenience wrapper for the GDP indicator.
func (w *WorldBank) FetchGDP(ctx context.Context, country string) (model.NormalizedSeries, error) {
	return w.FetchSeries(ctx, Request{Series: model.WBGDP, Country: country})
}

// FetchOilRents returns oil rents as a share of GDP.
func (w *WorldBank) FetchOilRents(ctx context.Context, country string) (model.NormalizedSeries, error) {
	return w.FetchSeries(ctx, Request{Series: model.WBOilRents, Country: country})
}

// FetchPopulation returns total population.
func (w *WorldBank) FetchPopulation(ctx context.Context, country string) (model.NormalizedSeries, error) {
	return w.FetchSeries(ctx, Request{Series: model.WBPopulation, Country: country})
}
