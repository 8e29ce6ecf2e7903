// internal/source/fred.go
package source

import (
	"context"
	"errors"
	"net/url"

	"energypulse/config"
	"energypulse/internal/cache"
	"energypulse/internal/httpx"
	"energypulse/internal/keys"
	"energypulse/internal/model"
	"energypulse/logger"
)

// FRED fetches economic time series from the St. Louis Fed API. Like EIA it
// is key-gated and short-circuits with missing-credential when no key is
// configured.
type FRED struct {
	client *httpx.Client
	cache  *cache.ExpiringCache
	keys   keys.Registry
	cfg    *config.Config
	log    *logger.Log
}

func NewFRED(client *httpx.Client, c *cache.ExpiringCache, reg keys.Registry, cfg *config.Config) *FRED {
	return &FRED{client: client, cache: c, keys: reg, cfg: cfg, log: logger.GetLogger()}
}

func (f *FRED) Name() string { return "FRED" }

type fredResponse struct {
	Observations []fredObservation `json:"observations"`
}

type fredObservation struct {
	Date  string    `json:"date"`
	Value flexFloat `json:"value"`
}

// FetchSeries returns observations for the given FRED series id. Missing
// observations (reported upstream as ".") are dropped, never zero-filled.
func (f *FRED) FetchSeries(ctx context.Context, req Request) (model.NormalizedSeries, error) {
	if req.Series == "" {
		return model.NormalizedSeries{}, errors.New("fred: series id is required")
	}

	log := f.log.WithComponent("fred").WithFields(logger.Fields{"series": req.Series})
	key := cacheKey("FRED", req.Series, dateParam(req.Start), dateParam(req.End))

	var cached []model.TimePoint
	if f.cache.Get(key, &cached) {
		log.Debug("using cached series")
		return model.NormalizedSeries{Source: f.Name(), Points: cached}, nil
	}

	apiKey, ok := f.keys.Get("fred")
	if !ok {
		log.Warn("no API key configured")
		return model.NormalizedSeries{Source: f.Name(), Reason: model.ReasonMissingCredential}, nil
	}

	params := url.Values{}
	params.Set("series_id", req.Series)
	params.Set("api_key", apiKey)
	params.Set("file_type", "json")
	if !req.Start.IsZero() {
		params.Set("observation_start", dateParam(req.Start))
	}
	if !req.End.IsZero() {
		params.Set("observation_end", dateParam(req.End))
	}

	body, err := f.client.Get(ctx, f.cfg.Endpoints.FRED+"/series/observations", params, nil)
	if err != nil {
		log.WithError(err).Warn("upstream fetch failed")
		return model.NormalizedSeries{Source: f.Name(), Reason: model.ReasonUpstreamUnavailable}, nil
	}

	var resp fredResponse
	if err := decodeJSON(f.Name(), body, &resp); err != nil {
		log.WithError(err).Warn("response did not match expected schema")
		return model.NormalizedSeries{Source: f.Name(), Reason: model.ReasonNoData}, nil
	}

	points := make([]model.TimePoint, 0, len(resp.Observations))
	for _, obs := range resp.Observations {
		date, ok := parseDate(obs.Date)
		if !ok {
			continue
		}
		p := model.TimePoint{Date: date, Value: float64(obs.Value)}
		if model.ValidPoint(p) {
			points = append(points, p)
		}
	}
	sortPoints(points)
	logger.RecordFetch(f.Name(), len(points))

	if len(points) == 0 {
		return model.NormalizedSeries{Source: f.Name(), Reason: model.ReasonNoData}, nil
	}

	f.cache.Set(key, points, f.cfg.TTL.Historical)
	return model.NormalizedSeries{Source: f.Name(), Points: points}, nil
}
