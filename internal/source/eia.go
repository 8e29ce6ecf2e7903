// internal/source/eia.go
package source

import (
	"context"
	"errors"
	"net/url"
	"time"

	"energypulse/config"
	"energypulse/internal/cache"
	"energypulse/internal/httpx"
	"energypulse/internal/keys"
	"energypulse/internal/model"
	"energypulse/logger"
)

// EIA fetches petroleum spot prices and weekly inventory levels from the
// EIA v2 REST API. Every call is gated on a configured API key: without one
// the adapter reports missing-credential before any network activity.
type EIA struct {
	client *httpx.Client
	cache  *cache.ExpiringCache
	keys   keys.Registry
	cfg    *config.Config
	log    *logger.Log
}

func NewEIA(client *httpx.Client, c *cache.ExpiringCache, reg keys.Registry, cfg *config.Config) *EIA {
	return &EIA{client: client, cache: c, keys: reg, cfg: cfg, log: logger.GetLogger()}
}

func (e *EIA) Name() string { return "EIA" }

type eiaResponse struct {
	Response struct {
		Data []eiaRow `json:"data"`
	} `json:"response"`
}

type eiaRow struct {
	Period string    `json:"period"`
	Value  flexFloat `json:"value"`
}

// FetchSeries returns a daily spot-price series for the given EIA series id.
func (e *EIA) FetchSeries(ctx context.Context, req Request) (model.NormalizedSeries, error) {
	return e.fetch(ctx, req, "/petroleum/pri/spt/data/", "daily", e.cfg.TTL.Historical)
}

// FetchInventory returns a weekly stocks series (crude, gasoline,
// distillate) from the supply summary endpoint.
func (e *EIA) FetchInventory(ctx context.Context, req Request) (model.NormalizedSeries, error) {
	return e.fetch(ctx, req, "/petroleum/sum/sndw/data/", "weekly", e.cfg.TTL.Inventory)
}

func (e *EIA) fetch(ctx context.Context, req Request, path, frequency string, ttl time.Duration) (model.NormalizedSeries, error) {
	if req.Series == "" {
		return model.NormalizedSeries{}, errors.New("eia: series id is required")
	}

	log := e.log.WithComponent("eia").WithFields(logger.Fields{"series": req.Series})
	key := cacheKey("EIA", req.Series, frequency, dateParam(req.Start), dateParam(req.End))

	var cached []model.TimePoint
	if e.cache.Get(key, &cached) {
		log.Debug("using cached series")
		return model.NormalizedSeries{Source: e.Name(), Points: cached}, nil
	}

	apiKey, ok := e.keys.Get("eia")
	if !ok {
		log.Warn("no API key configured")
		return model.NormalizedSeries{Source: e.Name(), Reason: model.ReasonMissingCredential}, nil
	}

	params := url.Values{}
	params.Set("api_key", apiKey)
	params.Set("frequency", frequency)
	params.Set("data[0]", "value")
	params.Set("facets[series][]", req.Series)
	params.Set("sort[0][column]", "period")
	params.Set("sort[0][direction]", "asc")
	if !req.Start.IsZero() {
		params.Set("start", dateParam(req.Start))
	}
	if !req.End.IsZero() {
		params.Set("end", dateParam(req.End))
	}

	body, err := e.client.Get(ctx, e.cfg.Endpoints.EIA+path, params, nil)
	if err != nil {
		log.WithError(err).Warn("upstream fetch failed")
		return model.NormalizedSeries{Source: e.Name(), Reason: model.ReasonUpstreamUnavailable}, nil
	}

	var resp eiaResponse
	if err := decodeJSON(e.Name(), body, &resp); err != nil {
		log.WithError(err).Warn("response did not match expected schema")
		return model.NormalizedSeries{Source: e.Name(), Reason: model.ReasonNoData}, nil
	}

	points := make([]model.TimePoint, 0, len(resp.Response.Data))
	for _, row := range resp.Response.Data {
		date, ok := parseDate(row.Period)
		if !ok {
			continue
		}
		p := model.TimePoint{Date: date, Value: float64(row.Value)}
		if model.ValidPoint(p) {
			points = append(points, p)
		}
	}
	sortPoints(points)
	logger.RecordFetch(e.Name(), len(points))

	if len(points) == 0 {
		return model.NormalizedSeries{Source: e.Name(), Reason: model.ReasonNoData}, nil
	}

	e.cache.Set(key, points, ttl)
	return model.NormalizedSeries{Source: e.Name(), Points: points}, nil
}

func dateParam(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
