// internal/source/datahub.go
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"energypulse/config"
	"energypulse/internal/cache"
	"energypulse/internal/httpx"
	"energypulse/internal/model"
	"energypulse/logger"
)

// DataHub serves WTI and Brent daily history without any API key. The tier
// order is fixed: cache, bundled local dataset, then a direct fetch of the
// upstream CSV. The cross-origin CSV fetch failing is an expected,
// non-fatal outcome.
type DataHub struct {
	client *httpx.Client
	cache  *cache.ExpiringCache
	cfg    *config.Config
	log    *logger.Log
}

func NewDataHub(client *httpx.Client, c *cache.ExpiringCache, cfg *config.Config) *DataHub {
	return &DataHub{client: client, cache: c, cfg: cfg, log: logger.GetLogger()}
}

func (d *DataHub) Name() string { return "DataHub" }

type localRow struct {
	Date  string    `json:"date"`
	Value flexFloat `json:"value"`
}

// FetchSeries returns the full daily history for req.Series ("WTI" or
// "Brent"). Range filtering happens in the orchestrator so the cache entry
// stays reusable across UI range presets.
func (d *DataHub) FetchSeries(ctx context.Context, req Request) (model.NormalizedSeries, error) {
	var localFile, remoteURL string
	switch model.Commodity(req.Series) {
	case model.CommodityWTI:
		localFile = "historical-wti.json"
		remoteURL = d.cfg.Endpoints.DataHubWTI
	case model.CommodityBrent:
		localFile = "historical-brent.json"
		remoteURL = d.cfg.Endpoints.DataHubBrent
	default:
		return model.NormalizedSeries{}, fmt.Errorf("datahub: unsupported series %q", req.Series)
	}

	log := d.log.WithComponent("datahub").WithFields(logger.Fields{"series": req.Series})
	key := cacheKey("DATAHUB", req.Series)

	var cached []model.TimePoint
	if d.cache.Get(key, &cached) {
		log.Debug("using cached series")
		return model.NormalizedSeries{Source: d.Name(), Points: cached}, nil
	}

	// Bundled dataset first: offline-safe, no network round trip. This is
	// the primary offline tier, so it does not count as a fallback hit.
	if points := d.loadLocal(localFile); len(points) > 0 {
		logger.RecordFetch(d.Name(), len(points))
		d.cache.Set(key, points, d.cfg.TTL.Historical)
		return model.NormalizedSeries{Source: d.Name(), Points: points}, nil
	}

	body, err := d.client.Get(ctx, remoteURL, nil, nil)
	if err != nil {
		log.WithError(err).Warn("remote CSV fetch failed")
		return model.NormalizedSeries{Source: d.Name(), Reason: model.ReasonUpstreamUnavailable}, nil
	}

	points := parseCSVSeries(string(body))
	logger.RecordFetch(d.Name(), len(points))
	if len(points) == 0 {
		return model.NormalizedSeries{Source: d.Name(), Reason: model.ReasonNoData}, nil
	}

	d.cache.Set(key, points, d.cfg.TTL.Historical)
	return model.NormalizedSeries{Source: d.Name(), Points: points}, nil
}

func (d *DataHub) loadLocal(name string) []model.TimePoint {
	path := filepath.Join(d.cfg.Endpoints.LocalDataDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		d.log.WithComponent("datahub").WithError(err).Debug("no local dataset")
		return nil
	}

	var rows []localRow
	if err := decodeJSON(d.Name(), data, &rows); err != nil {
		d.log.WithComponent("datahub").WithError(err).Warn("local dataset unreadable")
		return nil
	}

	points := make([]model.TimePoint, 0, len(rows))
	for _, row := range rows {
		date, ok := parseDate(row.Date)
		if !ok {
			continue
		}
		p := model.TimePoint{Date: date, Value: float64(row.Value)}
		if model.ValidPoint(p) {
			points = append(points, p)
		}
	}
	sortPoints(points)
	return points
}

// parseCSVSeries parses a Date,Price CSV: the first line is the header,
// every following line is comma-split positionally. Rows whose field count
// does not match the header, or whose value or date fails to parse, are
// dropped silently rather than substituted.
func parseCSVSeries(data string) []model.TimePoint {
	lines := strings.Split(strings.ReplaceAll(data, "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return nil
	}

	header := strings.Split(lines[0], ",")
	dateCol, valueCol := 0, 1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date":
			dateCol = i
		case "price", "value":
			valueCol = i
		}
	}

	var points []model.TimePoint
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != len(header) {
			continue
		}
		date, ok := parseDate(strings.TrimSpace(fields[dateCol]))
		if !ok {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(fields[valueCol]), 64)
		if err != nil {
			continue
		}
		p := model.TimePoint{Date: date, Value: value}
		if model.ValidPoint(p) {
			points = append(points, p)
		}
	}
	sortPoints(points)
	return points
}
