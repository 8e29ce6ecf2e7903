// internal/pipeline/orchestrator.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"energypulse/internal/model"
	"energypulse/internal/source"
	"energypulse/logger"
)

// ErrAllSourcesFailed is returned by LatestPrices when every member of the
// batch failed and no cached or fallback data existed for any of them.
// Partial failure is the norm and never raises.
var ErrAllSourcesFailed = errors.New("all sources unavailable")

// Orchestrator composes adapter calls into the shapes the dashboard needs.
// It owns range filtering so adapter cache entries stay range-independent.
type Orchestrator struct {
	datahub   *source.DataHub
	oilprice  *source.OilPrice
	eia       *source.EIA
	fred      *source.FRED
	currency  *source.Currency
	worldbank *source.WorldBank
	now       func() time.Time
	log       *logger.Log
}

func NewOrchestrator(datahub *source.DataHub, oilprice *source.OilPrice, eia *source.EIA, fred *source.FRED, currency *source.Currency, worldbank *source.WorldBank) *Orchestrator {
	return &Orchestrator{
		datahub:   datahub,
		oilprice:  oilprice,
		eia:       eia,
		fred:      fred,
		currency:  currency,
		worldbank: worldbank,
		now:       time.Now,
		log:       logger.GetLogger(),
	}
}

// WithClock substitutes the time source for range resolution in tests.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// LatestPrices fetches the newest quote for each commodity concurrently and
// joins the results. Per commodity, a later more-authoritative source
// overwrites an earlier fallback result, but a failure never overwrites a
// prior success.
func (o *Orchestrator) LatestPrices(ctx context.Context, commodities []model.Commodity) (map[model.Commodity]model.LatestPrice, error) {
	results := make(map[model.Commodity]model.LatestPrice, len(commodities))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, commodity := range commodities {
		wg.Add(1)
		go func(c model.Commodity) {
			defer wg.Done()
			price := o.latestFor(ctx, c)
			mu.Lock()
			results[c] = price
			mu.Unlock()
		}(commodity)
	}
	wg.Wait()

	failures := 0
	for _, p := range results {
		if p.Message != "" && !p.RequiresAPIKey && p.AsOf.IsZero() {
			failures++
		}
	}
	if len(results) > 0 && failures == len(results) {
		return nil, ErrAllSourcesFailed
	}
	return results, nil
}

func (o *Orchestrator) latestFor(ctx context.Context, commodity model.Commodity) model.LatestPrice {
	switch commodity {
	case model.CommodityWTI, model.CommodityBrent:
		return o.latestOil(ctx, commodity)
	case model.CommodityHenryHub:
		return o.latestEIA(ctx, commodity, model.EIAHenryHub)
	case model.CommodityOPEC:
		// No free upstream covers the OPEC basket.
		return model.LatestPrice{
			Commodity:      commodity,
			RequiresAPIKey: true,
			Message:        "Requires EIA API key",
		}
	default:
		return model.LatestPrice{Commodity: commodity, Message: fmt.Sprintf("unknown commodity %q", commodity)}
	}
}

// latestOil seeds the quote from the DataHub history tail, then lets a
// successful OilPrice live quote overwrite it.
func (o *Orchestrator) latestOil(ctx context.Context, commodity model.Commodity) model.LatestPrice {
	result := model.LatestPrice{Commodity: commodity}

	series, err := o.datahub.FetchSeries(ctx, source.Request{Series: string(commodity)})
	if err == nil {
		if latest, ok := series.Latest(); ok {
			result.Price = latest.Value
			result.AsOf = latest.Date
			result.SourceLabel = series.Source
			result.ChangePercent = PercentChange(series.Points)
		}
	}

	code := model.OilPriceWTI
	if commodity == model.CommodityBrent {
		code = model.OilPriceBrent
	}
	quote, err := o.oilprice.FetchLatest(ctx, code)
	if err == nil && !quote.Zero() {
		result.Price = quote.Price
		result.AsOf = quote.CreatedAt
		result.SourceLabel = o.oilprice.Name()
	}

	if result.AsOf.IsZero() {
		result.Message = "temporarily unavailable"
	}
	return result
}

func (o *Orchestrator) latestEIA(ctx context.Context, commodity model.Commodity, seriesID string) model.LatestPrice {
	series, err := o.eia.FetchSeries(ctx, source.Request{
		Series: seriesID,
		Start:  o.now().AddDate(0, -1, 0),
		End:    o.now(),
	})
	if err != nil {
		return model.LatestPrice{Commodity: commodity, Message: "temporarily unavailable"}
	}
	if series.Reason == model.ReasonMissingCredential {
		return model.LatestPrice{
			Commodity:      commodity,
			RequiresAPIKey: true,
			Message:        "Requires EIA API key",
		}
	}
	latest, ok := series.Latest()
	if !ok {
		return model.LatestPrice{Commodity: commodity, Message: "temporarily unavailable"}
	}
	return model.LatestPrice{
		Commodity:     commodity,
		Price:         latest.Value,
		AsOf:          latest.Date,
		SourceLabel:   series.Source,
		ChangePercent: PercentChange(series.Points),
	}
}

// History returns the commodity's series filtered to [start, now]
// inclusive, where start comes from the range preset. The adapter delivers
// its full series so one cache entry serves every preset.
func (o *Orchestrator) History(ctx context.Context, commodity model.Commodity, rangePreset string) ([]model.TimePoint, error) {
	var series model.NormalizedSeries
	var err error

	switch commodity {
	case model.CommodityWTI, model.CommodityBrent:
		series, err = o.datahub.FetchSeries(ctx, source.Request{Series: string(commodity)})
	case model.CommodityHenryHub:
		series, err = o.eia.FetchSeries(ctx, source.Request{Series: model.EIAHenryHub})
	default:
		return nil, fmt.Errorf("unsupported commodity %q", commodity)
	}
	if err != nil {
		return nil, err
	}
	return o.filterRange(series.Points, rangePreset), nil
}

// MacroSeries returns a FRED economic series filtered to the range preset.
// A missing key shows up as the series' Reason, not an error.
func (o *Orchestrator) MacroSeries(ctx context.Context, seriesID, rangePreset string) (model.NormalizedSeries, error) {
	series, err := o.fred.FetchSeries(ctx, source.Request{Series: seriesID})
	if err != nil {
		return model.NormalizedSeries{}, err
	}
	series.Points = o.filterRange(series.Points, rangePreset)
	return series, nil
}

// Inventory returns an EIA weekly petroleum stocks series. An empty id
// defaults to crude stocks.
func (o *Orchestrator) Inventory(ctx context.Context, seriesID string) (model.NormalizedSeries, error) {
	if seriesID == "" {
		seriesID = model.EIACrudeStocks
	}
	return o.eia.FetchInventory(ctx, source.Request{Series: seriesID})
}

// Rates returns the currency rate table for base (default usd). The second
// value reports whether the table came from the live feed.
func (o *Orchestrator) Rates(ctx context.Context, base string) (map[string]float64, bool, error) {
	if base == "" {
		base = "usd"
	}
	return o.currency.FetchRates(ctx, base)
}

// Convert converts amount between two currency codes via USD cross rates.
func (o *Orchestrator) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	return o.currency.Convert(ctx, amount, from, to)
}

// DevelopmentIndicators fetches the World Bank context series for a country
// concurrently. Like LatestPrices, partial success is the norm: a failed
// indicator carries its Reason instead of failing the batch.
func (o *Orchestrator) DevelopmentIndicators(ctx context.Context, country string) map[string]model.NormalizedSeries {
	fetches := map[string]func(context.Context, string) (model.NormalizedSeries, error){
		"gdp":        o.worldbank.FetchGDP,
		"oil_rents":  o.worldbank.FetchOilRents,
		"population": o.worldbank.FetchPopulation,
	}

	results := make(map[string]model.NormalizedSeries, len(fetches))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, fetch := range fetches {
		wg.Add(1)
		go func(name string, fetch func(context.Context, string) (model.NormalizedSeries, error)) {
			defer wg.Done()
			series, err := fetch(ctx, country)
			if err != nil {
				o.log.WithComponent("pipeline").WithError(err).Warn("indicator fetch failed")
			}
			mu.Lock()
			results[name] = series
			mu.Unlock()
		}(name, fetch)
	}
	wg.Wait()
	return results
}

// filterRange keeps the points inside [start, now] inclusive, where start
// comes from the range preset.
func (o *Orchestrator) filterRange(points []model.TimePoint, rangePreset string) []model.TimePoint {
	now := o.now()
	start := resolveRangeStart(rangePreset, now)

	filtered := make([]model.TimePoint, 0, len(points))
	for _, p := range points {
		if !p.Date.Before(start) && !p.Date.After(now) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// PercentChange computes the change between the last two points of a
// series. Fewer than two points, or a zero previous value, yields 0.
func PercentChange(points []model.TimePoint) float64 {
	if len(points) < 2 {
		return 0
	}
	latest := points[len(points)-1].Value
	previous := points[len(points)-2].Value
	if previous == 0 {
		return 0
	}
	return (latest - previous) / previous * 100
}
