// internal/source/currency.go
package source

import (
	"context"
	"errors"
	"strings"

	"energypulse/config"
	"energypulse/internal/cache"
	"energypulse/internal/httpx"
	"energypulse/logger"
)

// Currency fetches a full daily rate table for a base currency. On failure
// it answers from a hardcoded table of approximate rates so conversion
// never fully fails; the fallback table is never cached, letting a later
// call retry the feed.
type Currency struct {
	client *httpx.Client
	cache  *cache.ExpiringCache
	cfg    *config.Config
	log    *logger.Log
}

func NewCurrency(client *httpx.Client, c *cache.ExpiringCache, cfg *config.Config) *Currency {
	return &Currency{client: client, cache: c, cfg: cfg, log: logger.GetLogger()}
}

func (c *Currency) Name() string { return "Currency" }

// fallbackRates are approximate and only used when the feed is down.
var fallbackRates = map[string]float64{
	"eur": 0.92, "gbp": 0.79, "jpy": 149.0, "cny": 7.24,
	"cad": 1.36, "aud": 1.52, "chf": 0.88, "inr": 83.0,
	"rub": 92.0, "sar": 3.75, "aed": 3.67, "brl": 4.98,
	"mxn": 17.0, "nok": 10.8, "sgd": 1.34, "krw": 1320.0,
	"zar": 18.5, "try": 32.0, "ngn": 1550.0,
}

// FetchRates returns the rate table for base. The second return value
// reports whether the table came from the live feed (false means the
// hardcoded fallback answered).
func (c *Currency) FetchRates(ctx context.Context, base string) (map[string]float64, bool, error) {
	if base == "" {
		return nil, false, errors.New("currency: base currency is required")
	}
	base = strings.ToLower(base)

	log := c.log.WithComponent("currency").WithFields(logger.Fields{"base": base})
	key := cacheKey("CURRENCY", base)

	var cached map[string]float64
	if c.cache.Get(key, &cached) {
		log.Debug("using cached rate table")
		return cached, true, nil
	}

	rates, err := c.fetchTable(ctx, c.cfg.Endpoints.Currency, base)
	if err != nil {
		log.WithError(err).Warn("rate feed unavailable, using fallback table")
		logger.IncrementFallback()
		return fallbackRates, false, nil
	}

	logger.RecordFetch(c.Name(), len(rates))
	c.cache.Set(key, rates, c.cfg.TTL.Currency)
	return rates, true, nil
}

// FetchHistoricalRates returns the rate table for a specific date
// (YYYY-MM-DD), falling back to the latest table when the dated feed is
// unavailable.
func (c *Currency) FetchHistoricalRates(ctx context.Context, date, base string) (map[string]float64, bool, error) {
	if base == "" {
		return nil, false, errors.New("currency: base currency is required")
	}
	if date == "" {
		return nil, false, errors.New("currency: date is required")
	}
	base = strings.ToLower(base)

	log := c.log.WithComponent("currency").WithFields(logger.Fields{"base": base, "date": date})
	key := cacheKey("CURRENCY_HISTORICAL", base, date)

	var cached map[string]float64
	if c.cache.Get(key, &cached) {
		return cached, true, nil
	}

	endpoint := strings.Replace(c.cfg.Endpoints.Currency, "@latest", "@"+date, 1)
	rates, err := c.fetchTable(ctx, endpoint, base)
	if err != nil {
		log.WithError(err).Warn("historical rate feed unavailable, using latest")
		return c.FetchRates(ctx, base)
	}

	logger.RecordFetch(c.Name(), len(rates))
	c.cache.Set(key, rates, c.cfg.TTL.Historical)
	return rates, true, nil
}

func (c *Currency) fetchTable(ctx context.Context, endpoint, base string) (map[string]float64, error) {
	body, err := c.client.Get(ctx, endpoint+"/currencies/"+base+".json", nil, nil)
	if err != nil {
		return nil, err
	}

	// The feed keys the table by the lowercase base code.
	var resp map[string]interface{}
	if err := decodeJSON(c.Name(), body, &resp); err != nil {
		return nil, err
	}
	table, ok := resp[base].(map[string]interface{})
	if !ok {
		return nil, &DataShapeError{Source: c.Name(), Detail: "missing rate table for base " + base}
	}

	rates := make(map[string]float64, len(table))
	for code, v := range table {
		if f, ok := v.(float64); ok {
			rates[code] = f
		}
	}
	if len(rates) == 0 {
		return nil, &DataShapeError{Source: c.Name(), Detail: "empty rate table"}
	}
	return rates, nil
}

// Convert converts amount between two currencies via USD cross rates.
// Unknown codes leave the amount unchanged, mirroring a conversion that
// cannot be priced rather than zeroing the value.
func (c *Currency) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	if amount == 0 {
		return 0, nil
	}
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to {
		return amount, nil
	}

	rates, _, err := c.FetchRates(ctx, "usd")
	if err != nil {
		return amount, err
	}

	if from == "USD" {
		if rate, ok := rates[strings.ToLower(to)]; ok {
			return amount * rate, nil
		}
		return amount, nil
	}
	if to == "USD" {
		if rate, ok := rates[strings.ToLower(from)]; ok && rate != 0 {
			return amount / rate, nil
		}
		return amount, nil
	}

	fromRate, okFrom := rates[strings.ToLower(from)]
	toRate, okTo := rates[strings.ToLower(to)]
	if okFrom && okTo && fromRate != 0 {
		return amount / fromRate * toRate, nil
	}
	return amount, nil
}
