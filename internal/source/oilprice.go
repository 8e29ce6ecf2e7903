// internal/source/oilprice.go
package source

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"energypulse/config"
	"energypulse/internal/cache"
	"energypulse/internal/httpx"
	"energypulse/internal/keys"
	"energypulse/internal/model"
	"energypulse/logger"
)

// OilPrice fetches latest spot quotes. With a configured key it calls the
// token-authenticated endpoint; without one it falls back to the fixed
// quota demo endpoint. Any failure yields a synthetic zero-value quote
// stamped with the request time, not an empty result.
type OilPrice struct {
	client *httpx.Client
	cache  *cache.ExpiringCache
	keys   keys.Registry
	cfg    *config.Config
	now    func() time.Time
	log    *logger.Log
}

func NewOilPrice(client *httpx.Client, c *cache.ExpiringCache, reg keys.Registry, cfg *config.Config) *OilPrice {
	return &OilPrice{client: client, cache: c, keys: reg, cfg: cfg, now: time.Now, log: logger.GetLogger()}
}

func (o *OilPrice) Name() string { return "OilPrice API" }

type oilPriceResponse struct {
	Status string       `json:"status"`
	Data   oilPriceData `json:"data"`
}

type oilPriceData struct {
	Price     flexFloat `json:"price"`
	Formatted string    `json:"formatted"`
	Currency  string    `json:"currency"`
	Code      string    `json:"code"`
	CreatedAt string    `json:"created_at"`
}

// FetchLatest returns the newest quote for the given commodity code.
func (o *OilPrice) FetchLatest(ctx context.Context, code string) (model.Quote, error) {
	if code == "" {
		return model.Quote{}, errors.New("oilprice: commodity code is required")
	}

	log := o.log.WithComponent("oilprice").WithFields(logger.Fields{"code": code})
	key := cacheKey("OILPRICE", code)

	var cached model.Quote
	if o.cache.Get(key, &cached) {
		log.Debug("using cached quote")
		return cached, nil
	}

	var body []byte
	var err error
	if apiKey, ok := o.keys.Get("oilprice"); ok {
		params := url.Values{}
		params.Set("code", code)
		headers := http.Header{}
		headers.Set("Authorization", "Token "+apiKey)
		body, err = o.client.Get(ctx, o.cfg.Endpoints.OilPrice+"/prices/latest", params, headers)
	} else {
		body, err = o.client.Get(ctx, o.cfg.Endpoints.OilPriceDemo+"/prices", nil, nil)
	}
	if err != nil {
		log.WithError(err).Warn("upstream fetch failed, returning synthetic quote")
		return o.syntheticQuote(code), nil
	}

	var resp oilPriceResponse
	if err := decodeJSON(o.Name(), body, &resp); err != nil {
		log.WithError(err).Warn("response did not match expected schema, returning synthetic quote")
		return o.syntheticQuote(code), nil
	}

	quote := model.Quote{
		Price:     float64(resp.Data.Price),
		Formatted: resp.Data.Formatted,
		Currency:  resp.Data.Currency,
		Code:      resp.Data.Code,
	}
	if quote.Code == "" {
		quote.Code = code
	}
	if t, ok := parseDate(resp.Data.CreatedAt); ok {
		quote.CreatedAt = t
	} else {
		quote.CreatedAt = o.now()
	}
	logger.RecordFetch(o.Name(), 1)

	if !quote.Zero() {
		o.cache.Set(key, quote, o.cfg.TTL.Prices)
	}
	return quote, nil
}

// syntheticQuote is the deliberate whole-record substitution returned when
// the upstream is unavailable.
func (o *OilPrice) syntheticQuote(code string) model.Quote {
	logger.IncrementFallback()
	return model.Quote{
		Price:     0,
		Formatted: "N/A",
		Currency:  "USD",
		Code:      code,
		CreatedAt: o.now(),
	}
}
