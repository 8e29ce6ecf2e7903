// internal/dashboard/server.go
package dashboard

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"energypulse/config"
	"energypulse/internal/cache"
	"energypulse/internal/model"
	"energypulse/internal/pipeline"
	"energypulse/logger"
)

// Server exposes the aggregated market data and cache diagnostics over a
// small read-only JSON API. Rendering lives in the front end; this server
// only serves data.
type Server struct {
	cfg        config.DashboardConfig
	log        *logger.Log
	logStore   *logStore
	orch       *pipeline.Orchestrator
	cache      *cache.ExpiringCache
	httpServer *http.Server
}

// NewServer constructs the dashboard server when the feature is enabled;
// disabled configuration yields a nil server that Run treats as a no-op.
func NewServer(cfg config.DashboardConfig, log *logger.Log, orch *pipeline.Orchestrator, c *cache.ExpiringCache) *Server {
	if !cfg.Enabled {
		return nil
	}

	logStore := newLogStore(200)
	log.AddHook(logStore)

	return &Server{
		cfg:      cfg,
		log:      log,
		logStore: logStore,
		orch:     orch,
		cache:    c,
	}
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the server exits with an error.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return nil
	}
	defer s.logStore.close()

	s.httpServer = &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s.buildRouter(),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	api.GET("/prices/latest", s.handleLatestPrices)
	api.GET("/history", s.handleHistory)
	api.GET("/indicators", s.handleIndicators)
	api.GET("/inventory", s.handleInventory)
	api.GET("/currency/rates", s.handleCurrencyRates)
	api.GET("/currency/convert", s.handleCurrencyConvert)
	api.GET("/worldbank", s.handleWorldBank)
	api.GET("/cache/stats", s.handleCacheStats)
	api.GET("/logs", s.handleLogs)
	return router
}

func (s *Server) handleLatestPrices(c *gin.Context) {
	commodities := []model.Commodity{
		model.CommodityWTI, model.CommodityBrent,
		model.CommodityHenryHub, model.CommodityOPEC,
	}
	if raw := c.Query("commodities"); raw != "" {
		commodities = commodities[:0]
		for _, name := range strings.Split(raw, ",") {
			commodities = append(commodities, model.Commodity(strings.TrimSpace(name)))
		}
	}

	prices, err := s.orch.LatestPrices(c.Request.Context(), commodities)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, prices)
}

func (s *Server) handleHistory(c *gin.Context) {
	commodity := model.Commodity(c.DefaultQuery("commodity", string(model.CommodityWTI)))
	rangePreset := c.DefaultQuery("range", pipeline.Range1M)

	points, err := s.orch.History(c.Request.Context(), commodity, rangePreset)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"commodity": commodity, "range": rangePreset, "points": points})
}

func (s *Server) handleIndicators(c *gin.Context) {
	seriesID := c.DefaultQuery("series", model.FREDWTI)
	rangePreset := c.DefaultQuery("range", pipeline.Range1Y)

	series, err := s.orch.MacroSeries(c.Request.Context(), seriesID, rangePreset)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"series": seriesID, "range": rangePreset, "result": series})
}

func (s *Server) handleInventory(c *gin.Context) {
	series, err := s.orch.Inventory(c.Request.Context(), c.Query("series"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, series)
}

func (s *Server) handleCurrencyRates(c *gin.Context) {
	rates, live, err := s.orch.Rates(c.Request.Context(), c.Query("base"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"live": live, "rates": rates})
}

func (s *Server) handleCurrencyConvert(c *gin.Context) {
	amount, err := strconv.ParseFloat(c.Query("amount"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a number"})
		return
	}
	from := c.DefaultQuery("from", "USD")
	to := c.DefaultQuery("to", "EUR")

	result, err := s.orch.Convert(c.Request.Context(), amount, from, to)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"amount": amount, "from": from, "to": to, "result": result})
}

func (s *Server) handleWorldBank(c *gin.Context) {
	country := c.DefaultQuery("country", "USA")
	indicators := s.orch.DevelopmentIndicators(c.Request.Context(), country)
	c.JSON(http.StatusOK, gin.H{"country": country, "indicators": indicators})
}

func (s *Server) handleCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.cache.Stats())
}

func (s *Server) handleLogs(c *gin.Context) {
	c.JSON(http.StatusOK, s.logStore.snapshot())
}
