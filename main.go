package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"energypulse/config"
	"energypulse/internal/cache"
	"energypulse/internal/dashboard"
	"energypulse/internal/httpx"
	"energypulse/internal/keys"
	"energypulse/internal/model"
	"energypulse/internal/pipeline"
	"energypulse/internal/source"
	"energypulse/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Warn("Failed to load configuration, using defaults")
		cfg = config.Default()
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.Energypulse.Name,
		"version":     cfg.Energypulse.Version,
		"environment": config.AppEnvironment(),
	}).Info("starting energypulse")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleShutdown(cancel, log)

	if cfg.Logging.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Logging.CloudWatch.Region, cfg.Logging.CloudWatch.Namespace)
		logger.StartReport(ctx, log, 30*time.Second)
	}

	store, err := cache.OpenSqliteStore(cfg.Cache.Path, cfg.Cache.MaxEntries)
	if err != nil {
		log.WithError(err).Error("Failed to open cache store")
		os.Exit(1)
	}
	defer store.Close()

	expiring := cache.New(store, cfg.Cache.KeyPrefix)
	registry := keys.NewStoreRegistry(store)
	client := httpx.NewClient(cfg.HTTP)

	datahub := source.NewDataHub(client, expiring, cfg)
	oilprice := source.NewOilPrice(client, expiring, registry, cfg)
	eia := source.NewEIA(client, expiring, registry, cfg)
	fred := source.NewFRED(client, expiring, registry, cfg)
	currency := source.NewCurrency(client, expiring, cfg)
	worldbank := source.NewWorldBank(client, expiring, cfg)

	orch := pipeline.NewOrchestrator(datahub, oilprice, eia, fred, currency, worldbank)

	server := dashboard.NewServer(cfg.Dashboard, log, orch, expiring)
	if server != nil {
		log.WithFields(logger.Fields{"listen": cfg.Dashboard.Listen}).Info("dashboard API enabled")
		if err := server.Run(ctx); err != nil {
			log.WithError(err).Error("dashboard server failed")
			os.Exit(1)
		}
		return
	}

	// Without the dashboard the binary runs one aggregation pass and exits;
	// the front end owns any refresh polling.
	runOnce(ctx, orch, log)
}

func runOnce(ctx context.Context, orch *pipeline.Orchestrator, log *logger.Log) {
	commodities := []model.Commodity{
		model.CommodityWTI, model.CommodityBrent,
		model.CommodityHenryHub, model.CommodityOPEC,
	}

	prices, err := orch.LatestPrices(ctx, commodities)
	if err != nil {
		log.WithError(err).Error("all sources unavailable")
		os.Exit(1)
	}
	for commodity, price := range prices {
		entry := log.WithComponent("prices").WithFields(logger.Fields{"commodity": commodity})
		if price.RequiresAPIKey {
			entry.WithFields(logger.Fields{"message": price.Message}).Warn("requires API key")
			continue
		}
		entry.WithFields(logger.Fields{
			"price":          price.Price,
			"as_of":          price.AsOf,
			"source":         price.SourceLabel,
			"change_percent": price.ChangePercent,
		}).Info("latest price")
	}
}

func handleShutdown(cancel context.CancelFunc, log *logger.Log) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutting down")
	cancel()
}
