package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"airbnb-listings/config"
	"airbnb-listings/models"
	"airbnb-listings/scraper"
	"airbnb-listings/scraper/airbnb"
	"airbnb-listings/services"
	"airbnb-listings/storage"
	"airbnb-listings/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("=== Airbnb listings pipeline starting ===")
	logger.Info("Config: cities: %d | max pages: %d | concurrency: %d | rate: %dms | detail timeout: %s | sample: %d",
		len(cfg.Cities), cfg.MaxPages, cfg.MaxConcurrency, cfg.RateLimitMs, cfg.DetailTimeout, cfg.SampleSize)

	if len(cfg.Cities) == 0 {
		logger.Error("No cities configured. Set CITY_URLS as Name=URL;Name=URL")
		os.Exit(1)
	}

	cache, err := storage.NewCache(cfg.CacheBackend, cfg.MemcacheAddr, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Warn("Page cache disabled: %v", err)
	}
	if cache != nil {
		defer cache.Close()
		logger.Info("Caching search pages in %s for %s", cfg.CacheBackend, cfg.PageCacheTTL)
	}

	browser, err := scraper.NewChromeBrowser(cfg.ChromeBin, scraper.RenderOptions{Wait: cfg.PageWait}, logger)
	if err != nil {
		logger.Error("Browser unavailable: %v", err)
		logger.Error("Install Chrome/Chromium or set CHROME_BIN")
		os.Exit(1)
	}
	defer browser.Close()

	probeCtx, cancelProbe := context.WithTimeout(ctx, 60*time.Second)
	err = browser.Probe(probeCtx)
	cancelProbe()
	if err != nil {
		logger.Error("Browser failed to start: %v", err)
		os.Exit(1)
	}

	var pages scraper.PageFetcher
	switch cfg.SearchFetcher {
	case "browser":
		pages = browser
	default:
		var pageCache scraper.PageCache
		if cache != nil {
			pageCache = cache
		}
		pages = scraper.NewStaticFetcher(cfg.StaticTimeout, pageCache, cfg.PageCacheTTL, logger)
	}

	sink, err := storage.OpenDetailSink(cfg.DetailsCSVPath, cfg.ResumeDetails)
	if err != nil {
		logger.Error("Failed to open detail file: %v", err)
		os.Exit(1)
	}
	defer sink.Close()

	sel := airbnb.Markup2021{}
	retry := &utils.RetryConfig{MaxAttempts: cfg.MaxRetries, BaseDelay: 2 * time.Second, Logger: logger}
	fetcher := airbnb.NewDetailFetcher(browser, sel, sink,
		utils.NewWorkerPool(cfg.MaxConcurrency, cfg.RateLimitMs), retry,
		airbnb.DetailOptions{Timeout: cfg.DetailTimeout, PageWait: cfg.PageWait, AmenitiesWait: cfg.AmenitiesWait},
		logger)

	airbnbScraper := airbnb.New(
		airbnb.NewWalker(pages, sel, cfg.MaxPages, logger),
		airbnb.NewExtractor(sel, cfg.BaseURL),
		logger,
	)

	pipeline := services.NewPipeline(airbnbScraper, services.NewCleaner(logger), fetcher, sink,
		services.NewDetailParser(sel, logger),
		services.PipelineOptions{
			RawCSVPath:        cfg.RawCSVPath,
			SampleSeed:        cfg.SampleSeed,
			DropFailedDetails: cfg.DropFailedJoins,
			Resume:            cfg.ResumeDetails,
		}, logger)

	res, err := pipeline.Run(ctx, cfg.Cities, cfg.SampleSize)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Interrupted; records fetched so far are in %s", cfg.DetailsCSVPath)
		}
		logger.Error("Pipeline failed: %v", err)
		os.Exit(1)
	}

	if len(res.Listings) == 0 {
		logger.Error("No listings left after the detail join. Exiting.")
		os.Exit(1)
	}

	if err := storage.WriteListingsCSV(cfg.CSVOutputPath, res.Listings, res.Vocabulary); err != nil {
		logger.Error("CSV write failed: %v", err)
		os.Exit(1)
	}
	logger.Info("Clean listings saved to %s", cfg.CSVOutputPath)

	reportListings := res.Listings
	if cfg.StorePostgres {
		reportListings = storeInPostgres(cfg, res.Listings, logger)
	}

	insightSvc := services.NewInsightService(logger)
	report := insightSvc.Generate(reportListings, res)
	insightSvc.Print(report)

	fmt.Printf("  Done. Raw CSV → %s | Details → %s | Clean data → %s\n\n",
		cfg.RawCSVPath, cfg.DetailsCSVPath, cfg.CSVOutputPath)
}

// storeInPostgres writes the table and reads it back for the report. The
// in-memory table is used when the database is unavailable.
func storeInPostgres(cfg *config.Config, listings []models.Listing, logger *utils.Logger) []models.Listing {
	pgWriter, err := storage.NewPostgresWriter(cfg.DSN())
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		return listings
	}
	defer pgWriter.Close()

	if err := pgWriter.Write(listings); err != nil {
		logger.Error("PostgreSQL write failed: %v", err)
		return listings
	}
	logger.Info("Clean listings stored in PostgreSQL (table: listings)")

	dbListings, err := pgWriter.FetchAll()
	if err != nil {
		logger.Error("Failed to fetch listings from DB for insights: %v", err)
		return listings
	}
	return dbListings
}
