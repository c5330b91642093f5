package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"tokenalert_backend/config"
	"tokenalert_backend/controllers"
	"tokenalert_backend/models"
	"tokenalert_backend/routes"
	"tokenalert_backend/scheduler"
	"tokenalert_backend/services/alerts"
	"tokenalert_backend/services/alertstore"
	"tokenalert_backend/services/indicators"
	"tokenalert_backend/services/market"
	"tokenalert_backend/services/monitor"
	"tokenalert_backend/services/notify"
)

func main() {
	if _, err := config.LoadConfig(); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if config.AppConfig.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if _, err := config.InitDB(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if err := models.MigrateAlertModels(config.DB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	store := alertstore.NewGormRepository(config.DB)
	registry := alerts.NewRegistry(store, alerts.Quotas{
		FreeTier:    config.AppConfig.FreeTierQuota,
		PremiumTier: config.AppConfig.PremiumTierQuota,
		Capacity:    config.AppConfig.MaxAlertCapacity,
	})
	if err := registry.LoadFromRepository(); err != nil {
		log.Printf("Warning: could not restore alerts: %v", err)
	}

	fetcher := market.NewFetcher(market.NewHTTPTransport(), market.FetcherOptions{
		MaxRetries:         config.AppConfig.MaxRetries,
		Timeout:            time.Duration(config.AppConfig.TimeoutSeconds) * time.Second,
		UseFallback:        config.AppConfig.UseFallbackTransport,
		RateLimitPerMinute: config.AppConfig.RateLimitPerMinute,
	})
	cache := market.NewPriceCache()

	hub := notify.NewHub()
	go hub.Run()
	notifier := notify.NewMulti(notify.NewLogNotifier(), hub)

	var indicatorSource monitor.IndicatorSource
	var mongoIndicators *indicators.MongoSource
	if config.AppConfig.MongoURI != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		source, err := indicators.NewMongoSource(ctx, config.AppConfig.MongoURI, config.AppConfig.MongoDatabase)
		cancel()
		if err != nil {
			log.Printf("Warning: indicator store unavailable, RSI alerts will not fire: %v", err)
		} else {
			mongoIndicators = source
			indicatorSource = source
		}
	}

	loop := monitor.NewLoop(registry, fetcher, cache, notifier, indicatorSource, hub, monitor.Options{
		Interval: time.Duration(config.AppConfig.UpdateIntervalSeconds) * time.Second,
	})
	loop.Start()

	jobs := scheduler.NewScheduler(registry, store, mongoIndicators)
	jobs.Start()

	router := gin.Default()
	routes.SetupRoutes(router, routes.Controllers{
		Alert:  controllers.NewAlertController(registry, loop),
		Market: controllers.NewMarketController(cache, fetcher),
		Status: controllers.NewStatusController(registry, cache, fetcher),
		Hub:    hub,
	})

	srv := &http.Server{
		Addr:    ":" + config.AppConfig.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on port %s", config.AppConfig.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	loop.Stop()
	jobs.Stop()
	hub.Shutdown()

	// flush anything the loop touched during its final cycle
	if flushed, err := registry.FlushDirty(); err != nil {
		log.Printf("Final flush incomplete: %v", err)
	} else if flushed > 0 {
		log.Printf("Final flush persisted %d alerts", flushed)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}
