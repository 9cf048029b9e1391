package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/damon-houk/subly-resolution-service/internal/application/service"
	domainservice "github.com/damon-houk/subly-resolution-service/internal/domain/service"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/api"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/config"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/db"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/handler"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/logger"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/middleware"
	"github.com/dgraph-io/badger/v3"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// app holds the wired services shared by every command
type app struct {
	cfg        *config.Config
	log        logger.Logger
	badgerDB   *badger.DB
	rates      *service.RateService
	currencies *service.CurrencyService
	icons      *service.IconService
}

func newApp(cfg *config.Config, log logger.Logger) (*app, error) {
	if !cfg.Storage.InMemory {
		if err := os.MkdirAll(cfg.Storage.BadgerPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	badgerDB, err := db.OpenBadger(cfg.Storage.BadgerPath, cfg.Storage.InMemory)
	if err != nil {
		return nil, err
	}

	hints, err := config.LoadIconHints(cfg.Icons.HintsFile)
	if err != nil {
		badgerDB.Close()
		return nil, err
	}

	opts := api.ClientOptions{
		Timeout:   cfg.HTTP.Timeout,
		Retries:   cfg.HTTP.Retries,
		Backoff:   cfg.HTTP.Backoff,
		UserAgent: cfg.HTTP.UserAgent,
		Logger:    log.WithField("component", "api"),
	}
	probeOpts := opts
	probeOpts.Timeout = cfg.Icons.ProbeTimeout

	table := service.NewBulkRateTable(api.NewOpenERAPIClient(cfg.Rates.PrimaryURL, opts), cfg.Rates.TTL, nil, log)
	providers := []domainservice.RateProvider{
		table,
		api.NewFrankfurterClient(cfg.Rates.SecondaryURL, opts),
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		badgerDB: badgerDB,
		rates: service.NewRateService(service.RateServiceConfig{
			SupportedCodes: cfg.Rates.SupportedCodes,
			Fallback:       cfg.Rates.Fallback,
			TTL:            cfg.Rates.TTL,
		}, providers, table, nil, log),
		currencies: service.NewCurrencyService(
			api.NewCurrencyNamesClient(cfg.Rates.NamesURL, opts),
			table, cfg.Rates.SupportedCodes, cfg.Rates.NamesTTL, nil, log),
		icons: service.NewIconService(
			db.NewBadgerIconCacheRepository(badgerDB, cfg.Icons.TTL, nil),
			api.NewITunesSearchClient(cfg.Icons.SearchURL, cfg.Icons.SearchCountries, cfg.Icons.SearchLimit, opts),
			api.NewHTTPIconProber(probeOpts),
			hints, log),
	}
	return a, nil
}

// router builds the HTTP surface
func (a *app) router() *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.RecoveryMiddleware(a.log))
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(a.log))
	router.Use(middleware.MetricsMiddleware)

	handler.NewRatesHandler(a.rates, a.currencies, a.log).RegisterRoutes(router)
	handler.NewIconHandler(a.icons, a.log).RegisterRoutes(router)

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	return router
}

func (a *app) server() *http.Server {
	return &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           a.router(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}
}

func (a *app) close() {
	if err := a.badgerDB.Close(); err != nil {
		a.log.Error("Error closing BadgerDB", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
