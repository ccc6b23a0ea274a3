package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/otp-service/internal/api"
	"github.com/andresuchdata/otp-service/internal/cache"
	"github.com/andresuchdata/otp-service/internal/config"
	"github.com/andresuchdata/otp-service/internal/domain"
	"github.com/andresuchdata/otp-service/internal/erpnext"
	"github.com/andresuchdata/otp-service/internal/promise"
	"github.com/andresuchdata/otp-service/internal/service"
	"github.com/andresuchdata/otp-service/internal/supply"
	"github.com/andresuchdata/otp-service/internal/supply/postgres"
	"github.com/andresuchdata/otp-service/internal/warehouse"
	"github.com/andresuchdata/otp-service/pkg/logger"
)

func main() {
	cfg := config.Load()

	if cfg.Server.Mode == "debug" {
		logger.SetLevel("debug")
		gin.SetMode(gin.DebugMode)
	} else {
		logger.UseJSON()
		gin.SetMode(gin.ReleaseMode)
	}

	var erpnextClient *erpnext.Client
	if cfg.ERPNext.APIKey != "" {
		erpnextClient = erpnext.NewClient(cfg.ERPNext.URL, cfg.ERPNext.APIKey, cfg.ERPNext.APISecret)
	}

	provider, err := buildProvider(cfg, erpnextClient)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize supply provider")
	}

	if cfg.Cache.Enabled {
		cached, err := cache.NewSupplyCache(cfg.Cache, provider)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to initialize supply cache")
		}
		defer cached.Close()
		provider = cached
	}

	promiseService := promise.NewService(provider, warehouse.DefaultRuleset(), promise.Options{
		DefaultWarehouse:              cfg.Promise.DefaultWarehouse,
		DefaultProcessingLeadTimeDays: cfg.Promise.ProcessingLeadTimeDays,
		ItemLeadTimes:                 cfg.Promise.ItemLeadTimes,
		WarehouseLeadTimes:            cfg.Promise.WarehouseLeadTimes,
		DefaultRules: promise.Rules{
			NoWeekends:         cfg.Promise.NoWeekends,
			CutoffTime:         cfg.Promise.CutoffTime,
			Timezone:           cfg.Promise.Timezone,
			LeadTimeBufferDays: cfg.Promise.LeadTimeBufferDays,
			DesiredDateMode:    domain.DesiredDateLatestAcceptable,
		},
	})

	var applyService *service.ApplyService
	if erpnextClient != nil {
		applyService = service.NewApplyService(erpnextClient)
	}

	router := api.NewRouter(&api.Services{
		PromiseService: promiseService,
		ApplyService:   applyService,
		ERPNext:        erpnextClient,
	}, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Log.Info().
			Str("port", cfg.Server.Port).
			Str("supply_source", cfg.Supply.Source).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}

func buildProvider(cfg *config.Config, erpnextClient *erpnext.Client) (supply.Provider, error) {
	switch cfg.Supply.Source {
	case "postgres":
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(context.Background()); err != nil {
			return nil, err
		}
		return postgres.NewProvider(db), nil
	case "erpnext":
		if erpnextClient == nil {
			erpnextClient = erpnext.NewClient(cfg.ERPNext.URL, cfg.ERPNext.APIKey, cfg.ERPNext.APISecret)
		}
		return supply.NewERPNextProvider(erpnextClient), nil
	default:
		return supply.NewCSVProvider(cfg.Supply.DataDir)
	}
}
