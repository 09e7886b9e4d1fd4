package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/mekonnend/ourlocalmarket/internal/config"
	"github.com/mekonnend/ourlocalmarket/internal/es"
	"github.com/mekonnend/ourlocalmarket/internal/events"
	"github.com/mekonnend/ourlocalmarket/internal/handlers"
	"github.com/mekonnend/ourlocalmarket/internal/logging"
	"github.com/mekonnend/ourlocalmarket/internal/middleware"
	"github.com/mekonnend/ourlocalmarket/internal/repo"
	"github.com/mekonnend/ourlocalmarket/internal/service/catalog"
	"github.com/mekonnend/ourlocalmarket/internal/service/order"
	"github.com/mekonnend/ourlocalmarket/internal/service/review"
	"github.com/mekonnend/ourlocalmarket/internal/service/search"
	"github.com/mekonnend/ourlocalmarket/internal/service/stats"
	"github.com/mekonnend/ourlocalmarket/internal/service/token"
	transport "github.com/mekonnend/ourlocalmarket/internal/transport/http"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel)

	config.MustNonEmpty(cfg.JWT_SECRET, "JWT_SECRET")
	config.MustNonEmpty(cfg.REFRESH_SECRET, "REFRESH_SECRET")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.InitDB(ctx, cfg)
	if err != nil {
		log.Error("db init failed", "error", err)
		os.Exit(1)
	}

	producer := events.NewProducer(cfg.KafkaBrokers())
	defer producer.Close()

	esClient, err := es.NewClient(cfg)
	if err != nil {
		log.Warn("elasticsearch unavailable, search disabled", "error", err)
		esClient = nil
	}

	store := repo.New(db)

	tokens := &token.Service{
		DB:            db,
		JWTSecret:     []byte(cfg.JWT_SECRET),
		RefreshSecret: []byte(cfg.REFRESH_SECRET),
	}

	catalogSvc := &catalog.Service{Products: store.Products}
	orderSvc := &order.Service{Orders: store.Orders, Products: store.Products}
	reviewSvc := &review.Service{
		Reviews:  store.Reviews,
		Products: store.Products,
		Orders:   store.Orders,
		Users:    store.Users,
	}
	statsSvc := &stats.Service{
		Orders:   store.Orders,
		Products: store.Products,
		Users:    store.Users,
	}

	production := cfg.Production()

	e := echo.New()
	e.HideBanner = true
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))

	transport.Register(e, transport.Deps{
		Auth: &handlers.AuthHandler{
			DB:         db,
			Tokens:     tokens,
			Producer:   producer,
			Production: production,
		},
		Products: &handlers.ProductHandler{
			Catalog:    catalogSvc,
			Stats:      statsSvc,
			Producer:   producer,
			ES:         esClient,
			ESIndex:    search.DefaultIndex,
			UploadDir:  cfg.UploadDir,
			Production: production,
		},
		Orders: &handlers.OrderHandler{
			Orders:     orderSvc,
			Stats:      statsSvc,
			Producer:   producer,
			Production: production,
		},
		Reviews: &handlers.ReviewHandler{
			Reviews:    reviewSvc,
			Producer:   producer,
			Production: production,
		},
		Search: &handlers.SearchHandler{
			ES:         esClient,
			Index:      search.DefaultIndex,
			Production: production,
		},
		Tokens:    tokens,
		DB:        db,
		UploadDir: cfg.UploadDir,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "addr", srv.Addr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Info("stopped")
}
