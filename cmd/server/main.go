package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/rental-booking/internal/cache"
	"github.com/iliyamo/rental-booking/internal/clock"
	"github.com/iliyamo/rental-booking/internal/config"
	"github.com/iliyamo/rental-booking/internal/database"
	"github.com/iliyamo/rental-booking/internal/handler"
	"github.com/iliyamo/rental-booking/internal/obs"
	"github.com/iliyamo/rental-booking/internal/queue"
	"github.com/iliyamo/rental-booking/internal/repository"
	"github.com/iliyamo/rental-booking/internal/router"
	"github.com/iliyamo/rental-booking/internal/scheduler"
	"github.com/iliyamo/rental-booking/internal/service"
)

const serviceName = "rental-booking"

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := obs.NewLogger(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, serviceName, cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}

	db, err := database.Open(ctx, database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName))
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	// Redis is optional: without it every read goes to the database.
	var layer *cache.Layer
	if cfg.Cache.Enabled {
		rdb := config.NewRedisClient(cfg.Redis)
		if rdb == nil {
			log.Warn("redis unreachable, caching disabled", "addr", cfg.Redis.Address())
		} else {
			defer rdb.Close()
		}
		layer = cache.New(rdb, cache.Options{
			ScanCount:  cfg.Cache.ScanCount,
			RetryDelay: cfg.Cache.EvictRetryDelay,
			Logger:     log,
		})
	}

	pub := queue.NewPublisher(cfg.RabbitURL, log)
	defer pub.Close()

	svc := service.NewBookingService(service.Deps{
		Store:      repository.NewMySQLStore(db),
		Cache:      layer,
		Namespaces: service.NamespacesFrom(cfg.Cache),
		Notifier:   pub,
		Mailer:     pub,
		Clock:      clock.Real(),
		Buffer:     cfg.AvailabilityBuffer,
		Logger:     log,
	})

	fin, err := scheduler.NewFinalizer(svc, cfg.FinalizerAt, clock.Real(), log)
	if err != nil {
		return err
	}
	go fin.Start(ctx)
	go queue.StartConsumer(ctx, cfg.RabbitURL, queue.Sink{Dir: filepath.Join(".", "logs")}, log)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	bookings := handler.NewBookingHandler(svc)
	router.RegisterRoutes(e, db, bookings)
	router.RegisterBookings(e, bookings, cfg.JWTSecret)

	addr := ":" + cfg.Port
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "err", err)
	}
	layer.Wait()
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error("tracer shutdown", "err", err)
	}
	return nil
}
