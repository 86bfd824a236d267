// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/config"
	"github.com/Shivanand-hulikatti/campus-events/internal/database"
	"github.com/Shivanand-hulikatti/campus-events/internal/handler"
	infrakafka "github.com/Shivanand-hulikatti/campus-events/internal/infra/kafka"
	infraredis "github.com/Shivanand-hulikatti/campus-events/internal/infra/redis"
	"github.com/Shivanand-hulikatti/campus-events/internal/ledger"
	"github.com/Shivanand-hulikatti/campus-events/internal/logger"
	"github.com/Shivanand-hulikatti/campus-events/internal/notify"
	"github.com/Shivanand-hulikatti/campus-events/internal/repository"
	"github.com/Shivanand-hulikatti/campus-events/internal/repository/memory"
	"github.com/Shivanand-hulikatti/campus-events/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

// stores bundles the persistence contracts the service and ledger need.
type stores struct {
	catalog       service.Catalog
	registrations service.Registrations
	ledger        ledger.Store
	close         func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	l := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	defer func() { _ = l.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Storage ────────────────────────────────────────────────────────
	st, err := openStores(ctx, cfg.Database, l)
	if err != nil {
		l.Fatal("Failed to open store", "driver", cfg.Database.Driver, "error", err)
	}
	defer st.close()

	// ── 2. Notification sinks ─────────────────────────────────────────────
	sinks := []notify.Sink{notify.NewLogSink(l)}

	var kafkaSink *notify.KafkaSink
	if cfg.Kafka.Enabled {
		producer, err := infrakafka.NewProducer(cfg.Kafka)
		if err != nil {
			l.Fatal("Failed to create Kafka producer", "error", err)
		}
		kafkaSink = notify.NewKafkaSink(producer, cfg.Kafka.TopicPrefix, l)
		sinks = append(sinks, kafkaSink)
		l.Info("Kafka notifications enabled", "brokers", cfg.Kafka.Brokers)
	}

	var (
		redisCli *redis.Client
		inbox    handler.Inbox
	)
	if cfg.Redis.Enabled {
		redisCli, err = infraredis.Connect(ctx, cfg.Redis)
		if err != nil {
			l.Fatal("Failed to connect to Redis", "addr", cfg.Redis.Addr, "error", err)
		}
		in := notify.NewInbox(redisCli, cfg.Redis.InboxSize, cfg.Redis.InboxTTL, l)
		sinks = append(sinks, in)
		inbox = in
		l.Info("In-app notifications enabled", "addr", cfg.Redis.Addr)
	}

	dispatcher := notify.NewDispatcher(sinks, cfg.Notify.Workers, cfg.Notify.BufferSize, l)
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		if err := dispatcher.Run(context.Background()); err != nil {
			l.Error("Notice dispatcher failed", "error", err)
		}
	}()

	// ── 3. Wire up layers ─────────────────────────────────────────────────
	ldg := ledger.New(st.ledger, dispatcher, l)
	eventSvc := service.NewEventService(st.catalog, st.registrations, ldg, l)
	eventHandler := handler.NewEventHandler(eventSvc, inbox, l)

	// ── 4. Build the router ───────────────────────────────────────────────
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(logger.HTTPLogger(l))    // structured access log
	r.Use(handler.CORS)

	eventHandler.Routes(r)

	// ── 5. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		l.Info("Server listening", "port", cfg.Server.Port, "store", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("Server error", "error", err)
		}
	}()

	<-ctx.Done()
	l.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("Graceful shutdown failed", "error", err)
	}

	// Requests are done; drain what they queued before closing the sinks.
	dispatcher.Close()
	select {
	case <-dispatchDone:
	case <-shutdownCtx.Done():
		l.Warn("Notice dispatcher did not drain in time")
	}

	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			l.Error("Failed to close Kafka producer", "error", err)
		}
	}
	if err := infraredis.Disconnect(redisCli); err != nil {
		l.Error("Failed to close Redis client", "error", err)
	}
	l.Info("Server stopped")
}

func openStores(ctx context.Context, cfg config.DatabaseConfig, l logger.Logger) (*stores, error) {
	if cfg.Driver == config.StoreMemory {
		m := memory.New()
		l.Warn("Using in-memory store; data is lost on restart")
		return &stores{catalog: m, registrations: m, ledger: m, close: func() {}}, nil
	}

	pool, err := database.NewPool(ctx, cfg, l)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	l.Info("Connected to PostgreSQL", "host", cfg.Host, "db", cfg.DBName)

	return &stores{
		catalog:       repository.NewEventRepository(pool),
		registrations: repository.NewRegistrationRepository(pool),
		ledger:        repository.NewLedgerStore(pool),
		close:         pool.Close,
	}, nil
}
