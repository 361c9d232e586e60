package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinicq/queue-engine/internal/appointments"
	"clinicq/queue-engine/internal/config"
	"clinicq/queue-engine/internal/directory"
	"clinicq/queue-engine/internal/httpapi"
	"clinicq/queue-engine/internal/notify"
	"clinicq/queue-engine/internal/queue"
	"clinicq/queue-engine/internal/store"
	"clinicq/queue-engine/internal/store/memory"
	"clinicq/queue-engine/internal/store/postgres"
	"clinicq/queue-engine/internal/telemetry"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()

	loc := time.UTC
	if cfg.ClinicTimezone != "" {
		parsed, err := time.LoadLocation(cfg.ClinicTimezone)
		if err != nil {
			log.Fatalf("clinic timezone %q: %v", cfg.ClinicTimezone, err)
		}
		loc = parsed
	}

	shutdownTelemetry := telemetry.Setup("queue-engine")

	var (
		ticketStore store.TicketStore
		appts       appointments.Service
		dir         directory.Directory
	)
	if cfg.DatabaseURL == "" {
		log.Printf("DB_DSN not set, using in-memory stores")
		ticketStore = memory.NewStore(loc)
		appts = appointments.NewMemory()
		dir = directory.NewStatic()
	} else {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect: %v", err)
		}
		defer pool.Close()
		ticketStore = postgres.NewStore(pool, loc)
		appts = appointments.NewPostgres(pool)
		dir = directory.NewPostgres(pool)
	}

	sink := notify.NewSink(cfg.NotifySink, cfg.NotifyWebhookURL, cfg.NotifyWebhookToken)
	trigger := notify.NewTrigger(ticketStore, dir, sink)
	engine := queue.New(ticketStore, appts, dir, trigger, loc)

	handler := httpapi.NewHandler(engine)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:     cfg.RateLimitPerMinute,
		IPBurst:         cfg.RateLimitBurst,
		ClientPerMinute: cfg.ClientRateLimitPerMinute,
		ClientBurst:     cfg.ClientRateLimitBurst,
	})

	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(handler.Routes())), "queue-engine")

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("queue-engine listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if err := shutdownTelemetry(ctx); err != nil {
		log.Printf("telemetry shutdown error: %v", err)
	}
}
