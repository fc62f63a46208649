package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fieldops-scheduler-backend/config"
	"fieldops-scheduler-backend/internal/api"
	"fieldops-scheduler-backend/internal/db"
	"fieldops-scheduler-backend/internal/model"
	"fieldops-scheduler-backend/internal/notification"
	"fieldops-scheduler-backend/internal/registry"
	"fieldops-scheduler-backend/internal/schedule"
	"fieldops-scheduler-backend/internal/store"

	"github.com/SherClockHolmes/webpush-go"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "schedulerd ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	// Check for VAPID keys
	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Fatalf("VAPID keys must be configured. Please generate them and add them to your config file.")
	}

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		logger.Fatalf("invalid scheduler timezone %q: %v", cfg.Scheduler.Timezone, err)
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wire the scheduling domain: store, registry, notification pool,
	// and the reschedule engine on top of them.
	eventStore := store.NewGormStore(gormDB, loc)
	resourceRegistry := registry.New(gormDB, loc)
	logger.Println("data store initialized")

	workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, &webpushOptions, notification.EchoResolver{})
	workerPool.Start(ctx)

	engine := schedule.NewEngine(eventStore, resourceRegistry, workerPool, cfg.Scheduler.LockWait)

	windowStart, err := model.ParseClock(cfg.Scheduler.OperatingWindowStart)
	if err != nil {
		logger.Fatalf("invalid operating_window_start: %v", err)
	}
	windowEnd, err := model.ParseClock(cfg.Scheduler.OperatingWindowEnd)
	if err != nil {
		logger.Fatalf("invalid operating_window_end: %v", err)
	}

	// Initialize router
	handler := api.NewHandler(engine, eventStore, resourceRegistry, &webpushOptions, windowStart, windowEnd)
	router := api.NewRouter(handler, &cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
