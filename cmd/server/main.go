/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the pick planning server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, YAML file, environment, flags)
  2. Configure logging and metrics
  3. Open the store (SQLite file, or in-memory when no path is set)
  4. Create planner, API handler and dispatch scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config     YAML config file (optional)
  -port       HTTP server port, overrides config
  -db         SQLite database path, overrides config
              Use ":memory:" for an in-memory database
  -log-level  debug, info, warn, error

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the dispatch scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server -db="./data/pick.db"
  ./server -config=pick.yaml -port=3000
  PICK_LOG_FORMAT=text ./server

SEE ALSO:
  - config/config.go: Settings and environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/pick-engine/api"
	"github.com/warp/pick-engine/config"
	"github.com/warp/pick-engine/logging"
	"github.com/warp/pick-engine/metrics"
	"github.com/warp/pick-engine/picking"
	"github.com/warp/pick-engine/picking/store"
	"github.com/warp/pick-engine/planner"
	"github.com/warp/pick-engine/store/sqlite"
)

type backend interface {
	picking.Store
	picking.OrderQueue
}

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	logLevel := flag.String("log-level", "", "Log level (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	if err := logging.Configure(cfg.Log.Level, cfg.Log.Format, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	log := logging.Logger()
	metrics.RegisterDefault()

	// Initialize store
	var db backend
	if cfg.Database.Path == "" {
		log.Warn("no database path configured, inventory and runs are kept in memory")
		db = store.NewMemory()
	} else {
		sq, err := sqlite.New(cfg.Database.Path)
		if err != nil {
			log.WithError(err).Fatal("failed to initialize database")
		}
		defer sq.Close()
		db = sq
	}

	inv, err := db.LoadInventory(context.Background())
	if err != nil {
		log.WithError(err).Fatal("failed to load inventory")
	}
	metrics.InventoryRecords.Set(float64(len(inv)))

	// Planner and handler
	proc := picking.NewProcessor(
		picking.WithLogger(log),
		picking.WithObserver(metrics.Observer{}),
	)
	p := planner.New(db, proc)
	p.MaxOrders = cfg.Planning.MaxOrdersPerRun

	handler := api.NewHandler(p, db)

	scheduler := api.NewDispatchScheduler(p, db)
	scheduler.Enabled = cfg.Dispatch.Enabled
	scheduler.Interval = cfg.Dispatch.Interval
	handler.Scheduler = scheduler
	scheduler.Start()

	// Create router
	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins: cfg.Server.CORSOrigins,
		WriteRate:   cfg.Server.WriteRate,
		WriteBurst:  cfg.Server.WriteBurst,
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithField("addr", server.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
		return
	}

	log.Info("server stopped")
}
