/*
main.go - Application entry point

PURPOSE:
  Starts the branch cashbook service: loads configuration, opens the
  configured store, wires the ledger and cashbook service, and serves
  the HTTP API with graceful shutdown.

CONFIGURATION (environment, .env honored):
  PORT                HTTP port (default 8080)
  DB_DRIVER           sqlite | postgres | memory (default sqlite)
  DB_PATH             SQLite path (default kanza.db, ":memory:" works)
  DATABASE_URL        PostgreSQL URL (required for postgres driver)
  KAFKA_BROKERS       comma-separated; empty disables event publishing
  DAY_OFFSET_MINUTES  day-boundary UTC offset (default 330 = IST)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, drain for up to 30s,
  close the store, exit.
*/
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/willowysolutions/kanza-accounts-sub002/api"
	"github.com/willowysolutions/kanza-accounts-sub002/cashbook"
	"github.com/willowysolutions/kanza-accounts-sub002/config"
	"github.com/willowysolutions/kanza-accounts-sub002/events"
	"github.com/willowysolutions/kanza-accounts-sub002/events/kafka"
	"github.com/willowysolutions/kanza-accounts-sub002/ledger"
	"github.com/willowysolutions/kanza-accounts-sub002/store/memory"
	"github.com/willowysolutions/kanza-accounts-sub002/store/postgres"
	"github.com/willowysolutions/kanza-accounts-sub002/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, closer, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafka.NewPublisher(cfg.KafkaBrokers)
		defer kp.Close()
		publisher = kp
		log.Printf("Publishing balance events to %v", cfg.KafkaBrokers)
	}

	service := cashbook.NewService(store, ledger.New(cfg.DayOffsetMinutes), publisher)
	router := api.NewRouter(api.NewHandler(service))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Cashbook API listening on :%d (driver=%s)", cfg.Port, cfg.Driver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func openStore(cfg *config.Config) (cashbook.TxStore, io.Closer, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.SQLitePath)
		return s, s, err
	case config.DriverPostgres:
		s, err := postgres.New(context.Background(), cfg.DatabaseURL)
		return s, s, err
	case config.DriverMemory:
		return memory.New(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
}
