package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sokocraft/escrow-service/internal/api"
	"github.com/sokocraft/escrow-service/internal/config"
	"github.com/sokocraft/escrow-service/internal/data/mongo"
	"github.com/sokocraft/escrow-service/internal/data/postgres"
	"github.com/sokocraft/escrow-service/internal/escrow"
	"github.com/sokocraft/escrow-service/internal/gateway/daraja"
	"github.com/sokocraft/escrow-service/internal/logger"
	"github.com/sokocraft/escrow-service/internal/platform/messaging/producers"
	"github.com/sokocraft/escrow-service/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("escrow")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producer for payment lifecycle events
	eventProducer, err := producers.NewPaymentEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize payment event Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	paymentRepo := postgres.NewPaymentRepository(log, postgresDB)
	orderRepo := postgres.NewOrderRepository(log, postgresDB)
	callbackArchive := mongo.NewCallbackArchive(log, mongoDB.Database())

	// Initialize the gateway client and the escrow service
	gatewayClient := daraja.NewClient(log, &cfg.Daraja)

	escrowService, err := escrow.NewService(log, paymentRepo, orderRepo, gatewayClient, eventProducer, &cfg.Escrow)
	if err != nil {
		log.Error("Failed to initialize escrow service", "error", err)
		os.Exit(1)
	}

	reconciler := escrow.NewReconciler(log, escrowService, callbackArchive)

	// Start the auto-release sweeper
	sweeper := escrow.NewSweeper(log, escrowService, cfg.Escrow.SweepInterval)
	go sweeper.Start(appCtx)

	// Initialize REST server
	server := api.NewServer(log, cfg, escrowService, reconciler)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context; this also stops the sweeper
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server first so no new lifecycle operations arrive
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	// Release the sweep worker pool
	escrowService.Close()

	// Shutdown postgres connection pool
	postgresDB.Close()

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
