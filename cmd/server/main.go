package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pdf-page-viewer/internal/config"
	"pdf-page-viewer/internal/handler"

	"github.com/joho/godotenv"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}
	// Wiring
	container, err := config.NewContainer()
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	// Handlers
	viewerHandler := handler.NewViewerHandler(
		container.ViewerService,
		container.Logger,
	)

	explorerHandler := handler.NewExplorerHandler(
		container.ExplorerService,
		container.Logger,
	)

	// Router
	router := handler.NewRouter(
		viewerHandler,
		explorerHandler,
		handler.RequestLogger(container.Logger),
	)

	// start server
	server := &http.Server{
		Addr:              ":" + container.Config.GetServerPort(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server
	go func() {
		container.Logger.Info("Server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			container.Logger.Error("Server failed to start", err)
			os.Exit(1)
		}
	}()
	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	container.Logger.Info("Shutting down server...")

	// Closing the viewers first ends their event streams.
	if err := container.Close(); err != nil {
		container.Logger.Error("Failed to close viewers", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		container.Logger.Error("Server shutdown failed", err)
		_ = server.Close()
	}

	container.Logger.Info("Server exited")
}
