package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tilegarden/internal/config"
	httphandlers "tilegarden/internal/http"
	"tilegarden/internal/logger"
)

func main() {
	configPath := getEnv("TILEGARDEN_CONFIG", "tilegarden.yaml")
	port := getEnvInt("PORT", 8080)
	logLevel := getEnv("LOG_LEVEL", "info")
	consoleLog := getEnv("LOG_FORMAT", "json") == "console"

	log, err := logger.New(logLevel, consoleLog)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	reloader, err := config.NewReloader(configPath, log)
	if err != nil {
		log.Fatal("Failed to build configuration", zap.String("path", configPath), zap.Error(err))
	}
	log.Info("Configuration built",
		zap.String("path", configPath),
		zap.Strings("layers", reloader.Current().Layers.Names()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := reloader.Watch(ctx); err != nil && ctx.Err() == nil {
			log.Error("Configuration watcher stopped", zap.Error(err))
		}
	}()

	handlers := httphandlers.New(reloader, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handlers.HandleHealthz)
	mux.HandleFunc("/", handlers.HandleTile)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handlers.RequestLoggingMiddleware(mux),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()
	log.Info("Server started", zap.Int("port", port))

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
