// Command main is the entry point for the mindlog API server.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mindlog/internal/bootstrap"
	"mindlog/internal/config"
	"mindlog/internal/jobs"
	"mindlog/internal/observability"
	"mindlog/internal/repository"
	"mindlog/internal/server"
)

// @title mindlog API
// @version 1.0
// @description Mind-map logs with images, related logs, comments and likes

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "mindlog-api",
		ServiceVersion: "1.0",
		Environment:    cfg.Env,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   1,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	rt, err := bootstrap.InitRuntime(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	srv, err := server.NewServerWithDeps(cfg, rt.DB, rt.Redis, rt.Store)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	executor := jobs.NewTaskExecutor(
		jobs.NewTitleRefresher(repository.NewLogRepository(rt.DB), cfg.TitleRefreshSchedule, cfg.TitleRefreshBatchSize),
	)
	if err := executor.Start(); err != nil {
		log.Fatalf("Failed to start background jobs: %v", err)
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		executor.Stop()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("Tracing shutdown error: %v", err)
		}
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
