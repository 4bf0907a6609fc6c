package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"polling-client/internal/config"
	"polling-client/internal/stubserver"
)

func main() {
	cfg, err := config.LoadStub()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	stub := stubserver.New(stubserver.Options{
		JWTSecret:   cfg.JWTSecret,
		VotesPerMin: cfg.VotesPerMin,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: stub.Handler(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go stub.Run(ctx)

	go func() {
		logger.Info("stub server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	<-stop
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server shutdown error: %v", err)
	}

	logger.Info("stub server stopped")
}
