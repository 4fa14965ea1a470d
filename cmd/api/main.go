package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/aikawa-dev/companion/backend/internal/config"
	"github.com/aikawa-dev/companion/backend/internal/handler"
	summaryHandler "github.com/aikawa-dev/companion/backend/internal/handler/summary"
	"github.com/aikawa-dev/companion/backend/internal/service/agent"
	"github.com/aikawa-dev/companion/backend/internal/service/summary"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if !cfg.Agora.Enabled() {
		log.Println("Agora credentials not configured, session routes run in demo mode")
	}
	if !cfg.Auth.Enabled() {
		log.Println("AUTH_USERNAME/AUTH_PASSWORD not set, API routes are unprotected")
	}

	agentSvc := agent.NewService(cfg.Agora, cfg.LLM, cfg.TTS, cfg.Avatar)

	var rater summaryHandler.Rater
	if cfg.LLM.Enabled() {
		summarySvc, err := summary.NewService(ctx, cfg.LLM)
		if err != nil {
			log.Printf("warning: failed to initialize summary service: %v", err)
			log.Println("continuing without conversation summaries")
		} else {
			rater = summarySvc
			log.Println("Summary service initialized successfully")
		}
	} else {
		log.Println("LLM API key not configured, skipping summary service")
	}

	router := handler.NewRouter(cfg, agentSvc, rater)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Companion backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
