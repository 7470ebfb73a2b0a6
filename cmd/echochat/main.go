package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"echochat/internal/app"
	"echochat/internal/config"
	"echochat/internal/server"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to config YAML")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		log.Fatalf("failed to assemble application: %v", err)
	}
	defer a.Close()

	if err := a.Bootstrap(context.Background()); err != nil {
		log.Fatalf("failed to index knowledge corpus: %v", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("listening", "addr", addr, "character", a.Character.Name)

	srv := &http.Server{
		Addr:    addr,
		Handler: server.New(a, logger).Handler(),
	}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
