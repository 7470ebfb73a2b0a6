package main

import (
	"context"
	"flag"
	"io"
	"log"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"echochat/internal/app"
	"echochat/internal/config"
	"echochat/internal/tui"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to config YAML")
	flag.Parse()

	_ = godotenv.Load()

	// the terminal belongs to the TUI, so logs are discarded here
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

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

	m := tui.New(a, a.Character.Name)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
