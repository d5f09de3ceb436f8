package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"

	"marketpulse/internal/config"
)

func main() {
	configFile := flag.String("config", "", "Path to a YAML config file (default: ./config.yaml or $HOME/.marketpulse/config.yaml).")

	a := &app{}
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	register(commander, a)
	flag.Parse()

	// Load configuration
	loader := config.NewLoader(*configFile)
	cfg, err := loader.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	built, err := newApp(cfg, logger, os.Stdout)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	*a = *built

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	a.watch(ctx, loader)

	status := commander.Execute(ctx)
	cancel()
	os.Exit(int(status))
}
