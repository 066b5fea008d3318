package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/erp/dre/internal/infrastructure/logger"
	"github.com/erp/dre/internal/interfaces/cli"
)

func main() {
	level := os.Getenv("DRE_LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	// stdout carries reports and CSV, so logs go to stderr
	log, err := logger.New(&logger.Config{Level: level, Format: "console", Output: "stderr"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.New(cli.Options{Logger: log}).Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
