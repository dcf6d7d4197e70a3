package main

import (
	"context"
	"fmt"
	"os"

	"workx/internal/cli"
	"workx/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	deps := &cli.Dependencies{
		Config: cfg,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
	return cli.NewRootCmd(deps).ExecuteContext(context.Background())
}
