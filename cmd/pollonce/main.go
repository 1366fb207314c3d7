// Package main runs a single poll cycle and prints its JSON summary. It is
// meant to be invoked by an external timer (cron, Kubernetes CronJob):
//
//	pollonce markets
//	pollonce trades
//
// The exit code is 1 when the cycle could not fetch from upstream.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/polywatch/monitor/internal/app"
	"github.com/polywatch/monitor/internal/config"
)

func main() {
	if len(os.Args) != 2 || (os.Args[1] != "markets" && os.Args[1] != "trades") {
		fmt.Fprintln(os.Stderr, "usage: pollonce markets|trades")
		os.Exit(2)
	}
	os.Exit(run(os.Args[1]))
}

func run(cycle string) int {
	cfg := config.MustLoad()
	logger := app.NewLoggerTo(cfg, os.Stderr).With("cycle", cycle)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("store setup failed", "err", err)
		return 1
	}
	defer stores.Close()

	svc := app.NewServices(cfg, stores, nil, nil, logger)

	var result any
	switch cycle {
	case "markets":
		result, err = svc.Monitor.RunMarketCycle(ctx)
	case "trades":
		result, err = svc.Monitor.RunTradeCycle(ctx)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err != nil {
		logger.Error("cycle failed", "err", err)
		_ = enc.Encode(map[string]any{"success": false, "error": err.Error()})
		return 1
	}
	if err := enc.Encode(result); err != nil {
		logger.Error("encode summary failed", "err", err)
		return 1
	}
	return 0
}
