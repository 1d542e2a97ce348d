// Command authlink-reconcile repairs auth ID associations left half-written
// by interrupted writes.
//
// It loads configuration the same way the library does (YAML file, then
// AUTHLINK_* environment overrides) and runs a sweep either once or on a
// cron schedule until interrupted.
//
//	authlink-reconcile -config authlink.yaml -once
//	authlink-reconcile -config authlink.yaml -schedule "@every 30m"
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/authlink"
	"github.com/robfig/cron/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "authlink-reconcile: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("authlink-reconcile", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", "", "path to a YAML config file")
		once       = fs.Bool("once", false, "run a single sweep and exit")
		schedule   = fs.String("schedule", "", "cron spec overriding reconcile.schedule")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := authlink.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *schedule != "" {
		cfg.Reconcile.Schedule = *schedule
	}

	logger := authlink.NewLogger(cfg.Logging, stderr)

	engine, err := authlink.New().
		WithConfig(cfg).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	if err := engine.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}

	if *once {
		return sweep(ctx, engine, stdout)
	}
	if cfg.Reconcile.Schedule == "" {
		return errors.New("no schedule configured; pass -once or -schedule")
	}

	c := cron.New()
	_, err = c.AddFunc(cfg.Reconcile.Schedule, func() {
		if err := sweep(ctx, engine, stdout); err != nil {
			logger.WithError(err).Error("reconcile sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", cfg.Reconcile.Schedule, err)
	}

	logger.WithField("schedule", cfg.Reconcile.Schedule).Info("reconcile scheduler started")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("reconcile scheduler stopped")
	return nil
}

type sweepSummary struct {
	Scanned     int             `json:"scanned"`
	Repaired    []authlink.Pair `json:"repaired"`
	Conflicting []authlink.Pair `json:"conflicting"`
	Tombstoned  []authlink.Pair `json:"tombstoned"`
}

func sweep(ctx context.Context, engine *authlink.Engine, out io.Writer) error {
	report, err := engine.Reconcile(ctx)
	if err != nil {
		return err
	}
	summary := sweepSummary{
		Scanned:     report.Scanned,
		Repaired:    report.Repaired,
		Conflicting: report.Conflicting,
		Tombstoned:  report.Tombstoned,
	}
	if summary.Repaired == nil {
		summary.Repaired = []authlink.Pair{}
	}
	if summary.Conflicting == nil {
		summary.Conflicting = []authlink.Pair{}
	}
	if summary.Tombstoned == nil {
		summary.Tombstoned = []authlink.Pair{}
	}
	return json.NewEncoder(out).Encode(summary)
}
