package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wildguard/sentinel/internal/adapter"
	"github.com/wildguard/sentinel/internal/report"
	"github.com/wildguard/sentinel/internal/sink"
	"github.com/wildguard/sentinel/internal/store"
	"github.com/wildguard/sentinel/internal/supervisor"
	"github.com/wildguard/sentinel/internal/transport"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a continuous scan session across all registered marketplaces",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := sink.Open(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
		if err != nil {
			return eris.Wrap(err, "run: open store")
		}
		defer pool.Close()

		detectionSink := sink.New(pool)
		registry, cleanup := buildAdapterRegistry(ctx)
		defer cleanup()

		runTag := fmt.Sprintf("run-%s", time.Now().UTC().Format("20060102T150405Z"))
		sup, err := supervisor.New(cfg, registry, detectionSink, runTag)
		if err != nil {
			return eris.Wrap(err, "run: build supervisor")
		}

		zap.L().Info("starting scan session",
			zap.String("run_tag", runTag),
			zap.Duration("scan_duration", cfg.Scheduler.ScanDuration),
			zap.Strings("platforms", registry.Names()),
		)

		summary := sup.Run(ctx, cfg.Scheduler.ScanDuration)

		persistCtx, persistCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer persistCancel()
		if err := store.UpsertRunSummary(persistCtx, pool, summary); err != nil {
			zap.L().Warn("run: failed to persist run summary", zap.Error(err))
		}

		fmt.Print(report.FormatSessionSummary(summary))
		return nil
	},
}

// buildAdapterRegistry wires every platform adapter this binary knows
// how to drive: the eBay Browse API over OAuth2, the server-rendered
// HTML marketplaces, and the JS-rendered marketplaces behind chromedp.
// The returned cleanup func tears down the shared headless Chrome
// allocator and must be deferred by the caller.
func buildAdapterRegistry(ctx context.Context) (*adapter.Registry, func()) {
	reg := adapter.NewRegistry()

	reg.Register(adapter.NewEBayAdapter(adapter.EBayConfig{
		AppID:  cfg.EBay.AppID,
		CertID: cfg.EBay.CertID,
	}))

	httpClient := transport.New(transport.Options{})
	for platform, selectors := range adapter.DefaultSelectors() {
		reg.Register(adapter.NewHTMLAdapter(platform, httpClient.Get, selectors))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	for platform, selectors := range adapter.DefaultHeadlessSelectors() {
		reg.Register(adapter.NewHeadlessAdapter(platform, allocCtx, selectors))
	}

	return reg, allocCancel
}

func init() {
	rootCmd.AddCommand(runCmd)
}
