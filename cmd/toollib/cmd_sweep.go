package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codenerd/toollib/internal/sweep"
)

var sweepWatch bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Reconcile the blob store against the catalog, removing orphaned blobs",
	Long: `Walks the blob store, deletes any blob no file record references, and
reports any file record whose blob is missing. With --watch, stays running
and re-sweeps whenever the store changes, debouncing rapid writes.`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepWatch, "watch", false, "keep running and re-sweep on filesystem changes")
}

func runSweep(cmd *cobra.Command, args []string) error {
	if !sweepWatch {
		logger.Info("sweeping blob store", zap.String("store_root", cfg.Store.StoreRoot))
		return printSweepReport(sweep.Sweep(cat, cfg.Store.StoreRoot))
	}

	watcher, err := sweep.NewWatcher(cat, cfg.Store.StoreRoot)
	if err != nil {
		logger.Error("create watcher failed", zap.Error(err))
		return fmt.Errorf("create watcher: %w", err)
	}
	watcher.OnReport = func(report *sweep.Report) {
		logger.Info("sweep report",
			zap.Int("orphaned_blobs_removed", len(report.OrphanedBlobsRemoved)),
			zap.Int("missing_blobs", len(report.MissingBlobs)))
		_ = printSweepReport(report, nil)
	}

	ctx := cmdContext(cmd)
	if err := watcher.Start(ctx); err != nil {
		logger.Error("start watcher failed", zap.Error(err))
		return fmt.Errorf("start watcher: %w", err)
	}
	logger.Info("watching store for changes", zap.String("store_root", cfg.Store.StoreRoot), zap.Duration("debounce", sweep.DefaultDebounce))
	fmt.Printf("watching %s (debounce %s); Ctrl-C to stop\n", cfg.Store.StoreRoot, sweep.DefaultDebounce)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-signals:
	case <-ctx.Done():
	}

	watcher.Stop()
	return nil
}

func printSweepReport(report *sweep.Report, err error) error {
	if err != nil {
		return err
	}
	fmt.Printf("removed %d orphaned blobs, %d file records have missing blobs\n",
		len(report.OrphanedBlobsRemoved), len(report.MissingBlobs))
	for _, path := range report.OrphanedBlobsRemoved {
		fmt.Printf("  removed: %s\n", path)
	}
	for _, path := range report.MissingBlobs {
		fmt.Printf("  missing: %s\n", path)
	}
	return nil
}
