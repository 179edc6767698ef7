// Package main implements the toollib CLI: a thin cobra wrapper around
// internal/toollib's Library, giving the tool-library operations a
// command-line surface (list, get, create, add-version, delete, export,
// export-payload, preview-import, import, sweep).
//
// # File Index
//
//   - main.go       - entry point, rootCmd, global flags, composition root
//   - cmd_list.go   - listCmd, getCmd
//   - cmd_create.go - createCmd, addVersionCmd, deleteCmd
//   - cmd_export.go - exportCmd, exportPayloadCmd
//   - cmd_import.go - previewImportCmd, importCmd
//   - cmd_sweep.go  - sweepCmd
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"codenerd/toollib/internal/blobstore"
	"codenerd/toollib/internal/catalog"
	"codenerd/toollib/internal/config"
	"codenerd/toollib/internal/logging"
	"codenerd/toollib/internal/staging"
	"codenerd/toollib/internal/toollib"
)

var (
	verbose    bool
	configPath string

	logger *zap.Logger
	cfg    *config.Config
	cat    *catalog.Catalog
	lib    *toollib.Library
)

var rootCmd = &cobra.Command{
	Use:   "toollib",
	Short: "toollib - content-addressed, versioned tool library storage",
	Long: `toollib ingests, versions, stores, and exports collections of files
(tools) as zip archives with a JSON manifest, backed by a SQLite catalog
and a content-addressed blob store on disk.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapConfig := zap.NewProductionConfig()
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}

		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded

		if err := logging.Initialize(cfg.Store.StateDir); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to initialize file logging: %v\n", err)
		}

		cat, err = catalog.Open(cfg.DatabasePath())
		if err != nil {
			logger.Error("open catalog failed", zap.String("db_path", cfg.DatabasePath()), zap.Error(err))
			return fmt.Errorf("open catalog: %w", err)
		}

		store := blobstore.New(cfg.Store.StoreRoot)
		limits := staging.Limits{
			MaxFileSizeBytes:  cfg.Limits.MaxFileSizeBytes,
			MaxTotalSizeBytes: cfg.Limits.MaxTotalSizeBytes,
		}
		lib = toollib.New(cat, store, limits)
		logger.Info("toollib ready", zap.String("db_path", cfg.DatabasePath()), zap.String("store_root", cfg.Store.StoreRoot))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if cat != nil {
			_ = cat.Close()
		}
		logging.CloseAll()
		if logger != nil {
			logger.Debug("shutting down")
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level CLI logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to toollib.yaml")

	rootCmd.AddCommand(
		listCmd,
		getCmd,
		createCmd,
		addVersionCmd,
		deleteCmd,
		exportCmd,
		exportPayloadCmd,
		previewImportCmd,
		importCmd,
		sweepCmd,
	)
}

func defaultConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil || configDir == "" {
		return "toollib.yaml"
	}
	return filepath.Join(configDir, "codenerd-toollib", "toollib.yaml")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
