package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

var exportCmd = &cobra.Command{
	Use:   "export <version-id> <destination.zip>",
	Short: "Export a tool version as a zip archive on disk",
	Args:  cobra.ExactArgs(2),
	RunE:  runExport,
}

var exportPayloadCmd = &cobra.Command{
	Use:   "export-payload <version-id>",
	Short: "Export a tool version and print it as base64 plus a suggested file name",
	Args:  cobra.ExactArgs(1),
	RunE:  runExportPayload,
}

func runExport(cmd *cobra.Command, args []string) error {
	logger.Info("exporting version", zap.String("version_id", args[0]), zap.String("destination", args[1]))
	if err := lib.ExportZip(cmdContext(cmd), args[0], args[1]); err != nil {
		logger.Error("export failed", zap.String("version_id", args[0]), zap.Error(err))
		return err
	}
	fmt.Printf("exported version %s to %s\n", args[0], args[1])
	return nil
}

func runExportPayload(cmd *cobra.Command, args []string) error {
	logger.Info("exporting version payload", zap.String("version_id", args[0]))
	result, err := lib.ExportZipPayload(cmdContext(cmd), args[0])
	if err != nil {
		logger.Error("export-payload failed", zap.String("version_id", args[0]), zap.Error(err))
		return err
	}
	fmt.Printf("%s\n%s\n", result.FileName, result.DataBase64)
	return nil
}
