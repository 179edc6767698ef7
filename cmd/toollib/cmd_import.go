package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var previewImportCmd = &cobra.Command{
	Use:   "preview-import <archive.zip>",
	Short: "Parse and validate an archive without importing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreviewImport,
}

var importCmd = &cobra.Command{
	Use:   "import <archive.zip>",
	Short: "Import an archive, creating a new tool or adding a version to an existing one",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func runPreviewImport(cmd *cobra.Command, args []string) error {
	logger.Debug("previewing import", zap.String("archive", args[0]))
	preview, err := lib.PreviewImport(args[0])
	if err != nil {
		logger.Error("preview-import failed", zap.String("archive", args[0]), zap.Error(err))
		return err
	}

	for _, warning := range preview.Warnings {
		logger.Warn("import warning", zap.String("archive", args[0]), zap.String("warning", warning))
	}

	fmt.Printf("%s (%s) version %s\n", preview.ToolName, preview.Slug, preview.Version)
	fmt.Printf("%d files, %d bytes total\n", len(preview.Files), preview.TotalSizeBytes)
	for _, file := range preview.Files {
		fmt.Printf("  %s\t%d bytes\t%s\n", file.OriginalName, file.SizeBytes, file.SHA256)
	}
	for _, warning := range preview.Warnings {
		fmt.Printf("warning: %s\n", warning)
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	logger.Info("importing archive", zap.String("archive", args[0]))
	result, err := lib.ImportArchive(args[0])
	if err != nil {
		logger.Error("import failed", zap.String("archive", args[0]), zap.Error(err))
		return err
	}

	if result.CreatedTool {
		logger.Info("import created tool", zap.String("tool_id", result.ToolID), zap.String("version_id", result.VersionID))
		fmt.Printf("created tool %s with version %s\n", result.ToolID, result.VersionID)
	} else {
		logger.Info("import added version", zap.String("tool_id", result.ToolID), zap.String("version_id", result.VersionID))
		fmt.Printf("added version %s to existing tool %s\n", result.VersionID, result.ToolID)
	}
	return nil
}
