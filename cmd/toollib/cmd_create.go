package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codenerd/toollib/internal/catalog"
	"codenerd/toollib/internal/staging"
	"codenerd/toollib/internal/toollib"
)

var (
	createName        string
	createDescription string
	createCategory    string
	createTags        []string
	createVersion     string
	createInstrFile   string
	createChangelog   string

	addVersionLabel     string
	addVersionInstrFile string
	addVersionChangelog string
)

var createCmd = &cobra.Command{
	Use:   "create <file>...",
	Short: "Create a new tool from one or more files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCreate,
}

var addVersionCmd = &cobra.Command{
	Use:   "add-version <tool-id> <file>...",
	Short: "Add a new version to an existing tool",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runAddVersion,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <tool-id>",
	Short: "Delete a tool and all of its versions and files",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	createCmd.Flags().StringVar(&createName, "name", "", "tool name (required)")
	createCmd.Flags().StringVar(&createDescription, "description", "", "tool description (required)")
	createCmd.Flags().StringVar(&createCategory, "category", "", "tool category (required)")
	createCmd.Flags().StringArrayVar(&createTags, "tag", nil, "tag (repeatable)")
	createCmd.Flags().StringVar(&createVersion, "version", toollib.DefaultInitialVersion, "initial version label")
	createCmd.Flags().StringVar(&createInstrFile, "instructions-file", "", "path to instructions markdown (required)")
	createCmd.Flags().StringVar(&createChangelog, "changelog-file", "", "path to changelog markdown")
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("description")
	_ = createCmd.MarkFlagRequired("category")
	_ = createCmd.MarkFlagRequired("instructions-file")

	addVersionCmd.Flags().StringVar(&addVersionLabel, "version", "", "version label (required)")
	addVersionCmd.Flags().StringVar(&addVersionInstrFile, "instructions-file", "", "path to instructions markdown (required)")
	addVersionCmd.Flags().StringVar(&addVersionChangelog, "changelog-file", "", "path to changelog markdown")
	_ = addVersionCmd.MarkFlagRequired("version")
	_ = addVersionCmd.MarkFlagRequired("instructions-file")
}

func runCreate(cmd *cobra.Command, args []string) error {
	instructions, err := readFileOrEmpty(createInstrFile)
	if err != nil {
		return err
	}
	changelog, err := readFileOrEmpty(createChangelog)
	if err != nil {
		return err
	}

	files, err := loadInboundFiles(args)
	if err != nil {
		return err
	}

	result, err := lib.Create(toollib.CreateRequest{
		Metadata: catalog.ToolMetadataInput{
			Name:        createName,
			Description: createDescription,
			Category:    createCategory,
			Tags:        createTags,
		},
		Version:        createVersion,
		ChangelogMD:    changelog,
		InstructionsMD: instructions,
		Files:          files,
	})
	if err != nil {
		logger.Error("create failed", zap.String("name", createName), zap.Error(err))
		return err
	}

	logger.Info("created tool", zap.String("tool_id", result.ToolID), zap.String("version_id", result.VersionID))
	fmt.Printf("created tool %s, version %s\n", result.ToolID, result.VersionID)
	return nil
}

func runAddVersion(cmd *cobra.Command, args []string) error {
	toolID := args[0]
	instructions, err := readFileOrEmpty(addVersionInstrFile)
	if err != nil {
		return err
	}
	changelog, err := readFileOrEmpty(addVersionChangelog)
	if err != nil {
		return err
	}

	files, err := loadInboundFiles(args[1:])
	if err != nil {
		return err
	}

	result, err := lib.AddVersion(toollib.AddVersionRequest{
		ToolID:         toolID,
		Version:        addVersionLabel,
		ChangelogMD:    changelog,
		InstructionsMD: instructions,
		Files:          files,
	})
	if err != nil {
		logger.Error("add-version failed", zap.String("tool_id", toolID), zap.Error(err))
		return err
	}

	logger.Info("added version", zap.String("tool_id", result.ToolID), zap.String("version_id", result.VersionID))
	fmt.Printf("added version %s to tool %s\n", result.VersionID, result.ToolID)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	if err := lib.Delete(args[0]); err != nil {
		logger.Error("delete failed", zap.String("tool_id", args[0]), zap.Error(err))
		return err
	}
	logger.Info("deleted tool", zap.String("tool_id", args[0]))
	fmt.Printf("deleted tool %s\n", args[0])
	return nil
}

func readFileOrEmpty(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func loadInboundFiles(paths []string) ([]staging.InboundFile, error) {
	files := make([]staging.InboundFile, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		files = append(files, staging.InboundFile{
			OriginalName: filepath.Base(path),
			DataBase64:   base64.StdEncoding.EncodeToString(data),
		})
	}
	return files, nil
}
