package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codenerd/toollib/internal/catalog"
)

var (
	listQuery    string
	listCategory string
	listTag      string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tools in the catalog",
	RunE:  runList,
}

var getCmd = &cobra.Command{
	Use:   "get <tool-id>",
	Short: "Show a tool's full detail, including all versions",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func init() {
	listCmd.Flags().StringVar(&listQuery, "query", "", "filter by case-insensitive substring match against name, slug, description, category, tags, and latest version")
	listCmd.Flags().StringVar(&listCategory, "category", "", "filter by exact category match")
	listCmd.Flags().StringVar(&listTag, "tag", "", "filter by tag")
}

func runList(cmd *cobra.Command, args []string) error {
	logger.Debug("listing tools", zap.String("query", listQuery), zap.String("category", listCategory), zap.String("tag", listTag))
	tools, err := cat.List(catalog.ListFilters{Query: listQuery, Category: listCategory, Tag: listTag})
	if err != nil {
		logger.Error("list failed", zap.Error(err))
		return err
	}

	if len(tools) == 0 {
		fmt.Println("no tools found")
		return nil
	}

	for _, tool := range tools {
		latest := "no versions"
		if tool.LatestVersion != nil {
			latest = fmt.Sprintf("%s (%d files)", tool.LatestVersion.Version, tool.LatestVersion.FileCount)
		}
		fmt.Printf("%s\t%s\t%s\t[%s]\tlatest=%s\n", tool.ID, tool.Name, tool.Category, strings.Join(tool.Tags, ","), latest)
	}
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	logger.Debug("getting tool", zap.String("tool_id", args[0]))
	detail, err := cat.Get(args[0])
	if err != nil {
		logger.Error("get failed", zap.String("tool_id", args[0]), zap.Error(err))
		return err
	}

	fmt.Printf("%s (%s)\n", detail.Name, detail.Slug)
	fmt.Printf("category: %s\ntags: %s\n", detail.Category, strings.Join(detail.Tags, ", "))
	fmt.Printf("description: %s\n\n", detail.Description)

	for _, version := range detail.Versions {
		fmt.Printf("version %s (id=%s, %d files)\n", version.Version, version.ID, len(version.Files))
		for _, file := range version.Files {
			fmt.Printf("  %s\t%d bytes\t%s\n", file.OriginalName, file.SizeBytes, file.SHA256)
		}
	}
	return nil
}
