package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codenerd/toollib/internal/toolerr"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCreateAndGet(t *testing.T) {
	c := openTestCatalog(t)

	metadata := ToolMetadataInput{Name: "CAD Helper", Description: "does things", Category: "scripts", Tags: []string{"lisp", "Lisp", " cad "}}
	version := VersionInput{Version: "1.0.0", InstructionsMD: "run it"}
	files := []FileRecordInput{{OriginalName: "install.lsp", StoredRelPath: "tools/t1/v1/files/install.lsp", SHA256: "abc", SizeBytes: 10}}

	require.NoError(t, c.Create("t1", "v1", metadata, version, files))

	detail, err := c.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, "cad-helper", detail.Slug)
	assert.Len(t, detail.Tags, 2, "expected deduped tags")
	require.Len(t, detail.Versions, 1)
	assert.Len(t, detail.Versions[0].Files, 1)
}

func TestCreateDuplicateSlugGetsSuffixed(t *testing.T) {
	c := openTestCatalog(t)

	metadata := ToolMetadataInput{Name: "Same Name", Description: "d", Category: "cat"}
	version := VersionInput{Version: "1.0.0", InstructionsMD: "x"}

	require.NoError(t, c.Create("t1", "v1", metadata, version, nil))
	require.NoError(t, c.Create("t2", "v2", metadata, version, nil))

	detail, err := c.Get("t2")
	require.NoError(t, err)
	assert.Equal(t, "same-name-2", detail.Slug)
}

func TestAddVersionRejectsDuplicateLabel(t *testing.T) {
	c := openTestCatalog(t)
	metadata := ToolMetadataInput{Name: "Tool", Description: "d", Category: "cat"}
	version := VersionInput{Version: "1.0.0", InstructionsMD: "x"}

	require.NoError(t, c.Create("t1", "v1", metadata, version, nil))

	err := c.AddVersion("t1", "v2", VersionInput{Version: "1.0.0", InstructionsMD: "y"}, nil)
	require.Error(t, err)
	assert.True(t, toolerr.Is(err, toolerr.KindConflict), "expected conflict kind, got %v", err)
}

func TestAddVersionRejectsUnknownTool(t *testing.T) {
	c := openTestCatalog(t)
	err := c.AddVersion("missing", "v1", VersionInput{Version: "1.0.0", InstructionsMD: "x"}, nil)
	assert.True(t, toolerr.Is(err, toolerr.KindNotFound), "expected not-found kind, got %v", err)
}

func TestDeleteToolCascades(t *testing.T) {
	c := openTestCatalog(t)
	metadata := ToolMetadataInput{Name: "Tool", Description: "d", Category: "cat", Tags: []string{"a"}}
	version := VersionInput{Version: "1.0.0", InstructionsMD: "x"}
	files := []FileRecordInput{{OriginalName: "a.txt", StoredRelPath: "tools/t1/v1/files/a.txt", SHA256: "x", SizeBytes: 1}}

	require.NoError(t, c.Create("t1", "v1", metadata, version, files))
	require.NoError(t, c.DeleteTool("t1"))

	_, err := c.Get("t1")
	assert.True(t, toolerr.Is(err, toolerr.KindNotFound), "expected not-found after delete, got %v", err)
}

func TestDeleteToolNotFound(t *testing.T) {
	c := openTestCatalog(t)
	err := c.DeleteTool("missing")
	assert.True(t, toolerr.Is(err, toolerr.KindNotFound), "expected not-found kind, got %v", err)
}

func TestListFilters(t *testing.T) {
	c := openTestCatalog(t)
	require.NoError(t, c.Create("t1", "v1", ToolMetadataInput{Name: "Alpha", Description: "d", Category: "lisp", Tags: []string{"cad"}}, VersionInput{Version: "1.0.0", InstructionsMD: "x"}, nil))
	require.NoError(t, c.Create("t2", "v2", ToolMetadataInput{Name: "Beta", Description: "d", Category: "script", Tags: []string{"misc"}}, VersionInput{Version: "1.0.0", InstructionsMD: "x"}, nil))

	byCategory, err := c.List(ListFilters{Category: "lisp"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "Alpha", byCategory[0].Name)

	byTag, err := c.List(ListFilters{Tag: "misc"})
	require.NoError(t, err)
	require.Len(t, byTag, 1)
	assert.Equal(t, "Beta", byTag[0].Name)

	byQuery, err := c.List(ListFilters{Query: "alp"})
	require.NoError(t, err)
	require.Len(t, byQuery, 1)
	assert.Equal(t, "Alpha", byQuery[0].Name)
}

func TestGetExportContext(t *testing.T) {
	c := openTestCatalog(t)
	files := []FileRecordInput{{OriginalName: "a.txt", StoredRelPath: "tools/t1/v1/files/a.txt", SHA256: "x", SizeBytes: 1, MIME: "text/plain"}}
	require.NoError(t, c.Create("t1", "v1", ToolMetadataInput{Name: "Tool", Description: "d", Category: "cat", Tags: []string{"a"}}, VersionInput{Version: "1.0.0", InstructionsMD: "instructions", ChangelogMD: "notes"}, files))

	ctx, err := c.GetExportContext("v1")
	require.NoError(t, err)
	assert.Equal(t, "tool", ctx.Tool.Slug)
	assert.Equal(t, "instructions", ctx.Version.InstructionsMD)
	assert.Len(t, ctx.Files, 1)
}

func TestFindToolIDBySlugAndVersionID(t *testing.T) {
	c := openTestCatalog(t)
	require.NoError(t, c.Create("t1", "v1", ToolMetadataInput{Name: "Tool", Description: "d", Category: "cat"}, VersionInput{Version: "1.0.0", InstructionsMD: "x"}, nil))

	id, err := c.FindToolIDBySlug("tool")
	require.NoError(t, err)
	assert.Equal(t, "t1", id)

	missing, err := c.FindToolIDBySlug("nope")
	require.NoError(t, err)
	assert.Empty(t, missing)

	versionID, err := c.FindVersionID("t1", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "v1", versionID)
}

func TestAllStoredRelPaths(t *testing.T) {
	c := openTestCatalog(t)
	files := []FileRecordInput{
		{OriginalName: "a.txt", StoredRelPath: "tools/t1/v1/files/a.txt", SHA256: "x", SizeBytes: 1},
		{OriginalName: "b.txt", StoredRelPath: "tools/t1/v1/files/b.txt", SHA256: "y", SizeBytes: 2},
	}
	require.NoError(t, c.Create("t1", "v1", ToolMetadataInput{Name: "Tool", Description: "d", Category: "cat"}, VersionInput{Version: "1.0.0", InstructionsMD: "x"}, files))

	paths, err := c.AllStoredRelPaths()
	require.NoError(t, err)
	assert.True(t, paths["tools/t1/v1/files/a.txt"])
	assert.True(t, paths["tools/t1/v1/files/b.txt"])
	assert.Len(t, paths, 2)
}
