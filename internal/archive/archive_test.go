package archive

import (
	"archive/zip"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codenerd/toollib/internal/blobstore"
	"codenerd/toollib/internal/catalog"
	"codenerd/toollib/internal/staging"
)

func TestBuildManifest(t *testing.T) {
	ctx := &catalog.ExportContext{
		Tool:    catalog.ToolMetadataExport{Name: "CAD Toolset", Slug: "cad-toolset", Description: "d", Category: "cad", Tags: []string{"autocad"}},
		Version: catalog.VersionExport{Version: "1.0.0", ChangelogMD: "Initial release"},
		Files: []catalog.FileDetail{
			{OriginalName: "install.scr", SHA256: "abc", SizeBytes: 100},
		},
	}

	manifest, err := BuildManifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cad-toolset", manifest.Tool.Slug)

	want := []ManifestFile{{OriginalName: "install.scr", SHA256: "abc", SizeBytes: 100, RelativePath: "files/install.scr"}}
	if diff := cmp.Diff(want, manifest.Files); diff != "" {
		t.Errorf("manifest files mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildManifestRejectsCaseFoldDuplicate(t *testing.T) {
	ctx := &catalog.ExportContext{
		Tool:    catalog.ToolMetadataExport{Name: "T", Slug: "t", Description: "d", Category: "c"},
		Version: catalog.VersionExport{Version: "1.0.0"},
		Files: []catalog.FileDetail{
			{OriginalName: "Install.SCR", SHA256: "abc", SizeBytes: 1},
			{OriginalName: "install.scr", SHA256: "def", SizeBytes: 2},
		},
	}

	_, err := BuildManifest(ctx)
	assert.Error(t, err)
}

func TestExportImportRoundTrip(t *testing.T) {
	root := t.TempDir()
	store := blobstore.New(root)

	files := []staging.StagedFile{
		{StoredRelPath: "tools/tool_1/version_1/files/install.scr", Bytes: []byte("install script")},
	}
	_, err := store.Write(files)
	require.NoError(t, err)

	exportCtx := &catalog.ExportContext{
		ToolID:    "tool_1",
		VersionID: "version_1",
		Tool:      catalog.ToolMetadataExport{Name: "CAD Toolset", Slug: "cad-toolset", Description: "d", Category: "cad", Tags: []string{"autocad"}},
		Version:   catalog.VersionExport{Version: "1.0.0", InstructionsMD: "# install"},
		Files: []catalog.FileDetail{
			{OriginalName: "install.scr", StoredRelPath: "tools/tool_1/version_1/files/install.scr", SHA256: staging.SHA256Hex([]byte("install script")), SizeBytes: int64(len("install script"))},
		},
	}

	destination := filepath.Join(t.TempDir(), "export.zip")
	require.NoError(t, Export(context.Background(), store, exportCtx, destination))
	_, err = os.Stat(destination)
	require.NoError(t, err, "expected archive file")

	parsed, err := Import(destination, staging.DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, "cad-toolset", parsed.Metadata.Slug)
	assert.Equal(t, "# install", parsed.Version.InstructionsMD)
	require.Len(t, parsed.Files, 1)
	assert.Equal(t, "install script", string(parsed.Files[0].Bytes))
}

func TestExportRejectsSizeMismatch(t *testing.T) {
	root := t.TempDir()
	store := blobstore.New(root)
	files := []staging.StagedFile{{StoredRelPath: "tools/t/v/files/a.txt", Bytes: []byte("a")}}
	_, err := store.Write(files)
	require.NoError(t, err)

	exportCtx := &catalog.ExportContext{
		ToolID:    "t",
		VersionID: "v",
		Tool:      catalog.ToolMetadataExport{Name: "T", Slug: "t", Description: "d", Category: "c"},
		Version:   catalog.VersionExport{Version: "1.0.0", InstructionsMD: "x"},
		Files:     []catalog.FileDetail{{OriginalName: "a.txt", StoredRelPath: "tools/t/v/files/a.txt", SHA256: staging.SHA256Hex([]byte("a")), SizeBytes: 999}},
	}

	destination := filepath.Join(t.TempDir(), "export.zip")
	err = Export(context.Background(), store, exportCtx, destination)
	assert.Error(t, err, "expected size mismatch rejection")
}

func TestExportRejectsSHA256Mismatch(t *testing.T) {
	root := t.TempDir()
	store := blobstore.New(root)
	files := []staging.StagedFile{{StoredRelPath: "tools/t/v/files/a.txt", Bytes: []byte("a")}}
	_, err := store.Write(files)
	require.NoError(t, err)

	exportCtx := &catalog.ExportContext{
		ToolID:    "t",
		VersionID: "v",
		Tool:      catalog.ToolMetadataExport{Name: "T", Slug: "t", Description: "d", Category: "c"},
		Version:   catalog.VersionExport{Version: "1.0.0", InstructionsMD: "x"},
		Files:     []catalog.FileDetail{{OriginalName: "a.txt", StoredRelPath: "tools/t/v/files/a.txt", SHA256: "0000", SizeBytes: 1}},
	}

	destination := filepath.Join(t.TempDir(), "export.zip")
	err = Export(context.Background(), store, exportCtx, destination)
	require.Error(t, err, "expected sha256 mismatch rejection")
	assert.Contains(t, err.Error(), "SHA256 mismatch")
}

func TestExportRejectsPathBelongingToAnotherVersion(t *testing.T) {
	root := t.TempDir()
	store := blobstore.New(root)
	files := []staging.StagedFile{{StoredRelPath: "tools/t/other-version/files/a.txt", Bytes: []byte("a")}}
	_, err := store.Write(files)
	require.NoError(t, err)

	exportCtx := &catalog.ExportContext{
		ToolID:    "t",
		VersionID: "v",
		Tool:      catalog.ToolMetadataExport{Name: "T", Slug: "t", Description: "d", Category: "c"},
		Version:   catalog.VersionExport{Version: "1.0.0", InstructionsMD: "x"},
		Files:     []catalog.FileDetail{{OriginalName: "a.txt", StoredRelPath: "tools/t/other-version/files/a.txt", SHA256: staging.SHA256Hex([]byte("a")), SizeBytes: 1}},
	}

	destination := filepath.Join(t.TempDir(), "export.zip")
	err = Export(context.Background(), store, exportCtx, destination)
	assert.Error(t, err, "expected rejection of a stored path belonging to a different version")
}

func TestImportRejectsSHA256Mismatch(t *testing.T) {
	root := t.TempDir()
	store := blobstore.New(root)
	files := []staging.StagedFile{{StoredRelPath: "tools/t/v/files/a.txt", Bytes: []byte("a")}}
	_, err := store.Write(files)
	require.NoError(t, err)

	exportCtx := &catalog.ExportContext{
		ToolID:    "t",
		VersionID: "v",
		Tool:      catalog.ToolMetadataExport{Name: "T", Slug: "t", Description: "d", Category: "c"},
		Version:   catalog.VersionExport{Version: "1.0.0", InstructionsMD: "x"},
		Files:     []catalog.FileDetail{{OriginalName: "a.txt", StoredRelPath: "tools/t/v/files/a.txt", SHA256: staging.SHA256Hex([]byte("a")), SizeBytes: 1}},
	}

	destination := filepath.Join(t.TempDir(), "export.zip")
	require.NoError(t, Export(context.Background(), store, exportCtx, destination))

	// Tamper with the already-exported archive's manifest so Import, not
	// Export, is the one catching the mismatch.
	rewriteManifestSHA256(t, destination, "a.txt", "deadbeef")

	_, err = Import(destination, staging.DefaultLimits())
	require.Error(t, err, "expected sha256 mismatch rejection")
	assert.Contains(t, err.Error(), "SHA256 mismatch")
}

func TestImportRejectsUnexpectedEntries(t *testing.T) {
	root := t.TempDir()
	store := blobstore.New(root)
	files := []staging.StagedFile{{StoredRelPath: "tools/t/v/files/a.txt", Bytes: []byte("a")}}
	_, err := store.Write(files)
	require.NoError(t, err)

	exportCtx := &catalog.ExportContext{
		ToolID:    "t",
		VersionID: "v",
		Tool:      catalog.ToolMetadataExport{Name: "T", Slug: "t", Description: "d", Category: "c"},
		Version:   catalog.VersionExport{Version: "1.0.0", InstructionsMD: "x"},
		Files:     []catalog.FileDetail{{OriginalName: "a.txt", StoredRelPath: "tools/t/v/files/a.txt", SHA256: staging.SHA256Hex([]byte("a")), SizeBytes: 1}},
	}

	destination := filepath.Join(t.TempDir(), "export.zip")
	require.NoError(t, Export(context.Background(), store, exportCtx, destination))

	rewriteZipWithExtraEntry(t, destination)

	_, err = Import(destination, staging.DefaultLimits())
	assert.Error(t, err, "expected rejection of archive with unexpected entry")
}

func rewriteZipWithExtraEntry(t *testing.T, zipPath string) {
	t.Helper()

	extractDir := t.TempDir()
	entries, err := extractZipSafely(zipPath, extractDir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(extractDir, "extra.txt"), []byte("surprise"), 0o644))
	entries = append(entries, "extra.txt")

	archiveFile, err := os.Create(zipPath)
	require.NoError(t, err)
	defer archiveFile.Close()

	writer := zip.NewWriter(archiveFile)
	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(extractDir, entry))
		require.NoErrorf(t, err, "read entry %s", entry)
		require.NoErrorf(t, writeZipEntry(writer, entry, data), "write entry %s", entry)
	}
	require.NoError(t, writer.Close())
}

// rewriteManifestSHA256 rewrites zipPath's manifest.json, setting the sha256
// field of the entry named originalName to badSHA256, leaving every other
// entry byte-identical.
func rewriteManifestSHA256(t *testing.T, zipPath, originalName, badSHA256 string) {
	t.Helper()

	extractDir := t.TempDir()
	entries, err := extractZipSafely(zipPath, extractDir)
	require.NoError(t, err)

	manifestPath := filepath.Join(extractDir, manifestEntryName)
	raw, err := os.ReadFile(manifestPath)
	require.NoError(t, err)
	var manifest Manifest
	require.NoError(t, json.Unmarshal(raw, &manifest))
	for i := range manifest.Files {
		if manifest.Files[i].OriginalName == originalName {
			manifest.Files[i].SHA256 = badSHA256
		}
	}
	rewritten, err := json.MarshalIndent(manifest, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(manifestPath, rewritten, 0o644))

	archiveFile, err := os.Create(zipPath)
	require.NoError(t, err)
	defer archiveFile.Close()

	writer := zip.NewWriter(archiveFile)
	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(extractDir, entry))
		require.NoErrorf(t, err, "read entry %s", entry)
		require.NoErrorf(t, writeZipEntry(writer, entry, data), "write entry %s", entry)
	}
	require.NoError(t, writer.Close())
}

func TestManifestJSONRoundTrip(t *testing.T) {
	manifest := Manifest{
		Tool:    ManifestTool{Name: "T", Slug: "t", Description: "d", Category: "c", Tags: []string{"x"}},
		Version: ManifestVersion{Version: "1.0.0"},
		Files:   []ManifestFile{{OriginalName: "a.txt", SHA256: "abc", SizeBytes: 1, RelativePath: "files/a.txt"}},
	}

	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	var parsed Manifest
	require.NoError(t, json.Unmarshal(data, &parsed))

	if diff := cmp.Diff(manifest, parsed); diff != "" {
		t.Errorf("manifest round trip mismatch (-want +got):\n%s", diff)
	}
}
