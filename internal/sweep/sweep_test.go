package sweep

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codenerd/toollib/internal/blobstore"
	"codenerd/toollib/internal/catalog"
	"codenerd/toollib/internal/staging"
)

func openTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSweepRemovesOrphanedBlob(t *testing.T) {
	cat := openTestCatalog(t)
	storeRoot := t.TempDir()
	store := blobstore.New(storeRoot)

	metadata := catalog.ToolMetadataInput{Name: "Tool", Description: "d", Category: "cat"}
	version := catalog.VersionInput{Version: "1.0.0", InstructionsMD: "x"}
	files := []catalog.FileRecordInput{{OriginalName: "a.txt", StoredRelPath: "tools/t1/v1/files/a.txt", SHA256: "x", SizeBytes: 1}}
	require.NoError(t, cat.Create("t1", "v1", metadata, version, files))

	_, err := store.Write([]staging.StagedFile{
		{StoredRelPath: "tools/t1/v1/files/a.txt", Bytes: []byte("a")},
		{StoredRelPath: "tools/t1/v1/files/orphan.txt", Bytes: []byte("orphan")},
	})
	require.NoError(t, err)

	report, err := Sweep(cat, storeRoot)
	require.NoError(t, err)

	require.Len(t, report.OrphanedBlobsRemoved, 1)
	assert.Equal(t, "tools/t1/v1/files/orphan.txt", report.OrphanedBlobsRemoved[0])
	assert.Empty(t, report.MissingBlobs)

	_, err = store.Read("tools/t1/v1/files/orphan.txt")
	assert.Error(t, err, "expected orphan file to be removed")
	_, err = store.Read("tools/t1/v1/files/a.txt")
	assert.NoError(t, err, "expected referenced file to survive")
}

func TestSweepReportsMissingBlob(t *testing.T) {
	cat := openTestCatalog(t)
	storeRoot := t.TempDir()

	metadata := catalog.ToolMetadataInput{Name: "Tool", Description: "d", Category: "cat"}
	version := catalog.VersionInput{Version: "1.0.0", InstructionsMD: "x"}
	files := []catalog.FileRecordInput{{OriginalName: "a.txt", StoredRelPath: "tools/t1/v1/files/a.txt", SHA256: "x", SizeBytes: 1}}
	require.NoError(t, cat.Create("t1", "v1", metadata, version, files))

	report, err := Sweep(cat, storeRoot)
	require.NoError(t, err)
	require.Len(t, report.MissingBlobs, 1)
	assert.Equal(t, "tools/t1/v1/files/a.txt", report.MissingBlobs[0])
}

func TestSweepPrunesEmptyDirectoriesLeftByRemoval(t *testing.T) {
	cat := openTestCatalog(t)
	storeRoot := t.TempDir()
	store := blobstore.New(storeRoot)

	_, err := store.Write([]staging.StagedFile{
		{StoredRelPath: "tools/t1/v1/files/orphan.txt", Bytes: []byte("orphan")},
	})
	require.NoError(t, err)

	_, err = Sweep(cat, storeRoot)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(storeRoot, "tools", "t1"))
	assert.True(t, os.IsNotExist(statErr), "expected emptied tool directory to be pruned")
}
