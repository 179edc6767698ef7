package blobstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codenerd/toollib/internal/staging"
)

func TestWriteReadRoundTrip(t *testing.T) {
	store := New(t.TempDir())

	files := []staging.StagedFile{
		{StoredRelPath: "tools/tool_1/version_1/files/install.scr", Bytes: []byte("hello")},
	}

	written, err := store.Write(files)
	require.NoError(t, err)
	require.Len(t, written, 1)

	data, err := store.Read(files[0].StoredRelPath)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestWriteRollsBackOnFailure(t *testing.T) {
	root := t.TempDir()
	store := New(root)

	good := staging.StagedFile{StoredRelPath: "tools/tool_1/version_1/files/a.txt", Bytes: []byte("a")}
	bad := staging.StagedFile{StoredRelPath: "tools/tool_1/version_1/files/not sanitized.TXT", Bytes: []byte("b")}

	_, err := store.Write([]staging.StagedFile{good, bad})
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(root, "tools", "tool_1", "version_1", "files", "a.txt"))
	assert.True(t, os.IsNotExist(statErr), "expected rollback to remove the file already written")
}

func TestDeleteVersionFolderRemovesEmptyToolFolder(t *testing.T) {
	root := t.TempDir()
	store := New(root)

	files := []staging.StagedFile{
		{StoredRelPath: "tools/tool_1/version_1/files/a.txt", Bytes: []byte("a")},
	}
	_, err := store.Write(files)
	require.NoError(t, err)

	require.NoError(t, store.DeleteVersionFolder("tool_1", "version_1"))

	_, err = os.Stat(filepath.Join(root, "tools", "tool_1"))
	assert.True(t, os.IsNotExist(err), "expected empty tool folder to be removed")
}

func TestDeleteToolFolderIsIdempotent(t *testing.T) {
	store := New(t.TempDir())
	assert.NoError(t, store.DeleteToolFolder("nonexistent"))
}

func TestResolveRejectsUnsafePath(t *testing.T) {
	store := New(t.TempDir())
	_, err := store.Resolve("../escape.txt")
	assert.Error(t, err)
}
