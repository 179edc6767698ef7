// Package archive builds and parses the zip archive format used to export
// and import a single tool version (component C5): a manifest.json, an
// instructions.md, and a files/ directory, all addressed by SHA-256.
package archive

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"codenerd/toollib/internal/blobstore"
	"codenerd/toollib/internal/catalog"
	"codenerd/toollib/internal/logging"
	"codenerd/toollib/internal/sanitize"
	"codenerd/toollib/internal/staging"
	"codenerd/toollib/internal/toolerr"
)

const (
	manifestEntryName     = "manifest.json"
	instructionsEntryName = "instructions.md"
	filesEntryPrefix      = "files/"
)

// Manifest is the JSON document embedded at manifest.json in every export.
type Manifest struct {
	Tool    ManifestTool    `json:"tool"`
	Version ManifestVersion `json:"version"`
	Files   []ManifestFile  `json:"files"`
}

// ManifestTool carries the tool-level metadata of an exported version.
type ManifestTool struct {
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
}

// ManifestVersion carries the version-level metadata of an exported version.
type ManifestVersion struct {
	Version     string `json:"version"`
	ChangelogMD string `json:"changelogMd,omitempty"`
}

// ManifestFile describes one file entry recorded in the manifest.
type ManifestFile struct {
	OriginalName string `json:"originalName"`
	SHA256       string `json:"sha256"`
	SizeBytes    int64  `json:"sizeBytes"`
	RelativePath string `json:"relativePath"`
}

// BuildManifest projects a catalog export context into the manifest shape.
// Every file name is re-sanitized (idempotent, since names are already
// sanitized in storage) and rejected on a case-fold collision, per spec.md
// §4.5 "Build manifest".
func BuildManifest(ctx *catalog.ExportContext) (Manifest, error) {
	files := make([]ManifestFile, 0, len(ctx.Files))
	seen := make(map[string]bool, len(ctx.Files))
	for _, f := range ctx.Files {
		name, err := sanitize.SanitizeFilename(f.OriginalName)
		if err != nil {
			return Manifest{}, err
		}
		key := strings.ToLower(name)
		if seen[key] {
			return Manifest{}, toolerr.Validation(fmt.Sprintf("duplicate file in export: %s", name))
		}
		seen[key] = true

		files = append(files, ManifestFile{
			OriginalName: name,
			SHA256:       f.SHA256,
			SizeBytes:    f.SizeBytes,
			RelativePath: filesEntryPrefix + name,
		})
	}

	return Manifest{
		Tool: ManifestTool{
			Name:        ctx.Tool.Name,
			Slug:        ctx.Tool.Slug,
			Description: ctx.Tool.Description,
			Category:    ctx.Tool.Category,
			Tags:        ctx.Tool.Tags,
		},
		Version: ManifestVersion{
			Version:     ctx.Version.Version,
			ChangelogMD: ctx.Version.ChangelogMD,
		},
		Files: files,
	}, nil
}

// Export writes a complete tool version archive to destinationPath: a zip
// containing manifest.json, instructions.md, and one files/ entry per
// recorded file, all read from store concurrently via errgroup and written
// back in manifest order regardless of completion order (I6).
func Export(ctx context.Context, store *blobstore.Store, exportCtx *catalog.ExportContext, destinationPath string) error {
	timer := logging.StartTimer(logging.CategoryArchive, "Export")
	defer timer.Stop()

	destination, err := normalizeDestination(destinationPath)
	if err != nil {
		return err
	}

	manifest, err := BuildManifest(exportCtx)
	if err != nil {
		return err
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return toolerr.Zip("serialize manifest.json", err)
	}

	payloads := make([][]byte, len(exportCtx.Files))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, file := range exportCtx.Files {
		i, file := i, file
		group.Go(func() error {
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			default:
			}

			if err := sanitize.AssertStoredPathMatchesVersion(file.StoredRelPath, exportCtx.ToolID, exportCtx.VersionID); err != nil {
				return toolerr.Validation(fmt.Sprintf("stored path %s does not belong to this version: %v", file.StoredRelPath, err))
			}

			data, err := store.Read(file.StoredRelPath)
			if err != nil {
				return toolerr.IO(fmt.Sprintf("read %s", file.StoredRelPath), err)
			}

			if int64(len(data)) != file.SizeBytes {
				return toolerr.Validation(fmt.Sprintf("size mismatch for %s: recorded %d, stored %d", file.OriginalName, file.SizeBytes, len(data)))
			}
			if !strings.EqualFold(staging.SHA256Hex(data), file.SHA256) {
				return toolerr.Validation(fmt.Sprintf("SHA256 mismatch for %s.", file.OriginalName))
			}

			payloads[i] = data
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return toolerr.IO("create destination directory", err)
	}

	archiveFile, err := os.Create(destination)
	if err != nil {
		return toolerr.IO("create destination archive", err)
	}
	defer archiveFile.Close()

	writer := zip.NewWriter(archiveFile)
	if err := writeZipEntry(writer, manifestEntryName, manifestJSON); err != nil {
		return err
	}
	if err := writeZipEntry(writer, instructionsEntryName, []byte(exportCtx.Version.InstructionsMD)); err != nil {
		return err
	}
	for i, file := range manifest.Files {
		if err := writeZipEntry(writer, file.RelativePath, payloads[i]); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return toolerr.Zip("finalize archive", err)
	}

	logging.Get(logging.CategoryArchive).Info("exported version to %s (%d files)", destination, len(manifest.Files))
	return nil
}

// ExportPayload behaves like Export, but writes the archive to a temporary
// file and returns its raw bytes, for callers that need an in-memory payload
// rather than a file on disk (toollib.ExportZipPayload base64-encodes them).
func ExportPayload(ctx context.Context, store *blobstore.Store, exportCtx *catalog.ExportContext) ([]byte, error) {
	tempDir, err := os.MkdirTemp("", "toollib-export-")
	if err != nil {
		return nil, toolerr.IO("create temp export directory", err)
	}
	defer os.RemoveAll(tempDir)

	destination := filepath.Join(tempDir, "export.zip")
	if err := Export(ctx, store, exportCtx, destination); err != nil {
		return nil, err
	}
	return os.ReadFile(destination)
}

// ParsedImport is a fully-validated, ready-to-ingest archive: catalog
// metadata plus decoded file bytes, matching the shape internal/catalog
// expects for Create/AddVersion.
type ParsedImport struct {
	Metadata catalog.ToolMetadataInput
	Version  catalog.VersionInput
	Files    []ImportFile
}

// ImportFile is one decoded, sanitized file pulled from an import archive.
type ImportFile struct {
	OriginalName string
	MIME         string
	Bytes        []byte
}

// Import extracts and validates an archive at zipPath: a safe zip-slip-free
// extraction, a manifest/instructions read, a per-file SHA-256 and size
// check against the manifest, and rejection of any archive entry the
// manifest doesn't account for (completeness check, spec §9).
func Import(zipPath string, limits staging.Limits) (*ParsedImport, error) {
	trimmed := strings.TrimSpace(zipPath)
	info, err := os.Stat(trimmed)
	if err != nil || info.IsDir() {
		return nil, toolerr.Zip("import zip path is invalid", err)
	}

	extractionDir, err := os.MkdirTemp("", "toollib-import-")
	if err != nil {
		return nil, toolerr.IO("create extraction directory", err)
	}
	defer os.RemoveAll(extractionDir)

	entries, err := extractZipSafely(trimmed, extractionDir)
	if err != nil {
		return nil, err
	}

	return parseExtractedArchive(extractionDir, entries, limits)
}

// ImportPayload writes raw zip bytes (not base64 text) to a temporary file
// named after the sanitized fileName and delegates to Import.
func ImportPayload(fileName string, data []byte, limits staging.Limits) (*ParsedImport, error) {
	tempDir, err := os.MkdirTemp("", "toollib-import-payload-")
	if err != nil {
		return nil, toolerr.IO("create temp import directory", err)
	}
	defer os.RemoveAll(tempDir)

	zipName := sanitizeArchiveFileName(fileName)
	zipPath := filepath.Join(tempDir, zipName)
	if err := os.WriteFile(zipPath, data, 0o644); err != nil {
		return nil, toolerr.IO("write import payload", err)
	}

	return Import(zipPath, limits)
}

func parseExtractedArchive(extractionDir string, entries []string, limits staging.Limits) (*ParsedImport, error) {
	manifestRaw, err := os.ReadFile(filepath.Join(extractionDir, manifestEntryName))
	if err != nil {
		return nil, toolerr.Zip("read manifest.json", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(manifestRaw, &manifest); err != nil {
		return nil, toolerr.Zip("parse manifest.json", err)
	}

	instructionsRaw, err := os.ReadFile(filepath.Join(extractionDir, instructionsEntryName))
	if err != nil {
		return nil, toolerr.Zip("read instructions.md", err)
	}
	instructions := strings.TrimSpace(string(instructionsRaw))
	if instructions == "" {
		return nil, toolerr.Validation("instructions.md cannot be empty")
	}

	metadata := catalog.ToolMetadataInput{
		Tags: manifest.Tool.Tags,
	}
	if metadata.Name, err = validateRequired("tool.name", manifest.Tool.Name, 120); err != nil {
		return nil, err
	}
	if metadata.Slug, err = validateRequired("tool.slug", manifest.Tool.Slug, 120); err != nil {
		return nil, err
	}
	if metadata.Description, err = validateRequired("tool.description", manifest.Tool.Description, 8000); err != nil {
		return nil, err
	}
	if metadata.Category, err = validateRequired("tool.category", manifest.Tool.Category, 120); err != nil {
		return nil, err
	}

	version := catalog.VersionInput{InstructionsMD: string(instructionsRaw)}
	if version.Version, err = validateRequired("version.version", manifest.Version.Version, 80); err != nil {
		return nil, err
	}
	version.ChangelogMD = strings.TrimSpace(manifest.Version.ChangelogMD)

	expectedPaths := map[string]bool{manifestEntryName: true, instructionsEntryName: true}
	seenNames := map[string]bool{}
	parsedFiles := make([]ImportFile, 0, len(manifest.Files))
	var totalSize int64

	for _, file := range manifest.Files {
		if err := sanitize.AssertSafeArchivePath(file.RelativePath); err != nil {
			return nil, toolerr.Zip(err.Error(), nil)
		}
		if !strings.HasPrefix(file.RelativePath, filesEntryPrefix) {
			return nil, toolerr.Zip(fmt.Sprintf("manifest file path must start with %s: %s", filesEntryPrefix, file.RelativePath), nil)
		}

		sanitizedName, err := sanitize.SanitizeFilename(file.OriginalName)
		if err != nil {
			return nil, err
		}
		if seenNames[sanitizedName] {
			return nil, toolerr.Validation(fmt.Sprintf("duplicate file in manifest: %s", sanitizedName))
		}
		seenNames[sanitizedName] = true

		expectedRelPath := filesEntryPrefix + sanitizedName
		if file.RelativePath != expectedRelPath {
			return nil, toolerr.Validation(fmt.Sprintf("manifest relativePath mismatch for %s; expected %s", sanitizedName, expectedRelPath))
		}
		expectedPaths[expectedRelPath] = true

		absolutePath := filepath.Join(extractionDir, filepath.FromSlash(expectedRelPath))
		data, err := os.ReadFile(absolutePath)
		if err != nil {
			return nil, toolerr.Zip(fmt.Sprintf("missing archive file: %s", expectedRelPath), err)
		}

		sizeBytes := int64(len(data))
		if sizeBytes != file.SizeBytes {
			return nil, toolerr.Validation(fmt.Sprintf("file size mismatch for %s: manifest %d, archive %d", sanitizedName, file.SizeBytes, sizeBytes))
		}
		if sizeBytes == 0 || sizeBytes > limits.MaxFileSizeBytes {
			return nil, toolerr.Validation(fmt.Sprintf("%s exceeds allowed size limits", sanitizedName))
		}
		totalSize += sizeBytes
		if totalSize > limits.MaxTotalSizeBytes {
			return nil, toolerr.Validation(fmt.Sprintf("import file total exceeds %d bytes", limits.MaxTotalSizeBytes))
		}

		if !strings.EqualFold(staging.SHA256Hex(data), strings.TrimSpace(file.SHA256)) {
			return nil, toolerr.Validation(fmt.Sprintf("SHA256 mismatch for %s.", sanitizedName))
		}

		parsedFiles = append(parsedFiles, ImportFile{OriginalName: sanitizedName, Bytes: data})
	}

	for _, entry := range entries {
		if !expectedPaths[entry] {
			return nil, toolerr.Zip(fmt.Sprintf("unexpected file in archive: %s", entry), nil)
		}
	}

	return &ParsedImport{Metadata: metadata, Version: version, Files: parsedFiles}, nil
}

func writeZipEntry(writer *zip.Writer, name string, data []byte) error {
	entryWriter, err := writer.Create(name)
	if err != nil {
		return toolerr.Zip(fmt.Sprintf("create archive entry %s", name), err)
	}
	if _, err := entryWriter.Write(data); err != nil {
		return toolerr.Zip(fmt.Sprintf("write archive entry %s", name), err)
	}
	return nil
}

// extractZipSafely extracts every entry of zipPath into destDir, rejecting
// any entry whose resolved path would escape destDir (zip-slip defense),
// and returns the forward-slash relative paths of every extracted entry.
func extractZipSafely(zipPath, destDir string) ([]string, error) {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, toolerr.Zip("open archive", err)
	}
	defer reader.Close()

	absDestRoot, err := filepath.Abs(destDir)
	if err != nil {
		return nil, toolerr.IO("resolve extraction root", err)
	}

	entries := make([]string, 0, len(reader.File))
	for _, entry := range reader.File {
		relPath := path.Clean(entry.Name)
		if err := sanitize.AssertSafeArchivePath(entry.Name); err != nil {
			return nil, toolerr.Zip(err.Error(), nil)
		}

		targetPath := filepath.Join(absDestRoot, filepath.FromSlash(relPath))
		if !strings.HasPrefix(targetPath, absDestRoot+string(filepath.Separator)) && targetPath != absDestRoot {
			return nil, toolerr.Zip(fmt.Sprintf("unsafe archive entry path: %s", entry.Name), nil)
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(targetPath, 0o755); err != nil {
				return nil, toolerr.IO("create extraction directory", err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return nil, toolerr.IO("create extraction directory", err)
		}

		if err := extractOneEntry(entry, targetPath); err != nil {
			return nil, err
		}
		entries = append(entries, relPath)
	}

	return entries, nil
}

func extractOneEntry(entry *zip.File, targetPath string) error {
	reader, err := entry.Open()
	if err != nil {
		return toolerr.Zip(fmt.Sprintf("open archive entry %s", entry.Name), err)
	}
	defer reader.Close()

	outFile, err := os.OpenFile(targetPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return toolerr.IO(fmt.Sprintf("create extracted file %s", targetPath), err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, reader); err != nil {
		return toolerr.IO(fmt.Sprintf("write extracted file %s", targetPath), err)
	}
	return nil
}

func normalizeDestination(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", toolerr.Validation("destination path is required")
	}
	if filepath.Ext(trimmed) == "" {
		trimmed += ".zip"
	}
	return trimmed, nil
}

func sanitizeArchiveFileName(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "import.zip"
	}

	var b strings.Builder
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	sanitized := b.String()
	if !strings.HasSuffix(strings.ToLower(sanitized), ".zip") {
		sanitized += ".zip"
	}
	return sanitized
}

func validateRequired(field, value string, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", toolerr.Validation(field + " is required")
	}
	if len(trimmed) > maxLen {
		return "", toolerr.Validation(field + " exceeds maximum length (" + strconv.Itoa(maxLen) + ")")
	}
	return trimmed, nil
}
