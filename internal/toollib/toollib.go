// Package toollib orchestrates the tool library's six components into the
// public operations a caller actually invokes: create, add a version,
// delete, export, preview an import, and import (component C6). It is the
// only package that writes to both the catalog and the blob store in the
// same operation, and it is responsible for keeping them consistent when
// one side fails partway through.
package toollib

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"codenerd/toollib/internal/archive"
	"codenerd/toollib/internal/blobstore"
	"codenerd/toollib/internal/catalog"
	"codenerd/toollib/internal/logging"
	"codenerd/toollib/internal/staging"
	"codenerd/toollib/internal/toolerr"
)

// DefaultInitialVersion is used when a caller creates a tool without naming
// an explicit first version.
const DefaultInitialVersion = "1.0.0"

// Library bundles the catalog and blob store a caller operates against.
type Library struct {
	Catalog *catalog.Catalog
	Store   *blobstore.Store
	Limits  staging.Limits
}

// New returns a Library over the given catalog and store, using limits for
// every Stage call it performs (AddVersion, Create, Import).
func New(cat *catalog.Catalog, store *blobstore.Store, limits staging.Limits) *Library {
	return &Library{Catalog: cat, Store: store, Limits: limits}
}

// CreateRequest is the input to Create.
type CreateRequest struct {
	Metadata       catalog.ToolMetadataInput
	Version        string
	ChangelogMD    string
	InstructionsMD string
	Files          []staging.InboundFile
}

// CreateResult identifies the tool and version Create produced.
type CreateResult struct {
	ToolID    string
	VersionID string
}

// Create stages files, writes them to the blob store, and records the new
// tool and its first version in the catalog. A catalog failure after a
// successful write rolls the write back (I4); the reverse is already
// impossible because Stage never touches disk.
func (l *Library) Create(req CreateRequest) (*CreateResult, error) {
	timer := logging.StartTimer(logging.CategoryOrchestrator, "Create")
	defer timer.Stop()

	toolID := uuid.NewString()
	versionID := uuid.NewString()

	version := req.Version
	if strings.TrimSpace(version) == "" {
		version = DefaultInitialVersion
	}

	staged, err := staging.Stage(toolID, versionID, req.Files, l.Limits)
	if err != nil {
		return nil, err
	}

	written, err := l.Store.Write(staged)
	if err != nil {
		return nil, err
	}

	fileRows := toFileRecordInputs(staged)
	versionInput := catalog.VersionInput{Version: version, ChangelogMD: req.ChangelogMD, InstructionsMD: req.InstructionsMD}

	if err := l.Catalog.Create(toolID, versionID, req.Metadata, versionInput, fileRows); err != nil {
		l.Store.Rollback(written)
		return nil, err
	}

	logging.Get(logging.CategoryOrchestrator).Info("created tool %s with version %s", toolID, versionID)
	return &CreateResult{ToolID: toolID, VersionID: versionID}, nil
}

// AddVersionRequest is the input to AddVersion.
type AddVersionRequest struct {
	ToolID         string
	Version        string
	ChangelogMD    string
	InstructionsMD string
	Files          []staging.InboundFile
}

// AddVersion stages and writes files for a new version under an existing
// tool, same rollback discipline as Create.
func (l *Library) AddVersion(req AddVersionRequest) (*CreateResult, error) {
	timer := logging.StartTimer(logging.CategoryOrchestrator, "AddVersion")
	defer timer.Stop()

	toolID := strings.TrimSpace(req.ToolID)
	if toolID == "" {
		return nil, toolerr.Validation("tool_id is required")
	}
	versionID := uuid.NewString()

	staged, err := staging.Stage(toolID, versionID, req.Files, l.Limits)
	if err != nil {
		return nil, err
	}

	written, err := l.Store.Write(staged)
	if err != nil {
		return nil, err
	}

	fileRows := toFileRecordInputs(staged)
	versionInput := catalog.VersionInput{Version: req.Version, ChangelogMD: req.ChangelogMD, InstructionsMD: req.InstructionsMD}

	if err := l.Catalog.AddVersion(toolID, versionID, versionInput, fileRows); err != nil {
		l.Store.Rollback(written)
		return nil, err
	}

	logging.Get(logging.CategoryOrchestrator).Info("added version %s to tool %s", versionID, toolID)
	return &CreateResult{ToolID: toolID, VersionID: versionID}, nil
}

// Delete removes a tool from the catalog, then its blob folder. The
// catalog row is the source of truth: deleting it first means a reader
// never observes a tool whose blobs are gone but whose metadata remains.
func (l *Library) Delete(toolID string) error {
	timer := logging.StartTimer(logging.CategoryOrchestrator, "Delete")
	defer timer.Stop()

	trimmed := strings.TrimSpace(toolID)
	if err := l.Catalog.DeleteTool(trimmed); err != nil {
		return err
	}
	if err := l.Store.DeleteToolFolder(trimmed); err != nil {
		return err
	}

	logging.Get(logging.CategoryOrchestrator).Info("deleted tool %s", trimmed)
	return nil
}

// ExportZip writes one version's archive to destinationPath.
func (l *Library) ExportZip(ctx context.Context, versionID, destinationPath string) error {
	exportCtx, err := l.Catalog.GetExportContext(strings.TrimSpace(versionID))
	if err != nil {
		return err
	}
	return archive.Export(ctx, l.Store, exportCtx, strings.TrimSpace(destinationPath))
}

// ExportZipPayloadResult is a base64-ready export, for callers without
// direct filesystem access to the destination.
type ExportZipPayloadResult struct {
	FileName   string
	DataBase64 string
}

// ExportZipPayload exports a version and returns it as an in-memory,
// base64-encoded payload with a suggested file name.
func (l *Library) ExportZipPayload(ctx context.Context, versionID string) (*ExportZipPayloadResult, error) {
	exportCtx, err := l.Catalog.GetExportContext(strings.TrimSpace(versionID))
	if err != nil {
		return nil, err
	}

	payload, err := archive.ExportPayload(ctx, l.Store, exportCtx)
	if err != nil {
		return nil, err
	}

	fileName := fmt.Sprintf("%s-%s.zip", exportCtx.Tool.Slug, strings.ReplaceAll(exportCtx.Version.Version, ".", "_"))
	return &ExportZipPayloadResult{FileName: fileName, DataBase64: base64.StdEncoding.EncodeToString(payload)}, nil
}

// ImportPreview is a dry-run summary of what Import would do, without
// writing anything.
type ImportPreview struct {
	ToolName      string
	Slug          string
	Version       string
	Files         []ImportPreviewFile
	TotalSizeBytes int64
	Warnings      []string
}

// ImportPreviewFile is one file's projection in an ImportPreview.
type ImportPreviewFile struct {
	OriginalName string
	SizeBytes    int64
	SHA256       string
}

// PreviewImportPayload parses an in-memory archive (raw zip bytes, not
// base64 text) without importing it, returning what a caller would see if
// they proceeded.
func (l *Library) PreviewImportPayload(fileName string, data []byte) (*ImportPreview, error) {
	parsed, err := archive.ImportPayload(fileName, data, l.Limits)
	if err != nil {
		return nil, err
	}
	return previewFromParsed(parsed), nil
}

// PreviewImport parses an archive on disk without importing it.
func (l *Library) PreviewImport(zipPath string) (*ImportPreview, error) {
	parsed, err := archive.Import(zipPath, l.Limits)
	if err != nil {
		return nil, err
	}
	return previewFromParsed(parsed), nil
}

func previewFromParsed(parsed *archive.ParsedImport) *ImportPreview {
	preview := &ImportPreview{
		ToolName: parsed.Metadata.Name,
		Slug:     parsed.Metadata.Slug,
		Version:  parsed.Version.Version,
		Warnings: []string{},
	}
	for _, file := range parsed.Files {
		preview.TotalSizeBytes += int64(len(file.Bytes))
		preview.Files = append(preview.Files, ImportPreviewFile{
			OriginalName: file.OriginalName,
			SizeBytes:    int64(len(file.Bytes)),
			SHA256:       staging.SHA256Hex(file.Bytes),
		})
	}
	return preview
}

// ImportResult records what Import did: which tool/version it produced and
// whether it created a brand new tool or added a version to an existing one.
type ImportResult struct {
	ToolID      string
	VersionID   string
	CreatedTool bool
}

// ImportArchive parses, validates, and commits a zip archive at zipPath: a
// new tool if its manifest slug is unseen, or a new version under the
// matching existing tool. A tool/version pair that already exists aborts
// the import with a conflict rather than silently overwriting it.
func (l *Library) ImportArchive(zipPath string) (*ImportResult, error) {
	parsed, err := archive.Import(zipPath, l.Limits)
	if err != nil {
		return nil, err
	}
	return l.importParsed(parsed)
}

// ImportArchivePayload behaves like ImportArchive but accepts in-memory raw
// zip bytes (not base64 text) instead of a path.
func (l *Library) ImportArchivePayload(fileName string, data []byte) (*ImportResult, error) {
	parsed, err := archive.ImportPayload(fileName, data, l.Limits)
	if err != nil {
		return nil, err
	}
	return l.importParsed(parsed)
}

func (l *Library) importParsed(parsed *archive.ParsedImport) (*ImportResult, error) {
	timer := logging.StartTimer(logging.CategoryOrchestrator, "ImportArchive")
	defer timer.Stop()

	slug := strings.TrimSpace(parsed.Metadata.Slug)
	if slug == "" {
		return nil, toolerr.Validation("manifest tool.slug is required")
	}

	existingToolID, err := l.Catalog.FindToolIDBySlug(slug)
	if err != nil {
		return nil, err
	}

	inbound := toInboundFiles(parsed.Files)

	if existingToolID != "" {
		existingVersionID, err := l.Catalog.FindVersionID(existingToolID, parsed.Version.Version)
		if err != nil {
			return nil, err
		}
		if existingVersionID != "" {
			return nil, toolerr.Conflict("a tool with this slug and version already exists; import aborted")
		}

		versionID := uuid.NewString()
		staged, err := staging.Stage(existingToolID, versionID, inbound, l.Limits)
		if err != nil {
			return nil, err
		}
		written, err := l.Store.Write(staged)
		if err != nil {
			return nil, err
		}
		if err := l.Catalog.AddVersion(existingToolID, versionID, parsed.Version, toFileRecordInputs(staged)); err != nil {
			l.Store.Rollback(written)
			return nil, err
		}

		logging.Get(logging.CategoryOrchestrator).Info("imported version %s into existing tool %s", versionID, existingToolID)
		return &ImportResult{ToolID: existingToolID, VersionID: versionID, CreatedTool: false}, nil
	}

	toolID := uuid.NewString()
	versionID := uuid.NewString()
	staged, err := staging.Stage(toolID, versionID, inbound, l.Limits)
	if err != nil {
		return nil, err
	}
	written, err := l.Store.Write(staged)
	if err != nil {
		return nil, err
	}
	if err := l.Catalog.Create(toolID, versionID, parsed.Metadata, parsed.Version, toFileRecordInputs(staged)); err != nil {
		l.Store.Rollback(written)
		return nil, err
	}

	logging.Get(logging.CategoryOrchestrator).Info("imported new tool %s with version %s", toolID, versionID)
	return &ImportResult{ToolID: toolID, VersionID: versionID, CreatedTool: true}, nil
}

func toFileRecordInputs(staged []staging.StagedFile) []catalog.FileRecordInput {
	rows := make([]catalog.FileRecordInput, 0, len(staged))
	for _, file := range staged {
		rows = append(rows, catalog.FileRecordInput{
			OriginalName:  file.OriginalName,
			StoredRelPath: file.StoredRelPath,
			SHA256:        file.SHA256,
			SizeBytes:     file.SizeBytes,
			MIME:          file.MIME,
		})
	}
	return rows
}

func toInboundFiles(files []archive.ImportFile) []staging.InboundFile {
	inbound := make([]staging.InboundFile, 0, len(files))
	for _, file := range files {
		inbound = append(inbound, staging.InboundFile{
			OriginalName: file.OriginalName,
			MIME:         file.MIME,
			DataBase64:   base64.StdEncoding.EncodeToString(file.Bytes),
		})
	}
	return inbound
}
