// Package catalog is the SQLite-backed metadata store for tools, versions,
// tags, and file records (component C4). It never touches blob bytes —
// internal/blobstore owns those — and stores only stored_rel_path,
// sha256, and size_bytes references to them.
package catalog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/google/uuid"

	"codenerd/toollib/internal/logging"
	"codenerd/toollib/internal/toolerr"
)

// CurrentSchemaVersion tracks the catalog schema. Bump it, and add a branch
// in runMigrations, whenever a column or table is added.
const CurrentSchemaVersion = 1

const (
	maxNameLen         = 120
	maxDescriptionLen  = 8000
	maxVersionLabelLen = 80
	maxTextLen         = 512 * 1024
	maxTagLen          = 48
)

// Catalog manages the tool metadata database.
type Catalog struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates or opens the catalog database at dbPath, applying schema and
// migrations as needed.
func Open(dbPath string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}

	c := &Catalog{db: db}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize catalog schema: %w", err)
	}
	if err := c.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run catalog migrations: %w", err)
	}

	return c, nil
}

// Close closes the underlying database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

func (c *Catalog) initSchema() error {
	schema := `
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS tools (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tools_category ON tools(category);

	CREATE TABLE IF NOT EXISTS tool_tags (
		tool_id TEXT NOT NULL REFERENCES tools(id) ON DELETE CASCADE,
		tag TEXT NOT NULL,
		PRIMARY KEY (tool_id, tag)
	);

	CREATE TABLE IF NOT EXISTS tool_versions (
		id TEXT PRIMARY KEY,
		tool_id TEXT NOT NULL REFERENCES tools(id) ON DELETE CASCADE,
		version TEXT NOT NULL,
		changelog_md TEXT,
		instructions_md TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE (tool_id, version)
	);
	CREATE INDEX IF NOT EXISTS idx_versions_tool ON tool_versions(tool_id);

	CREATE TABLE IF NOT EXISTS tool_files (
		id TEXT PRIMARY KEY,
		tool_version_id TEXT NOT NULL REFERENCES tool_versions(id) ON DELETE CASCADE,
		original_name TEXT NOT NULL,
		stored_rel_path TEXT NOT NULL,
		sha256 TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		mime TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_files_version ON tool_files(tool_version_id);

	CREATE TABLE IF NOT EXISTS schema_meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version INTEGER NOT NULL
	);
	INSERT OR IGNORE INTO schema_meta (id, version) VALUES (1, 0);
	`

	for _, statement := range strings.Split(schema, ";") {
		trimmed := strings.TrimSpace(statement)
		if trimmed == "" {
			continue
		}
		if _, err := c.db.Exec(trimmed); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}
	return nil
}

// runMigrations applies additive column/table migrations for databases
// created by an older CurrentSchemaVersion. There is nothing pending at
// version 1; this is the seam future schema changes attach to. The applied
// version is recorded in the schema_meta table.
func (c *Catalog) runMigrations() error {
	var version int
	if err := c.db.QueryRow("SELECT version FROM schema_meta WHERE id = 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version >= CurrentSchemaVersion {
		return nil
	}

	logging.Get(logging.CategoryCatalog).Info("migrating catalog schema from v%d to v%d", version, CurrentSchemaVersion)

	if _, err := c.db.Exec("UPDATE schema_meta SET version = ? WHERE id = 1", CurrentSchemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}

// ToolMetadataInput is the caller-supplied metadata for a new tool.
type ToolMetadataInput struct {
	Name        string
	Slug        string
	Description string
	Category    string
	Tags        []string
}

// VersionInput is the caller-supplied metadata for a tool version.
type VersionInput struct {
	Version        string
	ChangelogMD    string
	InstructionsMD string
}

// FileRecordInput is one file record to attach to a version.
type FileRecordInput struct {
	OriginalName  string
	StoredRelPath string
	SHA256        string
	SizeBytes     int64
	MIME          string
}

// VersionSummary is the latest-version projection shown in list views.
type VersionSummary struct {
	ID        string
	Version   string
	FileCount int
	CreatedAt int64
}

// ToolSummary is one row of a tool listing.
type ToolSummary struct {
	ID            string
	Name          string
	Slug          string
	Description   string
	Category      string
	Tags          []string
	CreatedAt     int64
	UpdatedAt     int64
	LatestVersion *VersionSummary
}

// FileDetail is one file record within a version.
type FileDetail struct {
	ID            string
	OriginalName  string
	StoredRelPath string
	SHA256        string
	SizeBytes     int64
	MIME          string
	CreatedAt     int64
}

// VersionDetail is one tool version with its file records.
type VersionDetail struct {
	ID             string
	ToolID         string
	Version        string
	ChangelogMD    string
	InstructionsMD string
	CreatedAt      int64
	Files          []FileDetail
}

// ToolDetail is a tool with all of its versions.
type ToolDetail struct {
	ID          string
	Name        string
	Slug        string
	Description string
	Category    string
	Tags        []string
	CreatedAt   int64
	UpdatedAt   int64
	Versions    []VersionDetail
}

// ListFilters narrows List results by substring query, category, and tag.
type ListFilters struct {
	Query    string
	Category string
	Tag      string
}

// ExportContext bundles everything archive.Export needs for one version.
type ExportContext struct {
	ToolID    string
	VersionID string
	Tool      ToolMetadataExport
	Version   VersionExport
	Files     []FileDetail
}

// ToolMetadataExport is the tool-level metadata embedded in an exported manifest.
type ToolMetadataExport struct {
	Name        string
	Slug        string
	Description string
	Category    string
	Tags        []string
}

// VersionExport is the version-level metadata embedded in an exported manifest.
type VersionExport struct {
	Version        string
	ChangelogMD    string
	InstructionsMD string
}

// List returns every tool matching filters, ordered by most-recently-updated.
func (c *Catalog) List(filters ListFilters) ([]ToolSummary, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rows, err := c.db.Query(`
		SELECT id, name, slug, description, category, created_at, updated_at
		FROM tools
		ORDER BY updated_at DESC, name COLLATE NOCASE ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	defer rows.Close()

	var summaries []ToolSummary
	for rows.Next() {
		var s ToolSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Slug, &s.Description, &s.Category, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan tool row: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]ToolSummary, 0, len(summaries))
	for _, s := range summaries {
		tags, err := c.fetchTags(s.ID)
		if err != nil {
			return nil, err
		}
		s.Tags = tags

		latest, err := c.fetchLatestVersion(s.ID)
		if err != nil {
			return nil, err
		}
		s.LatestVersion = latest

		if matchesFilters(s, filters) {
			result = append(result, s)
		}
	}
	return result, nil
}

// Get returns one tool with all of its versions and file records.
func (c *Catalog) Get(toolID string) (*ToolDetail, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var detail ToolDetail
	row := c.db.QueryRow(`
		SELECT id, name, slug, description, category, created_at, updated_at
		FROM tools WHERE id = ?`, toolID)
	if err := row.Scan(&detail.ID, &detail.Name, &detail.Slug, &detail.Description, &detail.Category, &detail.CreatedAt, &detail.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, toolerr.NotFound("tool not found")
		}
		return nil, fmt.Errorf("get tool: %w", err)
	}

	tags, err := c.fetchTags(toolID)
	if err != nil {
		return nil, err
	}
	detail.Tags = tags

	versionIDs, err := c.fetchVersionIDs(toolID)
	if err != nil {
		return nil, err
	}
	for _, versionID := range versionIDs {
		versionDetail, err := c.getVersionDetail(versionID)
		if err != nil {
			return nil, err
		}
		detail.Versions = append(detail.Versions, *versionDetail)
	}

	return &detail, nil
}

// Create inserts a new tool and its first version, transactionally.
func (c *Catalog) Create(toolID, versionID string, metadata ToolMetadataInput, version VersionInput, files []FileRecordInput) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UnixMilli()

	name, err := validateRequired("name", metadata.Name, maxNameLen)
	if err != nil {
		return err
	}
	description, err := validateRequired("description", metadata.Description, maxDescriptionLen)
	if err != nil {
		return err
	}
	category, err := validateRequired("category", metadata.Category, maxNameLen)
	if err != nil {
		return err
	}
	normalizedTags, err := normalizeTags(metadata.Tags)
	if err != nil {
		return err
	}
	requestedSlug := strings.TrimSpace(metadata.Slug)
	if requestedSlug == "" {
		requestedSlug = slugify(name)
	}
	versionLabel, err := validateRequired("version", version.Version, maxVersionLabelLen)
	if err != nil {
		return err
	}
	instructions, err := validateRequired("instructions", version.InstructionsMD, maxTextLen)
	if err != nil {
		return err
	}
	changelog, err := normalizeOptionalText(version.ChangelogMD, maxTextLen)
	if err != nil {
		return err
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	slug, err := c.resolveUniqueSlug(tx, requestedSlug, "")
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`
		INSERT INTO tools (id, name, slug, description, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		toolID, name, slug, description, category, now, now); err != nil {
		return fmt.Errorf("insert tool: %w", err)
	}

	for _, tag := range normalizedTags {
		if _, err := tx.Exec(`INSERT INTO tool_tags (tool_id, tag) VALUES (?, ?)`, toolID, tag); err != nil {
			return fmt.Errorf("insert tag: %w", err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO tool_versions (id, tool_id, version, changelog_md, instructions_md, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		versionID, toolID, versionLabel, nullable(changelog), instructions, now); err != nil {
		return fmt.Errorf("insert version: %w", err)
	}

	if err := insertFiles(tx, versionID, files, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	logging.Get(logging.CategoryCatalog).Info("created tool %s (slug=%s) with version %s", toolID, slug, versionID)
	return nil
}

// AddVersion inserts a new version under an existing tool, rejecting a
// duplicate version label for that tool (I5).
func (c *Catalog) AddVersion(toolID, versionID string, version VersionInput, files []FileRecordInput) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UnixMilli()

	var exists int
	if err := c.db.QueryRow("SELECT 1 FROM tools WHERE id = ?", toolID).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return toolerr.NotFound("tool not found")
		}
		return fmt.Errorf("check tool exists: %w", err)
	}

	versionLabel, err := validateRequired("version", version.Version, maxVersionLabelLen)
	if err != nil {
		return err
	}
	instructions, err := validateRequired("instructions", version.InstructionsMD, maxTextLen)
	if err != nil {
		return err
	}
	changelog, err := normalizeOptionalText(version.ChangelogMD, maxTextLen)
	if err != nil {
		return err
	}

	existingVersionID, err := c.FindVersionID(toolID, versionLabel)
	if err != nil {
		return err
	}
	if existingVersionID != "" {
		return toolerr.Conflict("version already exists for this tool")
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO tool_versions (id, tool_id, version, changelog_md, instructions_md, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		versionID, toolID, versionLabel, nullable(changelog), instructions, now); err != nil {
		return fmt.Errorf("insert version: %w", err)
	}

	if err := insertFiles(tx, versionID, files, now); err != nil {
		return err
	}

	if _, err := tx.Exec("UPDATE tools SET updated_at = ? WHERE id = ?", now, toolID); err != nil {
		return fmt.Errorf("touch tool: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	logging.Get(logging.CategoryCatalog).Info("added version %s to tool %s", versionID, toolID)
	return nil
}

// DeleteTool removes a tool and, via ON DELETE CASCADE, all of its tags,
// versions, and file records.
func (c *Catalog) DeleteTool(toolID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.db.Exec("DELETE FROM tools WHERE id = ?", toolID)
	if err != nil {
		return fmt.Errorf("delete tool: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected: %w", err)
	}
	if affected == 0 {
		return toolerr.NotFound("tool not found")
	}

	logging.Get(logging.CategoryCatalog).Info("deleted tool %s", toolID)
	return nil
}

// FindToolIDBySlug returns the tool ID for slug, or "" if none matches.
func (c *Catalog) FindToolIDBySlug(slug string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var id string
	err := c.db.QueryRow("SELECT id FROM tools WHERE slug = ?", slug).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find tool by slug: %w", err)
	}
	return id, nil
}

// FindVersionID returns the version ID for toolID/version, or "" if none matches.
func (c *Catalog) FindVersionID(toolID, version string) (string, error) {
	var id string
	err := c.db.QueryRow("SELECT id FROM tool_versions WHERE tool_id = ? AND version = ?", toolID, version).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find version: %w", err)
	}
	return id, nil
}

// AllStoredRelPaths returns the stored_rel_path of every file record in the
// catalog, the authoritative set a blob-store sweep checks disk contents
// against.
func (c *Catalog) AllStoredRelPaths() (map[string]bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rows, err := c.db.Query(`SELECT stored_rel_path FROM tool_files`)
	if err != nil {
		return nil, fmt.Errorf("list stored paths: %w", err)
	}
	defer rows.Close()

	paths := make(map[string]bool)
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan stored path: %w", err)
		}
		paths[path] = true
	}
	return paths, rows.Err()
}

// GetExportContext bundles the tool, version, and file metadata an archive
// export needs for versionID.
func (c *Catalog) GetExportContext(versionID string) (*ExportContext, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var ctx ExportContext
	var toolID string
	var changelog sql.NullString

	row := c.db.QueryRow(`
		SELECT v.tool_id, v.version, v.changelog_md, v.instructions_md,
		       t.name, t.slug, t.description, t.category
		FROM tool_versions v
		INNER JOIN tools t ON t.id = v.tool_id
		WHERE v.id = ?`, versionID)
	if err := row.Scan(&toolID, &ctx.Version.Version, &changelog, &ctx.Version.InstructionsMD,
		&ctx.Tool.Name, &ctx.Tool.Slug, &ctx.Tool.Description, &ctx.Tool.Category); err != nil {
		if err == sql.ErrNoRows {
			return nil, toolerr.NotFound("tool version not found")
		}
		return nil, fmt.Errorf("get export context: %w", err)
	}
	ctx.ToolID = toolID
	ctx.VersionID = versionID
	ctx.Version.ChangelogMD = changelog.String

	tags, err := c.fetchTags(toolID)
	if err != nil {
		return nil, err
	}
	ctx.Tool.Tags = tags

	files, err := c.fetchFilesForVersion(versionID)
	if err != nil {
		return nil, err
	}
	ctx.Files = files

	return &ctx, nil
}

func (c *Catalog) getVersionDetail(versionID string) (*VersionDetail, error) {
	var detail VersionDetail
	var changelog sql.NullString

	row := c.db.QueryRow(`
		SELECT id, tool_id, version, changelog_md, instructions_md, created_at
		FROM tool_versions WHERE id = ?`, versionID)
	if err := row.Scan(&detail.ID, &detail.ToolID, &detail.Version, &changelog, &detail.InstructionsMD, &detail.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, toolerr.NotFound("tool version not found")
		}
		return nil, fmt.Errorf("get version: %w", err)
	}
	detail.ChangelogMD = changelog.String

	files, err := c.fetchFilesForVersion(versionID)
	if err != nil {
		return nil, err
	}
	detail.Files = files

	return &detail, nil
}

func (c *Catalog) fetchFilesForVersion(versionID string) ([]FileDetail, error) {
	rows, err := c.db.Query(`
		SELECT id, original_name, stored_rel_path, sha256, size_bytes, mime, created_at
		FROM tool_files
		WHERE tool_version_id = ?
		ORDER BY original_name COLLATE NOCASE ASC`, versionID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []FileDetail
	for rows.Next() {
		var f FileDetail
		var mime sql.NullString
		if err := rows.Scan(&f.ID, &f.OriginalName, &f.StoredRelPath, &f.SHA256, &f.SizeBytes, &mime, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan file row: %w", err)
		}
		f.MIME = mime.String
		files = append(files, f)
	}
	return files, rows.Err()
}

func (c *Catalog) fetchTags(toolID string) ([]string, error) {
	rows, err := c.db.Query("SELECT tag FROM tool_tags WHERE tool_id = ? ORDER BY tag COLLATE NOCASE ASC", toolID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scan tag row: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (c *Catalog) fetchVersionIDs(toolID string) ([]string, error) {
	rows, err := c.db.Query("SELECT id FROM tool_versions WHERE tool_id = ? ORDER BY created_at DESC", toolID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan version row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (c *Catalog) fetchLatestVersion(toolID string) (*VersionSummary, error) {
	var summary VersionSummary
	row := c.db.QueryRow(`
		SELECT id, version, created_at
		FROM tool_versions
		WHERE tool_id = ?
		ORDER BY created_at DESC
		LIMIT 1`, toolID)
	if err := row.Scan(&summary.ID, &summary.Version, &summary.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest version: %w", err)
	}

	if err := c.db.QueryRow("SELECT COUNT(*) FROM tool_files WHERE tool_version_id = ?", summary.ID).Scan(&summary.FileCount); err != nil {
		return nil, fmt.Errorf("count files: %w", err)
	}

	return &summary, nil
}

func (c *Catalog) resolveUniqueSlug(tx *sql.Tx, requestedSlug, excludeToolID string) (string, error) {
	base := slugify(requestedSlug)
	candidate := base
	counter := 2

	for {
		var exists bool
		var err error
		if excludeToolID != "" {
			var flag int
			err = tx.QueryRow("SELECT 1 FROM tools WHERE slug = ? AND id <> ?", candidate, excludeToolID).Scan(&flag)
			exists = err == nil
		} else {
			var flag int
			err = tx.QueryRow("SELECT 1 FROM tools WHERE slug = ?", candidate).Scan(&flag)
			exists = err == nil
		}
		if err != nil && err != sql.ErrNoRows {
			return "", fmt.Errorf("check slug uniqueness: %w", err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, counter)
		counter++
	}
}

func insertFiles(tx *sql.Tx, versionID string, files []FileRecordInput, createdAt int64) error {
	for _, file := range files {
		fileID := uuid.NewString()
		if _, err := tx.Exec(`
			INSERT INTO tool_files (id, tool_version_id, original_name, stored_rel_path, sha256, size_bytes, mime, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			fileID, versionID, file.OriginalName, file.StoredRelPath, file.SHA256, file.SizeBytes, nullable(file.MIME), createdAt); err != nil {
			return fmt.Errorf("insert file record: %w", err)
		}
	}
	return nil
}

func matchesFilters(tool ToolSummary, filters ListFilters) bool {
	if category := strings.TrimSpace(filters.Category); category != "" {
		if !strings.EqualFold(tool.Category, category) {
			return false
		}
	}

	if tag := strings.TrimSpace(filters.Tag); tag != "" {
		needle := strings.ToLower(tag)
		found := false
		for _, t := range tool.Tags {
			if strings.ToLower(t) == needle {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if query := strings.TrimSpace(filters.Query); query != "" {
		needle := strings.ToLower(query)
		haystack := []string{
			strings.ToLower(tool.Name),
			strings.ToLower(tool.Slug),
			strings.ToLower(tool.Description),
			strings.ToLower(tool.Category),
		}
		for _, t := range tool.Tags {
			haystack = append(haystack, strings.ToLower(t))
		}
		if tool.LatestVersion != nil {
			haystack = append(haystack, strings.ToLower(tool.LatestVersion.Version))
		}
		matched := false
		for _, h := range haystack {
			if strings.Contains(h, needle) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	return true
}

func validateRequired(field, value string, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", toolerr.Validation(fmt.Sprintf("%s is required", field))
	}
	if len(trimmed) > maxLen {
		return "", toolerr.Validation(fmt.Sprintf("%s exceeds maximum length (%d)", field, maxLen))
	}
	return trimmed, nil
}

func normalizeOptionalText(value string, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", nil
	}
	if len(trimmed) > maxLen {
		return "", toolerr.Validation(fmt.Sprintf("text exceeds maximum length (%d)", maxLen))
	}
	return trimmed, nil
}

func normalizeTags(tags []string) ([]string, error) {
	seen := make(map[string]bool)
	var normalized []string

	for _, raw := range tags {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if len(trimmed) > maxTagLen {
			return nil, toolerr.Validation(fmt.Sprintf("tag exceeds %d characters", maxTagLen))
		}
		lowered := strings.ToLower(trimmed)
		if !seen[lowered] {
			seen[lowered] = true
			normalized = append(normalized, trimmed)
		}
	}

	sort.Slice(normalized, func(i, j int) bool {
		return strings.ToLower(normalized[i]) < strings.ToLower(normalized[j])
	})
	return normalized, nil
}

func slugify(value string) string {
	lowered := strings.ToLower(value)
	var b strings.Builder
	previousDash := false

	for _, r := range lowered {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if isAlnum {
			b.WriteRune(r)
			previousDash = false
			continue
		}
		if !previousDash {
			b.WriteRune('-')
			previousDash = true
		}
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "tool"
	}
	return slug
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
