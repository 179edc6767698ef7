// Package sanitize implements path and name safety for inbound files,
// archive entries, and on-disk storage segments (component C1). Every
// boundary that accepts an untrusted string — an inbound file name, an
// archive entry path, a stored relative path — passes through here first.
package sanitize

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"codenerd/toollib/internal/logging"
)

const (
	maxSanitizedFilenameLen = 120
	storageRootSegment      = "tools"
	storageFilesSegment     = "files"
)

// allowedExtensions is the fixed set of artifact types toollib will store.
var allowedExtensions = map[string]bool{
	"lsp": true, "vlx": true, "fas": true, "scr": true, "dwg": true,
	"dxf": true, "cuix": true, "zip": true, "pdf": true, "txt": true,
	"md": true, "json": true,
}

var reservedWindowsNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// AllowedExtensions returns the sorted allow-list for display in error
// messages and CLI help text.
func AllowedExtensions() []string {
	out := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// SanitizeFilename normalizes an inbound file name into a safe, bounded,
// extension-allow-listed on-disk name. It is idempotent: sanitizing an
// already-sanitized name returns it unchanged (P1 in spec.md).
func SanitizeFilename(original string) (string, error) {
	candidate := strings.TrimSpace(original)
	if candidate == "" {
		return "", fmt.Errorf("file name is required")
	}

	if strings.ContainsAny(candidate, `/\`) || strings.Contains(candidate, "..") {
		return "", fmt.Errorf("file name cannot contain path separators or traversal segments")
	}
	if strings.Contains(candidate, ":") {
		return "", fmt.Errorf("file name cannot contain drive-prefix separators")
	}

	rawExt := path.Ext(candidate)
	ext := strings.ToLower(strings.TrimPrefix(rawExt, "."))
	if ext == "" {
		return "", fmt.Errorf("file extension is required")
	}
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("unsupported file extension .%s; allowed: %s", ext, strings.Join(AllowedExtensions(), ", "))
	}

	stem := candidate[:len(candidate)-len(rawExt)]

	var b strings.Builder
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	sanitizedStem := strings.Trim(b.String(), ". ")

	if sanitizedStem == "" {
		sanitizedStem = "file"
	}
	if reservedWindowsNames[strings.ToUpper(sanitizedStem)] {
		sanitizedStem += "_file"
	}

	maxStemLen := maxSanitizedFilenameLen - len(ext) - 1
	if maxStemLen < 1 {
		maxStemLen = 1
	}
	if len(sanitizedStem) > maxStemLen {
		sanitizedStem = sanitizedStem[:maxStemLen]
	}

	result := sanitizedStem + "." + ext
	logging.Get(logging.CategorySanitize).Debug("sanitized filename %q -> %q", original, result)
	return result, nil
}

// AssertSafeArchivePath rejects archive entry paths that could escape an
// extraction root: empty/whitespace paths, NUL bytes, drive separators,
// backslashes, leading slashes, and any "." or ".." segment (P2).
func AssertSafeArchivePath(p string) error {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		return fmt.Errorf("archive entry has an empty path")
	}
	if strings.ContainsRune(trimmed, 0) {
		return fmt.Errorf("unsafe archive entry path: %s", trimmed)
	}
	if strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, `\`) || strings.Contains(trimmed, ":") {
		return fmt.Errorf("unsafe archive entry path: %s", trimmed)
	}
	if strings.Contains(trimmed, `\`) {
		return fmt.Errorf("unsafe archive entry path: %s", trimmed)
	}

	segments := strings.Split(trimmed, "/")
	for _, seg := range segments {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("unsafe archive entry path: %s", trimmed)
		}
	}
	return nil
}

// ValidateStorageSegment validates a single path segment used to name an
// on-disk directory (a tool ID or version ID): trimmed, non-empty, free of
// separators and traversal markers, restricted to ASCII alphanumerics,
// '-', and '_'.
func ValidateStorageSegment(label, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%s is required", label)
	}
	if strings.ContainsAny(trimmed, `/\`) || strings.Contains(trimmed, "..") || strings.Contains(trimmed, ":") {
		return "", fmt.Errorf("%s contains unsafe path characters", label)
	}
	for _, r := range trimmed {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !isAlnum && r != '-' && r != '_' {
			return "", fmt.Errorf("%s contains unsupported characters", label)
		}
	}
	return trimmed, nil
}

// BuildStoredRelPath composes the canonical on-disk relative path for a
// file belonging to a specific tool/version after validating all inputs
// (I2).
func BuildStoredRelPath(toolID, versionID, fileName string) (string, error) {
	safeToolID, err := ValidateStorageSegment("tool_id", toolID)
	if err != nil {
		return "", err
	}
	safeVersionID, err := ValidateStorageSegment("version_id", versionID)
	if err != nil {
		return "", err
	}
	safeFileName, err := SanitizeFilename(fileName)
	if err != nil {
		return "", err
	}

	return strings.Join([]string{storageRootSegment, safeToolID, safeVersionID, storageFilesSegment, safeFileName}, "/"), nil
}

// NormalizeStoredRelPath validates that relPath has the exact shape
// tools/<tool_id>/<version_id>/files/<sanitized-name> and that the file
// name segment is already in sanitized form (an idempotence check used to
// catch stored paths that were corrupted or hand-edited).
func NormalizeStoredRelPath(relPath string) (string, error) {
	if err := AssertSafeArchivePath(relPath); err != nil {
		return "", err
	}

	segments := strings.Split(strings.TrimSpace(relPath), "/")
	if len(segments) != 5 || segments[0] != storageRootSegment || segments[3] != storageFilesSegment {
		return "", fmt.Errorf("invalid stored path structure: %s", strings.TrimSpace(relPath))
	}

	safeToolID, err := ValidateStorageSegment("tool_id", segments[1])
	if err != nil {
		return "", err
	}
	safeVersionID, err := ValidateStorageSegment("version_id", segments[2])
	if err != nil {
		return "", err
	}
	safeFileName, err := SanitizeFilename(segments[4])
	if err != nil {
		return "", err
	}
	if safeFileName != segments[4] {
		return "", fmt.Errorf("stored file name must already be sanitized: %s", segments[4])
	}

	return strings.Join([]string{storageRootSegment, safeToolID, safeVersionID, storageFilesSegment, safeFileName}, "/"), nil
}

// AssertStoredPathMatchesVersion checks that a stored relative path belongs
// to the given tool/version scope, rejecting paths that point elsewhere.
func AssertStoredPathMatchesVersion(storedRelPath, toolID, versionID string) error {
	normalized, err := NormalizeStoredRelPath(storedRelPath)
	if err != nil {
		return err
	}
	safeToolID, err := ValidateStorageSegment("tool_id", toolID)
	if err != nil {
		return err
	}
	safeVersionID, err := ValidateStorageSegment("version_id", versionID)
	if err != nil {
		return err
	}

	expectedPrefix := strings.Join([]string{storageRootSegment, safeToolID, safeVersionID, storageFilesSegment}, "/")
	if !strings.HasPrefix(normalized, expectedPrefix) {
		return fmt.Errorf("stored path is outside requested version scope: %s", normalized)
	}
	return nil
}
