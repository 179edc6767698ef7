// Package staging implements content staging (component C2): decoding
// inbound byte payloads, applying size and extension policy, computing
// digests, and assigning unique on-disk relative paths. Staging never
// touches the filesystem — it only produces an in-memory plan that the
// blob store can later write.
package staging

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/h2non/filetype"

	"codenerd/toollib/internal/logging"
	"codenerd/toollib/internal/sanitize"
)

// Default size limits, matching spec.md §6.
const (
	DefaultMaxFileSizeBytes  int64 = 50 * 1024 * 1024
	DefaultMaxTotalSizeBytes int64 = 200 * 1024 * 1024
)

// Limits bounds the size of a single inbound file and the sum across a
// whole staging batch.
type Limits struct {
	MaxFileSizeBytes  int64
	MaxTotalSizeBytes int64
}

// DefaultLimits returns the spec.md §6 defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxFileSizeBytes:  DefaultMaxFileSizeBytes,
		MaxTotalSizeBytes: DefaultMaxTotalSizeBytes,
	}
}

// InboundFile is one untrusted file as received at an ingest boundary.
type InboundFile struct {
	OriginalName string
	MIME         string
	DataBase64   string
}

// StagedFile is the result of running one InboundFile through C1/C2: a
// sanitized, uniquely-named, digested, but not-yet-written file.
type StagedFile struct {
	OriginalName  string
	MIME          string
	Bytes         []byte
	SizeBytes     int64
	SHA256        string
	StoredRelPath string
	// Warning carries a non-fatal sniffed-MIME notice; see SPEC_FULL.md §4.2.
	Warning string
}

// Stage runs every inbound file through sanitize-dedupe-decode-limit-digest
// processing, in input order, so identical inputs always produce identical
// staged file lists (P7).
func Stage(toolID, versionID string, files []InboundFile, limits Limits) ([]StagedFile, error) {
	timer := logging.StartTimer(logging.CategoryStaging, "Stage")
	defer timer.Stop()

	normalizedToolID, err := sanitize.ValidateStorageSegment("tool_id", toolID)
	if err != nil {
		return nil, err
	}
	normalizedVersionID, err := sanitize.ValidateStorageSegment("version_id", versionID)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("at least one file is required")
	}

	staged := make([]StagedFile, 0, len(files))
	usedNames := make(map[string]bool, len(files))
	var totalBytes int64

	for _, file := range files {
		name, err := uniqueSanitizedName(file.OriginalName, usedNames)
		if err != nil {
			return nil, err
		}

		decoded, err := decodeBase64(file.DataBase64, file.OriginalName)
		if err != nil {
			return nil, err
		}

		size := int64(len(decoded))
		if size == 0 {
			return nil, fmt.Errorf("%s is empty", name)
		}
		if size > limits.MaxFileSizeBytes {
			return nil, fmt.Errorf("%s exceeds max size of %d bytes", name, limits.MaxFileSizeBytes)
		}

		totalBytes += size
		if totalBytes > limits.MaxTotalSizeBytes {
			return nil, fmt.Errorf("Combined file size exceeds %d bytes", limits.MaxTotalSizeBytes)
		}

		digest := SHA256Hex(decoded)
		storedRelPath, err := sanitize.BuildStoredRelPath(normalizedToolID, normalizedVersionID, name)
		if err != nil {
			return nil, err
		}

		mime, warning := resolveMIME(file.MIME, decoded)

		staged = append(staged, StagedFile{
			OriginalName:  name,
			MIME:          mime,
			Bytes:         decoded,
			SizeBytes:     size,
			SHA256:        digest,
			StoredRelPath: storedRelPath,
			Warning:       warning,
		})
	}

	logging.Get(logging.CategoryStaging).Info("staged %d files (%d bytes total) for tool=%s version=%s",
		len(staged), totalBytes, normalizedToolID, normalizedVersionID)
	return staged, nil
}

// uniqueSanitizedName sanitizes name and, on a case-folded collision with
// an already-used name in this batch, appends "_N" before the extension
// until unique (I3, P3, P7).
func uniqueSanitizedName(name string, used map[string]bool) (string, error) {
	sanitized, err := sanitize.SanitizeFilename(name)
	if err != nil {
		return "", err
	}

	key := strings.ToLower(sanitized)
	if !used[key] {
		used[key] = true
		return sanitized, nil
	}

	ext := extensionOf(sanitized)
	stem := sanitized[:len(sanitized)-len(ext)-1]

	for suffix := 2; ; suffix++ {
		candidate := fmt.Sprintf("%s_%d.%s", stem, suffix, ext)
		if len(candidate) > 120 {
			suffixPart := fmt.Sprintf("_%d.%s", suffix, ext)
			maxStem := 120 - len(suffixPart)
			if maxStem < 1 {
				maxStem = 1
			}
			trimmedStem := stem
			if len(trimmedStem) > maxStem {
				trimmedStem = trimmedStem[:maxStem]
			}
			candidate = trimmedStem + suffixPart
		}

		candidateKey := strings.ToLower(candidate)
		if !used[candidateKey] {
			used[candidateKey] = true
			return candidate, nil
		}
	}
}

func extensionOf(sanitizedName string) string {
	idx := strings.LastIndex(sanitizedName, ".")
	if idx < 0 {
		return ""
	}
	return sanitizedName[idx+1:]
}

func decodeBase64(payload, originalName string) ([]byte, error) {
	trimmed := strings.TrimSpace(payload)
	decoded, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 file payload for %s: %w", strings.TrimSpace(originalName), err)
	}
	return decoded, nil
}

// SHA256Hex returns the lowercase hex-encoded SHA-256 digest of data. It is
// exported so other packages (e.g. archive, verifying an import against its
// manifest) compute digests the same way staging does.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// resolveMIME fills in a MIME type for a staged file, preferring the
// caller-supplied hint. When no hint is given, it sniffs the decoded bytes
// via filetype and returns a warning if the sniffed type actively
// contradicts a hint that was supplied. Sniffing never rejects a file —
// the allow-list in sanitize is the sole acceptance authority.
func resolveMIME(hint string, data []byte) (mime string, warning string) {
	hint = strings.TrimSpace(hint)

	head := data
	if len(head) > 261 {
		head = head[:261]
	}
	kind, _ := filetype.Match(head)

	if hint == "" {
		if kind == filetype.Unknown {
			return "", ""
		}
		return kind.MIME.Value, ""
	}

	if kind != filetype.Unknown && kind.MIME.Value != "" && kind.MIME.Value != hint {
		return hint, fmt.Sprintf("supplied MIME %q does not match sniffed content type %q", hint, kind.MIME.Value)
	}
	return hint, ""
}
