// Package artifact records what one pipeline run wrote. Every artifact file
// is entered into a manifest with its size and BLAKE3 hash, and later stages
// verify those hashes before trusting the files: a skeleton or tag mapping
// that was edited by hand between extraction and merge is a corrupted input,
// not a translation.
package artifact

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"

	"github.com/seglate/seglate/core/errors"
	"github.com/seglate/seglate/internal/fileutil"
)

// ManifestVersion is the current manifest format version.
const ManifestVersion = "1.0.0"

// Artifact kinds recorded by the pipeline.
const (
	KindSource     = "source"
	KindSegments   = "segments"
	KindSkeleton   = "skeleton"
	KindTagMap     = "tagmap"
	KindDNT        = "dnt"
	KindMinimal    = "minimal"
	KindTranslated = "translated"
	KindReport     = "report"
	KindOutput     = "output"
)

// Entry describes one recorded artifact file. Path is relative to the
// manifest's directory, so a bundled artifact set stays verifiable after it
// moves between machines.
type Entry struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	BLAKE3    string `json:"blake3"`
}

// Manifest is the manifest.json artifact for one pipeline run.
type Manifest struct {
	ManifestVersion string           `json:"manifest_version"`
	RunID           string           `json:"run_id"`
	CreatedAt       string           `json:"created_at"`
	SourcePath      string           `json:"source_path"`
	SourceLang      string           `json:"source_lang,omitempty"`
	TargetLang      string           `json:"target_lang,omitempty"`
	Artifacts       map[string]Entry `json:"artifacts"`
}

// New returns an empty manifest stamped with the run identity.
func New(runID, sourcePath, sourceLang, targetLang string) *Manifest {
	return &Manifest{
		ManifestVersion: ManifestVersion,
		RunID:           runID,
		CreatedAt:       time.Now().UTC().Format(time.RFC3339),
		SourcePath:      sourcePath,
		SourceLang:      sourceLang,
		TargetLang:      targetLang,
		Artifacts:       make(map[string]Entry),
	}
}

// HashBytes returns the hex BLAKE3 hash of data.
func HashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Record enters one artifact into the manifest.
func (m *Manifest) Record(kind, path string, data []byte) {
	m.Artifacts[kind] = Entry{
		Path:      filepath.Base(path),
		SizeBytes: int64(len(data)),
		BLAKE3:    HashBytes(data),
	}
}

// Verify checks the named artifact kinds against the files in dir. With no
// kinds given, every recorded artifact is checked. Verification fails on a
// missing file, a size change, or a hash change.
func (m *Manifest) Verify(dir string, kinds ...string) error {
	if len(kinds) == 0 {
		for kind := range m.Artifacts {
			kinds = append(kinds, kind)
		}
	}
	for _, kind := range kinds {
		entry, ok := m.Artifacts[kind]
		if !ok {
			return &errors.NotFoundError{Resource: "manifest entry", ID: kind}
		}
		path := filepath.Join(dir, entry.Path)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return &errors.NotFoundError{Resource: kind + " artifact", ID: entry.Path}
			}
			return fmt.Errorf("failed to read %s artifact: %w", kind, err)
		}
		if int64(len(data)) != entry.SizeBytes {
			return errors.Wrap(errors.ErrInvalidInput,
				"%s artifact %s changed size since it was recorded (%d bytes, recorded %d)",
				kind, entry.Path, len(data), entry.SizeBytes)
		}
		if got := HashBytes(data); got != entry.BLAKE3 {
			return errors.Wrap(errors.ErrInvalidInput,
				"%s artifact %s was modified since it was recorded (blake3 mismatch)",
				kind, entry.Path)
		}
	}
	return nil
}

// Encode serializes the manifest with stable key order.
func (m *Manifest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// Write atomically writes the manifest to path.
func (m *Manifest) Write(path string) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, data, 0644)
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &errors.NotFoundError{Resource: "manifest", ID: path}
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &errors.ParseError{Format: "JSON", Path: path, Message: err.Error(), Err: err}
	}
	if m.Artifacts == nil {
		m.Artifacts = make(map[string]Entry)
	}
	return &m, nil
}
