package tidy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"time"
)

// ManifestVersion is the current backup manifest format version.
const ManifestVersion = 1

// ManifestSuffix is appended to an archive name to form its manifest name.
const ManifestSuffix = ".manifest.json"

// BackupManifest is the inventory of one backup archive. Entries are in
// archive order, which is the eligible-file order at backup time.
type BackupManifest struct {
	Version   int             `json:"version"`
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Root      string          `json:"root"`
	Archive   string          `json:"archive"`
	Encrypted bool            `json:"encrypted"`
	Entries   []ManifestEntry `json:"entries"`

	// Path is where the manifest itself was read from or written to.
	Path string `json:"-"`
}

// ManifestEntry describes one archived file.
type ManifestEntry struct {
	Path    string      `json:"path"`
	Size    int64       `json:"size"`
	ModTime time.Time   `json:"mod_time"`
	Mode    fs.FileMode `json:"mode"`
	SHA256  string      `json:"sha256"`
}

// TotalSize is the sum of all entry sizes.
func (m *BackupManifest) TotalSize() int64 {
	var n int64
	for _, e := range m.Entries {
		n += e.Size
	}
	return n
}

// ArchivePath is the archive location, next to the manifest.
func (m *BackupManifest) ArchivePath() string {
	return filepath.Join(filepath.Dir(m.Path), m.Archive)
}

// ReadManifest decodes a manifest. Malformed input, a missing archive name,
// unsafe entry paths and versions newer than ManifestVersion all wrap
// ErrManifestCorrupt.
func ReadManifest(r io.Reader) (*BackupManifest, error) {
	var m BackupManifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifestCorrupt, err)
	}
	if m.Version < 1 || m.Version > ManifestVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrManifestCorrupt, m.Version)
	}
	if m.Archive == "" || filepath.Base(m.Archive) != m.Archive {
		return nil, fmt.Errorf("%w: bad archive name %q", ErrManifestCorrupt, m.Archive)
	}
	for _, e := range m.Entries {
		if !isPlainName(e.Path) {
			return nil, fmt.Errorf("%w: unsafe entry path %q", ErrManifestCorrupt, e.Path)
		}
	}
	return &m, nil
}

// WriteManifest encodes m as indented JSON.
func WriteManifest(w io.Writer, m *BackupManifest) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// isPlainName reports whether name is a single local path element.
func isPlainName(name string) bool {
	return name != "" && filepath.IsLocal(name) && filepath.Base(name) == name
}

// fingerprint returns the SHA-256 of everything read from r and the byte count.
func fingerprint(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
