package tidy

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// RecoverOptions controls a recovery.
type RecoverOptions struct {
	// Target restores into this directory instead of the manifest's root.
	Target string

	// Confirm is asked once, after the manifest was read and before any
	// file is written. Recovery refuses to run without it.
	Confirm func(m *BackupManifest) bool

	// Decrypt is required for encrypted archives unless Unlock is set.
	Decrypt DecryptionContext

	// Unlock is called for an encrypted archive without Decrypt, only after
	// Confirm accepted the manifest.
	Unlock func(m *BackupManifest) (DecryptionContext, error)
}

// RecoverBackup restores every file listed in the manifest at manifestPath.
// The archive is read next to the manifest, or fetched from the vault when
// it is missing locally. Files land under the manifest's root (or
// opts.Target) and never replace an existing file: collisions get a
// suffixed name. Each restored file is checked against the manifest's size
// and fingerprint and gets its modification time back.
//
// Archive members not listed in the manifest are refused and listed entries
// missing from the archive are errors, so the restored set is exactly the
// manifest inventory.
func (s *TidyService) RecoverBackup(ctx context.Context, manifestPath string, opts RecoverOptions) (*Summary, error) {
	manifest, err := s.LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	if opts.Confirm == nil || !opts.Confirm(manifest) {
		return nil, ErrRecoveryNotConfirmed
	}

	dc := opts.Decrypt
	if manifest.Encrypted && dc == nil && opts.Unlock != nil {
		dc, err = opts.Unlock(manifest)
		if err != nil {
			return nil, fmt.Errorf("unlocking %s: %w", manifest.Archive, err)
		}
	}

	target := opts.Target
	if target == "" {
		target = manifest.Root
	}
	return s.track(target, "recover", "manifest="+manifest.Path, func() (*Summary, error) {
		return s.recover(ctx, manifest, target, dc)
	})
}

// LoadManifest reads and validates a backup manifest.
func (s *TidyService) LoadManifest(manifestPath string) (*BackupManifest, error) {
	abs, err := filepath.Abs(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("resolving manifest path: %w", err)
	}
	f, err := s.fsmgr.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()

	m, err := ReadManifest(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", abs, err)
	}
	m.Path = abs
	return m, nil
}

func (s *TidyService) recover(ctx context.Context, m *BackupManifest, target string, dc DecryptionContext) (*Summary, error) {
	if m.Encrypted && dc == nil {
		return nil, fmt.Errorf("archive %s is encrypted; a decryption context is required", m.Archive)
	}

	target, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("resolving target: %w", err)
	}
	if _, err := s.fsmgr.MkdirAll(target); err != nil {
		return nil, fmt.Errorf("creating target: %w", err)
	}

	if err := s.fetchArchive(m); err != nil {
		return nil, err
	}

	f, err := s.fsmgr.Open(m.ArchivePath())
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if m.Encrypted {
		r, err = dc.Decrypt(f)
		if err != nil {
			return nil, fmt.Errorf("decrypting archive: %w", err)
		}
	}
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading archive: %w", ErrManifestCorrupt, err)
	}
	defer gz.Close()

	listed := make(map[string]ManifestEntry, len(m.Entries))
	for _, e := range m.Entries {
		listed[e.Path] = e
	}
	restored := make(map[string]bool, len(m.Entries))

	s.logger.Info("recovery started", "manifest", m.Path, "target", target, "files", len(m.Entries))

	summary := newSummary(false)
	resolver := NewResolver(s.fsmgr.Exists)
	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, fmt.Errorf("%w: reading archive: %w", ErrManifestCorrupt, err)
		}

		entry, ok := listed[hdr.Name]
		if !ok || restored[hdr.Name] || hdr.Typeflag != tar.TypeReg {
			summary.record(Outcome{
				Source: hdr.Name,
				Status: StatusSkipped,
				Err:    fmt.Errorf("archive member %q is not listed in the manifest", hdr.Name),
			})
			s.logger.Warn("unlisted archive member refused", "member", hdr.Name)
			continue
		}
		restored[entry.Path] = true

		dest := resolver.Resolve(target, entry.Path)
		outcome := Outcome{Source: entry.Path, Destination: dest}
		if err := s.restoreEntry(tr, entry, dest); err != nil {
			outcome.Status = StatusFailed
			outcome.Err = err
			s.logger.Warn("restore failed", "path", entry.Path, "error", err)
		} else {
			outcome.Status = StatusMoved
			s.logger.Debug("file recovered", "path", dest)
		}
		summary.record(outcome)
	}

	for _, e := range m.Entries {
		if !restored[e.Path] {
			summary.record(Outcome{
				Source: e.Path,
				Status: StatusFailed,
				Err:    fmt.Errorf("%w: %s is missing from the archive", ErrManifestCorrupt, e.Path),
			})
		}
	}

	s.logger.Info("recovery finished", "target", target, "restored", summary.Moved, "errors", summary.Errors)
	return summary, nil
}

// fetchArchive downloads the archive from the vault when it is not present
// next to the manifest. An archive found in neither place wraps
// ErrArchiveMissing.
func (s *TidyService) fetchArchive(m *BackupManifest) error {
	path := m.ArchivePath()
	if s.fsmgr.Exists(path) {
		return nil
	}
	if s.vault == nil {
		return fmt.Errorf("%w: %s", ErrArchiveMissing, path)
	}
	ok, err := s.vault.Exists(m.Archive)
	if err != nil {
		return fmt.Errorf("checking vault for %s: %w", m.Archive, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s is neither at %s nor in the vault", ErrArchiveMissing, m.Archive, filepath.Dir(path))
	}

	s.logger.Info("fetching archive from vault", "archive", m.Archive)
	err = s.fsmgr.WriteAtomic(path, func(w io.Writer) error {
		return s.vault.Get(m.Archive, w)
	})
	if err != nil {
		return fmt.Errorf("fetching archive from vault: %w", err)
	}
	return nil
}

// restoreEntry writes one archive member to dest and verifies it. A file
// that fails verification is removed again.
func (s *TidyService) restoreEntry(r io.Reader, entry ManifestEntry, dest string) error {
	w, err := s.fsmgr.CreateExclusive(dest, entry.Mode.Perm())
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}

	sum, n, err := fingerprint(io.TeeReader(r, w))
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err == nil && (n != entry.Size || sum != entry.SHA256) {
		err = fmt.Errorf("%w: %s does not match its size or fingerprint", ErrManifestCorrupt, entry.Path)
	}
	if err != nil {
		if rerr := s.fsmgr.Remove(dest); rerr != nil {
			s.logger.Warn("removing partial file failed", "path", dest, "error", rerr)
		}
		return err
	}

	if err := s.fsmgr.Chtimes(dest, entry.ModTime); err != nil {
		return fmt.Errorf("restoring modification time: %w", err)
	}
	return nil
}
