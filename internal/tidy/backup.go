package tidy

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

const (
	// BackupPrefix starts every archive name. The eligibility filter
	// ignores tidy-backup-*.tar.gz* so archives, their .age variant and
	// manifests kept inside the root are never organized.
	BackupPrefix = "tidy-backup-"

	backupStampLayout = "20060102T150405Z"
	archiveExt        = ".tar.gz"
	encryptedExt      = ".age"
)

// Backup archives the eligible files of root into destDir before anything is
// moved. The archive and its manifest are written atomically; the manifest
// records each file's name, size, modification time, mode and SHA-256. When
// an encryptor is configured the archive is encrypted. When a vault is
// configured both files are mirrored to it; a failed mirror is logged and
// does not fail the backup.
//
// Every failure to produce the archive or the manifest wraps ErrBackupWrite.
func (s *TidyService) Backup(ctx context.Context, root, destDir string) (*BackupManifest, error) {
	rootPath, err := s.resolveRoot(root)
	if err != nil {
		return nil, err
	}

	records, err := s.eligibleFiles(rootPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackupWrite, err)
	}

	destDir, err = filepath.Abs(destDir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving destination: %w", ErrBackupWrite, err)
	}
	if _, err := s.fsmgr.MkdirAll(destDir); err != nil {
		return nil, fmt.Errorf("%w: creating destination: %w", ErrBackupWrite, err)
	}

	encrypted := s.encryptor != nil && s.encryptor.IsConfigured()
	id := s.idgen.New()
	createdAt := s.clock.Now().UTC()

	archive := BackupPrefix + createdAt.Format(backupStampLayout) + "-" + shortID(id) + archiveExt
	if encrypted {
		archive += encryptedExt
	}
	archivePath := filepath.Join(destDir, archive)

	manifest := &BackupManifest{
		Version:   ManifestVersion,
		ID:        id,
		CreatedAt: createdAt,
		Root:      rootPath.String(),
		Archive:   archive,
		Encrypted: encrypted,
		Path:      archivePath + ManifestSuffix,
	}

	s.logger.Info("backup started", "root", rootPath.String(), "archive", archivePath, "files", len(records), "encrypted", encrypted)

	err = s.fsmgr.WriteAtomic(archivePath, func(w io.Writer) error {
		entries, err := s.writeArchive(ctx, w, records, encrypted)
		manifest.Entries = entries
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: writing archive: %w", ErrBackupWrite, err)
	}

	err = s.fsmgr.WriteAtomic(manifest.Path, func(w io.Writer) error {
		return WriteManifest(w, manifest)
	})
	if err != nil {
		if rerr := s.fsmgr.Remove(archivePath); rerr != nil {
			s.logger.Warn("removing orphaned archive failed", "archive", archivePath, "error", rerr)
		}
		return nil, fmt.Errorf("%w: writing manifest: %w", ErrBackupWrite, err)
	}

	mirrored := s.mirror(archivePath, manifest.Path)
	s.recordBackup(manifest, mirrored)

	s.logger.Info("backup complete", "archive", archivePath, "files", len(manifest.Entries), "bytes", manifest.TotalSize(), "mirrored", mirrored)
	return manifest, nil
}

// writeArchive streams records through tar, gzip and, when encrypted, the
// encryptor. It returns the manifest entries in archive order.
func (s *TidyService) writeArchive(ctx context.Context, w io.Writer, records []FileRecord, encrypted bool) ([]ManifestEntry, error) {
	out := w
	var encw io.WriteCloser
	if encrypted {
		var err error
		encw, err = s.encryptor.Encrypt(w)
		if err != nil {
			return nil, fmt.Errorf("starting encryption: %w", err)
		}
		out = encw
	}

	gz, err := gzip.NewWriterLevel(out, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("starting compression: %w", err)
	}
	tw := tar.NewWriter(gz)

	entries := make([]ManifestEntry, 0, len(records))
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, err := s.archiveFile(tw, rec)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("closing tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip stream: %w", err)
	}
	if encw != nil {
		if err := encw.Close(); err != nil {
			return nil, fmt.Errorf("finishing encryption: %w", err)
		}
	}
	return entries, nil
}

func (s *TidyService) archiveFile(tw *tar.Writer, rec FileRecord) (ManifestEntry, error) {
	info, err := s.fsmgr.Stat(rec.Path)
	if err != nil {
		return ManifestEntry{}, fmt.Errorf("stat %s: %w", rec.Name, err)
	}

	entry := ManifestEntry{
		Path:    rec.Name,
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
		Mode:    info.Mode().Perm(),
	}

	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     entry.Path,
		Size:     entry.Size,
		Mode:     int64(entry.Mode),
		ModTime:  entry.ModTime,
		Format:   tar.FormatPAX,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return ManifestEntry{}, fmt.Errorf("writing header for %s: %w", rec.Name, err)
	}

	f, err := s.fsmgr.Open(rec.Path)
	if err != nil {
		return ManifestEntry{}, fmt.Errorf("opening %s: %w", rec.Name, err)
	}
	defer f.Close()

	// The file may have grown since stat; only the stat size is archived.
	sum, n, err := fingerprint(io.TeeReader(io.LimitReader(f, entry.Size), tw))
	if err != nil {
		return ManifestEntry{}, fmt.Errorf("archiving %s: %w", rec.Name, err)
	}
	if n != entry.Size {
		return ManifestEntry{}, fmt.Errorf("archiving %s: read %d of %d bytes", rec.Name, n, entry.Size)
	}
	entry.SHA256 = sum

	s.logger.Debug("file archived", "path", rec.Path, "size", entry.Size)
	return entry, nil
}

// mirror uploads the archive and manifest to the vault, if one is configured.
func (s *TidyService) mirror(paths ...string) bool {
	if s.vault == nil {
		return false
	}
	for _, p := range paths {
		if err := s.putFile(p); err != nil {
			s.logger.Warn("vault mirror failed", "file", p, "error", err)
			return false
		}
	}
	return true
}

func (s *TidyService) putFile(path string) error {
	info, err := s.fsmgr.Stat(path)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	f, err := s.fsmgr.Open(path)
	if err != nil {
		return fmt.Errorf("opening: %w", err)
	}
	defer f.Close()

	if err := s.vault.Put(filepath.Base(path), f, info.Size()); err != nil {
		return fmt.Errorf("uploading: %w", err)
	}
	return nil
}

func (s *TidyService) recordBackup(m *BackupManifest, mirrored bool) {
	if s.history == nil {
		return
	}
	err := s.history.RecordBackup(&BackupRecord{
		ID:        m.ID,
		Root:      m.Root,
		Archive:   m.ArchivePath(),
		Manifest:  m.Path,
		CreatedAt: m.CreatedAt,
		FileCount: len(m.Entries),
		TotalSize: m.TotalSize(),
		Encrypted: m.Encrypted,
		Mirrored:  mirrored,
	})
	if err != nil {
		s.logger.Warn("recording backup failed", "id", m.ID, "error", err)
	}
}
