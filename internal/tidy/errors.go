package tidy

import "errors"

var (
	// ErrInvalidRoot is returned before any planning when the target root is
	// missing, inaccessible or not a directory.
	ErrInvalidRoot = errors.New("invalid target root")

	// ErrJournalCorrupt means the undo journal exists but cannot be parsed.
	// No file is touched when this is returned.
	ErrJournalCorrupt = errors.New("undo journal is corrupt")

	// ErrBackupWrite means the backup archive or its manifest could not be written.
	ErrBackupWrite = errors.New("backup could not be written")

	// ErrManifestCorrupt means a backup manifest cannot be parsed or does not
	// match its archive.
	ErrManifestCorrupt = errors.New("backup manifest is corrupt")

	// ErrArchiveMissing means a manifest's archive is neither next to it nor
	// in the vault.
	ErrArchiveMissing = errors.New("backup archive not found")

	// ErrRecoveryNotConfirmed is returned when the caller declines (or does not
	// provide) confirmation for a recovery.
	ErrRecoveryNotConfirmed = errors.New("recovery not confirmed")

	// ErrDestinationExists is returned by a move that would replace an existing path.
	ErrDestinationExists = errors.New("destination already exists")
)
