package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"tidy-go/internal/config"
	"tidy-go/internal/database"
	"tidy-go/internal/encryption"
	"tidy-go/internal/fs"
	"tidy-go/internal/journal"
	"tidy-go/internal/tidy"
	"tidy-go/internal/vault"
)

// LockFileName is the advisory lock taken at a root while it is modified.
const LockFileName = ".tidy.lock"

// ErrRootLocked is returned when another tidy process holds the root's lock.
var ErrRootLocked = errors.New("another tidy run is in progress on this directory")

// TidyApp is the application layer between the CLI and TidyService.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and releases locks, logs and the history
// database on Close.
type TidyApp struct {
	cfg       *config.Config
	root      string
	op        *Operation
	fsmgr     *fs.OSFilesystemManager
	vault     tidy.Vault
	encryptor tidy.Encryptor
	history   tidy.History
	service   *tidy.TidyService
	logger    *slog.Logger
	logFile   *os.File
	locks     []*flock.Flock
}

// NewTidyApp creates a fully wired TidyApp for one CLI operation on root.
// root may be empty for operations that do not target a directory. Mutating
// operations write their log under the root (or the configured log_dir);
// read-only operations log to stderr only. The caller must call Close when
// done.
func NewTidyApp(ctx context.Context, cfg *config.Config, operation, root string, mutating bool) (*TidyApp, error) {
	if root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolving root: %w", err)
		}
		root = abs
	}
	if mutating && root != "" {
		if err := checkRoot(root); err != nil {
			return nil, err
		}
	}

	patterns := append([]string{}, cfg.Filesystem.Ignore...)
	if root != "" {
		extra, err := fs.ParseIgnoreFile(filepath.Join(root, fs.IgnoreFileName))
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, extra...)
	}
	fsmgr := fs.NewOSFilesystemManager(patterns)

	v, err := vault.NewVaultFromConfig(ctx, cfg.Vault)
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	clock := tidy.RealClock{}
	op := NewOperation(operation, root, mutating, clock.Now())

	level, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	var logger *slog.Logger
	var logFile *os.File
	if mutating {
		logDir := logDirFor(cfg, root)
		logger, logFile, err = newLogger(logDir, op, level)
		if err != nil {
			return nil, fmt.Errorf("creating logger: %w", err)
		}
		if removed, err := pruneLogs(logDir, cfg.LogRetentionDays, clock.Now()); err != nil {
			logger.Warn("pruning old logs failed", "dir", logDir, "error", err)
		} else if removed > 0 {
			logger.Debug("old logs pruned", "dir", logDir, "removed", removed)
		}
	} else {
		logger = slog.New(&tidyHandler{w: os.Stderr, opID: op.ID, level: level})
	}

	history, err := database.NewHistoryFromConfig(cfg.Database, clock)
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("opening run history: %w", err)
	}

	svc := tidy.NewTidyService(fsmgr, journal.NewFileStore(fsmgr), v, enc, history, &slogAdapter{l: logger}, clock, tidy.UUIDGenerator{})

	return &TidyApp{
		cfg:       cfg,
		root:      root,
		op:        op,
		fsmgr:     fsmgr,
		vault:     v,
		encryptor: enc,
		history:   history,
		service:   svc,
		logger:    logger,
		logFile:   logFile,
	}, nil
}

// checkRoot fails with tidy.ErrInvalidRoot unless root is an existing
// directory. It runs before anything is created under root.
func checkRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", tidy.ErrInvalidRoot, root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", tidy.ErrInvalidRoot, root)
	}
	return nil
}

// logDirFor picks the configured log dir, else <root>/logs, else <base>/logs.
func logDirFor(cfg *config.Config, root string) string {
	switch {
	case cfg.LogDir != "":
		return cfg.LogDir
	case root != "":
		return filepath.Join(root, "logs")
	default:
		return filepath.Join(cfg.BaseDir, "logs")
	}
}

// Root returns the absolute target root of this app.
func (a *TidyApp) Root() string {
	return a.root
}

// Config returns the loaded configuration.
func (a *TidyApp) Config() *config.Config {
	return a.cfg
}

// Operation returns the operation this app was created for.
func (a *TidyApp) Operation() *Operation {
	return a.op
}

// lockRoot takes the advisory lock of dir for the lifetime of the app. Only
// a recovery target is created when missing; every other root must exist.
func (a *TidyApp) lockRoot(dir string, create bool) error {
	if create {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	} else if err := checkRoot(dir); err != nil {
		return err
	}
	lock := flock.New(filepath.Join(dir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("locking %s: %w", dir, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", dir, ErrRootLocked)
	}
	a.locks = append(a.locks, lock)
	return nil
}

// PlanOptions builds organize options from the [organize] and [backup]
// config sections. Callers override individual fields from flags.
func (a *TidyApp) PlanOptions() (tidy.PlanOptions, error) {
	mode, err := tidy.ParseMode(a.cfg.Organize.Mode)
	if err != nil {
		return tidy.PlanOptions{}, err
	}
	field, err := tidy.ParseSortField(a.cfg.Organize.SortBy)
	if err != nil {
		return tidy.PlanOptions{}, err
	}
	order, err := tidy.ParseSortOrder(a.cfg.Organize.SortOrder)
	if err != nil {
		return tidy.PlanOptions{}, err
	}

	opts := tidy.PlanOptions{
		Mode:            mode,
		SortField:       field,
		SortOrder:       order,
		CheckpointEvery: a.cfg.Organize.CheckpointEvery,
	}
	if a.cfg.Backup.Enabled {
		opts.BackupDest = a.cfg.Backup.Dir
		opts.AllowBackupFailure = a.cfg.Backup.AllowFailure
	}
	return opts, nil
}

// Plan returns the plan for the app root without touching the filesystem.
func (a *TidyApp) Plan(ctx context.Context, opts tidy.PlanOptions) ([]tidy.PlanEntry, *tidy.Summary, error) {
	return a.service.Plan(ctx, a.root, opts)
}

// Organize locks the root and organizes it. A dry run neither locks nor
// moves anything.
func (a *TidyApp) Organize(ctx context.Context, opts tidy.PlanOptions) (*tidy.Summary, error) {
	if !opts.DryRun {
		if err := a.lockRoot(a.root, false); err != nil {
			a.op.Fail()
			return nil, err
		}
	}
	summary, err := a.service.Organize(ctx, a.root, opts)
	a.op.Finish(summary, err)
	return summary, err
}

// Undo locks the root and reverses its most recent organize run.
func (a *TidyApp) Undo(ctx context.Context, dryRun bool) (*tidy.Summary, error) {
	if !dryRun {
		if err := a.lockRoot(a.root, false); err != nil {
			a.op.Fail()
			return nil, err
		}
	}
	summary, err := a.service.Undo(ctx, a.root, dryRun)
	a.op.Finish(summary, err)
	return summary, err
}

// Backup archives the root into destDir, or the configured backup dir when
// destDir is empty.
func (a *TidyApp) Backup(ctx context.Context, destDir string) (*tidy.BackupManifest, error) {
	if destDir == "" {
		destDir = a.cfg.Backup.Dir
	}
	if err := a.lockRoot(a.root, false); err != nil {
		a.op.Fail()
		return nil, err
	}
	m, err := a.service.Backup(ctx, a.root, destDir)
	a.op.Finish(nil, err)
	return m, err
}

// RecoverRequest carries the caller-owned parts of a recovery.
type RecoverRequest struct {
	Target string

	// Confirm is shown the manifest before any file is written.
	Confirm func(m *tidy.BackupManifest) bool

	// Passphrase is asked only for encrypted archives.
	Passphrase func() (string, error)
}

// Recover restores a backup. The effective target is locked for the
// duration of the recovery. The passphrase of an encrypted archive is asked
// only after the user confirmed the recovery.
func (a *TidyApp) Recover(ctx context.Context, manifestPath string, req RecoverRequest) (*tidy.Summary, error) {
	m, err := a.service.LoadManifest(manifestPath)
	if err != nil {
		a.op.Fail()
		return nil, err
	}

	target := req.Target
	if target == "" {
		target = m.Root
	}
	if err := a.lockRoot(target, true); err != nil {
		a.op.Fail()
		return nil, err
	}

	summary, err := a.service.RecoverBackup(ctx, manifestPath, tidy.RecoverOptions{
		Target:  target,
		Confirm: req.Confirm,
		Unlock: func(*tidy.BackupManifest) (tidy.DecryptionContext, error) {
			return a.unlock(req.Passphrase)
		},
	})
	a.op.Finish(summary, err)
	return summary, err
}

func (a *TidyApp) unlock(passphrase func() (string, error)) (tidy.DecryptionContext, error) {
	if a.encryptor == nil {
		return nil, fmt.Errorf("archive is encrypted but encryption is not configured")
	}
	if passphrase == nil {
		return nil, fmt.Errorf("archive is encrypted and no passphrase was provided")
	}
	pass, err := passphrase()
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	dc, err := a.encryptor.Unlock(pass)
	if err != nil {
		return nil, fmt.Errorf("unlocking private key: %w", err)
	}
	return dc, nil
}

// FindDuplicates groups identical files directly under the root.
func (a *TidyApp) FindDuplicates(ctx context.Context) ([]tidy.DuplicateGroup, error) {
	return a.service.FindDuplicates(ctx, a.root)
}

// GetHistory returns recent runs on the root, or on every root when the app
// has none.
func (a *TidyApp) GetHistory(limit int) ([]*tidy.RunRecord, error) {
	return a.service.GetHistory(a.root, limit)
}

// GetBackups returns catalogued backups of the root.
func (a *TidyApp) GetBackups(limit int) ([]*tidy.BackupRecord, error) {
	return a.service.GetBackups(a.root, limit)
}

// InitKeys generates the age key pair configured for archive encryption.
func (a *TidyApp) InitKeys(passphrase string) error {
	if a.cfg.Encryption.Type != "age" {
		return fmt.Errorf("encryption type is %q; set [encryption] type = \"age\" first", a.cfg.Encryption.Type)
	}
	return encryption.NewAgeEncryptor(a.cfg.Encryption).Setup(passphrase)
}

// ValidateVault checks that the configured vault is reachable.
func (a *TidyApp) ValidateVault() error {
	if a.vault == nil {
		return fmt.Errorf("no vault configured")
	}
	return a.vault.ValidateSetup()
}

// Close releases locks, the history database and the log file.
func (a *TidyApp) Close() error {
	var firstErr error

	for _, lock := range a.locks {
		if err := lock.Unlock(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("releasing lock %s: %w", lock.Path(), err)
		}
	}
	a.locks = nil

	if a.history != nil {
		if err := a.history.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing run history: %w", err)
		}
	}

	a.logger.Debug("operation finished", "operation", a.op.Name, "status", a.op.Status)
	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
