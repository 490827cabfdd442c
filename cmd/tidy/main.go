package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"tidy-go/internal/app"
	"tidy-go/internal/config"
	"tidy-go/internal/tidy"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults when it does
// not exist, and applies the --log-level override.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.Load(defaults["config_path"], defaults["base_dir"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, defaults["config_path"], nil
}

// newApp reads the config and creates a TidyApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "organize", "undo").
func newApp(cmd *cobra.Command, operation, root string, mutating bool) (*app.TidyApp, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	a, err := app.NewTidyApp(cmd.Context(), cfg, operation, root, mutating)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// rootArg returns the directory argument, or the current directory.
func rootArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	return cwd, nil
}

// planOptions merges config defaults with any flags the user set.
func planOptions(cmd *cobra.Command, a *app.TidyApp) (tidy.PlanOptions, error) {
	opts, err := a.PlanOptions()
	if err != nil {
		return opts, err
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		s, _ := flags.GetString("mode")
		if opts.Mode, err = tidy.ParseMode(s); err != nil {
			return opts, err
		}
	}
	if flags.Changed("sort") {
		s, _ := flags.GetString("sort")
		if opts.SortField, err = tidy.ParseSortField(s); err != nil {
			return opts, err
		}
	}
	if flags.Changed("order") {
		s, _ := flags.GetString("order")
		if opts.SortOrder, err = tidy.ParseSortOrder(s); err != nil {
			return opts, err
		}
	}
	if flags.Lookup("dry-run") != nil {
		opts.DryRun, _ = flags.GetBool("dry-run")
	}
	if flags.Lookup("backup") != nil {
		if backup, _ := flags.GetBool("backup"); backup && opts.BackupDest == "" {
			opts.BackupDest = a.Config().Backup.Dir
		}
		if noBackup, _ := flags.GetBool("no-backup"); noBackup {
			opts.BackupDest = ""
		}
		if dir, _ := flags.GetString("backup-dir"); dir != "" {
			opts.BackupDest = dir
		}
		if flags.Changed("allow-backup-failure") {
			opts.AllowBackupFailure, _ = flags.GetBool("allow-backup-failure")
		}
	}
	return opts, nil
}

func addPlanFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("mode", "m", "", "Organization mode: type, date, size or extension")
	cmd.Flags().String("sort", "", "Sort files by name, date or size before planning")
	cmd.Flags().String("order", "", "Sort order: asc or desc")
}

var rootCmd = &cobra.Command{
	Use:          "tidy",
	Short:        "Organize a cluttered directory into category folders",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Backup Dir: %s\n", cfg.Backup.Dir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		renderConfig(os.Stdout, cfg)
		return nil
	},
}

// plan command
var planCmd = &cobra.Command{
	Use:   "plan [DIR]",
	Short: "Show where each file would go without moving anything",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := rootArg(args)
		if err != nil {
			return err
		}
		a, err := newApp(cmd, "plan", root, false)
		if err != nil {
			return err
		}
		defer a.Close()

		opts, err := planOptions(cmd, a)
		if err != nil {
			return err
		}
		entries, summary, err := a.Plan(cmd.Context(), opts)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Nothing to organize.")
			return nil
		}

		renderPlan(os.Stdout, a.Root(), entries)
		renderSummary(os.Stdout, summary)
		return nil
	},
}

// organize command
var organizeCmd = &cobra.Command{
	Use:   "organize [DIR]",
	Short: "Move files into category folders",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := rootArg(args)
		if err != nil {
			return err
		}
		a, err := newApp(cmd, "organize", root, true)
		if err != nil {
			return err
		}
		defer a.Close()

		opts, err := planOptions(cmd, a)
		if err != nil {
			return err
		}
		progress := newProgress(os.Stderr, "organizing")
		if !opts.DryRun {
			opts.Progress = progress.Update
		}

		summary, err := a.Organize(cmd.Context(), opts)
		progress.Done()
		if summary != nil {
			renderSummary(os.Stdout, summary)
		}
		if err != nil {
			return fmt.Errorf("organize failed: %w", err)
		}
		return failuresError(summary)
	},
}

// undo command
var undoCmd = &cobra.Command{
	Use:   "undo [DIR]",
	Short: "Reverse the most recent organize run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := rootArg(args)
		if err != nil {
			return err
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		a, err := newApp(cmd, "undo", root, !dryRun)
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.Undo(cmd.Context(), dryRun)
		if err != nil {
			return fmt.Errorf("undo failed: %w", err)
		}
		if summary.NothingToUndo {
			fmt.Println("Nothing to undo.")
			return nil
		}
		renderSummary(os.Stdout, summary)
		return failuresError(summary)
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup [DIR]",
	Short: "Archive the files that organize would move",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := rootArg(args)
		if err != nil {
			return err
		}
		dest, _ := cmd.Flags().GetString("dest")

		a, err := newApp(cmd, "backup", root, true)
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := a.Backup(cmd.Context(), dest)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		fmt.Printf("Backed up %s (%s)\n", plural(len(m.Entries), "file"), formatBytes(m.TotalSize()))
		fmt.Printf("Archive:  %s\n", m.ArchivePath())
		fmt.Printf("Manifest: %s\n", m.Path)
		return nil
	},
}

// backups command
var backupsCmd = &cobra.Command{
	Use:   "backups [DIR]",
	Short: "List catalogued backups",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := historyRoot(cmd, args)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "backups", root, false)
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.GetBackups(limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No backups recorded.")
			return nil
		}
		renderBackups(os.Stdout, records)
		return nil
	},
}

// recover command
var recoverCmd = &cobra.Command{
	Use:   "recover MANIFEST",
	Short: "Restore the files of a backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetString("target")
		yes, _ := cmd.Flags().GetBool("yes")

		a, err := newApp(cmd, "recover", "", true)
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.Recover(cmd.Context(), args[0], app.RecoverRequest{
			Target: target,
			Confirm: func(m *tidy.BackupManifest) bool {
				into := m.Root
				if target != "" {
					into = target
				}
				fmt.Printf("Backup %s from %s\n", m.ID, m.CreatedAt.Local().Format("2006-01-02 15:04:05"))
				fmt.Printf("Restore %s (%s) into %s?\n", plural(len(m.Entries), "file"), formatBytes(m.TotalSize()), into)
				return yes || confirm("Proceed")
			},
			Passphrase: func() (string, error) {
				return readPassphrase("Passphrase: ")
			},
		})
		if errors.Is(err, tidy.ErrRecoveryNotConfirmed) {
			fmt.Println("Recovery cancelled.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("recovery failed: %w", err)
		}
		renderSummary(os.Stdout, summary)
		return failuresError(summary)
	},
}

// dupes command
var dupesCmd = &cobra.Command{
	Use:   "dupes [DIR]",
	Short: "Find files with identical content",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := rootArg(args)
		if err != nil {
			return err
		}
		a, err := newApp(cmd, "dupes", root, false)
		if err != nil {
			return err
		}
		defer a.Close()

		groups, err := a.FindDuplicates(cmd.Context())
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			fmt.Println("No duplicates found.")
			return nil
		}
		renderDuplicates(os.Stdout, a.Root(), groups)
		return nil
	},
}

// modes command
var modesCmd = &cobra.Command{
	Use:   "modes",
	Short: "List organization modes and the folders they create",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		renderModes(os.Stdout)
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history [DIR]",
	Short: "View recent runs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := historyRoot(cmd, args)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "history", root, false)
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.GetHistory(limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}
		renderHistory(os.Stdout, runs)
		return nil
	},
}

// historyRoot returns "" for --all so every root is listed.
func historyRoot(cmd *cobra.Command, args []string) (string, error) {
	if all, _ := cmd.Flags().GetBool("all"); all {
		return "", nil
	}
	root, err := rootArg(args)
	if err != nil {
		return "", err
	}
	return filepath.Abs(root)
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage backup encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the age key pair used to encrypt backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "keys", "", false)
		if err != nil {
			return err
		}
		defer a.Close()

		pass, err := readPassphrase("New passphrase: ")
		if err != nil {
			return err
		}
		again, err := readPassphrase("Repeat passphrase: ")
		if err != nil {
			return err
		}
		if pass != again {
			return fmt.Errorf("passphrases do not match")
		}

		if err := a.InitKeys(pass); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		enc := a.Config().Encryption
		fmt.Printf("Public key:  %s\n", enc.PublicKeyPath)
		fmt.Printf("Private key: %s (passphrase protected)\n", enc.PrivateKeyPath)
		return nil
	},
}

// vault command
var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage the backup mirror",
}

var vaultCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the configured vault is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "vault", "", false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ValidateVault(); err != nil {
			return fmt.Errorf("vault check failed: %w", err)
		}
		fmt.Printf("Vault %q (%s) is reachable\n", a.Config().Vault.Name, a.Config().Vault.Type)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level (debug, info, warn, error)")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// keys and vault subcommands
	keysCmd.AddCommand(keysInitCmd)
	vaultCmd.AddCommand(vaultCheckCmd)

	addPlanFlags(planCmd)

	addPlanFlags(organizeCmd)
	organizeCmd.Flags().BoolP("dry-run", "n", false, "Plan and report without moving anything")
	organizeCmd.Flags().Bool("backup", false, "Back up the files before moving them")
	organizeCmd.Flags().Bool("no-backup", false, "Skip the backup even when enabled in config")
	organizeCmd.Flags().String("backup-dir", "", "Directory for the backup archive (implies --backup)")
	organizeCmd.Flags().Bool("allow-backup-failure", false, "Continue organizing when the backup fails")

	undoCmd.Flags().BoolP("dry-run", "n", false, "Report what would be restored without moving anything")

	backupCmd.Flags().StringP("dest", "d", "", "Destination directory (default: configured backup dir)")

	recoverCmd.Flags().StringP("target", "t", "", "Restore into this directory instead of the original root")
	recoverCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	historyCmd.Flags().IntP("limit", "n", config.DefaultHistoryLimit, "Maximum number of runs to show")
	historyCmd.Flags().Bool("all", false, "Show runs of every directory")

	backupsCmd.Flags().IntP("limit", "n", config.DefaultHistoryLimit, "Maximum number of backups to show")
	backupsCmd.Flags().Bool("all", false, "Show backups of every directory")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(organizeCmd)
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(backupsCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(dupesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(modesCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(vaultCmd)
}
