package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"tidy-go/internal/config"
	"tidy-go/internal/tidy"
)

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	return tw
}

func alignRight(columns ...int) []table.ColumnConfig {
	configs := make([]table.ColumnConfig, 0, len(columns))
	for _, n := range columns {
		configs = append(configs, table.ColumnConfig{Number: n, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	return configs
}

func formatBytes(n int64) string {
	if n < 0 {
		return "?"
	}
	return humanize.Bytes(uint64(n))
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return humanize.Comma(int64(n)) + " " + noun + "s"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// relTo shows path relative to root when it lies inside it.
func relTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

func renderConfig(w io.Writer, cfg *config.Config) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"Setting", "Value"})
	tw.AppendRows([]table.Row{
		{"base_dir", cfg.BaseDir},
		{"log_dir", orDefault(cfg.LogDir, "<root>/logs")},
		{"log_level", cfg.LogLevel},
		{"log_retention_days", cfg.LogRetentionDays},
		{"organize.mode", cfg.Organize.Mode},
		{"organize.sort_by", cfg.Organize.SortBy},
		{"organize.sort_order", cfg.Organize.SortOrder},
		{"organize.checkpoint_every", cfg.Organize.CheckpointEvery},
		{"backup.enabled", cfg.Backup.Enabled},
		{"backup.dir", cfg.Backup.Dir},
		{"backup.allow_failure", cfg.Backup.AllowFailure},
		{"encryption.type", cfg.Encryption.Type},
		{"vault.type", orDefault(cfg.Vault.Type, "disabled")},
		{"database.type", cfg.Database.Type},
		{"filesystem.ignore", strings.Join(cfg.Filesystem.Ignore, ", ")},
	})
	tw.Render()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func renderPlan(w io.Writer, root string, entries []tidy.PlanEntry) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"File", "Size", "Destination", "Flagged"})
	for _, e := range entries {
		flag := ""
		if e.Suspicious {
			flag = strings.Join(tidy.Reasons(e.Record), ", ")
		}
		tw.AppendRow(table.Row{e.Record.Name, formatBytes(e.Record.Size), relTo(root, e.Destination), flag})
	}
	tw.SetColumnConfigs(alignRight(2))
	tw.Render()
}

// modeFolders lists the folders a mode can produce. Date and extension
// folders are open-ended and shown as a pattern.
func modeFolders(m tidy.Mode) []string {
	var cats []tidy.Category
	switch m {
	case tidy.ModeType:
		cats = tidy.TypeCategories()
	case tidy.ModeDate:
		cats = []tidy.Category{tidy.CategoryThisWeek, tidy.CategoryThisMonth, tidy.CategoryThisYear, "<YYYY>", tidy.CategoryUnknownDate}
	case tidy.ModeSize:
		cats = []tidy.Category{tidy.CategorySmall, tidy.CategoryMedium, tidy.CategoryLarge, tidy.CategoryVeryLarge, tidy.CategoryUnknownSize}
	case tidy.ModeExtension:
		cats = []tidy.Category{"<ext>", tidy.CategoryNoExtension}
	}
	out := make([]string, 0, len(cats))
	for _, c := range cats {
		out = append(out, string(c))
	}
	return out
}

func renderModes(w io.Writer) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"Mode", "Folders"})
	for _, m := range tidy.Modes {
		tw.AppendRow(table.Row{m.String(), strings.Join(modeFolders(m), ", ")})
	}
	tw.Render()
	fmt.Fprintf(w, "Suspicious files go to %s in every mode.\n", tidy.SuspiciousCategory)
}

func renderSummary(w io.Writer, s *tidy.Summary) {
	if len(s.ByCategory) > 0 {
		categories := make([]tidy.Category, 0, len(s.ByCategory))
		for c := range s.ByCategory {
			categories = append(categories, c)
		}
		slices.Sort(categories)

		tw := newTable(w)
		tw.AppendHeader(table.Row{"Category", "Files"})
		for _, c := range categories {
			tw.AppendRow(table.Row{c, s.ByCategory[c]})
		}
		tw.SetColumnConfigs(alignRight(2))
		tw.Render()
	}

	verb := "Moved"
	n := s.Moved
	if s.DryRun {
		verb, n = "Would move", s.Planned
	}
	fmt.Fprintf(w, "%s %s, skipped %d, errors %d, suspicious %d",
		verb, plural(n, "file"), s.Skipped, s.Errors, s.Suspicious)
	if s.Duration > 0 {
		fmt.Fprintf(w, " in %s", s.Duration.Truncate(time.Millisecond))
	}
	fmt.Fprintln(w)

	if s.Backup != nil {
		fmt.Fprintf(w, "Backup: %s\n", s.Backup.Path)
	}
	for _, o := range s.Failures() {
		fmt.Fprintf(w, "  failed: %s: %v\n", o.Source, o.Err)
	}
}

func renderHistory(w io.Writer, runs []*tidy.RunRecord) {
	title := cases.Title(language.Und)

	tw := newTable(w)
	tw.AppendHeader(table.Row{"#", "Operation", "Root", "Started", "Status", "Moved", "Errors", "Duration"})
	for _, r := range runs {
		duration := ""
		if !r.FinishedAt.IsZero() {
			duration = r.FinishedAt.Sub(r.StartedAt).Truncate(time.Millisecond).String()
		}
		tw.AppendRow(table.Row{
			r.ID,
			title.String(r.Operation),
			r.Root,
			humanize.Time(r.StartedAt),
			r.Status,
			r.Moved,
			r.Errors,
			duration,
		})
	}
	tw.SetColumnConfigs(alignRight(1, 6, 7))
	tw.Render()
}

func renderBackups(w io.Writer, records []*tidy.BackupRecord) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"Created", "Files", "Size", "Encrypted", "Mirrored", "Manifest"})
	for _, b := range records {
		tw.AppendRow(table.Row{
			formatTime(b.CreatedAt),
			b.FileCount,
			formatBytes(b.TotalSize),
			yesNo(b.Encrypted),
			yesNo(b.Mirrored),
			b.Manifest,
		})
	}
	tw.SetColumnConfigs(alignRight(2, 3))
	tw.Render()
}

func renderDuplicates(w io.Writer, root string, groups []tidy.DuplicateGroup) {
	var wasted int64
	tw := newTable(w)
	tw.AppendHeader(table.Row{"Fingerprint", "Size", "Files"})
	for _, g := range groups {
		names := make([]string, len(g.Files))
		for i, f := range g.Files {
			names[i] = relTo(root, f.Path)
		}
		tw.AppendRow(table.Row{g.Fingerprint[:12], formatBytes(g.Size), strings.Join(names, "\n")})
		tw.AppendSeparator()
		wasted += g.Wasted()
	}
	tw.SetColumnConfigs(alignRight(2))
	tw.Render()
	fmt.Fprintf(w, "%s of duplicates, %s reclaimable\n", plural(len(groups), "group"), formatBytes(wasted))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// failuresError turns per-file failures into a non-zero exit.
func failuresError(s *tidy.Summary) error {
	if s != nil && s.HasErrors() {
		return fmt.Errorf("%s failed", plural(s.Errors, "file"))
	}
	return nil
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// confirm asks a yes/no question on stdin. Non-interactive input declines.
func confirm(question string) bool {
	if !isTerminal(os.Stdin) {
		return false
	}
	fmt.Printf("%s? [y/N] ", question)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// readPassphrase reads a passphrase without echo, or from
// TIDY_PASSPHRASE when stdin is not a terminal.
func readPassphrase(prompt string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		if pass := os.Getenv("TIDY_PASSPHRASE"); pass != "" {
			return pass, nil
		}
		return "", fmt.Errorf("no terminal to read the passphrase from; set TIDY_PASSPHRASE")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

// progress draws a bar on interactive terminals and stays silent otherwise.
type progress struct {
	w           *os.File
	description string
	bar         *progressbar.ProgressBar
}

func newProgress(w *os.File, description string) *progress {
	return &progress{w: w, description: description}
}

// Update matches tidy.PlanOptions.Progress.
func (p *progress) Update(done, total int, name string) {
	if !isTerminal(p.w) {
		return
	}
	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetDescription(p.description),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionThrottle(50*time.Millisecond),
		)
	}
	p.bar.Describe(p.description + " " + name)
	_ = p.bar.Set(done)
}

// Done clears the bar.
func (p *progress) Done() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
