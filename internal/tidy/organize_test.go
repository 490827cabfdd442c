package tidy_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"tidy-go/internal/journal"
	"tidy-go/internal/testutil"
	"tidy-go/internal/tidy"
)

var fourFiles = map[string]string{
	"report.pdf":   "quarterly numbers",
	"vacation.jpg": "beach",
	"song.mp3":     "la la la",
	"backup.zip":   "PK",
}

func TestTidyService_Organize(t *testing.T) {
	env := newTestEnv(t)
	env.addFiles(fourFiles)

	summary, err := env.svc.Organize(context.Background(), testRoot, tidy.PlanOptions{Mode: tidy.ModeType})
	if err != nil {
		t.Fatalf("Organize() error = %v", err)
	}

	if summary.Moved != 4 || summary.Errors != 0 || summary.Suspicious != 0 {
		t.Errorf("summary moved/errors/suspicious = %d/%d/%d, want 4/0/0", summary.Moved, summary.Errors, summary.Suspicious)
	}
	if summary.DryRun {
		t.Error("DryRun = true, want false")
	}
	if summary.JournalID == "" {
		t.Error("JournalID is empty")
	}

	env.mustContent(t, inRoot("Documents", "report.pdf"), "quarterly numbers")
	env.mustContent(t, inRoot("Images", "vacation.jpg"), "beach")
	env.mustContent(t, inRoot("Audio", "song.mp3"), "la la la")
	env.mustContent(t, inRoot("Archives", "backup.zip"), "PK")
	if env.fs.Exists(inRoot("report.pdf")) {
		t.Error("report.pdf still in root")
	}

	j, err := env.journal.Load(testRoot)
	if err != nil {
		t.Fatalf("journal Load() error = %v", err)
	}
	if j == nil || len(j.Moves) != 4 {
		t.Fatalf("journal = %+v, want 4 moves", j)
	}
	if j.ID != summary.JournalID || j.Mode != "type" || len(j.CreatedDirs) != 4 {
		t.Errorf("journal = %+v", j)
	}

	runs, err := env.history.ListRuns(testRoot, 0)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 1 || runs[0].Operation != "organize" || runs[0].Status != "completed" || runs[0].Moved != 4 {
		t.Errorf("runs = %+v", runs)
	}
}

func TestTidyService_OrganizeSuspicious(t *testing.T) {
	env := newTestEnv(t)
	env.addFiles(map[string]string{
		"invoice.pdf.exe": "MZ payload",
		"report.pdf":      "pdf",
	})

	summary, err := env.svc.Organize(context.Background(), testRoot, tidy.PlanOptions{Mode: tidy.ModeType})
	if err != nil {
		t.Fatalf("Organize() error = %v", err)
	}

	if summary.Suspicious != 1 || summary.Moved != 2 {
		t.Errorf("summary suspicious/moved = %d/%d, want 1/2", summary.Suspicious, summary.Moved)
	}
	if summary.ByCategory["Executables"] != 1 {
		t.Errorf("ByCategory = %v, want Executables counted", summary.ByCategory)
	}
	env.mustContent(t, inRoot("Suspicious", "invoice.pdf.exe"), "MZ payload")
	if env.fs.Exists(inRoot("Executables")) {
		t.Error("Executables folder created for a suspicious file")
	}

	j, _ := env.journal.Load(testRoot)
	if j == nil || j.Suspicious != 1 {
		t.Errorf("journal suspicious = %+v", j)
	}
}

func TestTidyService_OrganizePerFileFailure(t *testing.T) {
	env := newTestEnv(t)
	env.addFiles(fourFiles)
	env.fs.FailMove(inRoot("song.mp3"), errors.New("permission denied"))

	summary, err := env.svc.Organize(context.Background(), testRoot, tidy.PlanOptions{})
	if err != nil {
		t.Fatalf("Organize() error = %v", err)
	}

	if summary.Moved != 3 || summary.Errors != 1 {
		t.Errorf("moved/errors = %d/%d, want 3/1", summary.Moved, summary.Errors)
	}
	failures := summary.Failures()
	if len(failures) != 1 || failures[0].Source != inRoot("song.mp3") || failures[0].Err == nil {
		t.Errorf("Failures() = %+v", failures)
	}
	env.mustContent(t, inRoot("song.mp3"), "la la la")

	j, _ := env.journal.Load(testRoot)
	if j == nil || len(j.Moves) != 3 {
		t.Errorf("journal = %+v, want 3 moves", j)
	}

	runs, _ := env.history.ListRuns(testRoot, 1)
	if len(runs) != 1 || runs[0].Status != "completed_with_errors" || runs[0].Errors != 1 {
		t.Errorf("runs = %+v", runs)
	}
}

func TestTidyService_OrganizeDryRun(t *testing.T) {
	env := newTestEnv(t)
	env.addFiles(fourFiles)
	before := env.fs.Files(testRoot)

	summary, err := env.svc.Organize(context.Background(), testRoot, tidy.PlanOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Organize() error = %v", err)
	}

	if !summary.DryRun || summary.Planned != 4 || summary.Moved != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if after := env.fs.Files(testRoot); len(after) != len(before) {
		t.Errorf("dry run changed the filesystem: %v", after)
	}
	if env.journal.Has(testRoot) {
		t.Error("dry run wrote a journal")
	}
}

func TestTidyService_OrganizeDateMode(t *testing.T) {
	env := newTestEnv(t)
	now := env.clock.Now()
	env.fs.AddFileAt(inRoot("fresh.txt"), []byte("a"), now.Add(-time.Hour))
	env.fs.AddFileAt(inRoot("old.txt"), []byte("b"), time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC))

	if _, err := env.svc.Organize(context.Background(), testRoot, tidy.PlanOptions{Mode: tidy.ModeDate}); err != nil {
		t.Fatalf("Organize() error = %v", err)
	}

	env.mustContent(t, inRoot("This Week", "fresh.txt"), "a")
	env.mustContent(t, inRoot("2019", "old.txt"), "b")
}

func TestTidyService_OrganizeEmptyRoot(t *testing.T) {
	env := newTestEnv(t)

	summary, err := env.svc.Organize(context.Background(), testRoot, tidy.PlanOptions{})
	if err != nil {
		t.Fatalf("Organize() error = %v", err)
	}
	if summary.Moved != 0 || summary.JournalID != "" {
		t.Errorf("summary = %+v", summary)
	}
	if env.journal.Has(testRoot) {
		t.Error("empty run wrote a journal")
	}
}

func TestTidyService_OrganizeProgress(t *testing.T) {
	env := newTestEnv(t)
	env.addFiles(fourFiles)

	var calls, lastDone, lastTotal int
	opts := tidy.PlanOptions{Progress: func(done, total int, name string) {
		calls++
		lastDone, lastTotal = done, total
	}}
	if _, err := env.svc.Organize(context.Background(), testRoot, opts); err != nil {
		t.Fatalf("Organize() error = %v", err)
	}
	if calls != 4 || lastDone != 4 || lastTotal != 4 {
		t.Errorf("progress calls=%d last=%d/%d, want 4 and 4/4", calls, lastDone, lastTotal)
	}
}

func TestTidyService_ExecuteCancelled(t *testing.T) {
	env := newTestEnv(t)
	env.addFiles(fourFiles)

	entries, _, err := env.svc.Plan(context.Background(), testRoot, tidy.PlanOptions{})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := env.svc.Execute(ctx, testRoot, entries, tidy.PlanOptions{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if summary.Skipped != 4 || summary.Moved != 0 {
		t.Errorf("skipped/moved = %d/%d, want 4/0", summary.Skipped, summary.Moved)
	}
	for _, o := range summary.Outcomes {
		if !errors.Is(o.Err, context.Canceled) {
			t.Errorf("outcome error = %v, want context.Canceled", o.Err)
		}
	}
	if env.journal.Has(testRoot) {
		t.Error("cancelled run wrote a journal")
	}
}

// countingStore counts journal saves.
type countingStore struct {
	*journal.MemoryStore
	saves int
}

func (s *countingStore) Save(root string, j *tidy.Journal) error {
	s.saves++
	return s.MemoryStore.Save(root, j)
}

func TestTidyService_ExecuteCheckpoints(t *testing.T) {
	tests := []struct {
		name  string
		every int
		saves int
	}{
		{name: "every two moves", every: 2, saves: 3},
		{name: "default interval", every: 0, saves: 1},
		{name: "disabled", every: -1, saves: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsmgr := testutil.NewMockFilesystemManager()
			for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt"} {
				fsmgr.AddFile(inRoot(name), []byte(name))
			}
			store := &countingStore{MemoryStore: journal.NewMemoryStore()}
			svc := tidy.NewTidyService(fsmgr, store, nil, nil, nil, nil, testutil.FixedClock(), testutil.NewStubIDGenerator())

			summary, err := svc.Organize(context.Background(), testRoot, tidy.PlanOptions{CheckpointEvery: tt.every})
			if err != nil {
				t.Fatalf("Organize() error = %v", err)
			}
			if summary.Moved != 5 {
				t.Fatalf("Moved = %d, want 5", summary.Moved)
			}
			if store.saves != tt.saves {
				t.Errorf("journal saves = %d, want %d", store.saves, tt.saves)
			}
			j, _ := store.Load(testRoot)
			if j == nil || len(j.Moves) != 5 {
				t.Errorf("final journal = %+v", j)
			}
		})
	}
}

func TestTidyService_OrganizeReplacesJournal(t *testing.T) {
	env := newTestEnv(t)
	env.addFiles(map[string]string{"first.pdf": "1"})
	if _, err := env.svc.Organize(context.Background(), testRoot, tidy.PlanOptions{}); err != nil {
		t.Fatalf("first Organize() error = %v", err)
	}

	env.addFiles(map[string]string{"second.png": "2"})
	if _, err := env.svc.Organize(context.Background(), testRoot, tidy.PlanOptions{}); err != nil {
		t.Fatalf("second Organize() error = %v", err)
	}

	j, _ := env.journal.Load(testRoot)
	if j == nil || len(j.Moves) != 1 || j.Moves[0].Source != inRoot("second.png") {
		t.Errorf("journal = %+v, want only the second run", j)
	}
}
