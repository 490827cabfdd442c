package journal

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	tidyfs "tidy-go/internal/fs"
	"tidy-go/internal/tidy"
)

func newOSFileStore() *FileStore {
	return NewFileStore(tidyfs.NewOSFilesystemManager(nil))
}

var errDiskFull = errors.New("disk full")

type failingWriter struct{ calls int }

func (w *failingWriter) WriteAtomic(string, func(io.Writer) error) error {
	w.calls++
	return errDiskFull
}

func sampleJournal(root string) *tidy.Journal {
	return &tidy.Journal{
		Version:   tidy.JournalVersion,
		ID:        "id-1",
		Root:      root,
		Mode:      "type",
		CreatedAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Moves: []tidy.MoveRecord{
			{Source: filepath.Join(root, "a.pdf"), Destination: filepath.Join(root, "Documents", "a.pdf"), Category: "Documents"},
			{Source: filepath.Join(root, "x.pdf.exe"), Destination: filepath.Join(root, "Suspicious", "x.pdf.exe"), Category: "Executables", Suspicious: true},
		},
		Suspicious:  1,
		CreatedDirs: []string{filepath.Join(root, "Documents"), filepath.Join(root, "Suspicious")},
	}
}

func TestStores_SaveLoadInvalidate(t *testing.T) {
	stores := map[string]func(t *testing.T) (tidy.JournalStore, string){
		"file": func(t *testing.T) (tidy.JournalStore, string) {
			return newOSFileStore(), t.TempDir()
		},
		"memory": func(t *testing.T) (tidy.JournalStore, string) {
			return NewMemoryStore(), "/home/user/inbox"
		},
	}

	for name, setup := range stores {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			store, root := setup(t)

			got, err := store.Load(root)
			if err != nil || got != nil {
				t.Fatalf("Load() before Save = %v, %v; want nil, nil", got, err)
			}

			want := sampleJournal(root)
			if err := store.Save(root, want); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			got, err = store.Load(root)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got.ID != want.ID || len(got.Moves) != 2 || got.Suspicious != 1 {
				t.Errorf("Load() = %+v, want %+v", got, want)
			}
			if got.Moves[1].Destination != want.Moves[1].Destination || !got.Moves[1].Suspicious {
				t.Errorf("second move = %+v", got.Moves[1])
			}
			if len(got.CreatedDirs) != 2 {
				t.Errorf("CreatedDirs = %v", got.CreatedDirs)
			}

			if err := store.Invalidate(root); err != nil {
				t.Fatalf("Invalidate() error = %v", err)
			}
			if got, _ := store.Load(root); got != nil {
				t.Error("Load() after Invalidate should return nil")
			}
			if err := store.Invalidate(root); err != nil {
				t.Errorf("second Invalidate() error = %v", err)
			}
		})
	}
}

func TestFileStore_SaveReplacesAtomically(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	store := newOSFileStore()

	first := sampleJournal(root)
	if err := store.Save(root, first); err != nil {
		t.Fatal(err)
	}
	second := sampleJournal(root)
	second.ID = "id-2"
	second.Moves = second.Moves[:1]
	if err := store.Save(root, second); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load(root)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "id-2" || len(got.Moves) != 1 {
		t.Errorf("Load() = %+v, want the second journal", got)
	}

	entries, _ := os.ReadDir(root)
	if len(entries) != 1 || entries[0].Name() != FileName {
		t.Errorf("root contains %v, want only %s", entries, FileName)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"valid", `{"version":1,"id":"a","moves":[{"source":"/r/a","destination":"/r/D/a"}]}`, false},
		{"unknown fields are ignored", `{"version":1,"id":"a","moves":[],"future":{"x":1}}`, false},
		{"empty moves", `{"version":1,"moves":[]}`, false},
		{"malformed", `{"version":1,"moves":[`, true},
		{"not json", `hello`, true},
		{"missing version", `{"moves":[]}`, true},
		{"newer version", `{"version":99,"moves":[]}`, true},
		{"incomplete move", `{"version":1,"moves":[{"source":"/r/a"}]}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, tidy.ErrJournalCorrupt) {
				t.Errorf("Decode() error = %v, want ErrJournalCorrupt", err)
			}
		})
	}
}

func TestFileStore_LoadCorrupt(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	if err := os.WriteFile(Path(root), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := newOSFileStore().Load(root)
	if !errors.Is(err, tidy.ErrJournalCorrupt) {
		t.Errorf("Load() error = %v, want ErrJournalCorrupt", err)
	}
}

func TestFileStore_SaveWriterError(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	w := &failingWriter{}
	store := NewFileStore(w)

	err := store.Save(root, sampleJournal(root))
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("Save() error = %v, want writer error", err)
	}
	if w.calls != 1 {
		t.Errorf("WriteAtomic calls = %d, want 1", w.calls)
	}
	if _, err := os.Stat(Path(root)); !os.IsNotExist(err) {
		t.Error("journal written although the writer failed")
	}
}
