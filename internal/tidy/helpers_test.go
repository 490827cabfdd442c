package tidy_test

import (
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"tidy-go/internal/database"
	"tidy-go/internal/journal"
	"tidy-go/internal/testutil"
	"tidy-go/internal/tidy"
	"tidy-go/internal/vault"
)

const testRoot = "/home/user/Downloads"

// testEnv wires a TidyService to in-memory collaborators.
type testEnv struct {
	fs      *testutil.MockFilesystemManager
	journal *journal.MemoryStore
	vault   *vault.MemoryVault
	history *database.SQLiteHistory
	clock   *testutil.StubClock
	svc     *tidy.TidyService
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithEncryptor(t, nil)
}

func newTestEnvWithEncryptor(t *testing.T, enc tidy.Encryptor) *testEnv {
	t.Helper()

	env := &testEnv{
		fs:      testutil.NewMockFilesystemManager(),
		journal: testutil.NewTestJournalStore(),
		vault:   testutil.NewTestVault(),
		clock:   testutil.FixedClock(),
	}
	env.history = testutil.NewTestHistory(t, env.clock)
	env.fs.AddDirectory(testRoot)
	env.svc = tidy.NewTidyService(env.fs, env.journal, env.vault, enc, env.history, nil, env.clock, testutil.NewStubIDGenerator())
	return env
}

// addFiles adds name -> content files directly under testRoot.
func (e *testEnv) addFiles(files map[string]string) {
	for name, content := range files {
		e.fs.AddFile(filepath.Join(testRoot, name), []byte(content))
	}
}

func (e *testEnv) mustContent(t *testing.T, path, want string) {
	t.Helper()
	got, ok := e.fs.Content(path)
	if !ok {
		t.Fatalf("%s does not exist", path)
	}
	if string(got) != want {
		t.Errorf("%s content = %q, want %q", path, got, want)
	}
}

func inRoot(parts ...string) string {
	return filepath.Join(append([]string{testRoot}, parts...)...)
}

// record builds a FileRecord the way the service snapshots eligible files.
func record(name string, size int64, modTime time.Time) tidy.FileRecord {
	info := &fakeInfo{name: name, size: size, modTime: modTime}
	return tidy.NewFileRecord(tidy.NewPath(inRoot(name), false, info), false)
}

type fakeInfo struct {
	name    string
	size    int64
	modTime time.Time
}

func (f *fakeInfo) Name() string       { return f.name }
func (f *fakeInfo) Size() int64        { return f.size }
func (f *fakeInfo) Mode() fs.FileMode  { return 0644 }
func (f *fakeInfo) ModTime() time.Time { return f.modTime }
func (f *fakeInfo) IsDir() bool        { return false }
func (f *fakeInfo) Sys() any           { return nil }
