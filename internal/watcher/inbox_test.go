package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vittmoney/vitt/internal/importer"
)

type call struct {
	userID string
	path   string
}

type fakeImporter struct {
	mu    sync.Mutex
	calls []call
	rows  int
}

func (f *fakeImporter) ImportFile(_ context.Context, userID, path string) (*importer.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{userID: userID, path: path})
	return &importer.Result{Imported: f.rows}, nil
}

func (f *fakeImporter) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

type fakeBuilder struct {
	mu    sync.Mutex
	users []string
}

func (f *fakeBuilder) BuildInBackground(userID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
	return "build-" + userID
}

func (f *fakeBuilder) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.users...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestInbox_ImportsNewStatementAndRebuilds(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "u1"), 0755); err != nil {
		t.Fatal(err)
	}
	imp := &fakeImporter{rows: 3}
	b := &fakeBuilder{}
	w := NewInbox([]string{root}, []string{".csv"}, imp, b, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	writeFile(t, filepath.Join(root, "u1", "jan.csv"), "date,amount,description\n")
	writeFile(t, filepath.Join(root, "u1", "notes.txt"), "skip")

	waitFor(t, func() bool { return len(b.snapshot()) >= 1 })
	calls := imp.snapshot()
	if calls[0].userID != "u1" || filepath.Base(calls[0].path) != "jan.csv" {
		t.Errorf("unexpected import call %+v", calls[0])
	}
	for _, c := range calls {
		if filepath.Ext(c.path) != ".csv" {
			t.Errorf("non-statement file imported: %s", c.path)
		}
	}
	if got := b.snapshot()[0]; got != "u1" {
		t.Errorf("rebuild scheduled for %q, want u1", got)
	}
}

func TestInbox_NewUserDirectory(t *testing.T) {
	root := t.TempDir()
	imp := &fakeImporter{rows: 1}
	w := NewInbox([]string{root}, []string{".csv", ".xlsx"}, imp, nil, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	dir := filepath.Join(root, "u2")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(dir, "feb.xlsx"), "x")

	waitFor(t, func() bool {
		for _, c := range imp.snapshot() {
			if c.userID == "u2" && filepath.Base(c.path) == "feb.xlsx" {
				return true
			}
		}
		return false
	})
}

func TestInbox_NoRebuildWhenNothingImported(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "u1", "old.csv"), "x")
	imp := &fakeImporter{rows: 0}
	b := &fakeBuilder{}
	w := NewInbox([]string{root}, []string{".csv"}, imp, b)

	w.SyncExisting()

	if len(imp.snapshot()) != 1 {
		t.Fatalf("expected one import, got %v", imp.snapshot())
	}
	if len(b.snapshot()) != 0 {
		t.Errorf("unexpected rebuilds %v", b.snapshot())
	}
}

func TestInbox_SyncExisting(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "u1", "a.csv"), "x")
	writeFile(t, filepath.Join(root, "u2", "b.xlsx"), "x")
	writeFile(t, filepath.Join(root, "u2", ".hidden.csv"), "x")
	writeFile(t, filepath.Join(root, "orphan.csv"), "x")
	writeFile(t, filepath.Join(root, "u3", "nested", "deep.csv"), "x")

	imp := &fakeImporter{rows: 2}
	b := &fakeBuilder{}
	w := NewInbox([]string{root}, []string{".csv", ".xlsx"}, imp, b)
	w.SyncExisting()

	got := map[string]string{}
	for _, c := range imp.snapshot() {
		got[filepath.Base(c.path)] = c.userID
	}
	want := map[string]string{"a.csv": "u1", "b.xlsx": "u2"}
	if len(got) != len(want) {
		t.Fatalf("imports = %v, want %v", got, want)
	}
	for name, user := range want {
		if got[name] != user {
			t.Errorf("%s imported for %q, want %q", name, got[name], user)
		}
	}
	if len(b.snapshot()) != 2 {
		t.Errorf("expected 2 rebuilds, got %v", b.snapshot())
	}
}

func TestInbox_Start_createsMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "inbox", "statements")
	w := NewInbox([]string{root}, nil, &fakeImporter{}, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
	if dirs := w.Directories(); len(dirs) != 1 || dirs[0] != root {
		t.Errorf("Directories() = %v", dirs)
	}
}

func TestUserFor(t *testing.T) {
	w := NewInbox([]string{"/srv/inbox"}, nil, &fakeImporter{}, nil)
	tests := []struct {
		path string
		user string
		ok   bool
	}{
		{"/srv/inbox/u1/jan.csv", "u1", true},
		{"/srv/inbox/jan.csv", "", false},
		{"/srv/inbox/u1/sub/jan.csv", "", false},
		{"/srv/other/u1/jan.csv", "", false},
		{"/srv/inbox/.tmp/jan.csv", "", false},
	}
	for _, tt := range tests {
		user, ok := w.userFor(tt.path)
		if user != tt.user || ok != tt.ok {
			t.Errorf("userFor(%q) = %q, %v; want %q, %v", tt.path, user, ok, tt.user, tt.ok)
		}
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.csv", []string{".csv"}, true},
		{"/a/b.XLSX", []string{"xlsx"}, true},
		{"/a/b.md", []string{".csv"}, false},
		{"/a/.b.csv", []string{".csv"}, false},
		{"/a/b", nil, true},
	}
	for _, tt := range tests {
		if got := matchExtension(tt.path, tt.extensions); got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}
