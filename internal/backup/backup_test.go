package backup

import (
	"archive/zip"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ciipa/plataforma/internal/database"
)

func newTestManager(t *testing.T, callback StatusCallback) (*Manager, *sql.DB, string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "live.db")

	db, err := database.Open(dbPath)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	backupsDir := filepath.Join(dir, "backups")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(Config{DBPath: dbPath, Dir: backupsDir}, db, callback, logger)
	return m, db, dbPath, backupsDir
}

func insertEnrollment(t *testing.T, db *sql.DB, name string) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO enrollments (name, program, email, phone) VALUES (?, 'Derecho', 'x@example.com', '5512345678')`,
		name,
	)
	if err != nil {
		t.Fatalf("insert enrollment: %v", err)
	}
}

func enrollmentNames(t *testing.T, dbPath string) []string {
	t.Helper()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT name FROM enrollments ORDER BY id`)
	if err != nil {
		t.Fatalf("query enrollments: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			t.Fatalf("scan name: %v", err)
		}
		names = append(names, n)
	}
	return names
}

func TestCreateProducesArchive(t *testing.T) {
	m, db, _, backupsDir := newTestManager(t, nil)
	insertEnrollment(t, db, "Juan")

	archive, err := m.Create(context.Background())
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}

	name := filepath.Base(archive)
	if !strings.HasPrefix(name, "ciipa_") || !strings.HasSuffix(name, ".zip") {
		t.Errorf("archive name = %q, want ciipa_*.zip", name)
	}
	if filepath.Dir(archive) != backupsDir {
		t.Errorf("archive dir = %q, want %q", filepath.Dir(archive), backupsDir)
	}

	zr, err := zip.OpenReader(archive)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()

	found := false
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, ".db") {
			found = true
		}
	}
	if !found {
		t.Error("archive contains no .db entry")
	}

	// The loose database copy is removed once zipped.
	entries, err := os.ReadDir(backupsDir)
	if err != nil {
		t.Fatalf("read backups dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".db") {
			t.Errorf("loose copy %q left behind", e.Name())
		}
	}
}

func TestCreateUpdatesStatus(t *testing.T) {
	var mu sync.Mutex
	var received []Status
	cb := func(s Status) {
		mu.Lock()
		received = append(received, s)
		mu.Unlock()
	}

	m, _, _, _ := newTestManager(t, cb)

	if m.Status().State != StateIdle {
		t.Errorf("initial state = %q, want %q", m.Status().State, StateIdle)
	}

	if _, err := m.Create(context.Background()); err != nil {
		t.Fatalf("create backup: %v", err)
	}

	status := m.Status()
	if status.State != StateIdle {
		t.Errorf("state = %q, want %q", status.State, StateIdle)
	}
	if status.LastBackup == nil {
		t.Error("expected LastBackup to be set")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("received %d callbacks, want 2", len(received))
	}
	if received[0].State != StateRunning || !received[0].InProgress {
		t.Errorf("first callback = %+v, want running", received[0])
	}
	if received[1].State != StateIdle {
		t.Errorf("second callback state = %q, want %q", received[1].State, StateIdle)
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	m, db, dbPath, backupsDir := newTestManager(t, nil)

	insertEnrollment(t, db, "Antes")
	archive, err := m.Create(context.Background())
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}

	// Diverge the live database after the snapshot.
	insertEnrollment(t, db, "Despues")

	f, err := os.Open(archive)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer f.Close()

	if err := m.Restore(context.Background(), f); err != nil {
		t.Fatalf("restore: %v", err)
	}

	names := enrollmentNames(t, dbPath)
	if len(names) != 1 || names[0] != "Antes" {
		t.Errorf("enrollments after restore = %v, want [Antes]", names)
	}

	// The replaced database is preserved beside the artifacts.
	entries, err := os.ReadDir(backupsDir)
	if err != nil {
		t.Fatalf("read backups dir: %v", err)
	}
	prevCount := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "ciipa_PREV_") && strings.HasSuffix(e.Name(), ".db") {
			prevCount++
		}
	}
	if prevCount != 1 {
		t.Errorf("found %d PREV files, want 1", prevCount)
	}
}

func TestRestoreClearsSessions(t *testing.T) {
	m, db, dbPath, _ := newTestManager(t, nil)

	if _, err := db.Exec(`INSERT INTO users (email, password_hash, role) VALUES ('a@example.com', 'h', 'admin')`); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO sessions (token, user_id, expires_at) VALUES ('tok', 1, datetime('now', '+1 day'))`); err != nil {
		t.Fatalf("insert session: %v", err)
	}

	archive, err := m.Create(context.Background())
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}
	f, err := os.Open(archive)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer f.Close()

	if err := m.Restore(context.Background(), f); err != nil {
		t.Fatalf("restore: %v", err)
	}

	restored, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open restored db: %v", err)
	}
	defer restored.Close()

	var sessions int
	if err := restored.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&sessions); err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	if sessions != 0 {
		t.Errorf("sessions after restore = %d, want 0", sessions)
	}

	var users int
	if err := restored.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&users); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if users != 1 {
		t.Errorf("users after restore = %d, want 1", users)
	}
}

func TestRestoreRejectsNonZip(t *testing.T) {
	m, db, dbPath, _ := newTestManager(t, nil)
	insertEnrollment(t, db, "Intacto")

	err := m.Restore(context.Background(), strings.NewReader("this is not a zip archive"))
	if !errors.Is(err, ErrNotZip) {
		t.Fatalf("error = %v, want ErrNotZip", err)
	}

	names := enrollmentNames(t, dbPath)
	if len(names) != 1 || names[0] != "Intacto" {
		t.Errorf("enrollments = %v, want live database untouched", names)
	}
	if m.Status().State != StateError {
		t.Errorf("state = %q, want %q", m.Status().State, StateError)
	}
}

func TestRestoreRejectsArchiveWithoutDatabase(t *testing.T) {
	m, db, dbPath, _ := newTestManager(t, nil)
	insertEnrollment(t, db, "Intacto")

	path := filepath.Join(t.TempDir(), "empty.zip")
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(out)
	entry, err := zw.Create("readme.txt")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err := entry.Write([]byte("nothing useful")); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	out.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer f.Close()

	if err := m.Restore(context.Background(), f); !errors.Is(err, ErrNoDatabaseEntry) {
		t.Fatalf("error = %v, want ErrNoDatabaseEntry", err)
	}

	names := enrollmentNames(t, dbPath)
	if len(names) != 1 || names[0] != "Intacto" {
		t.Errorf("enrollments = %v, want live database untouched", names)
	}
}

func TestListNewestFirst(t *testing.T) {
	m, _, _, backupsDir := newTestManager(t, nil)

	if err := os.MkdirAll(backupsDir, 0o755); err != nil {
		t.Fatalf("make backups dir: %v", err)
	}
	old := filepath.Join(backupsDir, "ciipa_20240101_000000.zip")
	recent := filepath.Join(backupsDir, "ciipa_20250101_000000.zip")
	stray := filepath.Join(backupsDir, "notes.txt")
	for _, p := range []string{old, recent, stray} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	past := time.Now().Add(-24 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatalf("age old artifact: %v", err)
	}

	artifacts, err := m.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(artifacts) != 2 {
		t.Fatalf("list = %d artifacts, want 2", len(artifacts))
	}
	if artifacts[0].Name != "ciipa_20250101_000000.zip" {
		t.Errorf("first artifact = %q, want newest", artifacts[0].Name)
	}
}

func TestListMissingDir(t *testing.T) {
	m, _, _, _ := newTestManager(t, nil)

	artifacts, err := m.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if artifacts != nil {
		t.Errorf("artifacts = %v, want nil for missing dir", artifacts)
	}
}

func TestOpenRejectsBadNames(t *testing.T) {
	m, _, _, _ := newTestManager(t, nil)

	for _, name := range []string{
		"../etc/passwd",
		"other_20240101_000000.zip",
		"ciipa_20240101_000000.db",
		"/ciipa_20240101_000000.zip",
	} {
		if _, _, err := m.Open(name); err == nil {
			t.Errorf("Open(%q) succeeded, want error", name)
		}
	}
}

func TestOpenReturnsArtifact(t *testing.T) {
	m, _, _, _ := newTestManager(t, nil)

	archive, err := m.Create(context.Background())
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}

	rc, size, err := m.Open(filepath.Base(archive))
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if int64(len(data)) != size {
		t.Errorf("read %d bytes, want %d", len(data), size)
	}
}

func TestOperationsSerialized(t *testing.T) {
	var mu sync.Mutex
	var states []State
	m, _, _, _ := newTestManager(t, func(s Status) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})

	const workers = 5
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Create(context.Background()); err != nil {
				t.Errorf("concurrent create: %v", err)
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(states) != workers*2 {
		t.Fatalf("callbacks = %d, want %d", len(states), workers*2)
	}
	// Transitions must alternate running/idle: two running states in a row
	// would mean one operation started inside another.
	for i, s := range states {
		want := StateRunning
		if i%2 == 1 {
			want = StateIdle
		}
		if s != want {
			t.Fatalf("state[%d] = %q, want %q", i, s, want)
		}
	}
}
