// Package backup creates point-in-time zip snapshots of the SQLite database
// file and restores the live file from an uploaded snapshot.
package backup

import (
	"archive/zip"
	"compress/flate"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	artifactPrefix = "ciipa_"
	dbSuffix       = ".db"
	timeLabel      = "20060102_150405"
)

// Typed failures surfaced to programmatic callers.
var (
	ErrNotZip          = errors.New("upload is not a readable zip archive")
	ErrNoDatabaseEntry = errors.New("archive contains no database file")
)

// Config holds backup manager configuration.
type Config struct {
	// DBPath is the live database file.
	DBPath string
	// Dir is where artifacts and retired PREV_ files are kept.
	Dir string
}

// State represents the backup manager state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateError   State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// StatusCallback is called whenever the backup state changes.
type StatusCallback func(Status)

// Artifact describes one snapshot archive in the backups directory.
type Artifact struct {
	Name      string    `json:"name"`
	Path      string    `json:"-"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager owns the live database path for snapshot and restore purposes.
// One mutex serializes Create and Restore: interleaving a snapshot's read
// with a restore's swap would produce corrupt artifacts.
type Manager struct {
	mu sync.Mutex

	statusMu sync.RWMutex
	status   Status

	cfg      Config
	db       *sql.DB
	callback StatusCallback
	logger   *slog.Logger
}

// NewManager creates a backup manager bound to the live database.
func NewManager(cfg Config, db *sql.DB, callback StatusCallback, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		db:       db,
		callback: callback,
		logger:   logger,
		status:   Status{State: StateIdle},
	}
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.statusMu.Lock()
	m.status = s
	m.statusMu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

func (m *Manager) fail(step string, err error) error {
	err = fmt.Errorf("%s: %w", step, err)
	m.setStatus(Status{State: StateError, Error: err.Error()})
	return err
}

// Create snapshots the live database into a zip archive in the backups
// directory and returns the archive path. The live file is only read.
func (m *Manager) Create(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setStatus(Status{State: StateRunning, InProgress: true})

	if err := os.MkdirAll(m.cfg.Dir, 0o755); err != nil {
		return "", m.fail("create backups dir", err)
	}

	// Fold WAL pages into the main file so the copy is self-contained.
	if _, err := m.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return "", m.fail("wal checkpoint", err)
	}

	label := time.Now().UTC().Format(timeLabel)
	loose := filepath.Join(m.cfg.Dir, artifactPrefix+label+dbSuffix)
	archive := filepath.Join(m.cfg.Dir, artifactPrefix+label+".zip")

	if err := copyFile(m.cfg.DBPath, loose); err != nil {
		return "", m.fail("copy database", err)
	}
	defer os.Remove(loose)

	if err := zipSingleFile(loose, archive); err != nil {
		os.Remove(archive)
		return "", m.fail("write archive", err)
	}

	now := time.Now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &now})
	m.logger.Info("backup created", "archive", archive)

	return archive, nil
}

// Restore replaces the live database file with the snapshot contained in the
// uploaded zip. The swap is atomic: the new file is staged beside the live
// path and renamed over it, so a failure at any step leaves the previous
// database in place. On success every session row in the restored database
// is removed, forcing all users to re-authenticate.
func (m *Manager) Restore(ctx context.Context, upload io.Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setStatus(Status{State: StateRunning, InProgress: true})

	scratch, err := os.MkdirTemp("", "ciipa-restore-")
	if err != nil {
		return m.fail("create scratch dir", err)
	}
	defer os.RemoveAll(scratch)

	uploadPath := filepath.Join(scratch, "upload.zip")
	out, err := os.Create(uploadPath)
	if err != nil {
		return m.fail("persist upload", err)
	}
	if _, err := io.Copy(out, upload); err != nil {
		out.Close()
		return m.fail("persist upload", err)
	}
	out.Close()

	extracted, err := extractDatabase(uploadPath, scratch)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return err
	}

	if err := checkIntegrity(extracted); err != nil {
		return m.fail("integrity check", err)
	}

	if err := os.MkdirAll(m.cfg.Dir, 0o755); err != nil {
		return m.fail("create backups dir", err)
	}

	// Stage the snapshot in the live file's directory so the final rename
	// stays on one filesystem.
	stage := filepath.Join(filepath.Dir(m.cfg.DBPath), ".ciipa-restore"+dbSuffix)
	if err := copyFile(extracted, stage); err != nil {
		return m.fail("stage snapshot", err)
	}
	defer os.Remove(stage)

	// Preserve the previous database before the swap. Copy rather than
	// move: the live path must never be empty.
	label := time.Now().UTC().Format(timeLabel)
	prev := filepath.Join(m.cfg.Dir, artifactPrefix+"PREV_"+label+dbSuffix)
	if err := copyFile(m.cfg.DBPath, prev); err != nil {
		return m.fail("preserve previous database", err)
	}

	if err := os.Rename(stage, m.cfg.DBPath); err != nil {
		os.Remove(prev)
		return m.fail("swap database", err)
	}

	// Stale WAL/SHM files belong to the replaced database.
	os.Remove(m.cfg.DBPath + "-wal")
	os.Remove(m.cfg.DBPath + "-shm")

	if err := invalidateSessions(m.cfg.DBPath); err != nil {
		m.logger.Error("invalidate sessions after restore", "error", err)
	}

	now := time.Now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &now})
	m.logger.Info("restore complete", "previous", prev)

	return nil
}

// List returns the snapshot archives in the backups directory, newest first.
func (m *Manager) List() ([]Artifact, error) {
	entries, err := os.ReadDir(m.cfg.Dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}

	var artifacts []Artifact
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), artifactPrefix) || !strings.HasSuffix(e.Name(), ".zip") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, Artifact{
			Name:      e.Name(),
			Path:      filepath.Join(m.cfg.Dir, e.Name()),
			SizeBytes: info.Size(),
			CreatedAt: info.ModTime().UTC(),
		})
	}
	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].CreatedAt.After(artifacts[j].CreatedAt)
	})
	return artifacts, nil
}

// Open returns a reader for a named artifact. The name must match a listed
// artifact; paths are never taken from the caller.
func (m *Manager) Open(name string) (io.ReadCloser, int64, error) {
	if name != filepath.Base(name) || !strings.HasPrefix(name, artifactPrefix) || !strings.HasSuffix(name, ".zip") {
		return nil, 0, fmt.Errorf("invalid artifact name %q", name)
	}
	path := filepath.Join(m.cfg.Dir, name)
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open artifact: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat artifact: %w", err)
	}
	return f, info.Size(), nil
}

// extractDatabase opens the uploaded archive and extracts the first entry
// whose name ends in the database suffix into dir.
func extractDatabase(archivePath, dir string) (string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotZip, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, dbSuffix) {
			continue
		}
		src, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open archive entry %s: %w", f.Name, err)
		}
		defer src.Close()

		dst := filepath.Join(dir, "restored"+dbSuffix)
		out, err := os.Create(dst)
		if err != nil {
			return "", fmt.Errorf("create extracted file: %w", err)
		}
		if _, err := io.Copy(out, src); err != nil {
			out.Close()
			return "", fmt.Errorf("extract %s: %w", f.Name, err)
		}
		if err := out.Close(); err != nil {
			return "", fmt.Errorf("extract %s: %w", f.Name, err)
		}
		return dst, nil
	}

	return "", ErrNoDatabaseEntry
}

// checkIntegrity opens the extracted file as SQLite and runs an integrity
// check before it is allowed anywhere near the live path.
func checkIntegrity(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// invalidateSessions deletes all session rows in the restored database via a
// fresh connection. The identity data may have changed underneath every
// current session.
func invalidateSessions(dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec("DELETE FROM sessions"); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}

// zipSingleFile packages src alone into a zip archive at dst with maximum
// deflate compression.
func zipSingleFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	entry, err := zw.Create(filepath.Base(src))
	if err != nil {
		zw.Close()
		return err
	}
	if _, err := io.Copy(entry, in); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return out.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
