package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kalambet/jobtrail/internal/collection"
	"github.com/kalambet/jobtrail/internal/notify"
	"github.com/kalambet/jobtrail/internal/record"
	"github.com/kalambet/jobtrail/internal/session"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the local state of the client: the signed-in session, the last
// known job list and the notification log.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "jobtrail.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Sessions ---

// SaveSession stores s under name, replacing any earlier session.
func (s *Store) SaveSession(ctx context.Context, name string, sess session.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (name, token, role, issued_at, expires_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET token = excluded.token, role = excluded.role,
			issued_at = excluded.issued_at, expires_at = excluded.expires_at`,
		name, sess.Token, sess.Role,
		sess.IssuedAt.UTC().Format(time.RFC3339), sess.ExpiresAt.UTC().Format(time.RFC3339),
	)
	return err
}

// LoadSession returns the session stored under name. Expired sessions are
// returned as stored; callers check Valid.
func (s *Store) LoadSession(ctx context.Context, name string) (session.Session, error) {
	var sess session.Session
	var issuedAt, expiresAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT token, role, issued_at, expires_at FROM sessions WHERE name = ?`, name,
	).Scan(&sess.Token, &sess.Role, &issuedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, ErrNotFound
	}
	if err != nil {
		return session.Session{}, err
	}
	if sess.IssuedAt, err = time.Parse(time.RFC3339, issuedAt); err != nil {
		return session.Session{}, fmt.Errorf("parsing issued_at: %w", err)
	}
	if sess.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt); err != nil {
		return session.Session{}, fmt.Errorf("parsing expires_at: %w", err)
	}
	return sess, nil
}

// DeleteSession removes the session stored under name.
func (s *Store) DeleteSession(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Job snapshots ---

// SaveJobs replaces the stored job list with jobs, keeping their order.
func (s *Store) SaveJobs(ctx context.Context, jobs []record.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM job_snapshots`); err != nil {
		return fmt.Errorf("clearing snapshot: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for i, job := range jobs {
		body, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("encoding job %d: %w", i, err)
		}
		id := collection.IDString(job[collection.DefaultIDField])
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO job_snapshots (position, job_id, body, saved_at) VALUES (?, ?, ?, ?)`,
			i, id, string(body), now,
		); err != nil {
			return fmt.Errorf("storing job %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// LoadJobs returns the stored job list in its saved order. An empty
// snapshot yields an empty slice.
func (s *Store) LoadJobs(ctx context.Context) ([]record.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT job_id, body FROM job_snapshots ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []record.Record{}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		var r record.Record
		if err := json.Unmarshal([]byte(body), &r); err != nil {
			return nil, fmt.Errorf("decoding job %s: %w", id, err)
		}
		jobs = append(jobs, r)
	}
	return jobs, rows.Err()
}

// SnapshotInfo reports the size and age of the stored job list.
func (s *Store) SnapshotInfo(ctx context.Context) (SnapshotInfo, error) {
	var info SnapshotInfo
	var savedAt sql.NullString
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MAX(saved_at) FROM job_snapshots`,
	).Scan(&info.Count, &savedAt); err != nil {
		return SnapshotInfo{}, err
	}
	if savedAt.Valid {
		t, err := time.Parse(time.RFC3339, savedAt.String)
		if err != nil {
			return SnapshotInfo{}, fmt.Errorf("parsing saved_at: %w", err)
		}
		info.SavedAt = t
	}
	return info, nil
}

// --- Notifications ---

// noteTimeLayout is fixed width so created_at sorts as text in time order.
const noteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SaveNotification appends n to the notification log.
func (s *Store) SaveNotification(ctx context.Context, n notify.Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, kind, op, message, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		n.ID, string(n.Kind), n.Op, n.Message, n.At.UTC().Format(noteTimeLayout),
	)
	return err
}

// RecentNotifications returns up to limit notifications, newest first.
func (s *Store) RecentNotifications(ctx context.Context, limit int) ([]notify.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, op, message, created_at FROM notifications
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []notify.Notification
	for rows.Next() {
		var n notify.Notification
		var kind, createdAt string
		if err := rows.Scan(&n.ID, &kind, &n.Op, &n.Message, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		n.Kind = notify.Kind(kind)
		n.At = t
		results = append(results, n)
	}
	return results, rows.Err()
}

// PruneNotifications deletes all but the newest keep notifications.
func (s *Store) PruneNotifications(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM notifications WHERE id NOT IN (
			SELECT id FROM notifications ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, keep,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Notifier returns a notify.Notifier that appends to the notification log.
// Write failures are logged and otherwise dropped.
func (s *Store) Notifier(logger *slog.Logger) notify.Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return notify.Func(func(n notify.Notification) {
		if err := s.SaveNotification(context.Background(), n); err != nil {
			logger.Warn("storing notification failed", "id", n.ID, "error", err)
		}
	})
}
