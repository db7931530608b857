// Package memory implements the persistent memory engine for mnemo.
//
// It stores experiences, preferences and patterns in SQLite with FTS5
// full-text search and serves ranked recall over them. All calls are
// synchronous; WAL mode plus a busy timeout serialize concurrent
// writers.
package memory

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds memory store configuration.
type Config struct {
	DataDir          string
	MaxTextLength    int
	MaxSearchResults int
	MaxContextItems  int
	DedupeWindow     time.Duration
}

// DefaultConfig returns the default configuration for the memory store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:          filepath.Join(home, ".mnemo"),
		MaxTextLength:    2000,
		MaxSearchResults: 20,
		MaxContextItems:  20,
		DedupeWindow:     15 * time.Minute,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// checkpointEvery is the number of mutations between opportunistic WAL
// checkpoints.
const checkpointEvery = 64

// Store is the persistent memory engine backed by SQLite + FTS5.
type Store struct {
	db     *sql.DB
	cfg    Config
	hooks  storeHooks
	writes atomic.Int64
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

type queryer interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

type sqlRowScanner struct {
	rows *sql.Rows
}

func (r sqlRowScanner) Next() bool             { return r.rows.Next() }
func (r sqlRowScanner) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r sqlRowScanner) Err() error             { return r.rows.Err() }
func (r sqlRowScanner) Close() error           { return r.rows.Close() }

type storeHooks struct {
	exec    func(db execer, query string, args ...any) (sql.Result, error)
	query   func(db queryer, query string, args ...any) (*sql.Rows, error)
	queryIt func(db queryer, query string, args ...any) (rowScanner, error)
	beginTx func(db *sql.DB) (*sql.Tx, error)
	commit  func(tx *sql.Tx) error
}

func defaultStoreHooks() storeHooks {
	return storeHooks{
		exec: func(db execer, query string, args ...any) (sql.Result, error) {
			return db.Exec(query, args...)
		},
		query: func(db queryer, query string, args ...any) (*sql.Rows, error) {
			return db.Query(query, args...)
		},
		queryIt: func(db queryer, query string, args ...any) (rowScanner, error) {
			rows, err := db.Query(query, args...)
			if err != nil {
				return nil, err
			}
			return sqlRowScanner{rows: rows}, nil
		},
		beginTx: func(db *sql.DB) (*sql.Tx, error) {
			return db.Begin()
		},
		commit: func(tx *sql.Tx) error {
			return tx.Commit()
		},
	}
}

func (s *Store) execHook(db execer, query string, args ...any) (sql.Result, error) {
	if s.hooks.exec != nil {
		return s.hooks.exec(db, query, args...)
	}
	return db.Exec(query, args...)
}

func (s *Store) queryHook(db queryer, query string, args ...any) (*sql.Rows, error) {
	if s.hooks.query != nil {
		return s.hooks.query(db, query, args...)
	}
	return db.Query(query, args...)
}

func (s *Store) queryItHook(db queryer, query string, args ...any) (rowScanner, error) {
	if s.hooks.queryIt != nil {
		return s.hooks.queryIt(db, query, args...)
	}
	rows, err := s.queryHook(db, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRowScanner{rows: rows}, nil
}

func (s *Store) beginTxHook() (*sql.Tx, error) {
	if s.hooks.beginTx != nil {
		return s.hooks.beginTx(s.db)
	}
	return s.db.Begin()
}

func (s *Store) commitHook(tx *sql.Tx) error {
	if s.hooks.commit != nil {
		return s.hooks.commit(tx)
	}
	return tx.Commit()
}

// New creates a new Store with the given configuration.
// It creates the data directory if needed, opens SQLite with WAL mode,
// and runs migrations.
func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("memory: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "memory.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("memory: open database: %w", err)
	}

	// SQLite performance pragmas
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("memory: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg, hooks: defaultStoreHooks()}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("memory: migration: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS experiences (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			type            TEXT    NOT NULL DEFAULT 'experience',
			context         TEXT    NOT NULL,
			action          TEXT    NOT NULL,
			result          TEXT    NOT NULL,
			success         INTEGER NOT NULL DEFAULT 1,
			tags            TEXT    NOT NULL DEFAULT '',
			project         TEXT    NOT NULL DEFAULT '',
			topic_key       TEXT,
			normalized_hash TEXT    NOT NULL,
			duplicate_count INTEGER NOT NULL DEFAULT 1,
			revision_count  INTEGER NOT NULL DEFAULT 1,
			last_seen_at    TEXT,
			created_at      TEXT    NOT NULL DEFAULT (datetime('now')),
			updated_at      TEXT    NOT NULL DEFAULT (datetime('now')),
			deleted_at      TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_exp_type    ON experiences(type);
		CREATE INDEX IF NOT EXISTS idx_exp_project ON experiences(project);
		CREATE INDEX IF NOT EXISTS idx_exp_created ON experiences(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_exp_deleted ON experiences(deleted_at);
		CREATE INDEX IF NOT EXISTS idx_exp_topic   ON experiences(topic_key, project, updated_at DESC);
		CREATE INDEX IF NOT EXISTS idx_exp_dedupe  ON experiences(normalized_hash, project, created_at DESC);

		CREATE VIRTUAL TABLE IF NOT EXISTS experiences_fts USING fts5(
			context,
			action,
			result,
			tags,
			content='experiences',
			content_rowid='id'
		);

		CREATE TABLE IF NOT EXISTS preferences (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			key               TEXT    NOT NULL,
			value             TEXT    NOT NULL,
			scope             TEXT    NOT NULL DEFAULT 'global',
			confidence        REAL    NOT NULL DEFAULT 0.3,
			source            TEXT    NOT NULL DEFAULT '',
			confirmed_count   INTEGER NOT NULL DEFAULT 1,
			last_confirmed_at TEXT,
			created_at        TEXT    NOT NULL DEFAULT (datetime('now')),
			updated_at        TEXT    NOT NULL DEFAULT (datetime('now')),
			UNIQUE (key, scope)
		);

		CREATE INDEX IF NOT EXISTS idx_pref_scope ON preferences(scope, confidence DESC);

		CREATE TABLE IF NOT EXISTS patterns (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			description TEXT    NOT NULL UNIQUE,
			category    TEXT    NOT NULL DEFAULT '',
			frequency   INTEGER NOT NULL DEFAULT 1,
			examples    TEXT    NOT NULL DEFAULT '[]',
			first_seen  TEXT    NOT NULL DEFAULT (datetime('now')),
			last_seen   TEXT    NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_pattern_freq ON patterns(frequency DESC, last_seen DESC);
	`
	if _, err := s.execHook(s.db, schema); err != nil {
		return err
	}

	// Relations table — knowledge graph edges between experiences.
	// Uses CREATE TABLE/INDEX IF NOT EXISTS for non-destructive migration:
	// existing databases gain the table on upgrade without data loss.
	if _, err := s.execHook(s.db, `
		CREATE TABLE IF NOT EXISTS relations (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			from_id    INTEGER NOT NULL,
			to_id      INTEGER NOT NULL,
			type       TEXT    NOT NULL DEFAULT 'relates_to',
			note       TEXT,
			created_at TEXT    NOT NULL DEFAULT (datetime('now')),
			FOREIGN KEY (from_id) REFERENCES experiences(id) ON DELETE CASCADE,
			FOREIGN KEY (to_id)   REFERENCES experiences(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_rel_from   ON relations(from_id);
		CREATE INDEX IF NOT EXISTS idx_rel_to     ON relations(to_id);
		CREATE INDEX IF NOT EXISTS idx_rel_type   ON relations(type);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_rel_unique ON relations(from_id, to_id, type);
	`); err != nil {
		return err
	}

	// Normalize existing data
	_, _ = s.execHook(s.db, `UPDATE experiences SET topic_key = NULL WHERE topic_key = ''`)                                    // best-effort migration cleanup
	_, _ = s.execHook(s.db, `UPDATE experiences SET tags = '' WHERE tags IS NULL`)                                             // best-effort migration cleanup
	_, _ = s.execHook(s.db, `UPDATE experiences SET project = '' WHERE project IS NULL`)                                       // best-effort migration cleanup
	_, _ = s.execHook(s.db, `UPDATE experiences SET duplicate_count = 1 WHERE duplicate_count IS NULL OR duplicate_count < 1`) // best-effort migration cleanup
	_, _ = s.execHook(s.db, `UPDATE experiences SET revision_count = 1 WHERE revision_count IS NULL OR revision_count < 1`)    // best-effort migration cleanup
	_, _ = s.execHook(s.db, `UPDATE experiences SET updated_at = created_at WHERE updated_at IS NULL OR updated_at = ''`)      // best-effort migration cleanup
	_, _ = s.execHook(s.db, `UPDATE preferences SET confirmed_count = 1 WHERE confirmed_count IS NULL OR confirmed_count < 1`) // best-effort migration cleanup

	// Create FTS triggers (idempotent). The WHEN guards keep the index
	// mirroring exactly the active rows: a soft delete drops the entry,
	// a topic upsert replaces it.
	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='trigger' AND name='exp_fts_insert'",
	).Scan(&name)

	if err == sql.ErrNoRows {
		triggers := `
			CREATE TRIGGER exp_fts_insert AFTER INSERT ON experiences WHEN new.deleted_at IS NULL BEGIN
				INSERT INTO experiences_fts(rowid, context, action, result, tags)
				VALUES (new.id, new.context, new.action, new.result, new.tags);
			END;

			CREATE TRIGGER exp_fts_delete AFTER DELETE ON experiences WHEN old.deleted_at IS NULL BEGIN
				INSERT INTO experiences_fts(experiences_fts, rowid, context, action, result, tags)
				VALUES ('delete', old.id, old.context, old.action, old.result, old.tags);
			END;

			CREATE TRIGGER exp_fts_update_remove AFTER UPDATE ON experiences WHEN old.deleted_at IS NULL BEGIN
				INSERT INTO experiences_fts(experiences_fts, rowid, context, action, result, tags)
				VALUES ('delete', old.id, old.context, old.action, old.result, old.tags);
			END;

			CREATE TRIGGER exp_fts_update_add AFTER UPDATE ON experiences WHEN new.deleted_at IS NULL BEGIN
				INSERT INTO experiences_fts(rowid, context, action, result, tags)
				VALUES (new.id, new.context, new.action, new.result, new.tags);
			END;
		`
		if _, err := s.execHook(s.db, triggers); err != nil {
			return err
		}
	}

	return nil
}

// ─── Durability ──────────────────────────────────────────────────────────────

// Checkpoint folds the write-ahead log back into the main database file.
func (s *Store) Checkpoint() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("memory: checkpoint: %w", err)
	}
	return nil
}

// MaybeCheckpoint checkpoints once enough mutations have accumulated.
// Callers invoke it after write batches; most calls are no-ops.
func (s *Store) MaybeCheckpoint() error {
	if s.writes.Load() < checkpointEvery {
		return nil
	}
	s.writes.Store(0)
	return s.Checkpoint()
}

func (s *Store) noteWrite() {
	s.writes.Add(1)
}

// ─── Stats ───────────────────────────────────────────────────────────────────

// Stats holds aggregate memory statistics.
type Stats struct {
	ActiveExperiences  int            `json:"active_experiences"`
	Corrections        int            `json:"corrections"`
	SoftDeleted        int            `json:"soft_deleted"`
	GlobalPreferences  int            `json:"global_preferences"`
	ProjectPreferences int            `json:"project_preferences"`
	Patterns           int            `json:"patterns"`
	ByType             map[string]int `json:"by_type,omitempty"`
	Projects           []string       `json:"projects,omitempty"`
}

// GetStats returns aggregate memory statistics.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}

	_ = s.db.QueryRow("SELECT COUNT(*) FROM experiences WHERE deleted_at IS NULL").Scan(&stats.ActiveExperiences)
	_ = s.db.QueryRow("SELECT COUNT(*) FROM experiences WHERE deleted_at IS NULL AND type = ?", TypeCorrection).Scan(&stats.Corrections)
	_ = s.db.QueryRow("SELECT COUNT(*) FROM experiences WHERE deleted_at IS NOT NULL").Scan(&stats.SoftDeleted)
	_ = s.db.QueryRow("SELECT COUNT(*) FROM preferences WHERE scope = ?", ScopeGlobal).Scan(&stats.GlobalPreferences)
	_ = s.db.QueryRow("SELECT COUNT(*) FROM preferences WHERE scope != ?", ScopeGlobal).Scan(&stats.ProjectPreferences)
	_ = s.db.QueryRow("SELECT COUNT(*) FROM patterns").Scan(&stats.Patterns)

	typeRows, err := s.queryItHook(s.db,
		"SELECT type, COUNT(*) FROM experiences WHERE deleted_at IS NULL GROUP BY type")
	if err == nil {
		stats.ByType = map[string]int{}
		for typeRows.Next() {
			var t string
			var n int
			if err := typeRows.Scan(&t, &n); err == nil {
				stats.ByType[t] = n
			}
		}
		_ = typeRows.Close()
	}

	rows, err := s.queryItHook(s.db,
		"SELECT project FROM experiences WHERE project != '' AND deleted_at IS NULL GROUP BY project ORDER BY MAX(created_at) DESC")
	if err != nil {
		return stats, nil
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err == nil {
			stats.Projects = append(stats.Projects, p)
		}
	}

	return stats, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// experienceColumns is the canonical select list; queryExperiences and
// every hand-rolled scan follow this order.
const experienceColumns = `id, type, context, action, result, success, tags, project,
		       topic_key, duplicate_count, revision_count, last_seen_at, created_at, updated_at, deleted_at`

func (s *Store) queryExperiences(query string, args ...any) ([]Experience, error) {
	rows, err := s.queryItHook(s.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []Experience
	for rows.Next() {
		var e Experience
		if err := rows.Scan(
			&e.ID, &e.Type, &e.Context, &e.Action, &e.Result,
			&e.Success, &e.Tags, &e.Project, &e.TopicKey, &e.DuplicateCount, &e.RevisionCount,
			&e.LastSeenAt, &e.CreatedAt, &e.UpdatedAt, &e.DeletedAt,
		); err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// Truncate shortens a string to max length with ellipsis.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// normalizeText lowercases s, collapses whitespace runs and trims the ends.
func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Fingerprint returns the dedup hash of an experience: context, action
// and result joined with '|', normalized as one string, SHA-256 hex.
func Fingerprint(context, action, result string) string {
	normalized := normalizeText(context + "|" + action + "|" + result)
	h := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(h[:])
}

// joinTags produces the stored comma-joined tag form, dropping empties.
func joinTags(tags []string) string {
	var kept []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, ",")
}

// SplitTags parses the stored comma-joined tag column.
func SplitTags(s string) []string {
	if s == "" {
		return nil
	}
	var tags []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

func normalizeTopicKey(topic string) string {
	v := strings.TrimSpace(strings.ToLower(topic))
	if v == "" {
		return ""
	}
	v = strings.Join(strings.Fields(v), "-")
	if len(v) > 120 {
		v = v[:120]
	}
	return v
}

func dedupeWindowExpression(window time.Duration) string {
	if window <= 0 {
		window = 15 * time.Minute
	}
	minutes := int(window.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return "-" + strconv.Itoa(minutes) + " minutes"
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// sanitizeFTS wraps each word in quotes for safe FTS5 queries.
// "fix auth bug" → `"fix" "auth" "bug"`
func sanitizeFTS(query string) string {
	words := strings.Fields(query)
	for i, w := range words {
		w = strings.Trim(w, `"`)
		words[i] = `"` + w + `"`
	}
	return strings.Join(words, " ")
}

// isUniqueViolation checks if an error is a SQLite UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// sqliteTimeLayout is the format datetime('now') produces.
const sqliteTimeLayout = "2006-01-02 15:04:05"

func parseSQLiteTime(s string) (time.Time, error) {
	return time.ParseInLocation(sqliteTimeLayout, s, time.UTC)
}

// daysSince returns fractional days between ts and now, or -1 when ts
// cannot be parsed.
func daysSince(ts string, now time.Time) float64 {
	t, err := parseSQLiteTime(ts)
	if err != nil {
		return -1
	}
	return now.Sub(t).Hours() / 24
}

// Now returns the current time formatted for SQLite.
func Now() string {
	return time.Now().UTC().Format(sqliteTimeLayout)
}
