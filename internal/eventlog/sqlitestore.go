package eventlog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Mavwarf/wakeup/internal/paths"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) a SQLite database at path, creates
// the firings table, and performs one-time migration from wakeup.log if
// it exists in the same directory.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), paths.DirPerm); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite pragma: %w", err)
		}
	}

	ddl := `
CREATE TABLE IF NOT EXISTS firings (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp   TEXT    NOT NULL,
    alarm_id    TEXT    NOT NULL DEFAULT '',
    label       TEXT    NOT NULL DEFAULT '',
    message     TEXT    NOT NULL DEFAULT '',
    source      TEXT    NOT NULL DEFAULT '',
    repeat_rule TEXT    NOT NULL DEFAULT '',
    kind        INTEGER NOT NULL,
    disarmed    INTEGER NOT NULL DEFAULT 0,
    extra       TEXT    NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_firings_timestamp ON firings(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_firings_alarm     ON firings(alarm_id);
`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}

	logPath := filepath.Join(filepath.Dir(path), paths.LogFileName)
	if _, err := os.Stat(logPath); err == nil {
		if err := s.migrateFromFile(logPath); err != nil {
			fmt.Fprintf(os.Stderr, "eventlog: migration: %v\n", err)
		}
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Log(r Record) error {
	if r.Time.IsZero() {
		r.Time = time.Now()
	}
	kind := KindFired
	if r.Silenced {
		kind = KindSilenced
	}
	_, err := s.db.Exec(
		`INSERT INTO firings (timestamp, alarm_id, label, message, source, repeat_rule, kind, disarmed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Time.Format(time.RFC3339), r.AlarmID, r.Label, r.Message, r.Source, r.Repeat,
		int(kind), boolInt(r.Disarmed),
	)
	return err
}

func (s *SQLiteStore) LogSilentEnable(d time.Duration) error {
	return s.logOther(fmt.Sprintf("enabled (%s)", d))
}

func (s *SQLiteStore) LogSilentDisable() error {
	return s.logOther("disabled")
}

func (s *SQLiteStore) logOther(extra string) error {
	_, err := s.db.Exec(
		`INSERT INTO firings (timestamp, kind, extra) VALUES (?, ?, ?)`,
		time.Now().Format(time.RFC3339), int(KindOther), extra,
	)
	return err
}

func (s *SQLiteStore) Entries(days int) ([]Entry, error) {
	query := `SELECT timestamp, alarm_id, label, source, kind, disarmed
		FROM firings WHERE alarm_id != ''`
	var args []any
	if days > 0 {
		query += ` AND timestamp >= ?`
		args = append(args, DayCutoff(days).Format(time.RFC3339))
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var tsStr string
		var e Entry
		var kind, disarmed int
		if err := rows.Scan(&tsStr, &e.AlarmID, &e.Label, &e.Source, &kind, &disarmed); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339, tsStr)
		if err != nil {
			continue
		}
		e.Time = ts
		e.Kind = EntryKind(kind)
		e.Disarmed = disarmed != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ReadContent renders the table in the flat log file format.
func (s *SQLiteStore) ReadContent() (string, error) {
	rows, err := s.db.Query(
		`SELECT timestamp, alarm_id, label, message, source, repeat_rule, kind, disarmed, extra
		 FROM firings ORDER BY id`)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var b strings.Builder
	for rows.Next() {
		var ts, extra string
		var r Record
		var kind, disarmed int
		if err := rows.Scan(&ts, &r.AlarmID, &r.Label, &r.Message, &r.Source, &r.Repeat,
			&kind, &disarmed, &extra); err != nil {
			return "", err
		}
		switch EntryKind(kind) {
		case KindFired, KindSilenced:
			r.Silenced = EntryKind(kind) == KindSilenced
			r.Disarmed = disarmed != 0
			b.WriteString(summaryLine(ts, r))
			b.WriteByte('\n')
			if r.Message != "" {
				b.WriteString(detailLine(ts, r.Message))
				b.WriteByte('\n')
			}
		default:
			fmt.Fprintf(&b, "%s  silent=%s\n", ts, extra)
		}
		b.WriteByte('\n')
	}
	return b.String(), rows.Err()
}

func (s *SQLiteStore) Clean(days int) (int, error) {
	cutoff := DayCutoff(days).Format(time.RFC3339)
	return s.exec(`DELETE FROM firings WHERE timestamp < ?`, cutoff)
}

func (s *SQLiteStore) RemoveAlarm(id string) (int, error) {
	return s.exec(`DELETE FROM firings WHERE alarm_id = ?`, id)
}

func (s *SQLiteStore) exec(query string, args ...any) (int, error) {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) Clear() error {
	_, err := s.db.Exec(`DELETE FROM firings`)
	return err
}

func (s *SQLiteStore) Path() string {
	return s.path
}

// migrateFromFile imports an existing wakeup.log into the database. On
// success the log is renamed to wakeup.log.migrated.
func (s *SQLiteStore) migrateFromFile(logPath string) error {
	data, err := os.ReadFile(logPath)
	if err != nil {
		return err
	}
	blocks := SplitBlocks(string(data))
	if len(blocks) == 0 {
		return os.Rename(logPath, logPath+".migrated")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	migrated := 0
	for _, block := range blocks {
		lines := strings.Split(block, "\n")
		first := lines[0]
		ts, ok := ExtractTimestamp(first)
		if !ok {
			continue
		}
		tsStr := ts.Format(time.RFC3339)

		if id := extractField(first, "alarm"); id != "" {
			kind := KindFired
			if extractField(first, "fired") == "silent" {
				kind = KindSilenced
			}
			var message string
			for _, l := range lines[1:] {
				if isDetailLine(l) {
					message = extractQuotedField(l, "message")
				}
			}
			_, err = tx.Exec(
				`INSERT INTO firings (timestamp, alarm_id, label, message, source, repeat_rule, kind, disarmed)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				tsStr, id, extractQuotedField(first, "label"), message,
				extractField(first, "source"), extractField(first, "repeat"),
				int(kind), boolInt(extractField(first, "disarmed") == "true"),
			)
		} else if idx := strings.Index(first, "  silent="); idx >= 0 {
			_, err = tx.Exec(
				`INSERT INTO firings (timestamp, kind, extra) VALUES (?, ?, ?)`,
				tsStr, int(KindOther), first[idx+len("  silent="):],
			)
		} else {
			continue
		}
		if err != nil {
			return fmt.Errorf("migrate entry: %w", err)
		}
		migrated++
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "eventlog: migrated %d entries from %s\n", migrated, paths.LogFileName)
	return os.Rename(logPath, logPath+".migrated")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
