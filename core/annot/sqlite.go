package annot

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// SchemaVersion is the current annotation database schema.
const SchemaVersion = "2"

// SQLite is a SQLite-backed annotation store. Attribute values are kept as
// CBOR next to their kind so they read back with their Go type intact. Rows
// carry the layout they came from; reads and writes see only the layout
// named by the last Begin.
type SQLite struct {
	mu     sync.Mutex
	db     *sql.DB
	layout string
}

// NewSQLite opens or creates the store at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS docs (
			layout TEXT NOT NULL,
			item INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			line TEXT NOT NULL,
			PRIMARY KEY (layout, item, seq)
		);
		CREATE TABLE IF NOT EXISTS attrs (
			layout TEXT NOT NULL,
			item INTEGER NOT NULL,
			name TEXT NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			value BLOB NOT NULL,
			PRIMARY KEY (layout, item, name)
		);
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLite{db: db}
	version, err := s.getMetadataUnlocked("schema_version")
	if err != nil {
		db.Close()
		return nil, err
	}
	switch version {
	case "":
		if err := s.setMetadataUnlocked("schema_version", SchemaVersion); err != nil {
			db.Close()
			return nil, err
		}
	case SchemaVersion:
	default:
		db.Close()
		return nil, fmt.Errorf("unsupported schema version: %s (expected %s)", version, SchemaVersion)
	}
	return s, nil
}

// Begin scopes the store to layout and deletes the rows an earlier parse of
// it left behind.
func (s *SQLite) Begin(layout string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for _, table := range []string{"docs", "attrs"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE layout = ?", layout); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.layout = layout
	return nil
}

// AddDoc appends doc lines to an item.
func (s *SQLite) AddDoc(item int, lines []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	var next int
	if err := tx.QueryRow("SELECT COALESCE(MAX(seq) + 1, 0) FROM docs WHERE layout = ? AND item = ?", s.layout, item).Scan(&next); err != nil {
		tx.Rollback()
		return err
	}
	for i, line := range lines {
		if _, err := tx.Exec("INSERT INTO docs (layout, item, seq, line) VALUES (?, ?, ?, ?)", s.layout, item, next+i, line); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// AddAttrs records attributes on an item, replacing same-named values.
func (s *SQLite) AddAttrs(item int, attrs []Attribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	var next int
	if err := tx.QueryRow("SELECT COALESCE(MAX(seq) + 1, 0) FROM attrs WHERE layout = ? AND item = ?", s.layout, item).Scan(&next); err != nil {
		tx.Rollback()
		return err
	}
	for _, a := range attrs {
		kind, err := KindOf(a.Value)
		if err != nil {
			tx.Rollback()
			return err
		}
		blob, err := cbor.Marshal(a.Value)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("encode attribute %s: %w", a.Name, err)
		}
		_, err = tx.Exec(`
			INSERT INTO attrs (layout, item, name, seq, kind, value) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(layout, item, name) DO UPDATE SET kind = excluded.kind, value = excluded.value
		`, s.layout, item, a.Name, next, string(kind), blob)
		if err != nil {
			tx.Rollback()
			return err
		}
		next++
	}
	return tx.Commit()
}

// Docs returns the doc lines of an item.
func (s *SQLite) Docs(item int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT line FROM docs WHERE layout = ? AND item = ? ORDER BY seq", s.layout, item)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// Attrs returns the attributes of an item.
func (s *SQLite) Attrs(item int) ([]Attribute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT name, kind, value FROM attrs WHERE layout = ? AND item = ? ORDER BY seq", s.layout, item)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attrs []Attribute
	for rows.Next() {
		var name, kind string
		var blob []byte
		if err := rows.Scan(&name, &kind, &blob); err != nil {
			return nil, err
		}
		v, err := decodeValue(ValueKind(kind), blob)
		if err != nil {
			return nil, fmt.Errorf("decode attribute %s: %w", name, err)
		}
		attrs = append(attrs, Attribute{Name: name, Value: v})
	}
	return attrs, rows.Err()
}

// Items returns every annotated item id.
func (s *SQLite) Items() ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT item FROM docs WHERE layout = ?1
		UNION SELECT item FROM attrs WHERE layout = ?1
		ORDER BY item
	`, s.layout)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func decodeValue(kind ValueKind, blob []byte) (interface{}, error) {
	var err error
	switch kind {
	case KindInt:
		var v int64
		err = cbor.Unmarshal(blob, &v)
		return v, err
	case KindFloat:
		var v float64
		err = cbor.Unmarshal(blob, &v)
		return v, err
	case KindString:
		var v string
		err = cbor.Unmarshal(blob, &v)
		return v, err
	case KindBool:
		var v bool
		err = cbor.Unmarshal(blob, &v)
		return v, err
	case KindIntArray:
		var v []int64
		err = cbor.Unmarshal(blob, &v)
		return v, err
	case KindFloatArray:
		var v []float64
		err = cbor.Unmarshal(blob, &v)
		return v, err
	case KindStringArray:
		var v []string
		err = cbor.Unmarshal(blob, &v)
		return v, err
	default:
		return nil, fmt.Errorf("unknown attribute kind %q", kind)
	}
}

// getMetadataUnlocked retrieves metadata without locking (caller must hold lock).
func (s *SQLite) getMetadataUnlocked(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// setMetadataUnlocked stores metadata without locking (caller must hold lock).
func (s *SQLite) setMetadataUnlocked(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
