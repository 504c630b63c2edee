package recordstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/sarchlab/doccode/codes"
)

const tableName = "codes"

// SQLiteStore keeps the records in a SQLite table. Only records that have not
// been written yet are inserted on each save.
type SQLiteStore struct {
	*sql.DB

	path         string
	saved        int
	tableCreated bool
}

// NewSQLiteStore prepares a store for the database at path. Nothing is read
// or created on disk until the first Load or Save.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	return &SQLiteStore{DB: db, path: path}, nil
}

// Location returns the database file path.
func (s *SQLiteStore) Location() string {
	return s.path
}

// Load reads all records in insertion order. A missing database file or a
// database without the codes table holds no records.
func (s *SQLiteStore) Load() ([]codes.Record, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		s.saved = 0
		return nil, nil
	}

	found, err := s.checkColumns()
	if err != nil {
		return nil, &codes.LoadError{Location: s.path, Err: malformed(err)}
	}

	if !found {
		s.saved = 0
		return nil, nil
	}

	s.tableCreated = true

	rows, err := s.Query(
		"SELECT " + strings.Join(Header, ", ") +
			" FROM " + tableName + " ORDER BY rowid")
	if err != nil {
		return nil, &codes.LoadError{Location: s.path, Err: malformed(err)}
	}
	defer rows.Close()

	var records []codes.Record
	for rows.Next() {
		var r codes.Record

		err := rows.Scan(&r.Division, &r.Area, &r.Doc, &r.ID, &r.Code)
		if err != nil {
			return nil, &codes.LoadError{
				Location: s.path,
				Line:     len(records) + 1,
				Err:      err,
			}
		}

		r.Seq, err = codes.ParseSequence(r.ID)
		if err != nil {
			return nil, &codes.LoadError{
				Location: s.path,
				Line:     len(records) + 1,
				Err:      err,
			}
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, &codes.LoadError{Location: s.path, Err: malformed(err)}
	}

	s.saved = len(records)

	return records, nil
}

// Save inserts the records that are not in the table yet. All inserts of one
// call happen in a single transaction.
func (s *SQLiteStore) Save(records []codes.Record) error {
	if len(records) < s.saved {
		return fmt.Errorf("%d records given, but %d are already saved",
			len(records), s.saved)
	}

	if err := s.createTable(); err != nil {
		return err
	}

	tx, err := s.Begin()
	if err != nil {
		return err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(Header)), ", ")
	stmt, err := tx.Prepare(
		"INSERT INTO " + tableName + " (" + strings.Join(Header, ", ") +
			") VALUES (" + placeholders + ")")
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range records[s.saved:] {
		_, err := stmt.Exec(r.Division, r.Area, r.Doc, r.ID, r.Code)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.saved = len(records)

	return nil
}

func (s *SQLiteStore) createTable() error {
	if s.tableCreated {
		return nil
	}

	createTableSQL := `CREATE TABLE IF NOT EXISTS ` + tableName + ` (
	` + strings.Join(Header, " TEXT NOT NULL,\n\t") + ` TEXT NOT NULL
);`

	if _, err := s.Exec(createTableSQL); err != nil {
		return fmt.Errorf("create table in %s: %w", s.path, err)
	}

	s.tableCreated = true

	return nil
}

// checkColumns reports whether the codes table exists and fails if its
// columns differ from the record layout.
func (s *SQLiteStore) checkColumns() (bool, error) {
	rows, err := s.Query("PRAGMA table_info(" + tableName + ")")
	if err != nil {
		return false, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)

		err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk)
		if err != nil {
			return false, err
		}

		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return false, err
	}

	if len(names) == 0 {
		return false, nil
	}

	if strings.Join(names, ",") != strings.Join(Header, ",") {
		return false, fmt.Errorf("%w: table %s has columns %s",
			codes.ErrMalformed, tableName, strings.Join(names, ","))
	}

	return true, nil
}

// malformed marks errors that mean the file is not a usable database.
func malformed(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}

	switch sqliteErr.Code {
	case sqlite3.ErrNotADB, sqlite3.ErrCorrupt:
		return fmt.Errorf("%w: %v", codes.ErrMalformed, err)
	default:
		return err
	}
}
