package sqlite

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/dukaforge/histsync/internal/history"
)

// Store is a history store backed by one SQLite database file. It assumes at
// most one writer process per file; contention from another process on the
// same machine is absorbed by the busy timeout plus RetryOnLocked.
//
// Construct one Store per process and pass it to the components that need it.
// The caller must Close it when done.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and ensures the
// schema. Schema setup is idempotent and runs on every open.
func Open(path string, opts Options) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := localPragmas
	if opts.NetworkSafe {
		pragmas = networkPragmas
		// A rollback-journal database on a share tolerates exactly one
		// connection from this process; the journal has no WAL-style
		// reader/writer separation.
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, path: path}
	if !opts.ReadOnly {
		if err := s.ensureSchema(); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// ensureSchema creates the table and indexes if they do not exist.
func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(createHistoryRows); err != nil {
		return fmt.Errorf("creating history_rows: %w", err)
	}
	for _, ddl := range indexDDL {
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	return nil
}

var columnList = strings.Join(history.FieldNames, ", ")

// AppendRows inserts rows in a single transaction, silently skipping rows
// whose merge key already exists. On any failure the whole batch is rolled
// back and the error surfaced; locked/busy failures are retried.
//
// The return value is the number of rows submitted, not the number newly
// inserted: callers use it for progress reporting only, and the unique index
// remains the source of truth for deduplication. (Engine-reported affected
// row counts would give true insert counts, but every existing caller wants
// the submitted figure, so the looser meaning is kept and documented.)
func (s *Store) AppendRows(rows []history.Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(history.FieldNames)), ",")
	query := fmt.Sprintf("INSERT OR IGNORE INTO history_rows (%s) VALUES (%s)", columnList, placeholders)

	err := RetryOnLocked(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(query)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for _, row := range rows {
			args := make([]any, len(history.FieldNames))
			for i, v := range row.Values() {
				args[i] = v
			}
			if _, err := stmt.Exec(args...); err != nil {
				return fmt.Errorf("inserting row: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing batch: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// CountRows returns the total number of stored rows.
func (s *Store) CountRows() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM history_rows").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting rows: %w", err)
	}
	return count, nil
}

// AllRows returns every stored row in insertion order. Used by the full
// snapshot export and the legacy migration.
func (s *Store) AllRows() ([]history.Row, error) {
	query := fmt.Sprintf("SELECT %s FROM history_rows ORDER BY row_id ASC", columnList)
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("querying all rows: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// ReadTail returns the total row count and up to limit rows in display
// order. A non-positive limit defaults to 500.
func (s *Store) ReadTail(limit int) (int, []history.Row, error) {
	if limit <= 0 {
		limit = 500
	}

	// MAX(row_id) is O(1) via the primary key; rows are never deleted, so
	// it equals COUNT(*) without the full scan.
	var total int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(row_id), 0) FROM history_rows").Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("counting rows: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM history_rows %s LIMIT ?", columnList, viewOrderBy)
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return 0, nil, fmt.Errorf("querying tail: %w", err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	return total, out, err
}

// FilteredTail returns the number of rows whose listed fields contain q
// (case-insensitive), and up to limit of them in display order. Unknown
// field names are ignored; an empty query or field set matches nothing.
func (s *Store) FilteredTail(q string, fields []string, limit int) (int, []history.Row, error) {
	q = strings.TrimSpace(q)
	cols := knownFields(fields)
	if q == "" || len(cols) == 0 {
		return 0, nil, nil
	}
	if limit <= 0 {
		limit = 500
	}

	where, args := likeClause(q, cols)

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM history_rows WHERE "+where, args...).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("counting matches: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM history_rows WHERE %s %s LIMIT ?", columnList, where, viewOrderBy)
	rows, err := s.db.Query(query, append(args, limit)...)
	if err != nil {
		return 0, nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	return total, out, err
}

// LastSaved holds the metadata of the most recent submission, for quick
// status display.
type LastSaved struct {
	User  string
	Date  string
	Shift string
}

// ReadLastSaved returns the most recently saved user/date/shift, or nil if
// the store is empty.
func (s *Store) ReadLastSaved() (*LastSaved, error) {
	query := `SELECT COALESCE(user, ''), COALESCE(date_field, ''), COALESCE(shift, '')
        FROM history_rows
        ORDER BY COALESCE(saved_at, '') DESC, COALESCE(save_id, '') DESC
        LIMIT 1`

	var last LastSaved
	err := s.db.QueryRow(query).Scan(&last.User, &last.Date, &last.Shift)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading last saved: %w", err)
	}
	return &last, nil
}

// UnsyncedRows returns the rows not yet exported to the shared folder,
// with their row IDs, in insertion order.
func (s *Store) UnsyncedRows() ([]int64, []history.Row, error) {
	query := fmt.Sprintf(
		"SELECT row_id, %s FROM history_rows WHERE synced_at IS NULL OR synced_at = '' ORDER BY row_id ASC",
		columnList,
	)
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, nil, fmt.Errorf("querying unsynced rows: %w", err)
	}
	defer rows.Close()

	var ids []int64
	var out []history.Row
	for rows.Next() {
		var id int64
		row, err := scanRowWithID(rows, &id)
		if err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating unsynced rows: %w", err)
	}
	return ids, out, nil
}

// MarkSynced stamps the given rows with the export time and the content hash
// of the snapshot file they were written into.
func (s *Store) MarkSynced(rowIDs []int64, syncedAt, hash string) error {
	if len(rowIDs) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(rowIDs)), ",")
	query := fmt.Sprintf(
		"UPDATE history_rows SET synced_at = ?, sync_hash = ? WHERE row_id IN (%s)", placeholders,
	)
	args := make([]any, 0, len(rowIDs)+2)
	args = append(args, syncedAt, hash)
	for _, id := range rowIDs {
		args = append(args, id)
	}

	return RetryOnLocked(func() error {
		if _, err := s.db.Exec(query, args...); err != nil {
			return fmt.Errorf("marking rows synced: %w", err)
		}
		return nil
	})
}

// ExportCSV streams rows matching q (all rows when q is empty) to w as CSV
// with the given columns, in display order. Returns the number of data rows
// written.
func (s *Store) ExportCSV(w io.Writer, fields []string, q string) (int, error) {
	cols := knownFields(fields)
	if len(cols) == 0 {
		cols = history.FieldNames
	}

	query := fmt.Sprintf("SELECT %s FROM history_rows", columnList)
	var args []any
	if q = strings.TrimSpace(q); q != "" {
		where, whereArgs := likeClause(q, cols)
		query += " WHERE " + where
		args = whereArgs
	}
	query += " " + viewOrderBy

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return 0, fmt.Errorf("querying for export: %w", err)
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}

	exported := 0
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return exported, err
		}
		record := make([]string, len(cols))
		for i, name := range cols {
			record[i] = row.Field(name)
		}
		if err := cw.Write(record); err != nil {
			return exported, fmt.Errorf("writing record: %w", err)
		}
		exported++
	}
	if err := rows.Err(); err != nil {
		return exported, fmt.Errorf("iterating export rows: %w", err)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return exported, fmt.Errorf("flushing csv: %w", err)
	}
	return exported, nil
}

// knownFields filters names down to the canonical field list, preserving
// order.
func knownFields(names []string) []string {
	var out []string
	for _, n := range names {
		for _, known := range history.FieldNames {
			if n == known {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

// likeClause builds a case-insensitive substring match over cols. Column
// names come from the canonical field list, never from user input.
func likeClause(q string, cols []string) (string, []any) {
	like := "%" + strings.ToLower(q) + "%"
	parts := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("LOWER(COALESCE(%s, '')) LIKE ?", c)
		args[i] = like
	}
	return strings.Join(parts, " OR "), args
}

// scanRows collects every row from the result set.
func scanRows(rows *sql.Rows) ([]history.Row, error) {
	var out []history.Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

func scanRow(rows *sql.Rows) (history.Row, error) {
	return scanRowWithID(rows, nil)
}

// scanRowWithID scans one result row, optionally with a leading row_id
// column. NULL columns normalize to "".
func scanRowWithID(rows *sql.Rows, id *int64) (history.Row, error) {
	fields := make([]sql.NullString, len(history.FieldNames))
	dest := make([]any, 0, len(fields)+1)
	if id != nil {
		dest = append(dest, id)
	}
	for i := range fields {
		dest = append(dest, &fields[i])
	}

	if err := rows.Scan(dest...); err != nil {
		return history.Row{}, fmt.Errorf("scanning row: %w", err)
	}

	return history.Row{
		SaveID:       fields[0].String,
		SavedAt:      fields[1].String,
		LinkUp:       fields[2].String,
		FuncLocation: fields[3].String,
		DateField:    fields[4].String,
		Shift:        fields[5].String,
		User:         fields[6].String,
		CardIndex:    fields[7].String,
		Issue:        fields[8].String,
		DetailIndex:  fields[9].String,
		Detail:       fields[10].String,
		ActionIndex:  fields[11].String,
		Action:       fields[12].String,
	}, nil
}
