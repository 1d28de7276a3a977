// Package sqlite implements the per-machine history store on an embedded
// SQLite database.
//
// Each machine exclusively owns its local database file for writes; other
// machines never open it. Convergence across machines happens through the
// snapshot files handled by package syncdir, so the schema's only
// cross-machine obligation is the unique index over the merge key, which
// makes every insert idempotent and commutative.
package sqlite

// The history_rows table stores every canonical field as TEXT plus two
// sync-bookkeeping columns. synced_at is empty until the row has been
// exported; sync_hash records the content hash of the snapshot file the row
// was exported into (an integrity hook, not consulted on import).
const createHistoryRows = `CREATE TABLE IF NOT EXISTS history_rows (
    row_id INTEGER PRIMARY KEY AUTOINCREMENT,
    save_id TEXT,
    saved_at TEXT,
    link_up TEXT,
    func_location TEXT,
    date_field TEXT,
    shift TEXT,
    user TEXT,
    card_index TEXT,
    issue TEXT,
    detail_index TEXT,
    detail TEXT,
    action_index TEXT,
    action TEXT,
    synced_at TEXT,
    sync_hash TEXT
);`

// The unique index over the merge key is the deduplication mechanism for the
// whole sync scheme: INSERT OR IGNORE against it makes appends idempotent.
const createMergeKeyIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_history_row
    ON history_rows(save_id, card_index, detail_index, action_index);`

// Secondary indexes for the common read filters.
var indexDDL = []string{
	createMergeKeyIndex,
	`CREATE INDEX IF NOT EXISTS ix_history_saved_at ON history_rows(saved_at);`,
	`CREATE INDEX IF NOT EXISTS ix_history_date_field ON history_rows(date_field);`,
	`CREATE INDEX IF NOT EXISTS ix_history_shift ON history_rows(shift);`,
	`CREATE INDEX IF NOT EXISTS ix_history_link_up ON history_rows(link_up);`,
	`CREATE INDEX IF NOT EXISTS ix_history_user ON history_rows(user);`,
	`CREATE INDEX IF NOT EXISTS ix_history_synced_at ON history_rows(synced_at);`,
}

// Display ordering for tail reads: newest date first, then a shift-aware key
// (empty shift sorts last, "All Shifts" after numbered shifts, "Shift N" by
// descending N), then submission time and position within the submission.
// Operators rely on this grouping, so it is pushed into SQL rather than
// recomputed per caller.
const (
	shiftExpr = `LOWER(TRIM(COALESCE(shift, '')))`

	shiftSortKey = `CASE ` +
		`WHEN ` + shiftExpr + ` = '' THEN 10000 ` +
		`WHEN ` + shiftExpr + ` LIKE '%all%shift%' THEN 9999 ` +
		`WHEN ` + shiftExpr + ` LIKE 'shift %' THEN -CAST(SUBSTR(` + shiftExpr + `, 7) AS INT) ` +
		`ELSE 0 END`

	viewOrderBy = `ORDER BY ` +
		`COALESCE(date_field, '') DESC, ` +
		shiftSortKey + ` ASC, ` +
		shiftExpr + ` ASC, ` +
		`COALESCE(saved_at, '') ASC, ` +
		`COALESCE(save_id, '') ASC, ` +
		`CAST(COALESCE(card_index, '0') AS INT) ASC, ` +
		`CAST(COALESCE(detail_index, '0') AS INT) ASC, ` +
		`CAST(COALESCE(action_index, '0') AS INT) ASC`
)
