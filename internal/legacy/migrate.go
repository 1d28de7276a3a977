// Package legacy replays the dataset of a retired single-shared-file
// installation into the local store and sync folder.
package legacy

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dukaforge/histsync/internal/history"
	"github.com/dukaforge/histsync/internal/sqlite"
	"github.com/dukaforge/histsync/internal/syncdir"
)

// lockTimeout bounds how long a migration waits for another local process to
// release the legacy file.
const lockTimeout = 30 * time.Second

// Result summarizes one migration run.
type Result struct {
	RowsRead      int    `json:"rows_read"`
	RowsSubmitted int    `json:"rows_submitted"`
	ExportFile    string `json:"export_file,omitempty"`
}

// Migrate copies every row out of the legacy shared database at legacyPath
// into the local store, then publishes one delta so other machines receive
// the data through the sync folder. The legacy file is opened read-only with
// the network-safe profile and under the sidecar file lock, since it may
// still live on a share with the old deployment's writers around.
//
// Re-running is safe: rows already present collapse on the merge key and the
// follow-up delta export only covers rows not yet shared.
func Migrate(ctx context.Context, legacyPath string, store *sqlite.Store, svc *syncdir.Service, logger *log.Logger) (Result, error) {
	var res Result
	if logger == nil {
		logger = log.New(os.Stderr, "[migrate] ", log.LstdFlags)
	}

	if _, err := os.Stat(legacyPath); err != nil {
		return res, fmt.Errorf("legacy database: %w", err)
	}

	var rows []history.Row
	err := sqlite.WithFileLock(ctx, legacyPath, lockTimeout, func() error {
		legacy, err := sqlite.Open(legacyPath, sqlite.Options{NetworkSafe: true, ReadOnly: true})
		if err != nil {
			return fmt.Errorf("opening legacy database: %w", err)
		}
		defer legacy.Close()

		rows, err = legacy.AllRows()
		if err != nil {
			return fmt.Errorf("reading legacy rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	res.RowsRead = len(rows)

	if len(rows) == 0 {
		logger.Printf("legacy database %s holds no rows, nothing to migrate", legacyPath)
		return res, nil
	}

	submitted, err := store.AppendRows(rows)
	if err != nil {
		return res, fmt.Errorf("replaying legacy rows: %w", err)
	}
	res.RowsSubmitted = submitted
	logger.Printf("replayed %d legacy rows into %s", submitted, store.Path())

	file, err := svc.ExportDelta()
	if err != nil {
		// The local replay already succeeded; a later sync run will
		// publish the rows.
		return res, fmt.Errorf("publishing migrated rows: %w", err)
	}
	res.ExportFile = file
	return res, nil
}
