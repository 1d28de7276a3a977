// Package syncdir replicates the local history store through a shared
// folder.
//
// Machines never open each other's databases. Instead each machine publishes
// immutable JSON snapshot files into the folder and merges every snapshot it
// has not yet applied. Inserts are idempotent on the merge key, so snapshots
// can overlap, arrive in any order, and be re-applied after partial failure
// without changing the final row set. The shared folder is append-only from
// every machine's perspective; only Cleanup moves files, and only into the
// archive subfolder.
package syncdir

import (
	"fmt"
	"log"
	"os"

	"github.com/dukaforge/histsync/internal/sqlite"
)

// Service ties a local store to one shared sync folder. Construct exactly
// one per process and pass it to whatever needs sync access; there is no
// package-level instance.
type Service struct {
	store      *sqlite.Store
	folder     string
	markerPath string
	origin     string
	logger     *log.Logger
}

// New creates a Service publishing as origin (the machine's hostname when
// empty). markerPath is the per-machine import marker file; it must live on
// local storage, never in the shared folder. A nil logger falls back to a
// stderr default.
func New(store *sqlite.Store, folder, markerPath, origin string, logger *log.Logger) (*Service, error) {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("creating sync folder: %w", err)
	}
	if origin == "" {
		if host, err := os.Hostname(); err == nil && host != "" {
			origin = host
		} else {
			origin = "unknown"
		}
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Service{
		store:      store,
		folder:     folder,
		markerPath: markerPath,
		origin:     origin,
		logger:     logger,
	}, nil
}

// Folder returns the shared sync folder path.
func (s *Service) Folder() string {
	return s.folder
}

// SyncBidirectional imports every pending snapshot, then exports a delta of
// local rows not yet shared. Returns the number of rows submitted by the
// import and 1 or 0 for whether a delta file was produced.
func (s *Service) SyncBidirectional() (imported, exported int, err error) {
	imported, err = s.ImportAll()
	if err != nil {
		return imported, 0, err
	}

	file, err := s.ExportDelta()
	if err != nil {
		return imported, 0, err
	}
	if file != "" {
		exported = 1
	}
	return imported, exported, nil
}

// Status describes the sync setup for operator display.
type Status struct {
	LocalDBPath string `json:"local_db_path"`
	SyncFolder  string `json:"sync_folder"`
	Rows        int    `json:"rows"`
}

// Status reports the local database path, the sync folder, and the local
// row count.
func (s *Service) Status() (Status, error) {
	count, err := s.store.CountRows()
	if err != nil {
		return Status{}, err
	}
	return Status{
		LocalDBPath: s.store.Path(),
		SyncFolder:  s.folder,
		Rows:        count,
	}, nil
}
