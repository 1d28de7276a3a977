package syncdir

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dukaforge/histsync/internal/history"
)

// Snapshot filename prefixes. The origin and timestamp in a filename are
// provenance metadata for debugging; no algorithm depends on parsing them.
// Correctness comes entirely from the merge key.
const (
	deltaPrefix = "sync_"
	fullPrefix  = "fullsync_"
)

const filenameTimeLayout = "20060102_150405"

// ExportDelta publishes rows not yet shared as a new immutable snapshot
// file and marks them synced. When every row is already shared it returns
// "" and writes nothing; no empty file is ever produced.
//
// Ordering of failures is deliberate: the file is written before any row is
// marked, so a failed write marks nothing, and a failed mark leaves a file
// that later imports deduplicate harmlessly.
func (s *Service) ExportDelta() (string, error) {
	ids, rows, err := s.store.UnsyncedRows()
	if err != nil {
		return "", fmt.Errorf("selecting unsynced rows: %w", err)
	}
	if len(rows) == 0 {
		return "", nil
	}

	path, data, err := s.writeSnapshot(deltaPrefix, rows)
	if err != nil {
		return "", err
	}

	sum := md5.Sum(data)
	syncedAt := time.Now().Format(time.RFC3339)
	if err := s.store.MarkSynced(ids, syncedAt, hex.EncodeToString(sum[:])); err != nil {
		// The snapshot is already on the share; the rows will be
		// re-exported next time and deduplicated by every importer.
		return path, fmt.Errorf("marking rows synced: %w", err)
	}

	s.logger.Printf("exported %d rows to %s", len(rows), filepath.Base(path))
	return path, nil
}

// ExportFull publishes every local row as a fullsync snapshot, for
// onboarding a machine with an empty local store. Sync markers are not
// touched: a full snapshot is an extra copy, not a substitute for deltas.
func (s *Service) ExportFull() (string, error) {
	rows, err := s.store.AllRows()
	if err != nil {
		return "", fmt.Errorf("selecting all rows: %w", err)
	}

	path, _, err := s.writeSnapshot(fullPrefix, rows)
	if err != nil {
		return "", err
	}

	s.logger.Printf("exported full snapshot of %d rows to %s", len(rows), filepath.Base(path))
	return path, nil
}

// writeSnapshot serializes rows and writes them under a fresh
// origin+timestamp filename. Snapshot files are write-once: nothing ever
// rewrites one after this returns.
func (s *Service) writeSnapshot(prefix string, rows []history.Row) (string, []byte, error) {
	data, err := history.EncodeRows(rows)
	if err != nil {
		return "", nil, fmt.Errorf("encoding rows: %w", err)
	}

	stamp := time.Now().Format(filenameTimeLayout)
	name := fmt.Sprintf("%s%s_%s.json", prefix, s.origin, stamp)
	path := filepath.Join(s.folder, name)

	// Two exports within the same second must not overwrite each other.
	for i := 1; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		name = fmt.Sprintf("%s%s_%s_%d.json", prefix, s.origin, stamp, i)
		path = filepath.Join(s.folder, name)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", nil, fmt.Errorf("writing snapshot %s: %w", name, err)
	}
	return path, data, nil
}

// isSnapshotName reports whether a filename follows the delta or fullsync
// naming convention.
func isSnapshotName(name string) bool {
	if !strings.HasSuffix(name, ".json") {
		return false
	}
	return strings.HasPrefix(name, deltaPrefix) || strings.HasPrefix(name, fullPrefix)
}

// isFullSnapshotName reports whether a filename is a fullsync snapshot.
func isFullSnapshotName(name string) bool {
	return strings.HasSuffix(name, ".json") && strings.HasPrefix(strings.ToLower(name), fullPrefix)
}
