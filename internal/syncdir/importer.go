package syncdir

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dukaforge/histsync/internal/history"
)

// ImportAll scans the shared folder and merges every snapshot not yet
// applied locally. It returns the number of rows submitted to the store;
// duplicates across overlapping snapshots are expected and collapse on the
// merge key, so the count may exceed the number of rows actually added.
//
// A file that fails to read or parse is logged and skipped without aborting
// the scan, and is not marked imported: a truncated write by a still-copying
// producer heals itself on the next scan. Files whose (size, mtime) match
// their marker are skipped outright.
func (s *Service) ImportAll() (int, error) {
	if _, err := os.Stat(s.folder); os.IsNotExist(err) {
		return 0, nil
	}

	files, err := s.listSnapshots()
	if err != nil {
		return 0, err
	}

	idx := s.loadMarkers()
	imported := 0

	for _, path := range files {
		name := filepath.Base(path)

		st, err := os.Stat(path)
		if err != nil {
			s.logger.Printf("WARNING: cannot stat %s, skipping: %v", name, err)
			continue
		}
		if m, ok := idx[name]; ok && m.Size == st.Size() && m.Mtime == st.ModTime().Unix() {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Printf("WARNING: cannot read %s, skipping: %v", name, err)
			continue
		}

		rows, err := history.DecodeRows(data)
		if err != nil {
			// Likely a half-copied file; leave it unmarked so the
			// next scan retries it.
			s.logger.Printf("WARNING: cannot parse %s, will retry next scan: %v", name, err)
			continue
		}

		count, err := s.store.AppendRows(rows)
		if err != nil {
			s.logger.Printf("WARNING: failed to merge %s, will retry next scan: %v", name, err)
			continue
		}
		imported += count

		// Mark even when the file held no new rows; unchanged files
		// need not be reparsed.
		idx[name] = marker{Size: st.Size(), Mtime: st.ModTime().Unix()}
	}

	if err := s.saveMarkers(idx); err != nil {
		return imported, fmt.Errorf("saving marker index: %w", err)
	}
	return imported, nil
}

// listSnapshots returns every snapshot file in the folder root (the archive
// subfolder is not scanned), deduplicated by resolved path and sorted by
// filename for a stable processing order.
func (s *Service) listSnapshots() ([]string, error) {
	entries, err := os.ReadDir(s.folder)
	if err != nil {
		return nil, fmt.Errorf("reading sync folder: %w", err)
	}

	seen := map[string]struct{}{}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !isSnapshotName(entry.Name()) {
			continue
		}
		path := filepath.Join(s.folder, entry.Name())
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			resolved = path
		}
		if _, ok := seen[resolved]; ok {
			continue
		}
		seen[resolved] = struct{}{}
		files = append(files, path)
	}

	sort.Slice(files, func(i, j int) bool {
		return filepath.Base(files[i]) < filepath.Base(files[j])
	})
	return files, nil
}
