package syncdir

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// marker records the (size, mtime) of a snapshot file at the moment it was
// last imported. A snapshot whose current stat matches its marker is skipped
// on later scans; any change forces a re-scan. Producers never mutate files
// in place by contract, so a changed stat means a rewritten file and
// re-import is the safe response.
type marker struct {
	Size  int64 `json:"size"`
	Mtime int64 `json:"mtime"`
}

// loadMarkers reads the import marker index. A missing or unreadable index
// is treated as empty: the worst case is re-scanning files the local insert
// path will deduplicate anyway.
func (s *Service) loadMarkers() map[string]marker {
	data, err := os.ReadFile(s.markerPath)
	if err != nil {
		return map[string]marker{}
	}
	idx := map[string]marker{}
	if err := json.Unmarshal(data, &idx); err != nil {
		s.logger.Printf("WARNING: unreadable marker index %s, rescanning all: %v", s.markerPath, err)
		return map[string]marker{}
	}
	return idx
}

// saveMarkers writes the index atomically via the temp-file rename pattern
// so a crash mid-write cannot leave a truncated index behind.
func (s *Service) saveMarkers(idx map[string]marker) error {
	if err := os.MkdirAll(filepath.Dir(s.markerPath), 0o755); err != nil {
		return fmt.Errorf("creating marker directory: %w", err)
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling marker index: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.markerPath), ".markers-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp marker file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing marker index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing marker index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing marker index: %w", err)
	}
	if err := os.Rename(tmpName, s.markerPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming marker index: %w", err)
	}
	return nil
}
