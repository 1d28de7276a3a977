package syncdir

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ArchiveDirName is the subfolder that Cleanup moves aged snapshots into.
const ArchiveDirName = "archive"

// CleanupStats summarizes one cleanup pass.
type CleanupStats struct {
	Scanned  int `json:"scanned"`
	Archived int `json:"archived"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

func (c CleanupStats) String() string {
	return fmt.Sprintf("scanned %d, archived %d, skipped %d, errors %d",
		c.Scanned, c.Archived, c.Skipped, c.Errors)
}

// Cleanup archives aged snapshot files so the shared folder stays bounded.
// It never deletes: files older than retentionDays move into the archive
// subfolder, except the keepLatestFullsync most recently modified fullsync
// snapshots, which are reserved for onboarding regardless of age. Per-file
// failures (in use, permissions) are counted and the scan continues; one
// stubborn file must never block cleanup of the rest.
//
// Out-of-range parameters are clamped: retentionDays <= 0 becomes 30,
// keepLatestFullsync < 0 becomes 0.
func (s *Service) Cleanup(retentionDays, keepLatestFullsync int) CleanupStats {
	var stats CleanupStats

	if retentionDays <= 0 {
		retentionDays = 30
	}
	if keepLatestFullsync < 0 {
		keepLatestFullsync = 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	archiveDir := filepath.Join(s.folder, ArchiveDirName)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		// Without the archive dir there is nowhere safe to move files.
		s.logger.Printf("WARNING: cannot create %s, skipping cleanup: %v", archiveDir, err)
		stats.Errors++
		return stats
	}

	files, err := s.listSnapshots()
	if err != nil {
		s.logger.Printf("WARNING: cleanup scan failed: %v", err)
		stats.Errors++
		return stats
	}

	keep := newestFullsyncs(files, keepLatestFullsync)

	for _, path := range files {
		name := filepath.Base(path)
		stats.Scanned++

		if keep[name] {
			stats.Skipped++
			continue
		}

		st, err := os.Stat(path)
		if err != nil {
			stats.Errors++
			continue
		}
		if st.ModTime().After(cutoff) {
			stats.Skipped++
			continue
		}

		dst := filepath.Join(archiveDir, name)
		if _, err := os.Stat(dst); err == nil {
			// Another machine archived a same-named file already;
			// keep both rather than clobbering.
			suffix := time.Now().Format(filenameTimeLayout)
			ext := filepath.Ext(name)
			dst = filepath.Join(archiveDir, strings.TrimSuffix(name, ext)+"_"+suffix+ext)
		}

		if err := os.Rename(path, dst); err != nil {
			// File in use or no permission; leave it for a later pass.
			s.logger.Printf("WARNING: cannot archive %s: %v", name, err)
			stats.Errors++
			continue
		}
		stats.Archived++
	}

	return stats
}

// newestFullsyncs returns the names of the n most recently modified fullsync
// files.
func newestFullsyncs(files []string, n int) map[string]bool {
	keep := map[string]bool{}
	if n <= 0 {
		return keep
	}

	type aged struct {
		name  string
		mtime time.Time
	}
	var fulls []aged
	for _, path := range files {
		name := filepath.Base(path)
		if !isFullSnapshotName(name) {
			continue
		}
		st, err := os.Stat(path)
		if err != nil {
			continue
		}
		fulls = append(fulls, aged{name: name, mtime: st.ModTime()})
	}

	sort.Slice(fulls, func(i, j int) bool { return fulls[i].mtime.After(fulls[j].mtime) })
	for i := 0; i < n && i < len(fulls); i++ {
		keep[fulls[i].name] = true
	}
	return keep
}
