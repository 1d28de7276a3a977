package syncdir

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch runs an import loop driven by filesystem events on the sync folder:
// whenever a snapshot file is created or written, an import scan fires after
// the debounce interval has passed without further events. Debouncing
// matters because a producer copying a large snapshot over the network emits
// a burst of write events, and importing mid-copy would just hit the parse
// failure path and retry.
//
// One import scan always runs at startup to catch files that arrived while
// nobody was watching. Watch blocks until ctx is cancelled and propagates
// that cancellation as ctx.Err().
func (s *Service) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.folder); err != nil {
		return fmt.Errorf("watching %s: %w", s.folder, err)
	}

	if n, err := s.ImportAll(); err != nil {
		s.logger.Printf("WARNING: initial import failed: %v", err)
	} else if n > 0 {
		s.logger.Printf("initial import merged %d rows", n)
	}

	// The timer is parked until the first relevant event.
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isSnapshotName(filepath.Base(event.Name)) {
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Printf("WARNING: watcher error: %v", err)

		case <-timer.C:
			n, err := s.ImportAll()
			if err != nil {
				s.logger.Printf("WARNING: import failed: %v", err)
				continue
			}
			if n > 0 {
				s.logger.Printf("merged %d rows from sync folder", n)
			}
		}
	}
}
