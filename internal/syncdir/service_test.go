package syncdir

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dukaforge/histsync/internal/history"
	"github.com/dukaforge/histsync/internal/sqlite"
)

// newTestService builds a Service with its own local store and marker file,
// sharing the given sync folder. origin distinguishes machines in a test.
func newTestService(t *testing.T, folder, origin string) (*Service, *sqlite.Store) {
	t.Helper()

	local := t.TempDir()
	store, err := sqlite.Open(filepath.Join(local, "history.db"), sqlite.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := log.New(io.Discard, "", 0)
	svc, err := New(store, folder, filepath.Join(local, "sync_import_index.json"), origin, logger)
	require.NoError(t, err)
	return svc, store
}

func row(saveID, cardIndex string) history.Row {
	return history.Row{
		SaveID:    saveID,
		SavedAt:   "2026-01-02T08:00:00",
		LinkUp:    "LU22",
		Shift:     "Shift 1",
		CardIndex: cardIndex,
		Issue:     "issue",
	}
}

func TestExportDelta_MarksRowsSynced(t *testing.T) {
	folder := t.TempDir()
	svc, store := newTestService(t, folder, "machineA")

	_, err := store.AppendRows([]history.Row{row("s1", "1"), row("s1", "2")})
	require.NoError(t, err)

	file, err := svc.ExportDelta()
	require.NoError(t, err)
	require.NotEmpty(t, file)
	require.FileExists(t, file)

	rows, err := history.DecodeRows(mustRead(t, file))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Everything is flagged synced, so a re-export yields nothing new.
	file2, err := svc.ExportDelta()
	require.NoError(t, err)
	require.Empty(t, file2, "re-export with everything synced should write no file")
}

func TestExportDelta_NoRowsWritesNoFile(t *testing.T) {
	folder := t.TempDir()
	svc, _ := newTestService(t, folder, "machineA")

	file, err := svc.ExportDelta()
	require.NoError(t, err)
	require.Empty(t, file)

	entries, err := os.ReadDir(folder)
	require.NoError(t, err)
	require.Empty(t, entries, "no empty snapshot file may appear")
}

func TestExportFull_DoesNotTouchSyncMarkers(t *testing.T) {
	folder := t.TempDir()
	svc, store := newTestService(t, folder, "machineA")

	_, err := store.AppendRows([]history.Row{row("s1", "1")})
	require.NoError(t, err)

	file, err := svc.ExportFull()
	require.NoError(t, err)
	require.Contains(t, filepath.Base(file), "fullsync_machineA_")

	// The row is still unsynced: full snapshots are for onboarding only.
	delta, err := svc.ExportDelta()
	require.NoError(t, err)
	require.NotEmpty(t, delta)
}

func TestImportAll_IdempotentAcrossScans(t *testing.T) {
	folder := t.TempDir()
	producer, store := newTestService(t, folder, "machineA")
	consumer, consumerStore := newTestService(t, folder, "machineB")

	_, err := store.AppendRows([]history.Row{row("s1", "1"), row("s1", "2")})
	require.NoError(t, err)
	_, err = producer.ExportDelta()
	require.NoError(t, err)

	n, err := consumer.ImportAll()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	count, err := consumerStore.CountRows()
	require.NoError(t, err)
	require.Equal(t, 2, count)

	// Second scan on an unchanged folder imports zero additional rows.
	n, err = consumer.ImportAll()
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestImportAll_Convergence(t *testing.T) {
	folder := t.TempDir()
	machineA, storeA := newTestService(t, folder, "machineA")
	machineB, storeB := newTestService(t, folder, "machineB")

	_, err := storeA.AppendRows([]history.Row{row("s1", "1"), row("s2", "1")})
	require.NoError(t, err)
	_, err = storeB.AppendRows([]history.Row{row("s3", "1")})
	require.NoError(t, err)

	_, err = machineA.ExportFull()
	require.NoError(t, err)

	_, err = machineB.ImportAll()
	require.NoError(t, err)

	// B now holds a superset of A's rows.
	count, err := storeB.CountRows()
	require.NoError(t, err)
	require.Equal(t, 3, count)

	// A exports again; re-running B's import produces no duplicates.
	_, err = machineA.ExportDelta()
	require.NoError(t, err)
	_, err = machineB.ImportAll()
	require.NoError(t, err)

	count, err = storeB.CountRows()
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestImportAll_DuplicateSaveIDAcrossMachines(t *testing.T) {
	folder := t.TempDir()
	machineA, storeA := newTestService(t, folder, "machineA")
	machineB, storeB := newTestService(t, folder, "machineB")

	// Both machines independently recorded the same logical fact.
	_, err := storeA.AppendRows([]history.Row{row("dup1", "1")})
	require.NoError(t, err)
	_, err = storeB.AppendRows([]history.Row{row("dup1", "1")})
	require.NoError(t, err)

	_, err = machineA.ExportDelta()
	require.NoError(t, err)

	before, err := storeB.CountRows()
	require.NoError(t, err)

	_, err = machineB.ImportAll()
	require.NoError(t, err)

	after, err := storeB.CountRows()
	require.NoError(t, err)
	require.Equal(t, before, after, "importing an already-known merge key must not add a row")
}

func TestImportAll_OrderIndependent(t *testing.T) {
	folderFwd := t.TempDir()
	folderRev := t.TempDir()

	writeSnapshot := func(t *testing.T, folder, name string, rows []history.Row) {
		data, err := history.EncodeRows(rows)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(folder, name), data, 0o644))
	}

	first := []history.Row{row("s1", "1"), row("s2", "1")}
	second := []history.Row{row("s2", "1"), row("s3", "1")} // overlaps first

	// Same two snapshots, applied in opposite filename order.
	writeSnapshot(t, folderFwd, "sync_x_20260101_000000.json", first)
	writeSnapshot(t, folderFwd, "sync_x_20260102_000000.json", second)
	writeSnapshot(t, folderRev, "sync_x_20260101_000000.json", second)
	writeSnapshot(t, folderRev, "sync_x_20260102_000000.json", first)

	fwd, storeFwd := newTestService(t, folderFwd, "fwd")
	rev, storeRev := newTestService(t, folderRev, "rev")

	_, err := fwd.ImportAll()
	require.NoError(t, err)
	_, err = rev.ImportAll()
	require.NoError(t, err)

	countFwd, err := storeFwd.CountRows()
	require.NoError(t, err)
	countRev, err := storeRev.CountRows()
	require.NoError(t, err)
	require.Equal(t, countFwd, countRev)
	require.Equal(t, 3, countFwd)
}

func TestImportAll_TruncatedFileRetriedNextScan(t *testing.T) {
	folder := t.TempDir()
	svc, store := newTestService(t, folder, "machineB")

	path := filepath.Join(folder, "sync_machineA_20260101_000000.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"save_id":"s1",`), 0o644))

	// The scan completes without error and imports nothing from the file.
	n, err := svc.ImportAll()
	require.NoError(t, err)
	require.Zero(t, n)

	// Once the producer finishes the copy, the next scan picks it up.
	data, err := history.EncodeRows([]history.Row{row("s1", "1")})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	n, err = svc.ImportAll()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	count, err := store.CountRows()
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestImportAll_UnknownKeysDropped(t *testing.T) {
	folder := t.TempDir()
	svc, store := newTestService(t, folder, "machineB")

	payload := `[{"save_id":"s1","card_index":"1","rogue_field":"x"}]`
	path := filepath.Join(folder, "sync_machineA_20260101_000000.json")
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	n, err := svc.ImportAll()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	rows, err := store.AllRows()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "s1", rows[0].SaveID)
	require.Empty(t, rows[0].Issue, "missing keys become empty strings")
}

func TestSyncBidirectional(t *testing.T) {
	folder := t.TempDir()
	machineA, storeA := newTestService(t, folder, "machineA")
	machineB, storeB := newTestService(t, folder, "machineB")

	_, err := storeA.AppendRows([]history.Row{row("s1", "1")})
	require.NoError(t, err)
	_, _, err = machineA.SyncBidirectional()
	require.NoError(t, err)

	_, err = storeB.AppendRows([]history.Row{row("s2", "1")})
	require.NoError(t, err)

	imported, exported, err := machineB.SyncBidirectional()
	require.NoError(t, err)
	require.Equal(t, 1, imported, "B pulls A's row")
	require.Equal(t, 1, exported, "B publishes its own delta")

	count, err := storeB.CountRows()
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestStatus(t *testing.T) {
	folder := t.TempDir()
	svc, store := newTestService(t, folder, "machineA")

	_, err := store.AppendRows([]history.Row{row("s1", "1")})
	require.NoError(t, err)

	status, err := svc.Status()
	require.NoError(t, err)
	require.Equal(t, store.Path(), status.LocalDBPath)
	require.Equal(t, folder, status.SyncFolder)
	require.Equal(t, 1, status.Rows)
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}
