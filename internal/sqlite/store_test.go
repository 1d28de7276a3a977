package sqlite

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dukaforge/histsync/internal/history"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"), Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRow(saveID, cardIndex string) history.Row {
	return history.Row{
		SaveID:       saveID,
		SavedAt:      "2026-01-02T08:00:00",
		LinkUp:       "LU22",
		FuncLocation: "Packer",
		DateField:    "2026-01-02",
		Shift:        "Shift 1",
		User:         "operator",
		CardIndex:    cardIndex,
		Issue:        "issue text",
	}
}

func TestOpen_SchemaIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")

	s1, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if _, err := s1.AppendRows([]history.Row{testRow("s1", "1")}); err != nil {
		t.Fatalf("AppendRows failed: %v", err)
	}
	s1.Close()

	// Reopening must re-run schema setup without error or data loss.
	s2, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	count, err := s2.CountRows()
	if err != nil {
		t.Fatalf("CountRows failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 row after reopen, got %d", count)
	}
}

func TestOpen_NetworkSafe(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "shared.db"), Options{NetworkSafe: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if _, err := s.AppendRows([]history.Row{testRow("s1", "1")}); err != nil {
		t.Fatalf("AppendRows failed: %v", err)
	}
	count, err := s.CountRows()
	if err != nil {
		t.Fatalf("CountRows failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}
}

func TestAppendRows_IdempotentOnMergeKey(t *testing.T) {
	s := openTestStore(t)

	row := testRow("s1", "1")
	for i := 0; i < 3; i++ {
		n, err := s.AppendRows([]history.Row{row})
		if err != nil {
			t.Fatalf("AppendRows attempt %d failed: %v", i, err)
		}
		if n != 1 {
			t.Errorf("AppendRows should report submitted count 1, got %d", n)
		}
	}

	count, err := s.CountRows()
	if err != nil {
		t.Fatalf("CountRows failed: %v", err)
	}
	if count != 1 {
		t.Errorf("identical merge key appended 3 times should store 1 row, got %d", count)
	}
}

func TestAppendRows_DistinctKeys(t *testing.T) {
	s := openTestStore(t)

	rows := []history.Row{
		testRow("s1", "1"),
		testRow("s1", "2"),
		testRow("s2", "1"),
	}
	n, err := s.AppendRows(rows)
	if err != nil {
		t.Fatalf("AppendRows failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected submitted count 3, got %d", n)
	}

	count, _ := s.CountRows()
	if count != 3 {
		t.Errorf("expected 3 stored rows, got %d", count)
	}
}

func TestAppendRows_EmptyBatch(t *testing.T) {
	s := openTestStore(t)
	n, err := s.AppendRows(nil)
	if err != nil {
		t.Fatalf("AppendRows(nil) failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0, got %d", n)
	}
}

func TestReadTail_DisplayOrdering(t *testing.T) {
	s := openTestStore(t)

	mk := func(saveID, date, shift string) history.Row {
		r := testRow(saveID, "1")
		r.DateField = date
		r.Shift = shift
		return r
	}

	rows := []history.Row{
		mk("a", "2026-01-01", "Shift 2"),
		mk("b", "2026-01-02", ""),
		mk("c", "2026-01-02", "All Shifts"),
		mk("d", "2026-01-02", "Shift 2"),
		mk("e", "2026-01-02", "Shift 1"),
	}
	if _, err := s.AppendRows(rows); err != nil {
		t.Fatalf("AppendRows failed: %v", err)
	}

	total, tail, err := s.ReadTail(10)
	if err != nil {
		t.Fatalf("ReadTail failed: %v", err)
	}
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}

	var got []string
	for _, r := range tail {
		got = append(got, r.SaveID)
	}
	// Newest date first; within a date: numbered shifts by descending
	// number, then "All Shifts", then empty shift; the old date last.
	want := []string{"d", "e", "c", "b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("display order mismatch: got %v, want %v", got, want)
		}
	}
}

func TestReadTail_LimitDefault(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.AppendRows([]history.Row{testRow("s1", "1")}); err != nil {
		t.Fatalf("AppendRows failed: %v", err)
	}
	total, rows, err := s.ReadTail(0)
	if err != nil {
		t.Fatalf("ReadTail failed: %v", err)
	}
	if total != 1 || len(rows) != 1 {
		t.Errorf("expected 1/1, got %d/%d", total, len(rows))
	}
}

func TestFilteredTail(t *testing.T) {
	s := openTestStore(t)

	r1 := testRow("s1", "1")
	r1.Issue = "Conveyor Jam"
	r2 := testRow("s1", "2")
	r2.Issue = "label printer"
	if _, err := s.AppendRows([]history.Row{r1, r2}); err != nil {
		t.Fatalf("AppendRows failed: %v", err)
	}

	total, rows, err := s.FilteredTail("conveyor", []string{"issue"}, 10)
	if err != nil {
		t.Fatalf("FilteredTail failed: %v", err)
	}
	if total != 1 || len(rows) != 1 {
		t.Fatalf("expected 1 match, got total=%d len=%d", total, len(rows))
	}
	if rows[0].Issue != "Conveyor Jam" {
		t.Errorf("unexpected match: %+v", rows[0])
	}

	// Empty query and unknown fields match nothing.
	if total, rows, _ := s.FilteredTail("", []string{"issue"}, 10); total != 0 || rows != nil {
		t.Errorf("empty query should match nothing")
	}
	if total, rows, _ := s.FilteredTail("conveyor", []string{"nope"}, 10); total != 0 || rows != nil {
		t.Errorf("unknown field should match nothing")
	}
}

func TestReadLastSaved(t *testing.T) {
	s := openTestStore(t)

	last, err := s.ReadLastSaved()
	if err != nil {
		t.Fatalf("ReadLastSaved failed: %v", err)
	}
	if last != nil {
		t.Errorf("expected nil on empty store, got %+v", last)
	}

	r1 := testRow("s1", "1")
	r1.SavedAt = "2026-01-01T08:00:00"
	r1.User = "alice"
	r2 := testRow("s2", "1")
	r2.SavedAt = "2026-01-02T08:00:00"
	r2.User = "bob"
	if _, err := s.AppendRows([]history.Row{r1, r2}); err != nil {
		t.Fatalf("AppendRows failed: %v", err)
	}

	last, err = s.ReadLastSaved()
	if err != nil {
		t.Fatalf("ReadLastSaved failed: %v", err)
	}
	if last == nil || last.User != "bob" {
		t.Errorf("expected most recent user bob, got %+v", last)
	}
}

func TestUnsyncedAndMarkSynced(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.AppendRows([]history.Row{testRow("s1", "1"), testRow("s1", "2")}); err != nil {
		t.Fatalf("AppendRows failed: %v", err)
	}

	ids, rows, err := s.UnsyncedRows()
	if err != nil {
		t.Fatalf("UnsyncedRows failed: %v", err)
	}
	if len(ids) != 2 || len(rows) != 2 {
		t.Fatalf("expected 2 unsynced rows, got %d/%d", len(ids), len(rows))
	}

	if err := s.MarkSynced(ids, "2026-01-02T09:00:00", "deadbeef"); err != nil {
		t.Fatalf("MarkSynced failed: %v", err)
	}

	ids, rows, err = s.UnsyncedRows()
	if err != nil {
		t.Fatalf("UnsyncedRows after mark failed: %v", err)
	}
	if len(ids) != 0 || len(rows) != 0 {
		t.Errorf("expected no unsynced rows after MarkSynced, got %d", len(ids))
	}

	// New rows become unsynced again.
	if _, err := s.AppendRows([]history.Row{testRow("s2", "1")}); err != nil {
		t.Fatalf("AppendRows failed: %v", err)
	}
	ids, _, _ = s.UnsyncedRows()
	if len(ids) != 1 {
		t.Errorf("expected 1 unsynced row, got %d", len(ids))
	}
}

func TestExportCSV(t *testing.T) {
	s := openTestStore(t)

	r := testRow("s1", "1")
	r.Issue = "jam, with comma"
	if _, err := s.AppendRows([]history.Row{r}); err != nil {
		t.Fatalf("AppendRows failed: %v", err)
	}

	var buf bytes.Buffer
	n, err := s.ExportCSV(&buf, []string{"save_id", "issue"}, "")
	if err != nil {
		t.Fatalf("ExportCSV failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 exported row, got %d", n)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if lines[0] != "save_id,issue" {
		t.Errorf("unexpected header: %q", lines[0])
	}
	if !strings.Contains(lines[1], `"jam, with comma"`) {
		t.Errorf("comma field not quoted: %q", lines[1])
	}
}
