package expediente

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

type writeCall struct {
	row, col int
	values   [][]string
}

type fakeStore struct {
	header []string
	rows   []Row

	headerErr error
	rowsErr   error
	writeErr  error
	formatErr error

	headerCalls int
	writes      []writeCall
	formats     [][]CellFormat
}

func (f *fakeStore) Header(ctx context.Context) ([]string, error) {
	f.headerCalls++
	return f.header, f.headerErr
}

func (f *fakeStore) Records(ctx context.Context) ([]Row, error) {
	return f.rows, f.rowsErr
}

func (f *fakeStore) WriteRange(ctx context.Context, row, col int, values [][]string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, writeCall{row: row, col: col, values: values})
	return nil
}

func (f *fakeStore) FormatCells(ctx context.Context, cells []CellFormat) error {
	if f.formatErr != nil {
		return f.formatErr
	}
	f.formats = append(f.formats, cells)
	return nil
}

var fullHeader = []string{
	ColCaseID,
	ColUnit,
	ColSubmittedAt,
	ColElapsedDays,
	"Tipo de Proceso",
	ColStatus,
	ColTransferredAt,
}

func pendingRow(caseID, unit, submitted string) Row {
	return Row{
		ColCaseID:        caseID,
		ColUnit:          unit,
		ColSubmittedAt:   submitted,
		ColElapsedDays:   "99", // stale, must never be trusted
		"Tipo de Proceso": "CAMBIO",
		ColStatus:        "Pendiente",
		ColTransferredAt: "",
	}
}

func newTestService(store *fakeStore, at time.Time) *Service {
	svc := NewService(store, nil, time.Minute)
	svc.WithClock(func() time.Time { return at })
	svc.WithRunID(func() string { return "run-test" })
	return svc
}

func TestRefresh_RecomputesAndWritesBack(t *testing.T) {
	store := &fakeStore{
		header: fullHeader,
		rows:   []Row{pendingRow("EXP-001", "DRCM", "01/03/2024")},
	}
	// 6 March 2024 is a Wednesday
	svc := newTestService(store, time.Date(2024, 3, 6, 11, 30, 0, 0, time.UTC))

	_, records, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].ElapsedDays == nil || *records[0].ElapsedDays != 3 {
		t.Fatalf("elapsed = %v, want 3", records[0].ElapsedDays)
	}

	if len(store.writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(store.writes))
	}
	w := store.writes[0]
	if w.row != 2 || w.col != 1 {
		t.Errorf("write anchored at (%d,%d), want (2,1)", w.row, w.col)
	}
	want := []string{"EXP-001", "DRCM", "01/03/2024 00:00:00", "3", "CAMBIO", "Pendiente", ""}
	if !reflect.DeepEqual(w.values[0], want) {
		t.Errorf("written row = %v, want %v", w.values[0], want)
	}

	if len(store.formats) != 1 || len(store.formats[0]) != 1 {
		t.Fatalf("expected one batched format call with one cell, got %v", store.formats)
	}
	cell := store.formats[0][0]
	if cell.Row != 2 || cell.Col != 4 {
		t.Errorf("format cell at (%d,%d), want (2,4)", cell.Row, cell.Col)
	}
	if cell.Background != (RGB{Green: 1}) {
		t.Errorf("3 elapsed days should color green, got %+v", cell.Background)
	}
}

func TestRefresh_Idempotent(t *testing.T) {
	store := &fakeStore{
		header: fullHeader,
		rows: []Row{
			pendingRow("EXP-001", "DRCM", "01/03/2024"),
			pendingRow("EXP-002", "LIMA", "26/02/2024"),
		},
	}
	svc := newTestService(store, time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC))

	for i := 0; i < 2; i++ {
		if _, _, err := svc.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh #%d: %v", i+1, err)
		}
	}

	if len(store.writes) != 2 || len(store.formats) != 2 {
		t.Fatalf("expected 2 writes and 2 format batches, got %d/%d", len(store.writes), len(store.formats))
	}
	if !reflect.DeepEqual(store.writes[0], store.writes[1]) {
		t.Errorf("second pass wrote different values:\n%v\n%v", store.writes[0], store.writes[1])
	}
	if !reflect.DeepEqual(store.formats[0], store.formats[1]) {
		t.Errorf("second pass formatted differently:\n%v\n%v", store.formats[0], store.formats[1])
	}
}

func TestRefresh_HeaderSubsetKeepsHeaderOrder(t *testing.T) {
	store := &fakeStore{
		header: []string{ColTransferredAt, ColCaseID},
		rows: []Row{{
			ColCaseID:      "EXP-001",
			ColSubmittedAt: "01/03/2024",
		}},
	}
	svc := newTestService(store, time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC))

	if _, _, err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(store.writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(store.writes))
	}
	want := []string{"", "EXP-001"}
	if !reflect.DeepEqual(store.writes[0].values[0], want) {
		t.Errorf("written row = %v, want %v", store.writes[0].values[0], want)
	}
	// no elapsed-days column in the header, so no formatting pass
	if len(store.formats) != 0 {
		t.Errorf("expected no format calls, got %v", store.formats)
	}
}

func TestRefresh_WriteFailurePropagates(t *testing.T) {
	boom := errors.New("quota exceeded")
	store := &fakeStore{
		header:   fullHeader,
		rows:     []Row{pendingRow("EXP-001", "DRCM", "01/03/2024")},
		writeErr: boom,
	}
	svc := newTestService(store, time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC))

	_, _, err := svc.Refresh(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error to propagate, got %v", err)
	}
	if len(store.formats) != 0 {
		t.Errorf("formatting must not run after a failed write")
	}
}

func TestRefresh_NeutralTierWithoutSubmission(t *testing.T) {
	row := pendingRow("EXP-001", "DRCM", "")
	store := &fakeStore{header: fullHeader, rows: []Row{row}}
	svc := newTestService(store, time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC))

	if _, _, err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := store.writes[0].values[0][3]; got != "" {
		t.Errorf("elapsed cell = %q, want empty", got)
	}
	if got := store.formats[0][0].Background; got != (RGB{Red: 1, Green: 1, Blue: 1}) {
		t.Errorf("missing submission should color white, got %+v", got)
	}
}

func TestPendingByUnit_Filters(t *testing.T) {
	closed := pendingRow("EXP-003", "DRCM", "01/03/2024")
	closed[ColStatus] = "Atendido"
	store := &fakeStore{
		header: fullHeader,
		rows: []Row{
			pendingRow("EXP-001", "DRCM", "01/03/2024"),
			pendingRow("EXP-002", "LIMA", "01/03/2024"),
			closed,
		},
	}
	svc := newTestService(store, time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC))

	got, err := svc.PendingByUnit(context.Background(), "drcm")
	if err != nil {
		t.Fatalf("PendingByUnit: %v", err)
	}
	if len(got) != 1 || got[0].CaseID != "EXP-001" {
		t.Fatalf("expected only EXP-001, got %+v", got)
	}
}

func TestUnits_DistinctSorted(t *testing.T) {
	store := &fakeStore{
		header: fullHeader,
		rows: []Row{
			pendingRow("EXP-001", "LIMA", "01/03/2024"),
			pendingRow("EXP-002", "DRCM", "01/03/2024"),
			pendingRow("EXP-003", "DRCM", "01/03/2024"),
			pendingRow("EXP-004", "", "01/03/2024"),
		},
	}
	svc := newTestService(store, time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC))

	units, err := svc.Units(context.Background())
	if err != nil {
		t.Fatalf("Units: %v", err)
	}
	if !reflect.DeepEqual(units, []string{"DRCM", "LIMA"}) {
		t.Errorf("units = %v, want [DRCM LIMA]", units)
	}
}

func TestSnapshot_CachesWithinTTL(t *testing.T) {
	store := &fakeStore{
		header: fullHeader,
		rows:   []Row{pendingRow("EXP-001", "DRCM", "01/03/2024")},
	}
	at := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)
	svc := NewService(store, nil, 30*time.Second)
	svc.WithClock(func() time.Time { return at })

	for i := 0; i < 3; i++ {
		if _, _, err := svc.Snapshot(context.Background()); err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
	}
	if store.headerCalls != 1 {
		t.Fatalf("expected 1 store read within TTL, got %d", store.headerCalls)
	}

	at = at.Add(31 * time.Second)
	if _, _, err := svc.Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot after TTL: %v", err)
	}
	if store.headerCalls != 2 {
		t.Fatalf("expected a fresh read after TTL, got %d reads", store.headerCalls)
	}
}

func TestCommitTransfer_RejectsPastDate(t *testing.T) {
	store := &fakeStore{header: fullHeader}
	svc := newTestService(store, time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC))

	_, err := svc.CommitTransfer(context.Background(), "EXP-001", date(2024, time.March, 5))
	if !errors.Is(err, ErrTransferBeforeToday) {
		t.Fatalf("expected ErrTransferBeforeToday, got %v", err)
	}
	if store.headerCalls != 0 || len(store.writes) != 0 {
		t.Errorf("no store call may happen for rejected input")
	}
}

func TestCommitTransfer_UnknownCase(t *testing.T) {
	store := &fakeStore{
		header: fullHeader,
		rows:   []Row{pendingRow("EXP-001", "DRCM", "01/03/2024")},
	}
	svc := newTestService(store, time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC))

	_, err := svc.CommitTransfer(context.Background(), "EXP-404", date(2024, time.March, 6))
	if !errors.Is(err, ErrCaseNotFound) {
		t.Fatalf("expected ErrCaseNotFound, got %v", err)
	}
	if len(store.writes) != 0 {
		t.Errorf("unknown case must not trigger a write")
	}
}

func TestCommitTransfer_WritesFullSetAndInvalidatesCache(t *testing.T) {
	store := &fakeStore{
		header: fullHeader,
		rows: []Row{
			pendingRow("EXP-001", "DRCM", "01/03/2024"),
			pendingRow("EXP-002", "LIMA", "04/03/2024"),
		},
	}
	svc := newTestService(store, time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC))

	if _, _, err := svc.Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	readsBefore := store.headerCalls

	rec, err := svc.CommitTransfer(context.Background(), "EXP-001", date(2024, time.March, 6))
	if err != nil {
		t.Fatalf("CommitTransfer: %v", err)
	}
	if rec.TransferredAt == nil || FormatTimestamp(rec.TransferredAt) != "06/03/2024 00:00:00" {
		t.Errorf("transfer date = %v, want 06/03/2024 00:00:00", rec.TransferredAt)
	}
	if rec.ElapsedDays == nil || *rec.ElapsedDays != 3 {
		t.Errorf("elapsed after transfer = %v, want 3", rec.ElapsedDays)
	}

	// full overwrite: the untouched record is rewritten too
	if len(store.writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(store.writes))
	}
	if len(store.writes[0].values) != 2 {
		t.Errorf("expected both records in the write, got %d rows", len(store.writes[0].values))
	}

	if _, _, err := svc.Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot after commit: %v", err)
	}
	if store.headerCalls <= readsBefore+1 {
		t.Errorf("commit must invalidate the snapshot cache")
	}
}

func TestCommitTransfer_StoreFailureLeavesNoCache(t *testing.T) {
	boom := errors.New("permission denied")
	store := &fakeStore{
		header:   fullHeader,
		rows:     []Row{pendingRow("EXP-001", "DRCM", "01/03/2024")},
		writeErr: boom,
	}
	svc := newTestService(store, time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC))

	_, err := svc.CommitTransfer(context.Background(), "EXP-001", date(2024, time.March, 7))
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}
