package expediente

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrCaseNotFound is returned when no record matches the requested case id.
	ErrCaseNotFound = errors.New("expediente: case not found")
	// ErrTransferBeforeToday rejects a transfer date earlier than the current day.
	ErrTransferBeforeToday = errors.New("expediente: transfer date before today")
)

// Store is the row-oriented record store the service runs against. Row and
// column indexes are 1-based; row 1 is the header and data starts at row 2.
// WriteRange is a full rectangular overwrite — there is no per-row patch and
// no optimistic concurrency token, so across sessions the last writer wins.
type Store interface {
	Header(ctx context.Context) ([]string, error)
	Records(ctx context.Context) ([]Row, error)
	WriteRange(ctx context.Context, row, col int, values [][]string) error
	FormatCells(ctx context.Context, cells []CellFormat) error
}

// Service loads the case-file table, recomputes aging fields, and writes the
// derived state back. It owns no record lifecycle: rows are never created or
// deleted here.
type Service struct {
	store Store
	log   logrus.FieldLogger
	now   func() time.Time
	runID func() string
	ttl   time.Duration

	group  singleflight.Group
	mu     sync.Mutex
	cached *snapshot
}

type snapshot struct {
	header  []string
	records []Record
	taken   time.Time
}

// NewService wires a Service against a store. ttl bounds how long a loaded
// snapshot may serve reads before the sheet is consulted again.
func NewService(store Store, log logrus.FieldLogger, ttl time.Duration) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{
		store: store,
		log:   log,
		now:   time.Now,
		runID: uuid.NewString,
		ttl:   ttl,
	}
}

// WithClock overrides the time source, mainly for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithRunID overrides the per-pass identifier generator, mainly for tests.
func (s *Service) WithRunID(gen func() string) *Service {
	s.runID = gen
	return s
}

// Snapshot returns the header and the normalized, recomputed record set.
// Concurrent callers within the TTL window share one store read.
func (s *Service) Snapshot(ctx context.Context) ([]string, []Record, error) {
	if header, records, ok := s.cachedSnapshot(); ok {
		return header, records, nil
	}
	v, err, _ := s.group.Do("snapshot", func() (any, error) {
		header, records, err := s.loadLive(ctx)
		if err != nil {
			return nil, err
		}
		s.storeSnapshot(header, records)
		return &snapshot{header: header, records: records}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	snap := v.(*snapshot)
	return snap.header, snap.records, nil
}

// Refresh runs the self-healing pass: load the live table, recompute every
// derived field, and write the whole block plus its urgency formatting back.
func (s *Service) Refresh(ctx context.Context) ([]string, []Record, error) {
	log := s.log.WithField("run_id", s.runID())
	header, records, err := s.loadLive(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := s.syncAll(ctx, header, records); err != nil {
		log.WithError(err).Error("record synchronization failed")
		return nil, nil, err
	}
	log.WithField("records", len(records)).Info("records synchronized")
	s.storeSnapshot(header, records)
	return header, records, nil
}

// Units lists the distinct organizational units present in the table,
// sorted, empty values skipped.
func (s *Service) Units(ctx context.Context) ([]string, error) {
	_, records, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	units := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.Unit == "" || seen[rec.Unit] {
			continue
		}
		seen[rec.Unit] = true
		units = append(units, rec.Unit)
	}
	sort.Strings(units)
	return units, nil
}

// PendingByUnit runs the self-healing pass and returns the records of one
// organizational unit that are still pending. Access gating happens upstream;
// this is only the queue filter.
func (s *Service) PendingByUnit(ctx context.Context, unit string) ([]Record, error) {
	_, records, err := s.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]Record, 0, len(records))
	for _, rec := range records {
		if equalsFold(rec.Unit, unit) && rec.Pending() {
			pending = append(pending, rec)
		}
	}
	return pending, nil
}

// CommitTransfer sets the transfer date of one case and rewrites the full
// record set so every derived field stays consistent. The date must not
// precede the current day; invalid input is rejected before any store call.
// On a store failure nothing is cached and the error propagates unchanged.
func (s *Service) CommitTransfer(ctx context.Context, caseID string, date time.Time) (Record, error) {
	if caseID == "" {
		return Record{}, fmt.Errorf("expediente: missing case id")
	}
	day := dateOnly(date)
	if day.Before(dateOnly(s.now())) {
		return Record{}, ErrTransferBeforeToday
	}

	// Re-read live state so the rewrite is based on the freshest snapshot
	// available, matching the save path of the sheet's other writers.
	header, records, err := s.loadLive(ctx)
	if err != nil {
		return Record{}, err
	}
	idx := -1
	for i, rec := range records {
		if rec.CaseID == caseID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Record{}, ErrCaseNotFound
	}
	records[idx].TransferredAt = &day

	if err := s.syncAll(ctx, header, records); err != nil {
		return Record{}, err
	}
	s.invalidate()
	s.log.WithFields(logrus.Fields{
		"run_id":  s.runID(),
		"case_id": caseID,
	}).Info("transfer date committed")
	return records[idx], nil
}

// loadLive reads header and rows from the store and rebuilds the record set,
// normalizing dates and rederiving the elapsed counts.
func (s *Service) loadLive(ctx context.Context) ([]string, []Record, error) {
	header, err := s.store.Header(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("expediente: read header: %w", err)
	}
	rows, err := s.store.Records(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("expediente: read records: %w", err)
	}
	ref := dateOnly(s.now())
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := decodeRow(row)
		rec.ElapsedDays = elapsedFor(rec, ref)
		records = append(records, rec)
	}
	return header, records, nil
}

// syncAll rederives every elapsed count, overwrites the full data block in
// the header's column order, and recolors the elapsed-days column per tier.
// With unchanged source data it is idempotent.
func (s *Service) syncAll(ctx context.Context, header []string, records []Record) error {
	ref := dateOnly(s.now())
	for i := range records {
		records[i].ElapsedDays = elapsedFor(records[i], ref)
	}
	rows, selected := serializeRows(header, records)
	if len(rows) == 0 {
		return nil
	}
	if err := s.store.WriteRange(ctx, dataStartRow, 1, rows); err != nil {
		return fmt.Errorf("expediente: write records: %w", err)
	}

	col := -1
	for i, name := range selected {
		if name == ColElapsedDays {
			col = i + 1
			break
		}
	}
	if col < 0 {
		// header has no elapsed-days column, nothing to color
		return nil
	}
	batch := make([]CellFormat, 0, len(records))
	for i, rec := range records {
		batch = append(batch, CellFormat{
			Row:        dataStartRow + i,
			Col:        col,
			Background: TierColor(ClassifyElapsed(rec.ElapsedDays)),
		})
	}
	if err := s.store.FormatCells(ctx, batch); err != nil {
		return fmt.Errorf("expediente: format urgency column: %w", err)
	}
	return nil
}

func (s *Service) cachedSnapshot() ([]string, []Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached == nil || s.now().Sub(s.cached.taken) >= s.ttl {
		return nil, nil, false
	}
	return s.cached.header, s.cached.records, true
}

func (s *Service) storeSnapshot(header []string, records []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = &snapshot{header: header, records: records, taken: s.now()}
}

func (s *Service) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
}
