// Package telemetry accumulates one row per executed trade and exports the result.
package telemetry

import (
	"github.com/pkg/errors"
	"github.com/vadiminshakov/swapsim/internal/domain"
)

// ErrFinalized is returned when appending to a finalized recorder.
var ErrFinalized = errors.New("telemetry recorder is finalized")

// Recorder is an append-only row buffer owned by one run.
type Recorder struct {
	runID     int
	rows      []domain.TelemetryRow
	finalized bool
}

// NewRecorder creates a recorder for the given run.
func NewRecorder(runID int) *Recorder {
	return &Recorder{runID: runID, rows: make([]domain.TelemetryRow, 0)}
}

// Append adds the next row. Rows keep execution order.
func (r *Recorder) Append(row domain.TelemetryRow) error {
	if r.finalized {
		return errors.Wrapf(ErrFinalized, "run %d", r.runID)
	}
	r.rows = append(r.rows, row)
	return nil
}

// Len returns the number of recorded rows.
func (r *Recorder) Len() int {
	return len(r.rows)
}

// Finalized reports whether Finalize was called.
func (r *Recorder) Finalized() bool {
	return r.finalized
}

// Finalize stops further appends and returns the table.
func (r *Recorder) Finalize() *domain.TelemetryTable {
	r.finalized = true
	return r.Table()
}

// Table returns a copy of the rows recorded so far.
func (r *Recorder) Table() *domain.TelemetryTable {
	rows := make([]domain.TelemetryRow, len(r.rows))
	copy(rows, r.rows)
	return &domain.TelemetryTable{RunID: r.runID, Rows: rows}
}
