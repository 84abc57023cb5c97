// Package telemetrydb persists telemetry tables in SQLite.
package telemetrydb

import (
	"context"
	"database/sql"
	_ "embed"
	"math/big"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/swapsim/internal/domain"
	"github.com/vadiminshakov/swapsim/pkg/retrier"
)

//go:embed schema.sql
var schemaSQL string

// Store writes finished runs into a SQLite database. Simulations running
// concurrently may share one database file.
type Store struct {
	db    *sql.DB
	retry *retrier.Retrier
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open telemetry database")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connect to telemetry database")
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "execute %q", pragma)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply telemetry schema")
	}

	return &Store{db: db, retry: retrier.New(retrier.WithRetryIf(isBusy))}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun stores the run and all of its rows in one transaction. The
// transaction is retried while another writer holds the database lock.
func (s *Store) SaveRun(ctx context.Context, scenario string, state domain.RunState, runErr error, table *domain.TelemetryTable) error {
	if table == nil {
		return errors.New("telemetry table is required")
	}
	return s.retry.Do(ctx, func(ctx context.Context) error {
		return s.saveRun(ctx, scenario, state, runErr, table)
	})
}

func (s *Store) saveRun(ctx context.Context, scenario string, state domain.RunState, runErr error, table *domain.TelemetryTable) (err error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin telemetry transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO runs (scenario, run_id, state, error, row_count, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		scenario, table.RunID, string(state), errText, table.Len(), time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return errors.Wrapf(err, "insert run %s/%d", scenario, table.RunID)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO telemetry_rows (
		scenario, run_id, trade_index, block_timestamp, block_number, direction,
		price_oracle, virtual_price, p, dx, dy,
		pool_a_before, pool_b_before, pool_a_after, pool_b_after, swap_fee, gas_used
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "prepare telemetry insert")
	}
	defer stmt.Close()

	for i, row := range table.Rows {
		if _, err = stmt.ExecContext(ctx,
			scenario, table.RunID, i, row.Timestamp, row.BlockNumber, row.Direction.String(),
			text(row.OraclePrice), text(row.VirtualPrice), text(row.SpotPrice), text(row.AmountIn), text(row.AmountOut),
			text(row.PoolBefore.A), text(row.PoolBefore.B), text(row.PoolAfter.A), text(row.PoolAfter.B),
			text(row.Fee), int64(row.GasUsed),
		); err != nil {
			return errors.Wrapf(err, "insert telemetry row %d", i)
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit telemetry transaction")
	}

	return nil
}

// NextRunID returns one past the highest run id stored for scenario, or 0.
func (s *Store) NextRunID(ctx context.Context, scenario string) (int, error) {
	var maxID sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(run_id) FROM runs WHERE scenario = ?`, scenario).Scan(&maxID); err != nil {
		return 0, errors.Wrap(err, "query max run id")
	}
	if !maxID.Valid {
		return 0, nil
	}
	return int(maxID.Int64) + 1, nil
}

// RowCount returns the number of stored rows of a run.
func (s *Store) RowCount(ctx context.Context, scenario string, runID int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM telemetry_rows WHERE scenario = ? AND run_id = ?`, scenario, runID,
	).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "count telemetry rows")
	}
	return n, nil
}

// AmountsIn returns the dx column of a run in trade order.
func (s *Store) AmountsIn(ctx context.Context, scenario string, runID int) ([]*big.Int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT dx FROM telemetry_rows WHERE scenario = ? AND run_id = ? ORDER BY trade_index`, scenario, runID)
	if err != nil {
		return nil, errors.Wrap(err, "query telemetry rows")
	}
	defer rows.Close()

	out := make([]*big.Int, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.Wrap(err, "scan telemetry row")
		}
		v, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return nil, errors.Errorf("invalid stored amount %q", raw)
		}
		out = append(out, v)
	}

	return out, errors.Wrap(rows.Err(), "iterate telemetry rows")
}

func isBusy(err error) bool {
	var serr sqlite3.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked
}

func text(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
