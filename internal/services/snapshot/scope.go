// Package snapshot isolates the state mutations of one simulation run so that
// independent trials start from the same baseline.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/swapsim/internal/domain"
	"go.uber.org/zap"
)

// Snapshotter captures and reapplies a serialized copy of mutable state.
// Snapshot must be deterministic: equal states serialize to equal bytes.
type Snapshotter interface {
	Snapshot(ctx context.Context) ([]byte, error)
	Restore(ctx context.Context, state []byte) error
}

// Store keeps captured save-points. It is optional.
type Store interface {
	Save(record domain.SnapshotRecord) error
}

// Tx is handed to the unit of work running inside a scope.
type Tx struct {
	runID     int
	committed bool
}

// RunID returns the run the scope was opened for.
func (tx *Tx) RunID() int {
	return tx.runID
}

// Commit keeps the mutations made inside the scope.
func (tx *Tx) Commit() {
	tx.committed = true
}

// Committed reports whether Commit was called.
func (tx *Tx) Committed() bool {
	return tx.committed
}

// Scope wraps units of work with a save-point and a guaranteed restore.
type Scope struct {
	target Snapshotter
	store  Store
	logger *zap.Logger
}

// NewScope creates a scope over target. store may be nil.
func NewScope(target Snapshotter, store Store, logger *zap.Logger) (*Scope, error) {
	if target == nil {
		return nil, errors.Wrap(domain.ErrInvalidConfiguration, "snapshot target is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scope{target: target, store: store, logger: logger}, nil
}

// Run captures the state, runs fn and restores the state on every exit path,
// including panics, unless fn committed. A failed or incomplete restore is
// reported as domain.ErrRollbackFailed.
func (s *Scope) Run(ctx context.Context, runID int, fn func(ctx context.Context, tx *Tx) error) (err error) {
	state, err := s.target.Snapshot(ctx)
	if err != nil {
		return errors.Wrapf(err, "capture snapshot for run %d", runID)
	}
	digest := crypto.Keccak256Hash(state)

	if s.store != nil {
		record := domain.SnapshotRecord{
			ID:        uuid.NewString(),
			RunID:     runID,
			Digest:    digest.Hex(),
			State:     state,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.store.Save(record); err != nil {
			return errors.Wrapf(err, "save snapshot for run %d", runID)
		}
	}

	tx := &Tx{runID: runID}

	defer func() {
		if tx.committed {
			s.logger.Debug("scope committed", zap.Int("run_id", runID))
			return
		}

		recovered := recover()
		if rerr := s.rollback(ctx, state, digest); rerr != nil {
			s.logger.Error("rollback failed", zap.Int("run_id", runID), zap.Error(rerr))
			if recovered != nil {
				panic(fmt.Sprintf("%v (while recovering from panic: %v)", rerr, recovered))
			}
			if err != nil {
				rerr = errors.Wrapf(rerr, "run %d failed with %v", runID, err)
			}
			err = rerr
			return
		}

		s.logger.Debug("scope rolled back", zap.Int("run_id", runID), zap.String("digest", digest.Hex()))
		if recovered != nil {
			panic(recovered)
		}
	}()

	return fn(ctx, tx)
}

func (s *Scope) rollback(ctx context.Context, state []byte, digest common.Hash) error {
	ctx = context.WithoutCancel(ctx)

	if err := s.target.Restore(ctx, state); err != nil {
		return errors.Wrapf(domain.ErrRollbackFailed, "restore: %v", err)
	}

	restored, err := s.target.Snapshot(ctx)
	if err != nil {
		return errors.Wrapf(domain.ErrRollbackFailed, "verify restore: %v", err)
	}
	if got := crypto.Keccak256Hash(restored); got != digest {
		return errors.Wrapf(domain.ErrRollbackFailed, "state digest %s does not match baseline %s", got.Hex(), digest.Hex())
	}

	return nil
}
