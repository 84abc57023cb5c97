// Package timetravel moves the simulated chain clock forward.
package timetravel

import (
	"github.com/pkg/errors"
	"github.com/vadiminshakov/swapsim/internal/domain"
)

// Advancer advances a clock and keeps its block number in step with elapsed time.
type Advancer struct {
	blockDuration int64
}

// New creates an advancer for the given block duration in seconds.
func New(blockDuration int64) (*Advancer, error) {
	if blockDuration <= 0 {
		return nil, errors.Wrapf(domain.ErrInvalidConfiguration, "block duration must be positive, got %d", blockDuration)
	}
	return &Advancer{blockDuration: blockDuration}, nil
}

// BlockDuration returns the configured seconds per block.
func (a *Advancer) BlockDuration() int64 {
	return a.blockDuration
}

// Advance moves the clock forward by seconds. The block number grows by
// seconds / blockDuration for this call alone, so advances shorter than a block
// never produce a new block, however many of them are made.
func (a *Advancer) Advance(clock *domain.Clock, seconds int64) error {
	if seconds < 0 {
		return errors.Wrapf(domain.ErrInvalidDuration, "cannot advance by %d seconds", seconds)
	}
	if clock == nil {
		return errors.Wrap(domain.ErrInvalidConfiguration, "clock is nil")
	}

	clock.Timestamp += seconds
	clock.BlockNumber += seconds / a.blockDuration

	return nil
}
