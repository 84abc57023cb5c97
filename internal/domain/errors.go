// Package domain defines core data structures used throughout the swap simulator.
package domain

import "github.com/pkg/errors"

var (
	// ErrInvalidRange is returned for malformed random walk parameters.
	ErrInvalidRange = errors.New("invalid range")
	// ErrInvalidDuration is returned when time is asked to move backwards.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrInvalidConfiguration is returned for malformed run parameters.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrTradeRejected is returned when the exchange refuses a submission.
	ErrTradeRejected = errors.New("trade rejected")
	// ErrRollbackFailed means a snapshot could not be restored and state is no longer trusted.
	ErrRollbackFailed = errors.New("rollback failed")
)
