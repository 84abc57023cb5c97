package domain

import "time"

// SnapshotRecord is a captured save-point of the whole simulated state.
type SnapshotRecord struct {
	ID        string    `json:"id"`
	RunID     int       `json:"run_id"`
	Digest    string    `json:"digest"`
	State     []byte    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}
