package domain

// DefaultBlockDuration is the number of seconds per block.
const DefaultBlockDuration = 12

// Clock is the simulated chain clock: a timestamp in seconds and a block number derived from it.
type Clock struct {
	Timestamp   int64 `json:"timestamp"`
	BlockNumber int64 `json:"block_number"`
}

// NewClock creates a clock at the given genesis time and block.
func NewClock(timestamp, blockNumber int64) *Clock {
	return &Clock{Timestamp: timestamp, BlockNumber: blockNumber}
}
