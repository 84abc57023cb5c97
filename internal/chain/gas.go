package chain

// Gas schedule used by simulated contracts. The figures follow mainnet costs
// closely enough to compare trades with each other, not to predict fees.
const (
	GasTx        uint64 = 21000
	GasSload     uint64 = 2100
	GasSstore    uint64 = 5000
	GasTransfer  uint64 = 9000
	GasLog       uint64 = 1756
	GasIteration uint64 = 220
)
