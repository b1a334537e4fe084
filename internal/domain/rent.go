package domain

// Rent parameters of the host ledger.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionYears      uint64
}

// AccountStorageOverhead is the per-account metadata size charged on top of
// the data length.
const AccountStorageOverhead = 128

// DefaultRent returns the ledger's default rent schedule.
func DefaultRent() Rent {
	return Rent{
		LamportsPerByteYear: 3480,
		ExemptionYears:      2,
	}
}

// MinimumBalance returns the lamports an account of dataLen bytes must hold
// to be exempt from rent collection.
func (r Rent) MinimumBalance(dataLen int) uint64 {
	return (AccountStorageOverhead + uint64(dataLen)) * r.LamportsPerByteYear * r.ExemptionYears
}
