package system

import (
	"bytes"
	"math"
	"math/bits"

	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/binary"
)

const (
	// AccountStorageOverhead is the number of bytes charged for on top of an
	// account's data.
	//
	// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/rent.rs#L37
	AccountStorageOverhead = 128

	// RentSize is the size of the serialized Rent sysvar
	RentSize = 8 + 8 + 1

	DefaultLamportsPerByteYear = 3480
	DefaultExemptionThreshold  = 2.0
	DefaultBurnPercent         = 50
)

// Rent is the configuration of rent collection
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/rent.rs#L13
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
	BurnPercent         uint8
}

// DefaultRent returns the cluster default rent configuration
func DefaultRent() *Rent {
	return &Rent{
		LamportsPerByteYear: DefaultLamportsPerByteYear,
		ExemptionThreshold:  DefaultExemptionThreshold,
		BurnPercent:         DefaultBurnPercent,
	}
}

// MinimumBalance returns the minimum lamports an account with dataLen bytes of
// data needs to be rent exempt. The result saturates at math.MaxUint64.
func (r *Rent) MinimumBalance(dataLen int) uint64 {
	size := uint64(AccountStorageOverhead + dataLen)

	hi, perYear := bits.Mul64(size, r.LamportsPerByteYear)
	if hi != 0 {
		return math.MaxUint64
	}

	// float64(math.MaxUint64) rounds up to 2^64
	minimum := float64(perYear) * r.ExemptionThreshold
	if minimum >= float64(math.MaxUint64) {
		return math.MaxUint64
	}
	return uint64(minimum)
}

// IsExempt returns whether an account with the balance and data length is rent
// exempt
func (r *Rent) IsExempt(lamports uint64, dataLen int) bool {
	return lamports >= r.MinimumBalance(dataLen)
}

func (r *Rent) Marshal() []byte {
	b := make([]byte, RentSize)

	var offset int
	binary.PutUint64(b, r.LamportsPerByteYear, &offset)
	binary.PutUint64(b, math.Float64bits(r.ExemptionThreshold), &offset)
	binary.PutUint8(b, r.BurnPercent, &offset)

	return b
}

func (r *Rent) Unmarshal(data []byte) error {
	if len(data) != RentSize {
		return solana.InstructionErrorInvalidArgument
	}

	var offset int
	var threshold uint64
	binary.GetUint64(data, &r.LamportsPerByteYear, &offset)
	binary.GetUint64(data, &threshold, &offset)
	binary.GetUint8(data, &r.BurnPercent, &offset)
	r.ExemptionThreshold = math.Float64frombits(threshold)

	return nil
}

// RentFromAccountInfo reads the Rent sysvar from the account handed to a
// program. Any account other than the rent sysvar is an invalid argument.
func RentFromAccountInfo(info *solana.AccountInfo) (*Rent, error) {
	if info == nil || !bytes.Equal(info.Key, RentSysVar) || info.Account == nil {
		return nil, solana.InstructionErrorInvalidArgument
	}

	var rent Rent
	if err := rent.Unmarshal(info.Data); err != nil {
		return nil, err
	}
	return &rent, nil
}
