package escrow

import "github.com/code-payments/code-escrow/pkg/solana"

const (
	// Invalid instruction
	ErrorInvalidInstruction solana.CustomError = iota

	// Escrow storage is not rent exempt
	ErrorNotRentExempt

	// The taker's declared amount differs from the custodied balance
	ErrorExpectedAmountMismatch

	// Combining lamport balances overflowed
	ErrorAmountOverflow
)
