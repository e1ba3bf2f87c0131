package escrow

import (
	"crypto/ed25519"

	"github.com/code-payments/code-escrow/pkg/solana"
)

var (
	EscrowAuthoritySeed = []byte("escrow")
)

// GetAuthorityAddress derives the keyless custodian of deposited tokens along
// with its bump seed.
func GetAuthorityAddress(program ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		program,
		EscrowAuthoritySeed,
	)
}

// GetAuthoritySignerSeeds returns the seeds that prove the program signs for
// the custodian in a cross program invocation.
func GetAuthoritySignerSeeds(bump uint8) [][]byte {
	return [][]byte{
		EscrowAuthoritySeed,
		{bump},
	}
}
