package bank

import (
	"crypto/ed25519"
	"encoding/hex"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/code-payments/code-escrow/pkg/solana"
)

// createProgramAddress is solana.CreateProgramAddress backed by the bank's
// address cache. Failed derivations are not cached.
func (b *Bank) createProgramAddress(program ed25519.PublicKey, seeds [][]byte) (ed25519.PublicKey, error) {
	key := addressCacheKey(program, seeds)
	if cached, ok := b.addresses.Retrieve(key); ok {
		return cached.(ed25519.PublicKey), nil
	}

	address, err := solana.CreateProgramAddress(program, seeds...)
	if err != nil {
		return nil, err
	}

	// A concurrent derivation may have inserted the same address first
	_ = b.addresses.Insert(key, address, 1)
	return address, nil
}

func addressCacheKey(program ed25519.PublicKey, seeds [][]byte) string {
	var sb strings.Builder
	sb.WriteString(base58.Encode(program))
	for _, seed := range seeds {
		sb.WriteByte(':')
		sb.WriteString(hex.EncodeToString(seed))
	}
	return sb.String()
}
