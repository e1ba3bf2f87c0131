package escrow

import (
	"crypto/ed25519"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-escrow/pkg/solana"
)

func TestEscrowAccount_Layout(t *testing.T) {
	keys := generateKeys(t, 3)

	expected := &EscrowAccount{
		IsInitialized:                          true,
		InitializerPubkey:                      keys[0],
		TempTokenAccountPubkey:                 keys[1],
		InitializerTokenToReceiveAccountPubkey: keys[2],
		ExpectedAmount:                         50,
	}

	data := expected.Marshal()
	require.Len(t, data, EscrowAccountSize)
	assert.EqualValues(t, 105, EscrowAccountSize)
	assert.EqualValues(t, 1, data[0])
	assert.EqualValues(t, keys[0], data[1:33])
	assert.EqualValues(t, keys[1], data[33:65])
	assert.EqualValues(t, keys[2], data[65:97])
	assert.EqualValues(t, 50, binary.LittleEndian.Uint64(data[97:]))

	var actual EscrowAccount
	require.NoError(t, actual.Unmarshal(data))
	assert.Equal(t, expected, &actual)
}

func TestEscrowAccount_ZeroedIsUninitialized(t *testing.T) {
	var actual EscrowAccount
	require.NoError(t, actual.Unmarshal(make([]byte, EscrowAccountSize)))
	assert.False(t, actual.IsInitialized)
	assert.Zero(t, actual.ExpectedAmount)
	assert.Equal(t, make(ed25519.PublicKey, ed25519.PublicKeySize), actual.InitializerPubkey)
}

func TestEscrowAccount_InvalidData(t *testing.T) {
	var actual EscrowAccount
	assert.Equal(t, solana.InstructionErrorInvalidAccountData, actual.Unmarshal(make([]byte, EscrowAccountSize-1)))
	assert.Equal(t, solana.InstructionErrorInvalidAccountData, actual.Unmarshal(make([]byte, EscrowAccountSize+1)))

	data := make([]byte, EscrowAccountSize)
	data[0] = 2
	assert.Equal(t, solana.InstructionErrorInvalidAccountData, actual.Unmarshal(data))
}
