package token

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-escrow/pkg/solana"
)

// Mainnet token account holding 9e18 base units, no delegate, no close authority
const mainnetAccountHex = "118a08c9d4cc46c576282e0daf050bbdb04f03313e35e5db3f3def69fa1eeec42b15a9cd4bef2cd809e464570d2a6cbd9bcc64e32ea4ebbcf748757bbb3dd5bd000084e2506ce67c000000000000000000000000000000000000000000000000000000000000000000000000010000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000"

func TestAccount_DecodeMainnet(t *testing.T) {
	data, err := hex.DecodeString(mainnetAccountHex)
	require.NoError(t, err)

	mint, err := base58.Decode("2BU1Xgyzqixhjaq9Pa5cNsaa1gSejLeNtDaDRv29qoZm")
	require.NoError(t, err)

	var a Account
	require.True(t, a.Unmarshal(data))
	assert.EqualValues(t, mint, a.Mint)
	assert.Equal(t, uint64(9e18), a.Amount)
	assert.Equal(t, AccountStateInitialized, a.State)
	assert.Nil(t, a.Delegate)
	assert.Nil(t, a.IsNative)
	assert.Nil(t, a.CloseAuthority)

	assert.True(t, a.IsInitialized())
	assert.False(t, a.IsFrozen())
	assert.Equal(t, data, a.Marshal())
}

func TestAccount_AllFields(t *testing.T) {
	isNative := uint64(AccountSize)
	expected := Account{
		Mint:            filledKey(1),
		Owner:           filledKey(2),
		Amount:          10,
		Delegate:        filledKey(3),
		State:           AccountStateFrozen,
		IsNative:        &isNative,
		DelegatedAmount: 4,
		CloseAuthority:  filledKey(5),
	}

	var actual Account
	require.True(t, actual.Unmarshal(expected.Marshal()))
	assert.Equal(t, expected, actual)
	assert.True(t, actual.IsInitialized())
	assert.True(t, actual.IsFrozen())

	assert.False(t, actual.Unmarshal(make([]byte, AccountSize-1)))
}

func TestGetAccount(t *testing.T) {
	state := &Account{
		Mint:  filledKey(1),
		Owner: filledKey(2),
		State: AccountStateInitialized,
	}

	info := &solana.AccountInfo{
		Key:     filledKey(9),
		Account: &solana.Account{Owner: ProgramKey, Data: state.Marshal()},
	}
	decoded, err := GetAccount(info)
	require.NoError(t, err)
	assert.Equal(t, state.Owner, decoded.Owner)

	// Freshly allocated storage is uninitialized
	info.Data = make([]byte, AccountSize)
	decoded, err = GetAccount(info)
	require.NoError(t, err)
	assert.False(t, decoded.IsInitialized())

	info.Data = info.Data[:AccountSize-1]
	_, err = GetAccount(info)
	assert.Equal(t, solana.InstructionErrorInvalidAccountData, err)
}

func filledKey(b byte) ed25519.PublicKey {
	return bytes.Repeat([]byte{b}, ed25519.PublicKeySize)
}
