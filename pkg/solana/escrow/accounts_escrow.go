package escrow

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/binary"
)

const (
	EscrowAccountSize = (1 + // is_initialized
		32 + // initializer
		32 + // temp_token_account
		32 + // initializer_token_to_receive_account
		8) // expected_amount
)

type EscrowAccount struct {
	IsInitialized                          bool
	InitializerPubkey                      ed25519.PublicKey
	TempTokenAccountPubkey                 ed25519.PublicKey
	InitializerTokenToReceiveAccountPubkey ed25519.PublicKey
	ExpectedAmount                         uint64
}

func (obj *EscrowAccount) Marshal() []byte {
	data := make([]byte, EscrowAccountSize)

	var offset int

	binary.PutBool(data, obj.IsInitialized, &offset)
	binary.PutKey(data, obj.InitializerPubkey, &offset)
	binary.PutKey(data, obj.TempTokenAccountPubkey, &offset)
	binary.PutKey(data, obj.InitializerTokenToReceiveAccountPubkey, &offset)
	binary.PutUint64(data, obj.ExpectedAmount, &offset)

	return data
}

func (obj *EscrowAccount) Unmarshal(data []byte) error {
	if len(data) != EscrowAccountSize {
		return solana.InstructionErrorInvalidAccountData
	}

	var offset int

	if err := binary.GetBool(data, &obj.IsInitialized, &offset); err != nil {
		return solana.InstructionErrorInvalidAccountData
	}
	binary.GetKey(data, &obj.InitializerPubkey, &offset)
	binary.GetKey(data, &obj.TempTokenAccountPubkey, &offset)
	binary.GetKey(data, &obj.InitializerTokenToReceiveAccountPubkey, &offset)
	binary.GetUint64(data, &obj.ExpectedAmount, &offset)

	return nil
}

func (obj *EscrowAccount) String() string {
	return fmt.Sprintf(
		"EscrowAccount{is_initialized=%v,initializer=%s,temp_token_account=%s,initializer_token_to_receive_account=%s,expected_amount=%d}",
		obj.IsInitialized,
		base58.Encode(obj.InitializerPubkey),
		base58.Encode(obj.TempTokenAccountPubkey),
		base58.Encode(obj.InitializerTokenToReceiveAccountPubkey),
		obj.ExpectedAmount,
	)
}
