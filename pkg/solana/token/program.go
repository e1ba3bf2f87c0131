package token

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/system"
)

// ProgramKey is the address of the token program.
//
// Current key: TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA
var ProgramKey = ed25519.PublicKey{6, 221, 246, 225, 215, 101, 161, 147, 217, 203, 225, 70, 206, 235, 121, 172, 28, 180, 133, 237, 95, 91, 55, 145, 58, 140, 245, 133, 126, 255, 0, 169}

type Command byte

const (
	CommandInitializeMint Command = iota
	CommandInitializeAccount
	CommandInitializeMultisig
	CommandTransfer
	CommandApprove
	CommandRevoke
	CommandSetAuthority
	CommandMintTo
	CommandBurn
	CommandCloseAccount

	CommandUnknown = Command(math.MaxUint8)
)

// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/error.rs
const (
	ErrorNotRentExempt solana.CustomError = iota
	ErrorInsufficientFunds
	ErrorInvalidMint
	ErrorMintMismatch
	ErrorOwnerMismatch
	ErrorFixedSupply
	ErrorAlreadyInUse
	ErrorInvalidNumberOfProvidedSigners
	ErrorInvalidNumberOfRequiredSigners
	ErrorUninitializedState
	ErrorNativeNotSupported
	ErrorNonNativeHasBalance
	ErrorInvalidInstruction
	ErrorInvalidState
	ErrorOverflow
	ErrorAuthorityTypeNotSupported
	ErrorMintCannotFreeze
	ErrorAccountFrozen
	ErrorMintDecimalsMismatch
)

type AuthorityType byte

const (
	AuthorityTypeMintTokens AuthorityType = iota
	AuthorityTypeFreezeAccount
	AuthorityTypeAccountHolder
	AuthorityTypeCloseAccount
)

// GetCommand returns the command of the token instruction at index.
func GetCommand(m solana.Message, index int) (Command, error) {
	ix, err := m.DecompileInstruction(index)
	if err != nil {
		return CommandUnknown, err
	}
	if !bytes.Equal(ix.Program, ProgramKey) {
		return CommandUnknown, solana.ErrIncorrectProgram
	}
	if len(ix.Data) == 0 {
		return CommandUnknown, errors.New("token instruction missing data")
	}
	return Command(ix.Data[0]), nil
}

// decompile returns the account keys and data of the token instruction at
// index, after checking it carries the expected command and at least
// minAccounts accounts.
func decompile(m solana.Message, index int, command Command, minAccounts int) ([]ed25519.PublicKey, []byte, error) {
	ix, err := m.DecompileInstruction(index)
	if err != nil {
		return nil, nil, err
	}
	if !bytes.Equal(ix.Program, ProgramKey) {
		return nil, nil, solana.ErrIncorrectProgram
	}
	if len(ix.Data) == 0 || Command(ix.Data[0]) != command {
		return nil, nil, solana.ErrIncorrectInstruction
	}
	if len(ix.Accounts) < minAccounts {
		return nil, nil, errors.Errorf("invalid number of accounts: %d", len(ix.Accounts))
	}

	keys := make([]ed25519.PublicKey, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		keys[i] = meta.PublicKey
	}
	return keys, ix.Data, nil
}

// InitializeAccount builds an instruction that initializes a token account
// for mint, held by owner.
//
// Accounts:
//
//	0. [writable] account
//	1. [] mint
//	2. [] owner
//	3. [] rent sysvar
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L41-L55
func InitializeAccount(account, mint, owner ed25519.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandInitializeAccount)},
		solana.NewAccountMeta(account, true),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(owner, false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
	)
}

type DecompiledInitializeAccount struct {
	Account ed25519.PublicKey
	Mint    ed25519.PublicKey
	Owner   ed25519.PublicKey
}

func DecompileInitializeAccount(m solana.Message, index int) (*DecompiledInitializeAccount, error) {
	keys, data, err := decompile(m, index, CommandInitializeAccount, 0)
	if err != nil {
		return nil, err
	}
	if len(data) != 1 {
		return nil, solana.ErrIncorrectInstruction
	}
	if len(keys) != 4 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(keys))
	}
	if !bytes.Equal(keys[3], system.RentSysVar) {
		return nil, errors.New("invalid rent program")
	}

	return &DecompiledInitializeAccount{Account: keys[0], Mint: keys[1], Owner: keys[2]}, nil
}

// SetAuthority builds an instruction that hands the authority of the given
// type over to newAuthority. A nil newAuthority clears it.
//
// Accounts:
//
//	0. [writable] account or mint
//	1. [signer] current authority
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L128-L139
func SetAuthority(account, currentAuthority, newAuthority ed25519.PublicKey, authorityType AuthorityType) solana.Instruction {
	data := []byte{byte(CommandSetAuthority), byte(authorityType), 0}
	if len(newAuthority) > 0 {
		data[2] = 1
		data = append(data, newAuthority...)
	}

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(currentAuthority, true),
	)
}

type DecompiledSetAuthority struct {
	Account          ed25519.PublicKey
	CurrentAuthority ed25519.PublicKey
	NewAuthority     ed25519.PublicKey
	Type             AuthorityType
}

func DecompileSetAuthority(m solana.Message, index int) (*DecompiledSetAuthority, error) {
	keys, data, err := decompile(m, index, CommandSetAuthority, 2)
	if err != nil {
		return nil, err
	}

	decompiled, err := decodeSetAuthorityData(data)
	if err != nil {
		return nil, err
	}
	decompiled.Account = keys[0]
	decompiled.CurrentAuthority = keys[1]
	return decompiled, nil
}

// decodeSetAuthorityData parses [command, type, option, key?].
func decodeSetAuthorityData(data []byte) (*DecompiledSetAuthority, error) {
	const header = 3

	if len(data) < header {
		return nil, errors.Errorf("invalid data size: %d (expect at least %d)", len(data), header)
	}

	decompiled := &DecompiledSetAuthority{Type: AuthorityType(data[1])}

	expected := header
	switch data[2] {
	case 0:
	case 1:
		expected += ed25519.PublicKeySize
	default:
		return nil, errors.Errorf("invalid option flag: %d", data[2])
	}
	if len(data) != expected {
		return nil, errors.Errorf("invalid data size: %d (expect %d)", len(data), expected)
	}

	if data[2] == 1 {
		decompiled.NewAuthority = append(ed25519.PublicKey(nil), data[header:]...)
	}
	return decompiled, nil
}

// Transfer builds an instruction moving amount tokens from source to dest.
//
// Accounts:
//
//	0. [writable] source
//	1. [writable] destination
//	2. [signer] source owner
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L76-L91
func Transfer(source, dest, owner ed25519.PublicKey, amount uint64) solana.Instruction {
	data := make([]byte, 1+8)
	data[0] = byte(CommandTransfer)
	binary.LittleEndian.PutUint64(data[1:], amount)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(source, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

type DecompiledTransfer struct {
	Source      ed25519.PublicKey
	Destination ed25519.PublicKey
	Owner       ed25519.PublicKey
	Amount      uint64
}

func DecompileTransfer(m solana.Message, index int) (*DecompiledTransfer, error) {
	keys, data, err := decompile(m, index, CommandTransfer, 3)
	if err != nil {
		return nil, err
	}

	amount, err := decodeTransferData(data)
	if err != nil {
		return nil, err
	}

	return &DecompiledTransfer{Source: keys[0], Destination: keys[1], Owner: keys[2], Amount: amount}, nil
}

func decodeTransferData(data []byte) (uint64, error) {
	if len(data) != 9 {
		return 0, errors.Errorf("invalid instruction data size: %d", len(data))
	}
	return binary.LittleEndian.Uint64(data[1:]), nil
}

// CloseAccount builds an instruction that closes account, sweeping its
// lamports into dest. Token accounts must be empty to be closed.
//
// Accounts:
//
//	0. [writable] account
//	1. [writable] destination
//	2. [signer] owner or close authority
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L183-L197
func CloseAccount(account, dest, owner ed25519.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandCloseAccount)},
		solana.NewAccountMeta(account, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

type DecompiledCloseAccount struct {
	Account     ed25519.PublicKey
	Destination ed25519.PublicKey
	Owner       ed25519.PublicKey
}

func DecompileCloseAccount(m solana.Message, index int) (*DecompiledCloseAccount, error) {
	keys, data, err := decompile(m, index, CommandCloseAccount, 0)
	if err != nil {
		return nil, err
	}
	if len(data) != 1 {
		return nil, solana.ErrIncorrectInstruction
	}
	if len(keys) < 3 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(keys))
	}

	return &DecompiledCloseAccount{Account: keys[0], Destination: keys[1], Owner: keys[2]}, nil
}
