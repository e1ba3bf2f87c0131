package system

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"math"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/code-escrow/pkg/solana"
)

var ProgramKey [32]byte

// MaxPermittedDataLength is the largest account the system program allocates
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/system_instruction.rs#L28
const MaxPermittedDataLength = 10 * 1024 * 1024

const (
	commandCreateAccount uint32 = iota
	commandAssign
	commandTransfer
)

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/system_instruction.rs#L11
const (
	ErrorAccountAlreadyInUse solana.CustomError = iota
	ErrorResultWithNegativeLamports
	ErrorInvalidProgramId
	ErrorInvalidAccountDataLength
)

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L58-L72
func CreateAccount(funder, address, owner ed25519.PublicKey, lamports, size uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE, SIGNER] New account
	data := make([]byte, 4+2*8+32)
	binary.LittleEndian.PutUint32(data, commandCreateAccount)
	binary.LittleEndian.PutUint64(data[4:], lamports)
	binary.LittleEndian.PutUint64(data[4+8:], size)
	copy(data[4+2*8:], owner)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, true),
	)
}

// Transfer moves lamports between two system owned accounts.
func Transfer(from, to ed25519.PublicKey, lamports uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE] Recipient account
	data := make([]byte, 4+8)
	binary.LittleEndian.PutUint32(data, commandTransfer)
	binary.LittleEndian.PutUint64(data[4:], lamports)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(from, true),
		solana.NewAccountMeta(to, false),
	)
}

type DecompiledCreateAccount struct {
	Funder  ed25519.PublicKey
	Address ed25519.PublicKey

	Lamports uint64
	Size     uint64
	Owner    ed25519.PublicKey
}

func DecompileCreateAccount(m solana.Message, index int) (*DecompiledCreateAccount, error) {
	i, err := m.DecompileInstruction(index)
	if err != nil {
		return nil, err
	}

	if !bytes.Equal(i.Program, ProgramKey[:]) {
		return nil, solana.ErrIncorrectProgram
	}
	if len(i.Data) < 4 || binary.LittleEndian.Uint32(i.Data) != commandCreateAccount {
		return nil, solana.ErrIncorrectInstruction
	}

	if len(i.Accounts) != 2 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}

	v, err := decodeCreateAccountData(i.Data)
	if err != nil {
		return nil, err
	}
	v.Funder = i.Accounts[0].PublicKey
	v.Address = i.Accounts[1].PublicKey
	return v, nil
}

func decodeCreateAccountData(data []byte) (*DecompiledCreateAccount, error) {
	if len(data) != 52 {
		return nil, errors.Errorf("invalid instruction data size: %d", len(data))
	}

	v := &DecompiledCreateAccount{
		Lamports: binary.LittleEndian.Uint64(data[4:]),
		Size:     binary.LittleEndian.Uint64(data[4+8:]),
		Owner:    make(ed25519.PublicKey, ed25519.PublicKeySize),
	}
	copy(v.Owner, data[4+2*8:])
	return v, nil
}

// Process is the entrypoint of the natively implemented system program. It
// supports account creation and lamport transfers.
func Process(_ context.Context, invoker solana.Invoker, _ ed25519.PublicKey, accounts []*solana.AccountInfo, data []byte) error {
	if len(data) < 4 {
		return solana.InstructionErrorInvalidInstructionData
	}

	switch binary.LittleEndian.Uint32(data) {
	case commandCreateAccount:
		invoker.Log("Instruction: CreateAccount")

		decoded, err := decodeCreateAccountData(data)
		if err != nil {
			return solana.InstructionErrorInvalidInstructionData
		}
		if len(accounts) < 2 {
			return solana.InstructionErrorNotEnoughAccountKeys
		}
		return processCreateAccount(invoker, accounts[0], accounts[1], decoded)
	case commandTransfer:
		invoker.Log("Instruction: Transfer")

		if len(data) != 12 {
			return solana.InstructionErrorInvalidInstructionData
		}
		if len(accounts) < 2 {
			return solana.InstructionErrorNotEnoughAccountKeys
		}
		return processTransfer(invoker, accounts[0], accounts[1], binary.LittleEndian.Uint64(data[4:]))
	default:
		return solana.InstructionErrorInvalidInstructionData
	}
}

func processCreateAccount(invoker solana.Invoker, funder, address *solana.AccountInfo, args *DecompiledCreateAccount) error {
	if !funder.IsSigner || !address.IsSigner {
		return solana.InstructionErrorMissingRequiredSignature
	}

	if address.Lamports > 0 || len(address.Data) > 0 || !address.IsOwnedBy(ProgramKey[:]) {
		invoker.Log("Create Account: account %s already in use", base58.Encode(address.Key))
		return ErrorAccountAlreadyInUse
	}
	if args.Size > MaxPermittedDataLength {
		return ErrorInvalidAccountDataLength
	}
	if funder.Lamports < args.Lamports {
		invoker.Log("Transfer: insufficient lamports %d, need %d", funder.Lamports, args.Lamports)
		return ErrorResultWithNegativeLamports
	}

	address.Data = make([]byte, args.Size)
	address.Owner = args.Owner

	funder.Lamports -= args.Lamports
	address.Lamports += args.Lamports

	return nil
}

func processTransfer(invoker solana.Invoker, from, to *solana.AccountInfo, lamports uint64) error {
	if !from.IsSigner {
		return solana.InstructionErrorMissingRequiredSignature
	}
	if len(from.Data) > 0 {
		invoker.Log("Transfer: `from` must not carry data")
		return solana.InstructionErrorInvalidArgument
	}
	if from.Lamports < lamports {
		invoker.Log("Transfer: insufficient lamports %d, need %d", from.Lamports, lamports)
		return ErrorResultWithNegativeLamports
	}

	if bytes.Equal(from.Key, to.Key) {
		return nil
	}
	if to.Lamports > math.MaxUint64-lamports {
		return solana.InstructionErrorArithmeticOverflow
	}

	from.Lamports -= lamports
	to.Lamports += lamports

	return nil
}
