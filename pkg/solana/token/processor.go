package token

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"math"

	"github.com/mr-tron/base58"

	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/system"
)

// Process is the entrypoint of the natively implemented token program. It
// supports the subset of commands needed to custody and move tokens between
// plain (non-native, non-multisig) accounts.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/processor.rs
func Process(_ context.Context, invoker solana.Invoker, programID ed25519.PublicKey, accounts []*solana.AccountInfo, data []byte) error {
	if len(data) == 0 {
		return ErrorInvalidInstruction
	}

	switch Command(data[0]) {
	case CommandInitializeAccount:
		invoker.Log("Instruction: InitializeAccount")
		if len(accounts) < 4 {
			return solana.InstructionErrorNotEnoughAccountKeys
		}
		return processInitializeAccount(programID, accounts[0], accounts[1], accounts[2], accounts[3])
	case CommandTransfer:
		invoker.Log("Instruction: Transfer")
		amount, err := decodeTransferData(data)
		if err != nil {
			return ErrorInvalidInstruction
		}
		if len(accounts) < 3 {
			return solana.InstructionErrorNotEnoughAccountKeys
		}
		return processTransfer(invoker, programID, accounts[0], accounts[1], accounts[2], amount)
	case CommandSetAuthority:
		invoker.Log("Instruction: SetAuthority")
		args, err := decodeSetAuthorityData(data)
		if err != nil {
			return ErrorInvalidInstruction
		}
		if len(accounts) < 2 {
			return solana.InstructionErrorNotEnoughAccountKeys
		}
		return processSetAuthority(programID, accounts[0], accounts[1], args)
	case CommandCloseAccount:
		invoker.Log("Instruction: CloseAccount")
		if len(accounts) < 3 {
			return solana.InstructionErrorNotEnoughAccountKeys
		}
		return processCloseAccount(programID, accounts[0], accounts[1], accounts[2])
	default:
		return ErrorInvalidInstruction
	}
}

func processInitializeAccount(programID ed25519.PublicKey, account, mint, owner, rentInfo *solana.AccountInfo) error {
	if !account.IsOwnedBy(programID) {
		return solana.InstructionErrorIncorrectProgramID
	}
	if len(account.Data) != AccountSize {
		return solana.InstructionErrorInvalidAccountData
	}

	state, err := GetAccount(account)
	if err != nil {
		return err
	}
	if state.IsInitialized() {
		return ErrorAlreadyInUse
	}

	rent, err := system.RentFromAccountInfo(rentInfo)
	if err != nil {
		return err
	}
	if !rent.IsExempt(account.Lamports, len(account.Data)) {
		return ErrorNotRentExempt
	}

	state = &Account{
		Mint:  clone(mint.Key),
		Owner: clone(owner.Key),
		State: AccountStateInitialized,
	}
	copy(account.Data, state.Marshal())

	return nil
}

func processTransfer(invoker solana.Invoker, programID ed25519.PublicKey, source, dest, authority *solana.AccountInfo, amount uint64) error {
	sourceState, err := loadInitialized(programID, source)
	if err != nil {
		return err
	}
	destState, err := loadInitialized(programID, dest)
	if err != nil {
		return err
	}

	if sourceState.IsFrozen() || destState.IsFrozen() {
		return ErrorAccountFrozen
	}
	if sourceState.Amount < amount {
		invoker.Log("Error: insufficient funds %d, need %d", sourceState.Amount, amount)
		return ErrorInsufficientFunds
	}
	if !bytes.Equal(sourceState.Mint, destState.Mint) {
		return ErrorMintMismatch
	}
	if err := validateOwner(sourceState.Owner, authority); err != nil {
		invoker.Log("Error: owner does not match %s", base58.Encode(authority.Key))
		return err
	}

	if bytes.Equal(source.Key, dest.Key) {
		return nil
	}
	if destState.Amount > math.MaxUint64-amount {
		return ErrorOverflow
	}

	sourceState.Amount -= amount
	destState.Amount += amount

	copy(source.Data, sourceState.Marshal())
	copy(dest.Data, destState.Marshal())

	return nil
}

func processSetAuthority(programID ed25519.PublicKey, account, currentAuthority *solana.AccountInfo, args *DecompiledSetAuthority) error {
	state, err := loadInitialized(programID, account)
	if err != nil {
		return err
	}
	if state.IsFrozen() {
		return ErrorAccountFrozen
	}

	switch args.Type {
	case AuthorityTypeAccountHolder:
		if err := validateOwner(state.Owner, currentAuthority); err != nil {
			return err
		}
		if len(args.NewAuthority) == 0 {
			return ErrorInvalidInstruction
		}

		state.Owner = args.NewAuthority
		state.Delegate = nil
		state.DelegatedAmount = 0
	case AuthorityTypeCloseAccount:
		current := state.CloseAuthority
		if len(current) == 0 {
			current = state.Owner
		}
		if err := validateOwner(current, currentAuthority); err != nil {
			return err
		}

		state.CloseAuthority = args.NewAuthority
	default:
		return ErrorAuthorityTypeNotSupported
	}

	copy(account.Data, state.Marshal())

	return nil
}

func processCloseAccount(programID ed25519.PublicKey, account, dest, authority *solana.AccountInfo) error {
	if bytes.Equal(account.Key, dest.Key) {
		return solana.InstructionErrorInvalidAccountData
	}

	state, err := loadInitialized(programID, account)
	if err != nil {
		return err
	}
	if state.IsNative == nil && state.Amount != 0 {
		return ErrorNonNativeHasBalance
	}

	closeAuthority := state.CloseAuthority
	if len(closeAuthority) == 0 {
		closeAuthority = state.Owner
	}
	if err := validateOwner(closeAuthority, authority); err != nil {
		return err
	}

	if dest.Lamports > math.MaxUint64-account.Lamports {
		return ErrorOverflow
	}

	dest.Lamports += account.Lamports
	account.Lamports = 0

	for i := range account.Data {
		account.Data[i] = 0
	}

	return nil
}

func loadInitialized(programID ed25519.PublicKey, info *solana.AccountInfo) (*Account, error) {
	if !info.IsOwnedBy(programID) {
		return nil, solana.InstructionErrorIncorrectProgramID
	}

	state, err := GetAccount(info)
	if err != nil {
		return nil, err
	}
	if !state.IsInitialized() {
		return nil, ErrorUninitializedState
	}
	return state, nil
}

func validateOwner(expected ed25519.PublicKey, authority *solana.AccountInfo) error {
	if !bytes.Equal(expected, authority.Key) {
		return ErrorOwnerMismatch
	}
	if !authority.IsSigner {
		return solana.InstructionErrorMissingRequiredSignature
	}
	return nil
}

func clone(key ed25519.PublicKey) ed25519.PublicKey {
	cloned := make(ed25519.PublicKey, len(key))
	copy(cloned, key)
	return cloned
}
