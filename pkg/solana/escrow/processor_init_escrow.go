package escrow

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/system"
	"github.com/code-payments/code-escrow/pkg/solana/token"
)

type initEscrowAccounts struct {
	initializer                      *solana.AccountInfo
	tempTokenAccount                 *solana.AccountInfo
	initializerTokenToReceiveAccount *solana.AccountInfo
	escrowAccount                    *solana.AccountInfo
	rent                             *solana.AccountInfo
	tokenProgram                     *solana.AccountInfo
}

func getInitEscrowAccounts(accounts []*solana.AccountInfo) (*initEscrowAccounts, error) {
	if len(accounts) < 6 {
		return nil, solana.InstructionErrorNotEnoughAccountKeys
	}

	return &initEscrowAccounts{
		initializer:                      accounts[0],
		tempTokenAccount:                 accounts[1],
		initializerTokenToReceiveAccount: accounts[2],
		escrowAccount:                    accounts[3],
		rent:                             accounts[4],
		tokenProgram:                     accounts[5],
	}, nil
}

func processInitEscrow(ctx context.Context, invoker solana.Invoker, programID ed25519.PublicKey, accounts []*solana.AccountInfo, amount uint64) error {
	ix, err := getInitEscrowAccounts(accounts)
	if err != nil {
		return err
	}

	if !ix.initializer.IsSigner {
		return solana.InstructionErrorMissingRequiredSignature
	}
	if !ix.initializerTokenToReceiveAccount.IsOwnedBy(token.ProgramKey) {
		return solana.InstructionErrorIncorrectProgramID
	}
	if !bytes.Equal(ix.tokenProgram.Key, token.ProgramKey) {
		return solana.InstructionErrorIncorrectProgramID
	}

	rent, err := system.RentFromAccountInfo(ix.rent)
	if err != nil {
		return err
	}
	if !rent.IsExempt(ix.escrowAccount.Lamports, len(ix.escrowAccount.Data)) {
		return ErrorNotRentExempt
	}

	if !ix.escrowAccount.IsOwnedBy(programID) {
		return solana.InstructionErrorIncorrectProgramID
	}

	var escrowInfo EscrowAccount
	if err := escrowInfo.Unmarshal(ix.escrowAccount.Data); err != nil {
		return err
	}
	if escrowInfo.IsInitialized {
		return solana.InstructionErrorAccountAlreadyInitialized
	}

	escrowInfo = EscrowAccount{
		IsInitialized:                          true,
		InitializerPubkey:                      ix.initializer.Key,
		TempTokenAccountPubkey:                 ix.tempTokenAccount.Key,
		InitializerTokenToReceiveAccountPubkey: ix.initializerTokenToReceiveAccount.Key,
		ExpectedAmount:                         amount,
	}
	copy(ix.escrowAccount.Data, escrowInfo.Marshal())

	authority, _, err := GetAuthorityAddress(programID)
	if err != nil {
		return err
	}

	invoker.Log("Calling the token program to transfer token account ownership...")
	return invoker.Invoke(
		ctx,
		token.SetAuthority(
			ix.tempTokenAccount.Key,
			ix.initializer.Key,
			authority,
			token.AuthorityTypeAccountHolder,
		),
		ix.tempTokenAccount,
		ix.initializer,
		ix.tokenProgram,
	)
}
