package escrow

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"math"

	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/token"
)

type exchangeAccounts struct {
	taker                            *solana.AccountInfo
	takerSendingTokenAccount         *solana.AccountInfo
	takerTokenToReceiveAccount       *solana.AccountInfo
	tempTokenAccount                 *solana.AccountInfo
	initializer                      *solana.AccountInfo
	initializerTokenToReceiveAccount *solana.AccountInfo
	escrowAccount                    *solana.AccountInfo
	tokenProgram                     *solana.AccountInfo
	authority                        *solana.AccountInfo
}

func getExchangeAccounts(accounts []*solana.AccountInfo) (*exchangeAccounts, error) {
	if len(accounts) < 9 {
		return nil, solana.InstructionErrorNotEnoughAccountKeys
	}

	return &exchangeAccounts{
		taker:                            accounts[0],
		takerSendingTokenAccount:         accounts[1],
		takerTokenToReceiveAccount:       accounts[2],
		tempTokenAccount:                 accounts[3],
		initializer:                      accounts[4],
		initializerTokenToReceiveAccount: accounts[5],
		escrowAccount:                    accounts[6],
		tokenProgram:                     accounts[7],
		authority:                        accounts[8],
	}, nil
}

func processExchange(ctx context.Context, invoker solana.Invoker, programID ed25519.PublicKey, accounts []*solana.AccountInfo, amountExpectedByTaker uint64) error {
	ix, err := getExchangeAccounts(accounts)
	if err != nil {
		return err
	}

	if !ix.taker.IsSigner {
		return solana.InstructionErrorMissingRequiredSignature
	}
	if !bytes.Equal(ix.tokenProgram.Key, token.ProgramKey) {
		return solana.InstructionErrorIncorrectProgramID
	}
	if !ix.escrowAccount.IsOwnedBy(programID) {
		return solana.InstructionErrorIncorrectProgramID
	}

	if !ix.tempTokenAccount.IsOwnedBy(token.ProgramKey) {
		return solana.InstructionErrorInvalidAccountData
	}
	tempTokenInfo, err := token.GetAccount(ix.tempTokenAccount)
	if err != nil {
		return err
	}
	if !tempTokenInfo.IsInitialized() {
		return solana.InstructionErrorInvalidAccountData
	}
	if amountExpectedByTaker != tempTokenInfo.Amount {
		invoker.Log("Error: expected %d, escrow holds %d", amountExpectedByTaker, tempTokenInfo.Amount)
		return ErrorExpectedAmountMismatch
	}

	authority, bump, err := GetAuthorityAddress(programID)
	if err != nil {
		return err
	}
	if !bytes.Equal(ix.authority.Key, authority) {
		return solana.InstructionErrorInvalidSeeds
	}

	var escrowInfo EscrowAccount
	if err := escrowInfo.Unmarshal(ix.escrowAccount.Data); err != nil {
		return err
	}
	if !escrowInfo.IsInitialized {
		return solana.InstructionErrorUninitializedAccount
	}
	if !bytes.Equal(escrowInfo.TempTokenAccountPubkey, ix.tempTokenAccount.Key) {
		return solana.InstructionErrorInvalidAccountData
	}
	if !bytes.Equal(escrowInfo.InitializerPubkey, ix.initializer.Key) {
		return solana.InstructionErrorInvalidAccountData
	}
	if !bytes.Equal(escrowInfo.InitializerTokenToReceiveAccountPubkey, ix.initializerTokenToReceiveAccount.Key) {
		return solana.InstructionErrorInvalidAccountData
	}

	invoker.Log("Calling the token program to transfer tokens to the escrow's initializer...")
	err = invoker.Invoke(
		ctx,
		token.Transfer(
			ix.takerSendingTokenAccount.Key,
			ix.initializerTokenToReceiveAccount.Key,
			ix.taker.Key,
			escrowInfo.ExpectedAmount,
		),
		ix.takerSendingTokenAccount,
		ix.initializerTokenToReceiveAccount,
		ix.taker,
		ix.tokenProgram,
	)
	if err != nil {
		return err
	}

	signerSeeds := [][][]byte{GetAuthoritySignerSeeds(bump)}

	invoker.Log("Calling the token program to transfer tokens to the taker...")
	err = invoker.InvokeSigned(
		ctx,
		token.Transfer(
			ix.tempTokenAccount.Key,
			ix.takerTokenToReceiveAccount.Key,
			authority,
			tempTokenInfo.Amount,
		),
		signerSeeds,
		ix.tempTokenAccount,
		ix.takerTokenToReceiveAccount,
		ix.authority,
		ix.tokenProgram,
	)
	if err != nil {
		return err
	}

	invoker.Log("Calling the token program to close pda's temp account...")
	err = invoker.InvokeSigned(
		ctx,
		token.CloseAccount(
			ix.tempTokenAccount.Key,
			ix.initializer.Key,
			authority,
		),
		signerSeeds,
		ix.tempTokenAccount,
		ix.initializer,
		ix.authority,
		ix.tokenProgram,
	)
	if err != nil {
		return err
	}

	invoker.Log("Closing the escrow account...")
	if ix.initializer.Lamports > math.MaxUint64-ix.escrowAccount.Lamports {
		return ErrorAmountOverflow
	}
	ix.initializer.Lamports += ix.escrowAccount.Lamports
	ix.escrowAccount.Lamports = 0

	for i := range ix.escrowAccount.Data {
		ix.escrowAccount.Data[i] = 0
	}

	return nil
}
