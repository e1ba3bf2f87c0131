package escrow

import (
	"crypto/ed25519"

	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/token"
)

type ExchangeInstructionArgs struct {
	Amount uint64
}

type ExchangeInstructionAccounts struct {
	Taker                            ed25519.PublicKey
	TakerSendingTokenAccount         ed25519.PublicKey
	TakerTokenToReceiveAccount       ed25519.PublicKey
	TempTokenAccount                 ed25519.PublicKey
	Initializer                      ed25519.PublicKey
	InitializerTokenToReceiveAccount ed25519.PublicKey
	EscrowAccount                    ed25519.PublicKey
}

func NewExchangeInstruction(
	accounts *ExchangeInstructionAccounts,
	args *ExchangeInstructionArgs,
) (solana.Instruction, error) {
	authority, _, err := GetAuthorityAddress(PROGRAM_ID)
	if err != nil {
		return solana.Instruction{}, err
	}

	data := (&Instruction{
		Type:   InstructionTypeExchange,
		Amount: args.Amount,
	}).Marshal()

	return solana.NewInstruction(
		PROGRAM_ID,
		data,
		solana.NewReadonlyAccountMeta(accounts.Taker, true),
		solana.NewAccountMeta(accounts.TakerSendingTokenAccount, false),
		solana.NewAccountMeta(accounts.TakerTokenToReceiveAccount, false),
		solana.NewAccountMeta(accounts.TempTokenAccount, false),
		solana.NewAccountMeta(accounts.Initializer, false),
		solana.NewAccountMeta(accounts.InitializerTokenToReceiveAccount, false),
		solana.NewAccountMeta(accounts.EscrowAccount, false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
		solana.NewReadonlyAccountMeta(authority, false),
	), nil
}
