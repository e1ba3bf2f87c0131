package escrow

import (
	"crypto/ed25519"

	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/system"
	"github.com/code-payments/code-escrow/pkg/solana/token"
)

type InitEscrowInstructionArgs struct {
	Amount uint64
}

type InitEscrowInstructionAccounts struct {
	Initializer                      ed25519.PublicKey
	TempTokenAccount                 ed25519.PublicKey
	InitializerTokenToReceiveAccount ed25519.PublicKey
	EscrowAccount                    ed25519.PublicKey
}

func NewInitEscrowInstruction(
	accounts *InitEscrowInstructionAccounts,
	args *InitEscrowInstructionArgs,
) solana.Instruction {
	data := (&Instruction{
		Type:   InstructionTypeInitEscrow,
		Amount: args.Amount,
	}).Marshal()

	return solana.NewInstruction(
		PROGRAM_ID,
		data,
		solana.NewReadonlyAccountMeta(accounts.Initializer, true),
		solana.NewAccountMeta(accounts.TempTokenAccount, false),
		solana.NewReadonlyAccountMeta(accounts.InitializerTokenToReceiveAccount, false),
		solana.NewAccountMeta(accounts.EscrowAccount, false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
	)
}
