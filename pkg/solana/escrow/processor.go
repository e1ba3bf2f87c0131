package escrow

import (
	"context"
	"crypto/ed25519"

	"github.com/code-payments/code-escrow/pkg/solana"
)

// Process is the escrow program entrypoint. It decodes the instruction and
// routes it, along with the full account list, to the matching handler.
func Process(ctx context.Context, invoker solana.Invoker, programID ed25519.PublicKey, accounts []*solana.AccountInfo, data []byte) error {
	instruction, err := DecodeInstruction(data)
	if err != nil {
		return err
	}

	invoker.Log("Instruction: %s", instruction.Type)

	switch instruction.Type {
	case InstructionTypeInitEscrow:
		return processInitEscrow(ctx, invoker, programID, accounts, instruction.Amount)
	case InstructionTypeExchange:
		return processExchange(ctx, invoker, programID, accounts, instruction.Amount)
	default:
		return ErrorInvalidInstruction
	}
}
