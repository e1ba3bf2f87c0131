package escrow

import "github.com/code-payments/code-escrow/pkg/solana/binary"

type InstructionType uint8

const (
	InstructionTypeInitEscrow InstructionType = iota
	InstructionTypeExchange
)

const (
	InstructionSize = (1 + // discriminator
		8) // amount
)

func (t InstructionType) String() string {
	switch t {
	case InstructionTypeInitEscrow:
		return "InitEscrow"
	case InstructionTypeExchange:
		return "Exchange"
	}
	return "Unknown"
}

// Instruction is a decoded escrow instruction. For InitEscrow the amount is
// what the initializer expects to receive, for Exchange it is what the taker
// expects to receive from the custodied account.
type Instruction struct {
	Type   InstructionType
	Amount uint64
}

func (i *Instruction) Marshal() []byte {
	data := make([]byte, InstructionSize)

	var offset int
	binary.PutUint8(data, uint8(i.Type), &offset)
	binary.PutUint64(data, i.Amount, &offset)

	return data
}

// DecodeInstruction decodes instruction data. Bytes following the amount are
// ignored.
func DecodeInstruction(data []byte) (*Instruction, error) {
	if len(data) < InstructionSize {
		return nil, ErrorInvalidInstruction
	}

	var offset int
	var discriminator uint8
	decoded := &Instruction{}
	binary.GetUint8(data, &discriminator, &offset)
	binary.GetUint64(data, &decoded.Amount, &offset)
	decoded.Type = InstructionType(discriminator)

	switch decoded.Type {
	case InstructionTypeInitEscrow, InstructionTypeExchange:
		return decoded, nil
	default:
		return nil, ErrorInvalidInstruction
	}
}
