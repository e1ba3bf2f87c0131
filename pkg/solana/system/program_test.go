package system

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-escrow/pkg/solana"
)

func TestCreateAccount(t *testing.T) {
	keys := generateKeys(t, 3)

	instruction := CreateAccount(keys[0], keys[1], keys[2], 12345, 67890)

	command := make([]byte, 4)
	lamports := make([]byte, 8)
	binary.LittleEndian.PutUint64(lamports, 12345)
	size := make([]byte, 8)
	binary.LittleEndian.PutUint64(size, 67890)

	assert.Equal(t, command, instruction.Data[0:4])
	assert.Equal(t, lamports, instruction.Data[4:12])
	assert.Equal(t, size, instruction.Data[12:20])
	assert.Equal(t, []byte(keys[2]), instruction.Data[20:52])

	var tx solana.Transaction
	require.NoError(t, tx.Unmarshal(solana.NewTransaction(keys[0], instruction).Marshal()))

	decompiled, err := DecompileCreateAccount(tx.Message, 0)
	require.NoError(t, err)
	assert.Equal(t, decompiled.Funder, keys[0])
	assert.Equal(t, decompiled.Address, keys[1])
	assert.Equal(t, decompiled.Owner, keys[2])
	assert.EqualValues(t, decompiled.Lamports, 12345)
	assert.EqualValues(t, decompiled.Size, 67890)
}

func TestDecompileNonCreate(t *testing.T) {
	keys := generateKeys(t, 4)

	instruction := CreateAccount(keys[0], keys[1], keys[2], 12345, 67890)

	instruction.Accounts = instruction.Accounts[:1]
	_, err := DecompileCreateAccount(solana.NewTransaction(keys[0], instruction).Message, 0)
	assert.NotNil(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "invalid number of accounts"), err)

	binary.LittleEndian.PutUint32(instruction.Data, commandTransfer)
	_, err = DecompileCreateAccount(solana.NewTransaction(keys[0], instruction).Message, 0)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)

	instruction.Data = make([]byte, 3)
	_, err = DecompileCreateAccount(solana.NewTransaction(keys[0], instruction).Message, 0)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)

	instruction = CreateAccount(keys[0], keys[1], keys[2], 12345, 67890)
	instruction.Program = keys[3]
	_, err = DecompileCreateAccount(solana.NewTransaction(keys[0], instruction).Message, 0)
	assert.Equal(t, solana.ErrIncorrectProgram, err)

	_, err = DecompileCreateAccount(solana.NewTransaction(keys[0], instruction).Message, 1)
	assert.Error(t, err)
}

func TestProcess_CreateAccount(t *testing.T) {
	keys := generateKeys(t, 3)

	funder := systemAccount(keys[0], 10_000, true)
	address := systemAccount(keys[1], 0, true)

	ix := CreateAccount(keys[0], keys[1], keys[2], 2_000, 165)
	require.NoError(t, Process(context.Background(), &testInvoker{}, ProgramKey[:], []*solana.AccountInfo{funder, address}, ix.Data))

	assert.EqualValues(t, 8_000, funder.Lamports)
	assert.EqualValues(t, 2_000, address.Lamports)
	assert.Len(t, address.Data, 165)
	assert.EqualValues(t, keys[2], address.Owner)

	// Creating over an account in use
	err := Process(context.Background(), &testInvoker{}, ProgramKey[:], []*solana.AccountInfo{funder, address}, ix.Data)
	assert.Equal(t, ErrorAccountAlreadyInUse, err)

	// New account must sign
	unsigned := systemAccount(generateKeys(t, 1)[0], 0, false)
	err = Process(context.Background(), &testInvoker{}, ProgramKey[:], []*solana.AccountInfo{funder, unsigned}, ix.Data)
	assert.Equal(t, solana.InstructionErrorMissingRequiredSignature, err)

	// Insufficient funds
	fresh := systemAccount(generateKeys(t, 1)[0], 0, true)
	ix = CreateAccount(keys[0], fresh.Key, keys[2], 8_001, 0)
	err = Process(context.Background(), &testInvoker{}, ProgramKey[:], []*solana.AccountInfo{funder, fresh}, ix.Data)
	assert.Equal(t, ErrorResultWithNegativeLamports, err)
	assert.EqualValues(t, 8_000, funder.Lamports)

	// Too large
	ix = CreateAccount(keys[0], fresh.Key, keys[2], 1, MaxPermittedDataLength+1)
	err = Process(context.Background(), &testInvoker{}, ProgramKey[:], []*solana.AccountInfo{funder, fresh}, ix.Data)
	assert.Equal(t, ErrorInvalidAccountDataLength, err)

	// Missing accounts
	err = Process(context.Background(), &testInvoker{}, ProgramKey[:], []*solana.AccountInfo{funder}, ix.Data)
	assert.Equal(t, solana.InstructionErrorNotEnoughAccountKeys, err)
}

func TestProcess_Transfer(t *testing.T) {
	keys := generateKeys(t, 2)

	from := systemAccount(keys[0], 100, true)
	to := systemAccount(keys[1], math.MaxUint64-10, false)

	err := Process(context.Background(), &testInvoker{}, ProgramKey[:], []*solana.AccountInfo{from, to}, Transfer(keys[0], keys[1], 11).Data)
	assert.Equal(t, solana.InstructionErrorArithmeticOverflow, err)

	to.Lamports = 5
	require.NoError(t, Process(context.Background(), &testInvoker{}, ProgramKey[:], []*solana.AccountInfo{from, to}, Transfer(keys[0], keys[1], 60).Data))
	assert.EqualValues(t, 40, from.Lamports)
	assert.EqualValues(t, 65, to.Lamports)

	err = Process(context.Background(), &testInvoker{}, ProgramKey[:], []*solana.AccountInfo{from, to}, Transfer(keys[0], keys[1], 41).Data)
	assert.Equal(t, ErrorResultWithNegativeLamports, err)

	err = Process(context.Background(), &testInvoker{}, ProgramKey[:], []*solana.AccountInfo{to, from}, Transfer(keys[1], keys[0], 1).Data)
	assert.Equal(t, solana.InstructionErrorMissingRequiredSignature, err)

	from.Data = []byte{1}
	err = Process(context.Background(), &testInvoker{}, ProgramKey[:], []*solana.AccountInfo{from, to}, Transfer(keys[0], keys[1], 1).Data)
	assert.Equal(t, solana.InstructionErrorInvalidArgument, err)

	err = Process(context.Background(), &testInvoker{}, ProgramKey[:], []*solana.AccountInfo{from, to}, []byte{9, 0, 0, 0})
	assert.Equal(t, solana.InstructionErrorInvalidInstructionData, err)
}

func TestRent(t *testing.T) {
	rent := DefaultRent()

	assert.EqualValues(t, 890_880, rent.MinimumBalance(0))
	assert.EqualValues(t, 2_039_280, rent.MinimumBalance(165))
	assert.True(t, rent.IsExempt(2_039_280, 165))
	assert.False(t, rent.IsExempt(2_039_279, 165))

	encoded := rent.Marshal()
	assert.Len(t, encoded, RentSize)

	info := &solana.AccountInfo{
		Key: RentSysVar,
		Account: &solana.Account{
			Owner: SysvarOwner,
			Data:  encoded,
		},
	}
	decoded, err := RentFromAccountInfo(info)
	require.NoError(t, err)
	assert.Equal(t, rent, decoded)

	info.Key = generateKeys(t, 1)[0]
	_, err = RentFromAccountInfo(info)
	assert.Equal(t, solana.InstructionErrorInvalidArgument, err)

	info.Key = RentSysVar
	info.Data = encoded[:RentSize-1]
	_, err = RentFromAccountInfo(info)
	assert.Equal(t, solana.InstructionErrorInvalidArgument, err)
}

func systemAccount(key ed25519.PublicKey, lamports uint64, isSigner bool) *solana.AccountInfo {
	return &solana.AccountInfo{
		Key:        key,
		IsSigner:   isSigner,
		IsWritable: true,
		Account: &solana.Account{
			Owner:    ProgramKey[:],
			Lamports: lamports,
		},
	}
}

type testInvoker struct {
	logs []string
}

func (i *testInvoker) Invoke(context.Context, solana.Instruction, ...*solana.AccountInfo) error {
	return solana.InstructionErrorUnsupportedProgramID
}

func (i *testInvoker) InvokeSigned(context.Context, solana.Instruction, [][][]byte, ...*solana.AccountInfo) error {
	return solana.InstructionErrorUnsupportedProgramID
}

func (i *testInvoker) Log(format string, args ...interface{}) {
	i.logs = append(i.logs, fmt.Sprintf(format, args...))
}

func generateKeys(t *testing.T, amount int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, amount)

	for i := 0; i < amount; i++ {
		pub, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys[i] = pub
	}

	return keys
}

func TestRent_MinimumBalanceSaturates(t *testing.T) {
	for _, tc := range []struct {
		name     string
		rent     Rent
		dataLen  int
		expected uint64
	}{
		{"unit rate", Rent{LamportsPerByteYear: 1, ExemptionThreshold: 1}, 165, 293},
		{"product overflows", Rent{LamportsPerByteYear: math.MaxUint64, ExemptionThreshold: 2}, 165, math.MaxUint64},
		{"threshold overflows", Rent{LamportsPerByteYear: math.MaxUint64 / 293, ExemptionThreshold: 2}, 165, math.MaxUint64},
		{"zero threshold", Rent{LamportsPerByteYear: math.MaxUint64 / 293, ExemptionThreshold: 0}, 165, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.rent.MinimumBalance(tc.dataLen))
		})
	}

	huge := Rent{LamportsPerByteYear: math.MaxUint64, ExemptionThreshold: 2}
	assert.False(t, huge.IsExempt(math.MaxUint64-1, 0))
	assert.True(t, huge.IsExempt(math.MaxUint64, 0))
}
