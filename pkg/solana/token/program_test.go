package token

import (
	"crypto/ed25519"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/system"
)

type metaExpectation struct {
	signer   bool
	writable bool
}

func TestBuilders_Layout(t *testing.T) {
	account, mint, owner, dest := randomKey(t), randomKey(t), randomKey(t), randomKey(t)

	amount := make([]byte, 8)
	binary.LittleEndian.PutUint64(amount, 123456789)

	for _, tc := range []struct {
		name     string
		ix       solana.Instruction
		data     []byte
		accounts []ed25519.PublicKey
		metas    []metaExpectation
	}{
		{
			name:     "initialize account",
			ix:       InitializeAccount(account, mint, owner),
			data:     []byte{byte(CommandInitializeAccount)},
			accounts: []ed25519.PublicKey{account, mint, owner, system.RentSysVar},
			metas:    []metaExpectation{{true, true}, {}, {}, {}},
		},
		{
			name:     "transfer",
			ix:       Transfer(account, dest, owner, 123456789),
			data:     append([]byte{byte(CommandTransfer)}, amount...),
			accounts: []ed25519.PublicKey{account, dest, owner},
			metas:    []metaExpectation{{writable: true}, {writable: true}, {signer: true}},
		},
		{
			name:     "set authority",
			ix:       SetAuthority(account, owner, dest, AuthorityTypeAccountHolder),
			data:     append([]byte{byte(CommandSetAuthority), byte(AuthorityTypeAccountHolder), 1}, dest...),
			accounts: []ed25519.PublicKey{account, owner},
			metas:    []metaExpectation{{writable: true}, {signer: true}},
		},
		{
			name:     "clear authority",
			ix:       SetAuthority(account, owner, nil, AuthorityTypeCloseAccount),
			data:     []byte{byte(CommandSetAuthority), byte(AuthorityTypeCloseAccount), 0},
			accounts: []ed25519.PublicKey{account, owner},
			metas:    []metaExpectation{{writable: true}, {signer: true}},
		},
		{
			name:     "close account",
			ix:       CloseAccount(account, dest, owner),
			data:     []byte{byte(CommandCloseAccount)},
			accounts: []ed25519.PublicKey{account, dest, owner},
			metas:    []metaExpectation{{writable: true}, {writable: true}, {signer: true}},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, ProgramKey, tc.ix.Program)
			assert.Equal(t, tc.data, tc.ix.Data)

			require.Len(t, tc.ix.Accounts, len(tc.accounts))
			for i, meta := range tc.ix.Accounts {
				assert.Equal(t, tc.accounts[i], meta.PublicKey, i)
				assert.Equal(t, tc.metas[i].signer, meta.IsSigner, i)
				assert.Equal(t, tc.metas[i].writable, meta.IsWritable, i)
			}
		})
	}
}

func TestDecompile_RoundTrip(t *testing.T) {
	payer, account, mint, owner, dest := randomKey(t), randomKey(t), randomKey(t), randomKey(t), randomKey(t)

	tx := solana.NewTransaction(
		payer,
		InitializeAccount(account, mint, owner),
		SetAuthority(account, owner, dest, AuthorityTypeAccountHolder),
		Transfer(account, dest, owner, 42),
		CloseAccount(account, dest, owner),
	)

	for i, expected := range []Command{
		CommandInitializeAccount,
		CommandSetAuthority,
		CommandTransfer,
		CommandCloseAccount,
	} {
		cmd, err := GetCommand(tx.Message, i)
		require.NoError(t, err)
		assert.Equal(t, expected, cmd)
	}

	initialized, err := DecompileInitializeAccount(tx.Message, 0)
	require.NoError(t, err)
	assert.Equal(t, &DecompiledInitializeAccount{Account: account, Mint: mint, Owner: owner}, initialized)

	authority, err := DecompileSetAuthority(tx.Message, 1)
	require.NoError(t, err)
	assert.Equal(t, &DecompiledSetAuthority{
		Account:          account,
		CurrentAuthority: owner,
		NewAuthority:     dest,
		Type:             AuthorityTypeAccountHolder,
	}, authority)

	transfer, err := DecompileTransfer(tx.Message, 2)
	require.NoError(t, err)
	assert.Equal(t, &DecompiledTransfer{Source: account, Destination: dest, Owner: owner, Amount: 42}, transfer)

	closed, err := DecompileCloseAccount(tx.Message, 3)
	require.NoError(t, err)
	assert.Equal(t, &DecompiledCloseAccount{Account: account, Destination: dest, Owner: owner}, closed)

	// Decompiling with the wrong command for an index
	_, err = DecompileTransfer(tx.Message, 0)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)
	_, err = DecompileCloseAccount(tx.Message, 2)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)

	_, err = GetCommand(tx.Message, 4)
	assert.Error(t, err)
	_, err = DecompileTransfer(tx.Message, 4)
	assert.Error(t, err)
}

func TestDecompile_NoNewAuthority(t *testing.T) {
	payer, account, owner := randomKey(t), randomKey(t), randomKey(t)

	tx := solana.NewTransaction(payer, SetAuthority(account, owner, nil, AuthorityTypeCloseAccount))

	decompiled, err := DecompileSetAuthority(tx.Message, 0)
	require.NoError(t, err)
	assert.Equal(t, account, decompiled.Account)
	assert.Equal(t, owner, decompiled.CurrentAuthority)
	assert.Nil(t, decompiled.NewAuthority)
	assert.Equal(t, AuthorityTypeCloseAccount, decompiled.Type)
}

func TestDecompile_Rejects(t *testing.T) {
	payer, account, mint, owner, dest := randomKey(t), randomKey(t), randomKey(t), randomKey(t), randomKey(t)

	withData := func(ix solana.Instruction, data []byte) solana.Instruction {
		ix.Data = data
		return ix
	}
	withAccounts := func(ix solana.Instruction, n int) solana.Instruction {
		ix.Accounts = ix.Accounts[:n]
		return ix
	}

	badRent := InitializeAccount(account, mint, owner)
	badRent.Accounts[3] = solana.NewReadonlyAccountMeta(dest, false)

	foreign := Transfer(account, dest, owner, 1)
	foreign.Program = randomKey(t)

	for _, tc := range []struct {
		name      string
		ix        solana.Instruction
		decompile func(solana.Message) error
		expected  error
		contains  string
	}{
		{
			name:      "foreign program",
			ix:        foreign,
			decompile: transferDecompiler,
			expected:  solana.ErrIncorrectProgram,
		},
		{
			name:      "initialize with extra data",
			ix:        withData(InitializeAccount(account, mint, owner), []byte{byte(CommandInitializeAccount), 0}),
			decompile: initializeDecompiler,
			expected:  solana.ErrIncorrectInstruction,
		},
		{
			name:      "initialize missing rent sysvar",
			ix:        withAccounts(InitializeAccount(account, mint, owner), 3),
			decompile: initializeDecompiler,
			contains:  "invalid number of accounts",
		},
		{
			name:      "initialize with wrong rent sysvar",
			ix:        badRent,
			decompile: initializeDecompiler,
			contains:  "invalid rent program",
		},
		{
			name:      "set authority missing current authority",
			ix:        withAccounts(SetAuthority(account, owner, dest, AuthorityTypeAccountHolder), 1),
			decompile: setAuthorityDecompiler,
			contains:  "invalid number of accounts",
		},
		{
			name:      "set authority truncated header",
			ix:        withData(SetAuthority(account, owner, dest, AuthorityTypeAccountHolder), []byte{byte(CommandSetAuthority), 2}),
			decompile: setAuthorityDecompiler,
			contains:  "invalid data size",
		},
		{
			name:      "set authority truncated key",
			ix:        withData(SetAuthority(account, owner, dest, AuthorityTypeAccountHolder), []byte{byte(CommandSetAuthority), 2, 1, 7}),
			decompile: setAuthorityDecompiler,
			contains:  "invalid data size",
		},
		{
			name:      "set authority none with trailing key",
			ix:        withData(SetAuthority(account, owner, dest, AuthorityTypeAccountHolder), append([]byte{byte(CommandSetAuthority), 2, 0}, dest...)),
			decompile: setAuthorityDecompiler,
			contains:  "invalid data size",
		},
		{
			name:      "set authority bad option flag",
			ix:        withData(SetAuthority(account, owner, dest, AuthorityTypeAccountHolder), []byte{byte(CommandSetAuthority), 2, 2}),
			decompile: setAuthorityDecompiler,
			contains:  "invalid option flag",
		},
		{
			name:      "transfer missing owner",
			ix:        withAccounts(Transfer(account, dest, owner, 1), 2),
			decompile: transferDecompiler,
			contains:  "invalid number of accounts",
		},
		{
			name:      "transfer short amount",
			ix:        withData(Transfer(account, dest, owner, 1), []byte{byte(CommandTransfer), 1, 0, 0}),
			decompile: transferDecompiler,
			contains:  "invalid instruction data size",
		},
		{
			name:      "close with extra data",
			ix:        withData(CloseAccount(account, dest, owner), []byte{byte(CommandCloseAccount), 1}),
			decompile: closeDecompiler,
			expected:  solana.ErrIncorrectInstruction,
		},
		{
			name:      "close missing owner",
			ix:        withAccounts(CloseAccount(account, dest, owner), 2),
			decompile: closeDecompiler,
			contains:  "invalid number of accounts",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tx := solana.NewTransaction(payer, tc.ix)

			err := tc.decompile(tx.Message)
			require.Error(t, err)
			if tc.expected != nil {
				assert.Equal(t, tc.expected, err)
			}
			if tc.contains != "" {
				assert.Contains(t, err.Error(), tc.contains)
			}
		})
	}
}

func TestGetCommand_Rejects(t *testing.T) {
	payer, account := randomKey(t), randomKey(t)

	empty := solana.NewInstruction(ProgramKey, nil, solana.NewAccountMeta(account, false))
	tx := solana.NewTransaction(payer, empty)
	_, err := GetCommand(tx.Message, 0)
	assert.Error(t, err)

	foreign := solana.NewInstruction(randomKey(t), []byte{byte(CommandTransfer)}, solana.NewAccountMeta(account, false))
	tx = solana.NewTransaction(payer, foreign)
	cmd, err := GetCommand(tx.Message, 0)
	assert.Equal(t, solana.ErrIncorrectProgram, err)
	assert.Equal(t, CommandUnknown, cmd)
}

func initializeDecompiler(m solana.Message) error {
	_, err := DecompileInitializeAccount(m, 0)
	return err
}

func setAuthorityDecompiler(m solana.Message) error {
	_, err := DecompileSetAuthority(m, 0)
	return err
}

func transferDecompiler(m solana.Message) error {
	_, err := DecompileTransfer(m, 0)
	return err
}

func closeDecompiler(m solana.Message) error {
	_, err := DecompileCloseAccount(m, 0)
	return err
}

func randomKey(t *testing.T) ed25519.PublicKey {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return pub
}
