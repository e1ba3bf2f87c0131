package solana

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
)

// Account is the state backing an address.
type Account struct {
	Owner      ed25519.PublicKey
	Lamports   uint64
	Data       []byte
	Executable bool
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	cloned := &Account{
		Owner:      make(ed25519.PublicKey, len(a.Owner)),
		Lamports:   a.Lamports,
		Data:       make([]byte, len(a.Data)),
		Executable: a.Executable,
	}
	copy(cloned.Owner, a.Owner)
	copy(cloned.Data, a.Data)
	return cloned
}

// IsOwnedBy returns whether the account is owned by the provided program.
func (a *Account) IsOwnedBy(program ed25519.PublicKey) bool {
	return bytes.Equal(a.Owner, program)
}

func (a *Account) String() string {
	return fmt.Sprintf(
		"Account{owner=%s,lamports=%d,data_len=%d,executable=%v}",
		base58.Encode(a.Owner),
		a.Lamports,
		len(a.Data),
		a.Executable,
	)
}

// AccountInfo is the view of an account handed to an executing program. Views
// of the same address share the underlying Account, so changes made by a
// callee are visible to its caller.
type AccountInfo struct {
	Key        ed25519.PublicKey
	IsSigner   bool
	IsWritable bool

	*Account
}

// Invoker performs cross program invocations on behalf of an executing program.
type Invoker interface {
	// Invoke calls into another program. Signer privileges are inherited
	// from the caller's accounts.
	Invoke(ctx context.Context, ix Instruction, accounts ...*AccountInfo) error

	// InvokeSigned is Invoke where the caller additionally vouches for the
	// program derived addresses produced by signerSeeds.
	InvokeSigned(ctx context.Context, ix Instruction, signerSeeds [][][]byte, accounts ...*AccountInfo) error

	// Log records a program log message.
	Log(format string, args ...interface{})
}

// Entrypoint processes a single instruction for a program.
type Entrypoint func(ctx context.Context, invoker Invoker, programID ed25519.PublicKey, accounts []*AccountInfo, data []byte) error
