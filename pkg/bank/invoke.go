package bank

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/code-payments/code-escrow/pkg/solana"
)

// execution tracks the program call stack and logs of a single transaction
type execution struct {
	bank     *Bank
	maxDepth int

	stack []*frame
	logs  []string
}

// frame is a single program invocation on the call stack
type frame struct {
	exec      *execution
	programID ed25519.PublicKey
	accounts  []*solana.AccountInfo
	pre       map[string]*solana.Account
}

func newExecution(b *Bank, maxDepth int) *execution {
	return &execution{
		bank:     b,
		maxDepth: maxDepth,
	}
}

// invoke runs a program over a set of accounts and verifies the changes it made
// once it returns. caller is nil for top level instructions.
func (e *execution) invoke(ctx context.Context, caller *frame, programID ed25519.PublicKey, accounts []*solana.AccountInfo, data []byte) error {
	entrypoint, ok := e.bank.getProgram(programID)
	if !ok {
		return solana.InstructionErrorUnsupportedProgramID
	}

	if len(e.stack) >= e.maxDepth {
		return solana.InstructionErrorCallDepth
	}
	for _, f := range e.stack {
		if bytes.Equal(f.programID, programID) {
			return solana.InstructionErrorReentrancyNotAllowed
		}
	}

	if caller != nil {
		// Changes the caller made to shared accounts are settled before the
		// callee observes them.
		if err := caller.verify(accounts); err != nil {
			return err
		}
		caller.refresh(accounts)
	}

	f := &frame{
		exec:      e,
		programID: programID,
		accounts:  accounts,
		pre:       snapshot(accounts),
	}

	programAddress := base58.Encode(programID)

	e.stack = append(e.stack, f)
	e.logs = append(e.logs, fmt.Sprintf("Program %s invoke [%d]", programAddress, len(e.stack)))

	err := entrypoint(ctx, f, programID, accounts, data)
	if err == nil {
		err = f.verify(accounts)
	}

	e.stack = e.stack[:len(e.stack)-1]

	if err != nil {
		e.logs = append(e.logs, fmt.Sprintf("Program %s failed: %s", programAddress, err.Error()))
		return err
	}
	e.logs = append(e.logs, fmt.Sprintf("Program %s success", programAddress))

	if caller != nil {
		caller.refresh(accounts)
	}

	return nil
}

// Invoke implements solana.Invoker.Invoke
func (f *frame) Invoke(ctx context.Context, ix solana.Instruction, accounts ...*solana.AccountInfo) error {
	return f.InvokeSigned(ctx, ix, nil, accounts...)
}

// InvokeSigned implements solana.Invoker.InvokeSigned
//
// Privileges are taken from the caller's own view of each account, never from
// the views passed in, so a program can only extend what it was given plus the
// program derived addresses it proves through signerSeeds.
func (f *frame) InvokeSigned(ctx context.Context, ix solana.Instruction, signerSeeds [][][]byte, accounts ...*solana.AccountInfo) error {
	var signers []ed25519.PublicKey
	for _, seeds := range signerSeeds {
		signer, err := f.exec.bank.createProgramAddress(f.programID, seeds)
		if err == solana.ErrMaxSeedLengthExceeded {
			return solana.InstructionErrorMaxSeedLengthExceeded
		} else if err != nil {
			return solana.InstructionErrorInvalidSeeds
		}
		signers = append(signers, signer)
	}

	if !containsInfo(accounts, ix.Program) {
		return solana.InstructionErrorMissingAccount
	}

	callee := make([]*solana.AccountInfo, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		if !containsInfo(accounts, meta.PublicKey) {
			return solana.InstructionErrorMissingAccount
		}

		own := f.find(meta.PublicKey)
		if own == nil {
			return solana.InstructionErrorMissingAccount
		}

		if meta.IsWritable && !own.IsWritable {
			f.Log("%s's writable privilege escalated", base58.Encode(meta.PublicKey))
			return solana.InstructionErrorPrivilegeEscalation
		}
		if meta.IsSigner && !own.IsSigner && !containsKey(signers, meta.PublicKey) {
			f.Log("%s's signer privilege escalated", base58.Encode(meta.PublicKey))
			return solana.InstructionErrorPrivilegeEscalation
		}

		callee[i] = &solana.AccountInfo{
			Key:        own.Key,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
			Account:    own.Account,
		}
	}

	return f.exec.invoke(ctx, f, ix.Program, callee, ix.Data)
}

// Log implements solana.Invoker.Log
func (f *frame) Log(format string, args ...interface{}) {
	f.exec.logs = append(f.exec.logs, "Program log: "+fmt.Sprintf(format, args...))
}

func (f *frame) find(key ed25519.PublicKey) *solana.AccountInfo {
	var found *solana.AccountInfo
	for _, info := range f.accounts {
		if !bytes.Equal(info.Key, key) {
			continue
		}

		// The same account may be referenced more than once, in which case
		// the privileges are merged.
		if found == nil {
			found = &solana.AccountInfo{Key: info.Key, Account: info.Account}
		}
		found.IsSigner = found.IsSigner || info.IsSigner
		found.IsWritable = found.IsWritable || info.IsWritable
	}
	return found
}

// refresh records the current state of accounts as the frame's baseline
func (f *frame) refresh(accounts []*solana.AccountInfo) {
	for key, acc := range snapshot(accounts) {
		if _, ok := f.pre[key]; ok {
			f.pre[key] = acc
		}
	}
}

func snapshot(accounts []*solana.AccountInfo) map[string]*solana.Account {
	pre := make(map[string]*solana.Account, len(accounts))
	for _, info := range accounts {
		pre[string(info.Key)] = info.Account.Clone()
	}
	return pre
}

func containsInfo(accounts []*solana.AccountInfo, key ed25519.PublicKey) bool {
	for _, info := range accounts {
		if bytes.Equal(info.Key, key) {
			return true
		}
	}
	return false
}

func containsKey(keys []ed25519.PublicKey, key ed25519.PublicKey) bool {
	for _, k := range keys {
		if bytes.Equal(k, key) {
			return true
		}
	}
	return false
}
