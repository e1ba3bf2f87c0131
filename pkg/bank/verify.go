package bank

import (
	"bytes"
	"crypto/ed25519"
	"math/bits"

	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/system"
)

// verify checks the changes the frame's program made to accounts since the
// frame's baseline, and that lamports were neither minted nor burned across
// them.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/program-runtime/src/pre_account.rs#L38
func (f *frame) verify(accounts []*solana.AccountInfo) error {
	var preSum, postSum lamportSum

	seen := make(map[string]struct{}, len(accounts))
	for _, info := range accounts {
		key := string(info.Key)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		pre, ok := f.pre[key]
		if !ok {
			return solana.InstructionErrorMissingAccount
		}
		own := f.find(info.Key)
		if own == nil {
			return solana.InstructionErrorMissingAccount
		}

		if err := verifyAccount(f.programID, own.IsWritable, pre, info.Account); err != nil {
			return err
		}

		preSum.add(pre.Lamports)
		postSum.add(info.Lamports)
	}

	if preSum != postSum {
		return solana.InstructionErrorUnbalancedInstruction
	}
	return nil
}

func verifyAccount(programID ed25519.PublicKey, isWritable bool, pre, post *solana.Account) error {
	isOwner := bytes.Equal(pre.Owner, programID)

	// Only the owner may assign a new owner, and only for writable accounts
	// whose data is cleared.
	if !bytes.Equal(pre.Owner, post.Owner) {
		if !isWritable || pre.Executable || !isOwner || !isZeroed(post.Data) {
			return solana.InstructionErrorModifiedProgramID
		}
	}

	if pre.Lamports != post.Lamports {
		if !isWritable {
			return solana.InstructionErrorReadonlyLamportChange
		}
		if pre.Executable {
			return solana.InstructionErrorExecutableModified
		}
	}
	if post.Lamports < pre.Lamports && !isOwner {
		return solana.InstructionErrorExternalAccountLamportSpend
	}

	// Only the system program can resize data, and only on accounts it owns
	if len(pre.Data) != len(post.Data) {
		if !bytes.Equal(programID, system.ProgramKey[:]) || !bytes.Equal(pre.Owner, system.ProgramKey[:]) {
			return solana.InstructionErrorAccountDataSizeChanged
		}
	}

	if !bytes.Equal(pre.Data, post.Data) {
		if !isWritable {
			return solana.InstructionErrorReadonlyDataModified
		}
		if !isOwner {
			return solana.InstructionErrorExternalAccountDataModified
		}
	}

	if pre.Executable != post.Executable {
		return solana.InstructionErrorExecutableModified
	}

	return nil
}

func isZeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}

// lamportSum is an overflow free 128 bit accumulator
type lamportSum struct {
	hi, lo uint64
}

func (s *lamportSum) add(v uint64) {
	var carry uint64
	s.lo, carry = bits.Add64(s.lo, v, 0)
	s.hi += carry
}
