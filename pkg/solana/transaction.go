package solana

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

const (
	// MaxTransactionSize taken from: https://github.com/solana-labs/solana/blob/39b3ac6a8d29e14faa1de73d8b46d390ad41797b/sdk/src/packet.rs#L9-L13
	MaxTransactionSize = 1232
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
)

type Signature [ed25519.SignatureSize]byte
type Blockhash [sha256.Size]byte

type Header struct {
	NumSignatures     byte
	NumReadonlySigned byte
	NumReadOnly       byte
}

type Message struct {
	Header          Header
	Accounts        []ed25519.PublicKey
	RecentBlockhash Blockhash
	Instructions    []CompiledInstruction
}

type Transaction struct {
	Signatures []Signature
	Message    Message
}

// NewTransaction compiles the instructions into an unsigned transaction paid
// for by payer.
func NewTransaction(payer ed25519.PublicKey, instructions ...Instruction) Transaction {
	m := compileMessage(payer, instructions)
	return Transaction{
		Signatures: make([]Signature, m.Header.NumSignatures),
		Message:    m,
	}
}

func compileMessage(payer ed25519.PublicKey, instructions []Instruction) Message {
	metas := []AccountMeta{{PublicKey: payer, IsSigner: true, IsWritable: true, isPayer: true}}
	for _, ix := range instructions {
		metas = append(metas, AccountMeta{PublicKey: ix.Program, isProgram: true})
		metas = append(metas, ix.Accounts...)
	}
	metas = mergeAccountMetas(metas)
	sortAccountMetas(metas)

	var m Message
	positions := make(map[string]byte, len(metas))
	for i, meta := range metas {
		key := meta.PublicKey
		if len(key) == 0 {
			key = make(ed25519.PublicKey, ed25519.PublicKeySize)
		}
		m.Accounts = append(m.Accounts, key)
		positions[string(meta.PublicKey)] = byte(i)

		switch {
		case meta.IsSigner && !meta.IsWritable:
			m.Header.NumSignatures++
			m.Header.NumReadonlySigned++
		case meta.IsSigner:
			m.Header.NumSignatures++
		case !meta.IsWritable:
			m.Header.NumReadOnly++
		}
	}

	for _, ix := range instructions {
		c := CompiledInstruction{
			ProgramIndex: positions[string(ix.Program)],
			Data:         ix.Data,
		}
		for _, a := range ix.Accounts {
			c.Accounts = append(c.Accounts, positions[string(a.PublicKey)])
		}
		m.Instructions = append(m.Instructions, c)
	}

	return m
}

func (t *Transaction) Signature() []byte {
	return t.Signatures[0][:]
}

func (t *Transaction) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "signatures (%d):\n", len(t.Signatures))
	for i, s := range t.Signatures {
		fmt.Fprintf(&sb, "  [%d] %s\n", i, s.ToBase58())
	}

	h := t.Message.Header
	fmt.Fprintf(&sb, "header: signers=%d readonly_signers=%d readonly=%d\n", h.NumSignatures, h.NumReadonlySigned, h.NumReadOnly)

	fmt.Fprintf(&sb, "accounts (%d):\n", len(t.Message.Accounts))
	for i, a := range t.Message.Accounts {
		fmt.Fprintf(&sb, "  [%d] %s signer=%v writable=%v\n", i, base58.Encode(a), t.Message.IsSigner(i), t.Message.IsWritable(i))
	}

	fmt.Fprintf(&sb, "instructions (%d):\n", len(t.Message.Instructions))
	for i, c := range t.Message.Instructions {
		fmt.Fprintf(&sb, "  [%d] program=%d accounts=%v data=%x\n", i, c.ProgramIndex, c.Accounts, c.Data)
	}

	return sb.String()
}

func (t *Transaction) SetBlockhash(bh Blockhash) {
	t.Message.RecentBlockhash = bh
}

func (t *Transaction) Sign(signers ...ed25519.PrivateKey) error {
	messageBytes := t.Message.Marshal()

	for _, s := range signers {
		pub := s.Public().(ed25519.PublicKey)
		index := indexOf(t.Message.Accounts, pub)
		if index < 0 {
			return errors.Errorf("signing account %s is not in the account list", base58.Encode(pub))
		}
		if index >= len(t.Signatures) {
			return errors.Errorf("signing account %s is not in the list of signers", base58.Encode(pub))
		}

		copy(t.Signatures[index][:], ed25519.Sign(s, messageBytes))
	}

	return nil
}

// VerifySignatures checks that every required signer produced a valid
// signature over the message.
func (t *Transaction) VerifySignatures() error {
	if len(t.Signatures) != int(t.Message.Header.NumSignatures) {
		return errors.Errorf("expected %d signatures, got %d", t.Message.Header.NumSignatures, len(t.Signatures))
	}
	if len(t.Message.Accounts) < len(t.Signatures) {
		return errors.Errorf("not enough accounts for %d signatures", len(t.Signatures))
	}

	messageBytes := t.Message.Marshal()
	for i, sig := range t.Signatures {
		if !ed25519.Verify(t.Message.Accounts[i], messageBytes, sig[:]) {
			return errors.Wrapf(ErrInvalidSignature, "account %s", base58.Encode(t.Message.Accounts[i]))
		}
	}

	return nil
}

// IsSigner returns whether the account at the provided index is required to sign.
func (m Message) IsSigner(index int) bool {
	return index < int(m.Header.NumSignatures)
}

// IsWritable returns whether the account at the provided index was requested
// as writable.
//
// Reference: https://docs.solana.com/developing/programming-model/transactions#account-addresses-format
func (m Message) IsWritable(index int) bool {
	numSigned := int(m.Header.NumSignatures)
	if index < numSigned {
		return index < numSigned-int(m.Header.NumReadonlySigned)
	}

	return index < len(m.Accounts)-int(m.Header.NumReadOnly)
}

// Sanitize validates the message header and every account index.
func (m Message) Sanitize() error {
	numSigned := int(m.Header.NumSignatures)
	if numSigned == 0 {
		return errors.New("message has no signers")
	}
	if numSigned > len(m.Accounts) {
		return errors.New("more signers than accounts")
	}
	if int(m.Header.NumReadonlySigned) >= numSigned {
		return errors.New("fee payer must be writable")
	}
	if int(m.Header.NumReadOnly)+numSigned > len(m.Accounts) {
		return errors.New("more readonly accounts than accounts")
	}

	for i := range m.Accounts {
		if len(m.Accounts[i]) != ed25519.PublicKeySize {
			return errors.Errorf("invalid account key at %d", i)
		}
		for j := 0; j < i; j++ {
			if bytes.Equal(m.Accounts[i], m.Accounts[j]) {
				return errors.Errorf("duplicate account key at %d", i)
			}
		}
	}

	for i, c := range m.Instructions {
		if int(c.ProgramIndex) >= len(m.Accounts) {
			return errors.Errorf("program index out of range: %d:%d", i, c.ProgramIndex)
		}
		if c.ProgramIndex == 0 {
			return errors.Errorf("fee payer cannot be a program: %d", i)
		}
		for _, index := range c.Accounts {
			if int(index) >= len(m.Accounts) {
				return errors.Errorf("account index out of range: %d:%d", i, index)
			}
		}
	}

	return nil
}

// mergeAccountMetas collapses repeated keys into the first occurrence,
// granting it the union of the requested privileges.
func mergeAccountMetas(metas []AccountMeta) []AccountMeta {
	merged := make([]AccountMeta, 0, len(metas))
	seen := make(map[string]int, len(metas))

	for _, meta := range metas {
		i, ok := seen[string(meta.PublicKey)]
		if !ok {
			seen[string(meta.PublicKey)] = len(merged)
			merged = append(merged, meta)
			continue
		}

		merged[i].IsSigner = merged[i].IsSigner || meta.IsSigner
		merged[i].IsWritable = merged[i].IsWritable || meta.IsWritable
		merged[i].isPayer = merged[i].isPayer || meta.isPayer
	}

	return merged
}

func indexOf(keys []ed25519.PublicKey, key ed25519.PublicKey) int {
	for i := range keys {
		if bytes.Equal(keys[i], key) {
			return i
		}
	}
	return -1
}
