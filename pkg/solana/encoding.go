package solana

import (
	"bytes"
	"crypto/ed25519"
	"io"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/code-escrow/pkg/solana/shortvec"
)

var (
	ErrTransactionTooLarge = errors.New("transaction exceeds maximum size")
	ErrTrailingBytes       = errors.New("unexpected trailing bytes")
)

func (s Signature) ToBase58() string {
	return base58.Encode(s[:])
}

// Marshal encodes the transaction in the legacy wire format: a compact array
// of signatures followed by the message.
func (t Transaction) Marshal() []byte {
	var b bytes.Buffer

	writeLen(&b, len(t.Signatures))
	for _, s := range t.Signatures {
		b.Write(s[:])
	}
	t.Message.encode(&b)

	return b.Bytes()
}

// Unmarshal decodes a wire format transaction. The entire input must be
// consumed.
func (t *Transaction) Unmarshal(b []byte) error {
	if len(b) > MaxTransactionSize {
		return errors.Wrapf(ErrTransactionTooLarge, "%d bytes", len(b))
	}

	d := newDecoder(b)

	count, err := d.length("signature count")
	if err != nil {
		return err
	}
	t.Signatures = make([]Signature, count)
	for i := range t.Signatures {
		if err := d.read(t.Signatures[i][:], "signature %d", i); err != nil {
			return err
		}
	}

	if err := t.Message.decode(d); err != nil {
		return err
	}
	return d.finish()
}

func (m Message) Marshal() []byte {
	var b bytes.Buffer
	m.encode(&b)
	return b.Bytes()
}

// Unmarshal decodes a legacy message. Versioned messages are rejected.
func (m *Message) Unmarshal(b []byte) error {
	d := newDecoder(b)
	if err := m.decode(d); err != nil {
		return err
	}
	return d.finish()
}

func (m Message) encode(b *bytes.Buffer) {
	b.WriteByte(m.Header.NumSignatures)
	b.WriteByte(m.Header.NumReadonlySigned)
	b.WriteByte(m.Header.NumReadOnly)

	writeLen(b, len(m.Accounts))
	for _, a := range m.Accounts {
		b.Write(a)
	}

	b.Write(m.RecentBlockhash[:])

	writeLen(b, len(m.Instructions))
	for _, c := range m.Instructions {
		b.WriteByte(c.ProgramIndex)
		writeLen(b, len(c.Accounts))
		b.Write(c.Accounts)
		writeLen(b, len(c.Data))
		b.Write(c.Data)
	}
}

func (m *Message) decode(d *decoder) error {
	if d.Len() == 0 {
		return errors.New("empty message")
	}

	header := make([]byte, 3)
	if err := d.read(header, "message header"); err != nil {
		return err
	}
	if header[0]&0x80 != 0 {
		return errors.New("versioned messages not supported")
	}
	m.Header = Header{
		NumSignatures:     header[0],
		NumReadonlySigned: header[1],
		NumReadOnly:       header[2],
	}

	count, err := d.length("account count")
	if err != nil {
		return err
	}
	m.Accounts = make([]ed25519.PublicKey, count)
	for i := range m.Accounts {
		m.Accounts[i] = make(ed25519.PublicKey, ed25519.PublicKeySize)
		if err := d.read(m.Accounts[i], "account %d", i); err != nil {
			return err
		}
	}

	if err := d.read(m.RecentBlockhash[:], "recent blockhash"); err != nil {
		return err
	}

	if count, err = d.length("instruction count"); err != nil {
		return err
	}
	m.Instructions = make([]CompiledInstruction, count)
	for i := range m.Instructions {
		c := &m.Instructions[i]

		if c.ProgramIndex, err = d.ReadByte(); err != nil {
			return errors.Wrapf(err, "failed to read instruction %d program index", i)
		}
		if int(c.ProgramIndex) >= len(m.Accounts) {
			return errors.Errorf("instruction %d: program index %d out of range", i, c.ProgramIndex)
		}

		if c.Accounts, err = d.bytes("instruction %d accounts", i); err != nil {
			return err
		}
		for _, index := range c.Accounts {
			if int(index) >= len(m.Accounts) {
				return errors.Errorf("instruction %d: account index %d out of range", i, index)
			}
		}

		if c.Data, err = d.bytes("instruction %d data", i); err != nil {
			return err
		}
	}

	return nil
}

func writeLen(b *bytes.Buffer, n int) {
	// Lengths produced locally are bounded by the message size limits.
	_, _ = shortvec.EncodeLen(b, n)
}

type decoder struct {
	*bytes.Reader
}

func newDecoder(b []byte) *decoder {
	return &decoder{Reader: bytes.NewReader(b)}
}

func (d *decoder) length(what string) (int, error) {
	n, err := shortvec.DecodeLen(d)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read %s", what)
	}
	return n, nil
}

func (d *decoder) read(dst []byte, format string, args ...interface{}) error {
	if _, err := io.ReadFull(d, dst); err != nil {
		return errors.Wrapf(err, "failed to read "+format, args...)
	}
	return nil
}

// bytes reads a compact array of raw bytes.
func (d *decoder) bytes(format string, args ...interface{}) ([]byte, error) {
	n, err := shortvec.DecodeLen(d)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read length of "+format, args...)
	}
	if n > d.Len() {
		return nil, errors.Wrapf(io.ErrUnexpectedEOF, "failed to read "+format, args...)
	}

	out := make([]byte, n)
	if err := d.read(out, format, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *decoder) finish() error {
	if d.Len() > 0 {
		return errors.Wrapf(ErrTrailingBytes, "%d bytes", d.Len())
	}
	return nil
}
