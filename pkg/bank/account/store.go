package account

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrAccountNotFound = errors.New("account not found")
)

// Record is the persisted state of a single address. Keys are base58 encoded.
type Record struct {
	Id uint64

	Address    string
	Owner      string
	Lamports   uint64
	Data       []byte
	Executable bool

	LastUpdatedAt time.Time
}

type Store interface {
	// Get gets the account state at an address.
	//
	// ErrAccountNotFound is returned if the address has never been saved, or
	// was purged.
	Get(ctx context.Context, address string) (*Record, error)

	// SaveBatch atomically upserts a set of records. A record with zero
	// lamports is purged instead of saved. Either every record is applied or
	// none are.
	SaveBatch(ctx context.Context, records ...*Record) error

	// Count returns the number of accounts currently stored.
	Count(ctx context.Context) (uint64, error)
}

// IsPurged returns whether saving the record removes the account.
func (r *Record) IsPurged() bool {
	return r.Lamports == 0
}

func (r *Record) Validate() error {
	if len(r.Address) == 0 {
		return errors.New("address is required")
	}

	if r.IsPurged() {
		return nil
	}

	if len(r.Owner) == 0 {
		return errors.New("owner is required")
	}

	return nil
}

func (r *Record) Clone() Record {
	data := make([]byte, len(r.Data))
	copy(data, r.Data)

	return Record{
		Id:            r.Id,
		Address:       r.Address,
		Owner:         r.Owner,
		Lamports:      r.Lamports,
		Data:          data,
		Executable:    r.Executable,
		LastUpdatedAt: r.LastUpdatedAt,
	}
}
