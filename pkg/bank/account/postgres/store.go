package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/code-escrow/pkg/bank/account"
	pgutil "github.com/code-payments/code-escrow/pkg/database/postgres"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres-backed account.Store over a client opened with
// pg.NewWithUsernameAndPassword.
func New(db *sqlx.DB) account.Store {
	return &store{
		db: db,
	}
}

// Get implements account.Store.Get
func (s *store) Get(ctx context.Context, address string) (*account.Record, error) {
	model, err := dbGet(ctx, s.db, address)
	if err != nil {
		return nil, err
	}

	return fromModel(model)
}

// SaveBatch implements account.Store.SaveBatch
func (s *store) SaveBatch(ctx context.Context, records ...*account.Record) error {
	models := make([]*model, len(records))
	for i, record := range records {
		if record.IsPurged() {
			if err := record.Validate(); err != nil {
				return err
			}
			continue
		}

		m, err := toModel(record)
		if err != nil {
			return err
		}
		models[i] = m
	}

	err := pgutil.ExecuteRetryable(func() error {
		return pgutil.ExecuteInTx(ctx, s.db, sql.LevelSerializable, func(tx *sqlx.Tx) error {
			for i, record := range records {
				if models[i] == nil {
					if err := dbDelete(ctx, tx, record.Address); err != nil {
						return err
					}
					continue
				}

				if err := models[i].dbPut(ctx, tx); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	for i, record := range records {
		if models[i] == nil {
			continue
		}

		saved, err := fromModel(models[i])
		if err != nil {
			return err
		}
		record.Id = saved.Id
		record.LastUpdatedAt = saved.LastUpdatedAt
	}

	return nil
}

// Count implements account.Store.Count
func (s *store) Count(ctx context.Context) (uint64, error) {
	return dbCount(ctx, s.db)
}
