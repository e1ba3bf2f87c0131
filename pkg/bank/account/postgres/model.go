package postgres

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/code-payments/code-escrow/pkg/bank/account"
	pgutil "github.com/code-payments/code-escrow/pkg/database/postgres"
)

const (
	tableName = "escrow__core_account"
)

type model struct {
	Id            sql.NullInt64 `db:"id"`
	Address       string        `db:"address"`
	Owner         string        `db:"owner"`
	Lamports      string        `db:"lamports"`
	Data          []byte        `db:"data"`
	Executable    bool          `db:"executable"`
	LastUpdatedAt time.Time     `db:"last_updated_at"`
}

func toModel(obj *account.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	data := obj.Data
	if data == nil {
		data = []byte{}
	}

	return &model{
		Address:       obj.Address,
		Owner:         obj.Owner,
		Lamports:      strconv.FormatUint(obj.Lamports, 10),
		Data:          data,
		Executable:    obj.Executable,
		LastUpdatedAt: obj.LastUpdatedAt,
	}, nil
}

func fromModel(obj *model) (*account.Record, error) {
	lamports, err := strconv.ParseUint(obj.Lamports, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid lamports for %s", obj.Address)
	}

	return &account.Record{
		Id:            uint64(obj.Id.Int64),
		Address:       obj.Address,
		Owner:         obj.Owner,
		Lamports:      lamports,
		Data:          obj.Data,
		Executable:    obj.Executable,
		LastUpdatedAt: obj.LastUpdatedAt,
	}, nil
}

func (m *model) dbPut(ctx context.Context, tx *sqlx.Tx) error {
	query := `INSERT INTO ` + tableName + `
		(address, owner, lamports, data, executable, last_updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6)

		ON CONFLICT (address)
		DO UPDATE
			SET owner = $2, lamports = $3::numeric, data = $4, executable = $5, last_updated_at = $6
			WHERE ` + tableName + `.address = $1

		RETURNING id, address, owner, lamports::text AS lamports, data, executable, last_updated_at
	`

	m.LastUpdatedAt = time.Now()

	return tx.QueryRowxContext(
		ctx,
		query,
		m.Address,
		m.Owner,
		m.Lamports,
		m.Data,
		m.Executable,
		m.LastUpdatedAt.UTC(),
	).StructScan(m)
}

func dbDelete(ctx context.Context, tx *sqlx.Tx, address string) error {
	query := `DELETE FROM ` + tableName + `
		WHERE address = $1
	`

	_, err := tx.ExecContext(ctx, query, address)
	return err
}

func dbGet(ctx context.Context, db *sqlx.DB, address string) (*model, error) {
	var res model
	query := `SELECT id, address, owner, lamports::text AS lamports, data, executable, last_updated_at FROM ` + tableName + `
		WHERE address = $1
	`

	err := db.GetContext(ctx, &res, query, address)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, account.ErrAccountNotFound)
	}
	return &res, nil
}

func dbCount(ctx context.Context, db *sqlx.DB) (uint64, error) {
	var res uint64
	query := `SELECT COUNT(*) FROM ` + tableName

	err := db.GetContext(ctx, &res, query)
	if err != nil {
		return 0, err
	}
	return res, nil
}
