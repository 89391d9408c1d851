package sqlite

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/agorahub/lootbox-client/pkg/lootbox/data/alt"

	q "github.com/agorahub/lootbox-client/pkg/database/query"
	sqliteutil "github.com/agorahub/lootbox-client/pkg/database/sqlite"
)

const (
	tableName = "lootbox__alt_ledger"

	tableColumns = `id, address, authority, slot, run_id, addresses, state, last_signature, created_at, updated_at`
)

var schema = []string{`CREATE TABLE IF NOT EXISTS ` + tableName + ` (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	address TEXT NOT NULL UNIQUE,
	authority TEXT NOT NULL,
	slot INTEGER NOT NULL,
	run_id TEXT NOT NULL,
	addresses INTEGER NOT NULL,
	state INTEGER NOT NULL,
	last_signature TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS ` + tableName + `_state ON ` + tableName + ` (state)`,
}

type model struct {
	Id            int64  `db:"id"`
	Address       string `db:"address"`
	Authority     string `db:"authority"`
	Slot          int64  `db:"slot"`
	RunId         string `db:"run_id"`
	Addresses     int64  `db:"addresses"`
	State         int64  `db:"state"`
	LastSignature string `db:"last_signature"`
	CreatedAt     int64  `db:"created_at"`
	UpdatedAt     int64  `db:"updated_at"`
}

func toModel(obj *alt.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	createdAt := obj.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return &model{
		Id:            int64(obj.Id),
		Address:       obj.Address,
		Authority:     obj.Authority,
		Slot:          int64(obj.Slot),
		RunId:         obj.RunId,
		Addresses:     int64(obj.Addresses),
		State:         int64(obj.State),
		LastSignature: obj.LastSignature,
		CreatedAt:     createdAt.UnixMilli(),
		UpdatedAt:     time.Now().UnixMilli(),
	}, nil
}

func fromModel(obj *model) *alt.Record {
	return &alt.Record{
		Id:            uint64(obj.Id),
		Address:       obj.Address,
		Authority:     obj.Authority,
		Slot:          uint64(obj.Slot),
		RunId:         obj.RunId,
		Addresses:     uint32(obj.Addresses),
		State:         alt.State(obj.State),
		LastSignature: obj.LastSignature,
		CreatedAt:     time.UnixMilli(obj.CreatedAt).UTC(),
		UpdatedAt:     time.UnixMilli(obj.UpdatedAt).UTC(),
	}
}

func dbMigrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (m *model) dbSave(ctx context.Context, db *sqlx.DB) error {
	return sqliteutil.ExecuteInTx(ctx, db, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(address, authority, slot, run_id, addresses, state, last_signature, created_at, updated_at)
			VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9)
			ON CONFLICT (address)
			DO UPDATE
				SET addresses = ?5, state = ?6, last_signature = ?7, updated_at = ?9
			RETURNING ` + tableColumns

		err := tx.QueryRowxContext(
			ctx,
			query,
			m.Address,
			m.Authority,
			m.Slot,
			m.RunId,
			m.Addresses,
			m.State,
			m.LastSignature,
			m.CreatedAt,
			m.UpdatedAt,
		).StructScan(m)

		return sqliteutil.CheckNoRows(err, alt.ErrNotFound)
	})
}

func dbGet(ctx context.Context, db *sqlx.DB, address string) (*model, error) {
	res := &model{}

	query := `SELECT ` + tableColumns + ` FROM ` + tableName + ` WHERE address = ?`

	err := db.GetContext(ctx, res, query, address)
	if err != nil {
		return nil, sqliteutil.CheckNoRows(err, alt.ErrNotFound)
	}
	return res, nil
}

func dbGetAllByState(ctx context.Context, db *sqlx.DB, state alt.State, cursor q.Cursor, limit uint64, direction q.Ordering) ([]*model, error) {
	query := `SELECT ` + tableColumns + ` FROM ` + tableName + ` WHERE (state = ?)`
	return dbSelect(ctx, db, query, []interface{}{state}, cursor, limit, direction)
}

func dbGetAll(ctx context.Context, db *sqlx.DB, cursor q.Cursor, limit uint64, direction q.Ordering) ([]*model, error) {
	query := `SELECT ` + tableColumns + ` FROM ` + tableName + ` WHERE (1 = 1)`
	return dbSelect(ctx, db, query, nil, cursor, limit, direction)
}

func dbSelect(ctx context.Context, db *sqlx.DB, query string, opts []interface{}, cursor q.Cursor, limit uint64, direction q.Ordering) ([]*model, error) {
	res := []*model{}

	query, opts = q.PaginateQuery(query, opts, cursor, limit, direction)

	err := db.SelectContext(ctx, &res, query, opts...)
	if err != nil {
		return nil, sqliteutil.CheckNoRows(err, alt.ErrNotFound)
	}

	if len(res) == 0 {
		return nil, alt.ErrNotFound
	}
	return res, nil
}
