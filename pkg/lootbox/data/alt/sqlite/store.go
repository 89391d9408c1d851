package sqlite

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/agorahub/lootbox-client/pkg/database/query"
	"github.com/agorahub/lootbox-client/pkg/lootbox/data/alt"
)

type store struct {
	db *sqlx.DB
}

// New returns an alt.Store backed by db, creating the ledger table if needed.
func New(ctx context.Context, db *sqlx.DB) (alt.Store, error) {
	if err := dbMigrate(ctx, db); err != nil {
		return nil, errors.Wrap(err, "error creating alt ledger schema")
	}
	return &store{db: db}, nil
}

// Save creates or updates a table record.
func (s *store) Save(ctx context.Context, record *alt.Record) error {
	obj, err := toModel(record)
	if err != nil {
		return err
	}

	if err := obj.dbSave(ctx, s.db); err != nil {
		return err
	}

	fromModel(obj).CopyTo(record)
	return nil
}

// Get finds the record for a given table address.
//
// Returns ErrNotFound if no record is found.
func (s *store) Get(ctx context.Context, address string) (*alt.Record, error) {
	obj, err := dbGet(ctx, s.db, address)
	if err != nil {
		return nil, err
	}
	return fromModel(obj), nil
}

// GetAllByState returns table records in the provided state.
//
// Returns ErrNotFound if no records are found.
func (s *store) GetAllByState(ctx context.Context, state alt.State, opts ...query.Option) ([]*alt.Record, error) {
	req, err := query.DefaultPaginationHandler(opts...)
	if err != nil {
		return nil, err
	}

	models, err := dbGetAllByState(ctx, s.db, state, req.Cursor, req.Limit, req.SortBy)
	if err != nil {
		return nil, err
	}
	return fromModels(models), nil
}

// GetAll returns every table record.
//
// Returns ErrNotFound if no records are found.
func (s *store) GetAll(ctx context.Context, opts ...query.Option) ([]*alt.Record, error) {
	req, err := query.DefaultPaginationHandler(opts...)
	if err != nil {
		return nil, err
	}

	models, err := dbGetAll(ctx, s.db, req.Cursor, req.Limit, req.SortBy)
	if err != nil {
		return nil, err
	}
	return fromModels(models), nil
}

func fromModels(models []*model) []*alt.Record {
	res := make([]*alt.Record, len(models))
	for i, m := range models {
		res[i] = fromModel(m)
	}
	return res
}
