package alt

import (
	"context"
	"errors"

	"github.com/agorahub/lootbox-client/pkg/database/query"
)

var (
	ErrNotFound = errors.New("address lookup table record not found")
)

type Store interface {
	// Save creates or updates a table record, keyed by address.
	Save(ctx context.Context, record *Record) error

	// Get finds the record for a given table address.
	//
	// Returns ErrNotFound if no record is found.
	Get(ctx context.Context, address string) (*Record, error)

	// GetAllByState returns table records in the provided state.
	//
	// Returns ErrNotFound if no records are found.
	GetAllByState(ctx context.Context, state State, opts ...query.Option) ([]*Record, error)

	// GetAll returns every table record.
	//
	// Returns ErrNotFound if no records are found.
	GetAll(ctx context.Context, opts ...query.Option) ([]*Record, error)
}
