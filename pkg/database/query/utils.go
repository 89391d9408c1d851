package query

import "encoding/binary"

const (
	defaultPagingLimit = 1000
)

// PaginateQuery appends cursor, ordering and limit clauses using positional
// "?" parameters.
//
// The input query string is expected as follows:
//
//	"SELECT ... WHERE (...)" <- these brackets are not optional
//
// Example:
//
//	PaginateQuery("SELECT * FROM t WHERE (state = ?)", []interface{}{2}, ToCursor(10), 5, Ascending)
//	> "SELECT * FROM t WHERE (state = ?) AND id > ? ORDER BY id ASC LIMIT ?"
func PaginateQuery(query string, opts []interface{}, cursor Cursor, limit uint64, direction Ordering) (string, []interface{}) {
	if len(cursor) > 0 {
		if direction == Ascending {
			query += " AND id > ?"
		} else {
			query += " AND id < ?"
		}

		opts = append(opts, cursor.ToUint64())
	}

	if direction == Ascending {
		query += " ORDER BY id ASC"
	} else {
		query += " ORDER BY id DESC"
	}

	if limit > 0 {
		query += " LIMIT ?"
		opts = append(opts, limit)
	}

	return query, opts
}

func DefaultPaginationHandler(opts ...Option) (*QueryOptions, error) {
	req := QueryOptions{
		Limit:     defaultPagingLimit,
		SortBy:    Ascending,
		Supported: CanLimitResults | CanSortBy | CanQueryByCursor,
	}
	if err := req.Apply(opts...); err != nil {
		return nil, ErrQueryNotSupported
	}

	if req.Limit > defaultPagingLimit {
		return nil, ErrQueryNotSupported
	}

	return &req, nil
}

// Cursor is a position in an id ordered result set.
type Cursor []byte

// ToCursor returns the cursor positioned at row id.
func ToCursor(id uint64) Cursor {
	return binary.BigEndian.AppendUint64(nil, id)
}

// ToUint64 returns the row id of the cursor, zero when malformed.
func (c Cursor) ToUint64() uint64 {
	if len(c) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(c)
}
