package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/agorahub/lootbox-client/pkg/database/query"
	"github.com/agorahub/lootbox-client/pkg/lootbox/data/alt"
)

type store struct {
	mu      sync.Mutex
	records []*alt.Record
	last    uint64
}

type ById []*alt.Record

func (a ById) Len() int           { return len(a) }
func (a ById) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a ById) Less(i, j int) bool { return a[i].Id < a[j].Id }

func New() alt.Store {
	return &store{
		records: make([]*alt.Record, 0),
	}
}

func (s *store) reset() {
	s.mu.Lock()
	s.records = make([]*alt.Record, 0)
	s.last = 0
	s.mu.Unlock()
}

func (s *store) findAddress(address string) *alt.Record {
	for _, item := range s.records {
		if item.Address == address {
			return item
		}
	}
	return nil
}

func (s *store) findByState(state alt.State) []*alt.Record {
	res := make([]*alt.Record, 0)
	for _, item := range s.records {
		if item.State == state {
			res = append(res, item)
		}
	}
	return res
}

func (s *store) filter(items []*alt.Record, cursor query.Cursor, limit uint64, direction query.Ordering) []*alt.Record {
	var start uint64
	if direction == query.Descending {
		start = s.last + 1
	}
	if len(cursor) > 0 {
		start = cursor.ToUint64()
	}

	var res []*alt.Record
	for _, item := range items {
		if item.Id > start && direction == query.Ascending {
			res = append(res, item)
		}
		if item.Id < start && direction == query.Descending {
			res = append(res, item)
		}
	}

	if direction == query.Descending {
		sort.Sort(sort.Reverse(ById(res)))
	}

	if limit > 0 && len(res) > int(limit) {
		return res[:limit]
	}
	return res
}

func (s *store) Save(ctx context.Context, data *alt.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if item := s.findAddress(data.Address); item != nil {
		item.Addresses = data.Addresses
		item.State = data.State
		item.LastSignature = data.LastSignature
		item.UpdatedAt = now

		item.CopyTo(data)
		return nil
	}

	s.last++
	data.Id = s.last
	if data.CreatedAt.IsZero() {
		data.CreatedAt = now
	}
	data.UpdatedAt = now

	c := data.Clone()
	s.records = append(s.records, &c)
	return nil
}

func (s *store) Get(ctx context.Context, address string) (*alt.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.findAddress(address); item != nil {
		cloned := item.Clone()
		return &cloned, nil
	}
	return nil, alt.ErrNotFound
}

func (s *store) GetAllByState(ctx context.Context, state alt.State, opts ...query.Option) ([]*alt.Record, error) {
	req, err := query.DefaultPaginationHandler(opts...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.filter(s.findByState(state), req.Cursor, req.Limit, req.SortBy)
	if len(res) == 0 {
		return nil, alt.ErrNotFound
	}
	return clonedRecords(res), nil
}

func (s *store) GetAll(ctx context.Context, opts ...query.Option) ([]*alt.Record, error) {
	req, err := query.DefaultPaginationHandler(opts...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.filter(s.records, req.Cursor, req.Limit, req.SortBy)
	if len(res) == 0 {
		return nil, alt.ErrNotFound
	}
	return clonedRecords(res), nil
}

func clonedRecords(items []*alt.Record) []*alt.Record {
	res := make([]*alt.Record, len(items))
	for i, item := range items {
		cloned := item.Clone()
		res[i] = &cloned
	}
	return res
}
