package tests

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agorahub/lootbox-client/pkg/database/query"
	"github.com/agorahub/lootbox-client/pkg/lootbox/data/alt"
)

func RunTests(t *testing.T, s alt.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s alt.Store){
		testRoundTrip,
		testUpdate,
		testSaveInvalid,
		testGetAllByState,
		testGetAll,
	} {
		tf(t, s)
		teardown()
	}
}

func newRecord(address string, state alt.State) *alt.Record {
	return &alt.Record{
		Address:   address,
		Authority: "test_authority",
		Slot:      1234,
		RunId:     "test_run",
		Addresses: 28,
		State:     state,
	}
}

func testRoundTrip(t *testing.T, s alt.Store) {
	ctx := context.Background()

	actual, err := s.Get(ctx, "test_address")
	assert.Equal(t, alt.ErrNotFound, err)
	assert.Nil(t, actual)

	expected := newRecord("test_address", alt.StateCreated)
	expected.LastSignature = "test_signature"
	require.NoError(t, s.Save(ctx, expected))
	assert.EqualValues(t, 1, expected.Id)
	assert.False(t, expected.CreatedAt.IsZero())
	assert.False(t, expected.UpdatedAt.IsZero())

	actual, err = s.Get(ctx, "test_address")
	require.NoError(t, err)
	assert.EqualValues(t, 1, actual.Id)
	assert.Equal(t, expected.Address, actual.Address)
	assert.Equal(t, expected.Authority, actual.Authority)
	assert.Equal(t, expected.Slot, actual.Slot)
	assert.Equal(t, expected.RunId, actual.RunId)
	assert.Equal(t, expected.Addresses, actual.Addresses)
	assert.Equal(t, expected.State, actual.State)
	assert.Equal(t, expected.LastSignature, actual.LastSignature)
	assert.True(t, actual.IsOpen())
}

func testUpdate(t *testing.T, s alt.Store) {
	ctx := context.Background()

	expected := newRecord("test_address", alt.StateCreated)
	require.NoError(t, s.Save(ctx, expected))
	createdAt := expected.CreatedAt

	expected.State = alt.StateExtended
	expected.Addresses = 64
	expected.LastSignature = "test_signature"
	expected.Slot = 9999
	require.NoError(t, s.Save(ctx, expected))
	assert.EqualValues(t, 1, expected.Id)

	actual, err := s.Get(ctx, "test_address")
	require.NoError(t, err)
	assert.EqualValues(t, 1, actual.Id)
	assert.Equal(t, alt.StateExtended, actual.State)
	assert.EqualValues(t, 64, actual.Addresses)
	assert.Equal(t, "test_signature", actual.LastSignature)
	assert.EqualValues(t, 1234, actual.Slot)
	assert.Equal(t, createdAt.UnixMilli(), actual.CreatedAt.UnixMilli())

	actual.State = alt.StateClosed
	require.NoError(t, s.Save(ctx, actual))
	actual, err = s.Get(ctx, "test_address")
	require.NoError(t, err)
	assert.False(t, actual.IsOpen())
}

func testSaveInvalid(t *testing.T, s alt.Store) {
	ctx := context.Background()

	for _, invalid := range []*alt.Record{
		{},
		{Address: "a"},
		{Address: "a", Authority: "b"},
		{Address: "a", Authority: "b", Slot: 1},
		{Address: "a", Authority: "b", Slot: 1, RunId: "r"},
	} {
		require.Error(t, invalid.Validate())
		assert.Error(t, s.Save(ctx, invalid))
	}

	_, err := s.GetAll(ctx)
	assert.Equal(t, alt.ErrNotFound, err)
}

func testGetAllByState(t *testing.T, s alt.Store) {
	ctx := context.Background()

	states := []alt.State{
		alt.StateCreated,
		alt.StateOrphaned,
		alt.StateDeactivating,
		alt.StateOrphaned,
		alt.StateOrphaned,
		alt.StateClosed,
	}
	for i, state := range states {
		require.NoError(t, s.Save(ctx, newRecord(fmt.Sprintf("t%d", i+1), state)))
	}

	actual, err := s.GetAllByState(ctx, alt.StateOrphaned)
	require.NoError(t, err)
	require.Len(t, actual, 3)
	assert.Equal(t, "t2", actual[0].Address)
	assert.Equal(t, "t4", actual[1].Address)
	assert.Equal(t, "t5", actual[2].Address)

	actual, err = s.GetAllByState(ctx, alt.StateOrphaned, query.WithDirection(query.Descending))
	require.NoError(t, err)
	require.Len(t, actual, 3)
	assert.Equal(t, "t5", actual[0].Address)
	assert.Equal(t, "t2", actual[2].Address)

	actual, err = s.GetAllByState(ctx, alt.StateOrphaned, query.WithLimit(2))
	require.NoError(t, err)
	require.Len(t, actual, 2)
	assert.Equal(t, "t4", actual[1].Address)

	actual, err = s.GetAllByState(ctx, alt.StateOrphaned, query.WithCursor(query.ToCursor(actual[1].Id)))
	require.NoError(t, err)
	require.Len(t, actual, 1)
	assert.Equal(t, "t5", actual[0].Address)

	_, err = s.GetAllByState(ctx, alt.StateExtended)
	assert.Equal(t, alt.ErrNotFound, err)

	_, err = s.GetAllByState(ctx, alt.StateOrphaned, query.WithLimit(10_000))
	assert.Equal(t, query.ErrQueryNotSupported, err)
}

func testGetAll(t *testing.T, s alt.Store) {
	ctx := context.Background()

	_, err := s.GetAll(ctx)
	assert.Equal(t, alt.ErrNotFound, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Save(ctx, newRecord(fmt.Sprintf("t%d", i+1), alt.StateDeactivating)))
	}

	actual, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, actual, 5)
	for i, record := range actual {
		assert.EqualValues(t, i+1, record.Id)
		assert.Equal(t, fmt.Sprintf("t%d", i+1), record.Address)
	}

	actual, err = s.GetAll(ctx, query.WithDirection(query.Descending), query.WithLimit(1))
	require.NoError(t, err)
	require.Len(t, actual, 1)
	assert.Equal(t, "t5", actual[0].Address)
}
