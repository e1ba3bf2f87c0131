package tests

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-escrow/pkg/bank/account"
)

func RunTests(t *testing.T, s account.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s account.Store){
		testRoundTrip,
		testUpdate,
		testPurge,
		testBatchAtomicity,
		testLargeLamports,
	} {
		tf(t, s)
		teardown()
	}
}

func testRoundTrip(t *testing.T, s account.Store) {
	ctx := context.Background()

	actual, err := s.Get(ctx, "test_address")
	require.Error(t, err)
	assert.Equal(t, account.ErrAccountNotFound, err)
	assert.Nil(t, actual)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	expected := &account.Record{
		Address:    "test_address",
		Owner:      "test_owner",
		Lamports:   2039280,
		Data:       []byte{1, 2, 3},
		Executable: true,
	}
	require.NoError(t, s.SaveBatch(ctx, expected))
	assert.EqualValues(t, 1, expected.Id)
	assert.False(t, expected.LastUpdatedAt.IsZero())

	actual, err = s.Get(ctx, "test_address")
	require.NoError(t, err)
	assertEquivalentRecords(t, expected, actual)

	// Returned records are copies
	actual.Data[0] = 0xff
	actual, err = s.Get(ctx, "test_address")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, actual.Data)

	count, err = s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func testUpdate(t *testing.T, s account.Store) {
	ctx := context.Background()

	first := &account.Record{
		Address:  "address1",
		Owner:    "owner1",
		Lamports: 100,
		Data:     make([]byte, 8),
	}
	second := &account.Record{
		Address:  "address2",
		Owner:    "owner2",
		Lamports: 200,
	}
	require.NoError(t, s.SaveBatch(ctx, first, second))

	first.Owner = "owner3"
	first.Lamports = 50
	first.Data = []byte{1, 2, 3, 4, 5, 6, 7, 8}
	second.Lamports = 250
	require.NoError(t, s.SaveBatch(ctx, first, second))

	for _, expected := range []*account.Record{first, second} {
		actual, err := s.Get(ctx, expected.Address)
		require.NoError(t, err)
		assertEquivalentRecords(t, expected, actual)
	}

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func testPurge(t *testing.T, s account.Store) {
	ctx := context.Background()

	record := &account.Record{
		Address:  "test_address",
		Owner:    "test_owner",
		Lamports: 100,
		Data:     []byte{1},
	}
	require.NoError(t, s.SaveBatch(ctx, record))

	// Zero lamports removes the account, regardless of its remaining state
	record.Lamports = 0
	record.Owner = ""
	require.NoError(t, s.SaveBatch(ctx, record))

	_, err := s.Get(ctx, "test_address")
	assert.Equal(t, account.ErrAccountNotFound, err)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	// Purging an unknown account is a no-op
	require.NoError(t, s.SaveBatch(ctx, &account.Record{Address: "unknown"}))
}

func testBatchAtomicity(t *testing.T, s account.Store) {
	ctx := context.Background()

	valid := &account.Record{
		Address:  "valid",
		Owner:    "owner",
		Lamports: 100,
	}
	invalid := &account.Record{
		Address:  "invalid",
		Lamports: 100,
	}
	assert.Error(t, s.SaveBatch(ctx, valid, invalid))

	_, err := s.Get(ctx, "valid")
	assert.Equal(t, account.ErrAccountNotFound, err)

	assert.Error(t, s.SaveBatch(ctx, &account.Record{Owner: "owner", Lamports: 1}))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func testLargeLamports(t *testing.T, s account.Store) {
	ctx := context.Background()

	expected := &account.Record{
		Address:  "test_address",
		Owner:    "test_owner",
		Lamports: math.MaxUint64,
	}
	require.NoError(t, s.SaveBatch(ctx, expected))

	actual, err := s.Get(ctx, "test_address")
	require.NoError(t, err)
	assert.EqualValues(t, uint64(math.MaxUint64), actual.Lamports)
	assert.Empty(t, actual.Data)
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *account.Record) {
	assert.Equal(t, obj1.Id, obj2.Id)
	assert.Equal(t, obj1.Address, obj2.Address)
	assert.Equal(t, obj1.Owner, obj2.Owner)
	assert.Equal(t, obj1.Lamports, obj2.Lamports)
	assert.Equal(t, len(obj1.Data), len(obj2.Data))
	if len(obj1.Data) > 0 {
		assert.Equal(t, obj1.Data, obj2.Data)
	}
	assert.Equal(t, obj1.Executable, obj2.Executable)
}
