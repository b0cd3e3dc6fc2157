package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curvepool/internal/domain"
	"curvepool/internal/storage"
)

func testPool(creator, symbol string) *domain.Pool {
	return &domain.Pool{
		CreatorIdentity: creator,
		Symbol:          symbol,
		Name:            symbol + " token",
		TotalSupply:     1_000_000,
		K:               100,
		FeeRateBps:      100,
		CreatedAt:       1_700_000_000,
	}
}

func TestPoolStore_InsertAndGet(t *testing.T) {
	store := NewPoolStore()
	ctx := context.Background()

	p := testPool("creatorA", "ABC")
	require.NoError(t, store.Insert(ctx, p))

	got, err := store.Get(ctx, "creatorA", "ABC")
	require.NoError(t, err)
	assert.Equal(t, "ABC", got.Symbol)
	assert.Equal(t, uint64(1_000_000), got.TotalSupply)
}

func TestPoolStore_DuplicateKey(t *testing.T) {
	store := NewPoolStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testPool("creatorA", "ABC")))
	err := store.Insert(ctx, testPool("creatorA", "ABC"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// same symbol under a different creator is a distinct pool
	require.NoError(t, store.Insert(ctx, testPool("creatorB", "ABC")))
}

func TestPoolStore_GetNotFound(t *testing.T) {
	store := NewPoolStore()

	_, err := store.Get(context.Background(), "creatorA", "NOPE")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPoolStore_UpdateIncrementsVersion(t *testing.T) {
	store := NewPoolStore()
	ctx := context.Background()

	p := testPool("creatorA", "ABC")
	require.NoError(t, store.Insert(ctx, p))

	p.Reserve = 9_900
	p.CirculatingSupply = 99
	require.NoError(t, store.Update(ctx, p))
	assert.Equal(t, uint64(1), p.Version)

	got, err := store.Get(ctx, "creatorA", "ABC")
	require.NoError(t, err)
	assert.Equal(t, uint64(9_900), got.Reserve)
	assert.Equal(t, uint64(1), got.Version)
}

func TestPoolStore_UpdateVersionConflict(t *testing.T) {
	store := NewPoolStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testPool("creatorA", "ABC")))

	first, err := store.Get(ctx, "creatorA", "ABC")
	require.NoError(t, err)
	second, err := store.Get(ctx, "creatorA", "ABC")
	require.NoError(t, err)

	first.Reserve = 100
	require.NoError(t, store.Update(ctx, first))

	second.Reserve = 200
	assert.ErrorIs(t, store.Update(ctx, second), storage.ErrVersionConflict)
}

func TestPoolStore_UpdateNotFound(t *testing.T) {
	store := NewPoolStore()

	err := store.Update(context.Background(), testPool("creatorA", "ABC"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPoolStore_GetReturnsCopy(t *testing.T) {
	store := NewPoolStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testPool("creatorA", "ABC")))

	got, err := store.Get(ctx, "creatorA", "ABC")
	require.NoError(t, err)
	got.Reserve = 999

	again, err := store.Get(ctx, "creatorA", "ABC")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), again.Reserve)
}

func TestPoolStore_ListOrderedByCreation(t *testing.T) {
	store := NewPoolStore()
	ctx := context.Background()

	a := testPool("creatorA", "AAA")
	a.CreatedAt = 300
	b := testPool("creatorA", "BBB")
	b.CreatedAt = 100
	c := testPool("creatorA", "CCC")
	c.CreatedAt = 200

	require.NoError(t, store.Insert(ctx, a))
	require.NoError(t, store.Insert(ctx, b))
	require.NoError(t, store.Insert(ctx, c))

	pools, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, pools, 3)
	assert.Equal(t, "BBB", pools[0].Symbol)
	assert.Equal(t, "CCC", pools[1].Symbol)
	assert.Equal(t, "AAA", pools[2].Symbol)
}
