package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curvepool/internal/events"
)

func TestEventJournal_EmitAndQuery(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	journal := NewEventJournal(conn)
	ctx := context.Background()

	trade := &events.Event{
		Type:      events.TypeTradeExecuted,
		Timestamp: 1700000100,
		Creator:   "CreatorA",
		Symbol:    "CRV",
		Trade: &events.TradeExecuted{
			Side:             events.SideBuy,
			Trader:           "TraderX",
			TokenAmount:      99,
			GrossAmount:      10_000,
			Fee:              100,
			NetAmount:        9_900,
			ReserveAfter:     9_900,
			CirculatingAfter: 99,
		},
	}
	created := &events.Event{
		Type:      events.TypePoolCreated,
		Timestamp: 1700000000,
		Creator:   "CreatorA",
		Symbol:    "CRV",
		Created: &events.PoolCreated{
			TotalSupply: 1_000_000,
			K:           100,
			FeeRateBps:  100,
		},
	}
	other := &events.Event{
		Type:      events.TypePoolCreated,
		Timestamp: 1700000050,
		Creator:   "CreatorB",
		Symbol:    "OTH",
	}

	require.NoError(t, journal.Emit(ctx, created))
	require.NoError(t, journal.Emit(ctx, trade))
	require.NoError(t, journal.Emit(ctx, other))

	got, err := journal.PoolEvents(ctx, "CreatorA", "CRV", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Newest first.
	assert.Equal(t, events.TypeTradeExecuted, got[0].Type)
	require.NotNil(t, got[0].Trade)
	assert.Equal(t, events.SideBuy, got[0].Trade.Side)
	assert.Equal(t, uint64(99), got[0].Trade.TokenAmount)
	assert.Equal(t, uint64(100), got[0].Trade.Fee)

	assert.Equal(t, events.TypePoolCreated, got[1].Type)
	require.NotNil(t, got[1].Created)
	assert.Equal(t, uint64(1_000_000), got[1].Created.TotalSupply)
}

func TestEventJournal_PoolEventsLimit(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	journal := NewEventJournal(conn)
	ctx := context.Background()

	for i := int64(0); i < 5; i++ {
		ev := &events.Event{
			Type:      events.TypeOracleUpdated,
			Timestamp: 1700000000 + i,
			Creator:   "CreatorA",
			Symbol:    "CRV",
			Oracle:    &events.OracleUpdated{Price: uint64(100 + i)},
		}
		require.NoError(t, journal.Emit(ctx, ev))
	}

	got, err := journal.PoolEvents(ctx, "CreatorA", "CRV", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1700000004), got[0].Timestamp)
	assert.Equal(t, int64(1700000003), got[1].Timestamp)
}

func TestEventJournal_PoolEventsEmpty(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	journal := NewEventJournal(conn)

	got, err := journal.PoolEvents(context.Background(), "nobody", "NONE", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
