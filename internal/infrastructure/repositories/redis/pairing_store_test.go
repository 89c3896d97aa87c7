package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lenslink/internal/core/domain"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func newTestStore(t *testing.T) *PairingStore {
	t.Helper()
	_, client := newTestClient(t)

	store := NewPairingStore(client)
	tick := time.Unix(1700000000, 0)
	store.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return store
}

func TestRedisPairingStore_AddIsSymmetric(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.AddPair(ctx, "phone", "Phone", "laptop", "Laptop"))

	phoneEdges, err := store.EdgesOf(ctx, "phone")
	require.NoError(t, err)
	assert.Equal(t, []domain.PairedDevice{{ID: "laptop", Name: "Laptop"}}, phoneEdges)

	laptopEdges, err := store.EdgesOf(ctx, "laptop")
	require.NoError(t, err)
	assert.Equal(t, []domain.PairedDevice{{ID: "phone", Name: "Phone"}}, laptopEdges)
}

func TestRedisPairingStore_IdempotentKeepsOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.AddPair(ctx, "phone", "Phone", "laptop", "Laptop"))
	require.NoError(t, store.AddPair(ctx, "phone", "Phone", "tablet", "Tablet"))
	require.NoError(t, store.AddPair(ctx, "phone", "Pixel", "laptop", "Work Laptop"))

	edges, err := store.EdgesOf(ctx, "phone")
	require.NoError(t, err)
	assert.Equal(t, []domain.PairedDevice{
		{ID: "laptop", Name: "Work Laptop"},
		{ID: "tablet", Name: "Tablet"},
	}, edges)

	laptopEdges, _ := store.EdgesOf(ctx, "laptop")
	assert.Equal(t, []domain.PairedDevice{{ID: "phone", Name: "Pixel"}}, laptopEdges)
}

func TestRedisPairingStore_Remove(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.AddPair(ctx, "a", "A", "b", "B"))
	require.NoError(t, store.RemovePair(ctx, "b", "a"))
	require.NoError(t, store.RemovePair(ctx, "b", "a"))

	for _, id := range []domain.StableID{"a", "b"} {
		edges, err := store.EdgesOf(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, edges)
	}

	paired, err := store.IsPaired(ctx, "a", "b")
	require.NoError(t, err)
	assert.False(t, paired)
}

func TestRedisPairingStore_IsPaired(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.AddPair(ctx, "a", "A", "b", "B"))

	paired, err := store.IsPaired(ctx, "b", "a")
	require.NoError(t, err)
	assert.True(t, paired)

	paired, err = store.IsPaired(ctx, "a", "c")
	require.NoError(t, err)
	assert.False(t, paired)
}

func TestRedisPairingStore_ServerDown(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	store := NewPairingStore(client)
	mr.Close()

	assert.Error(t, store.AddPair(ctx, "a", "A", "b", "B"))
	_, err := store.EdgesOf(ctx, "a")
	assert.Error(t, err)
}

func TestMigrate_RepairsHalfEdges(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)

	require.NoError(t, client.ZAdd(ctx, peersKey("a"), redis.Z{Score: 1, Member: "b"}).Err())
	require.NoError(t, Migrate(ctx, client, zap.NewNop().Sugar()))

	store := NewPairingStore(client)
	paired, err := store.IsPaired(ctx, "b", "a")
	require.NoError(t, err)
	assert.True(t, paired)

	version, err := client.Get(ctx, schemaVersionKey).Int()
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)

	// A second run is a no-op.
	require.NoError(t, Migrate(ctx, client, nil))
}

func TestMigrate_RepairedEdgesCarryNames(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)

	// "a" is fully paired with "c", which knows it as "Kitchen iPad";
	// the edge to "b" only exists on a's side.
	require.NoError(t, client.ZAdd(ctx, peersKey("a"), redis.Z{Score: 1, Member: "b"}, redis.Z{Score: 2, Member: "c"}).Err())
	require.NoError(t, client.ZAdd(ctx, peersKey("c"), redis.Z{Score: 2, Member: "a"}).Err())
	require.NoError(t, client.HSet(ctx, namesKey("c"), "a", "Kitchen iPad").Err())
	// "x" has a half edge to "y" and no name anywhere.
	require.NoError(t, client.ZAdd(ctx, peersKey("x"), redis.Z{Score: 1, Member: "y"}).Err())

	require.NoError(t, Migrate(ctx, client, nil))

	store := NewPairingStore(client)
	edges, err := store.EdgesOf(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []domain.PairedDevice{{ID: "a", Name: "Kitchen iPad"}}, edges)

	edges, err = store.EdgesOf(ctx, "y")
	require.NoError(t, err)
	assert.Equal(t, []domain.PairedDevice{{ID: "x", Name: "x"}}, edges)

	edges, err = store.EdgesOf(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, []domain.PairedDevice{{ID: "a", Name: "Kitchen iPad"}}, edges)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(mr.Addr(), "", 0, 4, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer CloseRedisClient(client)

	version, err := client.Get(context.Background(), schemaVersionKey).Int()
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)
}

func TestMigrate_ReleasesLock(t *testing.T) {
	mr, client := newTestClient(t)

	require.NoError(t, Migrate(context.Background(), client, nil))
	assert.False(t, mr.Exists(migrationLockKey))
}

func TestMigrate_WaitsForConcurrentMigration(t *testing.T) {
	mr, client := newTestClient(t)
	require.NoError(t, mr.Set(migrationLockKey, "another-hub"))

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	err := Migrate(ctx, client, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, mr.Exists(schemaVersionKey), "no migration may run while another hub holds the lock")
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(addr, "", 0, 2, nil)
	assert.Error(t, err)
}
