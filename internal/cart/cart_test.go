package cart

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drstein77/storefront/internal/logger"
	"github.com/drstein77/storefront/internal/models"
	"github.com/drstein77/storefront/internal/storage"
)

type memStore struct {
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := s.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return value, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte) error {
	s.data[key] = value
	return nil
}

func seedCatalog(t *testing.T, store *memStore, products ...models.Product) {
	t.Helper()
	value, err := json.Marshal(products)
	require.NoError(t, err)
	store.data[storage.KeyProducts] = value
}

var (
	chair = models.Product{ID: "p1", Title: "Chair", Price: 49.99, Image: "/img/chair.jpg"}
	sofa  = models.Product{ID: "p2", Title: "Sofa", Price: 129.5, Image: "/img/sofa.jpg"}
)

func newTestEngine(t *testing.T) (*Engine, *memStore) {
	t.Helper()
	store := newMemStore()
	seedCatalog(t, store, chair, sofa)
	return NewEngine(store, logger.Logger{}), store
}

func TestAddItemSnapshotsProduct(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	line, created, err := engine.AddItem(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.CartLine{ID: "p1", Title: "Chair", Price: 49.99, Image: "/img/chair.jpg", Amount: 1}, *line)

	totals := engine.Totals()
	assert.Equal(t, 1, totals.ItemCount)
	assert.Equal(t, 49.99, totals.AmountDue)
}

func TestAddItemTwiceIsNoOp(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	_, created, err := engine.AddItem(ctx, "p1")
	require.NoError(t, err)
	require.True(t, created)

	line, created, err := engine.AddItem(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, line.Amount)
	assert.Len(t, engine.Lines(), 1)
}

func TestAddItemUnknownProduct(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	_, _, err := engine.AddItem(ctx, "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Empty(t, engine.Lines())
}

func TestChairScenario(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	_, _, err := engine.AddItem(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.CartTotals{ItemCount: 1, AmountDue: 49.99}, engine.Totals())

	amount, err := engine.IncrementAmount(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, amount)
	assert.Equal(t, models.CartTotals{ItemCount: 2, AmountDue: 99.98}, engine.Totals())

	amount, removed, err := engine.DecrementAmount(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 1, amount)

	amount, removed, err = engine.DecrementAmount(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 0, amount)
	assert.Empty(t, engine.Lines())
	assert.Equal(t, models.CartTotals{ItemCount: 0, AmountDue: 0}, engine.Totals())
}

func TestMutationsOnUnknownLine(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	_, err := engine.IncrementAmount(ctx, "ghost")
	assert.ErrorIs(t, err, ErrLineNotFound)

	_, _, err = engine.DecrementAmount(ctx, "ghost")
	assert.ErrorIs(t, err, ErrLineNotFound)

	// RemoveItem on a nonexistent id is a silent no-op.
	engine.RemoveItem(ctx, "ghost")
	assert.Empty(t, engine.Lines())
}

func TestInvariantsHoldOverMutationSequence(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	checkInvariants := func() {
		t.Helper()
		seen := map[string]bool{}
		itemCount := 0
		var due float64
		for _, line := range engine.Lines() {
			assert.False(t, seen[line.ID], "duplicate line id %s", line.ID)
			seen[line.ID] = true
			assert.GreaterOrEqual(t, line.Amount, 1)
			itemCount += line.Amount
			due += line.Price * float64(line.Amount)
		}
		totals := engine.Totals()
		assert.Equal(t, itemCount, totals.ItemCount)
		assert.Equal(t, models.Round2(due), totals.AmountDue)
	}

	steps := []func(){
		func() { engine.AddItem(ctx, "p1") },
		func() { engine.AddItem(ctx, "p2") },
		func() { engine.IncrementAmount(ctx, "p1") },
		func() { engine.IncrementAmount(ctx, "p2") },
		func() { engine.AddItem(ctx, "p1") },
		func() { engine.DecrementAmount(ctx, "p2") },
		func() { engine.RemoveItem(ctx, "p1") },
		func() { engine.AddItem(ctx, "p1") },
		func() { engine.DecrementAmount(ctx, "p1") },
		func() { engine.DecrementAmount(ctx, "p2") },
	}
	for _, step := range steps {
		step()
		checkInvariants()
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)

	_, _, err := engine.AddItem(ctx, "p1")
	require.NoError(t, err)
	_, _, err = engine.AddItem(ctx, "p2")
	require.NoError(t, err)

	engine.Clear(ctx)

	assert.Empty(t, engine.Lines())
	assert.Equal(t, models.CartTotals{ItemCount: 0, AmountDue: 0}, engine.Totals())
	assert.JSONEq(t, `[]`, string(store.data[storage.KeyCart]))
}

func TestPersistHydrateRoundTrip(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)

	_, _, err := engine.AddItem(ctx, "p1")
	require.NoError(t, err)
	_, _, err = engine.AddItem(ctx, "p2")
	require.NoError(t, err)
	_, err = engine.IncrementAmount(ctx, "p2")
	require.NoError(t, err)

	rehydrated := NewEngine(store, logger.Logger{})
	rehydrated.Hydrate(ctx)

	assert.Equal(t, engine.Lines(), rehydrated.Lines())
	assert.Equal(t, engine.Totals(), rehydrated.Totals())
}

func TestHydrate(t *testing.T) {
	ctx := context.Background()

	t.Run("absent cart -> empty", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		engine.Hydrate(ctx)
		assert.Empty(t, engine.Lines())
	})

	t.Run("malformed cart -> empty", func(t *testing.T) {
		engine, store := newTestEngine(t)
		store.data[storage.KeyCart] = []byte(`{not json`)
		engine.Hydrate(ctx)
		assert.Empty(t, engine.Lines())
	})

	t.Run("invalid lines dropped, first duplicate wins", func(t *testing.T) {
		engine, store := newTestEngine(t)
		persisted := []models.CartLine{
			{ID: "p1", Title: "Chair", Price: 49.99, Amount: 2},
			{ID: "p1", Title: "Chair", Price: 49.99, Amount: 5},
			{ID: "p2", Title: "Sofa", Price: 129.5, Amount: 0},
			{ID: "", Title: "Void", Price: 1, Amount: 1},
		}
		value, err := json.Marshal(persisted)
		require.NoError(t, err)
		store.data[storage.KeyCart] = value

		engine.Hydrate(ctx)
		lines := engine.Lines()
		require.Len(t, lines, 1)
		assert.Equal(t, "p1", lines[0].ID)
		assert.Equal(t, 2, lines[0].Amount)
	})
}

func TestTotalsRounding(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seedCatalog(t, store,
		models.Product{ID: "a", Title: "A", Price: 1.1, Image: "/a"},
		models.Product{ID: "b", Title: "B", Price: 2.2, Image: "/b"},
	)
	engine := NewEngine(store, logger.Logger{})

	_, _, err := engine.AddItem(ctx, "a")
	require.NoError(t, err)
	_, _, err = engine.AddItem(ctx, "b")
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = engine.IncrementAmount(ctx, "a")
		require.NoError(t, err)
	}

	// 3*1.1 + 2.2 accumulates float noise; totals must come out flat.
	assert.Equal(t, 5.5, engine.Totals().AmountDue)
	assert.Equal(t, 4, engine.Totals().ItemCount)
}
