package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/tradedesk/internal/events"
)

type view struct {
	Streak int `json:"streak"`
}

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var v view
	found, err := m.Get(ctx, "missing", &v)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, m.Set(ctx, "streak:a", view{Streak: 3}, time.Minute))
	found, err = m.Get(ctx, "streak:a", &v)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, v.Streak)
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", view{Streak: 1}, time.Minute))
	now = now.Add(time.Minute)

	var v view
	found, err := m.Get(ctx, "k", &v)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryDeletePrefix(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "streak:a:2024-01-01", view{}, time.Minute))
	require.NoError(t, m.Set(ctx, "streak:b:2024-01-01", view{}, time.Minute))
	require.NoError(t, m.Set(ctx, "limit:a:2024-01-01", view{}, time.Minute))

	require.NoError(t, m.DeletePrefix(ctx, "streak:a:"))
	assert.Equal(t, 2, m.Len())

	var v view
	found, _ := m.Get(ctx, "streak:b:2024-01-01", &v)
	assert.True(t, found)
}

func TestInvalidatorTouchesOnlyAffectedUser(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	alice, bob := uuid.New(), uuid.New()

	require.NoError(t, m.Set(ctx, "streak:"+alice.String()+":d", view{}, time.Minute))
	require.NoError(t, m.Set(ctx, "streak:"+bob.String()+":d", view{}, time.Minute))
	require.NoError(t, m.Set(ctx, "limit:"+alice.String()+":d", view{}, time.Minute))

	inv := NewInvalidator(m, time.Second).
		On(events.EntityLoginEvent, func(u uuid.UUID) []string {
			return []string{"streak:" + u.String() + ":"}
		})

	bus := events.NewBus()
	bus.Subscribe(inv.Handle)
	bus.Publish(events.Event{Entity: events.EntityLoginEvent, UserID: alice, Kind: events.KindCreated})

	var v view
	found, _ := m.Get(ctx, "streak:"+alice.String()+":d", &v)
	assert.False(t, found)
	found, _ = m.Get(ctx, "streak:"+bob.String()+":d", &v)
	assert.True(t, found)
	found, _ = m.Get(ctx, "limit:"+alice.String()+":d", &v)
	assert.True(t, found, "событие входа не должно сбрасывать лимит")

	// Сущность без правил ничего не трогает
	bus.Publish(events.Event{Entity: events.EntityDeposit, UserID: bob, Kind: events.KindUpdated})
	assert.Equal(t, 2, m.Len())
}

func TestGenerationsCountAncestorPrefixes(t *testing.T) {
	g := NewGenerations()
	alice, bob := "limit:a:", "limit:b:"

	g.Bump(alice)
	assert.Equal(t, uint64(1), g.Current(alice))
	assert.Equal(t, uint64(0), g.Current(bob))

	// Смена ранга сбрасывает всех
	g.Bump("limit:")
	assert.Equal(t, uint64(2), g.Current(alice))
	assert.Equal(t, uint64(1), g.Current(bob))
	assert.Equal(t, uint64(0), g.Current("streak:a:"))
}

// bumpingCache имитирует инвалидацию, пришедшую во время записи.
type bumpingCache struct {
	*Memory
	gens   *Generations
	prefix string
}

func (b *bumpingCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := b.Memory.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	b.gens.Bump(b.prefix)
	return nil
}

func TestSetIfCurrent(t *testing.T) {
	ctx := context.Background()
	prefix := "streak:a:"

	t.Run("unchanged generation keeps value", func(t *testing.T) {
		m, g := NewMemory(), NewGenerations()
		ok, err := g.SetIfCurrent(ctx, m, prefix, g.Current(prefix), prefix+"d", view{Streak: 3}, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, m.Len())
	})

	t.Run("bump before write skips it", func(t *testing.T) {
		m, g := NewMemory(), NewGenerations()
		seen := g.Current(prefix)
		g.Bump(prefix)
		ok, err := g.SetIfCurrent(ctx, m, prefix, seen, prefix+"d", view{Streak: 3}, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 0, m.Len())
	})

	t.Run("bump during write removes value", func(t *testing.T) {
		g := NewGenerations()
		c := &bumpingCache{Memory: NewMemory(), gens: g, prefix: prefix}
		ok, err := g.SetIfCurrent(ctx, c, prefix, g.Current(prefix), prefix+"d", view{Streak: 3}, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})
}

func TestInvalidatorBumpsGenerationBeforeDelete(t *testing.T) {
	g := NewGenerations()
	alice := uuid.New()
	prefix := "streak:" + alice.String() + ":"

	inv := NewInvalidator(NewMemory(), time.Second).
		WithGenerations(g).
		On(events.EntityLoginEvent, func(u uuid.UUID) []string { return []string{"streak:" + u.String() + ":"} })
	inv.Handle(events.Event{Entity: events.EntityLoginEvent, UserID: alice, Kind: events.KindCreated})

	assert.Equal(t, uint64(1), g.Current(prefix))
	assert.Equal(t, uint64(0), g.Current("streak:"+uuid.NewString()+":"))
}
