package admin

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/tradedesk/internal/common"
	"serotonyl.ru/tradedesk/internal/events"
	"serotonyl.ru/tradedesk/internal/features/rewards"
	"serotonyl.ru/tradedesk/internal/features/tradelimit"
	"serotonyl.ru/tradedesk/internal/session"
)

type attempt struct {
	at      time.Time
	success bool
}

type fakeAttempts struct {
	mu   sync.Mutex
	logs map[uuid.UUID][]attempt
	now  func() time.Time
}

func (f *fakeAttempts) LogAttempt(_ context.Context, userID uuid.UUID, success bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs[userID] = append(f.logs[userID], attempt{at: f.now(), success: success})
	return nil
}

func (f *fakeAttempts) RecentFailures(_ context.Context, userID uuid.UUID, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.logs[userID] {
		if !a.success && !a.at.Before(since) {
			n++
		}
	}
	return n, nil
}

type fakeTiers struct {
	tiers    []tradelimit.Tier
	assigned map[uuid.UUID]string
}

func (f *fakeTiers) ListTiers(context.Context) ([]tradelimit.Tier, error) { return f.tiers, nil }

func (f *fakeTiers) UpsertTier(_ context.Context, t tradelimit.Tier) (tradelimit.Tier, error) {
	t.ID = int64(len(f.tiers) + 1)
	f.tiers = append(f.tiers, t)
	return t, nil
}

func (f *fakeTiers) AssignTier(_ context.Context, userID uuid.UUID, name string) error {
	for _, t := range f.tiers {
		if t.Name == name {
			f.assigned[userID] = name
			return nil
		}
	}
	return fmt.Errorf("ранг %q: %w", name, common.ErrNotFound)
}

type fakeGrants struct{}

func (fakeGrants) ListByUser(_ context.Context, userID uuid.UUID) ([]rewards.Grant, error) {
	return []rewards.Grant{{UserID: userID, Streak: 7}}, nil
}

type fakeBots struct{ granted map[uuid.UUID]int64 }

func (f *fakeBots) Grant(_ context.Context, userID uuid.UUID, amount int64, _ string) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}
	f.granted[userID] += amount
	return nil
}

type recorder struct{ events []events.Event }

func (r *recorder) Publish(e events.Event) { r.events = append(r.events, e) }

type fixture struct {
	svc      *Service
	attempts *fakeAttempts
	tiers    *fakeTiers
	bots     *fakeBots
	bus      *recorder
	clock    *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	clock := time.Date(2024, 5, 9, 12, 0, 0, 0, time.UTC)
	f := &fixture{
		tiers: &fakeTiers{assigned: map[uuid.UUID]string{}},
		bots:  &fakeBots{granted: map[uuid.UUID]int64{}},
		bus:   &recorder{},
		clock: &clock,
	}
	now := func() time.Time { return *f.clock }
	f.attempts = &fakeAttempts{logs: map[uuid.UUID][]attempt{}, now: now}

	f.svc = NewService(Deps{
		Attempts:     f.attempts,
		Tiers:        f.tiers,
		Grants:       fakeGrants{},
		Bots:         f.bots,
		Issuer:       session.NewAccessor("test-secret-test-secret-test-secret", "admin-secret-admin-secret-admin-secret"),
		Bus:          f.bus,
		PasswordHash: hash,
		TokenTTL:     time.Hour,
		Timeout:      time.Second,
	})
	f.svc.now = now
	return f
}

func user() session.Identity {
	return session.Identity{UserID: uuid.New(), Role: session.RoleUser}
}

func adminOf(id session.Identity) session.Identity {
	return session.Identity{UserID: id.UserID, Role: session.RoleAdmin}
}

func TestLoginIssuesAdminToken(t *testing.T) {
	f := newFixture(t)
	id := user()

	resp, err := f.svc.Login(context.Background(), id, "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	got, err := session.NewAccessor("test-secret-test-secret-test-secret", "admin-secret-admin-secret-admin-secret").Resolve(resp.Token)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin())
	assert.Equal(t, id.UserID, got.UserID)
}

func TestLoginLockout(t *testing.T) {
	f := newFixture(t)
	id := user()

	for i := 0; i < MaxFailedAttempts; i++ {
		_, err := f.svc.Login(context.Background(), id, "nope")
		assert.ErrorIs(t, err, common.ErrWrongPassword)
	}

	// Даже верный пароль не проходит до истечения окна
	_, err := f.svc.Login(context.Background(), id, "correct horse")
	assert.ErrorIs(t, err, common.ErrTooManyAttempts)

	*f.clock = f.clock.Add(AttemptWindow + time.Minute)
	_, err = f.svc.Login(context.Background(), id, "correct horse")
	assert.NoError(t, err)
}

func TestLoginAnonymous(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Login(context.Background(), session.Anonymous, "correct horse")
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestOperationsRequireAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := user()

	_, err := f.svc.ListTiers(ctx, id)
	assert.ErrorIs(t, err, common.ErrNotAdmin)
	_, err = f.svc.SaveTier(ctx, id, tradelimit.Tier{Name: "gold", DailyTrades: 10})
	assert.ErrorIs(t, err, common.ErrNotAdmin)
	assert.ErrorIs(t, f.svc.AssignTier(ctx, id, uuid.New(), "gold"), common.ErrNotAdmin)
	_, err = f.svc.ListGrants(ctx, id, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotAdmin)
	assert.ErrorIs(t, f.svc.GrantBots(ctx, id, uuid.New(), GrantBotsRequest{Amount: 1}), common.ErrNotAdmin)
}

func TestSaveAndAssignTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := adminOf(user())
	target := uuid.New()

	saved, err := f.svc.SaveTier(ctx, admin, tradelimit.Tier{Name: " gold ", DailyTrades: 20, SortOrder: 3})
	require.NoError(t, err)
	assert.Equal(t, "gold", saved.Name)

	require.NoError(t, f.svc.AssignTier(ctx, admin, target, "gold"))
	assert.Equal(t, "gold", f.tiers.assigned[target])

	err = f.svc.AssignTier(ctx, admin, target, "platinum")
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.Len(t, f.bus.events, 2)
	assert.Equal(t, events.EntityRankTier, f.bus.events[0].Entity)
	assert.Equal(t, uuid.Nil, f.bus.events[0].UserID)
	assert.Equal(t, events.EntityUserRank, f.bus.events[1].Entity)
	assert.Equal(t, target, f.bus.events[1].UserID)
}

func TestSaveTierValidation(t *testing.T) {
	f := newFixture(t)
	admin := adminOf(user())

	tests := []tradelimit.Tier{
		{Name: "", DailyTrades: 1},
		{Name: "bad", DailyTrades: -1},
		{Name: string(make([]rune, maxTierNameLen+1)), DailyTrades: 1},
	}
	for _, tier := range tests {
		_, err := f.svc.SaveTier(context.Background(), admin, tier)
		assert.ErrorIs(t, err, common.ErrInvalidInput)
	}
}

func TestGrantBotsAndListGrants(t *testing.T) {
	f := newFixture(t)
	admin := adminOf(user())
	target := uuid.New()

	require.NoError(t, f.svc.GrantBots(context.Background(), admin, target, GrantBotsRequest{Amount: 3}))
	assert.Equal(t, int64(3), f.bots.granted[target])

	grants, err := f.svc.ListGrants(context.Background(), admin, target)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, target, grants[0].UserID)
}
