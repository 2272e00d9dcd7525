package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/tradedesk/internal/cache"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (c *countingRefresher) Refresh(context.Context) error {
	c.calls.Add(1)
	return c.err
}

func TestPurgeDayViewsKeepsLastKnownGood(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemory()
	require.NoError(t, c.Set(ctx, "streak:u:2024-05-09", 1, time.Hour))
	require.NoError(t, c.Set(ctx, "limit:u:2024-05-09", 1, time.Hour))
	require.NoError(t, c.Set(ctx, "lkg:streak:u", 1, time.Hour))

	NewScheduler(nil, c, time.Minute, 0, time.Second).PurgeDayViews(ctx)

	assert.Equal(t, 1, c.Len())
	var v int
	found, err := c.Get(ctx, "lkg:streak:u", &v)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRefreshMarketSwallowsErrors(t *testing.T) {
	r := &countingRefresher{err: errors.New("down")}
	s := NewScheduler(r, cache.Nop{}, time.Minute, 0, time.Second)

	s.RefreshMarket(context.Background())
	s.refreshWithJitter(context.Background())

	assert.Equal(t, int32(2), r.calls.Load())
}

func TestRefreshWithJitterStopsOnCancel(t *testing.T) {
	r := &countingRefresher{}
	s := NewScheduler(r, cache.Nop{}, time.Minute, time.Hour, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.refreshWithJitter(ctx)

	assert.Zero(t, r.calls.Load())
}

func TestStartRunsInitialRefresh(t *testing.T) {
	r := &countingRefresher{}
	s := NewScheduler(r, cache.Nop{}, time.Hour, time.Second, time.Second)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, 10*time.Millisecond)
}
