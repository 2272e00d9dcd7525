package events

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()
	var got []Event
	bus.Subscribe(func(e Event) { got = append(got, e) })
	bus.Subscribe(func(e Event) { got = append(got, e) })

	userID := uuid.New()
	bus.Publish(Event{Entity: EntityLoginEvent, UserID: userID, Kind: KindCreated})

	assert.Len(t, got, 2)
	assert.Equal(t, userID, got[0].UserID)
	assert.False(t, got[0].At.IsZero())
}

func TestBusSurvivesPanickingSubscriber(t *testing.T) {
	bus := NewBus()
	delivered := false
	bus.Subscribe(func(Event) { panic("boom") })
	bus.Subscribe(func(Event) { delivered = true })

	assert.NotPanics(t, func() {
		bus.Publish(Event{Entity: EntityTradingBot, Kind: KindCreated})
	})
	assert.True(t, delivered)
}

func TestParsePayload(t *testing.T) {
	userID := uuid.New()
	e, ok := ParsePayload(`{"entity":"login_event","user_id":"` + userID.String() + `","kind":"created"}`)
	assert.True(t, ok)
	assert.Equal(t, EntityLoginEvent, e.Entity)
	assert.Equal(t, KindCreated, e.Kind)
	assert.Equal(t, userID, e.UserID)

	_, ok = ParsePayload(`not json`)
	assert.False(t, ok)

	_, ok = ParsePayload(`{"entity":"login_event"}`)
	assert.False(t, ok)
}
