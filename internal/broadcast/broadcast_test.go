package broadcast

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/aggrun/internal/domain"
)

func TestBroadcast_DeliversToAllConnections(t *testing.T) {
	b := New(zerolog.Nop())
	id1, outbox1 := b.OnConnect()
	defer b.OnDisconnect(id1)
	id2, outbox2 := b.OnConnect()
	defer b.OnDisconnect(id2)

	b.Broadcast([]domain.Event{{Kind: domain.EventBatchUpdate, Timestamp: time.Now()}})

	assertReceives(t, outbox1)
	assertReceives(t, outbox2)
}

func TestBroadcast_SendsSubscribedTokenUpdateOnlyToSubscribers(t *testing.T) {
	b := New(zerolog.Nop())
	subscribed, subOutbox := b.OnConnect()
	defer b.OnDisconnect(subscribed)
	other, otherOutbox := b.OnConnect()
	defer b.OnDisconnect(other)

	b.Subscribe(subscribed, []string{"0xABC"})

	event := domain.Event{
		Kind:      domain.EventPriceAlert,
		Payload:   domain.PriceAlertPayload{Address: "0xabc", NewPrice: 2},
		Timestamp: time.Now(),
	}
	b.Broadcast([]domain.Event{event})

	assertReceives(t, subOutbox) // the alert itself
	got := assertReceives(t, subOutbox)
	assert.Equal(t, domain.EventSubscribedTokenUpdate, got.Kind)

	assertReceives(t, otherOutbox) // only the alert, no subscribed_token_update
	select {
	case _, ok := <-otherOutbox:
		assert.True(t, ok, "channel should not be closed")
		t.Fatal("unsubscribed connection should not receive a second event")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBroadcast_DropsWhenOutboxFull(t *testing.T) {
	b := New(zerolog.Nop())
	id, _ := b.OnConnect()
	defer b.OnDisconnect(id)

	events := make([]domain.Event, OutboxSize+10)
	for i := range events {
		events[i] = domain.Event{Kind: domain.EventBatchUpdate, Timestamp: time.Now()}
	}

	assert.NotPanics(t, func() {
		b.Broadcast(events)
	})
}

func TestUnsubscribe_RemovesAddress(t *testing.T) {
	b := New(zerolog.Nop())
	id, outbox := b.OnConnect()
	defer b.OnDisconnect(id)

	b.Subscribe(id, []string{"0xabc"})
	b.Unsubscribe(id, []string{"0xabc"})

	event := domain.Event{
		Kind:      domain.EventPriceAlert,
		Payload:   domain.PriceAlertPayload{Address: "0xabc"},
		Timestamp: time.Now(),
	}
	b.Broadcast([]domain.Event{event})

	got := assertReceives(t, outbox)
	assert.Equal(t, domain.EventPriceAlert, got.Kind)

	select {
	case <-outbox:
		t.Fatal("should not receive subscribed_token_update after unsubscribing")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestOnDisconnect_ClosesOutbox(t *testing.T) {
	b := New(zerolog.Nop())
	id, outbox := b.OnConnect()
	assert.Equal(t, 1, b.SubscriberCount())

	b.OnDisconnect(id)
	assert.Equal(t, 0, b.SubscriberCount())

	_, ok := <-outbox
	assert.False(t, ok)
}

func TestClose_ClosesAllOutboxesAndResetsCount(t *testing.T) {
	b := New(zerolog.Nop())
	_, outbox1 := b.OnConnect()
	_, outbox2 := b.OnConnect()
	assert.Equal(t, 2, b.SubscriberCount())

	b.Close()

	assert.Equal(t, 0, b.SubscriberCount())
	_, ok := <-outbox1
	assert.False(t, ok)
	_, ok = <-outbox2
	assert.False(t, ok)
}

func assertReceives(t *testing.T, ch <-chan domain.Event) domain.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(100 * time.Millisecond):
		require.Fail(t, "expected an event but none arrived")
		return domain.Event{}
	}
}
