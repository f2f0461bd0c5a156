// Package broadcast fans change events out to connected subscribers,
// both globally and per-token. Delivery is best-effort, at-most-once,
// fire-and-forget per connection — a slow subscriber never blocks
// others.
package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sawpanic/aggrun/internal/domain"
)

// ConnID identifies one subscriber connection.
type ConnID string

// OutboxSize is the per-connection buffered channel depth; a send that
// would block past this is dropped rather than stalling the
// Broadcaster.
const OutboxSize = 64

type connection struct {
	addresses map[string]struct{}
	outbox    chan domain.Event
}

// Broadcaster owns the subscribers map exclusively; all mutation goes
// through its exported operations, which serialize access.
type Broadcaster struct {
	mu      sync.RWMutex
	conns   map[ConnID]*connection
	logger  zerolog.Logger
	dropped uint64
}

// New builds an empty Broadcaster.
func New(logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		conns:  make(map[ConnID]*connection),
		logger: logger,
	}
}

// OnConnect registers a new connection with an empty subscription set
// and returns its outbound event channel. Never fails.
func (b *Broadcaster) OnConnect() (ConnID, <-chan domain.Event) {
	id := ConnID(uuid.NewString())
	conn := &connection{
		addresses: make(map[string]struct{}),
		outbox:    make(chan domain.Event, OutboxSize),
	}

	b.mu.Lock()
	b.conns[id] = conn
	b.mu.Unlock()

	return id, conn.outbox
}

// OnDisconnect removes id's entry and closes its outbox.
func (b *Broadcaster) OnDisconnect(id ConnID) {
	b.mu.Lock()
	conn, ok := b.conns[id]
	if ok {
		delete(b.conns, id)
	}
	b.mu.Unlock()

	if ok {
		close(conn.outbox)
	}
}

// Subscribe adds addresses (lowercased) to id's subscription set.
func (b *Broadcaster) Subscribe(id ConnID, addresses []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	conn, ok := b.conns[id]
	if !ok {
		return
	}
	for _, addr := range addresses {
		conn.addresses[normalize(addr)] = struct{}{}
	}
}

// Unsubscribe removes addresses (lowercased) from id's subscription set.
func (b *Broadcaster) Unsubscribe(id ConnID, addresses []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	conn, ok := b.conns[id]
	if !ok {
		return
	}
	for _, addr := range addresses {
		delete(conn.addresses, normalize(addr))
	}
}

// Broadcast delivers every event to every connection's global channel.
// For each alert event it additionally sends a subscribed_token_update
// to connections subscribed to that event's address.
func (b *Broadcaster) Broadcast(events []domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, event := range events {
		addr := event.Address()
		for _, conn := range b.conns {
			b.deliver(conn, event)

			if addr == "" {
				continue
			}
			if _, subscribed := conn.addresses[addr]; !subscribed {
				continue
			}
			b.deliver(conn, domain.Event{
				Kind:      domain.EventSubscribedTokenUpdate,
				Payload:   event.Payload,
				Timestamp: event.Timestamp,
			})
		}
	}
}

func (b *Broadcaster) deliver(conn *connection, event domain.Event) {
	select {
	case conn.outbox <- event:
	default:
		atomic.AddUint64(&b.dropped, 1)
		b.logger.Warn().Str("kind", string(event.Kind)).Msg("subscriber outbox full, dropping event")
	}
}

// SubscriberCount returns the number of currently connected
// subscribers, for metrics/health surfaces.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns)
}

// Close closes every active connection's outbox, signalling their write
// pumps to send a close frame and tear the socket down, then clears the
// subscriber set. Called once during shutdown, after the scheduler has
// stopped producing events.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, conn := range b.conns {
		close(conn.outbox)
		delete(b.conns, id)
	}
}

func normalize(addr string) string {
	return domain.Token{Address: addr}.NormalizedAddress()
}
