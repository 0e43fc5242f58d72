package engine

import (
	"sync"

	"github.com/hardwarehavoc/fractile/internal/model"
)

// subscriberBufferSize is the channel buffer for each tile subscriber.
// Updates are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// TileBroker manages per-run tile streaming to subscribers.
// It is safe for concurrent use.
//
// Closed topics are retained as markers so that late subscribers (those
// subscribing after a run finishes) receive a closed channel instead of
// blocking forever. Each marker is a few bytes, which is acceptable for the
// expected run volume.
type TileBroker struct {
	mu     sync.Mutex
	topics map[string]*tileTopic
}

type tileTopic struct {
	subs   map[int]chan model.TileUpdate
	nextID int
	closed bool
}

// NewTileBroker creates a new tile broker.
func NewTileBroker() *TileBroker {
	return &TileBroker{
		topics: make(map[string]*tileTopic),
	}
}

// Subscribe returns a channel that receives tile updates for the given run
// and an unsubscribe function. If the run has already finished (Close was
// called), the returned channel is immediately closed.
func (b *TileBroker) Subscribe(runID string) (<-chan model.TileUpdate, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[runID]
	if !ok {
		t = &tileTopic{subs: make(map[int]chan model.TileUpdate)}
		b.topics[runID] = t
	}

	ch := make(chan model.TileUpdate, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish sends a tile update to all subscribers of the given run.
// Updates are dropped for subscribers whose buffers are full.
func (b *TileBroker) Publish(runID string, u model.TileUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[runID]
	if !ok || t.closed {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- u:
		default:
			// Drop update for slow subscribers to avoid blocking emission.
		}
	}
}

// Close signals that no more tiles will be published for the given run.
// All subscriber channels are closed and future Subscribe calls return a
// closed channel.
func (b *TileBroker) Close(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[runID]
	if !ok {
		// Create a closed marker so late subscribers get a closed channel.
		b.topics[runID] = &tileTopic{subs: make(map[int]chan model.TileUpdate), closed: true}
		return
	}

	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}
