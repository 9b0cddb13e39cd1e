// Package pubsub provides an in-process topic bus for fan-out of domain
// events to active subscribers. Delivery is at-most-once and best-effort:
// a publish with no subscribers is dropped, and a subscriber whose buffer
// is full misses the event rather than blocking the publisher.
package pubsub

import (
	"context"
	"sync"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber that
// falls this far behind starts losing events.
const subscriberBuffer = 16

// Bus is a topic-based publish/subscribe bus. The zero value is not usable;
// create one with New.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]map[uint64]chan interface{}
	nextID uint64
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{topics: make(map[string]map[uint64]chan interface{})}
}

// Subscribe registers a consumer on the topic. The returned channel receives
// events published after this call and is closed when ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, topic string) <-chan interface{} {
	ch := make(chan interface{}, subscriberBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[uint64]chan interface{})
		b.topics[topic] = subs
	}
	subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.unsubscribe(topic, id)
	}()

	return ch
}

// Publish delivers the event to every current subscriber of the topic and
// returns the number of subscribers that received it.
func (b *Bus) Publish(topic string, event interface{}) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, ch := range b.topics[topic] {
		select {
		case ch <- event:
			delivered++
		default:
			// Subscriber buffer full; drop rather than block.
		}
	}
	return delivered
}

// SubscriberCount returns the number of active subscribers on the topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *Bus) unsubscribe(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[topic]
	if !ok {
		return
	}
	ch, ok := subs[id]
	if !ok {
		return
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
	// Safe to close here: publishers send only while holding the read lock.
	close(ch)
}
