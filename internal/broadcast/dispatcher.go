// Package broadcast fans out encoded messages to the connections subscribed
// to a channel. Delivery is FIFO per channel; there is no ordering guarantee
// across channels. A connection that fails a write is skipped for that
// message only; it is not retried and never aborts delivery to the rest.
package broadcast

import (
	"log"
	"sync"

	"github.com/consilience/collab-chat/internal/metrics"
)

// Sink is the write side of a subscribed connection.
type Sink interface {
	// ID returns the connection handle.
	ID() string
	// Send writes one encoded message. It must not block indefinitely;
	// the ws layer enforces a write deadline.
	Send(data []byte) error
}

// channelState holds one channel's subscribers and its publish-order lock.
type channelState struct {
	order sync.Mutex // held across one publish to preserve FIFO
	subs  map[string]Sink
}

// Dispatcher manages channel subscriptions and fan-out. Subscription
// membership is independent of presence: a connection may be present but
// subscribed to nothing.
type Dispatcher struct {
	mu       sync.RWMutex
	channels map[string]*channelState
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{channels: make(map[string]*channelState)}
}

// Subscribe adds a connection to a channel. Re-subscribing replaces the
// previous sink for the same handle.
func (d *Dispatcher) Subscribe(channel string, sink Sink) {
	d.mu.Lock()
	cs, ok := d.channels[channel]
	if !ok {
		cs = &channelState{subs: make(map[string]Sink)}
		d.channels[channel] = cs
	}
	cs.subs[sink.ID()] = sink
	d.mu.Unlock()
}

// Unsubscribe removes a connection from a channel. Unknown handles or
// channels are ignored.
func (d *Dispatcher) Unsubscribe(channel, handle string) {
	d.mu.Lock()
	if cs, ok := d.channels[channel]; ok {
		delete(cs.subs, handle)
		if len(cs.subs) == 0 {
			delete(d.channels, channel)
		}
	}
	d.mu.Unlock()
}

// UnsubscribeAll removes a connection from every channel. Called on
// disconnect.
func (d *Dispatcher) UnsubscribeAll(handle string) {
	d.mu.Lock()
	for channel, cs := range d.channels {
		delete(cs.subs, handle)
		if len(cs.subs) == 0 {
			delete(d.channels, channel)
		}
	}
	d.mu.Unlock()
}

// SubscriberCount returns the number of connections subscribed to a channel.
func (d *Dispatcher) SubscriberCount(channel string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if cs, ok := d.channels[channel]; ok {
		return len(cs.subs)
	}
	return 0
}

// Publish delivers data to every connection subscribed to the channel, in
// the order Publish calls were issued for that channel. Write failures are
// logged, counted, and swallowed; Publish never returns an error to the
// caller on behalf of an unreachable subscriber.
func (d *Dispatcher) Publish(channel string, data []byte) {
	d.mu.RLock()
	cs, ok := d.channels[channel]
	if !ok {
		d.mu.RUnlock()
		return
	}
	// Snapshot subscribers so the send loop runs without the registry lock.
	sinks := make([]Sink, 0, len(cs.subs))
	for _, s := range cs.subs {
		sinks = append(sinks, s)
	}
	d.mu.RUnlock()

	// The order lock serializes publishes per channel: messages reach every
	// subscriber in publish-call order.
	cs.order.Lock()
	defer cs.order.Unlock()

	for _, sink := range sinks {
		if err := sink.Send(data); err != nil {
			log.Printf("[broadcast] drop channel=%s conn=%s: %v", channel, sink.ID(), err)
			metrics.BroadcastDeliveries.WithLabelValues("dropped").Inc()
			continue
		}
		metrics.BroadcastDeliveries.WithLabelValues("delivered").Inc()
	}
}
