package broadcast

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

// fakeSink records received payloads; it can be made to fail every send.
type fakeSink struct {
	id   string
	fail bool

	mu       sync.Mutex
	received [][]byte
}

func (f *fakeSink) ID() string { return f.id }

func (f *fakeSink) Send(data []byte) error {
	if f.fail {
		return errors.New("connection unreachable")
	}
	f.mu.Lock()
	f.received = append(f.received, data)
	f.mu.Unlock()
	return nil
}

func (f *fakeSink) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.received))
	for i, d := range f.received {
		out[i] = string(d)
	}
	return out
}

func TestPublishReachesSubscribers(t *testing.T) {
	d := NewDispatcher()
	a := &fakeSink{id: "a"}
	b := &fakeSink{id: "b"}
	d.Subscribe("general", a)
	d.Subscribe("general", b)

	d.Publish("general", []byte("hello"))

	for _, s := range []*fakeSink{a, b} {
		got := s.messages()
		if len(got) != 1 || got[0] != "hello" {
			t.Errorf("sink %s: got %v", s.id, got)
		}
	}
}

func TestPublishScopedToChannel(t *testing.T) {
	d := NewDispatcher()
	general := &fakeSink{id: "g"}
	dev := &fakeSink{id: "d"}
	d.Subscribe("general", general)
	d.Subscribe("dev", dev)

	d.Publish("general", []byte("only general"))

	if len(dev.messages()) != 0 {
		t.Error("message leaked to another channel")
	}
	if len(general.messages()) != 1 {
		t.Error("subscriber missed its channel's message")
	}
}

func TestUnreachableConnectionDoesNotAbortFanout(t *testing.T) {
	d := NewDispatcher()

	sinks := make([]*fakeSink, 0, 50)
	for i := 0; i < 50; i++ {
		s := &fakeSink{id: fmt.Sprintf("conn-%d", i)}
		if i == 17 {
			s.fail = true
		}
		sinks = append(sinks, s)
		d.Subscribe("busy", s)
	}

	// Must not panic or error for the caller.
	d.Publish("busy", []byte("fan-out"))

	delivered := 0
	for _, s := range sinks {
		if len(s.messages()) == 1 {
			delivered++
		}
	}
	if delivered != 49 {
		t.Errorf("expected 49 deliveries, got %d", delivered)
	}
}

func TestPerChannelFIFO(t *testing.T) {
	d := NewDispatcher()
	s := &fakeSink{id: "only"}
	d.Subscribe("general", s)

	var wg sync.WaitGroup
	// Sequential publishes from one goroutine must arrive in order.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			d.Publish("general", []byte(fmt.Sprintf("m%d", i)))
		}
	}()
	wg.Wait()

	got := s.messages()
	if len(got) != 100 {
		t.Fatalf("expected 100 messages, got %d", len(got))
	}
	for i, m := range got {
		if m != fmt.Sprintf("m%d", i) {
			t.Fatalf("order violated at %d: got %s", i, m)
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	d := NewDispatcher()
	s := &fakeSink{id: "a"}
	d.Subscribe("general", s)
	d.Unsubscribe("general", "a")

	d.Publish("general", []byte("after"))
	if len(s.messages()) != 0 {
		t.Error("unsubscribed sink still received a message")
	}
	if d.SubscriberCount("general") != 0 {
		t.Error("subscriber count must be zero")
	}
}

func TestUnsubscribeAll(t *testing.T) {
	d := NewDispatcher()
	s := &fakeSink{id: "a"}
	d.Subscribe("general", s)
	d.Subscribe("dev", s)

	d.UnsubscribeAll("a")

	d.Publish("general", []byte("x"))
	d.Publish("dev", []byte("y"))
	if len(s.messages()) != 0 {
		t.Error("UnsubscribeAll left a live subscription")
	}
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	d := NewDispatcher()

	var wg sync.WaitGroup
	for g := 0; g < 20; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s := &fakeSink{id: fmt.Sprintf("conn-%d", id)}
			for i := 0; i < 50; i++ {
				d.Subscribe("general", s)
				d.Publish("general", []byte("tick"))
				d.Unsubscribe("general", s.ID())
			}
		}(g)
	}
	wg.Wait()

	if d.SubscriberCount("general") != 0 {
		t.Errorf("expected empty channel, got %d subscribers", d.SubscriberCount("general"))
	}
}
