// Package messaging provides a NATS client wrapper for pub/sub across
// service instances. Chat servers publish every stored message twice: to a
// per-channel subject so peer instances can fan it out to their own
// WebSocket clients, and to the archive subject consumed by the archiver
// for durable Postgres storage.
package messaging

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/consilience/collab-chat/internal/chat"
)

// NATS subject patterns.
const (
	SubjectChannel = "chat.channel" // + .<channel>, cross-instance fan-out
	SubjectArchive = "chat.archive" // consumed by the archiver
)

// Envelope wraps a stored message with the originating server instance so
// that subscribers can drop their own publications.
type Envelope struct {
	Origin  string       `json:"origin"`
	Message chat.Message `json:"message"`
}

// Client wraps the NATS connection with helper methods for pub/sub.
type Client struct {
	conn   *nats.Conn
	origin string // this instance's name, stamped on every publish
	mu     sync.Mutex
	subs   map[string]*nats.Subscription
}

// Config holds NATS connection settings.
type Config struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		Name:          "collab-chat",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewClient connects to NATS with the given config and returns a ready client.
// It returns an error if the initial connection fails.
func NewClient(config Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &Client{
		conn:   nc,
		origin: config.Name,
		subs:   make(map[string]*nats.Subscription),
	}, nil
}

// PublishMessage publishes a stored message to its channel subject and to the
// archive subject. It satisfies the engine's relay interface.
func (c *Client) PublishMessage(msg chat.Message) error {
	data, err := json.Marshal(Envelope{Origin: c.origin, Message: msg})
	if err != nil {
		return fmt.Errorf("nats: marshal envelope: %w", err)
	}

	if err := c.conn.Publish(SubjectChannel+"."+msg.Channel, data); err != nil {
		return fmt.Errorf("nats publish channel: %w", err)
	}
	if err := c.conn.Publish(SubjectArchive, data); err != nil {
		return fmt.Errorf("nats publish archive: %w", err)
	}
	return nil
}

// SubscribeChannels subscribes to every channel subject and invokes the
// handler for messages published by OTHER instances. The chat server uses
// this to fan remote messages out to its local WebSocket clients.
func (c *Client) SubscribeChannels(handler func(msg chat.Message)) error {
	subject := SubjectChannel + ".>"
	return c.subscribe(subject, func(m *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(m.Data, &env); err != nil {
			log.Printf("[nats] bad envelope on %s: %v", m.Subject, err)
			return
		}
		if env.Origin == c.origin {
			return
		}
		handler(env.Message)
	})
}

// SubscribeArchive subscribes to the archive subject with a queue group so
// that multiple archiver instances share the stream without duplicating rows.
func (c *Client) SubscribeArchive(handler func(msg chat.Message)) error {
	sub, err := c.conn.QueueSubscribe(SubjectArchive, "archivers", func(m *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(m.Data, &env); err != nil {
			log.Printf("[nats] bad envelope on %s: %v", m.Subject, err)
			return
		}
		handler(env.Message)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", SubjectArchive, err)
	}

	c.mu.Lock()
	c.subs[SubjectArchive] = sub
	c.mu.Unlock()
	return nil
}

// subscribe registers a raw handler for a subject and stores the subscription
// for later cleanup.
func (c *Client) subscribe(subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[subject] = sub
	c.mu.Unlock()
	return nil
}

// Unsubscribe removes and unsubscribes from a specific subject.
func (c *Client) Unsubscribe(subject string) error {
	c.mu.Lock()
	sub, ok := c.subs[subject]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for subject %s", subject)
	}
	delete(c.subs, subject)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", subject, err)
	}
	return nil
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}
