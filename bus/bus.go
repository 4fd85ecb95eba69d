// bus.go
package bus

import (
	"context"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// -----------------------------------------------------------------------------
// Tokens + Topics
// -----------------------------------------------------------------------------

// Token is a single element in a topic path. Any comparable value is a valid
// token; strings and ints cover every topic in this module.
type Token = any

// Wildcard tokens usable in subscription topics only.
const (
	WildOne = "+" // matches exactly one token
	WildAny = "#" // matches any remaining tokens, including none
)

// T validates a token at construction time. It panics on non-comparable
// values so a bad topic fails at the call site, not inside Publish.
func T(v any) Token {
	if v == nil || !reflect.TypeOf(v).Comparable() {
		panic("bus: topic token must be comparable")
	}
	return v
}

// Topic is a sequence of tokens.
type Topic []Token

// matches reports whether pattern pat (which may contain wildcards) covers
// the concrete topic top.
func matches(pat, top Topic) bool {
	for {
		if len(pat) == 0 {
			return len(top) == 0
		}
		if pat[0] == WildAny {
			return true
		}
		if len(top) == 0 {
			return false
		}
		if pat[0] != WildOne && pat[0] != top[0] {
			return false
		}
		pat, top = pat[1:], top[1:]
	}
}

// key returns a canonical string for a concrete (wildcard-free) topic, used
// to index retained messages. Token type is encoded so the string "1" and
// the int 1 do not collide.
func key(t Topic) string {
	var b strings.Builder
	for i, tok := range t {
		if i > 0 {
			b.WriteByte('/')
		}
		switch v := tok.(type) {
		case string:
			b.WriteByte('s')
			b.WriteString(v)
		case int:
			b.WriteByte('i')
			b.WriteString(strconv.Itoa(v))
		default:
			b.WriteByte('v')
			b.WriteString(reflect.TypeOf(tok).String())
		}
	}
	return b.String()
}

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection // owning connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// deliver pushes a message, dropping the oldest queued one on overflow so a
// slow consumer never blocks a publisher.
func (s *Subscription) deliver(m *Message) {
	select {
	case s.ch <- m:
	default:
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- m:
		default:
		}
	}
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

// Bus is a process-local pub/sub hub with retained messages. Topics are flat
// and shallow here, so subscriptions live in a single slice scanned at
// publish time rather than a trie.
type Bus struct {
	mu       sync.RWMutex
	subs     []*Subscription
	retained map[string]*Message
	qLen     int
	replySeq uint64
}

// NewBus creates a new bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8 // safe default
	}
	return &Bus{
		retained: map[string]*Message{},
		qLen:     queueLen,
	}
}

// NewMessage builds a message for this bus.
func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

// Publish delivers a message to every matching subscriber and updates the
// retained store. A retained message with a nil payload clears the slot.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if matches(sub.topic, msg.Topic) {
			sub.deliver(msg)
		}
	}

	if msg.Retained {
		k := key(msg.Topic)
		if msg.Payload == nil {
			delete(b.retained, k)
		} else {
			b.retained[k] = msg
		}
	}
}

func (b *Bus) addSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs = append(b.subs, sub)

	// Replay retained messages the new pattern covers.
	for _, m := range b.retained {
		if matches(sub.topic, m.Topic) {
			sub.deliver(m)
		}
	}
}

func (b *Bus) removeSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	subs []*Subscription
	mu   sync.Mutex
	id   string
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{
		bus: b,
		id:  id,
	}
}

// NewMessage builds a message for the connection's bus.
func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

// Publish sends a message via the bus.
func (c *Connection) Publish(msg *Message) {
	c.bus.Publish(msg)
}

// Subscribe registers a subscription owned by this connection.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Message, c.bus.qLen),
		conn:  c,
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	c.bus.addSubscription(sub)
	return sub
}

// Unsubscribe removes a subscription owned by this connection.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.bus.removeSubscription(sub)
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	close(sub.ch)
}

// Disconnect closes all subscriptions and clears them.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.removeSubscription(sub)
		close(sub.ch)
	}
}

// -----------------------------------------------------------------------------
// Request–Reply
// -----------------------------------------------------------------------------

// Request publishes msg with a fresh ReplyTo topic and returns a
// subscription to that topic. The caller owns the subscription.
func (c *Connection) Request(msg *Message) *Subscription {
	seq := atomic.AddUint64(&c.bus.replySeq, 1)
	msg.ReplyTo = Topic{"_reply", c.id, int(seq)}
	sub := c.Subscribe(msg.ReplyTo)
	c.Publish(msg)
	return sub
}

// RequestWait performs Request and blocks for the first reply or ctx expiry.
func (c *Connection) RequestWait(ctx context.Context, msg *Message) (*Message, error) {
	sub := c.Request(msg)
	defer c.Unsubscribe(sub)
	select {
	case reply := <-sub.ch:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reply answers a request on its ReplyTo topic. A request without ReplyTo is
// ignored.
func (c *Connection) Reply(req *Message, payload any, retained bool) {
	if len(req.ReplyTo) == 0 {
		return
	}
	c.Publish(c.NewMessage(req.ReplyTo, payload, retained))
}
