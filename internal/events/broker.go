package events

import (
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"messenger-service/internal/observability"
)

// Topic names. Message change events share one topic and are filtered by the
// consumer; typing and presence are scoped per pair and per user.
const TopicMessages = "messages"

// TopicTyping returns the typing topic for a sorted-pair key.
func TopicTyping(pairKey string) string {
	return "typing:" + pairKey
}

// TopicPresence returns the presence topic for a user.
func TopicPresence(userID int) string {
	return "presence:" + strconv.Itoa(userID)
}

// TopicRequests returns the friend-request topic for a receiver.
func TopicRequests(receiverID int) string {
	return "requests:" + strconv.Itoa(receiverID)
}

const subscriptionBuffer = 64

// Subscription is a cancellable handle on a topic. Events arrive on C until
// Cancel is called; cancelling twice is safe.
type Subscription struct {
	C <-chan any

	topic  string
	ch     chan any
	broker *Broker
	mu     sync.Mutex
	closed bool
}

// Cancel detaches the subscription and closes its channel.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	s.broker.remove(s)
}

// send delivers without blocking. A publish racing a Cancel is dropped, not
// a panic.
func (s *Subscription) send(event any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- event:
		return true
	default:
		return false
	}
}

// Topic reports the subscribed topic.
func (s *Subscription) Topic() string {
	return s.topic
}

// Broker is an in-process typed pub/sub fabric standing in for a hosted
// row-change feed. Publish never blocks: a subscriber that cannot keep up
// loses the event.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{topics: make(map[string]map[*Subscription]struct{})}
}

// Subscribe attaches a new subscription to a topic.
func (b *Broker) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		topic:  topic,
		ch:     make(chan any, subscriptionBuffer),
		broker: b,
	}
	sub.C = sub.ch

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.topics[topic]; !ok {
		b.topics[topic] = make(map[*Subscription]struct{})
	}
	b.topics[topic][sub] = struct{}{}
	return sub
}

// Publish delivers an event to every current subscriber of the topic.
func (b *Broker) Publish(topic string, event any) {
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.topics[topic]))
	for sub := range b.topics[topic] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		if !sub.send(event) {
			observability.IncBrokerDropped(topic)
			log.Warn().Str("topic", topic).Msg("event dropped, slow subscriber")
		}
	}
}

// SubscriberCount reports the number of live subscriptions on a topic.
func (b *Broker) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.topics[sub.topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.topics, sub.topic)
		}
	}
}
