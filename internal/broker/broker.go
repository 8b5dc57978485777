package broker

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Broker fans messages out to per-topic subscribers. Publish never blocks: a
// subscriber whose buffer is full misses the message.
type Broker struct {
	subscribers map[string][]chan interface{}
	bufferSize  int
	mu          sync.RWMutex
}

func NewBroker(bufferSize int) *Broker {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Broker{
		subscribers: make(map[string][]chan interface{}),
		bufferSize:  bufferSize,
	}
}

func (b *Broker) Subscribe(topic string) <-chan interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan interface{}, b.bufferSize)
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	return ch
}

func (b *Broker) Unsubscribe(topic string, ch <-chan interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if chans, ok := b.subscribers[topic]; ok {
		for i, c := range chans {
			if c == ch {
				b.subscribers[topic] = append(chans[:i], chans[i+1:]...)
				close(c)
				break
			}
		}
		if len(b.subscribers[topic]) == 0 {
			delete(b.subscribers, topic)
		}
	}
}

func (b *Broker) Publish(topic string, msg interface{}) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- msg:
		default:
			log.Warn().Str("topic", topic).Msg("Subscriber buffer full, dropping message")
		}
	}
}

// Subscribers reports how many channels are subscribed to topic.
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}
