package mq

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

// MemoryBackend delivers messages in-process. Messages published before a
// subscriber attaches are buffered per channel.
type MemoryBackend struct {
	mu     sync.Mutex
	queues map[string]chan Message
	nextID int
	closed bool
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{queues: make(map[string]chan Message)}
}

const memoryQueueSize = 256

func (b *MemoryBackend) queue(channel string) chan Message {
	q, ok := b.queues[channel]
	if !ok {
		q = make(chan Message, memoryQueueSize)
		b.queues[channel] = q
	}
	return q
}

func (b *MemoryBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if channel == "" {
		return "", errors.New("memory channel is required")
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return "", errors.New("memory backend closed")
	}
	b.nextID++
	msg := Message{ID: strconv.Itoa(b.nextID), Data: data, Attributes: attrs}
	q := b.queue(channel)
	b.mu.Unlock()

	select {
	case q <- msg:
		return msg.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Subscribe blocks until ctx is done. Failed messages are redelivered.
func (b *MemoryBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	b.mu.Lock()
	q := b.queue(channel)
	b.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-q:
			if err := handler(ctx, msg); err != nil {
				select {
				case q <- msg:
				default:
				}
			}
		}
	}
}

// Pending returns the number of undelivered messages on channel.
func (b *MemoryBackend) Pending(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue(channel))
}

func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}
