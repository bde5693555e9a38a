package realtime

import (
	"context"
	"log/slog"
	"sync"
)

const subscriberBuffer = 64

type subscriber struct {
	ch     chan Event
	topics map[string]struct{}
}

// MemoryBroker 进程内广播。订阅者缓冲区满时丢弃事件，不阻塞发布方
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
	logger *slog.Logger
}

func NewMemoryBroker(logger *slog.Logger) *MemoryBroker {
	return &MemoryBroker{
		subs:   make(map[*subscriber]struct{}),
		logger: logger.With("component", "realtime"),
	}
}

func (b *MemoryBroker) Publish(_ context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	for sub := range b.subs {
		if _, ok := sub.topics[ev.Topic]; !ok {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.logger.Warn("Subscriber buffer full, dropping event", "topic", ev.Topic, "type", ev.Type)
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, topics ...string) (<-chan Event, func(), error) {
	sub := &subscriber{
		ch:     make(chan Event, subscriberBuffer),
		topics: make(map[string]struct{}, len(topics)),
	}
	for _, t := range topics {
		sub.topics[t] = struct{}{}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, nil, ErrClosed
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[sub]; ok {
				delete(b.subs, sub)
				close(sub.ch)
			}
			b.mu.Unlock()
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return sub.ch, cancel, nil
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sub)
	}
	return nil
}
