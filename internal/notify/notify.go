// Package notify wakes long-polling acquirers when jobs on a topic become
// available. Notifications are hints: a waiter always re-polls the store.
package notify

import (
	"context"
	"sync"
)

// Notifier broadcasts topic availability.
type Notifier interface {
	// Publish wakes every current waiter on topic.
	Publish(ctx context.Context, topic string) error
	// Watch returns a channel closed by the next Publish on topic.
	Watch(topic string) <-chan struct{}
	Close() error
}

// Memory is an in-process Notifier. Each topic has one channel that is
// closed and replaced on publish.
type Memory struct {
	mu     sync.Mutex
	topics map[string]chan struct{}
}

// NewMemory returns an empty in-process notifier.
func NewMemory() *Memory {
	return &Memory{topics: map[string]chan struct{}{}}
}

func (m *Memory) Watch(topic string) <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.topics[topic]
	if !ok {
		ch = make(chan struct{})
		m.topics[topic] = ch
	}
	return ch
}

func (m *Memory) Publish(_ context.Context, topic string) error {
	m.wake(topic)
	return nil
}

func (m *Memory) wake(topic string) {
	m.mu.Lock()
	ch, ok := m.topics[topic]
	if ok {
		delete(m.topics, topic)
	}
	m.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Close wakes every waiter.
func (m *Memory) Close() error {
	m.mu.Lock()
	topics := m.topics
	m.topics = map[string]chan struct{}{}
	m.mu.Unlock()
	for _, ch := range topics {
		close(ch)
	}
	return nil
}
