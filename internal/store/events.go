package store

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/classpad-app/classpad-sync/internal/observability"
)

const eventBufferSize = 16

// EventType classifies a task store event.
type EventType string

const (
	// EventTaskUpdated is published after any successful mutation of a task,
	// submissions included.
	EventTaskUpdated EventType = "task_updated"
	// EventTaskRemoved is published after a task is deleted.
	EventTaskRemoved EventType = "task_removed"
)

// TaskEvent is the cross-cutting signal independent surfaces subscribe to
// instead of depending on each other directly.
type TaskEvent struct {
	Type   EventType `json:"type"`
	TaskID string    `json:"task_id"`
	SentAt time.Time `json:"sent_at"`
}

type taskEventBroker struct {
	mu          sync.RWMutex
	subscribers map[chan TaskEvent]struct{}
}

func newTaskEventBroker() *taskEventBroker {
	return &taskEventBroker{subscribers: make(map[chan TaskEvent]struct{})}
}

// Subscribe registers an observer of task events. The returned cancel
// function must be called when the observer goes away.
func (s *TaskStore) Subscribe() (<-chan TaskEvent, func()) {
	channel := make(chan TaskEvent, eventBufferSize)
	s.broker.subscribe(channel)

	cleanup := func() {
		s.broker.unsubscribe(channel)
	}
	return channel, cleanup
}

// publishEvent fans the event out to in-process subscribers and, when a NATS
// connection is configured, to the external subject as well.
func (s *TaskStore) publishEvent(eventType EventType, taskID string) {
	event := TaskEvent{
		Type:   eventType,
		TaskID: taskID,
		SentAt: s.now().UTC(),
	}

	s.broker.broadcast(event)
	observability.TaskEvents().WithLabelValues(string(eventType)).Inc()

	if s.nats == nil || s.subject == "" {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode task event")
		return
	}
	if err := s.nats.Publish(s.subject, payload); err != nil {
		s.logger.Warn().Err(err).Str("subject", s.subject).Msg("failed to publish task event")
	}
}

func (b *taskEventBroker) subscribe(ch chan TaskEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[ch] = struct{}{}
}

func (b *taskEventBroker) unsubscribe(ch chan TaskEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

func (b *taskEventBroker) broadcast(event TaskEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
