// Package sse implements a Server-Sent Events broker for live gradebook updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Grade event kinds.
const (
	GradeRecorded = "grade.recorded"
	GradeDeleted  = "grade.deleted"

	// QuestionUpdated is emitted at most once per throttle interval per
	// question, after grade events for that question.
	QuestionUpdated = "question.updated"
)

// subscriberBuffer is how many frames a slow client may lag before frames
// are dropped for it.
const subscriberBuffer = 64

// GradeEvent is the payload of grade.* events.
type GradeEvent struct {
	Kind       string `json:"-"`
	ID         string `json:"id"`
	QuestionID string `json:"questionId"`
	StudentID  string `json:"studentId,omitempty"`
	Score      int    `json:"score"`
}

type subscriber struct {
	frames   chan []byte
	question string // empty follows every question
}

func (s *subscriber) follows(question string) bool {
	return s.question == "" || s.question == question
}

// Broker fans grade events out to streaming clients.
type Broker struct {
	throttle time.Duration

	mu       sync.Mutex
	subs     map[*subscriber]struct{}
	notified map[string]time.Time // last question.updated per question
	closed   bool
}

// NewBroker creates a broker whose question.updated events are throttled to
// one per interval per question.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = 2 * time.Second
	}
	return &Broker{
		throttle: throttle,
		subs:     make(map[*subscriber]struct{}),
		notified: make(map[string]time.Time),
	}
}

// Subscribe registers a client for events about question, or every question
// when it is empty. The returned cancel func closes the channel; the channel
// is also closed by Close.
func (b *Broker) Subscribe(question string) (<-chan []byte, func()) {
	s := &subscriber{frames: make(chan []byte, subscriberBuffer), question: question}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.frames)
		return s.frames, func() {}
	}
	b.subs[s] = struct{}{}

	return s.frames, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[s]; ok {
			delete(b.subs, s)
			close(s.frames)
		}
	}
}

// Clients returns the number of connected clients.
func (b *Broker) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// PublishGrade sends ev to the clients following its question, followed by
// a throttled question.updated event.
func (b *Broker) PublishGrade(ev GradeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.deliver(ev.QuestionID, frame(ev.Kind, ev))

	now := time.Now()
	if now.Sub(b.notified[ev.QuestionID]) >= b.throttle {
		b.notified[ev.QuestionID] = now
		b.deliver(ev.QuestionID, frame(QuestionUpdated, map[string]string{"questionId": ev.QuestionID}))
	}
}

// deliver must be called with mu held. Full client buffers drop the frame.
func (b *Broker) deliver(question string, raw []byte) {
	if raw == nil {
		return
	}
	for s := range b.subs {
		if !s.follows(question) {
			continue
		}
		select {
		case s.frames <- raw:
		default:
		}
	}
}

func frame(kind string, data any) []byte {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", kind, payload))
}

// Close disconnects every client. Later publishes are dropped.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		close(s.frames)
	}
	clear(b.subs)
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). The optional
// questionId query parameter restricts the stream to one question.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	frames, cancel := b.Subscribe(r.URL.Query().Get("questionId"))
	defer cancel()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case raw, ok := <-frames:
			if !ok {
				return
			}
			if _, err := w.Write(raw); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
