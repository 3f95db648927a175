// Package auditsink fires audit events, as unsigned JSON POSTs, at an
// external HTTP collector without ever blocking or failing the caller.
package auditsink

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Event is one audit record, POSTed as JSON to the configured URL.
type Event struct {
	EventID    string         `json:"event_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Actor      string         `json:"actor"`
	Action     string         `json:"action"`
	Context    map[string]any `json:"context,omitempty"`
}

// Sink posts events to a fixed URL, fire-and-forget, through a bounded
// worker pool fed by a buffered channel so Send never blocks the caller
// beyond a full channel.
type Sink struct {
	url    string
	client *http.Client
	logger *slog.Logger
	events chan Event
	done   chan struct{}
}

// New starts a Sink posting to url with the given number of worker
// goroutines draining a bounded queue. If url is empty, Send is a no-op
// (no collector configured).
func New(url string, logger *slog.Logger, workers int) *Sink {
	if workers <= 0 {
		workers = 2
	}
	s := &Sink{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
		events: make(chan Event, 256),
		done:   make(chan struct{}),
	}
	if url != "" {
		for i := 0; i < workers; i++ {
			go s.worker()
		}
	}
	return s
}

// Send enqueues an audit event for actor performing action, with optional
// context fields. It never blocks on network I/O. It drops the event with
// a log line if the internal queue is full, and silently if no URL is
// configured.
func (s *Sink) Send(actor, action string, context map[string]any) {
	if s.url == "" {
		return
	}
	event := Event{
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Actor:      actor,
		Action:     action,
		Context:    context,
	}
	select {
	case s.events <- event:
	default:
		s.logger.Warn("audit sink queue full, dropping event", "action", action)
	}
}

func (s *Sink) worker() {
	for {
		select {
		case event := <-s.events:
			s.post(event)
		case <-s.done:
			return
		}
	}
}

func (s *Sink) post(event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("marshaling audit event failed", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		s.logger.Warn("building audit request failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("posting audit event failed", "error", err)
		return
	}
	resp.Body.Close()
}

// Close stops the background workers. Queued-but-unsent events are
// dropped.
func (s *Sink) Close() { close(s.done) }
