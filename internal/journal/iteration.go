package journal

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/dispatchr/internal/nats"
)

// IterationStart records the beginning of a loop pass.
func (s *Store) IterationStart(ctx context.Context, session string, number int) error {
	meta, _ := json.Marshal(map[string]any{"number": number})
	_, err := s.PublishEvent(ctx, Event{
		Session: session,
		Type:    nats.EventTypeIteration,
		Action:  "start",
		Meta:    meta,
	})
	return err
}

// IterationComplete records the end of a loop pass.
func (s *Store) IterationComplete(ctx context.Context, session string, number int) error {
	meta, _ := json.Marshal(map[string]any{"number": number})
	_, err := s.PublishEvent(ctx, Event{
		Session: session,
		Type:    nats.EventTypeIteration,
		Action:  "complete",
		Meta:    meta,
	})
	return err
}

// MarkComplete records that the session's task finished.
func (s *Store) MarkComplete(ctx context.Context, session string) error {
	_, err := s.PublishEvent(ctx, Event{
		Session: session,
		Type:    nats.EventTypeControl,
		Action:  "session_complete",
	})
	return err
}
