package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/mark3labs/dispatchr/internal/nats"
)

// StepAdd appends a completed tool execution to the journal. Missing id
// and timestamp fields are filled in.
func (s *Store) StepAdd(ctx context.Context, session string, step StepRecord) (*StepRecord, error) {
	if step.Tool == "" {
		return nil, fmt.Errorf("tool is required")
	}
	if step.ID == "" {
		step.ID = xid.New().String()
	}
	if step.CreatedAt.IsZero() {
		step.CreatedAt = time.Now()
	}

	meta, _ := json.Marshal(map[string]any{
		"tool":      step.Tool,
		"params":    step.Params,
		"success":   step.Success,
		"cancelled": step.Cancelled,
		"iteration": step.Iteration,
	})

	event := Event{
		ID:        step.ID,
		Timestamp: step.CreatedAt,
		Session:   session,
		Type:      nats.EventTypeStep,
		Action:    "add",
		Data:      step.Content,
		Meta:      meta,
	}
	if _, err := s.PublishEvent(ctx, event); err != nil {
		return nil, err
	}
	return &step, nil
}

// Steps returns the session's steps in append order.
func (s *Store) Steps(ctx context.Context, session string) ([]*StepRecord, error) {
	state, err := s.LoadState(ctx, session)
	if err != nil {
		return nil, err
	}
	return state.Steps, nil
}
