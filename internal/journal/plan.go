package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/mark3labs/dispatchr/internal/nats"
	"github.com/mark3labs/dispatchr/internal/tools"
)

// PlanAdd appends checklist items, all starting as pending.
func (s *Store) PlanAdd(ctx context.Context, session string, items []string, iteration int) ([]*PlanEntry, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("at least one item is required")
	}

	entries := make([]*PlanEntry, 0, len(items))
	for _, text := range items {
		if text == "" {
			return nil, fmt.Errorf("plan items must not be empty")
		}

		id := xid.New().String()
		now := time.Now()
		meta, _ := json.Marshal(map[string]any{"iteration": iteration})

		event := Event{
			ID:        id,
			Timestamp: now,
			Session:   session,
			Type:      nats.EventTypePlan,
			Action:    "add",
			Data:      text,
			Meta:      meta,
		}
		if _, err := s.PublishEvent(ctx, event); err != nil {
			return nil, err
		}

		entries = append(entries, &PlanEntry{
			ID:        id,
			Text:      text,
			Status:    tools.PlanPending,
			Iteration: iteration,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return entries, nil
}

// PlanSetStatus updates the status of the plan entry at index (0-based).
// The index is validated against current state before publishing, so a
// stale or out-of-range index fails instead of appending a dead event.
func (s *Store) PlanSetStatus(ctx context.Context, session string, index int, status string, iteration int) error {
	if !isValidPlanStatus(status) {
		return fmt.Errorf("invalid status: %s (must be pending, in_progress, or done)", status)
	}

	state, err := s.LoadState(ctx, session)
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}
	if index < 0 || index >= len(state.Plan) {
		return fmt.Errorf("plan item %d out of range (plan has %d items)", index+1, len(state.Plan))
	}

	meta, _ := json.Marshal(map[string]any{
		"index":     index,
		"status":    status,
		"iteration": iteration,
	})

	event := Event{
		Session: session,
		Type:    nats.EventTypePlan,
		Action:  "status",
		Data:    status,
		Meta:    meta,
	}
	_, err = s.PublishEvent(ctx, event)
	return err
}

// PlanEntries returns the current plan in insertion order.
func (s *Store) PlanEntries(ctx context.Context, session string) ([]*PlanEntry, error) {
	state, err := s.LoadState(ctx, session)
	if err != nil {
		return nil, err
	}
	return state.Plan, nil
}

func isValidPlanStatus(status string) bool {
	switch status {
	case tools.PlanPending, tools.PlanInProgress, tools.PlanDone:
		return true
	default:
		return false
	}
}

// SessionPlan binds a store to one session and an iteration supplier,
// satisfying the plan tool's store port.
type SessionPlan struct {
	store     *Store
	session   string
	iteration func() int
}

// NewSessionPlan returns a session-scoped plan store. The iteration
// supplier attributes writes to the loop pass that made them; nil means
// iteration 0.
func NewSessionPlan(store *Store, session string, iteration func() int) *SessionPlan {
	if iteration == nil {
		iteration = func() int { return 0 }
	}
	return &SessionPlan{store: store, session: session, iteration: iteration}
}

func (p *SessionPlan) PlanAdd(ctx context.Context, items []string) error {
	_, err := p.store.PlanAdd(ctx, p.session, items, p.iteration())
	return err
}

func (p *SessionPlan) PlanSetStatus(ctx context.Context, index int, status string) error {
	return p.store.PlanSetStatus(ctx, p.session, index, status, p.iteration())
}

func (p *SessionPlan) PlanItems(ctx context.Context) ([]tools.PlanItem, error) {
	entries, err := p.store.PlanEntries(ctx, p.session)
	if err != nil {
		return nil, err
	}
	items := make([]tools.PlanItem, len(entries))
	for i, entry := range entries {
		items[i] = tools.PlanItem{Text: entry.Text, Status: entry.Status}
	}
	return items, nil
}
