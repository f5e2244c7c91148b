// Package journal records what a run did — steps, plan entries, and
// iterations — as an append-only event log in JetStream. State is never
// mutated in place: readers reduce the event history into a State.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/mark3labs/dispatchr/internal/logger"
	"github.com/mark3labs/dispatchr/internal/nats"
)

// Event is one entry in the journal stream.
type Event struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Session   string          `json:"session"`
	Type      string          `json:"type"`   // step, plan, iteration, control
	Action    string          `json:"action"` // add, status, start, complete, ...
	Meta      json.RawMessage `json:"meta"`
	Data      string          `json:"data"`
}

// Store publishes journal events and reduces them back into State.
type Store struct {
	js     jetstream.JetStream
	stream jetstream.Stream
}

// NewStore wraps a JetStream context and the journal stream.
func NewStore(js jetstream.JetStream, stream jetstream.Stream) *Store {
	return &Store{js: js, stream: stream}
}

// PublishEvent appends an event to the journal. The subject is derived
// from the session and event type.
func (s *Store) PublishEvent(ctx context.Context, event Event) (*jetstream.PubAck, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshaling event: %w", err)
	}

	subject := nats.JournalSubject(event.Session, event.Type)
	logger.Debug("publishing event: session=%s type=%s action=%s", event.Session, event.Type, event.Action)

	ack, err := s.js.Publish(ctx, subject, data)
	if err != nil {
		logger.Error("failed to publish event to %s: %v", subject, err)
		return nil, fmt.Errorf("publishing event: %w", err)
	}
	return ack, nil
}

// StepRecord is one completed tool execution.
type StepRecord struct {
	ID        string    `json:"id"`
	Tool      string    `json:"tool"`
	Params    string    `json:"params"`
	Content   string    `json:"content"`
	Success   bool      `json:"success"`
	Cancelled bool      `json:"cancelled,omitempty"`
	Iteration int       `json:"iteration"`
	CreatedAt time.Time `json:"created_at"`
}

// PlanEntry is one checklist item in the session plan.
type PlanEntry struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Status    string    `json:"status"` // pending, in_progress, done
	Iteration int       `json:"iteration"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Iteration is one pass of the agent loop.
type Iteration struct {
	Number    int       `json:"number"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Complete  bool      `json:"complete"`
}

// State is a session's journal reduced to its current values.
type State struct {
	Session    string        `json:"session"`
	Steps      []*StepRecord `json:"steps"`
	Plan       []*PlanEntry  `json:"plan"`
	Iterations []*Iteration  `json:"iterations"`
	Complete   bool          `json:"complete"`
}

// Apply folds one event into the state.
func (st *State) Apply(event Event) {
	switch event.Type {
	case nats.EventTypeStep:
		st.applyStep(event)
	case nats.EventTypePlan:
		st.applyPlan(event)
	case nats.EventTypeIteration:
		st.applyIteration(event)
	case nats.EventTypeControl:
		st.applyControl(event)
	}
}

func (st *State) applyStep(event Event) {
	if event.Action != "add" {
		return
	}
	var meta struct {
		Tool      string `json:"tool"`
		Params    string `json:"params"`
		Success   bool   `json:"success"`
		Cancelled bool   `json:"cancelled"`
		Iteration int    `json:"iteration"`
	}
	json.Unmarshal(event.Meta, &meta)

	st.Steps = append(st.Steps, &StepRecord{
		ID:        event.ID,
		Tool:      meta.Tool,
		Params:    meta.Params,
		Content:   event.Data,
		Success:   meta.Success,
		Cancelled: meta.Cancelled,
		Iteration: meta.Iteration,
		CreatedAt: event.Timestamp,
	})
}

func (st *State) applyPlan(event Event) {
	switch event.Action {
	case "add":
		var meta struct {
			Iteration int `json:"iteration"`
		}
		json.Unmarshal(event.Meta, &meta)

		st.Plan = append(st.Plan, &PlanEntry{
			ID:        event.ID,
			Text:      event.Data,
			Status:    "pending",
			Iteration: meta.Iteration,
			CreatedAt: event.Timestamp,
			UpdatedAt: event.Timestamp,
		})

	case "status":
		var meta struct {
			Index     int    `json:"index"`
			Status    string `json:"status"`
			Iteration int    `json:"iteration"`
		}
		json.Unmarshal(event.Meta, &meta)

		if meta.Index >= 0 && meta.Index < len(st.Plan) {
			entry := st.Plan[meta.Index]
			entry.Status = meta.Status
			entry.Iteration = meta.Iteration
			entry.UpdatedAt = event.Timestamp
		}
	}
}

func (st *State) applyIteration(event Event) {
	var meta struct {
		Number int `json:"number"`
	}
	json.Unmarshal(event.Meta, &meta)

	switch event.Action {
	case "start":
		st.Iterations = append(st.Iterations, &Iteration{
			Number:    meta.Number,
			StartedAt: event.Timestamp,
		})
	case "complete":
		for _, iter := range st.Iterations {
			if iter.Number == meta.Number {
				iter.Complete = true
				iter.EndedAt = event.Timestamp
				break
			}
		}
	}
}

func (st *State) applyControl(event Event) {
	if event.Action == "session_complete" {
		st.Complete = true
	}
}

// LoadState reduces a session's full event history into its current state.
func (s *Store) LoadState(ctx context.Context, session string) (*State, error) {
	consumer, err := nats.CreateConsumer(ctx, s.stream, session)
	if err != nil {
		return nil, fmt.Errorf("creating consumer: %w", err)
	}

	state := &State{Session: session}

	const batchSize = 1000
	malformed := 0
	for {
		msgs, err := consumer.FetchNoWait(batchSize)
		if err != nil {
			break
		}

		count := 0
		for msg := range msgs.Messages() {
			count++
			var event Event
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				malformed++
				msg.Ack()
				continue
			}
			if event.ID == "" {
				if meta, err := msg.Metadata(); err == nil {
					event.ID = fmt.Sprintf("%d", meta.Sequence.Stream)
				}
			}
			state.Apply(event)
			msg.Ack()
		}

		if count < batchSize {
			break
		}
	}

	if malformed > 0 {
		logger.Warn("skipped %d malformed events loading session %s", malformed, session)
	}
	return state, nil
}
