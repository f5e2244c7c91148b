package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Subject pattern constants and helpers
const (
	streamName = "dispatchr_events"

	// Journal event types
	EventTypeStep      = "step"
	EventTypePlan      = "plan"
	EventTypeIteration = "iteration"
	EventTypeControl   = "control"
)

// JournalSubject returns the JetStream subject for a journal event.
// Example: "dispatchr.journal.mysession.step"
func JournalSubject(session, eventType string) string {
	return fmt.Sprintf("dispatchr.journal.%s.%s", session, eventType)
}

// JournalSubjectForSession returns the wildcard subject pattern for all
// journal events in a session. Example: "dispatchr.journal.mysession.>"
func JournalSubjectForSession(session string) string {
	return fmt.Sprintf("dispatchr.journal.%s.>", session)
}

// RenderSubject returns the core-NATS subject the render bus publishes to.
// Render events are fire-and-forget and never enter JetStream; the journal
// stream only captures dispatchr.journal.> subjects.
// Example: "dispatchr.render.mysession"
func RenderSubject(session string) string {
	return fmt.Sprintf("dispatchr.render.%s", session)
}

// SetupStream creates or updates the JetStream stream for journal events.
// Memory storage keeps replay available for the lifetime of the process
// only; execution history is deliberately not durable across restarts.
func SetupStream(ctx context.Context, js jetstream.JetStream) (jetstream.Stream, error) {
	return js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"dispatchr.journal.>"},
		Storage:  jetstream.MemoryStorage,
	})
}

// CreateConsumer creates a consumer that replays one session's journal
// history from the beginning with explicit acknowledgment.
func CreateConsumer(ctx context.Context, stream jetstream.Stream, session string) (jetstream.Consumer, error) {
	return stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject: JournalSubjectForSession(session),
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
}
