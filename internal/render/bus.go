package render

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mark3labs/dispatchr/internal/logger"
	inats "github.com/mark3labs/dispatchr/internal/nats"
	"github.com/mark3labs/dispatchr/internal/tools"
)

// Bus publishes render events to the session's render subject on core
// NATS. Publishing is fire-and-forget so execution never blocks on
// drawing; Flush round-trips a barrier through the listener.
type Bus struct {
	nc      *nats.Conn
	subject string
}

// NewBus returns a renderer that publishes to the session's render subject.
func NewBus(nc *nats.Conn, session string) *Bus {
	return &Bus{nc: nc, subject: inats.RenderSubject(session)}
}

func (b *Bus) publish(e Event) {
	if err := b.nc.Publish(b.subject, e.Marshal()); err != nil {
		logger.Error("render publish failed: %v", err)
	}
}

func (b *Bus) IterationStart(number, max int) {
	b.publish(Event{Kind: KindIteration, Number: number, Max: max})
}

func (b *Bus) ToolCall(tool, params string, position, total int) {
	b.publish(Event{Kind: KindToolCall, Tool: tool, Params: params, Position: position, Total: total})
}

func (b *Bus) ToolResult(v ResultView) {
	b.publish(Event{Kind: KindToolResult, Tool: v.Tool, Params: v.Params, Text: v.Content, Success: v.Success, ElapsedMs: v.ElapsedMs})
}

func (b *Bus) Edit(path, before, after string) {
	b.publish(Event{Kind: KindEdit, Path: path, Before: before, After: after})
}

func (b *Bus) Sketch(lang, source string) {
	b.publish(Event{Kind: KindSketch, Lang: lang, Text: source})
}

func (b *Bus) PlanSummary(items []tools.PlanItem) {
	b.publish(Event{Kind: KindPlan, Items: items})
}

func (b *Bus) TaskComplete(summary string) {
	b.publish(Event{Kind: KindTaskComplete, Text: summary})
}

func (b *Bus) RepeatWarning(tool string, count int) {
	b.publish(Event{Kind: KindRepeatWarning, Text: tool, Count: count})
}

func (b *Bus) ToolStarted(title string) {
	b.publish(Event{Kind: KindToolStarted, Title: title})
}

func (b *Bus) ToolFinished(title, output string, success bool) {
	b.publish(Event{Kind: KindToolFinished, Title: title, Text: output, Success: success})
}

func (b *Bus) ThoughtChunk(text string) {
	b.publish(Event{Kind: KindThoughtChunk, Text: text})
}

func (b *Bus) MessageChunk(text string) {
	b.publish(Event{Kind: KindMessageChunk, Text: text})
}

func (b *Bus) CloseThought() {
	b.publish(Event{Kind: KindThoughtEnd})
}

func (b *Bus) CloseMessage() {
	b.publish(Event{Kind: KindMessageEnd})
}

func (b *Bus) Info(text string) {
	b.publish(Event{Kind: KindInfo, Text: text})
}

func (b *Bus) Warn(text string) {
	b.publish(Event{Kind: KindWarn, Text: text})
}

func (b *Bus) Error(text string) {
	b.publish(Event{Kind: KindError, Text: text})
}

// Flush blocks until the listener has drawn everything published before
// it. A missing listener is not an error; there is nothing to wait for.
func (b *Bus) Flush() error {
	_, err := b.nc.Request(b.subject, Event{Kind: kindSync}.Marshal(), 2*time.Second)
	if err == nil || errors.Is(err, nats.ErrNoResponders) {
		return nil
	}
	return err
}

// Listener subscribes to a session's render subject and replays events
// onto a sink, answering the bus's sync barriers. NATS delivers per
// subscription in order, so the sink sees events exactly as published.
type Listener struct {
	sub  *nats.Subscription
	sink Renderer
}

// Listen attaches sink to the session's render subject.
func Listen(nc *nats.Conn, session string, sink Renderer) (*Listener, error) {
	l := &Listener{sink: sink}
	sub, err := nc.Subscribe(inats.RenderSubject(session), l.handle)
	if err != nil {
		return nil, err
	}
	l.sub = sub
	return l, nil
}

func (l *Listener) handle(msg *nats.Msg) {
	var e Event
	if err := json.Unmarshal(msg.Data, &e); err != nil {
		logger.Warn("dropping malformed render event: %v", err)
		return
	}
	if e.Kind == kindSync {
		if msg.Reply != "" {
			msg.Respond(nil)
		}
		return
	}
	Dispatch(e, l.sink)
}

// Close detaches the listener from the subject.
func (l *Listener) Close() error {
	return l.sub.Unsubscribe()
}
