package agent

import (
	"fmt"

	"github.com/mark3labs/dispatchr/internal/tools"
)

const (
	// historyCap bounds the signature ring buffer.
	historyCap = 10
	// repeatWindow is how many recent signatures a check inspects.
	repeatWindow = 3
	// defaultRepeatThreshold applies to tools without a table entry.
	defaultRepeatThreshold = 2
)

// repeatThresholds is the per-tool repeat limit: how many identical
// signatures inside the window trip the guard. File tools get a little
// more slack since re-reading a file after editing it is legitimate.
var repeatThresholds = map[string]int{
	tools.NameReadFile:  3,
	tools.NameWriteFile: 3,
	tools.NameShell:     2,
}

// Signature reduces a call to a comparison key. Parameter order matters,
// so reordered arguments count as a different call.
func Signature(call tools.Call) string {
	return fmt.Sprintf("%s:%s", call.Name, call.Params)
}

// Verdict is the outcome of a repeat check.
type Verdict struct {
	Allowed   bool
	Count     int
	Threshold int
}

// RepeatGuard detects a tool call repeating too often in a short
// window. Each dispatcher owns its own guard; the history is mutable
// and must never be shared across goroutines.
type RepeatGuard struct {
	history []string
}

// NewRepeatGuard returns a guard with empty history.
func NewRepeatGuard() *RepeatGuard {
	return &RepeatGuard{history: make([]string, 0, historyCap)}
}

// Check records the call and reports whether it may run. The signature
// is appended first, then counted against the last repeatWindow
// entries; reaching the tool's threshold rejects the call.
func (g *RepeatGuard) Check(call tools.Call) Verdict {
	sig := Signature(call)

	g.history = append(g.history, sig)
	if len(g.history) > historyCap {
		g.history = g.history[len(g.history)-historyCap:]
	}

	window := g.history
	if len(window) > repeatWindow {
		window = window[len(window)-repeatWindow:]
	}
	count := 0
	for _, s := range window {
		if s == sig {
			count++
		}
	}

	threshold, ok := repeatThresholds[call.Name]
	if !ok {
		threshold = defaultRepeatThreshold
	}
	return Verdict{Allowed: count < threshold, Count: count, Threshold: threshold}
}
