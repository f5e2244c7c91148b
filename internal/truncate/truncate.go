// Package truncate summarizes oversized tool output for display. The
// full text always survives in the step log; only what gets shown (and
// fed back to the model) is bounded.
package truncate

import (
	"fmt"
	"strings"
)

// DefaultLimit is the character budget when none is configured.
const DefaultLimit = 4000

// Gate summarizes content that exceeds its limit by keeping the head
// and tail around an elision marker.
type Gate struct {
	limit int
}

// New returns a gate with the given character limit. Zero or negative
// falls back to DefaultLimit.
func New(limit int) *Gate {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Gate{limit: limit}
}

// Check returns a summarized form of content and true when content is
// over the limit, or "" and false when it fits as-is. The metadata map
// is accepted for interface compatibility and not consulted; callers
// decide when to skip the gate.
func (g *Gate) Check(content, contentType, source string, _ map[string]string) (string, bool) {
	if len(content) <= g.limit {
		return "", false
	}

	head := g.limit / 2
	tail := g.limit - head
	marker := fmt.Sprintf(
		"\n... [%d chars elided, type=%s, source=%s] ...\n",
		len(content)-head-tail, contentType, source,
	)

	var b strings.Builder
	b.WriteString(content[:head])
	b.WriteString(marker)
	b.WriteString(content[len(content)-tail:])
	return b.String(), true
}
