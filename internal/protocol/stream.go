package protocol

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// maxEventBytes bounds a single stream line. Agents embed whole file
// contents in rawOutput, so the default Scanner limit is far too small.
const maxEventBytes = 1 << 20

// Consume reads newline-delimited JSON events from r until EOF, feeding
// each through Handle. Blank lines are skipped and malformed lines surface
// as informational output; only a read error or a cancelled context stops
// the stream early.
func (n *Normalizer) Consume(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxEventBytes)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			n.out.Info(fmt.Sprintf("skipping malformed event: %v", err))
			continue
		}
		n.Handle(e)
	}
	return sc.Err()
}
