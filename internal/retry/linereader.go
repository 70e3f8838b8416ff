// Package retry implements the generator-driven Retry Stream: it wraps one
// generator invocation as a stream of validated StreamEvents, transparently
// recovering from parse and patch-validation failures by splicing in a
// corrective continuation without rewinding already-emitted events.
package retry

import "strings"

// LineAccumulator is the stateful transducer that turns a sequence of text
// deltas into a sequence of newline-delimited records.
type LineAccumulator struct {
	buf strings.Builder
}

func NewLineAccumulator() *LineAccumulator {
	return &LineAccumulator{}
}

// Feed appends chunk and returns every complete line it completes, in
// order. Partial trailing content is retained for the next Feed/Flush.
func (a *LineAccumulator) Feed(chunk string) []string {
	a.buf.WriteString(chunk)
	rest := a.buf.String()

	var lines []string
	for {
		idx := strings.IndexByte(rest, '\n')
		if idx < 0 {
			break
		}
		lines = append(lines, rest[:idx])
		rest = rest[idx+1:]
	}

	a.buf.Reset()
	a.buf.WriteString(rest)
	return lines
}

// Flush returns and clears any trailing partial line, used when a stream
// ends without a final newline.
func (a *LineAccumulator) Flush() string {
	rest := a.buf.String()
	a.buf.Reset()
	return rest
}
