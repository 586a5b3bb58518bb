package agentwire

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
)

var (
	dataPrefix   = []byte("data:")
	doneSentinel = []byte("[DONE]")
)

// Decoder converts raw byte chunks of an SSE body into typed events.
//
// It carries a partial-line buffer across Feed calls, so the decoded event
// sequence is independent of how the bytes were split into chunks. A single
// malformed frame is logged and skipped; decoding continues with the next
// line.
type Decoder struct {
	buf []byte
}

// NewDecoder creates an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends a chunk to the internal buffer and returns the events decoded
// from every complete line now available. The trailing incomplete line, if
// any, is retained for the next call.
func (d *Decoder) Feed(chunk []byte) []Event {
	d.buf = append(d.buf, chunk...)

	var events []Event
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := d.buf[:i]
		d.buf = d.buf[i+1:]
		if ev := decodeLine(line); ev != nil {
			events = append(events, ev)
		}
	}
	return events
}

// Flush decodes the final unterminated line, if the stream ended without a
// trailing newline. The decoder is reset afterwards.
func (d *Decoder) Flush() []Event {
	line := d.buf
	d.buf = nil
	if ev := decodeLine(line); ev != nil {
		return []Event{ev}
	}
	return nil
}

// decodeLine decodes one SSE line into an event, or nil for lines that carry
// no event (blank separators, comments, non-data fields, the [DONE] sentinel,
// and malformed frames).
func decodeLine(line []byte) Event {
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 || line[0] == ':' {
		return nil
	}
	if !bytes.HasPrefix(line, dataPrefix) {
		return nil
	}
	data := bytes.TrimSpace(bytes.TrimPrefix(line, dataPrefix))
	if len(data) == 0 || bytes.Equal(data, doneSentinel) {
		return nil
	}

	ev, err := ParseEvent(data)
	if err != nil {
		// One bad frame must not kill a long-running agent session.
		slog.Warn("skipping malformed stream frame", "error", err, "frame", string(data))
		return nil
	}
	return ev
}

// Stream reads SSE frames from r and delivers decoded events on the returned
// channel. The channel is closed on EOF, on a terminal done/error event, or
// when ctx is cancelled.
func Stream(ctx context.Context, r io.Reader) <-chan Event {
	ch := make(chan Event, 16)
	go func() {
		defer close(ch)

		dec := NewDecoder()
		br := bufio.NewReader(r)
		buf := make([]byte, 4096)
		for {
			n, readErr := br.Read(buf)
			if n > 0 {
				for _, ev := range dec.Feed(buf[:n]) {
					select {
					case ch <- ev:
					case <-ctx.Done():
						return
					}
					switch ev.Kind() {
					case EventTypeDone, EventTypeError:
						return
					}
				}
			}
			if readErr != nil {
				if readErr == io.EOF {
					for _, ev := range dec.Flush() {
						select {
						case ch <- ev:
						case <-ctx.Done():
						}
					}
				}
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}()
	return ch
}
