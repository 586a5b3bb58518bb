package agentwire

import (
	"context"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wellFormedStream = "data: {\"type\":\"text\",\"content\":\"Hello\"}\n\n" +
	"data: {\"type\":\"activity\",\"message\":\"thinking\"}\n\n" +
	"data: {\"type\":\"text\",\"content\":\"world\"}\n\n" +
	"data: [DONE]\n\n"

func feedAll(d *Decoder, s string) []Event {
	events := d.Feed([]byte(s))
	return append(events, d.Flush()...)
}

func TestDecoder_WellFormed(t *testing.T) {
	events := feedAll(NewDecoder(), wellFormedStream)
	require.Len(t, events, 3)
	assert.Equal(t, TextEvent{Content: "Hello"}, events[0])
	assert.Equal(t, ActivityEvent{Message: "thinking"}, events[1])
	assert.Equal(t, TextEvent{Content: "world"}, events[2])
}

func TestDecoder_ChunkBoundaryIndependent(t *testing.T) {
	whole := feedAll(NewDecoder(), wellFormedStream)

	// Feed the same stream one byte at a time.
	d := NewDecoder()
	var bytewise []Event
	for i := 0; i < len(wellFormedStream); i++ {
		bytewise = append(bytewise, d.Feed([]byte{wellFormedStream[i]})...)
	}
	bytewise = append(bytewise, d.Flush()...)

	assert.Equal(t, whole, bytewise)
}

func TestDecoder_MalformedFrameIsSkipped(t *testing.T) {
	raw := "data: {\"type\":\"text\",\"content\":\"a\"}\n" +
		"data: {not json\n" +
		"data: {\"type\":\"text\",\"content\":\"b\"}\n"
	events := feedAll(NewDecoder(), raw)
	require.Len(t, events, 2, "malformed line yields nothing, stream continues")
	assert.Equal(t, TextEvent{Content: "a"}, events[0])
	assert.Equal(t, TextEvent{Content: "b"}, events[1])
}

func TestDecoder_IgnoresCommentsAndOtherFields(t *testing.T) {
	raw := ": keepalive\n" +
		"event: message\n" +
		"id: 42\n" +
		"data: {\"type\":\"text\",\"content\":\"ok\"}\n\n"
	events := feedAll(NewDecoder(), raw)
	require.Len(t, events, 1)
	assert.Equal(t, TextEvent{Content: "ok"}, events[0])
}

func TestDecoder_DoneSentinelIsNotAnEvent(t *testing.T) {
	events := feedAll(NewDecoder(), "data: [DONE]\n\n")
	assert.Empty(t, events)
}

func TestDecoder_CRLFLines(t *testing.T) {
	events := feedAll(NewDecoder(), "data: {\"type\":\"text\",\"content\":\"crlf\"}\r\n\r\n")
	require.Len(t, events, 1)
	assert.Equal(t, TextEvent{Content: "crlf"}, events[0])
}

func TestDecoder_PrefixWithoutSpace(t *testing.T) {
	events := feedAll(NewDecoder(), "data:{\"type\":\"text\",\"content\":\"tight\"}\n")
	require.Len(t, events, 1)
	assert.Equal(t, TextEvent{Content: "tight"}, events[0])
}

func TestDecoder_FlushDecodesTrailingLine(t *testing.T) {
	d := NewDecoder()
	assert.Empty(t, d.Feed([]byte("data: {\"type\":\"text\",\"content\":\"tail\"}")))
	events := d.Flush()
	require.Len(t, events, 1)
	assert.Equal(t, TextEvent{Content: "tail"}, events[0])
}

func TestStream_DeliversEventsAndStopsAtDone(t *testing.T) {
	raw := wellFormedStream +
		"data: {\"type\":\"done\",\"result\":\"\"}\n\n" +
		"data: {\"type\":\"text\",\"content\":\"after terminal\"}\n\n"

	var events []Event
	for ev := range Stream(context.Background(), strings.NewReader(raw)) {
		events = append(events, ev)
	}
	require.Len(t, events, 4)
	assert.Equal(t, EventTypeDone, events[3].Kind())
}

func TestStream_OneByteReads(t *testing.T) {
	r := iotest.OneByteReader(strings.NewReader(wellFormedStream))
	var events []Event
	for ev := range Stream(context.Background(), r) {
		events = append(events, ev)
	}
	require.Len(t, events, 3)
	assert.Equal(t, TextEvent{Content: "Hello"}, events[0])
}

func TestStream_ContextCancelClosesChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Endless keepalive stream; without cancellation this would block.
	r := iotest.OneByteReader(strings.NewReader(strings.Repeat(": keepalive\n", 1000)))
	ch := Stream(ctx, r)
	for range ch { //nolint:revive // draining until close is the assertion
	}
}
