package stream

import (
	"context"
	"errors"
	"io"

	"github.com/specdeck/specdeck/agentwire"
	"github.com/specdeck/specdeck/transcript"
)

// Status is a feature's stream lifecycle state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusStreaming Status = "streaming"
	StatusReady     Status = "ready"
	StatusError     Status = "error"
)

// Callbacks receive a controller's observable output. All callbacks are
// optional; the embedded side channels are forwarded to the transcript
// assembler.
type Callbacks struct {
	transcript.SideChannels

	OnStatusChange   func(Status)
	OnMessagesUpdate func([]transcript.Message)
	OnError          func(error)
	OnComplete       func(agentwire.CompletionReason)
}

func (cb Callbacks) status(s Status) {
	if cb.OnStatusChange != nil {
		cb.OnStatusChange(s)
	}
}

func (cb Callbacks) messages(msgs []transcript.Message) {
	if cb.OnMessagesUpdate != nil {
		cb.OnMessagesUpdate(msgs)
	}
}

// Run executes one send for a feature: it opens the stream, folds events
// into the transcript, and reports through cb. It blocks until the stream
// reaches a terminal state.
//
// Every failure funnels through cb.OnError followed by a StatusError
// transition. Cancelling ctx is not a failure: the stream is torn down and
// the feature lands in StatusReady with the transcript as assembled so far,
// with neither OnError nor OnComplete fired.
func Run(ctx context.Context, client AgentClient, featureID string, sr SendRequest, prior []transcript.Message, cb Callbacks) {
	cb.status(StatusStreaming)

	body, err := client.OpenStream(ctx, featureID, sr)
	if err != nil {
		if ctx.Err() != nil {
			cb.status(StatusReady)
			return
		}
		fail(cb, err)
		return
	}

	// A blocked Read does not observe ctx; closing the body unwedges it.
	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = body.Close()
		case <-watchdogDone:
		}
	}()
	defer body.Close()

	asm := transcript.NewAssembler(prior, cb.SideChannels)
	dec := agentwire.NewDecoder()
	buf := make([]byte, 4096)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if finished := applyEvents(ctx, asm, cb, dec.Feed(buf[:n])); finished {
				return
			}
		}
		if readErr != nil {
			if ctx.Err() != nil {
				cb.status(StatusReady)
				return
			}
			if errors.Is(readErr, io.EOF) {
				if finished := applyEvents(ctx, asm, cb, dec.Flush()); finished {
					return
				}
				// Stream ended without an explicit done frame.
				finish(asm, cb, agentwire.ReasonCompleted)
				return
			}
			fail(cb, readErr)
			return
		}
	}
}

// applyEvents folds a batch of events into the assembler, reporting true once
// the send reached a terminal state.
func applyEvents(ctx context.Context, asm *transcript.Assembler, cb Callbacks, events []agentwire.Event) bool {
	for _, ev := range events {
		done, err := asm.Apply(ev)
		if err != nil {
			if ctx.Err() != nil {
				cb.status(StatusReady)
				return true
			}
			fail(cb, err)
			return true
		}
		if done {
			finish(asm, cb, asm.Reason())
			return true
		}
		cb.messages(asm.Snapshot())
	}
	return false
}

func finish(asm *transcript.Assembler, cb Callbacks, reason agentwire.CompletionReason) {
	cb.messages(asm.Snapshot())
	cb.status(StatusReady)
	if cb.OnComplete != nil {
		cb.OnComplete(reason)
	}
}

func fail(cb Callbacks, err error) {
	if cb.OnError != nil {
		cb.OnError(err)
	}
	cb.status(StatusError)
}
