package transcript

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/specdeck/specdeck/agentwire"
)

// SideChannels are the one-shot notifications an assembler fires for state
// transitions observed mid-stream (a document now exists, an edit is
// proposed, a wireframe was produced, usage was reported). Each callback
// fires at most once per send even if the underlying event recurs; nil
// callbacks are skipped.
type SideChannels struct {
	OnSpecGenerated      func(markdown string)
	OnPendingChange      func(markdown, changeSummary string)
	OnWireframeGenerated func(text string)
	OnContextUsage       func(usage agentwire.ContextUsage)
}

// Assembler folds decoded events into the transcript for one send. It is
// created fresh per send: the one-shot latches and the identity of the
// assistant turn being built are meaningful only within one send's lifetime.
type Assembler struct {
	messages []Message
	side     SideChannels

	// index of the assistant turn being built, -1 until the first event
	current int

	reason agentwire.CompletionReason
	usage  agentwire.ContextUsage

	specFired      bool
	updateFired    bool
	wireframeFired bool
}

// NewAssembler creates an assembler seeded with the prior transcript
// (already including the caller's optimistic user turn). The prior slice is
// cloned; the caller's copy is never mutated.
func NewAssembler(prior []Message, side SideChannels) *Assembler {
	return &Assembler{
		messages: CloneMessages(prior),
		side:     side,
		current:  -1,
	}
}

// Snapshot returns a deep copy of the transcript. Every event produces a
// fresh snapshot so consumers can rely on reference inequality to detect
// updates.
func (a *Assembler) Snapshot() []Message {
	return CloneMessages(a.messages)
}

// Reason returns the completion reason reported by the terminal done event.
func (a *Assembler) Reason() agentwire.CompletionReason { return a.reason }

// Usage returns the usage snapshot reported by the terminal done event.
func (a *Assembler) Usage() agentwire.ContextUsage { return a.usage }

// Apply folds one event into the transcript. It returns done=true for a
// terminal done event and a non-nil error for a terminal error event; every
// other event yields either a specialized part or a raw debug part — an
// event is never discarded without representation.
func (a *Assembler) Apply(ev agentwire.Event) (done bool, err error) {
	switch e := ev.(type) {
	case agentwire.TextEvent:
		a.appendText(e.Content)

	case agentwire.ActivityEvent:
		a.appendPart(ActivityPart{Message: e.Message})

	case agentwire.ToolUseEvent:
		a.appendPart(ToolCallPart{Name: e.Name, Input: e.Input})

	case agentwire.ToolResultEvent:
		a.applyToolResult(e)

	case agentwire.FileSearchResultEvent:
		a.appendPart(FileSearchPart{Files: e.Files, Query: e.Query, Count: e.Count})

	case agentwire.FileReadResultEvent:
		a.appendPart(FileReadPart{Path: e.Path, LineCount: e.LineCount})

	case agentwire.FileWriteResultEvent:
		a.appendPart(FileWritePart{Path: e.Path})

	case agentwire.FileEditResultEvent:
		a.appendPart(FileEditPart{Path: e.Path})

	case agentwire.BashResultEvent:
		a.appendPart(ShellCommandPart{Command: e.Command, Output: e.Output, ExitCode: e.ExitCode})

	case agentwire.ToolErrorEvent:
		// File-not-found errors are routine probing noise, not signal.
		if !isFileNotFound(e.Error) {
			a.appendPart(ToolErrorPart{Message: e.Error})
		}

	case agentwire.ClarificationEvent:
		if len(e.Questions) > 0 {
			a.appendPart(ClarificationPart{Questions: e.Questions})
		} else {
			a.appendPart(RawPart{MessageType: string(agentwire.EventTypeClarification), Data: e.Data})
		}

	case agentwire.TodoListEvent:
		a.appendPart(TodoListPart{Todos: e.Todos})

	case agentwire.RawEvent:
		a.appendPart(RawPart{MessageType: e.MessageType, Data: e.Data})

	case agentwire.DoneEvent:
		a.reason = e.Reason()
		a.usage = e.Usage()
		if a.side.OnContextUsage != nil {
			a.side.OnContextUsage(a.usage)
		}
		return true, nil

	case agentwire.ErrorEvent:
		return false, &agentwire.UpstreamError{Message: e.Message}

	default:
		// Future event types added to agentwire stay visible.
		data, _ := json.Marshal(ev)
		a.appendPart(RawPart{MessageType: string(ev.Kind()), Data: data})
	}
	return false, nil
}

// applyToolResult maps a named tool result onto its specialized part and
// fires the matching side-channel notification. A payload missing its
// expected fields demotes to a raw part tagged with the tool name.
func (a *Assembler) applyToolResult(e agentwire.ToolResultEvent) {
	switch e.Name {
	case "generateSpec":
		var out agentwire.SpecOutput
		if json.Unmarshal(e.Output, &out) == nil && out.Markdown != "" {
			a.appendPart(DocumentPart{Markdown: out.Markdown})
			if a.side.OnSpecGenerated != nil && !a.specFired {
				a.specFired = true
				a.side.OnSpecGenerated(out.Markdown)
			}
			return
		}
	case "updateSpec":
		var out agentwire.UpdateOutput
		if json.Unmarshal(e.Output, &out) == nil && out.ProposedContent != "" {
			a.appendPart(ProposedUpdatePart{
				ProposedContent: out.ProposedContent,
				OriginalContent: out.OriginalContent,
				ChangeSummary:   out.ChangeSummary,
			})
			if a.side.OnPendingChange != nil && !a.updateFired {
				a.updateFired = true
				a.side.OnPendingChange(out.ProposedContent, out.ChangeSummary)
			}
			return
		}
	case "generateWireframe":
		var out agentwire.WireframeOutput
		if json.Unmarshal(e.Output, &out) == nil && out.Text != "" {
			a.appendPart(WireframePart{Text: out.Text})
			if a.side.OnWireframeGenerated != nil && !a.wireframeFired {
				a.wireframeFired = true
				a.side.OnWireframeGenerated(out.Text)
			}
			return
		}
	}
	a.appendPart(RawPart{MessageType: e.Name, Data: e.Output})
}

// appendText extends the trailing text part of the current assistant turn,
// so incremental chunk delivery renders as continuously growing prose.
// Chunks are joined with a newline.
func (a *Assembler) appendText(content string) {
	msg := a.currentMessage()
	if n := len(msg.Parts); n > 0 {
		if tp, ok := msg.Parts[n-1].(TextPart); ok {
			tp.Text += "\n" + content
			msg.Parts[n-1] = tp
			return
		}
	}
	msg.Parts = append(msg.Parts, TextPart{Text: content})
}

// appendPart adds a part to the current assistant turn, creating the turn on
// the first event of the send.
func (a *Assembler) appendPart(p Part) {
	msg := a.currentMessage()
	msg.Parts = append(msg.Parts, p)
}

// currentMessage returns the assistant turn being built, creating it with a
// stable id on first use.
func (a *Assembler) currentMessage() *Message {
	if a.current < 0 {
		a.messages = append(a.messages, Message{
			ID:   uuid.NewString(),
			Role: RoleAssistant,
		})
		a.current = len(a.messages) - 1
	}
	return &a.messages[a.current]
}

// isFileNotFound reports whether a tool error message is one of the
// file-not-found variants filtered as noise.
func isFileNotFound(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "file not found") ||
		strings.Contains(m, "no such file") ||
		strings.Contains(m, "does not exist")
}
