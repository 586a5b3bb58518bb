// Package transcript assembles decoded agent events into the ordered display
// transcript for one conversation. Message parts form a sealed union; every
// event an agent emits maps to either a specialized part or a raw debug part,
// never to silence.
package transcript

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/specdeck/specdeck/agentwire"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a transcript. An in-progress assistant turn is
// mutated in place as parts arrive; consumers receive deep-copied snapshots
// and must treat the transcript as a value replaced wholesale on each update.
type Message struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// NewUserMessage creates a user turn with a single text part.
func NewUserMessage(text string) Message {
	return Message{
		ID:    uuid.NewString(),
		Role:  RoleUser,
		Parts: []Part{TextPart{Text: text}},
	}
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	parts := make([]Part, len(m.Parts))
	for i, p := range m.Parts {
		parts[i] = p.clonePart()
	}
	m.Parts = parts
	return m
}

// CloneMessages deep-copies a transcript slice.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// Text concatenates the message's text parts, for consumers that only need
// the prose (e.g. building the outbound request history).
func (m Message) Text() string {
	var s string
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			if s != "" {
				s += "\n"
			}
			s += tp.Text
		}
	}
	return s
}

// PartKind discriminates between message part variants.
type PartKind string

const (
	PartKindText           PartKind = "text"
	PartKindActivity       PartKind = "activity"
	PartKindToolCall       PartKind = "tool_call"
	PartKindDocument       PartKind = "document"
	PartKindProposedUpdate PartKind = "proposed_update"
	PartKindWireframe      PartKind = "wireframe"
	PartKindFileSearch     PartKind = "file_search"
	PartKindFileRead       PartKind = "file_read"
	PartKindFileWrite      PartKind = "file_write"
	PartKindFileEdit       PartKind = "file_edit"
	PartKindShellCommand   PartKind = "shell_command"
	PartKindToolError      PartKind = "tool_error"
	PartKindTodoList       PartKind = "todo_list"
	PartKindClarification  PartKind = "clarification"
	PartKindRaw            PartKind = "raw"
)

// Part is one fragment of a message. The union is sealed: only the variants
// in this package implement it, with RawPart as the explicit catch-all.
type Part interface {
	Kind() PartKind
	clonePart() Part
}

// TextPart is streaming prose.
type TextPart struct {
	Text string `json:"text"`
}

// Kind returns the part kind.
func (p TextPart) Kind() PartKind  { return PartKindText }
func (p TextPart) clonePart() Part { return p }

// ActivityPart is an ephemeral status line.
type ActivityPart struct {
	Message string `json:"message"`
}

// Kind returns the part kind.
func (p ActivityPart) Kind() PartKind  { return PartKindActivity }
func (p ActivityPart) clonePart() Part { return p }

// ToolCallPart records a tool invocation the agent issued.
type ToolCallPart struct {
	Input map[string]interface{} `json:"input,omitempty"`
	Name  string                 `json:"name"`
}

// Kind returns the part kind.
func (p ToolCallPart) Kind() PartKind { return PartKindToolCall }

func (p ToolCallPart) clonePart() Part {
	if p.Input != nil {
		input := make(map[string]interface{}, len(p.Input))
		for k, v := range p.Input {
			input[k] = v
		}
		p.Input = input
	}
	return p
}

// DocumentPart is a generated requirements document.
type DocumentPart struct {
	Markdown string `json:"markdown"`
}

// Kind returns the part kind.
func (p DocumentPart) Kind() PartKind  { return PartKindDocument }
func (p DocumentPart) clonePart() Part { return p }

// ProposedUpdatePart is a proposed document edit awaiting accept/reject.
type ProposedUpdatePart struct {
	ProposedContent string `json:"proposedContent"`
	OriginalContent string `json:"originalContent,omitempty"`
	ChangeSummary   string `json:"changeSummary,omitempty"`
}

// Kind returns the part kind.
func (p ProposedUpdatePart) Kind() PartKind  { return PartKindProposedUpdate }
func (p ProposedUpdatePart) clonePart() Part { return p }

// WireframePart is generated wireframe text.
type WireframePart struct {
	Text string `json:"text"`
}

// Kind returns the part kind.
func (p WireframePart) Kind() PartKind  { return PartKindWireframe }
func (p WireframePart) clonePart() Part { return p }

// FileSearchPart is a file search tool result.
type FileSearchPart struct {
	Files []string `json:"files"`
	Query string   `json:"query,omitempty"`
	Count int      `json:"count"`
}

// Kind returns the part kind.
func (p FileSearchPart) Kind() PartKind { return PartKindFileSearch }

func (p FileSearchPart) clonePart() Part {
	p.Files = append([]string(nil), p.Files...)
	return p
}

// FileReadPart is a file read tool result.
type FileReadPart struct {
	Path      string `json:"path"`
	LineCount int    `json:"lineCount,omitempty"`
}

// Kind returns the part kind.
func (p FileReadPart) Kind() PartKind  { return PartKindFileRead }
func (p FileReadPart) clonePart() Part { return p }

// FileWritePart is a file write tool result.
type FileWritePart struct {
	Path string `json:"path"`
}

// Kind returns the part kind.
func (p FileWritePart) Kind() PartKind  { return PartKindFileWrite }
func (p FileWritePart) clonePart() Part { return p }

// FileEditPart is a file edit tool result.
type FileEditPart struct {
	Path string `json:"path"`
}

// Kind returns the part kind.
func (p FileEditPart) Kind() PartKind  { return PartKindFileEdit }
func (p FileEditPart) clonePart() Part { return p }

// ShellCommandPart is a shell tool result.
type ShellCommandPart struct {
	Command  string `json:"command,omitempty"`
	Output   string `json:"output,omitempty"`
	ExitCode int    `json:"exitCode,omitempty"`
}

// Kind returns the part kind.
func (p ShellCommandPart) Kind() PartKind  { return PartKindShellCommand }
func (p ShellCommandPart) clonePart() Part { return p }

// ToolErrorPart records a failed tool invocation.
type ToolErrorPart struct {
	Message string `json:"message"`
}

// Kind returns the part kind.
func (p ToolErrorPart) Kind() PartKind  { return PartKindToolError }
func (p ToolErrorPart) clonePart() Part { return p }

// TodoListPart is a snapshot of the agent's task checklist.
type TodoListPart struct {
	Todos []agentwire.TodoItem `json:"todos"`
}

// Kind returns the part kind.
func (p TodoListPart) Kind() PartKind { return PartKindTodoList }

func (p TodoListPart) clonePart() Part {
	p.Todos = append([]agentwire.TodoItem(nil), p.Todos...)
	return p
}

// ClarificationPart is a set of disambiguation questions for the user.
type ClarificationPart struct {
	Questions []agentwire.ClarificationQuestion `json:"questions"`
}

// Kind returns the part kind.
func (p ClarificationPart) Kind() PartKind { return PartKindClarification }

func (p ClarificationPart) clonePart() Part {
	qs := make([]agentwire.ClarificationQuestion, len(p.Questions))
	for i, q := range p.Questions {
		q.Options = append([]string(nil), q.Options...)
		qs[i] = q
	}
	p.Questions = qs
	return p
}

// RawPart preserves an event shape the transcript has no specialized part
// for. MessageType tags the origin (an event type or a tool name).
type RawPart struct {
	Data        json.RawMessage `json:"data,omitempty"`
	MessageType string          `json:"messageType"`
}

// Kind returns the part kind.
func (p RawPart) Kind() PartKind { return PartKindRaw }

func (p RawPart) clonePart() Part {
	p.Data = append(json.RawMessage(nil), p.Data...)
	return p
}
