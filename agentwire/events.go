package agentwire

import (
	"encoding/json"
	"fmt"
)

// EventType discriminates between event kinds.
type EventType string

const (
	EventTypeText             EventType = "text"
	EventTypeActivity         EventType = "activity"
	EventTypeToolUse          EventType = "tool_use"
	EventTypeToolResult       EventType = "tool_result"
	EventTypeFileSearchResult EventType = "file_search_result"
	EventTypeFileReadResult   EventType = "file_read_result"
	EventTypeFileWriteResult  EventType = "file_write_result"
	EventTypeFileEditResult   EventType = "file_edit_result"
	EventTypeBashResult       EventType = "bash_result"
	EventTypeToolError        EventType = "tool_error"
	EventTypeClarification    EventType = "clarification"
	EventTypeTodoList         EventType = "todo_list"
	EventTypeDone             EventType = "done"
	EventTypeError            EventType = "error"
	EventTypeRaw              EventType = "raw"
)

// Event is the interface for all decoded events.
type Event interface {
	Kind() EventType
}

// TextEvent contains streaming prose chunks.
type TextEvent struct {
	Content string `json:"content"`
}

// Kind returns the event type.
func (e TextEvent) Kind() EventType { return EventTypeText }

// ActivityEvent carries an ephemeral status line.
type ActivityEvent struct {
	Message string `json:"message"`
}

// Kind returns the event type.
func (e ActivityEvent) Kind() EventType { return EventTypeActivity }

// ToolUseEvent fires when the agent issues a tool invocation.
type ToolUseEvent struct {
	Input map[string]interface{} `json:"input"`
	Name  string                 `json:"name"`
}

// Kind returns the event type.
func (e ToolUseEvent) Kind() EventType { return EventTypeToolUse }

// ToolResultEvent carries a named tool's structured output. The shape of
// Output depends on Name; consumers unmarshal it per tool and fall back to a
// raw record when the expected fields are absent.
type ToolResultEvent struct {
	Output json.RawMessage `json:"output"`
	Name   string          `json:"name"`
}

// Kind returns the event type.
func (e ToolResultEvent) Kind() EventType { return EventTypeToolResult }

// SpecOutput is the output payload of the generateSpec tool.
type SpecOutput struct {
	Markdown string `json:"markdown"`
}

// UpdateOutput is the output payload of the updateSpec tool.
type UpdateOutput struct {
	ProposedContent string `json:"proposedContent"`
	OriginalContent string `json:"originalContent,omitempty"`
	ChangeSummary   string `json:"changeSummary,omitempty"`
}

// WireframeOutput is the output payload of the generateWireframe tool.
type WireframeOutput struct {
	Text string `json:"text"`
}

// FileSearchResultEvent is the output of the file search tool.
type FileSearchResultEvent struct {
	Files []string `json:"files"`
	Query string   `json:"query,omitempty"`
	Count int      `json:"count"`
}

// Kind returns the event type.
func (e FileSearchResultEvent) Kind() EventType { return EventTypeFileSearchResult }

// FileReadResultEvent is the output of the file read tool.
type FileReadResultEvent struct {
	Path      string `json:"path"`
	LineCount int    `json:"lineCount,omitempty"`
}

// Kind returns the event type.
func (e FileReadResultEvent) Kind() EventType { return EventTypeFileReadResult }

// FileWriteResultEvent is the output of the file write tool.
type FileWriteResultEvent struct {
	Path string `json:"path"`
}

// Kind returns the event type.
func (e FileWriteResultEvent) Kind() EventType { return EventTypeFileWriteResult }

// FileEditResultEvent is the output of the file edit tool.
type FileEditResultEvent struct {
	Path string `json:"path"`
}

// Kind returns the event type.
func (e FileEditResultEvent) Kind() EventType { return EventTypeFileEditResult }

// BashResultEvent is the output of the shell tool.
type BashResultEvent struct {
	Command  string `json:"command,omitempty"`
	Output   string `json:"bashOutput,omitempty"`
	ExitCode int    `json:"exitCode,omitempty"`
}

// Kind returns the event type.
func (e BashResultEvent) Kind() EventType { return EventTypeBashResult }

// ToolErrorEvent fires when a tool invocation failed.
type ToolErrorEvent struct {
	Error string `json:"error"`
}

// Kind returns the event type.
func (e ToolErrorEvent) Kind() EventType { return EventTypeToolError }

// ClarificationQuestion is one disambiguation question posed by the agent.
type ClarificationQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options,omitempty"`
	AllowMultiple bool     `json:"allowMultiple,omitempty"`
}

// ClarificationEvent fires when the agent requests user disambiguation.
// Data preserves the original frame payload so that a clarification with no
// questions can be surfaced verbatim instead of dropped.
type ClarificationEvent struct {
	Data      json.RawMessage         `json:"-"`
	Questions []ClarificationQuestion `json:"questions"`
}

// Kind returns the event type.
func (e ClarificationEvent) Kind() EventType { return EventTypeClarification }

// TodoItem is one entry in the agent's task checklist.
type TodoItem struct {
	Content string `json:"content"`
	Status  string `json:"status,omitempty"`
}

// TodoListEvent carries a snapshot of the agent's task checklist.
type TodoListEvent struct {
	Todos []TodoItem `json:"todos"`
}

// Kind returns the event type.
func (e TodoListEvent) Kind() EventType { return EventTypeTodoList }

// ContextUsage is the agent's resource usage snapshot for one send. It is
// passed through to consumers opaquely.
type ContextUsage struct {
	CostUSD float64 `json:"cost"`
	Turns   int     `json:"turns"`
}

// DoneEvent marks terminal success for a send.
type DoneEvent struct {
	Result  string  `json:"result,omitempty"`
	CostUSD float64 `json:"cost,omitempty"`
	Turns   int     `json:"turns,omitempty"`
}

// Kind returns the event type.
func (e DoneEvent) Kind() EventType { return EventTypeDone }

// Reason maps the free-form result string onto the completion reason set.
func (e DoneEvent) Reason() CompletionReason { return ParseCompletionReason(e.Result) }

// Usage returns the usage snapshot reported with the terminal event.
func (e DoneEvent) Usage() ContextUsage {
	return ContextUsage{CostUSD: e.CostUSD, Turns: e.Turns}
}

// ErrorEvent marks terminal failure for a send.
type ErrorEvent struct {
	Message string `json:"message"`
}

// Kind returns the event type.
func (e ErrorEvent) Kind() EventType { return EventTypeError }

// RawEvent is the catch-all for frames the vocabulary does not cover, plus
// explicit "raw" debug passthrough frames. It must never be silently dropped:
// unknown upstream shapes stay visible for diagnosis.
type RawEvent struct {
	Data        json.RawMessage `json:"data"`
	MessageType string          `json:"messageType"`
}

// Kind returns the event type.
func (e RawEvent) Kind() EventType { return EventTypeRaw }

// CompletionReason classifies why a send finished. The wire field is an open
// string; the constants below cover the observed values and unrecognized
// values pass through unchanged so future upstream additions stay inspectable.
type CompletionReason string

const (
	// ReasonCompleted is the plain "work finished" outcome.
	ReasonCompleted CompletionReason = "completed"
	// ReasonClarificationPending means the agent stopped to wait for the
	// user's answer to a clarification question.
	ReasonClarificationPending CompletionReason = "clarification_pending"
)

// ParseCompletionReason normalizes a done event's result string.
func ParseCompletionReason(s string) CompletionReason {
	switch s {
	case "", "success", "completed":
		return ReasonCompleted
	case "clarification_pending":
		return ReasonClarificationPending
	default:
		return CompletionReason(s)
	}
}

// UpstreamError is the failure reported by an explicit error event.
type UpstreamError struct {
	Message string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return "agent stream failed"
	}
	return fmt.Sprintf("agent stream failed: %s", e.Message)
}

// ParseEvent parses a single frame payload into a typed event.
//
// A JSON parse failure returns an error (callers log and skip the frame).
// A well-formed object whose type tag is outside the vocabulary decodes to
// RawEvent carrying the original tag and payload.
func ParseEvent(data []byte) (Event, error) {
	var base struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("parse event frame: %w", err)
	}

	switch base.Type {
	case EventTypeText:
		var e TextEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventTypeActivity:
		var e ActivityEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventTypeToolUse:
		var e ToolUseEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventTypeToolResult:
		var e ToolResultEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventTypeFileSearchResult:
		var e FileSearchResultEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventTypeFileReadResult:
		var e FileReadResultEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventTypeFileWriteResult:
		var e FileWriteResultEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventTypeFileEditResult:
		var e FileEditResultEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventTypeBashResult:
		var e BashResultEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventTypeToolError:
		var e ToolErrorEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventTypeClarification:
		var e ClarificationEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		e.Data = append(json.RawMessage(nil), data...)
		return e, nil
	case EventTypeTodoList:
		var e TodoListEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventTypeDone:
		var e DoneEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventTypeError:
		var e ErrorEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventTypeRaw:
		var e RawEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return RawEvent{
			MessageType: string(base.Type),
			Data:        append(json.RawMessage(nil), data...),
		}, nil
	}
}
