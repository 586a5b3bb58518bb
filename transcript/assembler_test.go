package transcript

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specdeck/specdeck/agentwire"
)

func applyAll(t *testing.T, a *Assembler, events ...agentwire.Event) {
	t.Helper()
	for _, ev := range events {
		_, err := a.Apply(ev)
		require.NoError(t, err)
	}
}

func lastMessage(t *testing.T, a *Assembler) Message {
	t.Helper()
	msgs := a.Snapshot()
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

func TestAssembler_TextChunksConcatenateWithNewline(t *testing.T) {
	a := NewAssembler(nil, SideChannels{})
	applyAll(t, a,
		agentwire.TextEvent{Content: "Hello"},
		agentwire.TextEvent{Content: "world"},
	)

	msg := lastMessage(t, a)
	assert.Equal(t, RoleAssistant, msg.Role)
	require.Len(t, msg.Parts, 1)
	assert.Equal(t, TextPart{Text: "Hello\nworld"}, msg.Parts[0])
}

func TestAssembler_TextAfterOtherPartStartsFresh(t *testing.T) {
	a := NewAssembler(nil, SideChannels{})
	applyAll(t, a,
		agentwire.TextEvent{Content: "before"},
		agentwire.ActivityEvent{Message: "searching"},
		agentwire.TextEvent{Content: "after"},
	)

	msg := lastMessage(t, a)
	require.Len(t, msg.Parts, 3)
	assert.Equal(t, TextPart{Text: "before"}, msg.Parts[0])
	assert.Equal(t, ActivityPart{Message: "searching"}, msg.Parts[1])
	assert.Equal(t, TextPart{Text: "after"}, msg.Parts[2])
}

func TestAssembler_PriorTranscriptIsPreserved(t *testing.T) {
	prior := []Message{NewUserMessage("write a spec")}
	a := NewAssembler(prior, SideChannels{})
	applyAll(t, a, agentwire.TextEvent{Content: "Sure."})

	msgs := a.Snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, RoleAssistant, msgs[1].Role)

	// The prior slice the caller handed in is untouched.
	require.Len(t, prior, 1)
}

func TestAssembler_SpecResultFiresOnceAndAppendsDocument(t *testing.T) {
	var fired []string
	a := NewAssembler(nil, SideChannels{
		OnSpecGenerated: func(md string) { fired = append(fired, md) },
	})

	out := json.RawMessage(`{"markdown":"# Spec"}`)
	applyAll(t, a,
		agentwire.ToolResultEvent{Name: "generateSpec", Output: out},
		agentwire.ToolResultEvent{Name: "generateSpec", Output: out},
	)

	msg := lastMessage(t, a)
	require.Len(t, msg.Parts, 2, "both results stay in the transcript")
	assert.Equal(t, DocumentPart{Markdown: "# Spec"}, msg.Parts[0])
	assert.Equal(t, []string{"# Spec"}, fired, "side channel fires exactly once")
}

func TestAssembler_UpdateResultFiresPendingChangeOnce(t *testing.T) {
	var got [][2]string
	a := NewAssembler(nil, SideChannels{
		OnPendingChange: func(md, summary string) { got = append(got, [2]string{md, summary}) },
	})

	out := json.RawMessage(`{"proposedContent":"# v2","originalContent":"# v1","changeSummary":"tightened scope"}`)
	applyAll(t, a,
		agentwire.ToolResultEvent{Name: "updateSpec", Output: out},
		agentwire.ToolResultEvent{Name: "updateSpec", Output: out},
	)

	msg := lastMessage(t, a)
	assert.Equal(t, ProposedUpdatePart{
		ProposedContent: "# v2",
		OriginalContent: "# v1",
		ChangeSummary:   "tightened scope",
	}, msg.Parts[0])
	require.Len(t, got, 1)
	assert.Equal(t, [2]string{"# v2", "tightened scope"}, got[0])
}

func TestAssembler_WireframeResultFiresOnce(t *testing.T) {
	count := 0
	a := NewAssembler(nil, SideChannels{
		OnWireframeGenerated: func(string) { count++ },
	})

	out := json.RawMessage(`{"text":"[header][hero][footer]"}`)
	applyAll(t, a,
		agentwire.ToolResultEvent{Name: "generateWireframe", Output: out},
		agentwire.ToolResultEvent{Name: "generateWireframe", Output: out},
	)

	assert.Equal(t, WireframePart{Text: "[header][hero][footer]"}, lastMessage(t, a).Parts[0])
	assert.Equal(t, 1, count)
}

func TestAssembler_MalformedToolResultDemotesToRaw(t *testing.T) {
	fired := false
	a := NewAssembler(nil, SideChannels{
		OnSpecGenerated: func(string) { fired = true },
	})

	out := json.RawMessage(`{"unexpected":"shape"}`)
	applyAll(t, a, agentwire.ToolResultEvent{Name: "generateSpec", Output: out})

	msg := lastMessage(t, a)
	require.Len(t, msg.Parts, 1)
	raw, ok := msg.Parts[0].(RawPart)
	require.True(t, ok)
	assert.Equal(t, "generateSpec", raw.MessageType)
	assert.JSONEq(t, string(out), string(raw.Data))
	assert.False(t, fired, "malformed payload must not trigger the side channel")
}

func TestAssembler_UnknownToolResultBecomesRaw(t *testing.T) {
	a := NewAssembler(nil, SideChannels{})
	out := json.RawMessage(`{"rows":3}`)
	applyAll(t, a, agentwire.ToolResultEvent{Name: "queryDatabase", Output: out})

	raw, ok := lastMessage(t, a).Parts[0].(RawPart)
	require.True(t, ok)
	assert.Equal(t, "queryDatabase", raw.MessageType)
}

func TestAssembler_ClarificationWithQuestions(t *testing.T) {
	a := NewAssembler(nil, SideChannels{})
	applyAll(t, a, agentwire.ClarificationEvent{
		Questions: []agentwire.ClarificationQuestion{
			{Question: "Which flow?", Options: []string{"OAuth", "SAML"}},
		},
	})

	cp, ok := lastMessage(t, a).Parts[0].(ClarificationPart)
	require.True(t, ok)
	require.Len(t, cp.Questions, 1)
	assert.Equal(t, "Which flow?", cp.Questions[0].Question)
}

func TestAssembler_EmptyClarificationDemotesToRaw(t *testing.T) {
	a := NewAssembler(nil, SideChannels{})
	data := json.RawMessage(`{"type":"clarification","questions":[]}`)
	applyAll(t, a, agentwire.ClarificationEvent{Data: data})

	raw, ok := lastMessage(t, a).Parts[0].(RawPart)
	require.True(t, ok)
	assert.Equal(t, "clarification", raw.MessageType)
	assert.JSONEq(t, string(data), string(raw.Data))
}

func TestAssembler_FileNotFoundErrorsAreFiltered(t *testing.T) {
	a := NewAssembler(nil, SideChannels{})
	applyAll(t, a,
		agentwire.ToolErrorEvent{Error: "File not found: src/auth.ts"},
		agentwire.ToolErrorEvent{Error: "permission denied"},
	)

	msg := lastMessage(t, a)
	require.Len(t, msg.Parts, 1)
	assert.Equal(t, ToolErrorPart{Message: "permission denied"}, msg.Parts[0])
}

func TestAssembler_ToolEventsMapToParts(t *testing.T) {
	a := NewAssembler(nil, SideChannels{})
	applyAll(t, a,
		agentwire.ToolUseEvent{Name: "generateSpec", Input: map[string]interface{}{"title": "Login"}},
		agentwire.FileSearchResultEvent{Files: []string{"a.go"}, Query: "auth", Count: 1},
		agentwire.FileReadResultEvent{Path: "a.go", LineCount: 10},
		agentwire.FileWriteResultEvent{Path: "b.go"},
		agentwire.FileEditResultEvent{Path: "c.go"},
		agentwire.BashResultEvent{Command: "ls", Output: "a.go", ExitCode: 0},
		agentwire.TodoListEvent{Todos: []agentwire.TodoItem{{Content: "draft", Status: "pending"}}},
	)

	msg := lastMessage(t, a)
	require.Len(t, msg.Parts, 7)
	assert.Equal(t, PartKindToolCall, msg.Parts[0].Kind())
	assert.Equal(t, PartKindFileSearch, msg.Parts[1].Kind())
	assert.Equal(t, PartKindFileRead, msg.Parts[2].Kind())
	assert.Equal(t, PartKindFileWrite, msg.Parts[3].Kind())
	assert.Equal(t, PartKindFileEdit, msg.Parts[4].Kind())
	assert.Equal(t, PartKindShellCommand, msg.Parts[5].Kind())
	assert.Equal(t, PartKindTodoList, msg.Parts[6].Kind())
}

func TestAssembler_RawEventIsPreserved(t *testing.T) {
	a := NewAssembler(nil, SideChannels{})
	applyAll(t, a, agentwire.RawEvent{MessageType: "system", Data: json.RawMessage(`{"subtype":"init"}`)})

	raw, ok := lastMessage(t, a).Parts[0].(RawPart)
	require.True(t, ok)
	assert.Equal(t, "system", raw.MessageType)
}

func TestAssembler_DoneReportsReasonAndUsage(t *testing.T) {
	var usage agentwire.ContextUsage
	a := NewAssembler(nil, SideChannels{
		OnContextUsage: func(u agentwire.ContextUsage) { usage = u },
	})

	done, err := a.Apply(agentwire.DoneEvent{Result: "clarification_pending", CostUSD: 0.25, Turns: 4})
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, agentwire.ReasonClarificationPending, a.Reason())
	assert.Equal(t, 0.25, usage.CostUSD)
	assert.Equal(t, 4, usage.Turns)
}

func TestAssembler_ErrorEventReturnsError(t *testing.T) {
	a := NewAssembler(nil, SideChannels{})
	done, err := a.Apply(agentwire.ErrorEvent{Message: "model overloaded"})
	assert.False(t, done)
	require.Error(t, err)

	var ue *agentwire.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "model overloaded", ue.Message)
}

func TestAssembler_SnapshotsAreIndependent(t *testing.T) {
	a := NewAssembler(nil, SideChannels{})
	applyAll(t, a, agentwire.TextEvent{Content: "one"})

	first := a.Snapshot()
	applyAll(t, a, agentwire.TextEvent{Content: "two"})
	second := a.Snapshot()

	assert.Equal(t, TextPart{Text: "one"}, first[0].Parts[0])
	assert.Equal(t, TextPart{Text: "one\ntwo"}, second[0].Parts[0])
}
