package stream

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/specdeck/specdeck/agentwire"
	"github.com/specdeck/specdeck/transcript"
)

// PendingChange is a proposed document edit awaiting the user's accept or
// reject decision.
type PendingChange struct {
	ProposedContent string
	ChangeSummary   string
}

// FeatureState is the published stream state of one feature. Its Messages
// slice is replaced wholesale on every update and never mutated in place, so
// holding a returned state is safe without copying.
type FeatureState struct {
	Status        Status
	Messages      []transcript.Message
	Err           error
	PendingChange *PendingChange
	ContextUsage  *agentwire.ContextUsage
	Title         string
}

// Hooks observe registry-level stream outcomes. All fields are optional.
// They fire outside the registry lock.
type Hooks struct {
	OnComplete           func(featureID string, reason agentwire.CompletionReason)
	OnError              func(featureID string, err error)
	OnSpecGenerated      func(featureID, markdown string)
	OnWireframeGenerated func(featureID, text string)
}

const stopSignalTimeout = 5 * time.Second

// Registry runs independent agent streams for many features at once. Each
// feature moves through idle -> streaming -> ready/error; sends on different
// features never interact, and a new send on a feature that is already
// streaming replaces the in-flight one (last caller wins).
type Registry struct {
	client AgentClient
	hooks  Hooks

	mu        sync.Mutex
	states    map[string]FeatureState
	cancels   map[string]context.CancelFunc
	seqs      map[string]uint64
	baselines map[string][]transcript.Message
	updates   chan string
	closed    bool
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithHooks installs registry-level outcome observers.
func WithHooks(h Hooks) RegistryOption {
	return func(r *Registry) { r.hooks = h }
}

// WithUpdateBuffer sets the capacity of the Updates channel.
func WithUpdateBuffer(n int) RegistryOption {
	return func(r *Registry) { r.updates = make(chan string, n) }
}

// NewRegistry creates a registry that opens streams through client.
func NewRegistry(client AgentClient, opts ...RegistryOption) *Registry {
	r := &Registry{
		client:    client,
		states:    map[string]FeatureState{},
		cancels:   map[string]context.CancelFunc{},
		seqs:      map[string]uint64{},
		baselines: map[string][]transcript.Message{},
		updates:   make(chan string, 64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetHooks replaces the registry's outcome observers. Call before the first
// send; hooks are read without synchronization once streams are running.
func (r *Registry) SetHooks(h Hooks) {
	r.hooks = h
}

// Updates delivers the id of each feature whose state changed. Delivery is
// best effort: a consumer that stops draining loses notifications, not
// correctness, since it can re-read states at any time.
func (r *Registry) Updates() <-chan string {
	return r.updates
}

// SendOptions carries the optional fields of a send.
type SendOptions struct {
	CurrentSpec string
	Thinking    bool
	ViewMode    string
	Images      []string
}

// SendMessage appends a user turn to the feature's transcript and starts a
// stream for it. If a send is already in flight on this feature it is
// aborted first and its partial output discarded: the transcript resets to
// what it was before that send, then the new user turn is appended, so the
// replaced prompt never leaves a dangling user message behind.
func (r *Registry) SendMessage(featureID, text string, opts SendOptions) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	st := r.states[featureID]
	if cancel := r.cancels[featureID]; cancel != nil {
		cancel()
		delete(r.cancels, featureID)
		if base, ok := r.baselines[featureID]; ok {
			st.Messages = base
		}
	}

	seq := r.seqs[featureID] + 1
	r.seqs[featureID] = seq

	baseline := transcript.CloneMessages(st.Messages)
	r.baselines[featureID] = baseline

	userMsg := transcript.NewUserMessage(text)
	st.Messages = append(transcript.CloneMessages(baseline), userMsg)
	st.Status = StatusStreaming
	st.Err = nil
	if st.Title == "" {
		st.Title = deriveTitle(text)
	}
	r.replaceLocked(featureID, st)

	sr := buildSendRequest(st.Messages, opts)
	prior := transcript.CloneMessages(st.Messages)

	ctx, cancel := context.WithCancel(context.Background())
	r.cancels[featureID] = cancel
	r.mu.Unlock()

	go func() {
		defer cancel()
		Run(ctx, r.client, featureID, sr, prior, r.callbacks(featureID, seq))

		r.mu.Lock()
		if r.seqs[featureID] == seq {
			delete(r.cancels, featureID)
		}
		r.mu.Unlock()
	}()
}

// StopStream aborts the feature's in-flight send, if any. The local stream
// tears down immediately; the backend is told to stop on a best-effort
// background call. The feature lands in StatusReady with the transcript as
// assembled so far.
func (r *Registry) StopStream(featureID string) {
	r.mu.Lock()
	cancel := r.cancels[featureID]
	delete(r.cancels, featureID)
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	go func() {
		ctx, done := context.WithTimeout(context.Background(), stopSignalTimeout)
		defer done()
		if err := r.client.SignalStop(ctx, featureID); err != nil {
			slog.Warn("stop signal failed", "feature", featureID, "error", err)
		}
	}()
}

// ClearStream aborts any in-flight send and erases the feature's state
// entirely. Callbacks from the aborted send arriving afterwards are dropped;
// they cannot resurrect the cleared entry.
func (r *Registry) ClearStream(featureID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cancel := r.cancels[featureID]; cancel != nil {
		cancel()
		delete(r.cancels, featureID)
	}
	r.seqs[featureID]++
	delete(r.baselines, featureID)

	if _, ok := r.states[featureID]; !ok {
		return
	}
	next := make(map[string]FeatureState, len(r.states))
	for k, v := range r.states {
		if k != featureID {
			next[k] = v
		}
	}
	r.states = next
	r.notifyLocked(featureID)
}

// SetMessages replaces the feature's transcript, e.g. when hydrating a
// conversation from persistence. Any in-flight send is aborted and the
// feature lands in StatusIdle.
func (r *Registry) SetMessages(featureID string, msgs []transcript.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cancel := r.cancels[featureID]; cancel != nil {
		cancel()
		delete(r.cancels, featureID)
	}
	r.seqs[featureID]++
	delete(r.baselines, featureID)

	st := r.states[featureID]
	st.Status = StatusIdle
	st.Messages = transcript.CloneMessages(msgs)
	st.Err = nil
	r.replaceLocked(featureID, st)
}

// SetDisplayTitle sets the feature's display title, overriding the one
// derived from its first prompt. The notifier embeds this title in toasts.
// Setting it before the first send creates an idle entry; SendMessage never
// overwrites a host-set title.
func (r *Registry) SetDisplayTitle(featureID, title string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	st, ok := r.states[featureID]
	if !ok {
		st.Status = StatusIdle
	}
	st.Title = title
	r.replaceLocked(featureID, st)
}

// ClearPendingChange drops the feature's proposed document edit after the
// user accepted or rejected it.
func (r *Registry) ClearPendingChange(featureID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.states[featureID]
	if !ok || st.PendingChange == nil {
		return
	}
	st.PendingChange = nil
	r.replaceLocked(featureID, st)
}

// GetStreamState returns the feature's current state.
func (r *Registry) GetStreamState(featureID string) (FeatureState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[featureID]
	return st, ok
}

// States returns the current state of every feature. The returned map is a
// snapshot: the registry replaces its map on every change instead of
// mutating it, so the caller may read it freely.
func (r *Registry) States() map[string]FeatureState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states
}

// IsStreaming reports whether the feature has a send in flight.
func (r *Registry) IsStreaming(featureID string) bool {
	st, ok := r.GetStreamState(featureID)
	return ok && st.Status == StatusStreaming
}

// StreamingFeatureIDs returns the ids of all features currently streaming,
// sorted for stable output.
func (r *Registry) StreamingFeatureIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for id, st := range r.states {
		if st.Status == StatusStreaming {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Close aborts every in-flight send and closes the Updates channel.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for id, cancel := range r.cancels {
		cancel()
		delete(r.cancels, id)
	}
	for id := range r.seqs {
		r.seqs[id]++
	}
	close(r.updates)
}

// callbacks wires one send's controller output into the registry. Every
// observation path carries the send's sequence number; once a newer send (or
// a clear) bumps the feature's sequence, state patches AND outcome hooks
// from this send become no-ops. A replaced send racing its own terminal
// frame must not toast for a feature the user already moved past.
func (r *Registry) callbacks(featureID string, seq uint64) Callbacks {
	return Callbacks{
		SideChannels: transcript.SideChannels{
			OnSpecGenerated: func(markdown string) {
				if r.hooks.OnSpecGenerated != nil && r.sendActive(featureID, seq) {
					r.hooks.OnSpecGenerated(featureID, markdown)
				}
			},
			OnPendingChange: func(markdown, changeSummary string) {
				r.patch(featureID, seq, func(st *FeatureState) {
					st.PendingChange = &PendingChange{
						ProposedContent: markdown,
						ChangeSummary:   changeSummary,
					}
				})
			},
			OnWireframeGenerated: func(text string) {
				if r.hooks.OnWireframeGenerated != nil && r.sendActive(featureID, seq) {
					r.hooks.OnWireframeGenerated(featureID, text)
				}
			},
			OnContextUsage: func(usage agentwire.ContextUsage) {
				r.patch(featureID, seq, func(st *FeatureState) {
					u := usage
					st.ContextUsage = &u
				})
			},
		},
		OnStatusChange: func(s Status) {
			r.patch(featureID, seq, func(st *FeatureState) {
				st.Status = s
			})
		},
		OnMessagesUpdate: func(msgs []transcript.Message) {
			r.patch(featureID, seq, func(st *FeatureState) {
				st.Messages = msgs
			})
		},
		OnError: func(err error) {
			r.patch(featureID, seq, func(st *FeatureState) {
				st.Err = err
			})
			if r.hooks.OnError != nil && r.sendActive(featureID, seq) {
				r.hooks.OnError(featureID, err)
			}
		},
		OnComplete: func(reason agentwire.CompletionReason) {
			if r.hooks.OnComplete != nil && r.sendActive(featureID, seq) {
				r.hooks.OnComplete(featureID, reason)
			}
		},
	}
}

// sendActive reports whether seq is still the feature's current send.
func (r *Registry) sendActive(featureID string, seq uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed && r.seqs[featureID] == seq
}

// patch applies fn to an existing feature state if seq is still current.
func (r *Registry) patch(featureID string, seq uint64, fn func(*FeatureState)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.seqs[featureID] != seq {
		return
	}
	st, ok := r.states[featureID]
	if !ok {
		return
	}
	fn(&st)
	r.replaceLocked(featureID, st)
}

// replaceLocked installs a feature state into a fresh copy of the state map,
// so previously returned maps stay valid snapshots. Callers hold r.mu.
func (r *Registry) replaceLocked(featureID string, st FeatureState) {
	next := make(map[string]FeatureState, len(r.states)+1)
	for k, v := range r.states {
		next[k] = v
	}
	next[featureID] = st
	r.states = next
	r.notifyLocked(featureID)
}

func (r *Registry) notifyLocked(featureID string) {
	if r.closed {
		return
	}
	select {
	case r.updates <- featureID:
	default:
		slog.Warn("update channel full, dropping notification", "feature", featureID)
	}
}

// buildSendRequest converts the transcript into the outbound history,
// attaching the send options to the request and its images to the final
// user turn.
func buildSendRequest(msgs []transcript.Message, opts SendOptions) SendRequest {
	history := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, ChatMessage{
			Role: string(m.Role),
			Text: m.Text(),
		})
	}
	if n := len(history); n > 0 && len(opts.Images) > 0 {
		history[n-1].Images = append([]string(nil), opts.Images...)
	}
	return SendRequest{
		Messages:    history,
		CurrentSpec: opts.CurrentSpec,
		Thinking:    opts.Thinking,
		ViewMode:    opts.ViewMode,
	}
}

const titleWordLimit = 8

// deriveTitle builds a short feature title from the first prompt.
func deriveTitle(prompt string) string {
	words := strings.Fields(prompt)
	if len(words) == 0 {
		return "Untitled"
	}
	if len(words) <= titleWordLimit {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:titleWordLimit], " ") + "..."
}
