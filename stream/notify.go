package stream

import (
	"fmt"
	"sync"

	"github.com/specdeck/specdeck/agentwire"
)

// ToastLevel classifies a toast for presentation.
type ToastLevel string

const (
	ToastSuccess ToastLevel = "success"
	ToastInfo    ToastLevel = "info"
	ToastError   ToastLevel = "error"
)

// Toast is one user-facing notification. Open, when non-nil, jumps to the
// finished feature's panel; the toast layer wires it to its click handler
// without knowing anything about navigation.
type Toast struct {
	Level     ToastLevel
	FeatureID string
	Title     string
	Message   string
	Open      func()
}

// ToastFunc receives toasts for display.
type ToastFunc func(Toast)

// OpenPanelFunc resolves a feature id to its panel-opening action. The
// notifier never opens panels itself; it hands the action to the toast layer
// so the user can jump to the finished feature.
type OpenPanelFunc func(featureID string)

// Notifier decides which stream outcomes deserve a toast. A feature whose
// panel is open gets no toast: the user is already watching the transcript
// update. Completions and failures on background features toast, with
// clarification requests distinguished from plain completions.
type Notifier struct {
	toast     ToastFunc
	openPanel OpenPanelFunc

	mu   sync.Mutex
	open map[string]struct{}
}

// NewNotifier creates a notifier delivering toasts through toast. openPanel
// may be nil if the host has no panel navigation.
func NewNotifier(toast ToastFunc, openPanel OpenPanelFunc) *Notifier {
	return &Notifier{
		toast:     toast,
		openPanel: openPanel,
		open:      map[string]struct{}{},
	}
}

// RegisterOpenPanel records that the feature's panel is visible; its
// outcomes are suppressed until the panel unregisters.
func (n *Notifier) RegisterOpenPanel(featureID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.open[featureID] = struct{}{}
}

// UnregisterOpenPanel records that the feature's panel closed.
func (n *Notifier) UnregisterOpenPanel(featureID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.open, featureID)
}

// IsPanelOpen reports whether the feature's panel is registered as open.
func (n *Notifier) IsPanelOpen(featureID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.open[featureID]
	return ok
}

// NotifyComplete surfaces a finished background stream. Title names the
// feature in the toast text.
func (n *Notifier) NotifyComplete(featureID, title string, reason agentwire.CompletionReason) {
	if n.IsPanelOpen(featureID) || n.toast == nil {
		return
	}
	if title == "" {
		title = "Feature"
	}

	t := Toast{FeatureID: featureID, Title: title, Open: n.openAction(featureID)}
	if reason == agentwire.ReasonClarificationPending {
		t.Level = ToastInfo
		t.Message = fmt.Sprintf("%s needs your input", title)
	} else {
		t.Level = ToastSuccess
		t.Message = fmt.Sprintf("%s is ready", title)
	}
	n.toast(t)
}

// NotifyError surfaces a failed background stream.
func (n *Notifier) NotifyError(featureID, title string, err error) {
	if n.IsPanelOpen(featureID) || n.toast == nil {
		return
	}
	if title == "" {
		title = "Feature"
	}
	n.toast(Toast{
		Level:     ToastError,
		FeatureID: featureID,
		Title:     title,
		Message:   fmt.Sprintf("%s failed: %v", title, err),
		Open:      n.openAction(featureID),
	})
}

// openAction binds the panel-opening callback to a feature, or nil when the
// host registered none.
func (n *Notifier) openAction(featureID string) func() {
	if n.openPanel == nil {
		return nil
	}
	return func() { n.openPanel(featureID) }
}

// OpenPanel invokes the panel-opening action for a feature, typically from a
// toast's click handler.
func (n *Notifier) OpenPanel(featureID string) {
	if n.openPanel != nil {
		n.openPanel(featureID)
	}
}

// BindRegistry installs the notifier as the registry's outcome observer,
// pulling each feature's title from the registry at notification time.
func BindRegistry(n *Notifier, r *Registry) {
	titleOf := func(featureID string) string {
		st, _ := r.GetStreamState(featureID)
		return st.Title
	}
	r.SetHooks(Hooks{
		OnComplete: func(featureID string, reason agentwire.CompletionReason) {
			n.NotifyComplete(featureID, titleOf(featureID), reason)
		},
		OnError: func(featureID string, err error) {
			n.NotifyError(featureID, titleOf(featureID), err)
		},
	})
}
