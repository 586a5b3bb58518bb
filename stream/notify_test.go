package stream

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specdeck/specdeck/agentwire"
)

func TestNotifier_CompletionToastsWhenPanelClosed(t *testing.T) {
	var toasts []Toast
	n := NewNotifier(func(tt Toast) { toasts = append(toasts, tt) }, nil)

	n.NotifyComplete("feat-1", "Login flow", agentwire.ReasonCompleted)

	require.Len(t, toasts, 1)
	assert.Equal(t, ToastSuccess, toasts[0].Level)
	assert.Equal(t, "feat-1", toasts[0].FeatureID)
	assert.Equal(t, "Login flow is ready", toasts[0].Message)
}

func TestNotifier_OpenPanelSuppressesToasts(t *testing.T) {
	var toasts []Toast
	n := NewNotifier(func(tt Toast) { toasts = append(toasts, tt) }, nil)

	n.RegisterOpenPanel("feat-1")
	assert.True(t, n.IsPanelOpen("feat-1"))

	n.NotifyComplete("feat-1", "Login flow", agentwire.ReasonCompleted)
	n.NotifyError("feat-1", "Login flow", errors.New("boom"))
	assert.Empty(t, toasts)

	// Other features still toast.
	n.NotifyComplete("feat-2", "Search", agentwire.ReasonCompleted)
	assert.Len(t, toasts, 1)

	n.UnregisterOpenPanel("feat-1")
	assert.False(t, n.IsPanelOpen("feat-1"))
	n.NotifyComplete("feat-1", "Login flow", agentwire.ReasonCompleted)
	assert.Len(t, toasts, 2)
}

func TestNotifier_ClarificationToastsAsInfo(t *testing.T) {
	var toasts []Toast
	n := NewNotifier(func(tt Toast) { toasts = append(toasts, tt) }, nil)

	n.NotifyComplete("feat-1", "Login flow", agentwire.ReasonClarificationPending)

	require.Len(t, toasts, 1)
	assert.Equal(t, ToastInfo, toasts[0].Level)
	assert.Equal(t, "Login flow needs your input", toasts[0].Message)
}

func TestNotifier_ErrorToast(t *testing.T) {
	var toasts []Toast
	n := NewNotifier(func(tt Toast) { toasts = append(toasts, tt) }, nil)

	n.NotifyError("feat-1", "", errors.New("model overloaded"))

	require.Len(t, toasts, 1)
	assert.Equal(t, ToastError, toasts[0].Level)
	assert.Equal(t, "Feature failed: model overloaded", toasts[0].Message)
}

func TestNotifier_ToastCarriesOpenAction(t *testing.T) {
	var opened []string
	var toasts []Toast
	n := NewNotifier(
		func(tt Toast) { toasts = append(toasts, tt) },
		func(featureID string) { opened = append(opened, featureID) },
	)

	n.NotifyComplete("feat-1", "Login flow", agentwire.ReasonCompleted)
	n.NotifyError("feat-2", "Search", errors.New("boom"))

	require.Len(t, toasts, 2)
	require.NotNil(t, toasts[0].Open)
	require.NotNil(t, toasts[1].Open)
	toasts[0].Open()
	toasts[1].Open()
	assert.Equal(t, []string{"feat-1", "feat-2"}, opened)
}

func TestNotifier_ToastOpenIsNilWithoutPanelCallback(t *testing.T) {
	var toasts []Toast
	n := NewNotifier(func(tt Toast) { toasts = append(toasts, tt) }, nil)

	n.NotifyComplete("feat-1", "Login flow", agentwire.ReasonCompleted)

	require.Len(t, toasts, 1)
	assert.Nil(t, toasts[0].Open)
}

func TestNotifier_OpenPanelIndirection(t *testing.T) {
	var opened []string
	n := NewNotifier(nil, func(featureID string) { opened = append(opened, featureID) })

	n.OpenPanel("feat-1")
	assert.Equal(t, []string{"feat-1"}, opened)
}

func TestBindRegistry_RoutesOutcomesWithTitles(t *testing.T) {
	client := newFakeClient()
	r := NewRegistry(client)
	defer r.Close()

	toasts := make(chan Toast, 4)
	n := NewNotifier(func(tt Toast) { toasts <- tt }, nil)
	BindRegistry(n, r)

	r.SendMessage("feat-1", "add search filters to the dashboard", SendOptions{})
	s := client.waitForStream(t)
	s.finish(t, "success")

	select {
	case tt := <-toasts:
		assert.Equal(t, ToastSuccess, tt.Level)
		assert.Equal(t, "add search filters to the dashboard", tt.Title)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for toast")
	}
}
