package steps_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/networkteam/rocketworld/internal/browsertest"
	"github.com/networkteam/rocketworld/steps"
)

func TestNextDialog_Accept(t *testing.T) {
	page := newPage(t, browsertest.NewRecorder())

	f := steps.NextDialog(page, steps.DialogAccept, "Because")
	d := &browsertest.FakeDialog{Kind: "prompt", Msg: "Reason for cancellation?"}
	go page.EmitDialog(d)

	info, err := f.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, steps.DialogInfo{Type: "prompt", Message: "Reason for cancellation?"}, info)

	accepted, dismissed, prompt := d.Handled()
	assert.True(t, accepted)
	assert.False(t, dismissed)
	assert.Equal(t, "Because", prompt)
}

func TestNextDialog_Dismiss(t *testing.T) {
	page := newPage(t, browsertest.NewRecorder())

	f := steps.NextDialog(page, steps.DialogDismiss)
	d := &browsertest.FakeDialog{Kind: "confirm", Msg: "Delete order?"}
	page.EmitDialog(d)

	info, err := f.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "confirm", info.Type)

	accepted, dismissed, _ := d.Handled()
	assert.False(t, accepted)
	assert.True(t, dismissed)
}

func TestNextDialog_OnlyHandlesOneDialog(t *testing.T) {
	page := newPage(t, browsertest.NewRecorder())

	steps.NextDialog(page, steps.DialogAccept)
	first := &browsertest.FakeDialog{Kind: "alert", Msg: "first"}
	second := &browsertest.FakeDialog{Kind: "alert", Msg: "second"}
	page.EmitDialog(first)
	page.EmitDialog(second)

	accepted, _, _ := first.Handled()
	assert.True(t, accepted)
	accepted, dismissed, _ := second.Handled()
	assert.False(t, accepted || dismissed)
}

func TestNextDialog_Timeout(t *testing.T) {
	page := newPage(t, browsertest.NewRecorder())

	f := steps.NextDialog(page, steps.DialogAccept)
	assert.Equal(t, 1, page.ListenerCount("dialog"))

	_, err := f.Wait(context.Background(), 20*time.Millisecond)
	assert.ErrorIs(t, err, steps.ErrDialogTimeout)
	assert.Equal(t, 0, page.ListenerCount("dialog"), "the subscription is removed after a timeout")
}

func TestNextDialog_ContextCanceled(t *testing.T) {
	page := newPage(t, browsertest.NewRecorder())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := steps.NextDialog(page, steps.DialogDismiss)
	_, err := f.Wait(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, page.ListenerCount("dialog"))
}
