package steps

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// ErrDialogTimeout is returned when no dialog appeared in time.
var ErrDialogTimeout = errors.New("no dialog appeared")

// DialogAction is what happens to the next dialog.
type DialogAction int

const (
	DialogAccept DialogAction = iota
	DialogDismiss
)

func (a DialogAction) String() string {
	if a == DialogDismiss {
		return "dismiss"
	}
	return "accept"
}

// DialogInfo describes a handled dialog.
type DialogInfo struct {
	Type    string
	Message string
}

type dialogResult struct {
	info DialogInfo
	err  error
}

// DialogFuture is a one-shot subscription to the next dialog of a page.
type DialogFuture struct {
	page    playwright.Page
	action  DialogAction
	handler func(playwright.Dialog)
	result  chan dialogResult

	cancelOnce sync.Once
}

// NextDialog subscribes to the next dialog of page and handles it with action.
// It must be called before the interaction that opens the dialog.
func NextDialog(page playwright.Page, action DialogAction, promptText ...string) *DialogFuture {
	f := &DialogFuture{
		page:   page,
		action: action,
		result: make(chan dialogResult, 1),
	}
	f.handler = func(d playwright.Dialog) {
		info := DialogInfo{Type: d.Type(), Message: d.Message()}
		var err error
		if action == DialogDismiss {
			err = d.Dismiss()
		} else {
			err = d.Accept(promptText...)
		}
		if err != nil {
			err = fmt.Errorf("handling %s dialog: %w", info.Type, err)
		}
		select {
		case f.result <- dialogResult{info: info, err: err}:
		default:
		}
	}
	page.Once("dialog", f.handler)
	return f
}

// Action returns how the dialog is handled.
func (f *DialogFuture) Action() DialogAction {
	return f.action
}

// Wait blocks until the dialog was handled. If none appears within timeout, the
// subscription is cancelled and an error wrapping ErrDialogTimeout is returned.
func (f *DialogFuture) Wait(ctx context.Context, timeout time.Duration) (DialogInfo, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-f.result:
		return r.info, r.err
	case <-timer.C:
		f.Cancel()
		return DialogInfo{}, fmt.Errorf("%w within %s", ErrDialogTimeout, timeout)
	case <-ctx.Done():
		f.Cancel()
		return DialogInfo{}, ctx.Err()
	}
}

// Cancel removes the subscription if the dialog has not appeared yet.
func (f *DialogFuture) Cancel() {
	f.cancelOnce.Do(func() {
		f.page.RemoveListener("dialog", f.handler)
	})
}
