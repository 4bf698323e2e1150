package driver

import (
	"context"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"github.com/networkteam/rocketworld/internal/browsertest"
)

type fakeBrowserType struct {
	playwright.BrowserType
	rec *browsertest.Recorder
}

func (bt *fakeBrowserType) Launch(options ...playwright.BrowserTypeLaunchOptions) (playwright.Browser, error) {
	return bt.rec.Launch(context.Background(), options[0])
}

func TestLaunch_Unbounded(t *testing.T) {
	rec := browsertest.NewRecorder()
	bt := &fakeBrowserType{rec: rec}

	b1, err := launch(context.Background(), nil, bt, playwright.BrowserTypeLaunchOptions{})
	require.NoError(t, err)
	b2, err := launch(context.Background(), nil, bt, playwright.BrowserTypeLaunchOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, rec.Opened(browsertest.Browser))
	require.NoError(t, b1.Close())
	require.NoError(t, b2.Close())
}

func TestLaunch_BoundedWaitsForSlot(t *testing.T) {
	rec := browsertest.NewRecorder()
	bt := &fakeBrowserType{rec: rec}
	sem := semaphore.NewWeighted(1)

	first, err := launch(context.Background(), sem, bt, playwright.BrowserTypeLaunchOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = launch(ctx, sem, bt, playwright.BrowserTypeLaunchOptions{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, rec.Opened(browsertest.Browser))

	// Closing twice returns the slot only once
	require.NoError(t, first.Close())
	require.NoError(t, first.Close())

	second, err := launch(context.Background(), sem, bt, playwright.BrowserTypeLaunchOptions{})
	require.NoError(t, err)
	assert.False(t, sem.TryAcquire(1), "slot is held by the second browser")
	require.NoError(t, second.Close())
	assert.True(t, sem.TryAcquire(1))
}

func TestLaunch_FailureReturnsSlot(t *testing.T) {
	rec := browsertest.NewRecorder()
	rec.FailOn(browsertest.OpLaunch, nil)
	sem := semaphore.NewWeighted(1)

	_, err := launch(context.Background(), sem, &fakeBrowserType{rec: rec}, playwright.BrowserTypeLaunchOptions{})
	require.ErrorIs(t, err, browsertest.ErrInjected)
	assert.True(t, sem.TryAcquire(1))
}

func TestLaunch_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := launch(ctx, nil, &fakeBrowserType{rec: browsertest.NewRecorder()}, playwright.BrowserTypeLaunchOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
