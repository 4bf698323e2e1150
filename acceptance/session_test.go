//go:build acceptance
// +build acceptance

package acceptance

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/networkteam/rocketworld/session"
)

func TestSession_AcquireNavigateRelease(t *testing.T) {
	WithTestFixtures(t, func(t *testing.T, f *TestFixtures) {
		var browser playwright.Browser
		launcher := session.LauncherFunc(func(ctx context.Context, options playwright.BrowserTypeLaunchOptions) (playwright.Browser, error) {
			b, err := f.Driver.Launch(ctx, options)
			browser = b
			return b, err
		})
		s := session.New("Sign in page renders", session.Options{
			Config:   f.Config,
			Launcher: launcher,
		})

		require.NoError(t, s.Acquire(context.Background()))

		page, err := s.Page()
		require.NoError(t, err)

		_, err = page.Goto(s.TargetURL())
		require.NoError(t, err)

		title, err := page.Title()
		require.NoError(t, err)
		assert.Contains(t, title, "DME Rocket")

		require.NotNil(t, browser)
		assert.True(t, browser.IsConnected())

		set := s.Release(context.Background())
		assert.Equal(t, session.StateClosed, s.State())
		assert.Eventually(t, func() bool {
			return !browser.IsConnected()
		}, 5*time.Second, 50*time.Millisecond, "the browser process is gone after release")

		_, err = s.Page()
		assert.ErrorIs(t, err, session.ErrNotAcquired)

		require.NotEmpty(t, set.TracePath)
		info, err := os.Stat(set.TracePath)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))

		require.NotEmpty(t, set.VideoPath)
		assert.FileExists(t, set.VideoPath)
		assert.FileExists(t, set.ConsolePath, "the login page writes to the console")

		assert.Equal(t, set, s.Release(context.Background()))
	})
}

func TestSession_SnapshotOfLivePage(t *testing.T) {
	WithTestFixtures(t, func(t *testing.T, f *TestFixtures) {
		s := session.New("Snapshot", session.Options{
			Config:       f.Config,
			Launcher:     f.Driver,
			DisableVideo: true,
		})
		require.NoError(t, s.Acquire(context.Background()))
		defer s.Release(context.Background())

		page, err := s.Page()
		require.NoError(t, err)
		_, err = page.Goto(s.TargetURL())
		require.NoError(t, err)

		snap, err := s.Snapshot()
		require.NoError(t, err)
		assert.Contains(t, snap.URL, "/login")
		assert.Contains(t, snap.HTML, `type="password"`)
		assert.NotEmpty(t, snap.Screenshot)
	})
}

func TestManager_ConcurrentSessionsDoNotShareCookies(t *testing.T) {
	WithTestFixtures(t, func(t *testing.T, f *TestFixtures) {
		m := session.NewManager(session.Options{Config: f.Config, Launcher: f.Driver, DisableVideo: true})
		defer m.Close(context.Background())

		first, _ := m.GetOrCreate("a", "Logged in")
		second, _ := m.GetOrCreate("b", "Anonymous")
		require.NoError(t, first.Acquire(context.Background()))
		require.NoError(t, second.Acquire(context.Background()))

		page, err := first.Page()
		require.NoError(t, err)
		_, err = page.Goto(f.App.URL + "login")
		require.NoError(t, err)
		require.NoError(t, page.Locator("#email").Fill(TestEmail))
		require.NoError(t, page.Locator("#password").Fill(TestPassword))
		require.NoError(t, page.Locator(`button[type="submit"]`).Click())
		require.NoError(t, page.WaitForURL("**/orders"))

		other, err := second.Page()
		require.NoError(t, err)
		_, err = other.Goto(f.App.URL + "orders")
		require.NoError(t, err)
		assert.Contains(t, other.URL(), "/login", "the second session has no session cookie")
	})
}
