//go:build acceptance
// +build acceptance

package acceptance

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/networkteam/rocketworld/config"
	"github.com/networkteam/rocketworld/driver"
)

// TestFixtures bundles all commonly needed test fixtures.
type TestFixtures struct {
	App    *TestApp
	Driver *driver.Driver
	Config config.Config
}

// WithTestFixtures starts the test app and a playwright driver, registers cleanup with t.Cleanup()
// and calls the test function. Set HEADLESS=false to watch the browser.
func WithTestFixtures(t *testing.T, fn func(t *testing.T, f *TestFixtures)) {
	t.Helper()

	app := NewTestApp(t)
	t.Cleanup(func() { app.Close() })

	d, err := driver.Start(driver.Options{Browser: "chromium"})
	require.NoError(t, err, "failed to start playwright")
	t.Cleanup(func() { d.Stop() })

	dir := t.TempDir()
	cfg := config.Resolve()
	cfg.TargetURL = app.URL
	cfg.ArtifactsDir = filepath.Join(dir, "test-results")
	cfg.ReportsDir = filepath.Join(dir, "reports")
	cfg.Email = TestEmail
	cfg.Password = TestPassword

	fn(t, &TestFixtures{
		App:    app,
		Driver: d,
		Config: cfg,
	})
}
