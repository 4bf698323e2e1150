package world_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/playwright-community/playwright-go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/networkteam/rocketworld/config"
	"github.com/networkteam/rocketworld/internal/browsertest"
	"github.com/networkteam/rocketworld/metrics"
	"github.com/networkteam/rocketworld/report"
	"github.com/networkteam/rocketworld/session"
	"github.com/networkteam/rocketworld/world"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.ResolveFrom(func(string) (string, bool) { return "", false })
	cfg.TargetURL = "http://localhost:8080/app/"
	cfg.ArtifactsDir = filepath.Join(dir, "test-results")
	cfg.ReportsDir = filepath.Join(dir, "reports")
	return cfg
}

func newHooks(t *testing.T, rec *browsertest.Recorder, opts world.Options) *world.Hooks {
	t.Helper()
	m := session.NewManager(session.Options{Config: testConfig(t), Launcher: rec})
	opts.Manager = m
	h := world.NewHooks(opts)
	t.Cleanup(func() { h.Close(context.Background()) })
	return h
}

func scenario(id, name string) *godog.Scenario {
	return &godog.Scenario{Id: id, Name: name}
}

func TestHooks_ScenarioLifecycle(t *testing.T) {
	rec := browsertest.NewRecorder()
	m := metrics.New()
	h := newHooks(t, rec, world.Options{Metrics: m})
	sc := scenario("1", "Open the dashboard")

	ctx, err := h.BeforeScenario(context.Background(), sc)
	require.NoError(t, err)

	w, err := world.FromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Open the dashboard", w.Scenario)
	assert.Equal(t, session.StateReady, w.Session.State())

	sess, ok := session.FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, w.Session, sess)

	page, err := w.Page()
	require.NoError(t, err)
	target, err := w.URL("orders")
	require.NoError(t, err)
	_, err = page.Goto(target)
	require.NoError(t, err)

	w.Logger.Info("Opened orders")

	ctx, err = h.AfterScenario(ctx, sc, nil)
	require.NoError(t, err)

	attachments := godog.Attachments(ctx)
	require.Len(t, attachments, 1, "a passed scenario only links its trace")
	assert.Equal(t, "trace", attachments[0].FileName)
	assert.Equal(t, report.HTMLMediaType, attachments[0].MediaType)
	assert.Contains(t, string(attachments[0].Body), "Download trace")

	assert.Equal(t, session.StateClosed, w.Session.State())
	assert.Equal(t, 0, rec.Leaked())

	results := h.Results()
	require.Len(t, results, 1)
	assert.True(t, results[0].Passed)
	assert.Equal(t, "Open the dashboard", results[0].Scenario)
	assert.FileExists(t, results[0].Artifacts.TracePath)
	assert.FileExists(t, results[0].Artifacts.LogPath)

	logs, err := os.ReadFile(results[0].Artifacts.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(logs), "Opened orders")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScenariosFinished.WithLabelValues("passed")))
}

func TestHooks_FailedScenarioStillReleases(t *testing.T) {
	rec := browsertest.NewRecorder()
	m := metrics.New()
	h := newHooks(t, rec, world.Options{Metrics: m, AttachVideo: true})
	sc := scenario("1", "Broken checkout")

	ctx, err := h.BeforeScenario(context.Background(), sc)
	require.NoError(t, err)

	_, err = h.AfterScenario(ctx, sc, errors.New("element not found"))
	require.NoError(t, err, "teardown never fails the scenario")

	assert.Equal(t, 0, rec.Leaked())
	results := h.Results()
	require.Len(t, results, 1)
	assert.False(t, results[0].Passed)
	assert.Equal(t, "element not found", results[0].Err)
	assert.FileExists(t, results[0].Artifacts.VideoPath)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScenariosFinished.WithLabelValues("failed")))
}

func TestHooks_FailedSnapshotDoesNotBreakTeardown(t *testing.T) {
	rec := browsertest.NewRecorder()
	rec.FailOn(browsertest.OpScreenshot, nil)
	h := newHooks(t, rec, world.Options{})
	sc := scenario("1", "Snapshot fails")

	ctx, err := h.BeforeScenario(context.Background(), sc)
	require.NoError(t, err)

	_, err = h.AfterScenario(ctx, sc, errors.New("boom"))
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Leaked())
}

func TestHooks_AcquisitionFailureFailsScenario(t *testing.T) {
	rec := browsertest.NewRecorder()
	rec.FailOn(browsertest.OpNewContext, nil)
	h := newHooks(t, rec, world.Options{})
	sc := scenario("1", "No browser")

	ctx, err := h.BeforeScenario(context.Background(), sc)
	require.Error(t, err)

	var acqErr *session.ResourceAcquisitionError
	require.ErrorAs(t, err, &acqErr)
	assert.Equal(t, session.StepNewContext, acqErr.Step)

	_, err = h.AfterScenario(ctx, sc, err)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Leaked())
	assert.Equal(t, rec.Opened(browsertest.Browser), rec.Closed(browsertest.Browser))
}

func TestHooks_DefaultTimeoutEstablishedOnce(t *testing.T) {
	rec := browsertest.NewRecorder()
	h := newHooks(t, rec, world.Options{DefaultTimeout: 5 * time.Second})

	for i := 0; i < 3; i++ {
		sc := scenario(fmt.Sprint(i), fmt.Sprintf("Scenario %d", i))
		ctx, err := h.BeforeScenario(context.Background(), sc)
		require.NoError(t, err)
		_, err = h.AfterScenario(ctx, sc, nil)
		require.NoError(t, err)
	}

	assert.Equal(t, 5*time.Second, h.DefaultTimeout())
	timeouts := rec.DefaultTimeouts()
	require.NotEmpty(t, timeouts)
	for _, ms := range timeouts {
		assert.Equal(t, 5000.0, ms)
	}
}

func TestHooks_ScenarioTimeoutReleasesSession(t *testing.T) {
	rec := browsertest.NewRecorder()
	h := newHooks(t, rec, world.Options{ScenarioTimeout: 20 * time.Millisecond})
	sc := scenario("1", "Hangs")

	ctx, err := h.BeforeScenario(context.Background(), sc)
	require.NoError(t, err)
	w, err := world.FromContext(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return w.Session.State() == session.StateClosed
	}, time.Second, 5*time.Millisecond)

	pages := rec.Pages()
	require.Len(t, pages, 1)
	_, err = pages[0].Goto("http://localhost:8080/app/")
	assert.ErrorIs(t, err, playwright.ErrTargetClosed, "the page was closed under the waiting step")

	_, err = h.AfterScenario(ctx, sc, err)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Leaked())

	results := h.Results()
	require.Len(t, results, 1)
	assert.NotEmpty(t, results[0].Artifacts.TracePath, "artifacts of the timed out release are reported")
}

func TestHooks_CancelReleasesSession(t *testing.T) {
	rec := browsertest.NewRecorder()
	h := newHooks(t, rec, world.Options{})
	sc := scenario("1", "Interrupted")

	parent, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctx, err := h.BeforeScenario(parent, sc)
	require.NoError(t, err)
	w, err := world.FromContext(ctx)
	require.NoError(t, err)

	cancel()

	require.Eventually(t, func() bool {
		return w.Session.State() == session.StateClosed
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, rec.Leaked())

	_, err = h.AfterScenario(ctx, sc, context.Canceled)
	require.NoError(t, err)

	// Scenarios started after the cancel fail before opening a browser
	sc2 := scenario("2", "Never started")
	ctx2, err := h.BeforeScenario(parent, sc2)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = h.AfterScenario(ctx2, sc2, err)
	require.NoError(t, err)

	assert.Equal(t, 1, rec.Opened(browsertest.Browser))
	assert.Equal(t, 0, rec.Leaked())
}

func TestHooks_ArtifactExportFailureKeepsOutcome(t *testing.T) {
	rec := browsertest.NewRecorder()
	cfg := testConfig(t)

	// A file where the traces directory should be makes the export fail
	require.NoError(t, os.MkdirAll(cfg.ArtifactsDir, 0o755))
	require.NoError(t, os.WriteFile(cfg.TracesDir(), []byte("not a dir"), 0o644))

	m := session.NewManager(session.Options{Config: cfg, Launcher: rec})
	h := world.NewHooks(world.Options{Manager: m})
	defer h.Close(context.Background())
	sc := scenario("1", "Passes without trace")

	ctx, err := h.BeforeScenario(context.Background(), sc)
	require.NoError(t, err)

	ctx, err = h.AfterScenario(ctx, sc, nil)
	require.NoError(t, err)
	assert.Empty(t, godog.Attachments(ctx), "no trace link without a trace")

	results := h.Results()
	require.Len(t, results, 1)
	assert.True(t, results[0].Passed)
	assert.Empty(t, results[0].Err)
	assert.Empty(t, results[0].Artifacts.TracePath)
	assert.Equal(t, 0, rec.Leaked())
}

func TestHooks_StepDeadline(t *testing.T) {
	rec := browsertest.NewRecorder()
	h := newHooks(t, rec, world.Options{DefaultTimeout: time.Minute})

	parent := context.Background()
	stepCtx, err := h.BeforeStep(parent, &godog.Step{Text: "I wait"})
	require.NoError(t, err)

	_, ok := stepCtx.Deadline()
	assert.True(t, ok)
	assert.InDelta(t, time.Minute.Seconds(), world.StepDeadline(stepCtx, 0).Seconds(), 1)

	next, err := h.AfterStep(stepCtx, &godog.Step{Text: "I wait"}, godog.StepPassed, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, stepCtx.Err(), context.Canceled)
	assert.NoError(t, next.Err(), "the next step starts from the scenario context")
	assert.Equal(t, 3*time.Second, world.StepDeadline(next, 3*time.Second))
}

func TestHooks_RunSuite(t *testing.T) {
	rec := browsertest.NewRecorder()
	m := session.NewManager(session.Options{Config: testConfig(t), Launcher: rec})
	h := world.NewHooks(world.Options{Manager: m})

	suite := godog.TestSuite{
		Name:                 "hooks",
		TestSuiteInitializer: h.InitializeTestSuite,
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			h.InitializeScenario(sc)
			sc.Step(`^I open "([^"]*)"$`, func(ctx context.Context, ref string) error {
				w, err := world.FromContext(ctx)
				if err != nil {
					return err
				}
				page, err := w.Page()
				if err != nil {
					return err
				}
				target, err := w.URL(ref)
				if err != nil {
					return err
				}
				_, err = page.Goto(target)
				return err
			})
			sc.Step(`^I remember "([^"]*)" as "([^"]*)"$`, func(ctx context.Context, value, key string) error {
				w, err := world.FromContext(ctx)
				if err != nil {
					return err
				}
				if _, err := w.Data.String(key); err == nil {
					return fmt.Errorf("value %q leaked from another scenario", key)
				}
				w.Data.Set(key, value)
				return nil
			})
		},
		Options: &godog.Options{
			Format: "progress",
			Output: io.Discard,
			Strict: true,
			FeatureContents: []godog.Feature{{
				Name: "orders.feature",
				Contents: []byte(`Feature: Orders

  Scenario: List orders
    Given I open "orders"
    And I remember "42" as "order"

  Scenario: Show order
    Given I open "orders/42"
    And I remember "42" as "order"
`),
			}},
		},
	}

	assert.Equal(t, 0, suite.Run())
	assert.Equal(t, 0, rec.Leaked())
	assert.Equal(t, 0, m.Len())

	results := h.Results()
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.Passed, r.Err)
	}
}

func TestFromContext_NoWorld(t *testing.T) {
	_, err := world.FromContext(context.Background())
	assert.ErrorIs(t, err, world.ErrNoWorld)
}

func TestData(t *testing.T) {
	d := world.NewData()

	_, ok := d.Get("missing")
	assert.False(t, ok)
	_, err := d.String("missing")
	assert.Error(t, err)

	d.Set("order", "42")
	d.Set("count", 3)

	s, err := d.String("order")
	require.NoError(t, err)
	assert.Equal(t, "42", s)

	_, err = d.String("count")
	assert.ErrorContains(t, err, "int")
	assert.Equal(t, 2, d.Len())
}
