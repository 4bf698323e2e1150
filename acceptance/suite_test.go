//go:build acceptance
// +build acceptance

package acceptance

import (
	"bytes"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/networkteam/rocketworld"
)

func TestSuite_Orders(t *testing.T) {
	WithTestFixtures(t, func(t *testing.T, f *TestFixtures) {
		f.Config.StepTimeout = 5 * time.Second

		rw, err := rocketworld.NewWithOptions(rocketworld.Options{
			Config:   &f.Config,
			Launcher: f.Driver,
		})
		require.NoError(t, err)
		defer rw.Close()

		var out bytes.Buffer
		suite := rw.TestSuite("orders", &godog.Options{
			Format:      "pretty",
			Output:      &out,
			Paths:       []string{"testdata"},
			Tags:        "~@broken",
			Concurrency: 2,
			Strict:      true,
		})

		require.Equal(t, 0, suite.Run(), out.String())
		assert.Equal(t, []string{"SO-1002"}, f.App.Deleted())

		for _, r := range rw.Results() {
			assert.True(t, r.Passed, r.Scenario)
			assert.FileExists(t, r.Artifacts.TracePath)
		}
	})
}

func TestSuite_FailureCapturesEvidence(t *testing.T) {
	WithTestFixtures(t, func(t *testing.T, f *TestFixtures) {
		f.Config.StepTimeout = time.Second

		rw, err := rocketworld.NewWithOptions(rocketworld.Options{
			Config:      &f.Config,
			Launcher:    f.Driver,
			AttachVideo: true,
		})
		require.NoError(t, err)
		defer rw.Close()

		var out bytes.Buffer
		suite := rw.TestSuite("orders", &godog.Options{
			Format: "cucumber",
			Output: &out,
			Paths:  []string{"testdata"},
			Tags:   "@broken",
			Strict: true,
		})

		assert.Equal(t, 1, suite.Run())

		results := rw.Results()
		require.Len(t, results, 1)
		assert.False(t, results[0].Passed)
		assert.FileExists(t, results[0].Artifacts.TracePath)
		assert.FileExists(t, results[0].Artifacts.VideoPath)
		assert.Contains(t, out.String(), "image/png")
	})
}
