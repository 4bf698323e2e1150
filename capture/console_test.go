package capture_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/networkteam/rocketworld/capture"
)

type fakeConsoleMessage struct {
	playwright.ConsoleMessage
	typ, text string
}

func (m fakeConsoleMessage) Type() string { return m.typ }
func (m fakeConsoleMessage) Text() string { return m.text }

type fakeConsolePage struct {
	playwright.Page
	onConsole   func(playwright.ConsoleMessage)
	onPageError func(error)
}

func (p *fakeConsolePage) OnConsole(fn func(playwright.ConsoleMessage)) { p.onConsole = fn }
func (p *fakeConsolePage) OnPageError(fn func(error))                   { p.onPageError = fn }

func TestConsoleCollector_Attach(t *testing.T) {
	page := &fakeConsolePage{}
	c := capture.NewConsoleCollector(10)
	c.Attach(page)

	require.NotNil(t, page.onConsole)
	require.NotNil(t, page.onPageError)

	page.onConsole(fakeConsoleMessage{typ: "log", text: "hello"})
	page.onConsole(fakeConsoleMessage{typ: "error", text: "failed to load resource"})
	page.onPageError(errors.New("ReferenceError: x is not defined"))

	entries := c.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "log", entries[0].Type)
	assert.Equal(t, "hello", entries[0].Text)
	assert.Equal(t, "pageerror", entries[2].Type)
	assert.Equal(t, 3, c.Len())
}

func TestConsoleCollector_WriteTo(t *testing.T) {
	c := capture.NewConsoleCollector(2)
	for i := 0; i < 3; i++ {
		c.Add("log", fmt.Sprintf("line %d", i))
	}

	var sb strings.Builder
	n, err := c.WriteTo(&sb)
	require.NoError(t, err)
	assert.Equal(t, int64(sb.Len()), n)

	out := sb.String()
	assert.Contains(t, out, "1 earlier entries dropped")
	assert.NotContains(t, out, "line 0")
	assert.Contains(t, out, "[log] line 1")
	assert.Contains(t, out, "[log] line 2")
}

func TestConsoleCollector_DefaultCapacity(t *testing.T) {
	c := capture.NewConsoleCollector(0)
	c.Add("log", "x")
	assert.Equal(t, 1, c.Len())
}
