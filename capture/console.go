package capture

import (
	"fmt"
	"io"
	"time"

	"github.com/playwright-community/playwright-go"
)

// DefaultConsoleCapacity is the number of console entries kept per page.
const DefaultConsoleCapacity = 500

// ConsoleEntry is a single browser console message or uncaught page error.
type ConsoleEntry struct {
	Time time.Time
	// Type is the console method (log, warning, error, ...) or "pageerror".
	Type string
	Text string
}

// ConsoleCollector records console output of a page into a ring buffer.
type ConsoleCollector struct {
	buffer *RingBuffer[ConsoleEntry]
	now    func() time.Time
}

// NewConsoleCollector creates a collector keeping the last capacity entries.
func NewConsoleCollector(capacity uint64) *ConsoleCollector {
	if capacity == 0 {
		capacity = DefaultConsoleCapacity
	}
	return &ConsoleCollector{
		buffer: NewRingBuffer[ConsoleEntry](capacity),
		now:    time.Now,
	}
}

// Attach subscribes to console messages and page errors of page.
func (c *ConsoleCollector) Attach(page playwright.Page) {
	page.OnConsole(func(msg playwright.ConsoleMessage) {
		c.Add(msg.Type(), msg.Text())
	})
	page.OnPageError(func(err error) {
		c.Add("pageerror", err.Error())
	})
}

// Add records an entry.
func (c *ConsoleCollector) Add(typ, text string) {
	c.buffer.Add(ConsoleEntry{Time: c.now(), Type: typ, Text: text})
}

// Entries returns all retained entries, oldest first.
func (c *ConsoleCollector) Entries() []ConsoleEntry {
	return c.buffer.All()
}

// Len returns the number of retained entries.
func (c *ConsoleCollector) Len() int {
	return int(c.buffer.Size())
}

// WriteTo writes one line per entry.
func (c *ConsoleCollector) WriteTo(w io.Writer) (int64, error) {
	var total int64
	if dropped := c.buffer.Dropped(); dropped > 0 {
		n, err := fmt.Fprintf(w, "... %d earlier entries dropped\n", dropped)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	for _, e := range c.Entries() {
		n, err := fmt.Fprintf(w, "%s [%s] %s\n", e.Time.Format(time.RFC3339Nano), e.Type, e.Text)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
