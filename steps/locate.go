// Package steps provides the common step definitions of the suite and the
// helpers they are built on.
package steps

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/samber/lo"
)

// Strategy is the way a Candidate selects elements.
type Strategy string

const (
	CSS   Strategy = "css"
	XPath Strategy = "xpath"
	Text  Strategy = "text"
)

// PollInterval is the delay between two rounds over all candidates.
var PollInterval = 100 * time.Millisecond

// Candidate is one way of finding an element.
type Candidate struct {
	Strategy Strategy
	Value    string
}

func ByCSS(selector string) Candidate { return Candidate{Strategy: CSS, Value: selector} }
func ByXPath(expr string) Candidate { return Candidate{Strategy: XPath, Value: expr} }
func ByText(text string) Candidate { return Candidate{Strategy: Text, Value: text} }

// Selector returns the playwright selector of the candidate.
func (c Candidate) Selector() string {
	switch c.Strategy {
	case XPath:
		return "xpath=" + c.Value
	case Text:
		return "text=" + c.Value
	default:
		return c.Value
	}
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s %q", c.Strategy, c.Value)
}

// NotFoundError is returned when no candidate matched a visible element in time.
type NotFoundError struct {
	Candidates []Candidate
	Timeout    time.Duration
}

func (e *NotFoundError) Error() string {
	tried := lo.Map(e.Candidates, func(c Candidate, _ int) string { return c.String() })
	return fmt.Sprintf("no visible element after %s, tried %s", e.Timeout, strings.Join(tried, ", "))
}

// FirstVisible returns a locator for the first candidate, in order, that matches a visible
// element. Candidates are polled until one matches, the timeout passes or ctx is done.
func FirstVisible(ctx context.Context, page playwright.Page, timeout time.Duration, candidates ...Candidate) (playwright.Locator, Candidate, error) {
	if len(candidates) == 0 {
		return nil, Candidate{}, fmt.Errorf("no candidates given")
	}

	deadline := time.Now().Add(timeout)
	for {
		for _, c := range candidates {
			loc := page.Locator(c.Selector()).First()
			visible, err := loc.IsVisible()
			if err != nil {
				return nil, c, fmt.Errorf("checking %s: %w", c, err)
			}
			if visible {
				return loc, c, nil
			}
		}

		if !time.Now().Before(deadline) {
			return nil, Candidate{}, &NotFoundError{Candidates: candidates, Timeout: timeout}
		}

		select {
		case <-ctx.Done():
			return nil, Candidate{}, fmt.Errorf("locating %s: %w", candidates[0], ctx.Err())
		case <-time.After(min(PollInterval, time.Until(deadline))):
		}
	}
}

// FieldCandidates returns the ways an input is commonly found by its name or label.
func FieldCandidates(label string) []Candidate {
	q := strconv.Quote(label)
	return []Candidate{
		ByCSS("[name=" + q + "]"),
		ByCSS("[id=" + q + "]"),
		ByCSS("[placeholder=" + q + "]"),
		ByCSS("[aria-label=" + q + "]"),
		ByXPath(fmt.Sprintf("//label[normalize-space()=%s]/following::input[1]", xpathLiteral(label))),
	}
}

// ButtonCandidates returns the ways a clickable element is commonly found by its label.
func ButtonCandidates(label string) []Candidate {
	q := strconv.Quote(label)
	return []Candidate{
		ByCSS("button:has-text(" + q + ")"),
		ByCSS("[type=submit][value=" + q + "]"),
		ByCSS("a:has-text(" + q + ")"),
		ByXPath(fmt.Sprintf("//*[@role='button' and normalize-space()=%s]", xpathLiteral(label))),
		ByText(q),
	}
}

// xpathLiteral quotes s as an XPath 1.0 string literal.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}
