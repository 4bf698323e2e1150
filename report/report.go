// Package report renders HTML fragments attached to scenarios in the run report.
package report

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/a-h/templ"
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

const (
	// HTMLMediaType is the media type of rendered attachments.
	HTMLMediaType = "text/html"
	// PNGMediaType is the media type of screenshots.
	PNGMediaType = "image/png"
)

// TraceLink renders a download link to a trace archive.
func TraceLink(href, label string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<a class="rocket-trace" href="%s" download>%s</a>`,
			templ.EscapeString(string(templ.URL(href))),
			templ.EscapeString(label),
		)
		return err
	})
}

// VideoLink renders an inline video player for a recorded scenario.
func VideoLink(href string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		src := templ.EscapeString(string(templ.URL(href)))
		_, err := fmt.Fprintf(w, `<video class="rocket-video" controls src="%s"><a href="%s">Download video</a></video>`, src, src)
		return err
	})
}

// HighlightHTML renders source as syntax highlighted HTML with inline styles,
// so the fragment needs no stylesheet.
func HighlightHTML(title, source string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		lexer := lexers.Get("html")
		if lexer == nil {
			lexer = lexers.Fallback
		}
		lexer = chroma.Coalesce(lexer)

		iterator, err := lexer.Tokenise(nil, source)
		if err != nil {
			return err
		}

		if _, err := fmt.Fprintf(w, `<details class="rocket-dom"><summary>%s</summary>`, templ.EscapeString(title)); err != nil {
			return err
		}
		formatter, style := chromaFormatterAndStyle()
		if err := formatter.Format(w, style, iterator); err != nil {
			return err
		}
		_, err = io.WriteString(w, "</details>")
		return err
	})
}

func chromaFormatterAndStyle() (*html.Formatter, *chroma.Style) {
	formatter := html.New(
		html.Standalone(false),
		html.WithClasses(false),
		html.TabWidth(2),
	)

	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}

	return formatter, style
}

// RenderString renders a component to a string.
func RenderString(c templ.Component) (string, error) {
	var sb strings.Builder
	if err := c.Render(context.Background(), &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// RelativeLink returns a slash separated link from the report directory to target.
// If no relative path exists the absolute path is returned.
func RelativeLink(reportDir, target string) string {
	rel, err := filepath.Rel(reportDir, target)
	if err != nil {
		if abs, absErr := filepath.Abs(target); absErr == nil {
			return filepath.ToSlash(abs)
		}
		return filepath.ToSlash(target)
	}
	return filepath.ToSlash(rel)
}
