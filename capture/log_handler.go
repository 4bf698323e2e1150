package capture

import (
	"context"
	"io"
	"log/slog"
	"slices"

	"github.com/samber/lo"
)

// DefaultLogCapacity is the number of log records kept per scenario.
const DefaultLogCapacity = 1000

// LogBuffer keeps the log records written during a scenario.
type LogBuffer struct {
	buffer *RingBuffer[slog.Record]
}

// NewLogBuffer creates a buffer keeping the last capacity records.
func NewLogBuffer(capacity uint64) *LogBuffer {
	if capacity == 0 {
		capacity = DefaultLogCapacity
	}
	return &LogBuffer{buffer: NewRingBuffer[slog.Record](capacity)}
}

// Records returns all retained records, oldest first.
func (b *LogBuffer) Records() []slog.Record {
	return b.buffer.All()
}

// WriteTo writes the records in slog text format.
func (b *LogBuffer) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	h := slog.NewTextHandler(cw, &slog.HandlerOptions{Level: slog.LevelDebug})
	for _, r := range b.Records() {
		if err := h.Handle(context.Background(), r); err != nil {
			return cw.n, err
		}
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// LogHandler is a slog.Handler that tees records into a LogBuffer and forwards them to next.
type LogHandler struct {
	buffer *LogBuffer
	next   slog.Handler
	level  slog.Leveler

	attrs  []slog.Attr
	groups []string
}

// NewLogHandler creates a handler collecting records of at least level into buffer.
// A nil next handler only collects.
func NewLogHandler(buffer *LogBuffer, next slog.Handler, level slog.Leveler) *LogHandler {
	if level == nil {
		level = slog.LevelDebug
	}
	return &LogHandler{
		buffer: buffer,
		next:   next,
		level:  level,
		attrs:  []slog.Attr{},
		groups: []string{},
	}
}

func (h *LogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.level.Level() <= level {
		return true
	}
	return h.next != nil && h.next.Enabled(ctx, level)
}

func (h *LogHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.level.Level() <= record.Level {
		// Handler attributes must come before record attributes, so the record is rebuilt.
		collected := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
		collected.AddAttrs(h.attrs...)

		attrs := []slog.Attr{}
		record.Attrs(func(attr slog.Attr) bool {
			attrs = append(attrs, attr)
			return true
		})
		for i := len(h.groups) - 1; i >= 0; i-- {
			attrs = []slog.Attr{slog.Group(h.groups[i], lo.ToAnySlice(attrs)...)}
		}
		collected.AddAttrs(attrs...)

		h.buffer.buffer.Add(collected)
	}

	if h.next != nil && h.next.Enabled(ctx, record.Level) {
		return h.next.Handle(ctx, record)
	}
	return nil
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var next slog.Handler
	if h.next != nil {
		next = h.next.WithAttrs(attrs)
	}
	return &LogHandler{
		buffer: h.buffer,
		next:   next,
		level:  h.level,
		attrs:  appendAttrsToGroup(h.groups, h.attrs, attrs...),
		groups: h.groups,
	}
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	var next slog.Handler
	if h.next != nil {
		next = h.next.WithGroup(name)
	}
	return &LogHandler{
		buffer: h.buffer,
		next:   next,
		level:  h.level,
		attrs:  h.attrs,
		groups: append(slices.Clone(h.groups), name),
	}
}

// Copied from github.com/samber/slog-mock
func appendAttrsToGroup(groups []string, actualAttrs []slog.Attr, newAttrs ...slog.Attr) []slog.Attr {
	actualAttrs = slices.Clone(actualAttrs)

	if len(groups) == 0 {
		return append(actualAttrs, newAttrs...)
	}

	for i := range actualAttrs {
		attr := actualAttrs[i]
		if attr.Key == groups[0] && attr.Value.Kind() == slog.KindGroup {
			actualAttrs[i] = slog.Group(groups[0], lo.ToAnySlice(appendAttrsToGroup(groups[1:], attr.Value.Group(), newAttrs...))...)
			return actualAttrs
		}
	}

	return append(
		actualAttrs,
		slog.Group(
			groups[0],
			lo.ToAnySlice(appendAttrsToGroup(groups[1:], []slog.Attr{}, newAttrs...))...,
		),
	)
}
