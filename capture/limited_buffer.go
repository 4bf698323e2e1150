package capture

import (
	"bytes"
	"unicode/utf8"
)

// LimitedBuffer keeps the first limit bytes written to it and marks itself as
// truncated once more is written. Writes never fail because of the limit.
// A cut never splits a UTF-8 encoded rune, so slightly less than limit may be kept.
type LimitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

// NewLimitedBuffer creates a new LimitedBuffer with the given size limit.
func NewLimitedBuffer(limit int) *LimitedBuffer {
	return &LimitedBuffer{limit: limit}
}

func (b *LimitedBuffer) Write(p []byte) (int, error) {
	if b.truncated {
		return len(p), nil
	}
	remaining := b.limit - b.buf.Len()
	if len(p) > remaining {
		b.truncated = true
		if remaining > 0 {
			b.buf.Write(p[:runeCut(p, remaining)])
		}
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *LimitedBuffer) WriteString(s string) (int, error) {
	if b.truncated {
		return len(s), nil
	}
	remaining := b.limit - b.buf.Len()
	if len(s) > remaining {
		b.truncated = true
		if remaining > 0 {
			b.buf.WriteString(s[:runeCut(s, remaining)])
		}
		return len(s), nil
	}
	return b.buf.WriteString(s)
}

// runeCut moves n back to the start of the rune that would be split at n.
func runeCut[T string | []byte](p T, n int) int {
	for n > 0 && !utf8.RuneStart(p[n]) {
		n--
	}
	return n
}

// Truncated reports whether data was dropped.
func (b *LimitedBuffer) Truncated() bool {
	return b.truncated
}

func (b *LimitedBuffer) Len() int {
	return b.buf.Len()
}

// String returns the kept data.
func (b *LimitedBuffer) String() string {
	return b.buf.String()
}

// Reset empties the buffer and clears the truncation mark.
func (b *LimitedBuffer) Reset() {
	b.buf.Reset()
	b.truncated = false
}
