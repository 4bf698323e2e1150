package session

import "context"

type sessionKeyType struct{}

var sessionKey = sessionKeyType{}

// WithSession returns a new context carrying the session of the current scenario.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// FromContext returns the session of the current scenario.
// Returns nil and false if no session is set.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok && s != nil
}
