// Package world holds the per-scenario state shared by step definitions and the
// lifecycle hooks that create and tear it down.
package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/networkteam/rocketworld/config"
	"github.com/networkteam/rocketworld/session"
)

// ErrNoWorld is returned when a step runs without a world in its context.
var ErrNoWorld = errors.New("no scenario world in context")

// World is the state of one scenario. It is created before the scenario and discarded after it.
type World struct {
	ScenarioID string
	Scenario   string
	Config     config.Config
	Session    *session.Session
	Data       *Data
	Logger     *slog.Logger
}

// Page returns the page of the scenario's session.
func (w *World) Page() (playwright.Page, error) {
	return w.Session.Page()
}

// URL resolves ref against the configured target URL.
func (w *World) URL(ref string) (string, error) {
	return w.Session.ResolveURL(ref)
}

type worldKeyType struct{}

var worldKey = worldKeyType{}

// With returns a new context carrying w and its session.
func With(ctx context.Context, w *World) context.Context {
	ctx = session.WithSession(ctx, w.Session)
	return context.WithValue(ctx, worldKey, w)
}

// FromContext returns the world of the current scenario.
func FromContext(ctx context.Context) (*World, error) {
	w, ok := ctx.Value(worldKey).(*World)
	if !ok || w == nil {
		return nil, ErrNoWorld
	}
	return w, nil
}

// Data is a scenario scoped bag of values shared between steps.
type Data struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewData() *Data {
	return &Data{values: make(map[string]any)}
}

func (d *Data) Set(key string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.values[key] = value
}

func (d *Data) Get(key string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.values[key]
	return v, ok
}

func (d *Data) Delete(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.values, key)
}

// String returns the value stored under key as a string.
func (d *Data) String(key string) (string, error) {
	v, ok := d.Get(key)
	if !ok {
		return "", fmt.Errorf("no value remembered as %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("value remembered as %q is %T, not a string", key, v)
	}
	return s, nil
}

// Len returns the number of stored values.
func (d *Data) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.values)
}
