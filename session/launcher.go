package session

import (
	"context"

	"github.com/playwright-community/playwright-go"
)

// Launcher starts a browser process.
type Launcher interface {
	Launch(ctx context.Context, options playwright.BrowserTypeLaunchOptions) (playwright.Browser, error)
}

// LauncherFunc adapts a function to a Launcher.
type LauncherFunc func(ctx context.Context, options playwright.BrowserTypeLaunchOptions) (playwright.Browser, error)

func (f LauncherFunc) Launch(ctx context.Context, options playwright.BrowserTypeLaunchOptions) (playwright.Browser, error) {
	return f(ctx, options)
}
