package steps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// ErrNoCredentials is returned when a login is attempted without configured credentials.
var ErrNoCredentials = errors.New("no credentials configured, set ROCKET_EMAIL and ROCKET_PASSWORD")

// LoginPage provides helper methods for the sign in form of the application.
// It implements the Page Object pattern for cleaner step code.
type LoginPage struct {
	Page    playwright.Page
	Timeout time.Duration
}

func NewLoginPage(page playwright.Page, timeout time.Duration) *LoginPage {
	return &LoginPage{Page: page, Timeout: timeout}
}

var (
	emailCandidates = []Candidate{
		ByCSS(`input[type="email"]`),
		ByCSS(`input[name="email"]`),
		ByCSS(`input[name="username"]`),
		ByCSS(`#email`),
	}
	passwordCandidates = []Candidate{
		ByCSS(`input[type="password"]`),
		ByCSS(`input[name="password"]`),
		ByCSS(`#password`),
	}
	submitCandidates = []Candidate{
		ByCSS(`button[type="submit"]`),
		ByCSS(`input[type="submit"]`),
		ByCSS(`button:has-text("Sign in")`),
		ByCSS(`button:has-text("Log in")`),
		ByXPath(`//button[contains(normalize-space(), 'Login')]`),
	}
)

// Login fills in the form and submits it.
func (lp *LoginPage) Login(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return ErrNoCredentials
	}

	emailField, _, err := FirstVisible(ctx, lp.Page, lp.Timeout, emailCandidates...)
	if err != nil {
		return fmt.Errorf("locating email field: %w", err)
	}
	if err := emailField.Fill(email); err != nil {
		return fmt.Errorf("filling email: %w", err)
	}

	passwordField, _, err := FirstVisible(ctx, lp.Page, lp.Timeout, passwordCandidates...)
	if err != nil {
		return fmt.Errorf("locating password field: %w", err)
	}
	if err := passwordField.Fill(password); err != nil {
		return fmt.Errorf("filling password: %w", err)
	}

	submit, _, err := FirstVisible(ctx, lp.Page, lp.Timeout, submitCandidates...)
	if err != nil {
		return fmt.Errorf("locating submit button: %w", err)
	}
	if err := submit.Click(); err != nil {
		return fmt.Errorf("submitting login: %w", err)
	}

	return nil
}
