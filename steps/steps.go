package steps

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/playwright-community/playwright-go"

	"github.com/networkteam/rocketworld/world"
)

const dialogKey = "__next_dialog"

// Register adds the common step definitions to a scenario.
func Register(sc *godog.ScenarioContext) {
	sc.Step(`^I open the application$`, openApplication)
	sc.Step(`^I navigate to "([^"]*)"$`, navigateTo)
	sc.Step(`^the page title should contain "([^"]*)"$`, titleShouldContain)
	sc.Step(`^I should see "([^"]*)"$`, shouldSee)
	sc.Step(`^I fill "([^"]*)" with "([^"]*)"$`, fill)
	sc.Step(`^I fill "([^"]*)" with the remembered "([^"]*)"$`, fillRemembered)
	sc.Step(`^I click "([^"]*)"$`, click)
	sc.Step(`^I log in$`, logIn)
	sc.Step(`^I log in as "([^"]*)" with password "([^"]*)"$`, logInAs)
	sc.Step(`^I remember the text of "([^"]*)" as "([^"]*)"$`, rememberText)
	sc.Step(`^I will (accept|dismiss) the next dialog$`, expectDialog)
	sc.Step(`^a dialog saying "([^"]*)" should (?:appear|have appeared)$`, dialogShouldAppear)
}

// stepPage returns the world and page of the running scenario and the time left for the step.
func stepPage(ctx context.Context) (*world.World, playwright.Page, time.Duration, error) {
	w, err := world.FromContext(ctx)
	if err != nil {
		return nil, nil, 0, err
	}
	page, err := w.Page()
	if err != nil {
		return nil, nil, 0, err
	}
	return w, page, world.StepDeadline(ctx, w.Session.DefaultTimeout()), nil
}

func openApplication(ctx context.Context) error {
	return navigateTo(ctx, "")
}

func navigateTo(ctx context.Context, ref string) error {
	w, page, _, err := stepPage(ctx)
	if err != nil {
		return err
	}
	target, err := w.URL(ref)
	if err != nil {
		return err
	}
	w.Logger.Debug("Navigating", slog.String("url", target))
	if _, err := page.Goto(target); err != nil {
		return fmt.Errorf("navigating to %s: %w", target, err)
	}
	return nil
}

// titleShouldContain polls the title, a navigation started by the previous step may still be loading.
func titleShouldContain(ctx context.Context, expected string) error {
	_, page, timeout, err := stepPage(ctx)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(timeout)
	for {
		title, err := page.Title()
		if err != nil {
			return fmt.Errorf("reading title: %w", err)
		}
		if strings.Contains(title, expected) {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("expected title to contain %q, got %q", expected, title)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(min(PollInterval, time.Until(deadline))):
		}
	}
}

func shouldSee(ctx context.Context, text string) error {
	_, page, timeout, err := stepPage(ctx)
	if err != nil {
		return err
	}
	_, _, err = FirstVisible(ctx, page, timeout, ByText(text))
	return err
}

func fill(ctx context.Context, field, value string) error {
	w, page, timeout, err := stepPage(ctx)
	if err != nil {
		return err
	}
	loc, c, err := FirstVisible(ctx, page, timeout, FieldCandidates(field)...)
	if err != nil {
		return fmt.Errorf("locating field %q: %w", field, err)
	}
	w.Logger.Debug("Filling field", slog.String("field", field), slog.String("matched", c.String()))
	return loc.Fill(value)
}

func fillRemembered(ctx context.Context, field, key string) error {
	w, err := world.FromContext(ctx)
	if err != nil {
		return err
	}
	value, err := w.Data.String(key)
	if err != nil {
		return err
	}
	return fill(ctx, field, value)
}

func click(ctx context.Context, label string) error {
	w, page, timeout, err := stepPage(ctx)
	if err != nil {
		return err
	}
	loc, c, err := FirstVisible(ctx, page, timeout, ButtonCandidates(label)...)
	if err != nil {
		return fmt.Errorf("locating %q: %w", label, err)
	}
	w.Logger.Debug("Clicking", slog.String("label", label), slog.String("matched", c.String()))
	return loc.Click()
}

func logIn(ctx context.Context) error {
	w, err := world.FromContext(ctx)
	if err != nil {
		return err
	}
	return logInAs(ctx, w.Config.Email, w.Config.Password)
}

func logInAs(ctx context.Context, email, password string) error {
	w, page, timeout, err := stepPage(ctx)
	if err != nil {
		return err
	}
	w.Logger.Info("Logging in", slog.String("email", email))
	return NewLoginPage(page, timeout).Login(ctx, email, password)
}

func rememberText(ctx context.Context, selector, key string) error {
	w, page, timeout, err := stepPage(ctx)
	if err != nil {
		return err
	}
	loc, _, err := FirstVisible(ctx, page, timeout, ByCSS(selector))
	if err != nil {
		return err
	}
	text, err := loc.TextContent()
	if err != nil {
		return fmt.Errorf("reading text of %s: %w", selector, err)
	}
	w.Data.Set(key, strings.TrimSpace(text))
	return nil
}

func expectDialog(ctx context.Context, action string) error {
	w, page, _, err := stepPage(ctx)
	if err != nil {
		return err
	}
	if prev, ok := w.Data.Get(dialogKey); ok {
		prev.(*DialogFuture).Cancel()
	}
	a := DialogAccept
	if action == "dismiss" {
		a = DialogDismiss
	}
	w.Data.Set(dialogKey, NextDialog(page, a))
	return nil
}

func dialogShouldAppear(ctx context.Context, message string) error {
	w, _, timeout, err := stepPage(ctx)
	if err != nil {
		return err
	}
	v, ok := w.Data.Get(dialogKey)
	if !ok {
		return fmt.Errorf("no dialog expected, add a step like \"I will accept the next dialog\" before the interaction")
	}
	f := v.(*DialogFuture)
	w.Data.Delete(dialogKey)
	info, err := f.Wait(ctx, timeout)
	if err != nil {
		return err
	}
	if !strings.Contains(info.Message, message) {
		return fmt.Errorf("expected dialog saying %q, got %q", message, info.Message)
	}
	return nil
}
