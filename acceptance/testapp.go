//go:build acceptance
// +build acceptance

package acceptance

import (
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

const (
	TestEmail    = "qa@dmerocket.test"
	TestPassword = "rocket-secret"
)

// TestApp is a small stand-in for the Rocket web application.
// It serves a sign in form, an order list with a delete confirmation and writes to the browser console.
type TestApp struct {
	Server *httptest.Server
	URL    string
	Logger *slog.Logger

	mu      sync.Mutex
	orders  []string
	deleted []string
}

// NewTestApp starts the application on a local port.
func NewTestApp(t *testing.T) *TestApp {
	t.Helper()

	app := &TestApp{
		Logger: slog.Default().With(slog.String("component", "testapp")),
		orders: []string{"SO-1001", "SO-1002"},
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	})

	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		writePage(w, "Sign in | DME Rocket", `
<form method="post" action="/login">
  <label for="email">Email</label>
  <input type="email" id="email" name="email">
  <label for="password">Password</label>
  <input type="password" id="password" name="password">
  <button type="submit">Sign in</button>
</form>
<script>console.log("login page ready")</script>`)
	})

	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("email") != TestEmail || r.FormValue("password") != TestPassword {
			app.Logger.Info("Rejected login", slog.String("email", r.FormValue("email")))
			writePage(w, "Sign in | DME Rocket", `<p class="error">Invalid credentials</p>`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "rocket_session", Value: "ok", Path: "/"})
		http.Redirect(w, r, "/orders", http.StatusSeeOther)
	})

	mux.HandleFunc("GET /orders", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("rocket_session"); err != nil || c.Value != "ok" {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		app.mu.Lock()
		var rows string
		for _, id := range app.orders {
			rows += fmt.Sprintf(`<li><span class="order-number">%s</span>
<form method="post" action="/orders/%s/delete" onsubmit="return confirm('Delete order %s?')">
  <button type="submit">Delete %s</button>
</form></li>`, html.EscapeString(id), id, id, id)
		}
		app.mu.Unlock()
		writePage(w, "Orders | DME Rocket", `<h1>Orders</h1><ul id="orders">`+rows+`</ul>`)
	})

	mux.HandleFunc("POST /orders/{id}/delete", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		app.mu.Lock()
		for i, o := range app.orders {
			if o == id {
				app.orders = append(app.orders[:i], app.orders[i+1:]...)
				app.deleted = append(app.deleted, id)
				break
			}
		}
		app.mu.Unlock()
		http.Redirect(w, r, "/orders", http.StatusSeeOther)
	})

	app.Server = httptest.NewServer(mux)
	app.URL = app.Server.URL + "/"

	return app
}

// Deleted returns the IDs of deleted orders.
func (ta *TestApp) Deleted() []string {
	ta.mu.Lock()
	defer ta.mu.Unlock()
	return append([]string(nil), ta.deleted...)
}

// Close shuts down the test application.
func (ta *TestApp) Close() {
	ta.Server.Close()
}

func writePage(w http.ResponseWriter, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!doctype html><html><head><title>%s</title></head><body>%s</body></html>", html.EscapeString(title), body)
}
