package testutil

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// TokenMode controls how the fake target renders its anti-CSRF field.
type TokenMode int

const (
	// TokenPresent renders the token field with AppOptions.Token.
	TokenPresent TokenMode = iota
	// TokenMissing omits the token field.
	TokenMissing
	// TokenEmpty renders the token field without a value attribute.
	TokenEmpty
	// TokenBlank renders the token field with value="".
	TokenBlank
)

// AppOptions configure a fake target application.
type AppOptions struct {
	Token       string // default "abc123"
	TokenID     string // default "csrfToken"
	Mode        TokenMode
	Validate    bool   // reject submissions whose token differs
	Signature   string // default "CSRFTokenValidationError"
	FormMethod  string // default "post"
	RejectLogin bool   // answer the login POST with 401
}

// App is an httptest server simulating a login-protected web application
// whose scan page holds a token-bearing form.
//
// Routes: "/" (login page), "/login" (POST), "/home", "/pageWithForm/" (scan page),
// "/pageWithForm/save" (form action), "/logout".
type App struct {
	*httptest.Server
	Opts AppOptions

	mu       sync.Mutex
	nextSID  int
	sessions map[string]bool
	events   []string
	seen     []string
}

// NewApp starts a fake target. The server is closed on test cleanup.
func NewApp(t testing.TB, opts AppOptions) *App {
	t.Helper()
	if opts.Token == "" {
		opts.Token = "abc123"
	}
	if opts.TokenID == "" {
		opts.TokenID = "csrfToken"
	}
	if opts.Signature == "" {
		opts.Signature = "CSRFTokenValidationError"
	}
	if opts.FormMethod == "" {
		opts.FormMethod = "post"
	}

	a := &App{Opts: opts, sessions: make(map[string]bool)}
	mux := http.NewServeMux()
	mux.HandleFunc("/", a.handleLoginPage)
	mux.HandleFunc("/login", a.handleLogin)
	mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>welcome</body></html>")
	})
	mux.HandleFunc("/pageWithForm/", a.handleScanPage)
	mux.HandleFunc("/pageWithForm/save", a.handleSave)
	mux.HandleFunc("/logout", a.handleLogout)
	a.Server = httptest.NewServer(mux)
	t.Cleanup(a.Close)
	return a
}

// Events returns the ordered request log: login, scan, submit, logout,
// reject and denied entries.
func (a *App) Events() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.events...)
}

// SessionIDs returns the session id presented on each authenticated
// request, in order.
func (a *App) SessionIDs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.seen...)
}

// ActiveSessions returns the number of sessions that have not logged out.
func (a *App) ActiveSessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}

func (a *App) record(event string) {
	a.mu.Lock()
	a.events = append(a.events, event)
	a.mu.Unlock()
}

func (a *App) authenticated(r *http.Request) bool {
	c, err := r.Cookie("sid")
	if err != nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.sessions[c.Value] {
		return false
	}
	a.seen = append(a.seen, c.Value)
	return true
}

func (a *App) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<html><body><form action="/login" method="post">
<input type="text" name="userName">
<input type="password" name="passWord">
<input type="submit" name="login" value="Log in">
</form></body></html>`)
}

func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_ = r.ParseForm()
	if a.Opts.RejectLogin || r.PostForm.Get("userName") == "" || r.PostForm.Get("login") == "" {
		a.record("reject")
		http.Error(w, "bad credentials", http.StatusUnauthorized)
		return
	}

	a.mu.Lock()
	a.nextSID++
	sid := "s" + strconv.Itoa(a.nextSID)
	a.sessions[sid] = true
	a.events = append(a.events, "login")
	a.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: "sid", Value: sid, Path: "/"})
	http.Redirect(w, r, "/home", http.StatusFound)
}

func (a *App) handleScanPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/pageWithForm/" {
		http.NotFound(w, r)
		return
	}
	if !a.authenticated(r) {
		a.record("denied")
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	a.record("scan")

	var token string
	switch a.Opts.Mode {
	case TokenPresent:
		token = fmt.Sprintf(`<input type="hidden" id="%s" name="csrf" value="%s">`,
			html.EscapeString(a.Opts.TokenID), html.EscapeString(a.Opts.Token))
	case TokenEmpty:
		token = fmt.Sprintf(`<input type="hidden" id="%s" name="csrf">`, html.EscapeString(a.Opts.TokenID))
	case TokenBlank:
		token = fmt.Sprintf(`<input type="hidden" id="%s" name="csrf" value="">`, html.EscapeString(a.Opts.TokenID))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<html><head><title>Transfer funds</title></head><body><form action="save" method="%s">
%s
<input type="hidden" name="_session_token" value="ignored">
<input type="text" name="amount" value="10">
<input type="submit" name="save" value="Save">
</form></body></html>`, a.Opts.FormMethod, token)
}

func (a *App) handleSave(w http.ResponseWriter, r *http.Request) {
	if !a.authenticated(r) {
		a.record("denied")
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	_ = r.ParseForm()
	a.record("submit")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if a.Opts.Validate && r.Form.Get("csrf") != a.Opts.Token {
		fmt.Fprintf(w, "<html><body><p>Error [%s]: request rejected</p></body></html>", a.Opts.Signature)
		return
	}
	fmt.Fprint(w, "<html><body><p>Saved "+html.EscapeString(strings.TrimSpace(r.Form.Get("amount")))+"</p></body></html>")
}

func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie("sid"); err == nil {
		a.mu.Lock()
		delete(a.sessions, c.Value)
		a.mu.Unlock()
	}
	a.record("logout")
	http.SetCookie(w, &http.Cookie{Name: "sid", Value: "", Path: "/", MaxAge: -1})
	fmt.Fprint(w, "<html><body>bye</body></html>")
}
