package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/csrfprobe/pkg/document"
	"github.com/waftester/csrfprobe/pkg/httpclient"
	"github.com/waftester/csrfprobe/pkg/testutil"
)

func testCreds() Credentials {
	return Credentials{
		Username:      "alice",
		Password:      "s3cret",
		UsernameField: "userName",
		PasswordField: "passWord",
		LoginButton:   "login",
	}
}

func TestLogin_CarriesCookies(t *testing.T) {
	t.Parallel()
	app := testutil.NewApp(t, testutil.AppOptions{})
	ctx := context.Background()

	s := New()
	require.NoError(t, s.Login(ctx, app.URL, testCreds()))
	require.NoError(t, s.Navigate(ctx, "/pageWithForm/"))

	doc := s.Document()
	require.NotNil(t, doc)
	assert.True(t, doc.HasElement("csrfToken"))
	assert.Equal(t, []string{"login", "scan"}, app.Events())
	assert.Len(t, s.Cookies(app.URL), 1)
}

func TestBeginAt_FreshJar(t *testing.T) {
	t.Parallel()
	app := testutil.NewApp(t, testutil.AppOptions{})
	ctx := context.Background()

	s := New()
	require.NoError(t, s.Login(ctx, app.URL, testCreds()))
	require.NoError(t, s.BeginAt(ctx, app.URL+"/pageWithForm/"))

	// The previous span's cookie must not be sent, so the scan page
	// redirects back to the login form.
	assert.False(t, s.Document().HasElement("csrfToken"))
	assert.Contains(t, app.Events(), "denied")
	assert.Empty(t, s.Cookies(app.URL))
}

func TestSubmit_PostsFormWithToken(t *testing.T) {
	t.Parallel()
	app := testutil.NewApp(t, testutil.AppOptions{Validate: true})
	ctx := context.Background()

	s := New()
	require.NoError(t, s.Login(ctx, app.URL, testCreds()))
	require.NoError(t, s.Navigate(ctx, "/pageWithForm/"))
	require.NoError(t, s.Submit(ctx, ""))

	assert.False(t, s.Document().ContainsText("CSRFTokenValidationError"))
	assert.True(t, s.Document().ContainsText("Saved 10"))
}

func TestSubmit_TamperedToken(t *testing.T) {
	t.Parallel()
	app := testutil.NewApp(t, testutil.AppOptions{Validate: true})
	ctx := context.Background()

	s := New()
	require.NoError(t, s.Login(ctx, app.URL, testCreds()))
	require.NoError(t, s.Navigate(ctx, "/pageWithForm/"))
	require.NoError(t, s.SetField("csrfToken", "XXX"), "hidden field is found by id")
	require.NoError(t, s.Submit(ctx, ""))

	assert.True(t, s.Document().ContainsText("CSRFTokenValidationError"))
}

func TestSubmit_GetForm(t *testing.T) {
	t.Parallel()

	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search" {
			gotQuery = r.URL.RawQuery
			w.Write([]byte("<p>results</p>"))
			return
		}
		w.Write([]byte(`<form action="/search"><input name="q" value="go"><input type="submit" name="find" value="Find"></form>`))
	}))
	defer server.Close()

	ctx := context.Background()
	s := New()
	require.NoError(t, s.BeginAt(ctx, server.URL))
	require.NoError(t, s.Submit(ctx, "find"))
	assert.Equal(t, "find=Find&q=go", gotQuery)
	assert.True(t, s.Document().ContainsText("results"))
}

func TestSetField_NotFound(t *testing.T) {
	t.Parallel()
	app := testutil.NewApp(t, testutil.AppOptions{})

	s := New()
	require.NoError(t, s.BeginAt(context.Background(), app.URL))
	err := s.SetField("nope", "x")
	assert.ErrorIs(t, err, ErrFieldNotFound)
}

func TestSubmit_UnknownButton(t *testing.T) {
	t.Parallel()
	app := testutil.NewApp(t, testutil.AppOptions{})

	s := New()
	require.NoError(t, s.BeginAt(context.Background(), app.URL))
	err := s.Submit(context.Background(), "signin")
	assert.ErrorIs(t, err, ErrFieldNotFound)
}

func TestSubmit_NoForm(t *testing.T) {
	t.Parallel()
	app := testutil.NewApp(t, testutil.AppOptions{})

	s := New()
	require.NoError(t, s.BeginAt(context.Background(), app.URL+"/logout"))
	err := s.Submit(context.Background(), "")
	assert.ErrorIs(t, err, document.ErrNoForm)
}

func TestOperations_BeforeBeginAt(t *testing.T) {
	t.Parallel()

	s := New()
	assert.ErrorIs(t, s.Navigate(context.Background(), "http://x.test/"), ErrNotStarted)
	assert.ErrorIs(t, s.SetField("a", "b"), ErrNotStarted)
	assert.ErrorIs(t, s.Submit(context.Background(), ""), ErrNotStarted)
	assert.Nil(t, s.Document())
	assert.Nil(t, s.Cookies("http://x.test/"))
}

func TestBeginAt_ConnectionError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	s := New()
	err := s.BeginAt(context.Background(), addr)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
}

func TestSubmit_SubmissionError(t *testing.T) {
	t.Parallel()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("hijacking unsupported")
				return
			}
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		w.Write([]byte(`<form method="post" action="/do"><input name="a" value="1"></form>`))
	}))
	defer server.Close()

	s := New()
	require.NoError(t, s.BeginAt(context.Background(), server.URL))
	err := s.Submit(context.Background(), "")
	assert.ErrorIs(t, err, ErrSubmission)
}

func TestLogin_Rejected(t *testing.T) {
	t.Parallel()
	app := testutil.NewApp(t, testutil.AppOptions{RejectLogin: true})

	err := New().Login(context.Background(), app.URL, testCreds())
	assert.ErrorIs(t, err, ErrLoginFailed)
}

func TestLogin_MissingField(t *testing.T) {
	t.Parallel()
	app := testutil.NewApp(t, testutil.AppOptions{})

	creds := testCreds()
	creds.PasswordField = "pwd"
	err := New().Login(context.Background(), app.URL, creds)
	assert.ErrorIs(t, err, ErrLoginFailed)
	assert.ErrorIs(t, err, ErrFieldNotFound)
}

func TestNavigate_CanceledContext(t *testing.T) {
	t.Parallel()
	app := testutil.NewApp(t, testutil.AppOptions{})

	s := New()
	require.NoError(t, s.BeginAt(context.Background(), app.URL))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Navigate(ctx, "/pageWithForm/")
	assert.ErrorIs(t, err, ErrConnection)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestHistory(t *testing.T) {
	t.Parallel()
	app := testutil.NewApp(t, testutil.AppOptions{})

	s := New(WithHTTPConfig(httpclient.DefaultConfig()))
	require.NoError(t, s.Login(context.Background(), app.URL, testCreds()))

	h := s.History()
	require.Len(t, h, 2)
	assert.Equal(t, http.MethodGet, h[0].Method)
	assert.Equal(t, http.MethodPost, h[1].Method)
	assert.Equal(t, http.StatusOK, h[1].StatusCode)

	s.Close()
	assert.Empty(t, s.History())
}

func TestUseFormWith(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = r.ParseForm()
			w.Write([]byte("<p>got " + r.PostForm.Get("tok") + "</p>"))
			return
		}
		w.Write([]byte(`<form action="/search"><input name="q"></form>
<form method="post" action="/save"><input type="hidden" id="csrfToken" name="tok" value="t1"></form>`))
	}))
	defer server.Close()

	ctx := context.Background()
	s := New()
	require.NoError(t, s.BeginAt(ctx, server.URL))
	assert.Equal(t, "/search", s.WorkingForm().Action.Path, "first form by default")

	require.NoError(t, s.UseFormWith("csrfToken"))
	assert.Equal(t, "/save", s.WorkingForm().Action.Path)
	require.NoError(t, s.Submit(ctx, ""))
	assert.True(t, s.Document().ContainsText("got t1"))

	assert.ErrorIs(t, s.UseFormWith("ghost"), ErrFieldNotFound)
}
