package document

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForms_Extraction(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, scanPage)

	forms := doc.Forms()
	require.Len(t, forms, 1)
	f := forms[0]

	assert.Equal(t, "transfer", f.ID)
	assert.Equal(t, http.MethodPost, f.Method)
	assert.Equal(t, "http://app.test/transfer", f.Action.String())
	assert.Len(t, f.Fields, 8)
}

func TestForms_DefaultActionAndMethod(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, `<form><input name="q"></form>`)

	f := doc.Forms()[0]
	assert.Equal(t, http.MethodGet, f.Method)
	assert.Equal(t, "http://app.test/pageWithForm/", f.Action.String())
	assert.Equal(t, "text", f.Fields[0].Type)
}

func TestForm_FieldNameThenID(t *testing.T) {
	t.Parallel()
	f := mustParse(t, scanPage).Forms()[0]

	byName := f.Field("csrf_token")
	byID := f.Field("csrfToken")
	require.NotNil(t, byName)
	assert.Same(t, byName, byID)
	assert.Nil(t, f.Field("nope"))
	assert.Nil(t, f.Field(""))
}

func TestForm_Values(t *testing.T) {
	t.Parallel()
	f := mustParse(t, scanPage).Forms()[0]

	vals := f.Values(nil)
	assert.Equal(t, "abc123", vals.Get("csrf_token"))
	assert.Equal(t, "a2", vals.Get("account"))
	assert.Equal(t, "rent", vals.Get("memo"))
	assert.False(t, vals.Has("confirm"), "unchecked checkbox is not submitted")
	assert.False(t, vals.Has("send"), "implicit submission sends no button")

	send := f.SubmitControl("send")
	require.NotNil(t, send)
	vals = f.Values(send)
	assert.Equal(t, "Send", vals.Get("send"))
	assert.False(t, vals.Has("cancel"))
}

func TestForm_SetAndClone(t *testing.T) {
	t.Parallel()
	f := mustParse(t, scanPage).Forms()[0]
	c := f.Clone()

	assert.True(t, c.Set("csrfToken", "XXX"))
	assert.True(t, c.Set("confirm", "yes"))
	assert.False(t, c.Set("ghost", "1"))

	assert.Equal(t, "XXX", c.Values(nil).Get("csrf_token"))
	assert.Equal(t, "yes", c.Values(nil).Get("confirm"))
	assert.Equal(t, "abc123", f.Values(nil).Get("csrf_token"), "clone must not alias")
}

func TestForm_DisabledAndButtons(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, `<form method="POST">
<input name="a" value="1" disabled>
<button name="go" value="now">Go</button>
<button type="button" name="noop">No</button>
</form>`)
	f := doc.Forms()[0]

	assert.Equal(t, http.MethodPost, f.Method)
	assert.Nil(t, f.Field("noop"), "type=button is not a form control that submits")
	goBtn := f.SubmitControl("go")
	require.NotNil(t, goBtn)

	vals := f.Values(goBtn)
	assert.False(t, vals.Has("a"))
	assert.Equal(t, "now", vals.Get("go"))
}
