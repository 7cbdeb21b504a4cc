package document

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Field is one form control.
type Field struct {
	Name     string
	ID       string
	Type     string // lowercased input type; "select", "textarea" or "button-submit" for non-inputs
	Value    string
	Checked  bool
	Disabled bool
}

// IsSubmit reports whether the control submits its form when activated.
func (f *Field) IsSubmit() bool {
	switch f.Type {
	case "submit", "image", "button-submit":
		return true
	}
	return false
}

// Form is a mutable copy of a <form> element and its controls.
type Form struct {
	// Index is the form's position among the page's forms.
	Index int
	ID    string
	Name  string

	// Action is the absolute submission URL.
	Action *url.URL

	// Method is GET or POST.
	Method string

	Fields []*Field
}

func newForm(index int, s *goquery.Selection, pageURL *url.URL) *Form {
	f := &Form{
		Index:  index,
		ID:     s.AttrOr("id", ""),
		Name:   s.AttrOr("name", ""),
		Action: resolveAction(pageURL, strings.TrimSpace(s.AttrOr("action", ""))),
		Method: http.MethodGet,
	}
	if strings.EqualFold(strings.TrimSpace(s.AttrOr("method", "")), http.MethodPost) {
		f.Method = http.MethodPost
	}

	s.Find("input, select, textarea, button").Each(func(_ int, c *goquery.Selection) {
		field := &Field{
			Name: c.AttrOr("name", ""),
			ID:   c.AttrOr("id", ""),
		}
		_, field.Disabled = c.Attr("disabled")

		switch goquery.NodeName(c) {
		case "input":
			field.Type = strings.ToLower(c.AttrOr("type", "text"))
			field.Value = c.AttrOr("value", "")
			_, field.Checked = c.Attr("checked")
			if (field.Type == "checkbox" || field.Type == "radio") && field.Value == "" {
				field.Value = "on"
			}
		case "select":
			field.Type = "select"
			opt := c.Find("option[selected]").First()
			if opt.Length() == 0 {
				opt = c.Find("option").First()
			}
			field.Value = opt.AttrOr("value", strings.TrimSpace(opt.Text()))
		case "textarea":
			field.Type = "textarea"
			field.Value = c.Text()
		case "button":
			t := strings.ToLower(c.AttrOr("type", "submit"))
			if t != "submit" {
				return
			}
			field.Type = "button-submit"
			field.Value = c.AttrOr("value", "")
		}
		f.Fields = append(f.Fields, field)
	})
	return f
}

func resolveAction(pageURL *url.URL, action string) *url.URL {
	if pageURL == nil {
		u, err := url.Parse(action)
		if err != nil {
			return &url.URL{}
		}
		return u
	}
	if action == "" {
		u := *pageURL
		u.Fragment = ""
		return &u
	}
	ref, err := url.Parse(action)
	if err != nil {
		return pageURL
	}
	return pageURL.ResolveReference(ref)
}

// Field returns the first control whose name equals key, else the first
// whose id equals key, else nil.
func (f *Form) Field(key string) *Field {
	if key == "" {
		return nil
	}
	for _, c := range f.Fields {
		if c.Name == key {
			return c
		}
	}
	for _, c := range f.Fields {
		if c.ID == key {
			return c
		}
	}
	return nil
}

// Set assigns value to the control located by key. It reports whether a
// control was found. Checkboxes and radios become checked.
func (f *Form) Set(key, value string) bool {
	c := f.Field(key)
	if c == nil {
		return false
	}
	c.Value = value
	if c.Type == "checkbox" || c.Type == "radio" {
		c.Checked = true
	}
	return true
}

// SubmitControl returns the submit control matching name (or id), or nil.
func (f *Form) SubmitControl(name string) *Field {
	for _, c := range f.Fields {
		if c.IsSubmit() && (c.Name == name || (c.Name == "" && c.ID == name)) {
			return c
		}
	}
	return nil
}

// Values returns the form data set a browser would submit. submitter is
// the activated submit control, or nil for an implicit submission; only
// the activated control contributes its name/value pair.
func (f *Form) Values(submitter *Field) url.Values {
	vals := url.Values{}
	for _, c := range f.Fields {
		if c.Name == "" || c.Disabled {
			continue
		}
		switch c.Type {
		case "submit", "button-submit", "image", "reset", "button", "file":
			if c != submitter {
				continue
			}
			if c.Type == "image" {
				vals.Add(c.Name+".x", "0")
				vals.Add(c.Name+".y", "0")
				continue
			}
		case "checkbox", "radio":
			if !c.Checked {
				continue
			}
		}
		vals.Add(c.Name, c.Value)
	}
	return vals
}

// Clone returns a deep copy of the form.
func (f *Form) Clone() *Form {
	out := *f
	if f.Action != nil {
		a := *f.Action
		out.Action = &a
	}
	out.Fields = make([]*Field, len(f.Fields))
	for i, c := range f.Fields {
		cc := *c
		out.Fields[i] = &cc
	}
	return &out
}
