// Package document provides a read-only view over a loaded HTML page.
//
// Pages are decoded to UTF-8 using the response charset, parsed with
// golang.org/x/net/html and queried through goquery. Lookups never mutate
// the page; form state that changes between submissions lives in Form
// values copied out of the document.
package document

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/spaolacci/murmur3"
	"golang.org/x/net/html"

	"github.com/waftester/csrfprobe/pkg/iohelper"
)

// View is the capability set the probe needs from a page.
type View interface {
	// HasElement reports whether an element with the given id exists.
	HasElement(id string) bool

	// Attribute returns the named attribute of the element with the given
	// id. A missing element yields ErrElementNotFound; a present element
	// without the attribute yields "".
	Attribute(id, name string) (string, error)

	// ContainsText reports whether substring occurs in the raw page source.
	// Matching is literal and case-sensitive.
	ContainsText(substring string) bool
}

// Document is a parsed page. It implements View.
type Document struct {
	// URL is the final URL the page was loaded from, after redirects.
	URL *url.URL

	// StatusCode is the HTTP status of the response.
	StatusCode int

	source      string
	fingerprint uint32
	dom         *goquery.Document
}

var _ View = (*Document)(nil)

// Parse builds a Document from a response body. contentType is the
// response Content-Type header and drives charset decoding.
func Parse(pageURL *url.URL, statusCode int, contentType string, body []byte) (*Document, error) {
	decoded := iohelper.DecodeHTML(body, contentType)

	root, err := html.Parse(bytes.NewReader(decoded))
	if err != nil {
		return nil, fmt.Errorf("document: parse %s: %w", pageURL, err)
	}

	dom := goquery.NewDocumentFromNode(root)
	dom.Url = pageURL

	return &Document{
		URL:         pageURL,
		StatusCode:  statusCode,
		source:      string(decoded),
		fingerprint: murmur3.Sum32(decoded),
		dom:         dom,
	}, nil
}

// ParseString is a convenience for tests and callers holding markup.
func ParseString(pageURL string, markup string) (*Document, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	return Parse(u, http.StatusOK, "text/html; charset=utf-8", []byte(markup))
}

// byID returns the first element whose id attribute equals id exactly.
// Ids are compared as strings rather than spliced into a selector so that
// ids containing CSS metacharacters still resolve.
func (d *Document) byID(id string) *goquery.Selection {
	return d.dom.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("id")
		return v == id
	}).First()
}

// HasElement implements View.
func (d *Document) HasElement(id string) bool {
	if id == "" {
		return false
	}
	return d.byID(id).Length() > 0
}

// Attribute implements View.
func (d *Document) Attribute(id, name string) (string, error) {
	sel := d.byID(id)
	if id == "" || sel.Length() == 0 {
		return "", fmt.Errorf("%w: id=%q", ErrElementNotFound, id)
	}
	v, _ := sel.Attr(name)
	return v, nil
}

// ContainsText implements View.
func (d *Document) ContainsText(substring string) bool {
	return strings.Contains(d.source, substring)
}

// Fingerprint is a murmur3 hash of the decoded page source. Two loads of
// an unchanged page share a fingerprint unless the page embeds per-request
// values such as a fresh token.
func (d *Document) Fingerprint() uint32 {
	return d.fingerprint
}

// Title returns the trimmed <title> text, or "".
func (d *Document) Title() string {
	return strings.TrimSpace(d.dom.Find("title").First().Text())
}

// Forms returns a copy of every form on the page, in document order.
func (d *Document) Forms() []*Form {
	var forms []*Form
	d.dom.Find("form").Each(func(i int, s *goquery.Selection) {
		forms = append(forms, newForm(i, s, d.URL))
	})
	return forms
}

// HiddenInputs lists the names of all hidden inputs on the page, including
// those outside any form.
func (d *Document) HiddenInputs() []string {
	var names []string
	d.dom.Find("input").Each(func(_ int, s *goquery.Selection) {
		if !strings.EqualFold(s.AttrOr("type", ""), "hidden") {
			return
		}
		if name := s.AttrOr("name", s.AttrOr("id", "")); name != "" {
			names = append(names, name)
		}
	})
	return names
}
