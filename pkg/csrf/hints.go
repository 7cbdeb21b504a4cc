package csrf

import (
	"fmt"
	"strings"

	"github.com/waftester/csrfprobe/pkg/document"
)

// commonTokenNames are field names frameworks use for anti-CSRF tokens.
var commonTokenNames = []string{
	"csrf_token",
	"_token",
	"authenticity_token",
	"csrfmiddlewaretoken",
	"__RequestVerificationToken",
	"_csrf",
	"csrf",
	"xsrf",
	"nonce",
}

func looksLikeToken(name string) bool {
	lower := strings.ToLower(name)
	for _, n := range commonTokenNames {
		if lower == strings.ToLower(n) {
			return true
		}
	}
	return strings.Contains(lower, "csrf") || strings.Contains(lower, "xsrf")
}

// tokenHints names hidden inputs on the page that look like anti-CSRF
// tokens, for when the configured token id was not found.
func tokenHints(doc *document.Document) string {
	var found []string
	for _, name := range doc.HiddenInputs() {
		if looksLikeToken(name) {
			found = append(found, name)
		}
	}
	if len(found) == 0 {
		return ""
	}
	return fmt.Sprintf("hidden inputs that look like tokens: %s (check the token field id)", strings.Join(found, ", "))
}
