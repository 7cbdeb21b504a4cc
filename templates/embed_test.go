package templates

import (
	"io/fs"
	"testing"
)

func TestBundledTemplatesPresent(t *testing.T) {
	for _, name := range []string{"output/csv.tmpl", "output/text-summary.tmpl"} {
		data, err := fs.ReadFile(FS, name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(data) == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}
