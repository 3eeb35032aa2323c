package catalog

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
)

var notesRenderer = goldmark.New()

// NotesHTML renders the disease's markdown notes to HTML. Diseases without
// notes render to "".
func (d Disease) NotesHTML() (string, error) {
	if d.Notes == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := notesRenderer.Convert([]byte(d.Notes), &buf); err != nil {
		return "", fmt.Errorf("rendering notes for %s: %w", d.Label, err)
	}
	return buf.String(), nil
}
