package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Placeholder is the only substitution point recognized in prompt templates.
const Placeholder = "{content}"

// ErrPlaceholder is returned when a template does not contain exactly one
// content placeholder.
var ErrPlaceholder = errors.New("template must contain exactly one " + Placeholder + " placeholder")

// Template is a prompt with a single content slot. All other braces are
// literal text, so templates can embed JSON examples verbatim.
type Template struct {
	before string
	after  string
}

// NewTemplate parses text, requiring exactly one placeholder.
func NewTemplate(text string) (Template, error) {
	if n := strings.Count(text, Placeholder); n != 1 {
		return Template{}, fmt.Errorf("%w (found %d)", ErrPlaceholder, n)
	}
	before, after, _ := strings.Cut(text, Placeholder)
	return Template{before: before, after: after}, nil
}

// MustTemplate is like NewTemplate but panics on error. Use for package-level
// constants only.
func MustTemplate(text string) Template {
	t, err := NewTemplate(text)
	if err != nil {
		panic(err)
	}
	return t
}

// Render substitutes content into the slot. Braces inside content or the
// template are never interpreted.
func (t Template) Render(content string) string {
	var b strings.Builder
	b.Grow(len(t.before) + len(content) + len(t.after))
	b.WriteString(t.before)
	b.WriteString(content)
	b.WriteString(t.after)
	return b.String()
}

// String returns the raw template text.
func (t Template) String() string {
	return t.before + Placeholder + t.after
}
