// Package prompt substitutes {ColumnName} placeholders in a message prompt
// against a contact record's fields.
package prompt

import (
	"fmt"
	"strings"

	"github.com/outboundkit/mailmerge/internal/contacts"
)

// PlaceholderError reports a {Field} token with no matching record field.
// Mismatches surface immediately instead of producing corrupted output.
type PlaceholderError struct {
	Field string
}

func (e *PlaceholderError) Error() string {
	return fmt.Sprintf("placeholder {%s} does not match any column", e.Field)
}

// Render substitutes each {Field} in template with the matching record
// field in a single left-to-right scan. Substituted values are never
// re-scanned, so rendering is not recursive. A placeholder whose inner text
// matches no field fails with *PlaceholderError; a brace with no partner,
// opening or closing, is also an error rather than passing through.
func Render(template string, rec contacts.Record) (string, error) {
	var b strings.Builder
	b.Grow(len(template))

	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		stray := strings.IndexByte(rest, '}')
		if stray >= 0 && (open < 0 || stray < open) {
			return "", fmt.Errorf("unmatched %q in template", "}")
		}
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		b.WriteString(rest[:open])
		rest = rest[open+1:]

		closing := strings.IndexByte(rest, '}')
		if closing < 0 {
			return "", fmt.Errorf("unterminated placeholder %q", "{"+rest)
		}
		field := rest[:closing]
		rest = rest[closing+1:]

		v, ok := rec.Placeholder(field)
		if !ok {
			return "", &PlaceholderError{Field: field}
		}
		b.WriteString(v)
	}
}
