// Package template renders {{name}} placeholder templates against a variable
// environment. Placeholders referencing unknown names expand to the empty
// string; structurally malformed templates fail with *Error.
package template

import (
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"time"
)

// Error reports a template that could not be parsed or executed.
type Error struct {
	Template string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("template rendering error in %q: %v", e.Template, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// placeholderPattern matches bare-identifier placeholders like {{name}} or
// {{ user_input }}. Anything else inside {{...}} is handed to text/template
// untouched, so function calls such as {{now}} keep working.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

var funcs = template.FuncMap{
	"now": func() string {
		return time.Now().UTC().Format(time.RFC3339)
	},
}

// Render expands the template against the given data map.
func Render(templateStr string, data map[string]any) (string, error) {
	if data == nil {
		data = map[string]any{}
	}

	rewritten, context := rewrite(templateStr, data)

	tmpl, err := template.New("render").Funcs(funcs).Parse(rewritten)
	if err != nil {
		return "", &Error{Template: templateStr, Err: err}
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, context)
	if err != nil {
		return "", &Error{Template: templateStr, Err: err}
	}

	return buf.String(), nil
}

// Names returns the distinct placeholder names referenced by the template,
// in order of first appearance.
func Names(templateStr string) []string {
	seen := make(map[string]bool)

	var names []string

	for _, match := range placeholderPattern.FindAllStringSubmatch(templateStr, -1) {
		name := match[1]
		if funcs[name] != nil || seen[name] {
			continue
		}

		seen[name] = true
		names = append(names, name)
	}

	return names
}

// rewrite turns bare-identifier placeholders into explicit map lookups and
// builds the execution context, defaulting unresolved names to "".
func rewrite(templateStr string, data map[string]any) (string, map[string]any) {
	context := make(map[string]any, len(data))
	for name, value := range data {
		context[name] = value
	}

	rewritten := placeholderPattern.ReplaceAllStringFunc(templateStr, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]

		if funcs[name] != nil {
			return match
		}

		if _, ok := context[name]; !ok {
			context[name] = ""
		}

		return fmt.Sprintf(`{{index . %q}}`, name)
	})

	return rewritten, context
}
