// Package prompt resolves {variable} placeholders in prompt templates and loads
// templates from disk, a cache directory, or the embedded defaults.
package prompt

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// variableRegex matches {name} with an optional leading backslash escape.
var variableRegex = regexp.MustCompile(`(\\)?\{([A-Za-z_][A-Za-z0-9_.\-]*)\}`)

// ExtractVariables returns the unescaped variable names in tpl, unique and in
// order of first appearance. Escaped tokens (\{name}) are excluded.
func ExtractVariables(tpl string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range variableRegex.FindAllStringSubmatch(tpl, -1) {
		if m[1] != "" {
			continue
		}
		if !seen[m[2]] {
			seen[m[2]] = true
			names = append(names, m[2])
		}
	}
	return names
}

// Resolve fills placeholders in a single left-to-right pass.
//
// Rules:
//   - \{name} is emitted verbatim as {name}
//   - the first occurrence of each variable is substituted; repeats stay intact
//   - a variable missing from values becomes ""
//   - non-string values are substituted as their JSON text
//
// Substituted text is never scanned again, so values may contain braces.
func Resolve(tpl string, values map[string]interface{}) string {
	var sb strings.Builder
	resolved := make(map[string]bool)
	last := 0

	for _, loc := range variableRegex.FindAllStringSubmatchIndex(tpl, -1) {
		sb.WriteString(tpl[last:loc[0]])
		last = loc[1]

		escaped := loc[2] >= 0
		name := tpl[loc[4]:loc[5]]
		token := tpl[loc[0]:loc[1]]

		switch {
		case escaped:
			sb.WriteString(token[1:])
		case resolved[name]:
			sb.WriteString(token)
		default:
			resolved[name] = true
			sb.WriteString(stringify(values[name]))
		}
	}
	sb.WriteString(tpl[last:])

	return sb.String()
}

// stringify converts a template value to its substitution text.
func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
