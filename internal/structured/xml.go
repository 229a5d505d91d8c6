package structured

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// XMLOptions controls the XML-ish parsing path
type XMLOptions struct {
	// JSONArrayFields names leaf elements whose text is re-parsed as a JSON
	// array. A failed re-parse is reported inline as a parse_error value.
	JSONArrayFields []string
}

// DefaultXMLOptions returns the options used by ParseXML callers that do not
// need anything special
func DefaultXMLOptions() XMLOptions {
	return XMLOptions{JSONArrayFields: []string{"tasks"}}
}

type xmlNode struct {
	name     string
	text     strings.Builder
	children []*xmlNode
}

// ParseXML parses XML-ish generation output into nested maps.
//
// Leaf elements become strings (CDATA bodies are kept verbatim), elements with
// children become maps, and repeated sibling elements become slices. Text
// outside elements is ignored. The parser is non-strict: mismatched tags are
// closed automatically and a truncated document yields whatever was read
// before the break.
//
// For fields named in opts.JSONArrayFields, a failed JSON re-parse does not
// fail the call; the field value becomes
// {"parse_error": {"message": ..., "content": ...}} so the caller decides.
func ParseXML(raw string, opts XMLOptions) (map[string]interface{}, error) {
	content, _ := StripThinking(raw)
	if body, ok := extractFence(xmlFenceRegex, content); ok {
		content = body
	}

	dec := xml.NewDecoder(strings.NewReader(content))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity

	root := &xmlNode{}
	stack := []*xmlNode{root}
	var readErr error

	for {
		tok, err := dec.Token()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}

		top := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			n := &xmlNode{name: t.Name.Local}
			top.children = append(top.children, n)
			stack = append(stack, n)
		case xml.CharData:
			top.text.Write(t)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if len(root.children) == 0 {
		msg := "no XML elements found"
		if readErr != nil {
			msg = readErr.Error()
		}
		return nil, &ParseError{Raw: content, Message: msg, Err: readErr}
	}

	arrayFields := make(map[string]bool, len(opts.JSONArrayFields))
	for _, f := range opts.JSONArrayFields {
		arrayFields[f] = true
	}

	return childrenToMap(root.children, arrayFields), nil
}

func childrenToMap(children []*xmlNode, arrayFields map[string]bool) map[string]interface{} {
	out := make(map[string]interface{}, len(children))
	// repeated marks names already collected into a sibling list; a decoded
	// JSON array value is never one.
	repeated := make(map[string]bool)
	for _, c := range children {
		v := nodeValue(c, arrayFields)
		existing, ok := out[c.name]
		switch {
		case !ok:
			out[c.name] = v
		case repeated[c.name]:
			out[c.name] = append(existing.([]interface{}), v)
		default:
			out[c.name] = []interface{}{existing, v}
			repeated[c.name] = true
		}
	}
	return out
}

func nodeValue(n *xmlNode, arrayFields map[string]bool) interface{} {
	if len(n.children) > 0 {
		return childrenToMap(n.children, arrayFields)
	}

	text := strings.TrimSpace(n.text.String())
	if !arrayFields[n.name] {
		return text
	}

	var arr []interface{}
	if err := json.Unmarshal([]byte(text), &arr); err != nil {
		return map[string]interface{}{
			"parse_error": map[string]interface{}{
				"message": err.Error(),
				"content": text,
			},
		}
	}
	return arr
}

// FieldParseError reports the inline parse_error produced for a JSON array
// field, if v is one
func FieldParseError(v interface{}) (message, content string, ok bool) {
	m, isMap := v.(map[string]interface{})
	if !isMap {
		return "", "", false
	}
	pe, isMap := m["parse_error"].(map[string]interface{})
	if !isMap {
		return "", "", false
	}
	message, _ = pe["message"].(string)
	content, _ = pe["content"].(string)
	return message, content, true
}
