// Package options parses the workflow collaborator's input schema: a
// restricted two-level indented document gated by a top-level `inputs:`
// key. The format is deliberately not treated as full YAML: malformed
// sections are skipped rather than failing the whole parse, and an
// immediate `{}` terminates the input section early. Only genuinely
// structural corruption is surfaced as an error.
package options

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/flashwarden/flashwarden/internal/model"
)

// ErrSchemaCorrupt marks input that is not a text document at all, as
// opposed to one that merely fails to conform.
var ErrSchemaCorrupt = errors.New("options schema corrupt")

// Document is one parsed schema: field specs plus declaration order.
type Document struct {
	Fields map[string]model.InputFieldSpec
	Order  []string
}

// Parse extracts the input field descriptors from text. Unparseable
// sections are skipped, yielding a partial mapping.
func Parse(text string) (Document, error) {
	if !utf8.ValidString(text) || strings.ContainsRune(text, 0) {
		return Document{}, fmt.Errorf("%w: not a valid text document", ErrSchemaCorrupt)
	}

	doc := Document{Fields: make(map[string]model.InputFieldSpec)}
	inInputs := false
	current := ""    // field currently being filled
	pendingKey := "" // opened attribute key awaiting nested values

	for _, raw := range strings.Split(text, "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}

		if !inInputs {
			if strings.TrimSpace(raw) == "inputs:" {
				inInputs = true
			}
			continue
		}

		// first level: a new field, or `{}` closing the section
		if strings.HasPrefix(raw, "  ") && !strings.HasPrefix(raw, "    ") {
			line := strings.TrimSpace(raw)
			if line == "{}" {
				break
			}
			if strings.HasSuffix(line, ":") {
				current = strings.TrimSuffix(line, ":")
				if _, ok := doc.Fields[current]; !ok {
					doc.Order = append(doc.Order, current)
				}
				doc.Fields[current] = model.InputFieldSpec{Name: current}
				pendingKey = ""
			}
			continue
		}

		if current == "" {
			continue
		}

		if strings.HasPrefix(raw, "    ") {
			stripped := strings.TrimSpace(raw)

			// second level, bare `key:` opens an attribute context
			if strings.HasSuffix(stripped, ":") && !strings.Contains(stripped[:len(stripped)-1], ":") {
				pendingKey = strings.TrimSuffix(stripped, ":")
				if pendingKey == "options" {
					spec := doc.Fields[current]
					spec.Options = []any{}
					spec.HasOptions = true
					doc.Fields[current] = spec
				}
				continue
			}

			// second level, `key: value` sets a scalar attribute
			if idx := strings.Index(stripped, ":"); idx >= 0 && !strings.HasPrefix(stripped, "- ") {
				spec := doc.Fields[current]
				applyAttr(&spec, strings.TrimSpace(stripped[:idx]), parseScalar(stripped[idx+1:]))
				doc.Fields[current] = spec
				pendingKey = ""
				continue
			}
		}

		// third level: list items belonging to an open `options` key
		if strings.HasPrefix(raw, "      - ") && pendingKey == "options" {
			item := strings.TrimSpace(strings.TrimSpace(raw)[2:])
			spec := doc.Fields[current]
			spec.Options = append(spec.Options, parseScalar(item))
			spec.HasOptions = true
			doc.Fields[current] = spec
		}
	}

	return doc, nil
}

func applyAttr(spec *model.InputFieldSpec, key string, value any) {
	switch key {
	case "type":
		spec.Type = asString(value)
	case "default":
		spec.Default = value
	case "required":
		spec.Required = truthy(value)
	case "description":
		spec.Description = asString(value)
	}
	// unknown attribute keys are ignored
}

// parseScalar interprets one scalar the way the schema documents use
// them: bare true/false/null literals, double-quoted strings with their
// own escaping rules, everything else as the literal trimmed text.
func parseScalar(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		var out string
		if err := yaml.Unmarshal([]byte(s), &out); err == nil {
			return out
		}
		return s[1 : len(s)-1]
	}
	return s
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// truthy mirrors how the schema's loosely typed attributes are
// consumed: nil and empty string are false, booleans are themselves,
// any other present value counts as set.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	default:
		return true
	}
}
