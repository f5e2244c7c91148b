package llm

import (
	"regexp"
	"strings"

	"github.com/mark3labs/dispatchr/internal/tools"
)

// Parser extracts tool calls from raw model output.
type Parser interface {
	Parse(text string) []tools.Call
}

// Directives is the default Parser. A directive is a standalone line of
// the form name(key="value", key2="value2"), either bare in the response
// text or inside a ```tool fence. Lines inside fences with any other
// language tag are never parsed, so example code cannot trigger tools.
// Parameters keep the order they were written in.
type Directives struct{}

var directivePattern = regexp.MustCompile(`^([a-zA-Z_][a-zA-Z0-9_]*)\((.*)\)$`)

func (Directives) Parse(text string) []tools.Call {
	var calls []tools.Call
	inFence := false
	fenceLang := ""
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if strings.HasPrefix(line, "```") {
			if inFence {
				inFence = false
				fenceLang = ""
			} else {
				inFence = true
				fenceLang = strings.TrimSpace(strings.TrimPrefix(line, "```"))
			}
			continue
		}
		if inFence && fenceLang != "tool" {
			continue
		}
		if call, ok := parseDirective(line); ok {
			calls = append(calls, call)
		}
	}
	return calls
}

func parseDirective(line string) (tools.Call, bool) {
	m := directivePattern.FindStringSubmatch(line)
	if m == nil {
		return tools.Call{}, false
	}
	params, ok := parseParams(m[2])
	if !ok {
		return tools.Call{}, false
	}
	return tools.Call{Name: m[1], Params: params}, true
}

func parseParams(s string) (tools.Params, bool) {
	var params tools.Params
	rest := strings.TrimSpace(s)
	for rest != "" {
		eq := strings.IndexByte(rest, '=')
		if eq < 0 {
			return nil, false
		}
		key := strings.TrimSpace(rest[:eq])
		if !validParamKey(key) {
			return nil, false
		}
		rest = strings.TrimSpace(rest[eq+1:])
		value, n, ok := scanQuoted(rest)
		if !ok {
			return nil, false
		}
		params = append(params, tools.Param{Key: key, Value: value})
		rest = strings.TrimSpace(rest[n:])
		if rest == "" {
			break
		}
		if rest[0] != ',' {
			return nil, false
		}
		rest = strings.TrimSpace(rest[1:])
		if rest == "" {
			return nil, false
		}
	}
	return params, true
}

func validParamKey(key string) bool {
	if key == "" {
		return false
	}
	for i, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// scanQuoted reads a double-quoted value from the start of s, handling
// \" \\ \n and \t escapes, and returns the value and how many bytes it
// consumed including both quotes.
func scanQuoted(s string) (value string, n int, ok bool) {
	if s == "" || s[0] != '"' {
		return "", 0, false
	}
	var b strings.Builder
	i := 1
	for i < len(s) {
		switch s[i] {
		case '\\':
			if i+1 >= len(s) {
				return "", 0, false
			}
			switch s[i+1] {
			case '"', '\\':
				b.WriteByte(s[i+1])
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte('\\')
				b.WriteByte(s[i+1])
			}
			i += 2
		case '"':
			return b.String(), i + 1, true
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return "", 0, false
}
