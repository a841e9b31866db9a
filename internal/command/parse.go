package command

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrCommandSyntax is returned when a non-optional parameter cannot be
// matched, or leftover text has nowhere to go. The dispatcher replies with
// its message, or with the handler's first documentation line if empty.
var ErrCommandSyntax = errors.New("command: syntax error")

// Kind is the type tag driving how a Param is matched against text.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindString
	KindNone // always matches, consumes nothing, value is nil -- the "none" alternative of an optional union
	KindNever
	KindAlt
)

// Param is one declared, named, typed argument of a command handler.
// AmbientNames lists parameter names bound from the event instead of
// parsed from text; callers should exclude them before building a Param
// list and bind them separately.
type Param struct {
	Name string
	Kind Kind
	Alts []Param // only meaningful when Kind == KindAlt, tried in declaration order
}

// AmbientNames are parameter names bound from the event, never parsed from
// the command's text.
var AmbientNames = map[string]bool{
	"context":    true,
	"sender":     true,
	"text":       true,
	"message_id": true,
}

// Alternatives are ordered longest-form-first: Go's regexp alternation
// prefers the first matching branch rather than the longest overall match,
// so the 0x/0o/0b and hex-float forms must precede the plain decimal forms
// they otherwise share a leading digit with.
var (
	intPattern    = `[+-]?(0x[0-9a-fA-F]+|0o[0-7]+|0b[01]+|\d+)`
	floatPattern  = `[+-]?(0x[0-9a-fA-F]*\.[0-9a-fA-F]*p\d+|\d*\.\d*|\d+)`
	stringPattern = `\S+`
)

// ParseArguments matches params against text in declaration order, per
// §4.F: trim, then try to match a prefix or suffix of what remains
// according to the parameter's kind. Any leftover text after every
// parameter has matched is appended to the last string-kind parameter, if
// one was declared; otherwise it is a syntax error.
func ParseArguments(params []Param, text string) (map[string]any, error) {
	lastStringIdx := -1
	for i, p := range params {
		if p.Kind == KindString {
			lastStringIdx = i
		}
	}

	values := make(map[string]any, len(params))
	remaining := text

	for _, p := range params {
		remaining = strings.TrimSpace(remaining)

		val, rest, ok := matchParam(p, remaining)
		if !ok {
			if isOptional(p) {
				values[p.Name] = nil
				continue
			}
			return nil, fmt.Errorf("%w: parameter %q did not match", ErrCommandSyntax, p.Name)
		}
		values[p.Name] = val
		remaining = rest
	}

	remaining = strings.TrimSpace(remaining)
	if remaining != "" {
		if lastStringIdx < 0 {
			return nil, fmt.Errorf("%w: unconsumed text %q", ErrCommandSyntax, remaining)
		}
		name := params[lastStringIdx].Name
		if existing, _ := values[name].(string); existing != "" {
			values[name] = existing + " " + remaining
		} else {
			values[name] = remaining
		}
	}

	return values, nil
}

func isOptional(p Param) bool {
	if p.Kind != KindAlt {
		return false
	}
	for _, alt := range p.Alts {
		if alt.Kind == KindNone {
			return true
		}
	}
	return false
}

func matchParam(p Param, remaining string) (value any, rest string, ok bool) {
	switch p.Kind {
	case KindInt:
		m, rest, ok := matchPrefixOrSuffix(intPattern, remaining)
		if !ok {
			return nil, remaining, false
		}
		n, err := strconv.ParseInt(normalizeIntLiteral(m), 0, 64)
		if err != nil {
			return nil, remaining, false
		}
		return n, rest, true

	case KindFloat:
		m, rest, ok := matchPrefixOrSuffix(floatPattern, remaining)
		if !ok {
			return nil, remaining, false
		}
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return nil, remaining, false
		}
		return f, rest, true

	case KindString:
		m, rest, ok := matchPrefixOrSuffix(stringPattern, remaining)
		if !ok {
			return nil, remaining, false
		}
		return m, rest, true

	case KindNone:
		return nil, remaining, true

	case KindNever:
		return nil, remaining, false

	case KindAlt:
		for _, alt := range p.Alts {
			if v, rest, ok := matchParam(alt, remaining); ok {
				return v, rest, true
			}
		}
		return nil, remaining, false

	default:
		return nil, remaining, false
	}
}

// normalizeIntLiteral lower-cases 0X/0O/0B prefixes so strconv.ParseInt's
// base-0 auto-detection recognises them.
func normalizeIntLiteral(s string) string {
	if len(s) < 2 {
		return s
	}
	sign := ""
	body := s
	if s[0] == '+' || s[0] == '-' {
		sign, body = s[:1], s[1:]
	}
	if len(body) > 1 && body[0] == '0' && (body[1] == 'X' || body[1] == 'O' || body[1] == 'B') {
		body = "0" + strings.ToLower(body[1:2]) + body[2:]
	}
	return sign + body
}

func matchPrefixOrSuffix(pattern, text string) (match, rest string, ok bool) {
	prefixRe := regexp.MustCompile(`^(?:` + pattern + `)`)
	if loc := prefixRe.FindStringIndex(text); loc != nil {
		return text[loc[0]:loc[1]], text[loc[1]:], true
	}

	suffixRe := regexp.MustCompile(`(?:` + pattern + `)$`)
	if loc := suffixRe.FindStringIndex(text); loc != nil {
		return text[loc[0]:loc[1]], text[:loc[0]], true
	}

	return "", text, false
}
