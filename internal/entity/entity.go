// Package entity converts between the gateway's bracketed control-sequence
// message form and the control-character-delimited internal form, per the
// bidirectional transform the runtime needs to scan messages safely with
// regular expressions.
package entity

import (
	"regexp"
	"strings"
)

// The three control code points delimiting an entity in the internal form.
// None of them can appear in ordinary chat text, so a message can be
// scanned for entity runs without escaping.
const (
	EscOpen  = '\u009d'
	EscClose = '\u009c'
	Nul      = '\u0000'
)

// knownEntityKeys documents, for a short enumerated set of entity names,
// the fixed prefix order their key/value pairs are reordered into on
// decode, so plugins can match entities with a trailing-insensitive regular
// expression instead of handling arbitrary key order.
var knownEntityKeys = map[string][]string{
	"face":    {"id"},
	"image":   {"url", "type", "subType"},
	"record":  {"url", "magic"},
	"at":      {"qq"},
	"share":   {"url", "title", "content", "image"},
	"reply":   {"id", "seq"},
	"poke":    {"qq"},
	"forward": {"id"},
	"xml":     {"resid", "data"},
	"json":    {"resid", "data"},
}

var cqPattern = regexp.MustCompile(`\[CQ:(.*?)\]`)

var ampEscapes = strings.NewReplacer(
	"&#91;", "[",
	"&#93;", "]",
	"&#44;", ",",
	"&amp;", "&",
)

// Decode replaces every `[CQ:name,k=v,...]` control sequence with its
// internal control-character form, then unescapes the four `&`-entity
// references the gateway form uses to survive transport.
func Decode(s string) string {
	withEntities := cqPattern.ReplaceAllStringFunc(s, func(match string) string {
		inner := match[len("[CQ:") : len(match)-len("]")]
		parts := strings.Split(inner, ",")
		if len(parts) == 0 {
			return match
		}

		name := parts[0]
		pairs := reorderPairs(name, parts[1:])

		var b strings.Builder
		b.WriteRune(EscOpen)
		b.WriteString(name)
		for _, p := range pairs {
			b.WriteRune(Nul)
			b.WriteString(p)
		}
		b.WriteRune(EscClose)
		return b.String()
	})

	return ampEscapes.Replace(withEntities)
}

// reorderPairs moves the documented prefix of keys for a known entity name
// to the front, in their fixed order, synthesizing an empty-value pair for
// any documented key the input didn't supply — so a plugin's trailing regex
// can always match the fixed key count, optional fields included. Unmatched
// pairs (unknown keys, or an unknown entity name) keep their original
// insertion order and follow.
func reorderPairs(name string, pairs []string) []string {
	known, ok := knownEntityKeys[name]
	if !ok {
		return pairs
	}

	used := make([]bool, len(pairs))
	out := make([]string, 0, len(pairs)+len(known))

	for _, key := range known {
		found := false
		for i, p := range pairs {
			if used[i] {
				continue
			}
			if k, _, ok := strings.Cut(p, "="); ok && k == key {
				out = append(out, p)
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			out = append(out, key+"=")
		}
	}
	for i, p := range pairs {
		if !used[i] {
			out = append(out, p)
		}
	}
	return out
}

// Encode is the inverse of Decode: every ESC_OPEN...ESC_CLOSE run becomes a
// bracketed control sequence again, with NUL separators turned back into
// commas and literal commas inside values re-escaped; text outside entity
// runs has `&`, `[`, `]` escaped to their numeric-reference forms.
func Encode(s string) string {
	runes := []rune(s)
	var b strings.Builder

	i := 0
	for i < len(runes) {
		if runes[i] == EscOpen {
			j := i + 1
			for j < len(runes) && runes[j] != EscClose {
				j++
			}
			b.WriteString(encodeEntityBody(string(runes[i+1 : j])))
			if j < len(runes) {
				j++ // skip the ESC_CLOSE
			}
			i = j
			continue
		}

		switch runes[i] {
		case '&':
			b.WriteString("&amp;")
		case '[':
			b.WriteString("&#91;")
		case ']':
			b.WriteString("&#93;")
		default:
			b.WriteRune(runes[i])
		}
		i++
	}

	return b.String()
}

func encodeEntityBody(body string) string {
	parts := strings.Split(body, string(Nul))

	var b strings.Builder
	b.WriteString("[CQ:")
	if len(parts) > 0 {
		b.WriteString(parts[0])
	}
	for _, p := range parts[1:] {
		b.WriteByte(',')
		b.WriteString(strings.ReplaceAll(p, ",", "&#44;"))
	}
	b.WriteByte(']')
	return b.String()
}
