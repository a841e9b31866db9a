package command

import "unicode"

// generalCategoryNames lists the Unicode general-category tables in a fixed
// order, used to classify a single rune the way Python's unicodedata.
// category does: the grouping key for tokenisation, not a linguistic
// distinction.
var generalCategoryNames = []string{
	"Cc", "Cf", "Co", "Cs",
	"Ll", "Lm", "Lo", "Lt", "Lu",
	"Mc", "Me", "Mn",
	"Nd", "Nl", "No",
	"Pc", "Pd", "Pe", "Pf", "Pi", "Po", "Ps",
	"Sc", "Sk", "Sm", "So",
	"Zl", "Zp", "Zs",
}

func generalCategory(r rune) string {
	for _, name := range generalCategoryNames {
		if table, ok := unicode.Categories[name]; ok && unicode.Is(table, r) {
			return name
		}
	}
	return "Cn" // unassigned
}

// TokenizeCommandName groups a command attempt's canonical form into tokens
// by run of identical Unicode general category, the grouping
// "! Ｆｏｏ  BÄR114514 " canonicalises to before becoming
// ["foo", "_", "bar", "114514"].
func TokenizeCommandName(text string) []string {
	if !IsCommandAttempt(text) {
		return nil
	}

	body := truncateRunes(string([]rune(text)[1:]), MaxCommandLength)
	normalized := Normalize(body)
	if normalized == "" {
		return nil
	}

	var tokens []string
	var current []rune
	var currentCategory string

	for _, r := range normalized {
		cat := generalCategory(r)
		if current != nil && cat != currentCategory {
			tokens = append(tokens, string(current))
			current = nil
		}
		current = append(current, r)
		currentCategory = cat
	}
	if current != nil {
		tokens = append(tokens, string(current))
	}

	return tokens
}
