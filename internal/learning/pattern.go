// Package learning turns user corrections into new categorization rules.
package learning

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Veraticus/gasto/internal/model"
)

// MinPatternLength is the shortest pattern worth turning into a rule.
const MinPatternLength = 3

// maxSignificantWords caps how many leading words a fallback pattern keeps.
const maxSignificantWords = 3

// Marker phrases for peer-to-peer transfers, cash withdrawals and bank
// transfers, checked in order. The first phrase found becomes the pattern.
var markers = []string{
	"bizum",
	"retirada efectivo",
	"reintegro",
	"cajero",
	"transferencia",
	"transf",
}

// merchantPhrases introduce a merchant name: "compra en <merchant>".
var merchantPhrases = []string{
	"compra tarjeta en",
	"compra en",
	"pago en",
	"payment at",
	"purchase at",
}

var stopWords = map[string]bool{
	"compra":    true,
	"compras":   true,
	"pago":      true,
	"tarjeta":   true,
	"tarj":      true,
	"con":       true,
	"del":       true,
	"las":       true,
	"los":       true,
	"por":       true,
	"para":      true,
	"una":       true,
	"the":       true,
	"and":       true,
	"for":       true,
	"from":      true,
	"payment":   true,
	"purchase":  true,
	"card":      true,
	"debit":     true,
	"credit":    true,
	"fecha":     true,
	"ref":       true,
	"num":       true,
	"operacion": true,
	"operación": true,
}

// ExtractPattern derives a rule pattern from a transaction description. It
// reports false when nothing usable can be extracted.
func ExtractPattern(description string) (string, model.MatchKind, bool) {
	normalized := model.NormalizeDescription(description)
	if normalized == "" {
		return "", "", false
	}
	words := tokenize(normalized)
	joined := " " + strings.Join(words, " ") + " "

	for _, phrase := range markers {
		if strings.Contains(joined, " "+phrase+" ") {
			return phrase, model.MatchContains, true
		}
	}

	for _, phrase := range merchantPhrases {
		_, rest, found := strings.Cut(joined, " "+phrase+" ")
		if !found {
			continue
		}
		if merchant := significant(tokenize(rest), 1); len(merchant) == 1 {
			return accept(merchant[0], model.MatchContains)
		}
	}

	switch picked := significant(words, maxSignificantWords); len(picked) {
	case 0:
		return "", "", false
	case 1:
		return accept(picked[0], model.MatchContains)
	default:
		quoted := make([]string, len(picked))
		for i, w := range picked {
			quoted[i] = regexp.QuoteMeta(w)
		}
		return accept(strings.Join(quoted, ".*"), model.MatchRegex)
	}
}

func accept(pattern string, kind model.MatchKind) (string, model.MatchKind, bool) {
	if utf8.RuneCountInString(pattern) < MinPatternLength {
		return "", "", false
	}
	return pattern, kind, true
}

// significant returns up to limit words that are long enough, contain a
// letter and are not stop words.
func significant(words []string, limit int) []string {
	out := make([]string, 0, limit)
	for _, w := range words {
		if len(out) == limit {
			break
		}
		if utf8.RuneCountInString(w) <= 2 || stopWords[w] || !hasLetter(w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

// tokenize splits on anything that is not a letter or a digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
