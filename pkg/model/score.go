package model

import (
	"strings"
	"unicode"
)

// Intent phrase tables for the context-aware selection. Phrases are matched
// case-insensitively as substrings of the user message.
var (
	explainPhrases = []string{
		"what is", "what are", "explain", "why", "how does", "tell me about",
		"מה זה", "הסבר", "למה", "איך",
	}
	actionPhrases = []string{
		"build", "write", "create code", "implement", "fix", "refactor",
		"generate code", "code a", "בנה", "כתוב", "צור",
	}
)

// Specialty tags consulted by the scorer.
const (
	tagGeneral = "general"
	tagSmart   = "smart"
	tagCode    = "code"
	tagHebrew  = "hebrew"
	tagFast    = "fast"
)

// SelectForMessage scores the registry against the raw user message and
// returns the winning model name. Ties (including the no-signal case) fall
// back to Select with medium complexity and quality priority.
func (r *Router) SelectForMessage(message string) string {
	lower := strings.ToLower(message)
	scores := make(map[string]float64, r.registry.Len())

	explain := containsAny(lower, explainPhrases)
	action := containsAny(lower, actionPhrases)
	hebrew := hebrewRatio(message) >= 0.3
	arithmetic := looksArithmetic(message)

	for _, cap := range r.registry.All() {
		var s float64
		if explain && (cap.HasSpecialty(tagGeneral) || cap.HasSpecialty(tagSmart)) {
			s += 2
		}
		if action && (cap.HasSpecialty(tagCode) || cap.HasSpecialty("coder")) {
			s += 2
		}
		if hebrew && cap.HasSpecialty(tagHebrew) {
			s += 3
		}
		if arithmetic && cap.HasSpecialty(tagFast) {
			s += 2
		}
		scores[cap.Name] = s
	}

	var best *Capability
	var bestScore float64
	winners := 0
	for _, cap := range r.registry.All() {
		s := scores[cap.Name]
		switch {
		case best == nil || s > bestScore:
			best, bestScore = cap, s
			winners = 1
		case s == bestScore:
			winners++
		}
	}

	if bestScore == 0 || winners > 1 {
		return r.Select(message, ComplexityMed, PriorityQuality)
	}
	return best.Name
}

// containsAny reports whether s contains any of the phrases.
func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// hebrewRatio returns the fraction of letters that fall in the Hebrew block.
func hebrewRatio(s string) float64 {
	var letters, hebrew int
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(unicode.Hebrew, r) {
			hebrew++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(hebrew) / float64(letters)
}

// looksArithmetic reports whether the message is a very short query made of
// digits and operators, e.g. "2+2" or "17 * 3 = ?".
func looksArithmetic(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || len(trimmed) > 24 {
		return false
	}
	var digits int
	for _, r := range trimmed {
		switch {
		case unicode.IsDigit(r):
			digits++
		case strings.ContainsRune("+-*/%=?.,() ", r):
		default:
			return false
		}
	}
	return digits > 0
}

// tokenize lowercases and splits a hint on non-letter/digit boundaries.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
