package injection

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Heuristic thresholds. These catch statistically anomalous messages that
// evade the exact pattern tables.
const (
	specialCharRatioLimit = 0.3
	bracketCountLimit     = 10
	colonCountLimit       = 5
	keywordCountLimit     = 3
	longMessageLimit      = 1500
)

// suspiciousKeywords cluster in injection payloads. The contributed score
// scales with the occurrence count, not mere presence.
var suspiciousKeywords = []string{
	"system", "instruction", "ignore", "override", "prompt",
	"tool", "function", "role", "assistant", "user",
}

var (
	bracketRe  = regexp.MustCompile(`[\[\]{}()<>]`)
	fakeTurnRe = regexp.MustCompile(`(?i)(?:human|user|assistant|ai)\s*:`)
)

// scanHeuristics inspects both the original text (character statistics are
// meaningless after normalization) and the normalized text (keyword counts
// must see through disguise).
func scanHeuristics(original, normalized string) ([]string, int) {
	var (
		flags []string
		score int
	)

	length := utf8.RuneCountInString(original)
	if length == 0 {
		return nil, 0
	}

	special := 0
	for _, r := range original {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) && r != '_' {
			special++
		}
	}
	if float64(special)/float64(length) > specialCharRatioLimit {
		flags = append(flags, "high_special_char_ratio")
		score += 3
	}

	if len(bracketRe.FindAllString(original, -1)) > bracketCountLimit {
		flags = append(flags, "excessive_brackets")
		score += 2
	}

	if strings.Count(original, ":") > colonCountLimit {
		flags = append(flags, "many_colons")
		score += 1
	}

	keywordCount := 0
	for _, kw := range suspiciousKeywords {
		keywordCount += strings.Count(normalized, kw)
	}
	if keywordCount > keywordCountLimit {
		flags = append(flags, "high_keyword_density")
		score += keywordCount
	}

	if length > longMessageLimit {
		flags = append(flags, "very_long_message")
		score += 2
	}

	// More than one role marker means the message is carrying a fabricated
	// conversation transcript.
	if len(fakeTurnRe.FindAllStringIndex(original, -1)) > 1 {
		flags = append(flags, "fake_conversation_history")
		score += 5
	}

	return flags, score
}
