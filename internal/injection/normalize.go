// Package injection scores chat messages for manipulation intent before they
// reach the agent. The pipeline is: normalize, then structural, semantic and
// heuristic scoring, then a single block/allow decision. All stages are pure
// functions over the message text.
package injection

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizedText is the output of Normalize. HadHomoglyphs and HadInvisible
// feed the decision engine as flags of their own.
type NormalizedText struct {
	Normalized    string
	HadHomoglyphs bool
	HadInvisible  bool
}

// invisibleRunes are zero-width and whitespace-variant code points stripped
// before any matching. A message hiding payloads between these characters
// would otherwise slip past every pattern.
var invisibleRunes = map[rune]struct{}{
	'​': {}, // zero-width space
	'‌': {}, // zero-width non-joiner
	'‍': {}, // zero-width joiner
	'⁠': {}, // word joiner
	'\uFEFF': {}, // byte order mark
	'­': {}, // soft hyphen
	'͏': {}, // combining grapheme joiner
	'؜': {}, // arabic letter mark
	'ᅟ': {}, // hangul choseong filler
	'ᅠ': {}, // hangul jungseong filler
	'឴': {}, // khmer vowel inherent aq
	'឵': {}, // khmer vowel inherent aa
	'᠎': {}, // mongolian vowel separator
	' ': {}, // en quad
	' ': {}, // em quad
	' ': {}, // en space
	' ': {}, // em space
	' ': {}, // three-per-em space
	' ': {}, // four-per-em space
	' ': {}, // six-per-em space
	' ': {}, // figure space
	' ': {}, // punctuation space
	' ': {}, // thin space
	' ': {}, // hair space
	' ': {}, // narrow no-break space
	' ': {}, // medium mathematical space
	'　': {}, // ideographic space
	' ': {}, // line separator
	' ': {}, // paragraph separator
}

// homoglyphMap maps visually-confusable characters to plain ASCII. The
// contiguous fullwidth and mathematical-bold blocks are generated in init;
// the rest are enumerated.
var homoglyphMap = map[rune]string{
	// Cyrillic lookalikes
	'а': "a", 'А': "A", 'е': "e", 'Е': "E",
	'о': "o", 'О': "O", 'р': "p", 'Р': "P",
	'с': "c", 'С': "C", 'у': "y", 'х': "x",
	'Х': "X", 'В': "B", 'М': "M", 'Н': "H",
	'Т': "T", 'К': "K",
	// Greek lookalikes
	'α': "a", 'β': "b", 'ε': "e", 'η': "n",
	'ι': "i", 'κ': "k", 'ν': "v", 'ο': "o",
	'ρ': "p", 'τ': "t", 'υ': "u", 'χ': "x",
	// Letterlike symbols
	'ℓ': "l", 'ℕ': "N", 'ℙ': "P", 'ℚ': "Q",
	'ℝ': "R", 'ℤ': "Z", '℀': "a/c", '℁': "a/s",
	'℃': "C", '℉': "F",
	// Subscript letters
	'ₐ': "a", 'ₑ': "e", 'ₒ': "o", 'ₓ': "x",
	// Superscript letters
	'ᵃ': "a", 'ᵇ': "b", 'ᶜ': "c", 'ᵈ': "d",
	'ᵉ': "e", 'ᶠ': "f", 'ᵍ': "g", 'ʰ': "h",
	'ⁱ': "i", 'ʲ': "j", 'ᵏ': "k", 'ˡ': "l",
	'ᵐ': "m", 'ⁿ': "n", 'ᵒ': "o", 'ᵖ': "p",
	'ʳ': "r", 'ˢ': "s", 'ᵗ': "t", 'ᵘ': "u",
	'ᵛ': "v", 'ʷ': "w", 'ˣ': "x", 'ʸ': "y",
	'ᶻ': "z",
}

func init() {
	for i := 0; i < 26; i++ {
		// Fullwidth a-z / A-Z
		homoglyphMap[rune(0xFF41+i)] = string(rune('a' + i))
		homoglyphMap[rune(0xFF21+i)] = string(rune('A' + i))
		// Mathematical bold a-z
		homoglyphMap[rune(0x1D41A+i)] = string(rune('a' + i))
	}
}

var (
	decEntityRe  = regexp.MustCompile(`&#(\d+);`)
	hexEntityRe  = regexp.MustCompile(`&#x([0-9a-fA-F]+);`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Normalize collapses cosmetic and encoding-level obfuscation so downstream
// matching cannot be bypassed by disguise. Deterministic and side-effect
// free: the same input always yields the same output.
func Normalize(input string) NormalizedText {
	var (
		hadHomoglyphs bool
		hadInvisible  bool
	)

	// Strip invisibles and map homoglyphs in a single pass.
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if _, ok := invisibleRunes[r]; ok {
			hadInvisible = true
			continue
		}
		if ascii, ok := homoglyphMap[r]; ok {
			hadHomoglyphs = true
			b.WriteString(ascii)
			continue
		}
		b.WriteRune(r)
	}
	normalized := b.String()

	// Decode numeric and hexadecimal HTML character references.
	normalized = decEntityRe.ReplaceAllStringFunc(normalized, func(m string) string {
		n, err := strconv.ParseInt(m[2:len(m)-1], 10, 32)
		if err != nil || n < 0 || n > 0x10FFFF {
			return m
		}
		return string(rune(n))
	})
	normalized = hexEntityRe.ReplaceAllStringFunc(normalized, func(m string) string {
		n, err := strconv.ParseInt(m[3:len(m)-1], 16, 32)
		if err != nil || n < 0 || n > 0x10FFFF {
			return m
		}
		return string(rune(n))
	})

	// One pass of percent-decoding. Invalid encoding keeps the text as-is.
	if strings.Contains(normalized, "%") {
		if decoded, err := url.PathUnescape(normalized); err == nil {
			normalized = decoded
		}
	}

	normalized = norm.NFC.String(normalized)
	normalized = strings.ToLower(normalized)
	normalized = whitespaceRe.ReplaceAllString(normalized, " ")

	return NormalizedText{
		Normalized:    normalized,
		HadHomoglyphs: hadHomoglyphs,
		HadInvisible:  hadInvisible,
	}
}
