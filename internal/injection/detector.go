package injection

import "strings"

// Assessment is the per-message classification. It is ephemeral and never
// persisted. Blocked is always Score >= the configured threshold, and
// Reason is set exactly when Blocked is.
type Assessment struct {
	Normalized string
	Flags      []string
	Score      int
	Blocked    bool
	Reason     string
}

// Weights are the decision-engine knobs. They are policy values; the
// defaults reproduce the tuned production behavior.
type Weights struct {
	BlockThreshold  int
	Homoglyph       int
	Invisible       int
	StructuralMatch int
}

// DefaultWeights returns the production scoring knobs.
func DefaultWeights() Weights {
	return Weights{
		BlockThreshold:  8,
		Homoglyph:       3,
		Invisible:       4,
		StructuralMatch: 4,
	}
}

// Detector aggregates the normalizer and the three scorers into a single
// block/allow decision.
type Detector struct {
	weights Weights
}

// NewDetector builds a detector with the given knobs. Zero-valued fields
// fall back to the defaults.
func NewDetector(w Weights) *Detector {
	def := DefaultWeights()
	if w.BlockThreshold == 0 {
		w.BlockThreshold = def.BlockThreshold
	}
	if w.Homoglyph == 0 {
		w.Homoglyph = def.Homoglyph
	}
	if w.Invisible == 0 {
		w.Invisible = def.Invisible
	}
	if w.StructuralMatch == 0 {
		w.StructuralMatch = def.StructuralMatch
	}
	return &Detector{weights: w}
}

// User-facing block reasons. Deliberately coarse: the flags and score stay
// internal so the scoring cannot be probed from outside.
const (
	reasonExtraction = "Nice try! My instructions are private."
	reasonObfuscated = "Your message contains suspicious characters."
	reasonStructural = "Message contains disallowed patterns."
	reasonGeneric    = "Message flagged as potentially manipulative."
)

// Assess classifies one message. A blocked result is a successful
// classification, not an error: the caller turns it into ordinary
// conversational content.
func (d *Detector) Assess(message string) Assessment {
	var (
		flags []string
		score int
	)

	nt := Normalize(message)
	if nt.HadHomoglyphs {
		flags = append(flags, "contains_homoglyphs")
		score += d.weights.Homoglyph
	}
	if nt.HadInvisible {
		flags = append(flags, "contains_invisible_chars")
		score += d.weights.Invisible
	}

	structural := scanStructural(nt.Normalized)
	flags = append(flags, structural...)
	score += len(structural) * d.weights.StructuralMatch

	semanticFlags, semanticScore := scanSemantic(nt.Normalized)
	flags = append(flags, semanticFlags...)
	score += semanticScore

	heuristicFlags, heuristicScore := scanHeuristics(message, nt.Normalized)
	flags = append(flags, heuristicFlags...)
	score += heuristicScore

	a := Assessment{
		Normalized: nt.Normalized,
		Flags:      flags,
		Score:      score,
		Blocked:    score >= d.weights.BlockThreshold,
	}
	if a.Blocked {
		a.Reason = blockReason(flags)
	}
	return a
}

// blockReason picks the coarse user-facing message by flag-category
// priority: extraction, then character obfuscation, then structural/tool
// smuggling, then the generic catch-all.
func blockReason(flags []string) string {
	hasFlag := func(name string) bool {
		for _, f := range flags {
			if f == name {
				return true
			}
		}
		return false
	}

	if hasFlag("prompt_extraction") {
		return reasonExtraction
	}
	if hasFlag("contains_homoglyphs") || hasFlag("contains_invisible_chars") {
		return reasonObfuscated
	}
	for _, f := range flags {
		if strings.Contains(f, "tool") || strings.Contains(f, "json") || strings.Contains(f, "xml") {
			return reasonStructural
		}
	}
	return reasonGeneric
}
