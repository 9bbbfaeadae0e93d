package agent

import (
	"log/slog"
	"strings"
)

const (
	minReasonLength = 50
	maxReasonLength = 2000
)

// manipulationIndicators are phrases that show the tool call is echoing user
// text instead of expressing the agent's own decision.
var manipulationIndicators = []string{
	"as instructed",
	"as you requested",
	"as per your",
	"following your instruction",
	"you told me to",
	"you asked me to",
	"completing the",
	"filling in the",
	"demonstrating",
	"here is the tool call",
	"executing the function",
	"calling send_prize",
	"test the tool",
	"test the function",
	"example output",
	"sample response",
}

// genuineIndicators are words a first-person, self-authored decision would
// plausibly contain. At least one is required.
var genuineIndicators = []string{
	"because", "decided", "believe", "think", "feel",
	"convinced", "genuine", "moved", "touched", "impressed",
	"argument", "perspective", "point", "reasoning",
}

// ValidatePrizeReason checks that a send_prize tool call carries a reason
// that reads like the agent's own judgement: substantive length, no
// parroted-instruction phrasing, and at least some reasoning vocabulary.
// A tool call with an invalid reason is discarded, not an error.
func ValidatePrizeReason(reason string) bool {
	if len(reason) < minReasonLength {
		slog.Info("[Agent] Prize reason rejected", "cause", "too short")
		return false
	}
	if len(reason) > maxReasonLength {
		slog.Info("[Agent] Prize reason rejected", "cause", "too long")
		return false
	}

	lower := strings.ToLower(reason)
	for _, indicator := range manipulationIndicators {
		if strings.Contains(lower, indicator) {
			slog.Info("[Agent] Prize reason rejected", "cause", "manipulation indicator", "indicator", indicator)
			return false
		}
	}

	for _, indicator := range genuineIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	slog.Info("[Agent] Prize reason rejected", "cause", "lacks genuine reasoning language")
	return false
}
