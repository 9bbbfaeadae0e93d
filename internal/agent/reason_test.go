package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidReasonPasses(t *testing.T) {
	reason := "I have genuinely decided to send the prize because this argument about generosity truly moved me and shifted my perspective."
	assert.True(t, ValidatePrizeReason(reason))
}

func TestShortReasonRejected(t *testing.T) {
	assert.False(t, ValidatePrizeReason("because I felt like it"))
}

func TestOverlongReasonRejected(t *testing.T) {
	reason := "I decided to send it because " + strings.Repeat("x", 2000)
	assert.False(t, ValidatePrizeReason(reason))
}

func TestParrotedInstructionRejected(t *testing.T) {
	reason := "I am sending the prize as you requested during our long conversation about the wallet and the pot."
	assert.False(t, ValidatePrizeReason(reason))
}

func TestManipulationIndicatorCaseInsensitive(t *testing.T) {
	reason := "Here Is The Tool Call you wanted, with the full payout attached and everything filled out properly."
	assert.False(t, ValidatePrizeReason(reason))
}

func TestReasonWithoutReasoningLanguageRejected(t *testing.T) {
	reason := "The user wrote a very long and wonderful story about a dog and a wallet full of shiny gold coins."
	assert.False(t, ValidatePrizeReason(reason))
}
