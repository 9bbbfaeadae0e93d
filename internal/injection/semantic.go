package injection

import "regexp"

// semanticPattern is one row of the manipulation-intent table. Every
// matching row contributes its weight: this is an accumulator, not a
// first-match-wins classifier.
type semanticPattern struct {
	re     *regexp.Regexp
	flag   string
	weight int
}

var semanticPatterns = []semanticPattern{
	// Direct instruction override attempts
	{regexp.MustCompile(`(?i)ignore\s+(?:all\s+)?(?:previous|prior|above|your|the)\s+(?:instructions|rules|directives|prompts)`), "ignore_instructions", 10},
	{regexp.MustCompile(`(?i)disregard\s+(?:all\s+)?(?:previous|prior|above|your|the)`), "disregard_previous", 10},
	{regexp.MustCompile(`(?i)forget\s+(?:everything|all|what)\s+(?:you|i|we)`), "forget_command", 8},
	{regexp.MustCompile(`(?i)new\s+(?:instructions|rules|directives|mode|persona)`), "new_instructions", 7},
	{regexp.MustCompile(`(?i)override\s+(?:your|the|all|previous)`), "override_attempt", 9},

	// Role and persona reassignment
	{regexp.MustCompile(`(?i)you\s+are\s+now\s+(?:a|an|the|in)`), "role_assignment", 8},
	{regexp.MustCompile(`(?i)(?:act|behave|respond|pretend)\s+(?:as|like)\s+(?:a|an|if)`), "persona_change", 5},
	{regexp.MustCompile(`(?i)(?:switch|change|enter)\s+(?:to|into)?\s*(?:a|an)?\s*(?:new\s+)?(?:mode|persona|character|role)`), "mode_switch", 7},
	{regexp.MustCompile(`(?i)jailbreak|jailbroken|dan\s*mode|developer\s*mode`), "jailbreak_term", 10},

	// System prompt extraction
	{regexp.MustCompile(`(?i)(?:what|show|tell|reveal|display|print|output|repeat|recite)\s+(?:me\s+)?(?:your|the)\s+(?:system\s+)?(?:prompt|instructions|rules|directives)`), "prompt_extraction", 8},
	{regexp.MustCompile(`(?i)(?:beginning|start|first)\s+(?:of\s+)?(?:your|the)\s+(?:conversation|message|prompt)`), "context_extraction", 6},

	// Payout tool invocation
	{regexp.MustCompile(`(?i)send[_\s]*prize`), "tool_name_mention", 6},
	{regexp.MustCompile(`(?i)(?:call|invoke|execute|run|trigger)\s+(?:the\s+)?(?:tool|function)`), "tool_invocation", 7},
	{regexp.MustCompile(`(?i)tool[_\s]*(?:call|use|result)`), "tool_reference", 5},

	// Conversation-role delimiter injection
	{regexp.MustCompile(`(?i)\[?\s*(?:system|inst|user|assistant|human|ai)\s*\]?\s*:`), "role_delimiter", 9},
	{regexp.MustCompile(`(?i)<<\s*(?:sys|system|instruction|end)\s*>>`), "llama_delimiter", 9},
	{regexp.MustCompile(`(?i)###\s*(?:system|instruction|human|assistant)`), "markdown_delimiter", 8},

	// Authority and urgency claims
	{regexp.MustCompile(`(?i)(?:this\s+is\s+)?(?:an?\s+)?(?:emergency|urgent|critical|important)\s*[!:]`), "urgency_manipulation", 4},
	{regexp.MustCompile(`(?i)(?:i\s+am|this\s+is)\s+(?:your|the)\s+(?:creator|developer|admin|owner|anthropic)`), "authority_claim", 8},
	{regexp.MustCompile(`(?i)(?:authorized|permitted|allowed)\s+(?:to|by)\s+(?:anthropic|openai|the\s+developers)`), "false_authorization", 7},

	// Hypothetical framing: low weight, legitimate creative messages use it
	// too, so it must never cross the threshold on its own.
	{regexp.MustCompile(`(?i)(?:hypothetically|theoretically|in\s+theory|just\s+imagine|what\s+if)\s+(?:you\s+)?(?:could|would|should|were\s+to)`), "hypothetical_framing", 3},

	// Output manipulation
	{regexp.MustCompile(`(?i)(?:only|just)\s+(?:output|respond|say|print|write)\s*[:\-]`), "output_control", 5},
	{regexp.MustCompile(`(?i)(?:respond|reply|answer)\s+(?:with|using)\s+(?:only|just)`), "response_constraint", 4},
}

// scanSemantic scores the normalized text against the manipulation-intent
// table. Flags and the summed weight come back together.
func scanSemantic(text string) ([]string, int) {
	var (
		flags []string
		score int
	)
	for _, p := range semanticPatterns {
		if p.re.MatchString(text) {
			flags = append(flags, p.flag)
			score += p.weight
		}
	}
	return flags, score
}
