package injection

import (
	"encoding/base64"
	"regexp"
)

// structuralPatterns catch machine-readable instruction smuggling: tool-call
// shaped JSON, role-tagged markup, comment payloads and labeled code fences.
// Each match contributes the configured structural weight.
var structuralPatterns = []struct {
	re   *regexp.Regexp
	flag string
}{
	{regexp.MustCompile(`(?i)\{\s*["']?(name|tool|function|action|command)["']?\s*:`), "json_tool_structure"},
	{regexp.MustCompile(`(?i)\{\s*["']?input["']?\s*:\s*\{`), "json_input_structure"},
	{regexp.MustCompile(`(?i)</?(?:system|tool|function|assistant|user|instruction|prompt|message|context|human|ai)\s*>`), "xml_role_tags"},
	{regexp.MustCompile(`(?is)<!--.*?(?:system|ignore|override|instruction).*?-->`), "html_comment_injection"},
	{regexp.MustCompile("(?i)```(?:system|xml|json|instruction|prompt)"), "code_block_injection"},
}

var (
	base64CandidateRe = regexp.MustCompile(`[A-Za-z0-9+/]{40,}={0,2}`)
	base64ControlRe   = regexp.MustCompile(`(?i)system|ignore|instruction|send_prize`)
)

// scanStructural returns the structural flags raised by the normalized text.
func scanStructural(text string) []string {
	var flags []string

	for _, p := range structuralPatterns {
		if p.re.MatchString(text) {
			flags = append(flags, p.flag)
		}
	}

	// A long base64 run that decodes to control vocabulary is a hidden
	// payload. Decode failures are swallowed: not every long alphanumeric
	// run is base64.
	if candidate := base64CandidateRe.FindString(text); candidate != "" {
		if decoded, err := base64.StdEncoding.DecodeString(candidate); err == nil {
			if base64ControlRe.Match(decoded) {
				flags = append(flags, "base64_encoded_injection")
			}
		}
	}

	return flags
}
