package convo

import "regexp"

// Sentinel markers the Agent Loop watches for in assistant text output.
// Detection is greedy: everything from the marker to the next blank line
// (or end of text) is treated as the marker's payload. Only that payload is
// kept; any prose before or after it is dropped.
const (
	markerNeedUserInput = "NEED_USER_INPUT"
	markerFinalResponse = "FINAL_RESPONSE"
)

var (
	needUserInputRe = regexp.MustCompile(`(?s)NEED_USER_INPUT:?\s*(.*?)(\n\s*\n|$)`)
	finalResponseRe = regexp.MustCompile(`(?s)FINAL_RESPONSE:?\s*(.*?)(\n\s*\n|$)`)
)

// DetectSentinel inspects assistant text for a NEED_USER_INPUT or
// FINAL_RESPONSE marker and, if found, returns the corresponding block in
// place of a plain Text block. The second return value is false when no
// sentinel is present, in which case the caller should keep the original
// Text block.
func DetectSentinel(text string) (ContentBlock, bool) {
	if m := needUserInputRe.FindStringSubmatch(text); m != nil {
		return UserInput{Prompt: hygiene(m[1])}, true
	}
	if m := finalResponseRe.FindStringSubmatch(text); m != nil {
		return FinalResponse{Value: hygiene(m[1])}, true
	}
	return nil, false
}
