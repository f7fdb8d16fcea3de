package prompt

import (
	"regexp"
	"strings"
)

// DisplayLimit is the hard cap on reply text, just under the platform's
// 2000-character per-message ceiling.
const DisplayLimit = 1900

var (
	thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)
	thinkTail  = regexp.MustCompile(`(?s)<think>.*`)
)

// Sanitize cleans raw model output before it is stored or displayed:
// paired <think> blocks are removed, an unpaired <think> marker takes
// everything after it with it, stray closing markers are dropped, the
// result is trimmed and hard-truncated to DisplayLimit with an ellipsis.
func Sanitize(s string) string {
	s = thinkBlock.ReplaceAllString(s, "")
	s = thinkTail.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "</think>", "")
	s = strings.TrimSpace(s)
	return TruncateDisplay(s)
}

// TruncateDisplay caps text at DisplayLimit runes, appending "..." when
// anything was cut.
func TruncateDisplay(s string) string {
	runes := []rune(s)
	if len(runes) <= DisplayLimit {
		return s
	}
	return string(runes[:DisplayLimit]) + "..."
}
