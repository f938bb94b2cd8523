package company

import (
	"regexp"
	"strings"
)

// Marker labels the orchestrator parses out of manager output.
const (
	MarkerWorkingPlan  = "working-plan"
	MarkerNextStep     = "next-step"
	MarkerNextEmployee = "next-employee"
	MarkerSelectAgent  = "select-agent"
)

// safeTag restricts marker tags to lowercase letters and hyphens. Tags are
// interpolated into a regular expression, so anything outside this alphabet
// extracts nothing.
var safeTag = regexp.MustCompile(`^[a-z]+(-[a-z]+)*$`)

// ExtractMarker returns the substring strictly between the first pair of
// "|||tag" tokens in text, trimmed of surrounding whitespace. It returns ""
// when no matching pair exists or the tag is not in the safe alphabet.
// Pure and idempotent.
func ExtractMarker(tag, text string) string {
	if !safeTag.MatchString(tag) {
		return ""
	}
	token := "|||" + tag
	start := strings.Index(text, token)
	if start < 0 {
		return ""
	}
	rest := text[start+len(token):]
	end := strings.Index(rest, token)
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}
