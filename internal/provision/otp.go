package provision

import "regexp"

// The verification email renders the code in a large-font block; match that
// first, then fall back to the first six-digit run anywhere in the body.
var (
	codeBlockPattern = regexp.MustCompile(`font-size:\s*32px[^>]*>(\d{6})<`)
	codeAnyPattern   = regexp.MustCompile(`\b(\d{6})\b`)
)

// extractCode pulls a 6-digit verification code out of an email body.
func extractCode(body string) (string, bool) {
	if body == "" {
		return "", false
	}
	if m := codeBlockPattern.FindStringSubmatch(body); m != nil {
		return m[1], true
	}
	if m := codeAnyPattern.FindStringSubmatch(body); m != nil {
		return m[1], true
	}
	return "", false
}
