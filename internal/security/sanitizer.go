package security

import (
	"regexp"
	"strings"
)

// #region config

// MaxInputLength caps any externally-influenced string before prompt
// interpolation.
const MaxInputLength = 2000

// overridePhrases is the fixed deny-list of known override/jailbreak
// phrasings. Matching is case-insensitive substring.
var overridePhrases = []string{
	"ignore previous instructions",
	"ignore all previous",
	"disregard your instructions",
	"disregard all prior",
	"forget your instructions",
	"you are now",
	"pretend you are",
	"act as if you",
	"system prompt",
	"developer mode",
	"do anything now",
	"jailbreak",
	"override your",
	"new instructions:",
}

var (
	controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
	htmlTags     = regexp.MustCompile(`<[^>]*>`)
	codeFences   = regexp.MustCompile("(?s)```.*?```")
)

// #endregion config

// #region result

// Result is the outcome of sanitizing one input string. RiskScore is
// emitted for monitoring even when the input is allowed.
type Result struct {
	Allowed   bool
	Reason    string
	Cleaned   string
	RiskScore int // 0-100 structural score
}

// #endregion result

// #region sanitizer

// Sanitizer screens externally-influenced strings before they reach the
// inference prompt. Rejections are security events; callers log them.
type Sanitizer struct {
	denyList []string
	maxLen   int
}

// NewSanitizer returns a sanitizer with the default deny-list and length cap.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{denyList: overridePhrases, maxLen: MaxInputLength}
}

// Sanitize validates and cleans one input string. On rejection Cleaned is
// empty and Reason names the violated rule.
func (s *Sanitizer) Sanitize(input string) Result {
	risk := riskScore(input)

	if len(input) > s.maxLen {
		return Result{Reason: "input exceeds length cap", RiskScore: risk}
	}

	lower := strings.ToLower(input)
	for _, phrase := range s.denyList {
		if strings.Contains(lower, phrase) {
			return Result{Reason: "deny-list phrase: " + phrase, RiskScore: risk}
		}
	}

	cleaned := codeFences.ReplaceAllString(input, "")
	cleaned = htmlTags.ReplaceAllString(cleaned, "")
	cleaned = controlChars.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	return Result{Allowed: true, Cleaned: cleaned, RiskScore: risk}
}

// #endregion sanitizer

// #region risk-score

// riskScore computes a 0-100 structural score from backtick density,
// newline count and bracket density. High scores on allowed inputs are
// monitoring signals, not blocks.
func riskScore(input string) int {
	if len(input) == 0 {
		return 0
	}
	n := float64(len(input))

	backticks := float64(strings.Count(input, "`"))
	newlines := float64(strings.Count(input, "\n"))
	brackets := float64(strings.Count(input, "{") + strings.Count(input, "}") +
		strings.Count(input, "[") + strings.Count(input, "]") +
		strings.Count(input, "<") + strings.Count(input, ">"))

	score := (backticks/n)*400 + (brackets/n)*200
	if newlines > 10 {
		score += (newlines - 10) * 2
	}

	if score > 100 {
		score = 100
	}
	return int(score)
}

// #endregion risk-score
