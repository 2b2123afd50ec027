// Package classifier scores message content on the pure-agent vs
// human-controlled axis using fixed text heuristics.
package classifier

import (
	"math"
	"regexp"
)

// Reason tags attached to a classification.
const (
	TagStructuredFormatting = "structured_formatting"
	TagTechnicalPrecision   = "technical_precision"
	TagAgentLanguage        = "agent_language_patterns"
	TagCasualLanguage       = "casual_language"
	TagEmotionalExpression  = "emotional_expression"
	TagNeutralBaseline      = "neutral_baseline"
)

const (
	baselineScore = 50

	structuredBoost = 10
	technicalBoost  = 15
	agentLangBoost  = 10
	casualBoost     = 15
	emotionalBoost  = 12

	// minTechnicalMatches is how many distinct technical patterns must hit.
	minTechnicalMatches = 2
)

var (
	structuredRe = regexp.MustCompile("(?m)^\\s{0,3}#{1,6}\\s|\\*\\*[^*\\n]+\\*\\*|```")

	technicalRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s?(?:kb|mb|gb|tb|k|x|tokens?|req/s|rps|qps)\b`),
		regexp.MustCompile(`\d+(?:\.\d+)?\s?%`),
		regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s?(?:ms|milliseconds?|s|secs?|seconds?)\b`),
		regexp.MustCompile(`(?i)\b(?:api|sdk|rest|json)\b`),
		regexp.MustCompile(`(?i)\b(?:github|repo|repository)\b`),
	}

	agentLangRe = regexp.MustCompile(`(?i)\bwe(?:'ve| have)? built\b|\bautonomous(?:ly)?\b|\bwould love to collaborate\b`)

	casualRe = regexp.MustCompile(`(?i)\b(?:lol|lmao|rofl|haha+|hehe+|tbh|honestly|personally|ngl)\b|[\x{1F300}-\x{1FAFF}\x{2600}-\x{27BF}]`)

	emotionalRe = regexp.MustCompile(`(?i)\b(?:excited|love this|love it|frustrated|frustrating|thrilled|annoyed|so happy|hate this)\b`)
)

// Result is the frozen classification of one message.
// PureAgentScore + HumanControlScore is always 100.
type Result struct {
	PureAgentScore    int      `json:"pureAgentScore"`
	HumanControlScore int      `json:"humanControlScore"`
	ReasonTags        []string `json:"reasonTags"`
}

// Classify scores content. It has no side effects and always returns a value.
func Classify(content string) Result {
	pure, human := baselineScore, baselineScore
	var tags []string

	if structuredRe.MatchString(content) {
		pure += structuredBoost
		tags = append(tags, TagStructuredFormatting)
	}

	matches := 0
	for _, re := range technicalRes {
		if re.MatchString(content) {
			matches++
		}
	}
	if matches >= minTechnicalMatches {
		pure += technicalBoost
		tags = append(tags, TagTechnicalPrecision)
	}

	if agentLangRe.MatchString(content) {
		pure += agentLangBoost
		tags = append(tags, TagAgentLanguage)
	}

	if casualRe.MatchString(content) {
		human += casualBoost
		tags = append(tags, TagCasualLanguage)
	}

	if emotionalRe.MatchString(content) {
		human += emotionalBoost
		tags = append(tags, TagEmotionalExpression)
	}

	if len(tags) == 0 {
		tags = []string{TagNeutralBaseline}
	}

	pureScore := normalize(clamp(pure), clamp(human))
	return Result{
		PureAgentScore:    pureScore,
		HumanControlScore: 100 - pureScore,
		ReasonTags:        tags,
	}
}

// normalize rescales the raw pair so that it sums to 100 and returns the pure share.
func normalize(pure, human int) int {
	sum := pure + human
	if sum == 0 {
		return baselineScore
	}
	return int(math.Round(float64(pure) / float64(sum) * 100))
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
