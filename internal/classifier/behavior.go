package classifier

// Behavior is the message-level partition used by the behavior distribution view.
type Behavior string

const (
	BehaviorPureAgent    Behavior = "pureAgent"
	BehaviorHumanControl Behavior = "humanControl"
	BehaviorMixed        Behavior = "mixed"
)

// ConfidenceThreshold is the score a side must exceed to dominate a message.
const ConfidenceThreshold = 70

// BehaviorOf assigns a scored message to exactly one partition.
func BehaviorOf(pureAgentScore, humanControlScore int) Behavior {
	switch {
	case pureAgentScore > ConfidenceThreshold:
		return BehaviorPureAgent
	case humanControlScore > ConfidenceThreshold:
		return BehaviorHumanControl
	default:
		return BehaviorMixed
	}
}
