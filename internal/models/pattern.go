package models

import "time"

type PatternType string

const (
	PatternCoordinatedPosting PatternType = "coordinated_posting"
	PatternRapidInteraction   PatternType = "rapid_interaction"
	PatternInorganicGrowth    PatternType = "inorganic_growth"
	PatternNetworkCluster     PatternType = "network_cluster"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities so that callers can compare against a minimum.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

type PatternStatus string

const (
	StatusActive        PatternStatus = "active"
	StatusInvestigating PatternStatus = "investigating"
	StatusResolved      PatternStatus = "resolved"
	StatusFalsePositive PatternStatus = "false_positive"
)

// Valid reports whether s is an operator-assignable status.
func (s PatternStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInvestigating, StatusResolved, StatusFalsePositive:
		return true
	}
	return false
}

// SuspiciousPattern is an append-only finding. Only Status changes after detection.
type SuspiciousPattern struct {
	ID              string        `db:"id" json:"id"`
	RunID           string        `db:"run_id" json:"runId"`
	PatternType     PatternType   `db:"pattern_type" json:"patternType"`
	AgentIDs        Int64List     `db:"agent_ids" json:"agentIds"`
	Severity        Severity      `db:"severity" json:"severity"`
	ConfidenceScore int           `db:"confidence_score" json:"confidenceScore"`
	Description     string        `db:"description" json:"description"`
	Evidence        Evidence      `db:"evidence" json:"evidence"`
	DetectedAt      time.Time     `db:"detected_at" json:"detectedAt"`
	Status          PatternStatus `db:"status" json:"status"`
}
