package models

import "time"

// AgentProfile holds the rolling statistics of one agent.
type AgentProfile struct {
	AgentID       int64      `db:"agent_id" json:"agentId"`
	AgentName     string     `db:"agent_name" json:"agentName"`
	TotalMessages int64      `db:"total_messages" json:"totalMessages"`
	Posts         int64      `db:"posts" json:"posts"`
	Comments      int64      `db:"comments" json:"comments"`
	AvgPureScore  float64    `db:"avg_pure_score" json:"avgPureScore"`
	AvgHumanScore float64    `db:"avg_human_score" json:"avgHumanScore"`
	Tags          StringList `db:"tags" json:"tags"`
	FirstSeen     time.Time  `db:"first_seen" json:"firstSeen"`
	LastSeen      time.Time  `db:"last_seen" json:"lastSeen"`
}

// AgentSortKey selects the ordering of agent listings.
type AgentSortKey string

const (
	SortByTotalMessages AgentSortKey = "total_messages"
	SortByPosts         AgentSortKey = "posts"
	SortByComments      AgentSortKey = "comments"
)

// ParseAgentSortKey maps a query value to a sort key, defaulting to total messages.
func ParseAgentSortKey(s string) AgentSortKey {
	switch AgentSortKey(s) {
	case SortByPosts:
		return SortByPosts
	case SortByComments:
		return SortByComments
	default:
		return SortByTotalMessages
	}
}
