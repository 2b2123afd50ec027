package models

import "time"

// SnapshotDateLayout is the calendar-day format used for snapshot dates (UTC).
const SnapshotDateLayout = "2006-01-02"

// DailyGrowthSnapshot records an agent's cumulative counters on one UTC day.
type DailyGrowthSnapshot struct {
	AgentID       int64     `db:"agent_id" json:"agentId"`
	AgentName     string    `db:"agent_name" json:"agentName"`
	SnapshotDate  string    `db:"snapshot_date" json:"date"`
	TotalMessages int64     `db:"total_messages" json:"totalMessages"`
	Posts         int64     `db:"posts" json:"posts"`
	Comments      int64     `db:"comments" json:"comments"`
	AvgPureScore  float64   `db:"avg_pure_score" json:"avgPureScore"`
	GrowthRate    float64   `db:"growth_rate" json:"growthRate"`
	IsOrganic     bool      `db:"is_organic" json:"isOrganic"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}
