// Package growth snapshots per-agent counters daily and flags inorganic growth.
package growth

import (
	"fmt"
	"time"

	"agentwatch/internal/aggregator"
	"agentwatch/internal/models"
	"agentwatch/internal/repository"

	"go.uber.org/zap"
)

// DefaultThreshold is the day-over-day growth, in percent, above which growth is inorganic.
const DefaultThreshold = 500.0

// Tracker writes one DailyGrowthSnapshot per agent per UTC day. Re-running it
// on the same day overwrites that day's rows; earlier days are never touched.
type Tracker struct {
	aggregator *aggregator.Aggregator
	snapshots  repository.GrowthRepository
	threshold  float64
	logger     *zap.Logger
	now        func() time.Time
}

func NewTracker(agg *aggregator.Aggregator, snapshots repository.GrowthRepository, threshold float64, logger *zap.Logger) *Tracker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Tracker{
		aggregator: agg,
		snapshots:  snapshots,
		threshold:  threshold,
		logger:     logger,
		now:        time.Now,
	}
}

// SnapshotToday snapshots every agent for the current UTC day.
func (t *Tracker) SnapshotToday() ([]*models.DailyGrowthSnapshot, error) {
	return t.SnapshotAt(t.now())
}

// SnapshotAt snapshots every agent for the UTC day containing day.
func (t *Tracker) SnapshotAt(day time.Time) ([]*models.DailyGrowthSnapshot, error) {
	day = day.UTC()
	date := day.Format(models.SnapshotDateLayout)
	yesterday := day.AddDate(0, 0, -1).Format(models.SnapshotDateLayout)

	previous, err := t.snapshots.GetSnapshotsByDate(yesterday)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots of %s: %w", yesterday, err)
	}
	prior := make(map[int64]*models.DailyGrowthSnapshot, len(previous))
	for _, s := range previous {
		prior[s.AgentID] = s
	}

	var written []*models.DailyGrowthSnapshot
	var inorganic int
	for _, p := range t.aggregator.Profiles() {
		snapshot := &models.DailyGrowthSnapshot{
			AgentID:       p.AgentID,
			AgentName:     p.AgentName,
			SnapshotDate:  date,
			TotalMessages: p.TotalMessages,
			Posts:         p.Posts,
			Comments:      p.Comments,
			AvgPureScore:  p.AvgPureScore,
			UpdatedAt:     t.now().UTC(),
		}
		var before int64
		if y, ok := prior[p.AgentID]; ok {
			before = y.TotalMessages
		}
		snapshot.GrowthRate = Rate(before, p.TotalMessages)
		snapshot.IsOrganic = snapshot.GrowthRate <= t.threshold

		if err := t.snapshots.UpsertSnapshot(snapshot); err != nil {
			t.logger.Error("Failed to write growth snapshot",
				zap.Int64("agent_id", p.AgentID),
				zap.String("date", date),
				zap.Error(err))
			continue
		}
		if !snapshot.IsOrganic {
			inorganic++
		}
		written = append(written, snapshot)
	}

	t.logger.Info("Growth snapshot taken",
		zap.String("date", date),
		zap.Int("agents", len(written)),
		zap.Int("inorganic", inorganic))
	return written, nil
}

// Rate is the day-over-day growth in percent. It is 0 when there is no prior count.
func Rate(yesterday, today int64) float64 {
	if yesterday <= 0 {
		return 0
	}
	return float64(today-yesterday) * 100 / float64(yesterday)
}
