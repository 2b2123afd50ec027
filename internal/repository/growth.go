package repository

import (
	"agentwatch/internal/models"

	"go.uber.org/zap"
)

type GrowthRepository interface {
	// UpsertSnapshot writes the (agent, date) row, replacing an existing one for the same day.
	UpsertSnapshot(snapshot *models.DailyGrowthSnapshot) error
	GetSnapshotsByDate(date string) ([]*models.DailyGrowthSnapshot, error)
	// GetSnapshots lists all snapshots, optionally filtered by organic flag.
	GetSnapshots(organic *bool) ([]*models.DailyGrowthSnapshot, error)
}

type growthRepository struct {
	db     Querier
	logger *zap.Logger
}

func NewGrowthRepository(db Querier, logger *zap.Logger) GrowthRepository {
	return &growthRepository{db: db, logger: logger}
}

const snapshotColumns = `agent_id, snapshot_date, agent_name, total_messages, posts, comments,
	avg_pure_score, growth_rate, is_organic, updated_at`

func (r *growthRepository) UpsertSnapshot(snapshot *models.DailyGrowthSnapshot) error {
	query := `INSERT INTO growth_snapshots (` + snapshotColumns + `)
	          VALUES (:agent_id, :snapshot_date, :agent_name, :total_messages, :posts, :comments,
	              :avg_pure_score, :growth_rate, :is_organic, :updated_at)
	          ON CONFLICT (agent_id, snapshot_date) DO UPDATE SET
	              agent_name = excluded.agent_name,
	              total_messages = excluded.total_messages,
	              posts = excluded.posts,
	              comments = excluded.comments,
	              avg_pure_score = excluded.avg_pure_score,
	              growth_rate = excluded.growth_rate,
	              is_organic = excluded.is_organic,
	              updated_at = excluded.updated_at`
	_, err := r.db.NamedExec(query, snapshot)
	return err
}

func (r *growthRepository) GetSnapshotsByDate(date string) ([]*models.DailyGrowthSnapshot, error) {
	var snapshots []*models.DailyGrowthSnapshot
	query := r.db.Rebind(`SELECT ` + snapshotColumns + ` FROM growth_snapshots WHERE snapshot_date = ? ORDER BY agent_id`)
	if err := r.db.Select(&snapshots, query, date); err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (r *growthRepository) GetSnapshots(organic *bool) ([]*models.DailyGrowthSnapshot, error) {
	var snapshots []*models.DailyGrowthSnapshot
	var err error
	if organic != nil {
		query := r.db.Rebind(`SELECT ` + snapshotColumns + ` FROM growth_snapshots
		          WHERE is_organic = ? ORDER BY snapshot_date DESC, growth_rate DESC`)
		err = r.db.Select(&snapshots, query, *organic)
	} else {
		query := `SELECT ` + snapshotColumns + ` FROM growth_snapshots ORDER BY snapshot_date DESC, growth_rate DESC`
		err = r.db.Select(&snapshots, query)
	}
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}
