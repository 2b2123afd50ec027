package repository

import (
	"agentwatch/internal/models"

	"go.uber.org/zap"
)

type AgentRepository interface {
	UpsertAgent(profile *models.AgentProfile) error
	GetAllAgents() ([]*models.AgentProfile, error)
}

type agentRepository struct {
	db     Querier
	logger *zap.Logger
}

func NewAgentRepository(db Querier, logger *zap.Logger) AgentRepository {
	return &agentRepository{db: db, logger: logger}
}

// UpsertAgent writes the full in-memory state of a profile.
func (r *agentRepository) UpsertAgent(profile *models.AgentProfile) error {
	query := `INSERT INTO agents (agent_id, agent_name, total_messages, posts, comments,
	              avg_pure_score, avg_human_score, tags, first_seen, last_seen)
	          VALUES (:agent_id, :agent_name, :total_messages, :posts, :comments,
	              :avg_pure_score, :avg_human_score, :tags, :first_seen, :last_seen)
	          ON CONFLICT (agent_id) DO UPDATE SET
	              agent_name = excluded.agent_name,
	              total_messages = excluded.total_messages,
	              posts = excluded.posts,
	              comments = excluded.comments,
	              avg_pure_score = excluded.avg_pure_score,
	              avg_human_score = excluded.avg_human_score,
	              tags = excluded.tags,
	              first_seen = excluded.first_seen,
	              last_seen = excluded.last_seen`
	_, err := r.db.NamedExec(query, profile)
	return err
}

func (r *agentRepository) GetAllAgents() ([]*models.AgentProfile, error) {
	var agents []*models.AgentProfile
	query := `SELECT agent_id, agent_name, total_messages, posts, comments,
	              avg_pure_score, avg_human_score, tags, first_seen, last_seen
	          FROM agents ORDER BY agent_id`
	if err := r.db.Select(&agents, query); err != nil {
		return nil, err
	}
	return agents, nil
}
