package repository

import (
	"agentwatch/internal/models"

	"go.uber.org/zap"
)

type InteractionRepository interface {
	UpsertEdge(edge *models.InteractionEdge) error
	GetEdges(minStrength int64) ([]*models.InteractionEdge, error)
}

type interactionRepository struct {
	db     Querier
	logger *zap.Logger
}

func NewInteractionRepository(db Querier, logger *zap.Logger) InteractionRepository {
	return &interactionRepository{db: db, logger: logger}
}

// UpsertEdge writes the edge as held in memory. The stored strength never
// decreases even if a stale value is written.
func (r *interactionRepository) UpsertEdge(edge *models.InteractionEdge) error {
	query := `INSERT INTO interaction_edges (source_agent_id, target_agent_id, interaction_type,
	              source_agent_name, target_agent_name, strength, first_interaction, last_interaction)
	          VALUES (:source_agent_id, :target_agent_id, :interaction_type,
	              :source_agent_name, :target_agent_name, :strength, :first_interaction, :last_interaction)
	          ON CONFLICT (source_agent_id, target_agent_id, interaction_type) DO UPDATE SET
	              source_agent_name = excluded.source_agent_name,
	              target_agent_name = excluded.target_agent_name,
	              strength = CASE WHEN excluded.strength > interaction_edges.strength
	                  THEN excluded.strength ELSE interaction_edges.strength END,
	              last_interaction = excluded.last_interaction`
	_, err := r.db.NamedExec(query, edge)
	return err
}

func (r *interactionRepository) GetEdges(minStrength int64) ([]*models.InteractionEdge, error) {
	var edges []*models.InteractionEdge
	query := r.db.Rebind(`SELECT source_agent_id, target_agent_id, interaction_type,
	              source_agent_name, target_agent_name, strength, first_interaction, last_interaction
	          FROM interaction_edges
	          WHERE strength >= ?
	          ORDER BY strength DESC, source_agent_id, target_agent_id`)
	if err := r.db.Select(&edges, query, minStrength); err != nil {
		return nil, err
	}
	return edges, nil
}
