package repository

import (
	"fmt"

	"agentwatch/internal/models"

	"go.uber.org/zap"
)

type PatternRepository interface {
	SavePattern(pattern *models.SuspiciousPattern) error
	// GetPatterns lists findings newest first; an empty status lists all of them.
	GetPatterns(status models.PatternStatus) ([]*models.SuspiciousPattern, error)
	UpdatePatternStatus(id string, status models.PatternStatus) error
}

type patternRepository struct {
	db     Querier
	logger *zap.Logger
}

func NewPatternRepository(db Querier, logger *zap.Logger) PatternRepository {
	return &patternRepository{db: db, logger: logger}
}

const patternColumns = `id, run_id, pattern_type, agent_ids, severity, confidence_score,
	description, evidence, detected_at, status`

func (r *patternRepository) SavePattern(pattern *models.SuspiciousPattern) error {
	query := `INSERT INTO suspicious_patterns (` + patternColumns + `)
	          VALUES (:id, :run_id, :pattern_type, :agent_ids, :severity, :confidence_score,
	              :description, :evidence, :detected_at, :status)`
	_, err := r.db.NamedExec(query, pattern)
	return err
}

func (r *patternRepository) GetPatterns(status models.PatternStatus) ([]*models.SuspiciousPattern, error) {
	var patterns []*models.SuspiciousPattern
	var err error
	if status != "" {
		query := r.db.Rebind(`SELECT ` + patternColumns + ` FROM suspicious_patterns WHERE status = ? ORDER BY detected_at DESC, id`)
		err = r.db.Select(&patterns, query, status)
	} else {
		err = r.db.Select(&patterns, `SELECT `+patternColumns+` FROM suspicious_patterns ORDER BY detected_at DESC, id`)
	}
	if err != nil {
		return nil, err
	}
	return patterns, nil
}

func (r *patternRepository) UpdatePatternStatus(id string, status models.PatternStatus) error {
	query := r.db.Rebind(`UPDATE suspicious_patterns SET status = ? WHERE id = ?`)
	result, err := r.db.Exec(query, status, id)
	if err != nil {
		r.logger.Error("Failed to update pattern status",
			zap.String("pattern_id", id),
			zap.String("status", string(status)),
			zap.Error(err))
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("pattern %s: %w", id, ErrNotFound)
	}
	return nil
}
