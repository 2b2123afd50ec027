package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agentwatch/internal/models"

	"go.uber.org/zap"
)

const messageColumns = `type, id, agent_id, agent_name, content, title, tags, created_at, post_id,
	upvotes, downvotes, score, pure_agent_score, human_control_score, reason_tags,
	reply_to_agent, thread_depth, response_time_seconds, ingested_at`

// ThreadSummary is what the message log knows about one post's thread.
type ThreadSummary struct {
	Post          *models.Message
	Comments      int
	LastCommentAt *time.Time
}

type MessageRepository interface {
	// SaveMessage appends msg to the log. It reports false when the (type, id)
	// key was already present, in which case nothing is written.
	SaveMessage(msg *models.Message) (bool, error)
	GetMessage(key models.MessageKey) (*models.Message, error)
	GetThreadSummary(postID int64) (*ThreadSummary, error)
	ListMessagesBetween(from, to time.Time) ([]*models.Message, error)
	// ForEachMessage streams the whole log in creation order.
	ForEachMessage(fn func(*models.Message) error) error
	CountMessages() (int64, error)
}

type messageRepository struct {
	db     Querier
	logger *zap.Logger
}

func NewMessageRepository(db Querier, logger *zap.Logger) MessageRepository {
	return &messageRepository{db: db, logger: logger}
}

func (r *messageRepository) SaveMessage(msg *models.Message) (bool, error) {
	query := `INSERT INTO messages (` + messageColumns + `)
	          VALUES (:type, :id, :agent_id, :agent_name, :content, :title, :tags, :created_at, :post_id,
	                  :upvotes, :downvotes, :score, :pure_agent_score, :human_control_score, :reason_tags,
	                  :reply_to_agent, :thread_depth, :response_time_seconds, :ingested_at)
	          ON CONFLICT (type, id) DO NOTHING`
	result, err := r.db.NamedExec(query, msg)
	if err != nil {
		return false, fmt.Errorf("failed to save message %s/%d: %w", msg.Type, msg.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

func (r *messageRepository) GetMessage(key models.MessageKey) (*models.Message, error) {
	var msg models.Message
	query := r.db.Rebind(`SELECT ` + messageColumns + ` FROM messages WHERE type = ? AND id = ?`)
	err := r.db.Get(&msg, query, key.Type, key.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) GetThreadSummary(postID int64) (*ThreadSummary, error) {
	post, err := r.GetMessage(models.MessageKey{Type: models.MessageTypePost, ID: postID})
	if err != nil {
		return nil, fmt.Errorf("failed to load post %d: %w", postID, err)
	}

	summary := &ThreadSummary{Post: post}

	countQuery := r.db.Rebind(`SELECT COUNT(*) FROM messages WHERE type = ? AND post_id = ?`)
	if err := r.db.Get(&summary.Comments, countQuery, models.MessageTypeComment, postID); err != nil {
		return nil, fmt.Errorf("failed to count comments of post %d: %w", postID, err)
	}

	if summary.Comments > 0 {
		// Selecting the column rather than MAX() keeps its declared type for the SQLite driver.
		var last time.Time
		lastQuery := r.db.Rebind(`SELECT created_at FROM messages WHERE type = ? AND post_id = ? ORDER BY created_at DESC LIMIT 1`)
		if err := r.db.Get(&last, lastQuery, models.MessageTypeComment, postID); err != nil {
			return nil, fmt.Errorf("failed to load last comment of post %d: %w", postID, err)
		}
		summary.LastCommentAt = &last
	}

	return summary, nil
}

func (r *messageRepository) ListMessagesBetween(from, to time.Time) ([]*models.Message, error) {
	var messages []*models.Message
	query := r.db.Rebind(`SELECT ` + messageColumns + ` FROM messages
	          WHERE created_at > ? AND created_at <= ?
	          ORDER BY created_at`)
	if err := r.db.Select(&messages, query, from.UTC(), to.UTC()); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) ForEachMessage(fn func(*models.Message) error) error {
	rows, err := r.db.Queryx(`SELECT ` + messageColumns + ` FROM messages ORDER BY created_at, type, id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var msg models.Message
		if err := rows.StructScan(&msg); err != nil {
			r.logger.Warn("Failed to scan message, skipping", zap.Error(err))
			continue
		}
		if err := fn(&msg); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *messageRepository) CountMessages() (int64, error) {
	var count int64
	err := r.db.Get(&count, `SELECT COUNT(*) FROM messages`)
	return count, err
}
