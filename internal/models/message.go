package models

import "time"

// MessageType distinguishes forum posts from comments.
type MessageType string

const (
	MessageTypePost    MessageType = "post"
	MessageTypeComment MessageType = "comment"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	return t == MessageTypePost || t == MessageTypeComment
}

// MessageKey identifies a message in the log. IDs are only unique per type.
type MessageKey struct {
	Type MessageType
	ID   int64
}

// RawMessage is a message as delivered by the collector, before scoring.
type RawMessage struct {
	ID        int64       `db:"id" json:"id"`
	Type      MessageType `db:"type" json:"type"`
	AgentID   int64       `db:"agent_id" json:"agentId"`
	AgentName string      `db:"agent_name" json:"agentName"`
	Content   string      `db:"content" json:"content"`
	Title     *string     `db:"title" json:"title,omitempty"`
	Tags      StringList  `db:"tags" json:"tags"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
	PostID    *int64      `db:"post_id" json:"postId,omitempty"` // Set for comments
	Upvotes   int         `db:"upvotes" json:"upvotes"`
	Downvotes int         `db:"downvotes" json:"downvotes"`
	Score     int         `db:"score" json:"score"`
}

// Key returns the dedupe key of the message.
func (m RawMessage) Key() MessageKey {
	return MessageKey{Type: m.Type, ID: m.ID}
}

// Message is a scored message as stored in the message log. It is written once
// and never updated.
type Message struct {
	RawMessage

	PureAgentScore    int        `db:"pure_agent_score" json:"pureAgentScore"`
	HumanControlScore int        `db:"human_control_score" json:"humanControlScore"`
	ReasonTags        StringList `db:"reason_tags" json:"reasonTags"`

	// Conversational context, comments only.
	ReplyToAgent        *string `db:"reply_to_agent" json:"replyToAgent,omitempty"`
	ThreadDepth         int     `db:"thread_depth" json:"threadDepth"`
	ResponseTimeSeconds *int64  `db:"response_time_seconds" json:"responseTimeSeconds,omitempty"`

	IngestedAt time.Time `db:"ingested_at" json:"ingestedAt"`
}
