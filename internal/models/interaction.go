package models

import "time"

// InteractionType is the kind of relationship an edge records.
type InteractionType string

const (
	InteractionReply         InteractionType = "reply"
	InteractionMention       InteractionType = "mention"
	InteractionCollaboration InteractionType = "collaboration"
	InteractionUpvote        InteractionType = "upvote"
)

// EdgeKey identifies an interaction edge. Source is the acting agent.
type EdgeKey struct {
	Source int64
	Target int64
	Type   InteractionType
}

// InteractionEdge is a directed, weighted relationship between two agents.
// Strength only ever grows.
type InteractionEdge struct {
	SourceAgentID    int64           `db:"source_agent_id" json:"sourceAgentId"`
	TargetAgentID    int64           `db:"target_agent_id" json:"targetAgentId"`
	SourceAgentName  string          `db:"source_agent_name" json:"sourceAgentName"`
	TargetAgentName  string          `db:"target_agent_name" json:"targetAgentName"`
	InteractionType  InteractionType `db:"interaction_type" json:"interactionType"`
	Strength         int64           `db:"strength" json:"strength"`
	FirstInteraction time.Time       `db:"first_interaction" json:"firstInteraction"`
	LastInteraction  time.Time       `db:"last_interaction" json:"lastInteraction"`
}

// Key returns the identity of the edge.
func (e InteractionEdge) Key() EdgeKey {
	return EdgeKey{Source: e.SourceAgentID, Target: e.TargetAgentID, Type: e.InteractionType}
}

// GraphNode and GraphLink are the visualisation shape of the interaction graph.
type GraphNode struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Value int64  `json:"value"` // Summed strength of incident edges
}

type GraphLink struct {
	Source   int64           `json:"source"`
	Target   int64           `json:"target"`
	Type     InteractionType `json:"type"`
	Strength int64           `json:"strength"`
}

type InteractionGraph struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}
