package repository_test

import (
	"errors"
	"testing"
	"time"

	"agentwatch/internal/models"
	"agentwatch/internal/repository"
	"agentwatch/internal/repository/repotest"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func message(typ models.MessageType, id int64, agent string, at time.Time) *models.Message {
	return &models.Message{
		RawMessage: models.RawMessage{
			ID:        id,
			Type:      typ,
			AgentID:   id * 10,
			AgentName: agent,
			Content:   "content",
			Tags:      models.StringList{"ai"},
			CreatedAt: at,
		},
		PureAgentScore:    60,
		HumanControlScore: 40,
		ReasonTags:        models.StringList{"technical_precision"},
		ThreadDepth:       1,
		IngestedAt:        at,
	}
}

func TestSaveMessageIgnoresDuplicateKey(t *testing.T) {
	repos := repotest.Open(t)

	msg := message(models.MessageTypePost, 1, "alpha", base)
	inserted, err := repos.Messages.SaveMessage(msg)
	if err != nil || !inserted {
		t.Fatalf("first save = %v, %v; want true, nil", inserted, err)
	}
	inserted, err = repos.Messages.SaveMessage(msg)
	if err != nil || inserted {
		t.Fatalf("second save = %v, %v; want false, nil", inserted, err)
	}

	// Same id, other type, is a different message.
	comment := message(models.MessageTypeComment, 1, "beta", base)
	if inserted, err := repos.Messages.SaveMessage(comment); err != nil || !inserted {
		t.Fatalf("comment save = %v, %v; want true, nil", inserted, err)
	}

	count, err := repos.Messages.CountMessages()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestGetMessageRoundTripsColumns(t *testing.T) {
	repos := repotest.Open(t)

	reply := "alpha"
	rt := int64(7)
	postID := int64(1)
	msg := message(models.MessageTypeComment, 5, "beta", base)
	msg.PostID = &postID
	msg.ReplyToAgent = &reply
	msg.ResponseTimeSeconds = &rt
	msg.ThreadDepth = 2
	if _, err := repos.Messages.SaveMessage(msg); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := repos.Messages.GetMessage(msg.Key())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected message")
	}
	if got.ReplyToAgent == nil || *got.ReplyToAgent != "alpha" {
		t.Fatalf("reply_to_agent = %v, want alpha", got.ReplyToAgent)
	}
	if got.ResponseTimeSeconds == nil || *got.ResponseTimeSeconds != 7 {
		t.Fatalf("response_time_seconds = %v, want 7", got.ResponseTimeSeconds)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "ai" {
		t.Fatalf("tags = %v, want [ai]", got.Tags)
	}
	if !got.CreatedAt.Equal(base) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, base)
	}

	missing, err := repos.Messages.GetMessage(models.MessageKey{Type: models.MessageTypePost, ID: 99})
	if err != nil || missing != nil {
		t.Fatalf("missing message = %v, %v; want nil, nil", missing, err)
	}
}

func TestGetThreadSummary(t *testing.T) {
	repos := repotest.Open(t)

	if _, err := repos.Messages.SaveMessage(message(models.MessageTypePost, 1, "alpha", base)); err != nil {
		t.Fatalf("save post: %v", err)
	}
	postID := int64(1)
	for i, offset := range []time.Duration{10 * time.Second, 40 * time.Second} {
		c := message(models.MessageTypeComment, int64(100+i), "beta", base.Add(offset))
		c.PostID = &postID
		if _, err := repos.Messages.SaveMessage(c); err != nil {
			t.Fatalf("save comment: %v", err)
		}
	}

	summary, err := repos.Messages.GetThreadSummary(1)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Post == nil || summary.Post.AgentName != "alpha" {
		t.Fatalf("post = %+v, want alpha's post", summary.Post)
	}
	if summary.Comments != 2 {
		t.Fatalf("comments = %d, want 2", summary.Comments)
	}
	if summary.LastCommentAt == nil || !summary.LastCommentAt.Equal(base.Add(40*time.Second)) {
		t.Fatalf("last comment = %v, want %v", summary.LastCommentAt, base.Add(40*time.Second))
	}
}

func TestListMessagesBetweenIsHalfOpen(t *testing.T) {
	repos := repotest.Open(t)
	for i := int64(0); i < 4; i++ {
		if _, err := repos.Messages.SaveMessage(message(models.MessageTypePost, i+1, "alpha", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	got, err := repos.Messages.ListMessagesBetween(base, base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 3 {
		t.Fatalf("got %d messages, want ids 2 and 3", len(got))
	}
}

func TestUpsertEdgeNeverLowersStrength(t *testing.T) {
	repos := repotest.Open(t)

	edge := &models.InteractionEdge{
		SourceAgentID: 1, TargetAgentID: 2,
		SourceAgentName: "a", TargetAgentName: "b",
		InteractionType:  models.InteractionReply,
		Strength:         5,
		FirstInteraction: base,
		LastInteraction:  base,
	}
	if err := repos.Interactions.UpsertEdge(edge); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	stale := *edge
	stale.Strength = 3
	if err := repos.Interactions.UpsertEdge(&stale); err != nil {
		t.Fatalf("upsert stale: %v", err)
	}

	edges, err := repos.Interactions.GetEdges(1)
	if err != nil {
		t.Fatalf("edges: %v", err)
	}
	if len(edges) != 1 || edges[0].Strength != 5 {
		t.Fatalf("edges = %+v, want one edge with strength 5", edges)
	}

	strong, err := repos.Interactions.GetEdges(6)
	if err != nil {
		t.Fatalf("edges: %v", err)
	}
	if len(strong) != 0 {
		t.Fatalf("min strength filter returned %d edges", len(strong))
	}
}

func TestUpsertAgent(t *testing.T) {
	repos := repotest.Open(t)

	p := &models.AgentProfile{
		AgentID: 7, AgentName: "alpha", TotalMessages: 1, Posts: 1,
		AvgPureScore: 60, AvgHumanScore: 40, Tags: models.StringList{"ai"},
		FirstSeen: base, LastSeen: base,
	}
	if err := repos.Agents.UpsertAgent(p); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	p.TotalMessages = 2
	p.Comments = 1
	p.LastSeen = base.Add(time.Hour)
	if err := repos.Agents.UpsertAgent(p); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	agents, err := repos.Agents.GetAllAgents()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(agents) != 1 {
		t.Fatalf("agents = %d, want 1", len(agents))
	}
	if agents[0].TotalMessages != 2 || agents[0].Comments != 1 || !agents[0].LastSeen.Equal(base.Add(time.Hour)) {
		t.Fatalf("agent = %+v", agents[0])
	}
}

func TestGrowthSnapshotsFilterByOrganic(t *testing.T) {
	repos := repotest.Open(t)

	for i, organic := range []bool{true, false} {
		s := &models.DailyGrowthSnapshot{
			AgentID: int64(i + 1), AgentName: "a", SnapshotDate: "2026-03-01",
			TotalMessages: 10, GrowthRate: 600, IsOrganic: organic, UpdatedAt: base,
		}
		if err := repos.Growth.UpsertSnapshot(s); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	inorganic := false
	got, err := repos.Growth.GetSnapshots(&inorganic)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].AgentID != 2 || got[0].IsOrganic {
		t.Fatalf("inorganic snapshots = %+v", got)
	}

	all, err := repos.Growth.GetSnapshots(nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all snapshots = %d, want 2", len(all))
	}
}

func TestPatternStatusUpdate(t *testing.T) {
	repos := repotest.Open(t)

	p := &models.SuspiciousPattern{
		ID: "p-1", RunID: "run-1",
		PatternType:     models.PatternNetworkCluster,
		AgentIDs:        models.Int64List{1, 2, 3},
		Severity:        models.SeverityMedium,
		ConfidenceScore: 75,
		Description:     "cluster",
		Evidence:        models.Evidence{"size": 3},
		DetectedAt:      base,
		Status:          models.StatusActive,
	}
	if err := repos.Patterns.SavePattern(p); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := repos.Patterns.UpdatePatternStatus("p-1", models.StatusResolved); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := repos.Patterns.UpdatePatternStatus("missing", models.StatusResolved); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("update missing = %v, want ErrNotFound", err)
	}

	resolved, err := repos.Patterns.GetPatterns(models.StatusResolved)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(resolved) != 1 || len(resolved[0].AgentIDs) != 3 {
		t.Fatalf("resolved = %+v", resolved)
	}
	if size, ok := resolved[0].Evidence["size"].(float64); !ok || size != 3 {
		t.Fatalf("evidence = %v", resolved[0].Evidence)
	}

	active, err := repos.Patterns.GetPatterns(models.StatusActive)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("active = %d, want 0", len(active))
	}
}
