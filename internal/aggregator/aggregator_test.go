package aggregator

import (
	"errors"
	"math"
	"testing"
	"time"

	"agentwatch/internal/models"
	"agentwatch/internal/repository"
	"agentwatch/internal/repository/repotest"

	"go.uber.org/zap/zaptest"
)

var day = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func scored(typ models.MessageType, id, agentID int64, agent string, pure int, at time.Time) *models.Message {
	return &models.Message{
		RawMessage: models.RawMessage{
			ID: id, Type: typ, AgentID: agentID, AgentName: agent,
			Tags: models.StringList{"ai"}, CreatedAt: at,
		},
		PureAgentScore:    pure,
		HumanControlScore: 100 - pure,
		ThreadDepth:       1,
	}
}

func newAggregator(t *testing.T) (*Aggregator, *repository.Repositories) {
	t.Helper()
	repos := repotest.Open(t)
	return New(repos.Agents, repos.Interactions, zaptest.NewLogger(t)), repos
}

func TestFoldKeepsRunningMean(t *testing.T) {
	agg, _ := newAggregator(t)

	scores := []int{60, 52, 77, 35, 50, 91, 48}
	var sum float64
	for i, s := range scores {
		typ := models.MessageTypePost
		if i%2 == 1 {
			typ = models.MessageTypeComment
		}
		if err := agg.Fold(scored(typ, int64(i+1), 1, "alpha", s, day.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("fold: %v", err)
		}
		sum += float64(s)
	}

	p, ok := agg.Profile(1)
	if !ok {
		t.Fatal("profile missing")
	}
	mean := sum / float64(len(scores))
	if math.Abs(p.AvgPureScore-mean) > 1e-6 {
		t.Errorf("avg pure = %v, want %v", p.AvgPureScore, mean)
	}
	if math.Abs(p.AvgHumanScore-(100-mean)) > 1e-6 {
		t.Errorf("avg human = %v, want %v", p.AvgHumanScore, 100-mean)
	}
	if p.TotalMessages != int64(len(scores)) || p.TotalMessages != p.Posts+p.Comments {
		t.Errorf("counters = %d total, %d posts, %d comments", p.TotalMessages, p.Posts, p.Comments)
	}
	if p.Posts != 4 || p.Comments != 3 {
		t.Errorf("posts/comments = %d/%d, want 4/3", p.Posts, p.Comments)
	}
}

func TestFoldTracksSeenRangeAndTags(t *testing.T) {
	agg, _ := newAggregator(t)

	late := scored(models.MessageTypePost, 1, 1, "alpha", 50, day.Add(time.Hour))
	early := scored(models.MessageTypePost, 2, 1, "alpha", 50, day)
	early.Tags = models.StringList{"ai", "infra"}
	for _, m := range []*models.Message{late, early} {
		if err := agg.Fold(m); err != nil {
			t.Fatalf("fold: %v", err)
		}
	}

	p, _ := agg.Profile(1)
	if !p.FirstSeen.Equal(day) || !p.LastSeen.Equal(day.Add(time.Hour)) {
		t.Errorf("seen range = %v..%v", p.FirstSeen, p.LastSeen)
	}
	if len(p.Tags) != 2 {
		t.Errorf("tags = %v, want union of 2", p.Tags)
	}
}

func TestReplyEdgeStrengthGrows(t *testing.T) {
	agg, repos := newAggregator(t)

	if err := agg.Fold(scored(models.MessageTypePost, 1, 1, "alpha", 50, day)); err != nil {
		t.Fatalf("fold: %v", err)
	}
	target := "alpha"
	var last int64
	for i := 0; i < 3; i++ {
		c := scored(models.MessageTypeComment, int64(10+i), 2, "beta", 50, day.Add(time.Duration(i+1)*time.Minute))
		c.ReplyToAgent = &target
		if err := agg.Fold(c); err != nil {
			t.Fatalf("fold: %v", err)
		}
		edges := agg.Edges(0)
		if len(edges) != 1 {
			t.Fatalf("edges = %d, want 1", len(edges))
		}
		if edges[0].Strength <= last {
			t.Fatalf("strength went from %d to %d", last, edges[0].Strength)
		}
		last = edges[0].Strength
	}

	edge := agg.Edges(3)[0]
	if edge.SourceAgentID != 2 || edge.TargetAgentID != 1 || edge.InteractionType != models.InteractionReply {
		t.Errorf("edge = %+v", edge)
	}
	if !edge.FirstInteraction.Equal(day.Add(time.Minute)) || !edge.LastInteraction.Equal(day.Add(3*time.Minute)) {
		t.Errorf("edge interaction range = %v..%v", edge.FirstInteraction, edge.LastInteraction)
	}

	stored, err := repos.Interactions.GetEdges(3)
	if err != nil {
		t.Fatalf("stored edges: %v", err)
	}
	if len(stored) != 1 || stored[0].Strength != 3 {
		t.Errorf("stored edges = %+v", stored)
	}
}

func TestMessageWithoutReplyCreatesNoEdge(t *testing.T) {
	agg, _ := newAggregator(t)
	if err := agg.Fold(scored(models.MessageTypeComment, 1, 1, "alpha", 50, day)); err != nil {
		t.Fatalf("fold: %v", err)
	}
	if n := len(agg.Edges(0)); n != 0 {
		t.Fatalf("edges = %d, want 0", n)
	}
}

func TestCountersPartitionMessages(t *testing.T) {
	agg, _ := newAggregator(t)

	for i, pure := range []int{85, 20, 50, 71, 30} {
		typ := models.MessageTypePost
		if i >= 3 {
			typ = models.MessageTypeComment
		}
		if err := agg.Fold(scored(typ, int64(i+1), int64(i+1), "agent", pure, day)); err != nil {
			t.Fatalf("fold: %v", err)
		}
	}

	b := agg.Behavior()
	if b.PureAgent != 2 || b.HumanControl != 1 || b.Mixed != 2 {
		t.Errorf("behavior = %+v", b)
	}
	if b.PureAgent+b.HumanControl+b.Mixed != b.Total || b.Total != 5 {
		t.Errorf("partition does not cover total: %+v", b)
	}

	act := agg.DayActivity(day)
	if act.Total != 5 || act.Posts != 3 || act.Comments != 2 {
		t.Errorf("day activity = %+v", act)
	}
	if agg.TagCounts()["ai"] != 5 {
		t.Errorf("tag counts = %v", agg.TagCounts())
	}
}

func TestLoadRestoresPersistedState(t *testing.T) {
	agg, repos := newAggregator(t)

	if err := agg.Fold(scored(models.MessageTypePost, 1, 1, "alpha", 60, day)); err != nil {
		t.Fatalf("fold: %v", err)
	}
	target := "alpha"
	c := scored(models.MessageTypeComment, 2, 2, "beta", 40, day.Add(time.Second))
	c.ReplyToAgent = &target
	if err := agg.Fold(c); err != nil {
		t.Fatalf("fold: %v", err)
	}

	restored := New(repos.Agents, repos.Interactions, zaptest.NewLogger(t))
	if err := restored.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := len(restored.Profiles()); got != 2 {
		t.Fatalf("profiles = %d, want 2", got)
	}
	if got := len(restored.Edges(1)); got != 1 {
		t.Fatalf("edges = %d, want 1", got)
	}

	// Folding after a reload continues the persisted counters.
	if err := restored.Fold(scored(models.MessageTypePost, 3, 1, "alpha", 80, day.Add(time.Minute))); err != nil {
		t.Fatalf("fold: %v", err)
	}
	p, _ := restored.Profile(1)
	if p.TotalMessages != 2 || math.Abs(p.AvgPureScore-70) > 1e-6 {
		t.Fatalf("profile after reload = %+v", p)
	}
}

type brokenAgents struct{ repository.AgentRepository }

func (brokenAgents) UpsertAgent(*models.AgentProfile) error { return errors.New("database is locked") }

func TestFoldLeavesStateWhenPersistFails(t *testing.T) {
	repos := repotest.Open(t)
	agg := New(brokenAgents{repos.Agents}, repos.Interactions, zaptest.NewLogger(t))

	if err := agg.Fold(scored(models.MessageTypePost, 1, 1, "alpha", 60, day)); err == nil {
		t.Fatal("fold succeeded with a failing agent repository")
	}
	if _, ok := agg.Profile(1); ok {
		t.Error("profile is visible after a failed fold")
	}
	if b := agg.Behavior(); b.Total != 0 {
		t.Errorf("behavior = %+v", b)
	}
	if act := agg.DayActivity(day); act.Total != 0 {
		t.Errorf("day activity = %+v", act)
	}
}

func TestPrepareDoesNotChangeState(t *testing.T) {
	agg, _ := newAggregator(t)
	if err := agg.Fold(scored(models.MessageTypePost, 1, 1, "alpha", 60, day)); err != nil {
		t.Fatalf("fold: %v", err)
	}

	next := scored(models.MessageTypePost, 2, 1, "alpha", 80, day.Add(time.Minute))
	next.Tags = models.StringList{"ai", "ops"}
	u := agg.Prepare(next)
	if u.Profile.TotalMessages != 2 || len(u.Profile.Tags) != 2 {
		t.Fatalf("prepared profile = %+v", u.Profile)
	}

	p, _ := agg.Profile(1)
	if p.TotalMessages != 1 || len(p.Tags) != 1 {
		t.Fatalf("profile changed before Apply: %+v", p)
	}

	agg.Apply(u)
	p, _ = agg.Profile(1)
	if p.TotalMessages != 2 || len(p.Tags) != 2 {
		t.Fatalf("profile after Apply = %+v", p)
	}
}
