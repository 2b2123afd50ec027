// Package aggregator folds scored messages into agent profiles, the interaction
// graph and the message-level counters behind the analytics views.
package aggregator

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"agentwatch/internal/classifier"
	"agentwatch/internal/models"
	"agentwatch/internal/repository"

	"go.uber.org/zap"
)

// Aggregator is the only writer of AgentProfile and InteractionEdge state.
// Every fold is written through to the repositories; readers get copies.
type Aggregator struct {
	mu       sync.RWMutex
	profiles map[int64]*models.AgentProfile
	byName   map[string]int64
	edges    map[models.EdgeKey]*models.InteractionEdge

	daily    map[string]*models.DayActivity
	tags     map[string]int64
	behavior models.BehaviorDistribution

	agents       repository.AgentRepository
	interactions repository.InteractionRepository
	logger       *zap.Logger
}

func New(agents repository.AgentRepository, interactions repository.InteractionRepository, logger *zap.Logger) *Aggregator {
	a := &Aggregator{
		agents:       agents,
		interactions: interactions,
		logger:       logger,
	}
	a.resetLocked()
	return a
}

func (a *Aggregator) resetLocked() {
	a.profiles = make(map[int64]*models.AgentProfile)
	a.byName = make(map[string]int64)
	a.edges = make(map[models.EdgeKey]*models.InteractionEdge)
	a.resetCountersLocked()
}

func (a *Aggregator) resetCountersLocked() {
	a.daily = make(map[string]*models.DayActivity)
	a.tags = make(map[string]int64)
	a.behavior = models.BehaviorDistribution{}
}

// Load replaces the in-memory profiles and edges with the persisted ones.
// Message-level counters are rebuilt separately by replaying the log through Count.
func (a *Aggregator) Load() error {
	profiles, err := a.agents.GetAllAgents()
	if err != nil {
		return fmt.Errorf("failed to load agent profiles: %w", err)
	}
	edges, err := a.interactions.GetEdges(0)
	if err != nil {
		return fmt.Errorf("failed to load interaction edges: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetLocked()
	for _, p := range profiles {
		a.profiles[p.AgentID] = p
		a.byName[p.AgentName] = p.AgentID
	}
	for _, e := range edges {
		a.edges[e.Key()] = e
	}

	a.logger.Info("Aggregate state loaded",
		zap.Int("agents", len(a.profiles)),
		zap.Int("edges", len(a.edges)))
	return nil
}

// ResetCounters clears the message-level counters ahead of a log replay.
func (a *Aggregator) ResetCounters() {
	a.mu.Lock()
	a.resetCountersLocked()
	a.mu.Unlock()
}

// Count adds msg to the message-level counters only. Fold calls it; a startup
// replay calls it directly since profiles and edges are already persisted.
func (a *Aggregator) Count(msg *models.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.countLocked(msg)
}

func (a *Aggregator) countLocked(msg *models.Message) {
	day := msg.CreatedAt.UTC().Format(models.SnapshotDateLayout)
	bucket, ok := a.daily[day]
	if !ok {
		bucket = &models.DayActivity{Date: day}
		a.daily[day] = bucket
	}
	bucket.Total++
	if msg.Type == models.MessageTypePost {
		bucket.Posts++
	} else {
		bucket.Comments++
	}

	for _, tag := range msg.Tags {
		a.tags[tag]++
	}

	switch classifier.BehaviorOf(msg.PureAgentScore, msg.HumanControlScore) {
	case classifier.BehaviorPureAgent:
		a.behavior.PureAgent++
	case classifier.BehaviorHumanControl:
		a.behavior.HumanControl++
	default:
		a.behavior.Mixed++
	}
	a.behavior.Total++
}

// Update is the outcome of folding one message, computed by Prepare and made
// visible by Apply. Profile and Edge are the rows to persist.
type Update struct {
	Profile models.AgentProfile
	Edge    *models.InteractionEdge

	msg *models.Message
}

// Prepare computes what folding msg would change without touching the
// aggregator's state. Only one Update may be outstanding at a time; the
// pipeline's single-run guard ensures that.
func (a *Aggregator) Prepare(msg *models.Message) Update {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Update{
		Profile: a.foldProfileLocked(msg),
		Edge:    a.foldEdgeLocked(msg),
		msg:     msg,
	}
}

// Apply makes a prepared update visible. Call it only once the update has been
// persisted.
func (a *Aggregator) Apply(u Update) {
	a.mu.Lock()
	defer a.mu.Unlock()

	profile := u.Profile
	if old, ok := a.profiles[profile.AgentID]; ok && old.AgentName != profile.AgentName && a.byName[old.AgentName] == old.AgentID {
		delete(a.byName, old.AgentName)
	}
	a.profiles[profile.AgentID] = &profile
	a.byName[profile.AgentName] = profile.AgentID

	if u.Edge != nil {
		edge := *u.Edge
		a.edges[edge.Key()] = &edge
	}
	a.countLocked(u.msg)
}

// Fold persists and applies one newly admitted message through the
// aggregator's own repositories. It must be called exactly once per message.
// When persisting fails the in-memory state is left unchanged.
func (a *Aggregator) Fold(msg *models.Message) error {
	u := a.Prepare(msg)
	if err := Persist(u, a.agents, a.interactions); err != nil {
		return err
	}
	a.Apply(u)
	return nil
}

// Persist writes the rows of u through the given repositories.
func Persist(u Update, agents repository.AgentRepository, interactions repository.InteractionRepository) error {
	if err := agents.UpsertAgent(&u.Profile); err != nil {
		return fmt.Errorf("failed to persist agent %d: %w", u.Profile.AgentID, err)
	}
	if u.Edge != nil {
		if err := interactions.UpsertEdge(u.Edge); err != nil {
			return fmt.Errorf("failed to persist edge %d->%d: %w", u.Edge.SourceAgentID, u.Edge.TargetAgentID, err)
		}
	}
	return nil
}

func (a *Aggregator) foldProfileLocked(msg *models.Message) models.AgentProfile {
	var p models.AgentProfile
	if existing, ok := a.profiles[msg.AgentID]; ok {
		p = *existing
		p.Tags = append(models.StringList(nil), existing.Tags...)
	} else {
		p = models.AgentProfile{
			AgentID:   msg.AgentID,
			FirstSeen: msg.CreatedAt,
			LastSeen:  msg.CreatedAt,
		}
	}
	if id, ok := a.byName[msg.AgentName]; ok && id != msg.AgentID {
		a.logger.Warn("Agent name is already used by another agent id",
			zap.String("agent", msg.AgentName),
			zap.Int64("agent_id", msg.AgentID),
			zap.Int64("existing_agent_id", id))
	}
	p.AgentName = msg.AgentName

	n := float64(p.TotalMessages)
	p.AvgPureScore += (float64(msg.PureAgentScore) - p.AvgPureScore) / (n + 1)
	p.AvgHumanScore += (float64(msg.HumanControlScore) - p.AvgHumanScore) / (n + 1)

	p.TotalMessages++
	if msg.Type == models.MessageTypePost {
		p.Posts++
	} else {
		p.Comments++
	}

	for _, tag := range msg.Tags {
		if !containsTag(p.Tags, tag) {
			p.Tags = append(p.Tags, tag)
		}
	}

	if msg.CreatedAt.Before(p.FirstSeen) {
		p.FirstSeen = msg.CreatedAt
	}
	if msg.CreatedAt.After(p.LastSeen) {
		p.LastSeen = msg.CreatedAt
	}
	return p
}

func (a *Aggregator) foldEdgeLocked(msg *models.Message) *models.InteractionEdge {
	if msg.ReplyToAgent == nil || *msg.ReplyToAgent == msg.AgentName {
		return nil
	}
	targetName := *msg.ReplyToAgent
	targetID, ok := a.byName[targetName]
	if !ok {
		a.logger.Warn("Reply target has no profile yet",
			zap.String("agent", msg.AgentName),
			zap.String("target", targetName))
	}

	key := models.EdgeKey{Source: msg.AgentID, Target: targetID, Type: models.InteractionReply}
	var e models.InteractionEdge
	if existing, ok := a.edges[key]; ok {
		e = *existing
	} else {
		e = models.InteractionEdge{
			SourceAgentID:    msg.AgentID,
			TargetAgentID:    targetID,
			InteractionType:  models.InteractionReply,
			FirstInteraction: msg.CreatedAt,
		}
	}
	e.SourceAgentName = msg.AgentName
	e.TargetAgentName = targetName
	e.Strength++
	e.LastInteraction = msg.CreatedAt
	return &e
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Profiles returns a copy of every agent profile ordered by agent id.
func (a *Aggregator) Profiles() []models.AgentProfile {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]models.AgentProfile, 0, len(a.profiles))
	for _, p := range a.profiles {
		cp := *p
		cp.Tags = append(models.StringList(nil), p.Tags...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

// Profile returns a copy of one agent's profile.
func (a *Aggregator) Profile(agentID int64) (models.AgentProfile, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.profiles[agentID]
	if !ok {
		return models.AgentProfile{}, false
	}
	cp := *p
	cp.Tags = append(models.StringList(nil), p.Tags...)
	return cp, true
}

// Edges returns a copy of every edge with at least minStrength, strongest first.
func (a *Aggregator) Edges(minStrength int64) []models.InteractionEdge {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]models.InteractionEdge, 0, len(a.edges))
	for _, e := range a.edges {
		if e.Strength >= minStrength {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Strength != out[j].Strength {
			return out[i].Strength > out[j].Strength
		}
		if out[i].SourceAgentID != out[j].SourceAgentID {
			return out[i].SourceAgentID < out[j].SourceAgentID
		}
		return out[i].TargetAgentID < out[j].TargetAgentID
	})
	return out
}

// DayActivity returns the counters of one UTC day, zero-valued when nothing was seen.
func (a *Aggregator) DayActivity(day time.Time) models.DayActivity {
	date := day.UTC().Format(models.SnapshotDateLayout)
	a.mu.RLock()
	defer a.mu.RUnlock()
	if bucket, ok := a.daily[date]; ok {
		return *bucket
	}
	return models.DayActivity{Date: date}
}

// TagCounts returns a copy of the tag frequency table.
func (a *Aggregator) TagCounts() map[string]int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]int64, len(a.tags))
	for tag, n := range a.tags {
		out[tag] = n
	}
	return out
}

func (a *Aggregator) Behavior() models.BehaviorDistribution {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.behavior
}
