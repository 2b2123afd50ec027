// Package detector flags suspicious collective behaviour: coordinated posting,
// rapid-fire replies, inorganic growth and tightly knit interaction clusters.
package detector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"agentwatch/internal/aggregator"
	"agentwatch/internal/config"
	"agentwatch/internal/models"
	"agentwatch/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier is told about every stored finding.
type Notifier interface {
	Notify(ctx context.Context, pattern *models.SuspiciousPattern) error
}

// Detector runs all sub-detectors over a window ending at a given time.
// Findings are always appended; a re-run may flag the same condition again.
type Detector struct {
	messages   repository.MessageRepository
	growth     repository.GrowthRepository
	patterns   repository.PatternRepository
	aggregator *aggregator.Aggregator
	notifier   Notifier
	cfg        config.Detection
	logger     *zap.Logger
	newID      func() string
}

// New creates a detector. notifier may be nil.
func New(
	messages repository.MessageRepository,
	growth repository.GrowthRepository,
	patterns repository.PatternRepository,
	agg *aggregator.Aggregator,
	notifier Notifier,
	cfg config.Detection,
	logger *zap.Logger,
) *Detector {
	return &Detector{
		messages:   messages,
		growth:     growth,
		patterns:   patterns,
		aggregator: agg,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger,
		newID:      func() string { return uuid.New().String() },
	}
}

type finding struct {
	patternType models.PatternType
	agentIDs    []int64
	severity    models.Severity
	confidence  int
	description string
	evidence    models.Evidence
}

type subDetector struct {
	name models.PatternType
	run  func(windowEnd time.Time) ([]finding, error)
}

// RunDetection runs every sub-detector and stores what they find. A failing
// sub-detector contributes nothing to this run and never stops the others.
func (d *Detector) RunDetection(ctx context.Context, windowEnd time.Time) []*models.SuspiciousPattern {
	windowEnd = windowEnd.UTC()
	runID := d.newID()

	subs := []subDetector{
		{models.PatternCoordinatedPosting, d.coordinatedPosting},
		{models.PatternRapidInteraction, d.rapidInteraction},
		{models.PatternInorganicGrowth, d.inorganicGrowth},
		{models.PatternNetworkCluster, d.networkClusters},
	}

	var stored []*models.SuspiciousPattern
	for _, sub := range subs {
		if ctx.Err() != nil {
			break
		}
		for _, f := range d.safely(sub, windowEnd) {
			pattern := &models.SuspiciousPattern{
				ID:              d.newID(),
				RunID:           runID,
				PatternType:     f.patternType,
				AgentIDs:        f.agentIDs,
				Severity:        f.severity,
				ConfidenceScore: f.confidence,
				Description:     f.description,
				Evidence:        f.evidence,
				DetectedAt:      windowEnd,
				Status:          models.StatusActive,
			}
			if err := d.patterns.SavePattern(pattern); err != nil {
				d.logger.Error("Failed to save suspicious pattern",
					zap.String("pattern_type", string(pattern.PatternType)),
					zap.Error(err))
				continue
			}
			stored = append(stored, pattern)
			d.notify(ctx, pattern)
		}
	}

	d.logger.Info("Pattern detection finished",
		zap.String("run_id", runID),
		zap.Time("window_end", windowEnd),
		zap.Int("findings", len(stored)))
	return stored
}

func (d *Detector) safely(sub subDetector, windowEnd time.Time) (findings []finding) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Sub-detector panicked",
				zap.String("detector", string(sub.name)),
				zap.Any("panic", r))
			findings = nil
		}
	}()

	findings, err := sub.run(windowEnd)
	if err != nil {
		d.logger.Error("Sub-detector failed",
			zap.String("detector", string(sub.name)),
			zap.Error(err))
		return nil
	}
	return findings
}

func (d *Detector) notify(ctx context.Context, pattern *models.SuspiciousPattern) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.Notify(ctx, pattern); err != nil {
		d.logger.Warn("Failed to send pattern alert",
			zap.String("pattern_id", pattern.ID),
			zap.Error(err))
	}
}

func (d *Detector) recentMessages(windowEnd time.Time) ([]*models.Message, error) {
	messages, err := d.messages.ListMessagesBetween(windowEnd.Add(-d.cfg.LookbackWindow), windowEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent messages: %w", err)
	}
	return messages, nil
}

func (d *Detector) coordinatedPosting(windowEnd time.Time) ([]finding, error) {
	messages, err := d.recentMessages(windowEnd)
	if err != nil {
		return nil, err
	}

	width := d.cfg.BucketWidth
	type bucket struct {
		start    time.Time
		agents   map[int64]struct{}
		messages int
	}
	buckets := make(map[int64]*bucket)
	for _, m := range messages {
		n := m.CreatedAt.UnixNano() / int64(width)
		b, ok := buckets[n]
		if !ok {
			b = &bucket{start: time.Unix(0, n*int64(width)).UTC(), agents: make(map[int64]struct{})}
			buckets[n] = b
		}
		b.agents[m.AgentID] = struct{}{}
		b.messages++
	}

	keys := make([]int64, 0, len(buckets))
	for n := range buckets {
		keys = append(keys, n)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var findings []finding
	for _, n := range keys {
		b := buckets[n]
		if len(b.agents) < d.cfg.MinDistinctAgents {
			continue
		}
		ids := sortedIDs(b.agents)
		findings = append(findings, finding{
			patternType: models.PatternCoordinatedPosting,
			agentIDs:    ids,
			severity:    models.SeverityMedium,
			confidence:  75,
			description: fmt.Sprintf("%d agents posted within the same %s window", len(ids), width),
			evidence: models.Evidence{
				"windowStart":    b.start.Format(time.RFC3339),
				"windowEnd":      b.start.Add(width).Format(time.RFC3339),
				"distinctAgents": len(ids),
				"messageCount":   b.messages,
			},
		})
	}
	return findings, nil
}

func (d *Detector) rapidInteraction(windowEnd time.Time) ([]finding, error) {
	messages, err := d.recentMessages(windowEnd)
	if err != nil {
		return nil, err
	}

	limit := int64(d.cfg.RapidResponse / time.Second)
	type stats struct {
		name  string
		count int
		sum   int64
		min   int64
	}
	byAgent := make(map[int64]*stats)
	for _, m := range messages {
		if m.Type != models.MessageTypeComment || m.ResponseTimeSeconds == nil {
			continue
		}
		rt := *m.ResponseTimeSeconds
		if rt >= limit {
			continue
		}
		s, ok := byAgent[m.AgentID]
		if !ok {
			s = &stats{name: m.AgentName, min: rt}
			byAgent[m.AgentID] = s
		}
		s.count++
		s.sum += rt
		if rt < s.min {
			s.min = rt
		}
	}

	ids := make([]int64, 0, len(byAgent))
	for id := range byAgent {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var findings []finding
	for _, id := range ids {
		s := byAgent[id]
		if s.count < d.cfg.MinRapidOccurrences {
			continue
		}
		findings = append(findings, finding{
			patternType: models.PatternRapidInteraction,
			agentIDs:    []int64{id},
			severity:    models.SeverityLow,
			confidence:  60,
			description: fmt.Sprintf("%s replied %d times in under %s", s.name, s.count, d.cfg.RapidResponse),
			evidence: models.Evidence{
				"occurrences":        s.count,
				"avgResponseSeconds": float64(s.sum) / float64(s.count),
				"minResponseSeconds": s.min,
				"thresholdSeconds":   limit,
			},
		})
	}
	return findings, nil
}

func (d *Detector) inorganicGrowth(windowEnd time.Time) ([]finding, error) {
	date := windowEnd.Format(models.SnapshotDateLayout)
	snapshots, err := d.growth.GetSnapshotsByDate(date)
	if err != nil {
		return nil, fmt.Errorf("failed to load growth snapshots for %s: %w", date, err)
	}

	var findings []finding
	for _, s := range snapshots {
		if s.IsOrganic {
			continue
		}
		findings = append(findings, finding{
			patternType: models.PatternInorganicGrowth,
			agentIDs:    []int64{s.AgentID},
			severity:    models.SeverityHigh,
			confidence:  85,
			description: fmt.Sprintf("%s grew %.0f%% day over day", s.AgentName, s.GrowthRate),
			evidence: models.Evidence{
				"snapshotDate":  s.SnapshotDate,
				"growthRate":    s.GrowthRate,
				"totalMessages": s.TotalMessages,
				"threshold":     d.cfg.GrowthThreshold,
			},
		})
	}
	return findings, nil
}

func (d *Detector) networkClusters(time.Time) ([]finding, error) {
	return d.clusterFindings(d.aggregator.Edges(d.cfg.ClusterMinStrength)), nil
}

func (d *Detector) clusterFindings(edges []models.InteractionEdge) []finding {
	var findings []finding
	for _, component := range connectedComponents(edges) {
		size := len(component)
		if size < d.cfg.ClusterMinSize {
			continue
		}
		severity := models.SeverityMedium
		if size >= d.cfg.ClusterHighSeverity {
			severity = models.SeverityHigh
		}
		confidence := 60 + 5*size
		if confidence > 95 {
			confidence = 95
		}
		findings = append(findings, finding{
			patternType: models.PatternNetworkCluster,
			agentIDs:    component,
			severity:    severity,
			confidence:  confidence,
			description: fmt.Sprintf("Cluster of %d agents with strong mutual interaction", size),
			evidence: models.Evidence{
				"size":        size,
				"minStrength": d.cfg.ClusterMinStrength,
			},
		})
	}
	return findings
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
