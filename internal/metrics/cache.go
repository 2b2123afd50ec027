// Package metrics serves the read-optimised analytics views derived from the
// aggregator's state.
package metrics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"agentwatch/internal/aggregator"
	"agentwatch/internal/models"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// Watermark reports when the underlying data last changed.
type Watermark interface {
	LastModified() time.Time
}

// Cache computes each view on first request and keeps it for a TTL, or until
// the watermark advances past the state the view was built from.
type Cache struct {
	mu        sync.Mutex
	views     *expirable.LRU[string, any]
	builtFrom time.Time

	aggregator *aggregator.Aggregator
	watermark  Watermark
	logger     *zap.Logger
	now        func() time.Time
}

func NewCache(agg *aggregator.Aggregator, watermark Watermark, capacity int, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		views:      expirable.NewLRU[string, any](capacity, nil, ttl),
		aggregator: agg,
		watermark:  watermark,
		logger:     logger,
		now:        time.Now,
	}
}

// Invalidate drops every cached view.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.views.Purge()
	c.mu.Unlock()
	c.logger.Debug("Metrics cache invalidated")
}

// Refresh drops stale views if new data was folded since they were built and
// warms the default dashboard views.
func (c *Cache) Refresh() {
	c.checkWatermark()
	c.TopAgents(10, models.SortByTotalMessages)
	c.DailyActivity(7)
	c.TopTags(10)
	c.BehaviorDistribution()
}

func (c *Cache) checkWatermark() {
	lm := c.watermark.LastModified()
	c.mu.Lock()
	defer c.mu.Unlock()
	if lm.After(c.builtFrom) {
		c.views.Purge()
		c.builtFrom = lm
	}
}

func (c *Cache) load(key string, build func() any) any {
	c.checkWatermark()
	if v, ok := c.views.Get(key); ok {
		return v
	}
	v := build()
	c.views.Add(key, v)
	return v
}

// TopAgents returns the n agents with the highest value of orderBy.
// Views are returned as copies; callers may modify them.
func (c *Cache) TopAgents(n int, orderBy models.AgentSortKey) []models.AgentProfile {
	key := fmt.Sprintf("agents:%s:%d", orderBy, n)
	cached := c.load(key, func() any {
		return topAgents(c.aggregator.Profiles(), n, orderBy)
	}).([]models.AgentProfile)

	out := make([]models.AgentProfile, len(cached))
	for i, p := range cached {
		out[i] = p
		out[i].Tags = append(models.StringList(nil), p.Tags...)
	}
	return out
}

// DailyActivity returns one bucket per UTC day for the trailing days, oldest first.
// Days without messages are present with zero counts.
func (c *Cache) DailyActivity(days int) []models.DayActivity {
	if days <= 0 {
		return []models.DayActivity{}
	}
	today := c.now().UTC().Truncate(24 * time.Hour)
	key := fmt.Sprintf("daily:%s:%d", today.Format(models.SnapshotDateLayout), days)
	cached := c.load(key, func() any {
		out := make([]models.DayActivity, 0, days)
		for i := days - 1; i >= 0; i-- {
			out = append(out, c.aggregator.DayActivity(today.AddDate(0, 0, -i)))
		}
		return out
	}).([]models.DayActivity)
	return append([]models.DayActivity(nil), cached...)
}

// TopTags returns the n most used forum tags.
func (c *Cache) TopTags(n int) []models.TagCount {
	key := fmt.Sprintf("tags:%d", n)
	cached := c.load(key, func() any {
		counts := c.aggregator.TagCounts()
		out := make([]models.TagCount, 0, len(counts))
		for tag, count := range counts {
			out = append(out, models.TagCount{Tag: tag, Count: count})
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Count != out[j].Count {
				return out[i].Count > out[j].Count
			}
			return out[i].Tag < out[j].Tag
		})
		if n >= 0 && len(out) > n {
			out = out[:n]
		}
		return out
	}).([]models.TagCount)
	return append([]models.TagCount{}, cached...)
}

func (c *Cache) BehaviorDistribution() models.BehaviorDistribution {
	return c.load("behavior", func() any {
		return c.aggregator.Behavior()
	}).(models.BehaviorDistribution)
}

func topAgents(profiles []models.AgentProfile, n int, orderBy models.AgentSortKey) []models.AgentProfile {
	value := func(p *models.AgentProfile) int64 {
		switch orderBy {
		case models.SortByPosts:
			return p.Posts
		case models.SortByComments:
			return p.Comments
		default:
			return p.TotalMessages
		}
	}
	sort.SliceStable(profiles, func(i, j int) bool {
		vi, vj := value(&profiles[i]), value(&profiles[j])
		if vi != vj {
			return vi > vj
		}
		return profiles[i].AgentID < profiles[j].AgentID
	})
	if n >= 0 && len(profiles) > n {
		profiles = profiles[:n]
	}
	return profiles
}
