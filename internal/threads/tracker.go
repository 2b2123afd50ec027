// Package threads derives reply context for comments from the threads they belong to.
package threads

import (
	"fmt"
	"sync"
	"time"

	"agentwatch/internal/models"
	"agentwatch/internal/repository"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Context is the thread-derived part of a scored message.
type Context struct {
	ReplyToAgent        *string
	ThreadDepth         int
	ResponseTimeSeconds *int64
}

type thread struct {
	authorName string
	hasPost    bool
	seen       int
	lastAt     time.Time
}

// Tracker keeps a bounded LRU of recently active threads keyed by post id.
// Threads missing from the cache are rebuilt from the message log.
type Tracker struct {
	mu       sync.Mutex
	cache    *lru.Cache[int64, *thread]
	messages repository.MessageRepository
	logger   *zap.Logger
}

func NewTracker(capacity int, messages repository.MessageRepository, logger *zap.Logger) (*Tracker, error) {
	cache, err := lru.New[int64, *thread](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create thread cache: %w", err)
	}
	return &Tracker{cache: cache, messages: messages, logger: logger}, nil
}

// Resolve computes the thread context for msg without recording it.
func (t *Tracker) Resolve(msg *models.RawMessage) (Context, error) {
	if msg.Type == models.MessageTypePost {
		return Context{ThreadDepth: 1}, nil
	}
	if msg.PostID == nil {
		return Context{ThreadDepth: 1}, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	th, err := t.load(*msg.PostID)
	if err != nil {
		return Context{}, err
	}

	ctx := Context{ThreadDepth: th.seen + 1}
	if th.hasPost && th.authorName != msg.AgentName {
		author := th.authorName
		ctx.ReplyToAgent = &author
	}
	if th.seen > 0 {
		gap := int64(msg.CreatedAt.Sub(th.lastAt) / time.Second)
		if gap < 0 {
			gap = 0
		}
		ctx.ResponseTimeSeconds = &gap
	}
	return ctx, nil
}

// Observe records an admitted message in its thread.
func (t *Tracker) Observe(msg *models.Message) {
	postID, ok := threadID(&msg.RawMessage)
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	th, found := t.cache.Get(postID)
	if !found {
		// Not cached: the next Resolve rebuilds it from the log, which already holds msg.
		return
	}
	if msg.Type == models.MessageTypePost {
		th.hasPost = true
		th.authorName = msg.AgentName
	}
	th.seen++
	if msg.CreatedAt.After(th.lastAt) {
		th.lastAt = msg.CreatedAt
	}
}

// Purge drops every cached thread.
func (t *Tracker) Purge() {
	t.mu.Lock()
	t.cache.Purge()
	t.mu.Unlock()
}

func (t *Tracker) load(postID int64) (*thread, error) {
	if th, ok := t.cache.Get(postID); ok {
		return th, nil
	}

	summary, err := t.messages.GetThreadSummary(postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread %d: %w", postID, err)
	}

	th := &thread{seen: summary.Comments}
	if summary.Post != nil {
		th.hasPost = true
		th.authorName = summary.Post.AgentName
		th.seen++
		th.lastAt = summary.Post.CreatedAt
	}
	if summary.LastCommentAt != nil && summary.LastCommentAt.After(th.lastAt) {
		th.lastAt = *summary.LastCommentAt
	}

	if evicted := t.cache.Add(postID, th); evicted {
		t.logger.Debug("Evicted thread from cache", zap.Int64("post_id", postID))
	}
	return th, nil
}

func threadID(msg *models.RawMessage) (int64, bool) {
	if msg.Type == models.MessageTypePost {
		return msg.ID, true
	}
	if msg.PostID == nil {
		return 0, false
	}
	return *msg.PostID, true
}
