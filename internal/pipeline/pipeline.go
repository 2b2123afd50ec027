// Package pipeline runs collection batches: dedupe, classify, persist and fold.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"agentwatch/internal/aggregator"
	"agentwatch/internal/classifier"
	"agentwatch/internal/ledger"
	"agentwatch/internal/models"
	"agentwatch/internal/repository"
	"agentwatch/internal/threads"

	"go.uber.org/zap"
)

// ErrRunInProgress is returned when a collection run is already executing.
var ErrRunInProgress = errors.New("collection run already in progress")

// Source supplies raw messages created after a point in time.
type Source interface {
	Fetch(ctx context.Context, since time.Time) ([]models.RawMessage, error)
}

// Store runs fn against repositories bound to one transaction, committing only
// when fn returns nil. *repository.Repositories implements it.
type Store interface {
	InTx(fn func(tx *repository.Repositories) error) error
}

// Backup receives every admitted message.
type Backup interface {
	Append(msg *models.Message) error
}

// BatchResult summarises one collection run.
type BatchResult struct {
	Received   int `json:"received"`
	Admitted   int `json:"admitted"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
}

// Pipeline serialises collection runs. Folding happens in batch order on the
// calling goroutine; a second concurrent run is rejected with ErrRunInProgress.
type Pipeline struct {
	running atomic.Bool

	ledger     *ledger.Ledger
	tracker    *threads.Tracker
	messages   repository.MessageRepository
	store      Store
	aggregator *aggregator.Aggregator
	backup     Backup
	logger     *zap.Logger
	now        func() time.Time

	mu           sync.RWMutex
	lastModified time.Time
	latest       time.Time
}

// New creates a pipeline. backup may be nil.
func New(
	l *ledger.Ledger,
	tracker *threads.Tracker,
	messages repository.MessageRepository,
	store Store,
	agg *aggregator.Aggregator,
	backup Backup,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		ledger:     l,
		tracker:    tracker,
		messages:   messages,
		store:      store,
		aggregator: agg,
		backup:     backup,
		logger:     logger,
		now:        time.Now,
	}
}

// LastModified is advanced whenever a run admits at least one message.
func (p *Pipeline) LastModified() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastModified
}

// Latest is the newest createdAt among admitted messages, the polling watermark.
func (p *Pipeline) Latest() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// Warm rebuilds the ledger and the message-level counters with one pass over
// the message log, and reloads profiles and edges from their tables.
func (p *Pipeline) Warm(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer p.running.Store(false)

	start := p.now()
	p.ledger.Reset()
	p.tracker.Purge()
	if err := p.aggregator.Load(); err != nil {
		return err
	}
	p.aggregator.ResetCounters()

	var latest time.Time
	err := p.messages.ForEachMessage(func(msg *models.Message) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.ledger.Admit(msg.Key())
		p.aggregator.Count(msg)
		if msg.CreatedAt.After(latest) {
			latest = msg.CreatedAt
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replay message log: %w", err)
	}

	p.mu.Lock()
	p.latest = latest
	p.lastModified = p.now()
	p.mu.Unlock()

	p.logger.Info("Ledger rebuilt from message log",
		zap.Int("messages", p.ledger.Len()),
		zap.Duration("took", p.now().Sub(start)))
	return nil
}

// Ingest runs one collection batch. Messages are processed in the given order.
// A storage failure aborts the batch; messages already admitted stay admitted
// and the failed message leaves no trace, so retrying the batch picks it up.
func (p *Pipeline) Ingest(ctx context.Context, batch []models.RawMessage) (BatchResult, error) {
	result := BatchResult{Received: len(batch)}
	if !p.running.CompareAndSwap(false, true) {
		return result, ErrRunInProgress
	}
	defer p.running.Store(false)

	defer func() {
		if result.Admitted > 0 {
			p.mu.Lock()
			p.lastModified = p.now()
			p.mu.Unlock()
		}
	}()

	for i := range batch {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		raw := batch[i]
		if err := validate(&raw); err != nil {
			p.logger.Warn("Skipping malformed message", zap.Int64("message_id", raw.ID), zap.Error(err))
			result.Skipped++
			continue
		}
		key := raw.Key()
		if p.ledger.IsKnown(key) {
			result.Duplicates++
			continue
		}

		admitted, err := p.admit(&raw)
		if err != nil {
			p.logger.Error("Collection run aborted",
				zap.String("type", string(key.Type)),
				zap.Int64("message_id", key.ID),
				zap.Error(err))
			return result, err
		}
		if !admitted {
			result.Duplicates++
			continue
		}
		result.Admitted++
	}

	p.logger.Info("Collection run finished",
		zap.Int("received", result.Received),
		zap.Int("admitted", result.Admitted),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

func (p *Pipeline) admit(raw *models.RawMessage) (bool, error) {
	raw.CreatedAt = raw.CreatedAt.UTC()
	scores := classifier.Classify(raw.Content)

	thread, err := p.tracker.Resolve(raw)
	if err != nil {
		return false, err
	}

	msg := &models.Message{
		RawMessage:          *raw,
		PureAgentScore:      scores.PureAgentScore,
		HumanControlScore:   scores.HumanControlScore,
		ReasonTags:          scores.ReasonTags,
		ReplyToAgent:        thread.ReplyToAgent,
		ThreadDepth:         thread.ThreadDepth,
		ResponseTimeSeconds: thread.ResponseTimeSeconds,
		IngestedAt:          p.now().UTC(),
	}

	// The log row, the profile and the edge commit together. Memory and the
	// ledger only change after the commit.
	update := p.aggregator.Prepare(msg)
	inserted := false
	err = p.store.InTx(func(tx *repository.Repositories) error {
		var err error
		inserted, err = tx.Messages.SaveMessage(msg)
		if err != nil || !inserted {
			return err
		}
		return aggregator.Persist(update, tx.Agents, tx.Interactions)
	})
	if err != nil {
		return false, err
	}
	if !inserted {
		// Already in the log but not in the ledger, e.g. after a failed warm-up.
		p.ledger.Admit(msg.Key())
		return false, nil
	}

	p.ledger.Admit(msg.Key())
	p.tracker.Observe(msg)
	p.aggregator.Apply(update)

	if p.backup != nil {
		if err := p.backup.Append(msg); err != nil {
			p.logger.Warn("Failed to mirror message to backup", zap.Int64("message_id", msg.ID), zap.Error(err))
		}
	}

	p.mu.Lock()
	if msg.CreatedAt.After(p.latest) {
		p.latest = msg.CreatedAt
	}
	p.mu.Unlock()

	p.logger.Debug("Message admitted",
		zap.String("type", string(msg.Type)),
		zap.Int64("message_id", msg.ID),
		zap.String("agent", msg.AgentName),
		zap.Int("pure_agent_score", msg.PureAgentScore))
	return true, nil
}

func validate(msg *models.RawMessage) error {
	switch {
	case msg.ID == 0:
		return errors.New("missing id")
	case !msg.Type.Valid():
		return fmt.Errorf("unknown type %q", msg.Type)
	case msg.AgentID == 0:
		return errors.New("missing agent id")
	case msg.AgentName == "":
		return errors.New("missing agent name")
	case msg.CreatedAt.IsZero():
		return errors.New("missing createdAt")
	}
	return nil
}
