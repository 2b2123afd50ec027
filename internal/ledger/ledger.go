// Package ledger tracks which messages have already been folded into the aggregates.
package ledger

import (
	"sync"

	"agentwatch/internal/models"

	"go.uber.org/zap"
)

// Ledger is the set of known (type, id) message keys. It lives in memory and
// is rebuilt from the persisted message log at startup; membership checks are O(1).
type Ledger struct {
	mu     sync.RWMutex
	known  map[models.MessageKey]struct{}
	logger *zap.Logger
}

func New(logger *zap.Logger) *Ledger {
	return &Ledger{
		known:  make(map[models.MessageKey]struct{}),
		logger: logger,
	}
}

func (l *Ledger) IsKnown(key models.MessageKey) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.known[key]
	return ok
}

// Admit marks key as seen and reports whether it was new. Admitting a known key is a no-op.
func (l *Ledger) Admit(key models.MessageKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.known[key]; ok {
		return false
	}
	l.known[key] = struct{}{}
	return true
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.known)
}

// Reset forgets every key, ahead of a rebuild.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.known = make(map[models.MessageKey]struct{})
	l.mu.Unlock()
	l.logger.Debug("Ledger reset")
}
