package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mikey/llm-spam-replier/internal/core"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when no reply is recorded for a message
	ErrNotFound = errors.New("ledger entry not found")
	// ErrExpired is returned when a recorded reply has expired
	ErrExpired = errors.New("ledger entry expired")
)

// MemoryLedger is an in-memory implementation of core.ReplyLedger
type MemoryLedger struct {
	entries     map[string]core.LedgerEntry
	mu          sync.RWMutex
	logger      *zap.Logger
	cleanupFreq time.Duration
	now         func() time.Time
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMemoryLedger creates a new in-memory ledger
func NewMemoryLedger(logger *zap.Logger, cleanupFreq time.Duration) *MemoryLedger {
	l := &MemoryLedger{
		entries:     make(map[string]core.LedgerEntry),
		logger:      logger,
		cleanupFreq: cleanupFreq,
		now:         time.Now,
		stopCh:      make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go runCleanup(l, logger, cleanupFreq, l.stopCh)
	}

	return l
}

// Get retrieves the entry recorded for messageID
func (l *MemoryLedger) Get(ctx context.Context, messageID string) (*core.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.entries[messageID]
	if !ok {
		return nil, ErrNotFound
	}
	if l.now().After(entry.ExpiresAt) {
		return nil, ErrExpired
	}
	return &entry, nil
}

// Set stores an entry
func (l *MemoryLedger) Set(ctx context.Context, entry *core.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[entry.InReplyTo] = *entry
	return nil
}

// Delete removes an entry
func (l *MemoryLedger) Delete(ctx context.Context, messageID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.entries, messageID)
	return nil
}

// Cleanup removes expired entries
func (l *MemoryLedger) Cleanup(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	expiredCount := 0
	for key, entry := range l.entries {
		if now.After(entry.ExpiresAt) {
			delete(l.entries, key)
			expiredCount++
		}
	}

	l.logger.Debug("Cleaned up expired ledger entries", zap.Int("expired_count", expiredCount))
	return nil
}

// Stop stops the background cleanup task
func (l *MemoryLedger) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

type cleaner interface {
	Cleanup(ctx context.Context) error
}

// runCleanup periodically removes expired entries until stopCh is closed
func runCleanup(c cleaner, logger *zap.Logger, freq time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				logger.Error("Failed to clean up ledger", zap.Error(err))
			}
		case <-stopCh:
			return
		}
	}
}

// Ledger is a ReplyLedger holding background resources released by Stop
type Ledger interface {
	core.ReplyLedger
	Stop()
}
