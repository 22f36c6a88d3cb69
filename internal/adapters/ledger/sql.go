package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mikey/llm-spam-replier/internal/core"
	"go.uber.org/zap"
)

// SQLLedger stores replies in a SQL database. Timestamps are unix seconds so
// the same queries serve SQLite and MySQL.
type SQLLedger struct {
	db          *sql.DB
	driver      string
	logger      *zap.Logger
	cleanupFreq time.Duration
	now         func() time.Time
	stopCh      chan struct{}
	stopOnce    sync.Once
}

func newSQLLedger(db *sql.DB, driver string, schema []string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLLedger, error) {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create %s schema: %w", driver, err)
		}
	}

	l := &SQLLedger{
		db:          db,
		driver:      driver,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		now:         time.Now,
		stopCh:      make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go runCleanup(l, logger, cleanupFreq, l.stopCh)
	}

	return l, nil
}

// Get retrieves the entry recorded for messageID
func (l *SQLLedger) Get(ctx context.Context, messageID string) (*core.LedgerEntry, error) {
	var entry core.LedgerEntry
	var sentAt, expiresAt int64

	err := l.db.QueryRowContext(ctx, `
		SELECT in_reply_to, thread_id, reply_message_id, sent_at, expires_at
		FROM reply_ledger
		WHERE in_reply_to = ?
	`, messageID).Scan(&entry.InReplyTo, &entry.ThreadID, &entry.ReplyMessageID, &sentAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}

	entry.SentAt = time.Unix(sentAt, 0)
	entry.ExpiresAt = time.Unix(expiresAt, 0)
	if l.now().After(entry.ExpiresAt) {
		return nil, ErrExpired
	}

	return &entry, nil
}

// Set stores an entry
func (l *SQLLedger) Set(ctx context.Context, entry *core.LedgerEntry) error {
	_, err := l.db.ExecContext(ctx, `
		REPLACE INTO reply_ledger (in_reply_to, thread_id, reply_message_id, sent_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, entry.InReplyTo, entry.ThreadID, entry.ReplyMessageID, entry.SentAt.Unix(), entry.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to store ledger entry: %w", err)
	}
	return nil
}

// Delete removes an entry
func (l *SQLLedger) Delete(ctx context.Context, messageID string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM reply_ledger WHERE in_reply_to = ?`, messageID); err != nil {
		return fmt.Errorf("failed to delete ledger entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (l *SQLLedger) Cleanup(ctx context.Context) error {
	result, err := l.db.ExecContext(ctx, `DELETE FROM reply_ledger WHERE expires_at <= ?`, l.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		l.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		l.logger.Debug("Cleaned up expired ledger entries", zap.Int64("expired_count", rowsAffected))
	}
	return nil
}

// Stop stops the background cleanup task and closes the database connection
func (l *SQLLedger) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		if err := l.db.Close(); err != nil {
			l.logger.Error("Failed to close database", zap.String("driver", l.driver), zap.Error(err))
		}
	})
}
