package ledger

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS reply_ledger (
		in_reply_to TEXT PRIMARY KEY,
		thread_id TEXT NOT NULL,
		reply_message_id TEXT NOT NULL,
		sent_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reply_ledger_expires_at ON reply_ledger(expires_at)`,
}

// NewSQLiteLedger opens or creates a SQLite ledger at dbPath
func NewSQLiteLedger(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLLedger, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	return newSQLLedger(db, "sqlite3", sqliteSchema, logger, cleanupFreq)
}
