package ledger

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS reply_ledger (
		in_reply_to VARCHAR(255) PRIMARY KEY,
		thread_id VARCHAR(255) NOT NULL,
		reply_message_id VARCHAR(255) NOT NULL,
		sent_at BIGINT NOT NULL,
		expires_at BIGINT NOT NULL,
		INDEX idx_reply_ledger_expires_at (expires_at)
	)`,
}

// NewMySQLLedger connects to a MySQL ledger
func NewMySQLLedger(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLLedger, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	return newSQLLedger(db, "mysql", mysqlSchema, logger, cleanupFreq)
}
