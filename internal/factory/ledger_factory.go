package factory

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mikey/llm-spam-replier/internal/adapters/ledger"
	"github.com/mikey/llm-spam-replier/internal/config"
	"go.uber.org/zap"
)

// LedgerFactory creates reply ledgers based on configuration
type LedgerFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewLedgerFactory creates a new ledger factory
func NewLedgerFactory(cfg *config.Config, logger *zap.Logger) *LedgerFactory {
	return &LedgerFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateReplyLedger creates a reply ledger based on the configuration.
// It returns nil when the ledger is disabled.
func (f *LedgerFactory) CreateReplyLedger() (ledger.Ledger, error) {
	if !f.IsLedgerEnabled() {
		return nil, nil
	}

	ledgerType := f.cfg.GetString("ledger.type")
	cleanupFreq, err := f.cfg.GetDuration("ledger.cleanup_frequency")
	if err != nil {
		return nil, fmt.Errorf("invalid ledger cleanup frequency: %w", err)
	}

	switch ledgerType {
	case "memory":
		return ledger.NewMemoryLedger(f.logger, cleanupFreq), nil
	case "sqlite":
		sqlitePath := f.cfg.GetString("ledger.sqlite_path")
		if err := os.MkdirAll(filepath.Dir(sqlitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return ledger.NewSQLiteLedger(sqlitePath, f.logger, cleanupFreq)
	case "mysql":
		return ledger.NewMySQLLedger(f.cfg.GetString("ledger.mysql_dsn"), f.logger, cleanupFreq)
	default:
		return nil, fmt.Errorf("unsupported ledger type: %s", ledgerType)
	}
}

// GetLedgerTTL returns how long replies are remembered
func (f *LedgerFactory) GetLedgerTTL() (time.Duration, error) {
	return f.cfg.GetDuration("ledger.ttl")
}

// IsLedgerEnabled returns whether the ledger is enabled
func (f *LedgerFactory) IsLedgerEnabled() bool {
	return f.cfg.GetBool("ledger.enabled")
}
