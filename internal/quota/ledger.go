// internal/quota/ledger.go
package quota

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/DylanCa/ideaboard-api-sub001/internal/model"
)

// LedgerStore is the slice of the persistence layer the ledger writes to.
// Both streams are append-only.
type LedgerStore interface {
	InsertQuotaLedgerEntry(ctx context.Context, entry model.QuotaLedgerEntry) error
	InsertUsageLog(ctx context.Context, log model.UsageLog) error
}

// Ledger records the cost of every remote call as an append-only quota
// ledger entry plus a usage log attributed to the acting user. Recording
// must never fail the caller's main operation, so failures here are logged
// and swallowed; this is the only component allowed to do that.
type Ledger struct {
	db        LedgerStore
	logger    *slog.Logger
	userID    string
	usageType model.UsageType
}

// NewLedger attributes all recorded calls to userID under the given usage
// type.
func NewLedger(db LedgerStore, logger *slog.Logger, userID string, usageType model.UsageType) *Ledger {
	return &Ledger{
		db:        db,
		logger:    logger,
		userID:    userID,
		usageType: usageType,
	}
}

// RecordCall appends the ledger entry and its usage log. Implements
// github.CallRecorder.
func (l *Ledger) RecordCall(ctx context.Context, entry model.QuotaLedgerEntry) {
	if err := l.db.InsertQuotaLedgerEntry(ctx, entry); err != nil {
		l.logger.Error("Failed to record quota ledger entry",
			"query", entry.QueryName, "cost", entry.Cost, "error", err)
		return
	}

	log := model.UsageLog{
		UserID:          l.userID,
		RepositoryID:    sql.NullInt64{},
		UsageType:       l.usageType,
		PointsUsed:      entry.Cost,
		PointsRemaining: entry.RemainingPoints,
		CreatedAt:       entry.ExecutedAt,
	}
	if err := l.db.InsertUsageLog(ctx, log); err != nil {
		l.logger.Error("Failed to record usage log",
			"user", l.userID, "query", entry.QueryName, "error", err)
	}
}
