package worker

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/sheets"
	"bilancio/internal/storage"
)

// AuditWorker recomputes cached totals from the transaction ledger and
// reports drift. It never writes to the ledger: the coordinator keeps the
// caches consistent transactionally, so any drift found here points at a bug
// or manual tampering and should be investigated, not silently repaired.
type AuditWorker struct {
	storage   *storage.SQLiteRepository
	exporter  sheets.SummaryExporter
	batchSize int
}

func NewAuditWorker(storage *storage.SQLiteRepository, exporter sheets.SummaryExporter, batchSize int) *AuditWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &AuditWorker{
		storage:   storage,
		exporter:  exporter,
		batchSize: batchSize,
	}
}

// Drift is one cached value that disagrees with the ledger.
type Drift struct {
	UserID int64
	// "tag" or "month_summary"
	Kind        string
	TagID       int64
	Month       int
	Year        int
	CachedCents int64
	LedgerCents int64
}

func (d Drift) String() string {
	if d.Kind == "tag" {
		return fmt.Sprintf("tag %d: cached %d, ledger %d", d.TagID, d.CachedCents, d.LedgerCents)
	}
	return fmt.Sprintf("month %04d-%02d: cached %d, ledger %d", d.Year, d.Month, d.CachedCents, d.LedgerCents)
}

// HandleLedgerEvent audits the user a ledger event belongs to. Events carry
// ids only; the audit re-reads everything from storage.
func (w *AuditWorker) HandleLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"type", ev.Type,
		"user_id", ev.UserID)

	if _, err := w.AuditUser(ctx, ev.UserID); err != nil {
		return fmt.Errorf("audit user %d: %w", ev.UserID, err)
	}

	if w.exporter != nil {
		if err := w.exportSummaries(ctx, ev.UserID); err != nil {
			slog.ErrorContext(ctx, "Failed to export month summaries",
				"user_id", ev.UserID,
				"error", err)
		}
	}
	return nil
}

// AuditUser compares every cached tag total and month summary column for one
// user against sums recomputed from the transaction rows. Drift is logged at
// WARN and returned.
func (w *AuditWorker) AuditUser(ctx context.Context, userID int64) ([]Drift, error) {
	q := w.storage.Queries()
	var drifts []Drift

	tags, err := q.ListTags(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	for _, tag := range tags {
		ledgerSum, err := q.SumTagTransactions(ctx, tag.ID)
		if err != nil {
			return nil, fmt.Errorf("sum tag %d: %w", tag.ID, err)
		}
		if tag.Value.Cents != ledgerSum {
			drifts = append(drifts, Drift{
				UserID:      userID,
				Kind:        "tag",
				TagID:       tag.ID,
				CachedCents: tag.Value.Cents,
				LedgerCents: ledgerSum,
			})
		}
	}

	summaries, err := q.ListMonthSummaries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list month summaries: %w", err)
	}
	for _, s := range summaries {
		for _, check := range []struct {
			kind   core.Kind
			cached int64
		}{
			{core.Income, s.Income.Cents},
			{core.Expense, s.Expense.Cents},
		} {
			ledgerSum, err := q.SumMonthByKind(ctx, userID, s.Month, s.Year, check.kind)
			if err != nil {
				return nil, fmt.Errorf("sum month %d/%d: %w", s.Month, s.Year, err)
			}
			if check.cached != ledgerSum {
				drifts = append(drifts, Drift{
					UserID:      userID,
					Kind:        "month_summary",
					Month:       s.Month,
					Year:        s.Year,
					CachedCents: check.cached,
					LedgerCents: ledgerSum,
				})
			}
		}
	}

	for _, d := range drifts {
		slog.WarnContext(ctx, "Cached total drifted from ledger",
			"user_id", d.UserID,
			"kind", d.Kind,
			"detail", d.String())
	}
	if len(drifts) == 0 {
		slog.InfoContext(ctx, "Audit clean", "user_id", userID)
	}
	return drifts, nil
}

// AuditAll sweeps every user. Used by the periodic timer as a backstop for
// missed events.
func (w *AuditWorker) AuditAll(ctx context.Context) error {
	userIDs, err := w.storage.Queries().ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	audited := 0
	drifted := 0
	for _, id := range userIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		drifts, err := w.AuditUser(ctx, id)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to audit user", "user_id", id, "error", err)
			continue
		}
		audited++
		drifted += len(drifts)
		if audited%w.batchSize == 0 {
			slog.InfoContext(ctx, "Audit sweep progress", "audited", audited, "total", len(userIDs))
		}
	}

	slog.InfoContext(ctx, "Audit sweep completed",
		"users", audited,
		"drifts", drifted)
	return nil
}

func (w *AuditWorker) exportSummaries(ctx context.Context, userID int64) error {
	summaries, err := w.storage.Queries().ListMonthSummaries(ctx, userID)
	if err != nil {
		return fmt.Errorf("list month summaries: %w", err)
	}
	return w.exporter.ExportMonthSummaries(ctx, userID, summaries)
}
