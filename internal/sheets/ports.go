package sheets

import (
	"context"

	"bilancio/internal/core"
)

// Ports for outbound report adapters.
type (
	// SummaryExporter mirrors a user's month summaries to an external report.
	// Exports are best-effort and read-only with respect to the ledger.
	SummaryExporter interface {
		ExportMonthSummaries(ctx context.Context, userID int64, summaries []core.MonthSummary) error
	}
)
