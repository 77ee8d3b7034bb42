package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bilancio/internal/core"
)

func (q *Queries) GetMonthSummary(ctx context.Context, userID int64, month, year int) (core.MonthSummary, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, user_id, month, year, income_cents, expense_cents
		 FROM month_summaries WHERE user_id = ? AND month = ? AND year = ?`,
		userID, month, year)

	var s core.MonthSummary
	if err := row.Scan(&s.ID, &s.UserID, &s.Month, &s.Year, &s.Income.Cents, &s.Expense.Cents); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.MonthSummary{}, core.Ef(core.KindNotFound,
				"month summary %d/%d not found for user %d", month, year, userID)
		}
		return core.MonthSummary{}, fmt.Errorf("get month summary: %w", err)
	}
	return s, nil
}

// EnsureMonthSummary lazily creates the zeroed row for (user, month, year).
// The insert is a no-op when the row already exists, so the call is safe to
// repeat inside the same transactional scope as the adjustment that follows.
func (q *Queries) EnsureMonthSummary(ctx context.Context, userID int64, month, year int) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO month_summaries (user_id, month, year, income_cents, expense_cents)
		 VALUES (?, ?, ?, 0, 0)
		 ON CONFLICT (user_id, month, year) DO NOTHING`,
		userID, month, year)
	if err != nil {
		return fmt.Errorf("ensure month summary: %w", err)
	}
	return nil
}

// AdjustMonthSummary adds delta to the income or expense column depending on
// kind, clamping the result at a floor of zero. The clamp is deliberate
// policy: a stale cache must never dig the aggregate below zero, at the cost
// of losing the true signed correction when a decrement overshoots.
func (q *Queries) AdjustMonthSummary(ctx context.Context, userID int64, month, year int, kind core.Kind, deltaCents int64) error {
	column := "income_cents"
	if kind == core.Expense {
		column = "expense_cents"
	}

	res, err := q.db.ExecContext(ctx,
		`UPDATE month_summaries SET `+column+` = MAX(0, `+column+` + ?)
		 WHERE user_id = ? AND month = ? AND year = ?`,
		deltaCents, userID, month, year)
	if err != nil {
		return fmt.Errorf("adjust month summary: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust month summary rows: %w", err)
	}
	if n == 0 {
		return core.Ef(core.KindNotFound,
			"month summary %d/%d not found for user %d", month, year, userID)
	}
	return nil
}

func (q *Queries) ListMonthSummaries(ctx context.Context, userID int64) ([]core.MonthSummary, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, user_id, month, year, income_cents, expense_cents
		 FROM month_summaries WHERE user_id = ? ORDER BY year, month`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list month summaries: %w", err)
	}
	defer rows.Close()

	var sums []core.MonthSummary
	for rows.Next() {
		var s core.MonthSummary
		if err := rows.Scan(&s.ID, &s.UserID, &s.Month, &s.Year, &s.Income.Cents, &s.Expense.Cents); err != nil {
			return nil, fmt.Errorf("scan month summary: %w", err)
		}
		sums = append(sums, s)
	}
	return sums, rows.Err()
}
