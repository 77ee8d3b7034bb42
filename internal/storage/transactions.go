package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bilancio/internal/core"
)

type CreateTransactionParams struct {
	UserID     int64
	TagID      int64
	ValueCents int64
	Date       core.Date
	Time       core.ClockTime
	Note       string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO transactions (user_id, tag_id, value_cents, date, time, note)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		arg.UserID, arg.TagID, arg.ValueCents, arg.Date.String(), arg.Time.String(), arg.Note)

	t := core.Transaction{
		UserID: arg.UserID,
		TagID:  arg.TagID,
		Value:  core.Money{Cents: arg.ValueCents},
		Date:   arg.Date,
		Time:   arg.Time,
		Note:   arg.Note,
	}
	if err := row.Scan(&t.ID); err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return t, nil
}

func (q *Queries) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, user_id, tag_id, value_cents, date, time, note FROM transactions WHERE id = ?`,
		id)
	return scanTransaction(row)
}

func scanTransaction(row *sql.Row) (core.Transaction, error) {
	var (
		t        core.Transaction
		tagID    sql.NullInt64
		date, hm string
	)
	if err := row.Scan(&t.ID, &t.UserID, &tagID, &t.Value.Cents, &date, &hm, &t.Note); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, core.E(core.KindNotFound, "transaction not found")
		}
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return decodeTransaction(t, tagID, date, hm)
}

func decodeTransaction(t core.Transaction, tagID sql.NullInt64, date, hm string) (core.Transaction, error) {
	// tag_id is nullable only transiently, during a tag-deletion migration;
	// any persisted row is expected to carry a resolved tag.
	t.TagID = tagID.Int64

	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("decode transaction %d date %q: %w", t.ID, date, err)
	}
	t.Date = d

	ct, err := core.ParseClockTime(hm)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("decode transaction %d time %q: %w", t.ID, hm, err)
	}
	t.Time = ct
	return t, nil
}

func (q *Queries) ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, user_id, tag_id, value_cents, date, time, note
		 FROM transactions WHERE user_id = ? ORDER BY date, time, id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var (
			t        core.Transaction
			tagID    sql.NullInt64
			date, hm string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &tagID, &t.Value.Cents, &date, &hm, &t.Note); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		decoded, err := decodeTransaction(t, tagID, date, hm)
		if err != nil {
			return nil, err
		}
		txs = append(txs, decoded)
	}
	return txs, rows.Err()
}

type UpdateTransactionParams struct {
	ID         int64
	TagID      int64
	ValueCents int64
	Date       core.Date
	Time       core.ClockTime
	Note       string
}

// UpdateTransaction writes the fully merged row; the service layer resolves
// partial updates before calling it.
func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET tag_id = ?, value_cents = ?, date = ?, time = ?, note = ?
		 WHERE id = ?`,
		arg.TagID, arg.ValueCents, arg.Date.String(), arg.Time.String(), arg.Note, arg.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction rows: %w", err)
	}
	if n == 0 {
		return core.Ef(core.KindNotFound, "transaction %d not found", arg.ID)
	}
	return nil
}

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction rows: %w", err)
	}
	if n == 0 {
		return core.Ef(core.KindNotFound, "transaction %d not found", id)
	}
	return nil
}

// ReassignTransactions bulk-moves every transaction from one tag to another.
// Returns the number of rows moved.
func (q *Queries) ReassignTransactions(ctx context.Context, fromTagID, toTagID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET tag_id = ? WHERE tag_id = ?`, toTagID, fromTagID)
	if err != nil {
		return 0, fmt.Errorf("reassign transactions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reassign transactions rows: %w", err)
	}
	return n, nil
}

// SumTagTransactions recomputes a tag's total from the ledger. Audit only;
// live updates go through AdjustTagValue.
func (q *Queries) SumTagTransactions(ctx context.Context, tagID int64) (int64, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(value_cents), 0) FROM transactions WHERE tag_id = ?`, tagID)
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum tag transactions: %w", err)
	}
	return sum, nil
}

// SumMonthByKind recomputes one month bucket from the ledger, joining on the
// tag to resolve each transaction's kind. Audit only.
func (q *Queries) SumMonthByKind(ctx context.Context, userID int64, month, year int, kind core.Kind) (int64, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(t.value_cents), 0)
		 FROM transactions t
		 JOIN tags g ON g.id = t.tag_id
		 WHERE t.user_id = ?
		   AND g.kind = ?
		   AND CAST(strftime('%m', t.date) AS INTEGER) = ?
		   AND CAST(strftime('%Y', t.date) AS INTEGER) = ?`,
		userID, kind, month, year)
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum month by kind: %w", err)
	}
	return sum, nil
}
