package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bilancio/internal/core"
)

type CreateTagParams struct {
	UserID int64
	Name   string
	Kind   core.Kind
}

func (q *Queries) CreateTag(ctx context.Context, arg CreateTagParams) (core.Tag, error) {
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO tags (user_id, name, kind, value_cents) VALUES (?, ?, ?, 0) RETURNING id`,
		arg.UserID, arg.Name, arg.Kind)

	t := core.Tag{UserID: arg.UserID, Name: arg.Name, Kind: arg.Kind}
	if err := row.Scan(&t.ID); err != nil {
		return core.Tag{}, fmt.Errorf("insert tag: %w", err)
	}
	return t, nil
}

func (q *Queries) GetTag(ctx context.Context, id int64) (core.Tag, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, kind, value_cents FROM tags WHERE id = ?`, id)
	return scanTag(row)
}

// GetTagForUser looks a tag up by id scoped to its owner, so a caller can
// never read or mutate another user's tag.
func (q *Queries) GetTagForUser(ctx context.Context, id, userID int64) (core.Tag, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, kind, value_cents FROM tags WHERE id = ? AND user_id = ?`,
		id, userID)
	return scanTag(row)
}

func (q *Queries) GetTagByName(ctx context.Context, userID int64, name string) (core.Tag, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, kind, value_cents FROM tags WHERE user_id = ? AND name = ?`,
		userID, name)
	return scanTag(row)
}

func scanTag(row *sql.Row) (core.Tag, error) {
	var t core.Tag
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Kind, &t.Value.Cents); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Tag{}, core.E(core.KindNotFound, "tag not found")
		}
		return core.Tag{}, fmt.Errorf("get tag: %w", err)
	}
	return t, nil
}

func (q *Queries) ListTags(ctx context.Context, userID int64) ([]core.Tag, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, user_id, name, kind, value_cents FROM tags WHERE user_id = ? ORDER BY id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []core.Tag
	for rows.Next() {
		var t core.Tag
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Kind, &t.Value.Cents); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// AdjustTagValue atomically adds delta to the tag's running total. A single
// UPDATE statement, never read-modify-write, so concurrent adjustments
// serialize in the storage layer. No lower bound: the deletion path may
// drive a total below zero transiently before cleanup.
func (q *Queries) AdjustTagValue(ctx context.Context, id, deltaCents int64) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE tags SET value_cents = value_cents + ? WHERE id = ?`, deltaCents, id)
	if err != nil {
		return fmt.Errorf("adjust tag value: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust tag value rows: %w", err)
	}
	if n == 0 {
		return core.Ef(core.KindNotFound, "tag %d not found", id)
	}
	return nil
}

func (q *Queries) DeleteTag(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete tag rows: %w", err)
	}
	if n == 0 {
		return core.Ef(core.KindNotFound, "tag %d not found", id)
	}
	return nil
}

// SeedDefaultTag inserts a default tag if the user does not already have one
// with that name. Repeated seeding calls are safe.
func (q *Queries) SeedDefaultTag(ctx context.Context, userID int64, name string, kind core.Kind) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO tags (user_id, name, kind, value_cents)
		 SELECT ?, ?, ?, 0
		 WHERE NOT EXISTS (SELECT 1 FROM tags WHERE user_id = ? AND name = ?)`,
		userID, name, kind, userID, name)
	if err != nil {
		return fmt.Errorf("seed default tag %q: %w", name, err)
	}
	return nil
}
