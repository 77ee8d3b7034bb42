package services

import (
	"context"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/storage"
)

// LedgerService is the coordinator for the three denormalized views:
// the transaction ledger, per-tag running totals, and per-month
// income/expense summaries. Every mutation runs inside a single storage
// transaction so the views only ever move together; all validation happens
// before the first write.
type LedgerService struct {
	repo   *storage.SQLiteRepository
	events *amqp.Client
}

func NewLedgerService(repo *storage.SQLiteRepository, events *amqp.Client) *LedgerService {
	return &LedgerService{
		repo:   repo,
		events: events,
	}
}

type CreateTransactionParams struct {
	UserID int64
	TagID  int64
	Value  core.Money
	Date   core.Date
	Time   core.ClockTime
	Note   string
}

// CreateTransaction records a money movement and applies its contribution to
// the owning tag's running total and the month bucket for the tag's kind.
func (s *LedgerService) CreateTransaction(ctx context.Context, p CreateTransactionParams) (core.Transaction, error) {
	candidate := core.Transaction{
		UserID: p.UserID,
		TagID:  p.TagID,
		Value:  p.Value,
		Date:   p.Date,
		Time:   p.Time,
		Note:   p.Note,
	}
	if err := candidate.Validate(); err != nil {
		return core.Transaction{}, core.Wrap(core.KindInvalidArgument, "invalid transaction", err)
	}

	var created core.Transaction
	err := s.repo.Tx(ctx, func(q *storage.Queries) error {
		exists, err := q.UserExists(ctx, p.UserID)
		if err != nil {
			return err
		}
		if !exists {
			return core.Ef(core.KindNotFound, "user %d not found", p.UserID)
		}

		tag, err := q.GetTagForUser(ctx, p.TagID, p.UserID)
		if err != nil {
			return err
		}

		created, err = q.CreateTransaction(ctx, storage.CreateTransactionParams{
			UserID:     p.UserID,
			TagID:      p.TagID,
			ValueCents: p.Value.Cents,
			Date:       p.Date,
			Time:       p.Time,
			Note:       p.Note,
		})
		if err != nil {
			return err
		}

		return s.applyContribution(ctx, q, contribution{
			userID: p.UserID,
			tagID:  tag.ID,
			kind:   tag.Kind,
			cents:  p.Value.Cents,
			month:  p.Date.Month(),
			year:   p.Date.Year(),
		})
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction created",
		"transaction_id", created.ID,
		"user_id", created.UserID,
		"tag_id", created.TagID,
		"amount_cents", created.Value.Cents)

	s.publishEvent(ctx, amqp.EventTransactionCreated, created.UserID, created.ID, created.TagID)
	return created, nil
}

// DeleteTransaction removes a money movement and reverses its contribution.
// The month bucket decrement clamps at zero in the store.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64) error {
	var deleted core.Transaction
	err := s.repo.Tx(ctx, func(q *storage.Queries) error {
		tx, err := q.GetTransaction(ctx, id)
		if err != nil {
			return err
		}

		// Defensive: the relink-on-delete policy keeps every transaction on a
		// live tag, so a missing tag here means the stores already diverged.
		tag, err := q.GetTagForUser(ctx, tx.TagID, tx.UserID)
		if err != nil {
			if core.KindOf(err) == core.KindNotFound {
				return core.Ef(core.KindInvalidArgument,
					"transaction %d references missing tag %d", tx.ID, tx.TagID)
			}
			return err
		}

		if err := q.DeleteTransaction(ctx, tx.ID); err != nil {
			return err
		}

		deleted = tx
		return s.reverseContribution(ctx, q, contribution{
			userID: tx.UserID,
			tagID:  tag.ID,
			kind:   tag.Kind,
			cents:  tx.Value.Cents,
			month:  tx.Date.Month(),
			year:   tx.Date.Year(),
		})
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction deleted",
		"transaction_id", deleted.ID,
		"user_id", deleted.UserID,
		"amount_cents", deleted.Value.Cents)

	s.publishEvent(ctx, amqp.EventTransactionDeleted, deleted.UserID, deleted.ID, deleted.TagID)
	return nil
}

// UpdateTransactionParams carries a partial update: nil fields keep their
// stored values.
type UpdateTransactionParams struct {
	Value *core.Money
	Date  *core.Date
	Time  *core.ClockTime
	Note  *string
	TagID *int64
}

// UpdateTransaction merges the provided fields over the stored row, then
// reconciles the cached totals. Two shapes:
//
// Tag unchanged: a single diff (new value minus old) lands on the tag total
// and on the OLD month's bucket — even when the date moved. The diff is
// never migrated to the new month's bucket; that asymmetry is inherited
// behavior and callers relying on month summaries after a cross-month value
// edit will observe it.
//
// Tag changed: the old contribution is fully reversed and the new one fully
// applied, each through the same helpers the create and delete paths use.
func (s *LedgerService) UpdateTransaction(ctx context.Context, id int64, p UpdateTransactionParams) (core.Transaction, error) {
	var updated core.Transaction
	err := s.repo.Tx(ctx, func(q *storage.Queries) error {
		old, err := q.GetTransaction(ctx, id)
		if err != nil {
			return err
		}

		oldTag, err := q.GetTagForUser(ctx, old.TagID, old.UserID)
		if err != nil {
			if core.KindOf(err) == core.KindNotFound {
				return core.Ef(core.KindInvalidArgument,
					"transaction %d references missing tag %d", old.ID, old.TagID)
			}
			return err
		}

		// Keep-if-not-provided merge
		merged := old
		if p.Value != nil {
			merged.Value = *p.Value
		}
		if p.Date != nil {
			merged.Date = *p.Date
		}
		if p.Time != nil {
			merged.Time = *p.Time
		}
		if p.Note != nil {
			merged.Note = *p.Note
		}
		if p.TagID != nil {
			merged.TagID = *p.TagID
		}
		if err := merged.Validate(); err != nil {
			return core.Wrap(core.KindInvalidArgument, "invalid transaction update", err)
		}

		newTag := oldTag
		if merged.TagID != old.TagID {
			newTag, err = q.GetTagForUser(ctx, merged.TagID, old.UserID)
			if err != nil {
				return err
			}
		}

		if err := q.UpdateTransaction(ctx, storage.UpdateTransactionParams{
			ID:         old.ID,
			TagID:      merged.TagID,
			ValueCents: merged.Value.Cents,
			Date:       merged.Date,
			Time:       merged.Time,
			Note:       merged.Note,
		}); err != nil {
			return err
		}

		if merged.TagID == old.TagID {
			diff := merged.Value.Cents - old.Value.Cents
			if diff == 0 {
				updated = merged
				return nil
			}
			if err := q.AdjustTagValue(ctx, oldTag.ID, diff); err != nil {
				return err
			}
			if err := q.EnsureMonthSummary(ctx, old.UserID, old.Date.Month(), old.Date.Year()); err != nil {
				return err
			}
			if err := q.AdjustMonthSummary(ctx, old.UserID, old.Date.Month(), old.Date.Year(), oldTag.Kind, diff); err != nil {
				return err
			}
			updated = merged
			return nil
		}

		if err := s.reverseContribution(ctx, q, contribution{
			userID: old.UserID,
			tagID:  oldTag.ID,
			kind:   oldTag.Kind,
			cents:  old.Value.Cents,
			month:  old.Date.Month(),
			year:   old.Date.Year(),
		}); err != nil {
			return err
		}
		if err := s.applyContribution(ctx, q, contribution{
			userID: old.UserID,
			tagID:  newTag.ID,
			kind:   newTag.Kind,
			cents:  merged.Value.Cents,
			month:  merged.Date.Month(),
			year:   merged.Date.Year(),
		}); err != nil {
			return err
		}
		updated = merged
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction updated",
		"transaction_id", updated.ID,
		"user_id", updated.UserID,
		"tag_id", updated.TagID,
		"amount_cents", updated.Value.Cents)

	s.publishEvent(ctx, amqp.EventTransactionUpdated, updated.UserID, updated.ID, updated.TagID)
	return updated, nil
}

// CreateTag adds a user-defined category with a zero running total.
func (s *LedgerService) CreateTag(ctx context.Context, userID int64, name string, kind core.Kind) (core.Tag, error) {
	candidate := core.Tag{UserID: userID, Name: name, Kind: kind}
	if err := candidate.Validate(); err != nil {
		return core.Tag{}, core.Wrap(core.KindInvalidArgument, "invalid tag", err)
	}

	var created core.Tag
	err := s.repo.Tx(ctx, func(q *storage.Queries) error {
		exists, err := q.UserExists(ctx, userID)
		if err != nil {
			return err
		}
		if !exists {
			return core.Ef(core.KindNotFound, "user %d not found", userID)
		}

		if _, err := q.GetTagByName(ctx, userID, name); err == nil {
			return core.Ef(core.KindConflict, "tag %q already exists for this user", name)
		} else if core.KindOf(err) != core.KindNotFound {
			return err
		}

		created, err = q.CreateTag(ctx, storage.CreateTagParams{UserID: userID, Name: name, Kind: kind})
		return err
	})
	if err != nil {
		return core.Tag{}, err
	}

	slog.InfoContext(ctx, "Tag created",
		"tag_id", created.ID,
		"user_id", created.UserID,
		"kind", created.Kind)
	return created, nil
}

// DeleteTag removes a non-default tag after migrating everything it owns to
// the same-kind default: its transactions are bulk-reassigned and its entire
// running total is absorbed. Month summaries are untouched — both tags share
// a kind, so every (user, month, year, kind) bucket keeps its value.
func (s *LedgerService) DeleteTag(ctx context.Context, userID, tagID int64) error {
	var moved int64
	err := s.repo.Tx(ctx, func(q *storage.Queries) error {
		tag, err := q.GetTagForUser(ctx, tagID, userID)
		if err != nil {
			return err
		}

		if core.IsDefaultTag(tag.Name) {
			return core.Ef(core.KindForbidden, "default tag %q cannot be deleted", tag.Name)
		}

		fallback, err := q.GetTagByName(ctx, userID, core.DefaultTagName(tag.Kind))
		if err != nil {
			if core.KindOf(err) == core.KindNotFound {
				return core.Ef(core.KindFailedPrecondition,
					"no default %s tag to absorb transactions; seed defaults first", tag.Kind)
			}
			return err
		}

		moved, err = q.ReassignTransactions(ctx, tag.ID, fallback.ID)
		if err != nil {
			return err
		}
		if err := q.AdjustTagValue(ctx, fallback.ID, tag.Value.Cents); err != nil {
			return err
		}
		return q.DeleteTag(ctx, tag.ID)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Tag deleted with migration",
		"tag_id", tagID,
		"user_id", userID,
		"transactions_moved", moved)

	s.publishEvent(ctx, amqp.EventTagDeleted, userID, 0, tagID)
	return nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	return s.repo.Queries().GetTransaction(ctx, id)
}

func (s *LedgerService) ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error) {
	return s.repo.Queries().ListTransactions(ctx, userID)
}

func (s *LedgerService) ListTags(ctx context.Context, userID int64) ([]core.Tag, error) {
	return s.repo.Queries().ListTags(ctx, userID)
}

func (s *LedgerService) ListMonthSummaries(ctx context.Context, userID int64) ([]core.MonthSummary, error) {
	return s.repo.Queries().ListMonthSummaries(ctx, userID)
}

// contribution is one transaction's effect on the cached views.
type contribution struct {
	userID int64
	tagID  int64
	kind   core.Kind
	cents  int64
	month  int
	year   int
}

// applyContribution adds a transaction's value to its tag total and month
// bucket, creating the month row lazily. Must run inside a Tx scope.
func (s *LedgerService) applyContribution(ctx context.Context, q *storage.Queries, c contribution) error {
	if err := q.AdjustTagValue(ctx, c.tagID, c.cents); err != nil {
		return err
	}
	if err := q.EnsureMonthSummary(ctx, c.userID, c.month, c.year); err != nil {
		return err
	}
	return q.AdjustMonthSummary(ctx, c.userID, c.month, c.year, c.kind, c.cents)
}

// reverseContribution is applyContribution with the sign flipped; the month
// bucket clamps at zero in the store.
func (s *LedgerService) reverseContribution(ctx context.Context, q *storage.Queries, c contribution) error {
	c.cents = -c.cents
	return s.applyContribution(ctx, q, c)
}

// publishEvent emits a best-effort ledger event after a committed mutation.
// Publish failures are logged, never surfaced: the ledger write already
// succeeded and consumers perform no ledger writes of their own.
func (s *LedgerService) publishEvent(ctx context.Context, typ amqp.EventType, userID, transactionID, tagID int64) {
	if s.events == nil {
		return
	}

	ev := amqp.NewLedgerEvent(typ, userID)
	ev.TransactionID = transactionID
	ev.TagID = tagID

	if err := s.events.PublishLedgerEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", typ,
			"user_id", userID,
			"error", err)
	}
}

// Close releases the service's storage and messaging connections.
func (s *LedgerService) Close() error {
	var firstErr error
	if s.events != nil {
		if err := s.events.Close(); err != nil {
			firstErr = err
		}
	}
	if s.repo != nil {
		if err := s.repo.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
