package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

// Default catch-all tags, one per kind, seeded at registration. They absorb
// the transactions of deleted tags and can never be deleted themselves.
const (
	DefaultIncomeTag  = "other-income"
	DefaultExpenseTag = "other-expense"
)

type (
	// Kind classifies a tag as income or expense. Transactions inherit the
	// kind of the tag they point at; it is not stored on the transaction row.
	Kind string

	Date struct {
		time.Time
	}

	// ClockTime is a wall-clock HH:MM value with no date attached.
	ClockTime struct {
		Hour   int
		Minute int
	}

	Money struct {
		Cents int64
	}

	User struct {
		ID           int64
		Username     string
		Email        string
		PasswordHash string
	}

	// Tag is a user-owned category with a cached running total of every
	// transaction currently pointing at it.
	Tag struct {
		ID     int64
		UserID int64
		Name   string
		Kind   Kind
		Value  Money
	}

	// Transaction is a single dated money movement linked to exactly one tag.
	// Value is a positive magnitude; income-vs-expense comes from the tag.
	Transaction struct {
		ID     int64
		UserID int64
		TagID  int64
		Value  Money
		Date   Date
		Time   ClockTime
		Note   string
	}

	// MonthSummary is the cached per-user income/expense aggregate for one
	// calendar month. Rows are created lazily on the first transaction that
	// touches the month.
	MonthSummary struct {
		ID      int64
		UserID  int64
		Month   int
		Year    int
		Income  Money
		Expense Money
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidTime   = errors.New("invalid time")
	ErrInvalidKind   = errors.New("kind must be 'income' or 'expense'")
	ErrEmptyTagName  = errors.New("empty tag name")
	ErrNoteTooLong   = errors.New("note too long (max 255 characters)")
)

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

// DefaultTagName returns the protected catch-all tag name for a kind.
func DefaultTagName(k Kind) string {
	if k == Income {
		return DefaultIncomeTag
	}
	return DefaultExpenseTag
}

// IsDefaultTag reports whether a tag name is one of the two protected
// defaults. Matching is by name convention, the same way they are seeded.
func IsDefaultTag(name string) bool {
	return name == DefaultIncomeTag || name == DefaultExpenseTag
}

// NewDate creates a Date from year, month, day at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Month returns the month as an int in [1,12].
func (d Date) Month() int {
	return int(d.Time.Month())
}

func (d Date) Year() int {
	return d.Time.Year()
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

// ParseClockTime parses an HH:MM string in 24-hour form.
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return ClockTime{}, ErrInvalidTime
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c ClockTime) Validate() error {
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 {
		return ErrInvalidTime
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Tag) Validate() error {
	if len(strings.TrimSpace(t.Name)) == 0 {
		return ErrEmptyTagName
	}
	if len(t.Name) > 100 {
		return errors.New("tag name too long (max 100 characters)")
	}
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Value.Validate(); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if err := t.Time.Validate(); err != nil {
		return err
	}
	if len(t.Note) > 255 {
		return ErrNoteTooLong
	}
	return nil
}
