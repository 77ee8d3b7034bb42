package core

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-06-15")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.Year() != 2024 || d.Month() != 6 || d.Day() != 15 {
		t.Fatalf("unexpected parts: %d-%d-%d", d.Year(), d.Month(), d.Day())
	}
	if d.String() != "2024-06-15" {
		t.Fatalf("round trip: %q", d.String())
	}

	for _, bad := range []string{"", "15/06/2024", "2024-13-01", "yesterday"} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("%q expected error", bad)
		}
	}
}

func TestParseClockTime(t *testing.T) {
	ct, err := ParseClockTime("09:30")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if ct.Hour != 9 || ct.Minute != 30 {
		t.Fatalf("unexpected parts: %+v", ct)
	}
	if ct.String() != "09:30" {
		t.Fatalf("round trip: %q", ct.String())
	}

	for _, bad := range []string{"", "9:30pm", "25:00", "12:61"} {
		if _, err := ParseClockTime(bad); err == nil {
			t.Fatalf("%q expected error", bad)
		}
	}
}

func TestKindValid(t *testing.T) {
	if !Income.Valid() || !Expense.Valid() {
		t.Fatal("expected income and expense to be valid")
	}
	if Kind("transfer").Valid() {
		t.Fatal("expected unknown kind to be invalid")
	}
}

func TestDefaultTags(t *testing.T) {
	if DefaultTagName(Income) != DefaultIncomeTag {
		t.Fatalf("income default: %q", DefaultTagName(Income))
	}
	if DefaultTagName(Expense) != DefaultExpenseTag {
		t.Fatalf("expense default: %q", DefaultTagName(Expense))
	}
	if !IsDefaultTag("other-income") || !IsDefaultTag("other-expense") {
		t.Fatal("expected default names to be recognized")
	}
	if IsDefaultTag("groceries") {
		t.Fatal("expected regular name to not be a default")
	}
}

func TestTagValidate(t *testing.T) {
	good := Tag{Name: "groceries", Kind: Expense}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Tag{
		{Name: "", Kind: Expense},
		{Name: "   ", Kind: Income},
		{Name: "groceries", Kind: Kind("other")},
	}
	for i, tag := range bads {
		if err := tag.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Value: Money{Cents: 100},
		Date:  NewDate(2024, 6, 15),
		Time:  ClockTime{Hour: 12, Minute: 0},
		Note:  "lunch",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{Value: Money{Cents: 0}, Date: NewDate(2024, 6, 15)},
		{Value: Money{Cents: -100}, Date: NewDate(2024, 6, 15)},
		{Value: Money{Cents: 100}, Date: Date{Time: time.Time{}}},
		{Value: Money{Cents: 100}, Date: NewDate(2024, 6, 15), Time: ClockTime{Hour: 24}},
	}
	for i, tr := range bads {
		if err := tr.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
