package worker

import (
	"context"
	"path/filepath"
	"testing"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/services"
	"bilancio/internal/sheets/memory"
	"bilancio/internal/storage"
)

func newAuditFixture(t *testing.T) (*storage.SQLiteRepository, *services.LedgerService, core.User) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "bilancio.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	users := services.NewUserService(repo, 4)
	u, err := users.Register(context.Background(), services.RegisterParams{
		Username: "auditee",
		Email:    "auditee@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return repo, services.NewLedgerService(repo, nil), u
}

func incomeTagID(t *testing.T, ledger *services.LedgerService, userID int64) int64 {
	t.Helper()
	tags, err := ledger.ListTags(context.Background(), userID)
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}
	for _, tag := range tags {
		if tag.Kind == core.Income {
			return tag.ID
		}
	}
	t.Fatal("no income tag")
	return 0
}

func TestAuditUserClean(t *testing.T) {
	repo, ledger, u := newAuditFixture(t)
	ctx := context.Background()

	_, err := ledger.CreateTransaction(ctx, services.CreateTransactionParams{
		UserID: u.ID,
		TagID:  incomeTagID(t, ledger, u.ID),
		Value:  core.Money{Cents: 12345},
		Date:   core.NewDate(2024, 5, 20),
		Time:   core.ClockTime{Hour: 12},
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	w := NewAuditWorker(repo, nil, 0)
	drifts, err := w.AuditUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(drifts) != 0 {
		t.Fatalf("expected clean audit, got %v", drifts)
	}
}

func TestAuditUserDetectsTagDrift(t *testing.T) {
	repo, ledger, u := newAuditFixture(t)
	ctx := context.Background()
	tagID := incomeTagID(t, ledger, u.ID)

	_, err := ledger.CreateTransaction(ctx, services.CreateTransactionParams{
		UserID: u.ID,
		TagID:  tagID,
		Value:  core.Money{Cents: 5000},
		Date:   core.NewDate(2024, 5, 20),
		Time:   core.ClockTime{Hour: 12},
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	// Tamper with the cached total behind the coordinator's back
	if err := repo.Queries().AdjustTagValue(ctx, tagID, 777); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	w := NewAuditWorker(repo, nil, 0)
	drifts, err := w.AuditUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(drifts) != 1 {
		t.Fatalf("expected 1 drift, got %v", drifts)
	}
	d := drifts[0]
	if d.Kind != "tag" || d.TagID != tagID || d.CachedCents != 5777 || d.LedgerCents != 5000 {
		t.Fatalf("unexpected drift: %+v", d)
	}
}

func TestAuditUserDetectsSummaryDrift(t *testing.T) {
	repo, ledger, u := newAuditFixture(t)
	ctx := context.Background()

	_, err := ledger.CreateTransaction(ctx, services.CreateTransactionParams{
		UserID: u.ID,
		TagID:  incomeTagID(t, ledger, u.ID),
		Value:  core.Money{Cents: 5000},
		Date:   core.NewDate(2024, 5, 20),
		Time:   core.ClockTime{Hour: 12},
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	if err := repo.Queries().AdjustMonthSummary(ctx, u.ID, 5, 2024, core.Income, 100); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	w := NewAuditWorker(repo, nil, 0)
	drifts, err := w.AuditUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(drifts) != 1 {
		t.Fatalf("expected 1 drift, got %v", drifts)
	}
	d := drifts[0]
	if d.Kind != "month_summary" || d.Month != 5 || d.Year != 2024 || d.CachedCents != 5100 || d.LedgerCents != 5000 {
		t.Fatalf("unexpected drift: %+v", d)
	}
}

func TestHandleLedgerEventExportsSummaries(t *testing.T) {
	repo, ledger, u := newAuditFixture(t)
	ctx := context.Background()

	_, err := ledger.CreateTransaction(ctx, services.CreateTransactionParams{
		UserID: u.ID,
		TagID:  incomeTagID(t, ledger, u.ID),
		Value:  core.Money{Cents: 9000},
		Date:   core.NewDate(2024, 3, 1),
		Time:   core.ClockTime{Hour: 7, Minute: 45},
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	exporter := memory.New()
	w := NewAuditWorker(repo, exporter, 0)

	ev := amqp.NewLedgerEvent(amqp.EventTransactionCreated, u.ID)
	if err := w.HandleLedgerEvent(ctx, ev); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	exported := exporter.Exported(u.ID)
	if len(exported) != 1 {
		t.Fatalf("expected 1 exported summary, got %d", len(exported))
	}
	if exported[0].Income.Cents != 9000 || exported[0].Month != 3 {
		t.Fatalf("unexpected export: %+v", exported[0])
	}
}

func TestAuditAllSweepsEveryUser(t *testing.T) {
	repo, ledger, u := newAuditFixture(t)
	ctx := context.Background()
	tagID := incomeTagID(t, ledger, u.ID)

	if err := repo.Queries().AdjustTagValue(ctx, tagID, 42); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	// The sweep logs drift per-user and never fails the run over it
	w := NewAuditWorker(repo, nil, 1)
	if err := w.AuditAll(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
}
