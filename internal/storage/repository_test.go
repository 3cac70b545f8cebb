package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"kitty/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "kitty.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testExpense(payer string, cents int64, date core.Date) core.Expense {
	return core.Expense{
		Date:           date,
		Title:          "test expense",
		Amount:         core.Money{Cents: cents},
		Category:       "Groceries",
		PaymentMethod:  "Card",
		Payer:          payer,
		Responsibility: core.Everyone(),
	}
}

func TestExpenseRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	in := testExpense("Anna", 1234, core.NewDate(2025, 2, 10))
	in.Responsibility = core.Split("Anna", "Marco")
	in.Description = "weekly shop"

	created, err := repo.CreateExpense(ctx, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected assigned id")
	}

	got, err := repo.GetExpense(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != in.Title || got.Amount.Cents != 1234 || got.Date.String() != "2025-02-10" {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
	if got.Responsibility.Encode() != "Anna,Marco" {
		t.Fatalf("responsibility mismatch: %s", got.Responsibility.Encode())
	}
	if got.PeriodID != "" {
		t.Fatalf("new expense must be active, got period %q", got.PeriodID)
	}
}

func TestGetExpenseNotFound(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.GetExpense(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateAndSoftDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.CreateExpense(ctx, testExpense("Anna", 500, core.NewDate(2025, 1, 1)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated := created
	updated.Title = "renamed"
	updated.Amount = core.Money{Cents: 900}
	if err := repo.UpdateExpense(ctx, created.ID, updated); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := repo.GetExpense(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "renamed" || got.Amount.Cents != 900 {
		t.Fatalf("update not applied: %+v", got)
	}

	if err := repo.SoftDeleteExpense(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetExpense(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted expense must not be found, got %v", err)
	}

	active, err := repo.ListActiveExpenses(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active expenses, got %d", len(active))
	}
}

func TestCreatePeriodArchivesExpenses(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	roster := []string{"Anna", "Marco"}

	e1, err := repo.CreateExpense(ctx, testExpense("Anna", 10000, core.NewDate(2025, 1, 5)))
	if err != nil {
		t.Fatalf("create e1: %v", err)
	}
	e2, err := repo.CreateExpense(ctx, testExpense("Marco", 4000, core.NewDate(2025, 1, 20)))
	if err != nil {
		t.Fatalf("create e2: %v", err)
	}
	e3, err := repo.CreateExpense(ctx, testExpense("Anna", 700, core.NewDate(2025, 2, 3)))
	if err != nil {
		t.Fatalf("create e3: %v", err)
	}

	p := core.Period{
		ID:    "period-1",
		Start: core.NewDate(2025, 1, 5),
		End:   core.NewDate(2025, 1, 31),
		Summary: map[string]core.MemberSummary{
			"Anna":  {Paid: core.Money{Cents: 10000}, Share: core.Money{Cents: 7000}},
			"Marco": {Paid: core.Money{Cents: 4000}, Share: core.Money{Cents: 7000}},
		},
		Transfers:  []core.Transfer{{From: "Marco", To: "Anna", Amount: core.Money{Cents: 3000}}},
		ExpenseIDs: []int64{e1.ID, e2.ID},
	}
	if err := repo.CreatePeriod(ctx, p, roster); err != nil {
		t.Fatalf("create period: %v", err)
	}

	active, err := repo.ListActiveExpenses(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].ID != e3.ID {
		t.Fatalf("expected only e3 active, got %+v", active)
	}

	archived, err := repo.ListExpensesByPeriod(ctx, "period-1")
	if err != nil {
		t.Fatalf("list by period: %v", err)
	}
	if len(archived) != 2 {
		t.Fatalf("expected 2 archived, got %d", len(archived))
	}

	got, err := repo.GetPeriod(ctx, "period-1")
	if err != nil {
		t.Fatalf("get period: %v", err)
	}
	if got.Summary["Anna"].Paid.Cents != 10000 || got.Summary["Marco"].Share.Cents != 7000 {
		t.Fatalf("frozen summary mismatch: %+v", got.Summary)
	}
	if len(got.Transfers) != 1 || got.Transfers[0].From != "Marco" {
		t.Fatalf("frozen transfers mismatch: %+v", got.Transfers)
	}
	if len(got.ExpenseIDs) != 2 {
		t.Fatalf("expected 2 archived ids, got %v", got.ExpenseIDs)
	}
}

func TestArchivedExpensesAreImmutable(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e, err := repo.CreateExpense(ctx, testExpense("Anna", 100, core.NewDate(2025, 1, 1)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	p := core.Period{
		ID:         "p1",
		Start:      core.NewDate(2025, 1, 1),
		End:        core.NewDate(2025, 1, 31),
		Summary:    map[string]core.MemberSummary{},
		ExpenseIDs: []int64{e.ID},
	}
	if err := repo.CreatePeriod(ctx, p, []string{"Anna"}); err != nil {
		t.Fatalf("create period: %v", err)
	}

	if err := repo.UpdateExpense(ctx, e.ID, e); !errors.Is(err, ErrExpenseArchived) {
		t.Fatalf("update: expected ErrExpenseArchived, got %v", err)
	}
	if err := repo.SoftDeleteExpense(ctx, e.ID); !errors.Is(err, ErrExpenseArchived) {
		t.Fatalf("delete: expected ErrExpenseArchived, got %v", err)
	}
}

func TestCreatePeriodRollsBackOnConflict(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e, err := repo.CreateExpense(ctx, testExpense("Anna", 100, core.NewDate(2025, 1, 1)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	first := core.Period{
		ID:         "p1",
		Start:      core.NewDate(2025, 1, 1),
		End:        core.NewDate(2025, 1, 31),
		Summary:    map[string]core.MemberSummary{},
		ExpenseIDs: []int64{e.ID},
	}
	if err := repo.CreatePeriod(ctx, first, []string{"Anna"}); err != nil {
		t.Fatalf("create period: %v", err)
	}

	// A second period claiming the same expense must fail completely.
	second := first
	second.ID = "p2"
	if err := repo.CreatePeriod(ctx, second, []string{"Anna"}); err == nil {
		t.Fatalf("expected conflict error")
	}
	if _, err := repo.GetPeriod(ctx, "p2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("failed commit must not leave a period behind, got %v", err)
	}
}

func TestExportQueue(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p := core.Period{
		ID:      "p1",
		Start:   core.NewDate(2025, 1, 1),
		End:     core.NewDate(2025, 1, 31),
		Summary: map[string]core.MemberSummary{},
	}
	if err := repo.CreatePeriod(ctx, p, nil); err != nil {
		t.Fatalf("create period: %v", err)
	}

	pending, err := repo.GetPendingExportPeriods(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0] != "p1" {
		t.Fatalf("expected p1 pending, got %v", pending)
	}

	if err := repo.MarkExportError(ctx, "p1"); err != nil {
		t.Fatalf("mark error: %v", err)
	}
	pending, err = repo.GetPendingExportPeriods(ctx, 10)
	if err != nil {
		t.Fatalf("pending after error: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("errored period must stay pending, got %v", pending)
	}

	if err := repo.MarkExported(ctx, "p1"); err != nil {
		t.Fatalf("mark exported: %v", err)
	}
	pending, err = repo.GetPendingExportPeriods(ctx, 10)
	if err != nil {
		t.Fatalf("pending after done: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("exported period must leave the queue, got %v", pending)
	}
}
