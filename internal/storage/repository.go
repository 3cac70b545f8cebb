// Package storage is the durable store for expenses and handover
// archives, backed by SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"kitty/internal/core"

	_ "modernc.org/sqlite"
)

// Export states for the handover archive pipeline.
const (
	ExportPending = "pending"
	ExportDone    = "done"
	ExportError   = "error"

	maxExportAttempts = 5
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrExpenseArchived guards the immutability of records already
	// stamped into a period.
	ErrExpenseArchived = errors.New("expense belongs to a closed period")
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const expenseColumns = "id, date, title, description, amount_cents, category, payment_method, payer, responsibility, period_id"

func scanExpense(row interface{ Scan(...any) error }) (core.Expense, error) {
	var (
		e        core.Expense
		date     string
		resp     string
		periodID sql.NullString
	)
	err := row.Scan(&e.ID, &date, &e.Title, &e.Description, &e.Amount.Cents,
		&e.Category, &e.PaymentMethod, &e.Payer, &resp, &periodID)
	if err != nil {
		return core.Expense{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("stored date %q: %w", date, err)
	}
	e.Date = d
	e.Responsibility = core.ParseResponsibility(resp)
	if periodID.Valid {
		e.PeriodID = periodID.String
	}
	return e, nil
}

// CreateExpense inserts a new active expense and returns it with the
// assigned id.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (date, title, description, amount_cents, category, payment_method, payer, responsibility)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Date.String(), e.Title, e.Description, e.Amount.Cents,
		e.Category, e.PaymentMethod, e.Payer, e.Responsibility.Encode())
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("last insert id: %w", err)
	}
	e.ID = id

	slog.InfoContext(ctx, "Expense saved",
		"id", e.ID,
		"title", e.Title,
		"amount_cents", e.Amount.Cents,
		"payer", e.Payer)

	return e, nil
}

// GetExpense retrieves a single expense by id, archived ones included.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE id = ? AND deleted_at IS NULL`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

// UpdateExpense replaces the editable fields of an active expense.
// Archived expenses are immutable and report ErrExpenseArchived.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, id int64, e core.Expense) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses
		SET date = ?, title = ?, description = ?, amount_cents = ?,
		    category = ?, payment_method = ?, payer = ?, responsibility = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND period_id IS NULL AND deleted_at IS NULL`,
		e.Date.String(), e.Title, e.Description, e.Amount.Cents,
		e.Category, e.PaymentMethod, e.Payer, e.Responsibility.Encode(), id)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return r.checkActiveRowTouched(ctx, res, id)
}

// SoftDeleteExpense marks an active expense as deleted. Archived
// expenses cannot be deleted.
func (r *SQLiteRepository) SoftDeleteExpense(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET deleted_at = CURRENT_TIMESTAMP
		WHERE id = ? AND period_id IS NULL AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("soft delete expense: %w", err)
	}
	if err := r.checkActiveRowTouched(ctx, res, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Expense soft deleted", "id", id)
	return nil
}

// checkActiveRowTouched distinguishes "not found" from "archived" when a
// guarded mutation matched no rows.
func (r *SQLiteRepository) checkActiveRowTouched(ctx context.Context, res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	existing, err := r.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	if existing.PeriodID != "" {
		return ErrExpenseArchived
	}
	return ErrNotFound
}

// ListActiveExpenses returns all un-archived expenses in date order.
func (r *SQLiteRepository) ListActiveExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE period_id IS NULL AND deleted_at IS NULL
		ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("list active expenses: %w", err)
	}
	defer rows.Close()
	return collectExpenses(rows)
}

// ListExpensesByPeriod returns the archived expenses of one period.
func (r *SQLiteRepository) ListExpensesByPeriod(ctx context.Context, periodID string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE period_id = ? AND deleted_at IS NULL
		ORDER BY date, id`, periodID)
	if err != nil {
		return nil, fmt.Errorf("list expenses by period: %w", err)
	}
	defer rows.Close()
	return collectExpenses(rows)
}

func collectExpenses(rows *sql.Rows) ([]core.Expense, error) {
	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

// CreatePeriod commits a handover archive in one transaction: the period
// row, its frozen summary and transfers, and the period stamp on every
// selected expense. Any failure rolls the whole commit back so the
// active set is left untouched.
func (r *SQLiteRepository) CreatePeriod(ctx context.Context, p core.Period, roster []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO periods (id, start_date, end_date, created_at, export_state)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Start.String(), p.End.String(), createdAt.Unix(), ExportPending); err != nil {
		return fmt.Errorf("insert period: %w", err)
	}

	for _, member := range roster {
		s := p.Summary[member]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO period_summaries (period_id, member, paid_cents, share_cents)
			VALUES (?, ?, ?, ?)`,
			p.ID, member, s.Paid.Cents, s.Share.Cents); err != nil {
			return fmt.Errorf("insert period summary for %s: %w", member, err)
		}
	}

	for i, tr := range p.Transfers {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO period_transfers (period_id, seq, from_member, to_member, amount_cents)
			VALUES (?, ?, ?, ?, ?)`,
			p.ID, i, tr.From, tr.To, tr.Amount.Cents); err != nil {
			return fmt.Errorf("insert period transfer %d: %w", i, err)
		}
	}

	for _, id := range p.ExpenseIDs {
		res, err := tx.ExecContext(ctx, `
			UPDATE expenses SET period_id = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND period_id IS NULL AND deleted_at IS NULL`, p.ID, id)
		if err != nil {
			return fmt.Errorf("stamp expense %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n != 1 {
			return fmt.Errorf("expense %d is no longer active: %w", id, ErrExpenseArchived)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit period: %w", err)
	}

	slog.InfoContext(ctx, "Period committed",
		"period_id", p.ID,
		"start", p.Start.String(),
		"end", p.End.String(),
		"expenses", len(p.ExpenseIDs),
		"transfers", len(p.Transfers))

	return nil
}

// GetPeriod loads one period with its frozen summary, transfers and
// archived expense ids.
func (r *SQLiteRepository) GetPeriod(ctx context.Context, id string) (core.Period, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, start_date, end_date, created_at FROM periods WHERE id = ?`, id)
	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Period{}, ErrNotFound
	}
	if err != nil {
		return core.Period{}, fmt.Errorf("get period: %w", err)
	}
	if err := r.loadPeriodDetails(ctx, &p); err != nil {
		return core.Period{}, err
	}
	return p, nil
}

// ListPeriods returns all periods, most recently ended first, each with
// its frozen details loaded.
func (r *SQLiteRepository) ListPeriods(ctx context.Context) ([]core.Period, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, start_date, end_date, created_at FROM periods
		ORDER BY end_date DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	defer rows.Close()

	var out []core.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate periods: %w", err)
	}
	for i := range out {
		if err := r.loadPeriodDetails(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scanPeriod(row interface{ Scan(...any) error }) (core.Period, error) {
	var (
		p          core.Period
		start, end string
		createdAt  int64
	)
	if err := row.Scan(&p.ID, &start, &end, &createdAt); err != nil {
		return core.Period{}, err
	}
	var err error
	if p.Start, err = core.ParseDate(start); err != nil {
		return core.Period{}, fmt.Errorf("stored start date %q: %w", start, err)
	}
	if p.End, err = core.ParseDate(end); err != nil {
		return core.Period{}, fmt.Errorf("stored end date %q: %w", end, err)
	}
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	return p, nil
}

func (r *SQLiteRepository) loadPeriodDetails(ctx context.Context, p *core.Period) error {
	srows, err := r.db.QueryContext(ctx, `
		SELECT member, paid_cents, share_cents FROM period_summaries
		WHERE period_id = ?`, p.ID)
	if err != nil {
		return fmt.Errorf("load period summaries: %w", err)
	}
	defer srows.Close()
	p.Summary = make(map[string]core.MemberSummary)
	for srows.Next() {
		var (
			member      string
			paid, share int64
		)
		if err := srows.Scan(&member, &paid, &share); err != nil {
			return fmt.Errorf("scan period summary: %w", err)
		}
		p.Summary[member] = core.MemberSummary{
			Paid:  core.Money{Cents: paid},
			Share: core.Money{Cents: share},
		}
	}
	if err := srows.Err(); err != nil {
		return fmt.Errorf("iterate period summaries: %w", err)
	}

	trows, err := r.db.QueryContext(ctx, `
		SELECT from_member, to_member, amount_cents FROM period_transfers
		WHERE period_id = ? ORDER BY seq`, p.ID)
	if err != nil {
		return fmt.Errorf("load period transfers: %w", err)
	}
	defer trows.Close()
	p.Transfers = nil
	for trows.Next() {
		var tr core.Transfer
		if err := trows.Scan(&tr.From, &tr.To, &tr.Amount.Cents); err != nil {
			return fmt.Errorf("scan period transfer: %w", err)
		}
		p.Transfers = append(p.Transfers, tr)
	}
	if err := trows.Err(); err != nil {
		return fmt.Errorf("iterate period transfers: %w", err)
	}

	erows, err := r.db.QueryContext(ctx, `
		SELECT id FROM expenses WHERE period_id = ? AND deleted_at IS NULL ORDER BY id`, p.ID)
	if err != nil {
		return fmt.Errorf("load period expense ids: %w", err)
	}
	defer erows.Close()
	p.ExpenseIDs = nil
	for erows.Next() {
		var id int64
		if err := erows.Scan(&id); err != nil {
			return fmt.Errorf("scan period expense id: %w", err)
		}
		p.ExpenseIDs = append(p.ExpenseIDs, id)
	}
	if err := erows.Err(); err != nil {
		return fmt.Errorf("iterate period expense ids: %w", err)
	}
	return nil
}

// GetPendingExportPeriods returns ids of periods whose archives still
// need to reach the export sheet, oldest first.
func (r *SQLiteRepository) GetPendingExportPeriods(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM periods
		WHERE export_state != ? AND export_attempts < ?
		ORDER BY created_at
		LIMIT ?`, ExportDone, maxExportAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending export periods: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending period id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending period ids: %w", err)
	}
	return out, nil
}

// MarkExported records a successful archive export.
func (r *SQLiteRepository) MarkExported(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE periods SET export_state = ? WHERE id = ?`, ExportDone, id); err != nil {
		return fmt.Errorf("mark period exported: %w", err)
	}
	slog.InfoContext(ctx, "Period marked as exported", "period_id", id)
	return nil
}

// MarkExportError records a failed attempt; the pending sweep retries
// until the attempt budget runs out.
func (r *SQLiteRepository) MarkExportError(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE periods SET export_state = ?, export_attempts = export_attempts + 1
		WHERE id = ?`, ExportError, id); err != nil {
		return fmt.Errorf("mark period export error: %w", err)
	}
	slog.WarnContext(ctx, "Period marked with export error", "period_id", id)
	return nil
}
