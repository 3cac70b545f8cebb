package services

import (
	"context"
	"errors"
	"fmt"

	"kitty/internal/core"
)

var ErrUnknownViewpoint = errors.New("unknown viewpoint")

// ExpenseStore is the storage surface the expense service needs.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	UpdateExpense(ctx context.Context, id int64, e core.Expense) error
	SoftDeleteExpense(ctx context.Context, id int64) error
	ListActiveExpenses(ctx context.Context) ([]core.Expense, error)
}

// ExpenseService orchestrates expense operations and the live views
// computed over the active set.
type ExpenseService struct {
	store ExpenseStore
	house core.House
}

func NewExpenseService(store ExpenseStore, house core.House) *ExpenseService {
	return &ExpenseService{store: store, house: house}
}

func (s *ExpenseService) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(s.house); err != nil {
		return core.Expense{}, err
	}
	created, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	return created, nil
}

func (s *ExpenseService) Get(ctx context.Context, id int64) (core.Expense, error) {
	return s.store.GetExpense(ctx, id)
}

func (s *ExpenseService) Update(ctx context.Context, id int64, e core.Expense) (core.Expense, error) {
	if err := e.Validate(s.house); err != nil {
		return core.Expense{}, err
	}
	if err := s.store.UpdateExpense(ctx, id, e); err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	return s.store.GetExpense(ctx, id)
}

func (s *ExpenseService) Delete(ctx context.Context, id int64) error {
	if err := s.store.SoftDeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}

func (s *ExpenseService) ListActive(ctx context.Context) ([]core.Expense, error) {
	return s.store.ListActiveExpenses(ctx)
}

// Summary computes the per-member balance over the active set.
func (s *ExpenseService) Summary(ctx context.Context) (map[string]core.MemberSummary, error) {
	active, err := s.store.ListActiveExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active expenses: %w", err)
	}
	return core.Summarize(active, s.house), nil
}

// Categories computes category totals over the active set from the
// given viewpoint ("*" for the whole house, otherwise a member name).
func (s *ExpenseService) Categories(ctx context.Context, viewpoint string) (map[string]core.Money, error) {
	if viewpoint != core.ViewpointAll && !s.house.HasMember(viewpoint) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownViewpoint, viewpoint)
	}
	active, err := s.store.ListActiveExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active expenses: %w", err)
	}
	return core.CategoryTotals(active, s.house, viewpoint), nil
}

// Settlement plans the transfers that would balance the active set.
func (s *ExpenseService) Settlement(ctx context.Context) ([]core.Transfer, error) {
	summary, err := s.Summary(ctx)
	if err != nil {
		return nil, err
	}
	return core.PlanSettlement(summary, s.house.Members), nil
}

func (s *ExpenseService) House() core.House {
	return s.house
}
