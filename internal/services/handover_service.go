package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"kitty/internal/core"
)

// PeriodStore is the storage surface the handover service needs.
type PeriodStore interface {
	ListActiveExpenses(ctx context.Context) ([]core.Expense, error)
	ListPeriods(ctx context.Context) ([]core.Period, error)
	GetPeriod(ctx context.Context, id string) (core.Period, error)
	ListExpensesByPeriod(ctx context.Context, periodID string) ([]core.Expense, error)
	CreatePeriod(ctx context.Context, p core.Period, roster []string) error
}

// ExportPublisher hands a closed period to the export pipeline.
type ExportPublisher interface {
	PublishHandoverExport(ctx context.Context, periodID string) error
}

// HandoverService plans and commits period handovers. The publisher is
// optional, without it closed periods are picked up by the sweep loop.
type HandoverService struct {
	store     PeriodStore
	publisher ExportPublisher
	house     core.House
}

func NewHandoverService(store PeriodStore, publisher ExportPublisher, house core.House) *HandoverService {
	return &HandoverService{store: store, publisher: publisher, house: house}
}

// Preview computes the handover that confirming the given end date
// would produce, without touching storage.
func (s *HandoverService) Preview(ctx context.Context, end core.Date) (core.HandoverPlan, error) {
	active, err := s.store.ListActiveExpenses(ctx)
	if err != nil {
		return core.HandoverPlan{}, fmt.Errorf("list active expenses: %w", err)
	}
	past, err := s.store.ListPeriods(ctx)
	if err != nil {
		return core.HandoverPlan{}, fmt.Errorf("list periods: %w", err)
	}
	return core.PlanHandover(active, past, end, s.house)
}

// Confirm closes the period ending at the given date. The frozen
// summary and transfers are committed atomically together with the
// expense archiving, then the export message is published best effort.
func (s *HandoverService) Confirm(ctx context.Context, end core.Date) (core.Period, error) {
	plan, err := s.Preview(ctx, end)
	if err != nil {
		return core.Period{}, err
	}

	ids := make([]int64, len(plan.Expenses))
	for i, e := range plan.Expenses {
		ids[i] = e.ID
	}
	period := core.Period{
		ID:         uuid.New().String(),
		Start:      plan.Start,
		End:        plan.End,
		Summary:    plan.Summary,
		Transfers:  plan.Transfers,
		ExpenseIDs: ids,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.store.CreatePeriod(ctx, period, s.house.Members); err != nil {
		return core.Period{}, fmt.Errorf("commit handover: %w", err)
	}

	slog.InfoContext(ctx, "Handover confirmed",
		"periodId", period.ID,
		"start", period.Start.String(),
		"end", period.End.String(),
		"expenses", len(ids))

	if s.publisher != nil {
		if err := s.publisher.PublishHandoverExport(ctx, period.ID); err != nil {
			// The period is committed, the sweep loop will retry the export.
			slog.ErrorContext(ctx, "Failed to publish export message",
				"periodId", period.ID, "error", err)
		}
	}

	return period, nil
}

// Periods returns all closed periods, most recent first.
func (s *HandoverService) Periods(ctx context.Context) ([]core.Period, error) {
	return s.store.ListPeriods(ctx)
}

func (s *HandoverService) Period(ctx context.Context, id string) (core.Period, error) {
	return s.store.GetPeriod(ctx, id)
}

func (s *HandoverService) PeriodExpenses(ctx context.Context, id string) ([]core.Expense, error) {
	if _, err := s.store.GetPeriod(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListExpensesByPeriod(ctx, id)
}
