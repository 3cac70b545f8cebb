package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kitty/internal/amqp"
	"kitty/internal/core"
	"kitty/internal/sheets"
)

// ExportStore is the storage surface the export worker needs.
type ExportStore interface {
	GetPeriod(ctx context.Context, id string) (core.Period, error)
	ListExpensesByPeriod(ctx context.Context, periodID string) ([]core.Expense, error)
	GetPendingExportPeriods(ctx context.Context, limit int) ([]string, error)
	MarkExported(ctx context.Context, id string) error
	MarkExportError(ctx context.Context, id string) error
}

// ExportWorker pushes closed periods to the archive sheet. Messages
// drive the fast path, the periodic sweep recovers anything missed.
type ExportWorker struct {
	store     ExportStore
	archive   sheets.ArchiveWriter
	batchSize int
}

func NewExportWorker(store ExportStore, archive sheets.ArchiveWriter, batchSize int) *ExportWorker {
	return &ExportWorker{
		store:     store,
		archive:   archive,
		batchSize: batchSize,
	}
}

// HandleExportMessage processes a single export message from AMQP.
func (w *ExportWorker) HandleExportMessage(ctx context.Context, msg *amqp.HandoverExportMessage) error {
	slog.InfoContext(ctx, "Processing export message", "periodId", msg.PeriodID)
	return w.exportPeriod(ctx, msg.PeriodID)
}

// ProcessPendingExports exports any periods still waiting. This is the
// backup mechanism in case AMQP messages are lost.
func (w *ExportWorker) ProcessPendingExports(ctx context.Context) error {
	pending, err := w.store.GetPendingExportPeriods(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending export periods: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	for _, id := range pending {
		if err := w.exportPeriod(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to export period", "periodId", id, "error", err)
			continue
		}
	}

	return nil
}

// StartupExportCheck recovers pending exports at worker startup, useful
// after missed messages or worker downtime.
func (w *ExportWorker) StartupExportCheck(ctx context.Context) error {
	pending, err := w.store.GetPendingExportPeriods(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending exports for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending exports found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending exports on startup, processing...", "count", len(pending))

	successCount := 0
	errorCount := 0
	for _, id := range pending {
		if err := w.exportPeriod(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to export period during startup", "periodId", id, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup export check completed",
		"total", len(pending),
		"exported", successCount,
		"errors", errorCount)

	return nil
}

// RunSweep re-checks pending exports at the given interval until ctx is
// cancelled.
func (w *ExportWorker) RunSweep(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ProcessPendingExports(ctx); err != nil {
				slog.ErrorContext(ctx, "Pending export sweep failed", "error", err)
			}
		}
	}
}

func (w *ExportWorker) exportPeriod(ctx context.Context, id string) error {
	period, err := w.store.GetPeriod(ctx, id)
	if err != nil {
		return fmt.Errorf("get period from storage: %w", err)
	}

	expenses, err := w.store.ListExpensesByPeriod(ctx, id)
	if err != nil {
		return fmt.Errorf("list period expenses: %w", err)
	}

	ref, err := w.archive.AppendHandover(ctx, period, expenses)
	if err != nil {
		if markErr := w.store.MarkExportError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error", "periodId", id, "error", markErr)
		}
		return fmt.Errorf("append handover to archive: %w", err)
	}

	if err := w.store.MarkExported(ctx, id); err != nil {
		// The export itself succeeded, only the bookkeeping failed.
		slog.ErrorContext(ctx, "Failed to mark as exported", "periodId", id, "error", err)
	}

	slog.InfoContext(ctx, "Successfully exported period",
		"periodId", id,
		"archive_ref", ref,
		"expenses", len(expenses))

	return nil
}
