package http

import (
	"errors"
	"log/slog"
	"net/http"

	"kitty/internal/core"
	"kitty/internal/storage"
)

func (s *Server) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := s.handovers.Periods(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List periods failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list periods")
		return
	}

	roster := s.expenses.House().Members
	out := make([]periodPayload, len(periods))
	for i, p := range periods {
		out[i] = toPeriodPayload(p, roster)
	}
	writeJSON(w, http.StatusOK, map[string]any{"periods": out})
}

func (s *Server) handleGetPeriod(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	period, err := s.handovers.Period(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "period not found")
			return
		}
		slog.ErrorContext(r.Context(), "Get period failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to load period")
		return
	}
	writeJSON(w, http.StatusOK, toPeriodPayload(period, s.expenses.House().Members))
}

func (s *Server) handlePeriodExpenses(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	expenses, err := s.handovers.PeriodExpenses(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "period not found")
			return
		}
		slog.ErrorContext(r.Context(), "List period expenses failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to load period expenses")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": toExpensePayloads(expenses)})
}

type handoverRequest struct {
	EndDate string `json:"endDate"`
}

func (s *Server) parseHandoverEnd(w http.ResponseWriter, r *http.Request) (core.Date, bool) {
	var req handoverRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return core.Date{}, false
	}
	end, err := core.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid endDate, expected YYYY-MM-DD")
		return core.Date{}, false
	}
	return end, true
}

// handoverConflict maps the expected empty-window conditions to 409.
func handoverConflict(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, core.ErrNoActiveExpenses):
		writeReason(w, http.StatusConflict, "no active expenses to hand over", "no_active_expenses")
		return true
	case errors.Is(err, core.ErrNothingToHandOver):
		writeReason(w, http.StatusConflict, "no expenses fall inside the period", "nothing_to_hand_over")
		return true
	}
	return false
}

func (s *Server) handleHandoverPreview(w http.ResponseWriter, r *http.Request) {
	end, ok := s.parseHandoverEnd(w, r)
	if !ok {
		return
	}

	plan, err := s.handovers.Preview(r.Context(), end)
	if err != nil {
		if handoverConflict(w, err) {
			return
		}
		slog.ErrorContext(r.Context(), "Handover preview failed", "error", err, "end", end.String())
		writeError(w, http.StatusInternalServerError, "failed to plan handover")
		return
	}
	writeJSON(w, http.StatusOK, toHandoverPlanPayload(plan, s.expenses.House().Members))
}

func (s *Server) handleHandoverConfirm(w http.ResponseWriter, r *http.Request) {
	end, ok := s.parseHandoverEnd(w, r)
	if !ok {
		return
	}

	period, err := s.handovers.Confirm(r.Context(), end)
	if err != nil {
		if handoverConflict(w, err) {
			return
		}
		slog.ErrorContext(r.Context(), "Handover confirm failed", "error", err, "end", end.String())
		writeError(w, http.StatusInternalServerError, "failed to commit handover")
		return
	}

	s.viewCache.Flush()
	writeJSON(w, http.StatusCreated, toPeriodPayload(period, s.expenses.House().Members))
}
