package http

import (
	"log/slog"
	"net/http"
	"strconv"
)

func (s *Server) handleHouse(w http.ResponseWriter, r *http.Request) {
	h := s.expenses.House()
	writeJSON(w, http.StatusOK, map[string]any{
		"members":        h.Members,
		"categories":     h.Categories,
		"paymentMethods": h.PaymentMethods,
	})
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.expenses.ListActive(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List expenses failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list expenses")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": toExpensePayloads(expenses)})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	e, err := req.toExpense()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.expenses.Create(r.Context(), e)
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		slog.ErrorContext(r.Context(), "Create expense failed", "error", err, "title", e.Title)
		writeError(w, http.StatusInternalServerError, "failed to save expense")
		return
	}

	s.viewCache.Flush()
	writeJSON(w, http.StatusCreated, toExpensePayload(created))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	e, err := req.toExpense()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	updated, err := s.expenses.Update(r.Context(), id, e)
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		if status, msg, ok := storageStatus(err); ok {
			writeError(w, status, msg)
			return
		}
		slog.ErrorContext(r.Context(), "Update expense failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to update expense")
		return
	}

	s.viewCache.Flush()
	writeJSON(w, http.StatusOK, toExpensePayload(updated))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.expenses.Delete(r.Context(), id); err != nil {
		if status, msg, ok := storageStatus(err); ok {
			writeError(w, status, msg)
			return
		}
		slog.ErrorContext(r.Context(), "Delete expense failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to delete expense")
		return
	}

	s.viewCache.Flush()
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid expense id")
		return 0, false
	}
	return id, true
}
