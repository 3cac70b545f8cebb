package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"kitty/internal/core"
	"kitty/internal/services"
)

// cachedView serves the marshalled view from the LRU cache, building
// and caching it on a miss. The cache is flushed on every mutation.
func (s *Server) cachedView(w http.ResponseWriter, r *http.Request, key string, build func(ctx context.Context) (any, error)) {
	if body, ok := s.viewCache.Get(key); ok {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	view, err := build(r.Context())
	if err != nil {
		if errors.Is(err, services.ErrUnknownViewpoint) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		slog.ErrorContext(r.Context(), "View build failed", "view", key, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build view")
		return
	}

	body, err := json.Marshal(view)
	if err != nil {
		slog.ErrorContext(r.Context(), "View marshal failed", "view", key, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build view")
		return
	}

	s.viewCache.Set(key, body)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.cachedView(w, r, "summary", func(ctx context.Context) (any, error) {
		summary, err := s.expenses.Summary(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"members": toSummaryPayloads(summary, s.expenses.House().Members),
		}, nil
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	viewpoint := strings.TrimSpace(r.URL.Query().Get("viewpoint"))
	if viewpoint == "" {
		viewpoint = core.ViewpointAll
	}

	s.cachedView(w, r, "categories:"+viewpoint, func(ctx context.Context) (any, error) {
		totals, err := s.expenses.Categories(ctx, viewpoint)
		if err != nil {
			return nil, err
		}
		cents := make(map[string]int64, len(totals))
		for name, amount := range totals {
			cents[name] = amount.Cents
		}
		return map[string]any{
			"viewpoint": viewpoint,
			"totals":    cents,
		}, nil
	})
}

func (s *Server) handleSettlement(w http.ResponseWriter, r *http.Request) {
	s.cachedView(w, r, "settlement", func(ctx context.Context) (any, error) {
		transfers, err := s.expenses.Settlement(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"transfers": toTransferPayloads(transfers),
		}, nil
	})
}
