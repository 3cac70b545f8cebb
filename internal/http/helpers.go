package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"kitty/internal/core"
	"kitty/internal/storage"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeReason is for expected conflicts, the reason field is a stable
// machine-readable token.
func writeReason(w http.ResponseWriter, status int, msg, reason string) {
	writeJSON(w, status, map[string]string{"error": msg, "reason": reason})
}

// isValidationError reports whether err is a domain validation failure
// that should surface as a 422.
func isValidationError(err error) bool {
	return errors.Is(err, core.ErrInvalidDate) ||
		errors.Is(err, core.ErrInvalidAmount) ||
		errors.Is(err, core.ErrEmptyTitle) ||
		errors.Is(err, core.ErrUnknownCategory) ||
		errors.Is(err, core.ErrUnknownPaymentMethod) ||
		errors.Is(err, core.ErrUnknownPayer) ||
		errors.Is(err, core.ErrEmptyResponsibility)
}

// storageStatus maps repository errors onto API statuses.
func storageStatus(err error) (int, string, bool) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "expense not found", true
	case errors.Is(err, storage.ErrExpenseArchived):
		return http.StatusConflict, "expense already handed over", true
	}
	return 0, "", false
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
