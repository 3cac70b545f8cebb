package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"kitty/internal/core"
	"kitty/internal/services"
	"kitty/internal/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "kitty.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	house := core.House{
		Members:        []string{"Anna", "Marco"},
		Categories:     []string{"Groceries", "Utilities"},
		PaymentMethods: []string{"Cash", "Card"},
	}
	expenses := services.NewExpenseService(repo, house)
	handovers := services.NewHandoverService(repo, nil, house)

	srv := NewServer(":0", expenses, handovers)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, data
}

func createExpense(t *testing.T, ts *httptest.Server, payload map[string]any) expensePayload {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/expenses", payload)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create expense: status %d, body %s", resp.StatusCode, body)
	}
	var created expensePayload
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode created expense: %v", err)
	}
	return created
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, _ := doJSON(t, http.MethodGet, ts.URL+path, nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: status %d", path, resp.StatusCode)
		}
	}
}

func TestHouseEndpoint(t *testing.T) {
	ts := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/house", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var house struct {
		Members []string `json:"members"`
	}
	if err := json.Unmarshal(body, &house); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(house.Members) != 2 || house.Members[0] != "Anna" {
		t.Fatalf("unexpected members: %v", house.Members)
	}
}

func TestExpenseLifecycle(t *testing.T) {
	ts := newTestServer(t)

	created := createExpense(t, ts, map[string]any{
		"date":          "2025-01-05",
		"title":         "Groceries run",
		"amount":        "100.00",
		"category":      "Groceries",
		"paymentMethod": "Card",
		"payer":         "Anna",
	})
	if created.Responsible != "*" {
		t.Fatalf("missing responsible must default to everyone, got %q", created.Responsible)
	}
	if created.AmountCents != 10000 {
		t.Fatalf("expected 10000 cents, got %d", created.AmountCents)
	}

	// Update with an explicit member split.
	url := fmt.Sprintf("%s/api/expenses/%d", ts.URL, created.ID)
	resp, body := doJSON(t, http.MethodPut, url, map[string]any{
		"date":          "2025-01-05",
		"title":         "Groceries run",
		"amount":        "60,00",
		"category":      "Groceries",
		"paymentMethod": "Card",
		"payer":         "Anna",
		"responsible":   []string{"Marco"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: status %d, body %s", resp.StatusCode, body)
	}
	var updated expensePayload
	if err := json.Unmarshal(body, &updated); err != nil {
		t.Fatalf("decode updated: %v", err)
	}
	if updated.AmountCents != 6000 || updated.Responsible != "Marco" {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	resp, _ = doJSON(t, http.MethodDelete, url, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/expenses", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status %d", resp.StatusCode)
	}
	var list struct {
		Expenses []expensePayload `json:"expenses"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Expenses) != 0 {
		t.Fatalf("expected empty list, got %+v", list.Expenses)
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name    string
		payload map[string]any
		status  int
	}{
		{"empty title", map[string]any{"date": "2025-01-05", "title": " ", "amount": "10.00", "category": "Groceries", "paymentMethod": "Card", "payer": "Anna"}, http.StatusUnprocessableEntity},
		{"bad amount", map[string]any{"date": "2025-01-05", "title": "x", "amount": "abc", "category": "Groceries", "paymentMethod": "Card", "payer": "Anna"}, http.StatusUnprocessableEntity},
		{"unknown category", map[string]any{"date": "2025-01-05", "title": "x", "amount": "10.00", "category": "Nope", "paymentMethod": "Card", "payer": "Anna"}, http.StatusUnprocessableEntity},
		{"unknown payer", map[string]any{"date": "2025-01-05", "title": "x", "amount": "10.00", "category": "Groceries", "paymentMethod": "Card", "payer": "Ghost"}, http.StatusUnprocessableEntity},
		{"bad date", map[string]any{"date": "not-a-date", "title": "x", "amount": "10.00", "category": "Groceries", "paymentMethod": "Card", "payer": "Anna"}, http.StatusUnprocessableEntity},
		{"empty responsible set", map[string]any{"date": "2025-01-05", "title": "x", "amount": "10.00", "category": "Groceries", "paymentMethod": "Card", "payer": "Anna", "responsible": []string{}}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/expenses", tt.payload)
			if resp.StatusCode != tt.status {
				t.Fatalf("status %d, want %d, body %s", resp.StatusCode, tt.status, body)
			}
		})
	}

	// Raw garbage body is a 400, not a 422.
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/expenses", bytes.NewReader([]byte("not json")))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("garbage body: status %d", resp.StatusCode)
	}
}

func TestLegacyBeneficiariesField(t *testing.T) {
	ts := newTestServer(t)
	created := createExpense(t, ts, map[string]any{
		"date":          "2025-01-05",
		"title":         "Old payload",
		"amount":        "30.00",
		"category":      "Groceries",
		"paymentMethod": "Cash",
		"payer":         "Marco",
		"beneficiaries": []string{"Anna"},
	})
	if created.Responsible != "Anna" {
		t.Fatalf("beneficiaries must map to responsible, got %q", created.Responsible)
	}
}

func TestSummaryAndSettlementViews(t *testing.T) {
	ts := newTestServer(t)

	createExpense(t, ts, map[string]any{
		"date": "2025-01-05", "title": "Shop", "amount": "100.00",
		"category": "Groceries", "paymentMethod": "Card", "payer": "Anna",
	})

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/summary", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summary: status %d", resp.StatusCode)
	}
	var summary struct {
		Members []memberSummaryPayload `json:"members"`
	}
	if err := json.Unmarshal(body, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if len(summary.Members) != 2 {
		t.Fatalf("expected both members, got %+v", summary.Members)
	}
	if summary.Members[0].Member != "Anna" || summary.Members[0].NetCents != -5000 {
		t.Fatalf("unexpected Anna summary: %+v", summary.Members[0])
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/settlement", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("settlement: status %d", resp.StatusCode)
	}
	var settlement struct {
		Transfers []transferPayload `json:"transfers"`
	}
	if err := json.Unmarshal(body, &settlement); err != nil {
		t.Fatalf("decode settlement: %v", err)
	}
	if len(settlement.Transfers) != 1 || settlement.Transfers[0].From != "Marco" || settlement.Transfers[0].AmountCents != 5000 {
		t.Fatalf("unexpected settlement: %+v", settlement.Transfers)
	}

	// A mutation must invalidate the cached views.
	createExpense(t, ts, map[string]any{
		"date": "2025-01-06", "title": "Bills", "amount": "100.00",
		"category": "Utilities", "paymentMethod": "Card", "payer": "Marco",
	})
	_, body = doJSON(t, http.MethodGet, ts.URL+"/api/summary", nil)
	if err := json.Unmarshal(body, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Members[0].NetCents != 0 || summary.Members[1].NetCents != 0 {
		t.Fatalf("expected balanced summary after second expense, got %+v", summary.Members)
	}
}

func TestCategoriesViewpoints(t *testing.T) {
	ts := newTestServer(t)
	createExpense(t, ts, map[string]any{
		"date": "2025-01-05", "title": "Shop", "amount": "60.00",
		"category": "Groceries", "paymentMethod": "Card", "payer": "Anna",
		"responsible": []string{"Marco"},
	})

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/categories", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("categories: status %d", resp.StatusCode)
	}
	var view struct {
		Viewpoint string           `json:"viewpoint"`
		Totals    map[string]int64 `json:"totals"`
	}
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Viewpoint != "*" || view.Totals["Groceries"] != 6000 || view.Totals["Utilities"] != 0 {
		t.Fatalf("unexpected house view: %+v", view)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/categories?viewpoint=Anna", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("categories Anna: status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Totals["Groceries"] != 0 {
		t.Fatalf("Anna bears no share, got %+v", view.Totals)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/categories?viewpoint=Ghost", nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unknown viewpoint: status %d", resp.StatusCode)
	}
}

func TestHandoverFlow(t *testing.T) {
	ts := newTestServer(t)

	createExpense(t, ts, map[string]any{
		"date": "2025-01-05", "title": "Shop", "amount": "100.00",
		"category": "Groceries", "paymentMethod": "Card", "payer": "Anna",
	})
	createExpense(t, ts, map[string]any{
		"date": "2025-02-10", "title": "Bills", "amount": "40.00",
		"category": "Utilities", "paymentMethod": "Card", "payer": "Marco",
	})

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/handover/preview", map[string]any{"endDate": "2025-01-31"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("preview: status %d, body %s", resp.StatusCode, body)
	}
	var plan handoverPlanPayload
	if err := json.Unmarshal(body, &plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if plan.Start != "2025-01-05" || plan.End != "2025-01-31" || len(plan.Expenses) != 1 {
		t.Fatalf("unexpected plan: %+v", plan)
	}

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/handover/confirm", map[string]any{"endDate": "2025-01-31"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("confirm: status %d, body %s", resp.StatusCode, body)
	}
	var period periodPayload
	if err := json.Unmarshal(body, &period); err != nil {
		t.Fatalf("decode period: %v", err)
	}
	if period.ID == "" || len(period.ExpenseIDs) != 1 {
		t.Fatalf("unexpected period: %+v", period)
	}

	// The archived expense is immutable now.
	url := fmt.Sprintf("%s/api/expenses/%d", ts.URL, period.ExpenseIDs[0])
	resp, _ = doJSON(t, http.MethodDelete, url, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("delete archived: status %d", resp.StatusCode)
	}

	// Period detail endpoints.
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/periods", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("periods: status %d", resp.StatusCode)
	}
	var periods struct {
		Periods []periodPayload `json:"periods"`
	}
	if err := json.Unmarshal(body, &periods); err != nil {
		t.Fatalf("decode periods: %v", err)
	}
	if len(periods.Periods) != 1 {
		t.Fatalf("expected one period, got %+v", periods.Periods)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/periods/"+period.ID+"/expenses", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("period expenses: status %d", resp.StatusCode)
	}
	var archived struct {
		Expenses []expensePayload `json:"expenses"`
	}
	if err := json.Unmarshal(body, &archived); err != nil {
		t.Fatalf("decode archived: %v", err)
	}
	if len(archived.Expenses) != 1 || archived.Expenses[0].PeriodID != period.ID {
		t.Fatalf("unexpected archived expenses: %+v", archived.Expenses)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/periods/nope", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing period: status %d", resp.StatusCode)
	}

	// A window before the committed boundary has nothing left to take.
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/handover/preview", map[string]any{"endDate": "2025-01-31"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("re-preview: status %d, body %s", resp.StatusCode, body)
	}
	var conflict struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(body, &conflict); err != nil {
		t.Fatalf("decode conflict: %v", err)
	}
	if conflict.Reason != "nothing_to_hand_over" {
		t.Fatalf("unexpected reason %q", conflict.Reason)
	}
}
