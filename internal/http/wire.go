package http

import (
	"encoding/json"
	"fmt"
	"time"

	"kitty/internal/core"
)

// expenseRequest is the JSON body for create and update. The amount is
// a decimal string ("12.34" or "12,34"). Responsibility comes in as
// "responsible", either the string "*", a CSV string, or an array of
// member names. Legacy exports used "beneficiaries" for the same field,
// the two are coalesced here and nowhere else.
type expenseRequest struct {
	Date          string          `json:"date"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Amount        string          `json:"amount"`
	Category      string          `json:"category"`
	PaymentMethod string          `json:"paymentMethod"`
	Payer         string          `json:"payer"`
	Responsible   json.RawMessage `json:"responsible,omitempty"`
	Beneficiaries json.RawMessage `json:"beneficiaries,omitempty"`
}

func (req expenseRequest) toExpense() (core.Expense, error) {
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Expense{}, err
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w: %v", core.ErrInvalidAmount, err)
	}

	raw := req.Responsible
	if len(raw) == 0 {
		raw = req.Beneficiaries
	}
	resp, err := parseResponsibleField(raw)
	if err != nil {
		return core.Expense{}, err
	}

	return core.Expense{
		Date:           date,
		Title:          sanitizeInput(req.Title),
		Description:    sanitizeInput(req.Description),
		Amount:         core.Money{Cents: cents},
		Category:       sanitizeInput(req.Category),
		PaymentMethod:  sanitizeInput(req.PaymentMethod),
		Payer:          sanitizeInput(req.Payer),
		Responsibility: resp,
	}, nil
}

// parseResponsibleField accepts "*", a CSV string or an array of
// member names. A missing field means the whole house.
func parseResponsibleField(raw json.RawMessage) (core.Responsibility, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return core.Everyone(), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return core.ParseResponsibility(s), nil
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err == nil {
		return core.Split(names...), nil
	}

	return core.Responsibility{}, fmt.Errorf("%w: responsible must be a string or an array", core.ErrEmptyResponsibility)
}

type expensePayload struct {
	ID            int64  `json:"id"`
	Date          string `json:"date"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	Amount        string `json:"amount"`
	AmountCents   int64  `json:"amountCents"`
	Category      string `json:"category"`
	PaymentMethod string `json:"paymentMethod"`
	Payer         string `json:"payer"`
	Responsible   string `json:"responsible"`
	PeriodID      string `json:"periodId,omitempty"`
}

func toExpensePayload(e core.Expense) expensePayload {
	return expensePayload{
		ID:            e.ID,
		Date:          e.Date.String(),
		Title:         e.Title,
		Description:   e.Description,
		Amount:        formatAmount(e.Amount.Cents),
		AmountCents:   e.Amount.Cents,
		Category:      e.Category,
		PaymentMethod: e.PaymentMethod,
		Payer:         e.Payer,
		Responsible:   e.Responsibility.Encode(),
	}
}

func toExpensePayloads(expenses []core.Expense) []expensePayload {
	out := make([]expensePayload, len(expenses))
	for i, e := range expenses {
		out[i] = toExpensePayload(e)
		out[i].PeriodID = e.PeriodID
	}
	return out
}

type memberSummaryPayload struct {
	Member     string `json:"member"`
	PaidCents  int64  `json:"paidCents"`
	ShareCents int64  `json:"shareCents"`
	NetCents   int64  `json:"netCents"`
}

// toSummaryPayloads lists members in roster order.
func toSummaryPayloads(summary map[string]core.MemberSummary, roster []string) []memberSummaryPayload {
	out := make([]memberSummaryPayload, 0, len(roster))
	for _, m := range roster {
		s, ok := summary[m]
		if !ok {
			continue
		}
		out = append(out, memberSummaryPayload{
			Member:     m,
			PaidCents:  s.Paid.Cents,
			ShareCents: s.Share.Cents,
			NetCents:   s.Net().Cents,
		})
	}
	return out
}

type transferPayload struct {
	From        string `json:"from"`
	To          string `json:"to"`
	AmountCents int64  `json:"amountCents"`
}

func toTransferPayloads(transfers []core.Transfer) []transferPayload {
	out := make([]transferPayload, len(transfers))
	for i, t := range transfers {
		out[i] = transferPayload{From: t.From, To: t.To, AmountCents: t.Amount.Cents}
	}
	return out
}

type periodPayload struct {
	ID         string                 `json:"id"`
	Start      string                 `json:"start"`
	End        string                 `json:"end"`
	CreatedAt  string                 `json:"createdAt"`
	Summary    []memberSummaryPayload `json:"summary"`
	Transfers  []transferPayload      `json:"transfers"`
	ExpenseIDs []int64                `json:"expenseIds"`
}

func toPeriodPayload(p core.Period, roster []string) periodPayload {
	return periodPayload{
		ID:         p.ID,
		Start:      p.Start.String(),
		End:        p.End.String(),
		CreatedAt:  p.CreatedAt.UTC().Format(time.RFC3339),
		Summary:    toSummaryPayloads(p.Summary, roster),
		Transfers:  toTransferPayloads(p.Transfers),
		ExpenseIDs: p.ExpenseIDs,
	}
}

type handoverPlanPayload struct {
	Start     string                 `json:"start"`
	End       string                 `json:"end"`
	Summary   []memberSummaryPayload `json:"summary"`
	Transfers []transferPayload      `json:"transfers"`
	Expenses  []expensePayload       `json:"expenses"`
}

func toHandoverPlanPayload(plan core.HandoverPlan, roster []string) handoverPlanPayload {
	return handoverPlanPayload{
		Start:     plan.Start.String(),
		End:       plan.End.String(),
		Summary:   toSummaryPayloads(plan.Summary, roster),
		Transfers: toTransferPayloads(plan.Transfers),
		Expenses:  toExpensePayloads(plan.Expenses),
	}
}

// formatAmount renders cents as a plain decimal string ("12.34").
func formatAmount(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := fmt.Sprintf("%d.%02d", cents/100, cents%100)
	if neg {
		return "-" + s
	}
	return s
}
