package core

import (
	"errors"
	"time"
)

// Period is a closed accounting interval. The summary and transfers are
// frozen at confirmation time and never recomputed from the archived
// expenses; the archived records themselves become immutable.
type Period struct {
	ID         string
	Start      Date
	End        Date
	Summary    map[string]MemberSummary
	Transfers  []Transfer
	ExpenseIDs []int64
	CreatedAt  time.Time
}

// HandoverPlan is the pure planning result of closing a period. Nothing
// is persisted until the caller commits it through storage.
type HandoverPlan struct {
	Start     Date
	End       Date
	Expenses  []Expense
	Summary   map[string]MemberSummary
	Transfers []Transfer
}

var (
	ErrNoActiveExpenses  = errors.New("no active expenses to hand over")
	ErrNothingToHandOver = errors.New("no expenses in the handover range")
)

// PlanHandover selects the active expenses belonging to the period that
// ends at the candidate date and computes the frozen summary and
// settlement plan for them.
//
// The period starts at the end date of the most recent past period, or at
// the earliest active expense date when no period exists yet. The very
// first period includes its start date; later periods start strictly
// after the previous boundary so the boundary date is never counted
// twice. Both empty-result conditions come back as typed errors for the
// caller to surface as a no-op.
func PlanHandover(active []Expense, past []Period, end Date, house House) (HandoverPlan, error) {
	if len(active) == 0 {
		return HandoverPlan{}, ErrNoActiveExpenses
	}

	first := len(past) == 0
	var start Date
	if first {
		start = active[0].Date
		for _, e := range active[1:] {
			if e.Date.Before(start) {
				start = e.Date
			}
		}
	} else {
		start = past[0].End
		for _, p := range past[1:] {
			if start.Before(p.End) {
				start = p.End
			}
		}
	}

	var selected []Expense
	for _, e := range active {
		if e.Date.After(end) {
			continue
		}
		if first {
			if e.Date.Before(start) {
				continue
			}
		} else if !e.Date.After(start) {
			continue
		}
		selected = append(selected, e)
	}
	if len(selected) == 0 {
		return HandoverPlan{}, ErrNothingToHandOver
	}

	summary := Summarize(selected, house)
	return HandoverPlan{
		Start:     start,
		End:       end,
		Expenses:  selected,
		Summary:   summary,
		Transfers: PlanSettlement(summary, house.Members),
	}, nil
}
