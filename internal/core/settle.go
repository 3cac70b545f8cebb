package core

import "sort"

// Transfer is one pay-from/pay-to step of a settlement plan.
type Transfer struct {
	From   string
	To     string
	Amount Money
}

// PlanSettlement converts a member summary into transfers that zero out
// every net balance.
//
// The plan is a greedy star settlement, deliberately not the minimum
// transaction count: the largest creditor acts as the hub, every debtor
// pays their full net to the hub in roster order, then the hub pays each
// remaining creditor their due in descending-owed order (ties keep
// roster order). History views depend on this exact plan shape, so the
// heuristic stays as is. With both debtors and creditors present the
// plan has debtors+creditors-1 transfers; otherwise it is empty.
func PlanSettlement(summary map[string]MemberSummary, roster []string) []Transfer {
	type balance struct {
		name  string
		cents int64
	}
	var debtors, creditors []balance
	for _, m := range roster {
		s, ok := summary[m]
		if !ok {
			continue
		}
		net := s.Net().Cents
		switch {
		case net > 0:
			debtors = append(debtors, balance{name: m, cents: net})
		case net < 0:
			creditors = append(creditors, balance{name: m, cents: -net})
		}
	}
	if len(debtors) == 0 || len(creditors) == 0 {
		return nil
	}

	sort.SliceStable(creditors, func(i, j int) bool {
		return creditors[i].cents > creditors[j].cents
	})
	hub := creditors[0]

	plan := make([]Transfer, 0, len(debtors)+len(creditors)-1)
	for _, d := range debtors {
		plan = append(plan, Transfer{From: d.name, To: hub.name, Amount: Money{Cents: d.cents}})
	}
	for _, c := range creditors[1:] {
		plan = append(plan, Transfer{From: hub.name, To: c.name, Amount: Money{Cents: c.cents}})
	}
	return plan
}
