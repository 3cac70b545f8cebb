package core

// MemberSummary is the derived paid/share balance for one member over a
// set of expenses. It is never persisted except as a frozen snapshot
// inside a Period.
type MemberSummary struct {
	Paid  Money
	Share Money
}

// Net is share minus paid: positive means the member owes money,
// negative means the member is owed.
func (s MemberSummary) Net() Money {
	return Money{Cents: s.Share.Cents - s.Paid.Cents}
}

// AllocateShares splits an amount over the given members. The base share
// is amount/len(members); the remainder cents go one each to the earliest
// members, so the allocation always sums exactly to the amount.
func AllocateShares(amount Money, members []string) map[string]Money {
	n := int64(len(members))
	if n == 0 {
		return nil
	}
	base := amount.Cents / n
	rem := amount.Cents % n
	out := make(map[string]Money, n)
	for i, m := range members {
		cents := base
		if int64(i) < rem {
			cents++
		}
		out[m] = Money{Cents: cents}
	}
	return out
}

// Summarize aggregates expenses into per-member paid and share totals.
// Every roster member appears in the result, zero-valued if untouched.
// Payers not on the roster are ignored, keeping partially migrated
// records from poisoning the totals. Pure and order-independent.
func Summarize(expenses []Expense, house House) map[string]MemberSummary {
	out := make(map[string]MemberSummary, len(house.Members))
	for _, m := range house.Members {
		out[m] = MemberSummary{}
	}
	for _, e := range expenses {
		if s, ok := out[e.Payer]; ok {
			s.Paid.Cents += e.Amount.Cents
			out[e.Payer] = s
		}
		shares := AllocateShares(e.Amount, e.Responsibility.Resolve(house.Members))
		for m, share := range shares {
			if s, ok := out[m]; ok {
				s.Share.Cents += share.Cents
				out[m] = s
			}
		}
	}
	return out
}
