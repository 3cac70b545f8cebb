package core

// ViewpointAll requests aggregate category totals over full amounts
// instead of one member's allocated share.
const ViewpointAll = ResponsibilitySentinel

// CategoryTotals aggregates expenses into per-category totals. Every
// known category appears in the result even at zero, which keeps chart
// axes stable. With ViewpointAll each expense contributes its full
// amount; with a member viewpoint it contributes that member's allocated
// share, and only when the member is in the resolved responsible set.
func CategoryTotals(expenses []Expense, house House, viewpoint string) map[string]Money {
	out := make(map[string]Money, len(house.Categories))
	for _, c := range house.Categories {
		out[c] = Money{}
	}
	for _, e := range expenses {
		if viewpoint == ViewpointAll {
			t := out[e.Category]
			t.Cents += e.Amount.Cents
			out[e.Category] = t
			continue
		}
		shares := AllocateShares(e.Amount, e.Responsibility.Resolve(house.Members))
		if share, ok := shares[viewpoint]; ok {
			t := out[e.Category]
			t.Cents += share.Cents
			out[e.Category] = t
		}
	}
	return out
}
