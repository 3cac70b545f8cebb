package core

// Resolve expands a responsibility into the concrete members that bear a
// share of the cost, in roster order.
//
// "Everyone" (and, for tolerance with older records, an empty selection)
// resolves to the full roster. Explicit selections are filtered to names
// present in the roster; unknown names are dropped, not errored. The
// result is never empty for a non-empty roster: a selection whose names
// are all unknown falls back to the full roster so nothing downstream
// ever divides by a zero-length set.
func (r Responsibility) Resolve(roster []string) []string {
	if r.all || len(r.members) == 0 {
		return append([]string(nil), roster...)
	}
	selected := make(map[string]struct{}, len(r.members))
	for _, m := range r.members {
		selected[m] = struct{}{}
	}
	out := make([]string, 0, len(r.members))
	for _, m := range roster {
		if _, ok := selected[m]; ok {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), roster...)
	}
	return out
}
