package core

import "testing"

func expense(payer string, cents int64, r Responsibility) Expense {
	return Expense{
		Date:           NewDate(2025, 3, 10),
		Title:          "t",
		Amount:         Money{Cents: cents},
		Category:       "Groceries",
		PaymentMethod:  "Card",
		Payer:          payer,
		Responsibility: r,
	}
}

func TestAllocateShares(t *testing.T) {
	got := AllocateShares(Money{Cents: 100}, []string{"a", "b", "c"})
	if got["a"].Cents != 34 || got["b"].Cents != 33 || got["c"].Cents != 33 {
		t.Fatalf("remainder should go to earliest members: %v", got)
	}

	var sum int64
	for _, m := range got {
		sum += m.Cents
	}
	if sum != 100 {
		t.Fatalf("allocation must sum to the amount, got %d", sum)
	}

	if AllocateShares(Money{Cents: 100}, nil) != nil {
		t.Fatalf("expected nil for empty member list")
	}
}

func TestSummarizeSharedEvenly(t *testing.T) {
	h := House{Members: []string{"Anna", "Marco"}, Categories: []string{"Groceries"}, PaymentMethods: []string{"Card"}}
	sum := Summarize([]Expense{expense("Anna", 10000, Everyone())}, h)

	if got := sum["Anna"]; got.Paid.Cents != 10000 || got.Share.Cents != 5000 {
		t.Fatalf("Anna: expected paid=10000 share=5000, got %+v", got)
	}
	if got := sum["Marco"]; got.Paid.Cents != 0 || got.Share.Cents != 5000 {
		t.Fatalf("Marco: expected paid=0 share=5000, got %+v", got)
	}
	if sum["Anna"].Net().Cents != -5000 || sum["Marco"].Net().Cents != 5000 {
		t.Fatalf("nets mismatch: %+v", sum)
	}
}

func TestSummarizeExplicitResponsibility(t *testing.T) {
	h := testHouse() // Anna, Marco, Giulia
	expenses := []Expense{
		expense("Anna", 6000, Split("Marco", "Giulia")),
		expense("Marco", 3000, Everyone()),
	}
	sum := Summarize(expenses, h)

	if got := sum["Anna"]; got.Paid.Cents != 6000 || got.Share.Cents != 1000 {
		t.Fatalf("Anna: %+v", got)
	}
	if got := sum["Marco"]; got.Paid.Cents != 3000 || got.Share.Cents != 4000 {
		t.Fatalf("Marco: %+v", got)
	}
	if got := sum["Giulia"]; got.Paid.Cents != 0 || got.Share.Cents != 4000 {
		t.Fatalf("Giulia: %+v", got)
	}
}

func TestSummarizeZeroSum(t *testing.T) {
	h := testHouse()
	expenses := []Expense{
		expense("Anna", 10001, Everyone()),
		expense("Marco", 333, Split("Anna", "Giulia")),
		expense("Giulia", 55555, Split("Giulia")),
		expense("Anna", 70, Everyone()),
	}
	sum := Summarize(expenses, h)

	var net int64
	for _, s := range sum {
		net += s.Net().Cents
	}
	if net != 0 {
		t.Fatalf("nets must sum to zero exactly, got %d", net)
	}
}

func TestSummarizeIgnoresUnknownPayer(t *testing.T) {
	h := testHouse()
	sum := Summarize([]Expense{expense("Stranger", 900, Everyone())}, h)

	var paid int64
	for _, s := range sum {
		paid += s.Paid.Cents
	}
	if paid != 0 {
		t.Fatalf("unknown payer must not be credited, got paid=%d", paid)
	}
	// The cost is still allocated across the roster.
	if sum["Anna"].Share.Cents != 300 {
		t.Fatalf("expected share 300, got %d", sum["Anna"].Share.Cents)
	}
}
