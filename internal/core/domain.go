package core

import (
	"errors"
	"strings"
	"time"
)

// ResponsibilitySentinel marks an "everyone" cost split in wire and storage
// encodings of a Responsibility.
const ResponsibilitySentinel = "*"

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Responsibility is the set of members that bear the cost of an
	// expense: either the whole roster or an explicit selection.
	Responsibility struct {
		all     bool
		members []string
	}

	Expense struct {
		ID             int64
		Date           Date
		Title          string
		Description    string // optional
		Amount         Money
		Category       string
		PaymentMethod  string
		Payer          string
		Responsibility Responsibility
		PeriodID       string // empty while the expense is still active
	}

	// House is the fixed configuration every core computation runs
	// against. It never mutates at runtime.
	House struct {
		Members        []string
		Categories     []string
		PaymentMethods []string
	}
)

var (
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrEmptyTitle           = errors.New("empty title")
	ErrUnknownCategory      = errors.New("unknown category")
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
	ErrUnknownPayer         = errors.New("unknown payer")
	ErrEmptyResponsibility  = errors.New("empty responsibility selection")
	ErrEmptyRoster          = errors.New("empty member roster")
)

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a calendar date in YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Everyone returns the responsibility that spreads the cost over the
// whole roster.
func Everyone() Responsibility {
	return Responsibility{all: true}
}

// Split returns a responsibility limited to the given members.
func Split(names ...string) Responsibility {
	return Responsibility{members: append([]string(nil), names...)}
}

// IsAll reports whether the whole roster bears the cost.
func (r Responsibility) IsAll() bool { return r.all }

// Selection returns the explicit member selection, nil for "everyone".
func (r Responsibility) Selection() []string {
	return append([]string(nil), r.members...)
}

func (r Responsibility) Validate() error {
	if !r.all && len(r.members) == 0 {
		return ErrEmptyResponsibility
	}
	return nil
}

// Encode renders the responsibility for storage: the sentinel for
// "everyone", otherwise the member names joined by commas.
func (r Responsibility) Encode() string {
	if r.all || len(r.members) == 0 {
		return ResponsibilitySentinel
	}
	return strings.Join(r.members, ",")
}

// ParseResponsibility is the inverse of Encode. An empty or sentinel
// value decodes to "everyone", matching the tolerance older records need.
func ParseResponsibility(s string) Responsibility {
	s = strings.TrimSpace(s)
	if s == "" || s == ResponsibilitySentinel {
		return Everyone()
	}
	parts := strings.Split(s, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	if len(names) == 0 {
		return Everyone()
	}
	return Responsibility{members: names}
}

func (h House) HasMember(name string) bool        { return contains(h.Members, name) }
func (h House) HasCategory(name string) bool      { return contains(h.Categories, name) }
func (h House) HasPaymentMethod(name string) bool { return contains(h.PaymentMethods, name) }

func (h House) Validate() error {
	if len(h.Members) == 0 {
		return ErrEmptyRoster
	}
	if len(h.Categories) == 0 {
		return errors.New("empty category list")
	}
	if len(h.PaymentMethods) == 0 {
		return errors.New("empty payment method list")
	}
	return nil
}

// Validate checks an expense against the house configuration. Archived
// and active records validate the same way.
func (e Expense) Validate(h House) error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(e.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !h.HasCategory(e.Category) {
		return ErrUnknownCategory
	}
	if !h.HasPaymentMethod(e.PaymentMethod) {
		return ErrUnknownPaymentMethod
	}
	if !h.HasMember(e.Payer) {
		return ErrUnknownPayer
	}
	return e.Responsibility.Validate()
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
