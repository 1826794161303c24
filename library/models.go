package library

import (
	"math"
	"time"
)

// BookCondition is the physical condition recorded for a book copy.
type BookCondition string

const (
	ConditionNew  BookCondition = "new"
	ConditionGood BookCondition = "good"
	ConditionFair BookCondition = "fair"
	ConditionPoor BookCondition = "poor"
)

// ValidCondition reports whether c is one of the known condition values.
func ValidCondition(c BookCondition) bool {
	switch c {
	case ConditionNew, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

// Inventory tracks the physical copies of a title.
// Invariant: Available + OnLoan + Reserved == Total, all counters >= 0.
type Inventory struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	OnLoan    int `json:"on_loan"`
	Reserved  int `json:"reserved"`
}

// Consistent reports whether the counters add up and none is negative.
func (inv Inventory) Consistent() bool {
	if inv.Total < 0 || inv.Available < 0 || inv.OnLoan < 0 || inv.Reserved < 0 {
		return false
	}
	return inv.Available+inv.OnLoan+inv.Reserved == inv.Total
}

// Pricing holds the purchase and rental tariffs of a title.
type Pricing struct {
	PurchasePrice   float64 `json:"purchase_price"`
	DailyRentalRate float64 `json:"daily_rental_rate"`
	RentalDeposit   float64 `json:"rental_deposit"`
}

// Book represents a catalog title with its inventory counters.
type Book struct {
	ID          int64         `json:"id"`
	ISBN        string        `json:"isbn"`
	Title       string        `json:"title"`
	Author      string        `json:"author"`
	Publisher   string        `json:"publisher,omitempty"`
	Year        int           `json:"year,omitempty"`
	Language    string        `json:"language,omitempty"`
	Genres      []string      `json:"genres,omitempty"`
	Description string        `json:"description,omitempty"`
	Condition   BookCondition `json:"condition"`
	Active      bool          `json:"active"`
	Inventory   Inventory     `json:"inventory"`
	Pricing     Pricing       `json:"pricing"`
}

// AvailableForLoan reports whether at least one copy can be borrowed.
func (b *Book) AvailableForLoan() bool {
	return b.Active && b.Inventory.Available > 0
}

// PatronRole distinguishes administrators from regular patrons.
type PatronRole string

const (
	RoleAdmin PatronRole = "admin"
	RoleUser  PatronRole = "user"
)

// Patron represents a registered library patron.
// Loans and fines are not embedded; they are looked up by patron id.
type Patron struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Role         PatronRole `json:"role"`
	Active       bool       `json:"active"`
	Banned       bool       `json:"banned"`
	BanReason    string     `json:"ban_reason,omitempty"`
	BanExpiresAt *time.Time `json:"ban_expires_at,omitempty"`
	PasswordHash string     `json:"-"` // Don't serialize password hash
	LastAccessAt *time.Time `json:"last_access_at,omitempty"`
}

// InGoodStanding reports whether the patron account itself allows borrowing.
// Pending fines and the active-loan cap are checked separately against storage.
func (p *Patron) InGoodStanding() bool {
	return p.Active && !p.Banned
}

// banExpired reports whether a ban exists and its expiry has passed.
func (p *Patron) banExpired(now time.Time) bool {
	return p.Banned && p.BanExpiresAt != nil && p.BanExpiresAt.Before(now)
}

// LoanKind distinguishes free loans from paid rentals.
// A rental carries a fee plus a refundable deposit; a plain loan carries neither.
type LoanKind string

const (
	KindLoan   LoanKind = "loan"
	KindRental LoanKind = "rental"
)

// LoanState is the lifecycle state of a loan.
type LoanState string

const (
	LoanActive   LoanState = "active"
	LoanOverdue  LoanState = "overdue"
	LoanReturned LoanState = "returned"
	LoanLost     LoanState = "lost"
)

// ValidLoanState reports whether s is one of the known loan states.
func ValidLoanState(s LoanState) bool {
	switch s {
	case LoanActive, LoanOverdue, LoanReturned, LoanLost:
		return true
	}
	return false
}

// Renewal records a single due-date extension on a loan.
type Renewal struct {
	Date      time.Time `json:"date"`
	ExtraDays int       `json:"extra_days"`
	ExtraCost float64   `json:"extra_cost"`
}

// LoanCosts accumulates what a loan costs the patron.
// Total is recomputed whenever a component changes, never cached stale.
type LoanCosts struct {
	RentalFee float64 `json:"rental_fee"`
	Deposit   float64 `json:"deposit"`
	Fine      float64 `json:"fine"`
	Total     float64 `json:"total"`
}

// Loan is the central circulation record: one book borrowed by one patron.
type Loan struct {
	ID         string     `json:"id"`
	PatronID   int64      `json:"patron_id"`
	BookID     int64      `json:"book_id"`
	Kind       LoanKind   `json:"kind"`
	State      LoanState  `json:"state"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	DueAt      time.Time  `json:"due_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
	Costs      LoanCosts  `json:"costs"`
	Renewals   []Renewal  `json:"renewals"`
	Notes      string     `json:"notes,omitempty"`

	// Book is a snapshot populated by explicit joins, never lazily.
	Book *Book `json:"book,omitempty"`
}

// OverdueDays returns how many whole days the loan is past due at the given
// instant, rounding partial days up. A returned loan is never overdue,
// regardless of its dates.
func (l *Loan) OverdueDays(now time.Time) int {
	if l.State == LoanReturned {
		return 0
	}
	if !now.After(l.DueAt) {
		return 0
	}
	return int(math.Ceil(now.Sub(l.DueAt).Hours() / 24))
}

// FineKind is the reason a fine was issued.
type FineKind string

const (
	FineOverdue FineKind = "overdue"
	FineDamage  FineKind = "damage"
	FineLoss    FineKind = "loss"
)

// FineState is the lifecycle state of a fine.
type FineState string

const (
	FinePending  FineState = "pending"
	FinePaid     FineState = "paid"
	FineForgiven FineState = "forgiven"
)

// Fine is a monetary penalty tied to a loan. Amount decreases on partial
// payment and increases on escalation; it never goes below zero.
type Fine struct {
	ID          string     `json:"id"`
	PatronID    int64      `json:"patron_id"`
	LoanID      string     `json:"loan_id"`
	Kind        FineKind   `json:"kind"`
	Amount      float64    `json:"amount"`
	State       FineState  `json:"state"`
	IssuedAt    time.Time  `json:"issued_at"`
	DueAt       time.Time  `json:"due_at"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	OverdueDays int        `json:"overdue_days,omitempty"`
	Description string     `json:"description"`
}

// Outstanding returns the amount still owed on the fine.
func (f *Fine) Outstanding() float64 {
	if f.State != FinePending {
		return 0
	}
	return f.Amount
}

// Inspection is the result of checking a book in at return time.
type Inspection struct {
	NewCondition      BookCondition `json:"new_condition"`
	Damaged           bool          `json:"damaged"`
	DamageDescription string        `json:"damage_description,omitempty"`
}

// ReturnResult reports the outcome of processing a return.
// Fine carries the damage fine when the book came back damaged, otherwise the
// overdue fine if one was issued.
type ReturnResult struct {
	Success       bool    `json:"success"`
	Message       string  `json:"message"`
	Fine          *Fine   `json:"fine,omitempty"`
	DepositRefund float64 `json:"deposit_refund"`
}

// ReturnPreview is a read-only estimate of what a return would cost today.
type ReturnPreview struct {
	Loan              *Loan   `json:"loan"`
	OverdueDays       int     `json:"overdue_days"`
	Overdue           bool    `json:"overdue"`
	PotentialFine     float64 `json:"potential_fine"`
	RefundableDeposit float64 `json:"refundable_deposit"`
}

// LoanStatus pairs a loan with its current overdue day count.
type LoanStatus struct {
	Loan        *Loan `json:"loan"`
	OverdueDays int   `json:"overdue_days"`
}

// FineReport partitions a patron's fines into pending and paid.
type FineReport struct {
	Pending      []*Fine `json:"pending"`
	Paid         []*Fine `json:"paid"`
	TotalPending float64 `json:"total_pending"`
	TotalPaid    float64 `json:"total_paid"`
}
