package library

import "database/sql"

// CreateLoan borrows a book for a patron. patronRef may be a numeric id or an
// email address. durationDays <= 0 selects the default loan period.
//
// Preconditions are checked in order and the first failure wins: patron
// exists, patron eligible (active, not banned, no pending fines, under the
// active-loan cap), book exists, book active with a copy on the shelf. The
// loan insert, the inventory move and the patron linkage commit as one
// transaction.
func (d *Database) CreateLoan(patronRef string, bookID int64, kind LoanKind, durationDays int) (*Loan, error) {
	if kind != KindLoan && kind != KindRental {
		return nil, rejectedf("unknown loan kind %q", kind)
	}
	if durationDays <= 0 {
		durationDays = d.schedule.DefaultLoanDays
	}

	var loan *Loan
	err := d.withTx(func(tx *sql.Tx) error {
		patron, err := d.findPatronTx(tx, patronRef)
		if err != nil {
			return err
		}
		if err := d.checkEligibilityTx(tx, patron); err != nil {
			return err
		}

		book, err := d.getBookTx(tx, bookID)
		if err != nil {
			return err
		}
		if !book.AvailableForLoan() {
			return rejectedf("book %q is not available right now", book.Title)
		}

		now := d.now()
		loan = &Loan{
			PatronID:   patron.ID,
			BookID:     book.ID,
			Kind:       kind,
			State:      LoanActive,
			BorrowedAt: now,
			DueAt:      now.AddDate(0, 0, durationDays),
			Renewals:   []Renewal{},
		}
		if kind == KindRental {
			loan.Costs.RentalFee = book.Pricing.DailyRentalRate * float64(durationDays)
			loan.Costs.Deposit = book.Pricing.RentalDeposit
			loan.Costs.Total = loan.Costs.RentalFee + loan.Costs.Deposit
		}

		if err := d.insertLoanTx(tx, loan); err != nil {
			return err
		}
		if err := d.adjustInventoryTx(tx, book.ID, -1, +1); err != nil {
			return err
		}

		// Snapshot for the caller reflects the post-loan counters.
		book.Inventory.Available--
		book.Inventory.OnLoan++
		loan.Book = book
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// checkEligibilityTx enforces the borrow rules for a loaded patron.
func (d *Database) checkEligibilityTx(q querier, patron *Patron) error {
	if !patron.Active {
		return rejectedf("patron account is inactive")
	}
	if patron.Banned {
		reason := patron.BanReason
		if reason == "" {
			reason = "no reason recorded"
		}
		return rejectedf("patron is banned: %s", reason)
	}
	pending, err := d.countPendingFinesTx(q, patron.ID)
	if err != nil {
		return err
	}
	if pending > 0 {
		return rejectedf("patron has %d pending fines", pending)
	}
	active, err := d.countActiveLoansTx(q, patron.ID)
	if err != nil {
		return err
	}
	if active >= d.schedule.MaxActiveLoans {
		return limitExceededf("patron has reached the limit of %d active loans", d.schedule.MaxActiveLoans)
	}
	return nil
}

// RenewLoan extends an active loan's due date. extraDays <= 0 selects the
// default renewal period. At most MaxRenewals renewals are allowed per loan;
// rentals pay the daily rate for the extension.
func (d *Database) RenewLoan(loanID string, extraDays int) (*Loan, error) {
	if extraDays <= 0 {
		extraDays = d.schedule.DefaultRenewalDays
	}

	var loan *Loan
	err := d.withTx(func(tx *sql.Tx) error {
		var err error
		loan, err = d.getLoanTx(tx, loanID)
		if err != nil {
			return err
		}
		if loan.State != LoanActive {
			return invalidStatef("only active loans can be renewed, this one is %s", loan.State)
		}
		if len(loan.Renewals) >= d.schedule.MaxRenewals {
			return limitExceededf("loan has reached the limit of %d renewals", d.schedule.MaxRenewals)
		}

		book, err := d.getBookTx(tx, loan.BookID)
		if err != nil {
			return err
		}

		var extraCost float64
		if loan.Kind == KindRental {
			extraCost = book.Pricing.DailyRentalRate * float64(extraDays)
		}

		loan.DueAt = loan.DueAt.AddDate(0, 0, extraDays)
		loan.Renewals = append(loan.Renewals, Renewal{
			Date:      d.now(),
			ExtraDays: extraDays,
			ExtraCost: extraCost,
		})
		if extraCost > 0 {
			loan.Costs.RentalFee += extraCost
			loan.Costs.Total += extraCost
		}

		if err := d.updateLoanTx(tx, loan); err != nil {
			return err
		}
		loan.Book = book
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// GetLoanStatus returns a loan and its current overdue day count. This is a
// documented side-effecting read: an active loan found past its due date is
// promoted to overdue and the promotion persisted before the status is
// returned.
func (d *Database) GetLoanStatus(loanID string) (*LoanStatus, error) {
	var status *LoanStatus
	err := d.withTx(func(tx *sql.Tx) error {
		loan, err := d.getLoanTx(tx, loanID)
		if err != nil {
			return err
		}

		now := d.now()
		if loan.State == LoanActive && now.After(loan.DueAt) {
			loan.State = LoanOverdue
			if err := d.updateLoanTx(tx, loan); err != nil {
				return err
			}
		}

		book, err := d.getBookTx(tx, loan.BookID)
		if err != nil {
			return err
		}
		loan.Book = book
		status = &LoanStatus{Loan: loan, OverdueDays: loan.OverdueDays(now)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// UpdateLoan is the administrative override: set a loan's state directly and
// optionally attach notes. It bypasses the circulation rules on purpose and
// does not touch inventory, so it is for corrections, not for returns.
func (d *Database) UpdateLoan(loanID string, state LoanState, notes string) (*Loan, error) {
	if !ValidLoanState(state) {
		return nil, rejectedf("unknown loan state %q", state)
	}

	var loan *Loan
	err := d.withTx(func(tx *sql.Tx) error {
		var err error
		loan, err = d.getLoanTx(tx, loanID)
		if err != nil {
			return err
		}
		loan.State = state
		if notes != "" {
			loan.Notes = notes
		}
		return d.updateLoanTx(tx, loan)
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// PatronLoans returns all loans for an id-or-email patron reference, newest
// first, with book snapshots.
func (d *Database) PatronLoans(patronRef string) ([]*Loan, error) {
	patron, err := d.FindPatron(patronRef)
	if err != nil {
		return nil, err
	}
	return d.LoansForPatron(patron.ID)
}
