package library

import "database/sql"

// ProcessReturn checks a book back in. The whole sequence — overdue fine,
// damage fine, condition update, loan close, inventory move — commits as one
// transaction, so no step can be observed without the others.
//
// Fines are issued before the loan is marked returned: a returned loan never
// retroactively gains an overdue fine. The state flip is a compare-and-swap,
// so of two concurrent returns on the same loan exactly one succeeds; the
// other fails with an invalid-state error ("already returned").
func (d *Database) ProcessReturn(loanID string, inspection Inspection) (*ReturnResult, error) {
	if !ValidCondition(inspection.NewCondition) {
		return nil, rejectedf("unknown book condition %q", inspection.NewCondition)
	}

	var result *ReturnResult
	err := d.withTx(func(tx *sql.Tx) error {
		loan, err := d.getLoanTx(tx, loanID)
		if err != nil {
			return err
		}
		if loan.State == LoanReturned {
			return invalidStatef("this loan was already returned")
		}

		book, err := d.getBookTx(tx, loan.BookID)
		if err != nil {
			return err
		}

		now := d.now()
		var fine *Fine

		if days := loan.OverdueDays(now); days > 0 {
			fine, err = d.issueOverdueFineTx(tx, loan, days, book.Title)
			if err != nil {
				return err
			}
		}

		// A damage fine is independent of the overdue fine; both may exist.
		// The result carries the damage fine when there is one.
		if inspection.Damaged {
			fine, err = d.issueDamageFineTx(tx, loan, inspection.DamageDescription, book.Pricing.PurchasePrice)
			if err != nil {
				return err
			}
		}

		if err := d.updateBookConditionTx(tx, book.ID, inspection.NewCondition); err != nil {
			return err
		}

		var depositRefund float64
		if loan.Kind == KindRental && !inspection.Damaged {
			depositRefund = loan.Costs.Deposit
		}

		flipped, err := d.markLoanStateTx(tx, loan.ID,
			[]LoanState{LoanActive, LoanOverdue, LoanLost}, LoanReturned, &now)
		if err != nil {
			return err
		}
		if !flipped {
			return invalidStatef("this loan was already returned")
		}

		if err := d.adjustInventoryTx(tx, book.ID, +1, -1); err != nil {
			return err
		}

		result = &ReturnResult{
			Success:       true,
			Message:       "return processed successfully",
			Fine:          fine,
			DepositRefund: depositRefund,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PreviewReturn is the pure counterpart of ProcessReturn: it reports what a
// return would cost right now without writing anything.
func (d *Database) PreviewReturn(loanID string) (*ReturnPreview, error) {
	loan, err := d.GetLoan(loanID)
	if err != nil {
		return nil, err
	}
	book, err := d.GetBook(loan.BookID)
	if err != nil {
		return nil, err
	}
	loan.Book = book

	days := loan.OverdueDays(d.now())
	preview := &ReturnPreview{
		Loan:        loan,
		OverdueDays: days,
		Overdue:     days > 0,
	}
	if days > 0 {
		preview.PotentialFine = float64(days) * d.schedule.OverdueDailyRate
	}
	if loan.Kind == KindRental {
		preview.RefundableDeposit = loan.Costs.Deposit
	}
	return preview, nil
}
