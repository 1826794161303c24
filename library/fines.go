package library

import (
	"database/sql"
	"fmt"
	"time"
)

// issueOverdueFineTx creates a pending overdue fine for a loan that is days
// past due. Used by the return processor and the daily sweep.
func (d *Database) issueOverdueFineTx(q querier, loan *Loan, days int, bookTitle string) (*Fine, error) {
	now := d.now()
	fine := &Fine{
		PatronID:    loan.PatronID,
		LoanID:      loan.ID,
		Kind:        FineOverdue,
		Amount:      float64(days) * d.schedule.OverdueDailyRate,
		State:       FinePending,
		IssuedAt:    now,
		DueAt:       now.AddDate(0, 0, d.schedule.FinePaymentDays),
		OverdueDays: days,
		Description: fmt.Sprintf("%d days late returning %q", days, bookTitle),
	}
	if err := d.insertFineTx(q, fine); err != nil {
		return nil, err
	}
	return fine, nil
}

// issueDamageFineTx creates a pending damage fine at the return-desk tariff.
func (d *Database) issueDamageFineTx(q querier, loan *Loan, description string, purchasePrice float64) (*Fine, error) {
	if description == "" {
		description = "damage not specified"
	}
	now := d.now()
	fine := &Fine{
		PatronID:    loan.PatronID,
		LoanID:      loan.ID,
		Kind:        FineDamage,
		Amount:      purchasePrice * d.schedule.ReturnDamagePercent,
		State:       FinePending,
		IssuedAt:    now,
		DueAt:       now.AddDate(0, 0, d.schedule.FinePaymentDays),
		Description: description,
	}
	if err := d.insertFineTx(q, fine); err != nil {
		return nil, err
	}
	return fine, nil
}

// PayFine applies a full or partial payment to a pending fine. The paid
// amount must be positive and no larger than what is owed; when the balance
// reaches zero the fine flips to paid.
func (d *Database) PayFine(fineID string, amountPaid float64) (*Fine, error) {
	if amountPaid <= 0 {
		return nil, rejectedf("payment amount must be positive")
	}

	var fine *Fine
	err := d.withTx(func(tx *sql.Tx) error {
		var err error
		fine, err = d.getFineTx(tx, fineID)
		if err != nil {
			return err
		}
		if fine.State != FinePending {
			return invalidStatef("only pending fines can be paid, this one is %s", fine.State)
		}
		if amountPaid > fine.Amount {
			return overPaymentf("payment of %.2f exceeds the %.2f owed", amountPaid, fine.Amount)
		}

		fine.Amount -= amountPaid
		if fine.Amount <= 0 {
			fine.Amount = 0
			fine.State = FinePaid
			paidAt := d.now()
			fine.PaidAt = &paidAt
		}
		return d.updateFineTx(tx, fine)
	})
	if err != nil {
		return nil, err
	}
	return fine, nil
}

// IssueDamageOrLossFine is the standalone damage/loss report: it fines the
// patron a percentage of the book's purchase price (30% for damage, 100% for
// loss) with the longer standalone payment window, and forces the loan to
// lost. Inventory is left to manual correction, matching how lost copies are
// reconciled off-system.
func (d *Database) IssueDamageOrLossFine(loanID string, kind FineKind) (*Fine, error) {
	if kind != FineDamage && kind != FineLoss {
		return nil, rejectedf("fine kind must be damage or loss, got %q", kind)
	}

	var fine *Fine
	err := d.withTx(func(tx *sql.Tx) error {
		loan, err := d.getLoanTx(tx, loanID)
		if err != nil {
			return err
		}
		if loan.State != LoanActive && loan.State != LoanOverdue {
			return invalidStatef("cannot report damage or loss on a %s loan", loan.State)
		}

		book, err := d.getBookTx(tx, loan.BookID)
		if err != nil {
			return err
		}

		amount := book.Pricing.PurchasePrice * d.schedule.DamagePercentOfPrice
		description := fmt.Sprintf("damage to %q", book.Title)
		if kind == FineLoss {
			amount = book.Pricing.PurchasePrice * d.schedule.LossPercentOfPrice
			description = fmt.Sprintf("loss of %q", book.Title)
		}

		now := d.now()
		fine = &Fine{
			PatronID:    loan.PatronID,
			LoanID:      loan.ID,
			Kind:        kind,
			Amount:      amount,
			State:       FinePending,
			IssuedAt:    now,
			DueAt:       now.AddDate(0, 0, d.schedule.StandaloneFineDueDays),
			Description: description,
		}
		if err := d.insertFineTx(tx, fine); err != nil {
			return err
		}

		loan.State = LoanLost
		return d.updateLoanTx(tx, loan)
	})
	if err != nil {
		return nil, err
	}
	return fine, nil
}

// FineReport partitions a patron's fines into pending and paid with totals.
// Read-only.
func (d *Database) FineReport(patronRef string) (*FineReport, error) {
	patron, err := d.FindPatron(patronRef)
	if err != nil {
		return nil, err
	}

	pending, err := d.finesByStateTx(d.db, patron.ID, FinePending)
	if err != nil {
		return nil, err
	}
	paid, err := d.finesByStateTx(d.db, patron.ID, FinePaid)
	if err != nil {
		return nil, err
	}

	report := &FineReport{Pending: pending, Paid: paid}
	for _, f := range pending {
		report.TotalPending += f.Amount
	}
	for _, f := range paid {
		report.TotalPaid += f.Amount
	}
	return report, nil
}

// escalateFinesTx raises every pending fine past its own due date by the
// escalation factor and bans patrons who have accumulated more pending fines
// than the threshold. Sweep-only.
func (d *Database) escalateFinesTx(q querier, now time.Time) error {
	fines, err := d.findEscalatableFinesTx(q, now)
	if err != nil {
		return err
	}

	for _, fine := range fines {
		fine.Amount *= d.schedule.EscalationFactor
		fine.Description += " (fine increased after missed payment deadline)"
		if err := d.updateFineTx(q, fine); err != nil {
			return err
		}

		pending, err := d.countPendingFinesTx(q, fine.PatronID)
		if err != nil {
			return err
		}
		if pending > d.schedule.EscalationBanThreshold {
			until := now.AddDate(0, 0, d.schedule.BanDays)
			if err := d.banPatronTx(q, fine.PatronID, "multiple pending fines", until); err != nil {
				return err
			}
		}
	}
	return nil
}
