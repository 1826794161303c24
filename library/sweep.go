package library

import "database/sql"

// RunDailyFineSweep is the batch job behind the nightly cron: it promotes
// every active loan past its due date to overdue, issuing the overdue fine as
// it goes, then escalates every pending fine past its own payment deadline.
// The whole sweep commits as one transaction; a failure anywhere rolls back
// everything.
//
// Loans are processed sequentially on purpose. Each iteration pairs a fine
// insert with a state flip, and escalation depends on seeing the fines issued
// earlier in the same run.
func (d *Database) RunDailyFineSweep() error {
	return d.withTx(func(tx *sql.Tx) error {
		now := d.now()

		overdue, err := d.findOverdueLoansTx(tx, now)
		if err != nil {
			return err
		}

		for _, loan := range overdue {
			book, err := d.getBookTx(tx, loan.BookID)
			if err != nil {
				return err
			}
			days := loan.OverdueDays(now)
			if days > 0 {
				if _, err := d.issueOverdueFineTx(tx, loan, days, book.Title); err != nil {
					return err
				}
			}
			loan.State = LoanOverdue
			if err := d.updateLoanTx(tx, loan); err != nil {
				return err
			}
		}

		return d.escalateFinesTx(tx, now)
	})
}
