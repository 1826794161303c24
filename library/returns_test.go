package library

import (
	"fmt"
	"testing"
)

func TestReturnOnTimeIsClean(t *testing.T) {
	db, clock := tempDB(t)

	book := addTestBook(t, db, 2, Pricing{PurchasePrice: 1000})
	patronID := addTestPatron(t, db, "Rita Prompt")

	loan, err := db.CreateLoan(fmt.Sprint(patronID), book.ID, KindLoan, 14)
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}
	clock.advanceDays(10)

	result, err := db.ProcessReturn(loan.ID, Inspection{NewCondition: ConditionGood})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if !result.Success || result.Fine != nil || result.DepositRefund != 0 {
		t.Fatalf("on-time loan return should be clean: %+v", result)
	}

	reloaded, _ := db.GetLoan(loan.ID)
	if reloaded.State != LoanReturned || reloaded.ReturnedAt == nil {
		t.Fatalf("loan not closed: %+v", reloaded)
	}

	got, _ := db.GetBook(book.ID)
	if got.Inventory.Available != 2 || got.Inventory.OnLoan != 0 {
		t.Fatalf("copy did not come back: %+v", got.Inventory)
	}
	if got.Condition != ConditionGood {
		t.Fatalf("condition not recorded: %s", got.Condition)
	}
}

func TestReturnLateIssuesOverdueFine(t *testing.T) {
	db, clock := tempDB(t)

	book := addTestBook(t, db, 1, Pricing{PurchasePrice: 1000})
	patronID := addTestPatron(t, db, "Saul Late")

	loan, err := db.CreateLoan(fmt.Sprint(patronID), book.ID, KindLoan, 14)
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}
	clock.advanceDays(17) // 3 days late

	result, err := db.ProcessReturn(loan.ID, Inspection{NewCondition: ConditionFair})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if result.Fine == nil {
		t.Fatalf("late return should carry a fine")
	}
	if result.Fine.Kind != FineOverdue || result.Fine.Amount != 300 {
		t.Fatalf("want overdue fine of 300, got %s %.2f", result.Fine.Kind, result.Fine.Amount)
	}
	if result.Fine.OverdueDays != 3 {
		t.Fatalf("want 3 overdue days on the fine, got %d", result.Fine.OverdueDays)
	}
	if got := result.Fine.DueAt.Sub(clock.Now()).Hours(); got != 7*24 {
		t.Fatalf("fine should be due in 7 days, got %.0f hours", got)
	}
}

func TestReturnDamagedRentalForfeitsDeposit(t *testing.T) {
	db, clock := tempDB(t)

	book := addTestBook(t, db, 1, Pricing{PurchasePrice: 1000, DailyRentalRate: 10, RentalDeposit: 200})
	patronID := addTestPatron(t, db, "Tess Clumsy")

	loan, err := db.CreateLoan(fmt.Sprint(patronID), book.ID, KindRental, 14)
	if err != nil {
		t.Fatalf("create rental: %v", err)
	}
	clock.advanceDays(17) // 3 days late AND damaged

	result, err := db.ProcessReturn(loan.ID, Inspection{
		NewCondition:      ConditionPoor,
		Damaged:           true,
		DamageDescription: "water damage on the back cover",
	})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if result.DepositRefund != 0 {
		t.Fatalf("damaged rental should forfeit the deposit, got refund %.2f", result.DepositRefund)
	}
	// The result carries the damage fine; the overdue fine exists alongside it.
	if result.Fine == nil || result.Fine.Kind != FineDamage || result.Fine.Amount != 500 {
		t.Fatalf("want damage fine of 500 (half purchase price), got %+v", result.Fine)
	}

	report, err := db.FineReport(fmt.Sprint(patronID))
	if err != nil {
		t.Fatalf("fine report: %v", err)
	}
	if len(report.Pending) != 2 {
		t.Fatalf("want overdue and damage fines pending, got %d", len(report.Pending))
	}
	if report.TotalPending != 800 {
		t.Fatalf("want 800 pending (300 overdue + 500 damage), got %.2f", report.TotalPending)
	}
}

func TestReturnUndamagedRentalRefundsDeposit(t *testing.T) {
	db, _ := tempDB(t)

	book := addTestBook(t, db, 1, Pricing{PurchasePrice: 1000, DailyRentalRate: 10, RentalDeposit: 200})
	patronID := addTestPatron(t, db, "Uma Careful")

	loan, err := db.CreateLoan(fmt.Sprint(patronID), book.ID, KindRental, 14)
	if err != nil {
		t.Fatalf("create rental: %v", err)
	}

	result, err := db.ProcessReturn(loan.ID, Inspection{NewCondition: ConditionGood})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if result.DepositRefund != 200 {
		t.Fatalf("want full deposit back, got %.2f", result.DepositRefund)
	}
}

func TestReturnIsNotRepeatable(t *testing.T) {
	db, _ := tempDB(t)

	book := addTestBook(t, db, 1, Pricing{})
	patronID := addTestPatron(t, db, "Vera Once")

	loan, err := db.CreateLoan(fmt.Sprint(patronID), book.ID, KindLoan, 14)
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}
	if _, err := db.ProcessReturn(loan.ID, Inspection{NewCondition: ConditionGood}); err != nil {
		t.Fatalf("first return: %v", err)
	}

	_, err = db.ProcessReturn(loan.ID, Inspection{NewCondition: ConditionGood})
	if !IsKind(err, KindInvalidState) {
		t.Fatalf("want invalid state on second return, got %v", err)
	}

	// The failed second return must not touch inventory.
	got, _ := db.GetBook(book.ID)
	if got.Inventory.Available != 1 || got.Inventory.OnLoan != 0 {
		t.Fatalf("inventory moved twice: %+v", got.Inventory)
	}
}

func TestReturnRejectsUnknownCondition(t *testing.T) {
	db, _ := tempDB(t)

	if _, err := db.ProcessReturn("whatever", Inspection{NewCondition: "pristine"}); !IsKind(err, KindRejected) {
		t.Fatalf("want rejected for unknown condition, got %v", err)
	}
	if _, err := db.ProcessReturn("no-such-loan", Inspection{NewCondition: ConditionGood}); !IsKind(err, KindNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestPreviewReturnDoesNotWrite(t *testing.T) {
	db, clock := tempDB(t)

	book := addTestBook(t, db, 1, Pricing{PurchasePrice: 1000, DailyRentalRate: 10, RentalDeposit: 200})
	patronID := addTestPatron(t, db, "Walt Curious")

	loan, err := db.CreateLoan(fmt.Sprint(patronID), book.ID, KindRental, 14)
	if err != nil {
		t.Fatalf("create rental: %v", err)
	}
	clock.advanceDays(16) // 2 days late

	preview, err := db.PreviewReturn(loan.ID)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !preview.Overdue || preview.OverdueDays != 2 {
		t.Fatalf("want 2 overdue days, got %+v", preview)
	}
	if preview.PotentialFine != 200 {
		t.Fatalf("want potential fine 200, got %.2f", preview.PotentialFine)
	}
	if preview.RefundableDeposit != 200 {
		t.Fatalf("want refundable deposit 200, got %.2f", preview.RefundableDeposit)
	}

	// Nothing happened: no fine was issued, the loan is still open.
	report, _ := db.FineReport(fmt.Sprint(patronID))
	if len(report.Pending) != 0 {
		t.Fatalf("preview issued a fine: %+v", report.Pending)
	}
	reloaded, _ := db.GetLoan(loan.ID)
	if reloaded.State == LoanReturned {
		t.Fatalf("preview closed the loan")
	}
}
