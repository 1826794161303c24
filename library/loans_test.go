package library

import (
	"fmt"
	"testing"
)

func TestCreateLoanMovesInventory(t *testing.T) {
	db, _ := tempDB(t)

	book := addTestBook(t, db, 1, Pricing{})
	patronID := addTestPatron(t, db, "Eva Reader")

	loan, err := db.CreateLoan(fmt.Sprint(patronID), book.ID, KindLoan, 14)
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}
	if loan.State != LoanActive {
		t.Fatalf("want active, got %s", loan.State)
	}
	if loan.DueAt.Sub(loan.BorrowedAt).Hours() != 14*24 {
		t.Fatalf("due date should be 14 days out")
	}
	if loan.Costs.Total != 0 {
		t.Fatalf("a plain loan has no costs, got %+v", loan.Costs)
	}
	if loan.Book == nil || loan.Book.ID != book.ID {
		t.Fatalf("loan should carry a book snapshot")
	}

	got, _ := db.GetBook(book.ID)
	if got.Inventory.Available != 0 || got.Inventory.OnLoan != 1 {
		t.Fatalf("inventory did not move: %+v", got.Inventory)
	}
	if !got.Inventory.Consistent() {
		t.Fatalf("inventory inconsistent: %+v", got.Inventory)
	}
}

func TestCreateLoanByEmail(t *testing.T) {
	db, _ := tempDB(t)

	book := addTestBook(t, db, 1, Pricing{})
	addTestPatron(t, db, "Frank Reader")

	loan, err := db.CreateLoan("frank.reader@example.com", book.ID, KindLoan, 0)
	if err != nil {
		t.Fatalf("create loan by email: %v", err)
	}
	if loan.DueAt.Sub(loan.BorrowedAt).Hours() != 14*24 {
		t.Fatalf("default duration should be 14 days")
	}
}

func TestCreateRentalComputesCosts(t *testing.T) {
	db, _ := tempDB(t)

	book := addTestBook(t, db, 1, Pricing{PurchasePrice: 1000, DailyRentalRate: 15, RentalDeposit: 200})
	patronID := addTestPatron(t, db, "Gina Renter")

	loan, err := db.CreateLoan(fmt.Sprint(patronID), book.ID, KindRental, 10)
	if err != nil {
		t.Fatalf("create rental: %v", err)
	}
	if loan.Costs.RentalFee != 150 {
		t.Fatalf("want rental fee 150, got %.2f", loan.Costs.RentalFee)
	}
	if loan.Costs.Deposit != 200 {
		t.Fatalf("want deposit 200, got %.2f", loan.Costs.Deposit)
	}
	if loan.Costs.Total != 350 {
		t.Fatalf("want total 350, got %.2f", loan.Costs.Total)
	}
}

func TestCreateLoanRejectsPendingFines(t *testing.T) {
	db, clock := tempDB(t)

	book := addTestBook(t, db, 5, Pricing{})
	patronID := addTestPatron(t, db, "Henry Debtor")

	first, err := db.CreateLoan(fmt.Sprint(patronID), book.ID, KindLoan, 14)
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}
	fine := &Fine{
		PatronID: patronID, LoanID: first.ID, Kind: FineOverdue,
		Amount: 100, State: FinePending,
		IssuedAt: clock.Now(), DueAt: clock.Now().AddDate(0, 0, 7),
		Description: "test fine",
	}
	if err := db.insertFineTx(db.db, fine); err != nil {
		t.Fatalf("insert fine: %v", err)
	}

	_, err = db.CreateLoan(fmt.Sprint(patronID), book.ID, KindLoan, 14)
	if !IsKind(err, KindRejected) {
		t.Fatalf("want rejected for pending fines, got %v", err)
	}
}

func TestCreateLoanRejectsBannedPatron(t *testing.T) {
	db, clock := tempDB(t)

	book := addTestBook(t, db, 1, Pricing{})
	patronID := addTestPatron(t, db, "Ivan Banned")
	if err := db.banPatronTx(db.db, patronID, "vandalism", clock.Now().AddDate(0, 0, 60)); err != nil {
		t.Fatalf("ban: %v", err)
	}

	_, err := db.CreateLoan(fmt.Sprint(patronID), book.ID, KindLoan, 14)
	if !IsKind(err, KindRejected) {
		t.Fatalf("want rejected for banned patron, got %v", err)
	}
}

func TestCreateLoanRejectsUnavailableBook(t *testing.T) {
	db, _ := tempDB(t)

	book := addTestBook(t, db, 1, Pricing{})
	first := addTestPatron(t, db, "Jane First")
	second := addTestPatron(t, db, "Kyle Second")

	if _, err := db.CreateLoan(fmt.Sprint(first), book.ID, KindLoan, 14); err != nil {
		t.Fatalf("create loan: %v", err)
	}
	_, err := db.CreateLoan(fmt.Sprint(second), book.ID, KindLoan, 14)
	if !IsKind(err, KindRejected) {
		t.Fatalf("want rejected for unavailable book, got %v", err)
	}

	if _, err := db.CreateLoan(fmt.Sprint(second), 9999, KindLoan, 14); !IsKind(err, KindNotFound) {
		t.Fatalf("want not found for unknown book, got %v", err)
	}
}

func TestCreateLoanEnforcesActiveLoanCap(t *testing.T) {
	db, _ := tempDB(t)

	book := addTestBook(t, db, 5, Pricing{})
	patronID := addTestPatron(t, db, "Lara Collector")

	for i := 0; i < 3; i++ {
		if _, err := db.CreateLoan(fmt.Sprint(patronID), book.ID, KindLoan, 14); err != nil {
			t.Fatalf("loan %d: %v", i+1, err)
		}
	}
	_, err := db.CreateLoan(fmt.Sprint(patronID), book.ID, KindLoan, 14)
	if !IsKind(err, KindLimitExceeded) {
		t.Fatalf("want limit exceeded on 4th loan, got %v", err)
	}
}

func TestRenewLoanExtendsAndCharges(t *testing.T) {
	db, _ := tempDB(t)

	book := addTestBook(t, db, 1, Pricing{DailyRentalRate: 10, RentalDeposit: 100})
	patronID := addTestPatron(t, db, "Mona Renter")

	loan, err := db.CreateLoan(fmt.Sprint(patronID), book.ID, KindRental, 10)
	if err != nil {
		t.Fatalf("create rental: %v", err)
	}
	originalDue := loan.DueAt

	renewed, err := db.RenewLoan(loan.ID, 5)
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if renewed.DueAt.Sub(originalDue).Hours() != 5*24 {
		t.Fatalf("due date should move 5 days")
	}
	if len(renewed.Renewals) != 1 || renewed.Renewals[0].ExtraCost != 50 {
		t.Fatalf("renewal record wrong: %+v", renewed.Renewals)
	}
	if renewed.Costs.RentalFee != 150 || renewed.Costs.Total != 250 {
		t.Fatalf("costs not updated: %+v", renewed.Costs)
	}
}

func TestRenewLoanCapIsTwo(t *testing.T) {
	db, _ := tempDB(t)

	book := addTestBook(t, db, 1, Pricing{})
	patronID := addTestPatron(t, db, "Nina Renewer")

	loan, err := db.CreateLoan(fmt.Sprint(patronID), book.ID, KindLoan, 14)
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := db.RenewLoan(loan.ID, 7); err != nil {
			t.Fatalf("renewal %d: %v", i+1, err)
		}
	}
	_, err = db.RenewLoan(loan.ID, 7)
	if !IsKind(err, KindLimitExceeded) {
		t.Fatalf("want limit exceeded on 3rd renewal, got %v", err)
	}
}

func TestRenewLoanRequiresActiveState(t *testing.T) {
	db, _ := tempDB(t)

	book := addTestBook(t, db, 1, Pricing{})
	patronID := addTestPatron(t, db, "Omar Late")

	loan, err := db.CreateLoan(fmt.Sprint(patronID), book.ID, KindLoan, 14)
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}
	if _, err := db.ProcessReturn(loan.ID, Inspection{NewCondition: ConditionGood}); err != nil {
		t.Fatalf("return: %v", err)
	}

	_, err = db.RenewLoan(loan.ID, 7)
	if !IsKind(err, KindInvalidState) {
		t.Fatalf("want invalid state renewing a returned loan, got %v", err)
	}

	if _, err := db.RenewLoan("no-such-loan", 7); !IsKind(err, KindNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestLoanStatusPromotesOverdueLazily(t *testing.T) {
	db, clock := tempDB(t)

	book := addTestBook(t, db, 1, Pricing{})
	patronID := addTestPatron(t, db, "Pia Late")

	loan, err := db.CreateLoan(fmt.Sprint(patronID), book.ID, KindLoan, 14)
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}

	status, err := db.GetLoanStatus(loan.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Loan.State != LoanActive || status.OverdueDays != 0 {
		t.Fatalf("loan should still be active: %+v", status)
	}

	clock.advanceDays(19) // 5 days past due

	status, err = db.GetLoanStatus(loan.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Loan.State != LoanOverdue {
		t.Fatalf("want overdue, got %s", status.Loan.State)
	}
	if status.OverdueDays != 5 {
		t.Fatalf("want 5 overdue days, got %d", status.OverdueDays)
	}

	// The promotion must be persisted.
	reloaded, _ := db.GetLoan(loan.ID)
	if reloaded.State != LoanOverdue {
		t.Fatalf("overdue promotion was not persisted")
	}
}

func TestUpdateLoanOverridesStateAndNotes(t *testing.T) {
	db, _ := tempDB(t)

	book := addTestBook(t, db, 1, Pricing{})
	patronID := addTestPatron(t, db, "Quinn Admin")

	loan, err := db.CreateLoan(fmt.Sprint(patronID), book.ID, KindLoan, 14)
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}

	updated, err := db.UpdateLoan(loan.ID, LoanLost, "reported missing at the desk")
	if err != nil {
		t.Fatalf("update loan: %v", err)
	}
	if updated.State != LoanLost || updated.Notes == "" {
		t.Fatalf("override not applied: %+v", updated)
	}

	if _, err := db.UpdateLoan(loan.ID, "vanished", ""); !IsKind(err, KindRejected) {
		t.Fatalf("want rejected for unknown state, got %v", err)
	}
}
