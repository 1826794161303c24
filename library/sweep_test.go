package library

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepPromotesAndFinesOverdueLoans(t *testing.T) {
	db, clock := tempDB(t)

	book := addTestBook(t, db, 1, Pricing{PurchasePrice: 1000})
	patronID := addTestPatron(t, db, "Abe Sleeper")

	loan, err := db.CreateLoan(fmt.Sprint(patronID), book.ID, KindLoan, 14)
	require.NoError(t, err)
	clock.advanceDays(20) // 6 days overdue

	require.NoError(t, db.RunDailyFineSweep())

	reloaded, err := db.GetLoan(loan.ID)
	require.NoError(t, err)
	assert.Equal(t, LoanOverdue, reloaded.State)

	report, err := db.FineReport(fmt.Sprint(patronID))
	require.NoError(t, err)
	require.Len(t, report.Pending, 1)
	fine := report.Pending[0]
	assert.Equal(t, FineOverdue, fine.Kind)
	assert.InDelta(t, 600, fine.Amount, 0.001)
	assert.Equal(t, 6, fine.OverdueDays)
	assert.Equal(t, 7*24.0, fine.DueAt.Sub(fine.IssuedAt).Hours())
}

func TestSweepLeavesCurrentLoansAlone(t *testing.T) {
	db, _ := tempDB(t)

	book := addTestBook(t, db, 1, Pricing{})
	patronID := addTestPatron(t, db, "Beth Current")

	loan, err := db.CreateLoan(fmt.Sprint(patronID), book.ID, KindLoan, 14)
	require.NoError(t, err)

	require.NoError(t, db.RunDailyFineSweep())

	reloaded, err := db.GetLoan(loan.ID)
	require.NoError(t, err)
	assert.Equal(t, LoanActive, reloaded.State)

	report, err := db.FineReport(fmt.Sprint(patronID))
	require.NoError(t, err)
	assert.Empty(t, report.Pending)
}

func TestSweepDoesNotFineTwice(t *testing.T) {
	db, clock := tempDB(t)

	book := addTestBook(t, db, 1, Pricing{})
	patronID := addTestPatron(t, db, "Cody Repeat")

	_, err := db.CreateLoan(fmt.Sprint(patronID), book.ID, KindLoan, 14)
	require.NoError(t, err)
	clock.advanceDays(16)

	require.NoError(t, db.RunDailyFineSweep())
	require.NoError(t, db.RunDailyFineSweep())

	report, err := db.FineReport(fmt.Sprint(patronID))
	require.NoError(t, err)
	assert.Len(t, report.Pending, 1, "already-overdue loans must not be fined again")
}

func TestSweepEscalatesStaleFines(t *testing.T) {
	db, clock := tempDB(t)

	book := addTestBook(t, db, 1, Pricing{})
	patronID := addTestPatron(t, db, "Dave Ignorer")

	_, err := db.CreateLoan(fmt.Sprint(patronID), book.ID, KindLoan, 14)
	require.NoError(t, err)
	clock.advanceDays(17) // 3 days overdue

	require.NoError(t, db.RunDailyFineSweep()) // fine of 300, due in 7 days

	clock.advanceDays(8) // past the fine's own deadline
	require.NoError(t, db.RunDailyFineSweep())

	report, err := db.FineReport(fmt.Sprint(patronID))
	require.NoError(t, err)
	require.Len(t, report.Pending, 1)
	fine := report.Pending[0]
	assert.InDelta(t, 330, fine.Amount, 0.001, "escalation should add a tenth")
	assert.True(t, strings.Contains(fine.Description, "fine increased after missed payment deadline"),
		"description should flag the escalation: %q", fine.Description)

	// A single escalated fine is not enough to get banned.
	p, err := db.GetPatron(patronID)
	require.NoError(t, err)
	assert.False(t, p.Banned)
}

func TestSweepBansSerialDebtors(t *testing.T) {
	db, clock := tempDB(t)

	patronID := addTestPatron(t, db, "Eddy Debtor")
	for i := 0; i < 3; i++ {
		book := addTestBook(t, db, 1, Pricing{})
		_, err := db.CreateLoan(fmt.Sprint(patronID), book.ID, KindLoan, 14)
		require.NoError(t, err)
	}
	clock.advanceDays(17)

	require.NoError(t, db.RunDailyFineSweep()) // three fines issued

	clock.advanceDays(8) // all three past their payment deadline
	require.NoError(t, db.RunDailyFineSweep())

	p, err := db.GetPatron(patronID)
	require.NoError(t, err)
	assert.True(t, p.Banned)
	assert.Equal(t, "multiple pending fines", p.BanReason)
	require.NotNil(t, p.BanExpiresAt)
	assert.Equal(t, 90*24.0, p.BanExpiresAt.Sub(clock.Now()).Hours())

	// And a banned debtor cannot borrow.
	book := addTestBook(t, db, 1, Pricing{})
	_, err = db.CreateLoan(fmt.Sprint(patronID), book.ID, KindLoan, 14)
	assert.True(t, IsKind(err, KindRejected), "banned patron must be refused: %v", err)
}
