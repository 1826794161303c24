package library

import "fmt"

// LibraryManager is a thin façade over the Database, keeping CLI code simple.
// It is the single composition point: construct one manager per process and
// pass it around explicitly.
type LibraryManager struct {
	db *Database
}

// NewLibraryManager opens (or creates) the SQLite database at dbPath.
func NewLibraryManager(dbPath string, opts ...Option) (*LibraryManager, error) {
	db, err := NewDatabase(dbPath, opts...)
	if err != nil {
		return nil, err
	}
	return &LibraryManager{db: db}, nil
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

// Schedule returns the fine schedule in effect.
func (lm *LibraryManager) Schedule() FineSchedule { return lm.db.Schedule() }

// ------------------ Catalog helpers ------------------

func (lm *LibraryManager) AddBook(b *Book) (int64, error) { return lm.db.AddBook(b) }
func (lm *LibraryManager) GetBook(id int64) (*Book, error) { return lm.db.GetBook(id) }
func (lm *LibraryManager) ListBooks() ([]*Book, error)     { return lm.db.ListBooks() }
func (lm *LibraryManager) DeactivateBook(id int64) error   { return lm.db.DeactivateBook(id) }

// ------------------ Patron helpers ------------------

func (lm *LibraryManager) AddPatron(name, email string, role PatronRole) (int64, error) {
	return lm.db.AddPatron(name, email, role)
}

func (lm *LibraryManager) GetPatron(id int64) (*Patron, error)  { return lm.db.GetPatron(id) }
func (lm *LibraryManager) FindPatron(ref string) (*Patron, error) { return lm.db.FindPatron(ref) }
func (lm *LibraryManager) ListPatrons() ([]*Patron, error)      { return lm.db.ListPatrons() }

func (lm *LibraryManager) SetPatronPassword(patronID int64, password string) error {
	return lm.db.SetPatronPassword(patronID, password)
}

func (lm *LibraryManager) AuthenticatePatron(ref, password string) (*Patron, error) {
	return lm.db.AuthenticatePatron(ref, password)
}

// ------------------ Circulation ------------------

func (lm *LibraryManager) CreateLoan(patronRef string, bookID int64, kind LoanKind, durationDays int) (*Loan, error) {
	return lm.db.CreateLoan(patronRef, bookID, kind, durationDays)
}

func (lm *LibraryManager) RenewLoan(loanID string, extraDays int) (*Loan, error) {
	return lm.db.RenewLoan(loanID, extraDays)
}

func (lm *LibraryManager) GetLoanStatus(loanID string) (*LoanStatus, error) {
	return lm.db.GetLoanStatus(loanID)
}

func (lm *LibraryManager) UpdateLoan(loanID string, state LoanState, notes string) (*Loan, error) {
	return lm.db.UpdateLoan(loanID, state, notes)
}

func (lm *LibraryManager) PatronLoans(patronRef string) ([]*Loan, error) {
	return lm.db.PatronLoans(patronRef)
}

// ------------------ Returns ------------------

func (lm *LibraryManager) ProcessReturn(loanID string, inspection Inspection) (*ReturnResult, error) {
	return lm.db.ProcessReturn(loanID, inspection)
}

func (lm *LibraryManager) PreviewReturn(loanID string) (*ReturnPreview, error) {
	return lm.db.PreviewReturn(loanID)
}

// ------------------ Fines ------------------

func (lm *LibraryManager) PayFine(fineID string, amountPaid float64) (*Fine, error) {
	return lm.db.PayFine(fineID, amountPaid)
}

func (lm *LibraryManager) IssueDamageOrLossFine(loanID string, kind FineKind) (*Fine, error) {
	return lm.db.IssueDamageOrLossFine(loanID, kind)
}

func (lm *LibraryManager) GetFineReport(patronRef string) (*FineReport, error) {
	return lm.db.FineReport(patronRef)
}

func (lm *LibraryManager) RunDailyFineSweep() error { return lm.db.RunDailyFineSweep() }

// ------------------ Utilities ------------------

// PrettyBook formats a book for lists.
func PrettyBook(b *Book) string {
	return fmt.Sprintf("%-5d %-30s %-25s %-10s avail %d/%d", b.ID, b.Title, b.Author, b.Condition,
		b.Inventory.Available, b.Inventory.Total)
}

// PrettyLoan formats a loan for lists.
func PrettyLoan(l *Loan) string {
	title := fmt.Sprintf("book %d", l.BookID)
	if l.Book != nil {
		title = l.Book.Title
	}
	return fmt.Sprintf("%-36s %-30s %-8s %-9s due %s", l.ID, title, l.Kind, l.State,
		l.DueAt.Format("2006-01-02"))
}
