package library

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	_ "github.com/mattn/go-sqlite3"
)

// jsonCodec encodes structured sub-records (renewal history, genre lists)
// into TEXT columns.
var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// Database provides high-level helpers around a SQLite connection. Every
// multi-entity mutation (loan creation, return processing, the daily sweep)
// runs inside a single transaction so a crash can never leave a fine issued
// without its loan-state change, or inventory counters half-updated.
type Database struct {
	db       *sql.DB
	schedule FineSchedule
	now      func() time.Time

	addBookStmt   *sql.Stmt
	addPatronStmt *sql.Stmt
}

// Option configures a Database.
type Option func(*Database)

// WithClock overrides the time source. All temporal decisions (due dates,
// overdue detection, escalation) go through this clock.
func WithClock(now func() time.Time) Option {
	return func(d *Database) { d.now = now }
}

// WithFineSchedule overrides the default tariffs and limits.
func WithFineSchedule(s FineSchedule) Option {
	return func(d *Database) { d.schedule = s }
}

// NewDatabase opens (or creates) the SQLite database at dbPath, applies schema
// migrations, and prepares common statements.
func NewDatabase(dbPath string, opts ...Option) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// Enable busy_timeout and foreign keys.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	database := &Database{
		db:       db,
		schedule: DefaultFineSchedule(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(database)
	}
	if err := database.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return database, nil
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	if d.addBookStmt != nil {
		d.addBookStmt.Close()
	}
	if d.addPatronStmt != nil {
		d.addPatronStmt.Close()
	}
	return d.db.Close()
}

// Schedule returns the fine schedule the database operates on.
func (d *Database) Schedule() FineSchedule { return d.schedule }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	// WAL improves write concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS patrons (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            role TEXT NOT NULL DEFAULT 'user',
            active BOOLEAN NOT NULL DEFAULT 1,
            banned BOOLEAN NOT NULL DEFAULT 0,
            ban_reason TEXT NOT NULL DEFAULT '',
            ban_expires_at DATETIME,
            password_hash TEXT NOT NULL DEFAULT '',
            last_access_at DATETIME
        );`,
		`CREATE TABLE IF NOT EXISTS books (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            isbn TEXT NOT NULL UNIQUE,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            publisher TEXT NOT NULL DEFAULT '',
            year INTEGER NOT NULL DEFAULT 0,
            language TEXT NOT NULL DEFAULT '',
            genres TEXT NOT NULL DEFAULT '[]',
            description TEXT NOT NULL DEFAULT '',
            condition TEXT NOT NULL DEFAULT 'new',
            active BOOLEAN NOT NULL DEFAULT 1,
            total INTEGER NOT NULL,
            available INTEGER NOT NULL,
            on_loan INTEGER NOT NULL DEFAULT 0,
            reserved INTEGER NOT NULL DEFAULT 0,
            purchase_price REAL NOT NULL DEFAULT 0,
            daily_rental_rate REAL NOT NULL DEFAULT 0,
            rental_deposit REAL NOT NULL DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS loans (
            id TEXT PRIMARY KEY,
            patron_id INTEGER NOT NULL REFERENCES patrons(id),
            book_id INTEGER NOT NULL REFERENCES books(id),
            kind TEXT NOT NULL,
            state TEXT NOT NULL DEFAULT 'active',
            borrowed_at DATETIME NOT NULL,
            due_at DATETIME NOT NULL,
            returned_at DATETIME,
            rental_fee REAL NOT NULL DEFAULT 0,
            deposit REAL NOT NULL DEFAULT 0,
            fine REAL NOT NULL DEFAULT 0,
            total REAL NOT NULL DEFAULT 0,
            renewals TEXT NOT NULL DEFAULT '[]',
            notes TEXT NOT NULL DEFAULT ''
        );`,
		`CREATE TABLE IF NOT EXISTS fines (
            id TEXT PRIMARY KEY,
            patron_id INTEGER NOT NULL REFERENCES patrons(id),
            loan_id TEXT NOT NULL REFERENCES loans(id),
            kind TEXT NOT NULL,
            amount REAL NOT NULL,
            state TEXT NOT NULL DEFAULT 'pending',
            issued_at DATETIME NOT NULL,
            due_at DATETIME NOT NULL,
            paid_at DATETIME,
            overdue_days INTEGER NOT NULL DEFAULT 0,
            description TEXT NOT NULL DEFAULT ''
        );`,
		`CREATE INDEX IF NOT EXISTS idx_loans_patron_state ON loans(patron_id, state);`,
		`CREATE INDEX IF NOT EXISTS idx_loans_state_due ON loans(state, due_at);`,
		`CREATE INDEX IF NOT EXISTS idx_fines_patron_state ON fines(patron_id, state);`,
		`CREATE INDEX IF NOT EXISTS idx_fines_state_due ON fines(state, due_at);`,
		`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`,
	}

	for _, stmt := range stmts {
		var args []any
		if strings.Contains(stmt, "?") {
			args = append(args, schemaVersion)
		}
		if _, err := tx.Exec(stmt, args...); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements() error {
	var err error
	if d.addBookStmt, err = d.db.Prepare(`INSERT INTO books
        (isbn,title,author,publisher,year,language,genres,description,condition,active,
         total,available,on_loan,reserved,purchase_price,daily_rental_rate,rental_deposit)
        VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`); err != nil {
		return err
	}
	if d.addPatronStmt, err = d.db.Prepare(`INSERT INTO patrons(name,email,role) VALUES(?,?,?)`); err != nil {
		return err
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx so row helpers can run
// inside and outside transactions.
type querier interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
	Exec(query string, args ...any) (sql.Result, error)
}

// withTx runs fn inside a transaction, rolling back on error.
func (d *Database) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := d.db.Begin()
	if err != nil {
		return internal(err, "begin transaction")
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return internal(err, "commit transaction")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Books
// ---------------------------------------------------------------------------

// AddBook inserts a catalog title. A zero Available/OnLoan/Reserved split is
// filled in as "all copies on the shelf"; anything else must already satisfy
// the inventory invariant.
func (d *Database) AddBook(b *Book) (int64, error) {
	if b.Title == "" || b.Author == "" || b.ISBN == "" {
		return 0, rejectedf("book needs an ISBN, a title and an author")
	}
	if b.Condition == "" {
		b.Condition = ConditionNew
	}
	if !ValidCondition(b.Condition) {
		return 0, rejectedf("unknown book condition %q", b.Condition)
	}
	if b.Inventory.Available == 0 && b.Inventory.OnLoan == 0 && b.Inventory.Reserved == 0 {
		b.Inventory.Available = b.Inventory.Total
	}
	if !b.Inventory.Consistent() {
		return 0, corruptionf("inventory counters for %q do not add up to the total", b.Title)
	}

	genres, err := jsonCodec.MarshalToString(b.Genres)
	if err != nil {
		return 0, internal(err, "encode genres")
	}
	res, err := d.addBookStmt.Exec(
		b.ISBN, b.Title, b.Author, b.Publisher, b.Year, b.Language, genres, b.Description,
		string(b.Condition), b.Active,
		b.Inventory.Total, b.Inventory.Available, b.Inventory.OnLoan, b.Inventory.Reserved,
		b.Pricing.PurchasePrice, b.Pricing.DailyRentalRate, b.Pricing.RentalDeposit,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, rejectedf("a book with ISBN %s already exists", b.ISBN)
		}
		return 0, internal(err, "insert book")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, internal(err, "insert book")
	}
	b.ID = id
	return id, nil
}

const bookColumns = `id,isbn,title,author,publisher,year,language,genres,description,
    condition,active,total,available,on_loan,reserved,purchase_price,daily_rental_rate,rental_deposit`

func scanBook(row interface{ Scan(...any) error }) (*Book, error) {
	var b Book
	var genres, condition string
	err := row.Scan(
		&b.ID, &b.ISBN, &b.Title, &b.Author, &b.Publisher, &b.Year, &b.Language,
		&genres, &b.Description, &condition, &b.Active,
		&b.Inventory.Total, &b.Inventory.Available, &b.Inventory.OnLoan, &b.Inventory.Reserved,
		&b.Pricing.PurchasePrice, &b.Pricing.DailyRentalRate, &b.Pricing.RentalDeposit,
	)
	if err != nil {
		return nil, err
	}
	b.Condition = BookCondition(condition)
	if err := jsonCodec.UnmarshalFromString(genres, &b.Genres); err != nil {
		return nil, fmt.Errorf("decode genres: %w", err)
	}
	return &b, nil
}

func (d *Database) getBookTx(q querier, id int64) (*Book, error) {
	b, err := scanBook(q.QueryRow(`SELECT `+bookColumns+` FROM books WHERE id=?`, id))
	if err == sql.ErrNoRows {
		return nil, notFoundf("book %d not found", id)
	}
	if err != nil {
		return nil, internal(err, "load book %d", id)
	}
	return b, nil
}

// GetBook fetches a single title.
func (d *Database) GetBook(id int64) (*Book, error) { return d.getBookTx(d.db, id) }

// ListBooks returns the whole catalog ordered by id.
func (d *Database) ListBooks() ([]*Book, error) {
	rows, err := d.db.Query(`SELECT ` + bookColumns + ` FROM books ORDER BY id`)
	if err != nil {
		return nil, internal(err, "list books")
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, internal(err, "list books")
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// DeactivateBook retires a title from circulation. Refused while copies are
// out on loan or reserved.
func (d *Database) DeactivateBook(id int64) error {
	return d.withTx(func(tx *sql.Tx) error {
		b, err := d.getBookTx(tx, id)
		if err != nil {
			return err
		}
		if b.Inventory.OnLoan > 0 || b.Inventory.Reserved > 0 {
			return rejectedf("book %q still has %d copies on loan and %d reserved",
				b.Title, b.Inventory.OnLoan, b.Inventory.Reserved)
		}
		if _, err := tx.Exec(`UPDATE books SET active=0 WHERE id=?`, id); err != nil {
			return internal(err, "deactivate book %d", id)
		}
		return nil
	})
}

// adjustInventoryTx shifts copies between the shelf and the loan pool with a
// guarded update, then re-checks the inventory invariant before the
// transaction is allowed to commit.
func (d *Database) adjustInventoryTx(q querier, bookID int64, dAvailable, dOnLoan int) error {
	res, err := q.Exec(`UPDATE books
        SET available = available + ?, on_loan = on_loan + ?
        WHERE id = ? AND available + ? >= 0 AND on_loan + ? >= 0`,
		dAvailable, dOnLoan, bookID, dAvailable, dOnLoan)
	if err != nil {
		return internal(err, "update inventory for book %d", bookID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return internal(err, "update inventory for book %d", bookID)
	}
	if n == 0 {
		return corruptionf("inventory counters for book %d would go negative", bookID)
	}

	b, err := d.getBookTx(q, bookID)
	if err != nil {
		return err
	}
	if !b.Inventory.Consistent() || b.Inventory.Available > b.Inventory.Total {
		return corruptionf("inventory counters for book %d are inconsistent: available=%d on_loan=%d reserved=%d total=%d",
			bookID, b.Inventory.Available, b.Inventory.OnLoan, b.Inventory.Reserved, b.Inventory.Total)
	}
	return nil
}

func (d *Database) updateBookConditionTx(q querier, bookID int64, c BookCondition) error {
	if !ValidCondition(c) {
		return rejectedf("unknown book condition %q", c)
	}
	if _, err := q.Exec(`UPDATE books SET condition=? WHERE id=?`, string(c), bookID); err != nil {
		return internal(err, "update condition for book %d", bookID)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Patrons
// ---------------------------------------------------------------------------

// AddPatron registers a patron. Email must be unique.
func (d *Database) AddPatron(name, email string, role PatronRole) (int64, error) {
	if name == "" || email == "" {
		return 0, rejectedf("patron needs a name and an email")
	}
	if role == "" {
		role = RoleUser
	}
	if role != RoleAdmin && role != RoleUser {
		return 0, rejectedf("unknown patron role %q", role)
	}
	res, err := d.addPatronStmt.Exec(name, strings.ToLower(strings.TrimSpace(email)), string(role))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, rejectedf("a patron with email %s already exists", email)
		}
		return 0, internal(err, "insert patron")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, internal(err, "insert patron")
	}
	return id, nil
}

const patronColumns = `id,name,email,role,active,banned,ban_reason,ban_expires_at,password_hash,last_access_at`

func scanPatron(row interface{ Scan(...any) error }) (*Patron, error) {
	var p Patron
	var role string
	var banExpires, lastAccess sql.NullTime
	err := row.Scan(&p.ID, &p.Name, &p.Email, &role, &p.Active, &p.Banned,
		&p.BanReason, &banExpires, &p.PasswordHash, &lastAccess)
	if err != nil {
		return nil, err
	}
	p.Role = PatronRole(role)
	if banExpires.Valid {
		t := banExpires.Time
		p.BanExpiresAt = &t
	}
	if lastAccess.Valid {
		t := lastAccess.Time
		p.LastAccessAt = &t
	}
	return &p, nil
}

// getPatronTx loads a patron and applies lazy ban expiry: a ban whose end date
// has passed is lifted and the lift persisted before the patron is returned.
func (d *Database) getPatronTx(q querier, id int64) (*Patron, error) {
	p, err := scanPatron(q.QueryRow(`SELECT `+patronColumns+` FROM patrons WHERE id=?`, id))
	if err == sql.ErrNoRows {
		return nil, notFoundf("patron %d not found", id)
	}
	if err != nil {
		return nil, internal(err, "load patron %d", id)
	}
	return d.liftExpiredBanTx(q, p)
}

func (d *Database) getPatronByEmailTx(q querier, email string) (*Patron, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	p, err := scanPatron(q.QueryRow(`SELECT `+patronColumns+` FROM patrons WHERE email=?`, email))
	if err == sql.ErrNoRows {
		return nil, notFoundf("patron with email %s not found", email)
	}
	if err != nil {
		return nil, internal(err, "load patron %s", email)
	}
	return d.liftExpiredBanTx(q, p)
}

func (d *Database) liftExpiredBanTx(q querier, p *Patron) (*Patron, error) {
	if !p.banExpired(d.now()) {
		return p, nil
	}
	if _, err := q.Exec(`UPDATE patrons SET banned=0, ban_reason='', ban_expires_at=NULL WHERE id=?`, p.ID); err != nil {
		return nil, internal(err, "lift expired ban for patron %d", p.ID)
	}
	p.Banned = false
	p.BanReason = ""
	p.BanExpiresAt = nil
	return p, nil
}

// findPatronTx resolves a reference that may be a numeric id or an email.
func (d *Database) findPatronTx(q querier, ref string) (*Patron, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return d.getPatronTx(q, id)
	}
	return d.getPatronByEmailTx(q, ref)
}

// GetPatron fetches a patron by id, lifting any expired ban.
func (d *Database) GetPatron(id int64) (*Patron, error) { return d.getPatronTx(d.db, id) }

// GetPatronByEmail fetches a patron by email, lifting any expired ban.
func (d *Database) GetPatronByEmail(email string) (*Patron, error) {
	return d.getPatronByEmailTx(d.db, email)
}

// FindPatron resolves an id-or-email reference.
func (d *Database) FindPatron(ref string) (*Patron, error) { return d.findPatronTx(d.db, ref) }

// ListPatrons returns all patrons ordered by id.
func (d *Database) ListPatrons() ([]*Patron, error) {
	rows, err := d.db.Query(`SELECT ` + patronColumns + ` FROM patrons ORDER BY id`)
	if err != nil {
		return nil, internal(err, "list patrons")
	}
	defer rows.Close()

	var patrons []*Patron
	for rows.Next() {
		p, err := scanPatron(rows)
		if err != nil {
			return nil, internal(err, "list patrons")
		}
		patrons = append(patrons, p)
	}
	return patrons, rows.Err()
}

func (d *Database) banPatronTx(q querier, patronID int64, reason string, until time.Time) error {
	_, err := q.Exec(`UPDATE patrons SET banned=1, ban_reason=?, ban_expires_at=? WHERE id=?`,
		reason, until, patronID)
	if err != nil {
		return internal(err, "ban patron %d", patronID)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Loans
// ---------------------------------------------------------------------------

const loanColumns = `id,patron_id,book_id,kind,state,borrowed_at,due_at,returned_at,
    rental_fee,deposit,fine,total,renewals,notes`

func scanLoan(row interface{ Scan(...any) error }) (*Loan, error) {
	var l Loan
	var kind, state, renewals string
	var returnedAt sql.NullTime
	err := row.Scan(&l.ID, &l.PatronID, &l.BookID, &kind, &state,
		&l.BorrowedAt, &l.DueAt, &returnedAt,
		&l.Costs.RentalFee, &l.Costs.Deposit, &l.Costs.Fine, &l.Costs.Total,
		&renewals, &l.Notes)
	if err != nil {
		return nil, err
	}
	l.Kind = LoanKind(kind)
	l.State = LoanState(state)
	if returnedAt.Valid {
		t := returnedAt.Time
		l.ReturnedAt = &t
	}
	if err := jsonCodec.UnmarshalFromString(renewals, &l.Renewals); err != nil {
		return nil, fmt.Errorf("decode renewals: %w", err)
	}
	return &l, nil
}

func (d *Database) getLoanTx(q querier, id string) (*Loan, error) {
	l, err := scanLoan(q.QueryRow(`SELECT `+loanColumns+` FROM loans WHERE id=?`, id))
	if err == sql.ErrNoRows {
		return nil, notFoundf("loan %s not found", id)
	}
	if err != nil {
		return nil, internal(err, "load loan %s", id)
	}
	return l, nil
}

// GetLoan fetches a loan without its book snapshot.
func (d *Database) GetLoan(id string) (*Loan, error) { return d.getLoanTx(d.db, id) }

func (d *Database) insertLoanTx(q querier, l *Loan) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	renewals, err := jsonCodec.MarshalToString(l.Renewals)
	if err != nil {
		return internal(err, "encode renewals")
	}
	_, err = q.Exec(`INSERT INTO loans
        (id,patron_id,book_id,kind,state,borrowed_at,due_at,returned_at,
         rental_fee,deposit,fine,total,renewals,notes)
        VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		l.ID, l.PatronID, l.BookID, string(l.Kind), string(l.State),
		l.BorrowedAt, l.DueAt, nullTime(l.ReturnedAt),
		l.Costs.RentalFee, l.Costs.Deposit, l.Costs.Fine, l.Costs.Total,
		renewals, l.Notes)
	if err != nil {
		return internal(err, "insert loan")
	}
	return nil
}

func (d *Database) updateLoanTx(q querier, l *Loan) error {
	renewals, err := jsonCodec.MarshalToString(l.Renewals)
	if err != nil {
		return internal(err, "encode renewals")
	}
	_, err = q.Exec(`UPDATE loans SET
        state=?, due_at=?, returned_at=?,
        rental_fee=?, deposit=?, fine=?, total=?, renewals=?, notes=?
        WHERE id=?`,
		string(l.State), l.DueAt, nullTime(l.ReturnedAt),
		l.Costs.RentalFee, l.Costs.Deposit, l.Costs.Fine, l.Costs.Total,
		renewals, l.Notes, l.ID)
	if err != nil {
		return internal(err, "update loan %s", l.ID)
	}
	return nil
}

// markLoanStateTx flips a loan's state only if it still has the expected one.
// The compare-and-swap serializes concurrent returns on the same loan.
func (d *Database) markLoanStateTx(q querier, loanID string, from []LoanState, to LoanState, returnedAt *time.Time) (bool, error) {
	placeholders := make([]string, len(from))
	args := []any{string(to), nullTime(returnedAt), loanID}
	for i, s := range from {
		placeholders[i] = "?"
		args = append(args, string(s))
	}
	res, err := q.Exec(`UPDATE loans SET state=?, returned_at=COALESCE(?, returned_at)
        WHERE id=? AND state IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return false, internal(err, "update loan %s state", loanID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, internal(err, "update loan %s state", loanID)
	}
	return n > 0, nil
}

func (d *Database) countActiveLoansTx(q querier, patronID int64) (int, error) {
	var n int
	err := q.QueryRow(`SELECT COUNT(*) FROM loans WHERE patron_id=? AND state IN ('active','overdue')`,
		patronID).Scan(&n)
	if err != nil {
		return 0, internal(err, "count active loans for patron %d", patronID)
	}
	return n, nil
}

func (d *Database) findOverdueLoansTx(q querier, now time.Time) ([]*Loan, error) {
	rows, err := q.Query(`SELECT `+loanColumns+` FROM loans WHERE state='active' AND due_at < ?`, now)
	if err != nil {
		return nil, internal(err, "find overdue loans")
	}
	defer rows.Close()

	var loans []*Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, internal(err, "find overdue loans")
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

// LoansForPatron returns a patron's loans newest first, each with its book
// snapshot attached. The join is explicit; nothing is fetched lazily.
func (d *Database) LoansForPatron(patronID int64) ([]*Loan, error) {
	rows, err := d.db.Query(`SELECT `+loanColumns+` FROM loans
        WHERE patron_id=? ORDER BY borrowed_at DESC`, patronID)
	if err != nil {
		return nil, internal(err, "list loans for patron %d", patronID)
	}
	defer rows.Close()

	var loans []*Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, internal(err, "list loans for patron %d", patronID)
		}
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		return nil, internal(err, "list loans for patron %d", patronID)
	}
	for _, l := range loans {
		b, err := d.GetBook(l.BookID)
		if err != nil {
			return nil, err
		}
		l.Book = b
	}
	return loans, nil
}

// ---------------------------------------------------------------------------
// Fines
// ---------------------------------------------------------------------------

const fineColumns = `id,patron_id,loan_id,kind,amount,state,issued_at,due_at,paid_at,overdue_days,description`

func scanFine(row interface{ Scan(...any) error }) (*Fine, error) {
	var f Fine
	var kind, state string
	var paidAt sql.NullTime
	err := row.Scan(&f.ID, &f.PatronID, &f.LoanID, &kind, &f.Amount, &state,
		&f.IssuedAt, &f.DueAt, &paidAt, &f.OverdueDays, &f.Description)
	if err != nil {
		return nil, err
	}
	f.Kind = FineKind(kind)
	f.State = FineState(state)
	if paidAt.Valid {
		t := paidAt.Time
		f.PaidAt = &t
	}
	return &f, nil
}

func (d *Database) getFineTx(q querier, id string) (*Fine, error) {
	f, err := scanFine(q.QueryRow(`SELECT `+fineColumns+` FROM fines WHERE id=?`, id))
	if err == sql.ErrNoRows {
		return nil, notFoundf("fine %s not found", id)
	}
	if err != nil {
		return nil, internal(err, "load fine %s", id)
	}
	return f, nil
}

// GetFine fetches a single fine.
func (d *Database) GetFine(id string) (*Fine, error) { return d.getFineTx(d.db, id) }

func (d *Database) insertFineTx(q querier, f *Fine) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	_, err := q.Exec(`INSERT INTO fines
        (id,patron_id,loan_id,kind,amount,state,issued_at,due_at,paid_at,overdue_days,description)
        VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		f.ID, f.PatronID, f.LoanID, string(f.Kind), f.Amount, string(f.State),
		f.IssuedAt, f.DueAt, nullTime(f.PaidAt), f.OverdueDays, f.Description)
	if err != nil {
		return internal(err, "insert fine")
	}
	return nil
}

func (d *Database) updateFineTx(q querier, f *Fine) error {
	_, err := q.Exec(`UPDATE fines SET amount=?, state=?, paid_at=?, description=? WHERE id=?`,
		f.Amount, string(f.State), nullTime(f.PaidAt), f.Description, f.ID)
	if err != nil {
		return internal(err, "update fine %s", f.ID)
	}
	return nil
}

func (d *Database) countPendingFinesTx(q querier, patronID int64) (int, error) {
	var n int
	err := q.QueryRow(`SELECT COUNT(*) FROM fines WHERE patron_id=? AND state='pending'`,
		patronID).Scan(&n)
	if err != nil {
		return 0, internal(err, "count pending fines for patron %d", patronID)
	}
	return n, nil
}

func (d *Database) finesByStateTx(q querier, patronID int64, state FineState) ([]*Fine, error) {
	rows, err := q.Query(`SELECT `+fineColumns+` FROM fines
        WHERE patron_id=? AND state=? ORDER BY issued_at`, patronID, string(state))
	if err != nil {
		return nil, internal(err, "list %s fines for patron %d", state, patronID)
	}
	defer rows.Close()

	var fines []*Fine
	for rows.Next() {
		f, err := scanFine(rows)
		if err != nil {
			return nil, internal(err, "list %s fines for patron %d", state, patronID)
		}
		fines = append(fines, f)
	}
	return fines, rows.Err()
}

func (d *Database) findEscalatableFinesTx(q querier, now time.Time) ([]*Fine, error) {
	rows, err := q.Query(`SELECT `+fineColumns+` FROM fines WHERE state='pending' AND due_at < ?`, now)
	if err != nil {
		return nil, internal(err, "find past-due fines")
	}
	defer rows.Close()

	var fines []*Fine
	for rows.Next() {
		f, err := scanFine(rows)
		if err != nil {
			return nil, internal(err, "find past-due fines")
		}
		fines = append(fines, f)
	}
	return fines, rows.Err()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
