package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"library-backend/library"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var dbPath string

func main() {
	root := &cobra.Command{
		Use:           "librarian",
		Short:         "Library loans, returns and fines backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "library.db", "path to the SQLite database")

	root.AddCommand(
		addBookCmd(), listBooksCmd(), deactivateBookCmd(),
		addPatronCmd(), listPatronsCmd(), setPasswordCmd(), loginCmd(),
		borrowCmd(), renewCmd(), statusCmd(), loansCmd(),
		returnCmd(), previewReturnCmd(),
		payFineCmd(), reportFineCmd(), fineReportCmd(), sweepCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openManager() (*library.LibraryManager, error) {
	return library.NewLibraryManager(dbPath)
}

// readPassword securely reads a password with masking.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println() // Add newline after password input
	return strings.TrimSpace(string(bytePassword)), nil
}

func addBookCmd() *cobra.Command {
	var b library.Book
	var genres string
	var condition string
	cmd := &cobra.Command{
		Use:   "add-book",
		Short: "Add a title to the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			if genres != "" {
				b.Genres = strings.Split(genres, ",")
			}
			b.Condition = library.BookCondition(condition)
			b.Active = true
			id, err := mgr.AddBook(&b)
			if err != nil {
				return err
			}
			fmt.Printf("Added book %d: %s by %s (%d copies)\n", id, b.Title, b.Author, b.Inventory.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&b.ISBN, "isbn", "", "ISBN (required)")
	cmd.Flags().StringVar(&b.Title, "title", "", "title (required)")
	cmd.Flags().StringVar(&b.Author, "author", "", "author (required)")
	cmd.Flags().StringVar(&b.Publisher, "publisher", "", "publisher")
	cmd.Flags().IntVar(&b.Year, "year", 0, "publication year")
	cmd.Flags().StringVar(&b.Language, "language", "", "language")
	cmd.Flags().StringVar(&genres, "genres", "", "comma-separated genres")
	cmd.Flags().StringVar(&condition, "condition", "new", "condition: new|good|fair|poor")
	cmd.Flags().IntVar(&b.Inventory.Total, "copies", 1, "number of copies")
	cmd.Flags().Float64Var(&b.Pricing.PurchasePrice, "price", 0, "purchase price")
	cmd.Flags().Float64Var(&b.Pricing.DailyRentalRate, "daily-rate", 0, "daily rental rate")
	cmd.Flags().Float64Var(&b.Pricing.RentalDeposit, "deposit", 0, "rental deposit")
	return cmd
}

func listBooksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-books",
		Short: "List the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			books, err := mgr.ListBooks()
			if err != nil {
				return err
			}
			for _, b := range books {
				fmt.Println(library.PrettyBook(b))
			}
			return nil
		},
	}
}

func deactivateBookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate-book <book-id>",
		Short: "Retire a title from circulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid book id %q", args[0])
			}
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			if err := mgr.DeactivateBook(id); err != nil {
				return err
			}
			fmt.Printf("Book %d deactivated\n", id)
			return nil
		},
	}
}

func addPatronCmd() *cobra.Command {
	var name, email string
	var admin bool
	cmd := &cobra.Command{
		Use:   "add-patron",
		Short: "Register a patron",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			role := library.RoleUser
			if admin {
				role = library.RoleAdmin
			}
			id, err := mgr.AddPatron(name, email, role)
			if err != nil {
				return err
			}
			fmt.Printf("Added patron %d: %s <%s>\n", id, name, email)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "patron name (required)")
	cmd.Flags().StringVar(&email, "email", "", "patron email (required)")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant admin role")
	return cmd
}

func listPatronsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-patrons",
		Short: "List registered patrons",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			patrons, err := mgr.ListPatrons()
			if err != nil {
				return err
			}
			for _, p := range patrons {
				state := "active"
				if !p.Active {
					state = "inactive"
				}
				if p.Banned {
					state = "banned: " + p.BanReason
				}
				fmt.Printf("%-5d %-25s %-30s %-6s %s\n", p.ID, p.Name, p.Email, p.Role, state)
			}
			return nil
		},
	}
}

func setPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-password <patron-id>",
		Short: "Set a patron's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid patron id %q", args[0])
			}
			password, err := readPassword("New password: ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			if err := mgr.SetPatronPassword(id, password); err != nil {
				return err
			}
			fmt.Println("Password updated")
			return nil
		},
	}
}

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <patron-id-or-email>",
		Short: "Verify a patron's credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword("Password: ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			patron, err := mgr.AuthenticatePatron(args[0], password)
			if err != nil {
				return err
			}
			fmt.Printf("Welcome, %s\n", patron.Name)
			return nil
		},
	}
}

func borrowCmd() *cobra.Command {
	var rental bool
	var days int
	cmd := &cobra.Command{
		Use:   "borrow <patron-id-or-email> <book-id>",
		Short: "Borrow or rent a book",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid book id %q", args[1])
			}
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			kind := library.KindLoan
			if rental {
				kind = library.KindRental
			}
			loan, err := mgr.CreateLoan(args[0], bookID, kind, days)
			if err != nil {
				return err
			}
			fmt.Printf("Loan %s created, due %s\n", loan.ID, loan.DueAt.Format("2006-01-02"))
			if loan.Kind == library.KindRental {
				fmt.Printf("Rental fee %.2f + deposit %.2f = %.2f\n",
					loan.Costs.RentalFee, loan.Costs.Deposit, loan.Costs.Total)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&rental, "rental", false, "paid rental instead of a free loan")
	cmd.Flags().IntVar(&days, "days", 0, "loan duration in days (default 14)")
	return cmd
}

func renewCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "renew <loan-id>",
		Short: "Extend a loan's due date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			loan, err := mgr.RenewLoan(args[0], days)
			if err != nil {
				return err
			}
			fmt.Printf("Loan renewed, now due %s (%d of %d renewals used)\n",
				loan.DueAt.Format("2006-01-02"), len(loan.Renewals), mgr.Schedule().MaxRenewals)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "extension in days (default 7)")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <loan-id>",
		Short: "Show a loan's state and overdue days",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			status, err := mgr.GetLoanStatus(args[0])
			if err != nil {
				return err
			}
			fmt.Println(library.PrettyLoan(status.Loan))
			if status.OverdueDays > 0 {
				fmt.Printf("Overdue by %d days\n", status.OverdueDays)
			}
			return nil
		},
	}
}

func loansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "loans <patron-id-or-email>",
		Short: "List a patron's loans, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			loans, err := mgr.PatronLoans(args[0])
			if err != nil {
				return err
			}
			for _, l := range loans {
				fmt.Println(library.PrettyLoan(l))
			}
			return nil
		},
	}
}

func returnCmd() *cobra.Command {
	var condition, description string
	var damaged bool
	cmd := &cobra.Command{
		Use:   "return <loan-id>",
		Short: "Process a return",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			result, err := mgr.ProcessReturn(args[0], library.Inspection{
				NewCondition:      library.BookCondition(condition),
				Damaged:           damaged,
				DamageDescription: description,
			})
			if err != nil {
				return err
			}
			fmt.Println(result.Message)
			if result.Fine != nil {
				fmt.Printf("Fine issued: %.2f (%s), due %s\n",
					result.Fine.Amount, result.Fine.Kind, result.Fine.DueAt.Format("2006-01-02"))
			}
			if result.DepositRefund > 0 {
				fmt.Printf("Deposit refunded: %.2f\n", result.DepositRefund)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&condition, "condition", "good", "condition after inspection: new|good|fair|poor")
	cmd.Flags().BoolVar(&damaged, "damaged", false, "book came back damaged")
	cmd.Flags().StringVar(&description, "description", "", "damage description")
	return cmd
}

func previewReturnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview-return <loan-id>",
		Short: "Show what a return would cost today",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			preview, err := mgr.PreviewReturn(args[0])
			if err != nil {
				return err
			}
			fmt.Println(library.PrettyLoan(preview.Loan))
			if preview.Overdue {
				fmt.Printf("Overdue by %d days, potential fine %.2f\n",
					preview.OverdueDays, preview.PotentialFine)
			}
			if preview.RefundableDeposit > 0 {
				fmt.Printf("Refundable deposit: %.2f\n", preview.RefundableDeposit)
			}
			return nil
		},
	}
}

func payFineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pay-fine <fine-id> <amount>",
		Short: "Pay a fine, fully or partially",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[1])
			}
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			fine, err := mgr.PayFine(args[0], amount)
			if err != nil {
				return err
			}
			if fine.State == library.FinePaid {
				fmt.Println("Fine settled in full")
			} else {
				fmt.Printf("Payment accepted, %.2f still owed\n", fine.Amount)
			}
			return nil
		},
	}
}

func reportFineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report-fine <loan-id> <damage|loss>",
		Short: "Fine a patron for a damaged or lost book",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			fine, err := mgr.IssueDamageOrLossFine(args[0], library.FineKind(args[1]))
			if err != nil {
				return err
			}
			fmt.Printf("Fine issued: %.2f (%s), due %s\n",
				fine.Amount, fine.Kind, fine.DueAt.Format("2006-01-02"))
			return nil
		},
	}
}

func fineReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fine-report <patron-id-or-email>",
		Short: "Summarize a patron's pending and paid fines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			report, err := mgr.GetFineReport(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Pending fines (%d, total %.2f):\n", len(report.Pending), report.TotalPending)
			for _, f := range report.Pending {
				fmt.Printf("  %-36s %-8s %8.2f due %s  %s\n",
					f.ID, f.Kind, f.Amount, f.DueAt.Format("2006-01-02"), f.Description)
			}
			fmt.Printf("Paid fines (%d, total %.2f)\n", len(report.Paid), report.TotalPaid)
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the daily fine sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			if err := mgr.RunDailyFineSweep(); err != nil {
				return err
			}
			fmt.Println("Daily fine sweep completed")
			return nil
		},
	}
}
