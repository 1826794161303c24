package main

import (
	"fmt"
	"os"

	"library-backend/library"
)

// Seed data for a fresh install: a small catalog plus a couple of patrons so
// the circulation commands have something to work with.
var sampleBooks = []library.Book{
	{ISBN: "9780451524935", Title: "1984", Author: "George Orwell", Publisher: "Secker & Warburg",
		Year: 1949, Language: "en", Genres: []string{"dystopia", "classics"}, Active: true,
		Inventory: library.Inventory{Total: 3},
		Pricing:   library.Pricing{PurchasePrice: 1200, DailyRentalRate: 15, RentalDeposit: 200}},
	{ISBN: "9780618640157", Title: "The Fellowship of the Ring", Author: "J.R.R. Tolkien",
		Publisher: "Allen & Unwin", Year: 1954, Language: "en", Genres: []string{"fantasy"}, Active: true,
		Inventory: library.Inventory{Total: 2},
		Pricing:   library.Pricing{PurchasePrice: 1800, DailyRentalRate: 20, RentalDeposit: 300}},
	{ISBN: "9780140449198", Title: "The Art of War", Author: "Sun Tzu", Publisher: "Penguin",
		Year: 2003, Language: "en", Genres: []string{"strategy", "classics"}, Active: true,
		Inventory: library.Inventory{Total: 1},
		Pricing:   library.Pricing{PurchasePrice: 800, DailyRentalRate: 10, RentalDeposit: 150}},
	{ISBN: "9788420412146", Title: "Cien años de soledad", Author: "Gabriel García Márquez",
		Publisher: "Sudamericana", Year: 1967, Language: "es", Genres: []string{"magic realism"}, Active: true,
		Inventory: library.Inventory{Total: 2},
		Pricing:   library.Pricing{PurchasePrice: 1500, DailyRentalRate: 18, RentalDeposit: 250}},
	{ISBN: "9780316769488", Title: "The Catcher in the Rye", Author: "J.D. Salinger",
		Publisher: "Little, Brown", Year: 1951, Language: "en", Genres: []string{"classics"}, Active: true,
		Inventory: library.Inventory{Total: 2},
		Pricing:   library.Pricing{PurchasePrice: 1000, DailyRentalRate: 12, RentalDeposit: 180}},
}

var samplePatrons = []struct {
	name  string
	email string
	role  library.PatronRole
}{
	{"Ana Torres", "ana.torres@example.com", library.RoleAdmin},
	{"Luis Fernández", "luis.fernandez@example.com", library.RoleUser},
	{"Marta Ruiz", "marta.ruiz@example.com", library.RoleUser},
}

func main() {
	// Clean up any existing database files
	fmt.Println("Cleaning up existing database files...")
	dbFiles := []string{"library.db", "library.db-shm", "library.db-wal"}
	for _, file := range dbFiles {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			fmt.Printf("Warning: Could not remove %s: %v\n", file, err)
		}
	}
	fmt.Println("Database cleanup complete.")

	manager, err := library.NewLibraryManager("library.db")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating database: %v\n", err)
		os.Exit(1)
	}
	defer manager.Close()

	successCount := 0
	errorCount := 0

	fmt.Println("Importing sample catalog...")
	for i := range sampleBooks {
		b := sampleBooks[i]
		fmt.Printf("Importing: %s by %s... ", b.Title, b.Author)
		id, err := manager.AddBook(&b)
		if err != nil {
			fmt.Printf("ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Printf("SUCCESS (ID: %d)\n", id)
		successCount++
	}

	fmt.Println("Registering sample patrons...")
	for _, p := range samplePatrons {
		fmt.Printf("Registering: %s <%s>... ", p.name, p.email)
		id, err := manager.AddPatron(p.name, p.email, p.role)
		if err != nil {
			fmt.Printf("ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Printf("SUCCESS (ID: %d)\n", id)
		successCount++
	}

	fmt.Printf("\nImport complete!\n")
	fmt.Printf("Successfully imported: %d records\n", successCount)
	fmt.Printf("Errors: %d\n", errorCount)

	if successCount > 0 {
		fmt.Println("\nCatalog:")
		books, err := manager.ListBooks()
		if err != nil {
			fmt.Printf("Error retrieving books: %v\n", err)
			return
		}
		for _, book := range books {
			fmt.Println(library.PrettyBook(book))
		}
	}
}
