package cmd

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/bookkeeper/pkg/config"
	"github.com/shunichi-ikebuchi/bookkeeper/pkg/db"
)

// statsCmd represents the stats command.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display book statistics",
	Long: `Display statistics about the book.

Shows:
- Number of accounts
- Number of transactions and postings
- Number of reconciliations (open and locked)
- Date of the latest transaction

Example:
  bookkeeper stats`,
	Run: runStats,
}

// bookStats aggregates counters over the book tables.
type bookStats struct {
	Accounts        int
	Transactions    int
	Voided          int
	Postings        int
	Reconciliations int
	Locked          int
	LastDate        sql.NullString
}

func runStats(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	slog.Debug("Opening book", "path", cfg.Book.DBPath)
	conn, err := db.Open(cfg.Book.DBPath)
	exitOnError(err, "failed to open book database")
	defer conn.Close()

	stats, err := collectStats(conn)
	exitOnError(err, "failed to collect statistics")

	fmt.Println("\n=== Book Statistics ===")
	fmt.Printf("Accounts:        %d\n", stats.Accounts)
	fmt.Printf("Transactions:    %d (%d void)\n", stats.Transactions, stats.Voided)
	fmt.Printf("Postings:        %d\n", stats.Postings)
	fmt.Printf("Reconciliations: %d (%d locked)\n", stats.Reconciliations, stats.Locked)

	if stats.LastDate.Valid {
		fmt.Printf("Last activity:   %s\n", stats.LastDate.String)
	} else {
		fmt.Printf("Last activity:   (none)\n")
	}

	fmt.Println()
}

func collectStats(conn *db.Connection) (*bookStats, error) {
	var stats bookStats

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM accounts`, &stats.Accounts},
		{`SELECT COUNT(*) FROM transactions`, &stats.Transactions},
		{`SELECT COUNT(*) FROM transactions WHERE status = 'VOID'`, &stats.Voided},
		{`SELECT COUNT(*) FROM postings`, &stats.Postings},
		{`SELECT COUNT(*) FROM reconciliations`, &stats.Reconciliations},
		{`SELECT COUNT(*) FROM reconciliations WHERE locked = 1`, &stats.Locked},
	}
	for _, c := range counts {
		if err := conn.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count: %w", err)
		}
	}

	err := conn.QueryRow(`SELECT MAX(date) FROM transactions`).Scan(&stats.LastDate)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get last activity: %w", err)
	}

	return &stats, nil
}
