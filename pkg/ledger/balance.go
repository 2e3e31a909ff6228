package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shunichi-ikebuchi/bookkeeper/pkg/db"
)

// Calculator computes account balances from the opening balance plus
// posting history. VOID transactions never contribute.
type Calculator struct {
	conn     *db.Connection
	accounts *AccountStore
}

// NewCalculator creates a new Calculator.
func NewCalculator(conn *db.Connection, accounts *AccountStore) *Calculator {
	return &Calculator{conn: conn, accounts: accounts}
}

// BalanceOptions filter the postings included in a balance.
type BalanceOptions struct {
	// AsOf includes only postings whose transaction date is on or
	// before this date. Nil means unbounded.
	AsOf *time.Time

	// ClearedOnly includes only statement-matched postings.
	ClearedOnly bool
}

// Balance returns the account's opening balance plus the signed sum of
// its postings on NORMAL transactions, filtered by opts.
func (c *Calculator) Balance(accountID int64, opts BalanceOptions) (float64, error) {
	account, err := c.accounts.Get(accountID)
	if err != nil {
		return 0, err
	}

	query := `
		SELECT COALESCE(SUM(p.amount), 0)
		FROM postings p
		JOIN transactions t ON t.id = p.transaction_id
		WHERE p.account_id = ? AND t.status = ?`
	args := []interface{}{accountID, string(StatusNormal)}

	if opts.AsOf != nil {
		query += ` AND t.date <= ?`
		args = append(args, opts.AsOf.Format(DateLayout))
	}
	if opts.ClearedOnly {
		query += ` AND p.cleared = 1`
	}

	var sum float64
	if err := c.conn.QueryRow(query, args...).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum postings: %w", err)
	}

	return account.OpeningBalance + sum, nil
}

// Register returns the statement view of an account: one entry per
// posting on a NORMAL transaction, ordered by transaction date with
// ties broken by creation order, each carrying the running balance.
// The sequence is seeded by a synthetic opening balance entry dated at
// the account's opening date.
func (c *Calculator) Register(accountID int64) ([]RegisterEntry, error) {
	account, err := c.accounts.Get(accountID)
	if err != nil {
		return nil, err
	}

	rows, err := c.conn.Query(`
		SELECT p.id, t.id, t.date, t.payee, t.memo, p.amount, p.cleared, p.reconciled
		FROM postings p
		JOIN transactions t ON t.id = p.transaction_id
		WHERE p.account_id = ? AND t.status = ?
		ORDER BY t.date, t.id, p.id`,
		accountID, string(StatusNormal))
	if err != nil {
		return nil, fmt.Errorf("failed to query register: %w", err)
	}
	defer rows.Close()

	entries := []RegisterEntry{{
		Date:    account.OpeningDate,
		Payee:   "Opening Balance",
		Running: account.OpeningBalance,
	}}
	if account.OpeningBalance > 0 {
		entries[0].Debit = account.OpeningBalance
	} else if account.OpeningBalance < 0 {
		entries[0].Credit = -account.OpeningBalance
	}

	running := account.OpeningBalance
	for rows.Next() {
		var (
			entry      RegisterEntry
			date       string
			memo       sql.NullString
			amount     float64
			cleared    int
			reconciled int
		)

		if err := rows.Scan(
			&entry.PostingID,
			&entry.TransactionID,
			&date,
			&entry.Payee,
			&memo,
			&amount,
			&cleared,
			&reconciled,
		); err != nil {
			return nil, fmt.Errorf("failed to scan register entry: %w", err)
		}

		parsed, err := time.ParseInLocation(DateLayout, date, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("invalid transaction date %q: %w", date, err)
		}
		entry.Date = parsed
		entry.Memo = memo.String
		entry.Cleared = cleared != 0
		entry.Reconciled = reconciled != 0

		if amount >= 0 {
			entry.Debit = amount
		} else {
			entry.Credit = -amount
		}

		running += amount
		entry.Running = running

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
