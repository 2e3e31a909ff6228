package reconcile

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shunichi-ikebuchi/bookkeeper/pkg/db"
	"github.com/shunichi-ikebuchi/bookkeeper/pkg/ledger"
)

// Manager owns the lifecycle of reconciliation sessions:
// Open -> Locked (only when balanced) -> Open (explicit unlock), with
// deletion permitted only while open. All posting toggles run inside
// one database transaction.
type Manager struct {
	conn     *db.Connection
	accounts *ledger.AccountStore
	balances *ledger.Calculator
}

// NewManager creates a new Manager.
func NewManager(conn *db.Connection, accounts *ledger.AccountStore, balances *ledger.Calculator) *Manager {
	return &Manager{conn: conn, accounts: accounts, balances: balances}
}

// Create opens a new reconciliation session. The account must exist and
// the statement period must be well-formed (start <= end). Limiting an
// account to one open session is the surrounding application's policy,
// not enforced here.
func (m *Manager) Create(input Input) (*Reconciliation, error) {
	if _, err := m.accounts.Get(input.AccountID); err != nil {
		return nil, err
	}
	if input.StatementEndDate.Before(input.StatementStartDate) {
		return nil, fmt.Errorf("%w: statement period end before start", ledger.ErrValidation)
	}

	result, err := m.conn.Exec(`
		INSERT INTO reconciliations
			(account_id, statement_start_date, statement_end_date,
			 statement_start_balance, statement_end_balance, notes)
		VALUES (?, ?, ?, ?, ?, ?)`,
		input.AccountID,
		input.StatementStartDate.Format(ledger.DateLayout),
		input.StatementEndDate.Format(ledger.DateLayout),
		input.StatementStartBalance,
		input.StatementEndBalance,
		nullableNotes(input.Notes),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reconciliation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get reconciliation id: %w", err)
	}

	return m.Get(id)
}

// Get retrieves a reconciliation by id.
func (m *Manager) Get(id int64) (*Reconciliation, error) {
	row := m.conn.QueryRow(`
		SELECT id, account_id, statement_start_date, statement_end_date,
		       statement_start_balance, statement_end_balance, notes, locked
		FROM reconciliations WHERE id = ?`, id)

	rec, err := scanReconciliation(row)
	if err == sql.ErrNoRows {
		return nil, &ledger.NotFoundError{Resource: "reconciliation", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reconciliation: %w", err)
	}

	return rec, nil
}

// ListByAccount retrieves all reconciliations for an account, newest
// statement period first.
func (m *Manager) ListByAccount(accountID int64) ([]Reconciliation, error) {
	rows, err := m.conn.Query(`
		SELECT id, account_id, statement_start_date, statement_end_date,
		       statement_start_balance, statement_end_balance, notes, locked
		FROM reconciliations
		WHERE account_id = ?
		ORDER BY statement_end_date DESC, id DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reconciliations: %w", err)
	}
	defer rows.Close()

	var recs []Reconciliation
	for rows.Next() {
		rec, err := scanReconciliation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation: %w", err)
		}
		recs = append(recs, *rec)
	}

	return recs, rows.Err()
}

// HasOpen reports whether the account has an unlocked reconciliation.
// The request layer uses this to enforce one open session per account.
func (m *Manager) HasOpen(accountID int64) (bool, error) {
	var count int
	err := m.conn.QueryRow(`
		SELECT COUNT(*) FROM reconciliations
		WHERE account_id = ? AND locked = 0`, accountID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check open reconciliations: %w", err)
	}
	return count > 0, nil
}

// ReconcilePostings marks the given postings reconciled against this
// session, setting cleared as well (a reconciled posting is always
// cleared). Fails if the session, or a session a posting already
// references, is locked. All-or-nothing.
func (m *Manager) ReconcilePostings(id int64, postingIDs []int64) error {
	return m.conn.Transaction(func(tx *sql.Tx) error {
		locked, err := lockState(tx, id)
		if err != nil {
			return err
		}
		if locked {
			return ErrReconciliationLocked
		}

		for _, postingID := range postingIDs {
			if err := checkPostingUnlocked(tx, postingID, id); err != nil {
				return err
			}

			result, err := tx.Exec(`
				UPDATE postings
				SET reconciled = 1, cleared = 1, reconcile_id = ?
				WHERE id = ?`, id, postingID)
			if err != nil {
				return fmt.Errorf("failed to reconcile posting: %w", err)
			}
			if err := requireOneRow(result, "posting", postingID); err != nil {
				return err
			}
		}

		return nil
	})
}

// UnreconcilePostings clears the reconciled flag and session reference
// on the given postings. The cleared bit is left untouched.
// Fails if the session, or a session a posting references, is locked —
// a locked session's postings cannot be released through another
// session. All-or-nothing.
func (m *Manager) UnreconcilePostings(id int64, postingIDs []int64) error {
	return m.conn.Transaction(func(tx *sql.Tx) error {
		locked, err := lockState(tx, id)
		if err != nil {
			return err
		}
		if locked {
			return ErrReconciliationLocked
		}

		for _, postingID := range postingIDs {
			if err := checkPostingUnlocked(tx, postingID, id); err != nil {
				return err
			}

			result, err := tx.Exec(`
				UPDATE postings
				SET reconciled = 0, reconcile_id = NULL
				WHERE id = ?`, postingID)
			if err != nil {
				return fmt.Errorf("failed to unreconcile posting: %w", err)
			}
			if err := requireOneRow(result, "posting", postingID); err != nil {
				return err
			}
		}

		return nil
	})
}

// Status computes the session's position: the cleared balance of the
// account as of the statement end date against the statement's end
// balance.
func (m *Manager) Status(id int64) (*Status, error) {
	rec, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	asOf := rec.StatementEndDate
	cleared, err := m.balances.Balance(rec.AccountID, ledger.BalanceOptions{
		AsOf:        &asOf,
		ClearedOnly: true,
	})
	if err != nil {
		return nil, err
	}

	difference := rec.StatementEndBalance - cleared
	return &Status{
		StatementBalance: rec.StatementEndBalance,
		ClearedBalance:   cleared,
		Difference:       difference,
		IsBalanced:       ledger.WithinTolerance(difference, 0, ledger.BalanceTolerance),
	}, nil
}

// Lock transitions the session to locked. It recomputes the balance
// and fails with NotBalancedError when the difference is outside
// tolerance. The check and the transition run in one database
// transaction so a concurrent posting toggle cannot land between them.
func (m *Manager) Lock(id int64) error {
	return m.conn.Transaction(func(tx *sql.Tx) error {
		rec, err := scanReconciliation(tx.QueryRow(`
			SELECT id, account_id, statement_start_date, statement_end_date,
			       statement_start_balance, statement_end_balance, notes, locked
			FROM reconciliations WHERE id = ?`, id))
		if err == sql.ErrNoRows {
			return &ledger.NotFoundError{Resource: "reconciliation", ID: id}
		}
		if err != nil {
			return fmt.Errorf("failed to get reconciliation: %w", err)
		}

		cleared, err := clearedBalanceTx(tx, rec.AccountID, rec.StatementEndDate)
		if err != nil {
			return err
		}

		difference := rec.StatementEndBalance - cleared
		if !ledger.WithinTolerance(difference, 0, ledger.BalanceTolerance) {
			return &NotBalancedError{Difference: difference}
		}

		if _, err := tx.Exec(`UPDATE reconciliations SET locked = 1 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to lock reconciliation: %w", err)
		}

		return nil
	})
}

// Unlock reopens a locked session. Locked is not a terminal state.
func (m *Manager) Unlock(id int64) error {
	result, err := m.conn.Exec(`UPDATE reconciliations SET locked = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to unlock reconciliation: %w", err)
	}
	return requireOneRow(result, "reconciliation", id)
}

// Delete removes an unlocked session. Every posting referencing it has
// its reconciled flag and session reference cleared (the cleared bit
// survives); the postings themselves are never deleted.
func (m *Manager) Delete(id int64) error {
	return m.conn.Transaction(func(tx *sql.Tx) error {
		locked, err := lockState(tx, id)
		if err != nil {
			return err
		}
		if locked {
			return ErrReconciliationLocked
		}

		if _, err := tx.Exec(`
			UPDATE postings
			SET reconciled = 0, reconcile_id = NULL
			WHERE reconcile_id = ?`, id); err != nil {
			return fmt.Errorf("failed to release postings: %w", err)
		}

		if _, err := tx.Exec(`DELETE FROM reconciliations WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete reconciliation: %w", err)
		}

		return nil
	})
}

// Candidates returns the unreconciled postings of the account whose
// transaction date falls within the statement period widened by the
// matching slack, as matcher input.
func (m *Manager) Candidates(accountID int64, periodStart, periodEnd time.Time) ([]Candidate, error) {
	if _, err := m.accounts.Get(accountID); err != nil {
		return nil, err
	}

	from := periodStart.AddDate(0, 0, -DateSlackDays)
	to := periodEnd.AddDate(0, 0, DateSlackDays)

	rows, err := m.conn.Query(`
		SELECT p.id, t.id, t.date, t.payee, t.memo, p.amount
		FROM postings p
		JOIN transactions t ON t.id = p.transaction_id
		WHERE p.account_id = ? AND p.reconciled = 0 AND t.status = ?
		  AND t.date >= ? AND t.date <= ?
		ORDER BY t.date, t.id, p.id`,
		accountID, string(ledger.StatusNormal),
		from.Format(ledger.DateLayout), to.Format(ledger.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var (
			c    Candidate
			date string
			memo sql.NullString
		)
		if err := rows.Scan(&c.PostingID, &c.TransactionID, &date, &c.Payee, &memo, &c.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}

		parsed, err := time.ParseInLocation(ledger.DateLayout, date, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("invalid transaction date %q: %w", date, err)
		}
		c.Date = parsed
		c.Memo = memo.String

		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

// Match loads the candidate pool for the account and period and runs
// the statement matcher over it. Read-only; accepting a match is a
// separate ReconcilePostings call.
func (m *Manager) Match(accountID int64, lines []StatementLine, periodStart, periodEnd time.Time) (*MatchReport, error) {
	candidates, err := m.Candidates(accountID, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}
	report := MatchLines(lines, candidates)
	return &report, nil
}

// lockState returns the locked flag of a reconciliation inside a
// database transaction, or not-found.
func lockState(tx *sql.Tx, id int64) (bool, error) {
	var locked int
	err := tx.QueryRow(`SELECT locked FROM reconciliations WHERE id = ?`, id).Scan(&locked)
	if err == sql.ErrNoRows {
		return false, &ledger.NotFoundError{Resource: "reconciliation", ID: id}
	}
	if err != nil {
		return false, fmt.Errorf("failed to get reconciliation state: %w", err)
	}
	return locked != 0, nil
}

// clearedBalanceTx computes the account's cleared balance (opening
// balance plus cleared postings on NORMAL transactions dated on or
// before asOf) inside an open database transaction.
func clearedBalanceTx(tx *sql.Tx, accountID int64, asOf time.Time) (float64, error) {
	var opening float64
	err := tx.QueryRow(`SELECT opening_balance FROM accounts WHERE id = ?`, accountID).Scan(&opening)
	if err == sql.ErrNoRows {
		return 0, &ledger.NotFoundError{Resource: "account", ID: accountID}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get account: %w", err)
	}

	var sum float64
	err = tx.QueryRow(`
		SELECT COALESCE(SUM(p.amount), 0)
		FROM postings p
		JOIN transactions t ON t.id = p.transaction_id
		WHERE p.account_id = ? AND t.status = ? AND p.cleared = 1 AND t.date <= ?`,
		accountID, string(ledger.StatusNormal), asOf.Format(ledger.DateLayout)).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum cleared postings: %w", err)
	}

	return opening + sum, nil
}

// checkPostingUnlocked rejects reconciling or releasing a posting that
// already belongs to a different, locked session.
func checkPostingUnlocked(tx *sql.Tx, postingID, targetID int64) error {
	var reconcileID sql.NullInt64
	err := tx.QueryRow(`SELECT reconcile_id FROM postings WHERE id = ?`, postingID).Scan(&reconcileID)
	if err == sql.ErrNoRows {
		return &ledger.NotFoundError{Resource: "posting", ID: postingID}
	}
	if err != nil {
		return fmt.Errorf("failed to get posting: %w", err)
	}

	if !reconcileID.Valid || reconcileID.Int64 == targetID {
		return nil
	}

	locked, err := lockState(tx, reconcileID.Int64)
	if err != nil {
		return err
	}
	if locked {
		return ErrReconciliationLocked
	}
	return nil
}

func requireOneRow(result sql.Result, resource string, id int64) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &ledger.NotFoundError{Resource: resource, ID: id}
	}
	return nil
}

func nullableNotes(notes string) sql.NullString {
	if notes == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: notes, Valid: true}
}

func scanReconciliation(row interface{ Scan(...interface{}) error }) (*Reconciliation, error) {
	var (
		rec    Reconciliation
		start  string
		end    string
		notes  sql.NullString
		locked int
	)

	err := row.Scan(
		&rec.ID,
		&rec.AccountID,
		&start,
		&end,
		&rec.StatementStartBalance,
		&rec.StatementEndBalance,
		&notes,
		&locked,
	)
	if err != nil {
		return nil, err
	}

	startDate, err := time.ParseInLocation(ledger.DateLayout, start, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid statement start date %q: %w", start, err)
	}
	endDate, err := time.ParseInLocation(ledger.DateLayout, end, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid statement end date %q: %w", end, err)
	}

	rec.StatementStartDate = startDate
	rec.StatementEndDate = endDate
	rec.Notes = notes.String
	rec.Locked = locked != 0

	return &rec, nil
}
