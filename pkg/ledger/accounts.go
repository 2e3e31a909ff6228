package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shunichi-ikebuchi/bookkeeper/pkg/db"
)

// AccountInput is the caller-supplied shape for creating an account.
// Kind is derived from Type unless explicitly set.
type AccountInput struct {
	Name           string
	Type           AccountType
	Kind           AccountKind
	OpeningBalance float64
	OpeningDate    time.Time
	ParentID       *int64
}

// AccountStore is the catalog boundary: typed lookups over the accounts
// table. Catalog management beyond create/archive lives outside the core.
type AccountStore struct {
	conn *db.Connection
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(conn *db.Connection) *AccountStore {
	return &AccountStore{conn: conn}
}

// Create inserts a new account. An empty Kind is derived from Type.
func (s *AccountStore) Create(input AccountInput) (*Account, error) {
	if !input.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown account type %q", ErrValidation, input.Type)
	}

	kind := input.Kind
	if kind == "" {
		kind = KindForType(input.Type)
	}

	openingDate := input.OpeningDate
	if openingDate.IsZero() {
		openingDate = time.Now().UTC()
	}

	result, err := s.conn.Exec(`
		INSERT INTO accounts (name, type, kind, opening_balance, opening_date, parent_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		input.Name,
		string(input.Type),
		string(kind),
		input.OpeningBalance,
		openingDate.Format(DateLayout),
		input.ParentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get account id: %w", err)
	}

	return s.Get(id)
}

// Get retrieves an account by id.
func (s *AccountStore) Get(id int64) (*Account, error) {
	row := s.conn.QueryRow(`
		SELECT id, name, type, kind, opening_balance, opening_date, parent_id, archived
		FROM accounts WHERE id = ?`, id)

	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Resource: "account", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

// GetByName retrieves an account by its unique name.
// Returns nil, nil when no account has that name.
func (s *AccountStore) GetByName(name string) (*Account, error) {
	row := s.conn.QueryRow(`
		SELECT id, name, type, kind, opening_balance, opening_date, parent_id, archived
		FROM accounts WHERE name = ?`, name)

	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account by name: %w", err)
	}

	return account, nil
}

// List retrieves all accounts, ordered by name.
// Archived accounts are excluded unless includeArchived is set.
func (s *AccountStore) List(includeArchived bool) ([]Account, error) {
	query := `
		SELECT id, name, type, kind, opening_balance, opening_date, parent_id, archived
		FROM accounts`
	if !includeArchived {
		query += ` WHERE archived = 0`
	}
	query += ` ORDER BY name`

	rows, err := s.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}

	return accounts, rows.Err()
}

// SetArchived flips the archived flag. Archived accounts are rejected
// for new postings but keep their history.
func (s *AccountStore) SetArchived(id int64, archived bool) error {
	result, err := s.conn.Exec(`UPDATE accounts SET archived = ? WHERE id = ?`, boolToInt(archived), id)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &NotFoundError{Resource: "account", ID: id}
	}

	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row scanner) (*Account, error) {
	var (
		account     Account
		accountType string
		kind        string
		openingDate string
		parentID    sql.NullInt64
		archived    int
	)

	err := row.Scan(
		&account.ID,
		&account.Name,
		&accountType,
		&kind,
		&account.OpeningBalance,
		&openingDate,
		&parentID,
		&archived,
	)
	if err != nil {
		return nil, err
	}

	account.Type = AccountType(accountType)
	account.Kind = AccountKind(kind)
	account.Archived = archived != 0
	if parentID.Valid {
		account.ParentID = &parentID.Int64
	}

	date, err := time.ParseInLocation(DateLayout, openingDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid opening date %q: %w", openingDate, err)
	}
	account.OpeningDate = date

	return &account, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
