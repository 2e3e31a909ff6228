// Package db provides SQLite database management for a book:
// accounts, transactions, postings and reconciliations.
package db

// Schema defines the SQL statements to create database tables.
const Schema = `
-- Chart of accounts
-- type: ASSET, LIABILITY, EQUITY, INCOME, EXPENSE
-- kind: TRANSFER (real account: bank, card) or CATEGORY (virtual bucket)
CREATE TABLE IF NOT EXISTS accounts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL,
    kind TEXT NOT NULL,
    opening_balance REAL NOT NULL DEFAULT 0,
    opening_date TEXT NOT NULL,            -- YYYY-MM-DD
    parent_id INTEGER REFERENCES accounts(id),
    archived INTEGER NOT NULL DEFAULT 0
);

-- Transactions own their postings; postings never outlive them.
-- status: NORMAL or VOID. VOID transactions are kept for audit but
-- excluded from balances.
CREATE TABLE IF NOT EXISTS transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    date TEXT NOT NULL,                    -- YYYY-MM-DD
    payee TEXT NOT NULL,
    memo TEXT,
    reference TEXT,
    external_id TEXT,                      -- de-duplication key for re-imports
    metadata TEXT,                         -- JSON object, internal format
    tags TEXT,                             -- JSON array, internal format
    status TEXT NOT NULL DEFAULT 'NORMAL'
);

CREATE INDEX IF NOT EXISTS idx_transactions_date
    ON transactions(date);

CREATE INDEX IF NOT EXISTS idx_transactions_external_id
    ON transactions(external_id);

-- One signed line-item of a transaction against one account.
-- reconcile_id is a weak reference: deleting a reconciliation clears it.
CREATE TABLE IF NOT EXISTS postings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    transaction_id INTEGER NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
    account_id INTEGER NOT NULL REFERENCES accounts(id),
    amount REAL NOT NULL,
    is_business INTEGER NOT NULL DEFAULT 0,
    gst_code TEXT,
    gst_rate REAL,
    gst_amount REAL,
    cleared INTEGER NOT NULL DEFAULT 0,
    reconciled INTEGER NOT NULL DEFAULT 0,
    reconcile_id INTEGER REFERENCES reconciliations(id)
);

CREATE INDEX IF NOT EXISTS idx_postings_transaction
    ON postings(transaction_id);

CREATE INDEX IF NOT EXISTS idx_postings_account
    ON postings(account_id);

CREATE INDEX IF NOT EXISTS idx_postings_reconcile
    ON postings(reconcile_id);

-- One reconciliation session per statement period per account.
CREATE TABLE IF NOT EXISTS reconciliations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id INTEGER NOT NULL REFERENCES accounts(id),
    statement_start_date TEXT NOT NULL,    -- YYYY-MM-DD
    statement_end_date TEXT NOT NULL,      -- YYYY-MM-DD
    statement_start_balance REAL NOT NULL,
    statement_end_balance REAL NOT NULL,
    notes TEXT,
    locked INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_reconciliations_account
    ON reconciliations(account_id);
`

// InitializeSchema initializes the database schema.
// It creates all tables if they don't exist.
func InitializeSchema(conn *Connection) error {
	if _, err := conn.Exec(Schema); err != nil {
		return err
	}
	return nil
}
