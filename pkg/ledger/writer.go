package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shunichi-ikebuchi/bookkeeper/pkg/db"
)

// Writer performs transactional create/update/delete of transactions
// and their postings. Every mutation validates first and runs inside
// one database transaction, so a failure leaves the prior state intact.
type Writer struct {
	conn     *db.Connection
	accounts *AccountStore
	taxable  TaxableFunc
}

// NewWriter creates a new Writer.
func NewWriter(conn *db.Connection, accounts *AccountStore) *Writer {
	return &Writer{
		conn:     conn,
		accounts: accounts,
		taxable:  DefaultTaxable,
	}
}

// SetTaxable replaces the GST code classification, typically with the
// table from the loaded chart of accounts.
func (w *Writer) SetTaxable(fn TaxableFunc) {
	if fn != nil {
		w.taxable = fn
	}
}

// Create validates the input and writes the transaction and its
// postings atomically. On validation failure nothing is written.
func (w *Writer) Create(input TransactionInput) (*Transaction, error) {
	if err := ValidatePostingsWith(input.Postings, w.taxable); err != nil {
		return nil, err
	}
	if err := w.checkAccounts(input.Postings); err != nil {
		return nil, err
	}

	metadata, tags, err := encodeExtras(input.Metadata, input.Tags)
	if err != nil {
		return nil, err
	}

	var id int64
	err = w.conn.Transaction(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			INSERT INTO transactions (date, payee, memo, reference, external_id, metadata, tags, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			input.Date.Format(DateLayout),
			input.Payee,
			nullString(input.Memo),
			nullString(input.Reference),
			nullString(input.ExternalID),
			metadata,
			tags,
			string(StatusNormal),
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}

		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get transaction id: %w", err)
		}

		return insertPostings(tx, id, input.Postings)
	})
	if err != nil {
		return nil, err
	}

	return w.Get(id)
}

// Update validates the input and replaces the transaction header and
// its entire posting set in one atomic unit (delete-then-recreate).
// Fails with a conflict if any existing posting is reconciled, since
// replacing the set would hard-delete a reconciled posting.
func (w *Writer) Update(id int64, input TransactionInput) (*Transaction, error) {
	if err := ValidatePostingsWith(input.Postings, w.taxable); err != nil {
		return nil, err
	}
	if err := w.checkAccounts(input.Postings); err != nil {
		return nil, err
	}

	metadata, tags, err := encodeExtras(input.Metadata, input.Tags)
	if err != nil {
		return nil, err
	}

	err = w.conn.Transaction(func(tx *sql.Tx) error {
		if err := checkTransactionMutable(tx, id); err != nil {
			return err
		}

		_, err := tx.Exec(`
			UPDATE transactions
			SET date = ?, payee = ?, memo = ?, reference = ?, external_id = ?, metadata = ?, tags = ?
			WHERE id = ?`,
			input.Date.Format(DateLayout),
			input.Payee,
			nullString(input.Memo),
			nullString(input.Reference),
			nullString(input.ExternalID),
			metadata,
			tags,
			id,
		)
		if err != nil {
			return fmt.Errorf("failed to update transaction: %w", err)
		}

		if _, err := tx.Exec(`DELETE FROM postings WHERE transaction_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete postings: %w", err)
		}

		return insertPostings(tx, id, input.Postings)
	})
	if err != nil {
		return nil, err
	}

	return w.Get(id)
}

// Delete hard-deletes a transaction and its postings. Fails with a
// conflict if any posting is reconciled; the caller must Void instead.
func (w *Writer) Delete(id int64) error {
	return w.conn.Transaction(func(tx *sql.Tx) error {
		if err := checkTransactionMutable(tx, id); err != nil {
			return err
		}

		// Postings go with the transaction via ON DELETE CASCADE.
		if _, err := tx.Exec(`DELETE FROM transactions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete transaction: %w", err)
		}

		return nil
	})
}

// Void marks a transaction VOID, excluding it from balances while
// keeping it for audit. Voiding an already-void transaction is a no-op
// success. Postings are never touched.
func (w *Writer) Void(id int64) (*Transaction, error) {
	err := w.conn.Transaction(func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRow(`SELECT status FROM transactions WHERE id = ?`, id).Scan(&status)
		if err == sql.ErrNoRows {
			return &NotFoundError{Resource: "transaction", ID: id}
		}
		if err != nil {
			return fmt.Errorf("failed to get transaction status: %w", err)
		}

		if TransactionStatus(status) == StatusVoid {
			return nil
		}

		if _, err := tx.Exec(`UPDATE transactions SET status = ? WHERE id = ?`, string(StatusVoid), id); err != nil {
			return fmt.Errorf("failed to void transaction: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return w.Get(id)
}

// Get retrieves a transaction with its postings in creation order.
func (w *Writer) Get(id int64) (*Transaction, error) {
	row := w.conn.QueryRow(`
		SELECT id, date, payee, memo, reference, external_id, metadata, tags, status
		FROM transactions WHERE id = ?`, id)

	txn, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Resource: "transaction", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	postings, err := w.postingsFor(id)
	if err != nil {
		return nil, err
	}
	txn.Postings = postings

	return txn, nil
}

// FindByExternalID retrieves the transaction imported with the given
// external id, for de-duplication against re-imports.
// Returns nil, nil when none exists.
func (w *Writer) FindByExternalID(externalID string) (*Transaction, error) {
	if externalID == "" {
		return nil, nil
	}

	row := w.conn.QueryRow(`
		SELECT id, date, payee, memo, reference, external_id, metadata, tags, status
		FROM transactions WHERE external_id = ?`, externalID)

	txn, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction by external id: %w", err)
	}

	postings, err := w.postingsFor(txn.ID)
	if err != nil {
		return nil, err
	}
	txn.Postings = postings

	return txn, nil
}

// List retrieves transactions whose date falls within [from, to],
// ordered by date then creation order, with their postings.
func (w *Writer) List(from, to time.Time) ([]Transaction, error) {
	rows, err := w.conn.Query(`
		SELECT id, date, payee, memo, reference, external_id, metadata, tags, status
		FROM transactions
		WHERE date >= ? AND date <= ?
		ORDER BY date, id`,
		from.Format(DateLayout), to.Format(DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range txns {
		postings, err := w.postingsFor(txns[i].ID)
		if err != nil {
			return nil, err
		}
		txns[i].Postings = postings
	}

	return txns, nil
}

// checkAccounts verifies every posting targets an existing,
// non-archived account.
func (w *Writer) checkAccounts(postings []PostingInput) error {
	seen := make(map[int64]bool, len(postings))
	for _, p := range postings {
		if seen[p.AccountID] {
			continue
		}
		seen[p.AccountID] = true

		account, err := w.accounts.Get(p.AccountID)
		if err != nil {
			return err
		}
		if account.Archived {
			return ErrArchivedAccount
		}
	}
	return nil
}

func (w *Writer) postingsFor(transactionID int64) ([]Posting, error) {
	rows, err := w.conn.Query(`
		SELECT id, transaction_id, account_id, amount, is_business,
		       gst_code, gst_rate, gst_amount, cleared, reconciled, reconcile_id
		FROM postings
		WHERE transaction_id = ?
		ORDER BY id`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get postings: %w", err)
	}
	defer rows.Close()

	var postings []Posting
	for rows.Next() {
		posting, err := scanPosting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan posting: %w", err)
		}
		postings = append(postings, *posting)
	}

	return postings, rows.Err()
}

// checkTransactionMutable fails with not-found if the transaction does
// not exist and with a conflict if any of its postings is reconciled.
func checkTransactionMutable(tx *sql.Tx, id int64) error {
	var exists int
	err := tx.QueryRow(`SELECT COUNT(*) FROM transactions WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check transaction: %w", err)
	}
	if exists == 0 {
		return &NotFoundError{Resource: "transaction", ID: id}
	}

	var reconciled int
	err = tx.QueryRow(`
		SELECT COUNT(*) FROM postings
		WHERE transaction_id = ? AND reconciled = 1`, id).Scan(&reconciled)
	if err != nil {
		return fmt.Errorf("failed to check reconciled postings: %w", err)
	}
	if reconciled > 0 {
		return ErrHasReconciledPostings
	}

	return nil
}

func insertPostings(tx *sql.Tx, transactionID int64, postings []PostingInput) error {
	for _, p := range postings {
		_, err := tx.Exec(`
			INSERT INTO postings (transaction_id, account_id, amount, is_business, gst_code, gst_rate, gst_amount)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			transactionID,
			p.AccountID,
			p.Amount,
			boolToInt(p.IsBusiness),
			nullString(p.GSTCode),
			p.GSTRate,
			p.GSTAmount,
		)
		if err != nil {
			return fmt.Errorf("failed to insert posting: %w", err)
		}
	}
	return nil
}

// encodeExtras serializes metadata and tags to their JSON storage form.
// The serialization is an internal detail; the API only ever sees the
// typed map and slice.
func encodeExtras(metadata map[string]string, tags []string) (sql.NullString, sql.NullString, error) {
	var metadataJSON, tagsJSON sql.NullString

	if len(metadata) > 0 {
		data, err := json.Marshal(metadata)
		if err != nil {
			return metadataJSON, tagsJSON, fmt.Errorf("failed to encode metadata: %w", err)
		}
		metadataJSON = sql.NullString{String: string(data), Valid: true}
	}

	if len(tags) > 0 {
		data, err := json.Marshal(tags)
		if err != nil {
			return metadataJSON, tagsJSON, fmt.Errorf("failed to encode tags: %w", err)
		}
		tagsJSON = sql.NullString{String: string(data), Valid: true}
	}

	return metadataJSON, tagsJSON, nil
}

func scanTransaction(row scanner) (*Transaction, error) {
	var (
		txn        Transaction
		date       string
		memo       sql.NullString
		reference  sql.NullString
		externalID sql.NullString
		metadata   sql.NullString
		tags       sql.NullString
		status     string
	)

	err := row.Scan(
		&txn.ID,
		&date,
		&txn.Payee,
		&memo,
		&reference,
		&externalID,
		&metadata,
		&tags,
		&status,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := time.ParseInLocation(DateLayout, date, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction date %q: %w", date, err)
	}
	txn.Date = parsed
	txn.Memo = memo.String
	txn.Reference = reference.String
	txn.ExternalID = externalID.String
	txn.Status = TransactionStatus(status)

	if metadata.Valid {
		if err := json.Unmarshal([]byte(metadata.String), &txn.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	if tags.Valid {
		if err := json.Unmarshal([]byte(tags.String), &txn.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags: %w", err)
		}
	}

	return &txn, nil
}

func scanPosting(row scanner) (*Posting, error) {
	var (
		posting     Posting
		isBusiness  int
		gstCode     sql.NullString
		gstRate     sql.NullFloat64
		gstAmount   sql.NullFloat64
		cleared     int
		reconciled  int
		reconcileID sql.NullInt64
	)

	err := row.Scan(
		&posting.ID,
		&posting.TransactionID,
		&posting.AccountID,
		&posting.Amount,
		&isBusiness,
		&gstCode,
		&gstRate,
		&gstAmount,
		&cleared,
		&reconciled,
		&reconcileID,
	)
	if err != nil {
		return nil, err
	}

	posting.IsBusiness = isBusiness != 0
	posting.GSTCode = gstCode.String
	posting.Cleared = cleared != 0
	posting.Reconciled = reconciled != 0
	if gstRate.Valid {
		posting.GSTRate = &gstRate.Float64
	}
	if gstAmount.Valid {
		posting.GSTAmount = &gstAmount.Float64
	}
	if reconcileID.Valid {
		posting.ReconcileID = &reconcileID.Int64
	}

	return &posting, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
