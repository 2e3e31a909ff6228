package ledger

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shunichi-ikebuchi/bookkeeper/pkg/db"
)

// newTestBook opens a throwaway book with a checking account (opening
// balance 1000), a sales category and an expense category.
func newTestBook(t *testing.T) (*db.Connection, *AccountStore, *Writer, map[string]int64) {
	t.Helper()

	conn, err := db.Open(filepath.Join(t.TempDir(), "book.db"))
	if err != nil {
		t.Fatalf("failed to open test book: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	accounts := NewAccountStore(conn)
	ids := make(map[string]int64)

	defs := []AccountInput{
		{Name: "Checking", Type: TypeAsset, OpeningBalance: 1000, OpeningDate: date(2024, 1, 1)},
		{Name: "Sales", Type: TypeIncome},
		{Name: "Office Expenses", Type: TypeExpense},
		{Name: "GST Paid", Type: TypeAsset},
	}
	for _, def := range defs {
		account, err := accounts.Create(def)
		if err != nil {
			t.Fatalf("failed to create account %q: %v", def.Name, err)
		}
		ids[def.Name] = account.ID
	}

	return conn, accounts, NewWriter(conn, accounts), ids
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWriterCreateAndGet(t *testing.T) {
	_, _, writer, ids := newTestBook(t)

	input := TransactionInput{
		Date:       date(2024, 3, 10),
		Payee:      "Office Warehouse",
		Memo:       "printer paper",
		Reference:  "INV-42",
		ExternalID: "import-001",
		Metadata:   map[string]string{"source": "csv"},
		Tags:       []string{"office", "supplies"},
		Postings: []PostingInput{
			{AccountID: ids["Checking"], Amount: -110.00},
			{AccountID: ids["Office Expenses"], Amount: 100.00, IsBusiness: true, GSTCode: "GST", GSTRate: fptr(0.1), GSTAmount: fptr(10.00)},
			{AccountID: ids["GST Paid"], Amount: 10.00},
		},
	}

	created, err := writer.Create(input)
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	if created.Status != StatusNormal {
		t.Errorf("Status = %s, expected NORMAL", created.Status)
	}
	if len(created.Postings) != 3 {
		t.Fatalf("got %d postings, expected 3", len(created.Postings))
	}

	got, err := writer.Get(created.ID)
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if got.Payee != "Office Warehouse" || got.Memo != "printer paper" || got.Reference != "INV-42" {
		t.Errorf("round trip lost header fields: %+v", got)
	}
	if got.Metadata["source"] != "csv" {
		t.Errorf("Metadata = %v, expected source=csv", got.Metadata)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "office" || got.Tags[1] != "supplies" {
		t.Errorf("Tags = %v, expected ordered [office supplies]", got.Tags)
	}
	if got.Postings[1].GSTRate == nil || *got.Postings[1].GSTRate != 0.1 {
		t.Errorf("posting GST rate not preserved: %+v", got.Postings[1])
	}
}

func TestWriterCreateValidatesFirst(t *testing.T) {
	conn, _, writer, ids := newTestBook(t)

	_, err := writer.Create(TransactionInput{
		Date:  date(2024, 3, 10),
		Payee: "Broken",
		Postings: []PostingInput{
			{AccountID: ids["Checking"], Amount: -100},
			{AccountID: ids["Sales"], Amount: 110},
		},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Create() = %v, expected validation error", err)
	}

	// Nothing written.
	var count int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("got %d transactions after failed create, expected 0", count)
	}
}

func TestWriterCreateUnknownAccount(t *testing.T) {
	_, _, writer, ids := newTestBook(t)

	_, err := writer.Create(TransactionInput{
		Date:  date(2024, 3, 10),
		Payee: "Ghost",
		Postings: []PostingInput{
			{AccountID: ids["Checking"], Amount: -50},
			{AccountID: 9999, Amount: 50},
		},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Create() = %v, expected not-found error", err)
	}
}

func TestWriterCreateArchivedAccount(t *testing.T) {
	_, accounts, writer, ids := newTestBook(t)

	if err := accounts.SetArchived(ids["Sales"], true); err != nil {
		t.Fatal(err)
	}

	_, err := writer.Create(TransactionInput{
		Date:  date(2024, 3, 10),
		Payee: "Closed",
		Postings: []PostingInput{
			{AccountID: ids["Checking"], Amount: 50},
			{AccountID: ids["Sales"], Amount: -50},
		},
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Create() = %v, expected conflict for archived account", err)
	}
}

func TestWriterUpdateReplacesPostings(t *testing.T) {
	conn, _, writer, ids := newTestBook(t)

	created, err := writer.Create(TransactionInput{
		Date:  date(2024, 3, 10),
		Payee: "Original",
		Postings: []PostingInput{
			{AccountID: ids["Checking"], Amount: -100},
			{AccountID: ids["Office Expenses"], Amount: 100},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	oldIDs := map[int64]bool{}
	for _, p := range created.Postings {
		oldIDs[p.ID] = true
	}

	updated, err := writer.Update(created.ID, TransactionInput{
		Date:  date(2024, 3, 11),
		Payee: "Corrected",
		Postings: []PostingInput{
			{AccountID: ids["Checking"], Amount: -60},
			{AccountID: ids["Office Expenses"], Amount: 30},
			{AccountID: ids["Office Expenses"], Amount: 30},
		},
	})
	if err != nil {
		t.Fatalf("Update() = %v", err)
	}

	if updated.Payee != "Corrected" || !updated.Date.Equal(date(2024, 3, 11)) {
		t.Errorf("header not updated: %+v", updated)
	}
	if len(updated.Postings) != 3 {
		t.Fatalf("got %d postings, expected 3", len(updated.Postings))
	}
	for _, p := range updated.Postings {
		if oldIDs[p.ID] {
			t.Errorf("posting id %d survived replacement", p.ID)
		}
	}

	// The previous postings no longer exist.
	var count int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM postings WHERE transaction_id = ?`, created.ID).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("got %d stored postings, expected 3", count)
	}
}

func TestWriterUpdateRollsBackOnFailure(t *testing.T) {
	_, _, writer, ids := newTestBook(t)

	created, err := writer.Create(TransactionInput{
		Date:  date(2024, 3, 10),
		Payee: "Original",
		Postings: []PostingInput{
			{AccountID: ids["Checking"], Amount: -100},
			{AccountID: ids["Office Expenses"], Amount: 100},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = writer.Update(created.ID, TransactionInput{
		Date:  date(2024, 3, 11),
		Payee: "Broken",
		Postings: []PostingInput{
			{AccountID: ids["Checking"], Amount: -100},
			{AccountID: ids["Office Expenses"], Amount: 50},
		},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Update() = %v, expected validation error", err)
	}

	// Prior state intact.
	got, err := writer.Get(created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Payee != "Original" || len(got.Postings) != 2 {
		t.Errorf("prior state lost after failed update: %+v", got)
	}
}

func TestWriterDelete(t *testing.T) {
	conn, _, writer, ids := newTestBook(t)

	created, err := writer.Create(TransactionInput{
		Date:  date(2024, 3, 10),
		Payee: "Doomed",
		Postings: []PostingInput{
			{AccountID: ids["Checking"], Amount: -10},
			{AccountID: ids["Office Expenses"], Amount: 10},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := writer.Delete(created.ID); err != nil {
		t.Fatalf("Delete() = %v", err)
	}

	if _, err := writer.Get(created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete = %v, expected not found", err)
	}

	var count int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM postings WHERE transaction_id = ?`, created.ID).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("got %d orphaned postings, expected 0", count)
	}
}

func TestWriterDeleteReconciledConflict(t *testing.T) {
	conn, _, writer, ids := newTestBook(t)

	created, err := writer.Create(TransactionInput{
		Date:  date(2024, 3, 10),
		Payee: "Reconciled",
		Postings: []PostingInput{
			{AccountID: ids["Checking"], Amount: -10},
			{AccountID: ids["Office Expenses"], Amount: 10},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := conn.Exec(`UPDATE postings SET reconciled = 1, cleared = 1 WHERE id = ?`, created.Postings[0].ID); err != nil {
		t.Fatal(err)
	}

	if err := writer.Delete(created.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("Delete() = %v, expected conflict", err)
	}

	// Voiding the same transaction succeeds.
	voided, err := writer.Void(created.ID)
	if err != nil {
		t.Fatalf("Void() = %v", err)
	}
	if voided.Status != StatusVoid {
		t.Errorf("Status = %s, expected VOID", voided.Status)
	}
}

func TestWriterVoidIdempotent(t *testing.T) {
	_, _, writer, ids := newTestBook(t)

	created, err := writer.Create(TransactionInput{
		Date:  date(2024, 3, 10),
		Payee: "Mistake",
		Postings: []PostingInput{
			{AccountID: ids["Checking"], Amount: -10},
			{AccountID: ids["Office Expenses"], Amount: 10},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	first, err := writer.Void(created.ID)
	if err != nil {
		t.Fatalf("Void() = %v", err)
	}

	second, err := writer.Void(created.ID)
	if err != nil {
		t.Fatalf("second Void() = %v", err)
	}
	if second.Status != StatusVoid {
		t.Errorf("Status = %s, expected VOID", second.Status)
	}
	if len(second.Postings) != len(first.Postings) {
		t.Errorf("void touched postings: %d != %d", len(second.Postings), len(first.Postings))
	}
}

func TestWriterFindByExternalID(t *testing.T) {
	_, _, writer, ids := newTestBook(t)

	created, err := writer.Create(TransactionInput{
		Date:       date(2024, 3, 10),
		Payee:      "Imported",
		ExternalID: "stmt-2024-03-10-001",
		Postings: []PostingInput{
			{AccountID: ids["Checking"], Amount: -10},
			{AccountID: ids["Office Expenses"], Amount: 10},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	found, err := writer.FindByExternalID("stmt-2024-03-10-001")
	if err != nil {
		t.Fatalf("FindByExternalID() = %v", err)
	}
	if found == nil || found.ID != created.ID {
		t.Errorf("FindByExternalID() = %+v, expected transaction %d", found, created.ID)
	}

	missing, err := writer.FindByExternalID("no-such-import")
	if err != nil {
		t.Fatalf("FindByExternalID() = %v", err)
	}
	if missing != nil {
		t.Errorf("FindByExternalID() = %+v, expected nil", missing)
	}
}
