package ledger

import (
	"errors"
	"math"
	"testing"
)

func TestBalanceLaw(t *testing.T) {
	conn, accounts, writer, ids := newTestBook(t)
	calculator := NewCalculator(conn, accounts)

	// Opening 1000, then +500 (sale) and -200 (expense).
	for _, txn := range []TransactionInput{
		{
			Date:  date(2024, 2, 1),
			Payee: "Customer",
			Postings: []PostingInput{
				{AccountID: ids["Checking"], Amount: 500},
				{AccountID: ids["Sales"], Amount: -500},
			},
		},
		{
			Date:  date(2024, 2, 15),
			Payee: "Supplier",
			Postings: []PostingInput{
				{AccountID: ids["Checking"], Amount: -200},
				{AccountID: ids["Office Expenses"], Amount: 200},
			},
		},
	} {
		if _, err := writer.Create(txn); err != nil {
			t.Fatal(err)
		}
	}

	balance, err := calculator.Balance(ids["Checking"], BalanceOptions{})
	if err != nil {
		t.Fatalf("Balance() = %v", err)
	}
	if balance != 1300 {
		t.Errorf("Balance() = %.2f, expected 1300.00", balance)
	}

	// As-of filtering excludes the later expense.
	asOf := date(2024, 2, 10)
	balance, err = calculator.Balance(ids["Checking"], BalanceOptions{AsOf: &asOf})
	if err != nil {
		t.Fatal(err)
	}
	if balance != 1500 {
		t.Errorf("Balance(asOf 2024-02-10) = %.2f, expected 1500.00", balance)
	}
}

func TestBalanceClearedOnly(t *testing.T) {
	conn, accounts, writer, ids := newTestBook(t)
	calculator := NewCalculator(conn, accounts)

	created, err := writer.Create(TransactionInput{
		Date:  date(2024, 2, 1),
		Payee: "Customer",
		Postings: []PostingInput{
			{AccountID: ids["Checking"], Amount: 500},
			{AccountID: ids["Sales"], Amount: -500},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	balance, err := calculator.Balance(ids["Checking"], BalanceOptions{ClearedOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if balance != 1000 {
		t.Errorf("cleared balance = %.2f, expected 1000.00 before clearing", balance)
	}

	if _, err := conn.Exec(`UPDATE postings SET cleared = 1 WHERE id = ?`, created.Postings[0].ID); err != nil {
		t.Fatal(err)
	}

	balance, err = calculator.Balance(ids["Checking"], BalanceOptions{ClearedOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if balance != 1500 {
		t.Errorf("cleared balance = %.2f, expected 1500.00 after clearing", balance)
	}
}

func TestBalanceExcludesVoid(t *testing.T) {
	conn, accounts, writer, ids := newTestBook(t)
	calculator := NewCalculator(conn, accounts)

	created, err := writer.Create(TransactionInput{
		Date:  date(2024, 2, 1),
		Payee: "Customer",
		Postings: []PostingInput{
			{AccountID: ids["Checking"], Amount: 500},
			{AccountID: ids["Sales"], Amount: -500},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := writer.Void(created.ID); err != nil {
		t.Fatal(err)
	}

	balance, err := calculator.Balance(ids["Checking"], BalanceOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if balance != 1000 {
		t.Errorf("Balance() = %.2f, expected 1000.00 with void excluded", balance)
	}
}

func TestBalanceAccountNotFound(t *testing.T) {
	conn, accounts, _, _ := newTestBook(t)
	calculator := NewCalculator(conn, accounts)

	_, err := calculator.Balance(9999, BalanceOptions{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Balance() = %v, expected not-found error", err)
	}
}

func TestRegisterRunningBalance(t *testing.T) {
	conn, accounts, writer, ids := newTestBook(t)
	calculator := NewCalculator(conn, accounts)

	// Deliberately created out of date order; the register sorts.
	for _, txn := range []TransactionInput{
		{
			Date:  date(2024, 2, 15),
			Payee: "Supplier",
			Postings: []PostingInput{
				{AccountID: ids["Checking"], Amount: -200},
				{AccountID: ids["Office Expenses"], Amount: 200},
			},
		},
		{
			Date:  date(2024, 2, 1),
			Payee: "Customer",
			Postings: []PostingInput{
				{AccountID: ids["Checking"], Amount: 500},
				{AccountID: ids["Sales"], Amount: -500},
			},
		},
	} {
		if _, err := writer.Create(txn); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := calculator.Register(ids["Checking"])
	if err != nil {
		t.Fatalf("Register() = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, expected 3 (opening + 2)", len(entries))
	}

	opening := entries[0]
	if opening.Payee != "Opening Balance" || opening.Running != 1000 || !opening.Date.Equal(date(2024, 1, 1)) {
		t.Errorf("opening entry = %+v", opening)
	}

	if entries[1].Payee != "Customer" || entries[1].Running != 1500 {
		t.Errorf("entry 1 = %+v, expected Customer running 1500", entries[1])
	}
	if entries[1].Debit != 500 || entries[1].Credit != 0 {
		t.Errorf("entry 1 debit/credit = %.2f/%.2f, expected 500/0", entries[1].Debit, entries[1].Credit)
	}

	if entries[2].Payee != "Supplier" || entries[2].Running != 1300 {
		t.Errorf("entry 2 = %+v, expected Supplier running 1300", entries[2])
	}
	if entries[2].Debit != 0 || entries[2].Credit != 200 {
		t.Errorf("entry 2 debit/credit = %.2f/%.2f, expected 0/200", entries[2].Debit, entries[2].Credit)
	}

	// The running balance law: last running equals the account balance.
	balance, err := calculator.Balance(ids["Checking"], BalanceOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(entries[len(entries)-1].Running-balance) > BalanceTolerance {
		t.Errorf("final running %.2f != balance %.2f", entries[len(entries)-1].Running, balance)
	}
}
