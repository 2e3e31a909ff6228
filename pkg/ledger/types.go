// Package ledger implements the double-entry core of a book: the chart
// of accounts boundary, posting validation, transactional writes and
// balance computation.
package ledger

import (
	"math"
	"time"
)

// DateLayout is the storage format for all dates (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// Tolerances for floating currency arithmetic.
const (
	// BalanceTolerance is the rounding slack allowed when postings of a
	// transaction are summed to zero, and when a reconciliation
	// difference is considered balanced.
	BalanceTolerance = 0.01

	// TaxTolerance is the slack allowed between a posting's recorded GST
	// amount and |amount| * rate.
	TaxTolerance = 0.02
)

// AccountType classifies an account in the chart.
type AccountType string

const (
	TypeAsset     AccountType = "ASSET"
	TypeLiability AccountType = "LIABILITY"
	TypeEquity    AccountType = "EQUITY"
	TypeIncome    AccountType = "INCOME"
	TypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is one of the five account types.
func (t AccountType) Valid() bool {
	switch t {
	case TypeAsset, TypeLiability, TypeEquity, TypeIncome, TypeExpense:
		return true
	}
	return false
}

// AccountKind distinguishes real accounts from virtual category buckets.
type AccountKind string

const (
	// KindTransfer is a real account with an external balance (bank, card).
	KindTransfer AccountKind = "TRANSFER"
	// KindCategory is a virtual income/expense bucket.
	KindCategory AccountKind = "CATEGORY"
)

// KindForType returns the kind derived from an account type:
// ASSET/LIABILITY/EQUITY are real, INCOME/EXPENSE are categories.
func KindForType(t AccountType) AccountKind {
	switch t {
	case TypeIncome, TypeExpense:
		return KindCategory
	default:
		return KindTransfer
	}
}

// TransactionStatus is NORMAL or VOID.
type TransactionStatus string

const (
	StatusNormal TransactionStatus = "NORMAL"
	StatusVoid   TransactionStatus = "VOID"
)

// Account is one entry in the chart of accounts.
type Account struct {
	ID             int64
	Name           string
	Type           AccountType
	Kind           AccountKind
	OpeningBalance float64
	OpeningDate    time.Time
	ParentID       *int64
	Archived       bool
}

// IsReal reports whether the account represents an actual external
// balance rather than a category bucket.
func (a Account) IsReal() bool {
	return a.Kind == KindTransfer
}

// Transaction is a dated double-entry record owning at least two postings.
type Transaction struct {
	ID         int64
	Date       time.Time
	Payee      string
	Memo       string
	Reference  string
	ExternalID string
	Metadata   map[string]string
	Tags       []string
	Status     TransactionStatus
	Postings   []Posting
}

// Posting is one signed line-item of a transaction against one account.
//
// Sign convention: for a real (TRANSFER) account, negative means funds
// leaving and positive funds arriving; category postings carry the
// mirror-image sign required to balance.
type Posting struct {
	ID            int64
	TransactionID int64
	AccountID     int64
	Amount        float64
	IsBusiness    bool
	GSTCode       string
	GSTRate       *float64
	GSTAmount     *float64
	Cleared       bool
	Reconciled    bool
	ReconcileID   *int64
}

// TransactionInput is the caller-supplied shape for create/update.
type TransactionInput struct {
	Date       time.Time
	Payee      string
	Memo       string
	Reference  string
	ExternalID string
	Metadata   map[string]string
	Tags       []string
	Postings   []PostingInput
}

// PostingInput is one proposed posting of a TransactionInput.
type PostingInput struct {
	AccountID  int64
	Amount     float64
	IsBusiness bool
	GSTCode    string
	GSTRate    *float64
	GSTAmount  *float64
}

// RegisterEntry is one row of the register (statement) view of an
// account, carrying the running balance after this posting.
type RegisterEntry struct {
	PostingID     int64
	TransactionID int64
	Date          time.Time
	Payee         string
	Memo          string
	Debit         float64
	Credit        float64
	Cleared       bool
	Reconciled    bool
	Running       float64
}

// WithinTolerance reports whether two amounts differ by no more than tol.
func WithinTolerance(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
