// Package reconcile manages reconciliation sessions against external
// bank statements and the tiered matching of statement lines to
// ledger postings.
package reconcile

import (
	"fmt"
	"time"

	"github.com/shunichi-ikebuchi/bookkeeper/pkg/ledger"
)

// Reconciliation is one bounded-period session comparing a statement's
// balances against the ledger's cleared balance for one account.
// It owns no postings; postings reference it weakly via reconcile_id.
type Reconciliation struct {
	ID                    int64
	AccountID             int64
	StatementStartDate    time.Time
	StatementEndDate      time.Time
	StatementStartBalance float64
	StatementEndBalance   float64
	Notes                 string
	Locked                bool
}

// Input is the caller-supplied shape for creating a reconciliation.
type Input struct {
	AccountID             int64
	StatementStartDate    time.Time
	StatementEndDate      time.Time
	StatementStartBalance float64
	StatementEndBalance   float64
	Notes                 string
}

// Status is the computed position of a reconciliation session.
type Status struct {
	StatementBalance float64
	ClearedBalance   float64
	Difference       float64
	IsBalanced       bool
}

// StatementLine is one externally parsed line of a bank statement.
// Exactly one of Debit and Credit is expected to be non-zero.
type StatementLine struct {
	Date        time.Time
	Description string
	Debit       float64
	Credit      float64
}

// Amount returns the line's signed amount in ledger convention:
// a statement debit is funds leaving the account (negative), a credit
// funds arriving (positive).
func (l StatementLine) Amount() float64 {
	if l.Debit != 0 {
		return -l.Debit
	}
	return l.Credit
}

// ErrReconciliationLocked rejects mutations of a locked reconciliation.
var ErrReconciliationLocked = &ledger.ConflictError{Reason: "reconciliation is locked"}

// NotBalancedError rejects locking a reconciliation whose cleared
// balance does not meet the statement end balance.
type NotBalancedError struct {
	Difference float64
}

func (e *NotBalancedError) Error() string {
	return fmt.Sprintf("reconciliation not balanced: difference %.2f", e.Difference)
}

func (e *NotBalancedError) Unwrap() error { return ledger.ErrConflict }
