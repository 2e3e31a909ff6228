package ledger

import (
	"math"
	"strings"
)

// TaxableFunc reports whether a GST code denotes a taxable supply.
// GST-free and input-taxed codes are not taxable; a posting carrying a
// taxable code must also carry a consistent rate and amount.
type TaxableFunc func(code string) bool

// DefaultTaxable is the built-in GST code classification used when the
// chart of accounts does not supply its own table.
func DefaultTaxable(code string) bool {
	switch strings.ToUpper(code) {
	case "", "FRE", "GST-FREE", "INP", "INPUT-TAXED":
		return false
	default:
		return true
	}
}

// ValidatePostings checks the double-entry and tax invariants on a
// proposed posting set using the default GST code classification.
// It is pure: no I/O, safe to call speculatively before any write.
func ValidatePostings(postings []PostingInput) error {
	return ValidatePostingsWith(postings, DefaultTaxable)
}

// ValidatePostingsWith is ValidatePostings with a caller-supplied GST
// code classification.
//
// Checks, in order:
//   - at least two postings;
//   - signed sum within BalanceTolerance of zero;
//   - non-business postings carry no tax fields;
//   - business postings with a taxable code carry a rate and an amount,
//     and the amount equals |amount| * rate within TaxTolerance.
//
// A tax amount mismatch is a hard failure, not a warning: silently
// accepting an inconsistent GST amount corrupts tax reports.
func ValidatePostingsWith(postings []PostingInput, taxable TaxableFunc) error {
	if taxable == nil {
		taxable = DefaultTaxable
	}

	if len(postings) < 2 {
		return &TooFewPostingsError{Count: len(postings)}
	}

	var sum float64
	for _, p := range postings {
		sum += p.Amount
	}
	if math.Abs(sum) > BalanceTolerance {
		return &UnbalancedError{Sum: sum}
	}

	for i, p := range postings {
		if !p.IsBusiness {
			if p.GSTCode != "" || p.GSTRate != nil || p.GSTAmount != nil {
				return &UnexpectedTaxDataError{Index: i}
			}
			continue
		}

		if !taxable(p.GSTCode) {
			continue
		}

		if p.GSTRate == nil || p.GSTAmount == nil {
			return &MissingTaxFieldsError{Index: i, GSTCode: p.GSTCode}
		}

		expected := math.Abs(p.Amount) * *p.GSTRate
		if !WithinTolerance(expected, *p.GSTAmount, TaxTolerance) {
			return &TaxMismatchError{Index: i, Expected: expected, Actual: *p.GSTAmount}
		}
	}

	return nil
}
