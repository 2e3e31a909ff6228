package ledger

import (
	"errors"
	"testing"
)

func fptr(v float64) *float64 { return &v }

func TestValidatePostingsBalanced(t *testing.T) {
	// -110 from checking, +100 expense with 10% GST, +10 GST paid.
	postings := []PostingInput{
		{AccountID: 1, Amount: -110.00},
		{AccountID: 2, Amount: 100.00, IsBusiness: true, GSTCode: "GST", GSTRate: fptr(0.1), GSTAmount: fptr(10.00)},
		{AccountID: 3, Amount: 10.00},
	}

	if err := ValidatePostings(postings); err != nil {
		t.Fatalf("ValidatePostings() = %v, expected nil", err)
	}
}

func TestValidatePostingsUnbalanced(t *testing.T) {
	postings := []PostingInput{
		{AccountID: 1, Amount: -100},
		{AccountID: 2, Amount: 110},
	}

	err := ValidatePostings(postings)
	if err == nil {
		t.Fatal("ValidatePostings() = nil, expected unbalanced error")
	}

	var unbalanced *UnbalancedError
	if !errors.As(err, &unbalanced) {
		t.Fatalf("ValidatePostings() = %v, expected UnbalancedError", err)
	}
	if unbalanced.Sum != 10 {
		t.Errorf("UnbalancedError.Sum = %v, expected 10", unbalanced.Sum)
	}
	if !errors.Is(err, ErrValidation) {
		t.Error("unbalanced error should be a validation error")
	}
}

func TestValidatePostingsRoundingSlack(t *testing.T) {
	// Within the 0.01 tolerance.
	postings := []PostingInput{
		{AccountID: 1, Amount: -33.335},
		{AccountID: 2, Amount: 33.33},
	}

	if err := ValidatePostings(postings); err != nil {
		t.Fatalf("ValidatePostings() = %v, expected nil within tolerance", err)
	}
}

func TestValidatePostingsTooFew(t *testing.T) {
	err := ValidatePostings([]PostingInput{{AccountID: 1, Amount: 0}})
	var tooFew *TooFewPostingsError
	if !errors.As(err, &tooFew) {
		t.Fatalf("ValidatePostings() = %v, expected TooFewPostingsError", err)
	}
}

func TestValidatePostingsTaxChecks(t *testing.T) {
	tests := []struct {
		name     string
		postings []PostingInput
		want     interface{}
	}{
		{
			name: "tax data on non-business posting",
			postings: []PostingInput{
				{AccountID: 1, Amount: -100, GSTCode: "GST"},
				{AccountID: 2, Amount: 100},
			},
			want: &UnexpectedTaxDataError{},
		},
		{
			name: "taxable code without rate and amount",
			postings: []PostingInput{
				{AccountID: 1, Amount: -100},
				{AccountID: 2, Amount: 100, IsBusiness: true, GSTCode: "GST"},
			},
			want: &MissingTaxFieldsError{},
		},
		{
			name: "gst amount inconsistent with rate",
			postings: []PostingInput{
				{AccountID: 1, Amount: -110},
				{AccountID: 2, Amount: 110, IsBusiness: true, GSTCode: "GST", GSTRate: fptr(0.1), GSTAmount: fptr(5.00)},
			},
			want: &TaxMismatchError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePostings(tt.postings)
			if err == nil {
				t.Fatal("ValidatePostings() = nil, expected error")
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("error %v should be a validation error", err)
			}

			switch tt.want.(type) {
			case *UnexpectedTaxDataError:
				var e *UnexpectedTaxDataError
				if !errors.As(err, &e) {
					t.Errorf("got %v, expected UnexpectedTaxDataError", err)
				}
			case *MissingTaxFieldsError:
				var e *MissingTaxFieldsError
				if !errors.As(err, &e) {
					t.Errorf("got %v, expected MissingTaxFieldsError", err)
				}
			case *TaxMismatchError:
				var e *TaxMismatchError
				if !errors.As(err, &e) {
					t.Errorf("got %v, expected TaxMismatchError", err)
				}
			}
		})
	}
}

func TestValidatePostingsNonTaxableCodes(t *testing.T) {
	// GST-free and input-taxed codes need no rate or amount.
	for _, code := range []string{"FRE", "INP", ""} {
		postings := []PostingInput{
			{AccountID: 1, Amount: -50},
			{AccountID: 2, Amount: 50, IsBusiness: true, GSTCode: code},
		}
		if err := ValidatePostings(postings); err != nil {
			t.Errorf("ValidatePostings() with code %q = %v, expected nil", code, err)
		}
	}
}

func TestValidatePostingsTaxTolerance(t *testing.T) {
	// 10.01 against an expected 10.00 is inside the tax tolerance.
	postings := []PostingInput{
		{AccountID: 1, Amount: -110.01},
		{AccountID: 2, Amount: 100.00, IsBusiness: true, GSTCode: "GST", GSTRate: fptr(0.1), GSTAmount: fptr(10.01)},
		{AccountID: 3, Amount: 10.01},
	}

	if err := ValidatePostings(postings); err != nil {
		t.Fatalf("ValidatePostings() = %v, expected nil within tax tolerance", err)
	}
}

func TestValidatePostingsWithCustomTable(t *testing.T) {
	taxable := func(code string) bool { return code == "VAT" }

	postings := []PostingInput{
		{AccountID: 1, Amount: -100},
		{AccountID: 2, Amount: 100, IsBusiness: true, GSTCode: "VAT"},
	}

	err := ValidatePostingsWith(postings, taxable)
	var missing *MissingTaxFieldsError
	if !errors.As(err, &missing) {
		t.Fatalf("ValidatePostingsWith() = %v, expected MissingTaxFieldsError", err)
	}

	// Same code, different table: not taxable, passes.
	if err := ValidatePostingsWith(postings, func(string) bool { return false }); err != nil {
		t.Fatalf("ValidatePostingsWith() = %v, expected nil", err)
	}
}

func TestKindForType(t *testing.T) {
	tests := []struct {
		accountType AccountType
		expected    AccountKind
	}{
		{TypeAsset, KindTransfer},
		{TypeLiability, KindTransfer},
		{TypeEquity, KindTransfer},
		{TypeIncome, KindCategory},
		{TypeExpense, KindCategory},
	}

	for _, tt := range tests {
		if got := KindForType(tt.accountType); got != tt.expected {
			t.Errorf("KindForType(%s) = %s, expected %s", tt.accountType, got, tt.expected)
		}
	}
}
