package reconcile

import (
	"testing"
	"time"
)

func line(day time.Time, desc string, debit, credit float64) StatementLine {
	return StatementLine{Date: day, Description: desc, Debit: debit, Credit: credit}
}

func TestStatementLineAmount(t *testing.T) {
	d := date(2024, 2, 5)
	if got := line(d, "x", 15.50, 0).Amount(); got != -15.50 {
		t.Errorf("debit line Amount() = %.2f, expected -15.50", got)
	}
	if got := line(d, "x", 0, 500).Amount(); got != 500 {
		t.Errorf("credit line Amount() = %.2f, expected 500.00", got)
	}
}

func TestMatchExact(t *testing.T) {
	d := date(2024, 2, 5)
	lines := []StatementLine{line(d, "Coffee Shop", 15.50, 0)}
	candidates := []Candidate{
		{PostingID: 1, TransactionID: 1, Date: d, Payee: "Coffee Shop", Amount: -15.50},
	}

	report := MatchLines(lines, candidates)

	if len(report.Exact) != 1 {
		t.Fatalf("exact matches = %d, expected 1 (report %+v)", len(report.Exact), report)
	}
	m := report.Exact[0]
	if m.Candidate.PostingID != 1 {
		t.Errorf("matched posting = %d, expected 1", m.Candidate.PostingID)
	}
	if m.Score < 0.95 {
		t.Errorf("score = %.2f, expected at or near maximum", m.Score)
	}
	if len(m.Reasons) == 0 {
		t.Error("match carries no reasons")
	}
	if report.Summary.TotalStatement != 1 || report.Summary.TotalMatched != 1 || report.Summary.TotalUnmatched != 0 {
		t.Errorf("summary = %+v", report.Summary)
	}
}

func TestMatchTiers(t *testing.T) {
	d := date(2024, 2, 5)

	tests := []struct {
		name      string
		line      StatementLine
		candidate Candidate
		tier      string
	}{
		{
			name:      "same day same amount same description",
			line:      line(d, "Coffee Shop", 15.50, 0),
			candidate: Candidate{PostingID: 1, Date: d, Payee: "Coffee Shop", Amount: -15.50},
			tier:      "exact",
		},
		{
			name:      "one day apart",
			line:      line(d, "Coffee Shop", 15.50, 0),
			candidate: Candidate{PostingID: 1, Date: d.AddDate(0, 0, 1), Payee: "Coffee Shop", Amount: -15.50},
			tier:      "probable",
		},
		{
			name:      "amount only, distant date, no description overlap",
			line:      line(d, "EFTPOS 1234", 15.50, 0),
			candidate: Candidate{PostingID: 1, Date: d.AddDate(0, 0, 10), Payee: "Coffee Shop", Amount: -15.50},
			tier:      "possible",
		},
		{
			name:      "near amount only",
			line:      line(d, "EFTPOS 1234", 15.51, 0),
			candidate: Candidate{PostingID: 1, Date: d.AddDate(0, 0, 10), Payee: "Coffee Shop", Amount: -15.50},
			tier:      "unmatched",
		},
		{
			name:      "amount beyond slack",
			line:      line(d, "Coffee Shop", 20.00, 0),
			candidate: Candidate{PostingID: 1, Date: d, Payee: "Coffee Shop", Amount: -15.50},
			tier:      "unmatched",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := MatchLines([]StatementLine{tt.line}, []Candidate{tt.candidate})

			got := "unmatched"
			switch {
			case len(report.Exact) == 1:
				got = "exact"
			case len(report.Probable) == 1:
				got = "probable"
			case len(report.Possible) == 1:
				got = "possible"
			}

			if got != tt.tier {
				t.Errorf("tier = %s, expected %s", got, tt.tier)
			}
		})
	}
}

func TestMatchOneToOne(t *testing.T) {
	d := date(2024, 2, 5)

	// Two lines compete for one posting; the same-day line must win
	// and the other stay unmatched.
	lines := []StatementLine{
		line(d.AddDate(0, 0, 2), "Coffee Shop", 15.50, 0),
		line(d, "Coffee Shop", 15.50, 0),
	}
	candidates := []Candidate{
		{PostingID: 7, Date: d, Payee: "Coffee Shop", Amount: -15.50},
	}

	report := MatchLines(lines, candidates)

	if report.Summary.TotalMatched != 1 {
		t.Fatalf("matched = %d, expected 1", report.Summary.TotalMatched)
	}
	if len(report.Exact) != 1 || !report.Exact[0].Line.Date.Equal(d) {
		t.Errorf("the same-day line should have won the candidate: %+v", report)
	}
	if len(report.Unmatched) != 1 || !report.Unmatched[0].Date.Equal(d.AddDate(0, 0, 2)) {
		t.Errorf("unmatched = %+v, expected the two-day line", report.Unmatched)
	}
}

func TestMatchNoDoubleConsumption(t *testing.T) {
	d := date(2024, 2, 5)

	lines := []StatementLine{
		line(d, "Coffee Shop", 15.50, 0),
		line(d, "Coffee Shop", 15.50, 0),
	}
	candidates := []Candidate{
		{PostingID: 1, Date: d, Payee: "Coffee Shop", Amount: -15.50},
		{PostingID: 2, Date: d, Payee: "Coffee Shop", Amount: -15.50},
	}

	report := MatchLines(lines, candidates)

	if report.Summary.TotalMatched != 2 {
		t.Fatalf("matched = %d, expected 2", report.Summary.TotalMatched)
	}
	seen := make(map[int64]bool)
	for _, m := range append(append([]Match{}, report.Exact...), report.Probable...) {
		if seen[m.Candidate.PostingID] {
			t.Fatalf("posting %d consumed twice", m.Candidate.PostingID)
		}
		seen[m.Candidate.PostingID] = true
	}
}

func TestMatchEmptyInputs(t *testing.T) {
	report := MatchLines(nil, nil)
	if report.Summary.TotalStatement != 0 || report.Summary.TotalMatched != 0 {
		t.Errorf("summary = %+v, expected zeros", report.Summary)
	}

	d := date(2024, 2, 5)
	report = MatchLines([]StatementLine{line(d, "Coffee Shop", 15.50, 0)}, nil)
	if len(report.Unmatched) != 1 {
		t.Errorf("unmatched = %d, expected 1 with an empty pool", len(report.Unmatched))
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b     string
		expected float64
	}{
		{"Coffee Shop", "Coffee Shop", 1.0},
		{"COFFEE SHOP #12", "coffee shop", 2.0 / 3.0},
		{"Woolworths", "Coffee Shop", 0},
		{"", "Coffee Shop", 0},
	}

	for _, tt := range tests {
		if got := similarity(tt.a, tt.b); got != tt.expected {
			t.Errorf("similarity(%q, %q) = %v, expected %v", tt.a, tt.b, got, tt.expected)
		}
	}
}
