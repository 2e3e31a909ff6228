package reconcile

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Matching weights and thresholds. The tiering contract (exact,
// probable, possible, unmatched; one-to-one greedy assignment) is
// fixed; the constants are tuning.
const (
	// DateSlackDays widens the candidate window around the statement
	// period and bounds the date-proximity decay. Covers the posting
	// delay of card settlements crossing a statement boundary.
	DateSlackDays = 3

	weightAmountExact = 0.5
	weightAmountNear  = 0.3
	weightDate        = 0.3
	weightDescription = 0.2

	// amountSlack is the largest amount discrepancy still considered a
	// near match; beyond it the pair is rejected outright.
	amountSlack = 0.02

	tierExact    = 0.95
	tierProbable = 0.70
	tierPossible = 0.45
)

// Candidate is one unreconciled posting offered to the matcher.
type Candidate struct {
	PostingID     int64
	TransactionID int64
	Date          time.Time
	Payee         string
	Memo          string
	Amount        float64
}

// Match is one statement line paired with a candidate posting, with
// the numeric score and human-readable rationale.
type Match struct {
	Line      StatementLine
	Candidate Candidate
	Score     float64
	Reasons   []string
}

// Summary totals a match report.
type Summary struct {
	TotalStatement int
	TotalMatched   int
	TotalUnmatched int
}

// MatchReport is the tiered output of a matching run.
type MatchReport struct {
	Exact     []Match
	Probable  []Match
	Possible  []Match
	Unmatched []StatementLine
	Summary   Summary
}

// MatchLines pairs statement lines with candidate postings using a
// weighted score (amount equality, date proximity, description
// similarity) and greedy one-to-one assignment: lines are processed in
// descending best-score order and a consumed candidate leaves the pool,
// so no posting is matched twice. Pure; no side effects.
func MatchLines(lines []StatementLine, candidates []Candidate) MatchReport {
	report := MatchReport{
		Summary: Summary{TotalStatement: len(lines)},
	}

	consumed := make(map[int64]bool, len(candidates))

	// Order lines by their best achievable score so strong pairs are
	// assigned before weaker ones can steal their candidate.
	order := make([]int, len(lines))
	for i := range order {
		order[i] = i
	}
	best := make([]float64, len(lines))
	for i, line := range lines {
		score, _, _ := bestCandidate(line, candidates, consumed)
		best[i] = score
	}
	sort.SliceStable(order, func(a, b int) bool {
		return best[order[a]] > best[order[b]]
	})

	matched := make(map[int]bool, len(lines))
	for _, i := range order {
		score, idx, reasons := bestCandidate(lines[i], candidates, consumed)
		if idx < 0 || score < tierPossible {
			continue
		}

		consumed[candidates[idx].PostingID] = true
		matched[i] = true

		m := Match{
			Line:      lines[i],
			Candidate: candidates[idx],
			Score:     score,
			Reasons:   reasons,
		}

		switch {
		case score >= tierExact:
			report.Exact = append(report.Exact, m)
		case score >= tierProbable:
			report.Probable = append(report.Probable, m)
		default:
			report.Possible = append(report.Possible, m)
		}
		report.Summary.TotalMatched++
	}

	// Preserve statement order for the unmatched remainder.
	for i, line := range lines {
		if !matched[i] {
			report.Unmatched = append(report.Unmatched, line)
		}
	}
	report.Summary.TotalUnmatched = len(report.Unmatched)

	return report
}

// bestCandidate scores every unconsumed candidate against the line and
// returns the best score, its index (-1 if none scored) and rationale.
func bestCandidate(line StatementLine, candidates []Candidate, consumed map[int64]bool) (float64, int, []string) {
	bestScore := 0.0
	bestIdx := -1
	var bestReasons []string

	for i, c := range candidates {
		if consumed[c.PostingID] {
			continue
		}

		score, reasons, ok := scorePair(line, c)
		if !ok {
			continue
		}
		if score > bestScore {
			bestScore = score
			bestIdx = i
			bestReasons = reasons
		}
	}

	return bestScore, bestIdx, bestReasons
}

// scorePair scores one line/candidate pair. ok is false when the pair
// is rejected outright (amount discrepancy beyond the slack).
func scorePair(line StatementLine, c Candidate) (float64, []string, bool) {
	var score float64
	var reasons []string

	diff := math.Abs(line.Amount() - c.Amount)
	switch {
	case diff < 0.005: // same cents
		score += weightAmountExact
		reasons = append(reasons, "amount matches exactly")
	case diff <= amountSlack:
		score += weightAmountNear
		reasons = append(reasons, fmt.Sprintf("amount within %.2f", diff))
	default:
		return 0, nil, false
	}

	days := daysApart(line.Date, c.Date)
	if days <= DateSlackDays {
		score += weightDate * (1 - float64(days)/float64(DateSlackDays))
		if days == 0 {
			reasons = append(reasons, "same date")
		} else {
			reasons = append(reasons, fmt.Sprintf("date within %d day(s)", days))
		}
	}

	sim := similarity(line.Description, c.Payee+" "+c.Memo)
	if sim > 0 {
		score += weightDescription * sim
		reasons = append(reasons, fmt.Sprintf("description similarity %.1f", sim))
	}

	return score, reasons, true
}

func daysApart(a, b time.Time) int {
	hours := math.Abs(a.Sub(b).Hours())
	return int(hours / 24)
}

// similarity is the token overlap (Jaccard index) between two
// descriptions after lowercasing and splitting on non-alphanumerics.
func similarity(a, b string) float64 {
	ta := tokenize(a)
	tb := tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	union := make(map[string]bool, len(ta)+len(tb))
	for t := range ta {
		union[t] = true
	}
	for t := range tb {
		union[t] = true
	}

	var common int
	for t := range ta {
		if tb[t] {
			common++
		}
	}

	return float64(common) / float64(len(union))
}

func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		tokens[tok] = true
	}
	return tokens
}
