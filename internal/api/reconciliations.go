package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shunichi-ikebuchi/bookkeeper/pkg/ledger"
	"github.com/shunichi-ikebuchi/bookkeeper/pkg/reconcile"
)

// ReconciliationRequest is the wire shape for opening a session.
type ReconciliationRequest struct {
	AccountID             int64   `json:"account_id"`
	StatementStartDate    string  `json:"statement_start_date"`
	StatementEndDate      string  `json:"statement_end_date"`
	StatementStartBalance float64 `json:"statement_start_balance"`
	StatementEndBalance   float64 `json:"statement_end_balance"`
	Notes                 string  `json:"notes,omitempty"`
}

// ReconciliationResponse is the wire shape of a session.
type ReconciliationResponse struct {
	ID                    int64   `json:"id"`
	AccountID             int64   `json:"account_id"`
	StatementStartDate    string  `json:"statement_start_date"`
	StatementEndDate      string  `json:"statement_end_date"`
	StatementStartBalance float64 `json:"statement_start_balance"`
	StatementEndBalance   float64 `json:"statement_end_balance"`
	Notes                 string  `json:"notes,omitempty"`
	Locked                bool    `json:"locked"`
}

// StatusResponse is the wire shape of a session status.
type StatusResponse struct {
	StatementBalance float64 `json:"statement_balance"`
	ClearedBalance   float64 `json:"cleared_balance"`
	Difference       float64 `json:"difference"`
	IsBalanced       bool    `json:"is_balanced"`
}

// PostingIDsRequest carries the postings of a reconcile/unreconcile call.
type PostingIDsRequest struct {
	PostingIDs []int64 `json:"posting_ids"`
}

// StatementLineRequest is one parsed statement line of a match call.
type StatementLineRequest struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Debit       float64 `json:"debit,omitempty"`
	Credit      float64 `json:"credit,omitempty"`
}

// MatchRequest carries the statement lines of a match call.
type MatchRequest struct {
	Lines []StatementLineRequest `json:"lines"`
}

// MatchResponse is one scored pair.
type MatchResponse struct {
	Line      StatementLineRequest `json:"line"`
	PostingID int64                `json:"posting_id"`
	Payee     string               `json:"payee"`
	Amount    float64              `json:"amount"`
	Score     float64              `json:"score"`
	Reasons   []string             `json:"reasons"`
}

// MatchReportResponse is the tiered match report.
type MatchReportResponse struct {
	Exact     []MatchResponse        `json:"exact_matches"`
	Probable  []MatchResponse        `json:"probable_matches"`
	Possible  []MatchResponse        `json:"possible_matches"`
	Unmatched []StatementLineRequest `json:"unmatched_statement_lines"`
	Summary   struct {
		TotalStatement int `json:"total_statement"`
		TotalMatched   int `json:"total_matched"`
		TotalUnmatched int `json:"total_unmatched"`
	} `json:"summary"`
}

func (s *Server) createReconciliation(w http.ResponseWriter, r *http.Request) {
	var req ReconciliationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}

	start, err := time.ParseInLocation(ledger.DateLayout, req.StatementStartDate, time.UTC)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid statement_start_date")
		return
	}
	end, err := time.ParseInLocation(ledger.DateLayout, req.StatementEndDate, time.UTC)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid statement_end_date")
		return
	}

	// One open session per account is this layer's policy, not the
	// manager's.
	open, err := s.recs.HasOpen(req.AccountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if open {
		writeJSONError(w, http.StatusConflict, "conflict", "account already has an open reconciliation")
		return
	}

	rec, err := s.recs.Create(reconcile.Input{
		AccountID:             req.AccountID,
		StatementStartDate:    start,
		StatementEndDate:      end,
		StatementStartBalance: req.StatementStartBalance,
		StatementEndBalance:   req.StatementEndBalance,
		Notes:                 req.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"reconciliation": toReconciliationResponse(*rec)})
}

func (s *Server) getReconciliation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	rec, err := s.recs.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"reconciliation": toReconciliationResponse(*rec)})
}

func (s *Server) listReconciliations(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if _, err := s.accounts.Get(id); err != nil {
		writeDomainError(w, err)
		return
	}

	recs, err := s.recs.ListByAccount(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	responses := make([]ReconciliationResponse, 0, len(recs))
	for _, rec := range recs {
		responses = append(responses, toReconciliationResponse(rec))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"reconciliations": responses})
}

func (s *Server) deleteReconciliation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.recs.Delete(id); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getReconciliationStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	status, err := s.recs.Status(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"status": StatusResponse{
		StatementBalance: status.StatementBalance,
		ClearedBalance:   status.ClearedBalance,
		Difference:       status.Difference,
		IsBalanced:       status.IsBalanced,
	}})
}

func (s *Server) lockReconciliation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.recs.Lock(id); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) unlockReconciliation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.recs.Unlock(id); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) reconcilePostings(w http.ResponseWriter, r *http.Request) {
	s.togglePostings(w, r, true)
}

func (s *Server) unreconcilePostings(w http.ResponseWriter, r *http.Request) {
	s.togglePostings(w, r, false)
}

func (s *Server) togglePostings(w http.ResponseWriter, r *http.Request, reconcileOn bool) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req PostingIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}

	var err error
	if reconcileOn {
		err = s.recs.ReconcilePostings(id, req.PostingIDs)
	} else {
		err = s.recs.UnreconcilePostings(id, req.PostingIDs)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// matchStatement runs the statement matcher over the session's own
// statement period. Read-only; accepting matches is a separate
// reconcile call.
func (s *Server) matchStatement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	rec, err := s.recs.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}

	lines := make([]reconcile.StatementLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		date, err := time.ParseInLocation(ledger.DateLayout, l.Date, time.UTC)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid statement line date")
			return
		}
		lines = append(lines, reconcile.StatementLine{
			Date:        date,
			Description: l.Description,
			Debit:       l.Debit,
			Credit:      l.Credit,
		})
	}

	report, err := s.recs.Match(rec.AccountID, lines, rec.StatementStartDate, rec.StatementEndDate)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"report": toMatchReportResponse(*report)})
}

func toReconciliationResponse(rec reconcile.Reconciliation) ReconciliationResponse {
	return ReconciliationResponse{
		ID:                    rec.ID,
		AccountID:             rec.AccountID,
		StatementStartDate:    rec.StatementStartDate.Format(ledger.DateLayout),
		StatementEndDate:      rec.StatementEndDate.Format(ledger.DateLayout),
		StatementStartBalance: rec.StatementStartBalance,
		StatementEndBalance:   rec.StatementEndBalance,
		Notes:                 rec.Notes,
		Locked:                rec.Locked,
	}
}

func toMatchReportResponse(report reconcile.MatchReport) MatchReportResponse {
	var resp MatchReportResponse
	resp.Exact = toMatchResponses(report.Exact)
	resp.Probable = toMatchResponses(report.Probable)
	resp.Possible = toMatchResponses(report.Possible)
	for _, line := range report.Unmatched {
		resp.Unmatched = append(resp.Unmatched, toLineResponse(line))
	}
	resp.Summary.TotalStatement = report.Summary.TotalStatement
	resp.Summary.TotalMatched = report.Summary.TotalMatched
	resp.Summary.TotalUnmatched = report.Summary.TotalUnmatched
	return resp
}

func toMatchResponses(matches []reconcile.Match) []MatchResponse {
	responses := make([]MatchResponse, 0, len(matches))
	for _, m := range matches {
		responses = append(responses, MatchResponse{
			Line:      toLineResponse(m.Line),
			PostingID: m.Candidate.PostingID,
			Payee:     m.Candidate.Payee,
			Amount:    m.Candidate.Amount,
			Score:     m.Score,
			Reasons:   m.Reasons,
		})
	}
	return responses
}

func toLineResponse(line reconcile.StatementLine) StatementLineRequest {
	return StatementLineRequest{
		Date:        line.Date.Format(ledger.DateLayout),
		Description: line.Description,
		Debit:       line.Debit,
		Credit:      line.Credit,
	}
}
