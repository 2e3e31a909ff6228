package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shunichi-ikebuchi/bookkeeper/pkg/ledger"
)

// AccountResponse is the wire shape of an account.
type AccountResponse struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	Kind           string  `json:"kind"`
	IsReal         bool    `json:"is_real"`
	OpeningBalance float64 `json:"opening_balance"`
	OpeningDate    string  `json:"opening_date"`
	ParentID       *int64  `json:"parent_id,omitempty"`
	Archived       bool    `json:"archived"`
}

// CreateAccountRequest is the wire shape for creating an account.
type CreateAccountRequest struct {
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	Kind           string  `json:"kind,omitempty"`
	OpeningBalance float64 `json:"opening_balance"`
	OpeningDate    string  `json:"opening_date,omitempty"`
	ParentID       *int64  `json:"parent_id,omitempty"`
}

// RegisterEntryResponse is one row of the register view.
type RegisterEntryResponse struct {
	PostingID     int64   `json:"posting_id,omitempty"`
	TransactionID int64   `json:"transaction_id,omitempty"`
	Date          string  `json:"date"`
	Payee         string  `json:"payee"`
	Memo          string  `json:"memo,omitempty"`
	Debit         float64 `json:"debit"`
	Credit        float64 `json:"credit"`
	Cleared       bool    `json:"cleared"`
	Reconciled    bool    `json:"reconciled"`
	Running       float64 `json:"running_balance"`
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("archived") == "true"

	accounts, err := s.accounts.List(includeArchived)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	responses := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		responses = append(responses, toAccountResponse(a))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": responses})
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}

	input := ledger.AccountInput{
		Name:           req.Name,
		Type:           ledger.AccountType(req.Type),
		Kind:           ledger.AccountKind(req.Kind),
		OpeningBalance: req.OpeningBalance,
		ParentID:       req.ParentID,
	}

	if req.OpeningDate != "" {
		date, err := time.ParseInLocation(ledger.DateLayout, req.OpeningDate, time.UTC)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid opening_date")
			return
		}
		input.OpeningDate = date
	}

	account, err := s.accounts.Create(input)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"account": toAccountResponse(*account)})
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	account, err := s.accounts.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"account": toAccountResponse(*account)})
}

func (s *Server) archiveAccount(w http.ResponseWriter, r *http.Request) {
	s.setArchived(w, r, true)
}

func (s *Server) unarchiveAccount(w http.ResponseWriter, r *http.Request) {
	s.setArchived(w, r, false)
}

func (s *Server) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.accounts.SetArchived(id, archived); err != nil {
		writeDomainError(w, err)
		return
	}

	account, err := s.accounts.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"account": toAccountResponse(*account)})
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var opts ledger.BalanceOptions
	if asOf := r.URL.Query().Get("as_of"); asOf != "" {
		date, err := time.ParseInLocation(ledger.DateLayout, asOf, time.UTC)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid as_of date")
			return
		}
		opts.AsOf = &date
	}
	opts.ClearedOnly = r.URL.Query().Get("cleared_only") == "true"

	balance, err := s.balances.Balance(id, opts)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account_id": id,
		"balance":    balance,
	})
}

func (s *Server) getRegister(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	entries, err := s.balances.Register(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	responses := make([]RegisterEntryResponse, 0, len(entries))
	for _, e := range entries {
		responses = append(responses, RegisterEntryResponse{
			PostingID:     e.PostingID,
			TransactionID: e.TransactionID,
			Date:          e.Date.Format(ledger.DateLayout),
			Payee:         e.Payee,
			Memo:          e.Memo,
			Debit:         e.Debit,
			Credit:        e.Credit,
			Cleared:       e.Cleared,
			Reconciled:    e.Reconciled,
			Running:       e.Running,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": responses})
}

func toAccountResponse(a ledger.Account) AccountResponse {
	return AccountResponse{
		ID:             a.ID,
		Name:           a.Name,
		Type:           string(a.Type),
		Kind:           string(a.Kind),
		IsReal:         a.IsReal(),
		OpeningBalance: a.OpeningBalance,
		OpeningDate:    a.OpeningDate.Format(ledger.DateLayout),
		ParentID:       a.ParentID,
		Archived:       a.Archived,
	}
}

// pathID parses the {id} URL parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Invalid id")
		return 0, false
	}
	return id, true
}
