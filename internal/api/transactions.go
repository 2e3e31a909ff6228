package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shunichi-ikebuchi/bookkeeper/pkg/ledger"
)

// PostingRequest is the wire shape of one proposed posting.
type PostingRequest struct {
	AccountID  int64    `json:"account_id"`
	Amount     float64  `json:"amount"`
	IsBusiness bool     `json:"is_business"`
	GSTCode    string   `json:"gst_code,omitempty"`
	GSTRate    *float64 `json:"gst_rate,omitempty"`
	GSTAmount  *float64 `json:"gst_amount,omitempty"`
}

// TransactionRequest is the wire shape for create/update.
type TransactionRequest struct {
	Date       string            `json:"date"`
	Payee      string            `json:"payee"`
	Memo       string            `json:"memo,omitempty"`
	Reference  string            `json:"reference,omitempty"`
	ExternalID string            `json:"external_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	Postings   []PostingRequest  `json:"postings"`
}

// PostingResponse is the wire shape of a stored posting.
type PostingResponse struct {
	ID            int64    `json:"id"`
	TransactionID int64    `json:"transaction_id"`
	AccountID     int64    `json:"account_id"`
	Amount        float64  `json:"amount"`
	IsBusiness    bool     `json:"is_business"`
	GSTCode       string   `json:"gst_code,omitempty"`
	GSTRate       *float64 `json:"gst_rate,omitempty"`
	GSTAmount     *float64 `json:"gst_amount,omitempty"`
	Cleared       bool     `json:"cleared"`
	Reconciled    bool     `json:"reconciled"`
	ReconcileID   *int64   `json:"reconcile_id,omitempty"`
}

// TransactionResponse is the wire shape of a stored transaction.
type TransactionResponse struct {
	ID         int64             `json:"id"`
	Date       string            `json:"date"`
	Payee      string            `json:"payee"`
	Memo       string            `json:"memo,omitempty"`
	Reference  string            `json:"reference,omitempty"`
	ExternalID string            `json:"external_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	Status     string            `json:"status"`
	Postings   []PostingResponse `json:"postings"`
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeTransactionRequest(w, r)
	if !ok {
		return
	}

	// De-duplicate re-imports by external id.
	if input.ExternalID != "" {
		existing, err := s.writer.FindByExternalID(input.ExternalID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if existing != nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"transaction": toTransactionResponse(*existing),
				"duplicate":   true,
			})
			return
		}
	}

	txn, err := s.writer.Create(*input)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"transaction": toTransactionResponse(*txn)})
}

func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	txn, err := s.writer.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"transaction": toTransactionResponse(*txn)})
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	from, ok := queryDate(w, r, "from", time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC))
	if !ok {
		return
	}
	to, ok := queryDate(w, r, "to", time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC))
	if !ok {
		return
	}

	txns, err := s.writer.List(from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	responses := make([]TransactionResponse, 0, len(txns))
	for _, t := range txns {
		responses = append(responses, toTransactionResponse(t))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": responses})
}

func (s *Server) updateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	input, ok := decodeTransactionRequest(w, r)
	if !ok {
		return
	}

	txn, err := s.writer.Update(id, *input)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"transaction": toTransactionResponse(*txn)})
}

func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.writer.Delete(id); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) voidTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	txn, err := s.writer.Void(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"transaction": toTransactionResponse(*txn)})
}

func decodeTransactionRequest(w http.ResponseWriter, r *http.Request) (*ledger.TransactionInput, bool) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return nil, false
	}

	date, err := time.ParseInLocation(ledger.DateLayout, req.Date, time.UTC)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid date")
		return nil, false
	}

	input := ledger.TransactionInput{
		Date:       date,
		Payee:      req.Payee,
		Memo:       req.Memo,
		Reference:  req.Reference,
		ExternalID: req.ExternalID,
		Metadata:   req.Metadata,
		Tags:       req.Tags,
	}
	for _, p := range req.Postings {
		input.Postings = append(input.Postings, ledger.PostingInput{
			AccountID:  p.AccountID,
			Amount:     p.Amount,
			IsBusiness: p.IsBusiness,
			GSTCode:    p.GSTCode,
			GSTRate:    p.GSTRate,
			GSTAmount:  p.GSTAmount,
		})
	}

	return &input, true
}

func queryDate(w http.ResponseWriter, r *http.Request, key string, fallback time.Time) (time.Time, bool) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback, true
	}

	date, err := time.ParseInLocation(ledger.DateLayout, value, time.UTC)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid "+key+" date")
		return time.Time{}, false
	}
	return date, true
}

func toTransactionResponse(t ledger.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:         t.ID,
		Date:       t.Date.Format(ledger.DateLayout),
		Payee:      t.Payee,
		Memo:       t.Memo,
		Reference:  t.Reference,
		ExternalID: t.ExternalID,
		Metadata:   t.Metadata,
		Tags:       t.Tags,
		Status:     string(t.Status),
	}
	for _, p := range t.Postings {
		resp.Postings = append(resp.Postings, PostingResponse{
			ID:            p.ID,
			TransactionID: p.TransactionID,
			AccountID:     p.AccountID,
			Amount:        p.Amount,
			IsBusiness:    p.IsBusiness,
			GSTCode:       p.GSTCode,
			GSTRate:       p.GSTRate,
			GSTAmount:     p.GSTAmount,
			Cleared:       p.Cleared,
			Reconciled:    p.Reconciled,
			ReconcileID:   p.ReconcileID,
		})
	}
	return resp
}
