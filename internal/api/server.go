// Package api exposes the ledger and reconciliation core over HTTP.
// The core itself owns no wire protocol; this is the request layer
// invoking it in-process.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shunichi-ikebuchi/bookkeeper/pkg/db"
	"github.com/shunichi-ikebuchi/bookkeeper/pkg/ledger"
	"github.com/shunichi-ikebuchi/bookkeeper/pkg/reconcile"
)

// Server wires the core components over one book database.
type Server struct {
	accounts *ledger.AccountStore
	writer   *ledger.Writer
	balances *ledger.Calculator
	recs     *reconcile.Manager
}

// NewServer creates a Server over an open book connection. A non-nil
// taxable function (typically from the loaded chart) replaces the
// default GST code classification.
func NewServer(conn *db.Connection, taxable ledger.TaxableFunc) *Server {
	accounts := ledger.NewAccountStore(conn)
	writer := ledger.NewWriter(conn, accounts)
	if taxable != nil {
		writer.SetTaxable(taxable)
	}
	balances := ledger.NewCalculator(conn, accounts)

	return &Server{
		accounts: accounts,
		writer:   writer,
		balances: balances,
		recs:     reconcile.NewManager(conn, accounts, balances),
	}
}

// Router assembles the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", s.listAccounts)
			r.Post("/", s.createAccount)
			r.Get("/{id}", s.getAccount)
			r.Post("/{id}/archive", s.archiveAccount)
			r.Post("/{id}/unarchive", s.unarchiveAccount)
			r.Get("/{id}/balance", s.getBalance)
			r.Get("/{id}/register", s.getRegister)
			r.Get("/{id}/reconciliations", s.listReconciliations)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.listTransactions)
			r.Post("/", s.createTransaction)
			r.Get("/{id}", s.getTransaction)
			r.Put("/{id}", s.updateTransaction)
			r.Delete("/{id}", s.deleteTransaction)
			r.Post("/{id}/void", s.voidTransaction)
		})

		r.Route("/reconciliations", func(r chi.Router) {
			r.Post("/", s.createReconciliation)
			r.Get("/{id}", s.getReconciliation)
			r.Delete("/{id}", s.deleteReconciliation)
			r.Get("/{id}/status", s.getReconciliationStatus)
			r.Post("/{id}/lock", s.lockReconciliation)
			r.Post("/{id}/unlock", s.unlockReconciliation)
			r.Post("/{id}/reconcile", s.reconcilePostings)
			r.Post("/{id}/unreconcile", s.unreconcilePostings)
			r.Post("/{id}/match", s.matchStatement)
		})
	})

	return r
}
