package http

import (
	"context"
	"net/http"
	"strings"

	"aarthik/internal/core"
	"aarthik/internal/services"
)

func (s *Server) handleAddIncome(w http.ResponseWriter, r *http.Request) {
	s.addTransaction(w, r, s.ledger.AddIncome)
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	s.addTransaction(w, r, s.ledger.AddExpense)
}

type addFunc func(ctx context.Context, id services.Identity, in services.NewTransaction) (core.Transaction, error)

func (s *Server) addTransaction(w http.ResponseWriter, r *http.Request, add addFunc) {
	var req transactionRequest
	if err := DecodeJSON(r, &req); err != nil {
		FromError(r, err).Write(w)
		return
	}
	in, err := req.toNewTransaction()
	if err != nil {
		FromError(r, err).Write(w)
		return
	}

	t, err := add(r.Context(), identity(r), in)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/profile/transactions/"+t.ID).
		Data(newTransactionView(t)).
		Write(w)
}

func (req transactionRequest) toNewTransaction() (services.NewTransaction, error) {
	in := services.NewTransaction{
		ID:          req.ID,
		Category:    sanitizeInput(req.Category),
		Description: sanitizeInput(req.Description),
		Amount:      req.Amount,
	}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}
	if req.Recurring || strings.TrimSpace(req.Recurrence) != "" {
		rec, err := core.ParseRecurrence(req.Recurrence)
		if err != nil {
			return services.NewTransaction{}, err
		}
		if rec == nil {
			return services.NewTransaction{}, core.ErrInvalidRecurrence
		}
		in.Recurrence = rec
	}
	return in, nil
}

func (s *Server) handleEditTransaction(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := DecodeJSON(r, &req); err != nil {
		FromError(r, err).Write(w)
		return
	}
	edit := services.TransactionEdit{
		Amount:      req.Amount,
		Category:    sanitizeInput(req.Category),
		Description: sanitizeInput(req.Description),
		Recurring:   req.Recurring,
	}
	rec, err := core.ParseRecurrence(req.Recurrence)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	edit.Recurrence = rec

	t, err := s.ledger.EditTransaction(r.Context(), identity(r), r.PathValue("id"), edit)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(newTransactionView(t)).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTransaction(r.Context(), identity(r), r.PathValue("id")); err != nil {
		FromError(r, err).Write(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	typ, err := QueryType(query, "type")
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	days, err := QueryInt(query, "days", 0)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	limit, err := QueryInt(query, "limit", 0)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}

	txs, err := s.ledger.ListTransactions(r.Context(), identity(r), services.ListQuery{Type: typ, Days: days, Limit: limit})
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(newTransactionViews(txs)).Write(w)
}

func (s *Server) handleRecentTransactions(w http.ResponseWriter, r *http.Request) {
	limit, err := QueryInt(r.URL.Query(), "limit", services.DefaultRecentLimit)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	txs, err := s.ledger.RecentTransactions(r.Context(), identity(r), limit)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(newTransactionViews(txs)).Write(w)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := s.ledger.Reconcile(r.Context(), identity(r))
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(report).Write(w)
}
