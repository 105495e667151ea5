package http

import (
	"net/http"

	"aarthik/internal/core"
	"aarthik/internal/services"
)

const (
	defaultTrendMonths = 6
	defaultTrendDays   = 7
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.analytics.Dashboard(r.Context(), identity(r))
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(newDashboardView(d)).Write(w)
}

func (s *Server) handleExpenseBreakdown(w http.ResponseWriter, r *http.Request) {
	b, err := s.analytics.ExpenseBreakdown(r.Context(), identity(r))
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(newBreakdownView(b)).Write(w)
}

func (s *Server) handleIncomeExpenseTrend(w http.ResponseWriter, r *http.Request) {
	n, err := QueryInt(r.URL.Query(), "n", defaultTrendMonths)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	trend, err := s.analytics.IncomeExpenseTrend(r.Context(), identity(r), n)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(trend).Write(w)
}

func (s *Server) handleSavingsTrend(w http.ResponseWriter, r *http.Request) {
	n, err := QueryInt(r.URL.Query(), "n", defaultTrendMonths)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	trend, err := s.analytics.SavingsTrend(r.Context(), identity(r), n)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(trend).Write(w)
}

func (s *Server) handleTransactionTrend(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	typ, err := QueryType(query, "transaction_type")
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	if typ == "" {
		typ = core.Expense
	}
	days, err := QueryInt(query, "days", defaultTrendDays)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}

	trend, err := s.analytics.DailyTrend(r.Context(), identity(r), typ, days)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(trend).Write(w)
}

func (s *Server) handleUpcomingBills(w http.ResponseWriter, r *http.Request) {
	bills, err := s.analytics.UpcomingBills(r.Context(), identity(r))
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	if bills == nil {
		bills = []services.UpcomingBill{}
	}
	NewJSONResponse().Data(bills).Write(w)
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	text, err := s.analytics.NarrativeContext(r.Context(), identity(r))
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(contextView{Context: text}).Write(w)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := DecodeJSON(r, &req); err != nil {
		FromError(r, err).Write(w)
		return
	}
	reply, err := s.chat.Ask(r.Context(), identity(r), sanitizeInput(req.Message))
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(messageView{Message: reply}).Write(w)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.chat.Report(r.Context(), identity(r))
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(messageView{Message: report}).Write(w)
}
