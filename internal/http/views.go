package http

import (
	"encoding/json"
	"time"

	"aarthik/internal/core"
	"aarthik/internal/services"
)

// Request bodies.
type (
	signupRequest struct {
		FullName string `json:"full_name"`
		Email    string `json:"email"`
		Currency string `json:"currency_preference"`
	}

	transactionRequest struct {
		// ID is an optional client-generated UUID that makes the request replayable.
		ID          string     `json:"transaction_id"`
		Category    string     `json:"category"`
		Description string     `json:"description"`
		Amount      core.Money `json:"amount"`
		Timestamp   *time.Time `json:"timestamp"`
		Recurring   bool       `json:"recurring"`
		Recurrence  string     `json:"recurrence_duration"`
	}

	editRequest struct {
		Category    string     `json:"category"`
		Description string     `json:"description"`
		Amount      core.Money `json:"amount"`
		Recurring   *bool      `json:"recurring"`
		Recurrence  string     `json:"recurrence_duration"`
	}

	createProfileRequest struct {
		Name string `json:"profile_name"`
	}

	switchProfileRequest struct {
		ProfileID int64 `json:"profile_id"`
	}

	currencyRequest struct {
		Currency string `json:"currency_preference"`
	}

	chatRequest struct {
		Message string `json:"message"`
	}
)

// Response bodies.
type (
	userView struct {
		UserID          int64     `json:"user_id"`
		FullName        string    `json:"full_name"`
		Email           string    `json:"email"`
		Currency        string    `json:"currency_preference"`
		ActiveProfileID int64     `json:"active_profile_id"`
		CreatedAt       time.Time `json:"created_at"`
	}

	signupView struct {
		User  userView `json:"user"`
		Token string   `json:"token,omitempty"`
	}

	profileView struct {
		ProfileID int64      `json:"profile_id"`
		Name      string     `json:"profile_name"`
		Income    core.Money `json:"total_income"`
		Expense   core.Money `json:"total_expense"`
		Balance   core.Money `json:"total_balance"`
		Version   int64      `json:"version"`
		CreatedAt time.Time  `json:"created_at"`
		UpdatedAt time.Time  `json:"updated_at"`
	}

	transactionView struct {
		ID          string     `json:"transaction_id"`
		Type        string     `json:"type"`
		Category    string     `json:"category"`
		Description string     `json:"description"`
		Amount      core.Money `json:"amount"`
		Timestamp   time.Time  `json:"timestamp"`
		Recurring   bool       `json:"recurring"`
		Recurrence  string     `json:"recurrence_duration,omitempty"`
	}

	switchView struct {
		Message string      `json:"message"`
		Profile profileView `json:"profile"`
	}

	// Percent is rendered with exactly two decimals, e.g. 100.00.
	categoryShareView struct {
		Category string      `json:"category"`
		Amount   core.Money  `json:"amount"`
		Percent  json.Number `json:"percent"`
	}

	dashboardView struct {
		Profile       profileView             `json:"profile"`
		Breakdown     []categoryShareView     `json:"expense_breakdown"`
		Trend         []core.MonthBucket      `json:"income_expense_trend"`
		Recent        []transactionView       `json:"recent_transactions"`
		UpcomingBills []services.UpcomingBill `json:"upcoming_bills"`
	}

	messageView struct {
		Message string `json:"message"`
	}

	contextView struct {
		Context string `json:"context"`
	}
)

func newUserView(u core.User) userView {
	return userView{
		UserID:          u.ID,
		FullName:        u.Name,
		Email:           u.Email,
		Currency:        string(u.Currency),
		ActiveProfileID: u.ActiveProfileID,
		CreatedAt:       u.CreatedAt,
	}
}

func newProfileView(p core.Profile) profileView {
	return profileView{
		ProfileID: p.ProfileID,
		Name:      p.Name,
		Income:    p.Totals.Income,
		Expense:   p.Totals.Expense,
		Balance:   p.Totals.Balance,
		Version:   p.Version,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func newTransactionView(t core.Transaction) transactionView {
	v := transactionView{
		ID:          t.ID,
		Type:        string(t.Type),
		Category:    t.Category,
		Description: t.Description,
		Amount:      t.Amount,
		Timestamp:   t.Timestamp,
		Recurring:   t.Recurring(),
	}
	if t.Recurrence != nil {
		v.Recurrence = string(*t.Recurrence)
	}
	return v
}

func newTransactionViews(txs []core.Transaction) []transactionView {
	out := make([]transactionView, 0, len(txs))
	for _, t := range txs {
		out = append(out, newTransactionView(t))
	}
	return out
}

func newProfileViews(ps []core.Profile) []profileView {
	out := make([]profileView, 0, len(ps))
	for _, p := range ps {
		out = append(out, newProfileView(p))
	}
	return out
}

func newBreakdownView(b core.Breakdown) []categoryShareView {
	out := make([]categoryShareView, 0, len(b))
	for _, s := range b {
		out = append(out, categoryShareView{
			Category: s.Category,
			Amount:   s.Amount,
			Percent:  json.Number(s.Percent.StringFixed(2)),
		})
	}
	return out
}

func newDashboardView(d services.DashboardView) dashboardView {
	v := dashboardView{
		Profile:       newProfileView(d.Profile),
		Breakdown:     newBreakdownView(d.Breakdown),
		Trend:         d.Trend,
		Recent:        newTransactionViews(d.Recent),
		UpcomingBills: d.UpcomingBills,
	}
	if v.UpcomingBills == nil {
		v.UpcomingBills = []services.UpcomingBill{}
	}
	return v
}
