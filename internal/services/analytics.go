package services

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/diewo77/invoicehub/internal/billing"
	"github.com/diewo77/invoicehub/internal/models"
)

// MonthTotals is one point of the monthly series, keyed YYYY-MM.
type MonthTotals struct {
	Month    string          `json:"month"`
	Revenue  decimal.Decimal `json:"revenue"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
}

// Summary is the dashboard payload. Revenue counts payments received in
// the period; outstanding and overdue are balances as of now.
type Summary struct {
	From          string                 `json:"from"`
	To            string                 `json:"to"`
	Revenue       decimal.Decimal        `json:"revenue"`
	Invoiced      decimal.Decimal        `json:"invoiced"`
	Outstanding   decimal.Decimal        `json:"outstanding"`
	Overdue       decimal.Decimal        `json:"overdue"`
	Expenses      decimal.Decimal        `json:"expenses"`
	Net           decimal.Decimal        `json:"net"`
	InvoiceCounts map[billing.Status]int `json:"invoice_counts"`
	Monthly       []MonthTotals          `json:"monthly"`
}

type AnalyticsService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Summary aggregates the user's figures between from and to, both inclusive.
func (s *AnalyticsService) Summary(ctx context.Context, userID uint, from, to time.Time) (Summary, error) {
	end := to.AddDate(0, 0, 1)
	out := Summary{
		From:          from.Format(time.DateOnly),
		To:            to.Format(time.DateOnly),
		Revenue:       decimal.Zero,
		Invoiced:      decimal.Zero,
		Outstanding:   decimal.Zero,
		Overdue:       decimal.Zero,
		Expenses:      decimal.Zero,
		InvoiceCounts: map[billing.Status]int{},
	}
	months := map[string]*MonthTotals{}
	month := func(t time.Time) *MonthTotals {
		key := t.Format("2006-01")
		m, ok := months[key]
		if !ok {
			m = &MonthTotals{Month: key, Revenue: decimal.Zero, Expenses: decimal.Zero}
			months[key] = m
		}
		return m
	}
	db := s.db.WithContext(ctx)

	var payments []models.Payment
	if err := db.Where("user_id = ? AND payment_date >= ? AND payment_date < ?", userID, from, end).
		Find(&payments).Error; err != nil {
		return out, err
	}
	for _, p := range payments {
		out.Revenue = out.Revenue.Add(p.Amount)
		m := month(p.PaymentDate)
		m.Revenue = m.Revenue.Add(p.Amount)
	}

	var expenses []models.Expense
	if err := db.Where("user_id = ? AND expense_date >= ? AND expense_date < ?", userID, from, end).
		Find(&expenses).Error; err != nil {
		return out, err
	}
	for _, e := range expenses {
		out.Expenses = out.Expenses.Add(e.Amount)
		m := month(e.ExpenseDate)
		m.Expenses = m.Expenses.Add(e.Amount)
	}

	var invoices []models.Invoice
	if err := db.Where("user_id = ?", userID).Find(&invoices).Error; err != nil {
		return out, err
	}
	now := s.now()
	for _, inv := range invoices {
		if !inv.IssueDate.Before(from) && inv.IssueDate.Before(end) {
			out.InvoiceCounts[inv.Status]++
			if inv.Status != billing.StatusDraft && inv.Status != billing.StatusCancelled {
				out.Invoiced = out.Invoiced.Add(inv.Total)
			}
		}
		if !inv.Status.Payable() || inv.Status == billing.StatusDraft {
			continue
		}
		remaining := inv.Remaining()
		if !remaining.IsPositive() {
			continue
		}
		out.Outstanding = out.Outstanding.Add(remaining)
		if inv.Status == billing.StatusOverdue || (inv.DueDate != nil && now.After(*inv.DueDate)) {
			out.Overdue = out.Overdue.Add(remaining)
		}
	}

	out.Net = out.Revenue.Sub(out.Expenses)
	out.Monthly = make([]MonthTotals, 0, len(months))
	for _, m := range months {
		m.Net = m.Revenue.Sub(m.Expenses)
		out.Monthly = append(out.Monthly, *m)
	}
	sort.Slice(out.Monthly, func(i, j int) bool { return out.Monthly[i].Month < out.Monthly[j].Month })
	return out, nil
}
