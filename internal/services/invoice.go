// Package services implements the use cases behind the HTTP API and the ops
// CLI. Every method that touches stored data takes the acting user id and
// checks ownership through the policy gate.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/invoicehub/internal/billing"
	"github.com/diewo77/invoicehub/internal/config"
	"github.com/diewo77/invoicehub/internal/events"
	"github.com/diewo77/invoicehub/internal/models"
	"github.com/diewo77/invoicehub/internal/policy"
	"github.com/diewo77/invoicehub/validation"
)

// ItemInput is one submitted line. ServiceID links it to the catalog.
type ItemInput struct {
	billing.LineItem
	ServiceID *uint `json:"service_id,omitempty"`
}

// InvoiceInput is the body of create and update requests. Total is the
// client's own computation and is only compared, never stored.
type InvoiceInput struct {
	ClientID     uint            `json:"client_id"`
	IssueDate    string          `json:"issue_date"`
	DueDate      string          `json:"due_date"`
	TaxRate      billing.Numeric `json:"tax_rate"`
	Currency     string          `json:"currency"`
	Notes        string          `json:"notes"`
	PaymentTerms string          `json:"payment_terms"`
	Items        []ItemInput     `json:"items"`
	Total        billing.Numeric `json:"total"`
}

func (in InvoiceInput) lineItems() []billing.LineItem {
	items := make([]billing.LineItem, len(in.Items))
	for i, it := range in.Items {
		items[i] = it.LineItem
	}
	return items
}

// ListQuery filters the invoice list.
type ListQuery struct {
	Status  string
	Q       string
	Page    int
	PerPage int
}

// Page is one page of results.
type Page[T any] struct {
	Items   []T   `json:"items"`
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
}

// TotalsPreview is the calculator output plus the optional client check.
type TotalsPreview struct {
	billing.Totals
	Matches *bool `json:"matches,omitempty"`
}

type InvoiceService struct {
	db        *gorm.DB
	gate      *policy.Gate[uint]
	logger    *zap.Logger
	policy    string
	tolerance float64
	now       func() time.Time
}

func NewInvoiceService(db *gorm.DB, gate *policy.Gate[uint], logger *zap.Logger, app config.AppConfig) *InvoiceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	tol := billing.DefaultTotalTolerance
	if app.TotalTolerance != nil {
		tol = *app.TotalTolerance
	}
	mode := app.TotalMismatchPolicy
	if mode != config.MismatchLog {
		mode = config.MismatchReject
	}
	return &InvoiceService{
		db:        db,
		gate:      gate,
		logger:    logger.Named("invoices"),
		policy:    mode,
		tolerance: tol,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Preview runs the calculator and, when a client total is given, the validator.
func (s *InvoiceService) Preview(items []billing.LineItem, taxRate, clientTotal billing.Numeric) (TotalsPreview, error) {
	totals, err := billing.CalculateTotals(items, taxRate)
	if err != nil {
		return TotalsPreview{}, err
	}
	out := TotalsPreview{Totals: totals}
	if !clientTotal.IsZero() {
		ok := billing.ValidateTotal(string(clientTotal), totals.Total, s.tolerance)
		out.Matches = &ok
	}
	return out, nil
}

// checkClientTotal applies the mismatch policy. Server values always win.
func (s *InvoiceService) checkClientTotal(userID uint, clientTotal billing.Numeric, totals billing.Totals) error {
	if clientTotal.IsZero() || billing.ValidateTotal(string(clientTotal), totals.Total, s.tolerance) {
		return nil
	}
	if s.policy == config.MismatchLog {
		s.logger.Warn("client total mismatch",
			zap.Uint("user_id", userID),
			zap.String("client_total", string(clientTotal)),
			zap.String("calculated_total", totals.Total),
		)
		return nil
	}
	return &TotalMismatchError{ClientTotal: string(clientTotal), CalculatedTotal: totals.Total}
}

func parseDates(in InvoiceInput, today time.Time, v validation.Violations) (issue time.Time, due *time.Time) {
	issue = today
	if in.IssueDate != "" {
		issue = validation.Date("issue_date", in.IssueDate, v)
	}
	if in.DueDate != "" {
		d := validation.Date("due_date", in.DueDate, v)
		if !d.IsZero() {
			if !issue.IsZero() && d.Before(issue) {
				v["due_date"] = "before_issue_date"
			}
			due = &d
		}
	}
	return issue, due
}

func buildItems(in InvoiceInput) []models.InvoiceItem {
	items := make([]models.InvoiceItem, len(in.Items))
	for i, it := range in.Items {
		qty, _ := it.Quantity.Float()
		price, _ := it.Price.Float()
		q := decimal.NewFromFloat(qty)
		p := decimal.NewFromFloat(price)
		items[i] = models.InvoiceItem{
			ServiceID:   it.ServiceID,
			Description: strings.TrimSpace(it.Description),
			Quantity:    q,
			Price:       p,
			Amount:      q.Mul(p).Round(2),
			Position:    i,
		}
	}
	return items
}

func (s *InvoiceService) loadClient(ctx context.Context, tx *gorm.DB, userID, clientID uint) error {
	var c models.Client
	if err := tx.First(&c, clientID).Error; err != nil {
		return notFound(err, "client")
	}
	return notFound(s.gate.Authorize(ctx, userID, policy.ActionView, policy.ResourceClient, &c), "client")
}

func (s *InvoiceService) companyDefaults(tx *gorm.DB, userID uint) models.CompanySettings {
	cs := models.CompanySettings{Currency: "EUR", PaymentTerms: 30}
	var stored models.CompanySettings
	if err := tx.Where("user_id = ?", userID).First(&stored).Error; err == nil {
		cs = stored
	}
	return cs
}

// Create computes totals, applies the client total policy and stores a new
// draft with the next invoice number.
func (s *InvoiceService) Create(ctx context.Context, userID uint, in InvoiceInput) (*models.Invoice, error) {
	if err := s.gate.Authorize(ctx, userID, policy.ActionCreate, policy.ResourceInvoice, nil); err != nil {
		return nil, err
	}
	v := make(validation.Violations)
	validation.RequiredID("client_id", in.ClientID, v)
	issue, due := parseDates(in, s.today(), v)
	validation.MaxLen("currency", in.Currency, 3, v)
	for i, it := range in.Items {
		validation.MaxLen(fmt.Sprintf("items[%d].description", i), it.Description, 500, v)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	company := s.companyDefaults(db, userID)
	taxRate := in.TaxRate
	if taxRate.IsZero() && company.DefaultTaxRate.IsPositive() {
		taxRate = billing.Numeric(company.DefaultTaxRate.String())
	}
	totals, err := billing.CalculateTotals(in.lineItems(), taxRate)
	if err != nil {
		return nil, err
	}
	if err := s.checkClientTotal(userID, in.Total, totals); err != nil {
		return nil, err
	}
	if err := s.loadClient(ctx, db, userID, in.ClientID); err != nil {
		return nil, err
	}
	if due == nil && company.PaymentTerms > 0 {
		d := issue.AddDate(0, 0, company.PaymentTerms)
		due = &d
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = company.Currency
	}
	rate, _ := taxRate.Float()
	subtotal, tax, total := totals.Decimals()

	inv := models.Invoice{
		UserID:       userID,
		ClientID:     in.ClientID,
		IssueDate:    issue,
		DueDate:      due,
		Status:       billing.StatusDraft,
		TaxRate:      decimal.NewFromFloat(rate),
		Subtotal:     subtotal,
		Tax:          tax,
		Total:        total,
		AmountPaid:   decimal.Zero,
		Currency:     currency,
		Notes:        in.Notes,
		PaymentTerms: in.PaymentTerms,
		Version:      1,
		Items:        buildItems(in),
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		// Numbers are allocated under the owner's row lock.
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&models.User{}, userID).Error; err != nil {
			return notFound(err, "user")
		}
		number, err := models.GenerateInvoiceNumber(tx, userID, issue.Year())
		if err != nil {
			return err
		}
		inv.Number = number
		if err := tx.Create(&inv).Error; err != nil {
			return err
		}
		if err := events.Enqueue(tx, events.InvoiceCreated, userID, inv.ID, map[string]any{
			"number": inv.Number, "total": inv.Total, "currency": inv.Currency,
		}); err != nil {
			return err
		}
		return audit(tx, userID, "create", policy.ResourceInvoice, inv.ID, totals)
	})
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	s.logger.Info("invoice created", zap.Uint("invoice_id", inv.ID), zap.String("number", inv.Number), zap.String("total", totals.Total))
	return &inv, nil
}

// Update replaces lines and header fields of a draft or sent invoice.
func (s *InvoiceService) Update(ctx context.Context, userID, id uint, in InvoiceInput) (*models.Invoice, error) {
	v := make(validation.Violations)
	issue, due := parseDates(in, time.Time{}, v)
	validation.MaxLen("currency", in.Currency, 3, v)
	if err := v.Err(); err != nil {
		return nil, err
	}

	var inv models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&inv, id).Error; err != nil {
			return notFound(err, "invoice")
		}
		if err := s.gate.Authorize(ctx, userID, policy.ActionUpdate, policy.ResourceInvoice, &inv); err != nil {
			return notFound(err, "invoice")
		}
		if !inv.Status.Editable() {
			return fmt.Errorf("%w: status is %s", ErrNotEditable, inv.Status)
		}
		taxRate := in.TaxRate
		if taxRate.IsZero() {
			taxRate = billing.Numeric(inv.TaxRate.String())
		}
		totals, err := billing.CalculateTotals(in.lineItems(), taxRate)
		if err != nil {
			return err
		}
		if err := s.checkClientTotal(userID, in.Total, totals); err != nil {
			return err
		}
		subtotal, tax, total := totals.Decimals()
		if total.LessThan(inv.AmountPaid) {
			return validation.Violations{"total": "below_amount_paid"}
		}
		if in.ClientID != 0 && in.ClientID != inv.ClientID {
			if err := s.loadClient(ctx, tx, userID, in.ClientID); err != nil {
				return err
			}
			inv.ClientID = in.ClientID
		}
		if !issue.IsZero() {
			inv.IssueDate = issue
		}
		if due != nil {
			inv.DueDate = due
		}
		if c := strings.ToUpper(strings.TrimSpace(in.Currency)); c != "" {
			inv.Currency = c
		}
		rate, _ := taxRate.Float()
		inv.TaxRate = decimal.NewFromFloat(rate)
		inv.Subtotal, inv.Tax, inv.Total = subtotal, tax, total
		inv.Notes = in.Notes
		inv.PaymentTerms = in.PaymentTerms

		if err := tx.Where("invoice_id = ?", inv.ID).Delete(&models.InvoiceItem{}).Error; err != nil {
			return err
		}
		items := buildItems(in)
		for i := range items {
			items[i].InvoiceID = inv.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		inv.Items = items

		if err := s.saveHeader(tx, &inv); err != nil {
			return err
		}
		if err := events.Enqueue(tx, events.InvoiceUpdated, userID, inv.ID, map[string]any{"total": inv.Total}); err != nil {
			return err
		}
		return audit(tx, userID, "update", policy.ResourceInvoice, inv.ID, totals)
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// saveHeader writes the invoice columns with a version check.
func (s *InvoiceService) saveHeader(tx *gorm.DB, inv *models.Invoice) error {
	res := tx.Model(&models.Invoice{}).
		Where("id = ? AND version = ?", inv.ID, inv.Version).
		Updates(map[string]any{
			"client_id":     inv.ClientID,
			"issue_date":    inv.IssueDate,
			"due_date":      inv.DueDate,
			"tax_rate":      inv.TaxRate,
			"subtotal":      inv.Subtotal,
			"tax":           inv.Tax,
			"total":         inv.Total,
			"currency":      inv.Currency,
			"notes":         inv.Notes,
			"payment_terms": inv.PaymentTerms,
			"version":       inv.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	inv.Version++
	return nil
}

// Get loads an invoice with client, items and payments.
func (s *InvoiceService) Get(ctx context.Context, userID, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).
		Preload("Client").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("payment_date, id") }).
		First(&inv, id).Error
	if err != nil {
		return nil, notFound(err, "invoice")
	}
	if err := s.gate.Authorize(ctx, userID, policy.ActionView, policy.ResourceInvoice, &inv); err != nil {
		return nil, notFound(err, "invoice")
	}
	return &inv, nil
}

// List returns the user's invoices, newest first. Q matches the invoice
// number or the client name.
func (s *InvoiceService) List(ctx context.Context, userID uint, q ListQuery) (Page[models.Invoice], error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 || q.PerPage > 200 {
		q.PerPage = 50
	}
	out := Page[models.Invoice]{Items: []models.Invoice{}, Page: q.Page, PerPage: q.PerPage}
	if err := s.gate.Authorize(ctx, userID, policy.ActionList, policy.ResourceInvoice, nil); err != nil {
		return out, err
	}
	dbq := s.db.WithContext(ctx).Model(&models.Invoice{}).Where("invoices.user_id = ?", userID)
	if q.Status != "" {
		st, err := billing.ParseStatus(q.Status)
		if err != nil {
			return out, validation.Violations{"status": "invalid"}
		}
		dbq = dbq.Where("invoices.status = ?", st)
	}
	if term := strings.ToLower(strings.TrimSpace(q.Q)); term != "" {
		like := "%" + term + "%"
		dbq = dbq.Joins("LEFT JOIN clients ON clients.id = invoices.client_id").
			Where("LOWER(invoices.number) LIKE ? OR LOWER(clients.name) LIKE ?", like, like)
	}
	dbq = dbq.Session(&gorm.Session{})
	if err := dbq.Count(&out.Total).Error; err != nil {
		return out, err
	}
	err := dbq.Preload("Client").
		Order("invoices.issue_date DESC, invoices.id DESC").
		Limit(q.PerPage).Offset((q.Page - 1) * q.PerPage).
		Find(&out.Items).Error
	return out, err
}

// Delete removes a draft that has no payments.
func (s *InvoiceService) Delete(ctx context.Context, userID, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv models.Invoice
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&inv, id).Error; err != nil {
			return notFound(err, "invoice")
		}
		if err := s.gate.Authorize(ctx, userID, policy.ActionDelete, policy.ResourceInvoice, &inv); err != nil {
			return notFound(err, "invoice")
		}
		if inv.Status != billing.StatusDraft {
			return fmt.Errorf("%w: only drafts can be deleted", ErrNotEditable)
		}
		var n int64
		if err := tx.Model(&models.Payment{}).Where("invoice_id = ?", inv.ID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return billing.ErrHasPayments
		}
		if err := tx.Delete(&inv).Error; err != nil {
			return err
		}
		if err := events.Enqueue(tx, events.InvoiceDeleted, userID, inv.ID, map[string]string{"number": inv.Number}); err != nil {
			return err
		}
		return audit(tx, userID, "delete", policy.ResourceInvoice, inv.ID, nil)
	})
}

// Transition applies a manual action and returns the decision taken.
func (s *InvoiceService) Transition(ctx context.Context, userID, id uint, action billing.Action) (*models.Invoice, billing.StatusDecision, error) {
	var inv models.Invoice
	var decision billing.StatusDecision
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&inv, id).Error; err != nil {
			return notFound(err, "invoice")
		}
		if err := s.gate.Authorize(ctx, userID, policy.ActionUpdate, policy.ResourceInvoice, &inv); err != nil {
			return notFound(err, "invoice")
		}
		var err error
		decision, err = billing.ApplyAction(inv.State(), action, inv.AmountPaid, s.now())
		if err != nil {
			return err
		}
		return applyDecision(tx, &inv, decision, userID, nil)
	})
	if err != nil {
		return nil, decision, err
	}
	s.logger.Info("invoice status changed",
		zap.Uint("invoice_id", inv.ID),
		zap.String("from", string(decision.From)),
		zap.String("to", string(decision.To)),
		zap.String("reason", decision.Reason),
	)
	return &inv, decision, nil
}

// MarkOverdue flips every issued, unpaid invoice past its due date to
// overdue. It runs without a user and returns how many invoices changed.
func (s *InvoiceService) MarkOverdue(ctx context.Context) (int, error) {
	now := s.now()
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("status IN ? AND due_date IS NOT NULL AND due_date < ?",
			[]billing.Status{billing.StatusSent, billing.StatusPartiallyPaid}, now).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, id := range ids {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var inv models.Invoice
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&inv, id).Error; err != nil {
				return err
			}
			decision, err := billing.ApplyAction(inv.State(), billing.ActionMarkOverdue, inv.AmountPaid, now)
			if err != nil {
				return err
			}
			return applyDecision(tx, &inv, decision, inv.UserID, nil)
		})
		if errors.Is(err, billing.ErrInvalidTransition) {
			continue
		}
		if err != nil {
			return changed, fmt.Errorf("mark invoice %d overdue: %w", id, err)
		}
		changed++
	}
	s.logger.Info("overdue sweep finished", zap.Int("checked", len(ids)), zap.Int("changed", changed))
	return changed, nil
}

func (s *InvoiceService) today() time.Time {
	y, m, d := s.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// applyDecision persists a status decision with the version check, then
// records the event and the audit row. paidDate is stored when the invoice
// becomes paid.
func applyDecision(tx *gorm.DB, inv *models.Invoice, d billing.StatusDecision, userID uint, paidDate *time.Time) error {
	updates := map[string]any{
		"status":      d.To,
		"amount_paid": d.AmountPaid,
		"version":     inv.Version + 1,
	}
	if d.To == billing.StatusPaid {
		if paidDate == nil {
			paidDate = inv.PaidDate
		}
		updates["paid_date"] = paidDate
	} else {
		updates["paid_date"] = nil
	}
	res := tx.Model(&models.Invoice{}).Where("id = ? AND version = ?", inv.ID, inv.Version).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	inv.Status = d.To
	inv.AmountPaid = d.AmountPaid
	inv.Version++
	if d.To == billing.StatusPaid {
		inv.PaidDate = paidDate
	} else {
		inv.PaidDate = nil
	}
	if !d.Changed() {
		return nil
	}
	if err := events.Enqueue(tx, events.InvoiceStatusChanged, userID, inv.ID, d); err != nil {
		return err
	}
	return audit(tx, userID, "status:"+string(d.To), policy.ResourceInvoice, inv.ID, d)
}
