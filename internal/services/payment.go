package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/invoicehub/internal/billing"
	"github.com/diewo77/invoicehub/internal/events"
	"github.com/diewo77/invoicehub/internal/models"
	"github.com/diewo77/invoicehub/internal/policy"
	"github.com/diewo77/invoicehub/validation"
)

// PaymentInput is the body of a record-payment request.
type PaymentInput struct {
	Amount        billing.Numeric `json:"amount"`
	PaymentDate   string          `json:"payment_date"`
	PaymentMethod string          `json:"payment_method"`
	TransactionID *string         `json:"transaction_id"`
	Notes         string          `json:"notes"`
}

// PaymentResult is what the API returns after a payment change.
type PaymentResult struct {
	Payment  *models.Payment        `json:"payment,omitempty"`
	Invoice  *models.Invoice        `json:"invoice"`
	Decision billing.StatusDecision `json:"decision"`
}

type PaymentService struct {
	db     *gorm.DB
	gate   *policy.Gate[uint]
	logger *zap.Logger
	now    func() time.Time
}

func NewPaymentService(db *gorm.DB, gate *policy.Gate[uint], logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{db: db, gate: gate, logger: logger.Named("payments"), now: func() time.Time { return time.Now().UTC() }}
}

func (in PaymentInput) validate(today time.Time) (decimal.Decimal, time.Time, error) {
	v := make(validation.Violations)
	amount, err := decimal.NewFromString(strings.TrimSpace(string(in.Amount)))
	if _, ok := in.Amount.Float(); err != nil || !ok {
		v["amount"] = "invalid"
	} else if !amount.Equal(amount.Round(2)) {
		// Stored amounts have two decimals.
		v["amount"] = "too_many_decimals"
	}
	date := today
	if in.PaymentDate != "" {
		date = validation.Date("payment_date", in.PaymentDate, v)
	}
	if in.PaymentMethod != "" {
		validation.OneOf("payment_method", in.PaymentMethod, models.PaymentMethods, v)
	}
	if in.TransactionID != nil {
		validation.MaxLen("transaction_id", *in.TransactionID, 100, v)
	}
	return amount, date, v.Err()
}

// lockInvoice selects the invoice FOR UPDATE and checks access.
func (s *PaymentService) lockInvoice(ctx context.Context, tx *gorm.DB, userID, invoiceID uint, action policy.Action) (*models.Invoice, error) {
	var inv models.Invoice
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&inv, invoiceID).Error; err != nil {
		return nil, notFound(err, "invoice")
	}
	if err := s.gate.Authorize(ctx, userID, action, policy.ResourceInvoice, &inv); err != nil {
		return nil, notFound(err, "invoice")
	}
	return &inv, nil
}

func paymentAmounts(tx *gorm.DB, invoiceID uint) ([]decimal.Decimal, error) {
	var payments []models.Payment
	if err := tx.Select("amount").Where("invoice_id = ?", invoiceID).Find(&payments).Error; err != nil {
		return nil, err
	}
	amounts := make([]decimal.Decimal, len(payments))
	for i, p := range payments {
		amounts[i] = p.Amount
	}
	return amounts, nil
}

// Record accepts a payment against an invoice. The balance check, the
// insert and the status update share one transaction holding the invoice
// row lock; the version check on the update catches writers on databases
// that ignore the lock.
func (s *PaymentService) Record(ctx context.Context, userID, invoiceID uint, in PaymentInput) (*PaymentResult, error) {
	amount, date, err := in.validate(s.today())
	if err != nil {
		return nil, err
	}
	method := in.PaymentMethod
	if method == "" {
		method = models.PaymentBankTransfer
	}

	res := &PaymentResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := s.lockInvoice(ctx, tx, userID, invoiceID, policy.ActionPay)
		if err != nil {
			return err
		}
		if !inv.Status.Payable() {
			return fmt.Errorf("%w: status is %s", billing.ErrInvoiceNotPayable, inv.Status)
		}
		amounts, err := paymentAmounts(tx, inv.ID)
		if err != nil {
			return err
		}
		if err := billing.CheckPayment(inv.Total, billing.SumPayments(amounts), amount); err != nil {
			return err
		}
		p := models.Payment{
			InvoiceID:     inv.ID,
			UserID:        inv.UserID,
			Amount:        amount,
			PaymentDate:   date,
			Method:        method,
			TransactionID: in.TransactionID,
			Notes:         in.Notes,
		}
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		decision := billing.Settle(inv.State(), append(amounts, p.Amount), s.now())
		if err := applyDecision(tx, inv, decision, userID, &date); err != nil {
			return err
		}
		if err := events.Enqueue(tx, events.PaymentRecorded, userID, inv.ID, map[string]any{
			"payment_id": p.PublicID, "amount": p.Amount, "method": p.Method, "decision": decision,
		}); err != nil {
			return err
		}
		if err := audit(tx, userID, "create", policy.ResourcePayment, p.ID, map[string]any{"invoice_id": inv.ID, "amount": p.Amount}); err != nil {
			return err
		}
		res.Payment, res.Invoice, res.Decision = &p, inv, decision
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("payment recorded",
		zap.Uint("invoice_id", invoiceID),
		zap.String("amount", res.Payment.Amount.StringFixed(2)),
		zap.String("status", string(res.Decision.To)),
	)
	return res, nil
}

// Delete removes a payment and settles the invoice again.
func (s *PaymentService) Delete(ctx context.Context, userID, paymentID uint) (*PaymentResult, error) {
	res := &PaymentResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Payment
		if err := tx.First(&p, paymentID).Error; err != nil {
			return notFound(err, "payment")
		}
		if err := s.gate.Authorize(ctx, userID, policy.ActionDelete, policy.ResourcePayment, &p); err != nil {
			return notFound(err, "payment")
		}
		inv, err := s.lockInvoice(ctx, tx, userID, p.InvoiceID, policy.ActionUpdate)
		if err != nil {
			return err
		}
		if err := removePayment(tx, &p); err != nil {
			return err
		}
		amounts, err := paymentAmounts(tx, inv.ID)
		if err != nil {
			return err
		}
		decision := billing.Settle(inv.State(), amounts, s.now())
		if err := applyDecision(tx, inv, decision, userID, nil); err != nil {
			return err
		}
		if err := events.Enqueue(tx, events.PaymentDeleted, userID, inv.ID, map[string]any{
			"payment_id": p.PublicID, "amount": p.Amount, "decision": decision,
		}); err != nil {
			return err
		}
		if err := audit(tx, userID, "delete", policy.ResourcePayment, p.ID, map[string]any{"invoice_id": inv.ID, "amount": p.Amount}); err != nil {
			return err
		}
		res.Invoice, res.Decision = inv, decision
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// removePayment deletes p under the invoice lock. A concurrent delete that
// committed first leaves nothing to remove, which is reported as not found.
func removePayment(tx *gorm.DB, p *models.Payment) error {
	res := tx.Where("id = ? AND invoice_id = ?", p.ID, p.InvoiceID).Delete(&models.Payment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: payment %d", ErrNotFound, p.ID)
	}
	return nil
}

// List returns the payments of an invoice in date order.
func (s *PaymentService) List(ctx context.Context, userID, invoiceID uint) ([]models.Payment, error) {
	db := s.db.WithContext(ctx)
	var inv models.Invoice
	if err := db.First(&inv, invoiceID).Error; err != nil {
		return nil, notFound(err, "invoice")
	}
	if err := s.gate.Authorize(ctx, userID, policy.ActionView, policy.ResourceInvoice, &inv); err != nil {
		return nil, notFound(err, "invoice")
	}
	payments := []models.Payment{}
	err := db.Where("invoice_id = ?", invoiceID).Order("payment_date, id").Find(&payments).Error
	return payments, err
}

// Reconcile recomputes amount paid and status from the stored payments.
// It is an operator tool and skips the ownership check.
func (s *PaymentService) Reconcile(ctx context.Context, invoiceID uint) (billing.StatusDecision, error) {
	var decision billing.StatusDecision
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv models.Invoice
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&inv, invoiceID).Error; err != nil {
			return notFound(err, "invoice")
		}
		amounts, err := paymentAmounts(tx, inv.ID)
		if err != nil {
			return err
		}
		decision = billing.Settle(inv.State(), amounts, s.now())
		if !decision.Changed() && decision.AmountPaid.Equal(inv.AmountPaid) {
			return nil
		}
		var paidDate *time.Time
		if decision.To == billing.StatusPaid {
			var last models.Payment
			if err := tx.Where("invoice_id = ?", inv.ID).Order("payment_date DESC").First(&last).Error; err == nil {
				paidDate = &last.PaymentDate
			}
		}
		return applyDecision(tx, &inv, decision, inv.UserID, paidDate)
	})
	if err != nil {
		return decision, err
	}
	s.logger.Info("invoice reconciled",
		zap.Uint("invoice_id", invoiceID),
		zap.String("amount_paid", decision.AmountPaid.StringFixed(2)),
		zap.String("from", string(decision.From)),
		zap.String("to", string(decision.To)),
	)
	return decision, nil
}

func (s *PaymentService) today() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
