package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"gorm.io/gorm"

	"github.com/diewo77/invoicehub/internal/models"
	"github.com/diewo77/invoicehub/internal/policy"
)

type ExportService struct {
	db       *gorm.DB
	gate     *policy.Gate[uint]
	invoices *InvoiceService
}

func NewExportService(db *gorm.DB, gate *policy.Gate[uint], invoices *InvoiceService) *ExportService {
	return &ExportService{db: db, gate: gate, invoices: invoices}
}

// InvoicePDF renders one invoice as an A4 PDF into w.
func (s *ExportService) InvoicePDF(ctx context.Context, userID, id uint, w io.Writer) (*models.Invoice, error) {
	inv, err := s.invoices.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(ctx, userID, policy.ActionExport, policy.ResourceInvoice, inv); err != nil {
		return nil, notFound(err, "invoice")
	}
	db := s.db.WithContext(ctx)
	var company models.CompanySettings
	if err := db.Where("user_id = ?", userID).First(&company).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	var bank models.BankAccount
	hasBank := db.Where("user_id = ? AND is_default = ?", userID, true).First(&bank).Error == nil

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Invoice "+inv.Number, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 10, tr("INVOICE "+inv.Number), "", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 5, "Issue date: "+inv.IssueDate.Format(time.DateOnly), "", 1, "R", false, 0, "")
	if inv.DueDate != nil {
		pdf.CellFormat(0, 5, "Due date: "+inv.DueDate.Format(time.DateOnly), "", 1, "R", false, 0, "")
	}
	pdf.CellFormat(0, 5, "Status: "+string(inv.Status), "", 1, "R", false, 0, "")
	pdf.Ln(4)

	y := pdf.GetY()
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(95, 6, tr(company.Name))
	pdf.Cell(95, 6, "Bill to")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(95, 5, tr(company.FullAddress()), "", "L", false)
	left := pdf.GetY()
	pdf.SetXY(105, y+6)
	if inv.Client != nil {
		pdf.MultiCell(95, 5, tr(inv.Client.Name+"\n"+inv.Client.FullAddress()), "", "L", false)
	}
	if pdf.GetY() < left {
		pdf.SetY(left)
	}
	pdf.Ln(6)

	widths := []float64{95, 25, 30, 40}
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	for i, h := range []string{"Description", "Qty", "Price", "Amount"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 7, h, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, it := range inv.Items {
		pdf.CellFormat(widths[0], 6, tr(it.Description), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, it.Quantity.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 6, it.Price.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 6, it.Amount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(2)

	row := func(label, value string, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Arial", style, 10)
		pdf.CellFormat(150, 6, label, "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, value+" "+inv.Currency, "", 1, "R", false, 0, "")
	}
	row("Subtotal", inv.Subtotal.StringFixed(2), false)
	row("Tax ("+inv.TaxRate.StringFixed(2)+"%)", inv.Tax.StringFixed(2), false)
	row("Total", inv.Total.StringFixed(2), true)
	if inv.AmountPaid.IsPositive() {
		row("Paid", inv.AmountPaid.StringFixed(2), false)
		row("Balance due", inv.Remaining().StringFixed(2), true)
	}

	if hasBank {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(0, 6, "Payment details")
		pdf.Ln(6)
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 5, tr(fmt.Sprintf("%s\n%s\nIBAN %s  BIC %s", bank.BankName, bank.AccountHolder, bank.IBAN, bank.BIC)), "", "L", false)
	}
	if inv.Notes != "" {
		pdf.Ln(4)
		pdf.MultiCell(0, 5, tr(inv.Notes), "", "L", false)
	}
	if err := pdf.Output(w); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return inv, nil
}

var invoiceCSVHeader = []string{"number", "client", "issue_date", "due_date", "status", "currency", "subtotal", "tax", "total", "amount_paid", "remaining"}

// InvoicesCSV writes every invoice of the user.
func (s *ExportService) InvoicesCSV(ctx context.Context, userID uint, w io.Writer) error {
	if err := s.gate.Authorize(ctx, userID, policy.ActionExport, policy.ResourceInvoice, nil); err != nil {
		return err
	}
	var invoices []models.Invoice
	if err := s.db.WithContext(ctx).Preload("Client").Where("user_id = ?", userID).
		Order("issue_date, id").Find(&invoices).Error; err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(invoiceCSVHeader); err != nil {
		return err
	}
	for _, inv := range invoices {
		client, due := "", ""
		if inv.Client != nil {
			client = inv.Client.Name
		}
		if inv.DueDate != nil {
			due = inv.DueDate.Format(time.DateOnly)
		}
		if err := cw.Write([]string{
			inv.Number, client, inv.IssueDate.Format(time.DateOnly), due, string(inv.Status), inv.Currency,
			inv.Subtotal.StringFixed(2), inv.Tax.StringFixed(2), inv.Total.StringFixed(2),
			inv.AmountPaid.StringFixed(2), inv.Remaining().StringFixed(2),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExpensesCSV writes the user's expenses in [from, to].
func (s *ExportService) ExpensesCSV(ctx context.Context, userID uint, from, to time.Time, w io.Writer) error {
	expenses, err := NewExpenseService(s.db, s.gate).List(ctx, userID, from, to)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "expense_date", "category", "vendor", "description", "amount"}); err != nil {
		return err
	}
	for _, e := range expenses {
		if err := cw.Write([]string{
			strconv.FormatUint(uint64(e.ID), 10), e.ExpenseDate.Format(time.DateOnly), e.Category,
			e.Vendor, e.Description, e.Amount.StringFixed(2),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
