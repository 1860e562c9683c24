package services

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/diewo77/invoicehub/internal/billing"
	"github.com/diewo77/invoicehub/internal/models"
	"github.com/diewo77/invoicehub/internal/policy"
	"github.com/diewo77/invoicehub/validation"
)

// ownedPtr is a model pointer carrying an owner.
type ownedPtr[T any] interface {
	*T
	policy.Ownable
}

// loadOwned fetches id and authorizes action on it. Missing and foreign
// rows both come back as ErrNotFound.
func loadOwned[T any, P ownedPtr[T]](ctx context.Context, db *gorm.DB, gate *policy.Gate[uint], resource string, action policy.Action, userID, id uint) (P, error) {
	var rec T
	if err := db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, notFound(err, resource)
	}
	p := P(&rec)
	if err := gate.Authorize(ctx, userID, action, resource, p); err != nil {
		return nil, notFound(err, resource)
	}
	return p, nil
}

// listOwned returns every row of the user, ordered.
func listOwned[T any](ctx context.Context, db *gorm.DB, gate *policy.Gate[uint], resource string, userID uint, order string) ([]T, error) {
	if err := gate.Authorize(ctx, userID, policy.ActionList, resource, nil); err != nil {
		return nil, err
	}
	out := []T{}
	err := db.WithContext(ctx).Where("user_id = ?", userID).Order(order).Find(&out).Error
	return out, err
}

// ClientInput is the editable part of a client.
type ClientInput struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	TaxID      string `json:"tax_id"`
	Notes      string `json:"notes"`
}

func (in ClientInput) validate() error {
	v := make(validation.Violations)
	validation.Required("name", in.Name, v)
	validation.MaxLen("name", in.Name, 255, v)
	if in.Email != "" {
		validation.Email("email", in.Email, v)
	}
	validation.MaxLen("tax_id", in.TaxID, 50, v)
	return v.Err()
}

func (in ClientInput) apply(c *models.Client) {
	c.Name = strings.TrimSpace(in.Name)
	c.Email = strings.TrimSpace(in.Email)
	c.Phone = in.Phone
	c.Address = in.Address
	c.City = in.City
	c.PostalCode = in.PostalCode
	c.Country = in.Country
	c.TaxID = in.TaxID
	c.Notes = in.Notes
}

type ClientService struct {
	db   *gorm.DB
	gate *policy.Gate[uint]
}

func NewClientService(db *gorm.DB, gate *policy.Gate[uint]) *ClientService {
	return &ClientService{db: db, gate: gate}
}

func (s *ClientService) List(ctx context.Context, userID uint) ([]models.Client, error) {
	return listOwned[models.Client](ctx, s.db, s.gate, policy.ResourceClient, userID, "name")
}

func (s *ClientService) Get(ctx context.Context, userID, id uint) (*models.Client, error) {
	return loadOwned[models.Client](ctx, s.db, s.gate, policy.ResourceClient, policy.ActionView, userID, id)
}

func (s *ClientService) Create(ctx context.Context, userID uint, in ClientInput) (*models.Client, error) {
	return s.create(s.db.WithContext(ctx), userID, in)
}

func (s *ClientService) create(tx *gorm.DB, userID uint, in ClientInput) (*models.Client, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c := models.Client{UserID: userID}
	in.apply(&c)
	if err := tx.Create(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *ClientService) Update(ctx context.Context, userID, id uint, in ClientInput) (*models.Client, error) {
	c, err := loadOwned[models.Client](ctx, s.db, s.gate, policy.ResourceClient, policy.ActionUpdate, userID, id)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	in.apply(c)
	return c, s.db.WithContext(ctx).Save(c).Error
}

// Delete refuses clients that still have invoices.
func (s *ClientService) Delete(ctx context.Context, userID, id uint) error {
	c, err := loadOwned[models.Client](ctx, s.db, s.gate, policy.ResourceClient, policy.ActionDelete, userID, id)
	if err != nil {
		return err
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Invoice{}).Where("client_id = ?", c.ID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrInUse
	}
	return s.db.WithContext(ctx).Delete(c).Error
}

// ServiceInput describes a catalog entry. Active defaults to true.
type ServiceInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	UnitPrice   billing.Numeric `json:"unit_price"`
	Unit        string          `json:"unit"`
	Active      *bool           `json:"active"`
}

func (in ServiceInput) price(v validation.Violations) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(string(in.UnitPrice)))
	if err != nil {
		v["unit_price"] = "invalid"
		return decimal.Zero
	}
	validation.NonNegativeDecimal("unit_price", d, v)
	return d.Round(2)
}

type CatalogService struct {
	db   *gorm.DB
	gate *policy.Gate[uint]
}

func NewCatalogService(db *gorm.DB, gate *policy.Gate[uint]) *CatalogService {
	return &CatalogService{db: db, gate: gate}
}

func (s *CatalogService) List(ctx context.Context, userID uint) ([]models.Service, error) {
	return listOwned[models.Service](ctx, s.db, s.gate, policy.ResourceService, userID, "name")
}

func (s *CatalogService) Create(ctx context.Context, userID uint, in ServiceInput) (*models.Service, error) {
	v := make(validation.Violations)
	validation.Required("name", in.Name, v)
	price := in.price(v)
	if err := v.Err(); err != nil {
		return nil, err
	}
	svc := models.Service{
		UserID:      userID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		UnitPrice:   price,
		Unit:        in.Unit,
		Active:      in.Active == nil || *in.Active,
	}
	if svc.Unit == "" {
		svc.Unit = "unit"
	}
	return &svc, s.db.WithContext(ctx).Create(&svc).Error
}

func (s *CatalogService) Update(ctx context.Context, userID, id uint, in ServiceInput) (*models.Service, error) {
	svc, err := loadOwned[models.Service](ctx, s.db, s.gate, policy.ResourceService, policy.ActionUpdate, userID, id)
	if err != nil {
		return nil, err
	}
	v := make(validation.Violations)
	validation.Required("name", in.Name, v)
	price := in.price(v)
	if err := v.Err(); err != nil {
		return nil, err
	}
	svc.Name = strings.TrimSpace(in.Name)
	svc.Description = in.Description
	svc.UnitPrice = price
	if in.Unit != "" {
		svc.Unit = in.Unit
	}
	if in.Active != nil {
		svc.Active = *in.Active
	}
	return svc, s.db.WithContext(ctx).Save(svc).Error
}

func (s *CatalogService) Delete(ctx context.Context, userID, id uint) error {
	svc, err := loadOwned[models.Service](ctx, s.db, s.gate, policy.ResourceService, policy.ActionDelete, userID, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(svc).Error
}

// ExpenseInput is the body of expense create and update.
type ExpenseInput struct {
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Vendor      string          `json:"vendor"`
	Amount      billing.Numeric `json:"amount"`
	ExpenseDate string          `json:"expense_date"`
	ReceiptURL  string          `json:"receipt_url"`
}

func (in ExpenseInput) build(e *models.Expense) error {
	v := make(validation.Violations)
	validation.Required("category", in.Category, v)
	validation.OneOf("category", in.Category, models.ExpenseCategories, v)
	amount, err := decimal.NewFromString(strings.TrimSpace(string(in.Amount)))
	if err != nil {
		v["amount"] = "invalid"
	} else {
		validation.PositiveDecimal("amount", amount, v)
	}
	validation.Required("expense_date", in.ExpenseDate, v)
	date := validation.Date("expense_date", in.ExpenseDate, v)
	validation.MaxLen("receipt_url", in.ReceiptURL, 500, v)
	if err := v.Err(); err != nil {
		return err
	}
	e.Category = in.Category
	e.Description = in.Description
	e.Vendor = in.Vendor
	e.Amount = amount.Round(2)
	e.ExpenseDate = date
	e.ReceiptURL = in.ReceiptURL
	return nil
}

type ExpenseService struct {
	db   *gorm.DB
	gate *policy.Gate[uint]
}

func NewExpenseService(db *gorm.DB, gate *policy.Gate[uint]) *ExpenseService {
	return &ExpenseService{db: db, gate: gate}
}

// List returns expenses in [from, to]; zero bounds are open.
func (s *ExpenseService) List(ctx context.Context, userID uint, from, to time.Time) ([]models.Expense, error) {
	if err := s.gate.Authorize(ctx, userID, policy.ActionList, policy.ResourceExpense, nil); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if !from.IsZero() {
		q = q.Where("expense_date >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("expense_date < ?", to.AddDate(0, 0, 1))
	}
	out := []models.Expense{}
	if err := q.Order("expense_date DESC, id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ExpenseService) Create(ctx context.Context, userID uint, in ExpenseInput) (*models.Expense, error) {
	e := models.Expense{UserID: userID}
	if err := in.build(&e); err != nil {
		return nil, err
	}
	return &e, s.db.WithContext(ctx).Create(&e).Error
}

func (s *ExpenseService) Update(ctx context.Context, userID, id uint, in ExpenseInput) (*models.Expense, error) {
	e, err := loadOwned[models.Expense](ctx, s.db, s.gate, policy.ResourceExpense, policy.ActionUpdate, userID, id)
	if err != nil {
		return nil, err
	}
	if err := in.build(e); err != nil {
		return nil, err
	}
	return e, s.db.WithContext(ctx).Save(e).Error
}

func (s *ExpenseService) Delete(ctx context.Context, userID, id uint) error {
	e, err := loadOwned[models.Expense](ctx, s.db, s.gate, policy.ResourceExpense, policy.ActionDelete, userID, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(e).Error
}

// BankAccountInput is the body of a new bank account.
type BankAccountInput struct {
	BankName      string `json:"bank_name"`
	AccountHolder string `json:"account_holder"`
	IBAN          string `json:"iban"`
	BIC           string `json:"bic"`
	IsDefault     bool   `json:"is_default"`
}

// NormalizeIBAN strips spaces and upper-cases.
func NormalizeIBAN(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
}

type BankAccountService struct {
	db   *gorm.DB
	gate *policy.Gate[uint]
}

func NewBankAccountService(db *gorm.DB, gate *policy.Gate[uint]) *BankAccountService {
	return &BankAccountService{db: db, gate: gate}
}

func (s *BankAccountService) List(ctx context.Context, userID uint) ([]models.BankAccount, error) {
	return listOwned[models.BankAccount](ctx, s.db, s.gate, policy.ResourceBankAccount, userID, "is_default DESC, id")
}

func (s *BankAccountService) Create(ctx context.Context, userID uint, in BankAccountInput) (*models.BankAccount, error) {
	var out *models.BankAccount
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = s.create(tx, userID, in)
		return err
	})
	return out, err
}

// create makes the first account, or one flagged IsDefault, the default.
func (s *BankAccountService) create(tx *gorm.DB, userID uint, in BankAccountInput) (*models.BankAccount, error) {
	iban := NormalizeIBAN(in.IBAN)
	v := make(validation.Violations)
	validation.Required("bank_name", in.BankName, v)
	validation.Required("account_holder", in.AccountHolder, v)
	validation.Required("iban", iban, v)
	if iban != "" && (len(iban) < 15 || len(iban) > 34) {
		v["iban"] = "invalid_length"
	}
	validation.MaxLen("bic", in.BIC, 11, v)
	if err := v.Err(); err != nil {
		return nil, err
	}
	var existing int64
	if err := tx.Model(&models.BankAccount{}).Where("user_id = ?", userID).Count(&existing).Error; err != nil {
		return nil, err
	}
	acct := models.BankAccount{
		UserID:        userID,
		BankName:      strings.TrimSpace(in.BankName),
		AccountHolder: strings.TrimSpace(in.AccountHolder),
		IBAN:          iban,
		BIC:           strings.ToUpper(strings.TrimSpace(in.BIC)),
		IsDefault:     in.IsDefault || existing == 0,
	}
	if acct.IsDefault && existing > 0 {
		if err := tx.Model(&models.BankAccount{}).Where("user_id = ?", userID).Update("is_default", false).Error; err != nil {
			return nil, err
		}
	}
	return &acct, tx.Create(&acct).Error
}

func (s *BankAccountService) Delete(ctx context.Context, userID, id uint) error {
	acct, err := loadOwned[models.BankAccount](ctx, s.db, s.gate, policy.ResourceBankAccount, policy.ActionDelete, userID, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(acct).Error
}
