package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/construction_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Invoice is a progress or final billing raised against a project.
type Invoice struct {
	ID            int             `gorm:"primary_key" json:"id"`
	ProjectId     int             `gorm:"index;not null" json:"project_id"`
	CustomerId    *int            `gorm:"index" json:"customer_id"`
	InvoiceNumber string          `gorm:"size:100;not null;uniqueIndex" json:"invoice_number"`
	SequenceNo    int64           `gorm:"not null" json:"sequence_no"`
	PeriodPrefix  string          `gorm:"size:20;not null" json:"period_prefix"`
	InvoiceDate   time.Time       `gorm:"not null" json:"invoice_date"`
	DueDate       *time.Time      `json:"due_date"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	TaxAmount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	PaidAmount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"paid_amount"`
	Status        InvoiceStatus   `gorm:"size:20;not null;index" json:"status"`
	Notes         string          `gorm:"type:text" json:"notes"`
	IssuedBy      int             `gorm:"not null" json:"issued_by"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInvoice struct {
	ProjectId   int              `json:"project_id" validate:"required,gt=0"`
	CustomerId  *int             `json:"customer_id"`
	InvoiceDate *time.Time       `json:"invoice_date"`
	DueDate     *time.Time       `json:"due_date"`
	Subtotal    decimal.Decimal  `json:"subtotal"`
	TaxAmount   *decimal.Decimal `json:"tax_amount"`
	Notes       string           `json:"notes"`
}

func (input NewInvoice) Validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if !input.Subtotal.IsPositive() {
		return utils.NewValidationError("invoice subtotal must be positive")
	}
	if input.TaxAmount != nil && input.TaxAmount.IsNegative() {
		return utils.NewValidationError("invoice tax amount must not be negative")
	}
	if input.InvoiceDate != nil && input.DueDate != nil && input.DueDate.Before(*input.InvoiceDate) {
		return utils.NewValidationError("due date must not be before invoice date")
	}
	return nil
}

// Totals returns subtotal, tax and total of the requested invoice.
func (input NewInvoice) Totals() (decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	tax := decimal.Zero
	if input.TaxAmount != nil {
		tax = *input.TaxAmount
	}
	return input.Subtotal, tax, input.Subtotal.Add(tax)
}

// InvoiceStatusFor derives the payment status from the running paid amount.
func InvoiceStatusFor(total, paid decimal.Decimal) InvoiceStatus {
	switch {
	case !paid.IsPositive():
		return InvoiceStatusUnpaid
	case paid.LessThan(total):
		return InvoiceStatusPartiallyPaid
	default:
		return InvoiceStatusPaid
	}
}

func (inv Invoice) Outstanding() decimal.Decimal {
	return inv.TotalAmount.Sub(inv.PaidAmount)
}

func GetInvoice(ctx context.Context, db *gorm.DB, id int) (*Invoice, error) {
	return utils.FetchModel[Invoice](ctx, db, id)
}

func ListInvoices(ctx context.Context, db *gorm.DB, projectId int) ([]Invoice, error) {
	var invoices []Invoice
	err := db.WithContext(ctx).Where("project_id = ?", projectId).Order("id").Find(&invoices).Error
	return invoices, err
}
