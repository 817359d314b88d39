package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/construction_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PurchaseOrder struct {
	ID           int                   `gorm:"primary_key" json:"id"`
	ProjectId    int                   `gorm:"index;not null" json:"project_id"`
	BudgetItemId int                   `gorm:"uniqueIndex;not null" json:"budget_item_id"`
	SupplierId   *int                  `gorm:"index" json:"supplier_id"`
	OrderNumber  string                `gorm:"size:100;not null;uniqueIndex" json:"order_number"`
	SequenceNo   int64                 `gorm:"not null" json:"sequence_no"`
	PeriodPrefix string                `gorm:"size:20;not null" json:"period_prefix"`
	OrderDate    time.Time             `gorm:"not null" json:"order_date"`
	Subtotal     decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	TaxAmount    decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	TotalAmount  decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	Status       PurchaseOrderStatus   `gorm:"size:20;not null" json:"status"`
	Notes        string                `gorm:"type:text" json:"notes"`
	IssuedBy     int                   `gorm:"not null" json:"issued_by"`
	Details      []PurchaseOrderDetail `json:"purchase_order_details"`
	CreatedAt    time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseOrderDetail struct {
	ID              int             `gorm:"primary_key" json:"id"`
	PurchaseOrderId int             `gorm:"index;not null" json:"purchase_order_id"`
	Name            string          `gorm:"size:100;not null" json:"name"`
	Description     string          `gorm:"size:255" json:"description"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	UnitRate        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_rate"`
	TaxAmount       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	// quantity * unit_rate + tax_amount
	TotalAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
}

type NewPurchaseOrderDetail struct {
	Name        string           `json:"name" validate:"required,max=100"`
	Description string           `json:"description" validate:"max=255"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitRate    decimal.Decimal  `json:"unit_rate"`
	TaxAmount   *decimal.Decimal `json:"tax_amount"`
}

type IssuePurchaseOrderInput struct {
	ProjectId    int                      `json:"project_id" validate:"required,gt=0"`
	BudgetItemId int                      `json:"budget_item_id" validate:"required,gt=0"`
	OrderDate    *time.Time               `json:"order_date"`
	Notes        string                   `json:"notes"`
	Details      []NewPurchaseOrderDetail `json:"details"`
}

func (input NewPurchaseOrderDetail) validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if !input.Quantity.IsPositive() {
		return utils.NewValidationError("detail %q: quantity must be positive", input.Name)
	}
	if input.UnitRate.IsNegative() {
		return utils.NewValidationError("detail %q: unit rate must not be negative", input.Name)
	}
	if input.TaxAmount != nil && input.TaxAmount.IsNegative() {
		return utils.NewValidationError("detail %q: tax amount must not be negative", input.Name)
	}
	return nil
}

func (input IssuePurchaseOrderInput) Validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	for _, d := range input.Details {
		if err := d.validate(); err != nil {
			return err
		}
	}
	return nil
}

// BuildPurchaseOrderDetails maps the requested lines, or synthesizes one line from the item.
func BuildPurchaseOrderDetails(item BudgetItem, inputs []NewPurchaseOrderDetail) []PurchaseOrderDetail {
	if len(inputs) == 0 {
		subtotal, tax := item.QuotedSubtotalAndTax()
		return []PurchaseOrderDetail{{
			Name:        utils.TruncateRunes(item.Trade, 100),
			Description: utils.TruncateRunes(item.Description, 255),
			Quantity:    decimal.NewFromInt(1),
			UnitRate:    subtotal,
			TaxAmount:   tax,
			TotalAmount: subtotal.Add(tax),
		}}
	}
	details := make([]PurchaseOrderDetail, len(inputs))
	for i, in := range inputs {
		tax := decimal.Zero
		if in.TaxAmount != nil {
			tax = *in.TaxAmount
		}
		details[i] = PurchaseOrderDetail{
			Name:        in.Name,
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitRate:    in.UnitRate,
			TaxAmount:   tax,
			TotalAmount: in.Quantity.Mul(in.UnitRate).Add(tax),
		}
	}
	return details
}

// DetailsTotal sums the line totals.
func DetailsTotal(details []PurchaseOrderDetail) decimal.Decimal {
	total := decimal.Zero
	for _, d := range details {
		total = total.Add(d.TotalAmount)
	}
	return total
}

// QuotedSubtotalAndTax uses the quoted split, falling back to the quoted total with zero tax.
func (item BudgetItem) QuotedSubtotalAndTax() (decimal.Decimal, decimal.Decimal) {
	if item.QuotedAmountBeforeTax.Valid {
		tax := decimal.Zero
		if item.QuotedTaxAmount.Valid {
			tax = item.QuotedTaxAmount.Decimal
		}
		return item.QuotedAmountBeforeTax.Decimal, tax
	}
	return item.QuotedAmount, decimal.Zero
}

func GetPurchaseOrder(ctx context.Context, db *gorm.DB, id int) (*PurchaseOrder, error) {
	return utils.FetchModel[PurchaseOrder](ctx, db, id, "Details")
}

func ListPurchaseOrders(ctx context.Context, db *gorm.DB, projectId int) ([]PurchaseOrder, error) {
	var orders []PurchaseOrder
	err := db.WithContext(ctx).
		Preload("Details").
		Where("project_id = ?", projectId).
		Order("id").
		Find(&orders).Error
	return orders, err
}
