package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/construction_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var decimalOneHundred = decimal.NewFromInt(100)

// BudgetItem is one supplier quotation / cost line tracked against a project.
type BudgetItem struct {
	ID                    int                 `gorm:"primary_key" json:"id"`
	ProjectId             int                 `gorm:"index;not null" json:"project_id"`
	SupplierId            *int                `gorm:"index" json:"supplier_id"`
	Trade                 string              `gorm:"size:100;not null" json:"trade"`
	Description           string              `gorm:"type:text" json:"description"`
	QuotedAmount          decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"quoted_amount"`
	QuotedAmountBeforeTax decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"quoted_amount_before_tax"`
	QuotedTaxAmount       decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"quoted_tax_amount"`
	QuotationReference    string              `gorm:"size:100" json:"quotation_reference"`
	QuotationDate         *time.Time          `json:"quotation_date"`
	ActualCost            decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"actual_cost"`
	ActualCostBeforeTax   decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"actual_cost_before_tax"`
	ActualTaxAmount       decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"actual_tax_amount"`
	// quoted - actual, set once an actual cost is recorded
	Variance           decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"variance"`
	VariancePercentage decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"variance_percentage"`
	IsApproved         bool                `gorm:"not null;default:false" json:"is_approved"`
	ApprovedBy         *int                `json:"approved_by"`
	ApprovedAt         *time.Time          `json:"approved_at"`
	NeedsReview        bool                `gorm:"not null;default:false" json:"needs_review"`
	// opaque score from the document extraction service
	ExtractionConfidence *float64         `json:"extraction_confidence"`
	PoIssued             bool             `gorm:"not null;default:false" json:"po_issued"`
	PurchaseOrderId      *int             `gorm:"index" json:"purchase_order_id"`
	PoIssuedDate         *time.Time       `json:"po_issued_date"`
	Status               BudgetItemStatus `gorm:"size:20;not null;index" json:"status"`
	CreatedAt            time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBudgetItem struct {
	ProjectId             int              `json:"project_id" validate:"required,gt=0"`
	SupplierId            *int             `json:"supplier_id"`
	Trade                 string           `json:"trade" validate:"required,max=100"`
	Description           string           `json:"description"`
	QuotedAmount          decimal.Decimal  `json:"quoted_amount"`
	QuotedAmountBeforeTax *decimal.Decimal `json:"quoted_amount_before_tax"`
	QuotedTaxAmount       *decimal.Decimal `json:"quoted_tax_amount"`
	QuotationReference    string           `json:"quotation_reference" validate:"max=100"`
	QuotationDate         *time.Time       `json:"quotation_date"`
}

// UpdateBudgetItem carries the editable fields; nil means unchanged.
type UpdateBudgetItem struct {
	SupplierId            *int             `json:"supplier_id"`
	Trade                 *string          `json:"trade" validate:"omitempty,max=100"`
	Description           *string          `json:"description"`
	QuotedAmount          *decimal.Decimal `json:"quoted_amount"`
	QuotedAmountBeforeTax *decimal.Decimal `json:"quoted_amount_before_tax"`
	QuotedTaxAmount       *decimal.Decimal `json:"quoted_tax_amount"`
	QuotationReference    *string          `json:"quotation_reference" validate:"omitempty,max=100"`
	QuotationDate         *time.Time       `json:"quotation_date"`
}

// ExtractedQuotation is the already-validated output of the document extraction service.
type ExtractedQuotation struct {
	ProjectId          int              `json:"project_id" validate:"required,gt=0"`
	SupplierId         *int             `json:"supplier_id"`
	Trade              string           `json:"trade" validate:"required,max=100"`
	Description        string           `json:"description"`
	TotalAmount        decimal.Decimal  `json:"total_amount"`
	AmountBeforeTax    *decimal.Decimal `json:"amount_before_tax"`
	TaxAmount          *decimal.Decimal `json:"tax_amount"`
	QuotationReference string           `json:"quotation_reference" validate:"max=100"`
	QuotationDate      *time.Time       `json:"quotation_date"`
	Confidence         float64          `json:"confidence" validate:"gte=0,lte=1"`
}

// CostInput records what a budget line actually cost.
type CostInput struct {
	ActualCost    decimal.Decimal  `json:"actual_cost"`
	CostBeforeTax *decimal.Decimal `json:"cost_before_tax"`
	CostTaxAmount *decimal.Decimal `json:"cost_tax_amount"`
}

// TaxSplit resolves a total with an optional pre-tax / tax breakdown.
// One missing half is derived from the other; both present must add up to total.
func TaxSplit(total decimal.Decimal, beforeTax, tax *decimal.Decimal) (decimal.NullDecimal, decimal.NullDecimal, error) {
	if total.IsNegative() {
		return decimal.NullDecimal{}, decimal.NullDecimal{}, utils.NewValidationError("amount must not be negative")
	}
	switch {
	case beforeTax == nil && tax == nil:
		return decimal.NullDecimal{}, decimal.NullDecimal{}, nil
	case beforeTax != nil && tax == nil:
		derived := total.Sub(*beforeTax)
		tax = &derived
	case beforeTax == nil && tax != nil:
		derived := total.Sub(*tax)
		beforeTax = &derived
	}
	if beforeTax.IsNegative() || tax.IsNegative() {
		return decimal.NullDecimal{}, decimal.NullDecimal{}, utils.NewValidationError("pre-tax and tax amounts must not be negative")
	}
	if !beforeTax.Add(*tax).Equal(total) {
		return decimal.NullDecimal{}, decimal.NullDecimal{}, utils.NewValidationError("pre-tax %s plus tax %s does not equal %s", beforeTax, tax, total)
	}
	return decimal.NewNullDecimal(*beforeTax), decimal.NewNullDecimal(*tax), nil
}

// ApplyActualCost sets the cost fields and derives variance.
func (item *BudgetItem) ApplyActualCost(cost decimal.Decimal, beforeTax, tax decimal.NullDecimal) {
	item.ActualCost = decimal.NewNullDecimal(cost)
	item.ActualCostBeforeTax = beforeTax
	item.ActualTaxAmount = tax
	item.RefreshVariance()
}

// RefreshVariance recomputes variance from the quoted amount and any recorded cost.
func (item *BudgetItem) RefreshVariance() {
	if !item.ActualCost.Valid {
		item.Variance = decimal.NullDecimal{}
		item.VariancePercentage = decimal.NullDecimal{}
		return
	}
	variance := item.QuotedAmount.Sub(item.ActualCost.Decimal)
	item.Variance = decimal.NewNullDecimal(variance)
	if item.QuotedAmount.IsZero() {
		item.VariancePercentage = decimal.NewNullDecimal(decimal.Zero)
	} else {
		item.VariancePercentage = decimal.NewNullDecimal(variance.Mul(decimalOneHundred).DivRound(item.QuotedAmount, 4))
	}
}

// ActualCostOrZero treats an unrecorded cost as zero.
func (item BudgetItem) ActualCostOrZero() decimal.Decimal {
	if item.ActualCost.Valid {
		return item.ActualCost.Decimal
	}
	return decimal.Zero
}

func (item BudgetItem) IsDeletable() bool {
	return !item.PoIssued
}

// fetch a budget item inside tx, RecordNotFound when missing
func FetchBudgetItem(tx *gorm.DB, id int) (*BudgetItem, error) {
	var item BudgetItem
	err := tx.First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FetchProjectBudgetItem loads an item only when it belongs to projectId.
func FetchProjectBudgetItem(tx *gorm.DB, projectId, id int) (*BudgetItem, error) {
	var item BudgetItem
	err := tx.Where("project_id = ?", projectId).First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// MarkBudgetItemPOIssued links the item to its purchase order.
// The po_issued = false guard makes a concurrent second issuance a conflict.
func MarkBudgetItemPOIssued(tx *gorm.DB, itemId int, purchaseOrderId int, issuedAt time.Time) error {
	result := tx.Model(&BudgetItem{}).
		Where("id = ? AND po_issued = ?", itemId, false).
		Updates(map[string]interface{}{
			"purchase_order_id": purchaseOrderId,
			"po_issued":         true,
			"po_issued_date":    issuedAt,
			"status":            BudgetItemStatusPOIssued,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.NewConflictError("purchase order already issued for budget item %d", itemId)
	}
	return nil
}

// BudgetSnapshot is the ledger state a summary is calculated from.
type BudgetSnapshot struct {
	ProjectId     int
	ContractValue decimal.Decimal
	Items         []BudgetItem
}

func LoadBudgetSnapshot(ctx context.Context, tx *gorm.DB, projectId int) (*BudgetSnapshot, error) {
	var project Project
	err := tx.WithContext(ctx).Select("id", "contract_value").First(&project, projectId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	var items []BudgetItem
	if err := tx.WithContext(ctx).
		Where("project_id = ?", projectId).
		Order("id").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return &BudgetSnapshot{
		ProjectId:     project.ID,
		ContractValue: project.ContractValue,
		Items:         items,
	}, nil
}
