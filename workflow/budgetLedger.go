package workflow

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/construction_backend/config"
	"bitbucket.org/mmdatafocus/construction_backend/models"
	"bitbucket.org/mmdatafocus/construction_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const budgetItemReference = "budget_items"

// BudgetLedger owns budget item mutations. It never recomputes anything itself;
// every committed change is reported to the notifier.
type BudgetLedger struct {
	db              *gorm.DB
	notifier        BudgetNotifier
	logger          *logrus.Logger
	reviewThreshold float64
	now             func() time.Time
}

func NewBudgetLedger(db *gorm.DB, notifier BudgetNotifier, logger *logrus.Logger, reviewThreshold float64) *BudgetLedger {
	return &BudgetLedger{
		db:              db,
		notifier:        notifier,
		logger:          logger,
		reviewThreshold: reviewThreshold,
		now:             time.Now,
	}
}

func (l *BudgetLedger) notify(ctx context.Context, projectId int) {
	if l.notifier == nil {
		return
	}
	if err := l.notifier.BudgetChanged(ctx, projectId); err != nil {
		config.LogError(l.logger, "budgetLedger.go", "notify", "budget refresh after ledger change", projectId, err)
	}
}

func (l *BudgetLedger) validateRefs(ctx context.Context, projectId int, supplierId *int) error {
	if err := utils.ValidateResourceId[models.Project](ctx, l.db, projectId); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return utils.NewValidationError("project %d not found", projectId)
		}
		return err
	}
	if supplierId != nil {
		if err := utils.ValidateResourceId[models.Supplier](ctx, l.db, *supplierId); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return utils.NewValidationError("supplier %d not found", *supplierId)
			}
			return err
		}
	}
	return nil
}

func (l *BudgetLedger) insert(ctx context.Context, item *models.BudgetItem, description string) error {
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(item).Error; err != nil {
			return err
		}
		return models.SaveHistoryCreate(tx, budgetItemReference, item.ID, item, description)
	})
	if err != nil {
		return err
	}
	l.notify(ctx, item.ProjectId)
	return nil
}

func (l *BudgetLedger) Create(ctx context.Context, input *models.NewBudgetItem) (*models.BudgetItem, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	beforeTax, tax, err := models.TaxSplit(input.QuotedAmount, input.QuotedAmountBeforeTax, input.QuotedTaxAmount)
	if err != nil {
		return nil, err
	}
	if err := l.validateRefs(ctx, input.ProjectId, input.SupplierId); err != nil {
		return nil, err
	}

	item := models.BudgetItem{
		ProjectId:             input.ProjectId,
		SupplierId:            input.SupplierId,
		Trade:                 input.Trade,
		Description:           input.Description,
		QuotedAmount:          input.QuotedAmount,
		QuotedAmountBeforeTax: beforeTax,
		QuotedTaxAmount:       tax,
		QuotationReference:    input.QuotationReference,
		QuotationDate:         input.QuotationDate,
		Status:                models.BudgetItemStatusQuoted,
	}
	if err := l.insert(ctx, &item, "Budget item created"); err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateFromExtraction stores a quotation read by the document extraction service.
// Low confidence results are flagged for review.
func (l *BudgetLedger) CreateFromExtraction(ctx context.Context, input *models.ExtractedQuotation) (*models.BudgetItem, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	beforeTax, tax, err := models.TaxSplit(input.TotalAmount, input.AmountBeforeTax, input.TaxAmount)
	if err != nil {
		return nil, err
	}
	if err := l.validateRefs(ctx, input.ProjectId, input.SupplierId); err != nil {
		return nil, err
	}

	confidence := input.Confidence
	item := models.BudgetItem{
		ProjectId:             input.ProjectId,
		SupplierId:            input.SupplierId,
		Trade:                 input.Trade,
		Description:           input.Description,
		QuotedAmount:          input.TotalAmount,
		QuotedAmountBeforeTax: beforeTax,
		QuotedTaxAmount:       tax,
		QuotationReference:    input.QuotationReference,
		QuotationDate:         input.QuotationDate,
		ExtractionConfidence:  &confidence,
		NeedsReview:           confidence < l.reviewThreshold,
		Status:                models.BudgetItemStatusQuoted,
	}
	if err := l.insert(ctx, &item, "Budget item created from quotation document"); err != nil {
		return nil, err
	}
	return &item, nil
}

// mutate loads the item of projectId under a row lock, applies fn and saves it with a history row.
// fn returning changed == false commits nothing and skips the notification.
func (l *BudgetLedger) mutate(ctx context.Context, projectId, id int, description string,
	fn func(tx *gorm.DB, item *models.BudgetItem) (bool, error)) (*models.BudgetItem, error) {

	var item *models.BudgetItem
	changed := false
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		item, err = models.FetchProjectBudgetItem(tx.Clauses(clause.Locking{Strength: "UPDATE"}), projectId, id)
		if err != nil {
			return err
		}
		before := *item
		if changed, err = fn(tx, item); err != nil || !changed {
			return err
		}
		if err := tx.Save(item).Error; err != nil {
			return err
		}
		return models.SaveHistoryUpdate(tx, budgetItemReference, item.ID, before, item, description)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		l.notify(ctx, item.ProjectId)
	}
	return item, nil
}

// Update edits quote, supplier and quotation fields. Items with an issued PO are frozen.
// Changing the quote or supplier of an approved item sends it back to QUOTED.
func (l *BudgetLedger) Update(ctx context.Context, projectId, id int, input *models.UpdateBudgetItem) (*models.BudgetItem, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if input.SupplierId != nil {
		if err := utils.ValidateResourceId[models.Supplier](ctx, l.db, *input.SupplierId); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return nil, utils.NewValidationError("supplier %d not found", *input.SupplierId)
			}
			return nil, err
		}
	}

	return l.mutate(ctx, projectId, id, "Budget item updated", func(tx *gorm.DB, item *models.BudgetItem) (bool, error) {
		if item.PoIssued {
			return false, utils.NewConflictError("budget item %d already has purchase order %d", item.ID, utils.DereferencePtr(item.PurchaseOrderId))
		}
		if item.Status == models.BudgetItemStatusRejected {
			return false, utils.NewConflictError("budget item %d is rejected", item.ID)
		}

		supplierChanged := input.SupplierId != nil && *input.SupplierId != utils.DereferencePtr(item.SupplierId)
		if input.SupplierId != nil {
			item.SupplierId = input.SupplierId
		}
		if input.Trade != nil {
			item.Trade = *input.Trade
		}
		if input.Description != nil {
			item.Description = *input.Description
		}
		if input.QuotationReference != nil {
			item.QuotationReference = *input.QuotationReference
		}
		if input.QuotationDate != nil {
			item.QuotationDate = input.QuotationDate
		}

		quoteChanged := false
		if input.QuotedAmount != nil || input.QuotedAmountBeforeTax != nil || input.QuotedTaxAmount != nil {
			amount := item.QuotedAmount
			if input.QuotedAmount != nil {
				amount = *input.QuotedAmount
			}
			beforeTax, tax, err := models.TaxSplit(amount, input.QuotedAmountBeforeTax, input.QuotedTaxAmount)
			if err != nil {
				return false, err
			}
			quoteChanged = !amount.Equal(item.QuotedAmount)
			item.QuotedAmount = amount
			item.QuotedAmountBeforeTax = beforeTax
			item.QuotedTaxAmount = tax
			item.RefreshVariance()
		}
		if (quoteChanged || supplierChanged) && item.IsApproved {
			item.IsApproved = false
			item.ApprovedBy = nil
			item.ApprovedAt = nil
			item.Status = models.BudgetItemStatusQuoted
		}
		return true, nil
	})
}

func (l *BudgetLedger) SubmitForApproval(ctx context.Context, projectId, id int) (*models.BudgetItem, error) {
	return l.mutate(ctx, projectId, id, "Budget item submitted for approval", func(tx *gorm.DB, item *models.BudgetItem) (bool, error) {
		switch item.Status {
		case models.BudgetItemStatusPendingApproval:
			return false, nil
		case models.BudgetItemStatusQuoted:
			item.Status = models.BudgetItemStatusPendingApproval
			return true, nil
		default:
			return false, utils.NewConflictError("budget item %d cannot be submitted from status %s", item.ID, item.Status)
		}
	})
}

// Approve moves a QUOTED or PENDING_APPROVAL item to APPROVED. Approving an approved item is a no-op.
func (l *BudgetLedger) Approve(ctx context.Context, projectId, id int, approver utils.Principal) (*models.BudgetItem, error) {
	return l.mutate(ctx, projectId, id, "Budget item approved", func(tx *gorm.DB, item *models.BudgetItem) (bool, error) {
		if item.IsApproved || item.PoIssued {
			return false, nil
		}
		if !item.Status.CanApprove() {
			return false, utils.NewConflictError("budget item %d cannot be approved from status %s", item.ID, item.Status)
		}
		if item.SupplierId == nil {
			return false, utils.NewValidationError("budget item %d has no supplier", item.ID)
		}
		if !item.QuotedAmount.IsPositive() {
			return false, utils.NewValidationError("budget item %d has no quoted amount", item.ID)
		}
		approvedAt := l.now()
		approvedBy := approver.ID
		item.IsApproved = true
		item.ApprovedBy = &approvedBy
		item.ApprovedAt = &approvedAt
		item.NeedsReview = false
		item.Status = models.BudgetItemStatusApproved
		return true, nil
	})
}

func (l *BudgetLedger) Reject(ctx context.Context, projectId, id int) (*models.BudgetItem, error) {
	return l.mutate(ctx, projectId, id, "Budget item rejected", func(tx *gorm.DB, item *models.BudgetItem) (bool, error) {
		if item.PoIssued {
			return false, utils.NewConflictError("budget item %d already has a purchase order", item.ID)
		}
		if item.Status == models.BudgetItemStatusRejected {
			return false, nil
		}
		item.IsApproved = false
		item.ApprovedBy = nil
		item.ApprovedAt = nil
		item.Status = models.BudgetItemStatusRejected
		return true, nil
	})
}

func (l *BudgetLedger) RecordCost(ctx context.Context, projectId, id int, input *models.CostInput) (*models.BudgetItem, error) {
	beforeTax, tax, err := models.TaxSplit(input.ActualCost, input.CostBeforeTax, input.CostTaxAmount)
	if err != nil {
		return nil, err
	}
	return l.mutate(ctx, projectId, id, "Budget item actual cost recorded", func(tx *gorm.DB, item *models.BudgetItem) (bool, error) {
		if item.Status == models.BudgetItemStatusRejected {
			return false, utils.NewConflictError("budget item %d is rejected", item.ID)
		}
		item.ApplyActualCost(input.ActualCost, beforeTax, tax)
		return true, nil
	})
}

// RecordPOIssuance runs on the issuing transaction; the caller refreshes the budget after commit.
func (l *BudgetLedger) RecordPOIssuance(tx *gorm.DB, itemId int, purchaseOrderId int, issuedAt time.Time) error {
	return models.MarkBudgetItemPOIssued(tx, itemId, purchaseOrderId, issuedAt)
}

// Delete removes an item. Items with an issued PO cannot be deleted.
func (l *BudgetLedger) Delete(ctx context.Context, projectId, id int) error {
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := models.FetchProjectBudgetItem(tx.Clauses(clause.Locking{Strength: "UPDATE"}), projectId, id)
		if err != nil {
			return err
		}
		if item.PoIssued {
			return utils.NewConflictError("budget item %d has purchase order %d and cannot be deleted", item.ID, utils.DereferencePtr(item.PurchaseOrderId))
		}
		// po_issued guard again in case the lock is a no-op on this dialect
		result := tx.Where("po_issued = ?", false).Delete(&models.BudgetItem{}, item.ID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return utils.NewConflictError("budget item %d changed while deleting", item.ID)
		}
		return models.SaveHistoryDelete(tx, budgetItemReference, item.ID, item, "Budget item deleted")
	})
	if err != nil {
		return err
	}
	l.notify(ctx, projectId)
	return nil
}

// SetContractValue changes the project value the budget is measured against.
func (l *BudgetLedger) SetContractValue(ctx context.Context, projectId int, value decimal.Decimal) (*models.Project, error) {
	if value.IsNegative() {
		return nil, utils.NewValidationError("contract value must not be negative")
	}
	var project models.Project
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&project, projectId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		before := project
		if err := tx.Model(&project).Update("contract_value", value).Error; err != nil {
			return err
		}
		project.ContractValue = value
		return models.SaveHistoryUpdate(tx, "projects", project.ID, before, project, "Contract value changed")
	})
	if err != nil {
		return nil, err
	}
	l.notify(ctx, projectId)
	return &project, nil
}

func (l *BudgetLedger) Snapshot(ctx context.Context, projectId int) (*models.BudgetSnapshot, error) {
	return models.LoadBudgetSnapshot(ctx, l.db, projectId)
}

func (l *BudgetLedger) Get(ctx context.Context, projectId, id int) (*models.BudgetItem, error) {
	return models.FetchProjectBudgetItem(l.db.WithContext(ctx), projectId, id)
}
