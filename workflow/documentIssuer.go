package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/construction_backend/config"
	"bitbucket.org/mmdatafocus/construction_backend/models"
	"bitbucket.org/mmdatafocus/construction_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentIssuer mints numbered documents. Each issuance allocates its number
// on the same transaction that writes the document.
type DocumentIssuer struct {
	db        *gorm.DB
	ledger    *BudgetLedger
	refresher BudgetNotifier
	locker    IssuanceLocker
	logger    *logrus.Logger
	now       func() time.Time
}

// NewDocumentIssuer; refresher and locker may be nil.
func NewDocumentIssuer(db *gorm.DB, ledger *BudgetLedger, refresher BudgetNotifier, locker IssuanceLocker, logger *logrus.Logger) *DocumentIssuer {
	return &DocumentIssuer{
		db:        db,
		ledger:    ledger,
		refresher: refresher,
		locker:    locker,
		logger:    logger,
		now:       time.Now,
	}
}

func issuerFromContext(ctx context.Context) (utils.Principal, error) {
	principal, ok := utils.GetPrincipalFromContext(ctx)
	if !ok {
		return utils.Principal{}, utils.NewValidationError("issuing user is required")
	}
	return principal, nil
}

func (d *DocumentIssuer) documentDate(requested *time.Time) time.Time {
	if requested != nil && !requested.IsZero() {
		return *requested
	}
	return d.now()
}

// insertNumbered maps a unique violation on the number to a ConflictError.
func insertNumbered(tx *gorm.DB, value interface{}, number string) error {
	err := tx.Omit(clause.Associations).Create(value).Error
	if utils.IsDuplicateKeyErr(err) {
		return utils.NewConflictError("document number %s already exists", number)
	}
	return err
}

// IssuePO issues the purchase order of an approved budget item. Allocation, header, details,
// history and the budget item link commit together or not at all. The budget refresh runs
// after commit and its failure does not fail the issuance.
func (d *DocumentIssuer) IssuePO(ctx context.Context, input *models.IssuePurchaseOrderInput) (po *models.PurchaseOrder, err error) {
	ctx, span := tracer.Start(ctx, "DocumentIssuer.IssuePO")
	span.SetAttributes(attribute.Int("budget_item_id", input.BudgetItemId))
	defer func() { endSpan(span, err) }()

	if err := input.Validate(); err != nil {
		return nil, err
	}
	issuer, err := issuerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if d.locker != nil {
		release, err := d.locker.Lock(ctx, fmt.Sprintf("po-issue:%d", input.BudgetItemId))
		if err != nil {
			return nil, err
		}
		defer release()
	}

	item, err := models.FetchBudgetItem(d.db.WithContext(ctx), input.BudgetItemId)
	if err != nil {
		return nil, err
	}
	if err := checkPOPreconditions(item, input.ProjectId); err != nil {
		return nil, err
	}
	supplierCode := "VEN"
	if item.SupplierId != nil {
		supplier, err := models.GetSupplier(ctx, d.db, *item.SupplierId)
		if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, err
		}
		if supplier != nil {
			supplierCode = supplier.Code()
		}
	}
	orderDate := d.documentDate(input.OrderDate)

	var order models.PurchaseOrder
	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := models.FetchBudgetItem(tx.Clauses(clause.Locking{Strength: "UPDATE"}), item.ID)
		if err != nil {
			return err
		}
		if err := checkPOPreconditions(locked, input.ProjectId); err != nil {
			return err
		}

		// the order is for the approved quote; requested lines must add up to it
		subtotal, tax := locked.QuotedSubtotalAndTax()
		details := models.BuildPurchaseOrderDetails(*locked, input.Details)
		if lines := models.DetailsTotal(details); !lines.Equal(subtotal.Add(tax)) {
			return utils.NewValidationError("purchase order lines total %s but budget item %d is approved at %s",
				lines.StringFixed(2), locked.ID, subtotal.Add(tax).StringFixed(2))
		}

		periodPrefix := models.PeriodPrefix(orderDate)
		seq, err := models.AllocateSequence(tx, models.DocumentKindPurchaseOrder, periodPrefix)
		if err != nil {
			return err
		}

		order = models.PurchaseOrder{
			ProjectId:    locked.ProjectId,
			BudgetItemId: locked.ID,
			SupplierId:   locked.SupplierId,
			OrderNumber:  models.FormatDocumentNumber(models.DocumentKindPurchaseOrder, seq, supplierCode, orderDate),
			SequenceNo:   seq,
			PeriodPrefix: periodPrefix,
			OrderDate:    orderDate,
			Subtotal:     subtotal,
			TaxAmount:    tax,
			TotalAmount:  subtotal.Add(tax),
			Status:       models.PurchaseOrderStatusIssued,
			Notes:        input.Notes,
			IssuedBy:     issuer.ID,
		}
		if err := insertNumbered(tx, &order, order.OrderNumber); err != nil {
			return err
		}

		for i := range details {
			details[i].PurchaseOrderId = order.ID
		}
		if err := tx.Create(&details).Error; err != nil {
			return err
		}
		order.Details = details

		description := fmt.Sprintf("Purchase order %s issued for %s", order.OrderNumber, order.TotalAmount.StringFixed(2))
		if err := models.SaveHistoryCreate(tx, "purchase_orders", order.ID, order, description); err != nil {
			return err
		}
		return d.ledger.RecordPOIssuance(tx, locked.ID, order.ID, orderDate)
	})
	if err != nil {
		return nil, err
	}

	d.refresh(ctx, order.ProjectId)
	return &order, nil
}

func checkPOPreconditions(item *models.BudgetItem, projectId int) error {
	if item.ProjectId != projectId {
		return utils.NewValidationError("budget item %d does not belong to project %d", item.ID, projectId)
	}
	if item.PoIssued {
		return utils.NewConflictError("purchase order already issued for budget item %d", item.ID)
	}
	if !item.IsApproved {
		return utils.NewValidationError("budget item %d is not approved", item.ID)
	}
	return nil
}

func (d *DocumentIssuer) refresh(ctx context.Context, projectId int) {
	if d.refresher == nil {
		return
	}
	if err := d.refresher.BudgetChanged(ctx, projectId); err != nil {
		config.LogError(d.logger, "documentIssuer.go", "refresh", "budget refresh after issuance", projectId, err)
	}
}

// IssueInvoice bills a project. Invoices do not feed the budget summary.
func (d *DocumentIssuer) IssueInvoice(ctx context.Context, input *models.NewInvoice) (invoice *models.Invoice, err error) {
	ctx, span := tracer.Start(ctx, "DocumentIssuer.IssueInvoice")
	span.SetAttributes(attribute.Int("project_id", input.ProjectId))
	defer func() { endSpan(span, err) }()

	if err := input.Validate(); err != nil {
		return nil, err
	}
	issuer, err := issuerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	project, err := models.GetProject(ctx, d.db, input.ProjectId)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.NewValidationError("project %d not found", input.ProjectId)
		}
		return nil, err
	}
	customerId := input.CustomerId
	if customerId == nil {
		customerId = project.CustomerId
	} else if err := utils.ValidateResourceId[models.Customer](ctx, d.db, *customerId); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.NewValidationError("customer %d not found", *customerId)
		}
		return nil, err
	}

	invoiceDate := d.documentDate(input.InvoiceDate)
	subtotal, tax, total := input.Totals()

	var result models.Invoice
	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		periodPrefix := models.PeriodPrefix(invoiceDate)
		seq, err := models.AllocateSequence(tx, models.DocumentKindInvoice, periodPrefix)
		if err != nil {
			return err
		}
		result = models.Invoice{
			ProjectId:     project.ID,
			CustomerId:    customerId,
			InvoiceNumber: models.FormatDocumentNumber(models.DocumentKindInvoice, seq, "", invoiceDate),
			SequenceNo:    seq,
			PeriodPrefix:  periodPrefix,
			InvoiceDate:   invoiceDate,
			DueDate:       input.DueDate,
			Subtotal:      subtotal,
			TaxAmount:     tax,
			TotalAmount:   total,
			Status:        models.InvoiceStatusUnpaid,
			Notes:         input.Notes,
			IssuedBy:      issuer.ID,
		}
		if err := insertNumbered(tx, &result, result.InvoiceNumber); err != nil {
			return err
		}
		description := fmt.Sprintf("Invoice %s issued for %s", result.InvoiceNumber, total.StringFixed(2))
		return models.SaveHistoryCreate(tx, "invoices", result.ID, result, description)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// RecordPayment settles part or all of an invoice. Paying more than is outstanding is rejected.
func (d *DocumentIssuer) RecordPayment(ctx context.Context, input *models.NewPayment) (payment *models.Payment, err error) {
	ctx, span := tracer.Start(ctx, "DocumentIssuer.RecordPayment")
	span.SetAttributes(attribute.Int("invoice_id", input.InvoiceId))
	defer func() { endSpan(span, err) }()

	if err := input.Validate(); err != nil {
		return nil, err
	}
	issuer, err := issuerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	paymentDate := d.documentDate(input.PaymentDate)

	var result models.Payment
	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invoice models.Invoice
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&invoice, input.InvoiceId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if input.Amount.GreaterThan(invoice.Outstanding()) {
			return utils.NewValidationError("payment %s exceeds outstanding %s on invoice %s",
				input.Amount.StringFixed(2), invoice.Outstanding().StringFixed(2), invoice.InvoiceNumber)
		}

		periodPrefix := models.PeriodPrefix(paymentDate)
		seq, err := models.AllocateSequence(tx, models.DocumentKindPayment, periodPrefix)
		if err != nil {
			return err
		}
		result = models.Payment{
			InvoiceId:     invoice.ID,
			ProjectId:     invoice.ProjectId,
			PaymentNumber: models.FormatDocumentNumber(models.DocumentKindPayment, seq, "", paymentDate),
			SequenceNo:    seq,
			PeriodPrefix:  periodPrefix,
			PaymentDate:   paymentDate,
			Amount:        input.Amount,
			Method:        input.Method,
			Reference:     input.Reference,
			RecordedBy:    issuer.ID,
		}
		if err := insertNumbered(tx, &result, result.PaymentNumber); err != nil {
			return err
		}

		paid := invoice.PaidAmount.Add(input.Amount)
		if err := tx.Model(&invoice).Updates(map[string]interface{}{
			"paid_amount": paid,
			"status":      models.InvoiceStatusFor(invoice.TotalAmount, paid),
		}).Error; err != nil {
			return err
		}
		description := fmt.Sprintf("Payment %s of %s recorded against %s", result.PaymentNumber, input.Amount.StringFixed(2), invoice.InvoiceNumber)
		return models.SaveHistoryCreate(tx, "payments", result.ID, result, description)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
