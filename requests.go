package main

import (
	"time"

	"bitbucket.org/mmdatafocus/construction_backend/models"
	"bitbucket.org/mmdatafocus/construction_backend/utils"
)

// Request bodies accept loosely formatted money ("$50,000", "50000.00", 50000)
// and convert to model inputs holding decimals.

type projectRequest struct {
	Code          string       `json:"code"`
	Name          string       `json:"name"`
	CustomerId    *int         `json:"customer_id"`
	ContractValue utils.Amount `json:"contract_value"`
	StartDate     *time.Time   `json:"start_date"`
	EndDate       *time.Time   `json:"end_date"`
}

func (r projectRequest) toInput() *models.NewProject {
	return &models.NewProject{
		Code:          r.Code,
		Name:          r.Name,
		CustomerId:    r.CustomerId,
		ContractValue: r.ContractValue.Decimal,
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
	}
}

type contractValueRequest struct {
	ContractValue utils.Amount `json:"contract_value"`
}

type budgetItemRequest struct {
	SupplierId            *int         `json:"supplier_id"`
	Trade                 string       `json:"trade"`
	Description           string       `json:"description"`
	QuotedAmount          utils.Amount `json:"quoted_amount"`
	QuotedAmountBeforeTax utils.Amount `json:"quoted_amount_before_tax"`
	QuotedTaxAmount       utils.Amount `json:"quoted_tax_amount"`
	QuotationReference    string       `json:"quotation_reference"`
	QuotationDate         *time.Time   `json:"quotation_date"`
}

func (r budgetItemRequest) toInput(projectId int) *models.NewBudgetItem {
	return &models.NewBudgetItem{
		ProjectId:             projectId,
		SupplierId:            r.SupplierId,
		Trade:                 r.Trade,
		Description:           r.Description,
		QuotedAmount:          r.QuotedAmount.Decimal,
		QuotedAmountBeforeTax: r.QuotedAmountBeforeTax.Ptr(),
		QuotedTaxAmount:       r.QuotedTaxAmount.Ptr(),
		QuotationReference:    r.QuotationReference,
		QuotationDate:         r.QuotationDate,
	}
}

type budgetItemUpdateRequest struct {
	SupplierId            *int         `json:"supplier_id"`
	Trade                 *string      `json:"trade"`
	Description           *string      `json:"description"`
	QuotedAmount          utils.Amount `json:"quoted_amount"`
	QuotedAmountBeforeTax utils.Amount `json:"quoted_amount_before_tax"`
	QuotedTaxAmount       utils.Amount `json:"quoted_tax_amount"`
	QuotationReference    *string      `json:"quotation_reference"`
	QuotationDate         *time.Time   `json:"quotation_date"`
}

func (r budgetItemUpdateRequest) toInput() *models.UpdateBudgetItem {
	return &models.UpdateBudgetItem{
		SupplierId:            r.SupplierId,
		Trade:                 r.Trade,
		Description:           r.Description,
		QuotedAmount:          r.QuotedAmount.Ptr(),
		QuotedAmountBeforeTax: r.QuotedAmountBeforeTax.Ptr(),
		QuotedTaxAmount:       r.QuotedTaxAmount.Ptr(),
		QuotationReference:    r.QuotationReference,
		QuotationDate:         r.QuotationDate,
	}
}

type extractedQuotationRequest struct {
	SupplierId         *int         `json:"supplier_id"`
	Trade              string       `json:"trade"`
	Description        string       `json:"description"`
	TotalAmount        utils.Amount `json:"total_amount"`
	AmountBeforeTax    utils.Amount `json:"amount_before_tax"`
	TaxAmount          utils.Amount `json:"tax_amount"`
	QuotationReference string       `json:"quotation_reference"`
	QuotationDate      *time.Time   `json:"quotation_date"`
	Confidence         float64      `json:"confidence"`
}

func (r extractedQuotationRequest) toInput(projectId int) *models.ExtractedQuotation {
	return &models.ExtractedQuotation{
		ProjectId:          projectId,
		SupplierId:         r.SupplierId,
		Trade:              r.Trade,
		Description:        r.Description,
		TotalAmount:        r.TotalAmount.Decimal,
		AmountBeforeTax:    r.AmountBeforeTax.Ptr(),
		TaxAmount:          r.TaxAmount.Ptr(),
		QuotationReference: r.QuotationReference,
		QuotationDate:      r.QuotationDate,
		Confidence:         r.Confidence,
	}
}

type costRequest struct {
	ActualCost    utils.Amount `json:"actual_cost"`
	CostBeforeTax utils.Amount `json:"cost_before_tax"`
	CostTaxAmount utils.Amount `json:"cost_tax_amount"`
}

func (r costRequest) toInput() (*models.CostInput, error) {
	if !r.ActualCost.Valid {
		return nil, utils.NewValidationError("actual_cost is required")
	}
	return &models.CostInput{
		ActualCost:    r.ActualCost.Decimal,
		CostBeforeTax: r.CostBeforeTax.Ptr(),
		CostTaxAmount: r.CostTaxAmount.Ptr(),
	}, nil
}

type purchaseOrderDetailRequest struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Quantity    utils.Amount `json:"quantity"`
	UnitRate    utils.Amount `json:"unit_rate"`
	TaxAmount   utils.Amount `json:"tax_amount"`
}

type issuePurchaseOrderRequest struct {
	OrderDate *time.Time                   `json:"order_date"`
	Notes     string                       `json:"notes"`
	Details   []purchaseOrderDetailRequest `json:"details"`
}

func (r issuePurchaseOrderRequest) toInput(projectId, budgetItemId int) *models.IssuePurchaseOrderInput {
	details := make([]models.NewPurchaseOrderDetail, len(r.Details))
	for i, d := range r.Details {
		details[i] = models.NewPurchaseOrderDetail{
			Name:        d.Name,
			Description: d.Description,
			Quantity:    d.Quantity.Decimal,
			UnitRate:    d.UnitRate.Decimal,
			TaxAmount:   d.TaxAmount.Ptr(),
		}
	}
	return &models.IssuePurchaseOrderInput{
		ProjectId:    projectId,
		BudgetItemId: budgetItemId,
		OrderDate:    r.OrderDate,
		Notes:        r.Notes,
		Details:      details,
	}
}

type invoiceRequest struct {
	CustomerId  *int         `json:"customer_id"`
	InvoiceDate *time.Time   `json:"invoice_date"`
	DueDate     *time.Time   `json:"due_date"`
	Subtotal    utils.Amount `json:"subtotal"`
	TaxAmount   utils.Amount `json:"tax_amount"`
	Notes       string       `json:"notes"`
}

func (r invoiceRequest) toInput(projectId int) *models.NewInvoice {
	return &models.NewInvoice{
		ProjectId:   projectId,
		CustomerId:  r.CustomerId,
		InvoiceDate: r.InvoiceDate,
		DueDate:     r.DueDate,
		Subtotal:    r.Subtotal.Decimal,
		TaxAmount:   r.TaxAmount.Ptr(),
		Notes:       r.Notes,
	}
}

type paymentRequest struct {
	Amount      utils.Amount `json:"amount"`
	PaymentDate *time.Time   `json:"payment_date"`
	Method      string       `json:"method"`
	Reference   string       `json:"reference"`
}

func (r paymentRequest) toInput(invoiceId int) *models.NewPayment {
	return &models.NewPayment{
		InvoiceId:   invoiceId,
		Amount:      r.Amount.Decimal,
		PaymentDate: r.PaymentDate,
		Method:      r.Method,
		Reference:   r.Reference,
	}
}
