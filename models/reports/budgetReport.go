package reports

import (
	"context"
	"io"

	"bitbucket.org/mmdatafocus/construction_backend/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const (
	summarySheet = "Summary"
	itemsSheet   = "Budget Items"
)

type ExcelExporter interface {
	GetCellValues() []interface{}
}

type BudgetReportLine struct {
	BudgetItemId    int
	Trade           string
	SupplierName    string
	Status          models.BudgetItemStatus
	QuotedAmount    decimal.Decimal
	ActualCost      decimal.Decimal
	Variance        decimal.Decimal
	PoIssued        bool
	NeedsReview     bool
	QuotationRef    string
	PurchaseOrderNo string
}

func (l BudgetReportLine) GetCellValues() []interface{} {
	return []interface{}{
		l.BudgetItemId,
		l.Trade,
		l.SupplierName,
		string(l.Status),
		l.QuotedAmount.InexactFloat64(),
		l.ActualCost.InexactFloat64(),
		l.Variance.InexactFloat64(),
		l.PoIssued,
		l.NeedsReview,
		l.QuotationRef,
		l.PurchaseOrderNo,
	}
}

var budgetItemHeadings = []string{
	"ID", "Trade", "Supplier", "Status", "Quoted", "Actual Cost", "Variance",
	"PO Issued", "Needs Review", "Quotation Ref", "PO Number",
}

type BudgetReport struct {
	Project models.Project
	Summary models.ProjectBudgetSummary
	Lines   []BudgetReportLine
}

// GetBudgetReport collects the items of a project with supplier names and PO numbers.
func GetBudgetReport(ctx context.Context, db *gorm.DB, summary models.ProjectBudgetSummary) (*BudgetReport, error) {
	project, err := models.GetProject(ctx, db, summary.ProjectId)
	if err != nil {
		return nil, err
	}

	var items []models.BudgetItem
	if err := db.WithContext(ctx).Where("project_id = ?", project.ID).Order("id").Find(&items).Error; err != nil {
		return nil, err
	}

	var suppliers []models.Supplier
	if err := db.WithContext(ctx).
		Where("id IN (?)", db.Model(&models.BudgetItem{}).Select("supplier_id").Where("project_id = ?", project.ID)).
		Find(&suppliers).Error; err != nil {
		return nil, err
	}
	supplierNames := make(map[int]string, len(suppliers))
	for _, s := range suppliers {
		supplierNames[s.ID] = s.Name
	}

	orders, err := models.ListPurchaseOrders(ctx, db, project.ID)
	if err != nil {
		return nil, err
	}
	orderNumbers := make(map[int]string, len(orders))
	for _, o := range orders {
		orderNumbers[o.ID] = o.OrderNumber
	}

	lines := make([]BudgetReportLine, 0, len(items))
	for _, item := range items {
		line := BudgetReportLine{
			BudgetItemId: item.ID,
			Trade:        item.Trade,
			Status:       item.Status,
			QuotedAmount: item.QuotedAmount,
			ActualCost:   item.ActualCostOrZero(),
			PoIssued:     item.PoIssued,
			NeedsReview:  item.NeedsReview,
			QuotationRef: item.QuotationReference,
		}
		if item.Variance.Valid {
			line.Variance = item.Variance.Decimal
		}
		if item.SupplierId != nil {
			line.SupplierName = supplierNames[*item.SupplierId]
		}
		if item.PurchaseOrderId != nil {
			line.PurchaseOrderNo = orderNumbers[*item.PurchaseOrderId]
		}
		lines = append(lines, line)
	}

	return &BudgetReport{Project: *project, Summary: summary, Lines: lines}, nil
}

// WriteExcel renders the report as a two-sheet workbook.
func (r *BudgetReport) WriteExcel(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return err
	}

	s := r.Summary
	summaryRows := [][]interface{}{
		{"Project", r.Project.Name},
		{"Project Code", r.Project.Code},
		{"Contract Value", s.ContractValue.InexactFloat64()},
		{"Total Budget", s.TotalBudget.InexactFloat64()},
		{"Total Actual Cost", s.TotalActualCost.InexactFloat64()},
		{"Estimated Profit", s.EstimatedProfit.InexactFloat64()},
		{"Estimated Profit Margin %", s.EstimatedProfitMargin.InexactFloat64()},
		{"Actual Profit", s.ActualProfit.InexactFloat64()},
		{"Actual Profit Margin %", s.ActualProfitMargin.InexactFloat64()},
		{"Budget Utilization %", s.BudgetUtilization.InexactFloat64()},
		{"Cost Utilization %", s.CostUtilization.InexactFloat64()},
		{"Suppliers", s.TotalSuppliers},
		{"Suppliers With Quotation", s.SuppliersWithQuotation},
		{"Suppliers With PO", s.SuppliersWithPurchaseOrder},
		{"Warnings", s.WarningCount},
		{"Critical Warnings", s.CriticalWarningCount},
		{"Last Calculated", s.LastCalculatedAt.Format("2006-01-02 15:04:05")},
	}
	for i, row := range summaryRows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}

	headings := make([]interface{}, len(budgetItemHeadings))
	for i, h := range budgetItemHeadings {
		headings[i] = h
	}
	if err := f.SetSheetRow(itemsSheet, "A1", &headings); err != nil {
		return err
	}
	for i, line := range r.Lines {
		if err := writeExcelRow(f, itemsSheet, i+2, line); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func writeExcelRow(f *excelize.File, sheet string, rowNo int, row ExcelExporter) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return err
	}
	values := row.GetCellValues()
	return f.SetSheetRow(sheet, cell, &values)
}
