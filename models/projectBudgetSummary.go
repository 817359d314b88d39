package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/construction_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProjectBudgetSummary is derived from the project's budget items and contract value.
// It is never edited directly.
type ProjectBudgetSummary struct {
	ID                         int             `gorm:"primary_key" json:"id"`
	ProjectId                  int             `gorm:"uniqueIndex;not null" json:"project_id"`
	ContractValue              decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"contract_value"`
	TotalBudget                decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_budget"`
	TotalActualCost            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_actual_cost"`
	EstimatedProfit            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"estimated_profit"`
	EstimatedProfitMargin      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"estimated_profit_margin"`
	ActualProfit               decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"actual_profit"`
	ActualProfitMargin         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"actual_profit_margin"`
	BudgetUtilization          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"budget_utilization"`
	CostUtilization            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_utilization"`
	TotalSuppliers             int             `gorm:"not null;default:0" json:"total_suppliers"`
	SuppliersWithQuotation     int             `gorm:"not null;default:0" json:"suppliers_with_quotation"`
	SuppliersWithPurchaseOrder int             `gorm:"not null;default:0" json:"suppliers_with_purchase_order"`
	HasWarnings                bool            `gorm:"not null;default:false" json:"has_warnings"`
	WarningCount               int             `gorm:"not null;default:0" json:"warning_count"`
	CriticalWarningCount       int             `gorm:"not null;default:0" json:"critical_warning_count"`
	LastCalculatedAt           time.Time       `json:"last_calculated_at"`
	CreatedAt                  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// derived columns rewritten by every recompute; warning counters belong to the alert evaluator
var summaryDerivedColumns = []string{
	"contract_value",
	"total_budget",
	"total_actual_cost",
	"estimated_profit",
	"estimated_profit_margin",
	"actual_profit",
	"actual_profit_margin",
	"budget_utilization",
	"cost_utilization",
	"total_suppliers",
	"suppliers_with_quotation",
	"suppliers_with_purchase_order",
	"last_calculated_at",
	"updated_at",
}

// Percentage returns part/whole*100 rounded to 4 places, or 0 when whole <= 0.
func Percentage(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Mul(decimalOneHundred).DivRound(whole, 4)
}

// CalculateProjectBudgetSummary derives a summary from a snapshot. It does no I/O.
func CalculateProjectBudgetSummary(snapshot BudgetSnapshot, now time.Time) ProjectBudgetSummary {
	totalBudget := decimal.Zero
	totalActual := decimal.Zero
	suppliers := make(map[int]struct{})
	quoted := make(map[int]struct{})
	ordered := make(map[int]struct{})

	for _, item := range snapshot.Items {
		totalBudget = totalBudget.Add(item.QuotedAmount)
		totalActual = totalActual.Add(item.ActualCostOrZero())
		if item.SupplierId == nil {
			continue
		}
		supplierId := *item.SupplierId
		suppliers[supplierId] = struct{}{}
		if item.QuotedAmount.IsPositive() {
			quoted[supplierId] = struct{}{}
		}
		if item.PoIssued {
			ordered[supplierId] = struct{}{}
		}
	}

	contract := snapshot.ContractValue
	estimatedProfit := contract.Sub(totalBudget)
	actualProfit := contract.Sub(totalActual)

	return ProjectBudgetSummary{
		ProjectId:                  snapshot.ProjectId,
		ContractValue:              contract,
		TotalBudget:                totalBudget,
		TotalActualCost:            totalActual,
		EstimatedProfit:            estimatedProfit,
		EstimatedProfitMargin:      Percentage(estimatedProfit, contract),
		ActualProfit:               actualProfit,
		ActualProfitMargin:         Percentage(actualProfit, contract),
		BudgetUtilization:          Percentage(totalBudget, contract),
		CostUtilization:            Percentage(totalActual, contract),
		TotalSuppliers:             len(suppliers),
		SuppliersWithQuotation:     len(quoted),
		SuppliersWithPurchaseOrder: len(ordered),
		LastCalculatedAt:           now,
	}
}

// UpsertProjectBudgetSummary writes every derived column in one statement and re-reads the row.
func UpsertProjectBudgetSummary(ctx context.Context, tx *gorm.DB, summary *ProjectBudgetSummary) error {
	err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}},
		DoUpdates: clause.AssignmentColumns(summaryDerivedColumns),
	}).Create(summary).Error
	if err != nil {
		return err
	}
	var stored ProjectBudgetSummary
	if err := tx.WithContext(ctx).Where("project_id = ?", summary.ProjectId).First(&stored).Error; err != nil {
		return err
	}
	*summary = stored
	return nil
}

// UpdateSummaryWarnings stores the counters of one evaluation pass.
// The summary row must already exist.
func UpdateSummaryWarnings(ctx context.Context, tx *gorm.DB, projectId int, warnings, criticals int) error {
	result := tx.WithContext(ctx).Model(&ProjectBudgetSummary{}).
		Where("project_id = ?", projectId).
		Updates(map[string]interface{}{
			"has_warnings":           warnings+criticals > 0,
			"warning_count":          warnings,
			"critical_warning_count": criticals,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	// mysql reports zero affected rows when nothing changed, so check the row is there
	var count int64
	if err := tx.WithContext(ctx).Model(&ProjectBudgetSummary{}).Where("project_id = ?", projectId).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("budget summary of project %d: %w", projectId, utils.ErrorRecordNotFound)
	}
	return nil
}

func GetProjectBudgetSummary(ctx context.Context, db *gorm.DB, projectId int) (*ProjectBudgetSummary, error) {
	var summary ProjectBudgetSummary
	if err := db.WithContext(ctx).Where("project_id = ?", projectId).First(&summary).Error; err != nil {
		return nil, err
	}
	return &summary, nil
}
