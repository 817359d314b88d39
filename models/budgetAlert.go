package models

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BudgetAlert is append-only; evaluating the same condition twice writes two rows.
type BudgetAlert struct {
	ID        int             `gorm:"primary_key" json:"id"`
	ProjectId int             `gorm:"index;not null" json:"project_id"`
	AlertType BudgetAlertType `gorm:"size:40;not null" json:"alert_type"`
	Severity  AlertSeverity   `gorm:"size:10;not null" json:"severity"`
	Title     string          `gorm:"size:255;not null" json:"title"`
	Message   string          `gorm:"type:text" json:"message"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type BudgetAlertDraft struct {
	ProjectId int             `json:"project_id"`
	AlertType BudgetAlertType `json:"alert_type"`
	Severity  AlertSeverity   `json:"severity"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
}

var (
	approachingUtilization = decimal.NewFromInt(90)
	lowMarginThreshold     = decimal.NewFromInt(10)
)

// EvaluateBudgetRules applies the alert rules in fixed order. Rules are independent.
func EvaluateBudgetRules(summary ProjectBudgetSummary) []BudgetAlertDraft {
	drafts := make([]BudgetAlertDraft, 0, 4)
	add := func(alertType BudgetAlertType, severity AlertSeverity, title, message string) {
		drafts = append(drafts, BudgetAlertDraft{
			ProjectId: summary.ProjectId,
			AlertType: alertType,
			Severity:  severity,
			Title:     title,
			Message:   message,
		})
	}

	if summary.TotalBudget.GreaterThan(summary.ContractValue) {
		add(BudgetAlertTypeBudgetExceedsContract, AlertSeverityCritical,
			"Budget Exceeds Contract Value",
			fmt.Sprintf("Total budget %s exceeds contract value %s by %s.",
				summary.TotalBudget.StringFixed(2),
				summary.ContractValue.StringFixed(2),
				summary.TotalBudget.Sub(summary.ContractValue).StringFixed(2)))
	}
	if summary.BudgetUtilization.GreaterThan(approachingUtilization) {
		add(BudgetAlertTypeBudgetApproachingContract, AlertSeverityWarning,
			"Budget Approaching Contract Value",
			fmt.Sprintf("Budget utilization is %s%% of the contract value.", summary.BudgetUtilization.StringFixed(2)))
	}
	if summary.EstimatedProfit.IsNegative() {
		add(BudgetAlertTypeProjectLoss, AlertSeverityCritical,
			"Project Showing Loss",
			fmt.Sprintf("Estimated loss of %s.", summary.EstimatedProfit.Abs().StringFixed(2)))
	}
	margin := summary.EstimatedProfitMargin
	if !margin.IsNegative() && margin.LessThan(lowMarginThreshold) {
		add(BudgetAlertTypeLowProfitMargin, AlertSeverityWarning,
			"Low Profit Margin",
			fmt.Sprintf("Estimated profit margin is %s%%.", margin.StringFixed(2)))
	}
	return drafts
}

// CountSeverities returns (warnings, criticals).
func CountSeverities(drafts []BudgetAlertDraft) (int, int) {
	var warnings, criticals int
	for _, d := range drafts {
		switch d.Severity {
		case AlertSeverityWarning:
			warnings++
		case AlertSeverityCritical:
			criticals++
		}
	}
	return warnings, criticals
}

func CreateBudgetAlerts(tx *gorm.DB, drafts []BudgetAlertDraft) ([]BudgetAlert, error) {
	if len(drafts) == 0 {
		return nil, nil
	}
	alerts := make([]BudgetAlert, len(drafts))
	for i, d := range drafts {
		alerts[i] = BudgetAlert{
			ProjectId: d.ProjectId,
			AlertType: d.AlertType,
			Severity:  d.Severity,
			Title:     d.Title,
			Message:   d.Message,
		}
	}
	if err := tx.Create(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

func ListBudgetAlerts(ctx context.Context, db *gorm.DB, projectId int, limit int) ([]BudgetAlert, error) {
	var alerts []BudgetAlert
	query := db.WithContext(ctx).Where("project_id = ?", projectId).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&alerts).Error
	return alerts, err
}
