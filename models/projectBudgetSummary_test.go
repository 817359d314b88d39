package models

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/construction_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentage(t *testing.T) {
	cases := []struct {
		part, whole string
		expected    string
	}{
		{"25", "100", "25"},
		{"50000", "200000", "25"},
		{"1", "3", "33.3333"},
		{"2", "3", "66.6667"},
		{"-5000", "100000", "-5"},
		{"5", "0", "0"},
		{"5", "-10", "0"},
	}
	for _, tc := range cases {
		got := Percentage(dec(tc.part), dec(tc.whole))
		if !got.Equal(dec(tc.expected)) {
			t.Fatalf("Percentage(%s, %s) expected %s, got %s", tc.part, tc.whole, tc.expected, got)
		}
	}
}

func TestCalculateProjectBudgetSummary_DerivesEveryField(t *testing.T) {
	now := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	snapshot := BudgetSnapshot{
		ProjectId:     3,
		ContractValue: dec("200000"),
		Items: []BudgetItem{
			{SupplierId: intPtr(1), QuotedAmount: dec("50000"), ActualCost: decimal.NewNullDecimal(dec("48000")), PoIssued: true},
			{SupplierId: intPtr(1), QuotedAmount: dec("10000")},
			{SupplierId: intPtr(2), QuotedAmount: dec("0")},
			{QuotedAmount: dec("20000")},
		},
	}

	s := CalculateProjectBudgetSummary(snapshot, now)

	assert.Equal(t, 3, s.ProjectId)
	assert.True(t, s.TotalBudget.Equal(dec("80000")), s.TotalBudget.String())
	assert.True(t, s.TotalActualCost.Equal(dec("48000")), s.TotalActualCost.String())
	assert.True(t, s.EstimatedProfit.Equal(dec("120000")), s.EstimatedProfit.String())
	assert.True(t, s.EstimatedProfitMargin.Equal(dec("60")), s.EstimatedProfitMargin.String())
	assert.True(t, s.ActualProfit.Equal(dec("152000")), s.ActualProfit.String())
	assert.True(t, s.ActualProfitMargin.Equal(dec("76")), s.ActualProfitMargin.String())
	assert.True(t, s.BudgetUtilization.Equal(dec("40")), s.BudgetUtilization.String())
	assert.True(t, s.CostUtilization.Equal(dec("24")), s.CostUtilization.String())
	assert.Equal(t, 2, s.TotalSuppliers)
	assert.Equal(t, 1, s.SuppliersWithQuotation)
	assert.Equal(t, 1, s.SuppliersWithPurchaseOrder)
	assert.Equal(t, now, s.LastCalculatedAt)
}

func TestCalculateProjectBudgetSummary_ZeroContractValue(t *testing.T) {
	s := CalculateProjectBudgetSummary(BudgetSnapshot{
		ProjectId:     1,
		ContractValue: decimal.Zero,
		Items:         []BudgetItem{{QuotedAmount: dec("1000"), ActualCost: decimal.NewNullDecimal(dec("900"))}},
	}, time.Now())

	for name, v := range map[string]decimal.Decimal{
		"estimated margin":   s.EstimatedProfitMargin,
		"actual margin":      s.ActualProfitMargin,
		"budget utilization": s.BudgetUtilization,
		"cost utilization":   s.CostUtilization,
	} {
		assert.Truef(t, v.IsZero(), "%s expected 0, got %s", name, v)
	}
	assert.True(t, s.EstimatedProfit.Equal(dec("-1000")))
}

func TestCalculateProjectBudgetSummary_EmptyProject(t *testing.T) {
	s := CalculateProjectBudgetSummary(BudgetSnapshot{ProjectId: 1, ContractValue: dec("100")}, time.Now())
	assert.True(t, s.TotalBudget.IsZero())
	assert.True(t, s.EstimatedProfitMargin.Equal(dec("100")))
	assert.Zero(t, s.TotalSuppliers)
}

func TestUpsertProjectBudgetSummary_KeepsOneRowAndWarningCounters(t *testing.T) {
	db := newTestDB(t)
	ctx := testContext()
	project, err := CreateProject(ctx, db, &NewProject{Code: "P-1", Name: "Harbour Tower", ContractValue: dec("100000")})
	require.NoError(t, err)

	first := CalculateProjectBudgetSummary(BudgetSnapshot{ProjectId: project.ID, ContractValue: dec("100000")}, time.Now())
	require.NoError(t, UpsertProjectBudgetSummary(ctx, db, &first))
	require.NotZero(t, first.ID)

	require.NoError(t, UpdateSummaryWarnings(ctx, db, project.ID, 1, 2))

	second := CalculateProjectBudgetSummary(BudgetSnapshot{
		ProjectId:     project.ID,
		ContractValue: dec("100000"),
		Items:         []BudgetItem{{QuotedAmount: dec("40000")}},
	}, time.Now())
	require.NoError(t, UpsertProjectBudgetSummary(ctx, db, &second))

	var count int64
	require.NoError(t, db.Model(&ProjectBudgetSummary{}).Where("project_id = ?", project.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	stored, err := GetProjectBudgetSummary(ctx, db, project.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, stored.TotalBudget.Equal(dec("40000")))
	assert.True(t, stored.BudgetUtilization.Equal(dec("40")))
	assert.True(t, stored.HasWarnings)
	assert.Equal(t, 1, stored.WarningCount)
	assert.Equal(t, 2, stored.CriticalWarningCount)
}

func TestUpdateSummaryWarnings_RequiresStoredSummary(t *testing.T) {
	db := newTestDB(t)
	ctx := testContext()

	err := UpdateSummaryWarnings(ctx, db, 404, 1, 0)
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)

	project, err := CreateProject(ctx, db, &NewProject{Code: "P-1", Name: "Harbour Tower", ContractValue: dec("100000")})
	require.NoError(t, err)
	summary := CalculateProjectBudgetSummary(BudgetSnapshot{ProjectId: project.ID, ContractValue: dec("100000")}, time.Now())
	require.NoError(t, UpsertProjectBudgetSummary(ctx, db, &summary))

	require.NoError(t, UpdateSummaryWarnings(ctx, db, project.ID, 0, 0))
	require.NoError(t, UpdateSummaryWarnings(ctx, db, project.ID, 0, 0), "unchanged counters are not an error")
}
