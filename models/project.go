package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/construction_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Project struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Code          string          `gorm:"size:50;uniqueIndex" json:"code"`
	Name          string          `gorm:"size:255;not null" json:"name"`
	CustomerId    *int            `gorm:"index" json:"customer_id"`
	ContractValue decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"contract_value"`
	Status        ProjectStatus   `gorm:"size:20;not null" json:"status"`
	StartDate     *time.Time      `json:"start_date"`
	EndDate       *time.Time      `json:"end_date"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProject struct {
	Code          string          `json:"code" validate:"required,max=50"`
	Name          string          `json:"name" validate:"required,max=255"`
	CustomerId    *int            `json:"customer_id"`
	ContractValue decimal.Decimal `json:"contract_value"`
	StartDate     *time.Time      `json:"start_date"`
	EndDate       *time.Time      `json:"end_date"`
}

func (input NewProject) validate(ctx context.Context, db *gorm.DB) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.ContractValue.IsNegative() {
		return utils.NewValidationError("contract value must not be negative")
	}
	if input.CustomerId != nil {
		if err := utils.ValidateResourceId[Customer](ctx, db, *input.CustomerId); err != nil {
			return utils.NewValidationError("customer not found")
		}
	}
	if input.StartDate != nil && input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		return utils.NewValidationError("end date must not be before start date")
	}
	return nil
}

func CreateProject(ctx context.Context, db *gorm.DB, input *NewProject) (*Project, error) {
	if err := input.validate(ctx, db); err != nil {
		return nil, err
	}
	project := Project{
		Code:          strings.TrimSpace(input.Code),
		Name:          strings.TrimSpace(input.Name),
		CustomerId:    input.CustomerId,
		ContractValue: input.ContractValue,
		Status:        ProjectStatusActive,
		StartDate:     input.StartDate,
		EndDate:       input.EndDate,
	}
	if err := db.WithContext(ctx).Create(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func GetProject(ctx context.Context, db *gorm.DB, id int) (*Project, error) {
	return utils.FetchModel[Project](ctx, db, id)
}
