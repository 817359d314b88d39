package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/construction_backend/utils"
	"gorm.io/gorm"
)

type Supplier struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:100" json:"email"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Trade     string    `gorm:"size:100" json:"trade"`
	Notes     string    `gorm:"type:text" json:"notes"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone"`
	Trade string `json:"trade" validate:"max=100"`
	Notes string `json:"notes"`
}

func (input NewSupplier) validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return utils.NewValidationError("invalid supplier phone: %v", err)
		}
	}
	return nil
}

// Code is the short counterpart code printed on purchase order numbers.
func (s Supplier) Code() string {
	code := utils.LetterCode(s.Name, 3)
	if code == "" {
		return "VEN"
	}
	return code
}

func CreateSupplier(ctx context.Context, db *gorm.DB, input *NewSupplier) (*Supplier, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	supplier := Supplier{
		Name:     strings.TrimSpace(input.Name),
		Email:    input.Email,
		Phone:    input.Phone,
		Trade:    input.Trade,
		Notes:    input.Notes,
		IsActive: utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&supplier).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

func GetSupplier(ctx context.Context, db *gorm.DB, id int) (*Supplier, error) {
	return utils.FetchModel[Supplier](ctx, db, id)
}
