package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/construction_backend/utils"
	"gorm.io/gorm"
)

type Customer struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:100" json:"email"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Address   string    `gorm:"type:text" json:"address"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func CreateCustomer(ctx context.Context, db *gorm.DB, input *NewCustomer) (*Customer, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return nil, utils.NewValidationError("invalid customer phone: %v", err)
		}
	}
	customer := Customer{
		Name:    strings.TrimSpace(input.Name),
		Email:   input.Email,
		Phone:   input.Phone,
		Address: input.Address,
	}
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}
