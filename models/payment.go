package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/construction_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Payment struct {
	ID            int             `gorm:"primary_key" json:"id"`
	InvoiceId     int             `gorm:"index;not null" json:"invoice_id"`
	ProjectId     int             `gorm:"index;not null" json:"project_id"`
	PaymentNumber string          `gorm:"size:100;not null;uniqueIndex" json:"payment_number"`
	SequenceNo    int64           `gorm:"not null" json:"sequence_no"`
	PeriodPrefix  string          `gorm:"size:20;not null" json:"period_prefix"`
	PaymentDate   time.Time       `gorm:"not null" json:"payment_date"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Method        string          `gorm:"size:50" json:"method"`
	Reference     string          `gorm:"size:100" json:"reference"`
	RecordedBy    int             `gorm:"not null" json:"recorded_by"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewPayment struct {
	InvoiceId   int             `json:"invoice_id" validate:"required,gt=0"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate *time.Time      `json:"payment_date"`
	Method      string          `json:"method" validate:"max=50"`
	Reference   string          `json:"reference" validate:"max=100"`
}

func (input NewPayment) Validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if !input.Amount.IsPositive() {
		return utils.NewValidationError("payment amount must be positive")
	}
	return nil
}

func ListPayments(ctx context.Context, db *gorm.DB, invoiceId int) ([]Payment, error) {
	var payments []Payment
	err := db.WithContext(ctx).Where("invoice_id = ?", invoiceId).Order("id").Find(&payments).Error
	return payments, err
}
