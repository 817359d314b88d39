package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/construction_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceCounter holds the last number handed out for one (kind, period) scope.
// Rows are created on first use and never deleted.
type SequenceCounter struct {
	ID           int          `gorm:"primary_key" json:"id"`
	DocumentKind DocumentKind `gorm:"size:10;not null;uniqueIndex:uniq_sequence_scope" json:"document_kind"`
	PeriodPrefix string       `gorm:"size:20;not null;uniqueIndex:uniq_sequence_scope" json:"period_prefix"`
	LastValue    int64        `gorm:"not null;default:0" json:"last_value"`
	CreatedAt    time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// PeriodPrefix is the counter scope for a document dated t.
func PeriodPrefix(t time.Time) string {
	return t.Format("2006")
}

// AllocateSequence advances the counter for (kind, periodPrefix) and returns the new value.
// It must run on the transaction that persists the document: the row lock taken by the
// UPDATE serializes concurrent issuers and a rollback returns the number.
func AllocateSequence(tx *gorm.DB, kind DocumentKind, periodPrefix string) (int64, error) {
	if !kind.IsValid() {
		return 0, utils.NewValidationError("unknown document kind %q", kind)
	}
	periodPrefix = strings.TrimSpace(periodPrefix)
	if periodPrefix == "" {
		return 0, utils.NewValidationError("period prefix is required")
	}
	scope := fmt.Sprintf("%s/%s", kind, periodPrefix)

	counter := SequenceCounter{DocumentKind: kind, PeriodPrefix: periodPrefix}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter).Error; err != nil {
		return 0, &utils.AllocationError{Scope: scope, Err: err}
	}

	result := tx.Model(&SequenceCounter{}).
		Where("document_kind = ? AND period_prefix = ?", kind, periodPrefix).
		Update("last_value", gorm.Expr("last_value + ?", 1))
	if result.Error != nil {
		return 0, &utils.AllocationError{Scope: scope, Err: result.Error}
	}
	if result.RowsAffected != 1 {
		return 0, &utils.AllocationError{Scope: scope, Err: errors.New("counter row missing")}
	}

	var next int64
	if err := tx.Model(&SequenceCounter{}).
		Where("document_kind = ? AND period_prefix = ?", kind, periodPrefix).
		Select("last_value").
		Scan(&next).Error; err != nil {
		return 0, &utils.AllocationError{Scope: scope, Err: err}
	}
	if next < 1 {
		return 0, &utils.AllocationError{Scope: scope, Err: fmt.Errorf("counter returned %d", next)}
	}
	return next, nil
}

// FormatDocumentNumber renders PREFIX-nnn[-EXTRA]-YYYYMMDD.
// extra is informational only; uniqueness comes from n within the scope.
func FormatDocumentNumber(kind DocumentKind, n int64, extra string, issuedAt time.Time) string {
	parts := []string{kind.Prefix(), fmt.Sprintf("%03d", n)}
	if extra = strings.TrimSpace(extra); extra != "" {
		parts = append(parts, extra)
	}
	parts = append(parts, issuedAt.Format("20060102"))
	return strings.Join(parts, "-")
}
