package utils

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

/* DB fetching */

// fetch model from db
// (may return RecordNotFound)
func FetchModel[T any](ctx context.Context, db *gorm.DB, id int, associations ...string) (*T, error) {
	dbCtx := db.WithContext(ctx)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// check if id exists, return RecordNotFound Error
func ValidateResourceId[T any](ctx context.Context, db *gorm.DB, id interface{}) error {
	var model T
	var count int64
	if err := db.WithContext(ctx).Model(&model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}
