package models

import (
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/construction_backend/utils"
	"gorm.io/gorm"
)

// History is the activity log. Rows are written on the same tx as the change they record.
type History struct {
	ID            int       `gorm:"primary_key" json:"id"`
	ActionType    string    `gorm:"size:20;not null" json:"action_type"`
	Before        string    `gorm:"type:text" json:"before"`
	After         string    `gorm:"type:text" json:"after"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	ReferenceID   int       `gorm:"index" json:"reference_id"`
	ReferenceType string    `gorm:"size:255" json:"reference_type"`
	UserId        int       `gorm:"index;not null" json:"user_id"`
	UserName      string    `gorm:"size:100" json:"user_name"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func createHistory(tx *gorm.DB,
	actionType string,
	referenceId int,
	referenceType string,
	before interface{},
	after interface{},
	description string) error {

	b, err := json.Marshal(before)
	if err != nil {
		return err
	}
	a, err := json.Marshal(after)
	if err != nil {
		return err
	}

	// user comes from the request context carried by the tx
	ctx := tx.Statement.Context
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return errors.New("user id is required")
	}
	userName, _ := utils.GetUserNameFromContext(ctx)

	history := History{
		ActionType:    actionType,
		Before:        string(b),
		After:         string(a),
		Description:   description,
		ReferenceID:   referenceId,
		ReferenceType: referenceType,
		UserId:        userId,
		UserName:      userName,
	}
	return tx.Create(&history).Error
}

func SaveHistoryCreate(tx *gorm.DB, referenceType string, id int, obj interface{}, description string) error {
	return createHistory(tx, "CREATE", id, referenceType, nil, obj, description)
}

func SaveHistoryUpdate(tx *gorm.DB, referenceType string, id int, before, after interface{}, description string) error {
	return createHistory(tx, "UPDATE", id, referenceType, before, after, description)
}

func SaveHistoryDelete(tx *gorm.DB, referenceType string, id int, obj interface{}, description string) error {
	return createHistory(tx, "DELETE", id, referenceType, obj, nil, description)
}

func ListHistories(tx *gorm.DB, referenceType string, referenceId int) ([]History, error) {
	var histories []History
	err := tx.Where("reference_type = ? AND reference_id = ?", referenceType, referenceId).
		Order("id").
		Find(&histories).Error
	return histories, err
}
