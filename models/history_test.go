package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveHistory_RecordsUserFromContext(t *testing.T) {
	db := newTestDB(t)

	err := SaveHistoryCreate(db.WithContext(testContext()), "purchase_orders", 5, map[string]string{"order_number": "PO-001-ACM-20250314"}, "Purchase order issued")
	require.NoError(t, err)

	histories, err := ListHistories(db, "purchase_orders", 5)
	require.NoError(t, err)
	require.Len(t, histories, 1)
	assert.Equal(t, "CREATE", histories[0].ActionType)
	assert.Equal(t, 7, histories[0].UserId)
	assert.Equal(t, "Site Manager", histories[0].UserName)
	assert.Equal(t, "null", histories[0].Before)
	assert.JSONEq(t, `{"order_number":"PO-001-ACM-20250314"}`, histories[0].After)
}

func TestSaveHistory_RequiresUser(t *testing.T) {
	db := newTestDB(t)
	err := SaveHistoryDelete(db.WithContext(context.Background()), "budget_items", 1, nil, "deleted")
	assert.Error(t, err)
}
