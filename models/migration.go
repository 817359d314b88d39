package models

import "gorm.io/gorm"

func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&Customer{}, &Supplier{}, &Project{},
		&SequenceCounter{},
		&BudgetItem{}, &ProjectBudgetSummary{}, &BudgetAlert{},
		&PurchaseOrder{}, &PurchaseOrderDetail{},
		&Invoice{}, &Payment{},
		&History{},
	)
}
