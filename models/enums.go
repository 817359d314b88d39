package models

import (
	"encoding/json"
	"errors"
)

type DocumentKind string

const (
	DocumentKindPurchaseOrder DocumentKind = "PO"
	DocumentKindInvoice       DocumentKind = "INV"
	DocumentKindPayment       DocumentKind = "PAY"
)

func (k DocumentKind) IsValid() bool {
	switch k {
	case DocumentKindPurchaseOrder, DocumentKindInvoice, DocumentKindPayment:
		return true
	}
	return false
}

// Prefix is the leading segment of the human-readable number.
func (k DocumentKind) Prefix() string {
	return string(k)
}

func (k *DocumentKind) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("document kind must be string")
	}
	kinds := map[string]DocumentKind{
		"PO":  DocumentKindPurchaseOrder,
		"INV": DocumentKindInvoice,
		"PAY": DocumentKindPayment,
	}
	kind, ok := kinds[str]
	if !ok {
		return errors.New("invalid document kind")
	}
	*k = kind
	return nil
}

type BudgetItemStatus string

const (
	BudgetItemStatusQuoted          BudgetItemStatus = "QUOTED"
	BudgetItemStatusPendingApproval BudgetItemStatus = "PENDING_APPROVAL"
	BudgetItemStatusApproved        BudgetItemStatus = "APPROVED"
	BudgetItemStatusPOIssued        BudgetItemStatus = "PO_ISSUED"
	BudgetItemStatusRejected        BudgetItemStatus = "REJECTED"
)

// approvable statuses
func (s BudgetItemStatus) CanApprove() bool {
	return s == BudgetItemStatusQuoted || s == BudgetItemStatusPendingApproval
}

type AlertSeverity string

const (
	AlertSeverityWarning  AlertSeverity = "WARNING"
	AlertSeverityCritical AlertSeverity = "CRITICAL"
)

type BudgetAlertType string

const (
	BudgetAlertTypeBudgetExceedsContract     BudgetAlertType = "BUDGET_EXCEEDS_CONTRACT"
	BudgetAlertTypeBudgetApproachingContract BudgetAlertType = "BUDGET_APPROACHING_CONTRACT"
	BudgetAlertTypeProjectLoss               BudgetAlertType = "PROJECT_LOSS"
	BudgetAlertTypeLowProfitMargin           BudgetAlertType = "LOW_PROFIT_MARGIN"
)

type PurchaseOrderStatus string

const (
	PurchaseOrderStatusIssued    PurchaseOrderStatus = "ISSUED"
	PurchaseOrderStatusCancelled PurchaseOrderStatus = "CANCELLED"
)

type InvoiceStatus string

const (
	InvoiceStatusUnpaid        InvoiceStatus = "UNPAID"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
)

type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "ACTIVE"
	ProjectStatusCompleted ProjectStatus = "COMPLETED"
	ProjectStatusOnHold    ProjectStatus = "ON_HOLD"
)

type UserRole string

const (
	UserRoleAdmin   UserRole = "ADMIN"
	UserRoleManager UserRole = "MANAGER"
	UserRoleStaff   UserRole = "STAFF"
)

// CanApprove reports whether the role may approve budget items and issue documents.
func (r UserRole) CanApprove() bool {
	return r == UserRoleAdmin || r == UserRoleManager
}
