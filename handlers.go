package main

import (
	"fmt"
	"net/http"

	"bitbucket.org/mmdatafocus/construction_backend/models"
	"bitbucket.org/mmdatafocus/construction_backend/models/reports"
	"bitbucket.org/mmdatafocus/construction_backend/utils"
	"github.com/gin-gonic/gin"
)

/* reference data */

func createCustomerHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewCustomer
		if err := bindJSON(c, &input); err != nil {
			respondError(c, app.logger, "createCustomerHandler", err)
			return
		}
		customer, err := models.CreateCustomer(c.Request.Context(), app.db, &input)
		if err != nil {
			respondError(c, app.logger, "createCustomerHandler", err)
			return
		}
		c.JSON(http.StatusCreated, customer)
	}
}

func createSupplierHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSupplier
		if err := bindJSON(c, &input); err != nil {
			respondError(c, app.logger, "createSupplierHandler", err)
			return
		}
		supplier, err := models.CreateSupplier(c.Request.Context(), app.db, &input)
		if err != nil {
			respondError(c, app.logger, "createSupplierHandler", err)
			return
		}
		c.JSON(http.StatusCreated, supplier)
	}
}

func createProjectHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req projectRequest
		if err := bindJSON(c, &req); err != nil {
			respondError(c, app.logger, "createProjectHandler", err)
			return
		}
		project, err := models.CreateProject(c.Request.Context(), app.db, req.toInput())
		if err != nil {
			respondError(c, app.logger, "createProjectHandler", err)
			return
		}
		c.JSON(http.StatusCreated, project)
	}
}

func getProjectHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectId, err := paramId(c, "id")
		if err != nil {
			respondError(c, app.logger, "getProjectHandler", err)
			return
		}
		project, err := models.GetProject(c.Request.Context(), app.db, projectId)
		if err != nil {
			respondError(c, app.logger, "getProjectHandler", err)
			return
		}
		c.JSON(http.StatusOK, project)
	}
}

func setContractValueHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectId, err := paramId(c, "id")
		if err != nil {
			respondError(c, app.logger, "setContractValueHandler", err)
			return
		}
		var req contractValueRequest
		if err := bindJSON(c, &req); err != nil {
			respondError(c, app.logger, "setContractValueHandler", err)
			return
		}
		if !req.ContractValue.Valid {
			respondError(c, app.logger, "setContractValueHandler", utils.NewValidationError("contract_value is required"))
			return
		}
		project, err := app.ledger.SetContractValue(c.Request.Context(), projectId, req.ContractValue.Decimal)
		if err != nil {
			respondError(c, app.logger, "setContractValueHandler", err)
			return
		}
		c.JSON(http.StatusOK, project)
	}
}

/* budget items */

func listBudgetItemsHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectId, err := paramId(c, "id")
		if err != nil {
			respondError(c, app.logger, "listBudgetItemsHandler", err)
			return
		}
		snapshot, err := app.ledger.Snapshot(c.Request.Context(), projectId)
		if err != nil {
			respondError(c, app.logger, "listBudgetItemsHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"project_id":     snapshot.ProjectId,
			"contract_value": snapshot.ContractValue,
			"items":          snapshot.Items,
		})
	}
}

func createBudgetItemHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectId, err := paramId(c, "id")
		if err != nil {
			respondError(c, app.logger, "createBudgetItemHandler", err)
			return
		}
		var req budgetItemRequest
		if err := bindJSON(c, &req); err != nil {
			respondError(c, app.logger, "createBudgetItemHandler", err)
			return
		}
		item, err := app.ledger.Create(c.Request.Context(), req.toInput(projectId))
		if err != nil {
			respondError(c, app.logger, "createBudgetItemHandler", err)
			return
		}
		c.JSON(http.StatusCreated, item)
	}
}

func createBudgetItemFromExtractionHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectId, err := paramId(c, "id")
		if err != nil {
			respondError(c, app.logger, "createBudgetItemFromExtractionHandler", err)
			return
		}
		var req extractedQuotationRequest
		if err := bindJSON(c, &req); err != nil {
			respondError(c, app.logger, "createBudgetItemFromExtractionHandler", err)
			return
		}
		item, err := app.ledger.CreateFromExtraction(c.Request.Context(), req.toInput(projectId))
		if err != nil {
			respondError(c, app.logger, "createBudgetItemFromExtractionHandler", err)
			return
		}
		c.JSON(http.StatusCreated, item)
	}
}

func getBudgetItemHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectId, itemId, err := itemParams(c)
		if err != nil {
			respondError(c, app.logger, "getBudgetItemHandler", err)
			return
		}
		item, err := app.ledger.Get(c.Request.Context(), projectId, itemId)
		if err != nil {
			respondError(c, app.logger, "getBudgetItemHandler", err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func updateBudgetItemHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectId, itemId, err := itemParams(c)
		if err != nil {
			respondError(c, app.logger, "updateBudgetItemHandler", err)
			return
		}
		var req budgetItemUpdateRequest
		if err := bindJSON(c, &req); err != nil {
			respondError(c, app.logger, "updateBudgetItemHandler", err)
			return
		}
		item, err := app.ledger.Update(c.Request.Context(), projectId, itemId, req.toInput())
		if err != nil {
			respondError(c, app.logger, "updateBudgetItemHandler", err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func submitBudgetItemHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectId, itemId, err := itemParams(c)
		if err != nil {
			respondError(c, app.logger, "submitBudgetItemHandler", err)
			return
		}
		item, err := app.ledger.SubmitForApproval(c.Request.Context(), projectId, itemId)
		if err != nil {
			respondError(c, app.logger, "submitBudgetItemHandler", err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func approveBudgetItemHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectId, itemId, err := itemParams(c)
		if err != nil {
			respondError(c, app.logger, "approveBudgetItemHandler", err)
			return
		}
		principal, _ := utils.GetPrincipalFromContext(c.Request.Context())
		item, err := app.ledger.Approve(c.Request.Context(), projectId, itemId, principal)
		if err != nil {
			respondError(c, app.logger, "approveBudgetItemHandler", err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func rejectBudgetItemHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectId, itemId, err := itemParams(c)
		if err != nil {
			respondError(c, app.logger, "rejectBudgetItemHandler", err)
			return
		}
		item, err := app.ledger.Reject(c.Request.Context(), projectId, itemId)
		if err != nil {
			respondError(c, app.logger, "rejectBudgetItemHandler", err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func recordCostHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectId, itemId, err := itemParams(c)
		if err != nil {
			respondError(c, app.logger, "recordCostHandler", err)
			return
		}
		var req costRequest
		if err := bindJSON(c, &req); err != nil {
			respondError(c, app.logger, "recordCostHandler", err)
			return
		}
		input, err := req.toInput()
		if err != nil {
			respondError(c, app.logger, "recordCostHandler", err)
			return
		}
		item, err := app.ledger.RecordCost(c.Request.Context(), projectId, itemId, input)
		if err != nil {
			respondError(c, app.logger, "recordCostHandler", err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func deleteBudgetItemHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectId, itemId, err := itemParams(c)
		if err != nil {
			respondError(c, app.logger, "deleteBudgetItemHandler", err)
			return
		}
		if err := app.ledger.Delete(c.Request.Context(), projectId, itemId); err != nil {
			respondError(c, app.logger, "deleteBudgetItemHandler", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

/* summary, alerts, report */

func getBudgetSummaryHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectId, err := paramId(c, "id")
		if err != nil {
			respondError(c, app.logger, "getBudgetSummaryHandler", err)
			return
		}
		summary, err := app.aggregator.GetSummary(c.Request.Context(), projectId)
		if err != nil {
			respondError(c, app.logger, "getBudgetSummaryHandler", err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func recalculateBudgetHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectId, err := paramId(c, "id")
		if err != nil {
			respondError(c, app.logger, "recalculateBudgetHandler", err)
			return
		}
		summary, alerts, err := app.refresher.Refresh(c.Request.Context(), projectId)
		if err != nil {
			respondError(c, app.logger, "recalculateBudgetHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"summary": summary, "alerts": alerts})
	}
}

func listBudgetAlertsHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectId, err := paramId(c, "id")
		if err != nil {
			respondError(c, app.logger, "listBudgetAlertsHandler", err)
			return
		}
		alerts, err := models.ListBudgetAlerts(c.Request.Context(), app.db, projectId, 100)
		if err != nil {
			respondError(c, app.logger, "listBudgetAlertsHandler", err)
			return
		}
		c.JSON(http.StatusOK, alerts)
	}
}

func budgetReportHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectId, err := paramId(c, "id")
		if err != nil {
			respondError(c, app.logger, "budgetReportHandler", err)
			return
		}
		ctx := c.Request.Context()
		summary, err := app.aggregator.GetSummary(ctx, projectId)
		if err != nil {
			respondError(c, app.logger, "budgetReportHandler", err)
			return
		}
		report, err := reports.GetBudgetReport(ctx, app.db, *summary)
		if err != nil {
			respondError(c, app.logger, "budgetReportHandler", err)
			return
		}
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=budget-%s.xlsx", report.Project.Code))
		if err := report.WriteExcel(c.Writer); err != nil {
			c.Error(err)
		}
	}
}

/* documents */

func issuePurchaseOrderHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectId, err := paramId(c, "id")
		if err != nil {
			respondError(c, app.logger, "issuePurchaseOrderHandler", err)
			return
		}
		itemId, err := paramId(c, "itemId")
		if err != nil {
			respondError(c, app.logger, "issuePurchaseOrderHandler", err)
			return
		}
		var req issuePurchaseOrderRequest
		if c.Request.ContentLength != 0 {
			if err := bindJSON(c, &req); err != nil {
				respondError(c, app.logger, "issuePurchaseOrderHandler", err)
				return
			}
		}
		po, err := app.issuer.IssuePO(c.Request.Context(), req.toInput(projectId, itemId))
		if err != nil {
			respondError(c, app.logger, "issuePurchaseOrderHandler", err)
			return
		}
		c.JSON(http.StatusCreated, po)
	}
}

func listPurchaseOrdersHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectId, err := paramId(c, "id")
		if err != nil {
			respondError(c, app.logger, "listPurchaseOrdersHandler", err)
			return
		}
		orders, err := models.ListPurchaseOrders(c.Request.Context(), app.db, projectId)
		if err != nil {
			respondError(c, app.logger, "listPurchaseOrdersHandler", err)
			return
		}
		c.JSON(http.StatusOK, orders)
	}
}

func getPurchaseOrderHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		poId, err := paramId(c, "poId")
		if err != nil {
			respondError(c, app.logger, "getPurchaseOrderHandler", err)
			return
		}
		po, err := models.GetPurchaseOrder(c.Request.Context(), app.db, poId)
		if err != nil {
			respondError(c, app.logger, "getPurchaseOrderHandler", err)
			return
		}
		c.JSON(http.StatusOK, po)
	}
}

func issueInvoiceHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectId, err := paramId(c, "id")
		if err != nil {
			respondError(c, app.logger, "issueInvoiceHandler", err)
			return
		}
		var req invoiceRequest
		if err := bindJSON(c, &req); err != nil {
			respondError(c, app.logger, "issueInvoiceHandler", err)
			return
		}
		invoice, err := app.issuer.IssueInvoice(c.Request.Context(), req.toInput(projectId))
		if err != nil {
			respondError(c, app.logger, "issueInvoiceHandler", err)
			return
		}
		c.JSON(http.StatusCreated, invoice)
	}
}

func listInvoicesHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectId, err := paramId(c, "id")
		if err != nil {
			respondError(c, app.logger, "listInvoicesHandler", err)
			return
		}
		invoices, err := models.ListInvoices(c.Request.Context(), app.db, projectId)
		if err != nil {
			respondError(c, app.logger, "listInvoicesHandler", err)
			return
		}
		c.JSON(http.StatusOK, invoices)
	}
}

func recordPaymentHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		invoiceId, err := paramId(c, "invoiceId")
		if err != nil {
			respondError(c, app.logger, "recordPaymentHandler", err)
			return
		}
		var req paymentRequest
		if err := bindJSON(c, &req); err != nil {
			respondError(c, app.logger, "recordPaymentHandler", err)
			return
		}
		payment, err := app.issuer.RecordPayment(c.Request.Context(), req.toInput(invoiceId))
		if err != nil {
			respondError(c, app.logger, "recordPaymentHandler", err)
			return
		}
		c.JSON(http.StatusCreated, payment)
	}
}

func listPaymentsHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		invoiceId, err := paramId(c, "invoiceId")
		if err != nil {
			respondError(c, app.logger, "listPaymentsHandler", err)
			return
		}
		payments, err := models.ListPayments(c.Request.Context(), app.db, invoiceId)
		if err != nil {
			respondError(c, app.logger, "listPaymentsHandler", err)
			return
		}
		c.JSON(http.StatusOK, payments)
	}
}
