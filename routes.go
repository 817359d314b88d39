package main

import (
	"net/http"

	"bitbucket.org/mmdatafocus/construction_backend/middlewares"
	"bitbucket.org/mmdatafocus/construction_backend/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func NewRouter(app *App) *gin.Engine {
	r := gin.New()
	// Correlation IDs: take the caller's or generate one per request.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header("x-correlation-id", cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})

	corsConfig := cors.DefaultConfig()
	// production requires an explicit allowlist; an empty one denies all
	if app.settings.IsProduction() {
		if len(app.settings.CorsAllowedOrigins) > 0 {
			corsConfig.AllowOrigins = app.settings.CorsAllowedOrigins
		} else {
			corsConfig.AllowOriginFunc = func(string) bool { return false }
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", "x-correlation-id")
	r.Use(cors.New(corsConfig))

	r.Use(customErrorLogger(app.logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	api := r.Group("/", middlewares.AuthMiddleware([]byte(app.settings.APISecret)))
	approver := middlewares.RequireApprover()

	api.POST("/customers", createCustomerHandler(app))
	api.POST("/suppliers", createSupplierHandler(app))

	api.POST("/projects", createProjectHandler(app))
	api.GET("/projects/:id", getProjectHandler(app))
	api.PUT("/projects/:id/contract-value", approver, setContractValueHandler(app))

	api.GET("/projects/:id/budget-items", listBudgetItemsHandler(app))
	api.POST("/projects/:id/budget-items", createBudgetItemHandler(app))
	api.POST("/projects/:id/budget-items/extracted", createBudgetItemFromExtractionHandler(app))
	api.GET("/projects/:id/budget-items/:itemId", getBudgetItemHandler(app))
	api.PATCH("/projects/:id/budget-items/:itemId", updateBudgetItemHandler(app))
	api.POST("/projects/:id/budget-items/:itemId/submit", submitBudgetItemHandler(app))
	api.POST("/projects/:id/budget-items/:itemId/approve", approver, approveBudgetItemHandler(app))
	api.POST("/projects/:id/budget-items/:itemId/reject", approver, rejectBudgetItemHandler(app))
	api.POST("/projects/:id/budget-items/:itemId/cost", recordCostHandler(app))
	api.DELETE("/projects/:id/budget-items/:itemId", deleteBudgetItemHandler(app))
	api.POST("/projects/:id/budget-items/:itemId/purchase-order", approver, issuePurchaseOrderHandler(app))

	api.GET("/projects/:id/budget-summary", getBudgetSummaryHandler(app))
	api.POST("/projects/:id/budget-summary/recalculate", recalculateBudgetHandler(app))
	api.GET("/projects/:id/budget-alerts", listBudgetAlertsHandler(app))
	api.GET("/projects/:id/budget-report.xlsx", budgetReportHandler(app))

	api.GET("/projects/:id/purchase-orders", listPurchaseOrdersHandler(app))
	api.GET("/purchase-orders/:poId", getPurchaseOrderHandler(app))
	api.POST("/projects/:id/invoices", approver, issueInvoiceHandler(app))
	api.GET("/projects/:id/invoices", listInvoicesHandler(app))
	api.POST("/invoices/:invoiceId/payments", approver, recordPaymentHandler(app))
	api.GET("/invoices/:invoiceId/payments", listPaymentsHandler(app))

	r.NoRoute(customNotFoundHandler)
	return r
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
}

func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			logger.WithField("correlation_id", cid).Error(c.Errors.String())
		}
	}
}
