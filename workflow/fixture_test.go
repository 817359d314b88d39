package workflow

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/construction_backend/config"
	"bitbucket.org/mmdatafocus/construction_backend/models"
	"bitbucket.org/mmdatafocus/construction_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var issueDate = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

type fixture struct {
	db         *gorm.DB
	ctx        context.Context
	logger     *logrus.Logger
	publisher  *recordingPublisher
	aggregator *SummaryAggregator
	evaluator  *AlertEvaluator
	refresher  *BudgetRefresher
	ledger     *BudgetLedger
	issuer     *DocumentIssuer
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return openTestDB(t, "")
}

// newFileTestDB is a WAL database file served by several connections.
func newFileTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return openTestDB(t, filepath.Join(t.TempDir(), "construction.db"))
}

func openTestDB(t *testing.T, dsn string) *gorm.DB {
	t.Helper()
	db, err := config.ConnectSQLite(dsn)
	require.NoError(t, err)
	db.Logger = logger.Discard
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.MigrateTable(db))
	return db
}

func newTestLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, newTestDB(t))
}

func newFixtureOn(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()
	f := &fixture{
		db:        db,
		ctx:       utils.SetPrincipalInContext(context.Background(), utils.Principal{ID: 7, Name: "Site Manager", Role: string(models.UserRoleManager)}),
		logger:    newTestLogger(),
		publisher: &recordingPublisher{},
	}
	f.aggregator = NewSummaryAggregator(f.db, nil, f.logger)
	f.evaluator = NewAlertEvaluator(f.db, f.publisher, nil, f.logger)
	f.refresher = NewBudgetRefresher(f.aggregator, f.evaluator)
	f.ledger = NewBudgetLedger(f.db, f.refresher, f.logger, 0.8)
	f.issuer = NewDocumentIssuer(f.db, f.ledger, f.refresher, nil, f.logger)
	f.issuer.now = func() time.Time { return issueDate }
	return f
}

func (f *fixture) project(t *testing.T, code string, contract string) *models.Project {
	t.Helper()
	p, err := models.CreateProject(f.ctx, f.db, &models.NewProject{Code: code, Name: "Project " + code, ContractValue: dec(contract)})
	require.NoError(t, err)
	return p
}

func (f *fixture) supplier(t *testing.T, name string) *models.Supplier {
	t.Helper()
	s, err := models.CreateSupplier(f.ctx, f.db, &models.NewSupplier{Name: name})
	require.NoError(t, err)
	return s
}

func (f *fixture) item(t *testing.T, projectId int, supplierId *int, quoted string) *models.BudgetItem {
	t.Helper()
	item, err := f.ledger.Create(f.ctx, &models.NewBudgetItem{
		ProjectId:    projectId,
		SupplierId:   supplierId,
		Trade:        "Electrical",
		QuotedAmount: dec(quoted),
	})
	require.NoError(t, err)
	return item
}

func (f *fixture) approvedItem(t *testing.T, projectId int, supplierId int, quoted string) *models.BudgetItem {
	t.Helper()
	item := f.item(t, projectId, &supplierId, quoted)
	approved, err := f.ledger.Approve(f.ctx, item.ProjectId, item.ID, utils.Principal{ID: 7})
	require.NoError(t, err)
	return approved
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(i int) *int { return &i }

type recordingPublisher struct {
	mu     sync.Mutex
	alerts []models.BudgetAlert
	err    error
}

func (p *recordingPublisher) PublishBudgetAlert(ctx context.Context, alert models.BudgetAlert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.alerts = append(p.alerts, alert)
	return nil
}

func (p *recordingPublisher) published() []models.BudgetAlert {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.BudgetAlert(nil), p.alerts...)
}

type countingNotifier struct {
	mu    sync.Mutex
	calls []int
	err   error
}

func (n *countingNotifier) BudgetChanged(ctx context.Context, projectId int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, projectId)
	return n.err
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

// failCreatesOn makes every INSERT into table fail while *enabled is true.
func failCreatesOn(t *testing.T, db *gorm.DB, table string, enabled *bool) {
	t.Helper()
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_"+table, func(tx *gorm.DB) {
		if *enabled && tx.Statement.Table == table {
			_ = tx.AddError(errors.New("simulated write failure on " + table))
		}
	})
	require.NoError(t, err)
}
