package integration

import (
	"context"
	"fmt"
	"os"

	"github.com/stretchr/testify/suite"

	"github.com/udisondev/updstatus/internal/db"
	"github.com/udisondev/updstatus/internal/model"
	"github.com/udisondev/updstatus/internal/testutil"
)

// IntegrationSuite: базовый suite для интеграционных тестов.
// PostgreSQL контейнер создаётся один раз в TestMain, каждый suite получает
// изолированную schema через acquireSchema().
type IntegrationSuite struct {
	suite.Suite
	db     *db.DB
	ledger *db.TransactionRepository
	status *db.UpdateStatusRepository
	ctx    context.Context
}

// SetupSuite выполняется один раз перед всеми тестами в suite.
func (s *IntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	// Если DB_ADDR задан вручную, используем его (для CI/CD)
	dbAddr := os.Getenv("DB_ADDR")
	if dbAddr == "" {
		dbAddr = acquireSchema(s.T())
	}

	s.db = testutil.NewPostgres(s.T(), dbAddr)
	s.ledger = db.NewTransactionRepository(s.db)
	s.status = db.NewUpdateStatusRepository(s.db, s.ledger)
}

// SetupTest выполняется перед каждым тестом для очистки данных.
func (s *IntegrationSuite) SetupTest() {
	if err := s.cleanupTestData(); err != nil {
		s.T().Fatalf("failed to cleanup test data: %v", err)
	}
}

// cleanupTestData очищает все данные из тестовых таблиц.
func (s *IntegrationSuite) cleanupTestData() error {
	_, err := s.db.Pool().Exec(s.ctx,
		"TRUNCATE TABLE update_status, ledger_transaction CASCADE")
	if err != nil {
		return fmt.Errorf("truncating test tables: %w", err)
	}
	return nil
}

// storeLedger saves update transactions the status rows can reference.
func (s *IntegrationSuite) storeLedger(ids ...int64) {
	for _, id := range ids {
		s.Require().NoError(s.ledger.Save(s.ctx, nil, testutil.UpdateTransaction(id)))
	}
}

func (s *IntegrationSuite) statusRows() int {
	var n int
	s.Require().NoError(s.db.Pool().QueryRow(s.ctx, "SELECT COUNT(*) FROM update_status").Scan(&n))
	return n
}

func status(id int64, updated bool) *model.UpdateStatus {
	return model.NewUpdateStatus(testutil.UpdateTransaction(id), updated)
}
