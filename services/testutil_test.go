package services

import (
	"context"
	"fmt"
	"testing"

	"waste-rewards-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory SQLite database migrated with the full
// schema. MaxOpenConns(1) keeps every goroutine on the same in-memory store
// and serializes writes the way a single Postgres row-level queue would.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Report{},
		&models.CollectedWaste{},
		&models.Transaction{},
		&models.Reward{},
		&models.Notification{},
	))

	return db
}

func createTestUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	user := &models.User{
		ID:    uuid.NewString(),
		Email: fmt.Sprintf("%s@example.com", uuid.NewString()),
		Name:  name,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// stubOracle returns a canned judgment (or error) for every call.
type stubOracle struct {
	judgment *CollectionJudgment
	err      error
	calls    int
}

func (o *stubOracle) VerifyCollection(ctx context.Context, wasteType, amount, imageURL string) (*CollectionJudgment, error) {
	o.calls++
	if o.err != nil {
		return nil, o.err
	}
	return o.judgment, nil
}

// newTestStack wires the full service graph over one test database.
func newTestStack(t *testing.T, oracle Oracle) (*gorm.DB, *LedgerService, *NotificationService, *ReportService, *CollectionService, *RewardService) {
	t.Helper()
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	notifications := NewNotificationService(db)
	reports := NewReportService(db, ledger, notifications, nil)
	collection := NewCollectionService(db, ledger, notifications, oracle, nil)
	rewards := NewRewardService(db, ledger, notifications)
	return db, ledger, notifications, reports, collection, rewards
}
