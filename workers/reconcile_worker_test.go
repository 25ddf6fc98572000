package workers

import (
	"fmt"
	"testing"
	"time"

	"waste-rewards-system/models"
	"waste-rewards-system/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

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
		&models.Notification{},
	))
	return db
}

func seedVerifiedReport(t *testing.T, db *gorm.DB, collectorID string) *models.Report {
	t.Helper()
	report := &models.Report{
		ID:          uuid.NewString(),
		UserID:      uuid.NewString(),
		Location:    "Park",
		WasteType:   "Plastic",
		Amount:      "5 kg",
		Status:      models.ReportStatusVerified,
		CollectorID: &collectorID,
	}
	require.NoError(t, db.Create(report).Error)
	return report
}

func TestSweepBackfillsMissingReportGrant(t *testing.T) {
	db := newTestDB(t)
	rec := NewReconciler(db, services.NewLedgerService(db))

	// a report that somehow exists without its submission grant
	report := &models.Report{
		ID:        uuid.NewString(),
		UserID:    uuid.NewString(),
		Location:  "Park",
		WasteType: "Glass",
		Amount:    "2 kg",
		Status:    models.ReportStatusPending,
	}
	require.NoError(t, db.Create(report).Error)

	repaired, err := rec.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	var grants []models.Transaction
	require.NoError(t, db.Where("report_id = ? AND type = ?", report.ID, models.TransactionEarnedReport).Find(&grants).Error)
	require.Len(t, grants, 1)
	assert.Equal(t, int64(services.FixedReportReward), grants[0].Amount)

	// second sweep finds nothing to do
	repaired, err = rec.Sweep()
	require.NoError(t, err)
	assert.Zero(t, repaired)
}

func TestSweepBackfillsVerifiedArtifacts(t *testing.T) {
	db := newTestDB(t)
	ledger := services.NewLedgerService(db)
	rec := NewReconciler(db, ledger)

	collectorID := uuid.NewString()
	report := seedVerifiedReport(t, db, collectorID)
	// give it its submission grant so only collection artifacts are missing
	_, err := ledger.Append(db, report.UserID, models.TransactionEarnedReport,
		services.FixedReportReward, "Points earned for reporting waste", &report.ID)
	require.NoError(t, err)

	repaired, err := rec.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 2, repaired, "collected waste row + earned_collect grant")

	var cwCount int64
	require.NoError(t, db.Model(&models.CollectedWaste{}).Where("report_id = ?", report.ID).Count(&cwCount).Error)
	assert.Equal(t, int64(1), cwCount)

	var grantCount int64
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("report_id = ? AND type = ?", report.ID, models.TransactionEarnedCollect).
		Count(&grantCount).Error)
	assert.Equal(t, int64(1), grantCount)
}

func TestSweepSkipsConsistentState(t *testing.T) {
	db := newTestDB(t)
	ledger := services.NewLedgerService(db)
	rec := NewReconciler(db, ledger)

	collectorID := uuid.NewString()
	report := seedVerifiedReport(t, db, collectorID)

	_, err := ledger.Append(db, report.UserID, models.TransactionEarnedReport,
		services.FixedReportReward, "Points earned for reporting waste", &report.ID)
	require.NoError(t, err)
	_, err = ledger.Append(db, collectorID, models.TransactionEarnedCollect,
		42, "Points earned from collecting waste", &report.ID)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.CollectedWaste{
		ID:             uuid.NewString(),
		ReportID:       report.ID,
		CollectorID:    collectorID,
		CollectionDate: time.Now(),
		Status:         "verified",
	}).Error)

	repaired, err := rec.Sweep()
	require.NoError(t, err)
	assert.Zero(t, repaired)
}
