package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"waste-rewards-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitTestReport(t *testing.T, reports *ReportService, userID string) *models.Report {
	t.Helper()
	report, err := reports.SubmitReport(userID, "MG Road, Bengaluru", "plastic bottles", "5 kg", "", "")
	require.NoError(t, err)
	return report
}

func TestClaimTaskHappyPath(t *testing.T) {
	db, _, _, reports, collection, _ := newTestStack(t, nil)
	reporter := createTestUser(t, db, "Ravi")
	collector := createTestUser(t, db, "Asha")
	report := submitTestReport(t, reports, reporter.ID)

	claimed, err := collection.ClaimTask(report.ID, collector.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusInProgress, claimed.Status)
	require.NotNil(t, claimed.CollectorID)
	assert.Equal(t, collector.ID, *claimed.CollectorID)
}

func TestClaimTaskIdempotentForSameCollector(t *testing.T) {
	db, _, _, reports, collection, _ := newTestStack(t, nil)
	reporter := createTestUser(t, db, "Ravi")
	collector := createTestUser(t, db, "Asha")
	report := submitTestReport(t, reports, reporter.ID)

	_, err := collection.ClaimTask(report.ID, collector.ID)
	require.NoError(t, err)

	// same collector again: no-op, not an error
	again, err := collection.ClaimTask(report.ID, collector.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusInProgress, again.Status)

	// a different collector is rejected
	other := createTestUser(t, db, "Binod")
	_, err = collection.ClaimTask(report.ID, other.ID)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
}

func TestConcurrentClaimsHaveOneWinner(t *testing.T) {
	db, _, _, reports, collection, _ := newTestStack(t, nil)
	reporter := createTestUser(t, db, "Ravi")
	a := createTestUser(t, db, "Asha")
	b := createTestUser(t, db, "Binod")
	report := submitTestReport(t, reports, reporter.ID)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	for i, collector := range []string{a.ID, b.ID} {
		go func(i int, collectorID string) {
			defer wg.Done()
			_, errs[i] = collection.ClaimTask(report.ID, collectorID)
		}(i, collector)
	}
	wg.Wait()

	winners, losers := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, ErrAlreadyClaimed):
			losers++
		default:
			t.Fatalf("unexpected claim error: %v", err)
		}
	}
	assert.Equal(t, 1, winners, "exactly one claim must win")
	assert.Equal(t, 1, losers)

	var final models.Report
	require.NoError(t, db.First(&final, "id = ?", report.ID).Error)
	require.NotNil(t, final.CollectorID)
	assert.Contains(t, []string{a.ID, b.ID}, *final.CollectorID)
	assert.Equal(t, models.ReportStatusInProgress, final.Status)
}

func TestSubmitEvidenceRequiresAssignedCollector(t *testing.T) {
	db, _, _, reports, collection, _ := newTestStack(t, nil)
	reporter := createTestUser(t, db, "Ravi")
	collector := createTestUser(t, db, "Asha")
	other := createTestUser(t, db, "Binod")
	report := submitTestReport(t, reports, reporter.ID)

	// pending: nobody may attach evidence yet
	_, err := collection.SubmitEvidence(report.ID, collector.ID)
	assert.ErrorIs(t, err, ErrTaskNotInProgress)

	_, err = collection.ClaimTask(report.ID, collector.ID)
	require.NoError(t, err)

	_, err = collection.SubmitEvidence(report.ID, other.ID)
	assert.ErrorIs(t, err, ErrNotAssignedCollector)

	_, err = collection.SubmitEvidence(report.ID, collector.ID)
	assert.NoError(t, err)
}

func TestResolveVerificationAcceptance(t *testing.T) {
	db, ledger, _, reports, collection, _ := newTestStack(t, nil)
	reporter := createTestUser(t, db, "Ravi")
	collector := createTestUser(t, db, "Asha")
	report := submitTestReport(t, reports, reporter.ID)

	_, err := collection.ClaimTask(report.ID, collector.ID)
	require.NoError(t, err)
	collection.CollectReward = func() int64 { return 120 }

	outcome, err := collection.ResolveVerification(report.ID, collector.ID,
		&CollectionJudgment{WasteTypeMatch: true, AreaClean: true, Confidence: 0.51})
	require.NoError(t, err)
	assert.Equal(t, int64(120), outcome.Reward)
	assert.Equal(t, models.ReportStatusVerified, outcome.Report.Status)

	var cws []models.CollectedWaste
	require.NoError(t, db.Where("report_id = ?", report.ID).Find(&cws).Error)
	require.Len(t, cws, 1, "exactly one collected waste row")
	assert.Equal(t, collector.ID, cws[0].CollectorID)
	assert.Equal(t, "verified", cws[0].Status)

	var grants []models.Transaction
	require.NoError(t, db.Where("user_id = ? AND type = ?", collector.ID, models.TransactionEarnedCollect).Find(&grants).Error)
	require.Len(t, grants, 1, "exactly one earned_collect entry")
	assert.Equal(t, int64(120), grants[0].Amount)

	balance, err := ledger.Balance(collector.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(120), balance)
}

func TestResolveVerificationBoundaryConfidenceRejected(t *testing.T) {
	db, _, _, reports, collection, _ := newTestStack(t, nil)
	reporter := createTestUser(t, db, "Ravi")
	collector := createTestUser(t, db, "Asha")
	report := submitTestReport(t, reports, reporter.ID)

	_, err := collection.ClaimTask(report.ID, collector.ID)
	require.NoError(t, err)

	// confidence must be strictly above 0.5
	_, err = collection.ResolveVerification(report.ID, collector.ID,
		&CollectionJudgment{WasteTypeMatch: true, AreaClean: true, Confidence: 0.5})
	assert.ErrorIs(t, err, ErrVerificationRejected)

	var final models.Report
	require.NoError(t, db.First(&final, "id = ?", report.ID).Error)
	assert.Equal(t, models.ReportStatusInProgress, final.Status)
}

func TestResolveVerificationDirtyAreaRejected(t *testing.T) {
	db, _, _, reports, collection, _ := newTestStack(t, nil)
	reporter := createTestUser(t, db, "Ravi")
	collector := createTestUser(t, db, "Asha")
	report := submitTestReport(t, reports, reporter.ID)

	_, err := collection.ClaimTask(report.ID, collector.ID)
	require.NoError(t, err)

	_, err = collection.ResolveVerification(report.ID, collector.ID,
		&CollectionJudgment{WasteTypeMatch: true, AreaClean: false, Confidence: 0.99})
	assert.ErrorIs(t, err, ErrVerificationRejected)

	var txCount, cwCount int64
	require.NoError(t, db.Model(&models.Transaction{}).Where("type = ?", models.TransactionEarnedCollect).Count(&txCount).Error)
	require.NoError(t, db.Model(&models.CollectedWaste{}).Count(&cwCount).Error)
	assert.Zero(t, txCount)
	assert.Zero(t, cwCount)
}

func TestResolveVerificationNeverRepeatsRewards(t *testing.T) {
	db, _, _, reports, collection, _ := newTestStack(t, nil)
	reporter := createTestUser(t, db, "Ravi")
	collector := createTestUser(t, db, "Asha")
	report := submitTestReport(t, reports, reporter.ID)

	_, err := collection.ClaimTask(report.ID, collector.ID)
	require.NoError(t, err)

	judgment := &CollectionJudgment{WasteTypeMatch: true, AreaClean: true, Confidence: 0.9}
	_, err = collection.ResolveVerification(report.ID, collector.ID, judgment)
	require.NoError(t, err)

	// already verified: the task never regresses and never grants twice
	_, err = collection.ResolveVerification(report.ID, collector.ID, judgment)
	assert.ErrorIs(t, err, ErrTaskNotInProgress)

	var grantCount int64
	require.NoError(t, db.Model(&models.Transaction{}).Where("type = ?", models.TransactionEarnedCollect).Count(&grantCount).Error)
	assert.Equal(t, int64(1), grantCount)
}

func TestVerifyCollectionOracleFailureIsRejection(t *testing.T) {
	oracle := &stubOracle{err: context.DeadlineExceeded}
	db, _, _, reports, collection, _ := newTestStack(t, oracle)
	reporter := createTestUser(t, db, "Ravi")
	collector := createTestUser(t, db, "Asha")
	report := submitTestReport(t, reports, reporter.ID)

	_, err := collection.ClaimTask(report.ID, collector.ID)
	require.NoError(t, err)

	_, err = collection.VerifyCollection(context.Background(), report.ID, collector.ID, "/uploads/evidence.jpg")
	assert.ErrorIs(t, err, ErrVerificationRejected)
	assert.Equal(t, 1, oracle.calls)

	var final models.Report
	require.NoError(t, db.First(&final, "id = ?", report.ID).Error)
	assert.Equal(t, models.ReportStatusInProgress, final.Status, "oracle failure must leave state untouched")
}

func TestCompleteTaskGrantsNothing(t *testing.T) {
	db, ledger, _, reports, collection, _ := newTestStack(t, nil)
	reporter := createTestUser(t, db, "Ravi")
	collector := createTestUser(t, db, "Asha")
	report := submitTestReport(t, reports, reporter.ID)

	_, err := collection.ClaimTask(report.ID, collector.ID)
	require.NoError(t, err)

	done, err := collection.CompleteTask(report.ID, collector.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusCompleted, done.Status)

	balance, err := ledger.Balance(collector.ID)
	require.NoError(t, err)
	assert.Zero(t, balance, "completed-without-verification earns no points")

	// completed is terminal for verification too
	_, err = collection.ResolveVerification(report.ID, collector.ID,
		&CollectionJudgment{AreaClean: true, Confidence: 0.9})
	assert.ErrorIs(t, err, ErrTaskNotInProgress)
}

func TestReportToRewardScenario(t *testing.T) {
	// end to end: report "5 kg" -> reporter earns 10 -> claim -> verify at
	// 0.9 confidence -> collector rewarded, audit row present
	db, ledger, _, reports, collection, _ := newTestStack(t, nil)
	reporter := createTestUser(t, db, "Ravi")
	collector := createTestUser(t, db, "Asha")

	report, err := reports.SubmitReport(reporter.ID, "MG Road, Bengaluru", "plastic", "5 kg", "", "")
	require.NoError(t, err)

	balance, err := ledger.Balance(reporter.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)

	_, err = collection.ClaimTask(report.ID, collector.ID)
	require.NoError(t, err)

	collection.CollectReward = func() int64 { return 55 }
	outcome, err := collection.ResolveVerification(report.ID, collector.ID,
		&CollectionJudgment{WasteTypeMatch: true, AreaClean: true, Confidence: 0.9})
	require.NoError(t, err)

	assert.Equal(t, models.ReportStatusVerified, outcome.Report.Status)
	assert.Equal(t, report.ID, outcome.CollectedWaste.ReportID)
	assert.Equal(t, collector.ID, outcome.CollectedWaste.CollectorID)

	collectorBalance, err := ledger.Balance(collector.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(55), collectorBalance)
}

func TestListTasksShape(t *testing.T) {
	db, _, _, reports, collection, _ := newTestStack(t, nil)
	reporter := createTestUser(t, db, "Ravi")
	report := submitTestReport(t, reports, reporter.ID)

	tasks, err := collection.ListTasks(20)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, report.ID, tasks[0].ID)
	assert.Equal(t, "MG Road, Bengaluru", tasks[0].Location)
	assert.Equal(t, models.ReportStatusPending, tasks[0].Status)
	assert.Nil(t, tasks[0].CollectorID)
	assert.NotEmpty(t, tasks[0].Date)
}

func TestDefaultCollectRewardRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		r := defaultCollectReward()
		require.GreaterOrEqual(t, r, int64(10))
		require.LessOrEqual(t, r, int64(1009))
	}
}
