// workers/reconcile_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"waste-rewards-system/models"
	"waste-rewards-system/services"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reconciler sweeps the store for cross-entity gaps a crash could leave
// behind: a verified report without its CollectedWaste audit row or its
// earned_collect grant, or a report missing its submission grant. Repairs
// are idempotent because the storage layer enforces exactly-once (unique
// CollectedWaste.ReportID, unique (type, report_id) on transactions).
type Reconciler struct {
	DB     *gorm.DB
	Ledger *services.LedgerService
}

func NewReconciler(db *gorm.DB, ledger *services.LedgerService) *Reconciler {
	return &Reconciler{DB: db, Ledger: ledger}
}

// Poll runs reconciliation sweeps until ctx is cancelled.
func (r *Reconciler) Poll(ctx context.Context, interval time.Duration) {
	log.Println("Starting ledger/task reconciliation polling...")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Reconciliation polling stopped.")
			return
		case <-ticker.C:
			if repaired, err := r.Sweep(); err != nil {
				log.Printf("[RECONCILE] sweep failed: %v", err)
			} else if repaired > 0 {
				log.Printf("[RECONCILE] repaired %d inconsistent record(s)", repaired)
			}
		}
	}
}

// Sweep runs all repair passes once and returns the number of repairs.
func (r *Reconciler) Sweep() (int, error) {
	repaired := 0

	n, err := r.repairMissingReportGrants()
	if err != nil {
		return repaired, err
	}
	repaired += n

	n, err = r.repairMissingCollectedWaste()
	if err != nil {
		return repaired, err
	}
	repaired += n

	n, err = r.repairMissingCollectGrants()
	if err != nil {
		return repaired, err
	}
	repaired += n

	return repaired, nil
}

// repairMissingReportGrants grants the fixed submission reward to reports
// that have no earned_report entry. The amount is deterministic, so the
// repair is exact.
func (r *Reconciler) repairMissingReportGrants() (int, error) {
	var reports []models.Report
	err := r.DB.Raw(`
		SELECT rp.* FROM reports rp
		LEFT JOIN transactions t
		  ON t.report_id = rp.id AND t.type = 'earned_report'
		WHERE t.id IS NULL
	`).Scan(&reports).Error
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, rp := range reports {
		reportID := rp.ID
		_, err := r.Ledger.Append(r.DB, rp.UserID, models.TransactionEarnedReport,
			services.FixedReportReward, "Points earned for reporting waste", &reportID)
		if err != nil {
			log.Printf("[RECONCILE] failed to backfill earned_report for report %s: %v", rp.ID, err)
			continue
		}
		log.Printf("[RECONCILE] backfilled earned_report grant for report %s (user %s)", rp.ID, rp.UserID)
		repaired++
	}
	return repaired, nil
}

// repairMissingCollectedWaste recreates the audit row for verified reports
// that lack one, from the report's own collector assignment.
func (r *Reconciler) repairMissingCollectedWaste() (int, error) {
	var reports []models.Report
	err := r.DB.Raw(`
		SELECT rp.* FROM reports rp
		LEFT JOIN collected_wastes cw ON cw.report_id = rp.id
		WHERE rp.status = 'verified' AND cw.id IS NULL
	`).Scan(&reports).Error
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, rp := range reports {
		if rp.CollectorID == nil {
			// verified without a collector should be impossible; flag, don't guess
			log.Printf("[RECONCILE] verified report %s has no collector, skipping", rp.ID)
			continue
		}
		cw := models.CollectedWaste{
			ID:             uuid.NewString(),
			ReportID:       rp.ID,
			CollectorID:    *rp.CollectorID,
			CollectionDate: rp.UpdatedAt,
			Status:         "verified",
		}
		if err := r.DB.Create(&cw).Error; err != nil {
			log.Printf("[RECONCILE] failed to backfill collected waste for report %s: %v", rp.ID, err)
			continue
		}
		log.Printf("[RECONCILE] backfilled collected waste record for report %s", rp.ID)
		repaired++
	}
	return repaired, nil
}

// repairMissingCollectGrants appends the minimum collection reward for
// verified reports whose collector never received an earned_collect entry.
// The original grant amount is not recoverable, so the floor of the grant
// range is used and the repair logged for review.
func (r *Reconciler) repairMissingCollectGrants() (int, error) {
	var reports []models.Report
	err := r.DB.Raw(`
		SELECT rp.* FROM reports rp
		LEFT JOIN transactions t
		  ON t.report_id = rp.id AND t.type = 'earned_collect'
		WHERE rp.status = 'verified' AND t.id IS NULL
	`).Scan(&reports).Error
	if err != nil {
		return 0, err
	}

	const minCollectReward = 10

	repaired := 0
	for _, rp := range reports {
		if rp.CollectorID == nil {
			continue
		}
		reportID := rp.ID
		_, err := r.Ledger.Append(r.DB, *rp.CollectorID, models.TransactionEarnedCollect,
			minCollectReward, "Points earned from collecting waste", &reportID)
		if err != nil {
			log.Printf("[RECONCILE] failed to backfill earned_collect for report %s: %v", rp.ID, err)
			continue
		}
		log.Printf("[RECONCILE] backfilled earned_collect grant for report %s (collector %s)", rp.ID, *rp.CollectorID)
		repaired++
	}
	return repaired, nil
}
