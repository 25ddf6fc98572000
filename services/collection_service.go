// services/collection_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"time"

	"waste-rewards-system/models"
	"waste-rewards-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// defaultCollectReward draws a bounded random grant in [10, 1009]. A
// deterministic formula of the reported quantity may replace this; the
// injection point on CollectionService keeps that a one-line change.
func defaultCollectReward() int64 {
	return int64(rand.Intn(1000)) + 10
}

// CollectionService drives a report through the collection lifecycle:
// pending -> in_progress -> verified (rewarded), with in_progress ->
// completed as the unrewarded alternate terminal. All contended writes go
// through single conditional UPDATEs on the (status, collector_id) pair.
type CollectionService struct {
	DB            *gorm.DB
	Ledger        *LedgerService
	Notifications *NotificationService
	Oracle        Oracle
	Storage       *utils.R2Client // nil = local uploads fallback

	// CollectReward decides the point grant for a verified collection.
	// Injectable for tests; defaults to defaultCollectReward.
	CollectReward func() int64

	// OracleTimeout bounds the external verification call; a timeout is a
	// rejection, never a success.
	OracleTimeout time.Duration
}

func NewCollectionService(db *gorm.DB, ledger *LedgerService, notifications *NotificationService, oracle Oracle, storage *utils.R2Client) *CollectionService {
	return &CollectionService{
		DB:            db,
		Ledger:        ledger,
		Notifications: notifications,
		Oracle:        oracle,
		Storage:       storage,
		CollectReward: defaultCollectReward,
		OracleTimeout: 45 * time.Second,
	}
}

// TaskView is the listing shape exposed to collectors.
type TaskView struct {
	ID          string              `json:"id"`
	Location    string              `json:"location"`
	WasteType   string              `json:"waste_type"`
	Amount      string              `json:"amount"`
	Status      models.ReportStatus `json:"status"`
	Date        string              `json:"date"`
	CollectorID *string             `json:"collector_id,omitempty"`
}

// ListTasks returns reports as collection tasks, newest first.
func (s *CollectionService) ListTasks(limit int) ([]TaskView, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var reports []models.Report
	if err := s.DB.Order("created_at DESC").Limit(limit).Find(&reports).Error; err != nil {
		return nil, err
	}

	tasks := make([]TaskView, len(reports))
	for i, r := range reports {
		tasks[i] = TaskView{
			ID:          r.ID,
			Location:    r.Location,
			WasteType:   r.WasteType,
			Amount:      r.Amount,
			Status:      r.Status,
			Date:        r.CreatedAt.Format("2006-01-02"),
			CollectorID: r.CollectorID,
		}
	}
	return tasks, nil
}

// ClaimTask assigns the task to the collector with a compare-and-swap on
// status=pending: two concurrent claims produce exactly one winner. A
// re-claim by the already-assigned collector is a no-op, not an error.
func (s *CollectionService) ClaimTask(reportID, collectorID string) (*models.Report, error) {
	res := s.DB.Model(&models.Report{}).
		Where("id = ? AND status = ?", reportID, models.ReportStatusPending).
		Updates(map[string]interface{}{
			"status":       models.ReportStatusInProgress,
			"collector_id": collectorID,
		})
	if res.Error != nil {
		return nil, res.Error
	}

	var report models.Report
	if err := s.DB.First(&report, "id = ?", reportID).Error; err != nil {
		return nil, err
	}

	if res.RowsAffected == 0 {
		// lost the race or task already past pending: idempotent only for
		// the collector that holds it
		if report.CollectorID != nil && *report.CollectorID == collectorID &&
			report.Status == models.ReportStatusInProgress {
			return &report, nil
		}
		return nil, ErrAlreadyClaimed
	}

	return &report, nil
}

// SubmitEvidence validates that the collector may attach evidence to the
// task (in_progress, assigned to them). It changes no state; the evidence
// image is the input to verification.
func (s *CollectionService) SubmitEvidence(reportID, collectorID string) (*models.Report, error) {
	var report models.Report
	if err := s.DB.First(&report, "id = ?", reportID).Error; err != nil {
		return nil, err
	}
	if report.Status != models.ReportStatusInProgress {
		return nil, ErrTaskNotInProgress
	}
	if report.CollectorID == nil || *report.CollectorID != collectorID {
		return nil, ErrNotAssignedCollector
	}
	return &report, nil
}

// CollectionOutcome is what a successful verification produces.
type CollectionOutcome struct {
	Report         *models.Report         `json:"report"`
	CollectedWaste *models.CollectedWaste `json:"collected_waste"`
	Reward         int64                  `json:"reward"`
	Judgment       *CollectionJudgment    `json:"judgment"`
}

// ResolveVerification applies an oracle judgment to the task. On acceptance
// (area clean AND confidence strictly above 0.5) one transaction moves the
// report to verified, inserts the CollectedWaste audit row and appends the
// earned_collect ledger entry. On rejection nothing changes and the report
// stays in_progress.
func (s *CollectionService) ResolveVerification(reportID, collectorID string, judgment *CollectionJudgment) (*CollectionOutcome, error) {
	// re-check assignment regardless of what the caller believes
	report, err := s.SubmitEvidence(reportID, collectorID)
	if err != nil {
		return nil, err
	}

	if !judgment.Accepted() {
		return nil, ErrVerificationRejected
	}

	reward := s.CollectReward()
	judgmentJSON, _ := json.Marshal(judgment)

	outcome := &CollectionOutcome{Reward: reward, Judgment: judgment}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Report{}).
			Where("id = ? AND status = ? AND collector_id = ?",
				reportID, models.ReportStatusInProgress, collectorID).
			Update("status", models.ReportStatusVerified)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// state moved under us (concurrent resolve/complete)
			return ErrTaskNotInProgress
		}

		cw := &models.CollectedWaste{
			ID:                 uuid.NewString(),
			ReportID:           reportID,
			CollectorID:        collectorID,
			CollectionDate:     time.Now(),
			Status:             "verified",
			VerificationResult: string(judgmentJSON),
		}
		if err := tx.Create(cw).Error; err != nil {
			return err
		}
		outcome.CollectedWaste = cw

		_, err := s.Ledger.Append(tx, collectorID, models.TransactionEarnedCollect,
			reward, "Points earned from collecting waste", &reportID)
		return err
	})
	if err != nil {
		return nil, err
	}

	report.Status = models.ReportStatusVerified
	outcome.Report = report

	s.Notifications.NotifyAsync(collectorID,
		fmt.Sprintf("Verification successful! You've earned %d points for collecting waste.", reward), "reward")

	return outcome, nil
}

// VerifyCollection is the verification gate end to end: consult the oracle
// about the evidence image, then resolve. Oracle failures and timeouts map
// to ErrVerificationRejected with no state change.
func (s *CollectionService) VerifyCollection(ctx context.Context, reportID, collectorID, evidenceURL string) (*CollectionOutcome, error) {
	report, err := s.SubmitEvidence(reportID, collectorID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.OracleTimeout)
	defer cancel()

	judgment, err := s.Oracle.VerifyCollection(ctx, report.WasteType, report.Amount, evidenceURL)
	if err != nil {
		log.Printf("[VERIFY] oracle call failed for report %s: %v", reportID, err)
		return nil, ErrVerificationRejected
	}

	return s.ResolveVerification(reportID, collectorID, judgment)
}

// CompleteTask closes an in_progress task without verification. No points
// are granted on this path; only verified collections earn.
func (s *CollectionService) CompleteTask(reportID, collectorID string) (*models.Report, error) {
	res := s.DB.Model(&models.Report{}).
		Where("id = ? AND status = ? AND collector_id = ?",
			reportID, models.ReportStatusInProgress, collectorID).
		Update("status", models.ReportStatusCompleted)
	if res.Error != nil {
		return nil, res.Error
	}

	var report models.Report
	if err := s.DB.First(&report, "id = ?", reportID).Error; err != nil {
		return nil, err
	}

	if res.RowsAffected == 0 {
		if report.Status != models.ReportStatusInProgress {
			return nil, ErrTaskNotInProgress
		}
		return nil, ErrNotAssignedCollector
	}

	return &report, nil
}

// --- HTTP handlers ---

// GetTasksEndpoint lists collection tasks.
func (s *CollectionService) GetTasksEndpoint(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	tasks, err := s.ListTasks(limit)
	if err != nil {
		log.Printf("DB Error fetching tasks: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch tasks"})
	}

	return c.JSON(tasks)
}

// ClaimTaskEndpoint claims a pending task for the authenticated collector.
func (s *CollectionService) ClaimTaskEndpoint(c *fiber.Ctx) error {
	collectorID := c.Locals("user_id").(string)
	reportID := c.Params("id")
	if _, err := uuid.Parse(reportID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid task ID"})
	}

	report, err := s.ClaimTask(reportID, collectorID)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Task not found"})
		case errors.Is(err, ErrAlreadyClaimed):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": ErrAlreadyClaimed.Error()})
		default:
			log.Printf("DB Error claiming task %s: %v", reportID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to claim task"})
		}
	}

	return c.JSON(report)
}

// VerifyTaskEndpoint is the full gate: store the evidence image, consult
// the oracle, resolve the transition. Returns the judgment either way.
func (s *CollectionService) VerifyTaskEndpoint(c *fiber.Ctx) error {
	collectorID := c.Locals("user_id").(string)
	reportID := c.Params("id")
	if _, err := uuid.Parse(reportID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid task ID"})
	}

	report, err := s.SubmitEvidence(reportID, collectorID)
	if err != nil {
		return s.taskError(c, reportID, err)
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Evidence image is required"})
	}

	key := utils.ImageKey("evidence", report.WasteType, fileHeader.Filename)
	var evidenceURL string
	if s.Storage != nil {
		evidenceURL, err = s.Storage.UploadFile(fileHeader, key)
	} else {
		destPath := utils.GetUploadPath(key)
		if err = utils.SaveFile(fileHeader, destPath); err == nil {
			evidenceURL = "/" + destPath
		}
	}
	if err != nil {
		log.Printf("Failed to store evidence image for task %s: %v", reportID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to store evidence image"})
	}

	outcome, err := s.VerifyCollection(c.Context(), reportID, collectorID, evidenceURL)
	if err != nil {
		if errors.Is(err, ErrVerificationRejected) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": ErrVerificationRejected.Error(),
			})
		}
		return s.taskError(c, reportID, err)
	}

	return c.JSON(outcome)
}

// CompleteTaskEndpoint marks an in_progress task completed (no reward).
func (s *CollectionService) CompleteTaskEndpoint(c *fiber.Ctx) error {
	collectorID := c.Locals("user_id").(string)
	reportID := c.Params("id")
	if _, err := uuid.Parse(reportID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid task ID"})
	}

	report, err := s.CompleteTask(reportID, collectorID)
	if err != nil {
		return s.taskError(c, reportID, err)
	}

	return c.JSON(report)
}

func (s *CollectionService) taskError(c *fiber.Ctx, reportID string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Task not found"})
	case errors.Is(err, ErrNotAssignedCollector):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": ErrNotAssignedCollector.Error()})
	case errors.Is(err, ErrTaskNotInProgress):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": ErrTaskNotInProgress.Error()})
	default:
		log.Printf("DB Error on task %s: %v", reportID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Task operation failed"})
	}
}
