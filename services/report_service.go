// services/report_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"waste-rewards-system/models"
	"waste-rewards-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

// titleWasteType normalizes free-text waste types for display ("plastic
// bottles" -> "Plastic Bottles"). A caser is not safe for concurrent use,
// so one is built per call.
func titleWasteType(wasteType string) string {
	return cases.Title(language.English).String(strings.ToLower(strings.TrimSpace(wasteType)))
}

// ReportService owns waste report submission and listing. Submission is the
// entry point of the task lifecycle: every new report starts 'pending' with
// no collector, and its fixed reporting reward is granted in the same
// database transaction so a visible report always has its ledger entry.
type ReportService struct {
	DB            *gorm.DB
	Ledger        *LedgerService
	Notifications *NotificationService
	Storage       *utils.R2Client // nil = local uploads fallback
}

func NewReportService(db *gorm.DB, ledger *LedgerService, notifications *NotificationService, storage *utils.R2Client) *ReportService {
	return &ReportService{DB: db, Ledger: ledger, Notifications: notifications, Storage: storage}
}

// SubmitReport creates the report and appends its earned_report ledger entry
// atomically. verification is the opaque report-time oracle payload (may be
// empty). The reward notification is advisory and sent after commit.
func (s *ReportService) SubmitReport(userID, location, wasteType, amount, imageURL, verification string) (*models.Report, error) {
	if userID == "" || location == "" || wasteType == "" || amount == "" {
		return nil, errors.New("user, location, waste type and amount are required")
	}

	report := &models.Report{
		ID:                 uuid.NewString(),
		UserID:             userID,
		Location:           location,
		WasteType:          titleWasteType(wasteType),
		Amount:             strings.TrimSpace(amount),
		ImageURL:           imageURL,
		VerificationResult: verification,
		Status:             models.ReportStatusPending,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(report).Error; err != nil {
			return err
		}
		_, err := s.Ledger.Append(tx, userID, models.TransactionEarnedReport,
			FixedReportReward, "Points earned for reporting waste", &report.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Notifications.NotifyAsync(userID,
		fmt.Sprintf("You've earned %d points for reporting waste!", FixedReportReward), "reward")

	return report, nil
}

// RecentReports returns reports newest first, bounded.
func (s *ReportService) RecentReports(limit int) ([]models.Report, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	var reports []models.Report
	err := s.DB.Order("created_at DESC").Limit(limit).Find(&reports).Error
	return reports, err
}

// PendingReports returns every report still waiting for a collector.
func (s *ReportService) PendingReports() ([]models.Report, error) {
	var reports []models.Report
	err := s.DB.Where("status = ?", models.ReportStatusPending).
		Order("created_at DESC").
		Find(&reports).Error
	return reports, err
}

// ImpactStats is the community-impact summary shown on the landing page.
type ImpactStats struct {
	ReportsSubmitted int64   `json:"reports_submitted"`
	WasteCollectedKG float64 `json:"waste_collected_kg"`
	PointsGranted    int64   `json:"points_granted"`
	CO2OffsetKG      float64 `json:"co2_offset_kg"`
}

// Impact aggregates reports and the ledger into headline numbers. Collected
// kilograms are parsed out of the free-text amounts of verified reports;
// CO2 offset uses the 0.5 kg-per-kg factor.
func (s *ReportService) Impact() (*ImpactStats, error) {
	var stats ImpactStats

	if err := s.DB.Model(&models.Report{}).Count(&stats.ReportsSubmitted).Error; err != nil {
		return nil, err
	}

	var amounts []string
	if err := s.DB.Model(&models.Report{}).
		Where("status = ?", models.ReportStatusVerified).
		Pluck("amount", &amounts).Error; err != nil {
		return nil, err
	}
	for _, a := range amounts {
		stats.WasteCollectedKG += ParseAmountKG(a)
	}
	stats.WasteCollectedKG = math.Round(stats.WasteCollectedKG*10) / 10
	stats.CO2OffsetKG = math.Round(stats.WasteCollectedKG*0.5*10) / 10

	err := s.DB.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("type IN ?", []models.TransactionType{models.TransactionEarnedReport, models.TransactionEarnedCollect}).
		Scan(&stats.PointsGranted).Error
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

// ParseAmountKG extracts the leading numeric quantity from a free-text
// amount like "5 kg" or "2.5 litres". Non-numeric amounts count as zero.
func ParseAmountKG(amount string) float64 {
	amount = strings.TrimSpace(amount)
	end := 0
	for end < len(amount) {
		ch := amount[end]
		if (ch >= '0' && ch <= '9') || ch == '.' {
			end++
			continue
		}
		break
	}
	if end == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(amount[:end], 64)
	if err != nil {
		return 0
	}
	return v
}

// storeImage uploads the report photo to R2, or to the local uploads dir
// when R2 is not configured.
func (s *ReportService) storeImage(c *fiber.Ctx, wasteType string) (string, error) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return "", nil // image is optional
	}

	key := utils.ImageKey("reports", wasteType, fileHeader.Filename)
	if s.Storage != nil {
		return s.Storage.UploadFile(fileHeader, key)
	}

	destPath := utils.GetUploadPath(key)
	if err := utils.SaveFile(fileHeader, destPath); err != nil {
		return "", err
	}
	return "/" + destPath, nil
}

// --- HTTP handlers ---

// CreateReportEndpoint accepts a multipart form: location, waste_type,
// amount, optional image file and optional verification_result JSON blob
// from the report-time classifier.
func (s *ReportService) CreateReportEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	location := strings.TrimSpace(c.FormValue("location"))
	wasteType := strings.TrimSpace(c.FormValue("waste_type"))
	amount := strings.TrimSpace(c.FormValue("amount"))
	verification := c.FormValue("verification_result")

	if location == "" || wasteType == "" || amount == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "location, waste_type and amount are required"})
	}

	imageURL, err := s.storeImage(c, wasteType)
	if err != nil {
		log.Printf("Failed to store report image: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to store image"})
	}

	report, err := s.SubmitReport(userID, location, wasteType, amount, imageURL, verification)
	if err != nil {
		log.Printf("DB Error creating report for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create report"})
	}

	return c.Status(fiber.StatusCreated).JSON(report)
}

// GetRecentReportsEndpoint lists reports newest first.
func (s *ReportService) GetRecentReportsEndpoint(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "10"))

	reports, err := s.RecentReports(limit)
	if err != nil {
		log.Printf("DB Error fetching recent reports: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch reports"})
	}

	return c.JSON(reports)
}

// GetPendingReportsEndpoint lists reports awaiting a collector.
func (s *ReportService) GetPendingReportsEndpoint(c *fiber.Ctx) error {
	reports, err := s.PendingReports()
	if err != nil {
		log.Printf("DB Error fetching pending reports: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch reports"})
	}

	return c.JSON(reports)
}

// GetImpactEndpoint returns the community impact summary.
func (s *ReportService) GetImpactEndpoint(c *fiber.Ctx) error {
	stats, err := s.Impact()
	if err != nil {
		log.Printf("DB Error computing impact stats: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to compute impact stats"})
	}

	return c.JSON(stats)
}

// GetMyReportsEndpoint lists the authenticated user's own reports.
func (s *ReportService) GetMyReportsEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var reports []models.Report
	if err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&reports).Error; err != nil {
		log.Printf("DB Error fetching reports for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch reports"})
	}

	return c.JSON(reports)
}
