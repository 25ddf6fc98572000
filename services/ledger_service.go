// services/ledger_service.go
package services

import (
	"log"
	"strconv"

	"waste-rewards-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FixedReportReward is the flat point grant for submitting a waste report.
const FixedReportReward = 10

// LedgerService owns the append-only transaction log. Balance is always
// derived by aggregation over the log, never kept as a mutable counter, so
// concurrent earns and redeems cannot drift.
type LedgerService struct {
	DB *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

// Append inserts one ledger entry. db may be an open transaction so callers
// can make the append atomic with their own writes; pass s.DB otherwise.
// reportID links earn entries back to their report (nil for redemptions);
// the (report_id, type) unique index keeps per-report grants exactly-once.
func (s *LedgerService) Append(db *gorm.DB, userID string, kind models.TransactionType, amount int64, description string, reportID *string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	tx := &models.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        kind,
		Amount:      amount,
		Description: description,
		ReportID:    reportID,
	}
	if err := db.Create(tx).Error; err != nil {
		return nil, err
	}
	return tx, nil
}

// Balance derives the user's point balance from the full ledger: earned
// types add, redeemed subtracts, floored at zero for display/spend. The
// single aggregate query gives readers a consistent pre- or post-append view.
func (s *LedgerService) Balance(userID string) (int64, error) {
	return s.balanceIn(s.DB, userID)
}

// balanceIn runs the aggregate inside the given DB handle, so redemption can
// recompute under its row lock.
func (s *LedgerService) balanceIn(db *gorm.DB, userID string) (int64, error) {
	var balance int64
	err := db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(CASE WHEN type = ? THEN -amount ELSE amount END), 0)", models.TransactionRedeemed).
		Where("user_id = ?", userID).
		Scan(&balance).Error
	if err != nil {
		return 0, err
	}
	if balance < 0 {
		balance = 0
	}
	return balance, nil
}

// RecentTransactions returns the user's entries newest first, bounded.
func (s *LedgerService) RecentTransactions(userID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	var txs []models.Transaction
	err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}

// LeaderboardEntry is the ranked listing shape: users by descending derived
// points.
type LeaderboardEntry struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Points   int64  `json:"points"`
}

// Leaderboard ranks users by derived balance, descending.
func (s *LedgerService) Leaderboard(limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var entries []LeaderboardEntry
	err := s.DB.Raw(`
		SELECT u.id AS user_id, u.name AS user_name,
		       COALESCE(SUM(CASE WHEN t.type = 'redeemed' THEN -t.amount ELSE t.amount END), 0) AS points
		FROM users u
		LEFT JOIN transactions t ON t.user_id = u.id
		WHERE u.deleted_at IS NULL
		GROUP BY u.id, u.name
		ORDER BY points DESC
		LIMIT ?
	`, limit).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].Points < 0 {
			entries[i].Points = 0
		}
	}
	return entries, nil
}

// --- HTTP handlers ---

// GetBalanceEndpoint returns the authenticated user's derived balance.
func (s *LedgerService) GetBalanceEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	balance, err := s.Balance(userID)
	if err != nil {
		log.Printf("DB Error computing balance for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to compute balance"})
	}

	return c.JSON(fiber.Map{"user_id": userID, "balance": balance})
}

// GetTransactionsEndpoint returns the authenticated user's recent entries.
func (s *LedgerService) GetTransactionsEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	limit, _ := strconv.Atoi(c.Query("limit", "10"))

	txs, err := s.RecentTransactions(userID, limit)
	if err != nil {
		log.Printf("DB Error fetching transactions for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch transactions"})
	}

	return c.JSON(txs)
}

// GetLeaderboardEndpoint returns the point ranking (public, gateway-authed).
func (s *LedgerService) GetLeaderboardEndpoint(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	entries, err := s.Leaderboard(limit)
	if err != nil {
		log.Printf("DB Error building leaderboard: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to build leaderboard"})
	}

	return c.JSON(entries)
}
