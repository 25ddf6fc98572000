// services/reward_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"waste-rewards-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RewardService owns the redeemable catalog and redemption. The catalog is
// read-only with respect to points: redeeming only appends a 'redeemed'
// ledger entry. Per-user redemptions are serialized by locking the user row,
// so two concurrent redeems can never both pass a stale balance check.
type RewardService struct {
	DB            *gorm.DB
	Ledger        *LedgerService
	Notifications *NotificationService
}

func NewRewardService(db *gorm.DB, ledger *LedgerService, notifications *NotificationService) *RewardService {
	return &RewardService{DB: db, Ledger: ledger, Notifications: notifications}
}

// AvailableRewards lists the catalog for a user, headed by a synthetic
// "Your Points" entry carrying the live derived balance. The head entry is
// computed, never stored.
func (s *RewardService) AvailableRewards(userID string) ([]models.AvailableReward, error) {
	balance, err := s.Ledger.Balance(userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var rewards []models.Reward
	err = s.DB.Where("is_available = ?", true).
		Where("expiry_date IS NULL OR expiry_date >= ?", now).
		Order("cost ASC").
		Find(&rewards).Error
	if err != nil {
		return nil, err
	}

	all := make([]models.AvailableReward, 0, len(rewards)+1)
	all = append(all, models.AvailableReward{
		ID:             "",
		Name:           "Your Points",
		Cost:           balance,
		Description:    "Redeem your earned points",
		CollectionInfo: "Points earned from reporting and collecting waste",
	})
	for _, r := range rewards {
		all = append(all, models.AvailableReward{
			ID:             r.ID,
			Name:           r.Name,
			Cost:           r.Cost,
			Description:    r.Description,
			CollectionInfo: r.CollectionInfo,
		})
	}
	return all, nil
}

// Redeem exchanges points for a catalog reward. The balance precondition is
// re-checked inside the transaction under a FOR UPDATE lock on the user row,
// which serializes redemptions per user.
func (s *RewardService) Redeem(userID, rewardID string) (*models.Transaction, error) {
	var entry *models.Transaction
	var rewardName string

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		userQuery := tx
		if tx.Dialector.Name() == "postgres" {
			// SELECT ... FOR UPDATE on the user row; SQLite (tests) has a
			// single writer and needs no row lock
			userQuery = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var user models.User
		if err := userQuery.First(&user, "id = ?", userID).Error; err != nil {
			return err
		}

		var reward models.Reward
		if err := tx.Where("id = ? AND is_available = ?", rewardID, true).
			Where("expiry_date IS NULL OR expiry_date >= ?", time.Now()).
			First(&reward).Error; err != nil {
			return err
		}
		rewardName = reward.Name

		balance, err := s.Ledger.balanceIn(tx, userID)
		if err != nil {
			return err
		}
		if balance < reward.Cost {
			return ErrInsufficientBalance
		}

		entry, err = s.Ledger.Append(tx, userID, models.TransactionRedeemed,
			reward.Cost, fmt.Sprintf("Redeemed: %s", reward.Name), nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Notifications.NotifyAsync(userID,
		fmt.Sprintf("You've redeemed %d points for %s.", entry.Amount, rewardName), "redemption")

	return entry, nil
}

// CreateCatalogReward adds a catalog entry (admin).
func (s *RewardService) CreateCatalogReward(name, description, collectionInfo string, cost int64, expiry *time.Time) (*models.Reward, error) {
	if name == "" {
		return nil, errors.New("name is required")
	}
	if cost <= 0 {
		return nil, ErrInvalidAmount
	}

	reward := &models.Reward{
		ID:             uuid.NewString(),
		Name:           name,
		Slug:           slug.Make(name),
		Cost:           cost,
		Description:    description,
		CollectionInfo: collectionInfo,
		IsAvailable:    true,
		ExpiryDate:     expiry,
	}
	if err := s.DB.Create(reward).Error; err != nil {
		return nil, err
	}
	return reward, nil
}

// SweepExpired flips availability off for catalog rewards past their expiry.
// Called periodically by the scheduler.
func (s *RewardService) SweepExpired() (int64, error) {
	res := s.DB.Model(&models.Reward{}).
		Where("is_available = ? AND expiry_date IS NOT NULL AND expiry_date < ?", true, time.Now()).
		Update("is_available", false)
	return res.RowsAffected, res.Error
}

// --- HTTP handlers ---

// GetAvailableRewardsEndpoint lists the catalog plus the synthetic balance
// head entry for the authenticated user.
func (s *RewardService) GetAvailableRewardsEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	rewards, err := s.AvailableRewards(userID)
	if err != nil {
		log.Printf("DB Error fetching rewards for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch rewards"})
	}

	return c.JSON(rewards)
}

// RedeemRewardEndpoint redeems a catalog reward for the authenticated user.
func (s *RewardService) RedeemRewardEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	rewardID := c.Params("id")
	if _, err := uuid.Parse(rewardID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid reward ID"})
	}

	entry, err := s.Redeem(userID, rewardID)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reward not found or unavailable"})
		case errors.Is(err, ErrInsufficientBalance):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrInsufficientBalance.Error()})
		default:
			log.Printf("DB Error redeeming reward %s for %s: %v", rewardID, userID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to redeem reward"})
		}
	}

	return c.JSON(fiber.Map{"message": "Reward redeemed successfully", "transaction": entry})
}

// CreateRewardEndpoint creates a catalog reward (Admin only).
func (s *RewardService) CreateRewardEndpoint(c *fiber.Ctx) error {
	var req struct {
		Name           string     `json:"name" validate:"required"`
		Cost           int64      `json:"cost" validate:"required,min=1"`
		Description    string     `json:"description"`
		CollectionInfo string     `json:"collection_info"`
		ExpiryDate     *time.Time `json:"expiry_date"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	reward, err := s.CreateCatalogReward(req.Name, req.Description, req.CollectionInfo, req.Cost, req.ExpiryDate)
	if err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cost must be a positive integer"})
		}
		log.Printf("DB Error creating catalog reward: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create reward"})
	}

	return c.Status(fiber.StatusCreated).JSON(reward)
}

// UpdateRewardEndpoint updates a catalog reward (Admin only).
func (s *RewardService) UpdateRewardEndpoint(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid reward ID"})
	}

	var reward models.Reward
	if err := s.DB.First(&reward, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reward not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var req struct {
		Name           *string    `json:"name"`
		Cost           *int64     `json:"cost"`
		Description    *string    `json:"description"`
		CollectionInfo *string    `json:"collection_info"`
		IsAvailable    *bool      `json:"is_available"`
		ExpiryDate     *time.Time `json:"expiry_date"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Name != nil {
		reward.Name = *req.Name
		reward.Slug = slug.Make(*req.Name)
	}
	if req.Cost != nil {
		if *req.Cost <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cost must be a positive integer"})
		}
		reward.Cost = *req.Cost
	}
	if req.Description != nil {
		reward.Description = *req.Description
	}
	if req.CollectionInfo != nil {
		reward.CollectionInfo = *req.CollectionInfo
	}
	if req.IsAvailable != nil {
		reward.IsAvailable = *req.IsAvailable
	}
	if req.ExpiryDate != nil {
		reward.ExpiryDate = req.ExpiryDate
	}

	if err := s.DB.Save(&reward).Error; err != nil {
		log.Printf("DB Error updating catalog reward: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update reward"})
	}

	return c.JSON(reward)
}

// DeleteRewardEndpoint soft-deletes a catalog reward (Admin only).
func (s *RewardService) DeleteRewardEndpoint(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid reward ID"})
	}

	var reward models.Reward
	if err := s.DB.First(&reward, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reward not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if err := s.DB.Delete(&reward).Error; err != nil {
		log.Printf("DB Error deleting catalog reward: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete reward"})
	}

	return c.JSON(fiber.Map{"message": "Reward deleted successfully"})
}

// GetAllRewardsEndpoint lists every catalog reward (Admin only).
func (s *RewardService) GetAllRewardsEndpoint(c *fiber.Ctx) error {
	var rewards []models.Reward
	if err := s.DB.Order("created_at DESC").Find(&rewards).Error; err != nil {
		log.Printf("DB Error fetching all rewards: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch rewards"})
	}

	return c.JSON(rewards)
}
