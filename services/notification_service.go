// services/notification_service.go
package services

import (
	"errors"
	"log"

	"waste-rewards-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationService delivers advisory user-facing events. Notifications are
// never a correctness dependency: a failed insert is logged and dropped, and
// a crash between a ledger append and its notification leaves the ledger
// entry in place.
type NotificationService struct {
	DB *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

// Notify inserts one unread notification.
func (s *NotificationService) Notify(userID, message, notifType string) (*models.Notification, error) {
	n := &models.Notification{
		ID:      uuid.NewString(),
		UserID:  userID,
		Message: message,
		Type:    notifType,
	}
	if err := s.DB.Create(n).Error; err != nil {
		return nil, err
	}
	return n, nil
}

// NotifyAsync is the fire-and-forget form used after state transitions:
// failures are logged, never propagated into the caller's outcome.
func (s *NotificationService) NotifyAsync(userID, message, notifType string) {
	if _, err := s.Notify(userID, message, notifType); err != nil {
		log.Printf("[NOTIFY] dropped notification for %s (%s): %v", userID, notifType, err)
	}
}

// Unread returns the user's unread notifications, newest first.
func (s *NotificationService) Unread(userID string) ([]models.Notification, error) {
	var notifications []models.Notification
	err := s.DB.Where("user_id = ? AND is_read = ?", userID, false).
		Order("created_at DESC").
		Find(&notifications).Error
	return notifications, err
}

// MarkRead flips one notification to read. Idempotent: re-marking an
// already-read notification is a no-op, not an error.
func (s *NotificationService) MarkRead(notificationID string) error {
	return s.DB.Model(&models.Notification{}).
		Where("id = ?", notificationID).
		Update("is_read", true).Error
}

// MarkAllRead flips every unread notification for the user. An empty set is
// a no-op.
func (s *NotificationService) MarkAllRead(userID string) (int64, error) {
	result := s.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

// --- HTTP handlers ---

// GetUnreadEndpoint returns unread notifications for the authenticated user.
// Clients poll this; the contract is pull-based, transport is their concern.
func (s *NotificationService) GetUnreadEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	notifications, err := s.Unread(userID)
	if err != nil {
		log.Printf("DB Error fetching notifications for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch notifications"})
	}

	return c.JSON(notifications)
}

// MarkReadEndpoint marks a single notification as read.
func (s *NotificationService) MarkReadEndpoint(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid notification ID"})
	}

	userID := c.Locals("user_id").(string)

	// scope to owner so one user cannot mark another's notifications
	var n models.Notification
	if err := s.DB.Where("id = ? AND user_id = ?", id, userID).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Notification not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if err := s.MarkRead(id); err != nil {
		log.Printf("DB Error marking notification %s read: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to mark as read"})
	}

	return c.JSON(fiber.Map{"message": "OK", "notification_id": id, "is_read": true})
}

// MarkAllReadEndpoint marks every unread notification for the user.
func (s *NotificationService) MarkAllReadEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	marked, err := s.MarkAllRead(userID)
	if err != nil {
		log.Printf("DB Error bulk-marking notifications for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update notifications"})
	}

	return c.JSON(fiber.Map{"message": "OK", "marked_count": marked})
}
