// services/users.go
package services

import (
	"errors"
	"log"
	"strings"

	"waste-rewards-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserService struct {
	DB *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

// EnsureUser creates the user on first sign-in, keyed by email (idempotent).
// A concurrent first sign-in loses the insert race and falls back to the
// existing row.
func (s *UserService) EnsureUser(email, name string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New("email is required")
	}
	if name == "" {
		name = "Anonymous User"
	}

	var user models.User
	err := s.DB.Where("email = ?", email).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = models.User{
		ID:    uuid.NewString(),
		Email: email,
		Name:  name,
	}
	if err := s.DB.Create(&user).Error; err != nil {
		// unique email conflict: another request created it first
		var existing models.User
		if ferr := s.DB.Where("email = ?", email).First(&existing).Error; ferr == nil {
			return &existing, nil
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserService) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := s.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateName is the only mutation permitted on a user record.
func (s *UserService) UpdateName(userID, name string) (*models.User, error) {
	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	user.Name = name
	if err := s.DB.Save(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// --- HTTP handlers ---

// SyncUserEndpoint is called by the gateway after sign-in to lazily create
// the local user record.
func (s *UserService) SyncUserEndpoint(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email" validate:"required,email"`
		Name  string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Email is required"})
	}

	user, err := s.EnsureUser(req.Email, req.Name)
	if err != nil {
		log.Printf("DB Error ensuring user %s: %v", req.Email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to sync user"})
	}

	return c.JSON(user)
}

// GetMeEndpoint returns the authenticated user's record.
func (s *UserService) GetMeEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	return c.JSON(user)
}

// UpdateNameEndpoint renames the authenticated user.
func (s *UserService) UpdateNameEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Name string `json:"name" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.Name) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Name is required"})
	}

	user, err := s.UpdateName(userID, strings.TrimSpace(req.Name))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		log.Printf("DB Error updating user name: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update name"})
	}

	return c.JSON(user)
}
