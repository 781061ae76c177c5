package repository

import (
	"errors"
	"fmt"

	"musichelper/core/auth"
	"musichelper/logger"
	"musichelper/model"

	"gorm.io/gorm"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	CreateUser(user *model.User) (int64, error)
	GetUserByID(id int64) (*model.User, error)
	GetUserByUsername(username string) (*model.User, error)
	GetUserByEmail(email string) (*model.User, error)
	UpdatePassword(userID int64, passwordHash string) error
	EnsureDefaultAdmin() error
}

// gormUserRepository implements UserRepository on top of GORM.
type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new instance of gormUserRepository.
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

// CreateUser inserts a new user and returns its ID.
func (r *gormUserRepository) CreateUser(user *model.User) (int64, error) {
	if err := r.db.Create(user).Error; err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return user.ID, nil
}

// GetUserByID retrieves a user by ID. Returns (nil, nil) when absent.
func (r *gormUserRepository) GetUserByID(id int64) (*model.User, error) {
	var user model.User
	err := r.db.First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user by ID %d: %w", id, err)
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username. Returns (nil, nil) when absent.
func (r *gormUserRepository) GetUserByUsername(username string) (*model.User, error) {
	var user model.User
	err := r.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user by username %s: %w", username, err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email. Returns (nil, nil) when absent.
func (r *gormUserRepository) GetUserByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user by email %s: %w", email, err)
	}
	return &user, nil
}

// UpdatePassword replaces the stored password hash of a user.
func (r *gormUserRepository) UpdatePassword(userID int64, passwordHash string) error {
	res := r.db.Model(&model.User{}).Where("id = ?", userID).Update("password_hash", passwordHash)
	if res.Error != nil {
		return fmt.Errorf("failed to update password for user %d: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %d not found", userID)
	}
	return nil
}

// EnsureDefaultAdmin creates the built-in admin account on first boot.
// Idempotent: does nothing when the account already exists.
func (r *gormUserRepository) EnsureDefaultAdmin() error {
	existing, err := r.GetUserByUsername("admin")
	if err != nil {
		return fmt.Errorf("failed to check for admin user: %w", err)
	}
	if existing != nil {
		logger.Info("Admin user already exists", logger.Int64("userId", existing.ID))
		return nil
	}

	hashed, err := auth.HashPassword("admin123")
	if err != nil {
		return fmt.Errorf("failed to hash default admin password: %w", err)
	}

	admin := &model.User{
		Username:     "admin",
		Email:        "admin@musichelper.local",
		PasswordHash: hashed,
		FullName:     "Administrator",
		IsAdmin:      true,
	}
	id, err := r.CreateUser(admin)
	if err != nil {
		return fmt.Errorf("failed to create default admin: %w", err)
	}

	logger.Info("Default admin user created", logger.Int64("userId", id))
	logger.Warn("Default admin credentials are active, change the password with the resetadmin command")
	return nil
}
