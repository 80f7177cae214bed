package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/marmos91/vaultsync/internal/auth"
	"github.com/marmos91/vaultsync/pkg/vault/models"
)

// ============================================
// USER AND TOKEN OPERATIONS
// ============================================

// CreateUser inserts a new user row. The caller supplies the scrypt password
// hash and salt.
func (s *GORMStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.ErrDuplicateUser
		}
		return err
	}
	return nil
}

// GetUserByEmail looks up a user by the unique email column.
func (s *GORMStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, convertNotFoundError(err, models.ErrUserNotFound)
	}
	return &user, nil
}

// ValidateCredentials verifies an email/password pair against the stored
// scrypt hash in constant time.
func (s *GORMStore) ValidateCredentials(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.VerifyPassword(password, user.Salt, user.Password) {
		return nil, models.ErrInvalidCredentials
	}

	return user, nil
}

// CreateToken issues a bearer token for a user and returns the token row.
func (s *GORMStore) CreateToken(ctx context.Context, userID int64) (*models.UserToken, error) {
	token := &models.UserToken{
		UserID: userID,
		Token:  auth.GenerateToken(),
	}
	if err := s.db.WithContext(ctx).Create(token).Error; err != nil {
		return nil, err
	}
	return token, nil
}

// GetUserToken resolves a bearer token to its row, with the owning user
// preloaded. An empty token maps to ErrTokenMissing, an unknown one to
// ErrTokenNotFound.
func (s *GORMStore) GetUserToken(ctx context.Context, token string) (*models.UserToken, error) {
	if token == "" {
		return nil, models.ErrTokenMissing
	}

	var userToken models.UserToken
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("token = ?", token).
		First(&userToken).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrTokenNotFound)
	}
	return &userToken, nil
}

// DeleteToken revokes a bearer token. Unknown tokens are not an error: the
// sign-out endpoint is idempotent.
func (s *GORMStore) DeleteToken(ctx context.Context, token string) error {
	err := s.db.WithContext(ctx).
		Where("token = ?", token).
		Delete(&models.UserToken{}).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}
