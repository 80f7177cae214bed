package models

import "errors"

// Domain errors for vault and sync operations.
var (
	// User errors
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateUser      = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Token errors
	ErrTokenMissing  = errors.New("token missing")
	ErrTokenNotFound = errors.New("token not found")

	// Vault errors
	ErrVaultNotFound   = errors.New("vault not found")
	ErrAccessDenied    = errors.New("access denied")
	ErrInvalidKeyHash  = errors.New("invalid vault password")
	ErrVaultNotDeleted = errors.New("vault is not marked deleted")

	// Record errors
	ErrRecordNotFound = errors.New("record not found")
	ErrCursorAhead    = errors.New("client cursor is ahead of the log")
)
