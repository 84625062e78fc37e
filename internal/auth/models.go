package auth

import (
	"time"

	"gorm.io/gorm"
)

// User is an account credential row. Profile data (display name, cash
// balance) lives on the ledger's wallet row, keyed by UserID.
type User struct {
	gorm.Model   `json:"-"`
	UserID       string    `gorm:"uniqueIndex" json:"user_id"`
	Email        string    `gorm:"uniqueIndex" json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// SignupRequest is the request body for account creation
type SignupRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name" binding:"required,min=3"`
}

// LoginRequest is the request body for authentication
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse represents the JWT token response
type TokenResponse struct {
	UserID     string    `json:"user_id"`
	Token      string    `json:"jwt_token"`
	Expiration time.Time `json:"expiration"`
}
