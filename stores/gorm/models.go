package gorm

import (
	"time"

	"github.com/ChanSarun168/signon"
)

// UserModel is the GORM model for users
type UserModel struct {
	ID           string    `gorm:"primaryKey;size:64"`
	Username     string    `gorm:"size:64"`
	Email        string    `gorm:"size:255;uniqueIndex"`
	PasswordHash string    `gorm:"size:128"`
	Verified     bool      `gorm:"default:false"`
	Provider     string    `gorm:"size:32;index:idx_provider_subject"`
	ProviderID   string    `gorm:"size:128;index:idx_provider_subject"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToUser() *signon.User {
	return &signon.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Verified:     m.Verified,
		Provider:     m.Provider,
		ProviderID:   m.ProviderID,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func UserToModel(u *signon.User) *UserModel {
	return &UserModel{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Verified:     u.Verified,
		Provider:     u.Provider,
		ProviderID:   u.ProviderID,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// VerificationTokenModel is the GORM model for verification tokens
type VerificationTokenModel struct {
	Token     string    `gorm:"primaryKey;size:128"`
	UserID    string    `gorm:"size:64;index"`
	Email     string    `gorm:"size:255"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	ExpiresAt time.Time `gorm:"index"`
}

func (VerificationTokenModel) TableName() string {
	return "verification_tokens"
}

func (m *VerificationTokenModel) ToToken() *signon.VerificationToken {
	return &signon.VerificationToken{
		Token:     m.Token,
		UserID:    m.UserID,
		Email:     m.Email,
		CreatedAt: m.CreatedAt,
		ExpiresAt: m.ExpiresAt,
	}
}
