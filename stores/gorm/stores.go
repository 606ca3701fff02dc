package gorm

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ChanSarun168/signon"
)

// AutoMigrate runs database migrations for all signon tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserModel{},
		&VerificationTokenModel{},
	)
}

// =============================================================================
// UserStore
// =============================================================================

// UserStore implements signon.UserStore using GORM
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) CreateUser(user *signon.User) (*signon.User, error) {
	model := UserToModel(user)
	if err := s.db.Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, signon.ErrEmailExists
		}
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) GetUserByID(userID string) (*signon.User, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", signon.ErrNotFound, userID)
		}
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) FindByEmail(email string) (*signon.User, error) {
	var model UserModel
	if err := s.db.First(&model, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, signon.ErrNotFound
		}
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) FindByProviderID(provider, externalID string) (*signon.User, error) {
	var model UserModel
	err := s.db.First(&model, "provider = ? AND provider_id = ?", provider, externalID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, signon.ErrNotFound
		}
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) SaveUser(user *signon.User) error {
	return s.db.Save(UserToModel(user)).Error
}

// =============================================================================
// TokenStore
// =============================================================================

// TokenStore implements signon.TokenStore using GORM
type TokenStore struct {
	db *gorm.DB
}

func NewTokenStore(db *gorm.DB) *TokenStore {
	return &TokenStore{db: db}
}

func (s *TokenStore) CreateToken(userID, email string, expiry time.Duration) (*signon.VerificationToken, error) {
	token, err := signon.GenerateSecureToken()
	if err != nil {
		return nil, err
	}

	model := &VerificationTokenModel{
		Token:     token,
		UserID:    userID,
		Email:     email,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(expiry),
	}
	if err := s.db.Create(model).Error; err != nil {
		return nil, err
	}
	return model.ToToken(), nil
}

func (s *TokenStore) GetToken(token string) (*signon.VerificationToken, error) {
	var model VerificationTokenModel
	if err := s.db.First(&model, "token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, signon.ErrNotFound
		}
		return nil, err
	}
	return model.ToToken(), nil
}

// TakeToken reads and deletes the row in one transaction. The delete's
// RowsAffected count decides the winner when two redeemers race.
func (s *TokenStore) TakeToken(token string) (*signon.VerificationToken, error) {
	var taken *signon.VerificationToken
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var model VerificationTokenModel
		if err := tx.First(&model, "token = ?", token).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return signon.ErrNotFound
			}
			return err
		}
		res := tx.Delete(&VerificationTokenModel{}, "token = ?", token)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return signon.ErrNotFound
		}
		taken = model.ToToken()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return taken, nil
}

func (s *TokenStore) DeleteToken(token string) error {
	return s.db.Delete(&VerificationTokenModel{}, "token = ?", token).Error
}

func (s *TokenStore) DeleteUserTokens(userID string) error {
	return s.db.Delete(&VerificationTokenModel{}, "user_id = ?", userID).Error
}
