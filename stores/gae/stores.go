package gae

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	"github.com/ChanSarun168/signon"
)

// Kind constants for Datastore entities
const (
	KindUser              = "User"
	KindVerificationToken = "VerificationToken"
)

// UserEntity is the Datastore representation of a user
type UserEntity struct {
	Key          *datastore.Key `datastore:"__key__"`
	Username     string         `datastore:"username,noindex"`
	Email        string         `datastore:"email"`
	PasswordHash string         `datastore:"password_hash,noindex"`
	Verified     bool           `datastore:"verified,noindex"`
	Provider     string         `datastore:"provider"`
	ProviderID   string         `datastore:"provider_id"`
	CreatedAt    time.Time      `datastore:"created_at,noindex"`
	UpdatedAt    time.Time      `datastore:"updated_at,noindex"`
}

func (e *UserEntity) ToUser() *signon.User {
	return &signon.User{
		ID:           e.Key.Name,
		Username:     e.Username,
		Email:        e.Email,
		PasswordHash: e.PasswordHash,
		Verified:     e.Verified,
		Provider:     e.Provider,
		ProviderID:   e.ProviderID,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

// TokenEntity is the Datastore representation of a verification token
type TokenEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	UserID    string         `datastore:"user_id"`
	Email     string         `datastore:"email,noindex"`
	CreatedAt time.Time      `datastore:"created_at,noindex"`
	ExpiresAt time.Time      `datastore:"expires_at"`
}

func (e *TokenEntity) ToToken() *signon.VerificationToken {
	return &signon.VerificationToken{
		Token:     e.Key.Name,
		UserID:    e.UserID,
		Email:     e.Email,
		CreatedAt: e.CreatedAt,
		ExpiresAt: e.ExpiresAt,
	}
}

// ============================================================================
// UserStore
// ============================================================================

// UserStore implements signon.UserStore using Google Cloud Datastore
type UserStore struct {
	client    *datastore.Client
	namespace string
	ctx       context.Context
}

// NewUserStore creates a new Datastore-backed UserStore
func NewUserStore(client *datastore.Client, namespace string) *UserStore {
	return &UserStore{
		client:    client,
		namespace: namespace,
		ctx:       context.Background(),
	}
}

// WithContext returns a copy of the store with the given context
func (s *UserStore) WithContext(ctx context.Context) *UserStore {
	return &UserStore{
		client:    s.client,
		namespace: s.namespace,
		ctx:       ctx,
	}
}

func (s *UserStore) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *UserStore) CreateUser(user *signon.User) (*signon.User, error) {
	if existing, err := s.FindByEmail(user.Email); err == nil && existing != nil {
		return nil, signon.ErrEmailExists
	}

	key := s.namespacedKey(KindUser, user.ID)
	now := time.Now()
	entity := &UserEntity{
		Key:          key,
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Verified:     user.Verified,
		Provider:     user.Provider,
		ProviderID:   user.ProviderID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.client.Put(s.ctx, key, entity); err != nil {
		return nil, err
	}
	return entity.ToUser(), nil
}

func (s *UserStore) GetUserByID(userID string) (*signon.User, error) {
	key := s.namespacedKey(KindUser, userID)
	var entity UserEntity
	err := s.client.Get(s.ctx, key, &entity)
	if err == datastore.ErrNoSuchEntity {
		return nil, fmt.Errorf("%w: %s", signon.ErrNotFound, userID)
	}
	if err != nil {
		return nil, err
	}
	return entity.ToUser(), nil
}

func (s *UserStore) FindByEmail(email string) (*signon.User, error) {
	query := datastore.NewQuery(KindUser).
		Namespace(s.namespace).
		FilterField("email", "=", email).
		Limit(1)

	it := s.client.Run(s.ctx, query)
	var entity UserEntity
	_, err := it.Next(&entity)
	if err == iterator.Done {
		return nil, signon.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entity.ToUser(), nil
}

func (s *UserStore) FindByProviderID(provider, externalID string) (*signon.User, error) {
	query := datastore.NewQuery(KindUser).
		Namespace(s.namespace).
		FilterField("provider", "=", provider).
		FilterField("provider_id", "=", externalID).
		Limit(1)

	it := s.client.Run(s.ctx, query)
	var entity UserEntity
	_, err := it.Next(&entity)
	if err == iterator.Done {
		return nil, signon.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entity.ToUser(), nil
}

func (s *UserStore) SaveUser(user *signon.User) error {
	key := s.namespacedKey(KindUser, user.ID)
	entity := &UserEntity{
		Key:          key,
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Verified:     user.Verified,
		Provider:     user.Provider,
		ProviderID:   user.ProviderID,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    time.Now(),
	}
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = entity.UpdatedAt
	}
	_, err := s.client.Put(s.ctx, key, entity)
	return err
}

// ============================================================================
// TokenStore
// ============================================================================

// TokenStore implements signon.TokenStore using Google Cloud Datastore
type TokenStore struct {
	client    *datastore.Client
	namespace string
	ctx       context.Context
}

// NewTokenStore creates a new Datastore-backed TokenStore
func NewTokenStore(client *datastore.Client, namespace string) *TokenStore {
	return &TokenStore{
		client:    client,
		namespace: namespace,
		ctx:       context.Background(),
	}
}

// WithContext returns a copy of the store with the given context
func (s *TokenStore) WithContext(ctx context.Context) *TokenStore {
	return &TokenStore{
		client:    s.client,
		namespace: s.namespace,
		ctx:       ctx,
	}
}

func (s *TokenStore) namespacedKey(name string) *datastore.Key {
	key := datastore.NameKey(KindVerificationToken, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *TokenStore) CreateToken(userID, email string, expiry time.Duration) (*signon.VerificationToken, error) {
	token, err := signon.GenerateSecureToken()
	if err != nil {
		return nil, err
	}

	key := s.namespacedKey(token)
	now := time.Now()
	entity := &TokenEntity{
		Key:       key,
		UserID:    userID,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(expiry),
	}
	if _, err := s.client.Put(s.ctx, key, entity); err != nil {
		return nil, err
	}
	return entity.ToToken(), nil
}

func (s *TokenStore) GetToken(token string) (*signon.VerificationToken, error) {
	key := s.namespacedKey(token)
	var entity TokenEntity
	err := s.client.Get(s.ctx, key, &entity)
	if err == datastore.ErrNoSuchEntity {
		return nil, signon.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entity.ToToken(), nil
}

// TakeToken gets and deletes the entity in one transaction so concurrent
// redeemers cannot both claim it.
func (s *TokenStore) TakeToken(token string) (*signon.VerificationToken, error) {
	key := s.namespacedKey(token)
	var entity TokenEntity

	_, err := s.client.RunInTransaction(s.ctx, func(tx *datastore.Transaction) error {
		if err := tx.Get(key, &entity); err != nil {
			return err
		}
		return tx.Delete(key)
	})
	if err == datastore.ErrNoSuchEntity {
		return nil, signon.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	// __key__ is not populated by transactional Get on all paths
	entity.Key = key
	return entity.ToToken(), nil
}

func (s *TokenStore) DeleteToken(token string) error {
	err := s.client.Delete(s.ctx, s.namespacedKey(token))
	if err == datastore.ErrNoSuchEntity {
		return nil
	}
	return err
}

func (s *TokenStore) DeleteUserTokens(userID string) error {
	query := datastore.NewQuery(KindVerificationToken).
		Namespace(s.namespace).
		FilterField("user_id", "=", userID).
		KeysOnly()

	it := s.client.Run(s.ctx, query)
	var keys []*datastore.Key
	for {
		key, err := it.Next(nil)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.DeleteMulti(s.ctx, keys)
}
