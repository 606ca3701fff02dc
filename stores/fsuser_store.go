// Package stores provides file-based implementations of the signon store
// interfaces, suitable for development and tests. Production deployments
// should use the gorm or gae subpackages.
package stores

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ChanSarun168/signon"
)

// FSUserStore stores users as JSON files, with index files for the email and
// provider-id lookups.
type FSUserStore struct {
	StoragePath string
}

func NewFSUserStore(storagePath string) *FSUserStore {
	return &FSUserStore{StoragePath: storagePath}
}

// userRef is what the index files hold
type userRef struct {
	UserID string `json:"user_id"`
}

func (s *FSUserStore) userPath(userID string) string {
	return filepath.Join(s.StoragePath, "users", userID+".json")
}

func (s *FSUserStore) emailIndexPath(email string) string {
	return filepath.Join(s.StoragePath, "users_by_email", fileKey(email)+".json")
}

func (s *FSUserStore) providerIndexPath(provider, externalID string) string {
	return filepath.Join(s.StoragePath, "users_by_provider", fileKey(provider+":"+externalID)+".json")
}

func (s *FSUserStore) CreateUser(user *signon.User) (*signon.User, error) {
	if _, err := os.Stat(s.emailIndexPath(user.Email)); err == nil {
		return nil, signon.ErrEmailExists
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	if err := s.writeUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *FSUserStore) GetUserByID(userID string) (*signon.User, error) {
	return s.readUser(s.userPath(userID), userID)
}

func (s *FSUserStore) FindByEmail(email string) (*signon.User, error) {
	ref, err := s.readRef(s.emailIndexPath(email))
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(ref.UserID)
}

func (s *FSUserStore) FindByProviderID(provider, externalID string) (*signon.User, error) {
	ref, err := s.readRef(s.providerIndexPath(provider, externalID))
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(ref.UserID)
}

func (s *FSUserStore) SaveUser(user *signon.User) error {
	user.UpdatedAt = time.Now()
	return s.writeUser(user)
}

func (s *FSUserStore) writeUser(user *signon.User) error {
	path := s.userPath(user.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	// the record serializes the hash too; json tags hide it from API output only
	record := struct {
		*signon.User
		PasswordHash string `json:"password_hash"`
	}{User: user, PasswordHash: user.PasswordHash}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	if err := writeAtomicFile(path, data); err != nil {
		return err
	}

	ref, _ := json.Marshal(userRef{UserID: user.ID})
	if user.Email != "" {
		idx := s.emailIndexPath(user.Email)
		if err := os.MkdirAll(filepath.Dir(idx), 0755); err != nil {
			return err
		}
		if err := writeAtomicFile(idx, ref); err != nil {
			return err
		}
	}
	if user.ProviderID != "" {
		idx := s.providerIndexPath(user.Provider, user.ProviderID)
		if err := os.MkdirAll(filepath.Dir(idx), 0755); err != nil {
			return err
		}
		if err := writeAtomicFile(idx, ref); err != nil {
			return err
		}
	}
	return nil
}

func (s *FSUserStore) readUser(path, userID string) (*signon.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", signon.ErrNotFound, userID)
		}
		return nil, err
	}

	var record struct {
		signon.User
		PasswordHash string `json:"password_hash"`
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	user := record.User
	user.PasswordHash = record.PasswordHash
	return &user, nil
}

func (s *FSUserStore) readRef(path string) (*userRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, signon.ErrNotFound
		}
		return nil, err
	}
	var ref userRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}
