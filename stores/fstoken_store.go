package stores

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ChanSarun168/signon"
)

// FSTokenStore stores verification tokens as JSON files
type FSTokenStore struct {
	StoragePath string
}

func NewFSTokenStore(storagePath string) *FSTokenStore {
	return &FSTokenStore{StoragePath: storagePath}
}

func (s *FSTokenStore) getTokenPath(token string) string {
	return filepath.Join(s.StoragePath, "tokens", token+".json")
}

func (s *FSTokenStore) CreateToken(userID, email string, expiry time.Duration) (*signon.VerificationToken, error) {
	token, err := signon.GenerateSecureToken()
	if err != nil {
		return nil, err
	}

	verificationToken := &signon.VerificationToken{
		Token:     token,
		UserID:    userID,
		Email:     email,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(expiry),
	}

	path := s.getTokenPath(token)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(verificationToken, "", "  ")
	if err != nil {
		return nil, err
	}

	if err := writeAtomicFile(path, data); err != nil {
		return nil, err
	}

	return verificationToken, nil
}

func (s *FSTokenStore) GetToken(token string) (*signon.VerificationToken, error) {
	return s.readToken(s.getTokenPath(token))
}

// TakeToken claims the token file by renaming it. Rename is atomic, so of two
// concurrent takers exactly one wins; the other sees ErrNotFound.
func (s *FSTokenStore) TakeToken(token string) (*signon.VerificationToken, error) {
	path := s.getTokenPath(token)
	claimed := path + ".taken"
	if err := os.Rename(path, claimed); err != nil {
		if os.IsNotExist(err) {
			return nil, signon.ErrNotFound
		}
		return nil, err
	}
	defer os.Remove(claimed)
	return s.readToken(claimed)
}

func (s *FSTokenStore) DeleteToken(token string) error {
	err := os.Remove(s.getTokenPath(token))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *FSTokenStore) DeleteUserTokens(userID string) error {
	dir := filepath.Join(s.StoragePath, "tokens")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		token, err := s.readToken(path)
		if err != nil {
			continue
		}
		if token.UserID == userID {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}
	return nil
}

func (s *FSTokenStore) readToken(path string) (*signon.VerificationToken, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, signon.ErrNotFound
		}
		return nil, err
	}

	var token signon.VerificationToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return &token, nil
}
