package utils

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Credentials are the remembered login. The password is base64 encoded on
// disk, which only keeps it from being read at a glance.
type Credentials struct {
	Email    string
	Password string
}

type credentialsFile struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// GetCredentialsPath returns the default credentials file path.
func GetCredentialsPath() string {
	return filepath.Join(AppDir(), "credentials.json")
}

// CredentialStore persists Credentials to a JSON file.
type CredentialStore struct {
	path string
}

// NewCredentialStore returns a store backed by path.
func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{path: path}
}

// Load returns the saved credentials, or (nil, nil) when none are saved.
func (s *CredentialStore) Load() (*Credentials, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	var f credentialsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}

	password, err := base64.StdEncoding.DecodeString(f.Password)
	if err != nil {
		return nil, WrapError(err, "failed to decode saved password")
	}

	return &Credentials{Email: f.Email, Password: string(password)}, nil
}

// Save writes the credentials, replacing any previous file.
func (s *CredentialStore) Save(creds Credentials) error {
	data, err := json.Marshal(credentialsFile{
		Email:    creds.Email,
		Password: base64.StdEncoding.EncodeToString([]byte(creds.Password)),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

// Remove deletes the saved credentials. A missing file is not an error.
func (s *CredentialStore) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}
