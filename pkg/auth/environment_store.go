package auth

import (
	"os"
	"time"
)

const (
	envCookie    = "MHG_COOKIE"
	envUserAgent = "MHG_PAGE_USER_AGENT"
)

// EnvironmentStore is a read-only ProfileStore over MHG_COOKIE
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based profile store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(profile *Profile) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment cookie under any requested name
func (e *EnvironmentStore) Retrieve(name string) (*Profile, error) {
	cookie := os.Getenv(envCookie)
	if cookie == "" {
		return nil, ErrProfileNotFound
	}
	if name == "" {
		name = "env"
	}

	return &Profile{
		Name:         name,
		Cookie:       cookie,
		UserAgent:    os.Getenv(envUserAgent),
		LastModified: time.Now(),
	}, nil
}

// List returns a single profile if MHG_COOKIE is set
func (e *EnvironmentStore) List() ([]*Profile, error) {
	profile, err := e.Retrieve("")
	if err != nil {
		return []*Profile{}, nil
	}
	return []*Profile{profile}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if the environment cookie is set
func (e *EnvironmentStore) Exists(name string) bool {
	return os.Getenv(envCookie) != ""
}
