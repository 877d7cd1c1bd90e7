package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// DefaultProfile is used when no profile name is given
const DefaultProfile = "default"

// Profile is a named site cookie used for page and image requests
type Profile struct {
	Name         string    `json:"name"`
	Cookie       string    `json:"cookie"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// ProfileStore is the interface for storing and retrieving profiles
type ProfileStore interface {
	// Store saves a profile, replacing any with the same name
	Store(profile *Profile) error

	// Retrieve gets a profile by name
	Retrieve(name string) (*Profile, error)

	// List returns all stored profiles
	List() ([]*Profile, error)

	// Delete removes a profile
	Delete(name string) error

	// Exists checks if a profile is stored
	Exists(name string) bool
}

// Manager handles profile storage with fallback mechanisms
type Manager struct {
	stores []ProfileStore
}

// NewManager creates a manager over the system keyring, an encrypted file
// in configDir and the MHG_COOKIE environment variable, in that order.
// An empty configDir uses ConfigDir().
func NewManager(configDir string) (*Manager, error) {
	if configDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		configDir = dir
	}

	var stores []ProfileStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "profiles.enc"), "")
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores builds a manager over explicit stores
func NewManagerWithStores(stores ...ProfileStore) *Manager {
	return &Manager{stores: stores}
}

// Store validates the cookie and saves the profile in the first store that accepts it
func (m *Manager) Store(profile *Profile) error {
	if profile == nil {
		return ErrInvalidProfile
	}
	if profile.Name == "" {
		profile.Name = DefaultProfile
	}
	if err := ValidateCookie(profile.Cookie); err != nil {
		return err
	}

	profile.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(profile)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store profile: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets a profile from the first store that has it
func (m *Manager) Retrieve(name string) (*Profile, error) {
	if name == "" {
		name = DefaultProfile
	}
	for _, store := range m.stores {
		if profile, err := store.Retrieve(name); err == nil && profile != nil {
			return profile, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// ResolveCookie returns the cookie for name. An empty name falls back to the
// environment store and then the default profile. ok is false when nothing
// was found, so the caller keeps its configured cookie.
func (m *Manager) ResolveCookie(name string) (cookie string, ok bool, err error) {
	if name != "" {
		profile, err := m.Retrieve(name)
		if err != nil {
			return "", false, err
		}
		return profile.Cookie, true, nil
	}

	for _, store := range m.stores {
		if env, isEnv := store.(*EnvironmentStore); isEnv {
			if profile, err := env.Retrieve(""); err == nil {
				return profile.Cookie, true, nil
			}
		}
	}

	if profile, err := m.Retrieve(DefaultProfile); err == nil {
		return profile.Cookie, true, nil
	}
	return "", false, nil
}

// List returns all stored profiles sorted by name. When a name appears in
// several stores the most recently modified copy wins.
func (m *Manager) List() ([]*Profile, error) {
	byName := make(map[string]*Profile)

	for _, store := range m.stores {
		profiles, err := store.List()
		if err != nil {
			continue
		}
		for _, p := range profiles {
			if existing, ok := byName[p.Name]; !ok || p.LastModified.After(existing.LastModified) {
				byName[p.Name] = p
			}
		}
	}

	result := make([]*Profile, 0, len(byName))
	for _, p := range byName {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result, nil
}

// Delete removes the profile from every store that has it
func (m *Manager) Delete(name string) error {
	if name == "" {
		name = DefaultProfile
	}

	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		err := store.Delete(name)
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrProfileNotFound), errors.Is(err, ErrStoreUnavailable):
		default:
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete profile: %w", lastErr)
	}
	return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// ValidateCookie checks that header is a non-empty Cookie header value
func ValidateCookie(header string) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return fmt.Errorf("%w: cookie is empty", ErrInvalidProfile)
	}
	cookies, err := http.ParseCookie(header)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if len(cookies) == 0 {
		return fmt.Errorf("%w: no cookies in header", ErrInvalidProfile)
	}
	return nil
}

// ConfigDir returns the per-user configuration directory, creating it if needed
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "mhgscraper")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "mhgscraper")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "mhgscraper")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "mhgscraper")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// Sanitize returns a copy of the profile with the cookie masked
func Sanitize(profile *Profile) *Profile {
	if profile == nil {
		return nil
	}

	return &Profile{
		Name:         profile.Name,
		Cookie:       maskString(profile.Cookie),
		UserAgent:    profile.UserAgent,
		LastModified: profile.LastModified,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrInvalidProfile   = errors.New("invalid profile")
	ErrStoreUnavailable = errors.New("profile store unavailable")
)
