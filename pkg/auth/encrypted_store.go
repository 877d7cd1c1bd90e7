package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize          = 32
	keySize           = 32
	iterations        = 100000
	envelopeVersion   = 2
	passphraseEnv     = "MHG_PASSPHRASE"
	passphraseKeyFile = ".passphrase"
)

// EncryptedFileStore keeps every profile in one AES-GCM sealed file. The key
// is derived from a passphrase with PBKDF2.
type EncryptedFileStore struct {
	path       string
	passphrase string
	mu         sync.RWMutex
}

// envelope is the on-disk file. []byte fields are base64 in JSON.
type envelope struct {
	Version  int       `json:"version"`
	Salt     []byte    `json:"salt"`
	Sealed   []byte    `json:"sealed"`
	Modified time.Time `json:"modified"`
}

// NewEncryptedFileStore creates an encrypted profile file at path. An empty
// passphrase is read from MHG_PASSPHRASE or a generated key file next to the
// store.
func NewEncryptedFileStore(path, passphrase string) (*EncryptedFileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if passphrase == "" {
		var err error
		passphrase, err = passphraseFor(path)
		if err != nil {
			return nil, fmt.Errorf("failed to get passphrase: %w", err)
		}
	}

	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

// Store saves a profile, replacing one with the same name
func (e *EncryptedFileStore) Store(profile *Profile) error {
	if profile == nil || profile.Name == "" {
		return ErrInvalidProfile
	}

	return e.update(func(profiles map[string]Profile) error {
		profiles[profile.Name] = *profile
		return nil
	})
}

// Retrieve gets a profile by name
func (e *EncryptedFileStore) Retrieve(name string) (*Profile, error) {
	if name == "" {
		return nil, ErrInvalidProfile
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	profiles, _, err := e.read()
	if err != nil {
		return nil, err
	}
	p, ok := profiles[name]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &p, nil
}

// List returns every stored profile. A missing file is an empty store.
func (e *EncryptedFileStore) List() ([]*Profile, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	profiles, _, err := e.read()
	if err != nil {
		return nil, err
	}

	out := make([]*Profile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, &p)
	}
	return out, nil
}

// Delete removes a profile. The file goes with its last profile.
func (e *EncryptedFileStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidProfile
	}

	return e.update(func(profiles map[string]Profile) error {
		if _, ok := profiles[name]; !ok {
			return ErrProfileNotFound
		}
		delete(profiles, name)
		return nil
	})
}

// Exists reports whether name is stored
func (e *EncryptedFileStore) Exists(name string) bool {
	p, err := e.Retrieve(name)
	return err == nil && p != nil
}

// update applies fn to the decrypted profiles and writes the result back
func (e *EncryptedFileStore) update(fn func(map[string]Profile) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	profiles, salt, err := e.read()
	if err != nil {
		return err
	}
	if err := fn(profiles); err != nil {
		return err
	}

	if len(profiles) == 0 {
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove profile file: %w", err)
		}
		return nil
	}
	return e.write(profiles, salt)
}

// read decrypts the file. A missing file yields an empty map and nil salt.
func (e *EncryptedFileStore) read() (map[string]Profile, []byte, error) {
	content, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		return make(map[string]Profile), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read profile file: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(content, &env); err != nil {
		return nil, nil, fmt.Errorf("failed to parse profile file: %w", err)
	}

	plain, err := unseal(deriveKey(e.passphrase, env.Salt), env.Sealed)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt profiles: %w", err)
	}

	profiles := make(map[string]Profile)
	if err := json.Unmarshal(plain, &profiles); err != nil {
		return nil, nil, fmt.Errorf("failed to parse profiles: %w", err)
	}
	return profiles, env.Salt, nil
}

// write seals profiles and replaces the file. A nil salt gets a fresh one.
func (e *EncryptedFileStore) write(profiles map[string]Profile, salt []byte) error {
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	plain, err := json.Marshal(profiles)
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}
	sealed, err := seal(deriveKey(e.passphrase, salt), plain)
	if err != nil {
		return fmt.Errorf("failed to encrypt profiles: %w", err)
	}

	content, err := json.MarshalIndent(envelope{
		Version:  envelopeVersion,
		Salt:     salt,
		Sealed:   sealed,
		Modified: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profile file: %w", err)
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write profile file: %w", err)
	}
	if err := os.Rename(tmp, e.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace profile file: %w", err)
	}
	return nil
}

// passphraseFor returns MHG_PASSPHRASE, or the key file beside storePath,
// creating the key file with a random passphrase on first use
func passphraseFor(storePath string) (string, error) {
	if pass := os.Getenv(passphraseEnv); pass != "" {
		return pass, nil
	}

	keyFile := filepath.Join(filepath.Dir(storePath), passphraseKeyFile)
	if content, err := os.ReadFile(keyFile); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	pass := base64.URLEncoding.EncodeToString(b)

	if err := os.WriteFile(keyFile, []byte(pass), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return pass, nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, iterations, keySize, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// seal returns nonce || ciphertext
func seal(key, plain []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func unseal(key, sealed []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	n := gcm.NonceSize()
	if len(sealed) < n {
		return nil, errors.New("ciphertext too short")
	}
	return gcm.Open(nil, sealed[:n], sealed[n:], nil)
}
