// Package keyring provides secure token storage.
// It uses the system keyring when available, falling back to
// encrypted local file storage when not.
package keyring

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
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/hkdf"

	"github.com/yllada/vpn-client/common"
)

// DefaultService is the identifier used in the system keyring.
const DefaultService = "dev.vpn-client.token"

// Common errors returned by keyring operations.
var (
	ErrNotFound = errors.New("credential not found")
	ErrEmptyKey = errors.New("key cannot be empty")
)

// Store keeps secrets in the system keyring, or in an AES-GCM encrypted
// file when no keyring service is reachable. It implements
// common.CredentialStore.
type Store struct {
	service  string
	filePath string

	mu       sync.RWMutex
	useLocal bool
	local    map[string]string
	key      []byte
}

var _ common.CredentialStore = (*Store)(nil)

// New probes the system keyring once and returns a store. fallbackPath is
// where the encrypted file lives if the keyring is unavailable; an empty
// value puts it in the config directory.
func New(service, fallbackPath string) (*Store, error) {
	if service == "" {
		service = DefaultService
	}
	if fallbackPath == "" {
		dir, err := common.GetConfigDir()
		if err != nil {
			return nil, err
		}
		fallbackPath = filepath.Join(dir, common.CredentialsFileName)
	}

	s := &Store{service: service, filePath: fallbackPath}

	probe := service + "-probe"
	if err := keyring.Set(service, probe, "probe"); err != nil {
		common.LogWarn("System keyring unavailable, using encrypted file: %v", err)
		if err := s.switchToLocal(); err != nil {
			return nil, err
		}
		return s, nil
	}
	keyring.Delete(service, probe)
	return s, nil
}

// switchToLocal must not be called with mu held.
func (s *Store) switchToLocal() error {
	key, err := deriveKey()
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrEncryption, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.useLocal {
		return nil
	}
	s.key = key
	s.local = make(map[string]string)
	s.useLocal = true
	s.loadLocal()
	return nil
}

// deriveKey binds the file key to this machine and user.
func deriveKey() ([]byte, error) {
	hostname, _ := os.Hostname()
	secret := fmt.Sprintf("%s-%s-%d", hostname, machineID(), os.Getuid())

	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), []byte(common.AppID), []byte("credential-file"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

func machineID() string {
	data, err := os.ReadFile("/etc/machine-id")
	if err == nil {
		return strings.TrimSpace(string(data))
	}
	return "default-machine-id"
}

func (s *Store) loadLocal() {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return
	}

	decrypted, err := s.decrypt(data)
	if err != nil {
		common.LogWarn("Ignoring unreadable credential file: %v", err)
		return
	}

	json.Unmarshal(decrypted, &s.local)
}

// saveLocal must be called with mu held.
func (s *Store) saveLocal() error {
	data, err := json.Marshal(s.local)
	if err != nil {
		return err
	}

	encrypted, err := s.encrypt(data)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0700); err != nil {
		return err
	}
	return os.WriteFile(s.filePath, encrypted, 0600)
}

func (s *Store) encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return []byte(base64.StdEncoding.EncodeToString(ciphertext)), nil
}

func (s *Store) decrypt(data []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("%w: ciphertext too short", common.ErrDecryption)
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func (s *Store) isLocal() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.useLocal
}

// Store saves secret under key.
func (s *Store) Store(key string, secret common.Secret) error {
	if key == "" {
		return ErrEmptyKey
	}

	if !s.isLocal() {
		err := keyring.Set(s.service, key, secret.Expose())
		if err == nil {
			return nil
		}
		common.LogWarn("Keyring write failed, falling back to encrypted file: %v", err)
		if err := s.switchToLocal(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.local[key] = secret.Expose()
	if err := s.saveLocal(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrCredentialStorage, err)
	}
	return nil
}

// Get retrieves the secret stored under key.
func (s *Store) Get(key string) (common.Secret, error) {
	if key == "" {
		return common.Secret{}, ErrEmptyKey
	}

	if !s.isLocal() {
		value, err := keyring.Get(s.service, key)
		if err == nil {
			return common.NewSecret(value), nil
		}
		if errors.Is(err, keyring.ErrNotFound) {
			return common.Secret{}, ErrNotFound
		}
		return common.Secret{}, err
	}

	s.mu.RLock()
	value, ok := s.local[key]
	s.mu.RUnlock()
	if !ok {
		return common.Secret{}, ErrNotFound
	}
	return common.NewSecret(value), nil
}

// Delete removes the secret stored under key. Deleting a missing key is not
// an error.
func (s *Store) Delete(key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	if !s.isLocal() {
		err := keyring.Delete(s.service, key)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return err
		}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.local[key]; !ok {
		return nil
	}
	delete(s.local, key)
	return s.saveLocal()
}
