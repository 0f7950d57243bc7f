// Package config provides persistence for the client's advanced settings.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/yllada/vpn-client/common"
)

// Environment variables that override the persisted endpoints and filter.
const (
	EnvAPIURL      = "VPNCLIENT_API_URL"
	EnvAuthBaseURL = "VPNCLIENT_AUTH_BASE_URL"
	EnvLogFilter   = "VPNCLIENT_LOG_FILTER"
)

// Settings are the user-editable advanced settings.
type Settings struct {
	// AuthBaseURL is where the browser is sent to sign in.
	AuthBaseURL string `yaml:"auth_base_url"`
	// APIURL is the portal endpoint the tunnel service connects to.
	APIURL string `yaml:"api_url"`
	// LogFilter is applied locally and forwarded to the tunnel service.
	LogFilter string `yaml:"log_filter"`
	// FavoriteResources are resource IDs pinned at the top of the menu.
	FavoriteResources []string `yaml:"favorite_resources,omitempty"`
	// InternetResourceEnabled is nil until the user first toggles it.
	InternetResourceEnabled *bool `yaml:"internet_resource_enabled,omitempty"`
	// ShowNotifications enables desktop notifications for connection events.
	ShowNotifications bool `yaml:"show_notifications"`
	// AutoStart launches the client on login.
	AutoStart bool `yaml:"auto_start"`
}

// DefaultSettings returns the default settings.
func DefaultSettings() *Settings {
	return &Settings{
		AuthBaseURL:       common.DefaultAuthBaseURL,
		APIURL:            common.DefaultAPIURL,
		LogFilter:         common.DefaultLogFilter,
		ShowNotifications: true,
	}
}

// InternetResourceOn reports whether the Internet resource should be
// enabled. It defaults to off.
func (s *Settings) InternetResourceOn() bool {
	return s.InternetResourceEnabled != nil && *s.InternetResourceEnabled
}

// SetInternetResource records the user's choice.
func (s *Settings) SetInternetResource(enabled bool) {
	s.InternetResourceEnabled = &enabled
}

// IsFavorite reports whether id is pinned.
func (s *Settings) IsFavorite(id string) bool {
	return common.StringInSlice(id, s.FavoriteResources)
}

// AddFavorite pins id. It is a no-op for an existing favorite.
func (s *Settings) AddFavorite(id string) {
	if !s.IsFavorite(id) {
		s.FavoriteResources = append(s.FavoriteResources, id)
	}
}

// RemoveFavorite unpins id.
func (s *Settings) RemoveFavorite(id string) {
	s.FavoriteResources = common.RemoveFromSlice(s.FavoriteResources, id)
}

// Clone returns a deep copy.
func (s *Settings) Clone() *Settings {
	c := *s
	c.FavoriteResources = append([]string(nil), s.FavoriteResources...)
	if s.InternetResourceEnabled != nil {
		v := *s.InternetResourceEnabled
		c.InternetResourceEnabled = &v
	}
	return &c
}

// Load reads settings from the default path, creating the file with
// defaults if it doesn't exist. Environment overrides are applied last.
func Load() (*Settings, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads settings from path.
func LoadFrom(path string) (*Settings, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		s := DefaultSettings()
		if err := s.SaveTo(path); err != nil {
			return s.withEnv(), err
		}
		return s.withEnv(), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening settings: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	settings := DefaultSettings()
	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("%w: error parsing settings: %v", common.ErrConfigLoad, err)
	}

	if err := settings.validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid settings: %v", common.ErrConfigLoad, err)
	}

	return settings.withEnv(), nil
}

func (s *Settings) withEnv() *Settings {
	if v := os.Getenv(EnvAPIURL); v != "" {
		s.APIURL = v
	}
	if v := os.Getenv(EnvAuthBaseURL); v != "" {
		s.AuthBaseURL = v
	}
	if v := os.Getenv(EnvLogFilter); v != "" {
		s.LogFilter = v
	}
	return s
}

func (s *Settings) validate() error {
	for name, raw := range map[string]string{"auth_base_url": s.AuthBaseURL, "api_url": s.APIURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s %q is not an absolute URL", name, raw)
		}
	}
	if s.LogFilter == "" {
		s.LogFilter = common.DefaultLogFilter
	}
	return nil
}

// Save writes the settings to the default path.
func (s *Settings) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return s.SaveTo(path)
}

// SaveTo writes the settings to path.
func (s *Settings) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("error creating settings directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("error serializing settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfigSave, err)
	}

	return nil
}

// Path returns the default settings file path.
func Path() (string, error) {
	dir, err := common.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, common.SettingsFileName), nil
}

// Store persists settings to a fixed file. It is what the controller uses.
type Store struct {
	path string
}

// NewStore returns a store backed by path, or the default path when empty.
func NewStore(path string) (*Store, error) {
	if path == "" {
		var err error
		if path, err = Path(); err != nil {
			return nil, err
		}
	}
	return &Store{path: path}, nil
}

// Load reads the settings.
func (st *Store) Load() (*Settings, error) {
	return LoadFrom(st.path)
}

// Save writes the settings.
func (st *Store) Save(s *Settings) error {
	return s.SaveTo(st.path)
}
