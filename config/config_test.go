package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yllada/vpn-client/common"
)

func TestLoadFrom_CreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	s, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, common.DefaultAPIURL, s.APIURL)
	assert.Equal(t, common.DefaultLogFilter, s.LogFilter)
	assert.False(t, s.InternetResourceOn())
	assert.FileExists(t, path)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	s := DefaultSettings()
	s.LogFilter = "debug"
	s.AddFavorite("res-1")
	s.SetInternetResource(true)
	require.NoError(t, s.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", loaded.LogFilter)
	assert.Equal(t, []string{"res-1"}, loaded.FavoriteResources)
	assert.True(t, loaded.InternetResourceOn())
}

func TestLoadFrom_RejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("theme: dark\n"), 0600))

	_, err := LoadFrom(path)
	assert.ErrorIs(t, err, common.ErrConfigLoad)
}

func TestLoadFrom_RejectsRelativeURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_url: not-a-url\n"), 0600))

	_, err := LoadFrom(path)
	assert.ErrorIs(t, err, common.ErrConfigLoad)
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	t.Setenv(EnvAPIURL, "wss://staging.example.com")
	t.Setenv(EnvLogFilter, "trace")

	s, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "wss://staging.example.com", s.APIURL)
	assert.Equal(t, "trace", s.LogFilter)
}

func TestFavorites(t *testing.T) {
	s := DefaultSettings()

	s.AddFavorite("a")
	s.AddFavorite("a")
	s.AddFavorite("b")
	assert.Equal(t, []string{"a", "b"}, s.FavoriteResources)

	s.RemoveFavorite("a")
	assert.False(t, s.IsFavorite("a"))
	assert.True(t, s.IsFavorite("b"))
}

func TestClone_IsDeep(t *testing.T) {
	s := DefaultSettings()
	s.AddFavorite("a")
	s.SetInternetResource(false)

	c := s.Clone()
	c.AddFavorite("b")
	c.SetInternetResource(true)

	assert.Equal(t, []string{"a"}, s.FavoriteResources)
	assert.False(t, s.InternetResourceOn())
}

func TestStore(t *testing.T) {
	st, err := NewStore(filepath.Join(t.TempDir(), "s.yaml"))
	require.NoError(t, err)

	s, err := st.Load()
	require.NoError(t, err)
	s.ShowNotifications = false
	require.NoError(t, st.Save(s))

	again, err := st.Load()
	require.NoError(t, err)
	assert.False(t, again.ShowNotifications)
}
