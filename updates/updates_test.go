package updates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blang/semver/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedFetcher struct {
	release Release
	err     error
}

func (f fixedFetcher) Latest(context.Context) (Release, error) { return f.release, f.err }

type memStore struct {
	version string
}

func (m *memStore) LastNotifiedVersion(context.Context) (string, bool, error) {
	return m.version, m.version != "", nil
}

func (m *memStore) SetLastNotifiedVersion(_ context.Context, v string) error {
	m.version = v
	return nil
}

func release(v string) Release {
	return Release{Version: semver.MustParse(v), DownloadURL: "https://example.com/" + v}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		latest   string
		notified string
		wantNil  bool
		wantTell bool
	}{
		{"older release", "1.2.0", "1.1.0", "", true, false},
		{"same release", "1.2.0", "1.2.0", "", true, false},
		{"newer release", "1.2.0", "1.3.0", "", false, true},
		{"newer release already notified", "1.2.0", "1.3.0", "1.3.0", false, false},
		{"even newer release", "1.2.0", "1.4.0", "1.3.0", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{version: tt.notified}
			c, err := NewChecker(tt.current, fixedFetcher{release: release(tt.latest)}, store, time.Hour)
			require.NoError(t, err)

			n, err := c.Check(context.Background())
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, n)
				return
			}
			require.NotNil(t, n)
			assert.Equal(t, tt.wantTell, n.TellUser)
			assert.Equal(t, tt.latest, store.version)
		})
	}
}

func TestNewChecker_BadVersion(t *testing.T) {
	_, err := NewChecker("not-a-version", fixedFetcher{}, &memStore{}, time.Hour)
	assert.Error(t, err)
}

func TestRun_SendsAndClosesOnCancel(t *testing.T) {
	c, err := NewChecker("1.0.0", fixedFetcher{release: release("2.0.0")}, &memStore{}, time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan *Notification)
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, out) }()

	n := <-out
	require.NotNil(t, n)
	assert.True(t, n.TellUser)

	cancel()
	require.NoError(t, <-done)
	_, ok := <-out
	assert.False(t, ok)
}

func TestRun_FetchErrorIsNotFatal(t *testing.T) {
	c, err := NewChecker("1.0.0", fixedFetcher{err: errors.New("offline")}, &memStore{}, 10*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	out := make(chan *Notification, 1)
	assert.NoError(t, c.Run(ctx, out))
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"version":"1.4.2","download_url":"https://example.com/dl"}`))
	}))
	defer srv.Close()

	r, err := (&HTTPFetcher{URL: srv.URL}).Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.4.2", r.Version.String())
	assert.Equal(t, "https://example.com/dl", r.DownloadURL)
}

func TestHTTPFetcher_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := (&HTTPFetcher{URL: srv.URL}).Latest(context.Background())
	assert.Error(t, err)
}
