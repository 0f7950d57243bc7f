// Package updates periodically checks for a newer client release.
package updates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/blang/semver/v4"

	"github.com/yllada/vpn-client/common"
)

// DefaultReleaseURL answers with the latest release as JSON.
const DefaultReleaseURL = "https://www.vpn-client.dev/api/releases/latest"

// Release is an available client version.
type Release struct {
	Version     semver.Version
	DownloadURL string
}

// Notification tells the controller about a release. TellUser is false if
// the user already saw a notification for this version.
type Notification struct {
	Release  Release
	TellUser bool
}

// Fetcher returns the latest published release.
type Fetcher interface {
	Latest(ctx context.Context) (Release, error)
}

// NotifiedStore remembers which version the user was told about.
type NotifiedStore interface {
	LastNotifiedVersion(ctx context.Context) (string, bool, error)
	SetLastNotifiedVersion(ctx context.Context, version string) error
}

// Checker polls a Fetcher and reports releases newer than the running one.
type Checker struct {
	current  semver.Version
	fetcher  Fetcher
	store    NotifiedStore
	interval time.Duration
}

// NewChecker returns a checker for the running version current.
func NewChecker(current string, fetcher Fetcher, store NotifiedStore, interval time.Duration) (*Checker, error) {
	v, err := semver.ParseTolerant(current)
	if err != nil {
		return nil, fmt.Errorf("parse current version %q: %w", current, err)
	}
	return &Checker{current: v, fetcher: fetcher, store: store, interval: interval}, nil
}

// Check asks the fetcher once. It returns nil when nothing newer is out.
func (c *Checker) Check(ctx context.Context) (*Notification, error) {
	latest, err := c.fetcher.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if !latest.Version.GT(c.current) {
		return nil, nil
	}

	tell := true
	if last, ok, err := c.store.LastNotifiedVersion(ctx); err != nil {
		common.LogWarn("Couldn't read last notified version: %v", err)
	} else if ok {
		if v, err := semver.ParseTolerant(last); err == nil && !latest.Version.GT(v) {
			tell = false
		}
	}
	if tell {
		if err := c.store.SetLastNotifiedVersion(ctx, latest.Version.String()); err != nil {
			common.LogWarn("Couldn't save last notified version: %v", err)
		}
	}
	return &Notification{Release: latest, TellUser: tell}, nil
}

// Run checks immediately and then every interval, sending each result on out.
// A nil value means no update is available. Run closes out when ctx is done.
func (c *Checker) Run(ctx context.Context, out chan<- *Notification) error {
	defer close(out)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		n, err := c.Check(ctx)
		if err != nil {
			common.LogWarn("Update check failed: %v", err)
		} else {
			select {
			case out <- n:
			case <-ctx.Done():
				return nil
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
	}
}

// HTTPFetcher reads the latest release from a JSON endpoint shaped like
// {"version": "1.4.0", "download_url": "https://..."}.
type HTTPFetcher struct {
	URL    string
	Client *http.Client
}

// Latest implements Fetcher.
func (f *HTTPFetcher) Latest(ctx context.Context) (Release, error) {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return Release{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return Release{}, fmt.Errorf("fetch latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Release{}, fmt.Errorf("fetch latest release: status %s", resp.Status)
	}

	var body struct {
		Version     string `json:"version"`
		DownloadURL string `json:"download_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Release{}, fmt.Errorf("decode latest release: %w", err)
	}
	v, err := semver.ParseTolerant(body.Version)
	if err != nil {
		return Release{}, fmt.Errorf("parse latest version %q: %w", body.Version, err)
	}
	return Release{Version: v, DownloadURL: body.DownloadURL}, nil
}
