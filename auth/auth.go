// Package auth manages the signed-in session: the token in the credential
// store, the actor/account details on disk, and the in-flight browser
// sign-in request.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/deeplink"
	"github.com/yllada/vpn-client/keyring"
)

const tokenKey = "token"

var (
	// ErrNoInflightRequest means a callback arrived but we never started a
	// sign-in, e.g. because the client restarted in between.
	ErrNoInflightRequest = errors.New("no in-flight sign-in request")
	// ErrStateMismatch means the callback doesn't belong to our request.
	ErrStateMismatch = errors.New("sign-in callback state doesn't match request")
)

// Session is the identity of the signed-in user. The token itself lives in
// the credential store.
type Session struct {
	ActorName   string `yaml:"actor_name"`
	AccountSlug string `yaml:"account_slug"`
}

// Request is a sign-in that was started in the browser and not finished yet.
type Request struct {
	Nonce common.Secret
	State common.Secret
}

// ToURL returns the sign-in page for this request. The URL carries the nonce
// and state, so it is itself a secret.
func (r *Request) ToURL(authBase string) common.Secret {
	u, err := url.Parse(authBase)
	if err != nil {
		u = &url.URL{Path: authBase}
	}
	q := u.Query()
	q.Set("as", "client")
	q.Set("nonce", r.Nonce.Expose())
	q.Set("state", r.State.Expose())
	u.RawQuery = q.Encode()
	return common.NewSecret(u.String())
}

// Auth is the sign-in state machine. It is not safe for concurrent use.
type Auth struct {
	creds       common.CredentialStore
	sessionPath string

	session *Session
	ongoing *Request
}

// New loads any saved session from sessionPath.
func New(creds common.CredentialStore, sessionPath string) (*Auth, error) {
	a := &Auth{creds: creds, sessionPath: sessionPath}

	data, err := os.ReadFile(sessionPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return a, nil
	case err != nil:
		return nil, fmt.Errorf("read session: %w", err)
	}

	var s Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		common.LogWarn("Discarding unreadable session file: %v", err)
		return a, nil
	}
	a.session = &s
	return a, nil
}

// DefaultSessionPath returns where the session file lives.
func DefaultSessionPath() (string, error) {
	dir, err := common.GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, common.SessionFileName), nil
}

// Session returns the current session, or nil when signed out.
func (a *Auth) Session() *Session {
	return a.session
}

// OngoingRequest returns the in-flight sign-in, if any.
func (a *Auth) OngoingRequest() *Request {
	return a.ongoing
}

// Token returns the stored token. ok is false when signed out.
func (a *Auth) Token() (token common.Secret, ok bool, err error) {
	if a.session == nil {
		return common.Secret{}, false, nil
	}
	token, err = a.creds.Get(tokenKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return common.Secret{}, false, nil
	}
	if err != nil {
		return common.Secret{}, false, fmt.Errorf("load token: %w", err)
	}
	return token, true, nil
}

// StartSignIn begins a new sign-in, replacing any in-flight one. It returns
// nil if already signed in.
func (a *Auth) StartSignIn() (*Request, error) {
	if a.session != nil {
		return nil, nil
	}
	nonce, err := randomHex()
	if err != nil {
		return nil, err
	}
	state, err := randomHex()
	if err != nil {
		return nil, err
	}
	a.ongoing = &Request{Nonce: common.NewSecret(nonce), State: common.NewSecret(state)}
	return a.ongoing, nil
}

// HandleResponse completes the in-flight sign-in and persists the session.
func (a *Auth) HandleResponse(resp *deeplink.AuthResponse) (common.Secret, error) {
	req := a.ongoing
	if req == nil {
		return common.Secret{}, ErrNoInflightRequest
	}
	if !req.State.Equal(resp.State) {
		return common.Secret{}, ErrStateMismatch
	}

	token := common.NewSecret(req.Nonce.Expose() + resp.Fragment.Expose())
	if err := a.creds.Store(tokenKey, token); err != nil {
		return common.Secret{}, fmt.Errorf("save token: %w", err)
	}

	session := &Session{ActorName: resp.ActorName, AccountSlug: resp.AccountSlug}
	if err := a.saveSession(session); err != nil {
		return common.Secret{}, err
	}

	a.session = session
	a.ongoing = nil
	return token, nil
}

// SignOut forgets the session, the token and any in-flight request.
// It is idempotent.
func (a *Auth) SignOut() error {
	a.ongoing = nil
	a.session = nil

	var errs []error
	if err := a.creds.Delete(tokenKey); err != nil {
		errs = append(errs, fmt.Errorf("delete token: %w", err))
	}
	if err := os.Remove(a.sessionPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, fmt.Errorf("delete session: %w", err))
	}
	return errors.Join(errs...)
}

func (a *Auth) saveSession(s *Session) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(a.sessionPath), 0700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(a.sessionPath, data, 0600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func randomHex() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}
