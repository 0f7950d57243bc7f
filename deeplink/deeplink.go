// Package deeplink parses the URLs the browser hands back to the client
// after sign-in.
package deeplink

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/yllada/vpn-client/common"
)

// CallbackHost is the host part of a sign-in callback URL,
// e.g. vpn-client://handle_client_sign_in_callback?...
const CallbackHost = "handle_client_sign_in_callback"

var (
	ErrWrongScheme  = errors.New("deep link has the wrong scheme")
	ErrUnknownHost  = errors.New("deep link is not a sign-in callback")
	ErrMissingParam = errors.New("deep link is missing a parameter")
)

// AuthResponse is what the portal sends back through the browser.
type AuthResponse struct {
	ActorName   string
	AccountName string
	AccountSlug string
	// Fragment is combined with the request nonce to form the token.
	Fragment common.Secret
	// State must match the state of the in-flight sign-in request.
	State common.Secret
}

// ParseAuthCallback parses a sign-in callback URL.
func ParseAuthCallback(raw string) (*AuthResponse, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse deep link: %w", err)
	}
	if u.Scheme != common.DeepLinkScheme {
		return nil, fmt.Errorf("%w: %q", ErrWrongScheme, u.Scheme)
	}
	if u.Host != CallbackHost {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHost, u.Host)
	}

	q := u.Query()
	get := func(key string) (string, error) {
		v := q.Get(key)
		if v == "" {
			return "", fmt.Errorf("%w: %s", ErrMissingParam, key)
		}
		return v, nil
	}

	resp := &AuthResponse{AccountName: q.Get("account_name")}
	if resp.ActorName, err = get("actor_name"); err != nil {
		return nil, err
	}
	if resp.AccountSlug, err = get("account_slug"); err != nil {
		return nil, err
	}
	fragment, err := get("fragment")
	if err != nil {
		return nil, err
	}
	state, err := get("state")
	if err != nil {
		return nil, err
	}
	resp.Fragment = common.NewSecret(fragment)
	resp.State = common.NewSecret(state)
	return resp, nil
}
