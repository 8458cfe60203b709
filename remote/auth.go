package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const grantDeviceCode = "urn:ietf:params:oauth:grant-type:device_code"

// Device-flow terminal errors.
var (
	ErrAccessDenied = errors.New("authorization was denied")
	ErrExpiredCode  = errors.New("device code expired before authorization")
)

// DeviceCode is the server's response to a device authorization request.
type DeviceCode struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// User is the authenticated identity behind a token.
type User struct {
	Login     string `json:"login"`
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// Authenticator performs the OAuth device flow against the authorization
// host and resolves identities against the API host.
type Authenticator struct {
	authURL  string
	apiURL   string
	clientID string
	client   *http.Client
	log      zerolog.Logger

	// pollInterval overrides the server's pacing hint when non-zero. Tests
	// use it to poll quickly.
	pollInterval time.Duration
}

// NewAuthenticator creates a device-flow authenticator. authURL is the
// authorization host root (for example "https://github.com"), apiURL the API
// root.
func NewAuthenticator(authURL, apiURL, clientID string, httpClient *http.Client, log zerolog.Logger) *Authenticator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Authenticator{
		authURL:  trimSlash(authURL),
		apiURL:   trimSlash(apiURL),
		clientID: clientID,
		client:   httpClient,
		log:      log,
	}
}

// RequestDeviceCode starts the device flow and returns the code the user must
// enter at the verification URL.
func (a *Authenticator) RequestDeviceCode(ctx context.Context, scope string) (*DeviceCode, error) {
	form := url.Values{
		"client_id": {a.clientID},
		"scope":     {scope},
	}

	var code DeviceCode
	if err := a.postForm(ctx, a.authURL+"/login/device/code", form, &code); err != nil {
		return nil, fmt.Errorf("failed to request device code: %w", err)
	}
	if code.DeviceCode == "" {
		return nil, errors.New("device code response was empty")
	}
	return &code, nil
}

// WaitForToken polls the token endpoint until the user approves or denies
// the device, honoring the server's pacing hints: authorization_pending keeps
// polling, slow_down stretches the interval by 5 seconds.
func (a *Authenticator) WaitForToken(ctx context.Context, code *DeviceCode) (string, error) {
	interval := a.pollInterval
	if interval <= 0 {
		interval = time.Duration(code.Interval) * time.Second
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	deadline := time.Now().Add(time.Duration(code.ExpiresIn) * time.Second)

	form := url.Values{
		"client_id":   {a.clientID},
		"device_code": {code.DeviceCode},
		"grant_type":  {grantDeviceCode},
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}

		if code.ExpiresIn > 0 && time.Now().After(deadline) {
			return "", ErrExpiredCode
		}

		var resp struct {
			AccessToken string `json:"access_token"`
			Error       string `json:"error"`
		}
		if err := a.postForm(ctx, a.authURL+"/login/oauth/access_token", form, &resp); err != nil {
			return "", fmt.Errorf("failed to poll for token: %w", err)
		}

		switch resp.Error {
		case "":
			if resp.AccessToken != "" {
				return resp.AccessToken, nil
			}
			a.log.Warn().Msg("token endpoint returned neither a token nor an error code")
		case "authorization_pending":
			// User has not approved yet; keep polling.
		case "slow_down":
			interval += 5 * time.Second
		case "expired_token":
			return "", ErrExpiredCode
		case "access_denied":
			return "", ErrAccessDenied
		default:
			return "", fmt.Errorf("token endpoint returned error %q", resp.Error)
		}
	}
}

// CurrentUser resolves the identity behind token.
func (a *Authenticator) CurrentUser(ctx context.Context, token string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "token "+token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "failed to resolve authenticated user"}
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return &user, nil
}

// postForm posts form values with a JSON Accept header and decodes the JSON
// response into out.
func (a *Authenticator) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
