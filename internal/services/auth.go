// Session management: password-grant login and profile switching
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/crmigrate/internal/shared"
	"golang.org/x/oauth2"
)

// Profile is one user profile on the account. Data (watchlist, history,
// lists, ratings) is scoped to a profile, not the account.
type Profile struct {
	ProfileID   string `json:"profile_id"`
	ProfileName string `json:"profile_name"`
	Username    string `json:"username"`
	IsPrimary   bool   `json:"is_primary"`
}

type profileList struct {
	Profiles []Profile `json:"profiles"`
}

type account struct {
	AccountID  string `json:"account_id"`
	ExternalID string `json:"external_id"`
}

// Session is an authenticated connection to the service, optionally scoped
// to a profile. A fresh session is account-scoped; call SwitchProfile to
// re-grant against a specific profile before reading or writing its data.
type Session struct {
	cfg      *shared.Config
	oauth    *oauth2.Config
	token    *oauth2.Token
	deviceID string
	client   *http.Client
	api      *APIClient

	// AccountID and ActiveProfile are set by Login and SwitchProfile.
	AccountID     string
	ActiveProfile *Profile
}

// NewSession builds an unauthenticated session from config. transport may
// be nil to use the default HTTP transport.
func NewSession(cfg *shared.Config, transport http.RoundTripper) *Session {
	s := &Session{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.API.ClientID,
			ClientSecret: cfg.API.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.API.TokenURL},
		},
		deviceID: shared.GenerateID(),
		client:   &http.Client{Transport: transport, Timeout: 30 * time.Second},
	}
	s.api = NewAPIClient(cfg.API.BaseURL, s.Token, transport)
	return s
}

// API returns the authenticated request client for this session.
func (s *Session) API() *APIClient { return s.api }

// Token returns the current access token, or "" before login.
func (s *Session) Token() string {
	if s.token == nil {
		return ""
	}
	return s.token.AccessToken
}

// Login performs the password grant and resolves the account identity.
// Empty email or password falls back to the configured credentials.
func (s *Session) Login(ctx context.Context, email, password string) error {
	if email == "" {
		email = s.cfg.Credentials.Email
	}
	if password == "" {
		password = s.cfg.Credentials.Password
	}
	if email == "" || password == "" {
		return fmt.Errorf("%w: email and password required", shared.ErrMissingCredentials)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	token, err := s.oauth.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	s.token = token

	var acct account
	if err := s.api.Get(ctx, "/accounts/v1/me", &acct); err != nil {
		return fmt.Errorf("failed to resolve account: %w", err)
	}
	s.AccountID = acct.AccountID
	return nil
}

// Profiles lists all profiles on the account.
func (s *Session) Profiles(ctx context.Context) ([]Profile, error) {
	if s.token == nil {
		return nil, shared.ErrNotAuthenticated
	}
	var list profileList
	if err := s.api.Get(ctx, "/accounts/v1/me/multiprofile", &list); err != nil {
		return nil, fmt.Errorf("failed to fetch profiles: %w", err)
	}
	return list.Profiles, nil
}

// FindProfile resolves a profile by name, case-insensitively.
func FindProfile(profiles []Profile, name string) (*Profile, error) {
	for i := range profiles {
		if strings.EqualFold(profiles[i].ProfileName, name) {
			return &profiles[i], nil
		}
	}
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.ProfileName
	}
	return nil, fmt.Errorf("%w: %q (available: %s)", shared.ErrProfileNotFound, name, strings.Join(names, ", "))
}

// SwitchProfile re-grants the session scoped to the given profile. All
// subsequent reads and writes act on that profile's data.
func (s *Session) SwitchProfile(ctx context.Context, profile *Profile) error {
	if s.token == nil || s.token.RefreshToken == "" {
		return fmt.Errorf("%w: no refresh token", shared.ErrNotAuthenticated)
	}

	token, err := s.grant(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {s.token.RefreshToken},
		"profile_id":    {profile.ProfileID},
		"device_id":     {s.deviceID},
		"scope":         {"offline_access"},
	})
	if err != nil {
		return fmt.Errorf("failed to switch profile %q: %w", profile.ProfileName, err)
	}
	s.token = token
	s.ActiveProfile = profile
	return nil
}

// CreateProfile creates a new profile. The username is derived from the
// display name the way the service's own apps do it.
func (s *Session) CreateProfile(ctx context.Context, name string) (*Profile, error) {
	if s.token == nil {
		return nil, shared.ErrNotAuthenticated
	}
	body := map[string]string{
		"profile_name": name,
		"username":     strings.ReplaceAll(strings.ToLower(name), " ", "_"),
	}
	var created Profile
	if err := s.api.Post(ctx, "/accounts/v1/me/multiprofile", body, &created); err != nil {
		return nil, fmt.Errorf("failed to create profile %q: %w", name, err)
	}
	return &created, nil
}

// RenameProfile changes a profile's display name.
func (s *Session) RenameProfile(ctx context.Context, profileID, newName string) error {
	if s.token == nil {
		return shared.ErrNotAuthenticated
	}
	body := map[string]string{"profile_name": newName}
	path := "/accounts/v1/me/multiprofile/" + url.PathEscape(profileID)
	if err := s.api.Put(ctx, path, body, nil); err != nil {
		return fmt.Errorf("failed to rename profile: %w", err)
	}
	return nil
}

// grant performs a manual token request for grants the oauth2 package has
// no helper for (the profile-scoped refresh grant carries extra fields).
func (s *Session) grant(ctx context.Context, form url.Values) (*oauth2.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.API.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.oauth.ClientID, s.oauth.ClientSecret)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: token endpoint returned %d", shared.ErrAuthFailed, resp.StatusCode)
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
		TokenType    string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return &oauth2.Token{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		TokenType:    payload.TokenType,
		Expiry:       time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second),
	}, nil
}
