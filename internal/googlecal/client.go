// Package googlecal talks to Google on behalf of Google-type scheduler
// sources: OAuth code exchange and calendar discovery.
package googlecal

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/clinicops/scheduling-service/internal/credentials"
	"github.com/clinicops/scheduling-service/pkg/logging"
)

// AuthError is a provider rejection during the OAuth code exchange. It is
// fatal to provisioning and never retried automatically.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("googlecal: auth exchange: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Config holds the OAuth application settings.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Calendar is one calendar on the provider's account.
type Calendar struct {
	ID          string
	Summary     string
	Description string
	Primary     bool
}

// Client performs the Google-side steps of scheduler provisioning.
type Client struct {
	oauth  *oauth2.Config
	logger *logging.Logger

	// when set, replaces the default authenticated service options; tests
	// use this to point at a fake server
	serviceOpts []option.ClientOption
}

// NewClient creates a Google source client.
func NewClient(cfg Config, logger *logging.Logger, opts ...option.ClientOption) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint:     google.Endpoint,
			Scopes:       []string{calendar.CalendarReadonlyScope},
		},
		logger:      logger,
		serviceOpts: opts,
	}
}

// AuthorizationURL builds the consent URL the clinic admin is redirected to.
func (c *Client) AuthorizationURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeCode trades an authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*credentials.Credential, error) {
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	c.logger.Info("exchanged google authorization code", "expires_at", token.Expiry)
	return &credentials.Credential{
		SourceType:   credentials.SourceGoogle,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}, nil
}

// ListCalendars returns the calendars visible to the credential. The primary
// calendar identifies the provider account.
func (c *Client) ListCalendars(ctx context.Context, cred *credentials.Credential) ([]Calendar, error) {
	// Injected options replace the token source entirely so tests can point
	// at an unauthenticated fake server.
	opts := c.serviceOpts
	if len(opts) == 0 {
		token := &oauth2.Token{
			AccessToken:  cred.AccessToken,
			RefreshToken: cred.RefreshToken,
			Expiry:       cred.ExpiresAt,
		}
		opts = []option.ClientOption{option.WithTokenSource(c.oauth.TokenSource(ctx, token))}
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("googlecal: create service: %w", err)
	}

	list, err := svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("googlecal: list calendars: %w", err)
	}

	calendars := make([]Calendar, 0, len(list.Items))
	for _, item := range list.Items {
		calendars = append(calendars, Calendar{
			ID:          item.Id,
			Summary:     item.Summary,
			Description: item.Description,
			Primary:     item.Primary,
		})
	}
	return calendars, nil
}

// PrimaryCalendarID resolves the provider identity behind the credential.
func (c *Client) PrimaryCalendarID(ctx context.Context, cred *credentials.Credential) (string, error) {
	calendars, err := c.ListCalendars(ctx, cred)
	if err != nil {
		return "", err
	}
	for _, cal := range calendars {
		if cal.Primary {
			return cal.ID, nil
		}
	}
	if len(calendars) > 0 {
		return calendars[0].ID, nil
	}
	return "", fmt.Errorf("googlecal: no calendars on account")
}

// SetAuthEndpoint overrides the OAuth endpoint. Tests point this at a fake
// token server.
func (c *Client) SetAuthEndpoint(authURL, tokenURL string) {
	c.oauth.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
}
