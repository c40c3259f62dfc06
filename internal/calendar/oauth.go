// Package calendar links users to Google Calendar and reads their agenda.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"

	"agendabot-backend/internal/models"
)

const (
	stateAudience = "calendar-link"
	stateTTL      = 15 * time.Minute
)

var (
	ErrNotLinked    = errors.New("calendar not linked")
	ErrInvalidState = errors.New("invalid oauth state")
	ErrLookupFailed = errors.New("calendar lookup failed")
)

// LinkStore persists OAuth credentials per user.
type LinkStore interface {
	Save(ctx context.Context, uid string, link *models.CalendarLink) error
	Find(ctx context.Context, uid string) (*models.CalendarLink, error)
}

// OAuthConfig holds the Google client registration.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// StateSecret signs the state parameter that carries the user id.
	StateSecret string
	// Endpoint overrides Google's endpoints, for tests.
	Endpoint *oauth2.Endpoint
	Logger   *slog.Logger
}

// OAuth issues authorization URLs and completes the code exchange.
type OAuth struct {
	config *oauth2.Config
	secret []byte
	links  LinkStore
	now    func() time.Time
	logger *slog.Logger
}

func NewOAuth(cfg OAuthConfig, links LinkStore) *OAuth {
	endpoint := google.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OAuth{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{gcal.CalendarReadonlyScope},
			Endpoint:     endpoint,
		},
		secret: []byte(cfg.StateSecret),
		links:  links,
		now:    time.Now,
		logger: logger,
	}
}

type stateClaims struct {
	jwt.RegisteredClaims
}

// AuthorizationURL returns the consent URL for uid. The user id travels in a
// signed, expiring state token so the callback can resolve it.
func (o *OAuth) AuthorizationURL(uid string) (string, error) {
	now := o.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Audience:  jwt.ClaimStrings{stateAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
			ID:        uuid.NewString(),
		},
	})
	state, err := token.SignedString(o.secret)
	if err != nil {
		return "", fmt.Errorf("sign oauth state: %w", err)
	}
	return o.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

// ParseState verifies a state token and returns the user id it carries.
func (o *OAuth) ParseState(state string) (string, error) {
	var claims stateClaims
	_, err := jwt.ParseWithClaims(state, &claims,
		func(t *jwt.Token) (any, error) { return o.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(stateAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(o.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidState)
	}
	return claims.Subject, nil
}

// Exchange completes the authorization-code flow and stores the resulting
// credentials for the user named in state. It returns that user id.
func (o *OAuth) Exchange(ctx context.Context, code, state string) (string, error) {
	uid, err := o.ParseState(state)
	if err != nil {
		return "", err
	}
	tok, err := o.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange code: %w", err)
	}
	if err := o.links.Save(ctx, uid, linkFromToken(tok)); err != nil {
		return "", err
	}
	return uid, nil
}

// TokenSource returns a refreshing token source for link that writes
// refreshed credentials back to the store.
func (o *OAuth) TokenSource(ctx context.Context, uid string, link *models.CalendarLink) oauth2.TokenSource {
	tok := &oauth2.Token{
		AccessToken:  link.AccessToken,
		RefreshToken: link.RefreshToken,
		TokenType:    link.TokenType,
		Expiry:       link.Expiry,
	}
	return oauth2.ReuseTokenSource(tok, &savingTokenSource{
		ctx:    ctx,
		uid:    uid,
		base:   o.config.TokenSource(ctx, tok),
		links:  o.links,
		last:   link.AccessToken,
		logger: o.logger,
	})
}

type savingTokenSource struct {
	ctx    context.Context
	uid    string
	base   oauth2.TokenSource
	links  LinkStore
	last   string
	logger *slog.Logger
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		// Losing the refreshed token only costs another refresh later.
		if err := s.links.Save(s.ctx, s.uid, linkFromToken(tok)); err != nil {
			s.logger.WarnContext(s.ctx, "refreshed token not saved", "user_id", s.uid, "error", err)
		}
	}
	return tok, nil
}

func linkFromToken(tok *oauth2.Token) *models.CalendarLink {
	return &models.CalendarLink{
		RefreshToken: tok.RefreshToken,
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
}
