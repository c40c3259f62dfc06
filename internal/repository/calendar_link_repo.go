package repository

import (
	"context"
	"fmt"
	"time"

	"agendabot-backend/internal/models"
	"agendabot-backend/internal/store"
)

const (
	fieldRefreshToken = "refresh_token"
	fieldAccessToken  = "access_token"
	fieldTokenType    = "token_type"
	fieldExpiry       = "expiry"
)

// CalendarLinkRepo stores the OAuth credentials issued for a user's calendar.
type CalendarLinkRepo struct {
	store store.Store
}

func NewCalendarLinkRepo(s store.Store) *CalendarLinkRepo {
	return &CalendarLinkRepo{store: s}
}

func (r *CalendarLinkRepo) Save(ctx context.Context, uid string, link *models.CalendarLink) error {
	fields := map[string]string{
		fieldAccessToken: link.AccessToken,
		fieldTokenType:   link.TokenType,
		fieldExpiry:      "",
	}
	if !link.Expiry.IsZero() {
		fields[fieldExpiry] = link.Expiry.UTC().Format(time.RFC3339)
	}
	// Google omits the refresh token on re-consent; keep the one we already have.
	if link.RefreshToken != "" {
		fields[fieldRefreshToken] = link.RefreshToken
	}
	if err := r.store.HSet(ctx, googleKey(uid), fields); err != nil {
		return fmt.Errorf("save calendar link: %w", err)
	}
	return nil
}

// Find returns nil when no refresh token is stored for uid.
func (r *CalendarLinkRepo) Find(ctx context.Context, uid string) (*models.CalendarLink, error) {
	fields, err := r.store.HGetAll(ctx, googleKey(uid))
	if err != nil {
		return nil, fmt.Errorf("read calendar link: %w", err)
	}
	if fields[fieldRefreshToken] == "" {
		return nil, nil
	}

	link := &models.CalendarLink{
		RefreshToken: fields[fieldRefreshToken],
		AccessToken:  fields[fieldAccessToken],
		TokenType:    fields[fieldTokenType],
	}
	if v := fields[fieldExpiry]; v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			link.Expiry = t
		}
	}
	return link, nil
}

func (r *CalendarLinkRepo) Delete(ctx context.Context, uid string) error {
	return r.store.HDel(ctx, googleKey(uid), fieldRefreshToken, fieldAccessToken, fieldTokenType, fieldExpiry)
}
