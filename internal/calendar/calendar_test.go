package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"agendabot-backend/internal/models"
	"agendabot-backend/internal/repository"
	"agendabot-backend/internal/store"
)

func newOAuth(t *testing.T, tokenURL string) (*OAuth, *repository.CalendarLinkRepo) {
	t.Helper()
	links := repository.NewCalendarLinkRepo(store.NewMemory())
	o := NewOAuth(OAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://bot.example.com/oauth/google/callback",
		StateSecret:  "state-secret",
		Endpoint: &oauth2.Endpoint{
			AuthURL:  "https://accounts.example.com/auth",
			TokenURL: tokenURL,
		},
	}, links)
	return o, links
}

func TestAuthorizationURLCarriesUser(t *testing.T) {
	o, _ := newOAuth(t, "http://unused")

	raw, err := o.AuthorizationURL("15550001")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Contains(t, q.Get("scope"), "calendar.readonly")

	uid, err := o.ParseState(q.Get("state"))
	require.NoError(t, err)
	assert.Equal(t, "15550001", uid)
}

func TestParseStateRejectsBadTokens(t *testing.T) {
	o, _ := newOAuth(t, "http://unused")
	raw, err := o.AuthorizationURL("u1")
	require.NoError(t, err)
	u, _ := url.Parse(raw)
	state := u.Query().Get("state")

	t.Run("expired", func(t *testing.T) {
		o.now = func() time.Time { return time.Now().Add(time.Hour) }
		defer func() { o.now = time.Now }()
		_, err := o.ParseState(state)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, _ := newOAuth(t, "http://unused")
		other.secret = []byte("different")
		_, err := other.ParseState(state)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := o.ParseState("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestExchangeStoresLink(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "auth-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	defer tokenSrv.Close()

	o, links := newOAuth(t, tokenSrv.URL)
	raw, err := o.AuthorizationURL("15550001")
	require.NoError(t, err)
	u, _ := url.Parse(raw)

	uid, err := o.Exchange(context.Background(), "auth-code", u.Query().Get("state"))
	require.NoError(t, err)
	assert.Equal(t, "15550001", uid)

	link, err := links.Find(context.Background(), "15550001")
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, "refresh-1", link.RefreshToken)
	assert.Equal(t, "access-1", link.AccessToken)
}

func TestExchangeRejectsInvalidState(t *testing.T) {
	o, _ := newOAuth(t, "http://unused")
	_, err := o.Exchange(context.Background(), "code", "forged")
	assert.ErrorIs(t, err, ErrInvalidState)
}

type failingLinks struct{}

func (failingLinks) Save(ctx context.Context, uid string, link *models.CalendarLink) error {
	return errors.New("store unavailable")
}

func (failingLinks) Find(ctx context.Context, uid string) (*models.CalendarLink, error) {
	return nil, nil
}

func TestRefreshedTokenSaveFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	src := &savingTokenSource{
		ctx:    context.Background(),
		uid:    "15550001",
		base:   oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "access-2"}),
		links:  failingLinks{},
		last:   "access-1",
		logger: slog.New(slog.NewTextHandler(&buf, nil)),
	}

	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "access-2", tok.AccessToken)
	assert.Contains(t, buf.String(), "refreshed token not saved")
	assert.Contains(t, buf.String(), "user_id=15550001")
	assert.Contains(t, buf.String(), "store unavailable")
}

func TestListEventsForToday(t *testing.T) {
	var gotQuery url.Values
	var gotPath string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[
			{"summary":"Offsite","start":{"date":"2026-10-18"}},
			{"summary":"Standup","start":{"dateTime":"2026-10-18T09:30:00-04:00"}},
			{"summary":"","start":{"dateTime":"2026-10-18T14:00:00-04:00"}}
		]}`))
	}))
	defer api.Close()

	o, links := newOAuth(t, "http://unused")
	ctx := context.Background()
	require.NoError(t, links.Save(ctx, "u1", &models.CalendarLink{
		RefreshToken: "refresh-1",
		AccessToken:  "access-1",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}))

	fixed := time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC)
	lookup := NewLookup(o, links, nil, WithEndpoint(api.URL+"/"), WithClock(func() time.Time { return fixed }))

	events, err := lookup.ListEventsForToday(ctx, "u1", models.Settings{Timezone: "America/New_York", CalendarID: "primary"})
	require.NoError(t, err)

	assert.Equal(t, "/calendars/primary/events", gotPath)
	assert.Equal(t, "America/New_York", gotQuery.Get("timeZone"))
	assert.Equal(t, "true", gotQuery.Get("singleEvents"))
	assert.Equal(t, "startTime", gotQuery.Get("orderBy"))
	assert.Equal(t, "2026-10-18T00:00:00-04:00", gotQuery.Get("timeMin"))
	assert.Equal(t, "2026-10-19T00:00:00-04:00", gotQuery.Get("timeMax"))

	require.Len(t, events, 3)
	assert.True(t, events[0].AllDay)
	assert.Equal(t, "Offsite", events[0].Summary)
	assert.False(t, events[1].AllDay)
	assert.Equal(t, "09:30", events[1].Start.Format("15:04"))
	assert.Equal(t, "(no title)", events[2].Summary)
}

func TestListEventsForTodayNotLinked(t *testing.T) {
	o, links := newOAuth(t, "http://unused")
	lookup := NewLookup(o, links, nil)
	_, err := lookup.ListEventsForToday(context.Background(), "u1", models.Settings{Timezone: "UTC", CalendarID: "primary"})
	assert.ErrorIs(t, err, ErrNotLinked)
}

func TestListEventsForTodayAPIError(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"invalid credentials"}}`))
	}))
	defer api.Close()

	o, links := newOAuth(t, "http://unused")
	ctx := context.Background()
	require.NoError(t, links.Save(ctx, "u1", &models.CalendarLink{RefreshToken: "r", AccessToken: "a", Expiry: time.Now().Add(time.Hour)}))

	lookup := NewLookup(o, links, nil, WithEndpoint(api.URL+"/"))
	_, err := lookup.ListEventsForToday(ctx, "u1", models.Settings{Timezone: "UTC", CalendarID: "primary"})
	assert.ErrorIs(t, err, ErrLookupFailed)
}

func TestDayBoundsFollowUserZone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	now := time.Date(2026, 10, 18, 20, 0, 0, 0, time.UTC) // already the 19th in Kolkata
	start, end := dayBounds(now, loc)
	assert.Equal(t, 19, start.Day())
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}
