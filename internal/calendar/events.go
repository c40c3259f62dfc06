package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"agendabot-backend/internal/models"
)

const maxEventsPerDay = 50

// Event is one agenda entry.
type Event struct {
	Start   time.Time
	AllDay  bool
	Summary string
}

// Lookup reads today's events from Google Calendar.
type Lookup struct {
	oauth    *OAuth
	links    LinkStore
	endpoint string
	now      func() time.Time
	logger   *slog.Logger
}

// LookupOption customizes a Lookup.
type LookupOption func(*Lookup)

// WithEndpoint points the Calendar API client at a different base URL.
func WithEndpoint(url string) LookupOption {
	return func(l *Lookup) { l.endpoint = url }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) LookupOption {
	return func(l *Lookup) { l.now = now }
}

func NewLookup(o *OAuth, links LinkStore, logger *slog.Logger, opts ...LookupOption) *Lookup {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Lookup{oauth: o, links: links, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ListEventsForToday returns the events of the current day in the user's
// timezone, ordered by start time as the API returns them.
func (l *Lookup) ListEventsForToday(ctx context.Context, uid string, settings models.Settings) ([]Event, error) {
	link, err := l.links.Find(ctx, uid)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, ErrNotLinked
	}

	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		l.logger.WarnContext(ctx, "unknown timezone, using UTC", "user_id", uid, "timezone", settings.Timezone)
		loc = time.UTC
	}
	start, end := dayBounds(l.now(), loc)

	opts := []option.ClientOption{
		option.WithHTTPClient(oauth2.NewClient(ctx, l.oauth.TokenSource(ctx, uid, link))),
	}
	if l.endpoint != "" {
		opts = append(opts, option.WithEndpoint(l.endpoint))
	}
	srv, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}

	res, err := srv.Events.List(settings.CalendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		TimeZone(loc.String()).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxEventsPerDay).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}

	events := make([]Event, 0, len(res.Items))
	for _, item := range res.Items {
		ev, ok := toEvent(item, loc)
		if !ok {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func dayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

func toEvent(item *gcal.Event, loc *time.Location) (Event, bool) {
	if item == nil || item.Start == nil {
		return Event{}, false
	}
	ev := Event{Summary: item.Summary}
	if ev.Summary == "" {
		ev.Summary = "(no title)"
	}
	if item.Start.DateTime != "" {
		t, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			return Event{}, false
		}
		ev.Start = t.In(loc)
		return ev, true
	}
	t, err := time.ParseInLocation("2006-01-02", item.Start.Date, loc)
	if err != nil {
		return Event{}, false
	}
	ev.Start = t
	ev.AllDay = true
	return ev, true
}
