package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"agendabot-backend/internal/models"
	"agendabot-backend/internal/store"
)

const (
	fieldTimezone   = "timezone"
	fieldCalendarID = "calendar_id"
	fieldName       = "name"
	fieldEmail      = "email"
	fieldPhone      = "phone"
)

// UserRepo is the user directory: registration, settings, profile and
// calendar-link status.
type UserRepo struct {
	store           store.Store
	links           *CalendarLinkRepo
	onboarding      *OnboardingRepo
	defaultTimezone string
}

func NewUserRepo(s store.Store, defaultTimezone string) *UserRepo {
	if defaultTimezone == "" {
		defaultTimezone = "UTC"
	}
	return &UserRepo{
		store:           s,
		links:           NewCalendarLinkRepo(s),
		onboarding:      NewOnboardingRepo(s),
		defaultTimezone: defaultTimezone,
	}
}

// RegisterIfNew records uid as known and writes default settings the first
// time it is seen. It reports whether uid was new.
func (r *UserRepo) RegisterIfNew(ctx context.Context, uid string) (bool, error) {
	uid = strings.TrimSpace(uid)

	known, err := r.store.SIsMember(ctx, usersKey, uid)
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	if known {
		return false, nil
	}

	added, err := r.store.SAdd(ctx, usersKey, uid)
	if err != nil {
		return false, fmt.Errorf("register user: %w", err)
	}
	if !added {
		return false, nil
	}

	// Only fill fields that are absent so defaults never clobber explicit settings.
	if _, err := r.store.HSetNX(ctx, settingsKey(uid), fieldTimezone, r.defaultTimezone); err != nil {
		return true, fmt.Errorf("write default timezone: %w", err)
	}
	if _, err := r.store.HSetNX(ctx, settingsKey(uid), fieldCalendarID, models.DefaultCalendarID); err != nil {
		return true, fmt.Errorf("write default calendar: %w", err)
	}
	return true, nil
}

func (r *UserRepo) GetSettings(ctx context.Context, uid string) (models.Settings, error) {
	fields, err := r.store.HGetAll(ctx, settingsKey(uid))
	if err != nil {
		return models.Settings{}, fmt.Errorf("read settings: %w", err)
	}
	settings := models.Settings{
		Timezone:   fields[fieldTimezone],
		CalendarID: fields[fieldCalendarID],
	}
	if settings.Timezone == "" {
		settings.Timezone = r.defaultTimezone
	}
	if settings.CalendarID == "" {
		settings.CalendarID = models.DefaultCalendarID
	}
	return settings, nil
}

// SetSettings writes only the fields present in update.
func (r *UserRepo) SetSettings(ctx context.Context, uid string, update models.SettingsUpdate) error {
	fields := map[string]string{}
	if update.Timezone != nil {
		fields[fieldTimezone] = *update.Timezone
	}
	if update.CalendarID != nil {
		fields[fieldCalendarID] = *update.CalendarID
	}
	if len(fields) == 0 {
		return nil
	}
	if err := r.store.HSet(ctx, settingsKey(uid), fields); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// GetProfile returns nil when nothing has been stored for uid.
func (r *UserRepo) GetProfile(ctx context.Context, uid string) (*models.Profile, error) {
	fields, err := r.store.HGetAll(ctx, profileKey(uid))
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return &models.Profile{
		Name:  fields[fieldName],
		Email: fields[fieldEmail],
		Phone: fields[fieldPhone],
	}, nil
}

func (r *UserRepo) SetProfile(ctx context.Context, uid string, p models.Profile) error {
	err := r.store.HSet(ctx, profileKey(uid), map[string]string{
		fieldName:  p.Name,
		fieldEmail: p.Email,
		fieldPhone: p.Phone,
	})
	if err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}

func (r *UserRepo) HasCompletedOnboarding(ctx context.Context, uid string) (bool, error) {
	p, err := r.GetProfile(ctx, uid)
	if err != nil {
		return false, err
	}
	return p.Complete(), nil
}

func (r *UserRepo) HasCalendarLinked(ctx context.Context, uid string) (bool, error) {
	link, err := r.links.Find(ctx, uid)
	if err != nil {
		return false, err
	}
	return link != nil, nil
}

// FindByID assembles the full user record. It returns nil for unknown users.
func (r *UserRepo) FindByID(ctx context.Context, uid string) (*models.User, error) {
	known, err := r.store.SIsMember(ctx, usersKey, uid)
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, nil
	}

	user := &models.User{ID: uid}
	if user.Profile, err = r.GetProfile(ctx, uid); err != nil {
		return nil, err
	}
	if user.Settings, err = r.GetSettings(ctx, uid); err != nil {
		return nil, err
	}
	if user.CalendarLinked, err = r.HasCalendarLinked(ctx, uid); err != nil {
		return nil, err
	}
	if user.Onboarding, err = r.onboarding.Load(ctx, uid); err != nil {
		return nil, err
	}
	return user, nil
}

// ListIDs returns every registered identifier, sorted.
func (r *UserRepo) ListIDs(ctx context.Context) ([]string, error) {
	ids, err := r.store.SMembers(ctx, usersKey)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}
