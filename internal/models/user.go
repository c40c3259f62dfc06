package models

// DefaultCalendarID is the calendar consulted when a user has not picked one.
const DefaultCalendarID = "primary"

// Profile is the contact data collected during onboarding.
type Profile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Complete reports whether the profile satisfies onboarding: both name and email set.
func (p *Profile) Complete() bool {
	return p != nil && p.Name != "" && p.Email != ""
}

// Settings are per-user preferences. Both fields always carry a value once
// the user is known.
type Settings struct {
	Timezone   string `json:"timezone"`
	CalendarID string `json:"calendar_id"`
}

// SettingsUpdate is a partial update; nil fields are left unchanged.
type SettingsUpdate struct {
	Timezone   *string
	CalendarID *string
}

// User is the aggregate view of everything stored for one messaging identifier.
type User struct {
	ID             string          `json:"id"`
	Profile        *Profile        `json:"profile,omitempty"`
	Settings       Settings        `json:"settings"`
	CalendarLinked bool            `json:"calendar_linked"`
	Onboarding     OnboardingState `json:"onboarding"`
}
