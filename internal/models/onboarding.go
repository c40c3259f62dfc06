package models

// OnboardingStep is the position of a user in the profile-collection dialog.
type OnboardingStep string

const (
	// StepDone covers both users who finished onboarding and users who never started.
	StepDone     OnboardingStep = "done"
	StepAskName  OnboardingStep = "ask_name"
	StepAskEmail OnboardingStep = "ask_email"
	StepAskPhone OnboardingStep = "ask_phone"
)

// Valid reports whether s is one of the known steps.
func (s OnboardingStep) Valid() bool {
	switch s {
	case StepDone, StepAskName, StepAskEmail, StepAskPhone:
		return true
	}
	return false
}

// OnboardingState is the persisted dialog position plus the fields gathered so far.
type OnboardingState struct {
	Step  OnboardingStep `json:"step"`
	Name  string         `json:"name,omitempty"`
	Email string         `json:"email,omitempty"`
}

// Active reports whether the user is mid-dialog.
func (s OnboardingState) Active() bool {
	return s.Step != StepDone
}
