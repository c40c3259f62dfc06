// Package onboarding runs the first-contact dialog that collects a user's
// name, email and phone before general commands are available.
package onboarding

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"agendabot-backend/internal/models"
	"agendabot-backend/internal/notify"
)

// Prompts sent at each step.
const (
	WelcomePrompt  = "👋 Welcome! Let's get you set up.\nWhat's your name?"
	EmailPrompt    = "Thanks, %s! What's your email address?"
	PhonePrompt    = "Got it. What's your phone number? (reply \"skip\" to leave it out)"
	CompletePrompt = "✅ You're all set, %s!\nType *connect* to link your Google Calendar or *help* to see what I can do."

	InvalidName  = "Please enter a name with at least 2 characters."
	InvalidEmail = "That doesn't look like an email address. Please try again (e.g. name@example.com)."
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// StateRepo persists dialog positions.
type StateRepo interface {
	Load(ctx context.Context, uid string) (models.OnboardingState, error)
	Save(ctx context.Context, uid string, state models.OnboardingState) error
	Clear(ctx context.Context, uid string) error
}

// ProfileWriter receives the completed profile.
type ProfileWriter interface {
	SetProfile(ctx context.Context, uid string, p models.Profile) error
}

// Machine is the onboarding state machine. It holds no per-user state of its
// own; every transition is read from and written back to the StateRepo.
type Machine struct {
	states   StateRepo
	profiles ProfileWriter
	notifier notify.Notifier
	logger   *slog.Logger
}

// New creates a Machine. notifier may be nil, in which case no welcome email is sent.
func New(states StateRepo, profiles ProfileWriter, notifier notify.Notifier, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		states:   states,
		profiles: profiles,
		notifier: notifier,
		logger:   logger,
	}
}

// Current returns the persisted state for uid, StepDone if none.
func (m *Machine) Current(ctx context.Context, uid string) (models.OnboardingState, error) {
	return m.states.Load(ctx, uid)
}

// Start begins a fresh run, discarding anything collected before.
func (m *Machine) Start(ctx context.Context, uid string) (string, error) {
	if err := m.states.Save(ctx, uid, models.OnboardingState{Step: models.StepAskName}); err != nil {
		return "", err
	}
	return WelcomePrompt, nil
}

// Advance feeds one user message into the dialog. It returns ok=false when
// uid is not mid-dialog, meaning the message belongs to command handling.
func (m *Machine) Advance(ctx context.Context, uid, input string) (reply string, ok bool, err error) {
	state, err := m.states.Load(ctx, uid)
	if err != nil {
		return "", false, err
	}
	input = strings.TrimSpace(input)

	switch state.Step {
	case models.StepAskName:
		if len([]rune(input)) < 2 {
			return InvalidName, true, nil
		}
		state.Name = input
		state.Step = models.StepAskEmail
		if err := m.states.Save(ctx, uid, state); err != nil {
			return "", true, err
		}
		return fmt.Sprintf(EmailPrompt, state.Name), true, nil

	case models.StepAskEmail:
		if !ValidEmail(input) {
			return InvalidEmail, true, nil
		}
		state.Email = input
		state.Step = models.StepAskPhone
		if err := m.states.Save(ctx, uid, state); err != nil {
			return "", true, err
		}
		return PhonePrompt, true, nil

	case models.StepAskPhone:
		phone := input
		if strings.EqualFold(phone, "skip") {
			phone = ""
		}
		profile := models.Profile{Name: state.Name, Email: state.Email, Phone: phone}
		if err := m.profiles.SetProfile(ctx, uid, profile); err != nil {
			return "", true, err
		}
		if err := m.states.Clear(ctx, uid); err != nil {
			return "", true, err
		}
		m.logger.InfoContext(ctx, "onboarding completed", "user_id", uid)
		m.sendWelcome(ctx, profile)
		return fmt.Sprintf(CompletePrompt, profile.Name), true, nil

	default:
		return "", false, nil
	}
}

func (m *Machine) sendWelcome(ctx context.Context, p models.Profile) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, notify.WelcomeMessage(p.Name, p.Email)); err != nil {
		m.logger.WarnContext(ctx, "welcome email failed", "error", err)
	}
}

// ValidEmail applies the deliberately loose address check used by the dialog.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}
