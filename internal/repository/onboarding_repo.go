package repository

import (
	"context"
	"fmt"

	"agendabot-backend/internal/models"
	"agendabot-backend/internal/store"
)

const fieldStep = "step"

// OnboardingRepo persists each user's position in the onboarding dialog.
// Records never expire; they are only transitioned.
type OnboardingRepo struct {
	store store.Store
}

func NewOnboardingRepo(s store.Store) *OnboardingRepo {
	return &OnboardingRepo{store: s}
}

// Load returns StepDone with no fields when nothing is stored.
func (r *OnboardingRepo) Load(ctx context.Context, uid string) (models.OnboardingState, error) {
	fields, err := r.store.HGetAll(ctx, onboardingKey(uid))
	if err != nil {
		return models.OnboardingState{}, fmt.Errorf("read onboarding state: %w", err)
	}
	step := models.OnboardingStep(fields[fieldStep])
	if !step.Valid() {
		return models.OnboardingState{Step: models.StepDone}, nil
	}
	return models.OnboardingState{
		Step:  step,
		Name:  fields[fieldName],
		Email: fields[fieldEmail],
	}, nil
}

func (r *OnboardingRepo) Save(ctx context.Context, uid string, state models.OnboardingState) error {
	err := r.store.HSet(ctx, onboardingKey(uid), map[string]string{
		fieldStep:  string(state.Step),
		fieldName:  state.Name,
		fieldEmail: state.Email,
	})
	if err != nil {
		return fmt.Errorf("write onboarding state: %w", err)
	}
	return nil
}

// Clear resets uid to StepDone and drops the collected fields.
func (r *OnboardingRepo) Clear(ctx context.Context, uid string) error {
	return r.Save(ctx, uid, models.OnboardingState{Step: models.StepDone})
}
