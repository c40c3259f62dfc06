// Package dispatcher decides what happens to every inbound chat message:
// onboarding, command handling, per-user rate limiting, or silence.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agendabot-backend/internal/calendar"
	"agendabot-backend/internal/messaging"
	"agendabot-backend/internal/metrics"
	"agendabot-backend/internal/models"
)

// DefaultMinInterval is the minimum gap between two command replies to the
// same user, sized to stay under the gateway's own per-number throughput.
const DefaultMinInterval = 65 * time.Second

// Outcome summarizes what Handle did with a message.
type Outcome string

const (
	OutcomeIgnored     Outcome = "ignored"
	OutcomeOnboarding  Outcome = "onboarding"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeReplied     Outcome = "replied"
	OutcomeSendFailed  Outcome = "send_failed"
)

type UserDirectory interface {
	RegisterIfNew(ctx context.Context, uid string) (bool, error)
	HasCompletedOnboarding(ctx context.Context, uid string) (bool, error)
	HasCalendarLinked(ctx context.Context, uid string) (bool, error)
	GetProfile(ctx context.Context, uid string) (*models.Profile, error)
	GetSettings(ctx context.Context, uid string) (models.Settings, error)
	SetSettings(ctx context.Context, uid string, update models.SettingsUpdate) error
}

type Onboarding interface {
	Current(ctx context.Context, uid string) (models.OnboardingState, error)
	Start(ctx context.Context, uid string) (string, error)
	Advance(ctx context.Context, uid, input string) (string, bool, error)
}

type SendLog interface {
	LastSend(ctx context.Context, uid string) (time.Time, error)
	MarkSend(ctx context.Context, uid string, at time.Time) error
}

type AuthURLIssuer interface {
	AuthorizationURL(uid string) (string, error)
}

type CalendarLookup interface {
	ListEventsForToday(ctx context.Context, uid string, settings models.Settings) ([]calendar.Event, error)
}

// Deps wires the dispatcher's collaborators.
type Deps struct {
	Users       UserDirectory
	Onboarding  Onboarding
	SendLog     SendLog
	Sender      messaging.Sender
	Auth        AuthURLIssuer
	Calendar    CalendarLookup
	MinInterval time.Duration
	Now         func() time.Time
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

type Dispatcher struct {
	users       UserDirectory
	onboarding  Onboarding
	sendLog     SendLog
	sender      messaging.Sender
	auth        AuthURLIssuer
	calendar    CalendarLookup
	minInterval time.Duration
	now         func() time.Time
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func New(deps Deps) *Dispatcher {
	d := &Dispatcher{
		users:       deps.Users,
		onboarding:  deps.Onboarding,
		sendLog:     deps.SendLog,
		sender:      deps.Sender,
		auth:        deps.Auth,
		calendar:    deps.Calendar,
		minInterval: deps.MinInterval,
		now:         deps.Now,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
	}
	if d.minInterval <= 0 {
		d.minInterval = DefaultMinInterval
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Handle processes one inbound message. Delivery and calendar failures are
// absorbed here; a non-nil error means something unexpected (usually the
// store) went wrong and the webhook should answer 500.
func (d *Dispatcher) Handle(ctx context.Context, in messaging.Inbound) (Outcome, error) {
	outcome, err := d.handle(ctx, in)
	if err != nil {
		d.metrics.Inbound("error")
		return outcome, err
	}
	d.metrics.Inbound(string(outcome))
	return outcome, nil
}

func (d *Dispatcher) handle(ctx context.Context, in messaging.Inbound) (Outcome, error) {
	uid := strings.TrimSpace(in.From)
	text := strings.TrimSpace(in.Text)
	if uid == "" || text == "" {
		return OutcomeIgnored, nil
	}
	logger := d.logger.With("user_id", uid)

	cmd, arg := Classify(text)

	isNew, err := d.users.RegisterIfNew(ctx, uid)
	if err != nil {
		logger.ErrorContext(ctx, "registration failed", "error", err)
	} else if isNew {
		logger.InfoContext(ctx, "new user registered")
	}

	hasOnboarded, err := d.users.HasCompletedOnboarding(ctx, uid)
	if err != nil {
		return "", fmt.Errorf("check onboarding: %w", err)
	}
	state, err := d.onboarding.Current(ctx, uid)
	if err != nil {
		return "", fmt.Errorf("load onboarding state: %w", err)
	}
	inOnboarding := state.Active()

	if !hasOnboarded && !inOnboarding && cmd == CmdNone {
		logger.DebugContext(ctx, "ignoring chatter from user without profile")
		return OutcomeIgnored, nil
	}

	// "connect" is the one command that is never captured by onboarding.
	if !hasOnboarded && cmd != CmdConnect {
		return d.continueOnboarding(ctx, uid, text, inOnboarding)
	}

	if cmd == CmdNone {
		if !inOnboarding {
			logger.DebugContext(ctx, "ignoring non-command text")
			return OutcomeIgnored, nil
		}
		// An onboarded user re-running the dialog answers with free text.
		return d.continueOnboarding(ctx, uid, text, true)
	}

	last, err := d.sendLog.LastSend(ctx, uid)
	if err != nil {
		return "", fmt.Errorf("read last send: %w", err)
	}
	now := d.now()
	if !last.IsZero() && now.Sub(last) < d.minInterval {
		logger.InfoContext(ctx, "reply suppressed by per-user rate limit", "command", string(cmd), "since_last", now.Sub(last))
		return OutcomeRateLimited, nil
	}
	// Reserve the slot before the network call so a slow send can't let a burst through.
	if err := d.sendLog.MarkSend(ctx, uid, now); err != nil {
		return "", fmt.Errorf("mark send: %w", err)
	}

	return d.execute(ctx, logger, uid, cmd, arg)
}

func (d *Dispatcher) continueOnboarding(ctx context.Context, uid, text string, inOnboarding bool) (Outcome, error) {
	if !inOnboarding {
		reply, err := d.onboarding.Start(ctx, uid)
		if err != nil {
			return "", fmt.Errorf("start onboarding: %w", err)
		}
		return d.reply(ctx, uid, reply, OutcomeOnboarding), nil
	}

	reply, ok, err := d.onboarding.Advance(ctx, uid, text)
	if err != nil {
		return "", fmt.Errorf("advance onboarding: %w", err)
	}
	if !ok {
		return OutcomeIgnored, nil
	}
	return d.reply(ctx, uid, reply, OutcomeOnboarding), nil
}

func (d *Dispatcher) execute(ctx context.Context, logger *slog.Logger, uid string, cmd Command, arg string) (Outcome, error) {
	switch cmd {
	case CmdHi, CmdHello:
		profile, err := d.users.GetProfile(ctx, uid)
		if err != nil {
			return "", err
		}
		return d.reply(ctx, uid, greeting(profile), OutcomeReplied), nil

	case CmdConnect:
		linked, err := d.users.HasCalendarLinked(ctx, uid)
		if err != nil {
			return "", err
		}
		if linked {
			return d.reply(ctx, uid, alreadyConnectedText, OutcomeReplied), nil
		}
		url, err := d.auth.AuthorizationURL(uid)
		if err != nil {
			logger.ErrorContext(ctx, "failed to build authorization url", "error", err)
			return d.reply(ctx, uid, connectFailedText, OutcomeReplied), nil
		}
		return d.reply(ctx, uid, connectText(url), OutcomeReplied), nil

	case CmdOnboard:
		reply, err := d.onboarding.Start(ctx, uid)
		if err != nil {
			return "", fmt.Errorf("start onboarding: %w", err)
		}
		return d.reply(ctx, uid, reply, OutcomeOnboarding), nil

	case CmdAgenda:
		return d.agenda(ctx, logger, uid)

	case CmdHelp:
		return d.reply(ctx, uid, helpText, OutcomeReplied), nil

	case CmdWhoami:
		profile, err := d.users.GetProfile(ctx, uid)
		if err != nil {
			return "", err
		}
		if profile == nil {
			return d.reply(ctx, uid, notOnboardedText, OutcomeReplied), nil
		}
		linked, err := d.users.HasCalendarLinked(ctx, uid)
		if err != nil {
			return "", err
		}
		return d.reply(ctx, uid, whoamiText(profile, linked), OutcomeReplied), nil

	case CmdSetTZ:
		if err := d.users.SetSettings(ctx, uid, models.SettingsUpdate{Timezone: &arg}); err != nil {
			return "", err
		}
		settings, err := d.users.GetSettings(ctx, uid)
		if err != nil {
			return "", err
		}
		return d.reply(ctx, uid, timezoneSetText(settings.Timezone), OutcomeReplied), nil

	default:
		return d.reply(ctx, uid, unknownText, OutcomeReplied), nil
	}
}

func (d *Dispatcher) agenda(ctx context.Context, logger *slog.Logger, uid string) (Outcome, error) {
	linked, err := d.users.HasCalendarLinked(ctx, uid)
	if err != nil {
		return "", err
	}
	if !linked {
		return d.reply(ctx, uid, notConnectedText, OutcomeReplied), nil
	}

	settings, err := d.users.GetSettings(ctx, uid)
	if err != nil {
		return "", err
	}
	events, err := d.calendar.ListEventsForToday(ctx, uid, settings)
	if err != nil {
		logger.WarnContext(ctx, "calendar lookup failed", "error", err)
		return d.reply(ctx, uid, agendaFailedText, OutcomeReplied), nil
	}

	err = d.send(ctx, uid, agendaText(events))
	var failed *messaging.DeliveryFailedError
	if errors.As(err, &failed) {
		// A long agenda can be rejected outright; a short apology may still get through.
		return d.reply(ctx, uid, agendaSendFailedText, OutcomeSendFailed), nil
	}
	if err != nil {
		return OutcomeSendFailed, nil
	}
	return OutcomeReplied, nil
}

// reply sends body and maps any delivery failure onto OutcomeSendFailed.
func (d *Dispatcher) reply(ctx context.Context, uid, body string, ok Outcome) Outcome {
	if err := d.send(ctx, uid, body); err != nil {
		return OutcomeSendFailed
	}
	return ok
}

// send is the single path to the delivery client. Errors are logged here and
// returned only so callers can choose a fallback; they never reach the webhook.
func (d *Dispatcher) send(ctx context.Context, uid, body string) error {
	err := d.sender.SendText(ctx, uid, body)
	if err == nil {
		return nil
	}

	var limited *messaging.RateLimitedError
	var failed *messaging.DeliveryFailedError
	switch {
	case errors.As(err, &limited):
		d.logger.WarnContext(ctx, "send API rate limited, message dropped", "user_id", uid, "retry_after", limited.RetryAfter)
	case errors.As(err, &failed):
		d.logger.ErrorContext(ctx, "message delivery failed", "user_id", uid, "status", failed.Status, "attempts", failed.Attempts, "error", err)
	default:
		d.logger.ErrorContext(ctx, "message delivery error", "user_id", uid, "error", err)
	}
	return err
}
