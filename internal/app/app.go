// Package app wires configuration into the running services and HTTP routes.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"agendabot-backend/internal/calendar"
	"agendabot-backend/internal/config"
	"agendabot-backend/internal/database"
	"agendabot-backend/internal/dispatcher"
	"agendabot-backend/internal/handlers"
	"agendabot-backend/internal/messaging"
	"agendabot-backend/internal/metrics"
	customMiddleware "agendabot-backend/internal/middleware"
	"agendabot-backend/internal/notify"
	"agendabot-backend/internal/onboarding"
	"agendabot-backend/internal/repository"
	"agendabot-backend/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OpenStore opens the backend selected by cfg.Backend.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemory(), nil
	case "sqlite":
		return store.NewSQLite(cfg.SQLitePath)
	case "mongo":
		db, err := database.Connect(ctx, cfg.MongoURI, cfg.DBName)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		return store.NewMongo(db), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// Services holds every long-lived component built from config.
type Services struct {
	Store      store.Store
	Users      *repository.UserRepo
	States     *repository.OnboardingRepo
	SendLog    *repository.SendLogRepo
	Links      *repository.CalendarLinkRepo
	Sender     *messaging.Client
	OAuth      *calendar.OAuth
	Lookup     *calendar.Lookup
	Onboarding *onboarding.Machine
	Dispatcher *dispatcher.Dispatcher
	Callbacks  *handlers.OAuthHandler
	Metrics    *metrics.Metrics
	Registry   *prometheus.Registry
}

// NewServices builds the service graph on top of an opened store.
func NewServices(cfg config.Config, st store.Store, logger *slog.Logger) *Services {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	users := repository.NewUserRepo(st, cfg.DefaultTimezone)
	states := repository.NewOnboardingRepo(st)
	sendLog := repository.NewSendLogRepo(st)
	links := repository.NewCalendarLinkRepo(st)

	sender := messaging.NewClient(messaging.Options{
		APIURL:  cfg.Messaging.APIURL,
		APIKey:  cfg.Messaging.APIKey,
		Timeout: cfg.Messaging.SendTimeout,
		Metrics: m,
		Logger:  logger,
	})

	oauth := calendar.NewOAuth(calendar.OAuthConfig{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
		StateSecret:  cfg.Google.StateSecret,
		Logger:       logger,
	}, links)
	lookup := calendar.NewLookup(oauth, links, logger)

	notifier := notify.New(cfg.Mail.ResendAPIKey, cfg.Mail.FromEmail, logger)
	machine := onboarding.New(states, users, notifier, logger)

	d := dispatcher.New(dispatcher.Deps{
		Users:       users,
		Onboarding:  machine,
		SendLog:     sendLog,
		Sender:      sender,
		Auth:        oauth,
		Calendar:    lookup,
		MinInterval: cfg.Messaging.MinSendInterval,
		Metrics:     m,
		Logger:      logger,
	})

	return &Services{
		Store:      st,
		Users:      users,
		States:     states,
		SendLog:    sendLog,
		Links:      links,
		Sender:     sender,
		OAuth:      oauth,
		Lookup:     lookup,
		Onboarding: machine,
		Dispatcher: d,
		Callbacks:  handlers.NewOAuthHandler(oauth, sender, sendLog, logger),
		Metrics:    m,
		Registry:   reg,
	}
}

// NewRouter mounts the public routes.
func NewRouter(cfg config.Config, svc *Services, logger *slog.Logger) http.Handler {
	webhookHandler := handlers.NewWebhookHandler(svc.Dispatcher, cfg.Messaging.VerifyToken, logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	origins := cfg.HTTP.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Hub-Signature-256", "X-Webhook-Signature"},
		MaxAge:         300,
	}))

	r.Get("/health", handlers.Health(svc.Store, logger))
	r.Handle("/metrics", promhttp.HandlerFor(svc.Registry, promhttp.HandlerOpts{}))

	// Chat gateway
	r.Get("/webhook", webhookHandler.Verify)
	r.With(customMiddleware.WebhookSignature(
		cfg.Messaging.WebhookSecret,
		cfg.Messaging.SignatureRequired,
		logger,
	)).Post("/webhook", webhookHandler.Receive)

	// Google redirects the browser here after consent
	r.Get("/oauth/google/callback", svc.Callbacks.Callback)

	return r
}
