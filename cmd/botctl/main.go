package main

import (
	"context"
	"fmt"
	"os"

	"agendabot-backend/internal/app"
	"agendabot-backend/internal/cli"
	"agendabot-backend/internal/config"
	"agendabot-backend/internal/logging"
)

func main() {
	root := cli.NewRootCommand(openEnv)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openEnv(ctx context.Context) (*cli.Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.Logging)

	st, err := app.OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	svc := app.NewServices(cfg, st, logger)

	return &cli.Env{
		Users:  svc.Users,
		Sender: svc.Sender,
		Close:  st.Close,
	}, nil
}
