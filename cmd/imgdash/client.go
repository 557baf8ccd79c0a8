package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aiimage/imgdash/internal/config"
	"github.com/aiimage/imgdash/internal/imageapi"
	"github.com/aiimage/imgdash/internal/logging"
	"github.com/aiimage/imgdash/internal/session"
	"github.com/aiimage/imgdash/internal/storage"
	"github.com/aiimage/imgdash/internal/views"
)

// environment is everything a command needs to talk to the backend.
type environment struct {
	cfg     config.Config
	logger  *slog.Logger
	session *session.Persistent
	client  *imageapi.Client
	app     *views.App
	closers []func() error
}

func (e *environment) Close() error {
	var errs []error
	for _, c := range e.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

var newEnvironment = func(cmd *cobra.Command) (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg, err = withAPIURL(cfg, apiURL); err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	env, err := buildEnvironment(cmd, cfg, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	env.closers = append(env.closers, store.Close)
	return env, nil
}

// withAPIURL applies the --api-url override, held to the same rules as
// api.base_url.
func withAPIURL(cfg config.Config, override string) (config.Config, error) {
	if override == "" {
		return cfg, nil
	}
	cfg.API.BaseURL = override
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("--api-url: %w", err)
	}
	return cfg, nil
}

func buildEnvironment(cmd *cobra.Command, cfg config.Config, store session.TokenStore, opts ...imageapi.Option) (*environment, error) {
	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	logger := logging.New(logging.Options{
		Level:   level,
		NoColor: noColor,
		Writer:  cmd.ErrOrStderr(),
	})

	sess, err := session.NewPersistent(store, cfg.API.BaseURL)
	if err != nil {
		return nil, err
	}

	clientOpts := []imageapi.Option{
		imageapi.WithLogger(logger),
		imageapi.WithTimeout(cfg.API.Timeout),
	}
	client := imageapi.New(cfg.API.BaseURL, sess, append(clientOpts, opts...)...)

	errOut := cmd.ErrOrStderr()
	alert := views.AlertFunc(func(msg string) { printError(errOut, "%s", msg) })

	return &environment{
		cfg:     cfg,
		logger:  logger,
		session: sess,
		client:  client,
		app:     views.NewApp(client, alert, logger),
	}, nil
}
