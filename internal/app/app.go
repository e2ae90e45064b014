// Package app opens a workspace: config, logger, database, repository gateway
// and the engine built on them.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"mutual/internal/config"
	"mutual/internal/db"
	"mutual/internal/engine"
	"mutual/internal/githubapi"
	"mutual/internal/logger"
	"mutual/internal/migrate"
)

// Options select the workspace and the secrets that never live in mutual.yml.
type Options struct {
	Workspace   string
	ConfigPath  string
	GitHubToken string
	LogOutput   io.Writer
}

type App struct {
	DB     *sql.DB
	Config *config.Config
	Engine engine.Engine
}

// Open prepares the workspace, applies pending migrations and wires the
// engine to the configured content repository.
func Open(ctx context.Context, opts Options) (*App, error) {
	cfg, err := LoadConfig(opts.Workspace, opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	log := logger.New(out, cfg.Logging.Level, cfg.Logging.Format)
	logger.SetLogger(log)

	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, err
	}
	applied, err := migrate.Migrate(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	for _, name := range applied {
		log.Debug("applied migration", "name", name)
	}
	gw, err := NewGateway(cfg, opts.GitHubToken)
	if err != nil {
		conn.Close()
		return nil, err
	}
	e := engine.New(conn, cfg, gw)
	e.Logger = log
	return &App{DB: conn, Config: cfg, Engine: e}, nil
}

// LoadConfig reads an explicit config file, or the workspace's mutual.yml
// falling back to defaults.
func LoadConfig(workspace, path string) (*config.Config, error) {
	if strings.TrimSpace(path) != "" {
		return config.FromFile(path)
	}
	return config.LoadOptional(workspace)
}

// NewGateway builds the GitHub client for the configured repository. Without
// a token only public reads succeed.
func NewGateway(cfg *config.Config, token string) (*githubapi.Client, error) {
	return githubapi.New(githubapi.Config{
		Owner:      cfg.Repository.Owner,
		Repo:       cfg.Repository.Name,
		BaseBranch: cfg.Repository.BaseBranch,
		Token:      token,
		APIURL:     cfg.GitHub.APIURL,
	})
}

func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
