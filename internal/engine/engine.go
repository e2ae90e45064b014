package engine

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"mutual/internal/config"
	"mutual/internal/domain"
	"mutual/internal/events"
	"mutual/internal/githubapi"
	"mutual/internal/logger"
	"mutual/internal/repo"
)

// Gateway is the content repository the engine proposes case studies to.
type Gateway interface {
	CreateChangeRequest(ctx context.Context, sub githubapi.Submission) (domain.ChangeRequest, error)
	ListOpen(ctx context.Context, head string) ([]domain.ChangeRequest, error)
}

// Engine runs the submission pipeline. Cache is nil unless registry listings
// are cached.
type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Config  *config.Config
	Gateway Gateway
	Logger  *slog.Logger
	Cache   *gocache.Cache
	Now     func() time.Time
}

func New(db *sql.DB, cfg *config.Config, gw Gateway) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	e := Engine{
		DB:      db,
		Repo:    repo.Repo{DB: db},
		Events:  events.Writer{DB: db},
		Config:  cfg,
		Gateway: gw,
		Logger:  logger.Default(),
		Now:     time.Now,
	}
	if ttl := cfg.RegistryCacheTTL(); ttl > 0 {
		e.Cache = gocache.New(ttl, 2*ttl)
	}
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(repo.TimeLayout)
}

func (e Engine) log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return logger.Default()
}
