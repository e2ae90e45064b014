package engine

import (
	"context"
	"fmt"
	"strings"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"mutual/internal/domain"
	"mutual/internal/metrics"
)

const openCacheKey = "open"

// ListOpen returns every open change request. An empty list is not an error.
func (e Engine) ListOpen(ctx context.Context) ([]domain.ChangeRequest, error) {
	ctx, span := otel.Tracer("mutual/engine").Start(ctx, "engine.ListOpen")
	defer span.End()

	if e.Cache != nil {
		if cached, ok := e.Cache.Get(openCacheKey); ok {
			metrics.RegistryFetchTotal.WithLabelValues("cache_hit").Inc()
			return append([]domain.ChangeRequest(nil), cached.([]domain.ChangeRequest)...), nil
		}
	}
	if e.Gateway == nil {
		metrics.RegistryFetchTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: no repository configured", ErrRegistryUnavailable)
	}
	open, err := e.Gateway.ListOpen(ctx, "")
	if err != nil {
		metrics.RegistryFetchTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "registry unavailable")
		e.log().Warn("list open change requests", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrRegistryUnavailable, err)
	}
	if open == nil {
		open = []domain.ChangeRequest{}
	}
	metrics.RegistryFetchTotal.WithLabelValues("ok").Inc()
	if e.Cache != nil {
		e.Cache.Set(openCacheKey, open, gocache.DefaultExpiration)
	}
	return append([]domain.ChangeRequest{}, open...), nil
}

// ListOpenByAuthor returns open change requests opened by login, compared
// case-insensitively.
func (e Engine) ListOpenByAuthor(ctx context.Context, login string) ([]domain.ChangeRequest, error) {
	open, err := e.ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	res := []domain.ChangeRequest{}
	for _, cr := range open {
		if strings.EqualFold(cr.AuthorLogin, login) {
			res = append(res, cr)
		}
	}
	return res, nil
}

// InvalidateRegistry drops cached listings, e.g. after a publish.
func (e Engine) InvalidateRegistry() {
	if e.Cache != nil {
		e.Cache.Delete(openCacheKey)
	}
}
