package engine

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"mutual/internal/domain"
	"mutual/internal/engine/auth"
	"mutual/internal/events"
	"mutual/internal/githubapi"
	"mutual/internal/metrics"
	"mutual/internal/repo"
	"mutual/internal/signing"
)

// Publish proposes doc as a change request against the content repository.
// Publishing the same document again returns its change request while that is
// still open; once it is closed a new one is opened.
func (e Engine) Publish(ctx context.Context, id domain.Identity, doc domain.CaseStudy) (domain.Publication, error) {
	ctx, span := otel.Tracer("mutual/engine").Start(ctx, "engine.Publish")
	defer span.End()
	timer := metrics.NewTimer()

	owner, err := auth.RequireOwner(id)
	if err != nil {
		return domain.Publication{}, err
	}
	if e.Gateway == nil {
		return domain.Publication{}, &PublishError{Kind: ErrRepositoryUnavailable, Err: errors.New("no repository configured")}
	}
	if doc.Signature != nil {
		if err := signing.Verify(doc, *doc.Signature); err != nil {
			return domain.Publication{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
		}
	}
	key, err := signing.IdempotencyKey(doc)
	if err != nil {
		return domain.Publication{}, err
	}
	sub, err := githubapi.BuildSubmission(e.Config.Repository.ContentDir, doc, key)
	if err != nil {
		return domain.Publication{}, err
	}
	span.SetAttributes(attribute.String("idempotency_key", key), attribute.String("branch", sub.Branch))
	log := e.log().With("owner", owner, "branch", sub.Branch)

	rec, err := e.Repo.GetPublication(ctx, key)
	recorded := err == nil
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return domain.Publication{}, err
	}

	// The ledger only names the branch; whether its change request is still
	// open is always asked of the repository.
	outcome := metrics.OutcomeCreated
	cr, err := e.findOpen(ctx, sub.Branch)
	switch {
	case err == nil && cr != nil && recorded && rec.Number == cr.Number:
		metrics.ObservePublish(metrics.OutcomeLedger, timer.Elapsed())
		log.Info("publish matched ledger", "number", cr.Number)
		return domain.Publication{CaseStudy: doc, ChangeRequest: *cr}, nil
	case err == nil && cr != nil:
		outcome = metrics.OutcomeExisting
	default:
		if recorded {
			log.Info("recorded change request no longer open", "number", rec.Number)
		}
		cr, outcome, err = e.create(ctx, sub)
		if err != nil {
			metrics.ObservePublish(metrics.OutcomeFailed, timer.Elapsed())
			span.RecordError(err)
			span.SetStatus(codes.Error, "publish failed")
			log.Warn("publish failed", "error", err)
			return domain.Publication{}, err
		}
	}

	if err := e.recordPublication(ctx, owner, key, sub.Branch, doc, *cr); err != nil {
		// The change request exists, so the publish still succeeds.
		log.Error("record publication", "error", err, "number", cr.Number)
	}
	e.InvalidateRegistry()
	metrics.ObservePublish(outcome, timer.Elapsed())
	span.SetAttributes(attribute.Int("number", cr.Number), attribute.String("outcome", outcome))
	log.Info("case study published", "number", cr.Number, "outcome", outcome)
	return domain.Publication{CaseStudy: doc, ChangeRequest: *cr}, nil
}

// create runs the gateway call detached from the caller's cancellation so a
// started publish is not abandoned halfway, bounded by the configured timeout.
// When the outcome is unknown the registry decides it.
func (e Engine) create(ctx context.Context, sub githubapi.Submission) (*domain.ChangeRequest, string, error) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.Config.GitHubTimeout())
	defer cancel()
	cr, err := e.Gateway.CreateChangeRequest(pctx, sub)
	if err == nil {
		return &cr, metrics.OutcomeCreated, nil
	}
	if !githubapi.Indeterminate(err) {
		return nil, "", publishError(err)
	}
	rctx, rcancel := context.WithTimeout(context.WithoutCancel(ctx), e.Config.GitHubTimeout())
	defer rcancel()
	found, lerr := e.findOpen(rctx, sub.Branch)
	if lerr == nil && found != nil {
		return found, metrics.OutcomeRecovered, nil
	}
	return nil, "", &PublishError{Kind: ErrRepositoryUnavailable, Err: err}
}

func (e Engine) findOpen(ctx context.Context, branch string) (*domain.ChangeRequest, error) {
	open, err := e.Gateway.ListOpen(ctx, branch)
	if err != nil {
		return nil, err
	}
	for _, cr := range open {
		if cr.HeadBranch == "" || cr.HeadBranch == branch {
			found := cr
			return &found, nil
		}
	}
	return nil, nil
}

func (e Engine) recordPublication(ctx context.Context, owner, key, branch string, doc domain.CaseStudy, cr domain.ChangeRequest) error {
	ctx = context.WithoutCancel(ctx)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	rec := domain.PublicationRecord{
		IdempotencyKey: key,
		Owner:          owner,
		Branch:         branch,
		Number:         cr.Number,
		HTMLURL:        cr.HTMLURL,
		Title:          cr.Title,
		AuthorLogin:    cr.AuthorLogin,
		CreatedAt:      e.stamp(),
	}
	if err := e.Repo.PutPublicationTx(ctx, tx, rec); err != nil {
		return fmt.Errorf("record publication: %w", err)
	}
	d, err := e.Repo.FindDraftByTitleTx(ctx, tx, owner, doc.Title)
	switch {
	case err == nil:
		if err := e.Repo.DeleteDraftTx(ctx, tx, d.ID); err != nil {
			return err
		}
		if err := e.Events.Append(ctx, tx, events.DraftDeleted, "draft", d.ID, owner, events.EventPayload{"title": doc.Title, "reason": "published"}); err != nil {
			return err
		}
	case !errors.Is(err, repo.ErrNotFound):
		return err
	}
	payload := events.EventPayload{
		"number":   cr.Number,
		"html_url": cr.HTMLURL,
		"title":    doc.Title,
		"branch":   branch,
		"signed":   doc.Signature != nil,
	}
	if err := e.Events.Append(ctx, tx, events.CasePublished, "change_request", fmt.Sprint(cr.Number), owner, payload); err != nil {
		return err
	}
	return tx.Commit()
}
