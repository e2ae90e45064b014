package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"mutual/internal/domain"
	"mutual/internal/engine/auth"
	"mutual/internal/events"
	"mutual/internal/metrics"
	"mutual/internal/repo"
	"mutual/internal/validator"
)

// SaveDraft stores doc for the identity, replacing the owner's draft with the
// same title if there is one.
func (e Engine) SaveDraft(ctx context.Context, id domain.Identity, doc domain.CaseStudy) (domain.Draft, error) {
	owner, err := auth.RequireOwner(id)
	if err != nil {
		return domain.Draft{}, err
	}
	if err := validator.Revalidate(doc); err != nil {
		return domain.Draft{}, err
	}
	d, created, err := e.saveDraft(ctx, owner, doc)
	if err != nil {
		metrics.DraftSavesTotal.WithLabelValues("failed").Inc()
		return domain.Draft{}, err
	}
	if created {
		metrics.DraftSavesTotal.WithLabelValues("created").Inc()
	} else {
		metrics.DraftSavesTotal.WithLabelValues("updated").Inc()
	}
	return d, nil
}

func (e Engine) saveDraft(ctx context.Context, owner string, doc domain.CaseStudy) (domain.Draft, bool, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Draft{}, false, err
	}
	defer tx.Rollback()

	now := e.stamp()
	d, err := e.Repo.FindDraftByTitleTx(ctx, tx, owner, doc.Title)
	created := errors.Is(err, repo.ErrNotFound)
	switch {
	case created:
		d = domain.Draft{
			ID:        uuid.NewString(),
			Owner:     owner,
			CaseStudy: doc,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := e.Repo.InsertDraftTx(ctx, tx, d); err != nil {
			return domain.Draft{}, false, fmt.Errorf("insert draft: %w", err)
		}
	case err != nil:
		return domain.Draft{}, false, err
	default:
		d.CaseStudy = doc
		d.UpdatedAt = now
		if err := e.Repo.UpdateDraftTx(ctx, tx, d); err != nil {
			return domain.Draft{}, false, fmt.Errorf("update draft: %w", err)
		}
	}
	if err := e.Events.Append(ctx, tx, events.DraftSaved, "draft", d.ID, owner, events.EventPayload{"title": doc.Title, "created": created}); err != nil {
		return domain.Draft{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Draft{}, false, err
	}
	return d, created, nil
}

// ListDrafts returns the identity's drafts, most recently updated first.
func (e Engine) ListDrafts(ctx context.Context, id domain.Identity) ([]domain.Draft, error) {
	owner, err := auth.RequireOwner(id)
	if err != nil {
		return nil, err
	}
	return e.Repo.ListDraftsByOwner(ctx, owner)
}

// GetDraft loads one of the identity's drafts.
func (e Engine) GetDraft(ctx context.Context, draftID string, id domain.Identity) (domain.Draft, error) {
	owner, err := auth.RequireOwner(id)
	if err != nil {
		return domain.Draft{}, err
	}
	d, err := e.Repo.GetDraft(ctx, draftID)
	if err != nil {
		return domain.Draft{}, err
	}
	if err := auth.EnsureOwns(owner, d); err != nil {
		return domain.Draft{}, err
	}
	return d, nil
}

// DeleteDraft removes a draft. Deleting a draft that does not exist succeeds.
func (e Engine) DeleteDraft(ctx context.Context, draftID string, id domain.Identity) error {
	owner, err := auth.RequireOwner(id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	d, err := e.Repo.GetDraftTx(ctx, tx, draftID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := auth.EnsureOwns(owner, d); err != nil {
		return err
	}
	if err := e.Repo.DeleteDraftTx(ctx, tx, draftID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.DraftDeleted, "draft", draftID, owner, events.EventPayload{"title": d.CaseStudy.Title}); err != nil {
		return err
	}
	return tx.Commit()
}
