package repo

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"mutual/internal/db"
	"mutual/internal/domain"
	"mutual/internal/events"
	"mutual/internal/migrate"
)

func setupRepo(t *testing.T) Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if _, err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return Repo{DB: conn}
}

func inTx(t *testing.T, r Repo, fn func(tx *sql.Tx) error) {
	t.Helper()
	tx, err := r.DB.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		t.Fatalf("tx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func draft(id, owner, title, updated string) domain.Draft {
	md := "body of " + title
	return domain.Draft{
		ID:    id,
		Owner: owner,
		CaseStudy: domain.CaseStudy{
			Email:            "a@b.co",
			Name:             "Ada",
			Title:            title,
			OrganizationName: "Org",
			Industry:         "Tech",
			Markdown:         &md,
			Type:             domain.StudyTypeSignal,
		},
		CreatedAt: "2026-01-01T00:00:00.000000Z",
		UpdatedAt: updated,
	}
}

func TestDraftsRoundTripAndOrdering(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	inTx(t, r, func(tx *sql.Tx) error {
		if err := r.InsertDraftTx(ctx, tx, draft("d1", "github:ada", "First", "2026-01-01T00:00:01.000000Z")); err != nil {
			return err
		}
		if err := r.InsertDraftTx(ctx, tx, draft("d2", "github:ada", "Second", "2026-01-01T00:00:02.000000Z")); err != nil {
			return err
		}
		return r.InsertDraftTx(ctx, tx, draft("d3", "github:bob", "Other", "2026-01-01T00:00:03.000000Z"))
	})

	list, err := r.ListDraftsByOwner(ctx, "github:ada")
	if err != nil {
		t.Fatalf("list drafts: %v", err)
	}
	if len(list) != 2 || list[0].ID != "d2" || list[1].ID != "d1" {
		t.Fatalf("unexpected drafts: %+v", list)
	}
	if md := list[1].CaseStudy.Markdown; md == nil || *md != "body of First" {
		t.Fatalf("markdown not round-tripped: %v", md)
	}

	updated := draft("d1", "github:ada", "First", "2026-01-01T00:00:09.000000Z")
	inTx(t, r, func(tx *sql.Tx) error { return r.UpdateDraftTx(ctx, tx, updated) })
	list, err = r.ListDraftsByOwner(ctx, "github:ada")
	if err != nil {
		t.Fatalf("list drafts: %v", err)
	}
	if list[0].ID != "d1" {
		t.Fatalf("updated draft should come first, got %s", list[0].ID)
	}

	inTx(t, r, func(tx *sql.Tx) error {
		got, err := r.FindDraftByTitleTx(ctx, tx, "github:ada", "Second")
		if err != nil {
			return err
		}
		if got.ID != "d2" {
			t.Fatalf("find by title returned %s", got.ID)
		}
		if _, err := r.FindDraftByTitleTx(ctx, tx, "github:bob", "Second"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected not found for another owner, got %v", err)
		}
		return r.DeleteDraftTx(ctx, tx, "d2")
	})
	if _, err := r.GetDraft(ctx, "d2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted draft to be gone, got %v", err)
	}

	empty, err := r.ListDraftsByOwner(ctx, "github:nobody")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected no drafts, got %+v %v", empty, err)
	}
}

func TestDuplicateOwnerTitleRejected(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	inTx(t, r, func(tx *sql.Tx) error {
		return r.InsertDraftTx(ctx, tx, draft("d1", "github:ada", "Same", "2026-01-01T00:00:01.000000Z"))
	})
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	if err := r.InsertDraftTx(ctx, tx, draft("d2", "github:ada", "Same", "2026-01-01T00:00:02.000000Z")); err == nil {
		t.Fatalf("expected a second draft with the same owner and title to fail")
	}
}

func TestPublicationLedger(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	if _, err := r.GetPublication(ctx, "k1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	rec := domain.PublicationRecord{
		IdempotencyKey: "k1",
		Owner:          "github:ada",
		Branch:         "case-study/first-k1",
		Number:         7,
		HTMLURL:        "https://github.com/o/r/pull/7",
		Title:          "First",
		CreatedAt:      "2026-01-01T00:00:01.000000Z",
	}
	inTx(t, r, func(tx *sql.Tx) error { return r.PutPublicationTx(ctx, tx, rec) })
	got, err := r.GetPublication(ctx, "k1")
	if err != nil || got.Number != 7 {
		t.Fatalf("unexpected ledger row: %+v %v", got, err)
	}

	reopened := rec
	reopened.Number = 8
	reopened.HTMLURL = "https://github.com/o/r/pull/8"
	reopened.CreatedAt = "2026-01-02T00:00:01.000000Z"
	inTx(t, r, func(tx *sql.Tx) error { return r.PutPublicationTx(ctx, tx, reopened) })
	got, err = r.GetPublication(ctx, "k1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Number != 8 || got.HTMLURL != reopened.HTMLURL {
		t.Fatalf("ledger row not replaced: %+v", got)
	}

	list, err := r.ListPublicationsByOwner(ctx, "github:ada")
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one row per key, got %+v %v", list, err)
	}
}

func TestEventQueries(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	w := events.Writer{DB: r.DB}
	inTx(t, r, func(tx *sql.Tx) error {
		if err := w.Append(ctx, tx, events.DraftSaved, "draft", "d1", "github:ada", nil); err != nil {
			return err
		}
		if err := w.Append(ctx, tx, events.CasePublished, "change_request", "", "github:ada", events.EventPayload{"number": 7}); err != nil {
			return err
		}
		return w.Append(ctx, tx, events.DraftDeleted, "draft", "d1", "github:ada", nil)
	})

	latest, err := r.LatestEventID(ctx)
	if err != nil || latest != 3 {
		t.Fatalf("latest event id = %d, %v", latest, err)
	}

	all, err := r.LatestEvents(ctx, EventFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Type != events.DraftDeleted {
		t.Fatalf("unexpected events: %+v", all)
	}

	published, err := r.LatestEvents(ctx, EventFilters{Type: events.CasePublished})
	if err != nil {
		t.Fatal(err)
	}
	if len(published) != 1 || published[0].EntityID != "" {
		t.Fatalf("unexpected published events: %+v", published)
	}
	if published[0].Payload != `{"number":7}` {
		t.Fatalf("unexpected payload: %s", published[0].Payload)
	}

	after, err := r.EventsAfter(ctx, 10, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 2 || after[0].ID != 2 {
		t.Fatalf("unexpected events after cursor: %+v", after)
	}
}
