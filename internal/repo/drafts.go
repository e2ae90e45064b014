package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"mutual/internal/domain"
)

const draftColumns = `id,owner,document_json,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraft(row rowScanner) (domain.Draft, error) {
	var d domain.Draft
	var doc string
	if err := row.Scan(&d.ID, &d.Owner, &doc, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return d, ErrNotFound
		}
		return d, err
	}
	if err := json.Unmarshal([]byte(doc), &d.CaseStudy); err != nil {
		return d, fmt.Errorf("decode draft %s: %w", d.ID, err)
	}
	return d, nil
}

// InsertDraftTx stores a new draft. The (owner, title) pair must be unused.
func (r Repo) InsertDraftTx(ctx context.Context, tx *sql.Tx, d domain.Draft) error {
	doc, err := json.Marshal(d.CaseStudy)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO drafts(id,owner,title,document_json,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		d.ID, d.Owner, d.CaseStudy.Title, string(doc), d.CreatedAt, d.UpdatedAt)
	return err
}

// UpdateDraftTx replaces the document of an existing draft and bumps updated_at.
func (r Repo) UpdateDraftTx(ctx context.Context, tx *sql.Tx, d domain.Draft) error {
	doc, err := json.Marshal(d.CaseStudy)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE drafts SET title=?, document_json=?, updated_at=? WHERE id=?`,
		d.CaseStudy.Title, string(doc), d.UpdatedAt, d.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetDraft(ctx context.Context, id string) (domain.Draft, error) {
	return scanDraft(r.DB.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM drafts WHERE id=?`, id))
}

func (r Repo) GetDraftTx(ctx context.Context, tx *sql.Tx, id string) (domain.Draft, error) {
	return scanDraft(tx.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM drafts WHERE id=?`, id))
}

// FindDraftByTitleTx looks up the draft an owner keeps under a title.
func (r Repo) FindDraftByTitleTx(ctx context.Context, tx *sql.Tx, owner, title string) (domain.Draft, error) {
	return scanDraft(tx.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM drafts WHERE owner=? AND title=?`, owner, title))
}

// ListDraftsByOwner returns the owner's drafts, most recently updated first.
func (r Repo) ListDraftsByOwner(ctx context.Context, owner string) ([]domain.Draft, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+draftColumns+` FROM drafts WHERE owner=? ORDER BY updated_at DESC, created_at DESC, id DESC`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Draft{}
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) DeleteDraftTx(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM drafts WHERE id=?`, id)
	return err
}
