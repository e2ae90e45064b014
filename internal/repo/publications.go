package repo

import (
	"context"
	"database/sql"

	"mutual/internal/domain"
)

// GetPublication returns the ledger row recorded for an idempotency key.
func (r Repo) GetPublication(ctx context.Context, key string) (domain.PublicationRecord, error) {
	var p domain.PublicationRecord
	err := r.DB.QueryRowContext(ctx, `SELECT idempotency_key,owner,branch,number,html_url,title,author_login,created_at FROM publications WHERE idempotency_key=?`, key).
		Scan(&p.IdempotencyKey, &p.Owner, &p.Branch, &p.Number, &p.HTMLURL, &p.Title, &p.AuthorLogin, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

// PutPublicationTx records a publication. A later publication of the same key
// replaces the row, since the earlier change request was closed.
func (r Repo) PutPublicationTx(ctx context.Context, tx *sql.Tx, p domain.PublicationRecord) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO publications(idempotency_key,owner,branch,number,html_url,title,author_login,created_at) VALUES (?,?,?,?,?,?,?,?) ON CONFLICT(idempotency_key) DO UPDATE SET owner=excluded.owner,branch=excluded.branch,number=excluded.number,html_url=excluded.html_url,title=excluded.title,author_login=excluded.author_login,created_at=excluded.created_at`,
		p.IdempotencyKey, p.Owner, p.Branch, p.Number, p.HTMLURL, p.Title, p.AuthorLogin, p.CreatedAt)
	return err
}

// ListPublicationsByOwner returns the owner's ledger rows, newest first.
func (r Repo) ListPublicationsByOwner(ctx context.Context, owner string) ([]domain.PublicationRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT idempotency_key,owner,branch,number,html_url,title,author_login,created_at FROM publications WHERE owner=? ORDER BY created_at DESC`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PublicationRecord
	for rows.Next() {
		var p domain.PublicationRecord
		if err := rows.Scan(&p.IdempotencyKey, &p.Owner, &p.Branch, &p.Number, &p.HTMLURL, &p.Title, &p.AuthorLogin, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
