package repository

import (
	"context"
	"errors"

	"gymops-backend/internal/db"
	"gymops-backend/internal/domain"
	"gymops-backend/internal/scope"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type BranchRepository struct {
	DB *db.Postgres
}

func (r BranchRepository) Create(ctx context.Context, sc scope.Scope, name string) (*domain.Branch, error) {
	b := &domain.Branch{
		ID:       domain.NewID(),
		TenantID: sc.TenantID,
		Name:     name,
	}
	err := r.DB.Pool.QueryRow(ctx, `
		INSERT INTO branches (id, tenant_id, name)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`, b.ID, b.TenantID, b.Name).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r BranchRepository) Get(ctx context.Context, sc scope.Scope, id string) (*domain.Branch, error) {
	var b domain.Branch
	var deleted pgtype.Timestamptz
	err := r.DB.Pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, created_at, updated_at, deleted_at
		FROM branches
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
	`, sc.TenantID, id).Scan(&b.ID, &b.TenantID, &b.Name, &b.CreatedAt, &b.UpdatedAt, &deleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if deleted.Valid {
		b.DeletedAt = &deleted.Time
	}
	return &b, nil
}

func (r BranchRepository) List(ctx context.Context, sc scope.Scope) ([]domain.Branch, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT id, tenant_id, name, created_at, updated_at
		FROM branches
		WHERE tenant_id = $1 AND deleted_at IS NULL
		ORDER BY name ASC
	`, sc.TenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.Branch
	for rows.Next() {
		var b domain.Branch
		if err := rows.Scan(&b.ID, &b.TenantID, &b.Name, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r BranchRepository) Rename(ctx context.Context, sc scope.Scope, id, name string) (*domain.Branch, error) {
	tag, err := r.DB.Pool.Exec(ctx, `
		UPDATE branches SET name = $3, updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
	`, sc.TenantID, id, name)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrNotFound
	}
	return r.Get(ctx, sc, id)
}

// Archive soft-deletes the branch. Members, classes and financial rows keep
// their references; reads simply stop resolving the branch.
func (r BranchRepository) Archive(ctx context.Context, sc scope.Scope, id string) error {
	tag, err := r.DB.Pool.Exec(ctx, `
		UPDATE branches SET deleted_at = now(), updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
	`, sc.TenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
