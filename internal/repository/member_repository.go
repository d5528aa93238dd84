package repository

import (
	"context"
	"errors"
	"strconv"

	"gymops-backend/internal/db"
	"gymops-backend/internal/domain"
	"gymops-backend/internal/scope"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type MemberRepository struct {
	DB *db.Postgres
}

// branchClause appends the optional branch restriction. BranchScope only
// ever narrows within the tenant; it never replaces the tenant match.
func branchClause(sc scope.Scope, column string, argn int) (string, []any) {
	if !sc.BranchBound() {
		return "", nil
	}
	return " AND " + column + " = $" + strconv.Itoa(argn), []any{*sc.BranchID}
}

type CreateMemberParams struct {
	BranchID  string
	Code      string
	FullName  string
	Status    domain.MemberStatus
	Emergency *domain.EmergencyContact
}

func (r MemberRepository) Create(ctx context.Context, sc scope.Scope, p CreateMemberParams) (*domain.Member, error) {
	m := &domain.Member{
		ID:        domain.NewID(),
		TenantID:  sc.TenantID,
		BranchID:  p.BranchID,
		Code:      p.Code,
		FullName:  p.FullName,
		Status:    p.Status,
		Emergency: p.Emergency,
	}
	if m.Status == "" {
		m.Status = domain.MemberProspect
	}
	var en, ep, er *string
	if p.Emergency != nil {
		en, ep, er = &p.Emergency.Name, &p.Emergency.Phone, &p.Emergency.Relation
	}
	err := r.DB.Pool.QueryRow(ctx, `
		INSERT INTO members (id, tenant_id, branch_id, code, full_name, status, emergency_name, emergency_phone, emergency_relation)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at
	`, m.ID, m.TenantID, m.BranchID, m.Code, m.FullName, m.Status, en, ep, er).
		Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, &domain.ValidationError{Field: "code", Rule: "must be unique per tenant"}
		}
		if db.IsForeignKeyViolation(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r MemberRepository) Get(ctx context.Context, sc scope.Scope, id string) (*domain.Member, error) {
	clause, extra := branchClause(sc, "branch_id", 3)
	args := append([]any{sc.TenantID, id}, extra...)
	row := r.DB.Pool.QueryRow(ctx, `
		SELECT id, tenant_id, branch_id, code, full_name, status,
		       emergency_name, emergency_phone, emergency_relation,
		       created_at, updated_at, deleted_at
		FROM members
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`+clause, args...)
	return scanMember(row)
}

func (r MemberRepository) List(ctx context.Context, sc scope.Scope, limit int) ([]domain.Member, error) {
	clause, extra := branchClause(sc, "branch_id", 2)
	args := append([]any{sc.TenantID}, extra...)
	args = append(args, limit)
	limitN := len(args)
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT id, tenant_id, branch_id, code, full_name, status,
		       emergency_name, emergency_phone, emergency_relation,
		       created_at, updated_at, deleted_at
		FROM members
		WHERE tenant_id = $1 AND deleted_at IS NULL`+clause+`
		ORDER BY full_name ASC
		LIMIT $`+strconv.Itoa(limitN), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *m)
	}
	return items, rows.Err()
}

type UpdateMemberParams struct {
	FullName  string
	Status    domain.MemberStatus
	Emergency *domain.EmergencyContact
}

func (r MemberRepository) Update(ctx context.Context, sc scope.Scope, id string, p UpdateMemberParams) (*domain.Member, error) {
	var en, ep, er *string
	if p.Emergency != nil {
		en, ep, er = &p.Emergency.Name, &p.Emergency.Phone, &p.Emergency.Relation
	}
	tag, err := r.DB.Pool.Exec(ctx, `
		UPDATE members
		SET full_name = $3, status = $4, emergency_name = $5, emergency_phone = $6, emergency_relation = $7, updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
	`, sc.TenantID, id, p.FullName, p.Status, en, ep, er)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrNotFound
	}
	return r.Get(ctx, sc, id)
}

// Archive soft-deletes the member. Financial history is protected: the
// archive is rejected while the member still owes on issued invoices.
func (r MemberRepository) Archive(ctx context.Context, sc scope.Scope, id string) error {
	tx, err := r.DB.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var open bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM invoices
			WHERE tenant_id = $1 AND member_id = $2 AND status IN ('draft', 'issued') AND deleted_at IS NULL
		)
	`, sc.TenantID, id).Scan(&open)
	if err != nil {
		return err
	}
	if open {
		return &domain.ValidationError{Field: "member", Rule: "has open invoices"}
	}

	tag, err := tx.Exec(ctx, `
		UPDATE members SET deleted_at = now(), updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
	`, sc.TenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return tx.Commit(ctx)
}

// Restore clears the tombstone.
func (r MemberRepository) Restore(ctx context.Context, sc scope.Scope, id string) error {
	tag, err := r.DB.Pool.Exec(ctx, `
		UPDATE members SET deleted_at = NULL, updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NOT NULL
	`, sc.TenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (*domain.Member, error) {
	var m domain.Member
	var en, ep, er pgtype.Text
	var deleted pgtype.Timestamptz
	err := row.Scan(
		&m.ID, &m.TenantID, &m.BranchID, &m.Code, &m.FullName, &m.Status,
		&en, &ep, &er, &m.CreatedAt, &m.UpdatedAt, &deleted,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if en.Valid || ep.Valid || er.Valid {
		m.Emergency = &domain.EmergencyContact{Name: en.String, Phone: ep.String, Relation: er.String}
	}
	if deleted.Valid {
		m.DeletedAt = &deleted.Time
	}
	return &m, nil
}
