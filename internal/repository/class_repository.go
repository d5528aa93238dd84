package repository

import (
	"context"
	"errors"
	"time"

	"gymops-backend/internal/db"
	"gymops-backend/internal/domain"
	"gymops-backend/internal/scope"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// ClassRepository covers both the class catalog and its schedule instances.
type ClassRepository struct {
	DB *db.Postgres
}

type CreateClassParams struct {
	BranchID string
	Name     string
	Capacity int
}

func (r ClassRepository) Create(ctx context.Context, sc scope.Scope, p CreateClassParams) (*domain.GymClass, error) {
	if p.Name == "" {
		return nil, &domain.ValidationError{Field: "name", Rule: "required"}
	}
	if p.Capacity < 0 {
		return nil, &domain.ValidationError{Field: "capacity", Rule: "must not be negative"}
	}
	c := &domain.GymClass{
		ID:       domain.NewID(),
		TenantID: sc.TenantID,
		BranchID: p.BranchID,
		Name:     p.Name,
		Capacity: p.Capacity,
	}
	err := r.DB.Pool.QueryRow(ctx, `
		INSERT INTO gym_classes (id, tenant_id, branch_id, name, capacity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, c.ID, c.TenantID, c.BranchID, c.Name, c.Capacity).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r ClassRepository) Get(ctx context.Context, sc scope.Scope, id string) (*domain.GymClass, error) {
	clause, extra := branchClause(sc, "branch_id", 3)
	args := append([]any{sc.TenantID, id}, extra...)
	var c domain.GymClass
	err := r.DB.Pool.QueryRow(ctx, `
		SELECT id, tenant_id, branch_id, name, capacity, created_at, updated_at
		FROM gym_classes
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`+clause, args...).
		Scan(&c.ID, &c.TenantID, &c.BranchID, &c.Name, &c.Capacity, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r ClassRepository) List(ctx context.Context, sc scope.Scope) ([]domain.GymClass, error) {
	clause, extra := branchClause(sc, "branch_id", 2)
	args := append([]any{sc.TenantID}, extra...)
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT id, tenant_id, branch_id, name, capacity, created_at, updated_at
		FROM gym_classes
		WHERE tenant_id = $1 AND deleted_at IS NULL`+clause+`
		ORDER BY name ASC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.GymClass
	for rows.Next() {
		var c domain.GymClass
		if err := rows.Scan(&c.ID, &c.TenantID, &c.BranchID, &c.Name, &c.Capacity, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

type UpdateClassParams struct {
	Name     string
	Capacity int
}

// Update changes the catalog entry. Raising or lowering capacity never
// touches existing bookings; the new limit applies to future admissions.
func (r ClassRepository) Update(ctx context.Context, sc scope.Scope, id string, p UpdateClassParams) (*domain.GymClass, error) {
	if p.Capacity < 0 {
		return nil, &domain.ValidationError{Field: "capacity", Rule: "must not be negative"}
	}
	tag, err := r.DB.Pool.Exec(ctx, `
		UPDATE gym_classes SET name = $3, capacity = $4, updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
	`, sc.TenantID, id, p.Name, p.Capacity)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrNotFound
	}
	return r.Get(ctx, sc, id)
}

func (r ClassRepository) Archive(ctx context.Context, sc scope.Scope, id string) error {
	tag, err := r.DB.Pool.Exec(ctx, `
		UPDATE gym_classes SET deleted_at = now(), updated_at = now()
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

type CreateScheduleParams struct {
	ClassID   string
	TrainerID *string
	StartsAt  time.Time
	EndsAt    time.Time
}

func (r ClassRepository) CreateSchedule(ctx context.Context, sc scope.Scope, p CreateScheduleParams) (*domain.ClassSchedule, error) {
	if !p.EndsAt.After(p.StartsAt) {
		return nil, &domain.ValidationError{Field: "ends_at", Rule: "must be after starts_at"}
	}
	// The class must exist in this tenant before the insert; the FK alone
	// would admit a class id from another tenant.
	if _, err := r.Get(ctx, sc, p.ClassID); err != nil {
		return nil, err
	}
	s := &domain.ClassSchedule{
		ID:        domain.NewID(),
		TenantID:  sc.TenantID,
		ClassID:   p.ClassID,
		TrainerID: p.TrainerID,
		StartsAt:  p.StartsAt,
		EndsAt:    p.EndsAt,
	}
	err := r.DB.Pool.QueryRow(ctx, `
		INSERT INTO class_schedules (id, tenant_id, class_id, trainer_id, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, s.ID, s.TenantID, s.ClassID, s.TrainerID, s.StartsAt, s.EndsAt).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r ClassRepository) GetSchedule(ctx context.Context, sc scope.Scope, id string) (*domain.ClassSchedule, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		SELECT id, tenant_id, class_id, trainer_id, starts_at, ends_at, created_at, updated_at
		FROM class_schedules
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
	`, sc.TenantID, id)
	return scanSchedule(row)
}

// ListSchedules returns a class's upcoming schedules, soonest first.
func (r ClassRepository) ListSchedules(ctx context.Context, sc scope.Scope, classID string, from time.Time, limit int) ([]domain.ClassSchedule, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT id, tenant_id, class_id, trainer_id, starts_at, ends_at, created_at, updated_at
		FROM class_schedules
		WHERE tenant_id = $1 AND class_id = $2 AND starts_at >= $3 AND deleted_at IS NULL
		ORDER BY starts_at ASC
		LIMIT $4
	`, sc.TenantID, classID, from, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.ClassSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *s)
	}
	return items, rows.Err()
}

func (r ClassRepository) CancelSchedule(ctx context.Context, sc scope.Scope, id string) error {
	tag, err := r.DB.Pool.Exec(ctx, `
		UPDATE class_schedules SET deleted_at = now(), updated_at = now()
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

func scanSchedule(row rowScanner) (*domain.ClassSchedule, error) {
	var s domain.ClassSchedule
	var trainer pgtype.Text
	err := row.Scan(&s.ID, &s.TenantID, &s.ClassID, &trainer, &s.StartsAt, &s.EndsAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if trainer.Valid {
		s.TrainerID = &trainer.String
	}
	return &s, nil
}
