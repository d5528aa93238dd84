package repository

import (
	"context"
	"encoding/json"
	"errors"

	"gymops-backend/internal/db"
	"gymops-backend/internal/domain"
	"gymops-backend/internal/scope"

	"github.com/jackc/pgx/v5"
)

type PlanRepository struct {
	DB *db.Postgres
}

type CreatePlanParams struct {
	Name         string
	DurationDays int
	Price        domain.Money
	AccessRules  map[string]any
	Status       domain.PlanStatus
}

func (r PlanRepository) Create(ctx context.Context, sc scope.Scope, p CreatePlanParams) (*domain.Plan, error) {
	if p.Name == "" {
		return nil, &domain.ValidationError{Field: "name", Rule: "required"}
	}
	if p.DurationDays <= 0 {
		return nil, &domain.ValidationError{Field: "duration_days", Rule: "must be positive"}
	}
	if p.Price.IsNegative() {
		return nil, &domain.ValidationError{Field: "price", Rule: "must not be negative"}
	}
	plan := &domain.Plan{
		ID:           domain.NewID(),
		TenantID:     sc.TenantID,
		Name:         p.Name,
		DurationDays: p.DurationDays,
		Price:        p.Price,
		AccessRules:  p.AccessRules,
		Status:       p.Status,
	}
	if plan.Status == "" {
		plan.Status = domain.PlanActive
	}
	if plan.AccessRules == nil {
		plan.AccessRules = map[string]any{}
	}
	rules, err := json.Marshal(plan.AccessRules)
	if err != nil {
		return nil, err
	}
	err = r.DB.Pool.QueryRow(ctx, `
		INSERT INTO plans (id, tenant_id, name, duration_days, price_cents, access_rules, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, plan.ID, plan.TenantID, plan.Name, plan.DurationDays, plan.Price.Cents(), rules, plan.Status).
		Scan(&plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (r PlanRepository) Get(ctx context.Context, sc scope.Scope, id string) (*domain.Plan, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, duration_days, price_cents, access_rules, status, created_at, updated_at
		FROM plans
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
	`, sc.TenantID, id)
	return scanPlan(row)
}

func (r PlanRepository) List(ctx context.Context, sc scope.Scope) ([]domain.Plan, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT id, tenant_id, name, duration_days, price_cents, access_rules, status, created_at, updated_at
		FROM plans
		WHERE tenant_id = $1 AND deleted_at IS NULL
		ORDER BY name ASC
	`, sc.TenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *p)
	}
	return items, rows.Err()
}

// Retire stops a plan from being offered. Existing subscriptions keep
// running to their ends_at; only new activations are blocked.
func (r PlanRepository) Retire(ctx context.Context, sc scope.Scope, id string) error {
	tag, err := r.DB.Pool.Exec(ctx, `
		UPDATE plans SET status = $3, updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
	`, sc.TenantID, id, domain.PlanInactive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanPlan(row rowScanner) (*domain.Plan, error) {
	var p domain.Plan
	var price int64
	var rules []byte
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.DurationDays, &price, &rules, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	p.Price = domain.Money(price)
	if len(rules) > 0 {
		if err := json.Unmarshal(rules, &p.AccessRules); err != nil {
			return nil, err
		}
	}
	return &p, nil
}
