package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gymops-backend/internal/db"
	"gymops-backend/internal/domain"
	"gymops-backend/internal/scope"

	"github.com/jackc/pgx/v5"
)

// SubscriptionRepository implements ports.SubscriptionStore on Postgres.
type SubscriptionRepository struct {
	DB *db.Postgres
}

func (r SubscriptionRepository) PlanByID(ctx context.Context, sc scope.Scope, id string) (*domain.Plan, error) {
	var p domain.Plan
	var price int64
	var rules []byte
	err := r.DB.Pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, duration_days, price_cents, access_rules, status, created_at, updated_at
		FROM plans
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
	`, sc.TenantID, id).Scan(
		&p.ID, &p.TenantID, &p.Name, &p.DurationDays, &price, &rules, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
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

func (r SubscriptionRepository) CreateSubscription(ctx context.Context, sc scope.Scope, s *domain.Subscription) error {
	if !sc.Owns(s.TenantID) {
		return domain.ErrNotFound
	}
	err := r.DB.Pool.QueryRow(ctx, `
		INSERT INTO subscriptions (id, tenant_id, member_id, plan_id, starts_at, ends_at, status, auto_renew)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at
	`, s.ID, s.TenantID, s.MemberID, s.PlanID, s.StartsAt, s.EndsAt, s.Status, s.AutoRenew).
		Scan(&s.CreatedAt, &s.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return domain.ErrNotFound
	}
	return err
}

func (r SubscriptionRepository) SubscriptionByID(ctx context.Context, sc scope.Scope, id string) (*domain.Subscription, error) {
	return scanSubscription(ctx, r.DB.Pool, sc, id)
}

func (r SubscriptionRepository) UpdateSubscription(ctx context.Context, sc scope.Scope, s *domain.Subscription) error {
	return updateSubscription(ctx, r.DB.Pool, sc, s)
}

func (r SubscriptionRepository) ExpireActiveBefore(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.DB.Pool.Exec(ctx, `
		UPDATE subscriptions SET status = 'expired', updated_at = now()
		WHERE status = 'active' AND ends_at <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListByMember returns a member's subscriptions, newest first.
func (r SubscriptionRepository) ListByMember(ctx context.Context, sc scope.Scope, memberID string, limit int) ([]domain.Subscription, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT id, tenant_id, member_id, plan_id, starts_at, ends_at, status, auto_renew, created_at, updated_at
		FROM subscriptions
		WHERE tenant_id = $1 AND member_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, sc.TenantID, memberID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Subscription
	for rows.Next() {
		var s domain.Subscription
		if err := rows.Scan(&s.ID, &s.TenantID, &s.MemberID, &s.PlanID, &s.StartsAt, &s.EndsAt, &s.Status, &s.AutoRenew, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func scanSubscription(ctx context.Context, q pgxQuerier, sc scope.Scope, id string) (*domain.Subscription, error) {
	var s domain.Subscription
	err := q.QueryRow(ctx, `
		SELECT id, tenant_id, member_id, plan_id, starts_at, ends_at, status, auto_renew, created_at, updated_at
		FROM subscriptions
		WHERE tenant_id = $1 AND id = $2
	`, sc.TenantID, id).Scan(
		&s.ID, &s.TenantID, &s.MemberID, &s.PlanID, &s.StartsAt, &s.EndsAt, &s.Status, &s.AutoRenew, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func updateSubscription(ctx context.Context, q pgxQuerier, sc scope.Scope, s *domain.Subscription) error {
	tag, err := q.Exec(ctx, `
		UPDATE subscriptions SET status = $3, starts_at = $4, ends_at = $5, auto_renew = $6, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
	`, sc.TenantID, s.ID, s.Status, s.StartsAt, s.EndsAt, s.AutoRenew)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
