package repository

import (
	"context"
	"errors"
	"time"

	"gymops-backend/internal/db"
	"gymops-backend/internal/domain"
	"gymops-backend/internal/ports"
	"gymops-backend/internal/scope"

	"github.com/jackc/pgx/v5"
)

// LedgerRepository implements ports.LedgerStore on Postgres. Totals are
// validated in the domain before they get here; the table CHECK constraints
// reject anything that slips through, and that rejection is surfaced as an
// internal fault, never swallowed.
type LedgerRepository struct {
	DB *db.Postgres
}

func (r LedgerRepository) CreateInvoice(ctx context.Context, sc scope.Scope, inv *domain.Invoice) error {
	if err := inv.Validate(); err != nil {
		return err
	}
	if !sc.Owns(inv.TenantID) {
		return domain.ErrNotFound
	}
	tx, err := r.DB.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO invoices
		(id, tenant_id, member_id, number, status, subtotal_cents, discount_cents, tax_cents, total_cents, issued_at, due_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at
	`, inv.ID, inv.TenantID, inv.MemberID, inv.Number, inv.Status,
		inv.Subtotal.Cents(), inv.Discount.Cents(), inv.Tax.Cents(), inv.Total.Cents(),
		inv.IssuedAt, inv.DueAt).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return err
	}

	for i := range inv.Items {
		it := &inv.Items[i]
		err = tx.QueryRow(ctx, `
			INSERT INTO invoice_items
			(id, tenant_id, invoice_id, item_type, ref_id, qty, unit_price_cents, line_total_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			RETURNING created_at
		`, it.ID, inv.TenantID, inv.ID, it.ItemType, it.RefID, it.Qty,
			it.UnitPrice.Cents(), it.LineTotal.Cents()).Scan(&it.CreatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r LedgerRepository) InvoiceByID(ctx context.Context, sc scope.Scope, id string) (*domain.Invoice, error) {
	var inv domain.Invoice
	var subtotal, discount, tax, total int64
	err := r.DB.Pool.QueryRow(ctx, `
		SELECT id, tenant_id, member_id, number, status,
		       subtotal_cents, discount_cents, tax_cents, total_cents,
		       issued_at, due_at, created_at, updated_at
		FROM invoices
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
	`, sc.TenantID, id).Scan(
		&inv.ID, &inv.TenantID, &inv.MemberID, &inv.Number, &inv.Status,
		&subtotal, &discount, &tax, &total,
		&inv.IssuedAt, &inv.DueAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	inv.Subtotal = domain.Money(subtotal)
	inv.Discount = domain.Money(discount)
	inv.Tax = domain.Money(tax)
	inv.Total = domain.Money(total)

	rows, err := r.DB.Pool.Query(ctx, `
		SELECT id, tenant_id, invoice_id, item_type, ref_id, qty, unit_price_cents, line_total_cents, created_at
		FROM invoice_items
		WHERE invoice_id = $1 AND deleted_at IS NULL
		ORDER BY id
	`, inv.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.InvoiceItem
		var unit, line int64
		if err := rows.Scan(&it.ID, &it.TenantID, &it.InvoiceID, &it.ItemType, &it.RefID, &it.Qty, &unit, &line, &it.CreatedAt); err != nil {
			return nil, err
		}
		it.UnitPrice = domain.Money(unit)
		it.LineTotal = domain.Money(line)
		inv.Items = append(inv.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r LedgerRepository) UpdateInvoice(ctx context.Context, sc scope.Scope, inv *domain.Invoice) error {
	if err := inv.Validate(); err != nil {
		return err
	}
	tag, err := r.DB.Pool.Exec(ctx, `
		UPDATE invoices
		SET status = $3, subtotal_cents = $4, discount_cents = $5, tax_cents = $6,
		    total_cents = $7, issued_at = $8, due_at = $9, updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
	`, sc.TenantID, inv.ID, inv.Status,
		inv.Subtotal.Cents(), inv.Discount.Cents(), inv.Tax.Cents(), inv.Total.Cents(),
		inv.IssuedAt, inv.DueAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r LedgerRepository) CreatePayment(ctx context.Context, sc scope.Scope, p *domain.Payment) error {
	if !sc.Owns(p.TenantID) {
		return domain.ErrNotFound
	}
	err := r.DB.Pool.QueryRow(ctx, `
		INSERT INTO payments
		(id, tenant_id, invoice_id, subscription_id, member_id, method, amount_cents, status, paid_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at
	`, p.ID, p.TenantID, p.InvoiceID, p.SubscriptionID, p.MemberID, p.Method,
		p.Amount.Cents(), p.Status, p.PaidAt).Scan(&p.CreatedAt, &p.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return domain.ErrNotFound
	}
	return err
}

func (r LedgerRepository) PaymentByID(ctx context.Context, sc scope.Scope, id string) (*domain.Payment, error) {
	return scanPayment(ctx, r.DB.Pool, sc, id)
}

func (r LedgerRepository) MarkPaymentSucceeded(ctx context.Context, sc scope.Scope, paymentID string, paidAt time.Time, after func(ctx context.Context, mut ports.SubscriptionMutator, p *domain.Payment) error) (*domain.Payment, bool, error) {
	tx, err := r.DB.Pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	// One-shot guard: the UPDATE fires only when the previous status was
	// not succeeded. Zero rows affected means either a lost row or a
	// transition that already happened; disambiguate with a read.
	tag, err := tx.Exec(ctx, `
		UPDATE payments SET status = 'succeeded', paid_at = $3, updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND status NOT IN ('succeeded', 'refunded')
	`, sc.TenantID, paymentID, paidAt)
	if err != nil {
		return nil, false, err
	}

	p, err := scanPayment(ctx, tx, sc, paymentID)
	if err != nil {
		return nil, false, err
	}
	if tag.RowsAffected() == 0 {
		if p.Status == domain.PaymentSucceeded {
			return p, false, nil
		}
		return nil, false, domain.ErrInvalidTransition
	}

	if after != nil {
		if err := after(ctx, subscriptionMutator{q: tx, scope: sc}, p); err != nil {
			return nil, false, err
		}
	}

	if err := r.settleInvoice(ctx, tx, sc, p); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// settleInvoice flips a referenced invoice to paid once succeeded payments
// cover its total.
func (r LedgerRepository) settleInvoice(ctx context.Context, q pgxQuerier, sc scope.Scope, p *domain.Payment) error {
	if p.InvoiceID == nil {
		return nil
	}
	_, err := q.Exec(ctx, `
		UPDATE invoices i SET status = 'paid', updated_at = now()
		WHERE i.tenant_id = $1 AND i.id = $2
		  AND i.status NOT IN ('paid', 'void')
		  AND i.total_cents <= (
			SELECT COALESCE(SUM(amount_cents), 0) FROM payments
			WHERE tenant_id = $1 AND invoice_id = $2 AND status = 'succeeded'
		  )
	`, sc.TenantID, *p.InvoiceID)
	return err
}

func (r LedgerRepository) CreateRefund(ctx context.Context, sc scope.Scope, refund *domain.Refund, paymentFullyRefunded bool) error {
	tx, err := r.DB.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := scanPayment(ctx, tx, sc, refund.PaymentID); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO refunds (id, tenant_id, payment_id, amount_cents, reason, refunded_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, refund.ID, refund.TenantID, refund.PaymentID, refund.Amount.Cents(), refund.Reason, refund.RefundedAt)
	if err != nil {
		return err
	}
	if paymentFullyRefunded {
		_, err = tx.Exec(ctx, `
			UPDATE payments SET status = 'refunded', updated_at = now()
			WHERE tenant_id = $1 AND id = $2
		`, sc.TenantID, refund.PaymentID)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r LedgerRepository) RefundedTotal(ctx context.Context, sc scope.Scope, paymentID string) (domain.Money, error) {
	var total int64
	err := r.DB.Pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM refunds
		WHERE tenant_id = $1 AND payment_id = $2
	`, sc.TenantID, paymentID).Scan(&total)
	return domain.Money(total), err
}

func (r LedgerRepository) BalanceDue(ctx context.Context, sc scope.Scope, memberID string) (domain.Money, error) {
	var due int64
	err := r.DB.Pool.QueryRow(ctx, `
		SELECT COALESCE((
			SELECT SUM(total_cents) FROM invoices
			WHERE tenant_id = $1 AND member_id = $2 AND status <> 'void' AND deleted_at IS NULL
		), 0) - COALESCE((
			SELECT SUM(amount_cents) FROM payments
			WHERE tenant_id = $1 AND member_id = $2 AND status = 'succeeded'
		), 0)
	`, sc.TenantID, memberID).Scan(&due)
	return domain.Money(due), err
}

func scanPayment(ctx context.Context, q pgxQuerier, sc scope.Scope, id string) (*domain.Payment, error) {
	var p domain.Payment
	var amount int64
	err := q.QueryRow(ctx, `
		SELECT id, tenant_id, invoice_id, subscription_id, member_id, method,
		       amount_cents, status, paid_at, created_at, updated_at
		FROM payments
		WHERE tenant_id = $1 AND id = $2
	`, sc.TenantID, id).Scan(
		&p.ID, &p.TenantID, &p.InvoiceID, &p.SubscriptionID, &p.MemberID, &p.Method,
		&amount, &p.Status, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	p.Amount = domain.Money(amount)
	return &p, nil
}

// subscriptionMutator gives the payment-success trigger a transaction-bound
// view of subscriptions.
type subscriptionMutator struct {
	q     pgxQuerier
	scope scope.Scope
}

func (m subscriptionMutator) SubscriptionByID(ctx context.Context, id string) (*domain.Subscription, error) {
	return scanSubscription(ctx, m.q, m.scope, id)
}

func (m subscriptionMutator) UpdateSubscription(ctx context.Context, s *domain.Subscription) error {
	return updateSubscription(ctx, m.q, m.scope, s)
}
