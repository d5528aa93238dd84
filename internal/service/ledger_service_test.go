package service

import (
	"context"
	"testing"
	"time"

	"gymops-backend/internal/domain"
	"gymops-backend/internal/events"
	"gymops-backend/internal/memstore"
	"gymops-backend/internal/scope"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedgerFixture() (LedgerService, *memstore.Store) {
	store := memstore.New()
	store.PutMember(&domain.Member{ID: "member1", TenantID: "t1", BranchID: "b1", Code: "M-001", FullName: "Dana Cole", Status: domain.MemberActive})
	svc := LedgerService{
		Store:  store,
		Events: events.LogPublisher{Logger: testLogger()},
		Logger: testLogger(),
	}
	return svc, store
}

func planInvoiceInput() CreateInvoiceInput {
	return CreateInvoiceInput{
		MemberID: "member1",
		Discount: domain.Money(500),
		Tax:      domain.Money(760),
		Items: []InvoiceItemInput{
			{ItemType: domain.ItemPlan, Qty: 2, UnitPrice: domain.Money(2500)},
			{ItemType: domain.ItemFee, Qty: 1, UnitPrice: domain.Money(5000)},
		},
	}
}

func TestLedgerService_CreateInvoice_DerivesTotals(t *testing.T) {
	svc, _ := newLedgerFixture()
	sc := scope.ForTenant("t1")

	inv, err := svc.CreateInvoice(context.Background(), sc, planInvoiceInput())
	require.NoError(t, err)

	// subtotal 10000 - discount 500 + tax 760
	assert.Equal(t, domain.Money(10000), inv.Subtotal)
	assert.Equal(t, domain.Money(10260), inv.Total)
	assert.Equal(t, domain.InvoiceDraft, inv.Status)
	assert.Len(t, inv.Items, 2)
}

func TestLedgerService_CreateInvoice_IssueImmediately(t *testing.T) {
	svc, _ := newLedgerFixture()
	sc := scope.ForTenant("t1")

	in := planInvoiceInput()
	in.Issue = true
	due := time.Now().AddDate(0, 0, 14)
	in.DueAt = &due

	inv, err := svc.CreateInvoice(context.Background(), sc, in)
	require.NoError(t, err)

	assert.Equal(t, domain.InvoiceIssued, inv.Status)
	require.NotNil(t, inv.DueAt)
}

func TestLedgerService_CreateInvoice_RejectsBadLines(t *testing.T) {
	svc, _ := newLedgerFixture()
	sc := scope.ForTenant("t1")

	in := planInvoiceInput()
	in.Items[0].Qty = 0
	_, err := svc.CreateInvoice(context.Background(), sc, in)
	assert.ErrorIs(t, err, domain.ErrValidation)

	in = planInvoiceInput()
	in.Items = nil
	_, err = svc.CreateInvoice(context.Background(), sc, in)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLedgerService_BalanceDue_IsDerived(t *testing.T) {
	svc, _ := newLedgerFixture()
	sc := scope.ForTenant("t1")

	in := planInvoiceInput()
	in.Issue = true
	inv, err := svc.CreateInvoice(context.Background(), sc, in)
	require.NoError(t, err)

	due, err := svc.ComputeBalanceDue(context.Background(), sc, "member1")
	require.NoError(t, err)
	assert.Equal(t, domain.Money(10260), due)

	// WHEN a covering payment succeeds
	_, err = svc.RecordPayment(context.Background(), sc, RecordPaymentInput{
		MemberID:  "member1",
		InvoiceID: &inv.ID,
		Method:    "card",
		Amount:    domain.Money(10260),
		Succeeded: true,
	})
	require.NoError(t, err)

	// THEN the derived balance reaches zero and the invoice settles
	due, err = svc.ComputeBalanceDue(context.Background(), sc, "member1")
	require.NoError(t, err)
	assert.Equal(t, domain.Money(0), due)

	settled, err := svc.Store.InvoiceByID(context.Background(), sc, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePaid, settled.Status)
}

func TestLedgerService_VoidInvoice_ExcludedFromBalance(t *testing.T) {
	svc, _ := newLedgerFixture()
	sc := scope.ForTenant("t1")

	in := planInvoiceInput()
	in.Issue = true
	inv, err := svc.CreateInvoice(context.Background(), sc, in)
	require.NoError(t, err)

	_, err = svc.VoidInvoice(context.Background(), sc, inv.ID)
	require.NoError(t, err)

	due, err := svc.ComputeBalanceDue(context.Background(), sc, "member1")
	require.NoError(t, err)
	assert.Equal(t, domain.Money(0), due)
}

func TestLedgerService_MarkPaymentSucceeded_ActivatesPendingSubscription(t *testing.T) {
	svc, store := newLedgerFixture()
	sc := scope.ForTenant("t1")

	plan := &domain.Plan{ID: "plan1", TenantID: "t1", Name: "Monthly", DurationDays: 30, Price: domain.Money(4900), Status: domain.PlanActive}
	store.PutPlan(plan)
	sub, err := domain.NewSubscription("t1", "member1", plan, time.Now(), false)
	require.NoError(t, err)
	store.PutSubscription(sub)

	res, err := svc.RecordPayment(context.Background(), sc, RecordPaymentInput{
		MemberID:       "member1",
		SubscriptionID: &sub.ID,
		Method:         "card",
		Amount:         domain.Money(4900),
		Succeeded:      true,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentSucceeded, res.Payment.Status)
	require.NotNil(t, res.Activated)
	assert.Equal(t, domain.SubscriptionActive, res.Activated.Status)

	stored, err := store.SubscriptionByID(context.Background(), sc, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionActive, stored.Status)
}

func TestLedgerService_MarkPaymentSucceeded_IsOneShot(t *testing.T) {
	// GIVEN a succeeded payment covering a subscription
	svc, store := newLedgerFixture()
	sc := scope.ForTenant("t1")

	plan := &domain.Plan{ID: "plan1", TenantID: "t1", Name: "Monthly", DurationDays: 30, Price: domain.Money(4900), Status: domain.PlanActive}
	store.PutPlan(plan)
	sub, err := domain.NewSubscription("t1", "member1", plan, time.Now(), false)
	require.NoError(t, err)
	store.PutSubscription(sub)

	res, err := svc.RecordPayment(context.Background(), sc, RecordPaymentInput{
		MemberID:       "member1",
		SubscriptionID: &sub.ID,
		Method:         "card",
		Amount:         domain.Money(4900),
		Succeeded:      true,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Activated)

	// WHEN the provider delivers the confirmation again
	again, err := svc.MarkPaymentSucceeded(context.Background(), sc, res.Payment.ID)
	require.NoError(t, err)

	// THEN the repeat returns the settled payment without re-firing
	assert.Equal(t, domain.PaymentSucceeded, again.Payment.Status)
	assert.Nil(t, again.Activated)
}

func TestLedgerService_RefundPayment_BoundedByRemaining(t *testing.T) {
	svc, _ := newLedgerFixture()
	sc := scope.ForTenant("t1")

	res, err := svc.RecordPayment(context.Background(), sc, RecordPaymentInput{
		MemberID:  "member1",
		Method:    "cash",
		Amount:    domain.Money(1000),
		Succeeded: true,
	})
	require.NoError(t, err)

	// Two partials consume the full amount.
	_, err = svc.RefundPayment(context.Background(), sc, res.Payment.ID, domain.Money(600), "goodwill")
	require.NoError(t, err)
	refund, err := svc.RefundPayment(context.Background(), sc, res.Payment.ID, domain.Money(400), "rest")
	require.NoError(t, err)
	assert.Equal(t, domain.Money(400), refund.Amount)

	// The payment is now fully refunded; nothing more to give back.
	p, err := svc.Store.PaymentByID(context.Background(), sc, res.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRefunded, p.Status)

	_, err = svc.RefundPayment(context.Background(), sc, res.Payment.ID, domain.Money(1), "too much")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLedgerService_RefundPayment_RejectsPending(t *testing.T) {
	svc, _ := newLedgerFixture()
	sc := scope.ForTenant("t1")

	res, err := svc.RecordPayment(context.Background(), sc, RecordPaymentInput{
		MemberID: "member1",
		Method:   "cash",
		Amount:   domain.Money(1000),
	})
	require.NoError(t, err)

	_, err = svc.RefundPayment(context.Background(), sc, res.Payment.ID, domain.Money(100), "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestLedgerService_CrossTenantInvoiceIsInvisible(t *testing.T) {
	svc, _ := newLedgerFixture()

	inv, err := svc.CreateInvoice(context.Background(), scope.ForTenant("t1"), planInvoiceInput())
	require.NoError(t, err)

	_, err = svc.Store.InvoiceByID(context.Background(), scope.ForTenant("t2"), inv.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
