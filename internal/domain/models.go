package domain

import "time"

// Enumerations
const (
	RoleAdmin   UserRole = "admin"
	RoleManager UserRole = "manager"
	RoleStaff   UserRole = "staff"

	MemberProspect  MemberStatus = "prospect"
	MemberActive    MemberStatus = "active"
	MemberInactive  MemberStatus = "inactive"
	MemberSuspended MemberStatus = "suspended"

	BookingReserved  BookingStatus = "reserved"
	BookingCheckedIn BookingStatus = "checked_in"
	BookingCancelled BookingStatus = "cancelled"
	BookingNoShow    BookingStatus = "no_show"

	SubscriptionPending   SubscriptionStatus = "pending"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"

	PlanActive   PlanStatus = "active"
	PlanInactive PlanStatus = "inactive"

	InvoiceDraft  InvoiceStatus = "draft"
	InvoiceIssued InvoiceStatus = "issued"
	InvoicePaid   InvoiceStatus = "paid"
	InvoiceVoid   InvoiceStatus = "void"

	ItemPlan  InvoiceItemType = "plan"
	ItemClass InvoiceItemType = "class"
	ItemPOS   InvoiceItemType = "pos"
	ItemFee   InvoiceItemType = "fee"

	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type UserRole string
type MemberStatus string
type BookingStatus string
type SubscriptionStatus string
type PlanStatus string
type InvoiceStatus string
type InvoiceItemType string
type PaymentStatus string

// Branch is the secondary scoping boundary below the tenant: a physical
// location whose staff see only their own members and classes.
type Branch struct {
	ID        string
	TenantID  string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

type EmergencyContact struct {
	Name     string
	Phone    string
	Relation string
}

type Member struct {
	ID        string
	TenantID  string
	BranchID  string
	Code      string
	FullName  string
	Status    MemberStatus
	Emergency *EmergencyContact
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Archived reports whether the row is logically gone. Repositories filter
// archived rows out of every read; this predicate exists for code that
// already holds the struct.
func (m *Member) Archived() bool { return m.DeletedAt != nil }

// GymClass defines a class and its capacity. Capacity 0 means unlimited.
type GymClass struct {
	ID        string
	TenantID  string
	BranchID  string
	Name      string
	Capacity  int
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

type ClassSchedule struct {
	ID        string
	TenantID  string
	ClassID   string
	TrainerID *string
	StartsAt  time.Time
	EndsAt    time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

type ClassBooking struct {
	ID         string
	TenantID   string
	ScheduleID string
	MemberID   string
	Status     BookingStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Active reports whether the booking counts against schedule capacity.
func (b *ClassBooking) Active() bool {
	return b.Status == BookingReserved || b.Status == BookingCheckedIn
}

type WaitlistEntry struct {
	ID         string
	TenantID   string
	ScheduleID string
	MemberID   string
	Position   int
	NotifiedAt *time.Time
	CreatedAt  time.Time
}

type Plan struct {
	ID           string
	TenantID     string
	Name         string
	DurationDays int
	Price        Money
	AccessRules  map[string]any
	Status       PlanStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

type Subscription struct {
	ID        string
	TenantID  string
	MemberID  string
	PlanID    string
	StartsAt  time.Time
	EndsAt    time.Time
	Status    SubscriptionStatus
	AutoRenew bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Invoice struct {
	ID        string
	TenantID  string
	MemberID  string
	Number    string
	Status    InvoiceStatus
	Subtotal  Money
	Discount  Money
	Tax       Money
	Total     Money
	IssuedAt  *time.Time
	DueAt     *time.Time
	Items     []InvoiceItem
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

func (i *Invoice) Archived() bool { return i.DeletedAt != nil }

type InvoiceItem struct {
	ID        string
	TenantID  string
	InvoiceID string
	ItemType  InvoiceItemType
	RefID     *string
	Qty       int64
	UnitPrice Money
	LineTotal Money
	CreatedAt time.Time
	DeletedAt *time.Time
}

type Payment struct {
	ID             string
	TenantID       string
	InvoiceID      *string
	SubscriptionID *string
	MemberID       string
	Method         string
	Amount         Money
	Status         PaymentStatus
	PaidAt         *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Refund struct {
	ID         string
	TenantID   string
	PaymentID  string
	Amount     Money
	Reason     string
	RefundedAt time.Time
}
