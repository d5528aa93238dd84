package domain

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a new time-sortable 26-character identifier. IDs are
// assigned at creation and never change.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewInvoiceNumber returns a tenant-unique, time-sortable invoice number.
func NewInvoiceNumber() string {
	return "INV-" + NewID()
}
