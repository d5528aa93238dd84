package scope

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForTenant_IsTenantWide(t *testing.T) {
	sc := ForTenant("t1")

	assert.True(t, sc.Valid())
	assert.False(t, sc.BranchBound())
	assert.False(t, sc.IsOperator())
}

func TestForBranch_NarrowsWithinTenant(t *testing.T) {
	sc := ForBranch("t1", "b1")

	assert.True(t, sc.Valid())
	assert.True(t, sc.BranchBound())
	assert.Equal(t, "t1", sc.TenantID)
	assert.Equal(t, "b1", *sc.BranchID)
}

func TestZeroScope_IsUnusable(t *testing.T) {
	var sc Scope

	assert.False(t, sc.Valid())
	assert.False(t, sc.Owns("t1"))
}

func TestOwns_MatchesOnlyOwnTenant(t *testing.T) {
	sc := ForTenant("t1")

	assert.True(t, sc.Owns("t1"))
	assert.False(t, sc.Owns("t2"))
	assert.False(t, sc.Owns(""))
}

func TestOperator_StaysTenantBound(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sc := Operator(logger, "t1", "billing backfill")

	// Operator widens nothing: the tenant predicate still applies.
	assert.True(t, sc.IsOperator())
	assert.True(t, sc.Owns("t1"))
	assert.False(t, sc.Owns("t2"))
}
