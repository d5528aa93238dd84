package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMoney_Arithmetic_IsExact(t *testing.T) {
	// GIVEN amounts that are lossy in binary floating point
	a := Money(10)
	b := Money(20)

	// WHEN combined
	sum := a.Add(b)

	// THEN the result is exact cents
	assert.Equal(t, Money(30), sum)
	assert.Equal(t, int64(30), sum.Cents())
}

func TestMoney_MulQty_ComputesLineTotals(t *testing.T) {
	price := Money(1999)

	assert.Equal(t, Money(5997), price.MulQty(3))
	assert.Equal(t, Money(0), price.MulQty(0))
}

func TestMoney_Sub_CanGoNegative(t *testing.T) {
	// Balance due may legitimately be a credit.
	due := Money(500).Sub(Money(750))

	assert.True(t, due.IsNegative())
	assert.Equal(t, Money(-250), due)
}

func TestMoney_Format_RendersCentsWithCurrency(t *testing.T) {
	assert.Equal(t, "103.50 USD", Money(10350).Format("USD"))
	assert.Equal(t, "0.05 EUR", Money(5).Format("EUR"))
	assert.Equal(t, "-1.25 USD", Money(-125).Format("USD"))
}
