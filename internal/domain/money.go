package domain

import "fmt"

// Money is an exact amount in cents. All ledger arithmetic is integer
// arithmetic on this type; floats never touch money paths.
type Money int64

func (m Money) Add(other Money) Money { return m + other }
func (m Money) Sub(other Money) Money { return m - other }

// MulQty multiplies a unit price by a quantity. Used for line totals.
func (m Money) MulQty(qty int64) Money { return m * Money(qty) }

func (m Money) IsNegative() bool { return m < 0 }
func (m Money) IsZero() bool     { return m == 0 }

func (m Money) Cents() int64 { return int64(m) }

// Format renders the amount with two decimal places and a currency code,
// e.g. "103.50 USD". Display only; never parsed back.
func (m Money) Format(currency string) string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, v/100, v%100, currency)
}
