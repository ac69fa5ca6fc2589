package domain

import "fmt"

// Money is a fixed-point monetary amount in cents (the smallest currency
// unit). All ledger arithmetic happens on integers; floats appear only at
// display boundaries.
type Money int64

// MoneyFromFloat converts a display amount (e.g. 100.00) to cents.
func MoneyFromFloat(v float64) Money {
	if v >= 0 {
		return Money(v*100 + 0.5)
	}
	return Money(v*100 - 0.5)
}

// Float returns the display value in currency units.
func (m Money) Float() float64 {
	return float64(m) / 100
}

// String formats the amount with two decimal places.
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MulRate multiplies the amount by a fractional rate, rounding half up to the
// cent. This is the commission rounding policy: 100.00 at 0.025 yields 2.50.
func (m Money) MulRate(rate float64) Money {
	product := float64(m) * rate
	if product >= 0 {
		return Money(int64(product + 0.5))
	}
	return Money(int64(product - 0.5))
}
