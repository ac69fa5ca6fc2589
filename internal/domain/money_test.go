package domain

import "testing"

func TestMulRateRoundsHalfUp(t *testing.T) {
	tests := []struct {
		name   string
		amount Money
		rate   float64
		want   Money
	}{
		{"standard commission", 10000, 0.025, 250}, // 100.00 at 2.5% = 2.50
		{"three percent", 50000, 0.03, 1500},
		{"half cent rounds up", 101, 0.025, 3}, // 2.525 cents -> 3
		{"just below half rounds down", 99, 0.025, 2},
		{"zero rate", 10000, 0, 0},
		{"zero amount", 0, 0.025, 0},
		{"tenth of a percent", 100000, 0.001, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.amount.MulRate(tt.rate); got != tt.want {
				t.Errorf("MulRate(%v, %v) = %v, want %v", tt.amount, tt.rate, got, tt.want)
			}
		})
	}
}

func TestMoneyString(t *testing.T) {
	tests := []struct {
		amount Money
		want   string
	}{
		{10000, "100.00"},
		{250, "2.50"},
		{9750, "97.50"},
		{5, "0.05"},
		{-1250, "-12.50"},
	}

	for _, tt := range tests {
		if got := tt.amount.String(); got != tt.want {
			t.Errorf("Money(%d).String() = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

func TestMoneyFromFloat(t *testing.T) {
	if got := MoneyFromFloat(100.00); got != 10000 {
		t.Errorf("MoneyFromFloat(100.00) = %d, want 10000", got)
	}
	if got := MoneyFromFloat(2.55); got != 255 {
		t.Errorf("MoneyFromFloat(2.55) = %d, want 255", got)
	}
}
