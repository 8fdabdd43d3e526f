package output

import "testing"

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		currency string
		want     string
	}{
		{"rwf whole", 5000, "RWF", "RWF 5,000"},
		{"rwf small", 999, "RWF", "RWF 999"},
		{"rwf large", 1250000, "RWF", "RWF 1,250,000"},
		{"rwf zero", 0, "RWF", "RWF 0"},
		{"rwf rounds", 5000.4, "RWF", "RWF 5,000"},
		{"rwf negative", -15000, "RWF", "RWF -15,000"},
		{"usd keeps decimals", 1234.5, "USD", "USD 1234.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatAmount(tt.amount, tt.currency); got != tt.want {
				t.Errorf("FormatAmount(%v, %s) = %q, want %q", tt.amount, tt.currency, got, tt.want)
			}
		})
	}
}
