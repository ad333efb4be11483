package settlement_test

import (
	"math"
	"testing"

	"github.com/meterpay/meterpay/domain/money"
	"github.com/meterpay/meterpay/domain/settlement"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name                 string
		owed, credits, cap   money.Amount
		wantSpendable        money.Amount
		wantOverdrafted      bool
		wantExceededApproval bool
	}{
		{
			name: "fully funded",
			owed: 100, credits: 500, cap: 500,
			wantSpendable: 100,
		},
		{
			name: "credits limiting",
			owed: 100, credits: 60, cap: 500,
			wantSpendable:   60,
			wantOverdrafted: true,
		},
		{
			name: "cap limiting",
			owed: 100, credits: 500, cap: 70,
			wantSpendable:        70,
			wantExceededApproval: true,
		},
		{
			name: "both limiting, overdraft wins",
			owed: 100, credits: 40, cap: 70,
			wantSpendable:   40,
			wantOverdrafted: true,
		},
		{
			name: "cap below owed, credits exactly at cap",
			owed: 100, credits: 70, cap: 70,
			// credits == min(owed, cap): not an overdraft, the cap binds.
			wantSpendable:        70,
			wantExceededApproval: true,
		},
		{
			name: "all equal",
			owed: 100, credits: 100, cap: 100,
			wantSpendable: 100,
		},
		{
			name: "zero owed",
			owed: 0, credits: 500, cap: 500,
			wantSpendable: 0,
		},
		{
			name: "zero credits",
			owed: 100, credits: 0, cap: 500,
			wantSpendable:   0,
			wantOverdrafted: true,
		},
		{
			name: "zero cap",
			owed: 100, credits: 500, cap: 0,
			wantSpendable:        0,
			wantExceededApproval: true,
		},
		{
			name: "zero cap and zero credits",
			owed: 100, credits: 0, cap: 0,
			// min(owed, cap) is 0 and credits is not below 0, so the
			// cap is the binding constraint.
			wantSpendable:        0,
			wantExceededApproval: true,
		},
		{
			name: "max amounts",
			owed: math.MaxUint64, credits: math.MaxUint64, cap: math.MaxUint64,
			wantSpendable: math.MaxUint64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := settlement.Classify(tt.owed, tt.credits, tt.cap)

			if got.Spendable != tt.wantSpendable {
				t.Errorf("spendable = %d, want %d", got.Spendable, tt.wantSpendable)
			}
			if got.Overdrafted != tt.wantOverdrafted {
				t.Errorf("overdrafted = %v, want %v", got.Overdrafted, tt.wantOverdrafted)
			}
			if got.ExceededApproval != tt.wantExceededApproval {
				t.Errorf("exceededApproval = %v, want %v", got.ExceededApproval, tt.wantExceededApproval)
			}
		})
	}
}

func TestFeeRate_Valid(t *testing.T) {
	tests := []struct {
		rate settlement.FeeRate
		want bool
	}{
		{settlement.FeeRate{Numerator: 10, Denominator: 1}, true},
		{settlement.FeeRate{Numerator: 25, Denominator: 10}, true},
		{settlement.FeeRate{Numerator: 100, Denominator: 1}, true},
		{settlement.FeeRate{Numerator: 101, Denominator: 1}, false},
		{settlement.FeeRate{Numerator: 10, Denominator: 0}, false},
		{settlement.FeeRate{Numerator: 0, Denominator: 1}, true},
	}
	for _, tt := range tests {
		if got := tt.rate.Valid(); got != tt.want {
			t.Errorf("Valid(%d/%d) = %v, want %v", tt.rate.Numerator, tt.rate.Denominator, got, tt.want)
		}
	}
}

func TestFeeRate_Fee(t *testing.T) {
	tests := []struct {
		name  string
		rate  settlement.FeeRate
		total money.Amount
		want  money.Amount
	}{
		{"ten percent", settlement.FeeRate{Numerator: 10, Denominator: 1}, 1000, 100},
		{"two and a half percent", settlement.FeeRate{Numerator: 25, Denominator: 10}, 1000, 25},
		{"truncates", settlement.FeeRate{Numerator: 10, Denominator: 1}, 99, 9},
		{"zero total", settlement.FeeRate{Numerator: 10, Denominator: 1}, 0, 0},
		{"zero rate", settlement.FeeRate{Numerator: 0, Denominator: 1}, 1000, 0},
		{"invalid rate takes nothing", settlement.FeeRate{Numerator: 10, Denominator: 0}, 1000, 0},
		{"full rate", settlement.FeeRate{Numerator: 100, Denominator: 1}, 1000, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rate.Fee(tt.total); got != tt.want {
				t.Errorf("fee = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFeeRate_Fee_LargeTotalDividesFirst(t *testing.T) {
	rate := settlement.FeeRate{Numerator: 10, Denominator: 1}
	total := money.Amount(math.MaxUint64)

	// total*10 overflows; the divide-first path still yields ~10%.
	got := rate.Fee(total)
	want := total / 1 / 100 * 10

	if got != want {
		t.Errorf("fee = %d, want %d", got, want)
	}
	if got > total {
		t.Errorf("fee %d exceeds total %d", got, total)
	}
}

func TestFeeRate_Split(t *testing.T) {
	rate := settlement.FeeRate{Numerator: 10, Denominator: 1}

	payout, fee := rate.Split(1000)
	if payout != 900 || fee != 100 {
		t.Errorf("split = (%d, %d), want (900, 100)", payout, fee)
	}
	if payout+fee != 1000 {
		t.Errorf("split does not conserve total: %d + %d != 1000", payout, fee)
	}
}
