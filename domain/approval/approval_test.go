package approval_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/meterpay/meterpay/domain/approval"
	"github.com/meterpay/meterpay/domain/money"
)

var baseTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

const week = 7 * 24 * time.Hour

func TestEffectiveCap_UnanchoredUsesDefaultWindow(t *testing.T) {
	a := approval.Approval{RatePerSecond: 2}

	// An unanchored window behaves as if anchored defaultWindow ago.
	got := approval.EffectiveCap(a, week, baseTime)
	want := money.Amount(week/time.Second) * 2

	if got != want {
		t.Errorf("cap = %d, want %d", got, want)
	}
}

func TestEffectiveCap_AnchoredWindow(t *testing.T) {
	anchor := baseTime.Add(-100 * time.Second)
	a := approval.Approval{RatePerSecond: 3, Anchor: &anchor}

	if got := approval.EffectiveCap(a, week, baseTime); got != 300 {
		t.Errorf("cap = %d, want 300", got)
	}
}

func TestEffectiveCap_FutureAnchorIsZero(t *testing.T) {
	anchor := baseTime.Add(time.Hour)
	a := approval.Approval{RatePerSecond: 1000, Anchor: &anchor}

	if got := approval.EffectiveCap(a, week, baseTime); got != 0 {
		t.Errorf("cap = %d, want 0", got)
	}
}

func TestEffectiveCap_AnchorAtNowIsZero(t *testing.T) {
	anchor := baseTime
	a := approval.Approval{RatePerSecond: 1000, Anchor: &anchor}

	if got := approval.EffectiveCap(a, week, baseTime); got != 0 {
		t.Errorf("cap = %d, want 0", got)
	}
}

func TestEffectiveCap_ZeroRate(t *testing.T) {
	a := approval.Approval{RatePerSecond: 0}

	if got := approval.EffectiveCap(a, week, baseTime); got != 0 {
		t.Errorf("cap = %d, want 0", got)
	}
}

func TestEffectiveCap_SaturatesOnOverflow(t *testing.T) {
	anchor := baseTime.Add(-time.Hour)
	a := approval.Approval{RatePerSecond: math.MaxUint64, Anchor: &anchor}

	if got := approval.EffectiveCap(a, week, baseTime); got != math.MaxUint64 {
		t.Errorf("cap = %d, want max (saturated)", got)
	}
}

func TestWithFirstUse_SetsAnchor(t *testing.T) {
	var a approval.Approval

	anchored, err := a.WithFirstUse(5, baseTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !anchored.Anchored() {
		t.Fatal("expected anchored approval")
	}
	if anchored.RatePerSecond != 5 {
		t.Errorf("rate = %d, want 5", anchored.RatePerSecond)
	}
	if !anchored.Anchor.Equal(baseTime) {
		t.Errorf("anchor = %v, want %v", anchored.Anchor, baseTime)
	}
}

func TestWithFirstUse_RejectsReAnchor(t *testing.T) {
	a := approval.Approval{}
	anchored, err := a.WithFirstUse(5, baseTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = anchored.WithFirstUse(10, baseTime.Add(time.Hour))
	if !errors.Is(err, approval.ErrAlreadyAnchored) {
		t.Fatalf("err = %v, want ErrAlreadyAnchored", err)
	}

	// The original approval is unchanged.
	if anchored.RatePerSecond != 5 {
		t.Errorf("rate = %d, want 5", anchored.RatePerSecond)
	}
}
