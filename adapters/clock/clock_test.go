package clock_test

import (
	"testing"
	"time"

	"github.com/meterpay/meterpay/adapters/clock"
)

func TestReal_NowIsUTC(t *testing.T) {
	now := clock.Real{}.Now()
	if now.Location() != time.UTC {
		t.Errorf("location = %v, want UTC", now.Location())
	}
}

func TestFake_SetAndAdvance(t *testing.T) {
	base := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	f := clock.NewFake(base)

	if !f.Now().Equal(base) {
		t.Errorf("Now = %v, want %v", f.Now(), base)
	}

	f.Advance(70 * time.Second)
	if got := f.Now(); !got.Equal(base.Add(70 * time.Second)) {
		t.Errorf("after Advance, Now = %v, want %v", got, base.Add(70*time.Second))
	}

	later := base.Add(time.Hour)
	f.Set(later)
	if !f.Now().Equal(later) {
		t.Errorf("after Set, Now = %v, want %v", f.Now(), later)
	}
}

func TestFake_NormalizesToUTC(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	local := time.Date(2024, 1, 15, 7, 0, 0, 0, est)

	f := clock.NewFake(local)
	got := f.Now()
	if got.Location() != time.UTC {
		t.Errorf("location = %v, want UTC", got.Location())
	}
	if !got.Equal(local) {
		t.Errorf("Now = %v, want the same instant as %v", got, local)
	}
}
