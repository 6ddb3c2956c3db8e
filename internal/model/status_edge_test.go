package model_test

// ── Promotion, retention and pricing edge cases ───────────────────────────

import (
	"testing"
	"time"

	"isilanlarim/internal/model"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestPromotionActive_LazyExpiry(t *testing.T) {
	l := model.Listing{IsPremium: true, IsPromoted: true, PromotionExpiresAt: now.Add(-time.Minute).UnixMilli()}
	if l.PromotionActive(now) {
		t.Error("expired promotion must read as not promoted even with flags set")
	}

	l.PromotionExpiresAt = now.Add(time.Hour).UnixMilli()
	if !l.PromotionActive(now) {
		t.Error("unexpired promotion should be active")
	}
}

func TestPromotionActive_NoFlags(t *testing.T) {
	l := model.Listing{PromotionExpiresAt: now.Add(time.Hour).UnixMilli()}
	if l.PromotionActive(now) {
		t.Error("listing without flags must not be promoted")
	}
}

func TestApplyPromotion(t *testing.T) {
	cases := []struct {
		kind        model.PromotionType
		wantPremium bool
	}{
		{model.PromotionPremium, true},
		{model.PromotionTop, true},
		{model.PromotionHighlight, false},
	}
	for _, c := range cases {
		l := model.Listing{CreatedAt: now.Add(-24 * time.Hour).UnixMilli()}
		l.ApplyPromotion(c.kind, 7, now)
		if l.IsPremium != c.wantPremium {
			t.Errorf("%s: IsPremium = %v, want %v", c.kind, l.IsPremium, c.wantPremium)
		}
		if !l.IsPromoted {
			t.Errorf("%s: IsPromoted should be set", c.kind)
		}
		if want := now.Add(7 * 24 * time.Hour).UnixMilli(); l.PromotionExpiresAt != want {
			t.Errorf("%s: PromotionExpiresAt = %d, want %d", c.kind, l.PromotionExpiresAt, want)
		}
		if l.PromotionExpiresAt <= l.CreatedAt {
			t.Errorf("%s: promotion must expire after creation", c.kind)
		}
		if l.UpdatedAt != now.UnixMilli() {
			t.Errorf("%s: UpdatedAt not stamped", c.kind)
		}
	}
}

func TestDaysLeft(t *testing.T) {
	l := model.Listing{CreatedAt: now.UnixMilli()}
	if got := l.DaysLeft(now); got != model.RetentionDays {
		t.Errorf("DaysLeft at creation = %d, want %d", got, model.RetentionDays)
	}
	if got := l.DaysLeft(now.Add(59*24*time.Hour + time.Hour)); got != 1 {
		t.Errorf("DaysLeft on last day = %d, want 1", got)
	}
	if got := l.DaysLeft(now.Add(90 * 24 * time.Hour)); got != 0 {
		t.Errorf("DaysLeft after window = %d, want 0", got)
	}
}

func TestLastModified(t *testing.T) {
	l := model.Listing{CreatedAt: 100}
	if l.LastModified() != 100 {
		t.Errorf("LastModified without update = %d, want 100", l.LastModified())
	}
	l.UpdatedAt = 200
	if l.LastModified() != 200 {
		t.Errorf("LastModified with update = %d, want 200", l.LastModified())
	}
}

func TestPrice(t *testing.T) {
	got, err := model.Price(model.PromotionTop, 30)
	if err != nil || got != 100 {
		t.Errorf("Price(top, 30) = %d, %v; want 100, nil", got, err)
	}
	if _, err := model.Price(model.PromotionPremium, 10); err == nil {
		t.Error("Price with 10 days should fail")
	}
	if _, err := model.Price("gold", 7); err == nil {
		t.Error("Price with unknown tier should fail")
	}
}
