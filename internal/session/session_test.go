package session

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestWizardActive(t *testing.T) {
	cases := []struct {
		step   Step
		active bool
		media  bool
	}{
		{step: "", active: false},
		{step: StepIdle, active: false},
		{step: StepTitle, active: true},
		{step: StepLink, active: true},
		{step: StepMediaChoice, active: true, media: true},
		{step: StepMediaWait, active: true, media: true},
		{step: StepSummary, active: true},
	}
	for _, tc := range cases {
		sess := Session{Step: tc.step}
		if got := sess.WizardActive(); got != tc.active {
			t.Errorf("WizardActive(%q) = %v, want %v", tc.step, got, tc.active)
		}
		if got := sess.AwaitingMedia(); got != tc.media {
			t.Errorf("AwaitingMedia(%q) = %v, want %v", tc.step, got, tc.media)
		}
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, 42); ok || err != nil {
		t.Fatalf("empty Get = %v, %v", ok, err)
	}
	if err := store.Set(ctx, 42, Session{Step: StepTitle}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := store.Get(ctx, 42)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if got.UserID != 42 || got.Step != StepTitle {
		t.Fatalf("unexpected session: %+v", got)
	}

	if err := store.Clear(ctx, 42); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := store.Clear(ctx, 42); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
	if _, ok, _ := store.Get(ctx, 42); ok {
		t.Fatal("expected session gone after Clear")
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Set(ctx, 1, Session{Step: StepYear}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	now = now.Add(30 * time.Second)
	if _, ok, _ := store.Get(ctx, 1); !ok {
		t.Fatal("session expired too early")
	}
	now = now.Add(time.Minute)
	if _, ok, _ := store.Get(ctx, 1); ok {
		t.Fatal("expected stale session to be dropped")
	}
}

func TestMemoryStoreNoTTL(t *testing.T) {
	store := NewMemoryStore(0)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Set(ctx, 1, Session{Step: StepYear}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	now = now.Add(365 * 24 * time.Hour)
	if _, ok, _ := store.Get(ctx, 1); !ok {
		t.Fatal("session without ttl should not expire")
	}
}

func TestMemoryStoreConcurrentUsers(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := int64(1); i <= 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_ = store.Set(ctx, id, Session{Step: StepTitle, Draft: Draft{Title: "t"}})
			if id%2 == 0 {
				_ = store.Clear(ctx, id)
			}
		}(i)
	}
	wg.Wait()

	for i := int64(1); i <= 50; i++ {
		_, ok, _ := store.Get(ctx, i)
		if want := i%2 == 1; ok != want {
			t.Fatalf("user %d present=%v, want %v", i, ok, want)
		}
	}
}
