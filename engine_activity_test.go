package secureauth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func seedActivity(t *testing.T, store *mockStore, userID int64, n int) {
	t.Helper()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		err := store.AppendActivity(context.Background(), ActivityEntry{
			ID:         fmt.Sprintf("e%03d", i),
			UserID:     userID,
			Type:       ActivitySignin,
			ActionDate: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("AppendActivity #%d: %v", i, err)
		}
	}
}

func TestActivityLogPagination(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(t, store, &mockNotifier{})
	mustSignup(t, engine, "a@x.com", "1", "p1")
	store.activity = nil // drop the signup entry, seed a clean 25
	seedActivity(t, store, 1, 25)

	page, err := engine.ActivityLog(context.Background(), ActivityFilter{}, 0, 10)
	if err != nil {
		t.Fatalf("ActivityLog: %v", err)
	}
	if page.Count != 25 {
		t.Fatalf("count = %d, want 25", page.Count)
	}
	if len(page.Items) != 10 {
		t.Fatalf("items = %d, want 10", len(page.Items))
	}
	// Newest first.
	if page.Items[0].ID != "e024" {
		t.Fatalf("first item = %s, want e024", page.Items[0].ID)
	}

	page, err = engine.ActivityLog(context.Background(), ActivityFilter{}, 20, 10)
	if err != nil {
		t.Fatalf("ActivityLog skip=20: %v", err)
	}
	if page.Count != 25 || len(page.Items) != 5 {
		t.Fatalf("skip=20: count=%d items=%d, want 25/5", page.Count, len(page.Items))
	}
}

func TestActivityLogDefaultLimit(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(t, store, &mockNotifier{})
	mustSignup(t, engine, "a@x.com", "1", "p1")
	store.activity = nil
	seedActivity(t, store, 1, 25)

	page, err := engine.ActivityLog(context.Background(), ActivityFilter{}, 0, -1)
	if err != nil {
		t.Fatalf("ActivityLog: %v", err)
	}
	if len(page.Items) != 10 {
		t.Fatalf("default limit items = %d, want 10", len(page.Items))
	}
}

func TestActivityLogZeroLimitReturnsCountOnly(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(t, store, &mockNotifier{})
	mustSignup(t, engine, "a@x.com", "1", "p1")
	store.activity = nil
	seedActivity(t, store, 1, 7)

	page, err := engine.ActivityLog(context.Background(), ActivityFilter{}, 0, 0)
	if err != nil {
		t.Fatalf("ActivityLog: %v", err)
	}
	if page.Count != 7 || len(page.Items) != 0 {
		t.Fatalf("count=%d items=%d, want 7/0", page.Count, len(page.Items))
	}
}

func TestActivityLogClampsNegatives(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(t, store, &mockNotifier{})
	mustSignup(t, engine, "a@x.com", "1", "p1")
	store.activity = nil
	seedActivity(t, store, 1, 5)

	page, err := engine.ActivityLog(context.Background(), ActivityFilter{}, -3, -1)
	if err != nil {
		t.Fatalf("ActivityLog: %v", err)
	}
	if page.Count != 5 || len(page.Items) != 5 {
		t.Fatalf("count=%d items=%d, want 5/5", page.Count, len(page.Items))
	}
}

func TestActivityLogEmailFilter(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(t, store, &mockNotifier{})
	mustSignup(t, engine, "a@x.com", "1", "p1")
	mustSignup(t, engine, "b@x.com", "2", "p2")
	store.activity = nil
	seedActivity(t, store, 1, 3)
	seedActivity(t, store, 2, 4)

	page, err := engine.ActivityLog(context.Background(), ActivityFilter{Email: "b@x.com"}, 0, 10)
	if err != nil {
		t.Fatalf("ActivityLog: %v", err)
	}
	if page.Count != 4 || len(page.Items) != 4 {
		t.Fatalf("filtered count=%d items=%d, want 4/4", page.Count, len(page.Items))
	}
	for _, e := range page.Items {
		if e.UserID != 2 {
			t.Fatalf("leaked entry for user %d", e.UserID)
		}
	}
}

func TestActivityLogSkipBeyondCount(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(t, store, &mockNotifier{})
	mustSignup(t, engine, "a@x.com", "1", "p1")
	store.activity = nil
	seedActivity(t, store, 1, 5)

	page, err := engine.ActivityLog(context.Background(), ActivityFilter{}, 50, 10)
	if err != nil {
		t.Fatalf("ActivityLog: %v", err)
	}
	if page.Count != 5 || len(page.Items) != 0 {
		t.Fatalf("count=%d items=%d, want 5/0", page.Count, len(page.Items))
	}
}

func TestActivityWriteFailureDoesNotFailFlow(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(t, store, &mockNotifier{})

	store.appendActivErr = errors.New("activity table unavailable")

	pair, err := engine.Signup(context.Background(), SignupInput{
		Email:    "a@x.com",
		Phone:    "1",
		Password: "p1",
	})
	if err != nil {
		t.Fatalf("Signup must survive activity failure: %v", err)
	}
	if pair.AccessToken == "" {
		t.Fatal("no tokens despite successful signup")
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricActivityDropped.String()] != 1 {
		t.Fatalf("dropped counter = %d, want 1", snap.Counters[MetricActivityDropped.String()])
	}
}

func TestProfileUpdate(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(t, store, &mockNotifier{})
	mustSignup(t, engine, "a@x.com", "1", "p1")

	user, err := engine.UpdateProfile(context.Background(), 1, ProfileUpdate{
		FirstName: "Nyasha",
		LastName:  "Moyo",
		Phone:     "42",
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if user.FirstName != "Nyasha" || user.Phone != "42" {
		t.Fatalf("profile not updated: %+v", user)
	}
	if user.Email != "a@x.com" {
		t.Fatalf("email must be untouched, got %q", user.Email)
	}

	var found bool
	for _, e := range store.activity {
		if e.Type == ActivityProfileUpdate {
			found = true
		}
	}
	if !found {
		t.Fatal("profile_update activity not recorded")
	}
}

func TestProfileUpdatePhoneCollision(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(t, store, &mockNotifier{})
	mustSignup(t, engine, "a@x.com", "1", "p1")
	mustSignup(t, engine, "b@x.com", "2", "p2")

	if _, err := engine.UpdateProfile(context.Background(), 2, ProfileUpdate{Phone: "1"}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("phone collision err = %v, want ErrAlreadyExists", err)
	}
}

func TestProfileUpdateUnknownUser(t *testing.T) {
	engine := newTestEngine(t, newMockStore(), &mockNotifier{})

	if _, err := engine.UpdateProfile(context.Background(), 99, ProfileUpdate{FirstName: "X"}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user err = %v, want ErrUserNotFound", err)
	}
}
