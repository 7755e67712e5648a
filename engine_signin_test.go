package secureauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSigninWrongPasswordVsMissingUser(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(t, store, &mockNotifier{})
	mustSignup(t, engine, "a@x.com", "1", "p1")

	if _, err := engine.Signin(context.Background(), "a@x.com", "wrong", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := engine.Signin(context.Background(), "nobody@x.com", "p1", ""); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("missing user err = %v, want ErrUserNotFound", err)
	}
}

func TestSigninEntersOTPPendingState(t *testing.T) {
	store := newMockStore()
	notifier := &mockNotifier{}
	engine := newTestEngine(t, store, notifier)
	mustSignup(t, engine, "a@x.com", "1", "p1")

	result, err := engine.Signin(context.Background(), "a@x.com", "p1", "d1")
	if err != nil {
		t.Fatalf("Signin: %v", err)
	}
	if !result.OTPPending {
		t.Fatal("expected OTP pending state")
	}
	if !result.NewDevice {
		t.Fatal("expected new device on first sight")
	}

	sent, ok := notifier.lastOTP()
	if !ok {
		t.Fatal("no OTP sent")
	}
	if len(sent.code) != 6 {
		t.Fatalf("OTP length = %d, want 6", len(sent.code))
	}
	if len(notifier.otps) != 1 || len(notifier.deviceAlerts) != 1 {
		t.Fatalf("otps=%d alerts=%d, want exactly one each", len(notifier.otps), len(notifier.deviceAlerts))
	}

	user, _ := store.GetUserByEmail(context.Background(), "a@x.com")
	if user.LoginOTP != sent.code {
		t.Fatalf("stored code %q differs from sent %q", user.LoginOTP, sent.code)
	}
}

func TestConfirmSigninOTPScenario(t *testing.T) {
	store := newMockStore()
	notifier := &mockNotifier{}
	engine := newTestEngine(t, store, notifier)
	mustSignup(t, engine, "a@x.com", "1", "p1")

	if _, err := engine.Signin(context.Background(), "a@x.com", "p1", "d1"); err != nil {
		t.Fatalf("Signin: %v", err)
	}
	sent, _ := notifier.lastOTP()

	// Wrong code fails without clearing the pending challenge.
	if _, err := engine.ConfirmSigninOTP(context.Background(), "a@x.com", "WRONG1", "d1"); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("wrong code err = %v, want ErrOTPInvalid", err)
	}
	user, _ := store.GetUserByEmail(context.Background(), "a@x.com")
	if user.LoginOTP != sent.code {
		t.Fatal("wrong code cleared the pending challenge")
	}

	// The correct code still works afterwards and yields a token pair.
	pair, err := engine.ConfirmSigninOTP(context.Background(), "a@x.com", sent.code, "d1")
	if err != nil {
		t.Fatalf("ConfirmSigninOTP: %v", err)
	}
	access, err := engine.tokens.ParseAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if access.DeviceID != "d1" {
		t.Fatalf("device claim = %q, want d1", access.DeviceID)
	}

	// Success clears the code: a replay of the same code fails.
	if _, err := engine.ConfirmSigninOTP(context.Background(), "a@x.com", sent.code, "d1"); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("replayed code err = %v, want ErrOTPInvalid", err)
	}
}

func TestConfirmSigninOTPExpiryBoundary(t *testing.T) {
	store := newMockStore()
	notifier := &mockNotifier{}
	engine := newTestEngine(t, store, notifier)
	mustSignup(t, engine, "a@x.com", "1", "p1")

	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return issued }

	if _, err := engine.Signin(context.Background(), "a@x.com", "p1", ""); err != nil {
		t.Fatalf("Signin: %v", err)
	}
	sent, _ := notifier.lastOTP()

	// Accepted one second after issuance.
	engine.now = func() time.Time { return issued.Add(1 * time.Second) }
	if _, err := engine.ConfirmSigninOTP(context.Background(), "a@x.com", sent.code, ""); err != nil {
		t.Fatalf("code at T+1s rejected: %v", err)
	}

	// Re-issue and age the code past the window.
	engine.now = func() time.Time { return issued }
	if _, err := engine.Signin(context.Background(), "a@x.com", "p1", ""); err != nil {
		t.Fatalf("second Signin: %v", err)
	}
	sent, _ = notifier.lastOTP()

	engine.now = func() time.Time { return issued.Add(301 * time.Second) }
	if _, err := engine.ConfirmSigninOTP(context.Background(), "a@x.com", sent.code, ""); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("code at T+301s err = %v, want ErrOTPExpired", err)
	}

	// A wrong code is rejected as invalid regardless of timing.
	if _, err := engine.ConfirmSigninOTP(context.Background(), "a@x.com", "NOPE99", ""); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("wrong expired-window code err = %v, want ErrOTPInvalid", err)
	}
}

func TestConfirmSigninOTPNearMissRejected(t *testing.T) {
	store := newMockStore()
	notifier := &mockNotifier{}
	engine := newTestEngine(t, store, notifier)
	mustSignup(t, engine, "a@x.com", "1", "p1")

	if _, err := engine.Signin(context.Background(), "a@x.com", "p1", ""); err != nil {
		t.Fatalf("Signin: %v", err)
	}
	sent, _ := notifier.lastOTP()

	// Shares every character with the real code except the last one.
	near := sent.code[:len(sent.code)-1] + "x"
	if _, err := engine.ConfirmSigninOTP(context.Background(), "a@x.com", near, ""); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("near-miss err = %v, want ErrOTPInvalid", err)
	}

	// The challenge survives the near-miss and the real code still works.
	if _, err := engine.ConfirmSigninOTP(context.Background(), "a@x.com", sent.code, ""); err != nil {
		t.Fatalf("real code rejected after near-miss: %v", err)
	}
}

func TestConfirmSigninOTPNonePending(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(t, store, &mockNotifier{})
	mustSignup(t, engine, "a@x.com", "1", "p1")

	if _, err := engine.ConfirmSigninOTP(context.Background(), "a@x.com", "ABC123", ""); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("no pending code err = %v, want ErrOTPInvalid", err)
	}
}

func TestSigninOTPLastWriterWins(t *testing.T) {
	store := newMockStore()
	notifier := &mockNotifier{}
	engine := newTestEngine(t, store, notifier)
	mustSignup(t, engine, "a@x.com", "1", "p1")

	if _, err := engine.Signin(context.Background(), "a@x.com", "p1", ""); err != nil {
		t.Fatalf("first Signin: %v", err)
	}
	first, _ := notifier.lastOTP()

	if _, err := engine.Signin(context.Background(), "a@x.com", "p1", ""); err != nil {
		t.Fatalf("second Signin: %v", err)
	}
	second, _ := notifier.lastOTP()

	if first.code == second.code {
		t.Skip("generated codes collided; cannot distinguish writers")
	}

	if _, err := engine.ConfirmSigninOTP(context.Background(), "a@x.com", first.code, ""); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("stale code err = %v, want ErrOTPInvalid", err)
	}
	if _, err := engine.ConfirmSigninOTP(context.Background(), "a@x.com", second.code, ""); err != nil {
		t.Fatalf("newest code rejected: %v", err)
	}
}

func TestSigninDeviceAlertAtMostOnce(t *testing.T) {
	store := newMockStore()
	notifier := &mockNotifier{}
	engine := newTestEngine(t, store, notifier)
	mustSignup(t, engine, "a@x.com", "1", "p1")

	for i := 0; i < 2; i++ {
		if _, err := engine.Signin(context.Background(), "a@x.com", "p1", "d1"); err != nil {
			t.Fatalf("Signin #%d: %v", i+1, err)
		}
	}
	if len(notifier.deviceAlerts) != 1 {
		t.Fatalf("alerts after repeat device = %d, want 1", len(notifier.deviceAlerts))
	}

	result, err := engine.Signin(context.Background(), "a@x.com", "p1", "d2")
	if err != nil {
		t.Fatalf("Signin d2: %v", err)
	}
	if !result.NewDevice {
		t.Fatal("second device not flagged new")
	}
	if len(notifier.deviceAlerts) != 2 {
		t.Fatalf("alerts after second device = %d, want 2", len(notifier.deviceAlerts))
	}
}

func TestSigninDeviceRegistrationRaceNonFatal(t *testing.T) {
	store := newMockStore()
	notifier := &mockNotifier{}
	engine := newTestEngine(t, store, notifier)
	mustSignup(t, engine, "a@x.com", "1", "p1")

	// Device ids are globally unique. Bind d1 to another user so the
	// existence check for user 1 reports unseen but the insert collides,
	// the same shape as losing a first-sight registration race.
	mustSignup(t, engine, "b@x.com", "2", "p2")
	if _, err := store.CreateDevice(context.Background(), 2, "d1"); err != nil {
		t.Fatalf("seed foreign device: %v", err)
	}

	result, err := engine.Signin(context.Background(), "a@x.com", "p1", "d1")
	if err != nil {
		t.Fatalf("Signin must survive the duplicate: %v", err)
	}
	if result.NewDevice {
		t.Fatal("race loser must not report a new device")
	}
	if len(notifier.deviceAlerts) != 0 {
		t.Fatalf("race loser sent %d alerts, want 0", len(notifier.deviceAlerts))
	}
}

func TestSigninNotifierFailureSuppressed(t *testing.T) {
	store := newMockStore()
	notifier := &mockNotifier{otpErr: errors.New("smtp down")}
	engine := newTestEngine(t, store, notifier)
	mustSignup(t, engine, "a@x.com", "1", "p1")

	result, err := engine.Signin(context.Background(), "a@x.com", "p1", "")
	if err != nil {
		t.Fatalf("Signin must not fail on notifier error: %v", err)
	}
	if !result.OTPPending {
		t.Fatal("expected OTP pending despite delivery failure")
	}

	// The challenge is stored, so the flow can still complete out of band.
	user, _ := store.GetUserByEmail(context.Background(), "a@x.com")
	if user.LoginOTP == "" {
		t.Fatal("challenge not stored after delivery failure")
	}
}
