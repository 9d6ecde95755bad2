package auth_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"matka-service/internal/config"
	"matka-service/internal/model"
	"matka-service/internal/service/auth"
	appErr "matka-service/pkg/errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newAuthService(t *testing.T) (*gorm.DB, *auth.Service) {
	t.Helper()

	config.GlobalConfig = &config.Config{
		JWT: config.JWTConfig{Secret: "test-secret", Expire: 24},
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Wallet{}); err != nil {
		t.Fatalf("failed to migrate models: %v", err)
	}

	return db, auth.NewService(db)
}

func TestRegisterCreatesUserAndWallet(t *testing.T) {
	ctx := context.Background()
	db, svc := newAuthService(t)

	user, err := svc.Register(ctx, auth.RegisterRequest{
		Username: "ramesh",
		Mobile:   "9876543210",
		Email:    "ramesh@example.com",
		Password: "secret12",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.ID == 0 || user.Status != "active" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if len(user.ReferralCode) != 8 {
		t.Fatalf("expected 8-char referral code, got %q", user.ReferralCode)
	}
	if user.PasswordHash == "secret12" {
		t.Fatal("password stored in plain text")
	}

	var w model.Wallet
	if err := db.Where("user_id = ?", user.ID).First(&w).Error; err != nil {
		t.Fatalf("wallet not created: %v", err)
	}
	if !w.Balance.IsZero() || !w.Bonus.IsZero() || !w.Winnings.IsZero() {
		t.Fatalf("new wallet must start empty: %+v", w)
	}
}

func TestRegisterWithReferral(t *testing.T) {
	ctx := context.Background()
	_, svc := newAuthService(t)

	referrer, err := svc.Register(ctx, auth.RegisterRequest{
		Username: "referrer",
		Mobile:   "9000000001",
		Password: "secret12",
	})
	if err != nil {
		t.Fatalf("register referrer: %v", err)
	}

	// Codes are stored upper case; the input may arrive in any case.
	referred, err := svc.Register(ctx, auth.RegisterRequest{
		Username:     "referred",
		Mobile:       "9000000002",
		Password:     "secret12",
		ReferralCode: referrer.ReferralCode,
	})
	if err != nil {
		t.Fatalf("register referred: %v", err)
	}
	if referred.ReferredBy != referrer.ReferralCode {
		t.Fatalf("expected referred_by %q, got %q", referrer.ReferralCode, referred.ReferredBy)
	}

	_, err = svc.Register(ctx, auth.RegisterRequest{
		Username:     "stranger",
		Mobile:       "9000000003",
		Password:     "secret12",
		ReferralCode: "NOSUCHCD",
	})
	if !errors.Is(err, appErr.ErrReferralCodeNotFound) {
		t.Fatalf("expected ErrReferralCodeNotFound, got %v", err)
	}
}

func TestRegisterDuplicates(t *testing.T) {
	ctx := context.Background()
	_, svc := newAuthService(t)

	_, err := svc.Register(ctx, auth.RegisterRequest{
		Username: "ramesh",
		Mobile:   "9876543210",
		Password: "secret12",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	_, err = svc.Register(ctx, auth.RegisterRequest{
		Username: "ramesh",
		Mobile:   "9876543211",
		Password: "secret12",
	})
	if !errors.Is(err, appErr.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}

	_, err = svc.Register(ctx, auth.RegisterRequest{
		Username: "suresh",
		Mobile:   "9876543210",
		Password: "secret12",
	})
	if !errors.Is(err, appErr.ErrMobileTaken) {
		t.Fatalf("expected ErrMobileTaken, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	_, svc := newAuthService(t)

	cases := []struct {
		name string
		req  auth.RegisterRequest
	}{
		{"empty username", auth.RegisterRequest{Mobile: "9876543210", Password: "secret12"}},
		{"short mobile", auth.RegisterRequest{Username: "a", Mobile: "98765", Password: "secret12"}},
		{"mobile with letters", auth.RegisterRequest{Username: "a", Mobile: "98765x3210", Password: "secret12"}},
		{"short password", auth.RegisterRequest{Username: "a", Mobile: "9876543210", Password: "12345"}},
	}
	for _, tc := range cases {
		if _, err := svc.Register(ctx, tc.req); !errors.Is(err, appErr.ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", tc.name, err)
		}
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	db, svc := newAuthService(t)

	user, err := svc.Register(ctx, auth.RegisterRequest{
		Username: "ramesh",
		Mobile:   "9876543210",
		Password: "secret12",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	result, err := svc.Login(ctx, "9876543210", "secret12")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if result.Token == "" || result.User.ID != user.ID {
		t.Fatalf("unexpected login result: %+v", result)
	}

	if _, err := svc.Login(ctx, "9876543210", "wrongpass"); !errors.Is(err, appErr.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for bad password, got %v", err)
	}
	if _, err := svc.Login(ctx, "1111111111", "secret12"); !errors.Is(err, appErr.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown mobile, got %v", err)
	}

	if err := db.Model(&model.User{}).Where("id = ?", user.ID).Update("status", "blocked").Error; err != nil {
		t.Fatalf("block user: %v", err)
	}
	if _, err := svc.Login(ctx, "9876543210", "secret12"); !errors.Is(err, appErr.ErrUserBlocked) {
		t.Fatalf("expected ErrUserBlocked, got %v", err)
	}
}
