package admin_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"matka-service/internal/config"
	"matka-service/internal/model"
	"matka-service/internal/service/admin"
	appErr "matka-service/pkg/errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newAdminService(t *testing.T) (*gorm.DB, *admin.Service) {
	t.Helper()

	config.GlobalConfig = &config.Config{
		JWT: config.JWTConfig{Secret: "test-secret", Expire: 24},
		Admin: config.AdminSeedConfig{
			DefaultUsername: "admin",
			DefaultPassword: "admin123",
		},
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.Admin{}); err != nil {
		t.Fatalf("failed to migrate models: %v", err)
	}

	return db, admin.NewService(db)
}

func TestEnsureDefaultAdminIdempotent(t *testing.T) {
	ctx := context.Background()
	db, svc := newAdminService(t)

	if err := svc.EnsureDefaultAdmin(ctx); err != nil {
		t.Fatalf("first bootstrap failed: %v", err)
	}
	if err := svc.EnsureDefaultAdmin(ctx); err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}

	var count int64
	if err := db.Model(&model.Admin{}).Where("username = ?", "admin").Count(&count).Error; err != nil {
		t.Fatalf("count admins: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one seeded admin, got %d", count)
	}
}

func TestAdminLogin(t *testing.T) {
	ctx := context.Background()
	db, svc := newAdminService(t)

	if err := svc.EnsureDefaultAdmin(ctx); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}

	result, err := svc.Login(ctx, "admin", "admin123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if result.Token == "" || result.Admin.Username != "admin" {
		t.Fatalf("unexpected login result: %+v", result)
	}

	var stored model.Admin
	if err := db.Where("username = ?", "admin").First(&stored).Error; err != nil {
		t.Fatalf("load admin: %v", err)
	}
	if stored.LastLoginAt == nil {
		t.Fatal("last login timestamp not recorded")
	}

	if _, err := svc.Login(ctx, "admin", "wrongpass"); !errors.Is(err, appErr.ErrInvalidAdminPassword) {
		t.Fatalf("expected ErrInvalidAdminPassword, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "admin123"); !errors.Is(err, appErr.ErrAdminNotFound) {
		t.Fatalf("expected ErrAdminNotFound, got %v", err)
	}

	if err := db.Model(&model.Admin{}).Where("username = ?", "admin").Update("status", "disabled").Error; err != nil {
		t.Fatalf("disable admin: %v", err)
	}
	if _, err := svc.Login(ctx, "admin", "admin123"); !errors.Is(err, appErr.ErrAdminDisabled) {
		t.Fatalf("expected ErrAdminDisabled, got %v", err)
	}
}
