package bet_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"matka-service/internal/config"
	"matka-service/internal/model"
	"matka-service/internal/service/bet"
	"matka-service/internal/service/timing"
	appErr "matka-service/pkg/errors"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newBetService(t *testing.T) (*gorm.DB, *bet.Service) {
	t.Helper()

	config.GlobalConfig = &config.Config{
		Limits: config.LimitsConfig{
			MinBet: 10,
			MaxBet: 10000,
		},
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.Wallet{}, &model.Bet{}); err != nil {
		t.Fatalf("failed to migrate models: %v", err)
	}

	timingSvc, err := timing.NewService(config.GamesConfig{
		Timezone: "UTC",
		Simple: []config.SimpleGame{
			{Name: "JAIPUR KING", Open: "09:00", Close: "17:00"},
		},
	})
	if err != nil {
		t.Fatalf("build timing service: %v", err)
	}

	return db, bet.NewService(db, timingSvc)
}

func seedWallet(t *testing.T, db *gorm.DB, userID int64, balance int64) {
	t.Helper()
	w := model.Wallet{UserID: userID, Balance: decimal.NewFromInt(balance)}
	if err := db.Create(&w).Error; err != nil {
		t.Fatalf("seed wallet failed: %v", err)
	}
}

func noon(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
}

func TestPlaceBet(t *testing.T) {
	ctx := context.Background()
	db, svc := newBetService(t)
	seedWallet(t, db, 1, 500)

	result, err := svc.Place(ctx, bet.PlaceRequest{
		UserID:  1,
		Game:    "jaipur king",
		BetType: model.BetTypeNumber,
		Number:  42,
		Amount:  decimal.NewFromInt(100),
		Now:     noon(t),
	})
	if err != nil {
		t.Fatalf("place bet failed: %v", err)
	}
	if result.BetID == 0 {
		t.Fatalf("expected bet id, got %+v", result)
	}
	if !result.RemainingTotal.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("expected remaining 400, got %s", result.RemainingTotal)
	}

	var stored model.Bet
	if err := db.First(&stored, result.BetID).Error; err != nil {
		t.Fatalf("load bet: %v", err)
	}
	if stored.GameName != "JAIPUR KING" {
		t.Fatalf("game name must be normalized, got %q", stored.GameName)
	}
	if stored.Status != model.BetStatusPending {
		t.Fatalf("expected pending, got %s", stored.Status)
	}
	if stored.SessionStart == nil || stored.SessionStart.Hour() != 9 {
		t.Fatalf("session start mismatch: %v", stored.SessionStart)
	}
	if stored.SessionEnd == nil || stored.SessionEnd.Hour() != 17 {
		t.Fatalf("session end mismatch: %v", stored.SessionEnd)
	}
}

func TestPlaceBetOnLockedGame(t *testing.T) {
	ctx := context.Background()
	db, svc := newBetService(t)
	seedWallet(t, db, 1, 500)

	afterClose := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	_, err := svc.Place(ctx, bet.PlaceRequest{
		UserID:  1,
		Game:    "JAIPUR KING",
		BetType: model.BetTypeNumber,
		Number:  42,
		Amount:  decimal.NewFromInt(100),
		Now:     afterClose,
	})
	if !errors.Is(err, appErr.ErrGameLocked) {
		t.Fatalf("expected ErrGameLocked, got %v", err)
	}
}

func TestPlaceBetInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	db, svc := newBetService(t)
	seedWallet(t, db, 1, 50)

	_, err := svc.Place(ctx, bet.PlaceRequest{
		UserID:  1,
		Game:    "JAIPUR KING",
		BetType: model.BetTypeNumber,
		Number:  42,
		Amount:  decimal.NewFromInt(100),
		Now:     noon(t),
	})
	if !errors.Is(err, appErr.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	var count int64
	if err := db.Model(&model.Bet{}).Count(&count).Error; err != nil {
		t.Fatalf("count bets: %v", err)
	}
	if count != 0 {
		t.Fatalf("no bet row expected on failure, got %d", count)
	}
}

func TestPlaceBetValidation(t *testing.T) {
	ctx := context.Background()
	db, svc := newBetService(t)
	seedWallet(t, db, 1, 500)

	cases := []struct {
		name    string
		betType string
		number  int
		amount  int64
		wantErr error
	}{
		{"below min", model.BetTypeNumber, 42, 5, appErr.ErrInvalidBetAmount},
		{"above max", model.BetTypeNumber, 42, 20000, appErr.ErrInvalidBetAmount},
		{"number out of range", model.BetTypeNumber, 101, 100, appErr.ErrInvalidBetType},
		{"digit out of range", model.BetTypeAndar, 10, 100, appErr.ErrInvalidBetType},
		{"unknown type", "triple", 1, 100, appErr.ErrInvalidBetType},
	}
	for _, tc := range cases {
		_, err := svc.Place(ctx, bet.PlaceRequest{
			UserID:  1,
			Game:    "JAIPUR KING",
			BetType: tc.betType,
			Number:  tc.number,
			Amount:  decimal.NewFromInt(tc.amount),
			Now:     noon(t),
		})
		if !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.wantErr, err)
		}
	}
}

func TestPlaceBetUnknownGame(t *testing.T) {
	ctx := context.Background()
	db, svc := newBetService(t)
	seedWallet(t, db, 1, 500)

	_, err := svc.Place(ctx, bet.PlaceRequest{
		UserID:  1,
		Game:    "NO SUCH GAME",
		BetType: model.BetTypeNumber,
		Number:  1,
		Amount:  decimal.NewFromInt(100),
		Now:     noon(t),
	})
	if !errors.Is(err, appErr.ErrInvalidGame) {
		t.Fatalf("expected ErrInvalidGame, got %v", err)
	}
}

func TestCurrentSessionAndHistory(t *testing.T) {
	ctx := context.Background()
	db, svc := newBetService(t)
	seedWallet(t, db, 1, 1000)

	now := noon(t)
	for i := 0; i < 3; i++ {
		_, err := svc.Place(ctx, bet.PlaceRequest{
			UserID:  1,
			Game:    "JAIPUR KING",
			BetType: model.BetTypeNumber,
			Number:  10 + i,
			Amount:  decimal.NewFromInt(50),
			Now:     now.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("place bet %d: %v", i, err)
		}
	}

	current, err := svc.CurrentSession(ctx, 1, now.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("current session: %v", err)
	}
	if len(current) != 3 {
		t.Fatalf("expected 3 session bets, got %d", len(current))
	}

	history, err := svc.History(ctx, 1, now.AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 history bets, got %d", len(history))
	}
}

func TestAdminSessionRecords(t *testing.T) {
	ctx := context.Background()
	db, svc := newBetService(t)
	seedWallet(t, db, 1, 1000)

	now := noon(t)
	if _, err := svc.Place(ctx, bet.PlaceRequest{
		UserID:  1,
		Game:    "JAIPUR KING",
		BetType: model.BetTypeNumber,
		Number:  7,
		Amount:  decimal.NewFromInt(100),
		Now:     now,
	}); err != nil {
		t.Fatalf("place bet: %v", err)
	}

	// A bet from yesterday's window.
	yesterday := model.Bet{
		UserID:    1,
		GameName:  "JAIPUR KING",
		BetType:   model.BetTypeNumber,
		Number:    8,
		Amount:    decimal.NewFromInt(30),
		Status:    model.BetStatusPending,
		Payout:    decimal.Zero,
		CreatedAt: now.AddDate(0, 0, -1),
	}
	if err := db.Create(&yesterday).Error; err != nil {
		t.Fatalf("seed old bet: %v", err)
	}

	records, err := svc.AdminSessionRecords(ctx, "JAIPUR KING", now)
	if err != nil {
		t.Fatalf("session records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected current+previous, got %d", len(records))
	}
	if records[0].Type != "current" || len(records[0].Bets) != 1 || records[0].BetsSum != "100.00" {
		t.Fatalf("current record mismatch: %+v", records[0])
	}
	if records[1].Type != "previous" || len(records[1].Bets) != 1 || records[1].BetsSum != "30.00" {
		t.Fatalf("previous record mismatch: %+v", records[1])
	}
}
