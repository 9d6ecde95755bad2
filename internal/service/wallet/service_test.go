package wallet_test

import (
	"context"
	"fmt"
	"testing"

	"matka-service/internal/model"
	"matka-service/internal/service/wallet"
	appErr "matka-service/pkg/errors"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newWalletService(t *testing.T) (*gorm.DB, *wallet.Service) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.Wallet{}, &model.WalletAuditLog{}); err != nil {
		t.Fatalf("failed to migrate wallet models: %v", err)
	}

	return db, wallet.NewService(db)
}

func seedWallet(t *testing.T, db *gorm.DB, userID int64, balance, winnings, bonus int64) {
	t.Helper()
	w := model.Wallet{
		UserID:   userID,
		Balance:  decimal.NewFromInt(balance),
		Winnings: decimal.NewFromInt(winnings),
		Bonus:    decimal.NewFromInt(bonus),
	}
	if err := db.Create(&w).Error; err != nil {
		t.Fatalf("seed wallet failed: %v", err)
	}
}

func TestDebitPriorityOrder(t *testing.T) {
	ctx := context.Background()
	db, svc := newWalletService(t)
	seedWallet(t, db, 1, 5, 3, 100)

	// 5 from balance, then 1 from winnings; bonus untouched.
	w, err := svc.Debit(ctx, 1, decimal.NewFromInt(6))
	if err != nil {
		t.Fatalf("debit failed: %v", err)
	}
	if !w.Balance.IsZero() {
		t.Fatalf("expected balance 0, got %s", w.Balance)
	}
	if !w.Winnings.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected winnings 2, got %s", w.Winnings)
	}
	if !w.Bonus.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected bonus 100, got %s", w.Bonus)
	}
}

func TestDebitDrainsIntoBonus(t *testing.T) {
	ctx := context.Background()
	db, svc := newWalletService(t)
	seedWallet(t, db, 1, 10, 5, 20)

	w, err := svc.Debit(ctx, 1, decimal.NewFromInt(18))
	if err != nil {
		t.Fatalf("debit failed: %v", err)
	}
	if !w.Balance.IsZero() || !w.Winnings.IsZero() {
		t.Fatalf("expected balance and winnings drained, got %s/%s", w.Balance, w.Winnings)
	}
	if !w.Bonus.Equal(decimal.NewFromInt(17)) {
		t.Fatalf("expected bonus 17, got %s", w.Bonus)
	}
}

func TestDebitInsufficientLeavesWalletUntouched(t *testing.T) {
	ctx := context.Background()
	db, svc := newWalletService(t)
	seedWallet(t, db, 1, 5, 3, 1)

	_, err := svc.Debit(ctx, 1, decimal.NewFromInt(10))
	if err != appErr.ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	w, err := svc.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if !w.Balance.Equal(decimal.NewFromInt(5)) ||
		!w.Winnings.Equal(decimal.NewFromInt(3)) ||
		!w.Bonus.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("wallet mutated on failed debit: %+v", w)
	}
}

func TestDebitRejectsNonPositiveAmount(t *testing.T) {
	ctx := context.Background()
	db, svc := newWalletService(t)
	seedWallet(t, db, 1, 100, 0, 0)

	if _, err := svc.Debit(ctx, 1, decimal.Zero); err != appErr.ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestCreditSubBalances(t *testing.T) {
	ctx := context.Background()
	_, svc := newWalletService(t)

	// Credit creates the wallet row on first touch.
	if _, err := svc.Credit(ctx, 7, wallet.SubBalanceDeposit, decimal.NewFromInt(50)); err != nil {
		t.Fatalf("credit balance: %v", err)
	}
	if _, err := svc.Credit(ctx, 7, wallet.SubBalanceWinnings, decimal.NewFromInt(30)); err != nil {
		t.Fatalf("credit winnings: %v", err)
	}
	w, err := svc.Credit(ctx, 7, wallet.SubBalanceBonus, decimal.NewFromInt(20))
	if err != nil {
		t.Fatalf("credit bonus: %v", err)
	}

	if !w.Balance.Equal(decimal.NewFromInt(50)) ||
		!w.Winnings.Equal(decimal.NewFromInt(30)) ||
		!w.Bonus.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("unexpected wallet after credits: %+v", w)
	}
	if !w.Total().Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected total 100, got %s", w.Total())
	}
}

func TestAdminAdjustRequiresReason(t *testing.T) {
	ctx := context.Background()
	db, svc := newWalletService(t)
	seedWallet(t, db, 1, 10, 0, 0)

	_, err := svc.AdminAdjust(ctx, 1, wallet.AdjustRequest{
		Balance: decimal.NewFromInt(50),
		AdminID: 9,
	})
	if err != appErr.ErrReasonRequired {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}

	_, err = svc.AdminAdjust(ctx, 1, wallet.AdjustRequest{
		Balance: decimal.NewFromInt(-1),
		Reason:  "oops",
		AdminID: 9,
	})
	if err != appErr.ErrNegativeBalance {
		t.Fatalf("expected ErrNegativeBalance, got %v", err)
	}
}

func TestAdminAdjustWritesAudit(t *testing.T) {
	ctx := context.Background()
	db, svc := newWalletService(t)
	seedWallet(t, db, 1, 10, 20, 30)

	w, err := svc.AdminAdjust(ctx, 1, wallet.AdjustRequest{
		Balance:  decimal.NewFromInt(100),
		Bonus:    decimal.NewFromInt(5),
		Winnings: decimal.Zero,
		Reason:   "manual correction",
		AdminID:  9,
	})
	if err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	if !w.Balance.Equal(decimal.NewFromInt(100)) || !w.Bonus.Equal(decimal.NewFromInt(5)) || !w.Winnings.IsZero() {
		t.Fatalf("unexpected wallet after adjust: %+v", w)
	}

	logs, err := svc.AuditTrail(ctx, 1)
	if err != nil {
		t.Fatalf("audit trail: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected one audit row, got %d", len(logs))
	}
	entry := logs[0]
	if !entry.OldBalance.Equal(decimal.NewFromInt(10)) || !entry.NewBalance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("audit balance mismatch: %+v", entry)
	}
	if !entry.OldWinnings.Equal(decimal.NewFromInt(20)) || !entry.NewWinnings.IsZero() {
		t.Fatalf("audit winnings mismatch: %+v", entry)
	}
	if entry.AdminID != 9 || entry.Reason != "manual correction" {
		t.Fatalf("audit metadata mismatch: %+v", entry)
	}
}
