package payment_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"matka-service/internal/config"
	"matka-service/internal/model"
	"matka-service/internal/service/payment"
	appErr "matka-service/pkg/errors"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newPaymentService(t *testing.T) (*gorm.DB, *payment.Service) {
	t.Helper()

	config.GlobalConfig = &config.Config{
		Limits: config.LimitsConfig{
			MinDeposit:  100,
			MaxDeposit:  30000,
			MinWithdraw: 100,
			MaxWithdraw: 30000,
		},
		Referral: config.ReferralConfig{
			SignupBonus: "50.00",
		},
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&model.User{},
		&model.Wallet{},
		&model.DepositRequest{},
		&model.WithdrawRequest{},
		&model.Transaction{},
		&model.ReferralCommission{},
	)
	if err != nil {
		t.Fatalf("failed to migrate models: %v", err)
	}

	return db, payment.NewService(db)
}

func seedUser(t *testing.T, db *gorm.DB, id int64, referralCode, referredBy string) {
	t.Helper()
	u := model.User{
		ID:           id,
		Username:     fmt.Sprintf("user%d", id),
		Mobile:       fmt.Sprintf("90000000%02d", id),
		PasswordHash: "x",
		ReferralCode: referralCode,
		ReferredBy:   referredBy,
		Status:       "active",
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user %d: %v", id, err)
	}
	if err := db.Create(&model.Wallet{UserID: id}).Error; err != nil {
		t.Fatalf("seed wallet %d: %v", id, err)
	}
}

func walletOf(t *testing.T, db *gorm.DB, userID int64) model.Wallet {
	t.Helper()
	var w model.Wallet
	if err := db.Where("user_id = ?", userID).First(&w).Error; err != nil {
		t.Fatalf("load wallet %d: %v", userID, err)
	}
	return w
}

func now(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
}

func TestDepositLifecycle(t *testing.T) {
	ctx := context.Background()
	db, svc := newPaymentService(t)
	seedUser(t, db, 1, "CODE1", "")

	deposit, err := svc.RequestDeposit(ctx, payment.DepositRequestInput{
		UserID:    1,
		Amount:    decimal.NewFromInt(500),
		UTRNumber: "123456789012",
		Now:       now(t),
	})
	if err != nil {
		t.Fatalf("request deposit: %v", err)
	}
	if deposit.Status != "pending" {
		t.Fatalf("expected pending, got %s", deposit.Status)
	}

	// The linked transaction is created pending alongside the request.
	var txn model.Transaction
	if err := db.Where("related_deposit_id = ?", deposit.ID).First(&txn).Error; err != nil {
		t.Fatalf("linked transaction missing: %v", err)
	}
	if txn.Status != "pending" || txn.Type != "deposit" {
		t.Fatalf("transaction mismatch: %+v", txn)
	}

	approved, err := svc.ApproveDeposit(ctx, deposit.ID, 9, now(t).Add(time.Hour))
	if err != nil {
		t.Fatalf("approve deposit: %v", err)
	}
	if approved.Status != "approved" || approved.ApprovedAt == nil {
		t.Fatalf("approval state mismatch: %+v", approved)
	}

	w := walletOf(t, db, 1)
	if !w.Balance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected balance 500, got %s", w.Balance)
	}

	if err := db.Where("related_deposit_id = ?", deposit.ID).First(&txn).Error; err != nil {
		t.Fatalf("reload transaction: %v", err)
	}
	if txn.Status != "approved" {
		t.Fatalf("transaction must follow approval: %+v", txn)
	}

	// Decisions are final.
	if _, err := svc.ApproveDeposit(ctx, deposit.ID, 9, now(t)); !errors.Is(err, appErr.ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
}

func TestDepositValidation(t *testing.T) {
	ctx := context.Background()
	db, svc := newPaymentService(t)
	seedUser(t, db, 1, "CODE1", "")

	_, err := svc.RequestDeposit(ctx, payment.DepositRequestInput{
		UserID:    1,
		Amount:    decimal.NewFromInt(50),
		UTRNumber: "123456789012",
		Now:       now(t),
	})
	if !errors.Is(err, appErr.ErrInvalidAmount) {
		t.Fatalf("below minimum: expected ErrInvalidAmount, got %v", err)
	}

	for _, utr := range []string{"12345", "12345678901a", "1234567890123"} {
		_, err := svc.RequestDeposit(ctx, payment.DepositRequestInput{
			UserID:    1,
			Amount:    decimal.NewFromInt(500),
			UTRNumber: utr,
			Now:       now(t),
		})
		if !errors.Is(err, appErr.ErrInvalidUTR) {
			t.Fatalf("utr %q: expected ErrInvalidUTR, got %v", utr, err)
		}
	}
}

func TestDuplicateUTRRejected(t *testing.T) {
	ctx := context.Background()
	db, svc := newPaymentService(t)
	seedUser(t, db, 1, "CODE1", "")
	seedUser(t, db, 2, "CODE2", "")

	input := payment.DepositRequestInput{
		UserID:    1,
		Amount:    decimal.NewFromInt(500),
		UTRNumber: "123456789012",
		Now:       now(t),
	}
	if _, err := svc.RequestDeposit(ctx, input); err != nil {
		t.Fatalf("first deposit: %v", err)
	}

	input.UserID = 2
	if _, err := svc.RequestDeposit(ctx, input); !errors.Is(err, appErr.ErrDuplicateUTR) {
		t.Fatalf("expected ErrDuplicateUTR, got %v", err)
	}
}

func TestRejectedUTRCanBeResubmitted(t *testing.T) {
	ctx := context.Background()
	db, svc := newPaymentService(t)
	seedUser(t, db, 1, "CODE1", "")

	input := payment.DepositRequestInput{
		UserID:    1,
		Amount:    decimal.NewFromInt(500),
		UTRNumber: "123456789012",
		Now:       now(t),
	}
	deposit, err := svc.RequestDeposit(ctx, input)
	if err != nil {
		t.Fatalf("request deposit: %v", err)
	}
	if _, err := svc.RejectDeposit(ctx, deposit.ID, 9, "unreadable slip", now(t)); err != nil {
		t.Fatalf("reject deposit: %v", err)
	}

	w := walletOf(t, db, 1)
	if !w.Balance.IsZero() {
		t.Fatalf("rejected deposit must not credit, got %s", w.Balance)
	}

	if _, err := svc.RequestDeposit(ctx, input); err != nil {
		t.Fatalf("resubmit after rejection: %v", err)
	}
}

func TestSignupBonusOnFirstApprovedDeposit(t *testing.T) {
	ctx := context.Background()
	db, svc := newPaymentService(t)
	seedUser(t, db, 1, "REF1", "")
	seedUser(t, db, 2, "CODE2", "REF1")

	first, err := svc.RequestDeposit(ctx, payment.DepositRequestInput{
		UserID:    2,
		Amount:    decimal.NewFromInt(500),
		UTRNumber: "111111111111",
		Now:       now(t),
	})
	if err != nil {
		t.Fatalf("request deposit: %v", err)
	}
	if _, err := svc.ApproveDeposit(ctx, first.ID, 9, now(t)); err != nil {
		t.Fatalf("approve first deposit: %v", err)
	}

	referrer := walletOf(t, db, 1)
	if !referrer.Bonus.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected signup bonus 50, got %s", referrer.Bonus)
	}

	var comm model.ReferralCommission
	if err := db.First(&comm).Error; err != nil {
		t.Fatalf("commission row missing: %v", err)
	}
	if comm.CommissionType != model.CommissionTypeSignup || comm.ReferrerID != 1 || comm.ReferredUserID != 2 {
		t.Fatalf("commission mismatch: %+v", comm)
	}

	// Second approved deposit pays nothing extra.
	second, err := svc.RequestDeposit(ctx, payment.DepositRequestInput{
		UserID:    2,
		Amount:    decimal.NewFromInt(700),
		UTRNumber: "222222222222",
		Now:       now(t),
	})
	if err != nil {
		t.Fatalf("second deposit: %v", err)
	}
	if _, err := svc.ApproveDeposit(ctx, second.ID, 9, now(t)); err != nil {
		t.Fatalf("approve second deposit: %v", err)
	}

	referrer = walletOf(t, db, 1)
	if !referrer.Bonus.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("bonus must stay 50, got %s", referrer.Bonus)
	}
}

func TestWithdrawDeductsAtRequestTime(t *testing.T) {
	ctx := context.Background()
	db, svc := newPaymentService(t)
	seedUser(t, db, 1, "CODE1", "")
	if err := db.Model(&model.Wallet{}).Where("user_id = ?", 1).
		Update("winnings", decimal.NewFromInt(1000)).Error; err != nil {
		t.Fatalf("seed winnings: %v", err)
	}

	withdraw, err := svc.RequestWithdraw(ctx, 1, decimal.NewFromInt(400), now(t))
	if err != nil {
		t.Fatalf("request withdraw: %v", err)
	}

	w := walletOf(t, db, 1)
	if !w.Winnings.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("winnings must be deducted at request, got %s", w.Winnings)
	}

	// Approval is a balance no-op.
	if _, err := svc.ApproveWithdraw(ctx, withdraw.ID, 9, now(t)); err != nil {
		t.Fatalf("approve withdraw: %v", err)
	}
	w = walletOf(t, db, 1)
	if !w.Winnings.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("approval must not touch winnings, got %s", w.Winnings)
	}
}

func TestWithdrawRejectRefundsWinnings(t *testing.T) {
	ctx := context.Background()
	db, svc := newPaymentService(t)
	seedUser(t, db, 1, "CODE1", "")
	if err := db.Model(&model.Wallet{}).Where("user_id = ?", 1).
		Update("winnings", decimal.NewFromInt(1000)).Error; err != nil {
		t.Fatalf("seed winnings: %v", err)
	}

	withdraw, err := svc.RequestWithdraw(ctx, 1, decimal.NewFromInt(400), now(t))
	if err != nil {
		t.Fatalf("request withdraw: %v", err)
	}
	if _, err := svc.RejectWithdraw(ctx, withdraw.ID, 9, now(t)); err != nil {
		t.Fatalf("reject withdraw: %v", err)
	}

	w := walletOf(t, db, 1)
	if !w.Winnings.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("rejection must refund winnings, got %s", w.Winnings)
	}
}

func TestWithdrawOnlyFromWinnings(t *testing.T) {
	ctx := context.Background()
	db, svc := newPaymentService(t)
	seedUser(t, db, 1, "CODE1", "")

	// Deposit balance alone is not withdrawable.
	if err := db.Model(&model.Wallet{}).Where("user_id = ?", 1).
		Update("balance", decimal.NewFromInt(5000)).Error; err != nil {
		t.Fatalf("seed balance: %v", err)
	}

	_, err := svc.RequestWithdraw(ctx, 1, decimal.NewFromInt(400), now(t))
	if !errors.Is(err, appErr.ErrInsufficientWinnings) {
		t.Fatalf("expected ErrInsufficientWinnings, got %v", err)
	}
}
