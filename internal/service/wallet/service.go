package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"matka-service/internal/model"
	appErr "matka-service/pkg/errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubBalance string

const (
	SubBalanceDeposit  SubBalance = "balance"
	SubBalanceBonus    SubBalance = "bonus"
	SubBalanceWinnings SubBalance = "winnings"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Get(ctx context.Context, userID int64) (*model.Wallet, error) {
	var wallet model.Wallet
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return &model.Wallet{UserID: userID}, nil
		}
		return nil, err
	}
	return &wallet, nil
}

// Debit draws `amount` from the user's sub-balances in the fixed
// priority order balance -> winnings -> bonus. It either covers the
// full amount or fails without touching any sub-balance.
func (s *Service) Debit(ctx context.Context, userID int64, amount decimal.Decimal) (*model.Wallet, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, appErr.ErrInvalidAmount
	}

	var wallet *model.Wallet
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		wallet, err = lockWallet(tx, userID)
		if err != nil {
			return err
		}
		if err := ApplyDebit(wallet, amount); err != nil {
			return err
		}
		wallet.UpdatedAt = time.Now()
		return tx.Save(wallet).Error
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// ApplyDebit mutates the in-memory wallet only; callers hold the row
// lock and persist. The wallet is untouched on failure.
func ApplyDebit(w *model.Wallet, amount decimal.Decimal) error {
	if w.Total().LessThan(amount) {
		return appErr.ErrInsufficientBalance
	}

	left := amount
	for _, sub := range []*decimal.Decimal{&w.Balance, &w.Winnings, &w.Bonus} {
		if left.IsZero() {
			break
		}
		if sub.GreaterThanOrEqual(left) {
			*sub = sub.Sub(left)
			left = decimal.Zero
		} else {
			left = left.Sub(*sub)
			*sub = decimal.Zero
		}
	}
	return nil
}

func (s *Service) Credit(ctx context.Context, userID int64, sub SubBalance, amount decimal.Decimal) (*model.Wallet, error) {
	var wallet *model.Wallet
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		wallet, err = CreditTx(tx, userID, sub, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// CreditTx credits a named sub-balance inside an existing transaction,
// so settlement payouts and commissions commit atomically with their
// bet-state transitions.
func CreditTx(tx *gorm.DB, userID int64, sub SubBalance, amount decimal.Decimal) (*model.Wallet, error) {
	if amount.LessThan(decimal.Zero) {
		return nil, appErr.ErrInvalidAmount
	}
	wallet, err := lockWallet(tx, userID)
	if err != nil {
		return nil, err
	}
	if err := ApplyCredit(wallet, sub, amount); err != nil {
		return nil, err
	}
	wallet.UpdatedAt = time.Now()
	if err := tx.Save(wallet).Error; err != nil {
		return nil, err
	}
	return wallet, nil
}

func ApplyCredit(w *model.Wallet, sub SubBalance, amount decimal.Decimal) error {
	switch sub {
	case SubBalanceDeposit:
		w.Balance = w.Balance.Add(amount)
	case SubBalanceBonus:
		w.Bonus = w.Bonus.Add(amount)
	case SubBalanceWinnings:
		w.Winnings = w.Winnings.Add(amount)
	default:
		return fmt.Errorf("%w: unknown sub-balance %q", appErr.ErrInvalidAmount, sub)
	}
	return nil
}

type AdjustRequest struct {
	Balance  decimal.Decimal
	Bonus    decimal.Decimal
	Winnings decimal.Decimal
	Reason   string
	AdminID  int64
}

// AdminAdjust is the only entry point that overwrites all three
// sub-balances. The before/after audit row is written in the same
// transaction, before the wallet mutation.
func (s *Service) AdminAdjust(ctx context.Context, userID int64, req AdjustRequest) (*model.Wallet, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, appErr.ErrReasonRequired
	}
	if req.Balance.IsNegative() || req.Bonus.IsNegative() || req.Winnings.IsNegative() {
		return nil, appErr.ErrNegativeBalance
	}

	var wallet *model.Wallet
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		wallet, err = lockWallet(tx, userID)
		if err != nil {
			return err
		}

		audit := model.WalletAuditLog{
			UserID:      userID,
			AdminID:     req.AdminID,
			OldBalance:  wallet.Balance,
			NewBalance:  req.Balance,
			OldBonus:    wallet.Bonus,
			NewBonus:    req.Bonus,
			OldWinnings: wallet.Winnings,
			NewWinnings: req.Winnings,
			Reason:      strings.TrimSpace(req.Reason),
			CreatedAt:   time.Now(),
		}
		if err := tx.Create(&audit).Error; err != nil {
			return err
		}

		wallet.Balance = req.Balance
		wallet.Bonus = req.Bonus
		wallet.Winnings = req.Winnings
		wallet.UpdatedAt = time.Now()
		return tx.Save(wallet).Error
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

func (s *Service) AuditTrail(ctx context.Context, userID int64) ([]model.WalletAuditLog, error) {
	var logs []model.WalletAuditLog
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, err
}

func lockWallet(tx *gorm.DB, userID int64) (*model.Wallet, error) {
	wallet := &model.Wallet{}
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(wallet).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
		wallet = &model.Wallet{UserID: userID}
		if err := tx.Create(wallet).Error; err != nil {
			return nil, err
		}
	}
	return wallet, nil
}
