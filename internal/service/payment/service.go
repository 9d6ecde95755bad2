package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"matka-service/internal/config"
	"matka-service/internal/model"
	"matka-service/internal/service/wallet"
	appErr "matka-service/pkg/errors"
	"matka-service/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type DepositRequestInput struct {
	UserID        int64
	Amount        decimal.Decimal
	UTRNumber     string
	PaymentMethod string
	Now           time.Time
}

// RequestDeposit records a pending deposit; funds are credited only on
// operator approval.
func (s *Service) RequestDeposit(ctx context.Context, in DepositRequestInput) (*model.DepositRequest, error) {
	limits := config.GlobalConfig.Limits
	if in.Amount.LessThan(decimal.NewFromInt(limits.MinDeposit)) ||
		in.Amount.GreaterThan(decimal.NewFromInt(limits.MaxDeposit)) {
		return nil, fmt.Errorf("%w: allowed %d to %d", appErr.ErrInvalidAmount, limits.MinDeposit, limits.MaxDeposit)
	}

	utr := strings.TrimSpace(in.UTRNumber)
	if len(utr) != 12 || !isDigits(utr) {
		return nil, appErr.ErrInvalidUTR
	}

	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		method = "UPI"
	}

	var deposit *model.DepositRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dup int64
		if err := tx.Model(&model.DepositRequest{}).
			Where("utr_number = ? AND status IN ?", utr, []string{"pending", "approved"}).
			Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return appErr.ErrDuplicateUTR
		}

		deposit = &model.DepositRequest{
			UserID:        in.UserID,
			Amount:        in.Amount,
			UTRNumber:     utr,
			PaymentMethod: method,
			Status:        "pending",
			CreatedAt:     in.Now,
		}
		if err := tx.Create(deposit).Error; err != nil {
			return err
		}

		txn := model.Transaction{
			UserID:           in.UserID,
			Type:             "deposit",
			Amount:           in.Amount,
			Status:           "pending",
			Note:             fmt.Sprintf("Deposit request - UTR: %s", utr),
			RelatedDepositID: &deposit.ID,
			CreatedAt:        in.Now,
		}
		return tx.Create(&txn).Error
	})
	if err != nil {
		return nil, err
	}
	return deposit, nil
}

// ApproveDeposit credits the balance and, on the user's first approved
// deposit, pays a one-time signup bonus to the referrer.
func (s *Service) ApproveDeposit(ctx context.Context, depositID, adminID int64, now time.Time) (*model.DepositRequest, error) {
	var deposit model.DepositRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&deposit, depositID).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return appErr.ErrDepositNotFound
			}
			return err
		}
		if deposit.Status != "pending" {
			return appErr.ErrAlreadyProcessed
		}

		deposit.Status = "approved"
		deposit.ApprovedAt = &now
		if err := tx.Save(&deposit).Error; err != nil {
			return err
		}

		if _, err := wallet.CreditTx(tx, deposit.UserID, wallet.SubBalanceDeposit, deposit.Amount); err != nil {
			return err
		}

		if err := s.paySignupBonus(tx, deposit, now); err != nil {
			return err
		}

		return tx.Model(&model.Transaction{}).
			Where("related_deposit_id = ? AND status = ?", deposit.ID, "pending").
			Updates(map[string]interface{}{
				"status": "approved",
				"note":   fmt.Sprintf("Deposit approved - UTR: %s", deposit.UTRNumber),
			}).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("deposit approved",
		zap.Int64("depositId", deposit.ID),
		zap.Int64("userId", deposit.UserID),
		zap.Int64("adminId", adminID),
	)
	return &deposit, nil
}

func (s *Service) paySignupBonus(tx *gorm.DB, deposit model.DepositRequest, now time.Time) error {
	var user model.User
	if err := tx.First(&user, deposit.UserID).Error; err != nil {
		return err
	}
	if user.ReferredBy == "" {
		return nil
	}

	var earlier int64
	if err := tx.Model(&model.DepositRequest{}).
		Where("user_id = ? AND status = ? AND id <> ?", user.ID, "approved", deposit.ID).
		Count(&earlier).Error; err != nil {
		return err
	}
	if earlier > 0 {
		return nil
	}

	var alreadyPaid int64
	if err := tx.Model(&model.ReferralCommission{}).
		Where("referred_user_id = ? AND commission_type = ?", user.ID, model.CommissionTypeSignup).
		Count(&alreadyPaid).Error; err != nil {
		return err
	}
	if alreadyPaid > 0 {
		return nil
	}

	var referrer model.User
	err := tx.Where("referral_code = ?", user.ReferredBy).First(&referrer).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}

	bonus, err := decimal.NewFromString(config.GlobalConfig.Referral.SignupBonus)
	if err != nil {
		return fmt.Errorf("invalid signup bonus: %w", err)
	}
	if _, err := wallet.CreditTx(tx, referrer.ID, wallet.SubBalanceBonus, bonus); err != nil {
		return err
	}

	return tx.Create(&model.ReferralCommission{
		ReferrerID:     referrer.ID,
		ReferredUserID: user.ID,
		Commission:     bonus,
		CommissionType: model.CommissionTypeSignup,
		CreatedAt:      now,
	}).Error
}

func (s *Service) RejectDeposit(ctx context.Context, depositID, adminID int64, note string, now time.Time) (*model.DepositRequest, error) {
	var deposit model.DepositRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&deposit, depositID).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return appErr.ErrDepositNotFound
			}
			return err
		}
		if deposit.Status != "pending" {
			return appErr.ErrAlreadyProcessed
		}

		deposit.Status = "rejected"
		deposit.AdminNote = note
		if err := tx.Save(&deposit).Error; err != nil {
			return err
		}

		return tx.Model(&model.Transaction{}).
			Where("related_deposit_id = ? AND status = ?", deposit.ID, "pending").
			Updates(map[string]interface{}{
				"status": "rejected",
				"note":   fmt.Sprintf("Deposit rejected: %s", note),
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return &deposit, nil
}

// RequestWithdraw deducts from winnings at request time. Approval is a
// balance no-op; rejection refunds.
func (s *Service) RequestWithdraw(ctx context.Context, userID int64, amount decimal.Decimal, now time.Time) (*model.WithdrawRequest, error) {
	limits := config.GlobalConfig.Limits
	if amount.LessThan(decimal.NewFromInt(limits.MinWithdraw)) ||
		amount.GreaterThan(decimal.NewFromInt(limits.MaxWithdraw)) {
		return nil, fmt.Errorf("%w: allowed %d to %d", appErr.ErrInvalidAmount, limits.MinWithdraw, limits.MaxWithdraw)
	}

	var withdraw *model.WithdrawRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w := &model.Wallet{}
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(w).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return appErr.ErrInsufficientWinnings
			}
			return err
		}
		if w.Winnings.LessThan(amount) {
			return appErr.ErrInsufficientWinnings
		}
		w.Winnings = w.Winnings.Sub(amount)
		w.UpdatedAt = now
		if err := tx.Save(w).Error; err != nil {
			return err
		}

		withdraw = &model.WithdrawRequest{
			UserID:    userID,
			Amount:    amount,
			Status:    "pending",
			CreatedAt: now,
		}
		if err := tx.Create(withdraw).Error; err != nil {
			return err
		}

		txn := model.Transaction{
			UserID:            userID,
			Type:              "withdraw",
			Amount:            amount,
			Status:            "pending",
			Note:              "Withdraw request submitted",
			RelatedWithdrawID: &withdraw.ID,
			CreatedAt:         now,
		}
		return tx.Create(&txn).Error
	})
	if err != nil {
		return nil, err
	}
	return withdraw, nil
}

func (s *Service) ApproveWithdraw(ctx context.Context, withdrawID, adminID int64, now time.Time) (*model.WithdrawRequest, error) {
	var withdraw model.WithdrawRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&withdraw, withdrawID).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return appErr.ErrWithdrawNotFound
			}
			return err
		}
		if withdraw.Status != "pending" {
			return appErr.ErrAlreadyProcessed
		}

		// Winnings were deducted at request time.
		withdraw.Status = "approved"
		withdraw.ApprovedAt = &now
		if err := tx.Save(&withdraw).Error; err != nil {
			return err
		}

		return tx.Model(&model.Transaction{}).
			Where("related_withdraw_id = ? AND status = ?", withdraw.ID, "pending").
			Updates(map[string]interface{}{
				"status": "approved",
				"note":   "Withdrawal approved",
			}).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("withdrawal approved",
		zap.Int64("withdrawId", withdraw.ID),
		zap.Int64("userId", withdraw.UserID),
		zap.Int64("adminId", adminID),
	)
	return &withdraw, nil
}

func (s *Service) RejectWithdraw(ctx context.Context, withdrawID, adminID int64, now time.Time) (*model.WithdrawRequest, error) {
	var withdraw model.WithdrawRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&withdraw, withdrawID).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return appErr.ErrWithdrawNotFound
			}
			return err
		}
		if withdraw.Status != "pending" {
			return appErr.ErrAlreadyProcessed
		}

		withdraw.Status = "rejected"
		if err := tx.Save(&withdraw).Error; err != nil {
			return err
		}

		if _, err := wallet.CreditTx(tx, withdraw.UserID, wallet.SubBalanceWinnings, withdraw.Amount); err != nil {
			return err
		}

		return tx.Model(&model.Transaction{}).
			Where("related_withdraw_id = ? AND status = ?", withdraw.ID, "pending").
			Updates(map[string]interface{}{
				"status": "rejected",
				"note":   "Withdrawal rejected",
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return &withdraw, nil
}

func (s *Service) ListDeposits(ctx context.Context, userID *int64) ([]model.DepositRequest, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	var deposits []model.DepositRequest
	err := q.Find(&deposits).Error
	return deposits, err
}

func (s *Service) ListWithdrawals(ctx context.Context, userID *int64) ([]model.WithdrawRequest, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	var withdrawals []model.WithdrawRequest
	err := q.Find(&withdrawals).Error
	return withdrawals, err
}

func (s *Service) Transactions(ctx context.Context, userID *int64) ([]model.Transaction, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	var txns []model.Transaction
	err := q.Find(&txns).Error
	return txns, err
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
