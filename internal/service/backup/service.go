package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"matka-service/internal/model"
	appErr "matka-service/pkg/errors"
	"matka-service/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SnapshotPayload is the typed backup document stored per user. IDs are
// kept so restore can remap transaction foreign keys onto the fresh rows.
type SnapshotPayload struct {
	Version               int                        `json:"version"`
	TakenAt               time.Time                  `json:"takenAt"`
	Wallet                WalletSnapshot             `json:"wallet"`
	Bets                  []model.Bet                `json:"bets"`
	Deposits              []model.DepositRequest     `json:"deposits"`
	Withdrawals           []model.WithdrawRequest    `json:"withdrawals"`
	Transactions          []model.Transaction        `json:"transactions"`
	CommissionsAsReferrer []model.ReferralCommission `json:"commissionsAsReferrer"`
	CommissionsAsReferred []model.ReferralCommission `json:"commissionsAsReferred"`
}

type WalletSnapshot struct {
	Balance  decimal.Decimal `json:"balance"`
	Bonus    decimal.Decimal `json:"bonus"`
	Winnings decimal.Decimal `json:"winnings"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Snapshot captures the user's activity and wallet state into a new
// backup row. Existing backups are kept; restore uses the latest.
func (s *Service) Snapshot(ctx context.Context, userID int64, now time.Time) (*model.UserDataBackup, error) {
	var backup *model.UserDataBackup
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payload, err := collectPayload(tx, userID, now)
		if err != nil {
			return err
		}
		backup, err = savePayload(tx, userID, payload, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return backup, nil
}

// Reset snapshots the user and then wipes their activity: bets,
// payment requests, transactions and commissions are deleted and all
// three wallet sub-balances are zeroed. The account itself stays.
func (s *Service) Reset(ctx context.Context, userID int64, now time.Time) (*model.UserDataBackup, error) {
	var backup *model.UserDataBackup
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payload, err := collectPayload(tx, userID, now)
		if err != nil {
			return err
		}
		backup, err = savePayload(tx, userID, payload, now)
		if err != nil {
			return err
		}
		return wipeUserData(tx, userID, now)
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("user data reset",
		zap.Int64("userId", userID),
		zap.Int64("backupId", backup.ID),
	)
	return backup, nil
}

// Restore replaces the user's current activity with the latest backup.
// Rows come back under new IDs; transaction links to deposits and
// withdrawals are remapped through the old-to-new ID tables.
func (s *Service) Restore(ctx context.Context, userID int64, now time.Time) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var backup model.UserDataBackup
		err := tx.Where("user_id = ?", userID).
			Order("created_at DESC").
			First(&backup).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return appErr.ErrNoBackupFound
			}
			return err
		}

		var payload SnapshotPayload
		if err := json.Unmarshal(backup.Data, &payload); err != nil {
			return fmt.Errorf("%w: %v", appErr.ErrRestoreFailed, err)
		}

		if err := wipeUserData(tx, userID, now); err != nil {
			return err
		}

		depositIDs := make(map[int64]int64, len(payload.Deposits))
		for i := range payload.Deposits {
			d := payload.Deposits[i]
			oldID := d.ID
			d.ID = 0
			if err := tx.Create(&d).Error; err != nil {
				return fmt.Errorf("%w: deposit: %v", appErr.ErrRestoreFailed, err)
			}
			depositIDs[oldID] = d.ID
		}

		withdrawIDs := make(map[int64]int64, len(payload.Withdrawals))
		for i := range payload.Withdrawals {
			w := payload.Withdrawals[i]
			oldID := w.ID
			w.ID = 0
			if err := tx.Create(&w).Error; err != nil {
				return fmt.Errorf("%w: withdrawal: %v", appErr.ErrRestoreFailed, err)
			}
			withdrawIDs[oldID] = w.ID
		}

		betIDs := make(map[int64]int64, len(payload.Bets))
		for i := range payload.Bets {
			b := payload.Bets[i]
			oldID := b.ID
			b.ID = 0
			if err := tx.Create(&b).Error; err != nil {
				return fmt.Errorf("%w: bet: %v", appErr.ErrRestoreFailed, err)
			}
			betIDs[oldID] = b.ID
		}

		for i := range payload.Transactions {
			t := payload.Transactions[i]
			t.ID = 0
			if t.RelatedDepositID != nil {
				if newID, ok := depositIDs[*t.RelatedDepositID]; ok {
					t.RelatedDepositID = &newID
				} else {
					t.RelatedDepositID = nil
				}
			}
			if t.RelatedWithdrawID != nil {
				if newID, ok := withdrawIDs[*t.RelatedWithdrawID]; ok {
					t.RelatedWithdrawID = &newID
				} else {
					t.RelatedWithdrawID = nil
				}
			}
			if err := tx.Create(&t).Error; err != nil {
				return fmt.Errorf("%w: transaction: %v", appErr.ErrRestoreFailed, err)
			}
		}

		commissions := append(payload.CommissionsAsReferrer, payload.CommissionsAsReferred...)
		for i := range commissions {
			c := commissions[i]
			c.ID = 0
			if c.BetID != nil {
				if newID, ok := betIDs[*c.BetID]; ok {
					c.BetID = &newID
				} else {
					c.BetID = nil
				}
			}
			if err := tx.Create(&c).Error; err != nil {
				return fmt.Errorf("%w: commission: %v", appErr.ErrRestoreFailed, err)
			}
		}

		w := model.Wallet{}
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&w).Error
		if err != nil && err != gorm.ErrRecordNotFound {
			return err
		}
		w.UserID = userID
		w.Balance = payload.Wallet.Balance
		w.Bonus = payload.Wallet.Bonus
		w.Winnings = payload.Wallet.Winnings
		w.UpdatedAt = now
		return tx.Save(&w).Error
	})
	if err != nil {
		return err
	}

	logger.Log.Info("user data restored", zap.Int64("userId", userID))
	return nil
}

// LatestBackup returns the newest snapshot document without applying it.
func (s *Service) LatestBackup(ctx context.Context, userID int64) (*SnapshotPayload, time.Time, error) {
	var backup model.UserDataBackup
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&backup).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, time.Time{}, appErr.ErrNoBackupFound
		}
		return nil, time.Time{}, err
	}
	var payload SnapshotPayload
	if err := json.Unmarshal(backup.Data, &payload); err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %v", appErr.ErrRestoreFailed, err)
	}
	return &payload, backup.CreatedAt, nil
}

func collectPayload(tx *gorm.DB, userID int64, now time.Time) (*SnapshotPayload, error) {
	payload := &SnapshotPayload{Version: 1, TakenAt: now}

	w := model.Wallet{}
	err := tx.Where("user_id = ?", userID).First(&w).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}
	payload.Wallet = WalletSnapshot{
		Balance:  w.Balance,
		Bonus:    w.Bonus,
		Winnings: w.Winnings,
	}

	if err := tx.Where("user_id = ?", userID).Order("id").Find(&payload.Bets).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("user_id = ?", userID).Order("id").Find(&payload.Deposits).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("user_id = ?", userID).Order("id").Find(&payload.Withdrawals).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("user_id = ?", userID).Order("id").Find(&payload.Transactions).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("referrer_id = ?", userID).Order("id").Find(&payload.CommissionsAsReferrer).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("referred_user_id = ?", userID).Order("id").Find(&payload.CommissionsAsReferred).Error; err != nil {
		return nil, err
	}
	return payload, nil
}

func savePayload(tx *gorm.DB, userID int64, payload *SnapshotPayload, now time.Time) (*model.UserDataBackup, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	backup := &model.UserDataBackup{
		UserID:    userID,
		Data:      datatypes.JSON(raw),
		CreatedAt: now,
	}
	if err := tx.Create(backup).Error; err != nil {
		return nil, err
	}
	return backup, nil
}

func wipeUserData(tx *gorm.DB, userID int64, now time.Time) error {
	if err := tx.Where("user_id = ?", userID).Delete(&model.Bet{}).Error; err != nil {
		return err
	}
	if err := tx.Where("user_id = ?", userID).Delete(&model.DepositRequest{}).Error; err != nil {
		return err
	}
	if err := tx.Where("user_id = ?", userID).Delete(&model.WithdrawRequest{}).Error; err != nil {
		return err
	}
	if err := tx.Where("user_id = ?", userID).Delete(&model.Transaction{}).Error; err != nil {
		return err
	}
	if err := tx.Where("referrer_id = ? OR referred_user_id = ?", userID, userID).
		Delete(&model.ReferralCommission{}).Error; err != nil {
		return err
	}

	w := model.Wallet{}
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&w).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}
	w.Balance = decimal.Zero
	w.Bonus = decimal.Zero
	w.Winnings = decimal.Zero
	w.UpdatedAt = now
	return tx.Save(&w).Error
}
