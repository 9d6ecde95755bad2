package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// 2.1 User & Admin

type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"unique;not null"`
	Mobile       string `gorm:"unique;not null"`
	Email        string
	PasswordHash string `gorm:"not null"`
	ReferralCode string `gorm:"unique"`
	ReferredBy   string // referral code of the referrer
	Status       string `gorm:"default:active;not null"` // active/blocked
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Admin struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"unique;not null"`
	PasswordHash string `gorm:"not null"`
	DisplayName  string
	Status       string `gorm:"default:active;not null"` // active/disabled
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// 2.2 Wallet & Money
//
// Three sub-balances; only winnings is withdrawable. All amounts are
// exact decimals, never floats.

type Wallet struct {
	UserID    int64           `gorm:"primaryKey"`
	Balance   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Bonus     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Winnings  decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	UpdatedAt time.Time
}

func (w *Wallet) Total() decimal.Decimal {
	return w.Balance.Add(w.Bonus).Add(w.Winnings)
}

type DepositRequest struct {
	ID            int64           `gorm:"primaryKey;autoIncrement"`
	UserID        int64           `gorm:"index;not null"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	UTRNumber     string          `gorm:"size:50;not null"`
	PaymentMethod string          `gorm:"size:20"`
	Status        string          `gorm:"default:pending;not null"` // pending/approved/rejected
	AdminNote     string          `gorm:"size:255"`
	CreatedAt     time.Time
	ApprovedAt    *time.Time
}

type WithdrawRequest struct {
	ID         int64           `gorm:"primaryKey;autoIncrement"`
	UserID     int64           `gorm:"index;not null"`
	Amount     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Status     string          `gorm:"default:pending;not null"` // pending/approved/rejected
	CreatedAt  time.Time
	ApprovedAt *time.Time
}

type Transaction struct {
	ID                int64           `gorm:"primaryKey;autoIncrement"`
	UserID            int64           `gorm:"index;not null"`
	Type              string          `gorm:"size:32;not null"` // deposit/withdraw/adjust
	Amount            decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Status            string          `gorm:"default:pending;not null"` // pending/approved/rejected
	Note              string          `gorm:"size:255"`
	RelatedDepositID  *int64
	RelatedWithdrawID *int64
	CreatedAt         time.Time
}

// 2.3 Bets & Results

const (
	BetTypeNumber = "number" // exact two-digit match
	BetTypeAndar  = "andar"  // first digit of the winning number
	BetTypeBahar  = "bahar"  // second digit of the winning number
)

const (
	BetStatusPending = "pending"
	BetStatusWon     = "won"
	BetStatusLost    = "lost"
)

// Bet is immutable after placement except for the settlement fields
// (Status, IsWin, Payout, WinningNumber), which undo resets.
type Bet struct {
	ID            int64           `gorm:"primaryKey;autoIncrement"`
	UserID        int64           `gorm:"index;not null"`
	GameName      string          `gorm:"size:32;index;not null"`
	BetType       string          `gorm:"size:10;not null"`
	Number        int             `gorm:"not null"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Status        string          `gorm:"default:pending;not null;index"`
	IsWin         bool            `gorm:"default:false"`
	Payout        decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	WinningNumber string          `gorm:"size:3"`
	SessionStart  *time.Time
	SessionEnd    *time.Time
	CreatedAt     time.Time `gorm:"index"`
}

// DeclaredResult is an append-only audit trail; settlement never reads
// it back, undo reverses bets from their recorded payouts instead.
type DeclaredResult struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	GameName      string `gorm:"size:32;index;not null"`
	WinningNumber string `gorm:"size:3;not null"`
	DeclaredBy    int64
	DeclaredAt    time.Time `gorm:"index"`
}

const (
	CommissionTypeSignup = "signup_bonus"
	CommissionTypeBet    = "bet_commission"
)

type ReferralCommission struct {
	ID             int64           `gorm:"primaryKey;autoIncrement"`
	ReferrerID     int64           `gorm:"index;not null"`
	ReferredUserID int64           `gorm:"index;not null"`
	BetID          *int64          `gorm:"index"` // set for bet_commission, enables exact reversal
	Commission     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	CommissionType string          `gorm:"size:20;not null"`
	CreatedAt      time.Time
}

// 2.4 Audit & Backup

type WalletAuditLog struct {
	ID          int64           `gorm:"primaryKey;autoIncrement"`
	UserID      int64           `gorm:"index;not null"`
	AdminID     int64           `gorm:"not null"`
	OldBalance  decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	NewBalance  decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	OldBonus    decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	NewBonus    decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	OldWinnings decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	NewWinnings decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Reason      string          `gorm:"size:255;not null"`
	CreatedAt   time.Time
}

type UserDataBackup struct {
	ID        int64          `gorm:"primaryKey;autoIncrement"`
	UserID    int64          `gorm:"index;not null"`
	Data      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"index"`
}
