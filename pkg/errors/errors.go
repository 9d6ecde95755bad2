package errors

import "errors"

// Validation errors: rejected synchronously, never retried.
var (
	ErrInvalidBetAmount     = errors.New("bet amount out of allowed range")
	ErrInvalidBetType       = errors.New("invalid bet type")
	ErrInvalidGame          = errors.New("invalid game name or timings not set")
	ErrInvalidWinningNumber = errors.New("valid winning number (00-100) required")
	ErrReasonRequired       = errors.New("reason is required")
	ErrNegativeBalance      = errors.New("negative values not allowed")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidUTR           = errors.New("utr number must be 12 digits")
	ErrDuplicateUTR         = errors.New("utr number already used")
)

// State conflicts: caller may retry after state changes.
var (
	ErrGameLocked           = errors.New("game is currently locked")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInsufficientWinnings = errors.New("insufficient winnings balance")
	ErrAlreadySettled       = errors.New("window already settled")
	ErrResultWindowClosed   = errors.New("result can only be declared in result window")
	ErrSettlementInProgress = errors.New("settlement already in progress for this window")
	ErrNoPendingBets        = errors.New("no pending bets in window")
	ErrNoSettledBets        = errors.New("no settled bets in window")
	ErrAlreadyProcessed     = errors.New("request already processed")
)

// Integrity failures.
var (
	ErrNoBackupFound = errors.New("no backup found for this user")
	ErrRestoreFailed = errors.New("restore failed")
)

// Auth / account.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserBlocked          = errors.New("user is blocked")
	ErrMobileTaken          = errors.New("mobile number already exists")
	ErrUsernameTaken        = errors.New("username already exists")
	ErrInvalidCredentials   = errors.New("invalid mobile number or password")
	ErrReferralCodeNotFound = errors.New("referral code not found")
	ErrAdminNotFound        = errors.New("admin not found")
	ErrAdminDisabled        = errors.New("admin account disabled")
	ErrInvalidAdminPassword = errors.New("invalid admin credentials")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidUserStatus    = errors.New("invalid user status")
)

// Records.
var (
	ErrWalletNotFound   = errors.New("wallet not found")
	ErrBetNotFound      = errors.New("bet not found")
	ErrDepositNotFound  = errors.New("deposit request not found")
	ErrWithdrawNotFound = errors.New("withdrawal request not found")
)
