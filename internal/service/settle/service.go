package settle

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"matka-service/internal/config"
	"matka-service/internal/model"
	"matka-service/internal/service/timing"
	"matka-service/internal/service/wallet"
	appErr "matka-service/pkg/errors"
	"matka-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const windowLockTTL = 30 * time.Second

// Notifier receives settlement events after the transaction commits.
type Notifier interface {
	ResultDeclared(game, winningNumber string, declaredAt time.Time)
	ResultUndone(game string, undoneAt time.Time)
}

type Service struct {
	db     *gorm.DB
	rdb    *redis.Client
	timing *timing.Service

	notifier Notifier

	startOnce sync.Once
}

func NewService(db *gorm.DB, rdb *redis.Client, timingSvc *timing.Service) *Service {
	return &Service{db: db, rdb: rdb, timing: timingSvc}
}

func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

type DeclareRequest struct {
	Game          string
	WinningNumber string
	AdminID       int64
	Now           time.Time
}

type Summary struct {
	Game            string          `json:"game"`
	WinningNumber   string          `json:"winningNumber"`
	WindowOpen      time.Time       `json:"windowOpen"`
	WindowClose     time.Time       `json:"windowClose"`
	SettledBets     int             `json:"settledBets"`
	Winners         int             `json:"winners"`
	TotalPayout     decimal.Decimal `json:"totalPayout"`
	TotalCommission decimal.Decimal `json:"totalCommission"`
}

// DeclareResult settles every pending bet in the game's window at
// req.Now against the declared number. A window settles at most once:
// any already-settled bet in the window rejects the declaration.
func (s *Service) DeclareResult(ctx context.Context, req DeclareRequest) (*Summary, error) {
	game := strings.ToUpper(strings.TrimSpace(req.Game))
	winning, err := normalizeWinningNumber(req.WinningNumber)
	if err != nil {
		return nil, err
	}
	if !s.timing.Exists(game) {
		return nil, appErr.ErrInvalidGame
	}

	window, err := s.timing.ResolveWindow(game, req.Now)
	if err != nil {
		return nil, err
	}

	// The recurring game settles only inside its result window,
	// strictly after close and no later than the result instant.
	if s.timing.IsRecurring(game) {
		if window.Result == nil || !req.Now.After(window.Close) || req.Now.After(*window.Result) {
			return nil, appErr.ErrResultWindowClosed
		}
	}

	release, err := s.acquireWindowLock(ctx, game, window)
	if err != nil {
		return nil, err
	}
	defer release()

	summary := Summary{
		Game:            game,
		WinningNumber:   winning,
		WindowOpen:      window.Open,
		WindowClose:     window.Close,
		TotalPayout:     decimal.Zero,
		TotalCommission: decimal.Zero,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var settled int64
		if err := tx.Model(&model.Bet{}).
			Where("game_name = ? AND status <> ? AND created_at >= ? AND created_at < ?",
				game, model.BetStatusPending, window.Open, window.Close).
			Count(&settled).Error; err != nil {
			return err
		}
		if settled > 0 {
			return appErr.ErrAlreadySettled
		}

		// Declarations are append-only history, kept even when the
		// settlement is later undone.
		record := model.DeclaredResult{
			GameName:      game,
			WinningNumber: winning,
			DeclaredBy:    req.AdminID,
			DeclaredAt:    req.Now,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		var bets []model.Bet
		if err := tx.
			Where("game_name = ? AND status = ? AND created_at >= ? AND created_at < ?",
				game, model.BetStatusPending, window.Open, window.Close).
			Find(&bets).Error; err != nil {
			return err
		}

		book := wallet.NewBook(tx)
		commissions := make([]model.ReferralCommission, 0)
		referrers := make(map[string]*model.User)

		for i := range bets {
			b := &bets[i]
			payout := s.computePayout(b, winning)

			if payout.IsPositive() {
				w, err := book.Ensure(b.UserID)
				if err != nil {
					return err
				}
				w.Winnings = w.Winnings.Add(payout)
				b.Status = model.BetStatusWon
				b.IsWin = true
				summary.Winners++
				summary.TotalPayout = summary.TotalPayout.Add(payout)
			} else {
				b.Status = model.BetStatusLost
				b.IsWin = false
			}
			b.Payout = payout
			b.WinningNumber = winning

			// Exact-number bets in commission games pay the referrer
			// 10% of the stake regardless of the outcome.
			if b.BetType == model.BetTypeNumber && isCommissionGame(game) {
				commission, err := s.payCommission(tx, book, b, referrers, req.Now)
				if err != nil {
					return err
				}
				if commission != nil {
					commissions = append(commissions, *commission)
					summary.TotalCommission = summary.TotalCommission.Add(commission.Commission)
				}
			}

			if err := tx.Save(b).Error; err != nil {
				return err
			}
			summary.SettledBets++
		}

		if len(commissions) > 0 {
			if err := tx.Create(&commissions).Error; err != nil {
				return err
			}
		}

		return book.SaveAll(req.Now)
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("result declared",
		zap.String("game", game),
		zap.String("winningNumber", winning),
		zap.Int("settledBets", summary.SettledBets),
		zap.Int("winners", summary.Winners),
		zap.Int64("adminId", req.AdminID),
	)
	if s.notifier != nil {
		s.notifier.ResultDeclared(game, winning, req.Now)
	}
	return &summary, nil
}

func (s *Service) computePayout(b *model.Bet, winning string) decimal.Decimal {
	payouts := config.GlobalConfig.Payouts
	switch b.BetType {
	case model.BetTypeNumber:
		if padNumber(b.Number) == winning {
			return b.Amount.Mul(decimal.NewFromInt(payouts.NumberMultiplier))
		}
	case model.BetTypeAndar:
		if b.Number == andarDigit(winning) {
			return b.Amount.Mul(decimal.NewFromInt(payouts.DigitMultiplier))
		}
	case model.BetTypeBahar:
		if b.Number == baharDigit(winning) {
			return b.Amount.Mul(decimal.NewFromInt(payouts.DigitMultiplier))
		}
	}
	return decimal.Zero
}

func (s *Service) payCommission(tx *gorm.DB, book *wallet.Book, b *model.Bet, referrers map[string]*model.User, now time.Time) (*model.ReferralCommission, error) {
	var bettor model.User
	if err := tx.First(&bettor, b.UserID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	if bettor.ReferredBy == "" {
		return nil, nil
	}

	referrer, ok := referrers[bettor.ReferredBy]
	if !ok {
		var u model.User
		err := tx.Where("referral_code = ?", bettor.ReferredBy).First(&u).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				referrers[bettor.ReferredBy] = nil
				return nil, nil
			}
			return nil, err
		}
		referrer = &u
		referrers[bettor.ReferredBy] = referrer
	}
	if referrer == nil {
		return nil, nil
	}

	rate, err := decimal.NewFromString(config.GlobalConfig.Referral.CommissionRate)
	if err != nil {
		return nil, fmt.Errorf("invalid commission rate: %w", err)
	}
	amount := b.Amount.Mul(rate).Round(2)

	w, err := book.Ensure(referrer.ID)
	if err != nil {
		return nil, err
	}
	w.Bonus = w.Bonus.Add(amount)

	betID := b.ID
	return &model.ReferralCommission{
		ReferrerID:     referrer.ID,
		ReferredUserID: bettor.ID,
		BetID:          &betID,
		Commission:     amount,
		CommissionType: model.CommissionTypeBet,
		CreatedAt:      now,
	}, nil
}

type UndoSummary struct {
	Game         string          `json:"game"`
	UndoneBets   int             `json:"undoneBets"`
	PayoutsTaken decimal.Decimal `json:"payoutsTaken"`
	Commissions  int             `json:"commissionsRemoved"`
}

// UndoResult reverses a prior settlement of the window at req.Now. Each
// bet is reversed from the payout recorded on it, never recomputed from
// a winning number, because repeated declare/undo cycles may use
// different numbers. Winnings and referrer bonus clamp at zero when
// already spent; the clamp is policy, not an error.
func (s *Service) UndoResult(ctx context.Context, game string, adminID int64, now time.Time) (*UndoSummary, error) {
	game = strings.ToUpper(strings.TrimSpace(game))
	if !s.timing.Exists(game) {
		return nil, appErr.ErrInvalidGame
	}
	window, err := s.timing.ResolveWindow(game, now)
	if err != nil {
		return nil, err
	}

	release, err := s.acquireWindowLock(ctx, game, window)
	if err != nil {
		return nil, err
	}
	defer release()

	summary := UndoSummary{Game: game, PayoutsTaken: decimal.Zero}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bets []model.Bet
		if err := tx.
			Where("game_name = ? AND status IN ? AND created_at >= ? AND created_at < ?",
				game, []string{model.BetStatusWon, model.BetStatusLost}, window.Open, window.Close).
			Find(&bets).Error; err != nil {
			return err
		}
		if len(bets) == 0 {
			return appErr.ErrNoSettledBets
		}

		book := wallet.NewBook(tx)

		for i := range bets {
			b := &bets[i]

			var comms []model.ReferralCommission
			if err := tx.Where("bet_id = ?", b.ID).Find(&comms).Error; err != nil {
				return err
			}
			for _, comm := range comms {
				rw, err := book.Ensure(comm.ReferrerID)
				if err != nil {
					return err
				}
				rw.Bonus = rw.Bonus.Sub(comm.Commission)
				if rw.Bonus.IsNegative() {
					// Commission already spent; keep the invariant
					// rather than abort the whole undo.
					logger.Log.Warn("clamping referrer bonus during undo",
						zap.Int64("referrerId", comm.ReferrerID),
						zap.Int64("betId", b.ID),
						zap.String("shortfall", rw.Bonus.Neg().String()),
					)
					rw.Bonus = decimal.Zero
				}
				summary.Commissions++
			}
			if len(comms) > 0 {
				if err := tx.Where("bet_id = ?", b.ID).
					Delete(&model.ReferralCommission{}).Error; err != nil {
					return err
				}
			}

			if b.Payout.IsPositive() {
				w, err := book.Ensure(b.UserID)
				if err != nil {
					return err
				}
				w.Winnings = w.Winnings.Sub(b.Payout)
				if w.Winnings.IsNegative() {
					w.Winnings = decimal.Zero
				}
				summary.PayoutsTaken = summary.PayoutsTaken.Add(b.Payout)
			}

			b.Status = model.BetStatusPending
			b.IsWin = false
			b.Payout = decimal.Zero
			b.WinningNumber = ""
			if err := tx.Save(b).Error; err != nil {
				return err
			}
			summary.UndoneBets++
		}

		return book.SaveAll(now)
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("result undone",
		zap.String("game", game),
		zap.Int("undoneBets", summary.UndoneBets),
		zap.Int64("adminId", adminID),
	)
	if s.notifier != nil {
		s.notifier.ResultUndone(game, now)
	}
	return &summary, nil
}

func (s *Service) History(ctx context.Context, since time.Time) ([]model.DeclaredResult, error) {
	var results []model.DeclaredResult
	err := s.db.WithContext(ctx).
		Where("declared_at >= ?", since).
		Order("declared_at DESC").
		Find(&results).Error
	return results, err
}

// acquireWindowLock serializes declare/undo/auto-declare for one
// (game, window) occurrence across instances via redis. Without redis
// (unit tests) the database transaction is the only guard.
func (s *Service) acquireWindowLock(ctx context.Context, game string, w timing.Window) (func(), error) {
	if s.rdb == nil {
		return func() {}, nil
	}
	key := fmt.Sprintf("settle:lock:%s:%d", strings.ReplaceAll(game, " ", "_"), w.Open.Unix())
	ok, err := s.rdb.SetNX(ctx, key, 1, windowLockTTL).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErr.ErrSettlementInProgress
	}
	return func() { s.rdb.Del(context.Background(), key) }, nil
}

func normalizeWinningNumber(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > 100 {
		return "", appErr.ErrInvalidWinningNumber
	}
	return padNumber(n), nil
}

func padNumber(n int) string {
	return fmt.Sprintf("%02d", n)
}

func andarDigit(winning string) int {
	d, _ := strconv.Atoi(winning[:1])
	return d
}

func baharDigit(winning string) int {
	d, _ := strconv.Atoi(winning[len(winning)-1:])
	return d
}

func isCommissionGame(game string) bool {
	for _, g := range config.GlobalConfig.Referral.CommissionGames {
		if strings.EqualFold(strings.TrimSpace(g), game) {
			return true
		}
	}
	return false
}
