package settle

import (
	"context"
	"errors"
	"time"

	"matka-service/internal/config"
	"matka-service/internal/model"
	appErr "matka-service/pkg/errors"
	"matka-service/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Start launches the auto-declare worker for the configured recurring
// game. Inside each result window it declares the number with the
// lowest total liability, unless an administrator got there first.
func (s *Service) Start(ctx context.Context) error {
	s.startOnce.Do(func() {
		cfg := config.GlobalConfig.Settlement
		if cfg.AutoDeclareGame == "" || !s.timing.Exists(cfg.AutoDeclareGame) {
			return
		}
		interval := time.Duration(cfg.AutoDeclareInterval) * time.Second
		if interval <= 0 {
			interval = time.Minute
		}
		go s.runAutoDeclare(ctx, cfg.AutoDeclareGame, interval)
	})
	return nil
}

func (s *Service) runAutoDeclare(ctx context.Context, game string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.autoDeclareOnce(ctx, game, time.Now()); err != nil {
				logger.Log.Error("auto declare failed", zap.String("game", game), zap.Error(err))
			}
		}
	}
}

func (s *Service) autoDeclareOnce(ctx context.Context, game string, now time.Time) error {
	window, err := s.timing.ResolveWindow(game, now)
	if err != nil {
		return err
	}
	if window.Result == nil || !now.After(window.Close) || now.After(*window.Result) {
		return nil // not in a result window
	}

	var bets []model.Bet
	err = s.db.WithContext(ctx).
		Where("game_name = ? AND status = ? AND created_at >= ? AND created_at < ?",
			game, model.BetStatusPending, window.Open, window.Close).
		Find(&bets).Error
	if err != nil {
		return err
	}
	if len(bets) == 0 {
		return nil
	}

	winning := LeastLiabilityNumber(bets)
	_, err = s.DeclareResult(ctx, DeclareRequest{
		Game:          game,
		WinningNumber: winning,
		AdminID:       0, // system
		Now:           now,
	})
	if errors.Is(err, appErr.ErrAlreadySettled) || errors.Is(err, appErr.ErrSettlementInProgress) {
		return nil
	}
	if err == nil {
		logger.Log.Info("auto declared result",
			zap.String("game", game),
			zap.String("winningNumber", winning),
		)
	}
	return err
}

// LeastLiabilityNumber returns the candidate winning number whose
// declaration would pay out the least across the given bets, lowest
// number winning ties.
func LeastLiabilityNumber(bets []model.Bet) string {
	payouts := config.GlobalConfig.Payouts
	numberMul := decimal.NewFromInt(payouts.NumberMultiplier)
	digitMul := decimal.NewFromInt(payouts.DigitMultiplier)

	best := ""
	var bestLiability decimal.Decimal
	for n := 0; n <= 100; n++ {
		candidate := padNumber(n)
		liability := decimal.Zero
		for _, b := range bets {
			switch b.BetType {
			case model.BetTypeNumber:
				if padNumber(b.Number) == candidate {
					liability = liability.Add(b.Amount.Mul(numberMul))
				}
			case model.BetTypeAndar:
				if b.Number == andarDigit(candidate) {
					liability = liability.Add(b.Amount.Mul(digitMul))
				}
			case model.BetTypeBahar:
				if b.Number == baharDigit(candidate) {
					liability = liability.Add(b.Amount.Mul(digitMul))
				}
			}
		}
		if best == "" || liability.LessThan(bestLiability) {
			best = candidate
			bestLiability = liability
		}
	}
	return best
}
