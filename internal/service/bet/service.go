package bet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"matka-service/internal/config"
	"matka-service/internal/model"
	"matka-service/internal/service/timing"
	"matka-service/internal/service/wallet"
	appErr "matka-service/pkg/errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db     *gorm.DB
	timing *timing.Service
}

func NewService(db *gorm.DB, timingSvc *timing.Service) *Service {
	return &Service{db: db, timing: timingSvc}
}

type PlaceRequest struct {
	UserID  int64
	Game    string
	BetType string
	Number  int
	Amount  decimal.Decimal
	Now     time.Time
}

type PlaceResult struct {
	BetID          int64           `json:"betId"`
	RemainingTotal decimal.Decimal `json:"remainingBalance"`
}

// Place rejects locked windows, debits the stake and persists the bet
// stamped with its session window, all in one transaction.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (*PlaceResult, error) {
	req.Game = strings.ToUpper(strings.TrimSpace(req.Game))

	limits := config.GlobalConfig.Limits
	if req.Amount.LessThan(decimal.NewFromInt(limits.MinBet)) ||
		req.Amount.GreaterThan(decimal.NewFromInt(limits.MaxBet)) {
		return nil, fmt.Errorf("%w: allowed %d to %d", appErr.ErrInvalidBetAmount, limits.MinBet, limits.MaxBet)
	}
	if err := validateSelection(req.BetType, req.Number); err != nil {
		return nil, err
	}

	if !s.timing.Exists(req.Game) {
		return nil, appErr.ErrInvalidGame
	}
	locked, err := s.timing.IsLocked(req.Game, req.Now)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, appErr.ErrGameLocked
	}

	window, err := s.timing.ResolveWindow(req.Game, req.Now)
	if err != nil {
		return nil, err
	}

	var result PlaceResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w := &model.Wallet{}
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", req.UserID).
			First(w).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return appErr.ErrInsufficientBalance
			}
			return err
		}

		if err := wallet.ApplyDebit(w, req.Amount); err != nil {
			return err
		}
		w.UpdatedAt = req.Now
		if err := tx.Save(w).Error; err != nil {
			return err
		}

		sessionEnd := window.End()
		b := model.Bet{
			UserID:       req.UserID,
			GameName:     req.Game,
			BetType:      req.BetType,
			Number:       req.Number,
			Amount:       req.Amount,
			Status:       model.BetStatusPending,
			Payout:       decimal.Zero,
			SessionStart: &window.Open,
			SessionEnd:   &sessionEnd,
			CreatedAt:    req.Now,
		}
		if err := tx.Create(&b).Error; err != nil {
			return err
		}

		result = PlaceResult{BetID: b.ID, RemainingTotal: w.Total()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func validateSelection(betType string, number int) error {
	switch betType {
	case model.BetTypeNumber:
		if number < 0 || number > 100 {
			return fmt.Errorf("%w: number must be 0-100", appErr.ErrInvalidBetType)
		}
	case model.BetTypeAndar, model.BetTypeBahar:
		if number < 0 || number > 9 {
			return fmt.Errorf("%w: digit must be 0-9", appErr.ErrInvalidBetType)
		}
	default:
		return appErr.ErrInvalidBetType
	}
	return nil
}

// CurrentSession lists the user's bets inside every window that is
// running at `now`.
func (s *Service) CurrentSession(ctx context.Context, userID int64, now time.Time) ([]model.Bet, error) {
	var out []model.Bet
	for _, game := range s.timing.Games() {
		window, err := s.timing.ResolveWindow(game, now)
		if err != nil {
			continue
		}
		if now.Before(window.Open) || now.After(window.End()) {
			continue
		}
		var bets []model.Bet
		err = s.db.WithContext(ctx).
			Where("user_id = ? AND game_name = ? AND created_at >= ? AND created_at < ?",
				userID, game, window.Open, window.Close).
			Order("created_at").
			Find(&bets).Error
		if err != nil {
			return nil, err
		}
		out = append(out, bets...)
	}
	return out, nil
}

func (s *Service) History(ctx context.Context, userID int64, since time.Time) ([]model.Bet, error) {
	var bets []model.Bet
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at DESC").
		Find(&bets).Error
	return bets, err
}

type SessionRecords struct {
	Type    string      `json:"type"` // current/previous
	Date    string      `json:"date"`
	Open    time.Time   `json:"openTime"`
	Close   time.Time   `json:"closeTime"`
	Result  *time.Time  `json:"resultTime,omitempty"`
	Bets    []model.Bet `json:"bets"`
	BetsSum string      `json:"betsSum"`
}

// AdminSessionRecords returns the bets of the window at `now` and the
// one before it, for the admin declare screen.
func (s *Service) AdminSessionRecords(ctx context.Context, game string, now time.Time) ([]SessionRecords, error) {
	game = strings.ToUpper(strings.TrimSpace(game))
	if !s.timing.Exists(game) {
		return nil, appErr.ErrInvalidGame
	}
	current, err := s.timing.ResolveWindow(game, now)
	if err != nil {
		return nil, err
	}
	// Resolve the previous occurrence by stepping just before this
	// window opened.
	previous, err := s.timing.ResolveWindow(game, current.Open.Add(-time.Minute))
	if err != nil {
		return nil, err
	}

	records := make([]SessionRecords, 0, 2)
	for _, pair := range []struct {
		kind   string
		window timing.Window
	}{{"current", current}, {"previous", previous}} {
		var bets []model.Bet
		err := s.db.WithContext(ctx).
			Where("game_name = ? AND created_at >= ? AND created_at < ?",
				game, pair.window.Open, pair.window.Close).
			Order("created_at").
			Find(&bets).Error
		if err != nil {
			return nil, err
		}
		sum := decimal.Zero
		for _, b := range bets {
			sum = sum.Add(b.Amount)
		}
		records = append(records, SessionRecords{
			Type:    pair.kind,
			Date:    pair.window.Open.Format("2006-01-02"),
			Open:    pair.window.Open,
			Close:   pair.window.Close,
			Result:  pair.window.Result,
			Bets:    bets,
			BetsSum: sum.StringFixed(2),
		})
	}
	return records, nil
}
