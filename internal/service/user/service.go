package user

import (
	"context"
	"strings"
	"time"

	"matka-service/internal/model"
	appErr "matka-service/pkg/errors"
	"matka-service/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultAdminUserPageSize = 20
	maxAdminUserPageSize     = 100
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type UpdateProfileRequest struct {
	Username *string
	Email    *string
}

type AdminListUsersFilter struct {
	Page          int
	Size          int
	Status        string
	MobileKeyword string
	ReferralCode  string
}

// UserStats carries the per-user aggregates the operator dashboard shows
// next to each account.
type UserStats struct {
	User             model.User      `json:"user"`
	Wallet           model.Wallet    `json:"wallet"`
	TotalDeposits    decimal.Decimal `json:"totalDeposits"`
	TotalWithdrawals decimal.Decimal `json:"totalWithdrawals"`
	TotalBets        int64           `json:"totalBets"`
	ReferralEarnings decimal.Decimal `json:"referralEarnings"`
}

type AdminListUsersResult struct {
	Items []UserStats
	Total int64
}

type ReferralSummary struct {
	ReferralCode  string                     `json:"referralCode"`
	TotalReferred int64                      `json:"totalReferred"`
	TotalEarnings decimal.Decimal            `json:"totalEarnings"`
	Referred      []ReferredUser             `json:"referred"`
	Recent        []model.ReferralCommission `json:"recent"`
}

type ReferredUser struct {
	Username string          `json:"username"`
	JoinedAt time.Time       `json:"joinedAt"`
	Earnings decimal.Decimal `json:"earnings"`
}

func (f *AdminListUsersFilter) sanitize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Size <= 0 {
		f.Size = defaultAdminUserPageSize
	}
	if f.Size > maxAdminUserPageSize {
		f.Size = maxAdminUserPageSize
	}
	f.Status = strings.ToLower(strings.TrimSpace(f.Status))
	f.MobileKeyword = strings.TrimSpace(f.MobileKeyword)
	f.ReferralCode = strings.TrimSpace(f.ReferralCode)
}

func applyAdminUserFilters(db *gorm.DB, filter AdminListUsersFilter) *gorm.DB {
	if filter.Status != "" {
		db = db.Where("LOWER(status) = ?", filter.Status)
	}
	if filter.MobileKeyword != "" {
		like := "%" + filter.MobileKeyword + "%"
		db = db.Where("mobile LIKE ?", like)
	}
	if filter.ReferralCode != "" {
		like := "%" + filter.ReferralCode + "%"
		db = db.Where("referral_code LIKE ?", like)
	}
	return db
}

func (s *Service) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, appErr.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, req UpdateProfileRequest) (*model.User, error) {
	updates := map[string]interface{}{}
	if req.Username != nil {
		name := strings.TrimSpace(*req.Username)
		if name == "" {
			return nil, appErr.ErrInvalidCredentials
		}
		var count int64
		err := s.db.WithContext(ctx).Model(&model.User{}).
			Where("username = ? AND id <> ?", name, userID).
			Count(&count).Error
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, appErr.ErrUsernameTaken
		}
		updates["username"] = name
	}
	if req.Email != nil {
		updates["email"] = strings.TrimSpace(*req.Email)
	}

	if len(updates) > 0 {
		updates["updated_at"] = time.Now()
		if err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	return s.GetProfile(ctx, userID)
}

func (s *Service) AdminListUsers(ctx context.Context, filter AdminListUsersFilter) (*AdminListUsersResult, error) {
	filter.sanitize()

	countQuery := applyAdminUserFilters(s.db.WithContext(ctx).Model(&model.User{}), filter)
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, err
	}

	result := &AdminListUsersResult{
		Items: make([]UserStats, 0),
		Total: total,
	}
	if total == 0 {
		return result, nil
	}

	dataQuery := applyAdminUserFilters(s.db.WithContext(ctx).Model(&model.User{}), filter)
	var users []model.User
	if err := dataQuery.
		Order("id DESC").
		Limit(filter.Size).
		Offset((filter.Page - 1) * filter.Size).
		Find(&users).Error; err != nil {
		return nil, err
	}

	for i := range users {
		stats, err := s.collectStats(ctx, users[i])
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, *stats)
	}
	return result, nil
}

func (s *Service) AdminGetUser(ctx context.Context, userID int64) (*UserStats, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, appErr.ErrUserNotFound
		}
		return nil, err
	}
	return s.collectStats(ctx, user)
}

func (s *Service) collectStats(ctx context.Context, user model.User) (*UserStats, error) {
	stats := &UserStats{User: user}

	err := s.db.WithContext(ctx).Where("user_id = ?", user.ID).First(&stats.Wallet).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}
	stats.Wallet.UserID = user.ID

	if err := sumDecimal(s.db.WithContext(ctx).Model(&model.DepositRequest{}).
		Where("user_id = ? AND status = ?", user.ID, "approved"), &stats.TotalDeposits); err != nil {
		return nil, err
	}
	if err := sumDecimal(s.db.WithContext(ctx).Model(&model.WithdrawRequest{}).
		Where("user_id = ? AND status = ?", user.ID, "approved"), &stats.TotalWithdrawals); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&model.Bet{}).
		Where("user_id = ?", user.ID).Count(&stats.TotalBets).Error; err != nil {
		return nil, err
	}
	if err := sumCommission(s.db.WithContext(ctx).Model(&model.ReferralCommission{}).
		Where("referrer_id = ?", user.ID), &stats.ReferralEarnings); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Service) AdminUpdateUserStatus(ctx context.Context, userID int64, status, reason string) (*model.User, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status != "active" && status != "blocked" {
		return nil, appErr.ErrInvalidUserStatus
	}
	reason = strings.TrimSpace(reason)

	now := time.Now()
	res := s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, appErr.ErrUserNotFound
	}

	logger.Log.Info("admin updated user status",
		zap.Int64("userID", userID),
		zap.String("status", status),
		zap.String("reason", reason))

	return s.GetProfile(ctx, userID)
}

// MyReferrals summarizes the caller's referral program standing: who
// they brought in and what each referral has earned them.
func (s *Service) MyReferrals(ctx context.Context, userID int64) (*ReferralSummary, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &ReferralSummary{
		ReferralCode: user.ReferralCode,
		Referred:     make([]ReferredUser, 0),
		Recent:       make([]model.ReferralCommission, 0),
	}

	var referred []model.User
	if err := s.db.WithContext(ctx).
		Where("referred_by = ?", user.ReferralCode).
		Order("created_at DESC").
		Find(&referred).Error; err != nil {
		return nil, err
	}
	summary.TotalReferred = int64(len(referred))

	if err := sumCommission(s.db.WithContext(ctx).Model(&model.ReferralCommission{}).
		Where("referrer_id = ?", userID), &summary.TotalEarnings); err != nil {
		return nil, err
	}

	for i := range referred {
		var earnings decimal.Decimal
		if err := sumCommission(s.db.WithContext(ctx).Model(&model.ReferralCommission{}).
			Where("referrer_id = ? AND referred_user_id = ?", userID, referred[i].ID), &earnings); err != nil {
			return nil, err
		}
		summary.Referred = append(summary.Referred, ReferredUser{
			Username: referred[i].Username,
			JoinedAt: referred[i].CreatedAt,
			Earnings: earnings,
		})
	}

	if err := s.db.WithContext(ctx).
		Where("referrer_id = ?", userID).
		Order("created_at DESC").
		Limit(20).
		Find(&summary.Recent).Error; err != nil {
		return nil, err
	}
	return summary, nil
}

func sumDecimal(q *gorm.DB, out *decimal.Decimal) error {
	var raw *string
	if err := q.Select("SUM(amount)").Scan(&raw).Error; err != nil {
		return err
	}
	return parseSum(raw, out)
}

func sumCommission(q *gorm.DB, out *decimal.Decimal) error {
	var raw *string
	if err := q.Select("SUM(commission)").Scan(&raw).Error; err != nil {
		return err
	}
	return parseSum(raw, out)
}

func parseSum(raw *string, out *decimal.Decimal) error {
	if raw == nil || *raw == "" {
		*out = decimal.Zero
		return nil
	}
	v, err := decimal.NewFromString(*raw)
	if err != nil {
		return err
	}
	*out = v
	return nil
}
