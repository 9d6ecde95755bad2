package auth

import (
	"context"
	"strings"
	"time"

	"matka-service/internal/config"
	"matka-service/internal/model"
	pkgAuth "matka-service/pkg/auth"
	appErr "matka-service/pkg/errors"
	"matka-service/pkg/logger"
	"matka-service/pkg/utils/random"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type RegisterRequest struct {
	Username     string
	Mobile       string
	Email        string
	Password     string
	ReferralCode string // optional, referrer's code
}

type LoginResult struct {
	Token    string     `json:"token"`
	ExpireAt time.Time  `json:"expireAt"`
	User     model.User `json:"user"`
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	username := strings.TrimSpace(req.Username)
	mobile := strings.TrimSpace(req.Mobile)
	if username == "" || !isValidMobile(mobile) || len(req.Password) < 6 {
		return nil, appErr.ErrInvalidCredentials
	}

	referralCode := strings.ToUpper(strings.TrimSpace(req.ReferralCode))

	var user *model.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return appErr.ErrUsernameTaken
		}
		if err := tx.Model(&model.User{}).Where("mobile = ?", mobile).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return appErr.ErrMobileTaken
		}

		if referralCode != "" {
			var referrer model.User
			err := tx.Where("referral_code = ?", referralCode).First(&referrer).Error
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return appErr.ErrReferralCodeNotFound
				}
				return err
			}
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		ownCode, err := uniqueReferralCode(tx)
		if err != nil {
			return err
		}

		user = &model.User{
			Username:     username,
			Mobile:       mobile,
			Email:        strings.TrimSpace(req.Email),
			PasswordHash: string(hash),
			ReferralCode: ownCode,
			ReferredBy:   referralCode,
			Status:       "active",
		}
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return tx.Create(&model.Wallet{UserID: user.ID}).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("user registered",
		zap.Int64("userId", user.ID),
		zap.Bool("referred", referralCode != ""),
	)
	return user, nil
}

func (s *Service) Login(ctx context.Context, mobile, password string) (*LoginResult, error) {
	mobile = strings.TrimSpace(mobile)
	if mobile == "" || password == "" {
		return nil, appErr.ErrInvalidCredentials
	}

	var user model.User
	err := s.db.WithContext(ctx).Where("mobile = ?", mobile).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, appErr.ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, appErr.ErrInvalidCredentials
	}
	if strings.EqualFold(user.Status, "blocked") {
		return nil, appErr.ErrUserBlocked
	}

	token, err := pkgAuth.GenerateUserToken(user.ID)
	if err != nil {
		return nil, err
	}

	expireAt := time.Now().Add(time.Duration(config.GlobalConfig.JWT.Expire) * time.Hour)
	return &LoginResult{Token: token, ExpireAt: expireAt, User: user}, nil
}

// uniqueReferralCode retries generation until the code is unused. Eight
// characters from a 32-symbol set make collisions rare in practice; if
// ten draws all collide, a UUID-derived code settles it.
func uniqueReferralCode(tx *gorm.DB) (string, error) {
	for i := 0; i < 10; i++ {
		code := random.Code(8)
		var count int64
		if err := tx.Model(&model.User{}).Where("referral_code = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	code := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return code[:12], nil
}

func isValidMobile(mobile string) bool {
	if len(mobile) != 10 {
		return false
	}
	for _, r := range mobile {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
