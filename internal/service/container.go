package service

import (
	"context"

	"matka-service/internal/config"
	"matka-service/internal/service/admin"
	"matka-service/internal/service/auth"
	"matka-service/internal/service/backup"
	"matka-service/internal/service/bet"
	"matka-service/internal/service/payment"
	"matka-service/internal/service/settle"
	"matka-service/internal/service/timing"
	"matka-service/internal/service/user"
	"matka-service/internal/service/wallet"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Timing  *timing.Service
	Wallet  *wallet.Service
	Bet     *bet.Service
	Settle  *settle.Service
	Payment *payment.Service
	Backup  *backup.Service
	Auth    *auth.Service
	User    *user.Service
	Admin   *admin.Service
}

func NewContainer(db *gorm.DB, rdb *redis.Client) (*Container, error) {
	timingSvc, err := timing.NewService(config.GlobalConfig.Games)
	if err != nil {
		return nil, err
	}

	return &Container{
		Timing:  timingSvc,
		Wallet:  wallet.NewService(db),
		Bet:     bet.NewService(db, timingSvc),
		Settle:  settle.NewService(db, rdb, timingSvc),
		Payment: payment.NewService(db),
		Backup:  backup.NewService(db),
		Auth:    auth.NewService(db),
		User:    user.NewService(db),
		Admin:   admin.NewService(db),
	}, nil
}

func (c *Container) Start(ctx context.Context) error {
	if err := c.Admin.EnsureDefaultAdmin(ctx); err != nil {
		return err
	}
	return c.Settle.Start(ctx)
}
