package repo

import (
	"log"

	"matka-service/internal/config"
	"matka-service/internal/model"
	"matka-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB() {
	dsn := config.GlobalConfig.Database.DSN
	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.Log.Fatal("Failed to connect to database",
			zap.Error(err),
		)
	}

	err = DB.AutoMigrate(
		&model.User{},
		&model.Admin{},
		&model.Wallet{},
		&model.DepositRequest{},
		&model.WithdrawRequest{},
		&model.Transaction{},
		&model.Bet{},
		&model.DeclaredResult{},
		&model.ReferralCommission{},
		&model.WalletAuditLog{},
		&model.UserDataBackup{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
}
