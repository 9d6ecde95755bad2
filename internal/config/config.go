package config

import (
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Admin      AdminSeedConfig  `mapstructure:"admin"`
	Games      GamesConfig      `mapstructure:"games"`
	Limits     LimitsConfig     `mapstructure:"limits"`
	Payouts    PayoutConfig     `mapstructure:"payouts"`
	Referral   ReferralConfig   `mapstructure:"referral"`
	Settlement SettlementConfig `mapstructure:"settlement"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int    `mapstructure:"expire"` // hours
}

type AdminSeedConfig struct {
	DefaultUsername string `mapstructure:"defaultUsername"`
	DefaultPassword string `mapstructure:"defaultPassword"`
}

// GamesConfig is the daily timetable every betting window is resolved
// against. Times of day are "HH:MM" strings interpreted in Timezone.
type GamesConfig struct {
	Timezone  string          `mapstructure:"timezone"`
	Simple    []SimpleGame    `mapstructure:"simple"`
	Recurring []RecurringGame `mapstructure:"recurring"`
}

type SimpleGame struct {
	Name  string `mapstructure:"name"`
	Open  string `mapstructure:"open"`
	Close string `mapstructure:"close"`
}

type RecurringGame struct {
	Name              string        `mapstructure:"name"`
	LockBeforeMinutes int           `mapstructure:"lockBeforeMinutes"`
	OpenAfterMinutes  int           `mapstructure:"openAfterMinutes"`
	Sessions          []GameSession `mapstructure:"sessions"`
}

type GameSession struct {
	Open   string `mapstructure:"open"`
	Close  string `mapstructure:"close"`
	Result string `mapstructure:"result"`
}

type LimitsConfig struct {
	MinBet      int64 `mapstructure:"minBet"`
	MaxBet      int64 `mapstructure:"maxBet"`
	MinDeposit  int64 `mapstructure:"minDeposit"`
	MaxDeposit  int64 `mapstructure:"maxDeposit"`
	MinWithdraw int64 `mapstructure:"minWithdraw"`
	MaxWithdraw int64 `mapstructure:"maxWithdraw"`
}

type PayoutConfig struct {
	NumberMultiplier int64 `mapstructure:"numberMultiplier"`
	DigitMultiplier  int64 `mapstructure:"digitMultiplier"`
}

type ReferralConfig struct {
	CommissionRate  string   `mapstructure:"commissionRate"` // decimal string, e.g. "0.10"
	CommissionGames []string `mapstructure:"commissionGames"`
	SignupBonus     string   `mapstructure:"signupBonus"`
}

type SettlementConfig struct {
	AutoDeclareGame     string `mapstructure:"autoDeclareGame"`
	AutoDeclareInterval int    `mapstructure:"autoDeclareInterval"` // seconds
}

var GlobalConfig *Config

func LoadConfig(path string) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file, %s", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}
	GlobalConfig = &cfg
}
