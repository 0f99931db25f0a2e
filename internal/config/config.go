/**
 * @description
 * This package handles the configuration management for the monetization
 * service. It uses the Viper library to read configuration from environment
 * variables, providing a centralized and straightforward way to manage
 * application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/inkwell/monetization-service/internal/money"
)

// Config holds all the configuration variables for the monetization-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort              string  `mapstructure:"SERVER_PORT"`
	DatabaseURL             string  `mapstructure:"DATABASE_URL"`
	RabbitMQURL             string  `mapstructure:"RABBITMQ_URL"`
	UnlockEventQueue        string  `mapstructure:"UNLOCK_EVENT_QUEUE"`
	PayoutEventQueue        string  `mapstructure:"PAYOUT_EVENT_QUEUE"`
	ProviderAPIBaseURL      string  `mapstructure:"PROVIDER_API_BASE_URL"`
	ProviderAPIKey          string  `mapstructure:"PROVIDER_API_KEY"`
	JWKSURL                 string  `mapstructure:"JWKS_URL"`
	InternalAPIKey          string  `mapstructure:"INTERNAL_API_KEY"`
	DefaultCurrency         string  `mapstructure:"DEFAULT_CURRENCY"`
	PlatformFeePercent      float64 `mapstructure:"PLATFORM_FEE_PERCENT"`
	PartnerFeePercent       float64 `mapstructure:"PARTNER_FEE_PERCENT"`
	MinimumPayoutMinor      int64   `mapstructure:"MINIMUM_PAYOUT_MINOR"`
	DefaultPayoutFrequency  string  `mapstructure:"DEFAULT_PAYOUT_FREQUENCY"`
	AllowBelowMinimum       bool    `mapstructure:"PAYOUT_ALLOW_BELOW_MINIMUM"`
	AutoPayoutSweepSchedule string  `mapstructure:"AUTO_PAYOUT_SWEEP_SCHEDULE"`
	PayoutDispatchSchedule  string  `mapstructure:"PAYOUT_DISPATCH_SCHEDULE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("UNLOCK_EVENT_QUEUE", "monetization_service.chapter_unlocks")
	viper.SetDefault("PAYOUT_EVENT_QUEUE", "monetization_service.payout_updates")
	viper.SetDefault("DEFAULT_CURRENCY", "USD")
	viper.SetDefault("PLATFORM_FEE_PERCENT", 10.0)
	viper.SetDefault("PARTNER_FEE_PERCENT", 7.0)
	viper.SetDefault("MINIMUM_PAYOUT_MINOR", 2500)
	viper.SetDefault("DEFAULT_PAYOUT_FREQUENCY", "MONTHLY")
	viper.SetDefault("PAYOUT_ALLOW_BELOW_MINIMUM", false)
	viper.SetDefault("AUTO_PAYOUT_SWEEP_SCHEDULE", "0 2 * * *")
	viper.SetDefault("PAYOUT_DISPATCH_SCHEDULE", "*/10 * * * *")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("UNLOCK_EVENT_QUEUE")
	_ = viper.BindEnv("PAYOUT_EVENT_QUEUE")
	_ = viper.BindEnv("PROVIDER_API_BASE_URL")
	_ = viper.BindEnv("PROVIDER_API_KEY")
	_ = viper.BindEnv("JWKS_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "MONETIZATION_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("DEFAULT_CURRENCY")
	_ = viper.BindEnv("PLATFORM_FEE_PERCENT")
	_ = viper.BindEnv("PARTNER_FEE_PERCENT")
	_ = viper.BindEnv("MINIMUM_PAYOUT_MINOR")
	_ = viper.BindEnv("MINIMUM_PAYOUT")
	_ = viper.BindEnv("DEFAULT_PAYOUT_FREQUENCY")
	_ = viper.BindEnv("PAYOUT_ALLOW_BELOW_MINIMUM")
	_ = viper.BindEnv("AUTO_PAYOUT_SWEEP_SCHEDULE")
	_ = viper.BindEnv("PAYOUT_DISPATCH_SCHEDULE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("MONETIZATION_SERVICE_INTERNAL_API_KEY"))
	}

	config.DefaultCurrency = strings.ToUpper(strings.TrimSpace(config.DefaultCurrency))
	if config.DefaultCurrency == "" {
		config.DefaultCurrency = "USD"
	}

	// Allow specifying the minimum payout in whole currency units via
	// MINIMUM_PAYOUT. Conversion is currency-aware: a JPY minimum has no
	// minor-unit shift, while USD shifts by two digits.
	if viper.IsSet("MINIMUM_PAYOUT") {
		minStr := strings.TrimSpace(viper.GetString("MINIMUM_PAYOUT"))
		if minStr != "" {
			minValue, parseErr := decimal.NewFromString(minStr)
			if parseErr != nil {
				log.Printf("level=warn component=config msg=\"invalid MINIMUM_PAYOUT\" value=%q err=%v", minStr, parseErr)
			} else {
				config.MinimumPayoutMinor = money.FromDecimal(minValue, config.DefaultCurrency).MinorUnits
			}
		}
	}

	if config.MinimumPayoutMinor < 0 {
		log.Printf("level=warn component=config msg=\"negative minimum payout configured; coercing to zero\" minimum_minor=%d", config.MinimumPayoutMinor)
		config.MinimumPayoutMinor = 0
	}

	if config.PlatformFeePercent < 0 {
		log.Printf("level=warn component=config msg=\"negative platform fee percent configured; coercing to zero\" fee_percent=%f", config.PlatformFeePercent)
		config.PlatformFeePercent = 0
	}
	if config.PlatformFeePercent > 100 {
		log.Printf("level=warn component=config msg=\"platform fee percent too high; capping at 100\" fee_percent=%f", config.PlatformFeePercent)
		config.PlatformFeePercent = 100
	}
	if config.PartnerFeePercent < 0 {
		log.Printf("level=warn component=config msg=\"negative partner fee percent configured; coercing to zero\" fee_percent=%f", config.PartnerFeePercent)
		config.PartnerFeePercent = 0
	}
	if config.PartnerFeePercent > 100 {
		log.Printf("level=warn component=config msg=\"partner fee percent too high; capping at 100\" fee_percent=%f", config.PartnerFeePercent)
		config.PartnerFeePercent = 100
	}

	config.DefaultPayoutFrequency = strings.ToUpper(strings.TrimSpace(config.DefaultPayoutFrequency))
	switch config.DefaultPayoutFrequency {
	case "WEEKLY", "MONTHLY", "QUARTERLY", "MANUAL":
	default:
		log.Printf("level=warn component=config msg=\"unknown default payout frequency; falling back to MONTHLY\" frequency=%q", config.DefaultPayoutFrequency)
		config.DefaultPayoutFrequency = "MONTHLY"
	}

	if strings.TrimSpace(config.AutoPayoutSweepSchedule) == "" {
		config.AutoPayoutSweepSchedule = "0 2 * * *"
	}
	if strings.TrimSpace(config.PayoutDispatchSchedule) == "" {
		config.PayoutDispatchSchedule = "*/10 * * * *"
	}

	return
}
