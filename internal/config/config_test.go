package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "DEFAULT_CURRENCY")
	unsetEnvWithCleanup(t, "PLATFORM_FEE_PERCENT")
	unsetEnvWithCleanup(t, "MINIMUM_PAYOUT_MINOR")
	unsetEnvWithCleanup(t, "MINIMUM_PAYOUT")
	unsetEnvWithCleanup(t, "DEFAULT_PAYOUT_FREQUENCY")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.DefaultCurrency != "USD" {
		t.Fatalf("expected default currency USD, got %q", cfg.DefaultCurrency)
	}
	if cfg.PlatformFeePercent != 10.0 {
		t.Fatalf("expected default platform fee of 10 percent, got %f", cfg.PlatformFeePercent)
	}
	if cfg.MinimumPayoutMinor != 2500 {
		t.Fatalf("expected default minimum payout of 2500 minor units, got %d", cfg.MinimumPayoutMinor)
	}
	if cfg.DefaultPayoutFrequency != "MONTHLY" {
		t.Fatalf("expected default payout frequency MONTHLY, got %q", cfg.DefaultPayoutFrequency)
	}
}

func TestLoadConfig_MinimumPayoutInMajorUnits(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "MINIMUM_PAYOUT_MINOR")
	setEnvWithCleanup(t, "MINIMUM_PAYOUT", "50")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.MinimumPayoutMinor != 5000 {
		t.Fatalf("expected MINIMUM_PAYOUT=50 to become 5000 minor units, got %d", cfg.MinimumPayoutMinor)
	}
}

func TestLoadConfig_MinimumPayoutHonorsCurrencyMinorDigits(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "MINIMUM_PAYOUT_MINOR")
	setEnvWithCleanup(t, "DEFAULT_CURRENCY", "JPY")
	setEnvWithCleanup(t, "MINIMUM_PAYOUT", "500")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.MinimumPayoutMinor != 500 {
		t.Fatalf("expected MINIMUM_PAYOUT=500 JPY to stay 500 minor units, got %d", cfg.MinimumPayoutMinor)
	}
}

func TestLoadConfig_UsesMonetizationServiceInternalAPIKeyAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "INTERNAL_API_KEY")
	setEnvWithCleanup(t, "MONETIZATION_SERVICE_INTERNAL_API_KEY", "alias-only-key")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.InternalAPIKey != "alias-only-key" {
		t.Fatalf("expected InternalAPIKey from alias env var, got %q", cfg.InternalAPIKey)
	}
}

func TestLoadConfig_UnknownFrequencyFallsBack(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "DEFAULT_PAYOUT_FREQUENCY", "fortnightly")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.DefaultPayoutFrequency != "MONTHLY" {
		t.Fatalf("expected unknown frequency to fall back to MONTHLY, got %q", cfg.DefaultPayoutFrequency)
	}
}

func TestLoadConfig_ClampsFeePercent(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "PLATFORM_FEE_PERCENT", "150")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PlatformFeePercent != 100 {
		t.Fatalf("expected platform fee percent capped at 100, got %f", cfg.PlatformFeePercent)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
