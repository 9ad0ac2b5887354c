package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Transport:    TransportConfig{Token: "test-token"},
		Verification: VerificationConfig{Token: "verify-token"},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig()
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Transport.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q, want longpoll", cfg.Transport.RunMode)
	}
	if cfg.Engine.SessionTTL != 10*time.Minute {
		t.Fatalf("session ttl = %v", cfg.Engine.SessionTTL)
	}
	if cfg.Pricing.UnitPrice != 15 || cfg.Pricing.DeliverySurcharge != 7 || cfg.Pricing.FreeDeliveryMin != 3 {
		t.Fatalf("pricing defaults = %+v", cfg.Pricing)
	}
	if cfg.Verification.BaseURL == "" || cfg.Verification.Timeout <= 0 {
		t.Fatalf("verification defaults = %+v", cfg.Verification)
	}
}

func TestNormalizeRunModeAlias(t *testing.T) {
	cfg := validConfig()
	cfg.Transport.RunMode = "polling"
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Transport.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q", cfg.Transport.RunMode)
	}
}

func TestNormalizeWebhookRequiresEndpoint(t *testing.T) {
	cfg := validConfig()
	cfg.Transport.RunMode = RunModeWebhook
	err := Normalize(cfg)
	if err == nil || !strings.Contains(err.Error(), "webhook.url") {
		t.Fatalf("expected webhook.url error, got %v", err)
	}
	cfg.Webhook.URL = "https://bot.example.com"
	cfg.Webhook.Listen = "0.0.0.0"
	cfg.Webhook.Port = 8443
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize with webhook: %v", err)
	}
}

func TestNormalizeRejectsMissingTokens(t *testing.T) {
	cfg := validConfig()
	cfg.Transport.Token = ""
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected transport token error")
	}

	cfg = validConfig()
	cfg.Verification.Token = " "
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected verification token error")
	}
}

func TestNormalizeRejectsInvalidRunMode(t *testing.T) {
	cfg := validConfig()
	cfg.Transport.RunMode = "carrier-pigeon"
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected run mode error")
	}
}
