package config

import (
	"errors"
	"testing"
	"time"

	"github.com/urfave/cli/v2"
)

func parse(t *testing.T, args ...string) Config {
	t.Helper()
	var got Config
	app := &cli.App{
		Name:  "test",
		Flags: Flags(),
		Action: func(c *cli.Context) error {
			got = FromContext(c)
			return nil
		},
	}
	if err := app.Run(append([]string{"test"}, args...)); err != nil {
		t.Fatalf("run: %v", err)
	}
	return got
}

func TestDefaults(t *testing.T) {
	cfg := parse(t)
	if cfg.HTTPAddr != ":9091" {
		t.Fatalf("addr %q", cfg.HTTPAddr)
	}
	if cfg.ConfirmationTTL != 24*time.Hour || cfg.ShutdownTimeout != 5*time.Second {
		t.Fatalf("durations %v %v", cfg.ConfirmationTTL, cfg.ShutdownTimeout)
	}
	if len(cfg.KafkaBrokers) != 0 || cfg.KafkaTopic != "order-events" {
		t.Fatalf("kafka %v %q", cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	if cfg.Seed {
		t.Fatalf("seed must be off by default")
	}
	if !errors.Is(cfg.Validate(), ErrMissingJWTSecret) {
		t.Fatalf("expected missing secret")
	}
}

func TestFlagsOverride(t *testing.T) {
	cfg := parse(t,
		"--jwt-secret", "s3cret",
		"--kafka-brokers", "k1:9092,k2:9092",
		"--public-base-url", "https://shop.example.com/",
		"--confirmation-ttl", "2h",
		"--seed",
	)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("brokers %v", cfg.KafkaBrokers)
	}
	if cfg.PublicBaseURL != "https://shop.example.com" {
		t.Fatalf("base url %q", cfg.PublicBaseURL)
	}
	if cfg.ConfirmationTTL != 2*time.Hour {
		t.Fatalf("ttl %v", cfg.ConfirmationTTL)
	}
	if !cfg.Seed {
		t.Fatalf("seed flag not parsed")
	}
}
