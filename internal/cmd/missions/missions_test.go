package missions

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfig_EnvAndFlags(t *testing.T) {
	t.Setenv("PROXIM8_MISSIONS_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("PROXIM8_MISSIONS_DEPLOYING_WINDOW", "30s")
	fs := flag.NewFlagSet("missions", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, []string{"-http-addr", "127.0.0.1:9080", "-jwt-issuer", "proxim8"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:9080" || cfg.JWTIssuer != "proxim8" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.JWTSecret == "" {
		t.Fatal("expected secret from environment")
	}
	if cfg.DeployingWindow != 30*time.Second {
		t.Fatalf("deploying window = %v, want 30s", cfg.DeployingWindow)
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("missions", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.HealthPort != 8082 || cfg.DBPath != "data/missions.db" {
		t.Fatalf("cfg = %+v", cfg)
	}
}
