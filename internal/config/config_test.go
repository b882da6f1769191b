package config

import (
	"log/slog"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/assessments?sslmode=disable")
	t.Setenv("CASDOOR_ENDPOINT", "http://localhost:8000")
	t.Setenv("CASDOOR_CERT", "cert")
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "8080" {
					t.Errorf("Port = %s, want 8080", cfg.Port)
				}
				if cfg.Attempt.StartMaxRetries != 3 {
					t.Errorf("StartMaxRetries = %d, want 3", cfg.Attempt.StartMaxRetries)
				}
				if cfg.TemplateCacheTTL != 5*time.Minute {
					t.Errorf("TemplateCacheTTL = %v", cfg.TemplateCacheTTL)
				}
				if cfg.LogLevel != slog.LevelInfo {
					t.Errorf("LogLevel = %v", cfg.LogLevel)
				}
			},
		},
		{
			name: "overrides",
			env: map[string]string{
				"PORT":                      "9090",
				"LOG_LEVEL":                 "debug",
				"KAFKA_BROKERS":             "kafka-1:9092, kafka-2:9092,",
				"ATTEMPT_START_MAX_RETRIES": "5",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "9090" {
					t.Errorf("Port = %s", cfg.Port)
				}
				if cfg.LogLevel != slog.LevelDebug {
					t.Errorf("LogLevel = %v", cfg.LogLevel)
				}
				if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
					t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
				}
				if cfg.Attempt.StartMaxRetries != 5 {
					t.Errorf("StartMaxRetries = %d", cfg.Attempt.StartMaxRetries)
				}
			},
		},
		{
			name:    "invalid port",
			env:     map[string]string{"PORT": "http"},
			wantErr: true,
		},
		{
			name:    "retries must be positive",
			env:     map[string]string{"ATTEMPT_START_MAX_RETRIES": "0"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := LoadConfig()
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoadConfig_MissingDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CASDOOR_ENDPOINT", "http://localhost:8000")
	t.Setenv("CASDOOR_CERT", "cert")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for empty DATABASE_URL")
	}
}
