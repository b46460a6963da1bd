package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default values",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "8080" {
					t.Errorf("expected port 8080, got %s", cfg.Port)
				}
				if cfg.ChatIdleTimeout != 20*time.Minute {
					t.Errorf("expected chat idle timeout 20m, got %v", cfg.ChatIdleTimeout)
				}
				if cfg.RatingTimeout != 5*time.Minute {
					t.Errorf("expected rating timeout 5m, got %v", cfg.RatingTimeout)
				}
				if cfg.TickInterval != 5*time.Second {
					t.Errorf("expected tick interval 5s, got %v", cfg.TickInterval)
				}
				if cfg.AvgServiceMinutes != 5 {
					t.Errorf("expected 5 avg service minutes, got %d", cfg.AvgServiceMinutes)
				}
				if cfg.CloseCommand != "close" || cfg.ConfirmCommand != "yes" || cfg.DeclineCommand != "no" {
					t.Errorf("unexpected command tokens: %q %q %q", cfg.CloseCommand, cfg.ConfirmCommand, cfg.DeclineCommand)
				}
			},
		},
		{
			name: "custom values",
			env: map[string]string{
				"PORT":                  "9000",
				"CHAT_IDLE_TIMEOUT_MIN": "30",
				"RATING_TIMEOUT_MIN":    "10",
				"TICK_INTERVAL_SEC":     "2",
				"AVG_SERVICE_MINUTES":   "7",
				"CMD_CLOSE":             "End",
				"ALLOWED_ORIGINS":       "http://example.com, http://test.com",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "9000" {
					t.Errorf("expected port 9000, got %s", cfg.Port)
				}
				if cfg.ChatIdleTimeout != 30*time.Minute {
					t.Errorf("expected chat idle timeout 30m, got %v", cfg.ChatIdleTimeout)
				}
				if cfg.RatingTimeout != 10*time.Minute {
					t.Errorf("expected rating timeout 10m, got %v", cfg.RatingTimeout)
				}
				if cfg.TickInterval != 2*time.Second {
					t.Errorf("expected tick interval 2s, got %v", cfg.TickInterval)
				}
				if cfg.AvgServiceMinutes != 7 {
					t.Errorf("expected 7 avg service minutes, got %d", cfg.AvgServiceMinutes)
				}
				// Tokens are lowercased on load
				if cfg.CloseCommand != "end" {
					t.Errorf("expected close command 'end', got %q", cfg.CloseCommand)
				}
				if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://test.com" {
					t.Errorf("expected trimmed origins, got %v", cfg.AllowedOrigins)
				}
			},
		},
		{
			name:    "invalid timeout",
			env:     map[string]string{"CHAT_IDLE_TIMEOUT_MIN": "twenty"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.env {
				os.Setenv(k, v)
			}
			defer os.Clearenv()

			cfg, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}
