package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	t.Setenv("DB_PASSWORD", "test")
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_PASSWORD", "test")

	if _, err := Load(); err == nil {
		t.Fatal("Load() without JWT_SECRET = nil, want error")
	}
}

func TestLoad_RequiresDBPassword(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	t.Setenv("DB_PASSWORD", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load() without DB_PASSWORD = nil, want error")
	}
}

func TestLoad_AuthDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"JWTExpires", cfg.Auth.JWTExpires, time.Hour},
		{"VerificationTokenTTL", cfg.Auth.VerificationTokenTTL, 24 * time.Hour},
		{"PasswordResetTTL", cfg.Auth.PasswordResetTTL, 10 * time.Minute},
		{"UnlockTokenTTL", cfg.Auth.UnlockTokenTTL, 10 * time.Minute},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}

	if cfg.Auth.MaxLoginFailures != 3 {
		t.Errorf("MaxLoginFailures: got %d, want 3", cfg.Auth.MaxLoginFailures)
	}
	if cfg.Auth.SaltRounds != 12 {
		t.Errorf("SaltRounds: got %d, want 12", cfg.Auth.SaltRounds)
	}
}

func TestLoad_UploadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Uploads.MaxFiles != 5 {
		t.Errorf("MaxFiles: got %d, want 5", cfg.Uploads.MaxFiles)
	}
	if cfg.Uploads.MaxFileSize != 5*1024*1024 {
		t.Errorf("MaxFileSize: got %d, want 5MB", cfg.Uploads.MaxFileSize)
	}
	if cfg.Cleanup.Schedule != "@every 1h" {
		t.Errorf("Cleanup.Schedule: got %q", cfg.Cleanup.Schedule)
	}
}

func TestServerConfig_Timeouts_CustomValues(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_READ_TIMEOUT", "30s")
	t.Setenv("SERVER_WRITE_TIMEOUT", "45s")
	t.Setenv("SERVER_IDLE_TIMEOUT", "120s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"ReadTimeout", cfg.Server.ReadTimeout, 30 * time.Second},
		{"WriteTimeout", cfg.Server.WriteTimeout, 45 * time.Second},
		{"IdleTimeout", cfg.Server.IdleTimeout, 120 * time.Second},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}
}

func TestServerConfig_Timeouts_InvalidDuration(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_READ_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	// Invalid duration should fall back to default
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout with invalid value: got %v, want %v", cfg.Server.ReadTimeout, 15*time.Second)
	}
}

func TestLoad_RejectsUnknownEmailProvider(t *testing.T) {
	setRequired(t)
	t.Setenv("EMAIL_PROVIDER", "carrier-pigeon")

	if _, err := Load(); err == nil {
		t.Fatal("Load() with unknown EMAIL_PROVIDER = nil, want error")
	}
}

func TestValidateJWTSecret(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		env     string
		wantErr bool
	}{
		{"dev minimum", "0123456789abcdef", "development", false},
		{"dev too short", "short", "development", true},
		{"prod needs 32", "0123456789abcdef", "production", true},
		{"prod ok", "0123456789abcdef0123456789abcdef", "production", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateJWTSecret(tt.secret, tt.env)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateJWTSecret() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseList(t *testing.T) {
	got := parseList(" 10.0.0.0/8 , ,192.168.0.0/16")
	if len(got) != 2 || got[0] != "10.0.0.0/8" || got[1] != "192.168.0.0/16" {
		t.Errorf("parseList() = %v", got)
	}
	if len(parseList("")) != 0 {
		t.Error("parseList(\"\") should be empty")
	}
}

func TestLoad_RejectsBadCleanupSchedule(t *testing.T) {
	setRequired(t)
	t.Setenv("CLEANUP_SCHEDULE", "every now and then")

	if _, err := Load(); err == nil {
		t.Fatal("Load() with invalid CLEANUP_SCHEDULE = nil, want error")
	}

	t.Setenv("CLEANUP_ENABLED", "false")
	if _, err := Load(); err != nil {
		t.Fatalf("Load() with sweep disabled: %v", err)
	}
}
