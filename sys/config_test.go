package sys

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Token:              "token",
		GuildID:            "123456789012345678",
		DatabasePath:       "./data.db",
		FFmpegPath:         "ffmpeg",
		StreamBufferChunks: 256,
		TTSMaxAttempts:     12,
		TTSMaxChars:        100,
		IdleTimeout:        5 * time.Minute,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty guild id allowed", func(c *Config) { c.GuildID = "" }, false},
		{"missing token", func(c *Config) { c.Token = "" }, true},
		{"guild id too short", func(c *Config) { c.GuildID = "12345" }, true},
		{"guild id too long", func(c *Config) { c.GuildID = strings.Repeat("1", 25) }, true},
		{"zero buffer chunks", func(c *Config) { c.StreamBufferChunks = 0 }, true},
		{"zero tts attempts", func(c *Config) { c.TTSMaxAttempts = 0 }, true},
		{"zero tts chars", func(c *Config) { c.TTSMaxChars = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigDSN(t *testing.T) {
	cfg := validConfig()
	dsn := cfg.DSN()
	if !strings.HasPrefix(dsn, "./data.db?") {
		t.Errorf("DSN = %q", dsn)
	}
	if !strings.Contains(dsn, "_journal_mode=WAL") {
		t.Errorf("DSN missing WAL option: %q", dsn)
	}
}
