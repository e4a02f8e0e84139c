package sys

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Token        string `env:"DISCORD_TOKEN"`
	GuildID      string `env:"GUILD_ID"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data.db"`

	// Spotify links resolve through the Web API; without credentials they
	// are reported as unsupported.
	SpotifyID     string `env:"SPOTIFY_ID"`
	SpotifySecret string `env:"SPOTIFY_SECRET"`

	FFmpegPath         string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	StreamBufferChunks int           `env:"STREAM_BUFFER_CHUNKS" envDefault:"256"`
	TTSMaxAttempts     int           `env:"TTS_MAX_ATTEMPTS" envDefault:"12"`
	TTSMaxChars        int           `env:"TTS_MAX_CHARS" envDefault:"100"`
	IdleTimeout        time.Duration `env:"IDLE_TIMEOUT" envDefault:"5m"`

	Silent bool `env:"SILENT" envDefault:"false"`
}

var GlobalConfig *Config

// Validate ensures the configuration is valid and meets requirements.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf(MsgConfigMissingToken)
	}

	// Basic Snowflake validation for GuildID if provided
	if c.GuildID != "" && (len(c.GuildID) < 17 || len(c.GuildID) > 20) {
		return fmt.Errorf("invalid GUILD_ID: must be a valid Snowflake")
	}

	if c.StreamBufferChunks <= 0 {
		return fmt.Errorf("STREAM_BUFFER_CHUNKS must be positive")
	}
	if c.TTSMaxAttempts <= 0 || c.TTSMaxChars <= 0 {
		return fmt.Errorf("TTS_MAX_ATTEMPTS and TTS_MAX_CHARS must be positive")
	}

	return nil
}

// DSN returns the sqlite data source string with WAL and busy timeout applied.
func (c *Config) DSN() string {
	return fmt.Sprintf("%s?_journal_mode=WAL&_timeout=5000", c.DatabasePath)
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Silent {
		SetSilentMode(true)
	}

	GlobalConfig = cfg
	return cfg, nil
}

func GetProjectName() string {
	exePath, err := os.Executable()
	projectName := "hibiki"
	if err == nil {
		projectName = filepath.Base(exePath)
		projectName = strings.TrimSuffix(projectName, ".exe")

		if projectName == "main" || strings.HasPrefix(projectName, "go_build_") {
			if modData, err := os.ReadFile("go.mod"); err == nil {
				lines := strings.Split(string(modData), "\n")
				if len(lines) > 0 && strings.HasPrefix(lines[0], "module ") {
					parts := strings.Split(lines[0], "/")
					projectName = strings.TrimSpace(parts[len(parts)-1])
				}
			}
		}
	}
	return projectName
}
