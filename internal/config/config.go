package config

import (
	"fmt"
	"os"
	"time"

	"github.com/smallpie/smallpie/internal/language"
)

type Config struct {
	Pipeline      PipelineConfig      `toml:"pipeline"`
	Transcription TranscriptionConfig `toml:"transcription"`
	Analysis      AnalysisConfig      `toml:"analysis"`
	Tokens        TokensConfig        `toml:"tokens"`
	Storage       StorageConfig       `toml:"storage"`
	Email         EmailConfig         `toml:"email"`
	Server        ServerConfig        `toml:"server"`
}

type PipelineConfig struct {
	SegmentSeconds    int           `toml:"segment_seconds"`
	GateCapacity      int           `toml:"gate_capacity"`
	TranscribeTimeout time.Duration `toml:"transcribe_timeout"`
}

type TranscriptionConfig struct {
	Provider     string `toml:"provider"`
	APIKey       string `toml:"api_key"`
	Language     string `toml:"language"`
	Model        string `toml:"model"`
	WhisperCLI   string `toml:"whisper_cli"`
	WhisperModel string `toml:"whisper_model"`
	Threads      int    `toml:"threads"`
}

type AnalysisConfig struct {
	Enabled bool   `toml:"enabled"`
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
}

type TokensConfig struct {
	SigningKey     string        `toml:"signing_key"`
	Audience       string        `toml:"audience"`
	TTL            time.Duration `toml:"ttl"`
	IssueLimit     int           `toml:"issue_limit"`
	IssueWindow    time.Duration `toml:"issue_window"`
	ValidateLimit  int           `toml:"validate_limit"`
	ValidateWindow time.Duration `toml:"validate_window"`
}

type StorageConfig struct {
	BaseDir string `toml:"base_dir"`
}

type EmailConfig struct {
	Enabled      bool   `toml:"enabled"`
	SMTPHost     string `toml:"smtp_host"`
	SMTPPort     int    `toml:"smtp_port"`
	SMTPUsername string `toml:"smtp_username"`
	SMTPPassword string `toml:"smtp_password"`
	From         string `toml:"from"`
}

type ServerConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// applyEnvOverrides pulls secrets from the environment so they never have to
// live in the config file.
func (c *Config) applyEnvOverrides() {
	if c.Transcription.APIKey == "" {
		c.Transcription.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Analysis.APIKey == "" {
		c.Analysis.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if key := os.Getenv("SMALLPIE_SIGNING_KEY"); key != "" {
		c.Tokens.SigningKey = key
	}
	if pw := os.Getenv("SMALLPIE_SMTP_PASSWORD"); pw != "" {
		c.Email.SMTPPassword = pw
	}
}

func (c *Config) Validate() error {
	// Pipeline
	if c.Pipeline.SegmentSeconds <= 0 {
		return fmt.Errorf("invalid pipeline.segment_seconds: %d", c.Pipeline.SegmentSeconds)
	}
	if c.Pipeline.GateCapacity <= 0 {
		return fmt.Errorf("invalid pipeline.gate_capacity: %d", c.Pipeline.GateCapacity)
	}
	if c.Pipeline.TranscribeTimeout < 0 {
		return fmt.Errorf("invalid pipeline.transcribe_timeout: %v", c.Pipeline.TranscribeTimeout)
	}

	// Transcription
	if !language.IsValidCode(c.Transcription.Language) {
		return fmt.Errorf("invalid transcription.language: %s (use an ISO 639-1 code or leave empty for auto-detect)", c.Transcription.Language)
	}
	switch c.Transcription.Provider {
	case "whisper-cpp":
		if c.Transcription.WhisperModel == "" {
			return fmt.Errorf("transcription.whisper_model required for whisper-cpp provider")
		}
	case "openai":
		if c.Transcription.APIKey == "" {
			return fmt.Errorf("OpenAI API key required: not found in config (transcription.api_key) or environment variable (OPENAI_API_KEY)")
		}
		if c.Transcription.Model == "" {
			return fmt.Errorf("invalid transcription.model: empty")
		}
	default:
		return fmt.Errorf("invalid transcription.provider: %s (must be whisper-cpp or openai)", c.Transcription.Provider)
	}

	// Analysis
	if c.Analysis.Enabled {
		if c.Analysis.APIKey == "" {
			return fmt.Errorf("OpenAI API key required for analysis: not found in config (analysis.api_key) or environment variable (OPENAI_API_KEY)")
		}
		if c.Analysis.Model == "" {
			return fmt.Errorf("invalid analysis.model: empty")
		}
	}

	// Tokens
	if c.Tokens.SigningKey == "" {
		return fmt.Errorf("tokens.signing_key required: set it in config or via SMALLPIE_SIGNING_KEY")
	}
	if c.Tokens.Audience == "" {
		return fmt.Errorf("invalid tokens.audience: empty")
	}
	if c.Tokens.TTL <= 0 {
		return fmt.Errorf("invalid tokens.ttl: %v", c.Tokens.TTL)
	}
	if c.Tokens.IssueLimit <= 0 {
		return fmt.Errorf("invalid tokens.issue_limit: %d", c.Tokens.IssueLimit)
	}
	if c.Tokens.IssueWindow <= 0 {
		return fmt.Errorf("invalid tokens.issue_window: %v", c.Tokens.IssueWindow)
	}
	if c.Tokens.ValidateLimit <= 0 {
		return fmt.Errorf("invalid tokens.validate_limit: %d", c.Tokens.ValidateLimit)
	}
	if c.Tokens.ValidateWindow <= 0 {
		return fmt.Errorf("invalid tokens.validate_window: %v", c.Tokens.ValidateWindow)
	}

	// Storage
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("invalid storage.base_dir: empty")
	}

	// Email
	if c.Email.Enabled {
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("invalid email.smtp_host: empty")
		}
		if c.Email.SMTPPort <= 0 {
			return fmt.Errorf("invalid email.smtp_port: %d", c.Email.SMTPPort)
		}
		if c.Email.SMTPUsername == "" {
			return fmt.Errorf("invalid email.smtp_username: empty")
		}
	}

	// Server
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("invalid server.listen_addr: empty")
	}

	return nil
}
