package config

import "time"

// DefaultConfig returns the initial configuration written on first run.
func DefaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			SegmentSeconds:    60,
			GateCapacity:      1,
			TranscribeTimeout: 0, // unbounded
		},
		Transcription: TranscriptionConfig{
			Provider:     "whisper-cpp",
			Language:     "",
			Model:        "whisper-1",
			WhisperCLI:   "whisper-cli",
			WhisperModel: "",
			Threads:      0,
		},
		Analysis: AnalysisConfig{
			Enabled: true,
			Model:   "gpt-4o",
		},
		Tokens: TokensConfig{
			Audience:       "smallpie",
			TTL:            5 * time.Minute,
			IssueLimit:     10,
			IssueWindow:    time.Minute,
			ValidateLimit:  30,
			ValidateWindow: time.Minute,
		},
		Storage: StorageConfig{
			BaseDir: "", // resolved by Load when empty
		},
		Email: EmailConfig{
			Enabled:  false,
			SMTPPort: 587,
			From:     "no-reply@smallpie.local",
		},
		Server: ServerConfig{
			ListenAddr: ":8000",
		},
	}
}
