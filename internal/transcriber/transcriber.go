package transcriber

import "context"

// Adapter interface for transcription backends. Implementations take a path
// to a mono 16 kHz WAV file and return plain transcript text.
type Adapter interface {
	Transcribe(ctx context.Context, wavPath string) (string, error)
}

// Config holds adapter configuration.
type Config struct {
	Provider     string
	APIKey       string
	Language     string
	Model        string
	WhisperCLI   string
	WhisperModel string
	Threads      int
}

func DefaultConfig() Config {
	return Config{
		Provider:   "whisper-cpp",
		WhisperCLI: "whisper-cli",
		Model:      "whisper-1",
	}
}

// NewAdapter creates the adapter for the configured provider.
func NewAdapter(config Config) (Adapter, error) {
	switch config.Provider {
	case "whisper-cpp":
		return NewWhisperCppAdapter(config), nil
	case "openai":
		if config.APIKey == "" {
			return nil, errAPIKeyRequired
		}
		return NewOpenAIAdapter(config), nil
	default:
		return nil, errUnsupportedProvider(config.Provider)
	}
}
