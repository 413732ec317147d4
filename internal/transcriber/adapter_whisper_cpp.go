package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"
)

// WhisperCppAdapter implements Adapter for local whisper-cpp transcription
// via the whisper-cli binary.
type WhisperCppAdapter struct {
	cliPath   string
	modelPath string
	language  string
	threads   int
}

func NewWhisperCppAdapter(config Config) *WhisperCppAdapter {
	cli := config.WhisperCLI
	if cli == "" {
		cli = "whisper-cli"
	}
	return &WhisperCppAdapter{
		cliPath:   cli,
		modelPath: config.WhisperModel,
		language:  config.Language,
		threads:   config.Threads,
	}
}

func (a *WhisperCppAdapter) Transcribe(ctx context.Context, wavPath string) (string, error) {
	if _, err := os.Stat(a.modelPath); os.IsNotExist(err) {
		return "", fmt.Errorf("model file not found: %s", a.modelPath)
	}

	cliPath, err := exec.LookPath(a.cliPath)
	if err != nil {
		return "", fmt.Errorf("whisper-cli not found: install whisper.cpp first")
	}

	lang := a.language
	if lang == "" {
		lang = "auto"
	}

	args := []string{
		"-m", a.modelPath,
		"-l", lang,
		"-nt", // no timestamps
		"-np", // no progress
		"-f", wavPath,
	}
	if a.threads > 0 {
		args = append(args, "-t", fmt.Sprintf("%d", a.threads))
	}

	cmd := exec.CommandContext(ctx, cliPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	duration := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Printf("whisper-cpp: command failed after %v: %v\nstderr: %s", duration, err, stderr.String())
		return "", fmt.Errorf("whisper-cli failed: %w", err)
	}

	text := strings.TrimSpace(stdout.String())
	log.Printf("whisper-cpp: transcribed %s in %v (%d chars)", wavPath, duration, len(text))
	return text, nil
}
