package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/smallpie/smallpie/internal/config"
	"github.com/smallpie/smallpie/internal/language"
)

func configureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Interactive configuration setup",
		Long: `Interactive configuration setup for smallpie.
This walks through the basics:
- transcription provider (local whisper-cpp or the OpenAI API)
- analysis model and API key
- token signing key
- segment duration and gate capacity`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if err := runConfigureForm(cfg); err != nil {
				return err
			}
			if err := config.Save(cfg); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}
			path, _ := config.GetConfigPath()
			fmt.Printf("Configuration saved to %s\n", path)
			return nil
		},
	}
}

func runConfigureForm(cfg *config.Config) error {
	segmentSeconds := strconv.Itoa(cfg.Pipeline.SegmentSeconds)
	gateCapacity := strconv.Itoa(cfg.Pipeline.GateCapacity)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Transcription provider").
				Description("whisper-cpp runs locally via whisper-cli; openai uses the hosted API").
				Options(
					huh.NewOption("whisper-cpp (local)", "whisper-cpp"),
					huh.NewOption("OpenAI API", "openai"),
				).
				Value(&cfg.Transcription.Provider),
			huh.NewInput().
				Title("whisper-cpp model path").
				Description("Path to a ggml model file (whisper-cpp provider only)").
				Value(&cfg.Transcription.WhisperModel),
			huh.NewSelect[string]().
				Title("Transcription language").
				Description("Fixing the language improves accuracy for single-language meetings").
				Options(languageOptions()...).
				Value(&cfg.Transcription.Language),
			huh.NewInput().
				Title("OpenAI API key").
				Description("Used for the openai provider and for analysis; leave empty to use OPENAI_API_KEY").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.Transcription.APIKey),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable transcript analysis?").
				Value(&cfg.Analysis.Enabled),
			huh.NewInput().
				Title("Analysis model").
				Value(&cfg.Analysis.Model),
			huh.NewInput().
				Title("Token signing key").
				Description("Secret for session token signatures; leave empty to use SMALLPIE_SIGNING_KEY").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.Tokens.SigningKey),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Segment duration (seconds)").
				Validate(validatePositiveInt).
				Value(&segmentSeconds),
			huh.NewInput().
				Title("Transcription gate capacity").
				Description("How many transcriptions may run at once; 1 serializes the CPU-bound engine").
				Validate(validatePositiveInt).
				Value(&gateCapacity),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Pipeline.SegmentSeconds, _ = strconv.Atoi(segmentSeconds)
	cfg.Pipeline.GateCapacity, _ = strconv.Atoi(gateCapacity)

	if cfg.Analysis.APIKey == "" {
		cfg.Analysis.APIKey = cfg.Transcription.APIKey
	}
	return nil
}

func languageOptions() []huh.Option[string] {
	options := []huh.Option[string]{huh.NewOption(language.Auto.Name, "")}
	for _, lang := range language.List() {
		options = append(options, huh.NewOption(fmt.Sprintf("%s (%s)", lang.Name, lang.Code), lang.Code))
	}
	return options
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive integer")
	}
	return nil
}
