package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/smallpie/smallpie/internal/analysis"
	"github.com/smallpie/smallpie/internal/audio"
	"github.com/smallpie/smallpie/internal/config"
	"github.com/smallpie/smallpie/internal/daemon"
	"github.com/smallpie/smallpie/internal/deps"
	"github.com/smallpie/smallpie/internal/notify"
	"github.com/smallpie/smallpie/internal/server"
	"github.com/smallpie/smallpie/internal/session"
	"github.com/smallpie/smallpie/internal/storage"
	"github.com/smallpie/smallpie/internal/transcriber"
)

const version = "0.5.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "smallpie",
	Short:         "Meeting transcription and analysis backend",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.AddCommand(
		serveCmd(),
		processCmd(),
		configureCmd(),
		doctorCmd(),
		versionCmd(),
	)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the backend server",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := config.NewManager()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			cfg := manager.GetConfig()
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := checkTools(cfg); err != nil {
				return err
			}

			if err := daemon.CheckExisting(); err != nil {
				return err
			}
			if err := daemon.WritePidFile(); err != nil {
				return fmt.Errorf("failed to write pid file: %w", err)
			}
			defer daemon.RemovePidFile()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if err := manager.StartWatching(ctx); err != nil {
				return fmt.Errorf("failed to watch configuration: %w", err)
			}
			defer manager.Stop()

			// The manager goes in whole so reloads reach new sessions.
			srv, err := server.New(manager)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}
			return srv.Run(ctx)
		},
	}
}

func processCmd() *cobra.Command {
	var meetingName, meetingTopic, participants, userEmail string

	cmd := &cobra.Command{
		Use:   "process <audio-file>",
		Short: "Transcribe and analyze a single audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			audioPath, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if _, err := os.Stat(audioPath); err != nil {
				return fmt.Errorf("audio file not found: %s", audioPath)
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := checkTools(cfg); err != nil {
				return err
			}

			pipeline, store, err := buildPipeline(cfg)
			if err != nil {
				return err
			}

			// process owns a copy of the input: the pipeline removes its
			// input when done, and a CLI user keeps their original file.
			sessionID, spooled, err := spool(store, audioPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			meta := analysis.Meta{
				MeetingName:  meetingName,
				Topic:        meetingTopic,
				Participants: participants,
			}
			return pipeline.Process(ctx, sessionID, spooled, meta, userEmail)
		},
	}

	cmd.Flags().StringVar(&meetingName, "name", "CLI meeting", "meeting name")
	cmd.Flags().StringVar(&meetingTopic, "topic", "Not specified", "meeting topic")
	cmd.Flags().StringVar(&participants, "participants", "Not specified", "participant count or description")
	cmd.Flags().StringVar(&userEmail, "email", "", "recipient for the analysis email")
	return cmd
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tool availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			statuses := deps.CheckAll(cfg.Transcription.Provider, cfg.Transcription.WhisperCLI)
			for _, s := range statuses {
				if s.Installed {
					fmt.Printf("  ok       %-12s %s\n", s.Name, s.Path)
					if s.Version != "" {
						fmt.Printf("           %12s %s\n", "", s.Version)
					}
					continue
				}
				if s.Required {
					fmt.Printf("  MISSING  %-12s required\n", s.Name)
				} else {
					fmt.Printf("  missing  %-12s optional\n", s.Name)
				}
			}

			if missing := deps.Missing(statuses); len(missing) > 0 {
				return fmt.Errorf("%d required tool(s) missing", len(missing))
			}
			return nil
		},
	}
}

// checkTools fails fast when a required external binary is absent, instead
// of every session failing at extraction time.
func checkTools(cfg *config.Config) error {
	statuses := deps.CheckAll(cfg.Transcription.Provider, cfg.Transcription.WhisperCLI)
	missing := deps.Missing(statuses)
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, len(missing))
	for i, s := range missing {
		names[i] = s.Name
	}
	return fmt.Errorf("required tools not found in PATH: %s (run `smallpie doctor`)", strings.Join(names, ", "))
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("smallpie %s\n", version)
		},
	}
}

func spool(store *storage.Store, audioPath string) (string, string, error) {
	sessionID := uuid.NewString()

	suffix := filepath.Ext(audioPath)
	if suffix == "" {
		suffix = ".bin"
	}
	spooled := filepath.Join(store.AudioDir(), sessionID+suffix)

	data, err := os.ReadFile(audioPath)
	if err != nil {
		return "", "", fmt.Errorf("read audio file: %w", err)
	}
	if err := os.WriteFile(spooled, data, 0600); err != nil {
		return "", "", fmt.Errorf("spool audio file: %w", err)
	}
	return sessionID, spooled, nil
}

func buildPipeline(cfg *config.Config) (*session.UploadPipeline, *storage.Store, error) {
	adapter, err := transcriber.NewAdapter(transcriber.Config{
		Provider:     cfg.Transcription.Provider,
		APIKey:       cfg.Transcription.APIKey,
		Language:     cfg.Transcription.Language,
		Model:        cfg.Transcription.Model,
		WhisperCLI:   cfg.Transcription.WhisperCLI,
		WhisperModel: cfg.Transcription.WhisperModel,
		Threads:      cfg.Transcription.Threads,
	})
	if err != nil {
		return nil, nil, err
	}

	executor := transcriber.NewExecutor(transcriber.NewGate(cfg.Pipeline.GateCapacity), adapter)
	executor.Timeout = cfg.Pipeline.TranscribeTimeout

	var analyzer analysis.Analyzer
	if cfg.Analysis.Enabled {
		analyzer, err = analysis.NewAnalyzer(analysis.Config{APIKey: cfg.Analysis.APIKey, Model: cfg.Analysis.Model})
		if err != nil {
			return nil, nil, err
		}
	}

	var notifier notify.Notifier = notify.Log{}
	if cfg.Email.Enabled {
		notifier = notify.NewEmail(notify.EmailConfig{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
			From:     cfg.Email.From,
		})
	}

	store := storage.New(cfg.Storage.BaseDir)
	if err := store.EnsureDirs(); err != nil {
		return nil, nil, err
	}

	pipeline := session.NewUploadPipeline(
		session.Config{SegmentSeconds: cfg.Pipeline.SegmentSeconds},
		audio.NewExtractor(), executor, analyzer, store, notifier,
	)
	return pipeline, store, nil
}
