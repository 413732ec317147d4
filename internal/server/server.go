package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/smallpie/smallpie/internal/analysis"
	"github.com/smallpie/smallpie/internal/audio"
	"github.com/smallpie/smallpie/internal/config"
	"github.com/smallpie/smallpie/internal/notify"
	"github.com/smallpie/smallpie/internal/session"
	"github.com/smallpie/smallpie/internal/storage"
	"github.com/smallpie/smallpie/internal/token"
	"github.com/smallpie/smallpie/internal/transcriber"
)

// ConfigSource provides the current configuration. The config manager
// satisfies it; hot reloads become visible on the next GetConfig call.
type ConfigSource interface {
	GetConfig() *config.Config
}

// pipelineDeps is everything one session or upload pipeline needs, built
// from the configuration current at admission time.
type pipelineDeps struct {
	extractor   session.Extractor
	transcriber session.Transcriber
	analyzer    analysis.Analyzer
	notifier    notify.Notifier
	config      session.Config
}

// Server is the thin ingestion surface: token issuance, file upload and the
// live streaming endpoint. All heavy lifting happens in the session
// package; handlers only validate entry and feed bytes through.
type Server struct {
	source ConfigSource

	tokens  *token.Service
	storage *storage.Store
	gate    *transcriber.Gate

	// deps builds the per-session pipeline from the live configuration.
	deps func() (pipelineDeps, error)
}

// New wires a server from a configuration source. The transcription gate,
// token service and storage live for the whole process; everything session
// scoped is rebuilt from the current config when a session is admitted, so
// config reloads apply to new sessions without a restart.
func New(source ConfigSource) (*Server, error) {
	cfg := source.GetConfig()

	store := storage.New(cfg.Storage.BaseDir)
	if err := store.EnsureDirs(); err != nil {
		return nil, err
	}

	s := &Server{
		source: source,
		tokens: token.NewService(token.Config{
			SigningKey:     cfg.Tokens.SigningKey,
			Audience:       cfg.Tokens.Audience,
			TTL:            cfg.Tokens.TTL,
			IssueLimit:     cfg.Tokens.IssueLimit,
			IssueWindow:    cfg.Tokens.IssueWindow,
			ValidateLimit:  cfg.Tokens.ValidateLimit,
			ValidateWindow: cfg.Tokens.ValidateWindow,
		}),
		storage: store,
		gate:    transcriber.NewGate(cfg.Pipeline.GateCapacity),
	}
	s.deps = s.buildDeps

	// Fail at startup, not at the first session, when the config cannot
	// produce a working pipeline.
	if _, err := s.buildDeps(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) buildDeps() (pipelineDeps, error) {
	cfg := s.source.GetConfig()

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
		return pipelineDeps{}, err
	}

	executor := transcriber.NewExecutor(s.gate, adapter)
	executor.Timeout = cfg.Pipeline.TranscribeTimeout

	var analyzer analysis.Analyzer
	if cfg.Analysis.Enabled {
		analyzer, err = analysis.NewAnalyzer(analysis.Config{
			APIKey: cfg.Analysis.APIKey,
			Model:  cfg.Analysis.Model,
		})
		if err != nil {
			return pipelineDeps{}, err
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

	return pipelineDeps{
		extractor:   audio.NewExtractor(),
		transcriber: executor,
		analyzer:    analyzer,
		notifier:    notifier,
		config: session.Config{
			SegmentSeconds: cfg.Pipeline.SegmentSeconds,
		},
	}, nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tokens", s.handleIssueToken)
	mux.HandleFunc("POST /api/meetings/upload", s.handleUpload)
	mux.HandleFunc("GET /ws", s.handleStream)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := s.source.GetConfig().Server.ListenAddr
	srv := &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server: listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// clientIdentity keys rate limit buckets by the caller's host.
func clientIdentity(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: failed to encode response: %v", err)
	}
}

func writeTokenError(w http.ResponseWriter, err error) {
	status := http.StatusUnauthorized
	if errors.Is(err, token.ErrRateLimited) {
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}
