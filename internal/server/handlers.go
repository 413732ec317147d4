package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/smallpie/smallpie/internal/analysis"
	"github.com/smallpie/smallpie/internal/session"
	"github.com/smallpie/smallpie/internal/token"
)

const maxUploadBytes = 1 << 30 // 1 GiB

type issueRequest struct {
	Scope     string `json:"scope"`
	SessionID string `json:"session_id,omitempty"`
}

type issueResponse struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	ExpiresAt int64  `json:"expires_at"`
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid request body"})
		return
	}

	issued, err := s.tokens.Issue(req.Scope, req.SessionID, clientIdentity(r))
	if err != nil {
		if errors.Is(err, token.ErrInvalidScope) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
			return
		}
		writeTokenError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, issueResponse{
		Token:     issued.Token,
		SessionID: issued.SessionID,
		ExpiresAt: issued.ExpiredAt,
	})
}

func decodeJSONBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// admit validates a bearer token for the expected scope and immediately
// revokes it: each issued token admits at most one session.
func (s *Server) admit(r *http.Request, tokenStr, expectedScope string) (token.Payload, error) {
	payload, err := s.tokens.Validate(tokenStr, expectedScope, clientIdentity(r))
	if err != nil {
		return token.Payload{}, err
	}
	s.tokens.RevokeID(payload.TokenID)
	return payload, nil
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	payload, err := s.admit(r, bearerToken(r), token.ScopeUpload)
	if err != nil {
		writeTokenError(w, err)
		return
	}

	// Built per admission so config reloads apply to new uploads.
	deps, err := s.deps()
	if err != nil {
		log.Printf("server: pipeline unavailable: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "processing unavailable"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid multipart form"})
		return
	}

	meta := analysis.Meta{
		MeetingName:  formValue(r, "meeting_name", "Untitled meeting"),
		Topic:        formValue(r, "meeting_topic", "Not specified"),
		Participants: formValue(r, "participants", "Not specified"),
	}
	recipient := r.FormValue("user_email")

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "file field required"})
		return
	}
	defer file.Close()

	suffix := filepath.Ext(header.Filename)
	if suffix == "" {
		suffix = ".bin"
	}
	rawPath := filepath.Join(s.storage.AudioDir(), payload.SessionID+suffix)

	dst, err := os.Create(rawPath)
	if err != nil {
		log.Printf("server: failed to spool upload: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "failed to store upload"})
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(rawPath)
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "failed to read upload"})
		return
	}
	dst.Close()

	log.Printf("server: stored uploaded file at %s", rawPath)

	pipeline := session.NewUploadPipeline(deps.config, deps.extractor, deps.transcriber, deps.analyzer, s.storage, deps.notifier)
	go func() {
		if err := pipeline.Process(context.Background(), payload.SessionID, rawPath, meta, recipient); err != nil {
			log.Printf("server: upload pipeline failed for session %s: %v", payload.SessionID, err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":     "accepted",
		"meeting_id": payload.SessionID,
		"message":    "File received. Processing will continue in the background.",
	})
}

func formValue(r *http.Request, key, fallback string) string {
	if v := r.FormValue(key); v != "" {
		return v
	}
	return fallback
}
