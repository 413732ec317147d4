package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/smallpie/smallpie/internal/analysis"
	"github.com/smallpie/smallpie/internal/session"
	"github.com/smallpie/smallpie/internal/token"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  32 << 10,
	WriteBufferSize: 4 << 10,
	// The capability token already gates the session.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMetadata is the optional first text message of a streaming session.
type wsMetadata struct {
	Type         string `json:"type"`
	MeetingName  string `json:"meeting_name"`
	MeetingTopic string `json:"meeting_topic"`
	Participants string `json:"participants"`
	UserEmail    string `json:"user_email"`
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	payload, err := s.admit(r, r.URL.Query().Get("token"), token.ScopeStream)
	if err != nil {
		writeTokenError(w, err)
		return
	}

	deps, err := s.deps()
	if err != nil {
		log.Printf("ws: pipeline unavailable: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "processing unavailable"})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	q := r.URL.Query()
	meta := analysis.Meta{
		MeetingName:  queryValue(q.Get("meeting_name"), "Untitled meeting"),
		Topic:        queryValue(q.Get("meeting_topic"), "Not specified"),
		Participants: queryValue(q.Get("participants"), "Not specified"),
	}
	recipient := q.Get("user_email")

	log.Printf("ws: new recording session %s", payload.SessionID)

	orch := session.NewOrchestrator(payload.SessionID, meta, recipient, deps.config,
		deps.extractor, deps.transcriber, deps.analyzer, s.storage, deps.notifier)

	// The first text message may refine the metadata; it has to arrive
	// before the orchestrator is constructed with its final meta, so peek
	// at one message up front.
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		log.Printf("ws: client disconnected before sending anything: %v", err)
		return
	}

	switch msgType {
	case websocket.TextMessage:
		var m wsMetadata
		if jsonErr := json.Unmarshal(data, &m); jsonErr == nil && m.Type == "metadata" {
			meta = analysis.Meta{
				MeetingName:  queryValue(m.MeetingName, meta.MeetingName),
				Topic:        queryValue(m.MeetingTopic, meta.Topic),
				Participants: queryValue(m.Participants, meta.Participants),
			}
			if m.UserEmail != "" {
				recipient = m.UserEmail
			}
			log.Printf("ws: metadata received for session %s", payload.SessionID)
			orch = session.NewOrchestrator(payload.SessionID, meta, recipient, deps.config,
				deps.extractor, deps.transcriber, deps.analyzer, s.storage, deps.notifier)
		} else {
			log.Printf("ws: first message not metadata, using defaults")
		}
	case websocket.BinaryMessage:
		if err := orch.Ingest(data); err != nil {
			log.Printf("ws: ingest failed: %v", err)
		}
	}

	// Session processing must outlive the socket: a disconnect ends the
	// stream, it does not cancel in-flight transcription.
	go func() {
		if err := orch.Run(context.Background()); err != nil {
			log.Printf("ws: session %s failed: %v", payload.SessionID, err)
		}
	}()

	defer orch.End()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("ws: client disconnected: %v", err)
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if err := orch.Ingest(data); err != nil {
				log.Printf("ws: ingest failed: %v", err)
				return
			}

		case websocket.TextMessage:
			text := strings.TrimSpace(string(data))
			if isStopMarker(text) {
				log.Printf("ws: received stop marker for session %s", payload.SessionID)
				return
			}
			log.Printf("ws: ignoring text message: %q", text)
		}
	}
}

func isStopMarker(text string) bool {
	upper := strings.ToUpper(text)
	if upper == "STOP" || upper == "END" {
		return true
	}
	var parsed struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return strings.EqualFold(parsed.Type, "end")
	}
	return false
}

func queryValue(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
