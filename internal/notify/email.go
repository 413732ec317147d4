package notify

import (
	"fmt"
	"log"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"

	"github.com/smallpie/smallpie/internal/analysis"
)

// transcriptLimit caps how much raw transcript goes into the mail body.
const transcriptLimit = 15000

// EmailConfig for SMTP delivery.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Email sends the analysis report over SMTP. Missing recipients and
// delivery failures are logged and swallowed: notification never affects
// session outcome.
type Email struct {
	config EmailConfig
}

func NewEmail(config EmailConfig) *Email {
	return &Email{config: config}
}

func (e *Email) AnalysisReady(recipient string, meta analysis.Meta, sessionID, location string) {
	if recipient == "" {
		return
	}

	body := e.buildBody(meta, sessionID, location)

	msg := strings.Builder{}
	fmt.Fprintf(&msg, "From: %s\r\n", e.config.From)
	fmt.Fprintf(&msg, "To: %s\r\n", recipient)
	fmt.Fprintf(&msg, "Subject: smallpie notes: %s\r\n", meta.MeetingName)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)

	if err := smtp.SendMail(addr, auth, e.config.From, []string{recipient}, []byte(msg.String())); err != nil {
		log.Printf("email: send failed for meeting %s: %v", sessionID, err)
		return
	}
	log.Printf("email: notes for meeting %s sent to %s", sessionID, recipient)
}

func (e *Email) buildBody(meta analysis.Meta, sessionID, location string) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Here are your smallpie notes for meeting %q (ID: %s).", meta.MeetingName, sessionID))
	parts = append(parts, "")

	if report := readOutput(location, "analysis.txt", sessionID); report != "" {
		parts = append(parts, "=== ANALYSIS ===", report, "")
	}
	if transcript := readOutput(location, "transcript.txt", sessionID); transcript != "" {
		parts = append(parts, "=== TRANSCRIPT (may be truncated) ===")
		if len(transcript) > transcriptLimit {
			parts = append(parts, transcript[:transcriptLimit], "[transcript truncated]")
		} else {
			parts = append(parts, transcript)
		}
	}

	return strings.Join(parts, "\n")
}

func readOutput(location, name, sessionID string) string {
	data, err := os.ReadFile(filepath.Join(location, name))
	if err != nil {
		log.Printf("email: failed to read %s for meeting %s: %v", name, sessionID, err)
		return ""
	}
	return string(data)
}
