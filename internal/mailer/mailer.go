// Package mailer sends KeepUp's notification emails: admin verification
// requests, password resets, and the initial contractor contact. Delivery
// is asynchronous; failures are logged and never retried.
package mailer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/google/uuid"

	"github.com/keepupwork/keepup/internal/config"
)

type Attachment struct {
	Filename string
	Content  []byte
}

type Message struct {
	To          []string
	CC          []string
	Subject     string
	Text        string
	HTML        string // optional; sent instead of Text when set
	Attachments []Attachment
}

type Mailer struct {
	cfg config.EmailConfig
	log *slog.Logger
}

func New(cfg config.EmailConfig, log *slog.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: log}
}

// Send queues the message for delivery and returns immediately. When SMTP
// is not configured the message is logged instead, which keeps local
// development working without a mail account.
func (m *Mailer) Send(msg Message) {
	if m.cfg.SMTPHost == "" {
		m.log.Info("smtp not configured, dropping email",
			"to", strings.Join(msg.To, ","), "subject", msg.Subject)
		return
	}
	go func() {
		if err := m.send(msg); err != nil {
			m.log.Error("send email", "to", strings.Join(msg.To, ","),
				"subject", msg.Subject, "error", err)
		}
	}()
}

func (m *Mailer) send(msg Message) error {
	from, err := mail.ParseAddress(m.cfg.From)
	if err != nil {
		return fmt.Errorf("parse from address: %w", err)
	}

	body, err := m.encode(from.Address, msg)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPass, m.cfg.SMTPHost)
	}
	addr := m.cfg.SMTPHost + ":" + m.cfg.SMTPPort
	rcpts := append(append([]string{}, msg.To...), msg.CC...)

	if err := smtp.SendMail(addr, auth, from.Address, rcpts, body); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (m *Mailer) encode(fromAddr string, msg Message) ([]byte, error) {
	var buf bytes.Buffer

	domain := "keepup"
	if at := strings.LastIndex(fromAddr, "@"); at >= 0 {
		domain = fromAddr[at+1:]
	}

	fmt.Fprintf(&buf, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.To, ", "))
	if len(msg.CC) > 0 {
		fmt.Fprintf(&buf, "Cc: %s\r\n", strings.Join(msg.CC, ", "))
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&buf, "Message-ID: <%s@%s>\r\n", uuid.NewString(), domain)
	buf.WriteString("MIME-Version: 1.0\r\n")

	contentType, content := "text/plain; charset=\"UTF-8\"", msg.Text
	if msg.HTML != "" {
		contentType, content = "text/html; charset=\"UTF-8\"", msg.HTML
	}

	if len(msg.Attachments) == 0 {
		fmt.Fprintf(&buf, "Content-Type: %s\r\n\r\n", contentType)
		buf.WriteString(content)
		return buf.Bytes(), nil
	}

	mw := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary())

	part, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {contentType}})
	if err != nil {
		return nil, fmt.Errorf("create body part: %w", err)
	}
	part.Write([]byte(content))

	for _, att := range msg.Attachments {
		hdr := textproto.MIMEHeader{
			"Content-Type":              {"application/octet-stream"},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", att.Filename)},
		}
		part, err := mw.CreatePart(hdr)
		if err != nil {
			return nil, fmt.Errorf("create attachment part: %w", err)
		}
		enc := base64.NewEncoder(base64.StdEncoding, part)
		enc.Write(att.Content)
		enc.Close()
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}
	return buf.Bytes(), nil
}
