// Package mailer sends booking-confirmation email over SMTP with the
// confirmation PDF attached.
package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"log"
	"mime/multipart"
	"net/smtp"
	"strings"
)

// Config carries the SMTP relay settings and sender identity.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	BCCAdmin string
	AppURL   string
}

// Mailer is the slice of email the booking flow needs.
type Mailer interface {
	// SendConfirmation mails the confirmation PDF to the attendee.
	SendConfirmation(ctx context.Context, to, name string, pdfContent []byte, meetingID string) error
}

// SMTPMailer implements Mailer over a TLS-authenticated SMTP relay.
type SMTPMailer struct {
	cfg Config
}

// NewSMTPMailer returns a mailer for the given relay.  When no host is
// configured, SendConfirmation logs and succeeds without sending so the
// rest of the flow is unaffected in development environments.
func NewSMTPMailer(cfg Config) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// SendConfirmation implements Mailer.
func (m *SMTPMailer) SendConfirmation(_ context.Context, to, name string, pdfContent []byte, meetingID string) error {
	if m.cfg.Host == "" {
		log.Printf("mailer: SMTP not configured, skipping confirmation email to %s", to)
		return nil
	}

	recipients := []string{to}
	if m.cfg.BCCAdmin != "" {
		recipients = append(recipients, m.cfg.BCCAdmin)
	}
	msg, err := m.buildMessage(to, name, pdfContent, meetingID)
	if err != nil {
		return err
	}

	addr := m.cfg.Host + ":" + m.cfg.Port
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	// smtp.SendMail negotiates STARTTLS when the server advertises it,
	// which is the posture the relay on port 587 requires.
	if err := smtp.SendMail(addr, auth, m.cfg.From, recipients, msg); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", to, err)
	}
	return nil
}

// buildMessage assembles a multipart message: HTML body with a plain
// alternative, plus the PDF attachment.
func (m *SMTPMailer) buildMessage(to, name string, pdfContent []byte, meetingID string) ([]byte, error) {
	var buf bytes.Buffer
	mixed := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s <%s>\r\n", m.cfg.FromName, m.cfg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: General Assembly - Booking Confirmation\r\n")
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", mixed.Boundary())

	htmlBody := m.confirmationBody(name, meetingID)
	textBody := strings.ReplaceAll(htmlBody, "<br>", "\n")
	textBody = stripTags(textBody)

	altBuf := &bytes.Buffer{}
	alt := multipart.NewWriter(altBuf)
	part, err := mixed.CreatePart(textHeader("multipart/alternative; boundary=" + alt.Boundary()))
	if err != nil {
		return nil, err
	}
	textPart, err := alt.CreatePart(textHeader("text/plain; charset=utf-8"))
	if err != nil {
		return nil, err
	}
	fmt.Fprint(textPart, textBody)
	htmlPart, err := alt.CreatePart(textHeader("text/html; charset=utf-8"))
	if err != nil {
		return nil, err
	}
	fmt.Fprint(htmlPart, htmlBody)
	if err := alt.Close(); err != nil {
		return nil, err
	}
	if _, err := part.Write(altBuf.Bytes()); err != nil {
		return nil, err
	}

	if len(pdfContent) > 0 {
		filename := fmt.Sprintf("%s_Booking_Confirmation.pdf", meetingID)
		att, err := mixed.CreatePart(map[string][]string{
			"Content-Type":              {"application/pdf"},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", filename)},
		})
		if err != nil {
			return nil, err
		}
		enc := base64.StdEncoding.EncodeToString(pdfContent)
		// RFC 2045 line length limit.
		for len(enc) > 76 {
			fmt.Fprintln(att, enc[:76])
			enc = enc[76:]
		}
		fmt.Fprintln(att, enc)
	}

	if err := mixed.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *SMTPMailer) confirmationBody(name, meetingID string) string {
	return fmt.Sprintf(`<img src="%s/assets/img/logo-%s.png" alt="Logo" style="max-width: 200px;">
<h2>Booking Confirmation</h2>
<p>Dear %s,</p>
<p>Thank you for your booking for the General Assembly. Please find your booking confirmation attached to this email.</p>
<p>If you have any questions or need assistance, please contact the organisational management team.</p>
<p>Kind regards,<br>Organisational Management Team</p>`,
		strings.TrimRight(m.cfg.AppURL, "/"), strings.ToLower(meetingID), html.EscapeString(name))
}

func textHeader(contentType string) map[string][]string {
	return map[string][]string{"Content-Type": {contentType}}
}

// stripTags removes HTML tags for the plain-text alternative.
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return html.UnescapeString(b.String())
}
