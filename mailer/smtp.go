package mailer

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"sort"
	"strings"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTP envia via servidor SMTP com PLAIN auth.
type SMTP struct {
	host     string
	port     string
	username string
	password string
	fromName string
	fromAddr string

	sendMail sendMailFunc
}

// NewSMTP retorna nil quando falta algum dado obrigatório.
// (*SMTP)(nil).Configured() é false.
func NewSMTP(host, port, username, password, fromName, fromAddr string) *SMTP {
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	username = strings.TrimSpace(username)
	password = strings.ReplaceAll(strings.TrimSpace(password), " ", "")
	fromAddr = strings.TrimSpace(fromAddr)
	fromName = strings.TrimSpace(fromName)

	if host == "" || port == "" || username == "" || password == "" || fromAddr == "" {
		return nil
	}
	return &SMTP{
		host:     host,
		port:     port,
		username: username,
		password: password,
		fromName: fromName,
		fromAddr: fromAddr,
		sendMail: smtp.SendMail,
	}
}

func (m *SMTP) Configured() bool { return m != nil }

// Send não respeita cancelamento do ctx: net/smtp não aceita contexto.
func (m *SMTP) Send(_ context.Context, e Email) (string, error) {
	if m == nil {
		return "", fmt.Errorf("smtp mailer not configured")
	}
	if err := validate(e); err != nil {
		return "", err
	}

	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	addr := m.host + ":" + m.port
	if err := m.sendMail(addr, auth, m.fromAddr, e.To, m.buildMessage(e)); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	return e.Headers["X-Submission-ID"], nil
}

func (m *SMTP) buildMessage(e Email) []byte {
	fromHeader := m.fromAddr
	if m.fromName != "" {
		fromHeader = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", sanitizeHeader(m.fromName)), m.fromAddr)
	}

	lines := []string{
		"From: " + fromHeader,
		"To: " + strings.Join(e.To, ", "),
		"Subject: " + mime.QEncoding.Encode("utf-8", sanitizeHeader(e.Subject)),
	}
	if e.ReplyTo != "" {
		lines = append(lines, "Reply-To: "+sanitizeHeader(e.ReplyTo))
	}
	keys := make([]string, 0, len(e.Headers))
	for k := range e.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, k+": "+sanitizeHeader(e.Headers[k]))
	}
	lines = append(lines,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		e.Text,
	)
	return []byte(strings.Join(lines, "\r\n"))
}

// sanitizeHeader remove CR/LF para impedir injeção de headers.
func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
