package contact

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrNotConfigured     = errors.New("email service is not configured")
	ErrMissingRecipient  = errors.New("contact recipient is not configured")
	ErrInvalidSubmission = errors.New("invalid submission")
)

const (
	maxNameLen    = 200
	maxEmailLen   = 320
	maxSubjectLen = 200
	maxMessageLen = 5000
)

// Form é o payload enviado pelo formulário do site.
type Form struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Submission é um envio aceito, já validado e com id.
type Submission struct {
	ID        string
	ClientKey string
	Name      string
	Email     string
	Subject   string
	Message   string
	MessageID string
	CreatedAt time.Time
}

func (f Form) normalized() Form {
	return Form{
		Name:    strings.TrimSpace(f.Name),
		Email:   strings.ToLower(strings.TrimSpace(f.Email)),
		Subject: strings.TrimSpace(f.Subject),
		Message: strings.TrimSpace(f.Message),
	}
}

// Validate retorna um erro que embrulha ErrInvalidSubmission com a causa.
func (f Form) Validate() error {
	switch {
	case f.Name == "" || f.Email == "" || f.Message == "":
		return fmt.Errorf("%w: name, email and message are required", ErrInvalidSubmission)
	case utf8.RuneCountInString(f.Name) > maxNameLen:
		return fmt.Errorf("%w: name is too long", ErrInvalidSubmission)
	case len(f.Email) > maxEmailLen:
		return fmt.Errorf("%w: email is too long", ErrInvalidSubmission)
	case utf8.RuneCountInString(f.Subject) > maxSubjectLen:
		return fmt.Errorf("%w: subject is too long", ErrInvalidSubmission)
	case utf8.RuneCountInString(f.Message) > maxMessageLen:
		return fmt.Errorf("%w: message is too long", ErrInvalidSubmission)
	}

	addr, err := mail.ParseAddress(f.Email)
	if err != nil || addr.Address != f.Email || addr.Name != "" {
		return fmt.Errorf("%w: invalid email address", ErrInvalidSubmission)
	}
	return nil
}

func (s Submission) subjectLine() string {
	if s.Subject != "" {
		return "[contact] " + s.Subject
	}
	return "[contact] New message from " + s.Name
}

func (s Submission) body() string {
	var b strings.Builder
	b.WriteString("Name: " + s.Name + "\n")
	b.WriteString("Email: " + s.Email + "\n")
	if s.Subject != "" {
		b.WriteString("Subject: " + s.Subject + "\n")
	}
	b.WriteString("Submission: " + s.ID + "\n\n")
	b.WriteString(s.Message)
	b.WriteString("\n")
	return b.String()
}
