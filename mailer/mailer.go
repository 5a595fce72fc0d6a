// Package mailer entrega as mensagens do formulário de contato a um provedor externo.
package mailer

import (
	"context"
	"errors"
)

// Email é uma mensagem de texto simples.
type Email struct {
	From    string
	To      []string
	ReplyTo string
	Subject string
	Text    string
	// Headers extras, ex: X-Submission-ID.
	Headers map[string]string
}

var ErrNoRecipient = errors.New("missing recipient")

// Sender é o contrato usado pelo handler de contato.
type Sender interface {
	Send(ctx context.Context, m Email) (id string, err error)
	// Configured indica se as credenciais necessárias estão presentes.
	Configured() bool
}

func validate(m Email) error {
	if len(m.To) == 0 {
		return ErrNoRecipient
	}
	for _, to := range m.To {
		if to == "" {
			return ErrNoRecipient
		}
	}
	return nil
}
