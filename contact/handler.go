// Package contact implementa o endpoint do formulário de contato do site.
//
// Fluxo por request: chave do cliente, decisão da janela fixa, checagem de
// configuração do e-mail, validação, envio e arquivo (opcional).
package contact

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"contact-gateway/mailer"
	"contact-gateway/middleware/ratelimit"
	"contact-gateway/middleware/ratelimit/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	maxBodyBytes = 64 << 10

	rateLimitMessage = "rate limit exceeded, please try again later"
)

// Archiver guarda envios aceitos. Falha de arquivo não afeta a resposta.
type Archiver interface {
	Save(ctx context.Context, s Submission) error
}

type Options struct {
	Limiter ratelimit.Decider
	KeyFn   ratelimit.KeyFunc
	Mailer  mailer.Sender
	// To é o endereço que recebe as mensagens.
	To       string
	Archive  Archiver
	Stats    domain.StatsStore
	Clock    domain.Clock
	SendWait time.Duration
}

type Handler struct {
	opts Options
}

func NewHandler(opts Options) *Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = ratelimit.ForwardedForKeyFunc()
	}
	if opts.Clock == nil {
		opts.Clock = domain.SystemClock{}
	}
	if opts.SendWait <= 0 {
		opts.SendWait = 15 * time.Second
	}
	opts.To = strings.TrimSpace(opts.To)
	return &Handler{opts: opts}
}

type response struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := domain.Key(h.opts.KeyFn(r))
	logger := log.With().Str("client", string(key)).Logger()

	// Deny encerra aqui: nada de e-mail.
	dec := domain.Decision{Allowed: true, Remaining: -1}
	if h.opts.Limiter != nil {
		dec = h.opts.Limiter.Decide(ctx, key)
	}
	ratelimit.RecordDecision(ctx, h.opts.Stats, domain.StatsEvent{
		Limiter: domain.LimiterContact,
		Key:     key,
		Allowed: dec.Allowed,
		Method:  r.Method,
		Path:    r.URL.Path,
		At:      h.opts.Clock.Now(),
	})
	if !dec.Allowed {
		logger.Warn().Dur("retry_after", dec.RetryAfter).Msg("contact rate limit exceeded")
		ratelimit.SetRetryAfter(w, dec.RetryAfter)
		respondJSON(w, http.StatusTooManyRequests, response{Error: rateLimitMessage})
		return
	}

	if err := h.checkConfig(); err != nil {
		logger.Error().Err(err).Msg("contact form misconfigured")
		respondJSON(w, http.StatusInternalServerError, response{Error: err.Error()})
		return
	}

	form, err := decodeForm(w, r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, response{Error: err.Error()})
		return
	}
	form = form.normalized()
	if err := form.Validate(); err != nil {
		respondJSON(w, http.StatusBadRequest, response{Error: err.Error()})
		return
	}

	sub := Submission{
		ID:        uuid.NewString(),
		ClientKey: string(key),
		Name:      form.Name,
		Email:     form.Email,
		Subject:   form.Subject,
		Message:   form.Message,
		CreatedAt: h.opts.Clock.Now().UTC(),
	}
	logger = logger.With().Str("submission", sub.ID).Logger()

	sendCtx, cancel := context.WithTimeout(ctx, h.opts.SendWait)
	defer cancel()
	msgID, err := h.opts.Mailer.Send(sendCtx, mailer.Email{
		To:      []string{h.opts.To},
		ReplyTo: sub.Email,
		Subject: sub.subjectLine(),
		Text:    sub.body(),
		Headers: map[string]string{"X-Submission-ID": sub.ID},
	})
	if err != nil {
		logger.Error().Err(err).Msg("contact email delivery failed")
		respondJSON(w, http.StatusBadGateway, response{Error: "failed to send message"})
		return
	}
	sub.MessageID = msgID

	if h.opts.Archive != nil {
		if err := h.opts.Archive.Save(ctx, sub); err != nil {
			logger.Warn().Err(err).Msg("contact archive failed")
		}
	}

	logger.Info().Str("message_id", msgID).Int("remaining", dec.Remaining).Msg("contact message sent")
	respondJSON(w, http.StatusOK, response{Success: true, ID: sub.ID})
}

func (h *Handler) checkConfig() error {
	if h.opts.Mailer == nil || !h.opts.Mailer.Configured() {
		return ErrNotConfigured
	}
	if h.opts.To == "" {
		return ErrMissingRecipient
	}
	return nil
}

// decodeForm aceita JSON ou application/x-www-form-urlencoded / multipart.
func decodeForm(w http.ResponseWriter, r *http.Request) (Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json", "":
		var f Form
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			return Form{}, errors.New("invalid request payload")
		}
		return f, nil
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return Form{}, errors.New("invalid form payload")
		}
		return Form{
			Name:    r.PostFormValue("name"),
			Email:   r.PostFormValue("email"),
			Subject: r.PostFormValue("subject"),
			Message: r.PostFormValue("message"),
		}, nil
	}
	return Form{}, errors.New("unsupported content type")
}
