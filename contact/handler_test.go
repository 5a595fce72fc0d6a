package contact

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"contact-gateway/mailer"
	"contact-gateway/middleware/ratelimit/application"
	"contact-gateway/middleware/ratelimit/domain"
	"contact-gateway/middleware/ratelimit/infra"
)

type fakeMailer struct {
	configured bool
	err        error
	sent       []mailer.Email
}

func (m *fakeMailer) Configured() bool { return m.configured }

func (m *fakeMailer) Send(_ context.Context, e mailer.Email) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, e)
	return "msg_1", nil
}

type fakeArchive struct {
	saved []Submission
	err   error
}

func (a *fakeArchive) Save(_ context.Context, s Submission) error {
	a.saved = append(a.saved, s)
	return a.err
}

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }

var start = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

const validJSON = `{"name":"Ada","email":"Ada@Example.org","subject":"Hi","message":"Hello there"}`

func newTestHandler(m *fakeMailer, clock *manualClock) *Handler {
	return NewHandler(Options{
		Limiter: application.WindowService{Limiter: infra.NewWindowStore(domain.DefaultPolicy), Clock: clock},
		Mailer:  m,
		To:      "me@example.dev",
		Clock:   clock,
	})
}

func post(h http.Handler, xff, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "http://example/api/contact", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	if xff != "" {
		r.Header.Set("X-Forwarded-For", xff)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response {
	t.Helper()
	var out response
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHandler_SendsEmail(t *testing.T) {
	m := &fakeMailer{configured: true}
	h := newTestHandler(m, &manualClock{now: start})

	w := post(h, "1.2.3.4", validJSON)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	out := decode(t, w)
	if !out.Success || out.ID == "" {
		t.Fatalf("unexpected response: %+v", out)
	}
	if len(m.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(m.sent))
	}
	e := m.sent[0]
	if e.To[0] != "me@example.dev" || e.ReplyTo != "ada@example.org" {
		t.Fatalf("unexpected email envelope: %+v", e)
	}
	if e.Headers["X-Submission-ID"] != out.ID {
		t.Fatalf("expected submission id header %q, got %q", out.ID, e.Headers["X-Submission-ID"])
	}
	if !strings.Contains(e.Text, "Hello there") {
		t.Fatalf("expected message in body, got %q", e.Text)
	}
}

func TestHandler_FourthSubmissionIsRejectedWithoutSending(t *testing.T) {
	m := &fakeMailer{configured: true}
	h := newTestHandler(m, &manualClock{now: start})

	for i := 0; i < 3; i++ {
		if w := post(h, "1.2.3.4", validJSON); w.Code != http.StatusOK {
			t.Fatalf("submission %d: expected 200, got %d", i+1, w.Code)
		}
	}

	w := post(h, "1.2.3.4", validJSON)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := decode(t, w).Error; got != rateLimitMessage {
		t.Fatalf("unexpected error message %q", got)
	}
	if w.Header().Get("Retry-After") != "3600" {
		t.Fatalf("expected Retry-After=3600, got %q", w.Header().Get("Retry-After"))
	}
	if len(m.sent) != 3 {
		t.Fatalf("expected mailer not called after deny, got %d sends", len(m.sent))
	}
}

func TestHandler_DenyAtWindowEndSetsRetryAfter(t *testing.T) {
	m := &fakeMailer{configured: true}
	clock := &manualClock{now: start}
	h := newTestHandler(m, clock)

	for i := 0; i < 3; i++ {
		post(h, "1.2.3.4", validJSON)
	}

	clock.now = start.Add(time.Hour)
	w := post(h, "1.2.3.4", validJSON)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 at exactly +1h, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("expected Retry-After=1, got %q", got)
	}
}

func TestHandler_WindowExpiryAllowsAgain(t *testing.T) {
	m := &fakeMailer{configured: true}
	clock := &manualClock{now: start}
	h := newTestHandler(m, clock)

	for i := 0; i < 4; i++ {
		post(h, "1.2.3.4", validJSON)
	}
	clock.now = start.Add(time.Hour + time.Second)

	if w := post(h, "1.2.3.4", validJSON); w.Code != http.StatusOK {
		t.Fatalf("expected 200 after window expiry, got %d", w.Code)
	}
}

func TestHandler_ClientsWithoutForwardedForShareBucket(t *testing.T) {
	m := &fakeMailer{configured: true}
	h := newTestHandler(m, &manualClock{now: start})

	post(h, "", validJSON)
	post(h, "", validJSON)
	post(h, "", validJSON)

	// cliente diferente, também sem X-Forwarded-For: mesma cota "unknown"
	if w := post(h, "", validJSON); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected shared unknown bucket to be exhausted, got %d", w.Code)
	}
	if w := post(h, "9.9.9.9", validJSON); w.Code != http.StatusOK {
		t.Fatalf("expected resolvable client to be unaffected, got %d", w.Code)
	}
}

func TestHandler_NotConfigured(t *testing.T) {
	m := &fakeMailer{configured: false}
	h := newTestHandler(m, &manualClock{now: start})

	w := post(h, "1.2.3.4", validJSON)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if got := decode(t, w).Error; got != ErrNotConfigured.Error() {
		t.Fatalf("unexpected error %q", got)
	}
}

func TestHandler_MissingRecipient(t *testing.T) {
	h := NewHandler(Options{Mailer: &fakeMailer{configured: true}, To: "  "})

	w := post(h, "1.2.3.4", validJSON)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if got := decode(t, w).Error; got != ErrMissingRecipient.Error() {
		t.Fatalf("unexpected error %q", got)
	}
}

func TestHandler_ValidationErrors(t *testing.T) {
	m := &fakeMailer{configured: true}
	h := NewHandler(Options{Mailer: m, To: "me@example.dev"})

	cases := map[string]string{
		"missing message": `{"name":"Ada","email":"ada@example.org"}`,
		"bad email":       `{"name":"Ada","email":"not-an-email","message":"x"}`,
		"named email":     `{"name":"Ada","email":"Ada <ada@example.org>","message":"x"}`,
		"bad json":        `{"name":`,
		"long message":    `{"name":"Ada","email":"ada@example.org","message":"` + strings.Repeat("a", maxMessageLen+1) + `"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if w := post(h, "1.2.3.4", body); w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
		})
	}
	if len(m.sent) != 0 {
		t.Fatalf("expected no email for invalid submissions")
	}
}

func TestHandler_ProviderFailureIsBadGateway(t *testing.T) {
	m := &fakeMailer{configured: true, err: errors.New("resend send: provider down")}
	archive := &fakeArchive{}
	h := NewHandler(Options{Mailer: m, To: "me@example.dev", Archive: archive})

	if w := post(h, "1.2.3.4", validJSON); w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	if len(archive.saved) != 0 {
		t.Fatalf("expected nothing archived on delivery failure")
	}
}

func TestHandler_ArchiveFailureDoesNotFailRequest(t *testing.T) {
	m := &fakeMailer{configured: true}
	archive := &fakeArchive{err: errors.New("db down")}
	h := NewHandler(Options{Mailer: m, To: "me@example.dev", Archive: archive, Clock: &manualClock{now: start}})

	w := post(h, "1.2.3.4", validJSON)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(archive.saved) != 1 {
		t.Fatalf("expected archive to be attempted once")
	}
	s := archive.saved[0]
	if s.MessageID != "msg_1" || s.ClientKey != "1.2.3.4" || !s.CreatedAt.Equal(start) {
		t.Fatalf("unexpected archived submission: %+v", s)
	}
}

func TestHandler_AcceptsURLEncodedForm(t *testing.T) {
	m := &fakeMailer{configured: true}
	h := NewHandler(Options{Mailer: m, To: "me@example.dev"})

	form := url.Values{"name": {"Ada"}, "email": {"ada@example.org"}, "message": {"hi"}}
	r := httptest.NewRequest(http.MethodPost, "http://example/api/contact", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if !strings.Contains(m.sent[0].Subject, "Ada") {
		t.Fatalf("expected default subject to mention sender, got %q", m.sent[0].Subject)
	}
}

func TestHandler_RecordsStats(t *testing.T) {
	stats := infra.NewMemoryStatsStore()
	clock := &manualClock{now: start}
	h := NewHandler(Options{
		Limiter: application.WindowService{Limiter: infra.NewWindowStore(domain.Policy{MaxPerWindow: 1, Window: time.Hour}), Clock: clock},
		Mailer:  &fakeMailer{configured: true},
		To:      "me@example.dev",
		Stats:   stats,
		Clock:   clock,
	})

	post(h, "1.2.3.4", validJSON)
	post(h, "1.2.3.4", validJSON)

	if got := stats.Snapshot().ByLimiter[domain.LimiterContact]; got != (infra.Counters{Allowed: 1, Denied: 1}) {
		t.Fatalf("unexpected stats: %+v", got)
	}
}
