// Package config carrega a configuração do gateway do ambiente (e de um .env opcional).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"contact-gateway/middleware/ratelimit/domain"

	"github.com/joho/godotenv"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"

	ProviderResend = "resend"
	ProviderSMTP   = "smtp"
)

type Config struct {
	ListenAddr  string
	UpstreamURL string
	LogLevel    string
	LogFormat   string

	Site    SiteLimit
	Contact ContactConfig
	Mail    MailConfig
	Redis   RedisConfig
	Stats   StatsConfig

	ArchiveDatabaseURL string
}

// SiteLimit é o throttle global (token bucket) e o limite de concorrência.
type SiteLimit struct {
	Enabled            bool
	RPS                float64
	Burst              int
	KeyHeader          string
	TrustXFF           bool
	RetryAfter         time.Duration
	AddHeaders         bool
	ConcurrencyMax     int
	ConcurrencyTimeout time.Duration
}

// ContactConfig é a janela fixa do formulário de contato.
type ContactConfig struct {
	Policy     domain.Policy
	Store      string
	FailOpen   bool
	SweepEvery time.Duration
	To         string
	From       string
}

type MailConfig struct {
	Provider     string
	ResendAPIKey string
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	FromName     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StatsConfig struct {
	Enabled   bool
	Backend   string
	Prefix    string
	TTL       time.Duration
	Bucket    string
	TrackKeys bool
	Token     string
}

// Load lê .env (se existir) e o ambiente. Variáveis já definidas no ambiente
// têm precedência sobre o .env.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() (Config, error) {
	cfg := Config{}
	cfg.ListenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.UpstreamURL = strings.TrimSpace(os.Getenv("UPSTREAM_URL"))
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "json")

	cfg.Site.Enabled = getenvBoolDefault("RATE_ENABLED", true)
	cfg.Site.RPS = getenvFloatDefault("RATE_RPS", 10)
	// IMPORTANTE: o "burst" permite uma rajada inicial de requisições.
	// Com RPS muito baixo (ex: 0.02), o padrão 20 faz parecer que o limiter não
	// está funcionando, porque as primeiras ~20 passam.
	cfg.Site.Burst = 20
	if _, ok := lookupEnv("RATE_RPS"); ok && cfg.Site.RPS > 0 && cfg.Site.RPS < 1 {
		cfg.Site.Burst = 1
	}
	cfg.Site.Burst = getenvIntDefault("RATE_BURST", cfg.Site.Burst)
	cfg.Site.KeyHeader = os.Getenv("RATE_KEY_HEADER")
	cfg.Site.TrustXFF = getenvBoolDefault("TRUST_XFF", false)
	cfg.Site.RetryAfter = getenvDurationDefault("RETRY_AFTER", 1*time.Second)
	cfg.Site.AddHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", false)
	cfg.Site.ConcurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.Site.ConcurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.Contact.Policy = domain.Policy{
		MaxPerWindow: getenvIntDefault("CONTACT_MAX_PER_WINDOW", domain.DefaultPolicy.MaxPerWindow),
		Window:       getenvDurationDefault("CONTACT_WINDOW", domain.DefaultPolicy.Window),
	}
	cfg.Contact.Store = strings.ToLower(getenvDefault("CONTACT_STORE", StoreMemory))
	cfg.Contact.FailOpen = getenvBoolDefault("CONTACT_FAIL_OPEN", false)
	cfg.Contact.SweepEvery = getenvDurationDefault("CONTACT_SWEEP_EVERY", 10*time.Minute)
	cfg.Contact.To = strings.TrimSpace(os.Getenv("CONTACT_TO"))
	cfg.Contact.From = strings.TrimSpace(os.Getenv("CONTACT_FROM"))

	cfg.Mail.Provider = strings.ToLower(getenvDefault("MAIL_PROVIDER", ProviderResend))
	cfg.Mail.ResendAPIKey = strings.TrimSpace(os.Getenv("RESEND_API_KEY"))
	cfg.Mail.SMTPHost = strings.TrimSpace(os.Getenv("SMTP_HOST"))
	cfg.Mail.SMTPPort = getenvDefault("SMTP_PORT", "587")
	cfg.Mail.SMTPUsername = strings.TrimSpace(os.Getenv("SMTP_USERNAME"))
	cfg.Mail.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.Mail.FromName = os.Getenv("CONTACT_FROM_NAME")

	cfg.Redis.Addr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Redis.DB = getenvIntDefault("REDIS_DB", 0)

	cfg.Stats.Enabled = getenvBoolDefault("RATE_STATS_ENABLED", true)
	cfg.Stats.Backend = strings.ToLower(getenvDefault("RATE_STATS_BACKEND", StoreMemory))
	cfg.Stats.Prefix = getenvDefault("RATE_STATS_PREFIX", "ratelimit:stats")
	cfg.Stats.TTL = getenvDurationDefault("RATE_STATS_TTL", 24*time.Hour)
	cfg.Stats.Bucket = getenvDefault("RATE_STATS_BUCKET", "minute")
	cfg.Stats.TrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", false)
	cfg.Stats.Token = strings.TrimSpace(os.Getenv("STATS_TOKEN"))

	cfg.ArchiveDatabaseURL = strings.TrimSpace(os.Getenv("ARCHIVE_DATABASE_URL"))

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Site.RPS <= 0 {
		return errors.New("RATE_RPS must be > 0")
	}
	if c.Site.Burst <= 0 {
		return errors.New("RATE_BURST must be > 0")
	}
	if c.Site.ConcurrencyMax < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if c.Contact.Policy.MaxPerWindow <= 0 {
		return errors.New("CONTACT_MAX_PER_WINDOW must be > 0")
	}
	if c.Contact.Policy.Window <= 0 {
		return errors.New("CONTACT_WINDOW must be > 0")
	}
	if c.Contact.Store != StoreMemory && c.Contact.Store != StoreRedis {
		return fmt.Errorf("invalid CONTACT_STORE: %s, must be '%s' or '%s'", c.Contact.Store, StoreMemory, StoreRedis)
	}
	if c.Mail.Provider != ProviderResend && c.Mail.Provider != ProviderSMTP {
		return fmt.Errorf("invalid MAIL_PROVIDER: %s, must be '%s' or '%s'", c.Mail.Provider, ProviderResend, ProviderSMTP)
	}
	if c.Stats.Backend != StoreMemory && c.Stats.Backend != StoreRedis {
		return fmt.Errorf("invalid RATE_STATS_BACKEND: %s, must be '%s' or '%s'", c.Stats.Backend, StoreMemory, StoreRedis)
	}
	if c.NeedsRedis() && c.Redis.Addr == "" {
		return errors.New("REDIS_ADDR is required when CONTACT_STORE or RATE_STATS_BACKEND is redis")
	}
	return nil
}

// NeedsRedis indica se algum componente foi configurado com backend Redis.
func (c Config) NeedsRedis() bool {
	return c.Contact.Store == StoreRedis || (c.Stats.Enabled && c.Stats.Backend == StoreRedis)
}

// lookupEnv retorna o valor sem espaços; vazio conta como não definido.
func lookupEnv(k string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(k))
	return v, v != ""
}

// getenvParse aplica parse ao valor de k, caindo em def se ausente ou inválido.
func getenvParse[T any](k string, def T, parse func(string) (T, error)) T {
	v, ok := lookupEnv(k)
	if !ok {
		return def
	}
	out, err := parse(v)
	if err != nil {
		return def
	}
	return out
}

func getenvDefault(k, def string) string {
	if v, ok := lookupEnv(k); ok {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	return getenvParse(k, def, strconv.Atoi)
}

func getenvFloatDefault(k string, def float64) float64 {
	return getenvParse(k, def, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) })
}

func getenvBoolDefault(k string, def bool) bool {
	return getenvParse(k, def, strconv.ParseBool)
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	return getenvParse(k, def, time.ParseDuration)
}
