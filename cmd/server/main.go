package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"contact-gateway/contact"
	"contact-gateway/internal/archive"
	"contact-gateway/internal/config"
	"contact-gateway/internal/server"
	"contact-gateway/mailer"
	"contact-gateway/middleware/ratelimit"
	"contact-gateway/middleware/ratelimit/application"
	"contact-gateway/middleware/ratelimit/domain"
	"contact-gateway/middleware/ratelimit/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}
	setupLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var rdb *redis.Client
	if cfg.NeedsRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis ping error")
		}
	}

	var (
		statsStore  domain.StatsStore
		statsSource server.StatsSource
	)
	if cfg.Stats.Enabled {
		switch cfg.Stats.Backend {
		case config.StoreRedis:
			s := infra.NewRedisStatsStore(
				rdb,
				infra.WithStatsPrefix(cfg.Stats.Prefix),
				infra.WithStatsTTL(cfg.Stats.TTL),
				infra.WithStatsBucket(cfg.Stats.Bucket),
				infra.WithStatsTrackKeys(cfg.Stats.TrackKeys),
			)
			statsStore, statsSource = s, s.Snapshot
		default:
			s := infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.Stats.TrackKeys))
			statsStore = s
			statsSource = func(context.Context) (infra.StatsSnapshot, error) { return s.Snapshot(), nil }
		}
	}

	var contactLimiter domain.WindowLimiter
	switch cfg.Contact.Store {
	case config.StoreRedis:
		contactLimiter = infra.NewRedisWindowStore(rdb, cfg.Contact.Policy, infra.WithWindowPrefix("ratelimit:contact"))
	default:
		store := infra.NewWindowStore(cfg.Contact.Policy, infra.WithSweepEvery(cfg.Contact.SweepEvery))
		store.StartJanitor(ctx)
		contactLimiter = store
	}

	var archiver contact.Archiver
	if cfg.ArchiveDatabaseURL != "" {
		pool, err := archive.NewPool(ctx, cfg.ArchiveDatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("archive database error")
		}
		defer pool.Close()

		schemaCtx, schemaCancel := context.WithTimeout(ctx, 20*time.Second)
		err = archive.EnsureSchema(schemaCtx, pool)
		schemaCancel()
		if err != nil {
			log.Fatal().Err(err).Msg("archive schema error")
		}
		archiver = archive.NewStore(pool)
	}

	contactHandler := contact.NewHandler(contact.Options{
		Limiter: application.WindowService{Limiter: contactLimiter, FailOpen: cfg.Contact.FailOpen},
		Mailer:  newMailer(cfg),
		To:      cfg.Contact.To,
		Archive: archiver,
		Stats:   statsStore,
	})

	var upstream *url.URL
	if cfg.UpstreamURL != "" {
		upstream, err = url.Parse(cfg.UpstreamURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid UPSTREAM_URL")
		}
	}

	var siteLimit *ratelimit.Options
	if cfg.Site.Enabled {
		tokens := infra.NewTokenStore(cfg.Site.RPS, cfg.Site.Burst)
		tokens.StartJanitor(ctx)
		siteLimit = &ratelimit.Options{
			Decider:             application.Service{Store: tokens, RetryAfter: cfg.Site.RetryAfter},
			Stats:               statsStore,
			Info:                tokens,
			KeyHeader:           cfg.Site.KeyHeader,
			TrustXForwardedFor:  cfg.Site.TrustXFF,
			AddRateLimitHeaders: cfg.Site.AddHeaders,
		}
	}

	h := server.New(server.Options{
		Contact:   contactHandler,
		Upstream:  upstream,
		SiteLimit: siteLimit,
		Concurrency: ratelimit.ConcurrencyOptions{
			Max:            cfg.Site.ConcurrencyMax,
			AcquireTimeout: cfg.Site.ConcurrencyTimeout,
		},
		Stats:      statsSource,
		StatsToken: cfg.Stats.Token,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.ListenAddr).Str("upstream", cfg.UpstreamURL).Msg("gateway listening")
	log.Info().
		Int("max_per_window", cfg.Contact.Policy.MaxPerWindow).
		Dur("window", cfg.Contact.Policy.Window).
		Str("store", cfg.Contact.Store).
		Bool("fail_open", cfg.Contact.FailOpen).
		Str("mail_provider", cfg.Mail.Provider).
		Bool("archive", archiver != nil).
		Msg("contact limiter")
	log.Info().
		Bool("enabled", cfg.Site.Enabled).
		Float64("rps", cfg.Site.RPS).
		Int("burst", cfg.Site.Burst).
		Bool("trust_xff", cfg.Site.TrustXFF).
		Int("concurrency_max", cfg.Site.ConcurrencyMax).
		Msg("site limiter")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
}

func newMailer(cfg config.Config) mailer.Sender {
	switch cfg.Mail.Provider {
	case config.ProviderSMTP:
		// *SMTP nil continua valendo como Sender: Configured() retorna false.
		return mailer.NewSMTP(cfg.Mail.SMTPHost, cfg.Mail.SMTPPort, cfg.Mail.SMTPUsername,
			cfg.Mail.SMTPPassword, cfg.Mail.FromName, cfg.Contact.From)
	default:
		return mailer.NewResend(cfg.Mail.ResendAPIKey, cfg.Contact.From)
	}
}

func setupLogger(level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	if strings.EqualFold(format, "console") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
